package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

type OperationType string

const (
	OpFetch OperationType = "fetch"
	OpBuild OperationType = "build"
	OpStore OperationType = "store"
)

// OperationLog records one step of a grab for one channel and day.
type OperationLog struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Type      OperationType `json:"type"`
	Site      string        `json:"site"`
	Channel   string        `json:"channel"`
	Date      string        `json:"date,omitempty"`
	Programs  int           `json:"programs"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

type SessionMetadata struct {
	CommandArgs   []string  `json:"command_args"`
	WorkingDir    string    `json:"working_dir"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id"`
	TotalOps      int       `json:"total_operations"`
	SuccessfulOps int       `json:"successful_operations"`
	FailedOps     int       `json:"failed_operations"`
	TotalPrograms int       `json:"total_programs"`
}

type LogSession struct {
	Metadata   SessionMetadata `json:"metadata"`
	Operations []OperationLog  `json:"operations"`
}

// Global singleton session manager
var (
	currentSession *LogSession
	sessionMutex   sync.Mutex
	loggingEnabled = true
	logDir         string
)

// Initialize sets up session logging. Sessions are written to dir, and files
// older than retentionDays are pruned.
func Initialize(enabled bool, retentionDays int, dir string) {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()

	loggingEnabled = enabled
	logDir = dir

	if enabled && retentionDays > 0 {
		if err := cleanupOldLogsUnsafe(retentionDays); err != nil {
			logger := WithComponent("session")
			logger.Warn().Err(err).Msg("failed to clean up old session logs")
		}
	}
}

// StartSession initializes a new logging session and returns its id.
func StartSession(command string, args []string) (string, error) {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()

	if !loggingEnabled {
		return "", nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	currentSession = &LogSession{
		Metadata: SessionMetadata{
			CommandArgs: append([]string{command}, args...),
			WorkingDir:  wd,
			Timestamp:   time.Now(),
			SessionID:   uuid.NewString(),
		},
		Operations: []OperationLog{},
	}

	return currentSession.Metadata.SessionID, nil
}

// EndSession saves the current session to disk and returns the file path.
func EndSession() (string, error) {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()

	if !loggingEnabled || currentSession == nil {
		return "", nil
	}

	updateStats()
	path, err := writeSessionUnsafe(currentSession)
	currentSession = nil
	return path, err
}

// LogFetch records a schedule download.
func LogFetch(site, channel, date string, err error) {
	LogOperation(OperationLog{Type: OpFetch, Site: site, Channel: channel, Date: date}, err)
}

// LogBuild records a schedule assembly.
func LogBuild(site, channel, date string, programs int) {
	LogOperation(OperationLog{Type: OpBuild, Site: site, Channel: channel, Date: date, Programs: programs}, nil)
}

// LogStore records a database write.
func LogStore(site, channel string, programs int, err error) {
	LogOperation(OperationLog{Type: OpStore, Site: site, Channel: channel, Programs: programs}, err)
}

// LogOperation appends op to the current session. Success is derived from err.
func LogOperation(op OperationLog, err error) {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()

	if !loggingEnabled || currentSession == nil {
		return
	}

	op.ID = fmt.Sprintf("%s_%d", currentSession.Metadata.SessionID, len(currentSession.Operations))
	op.Timestamp = time.Now()
	op.Success = err == nil
	if err != nil {
		op.Error = err.Error()
	}

	currentSession.Operations = append(currentSession.Operations, op)
}

// updateStats updates the session statistics
func updateStats() {
	if currentSession == nil {
		return
	}

	successful, failed, programs := 0, 0, 0
	for _, op := range currentSession.Operations {
		if op.Success {
			successful++
		} else {
			failed++
		}
		if op.Type == OpBuild {
			programs += op.Programs
		}
	}

	currentSession.Metadata.TotalOps = len(currentSession.Operations)
	currentSession.Metadata.SuccessfulOps = successful
	currentSession.Metadata.FailedOps = failed
	currentSession.Metadata.TotalPrograms = programs
}

func sessionDir() (string, error) {
	if logDir != "" {
		return logDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".guide-tidy", "logs"), nil
}

func writeSessionUnsafe(session *LogSession) (string, error) {
	dir, err := sessionDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	ts := session.Metadata.Timestamp
	name := fmt.Sprintf("%s.%03d.json", ts.Format("2006-01-02_150405"), ts.Nanosecond()/1000000)
	path := filepath.Join(dir, name)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write log file: %w", err)
	}
	return path, nil
}

// ReadSession loads one session file.
func ReadSession(logPath string) (*LogSession, error) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var session LogSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// ReadSessions returns up to limit sessions, newest first.
func ReadSessions(limit int) ([]*LogSession, error) {
	sessionMutex.Lock()
	dir, err := sessionDir()
	sessionMutex.Unlock()
	if err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}

	// File names start with the timestamp.
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	sessions := make([]*LogSession, 0, len(files))
	for _, file := range files {
		session, err := ReadSession(file)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

// cleanupOldLogsUnsafe performs cleanup without acquiring mutex (assumes caller holds it)
func cleanupOldLogsUnsafe(retentionDays int) error {
	dir, err := sessionDir()
	if err != nil {
		return err
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list log files: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				logger := WithComponent("session")
				logger.Warn().Err(err).Str("file", file).Msg("failed to remove old session log")
			}
		}
	}

	return nil
}
