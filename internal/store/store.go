// Package store persists assembled programs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Digital-Shane/guide-tidy/internal/guide"
)

// Store manages guide persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS programs (
	channel     TEXT    NOT NULL,
	start_unix  INTEGER NOT NULL,
	stop_unix   INTEGER NOT NULL,
	lang        TEXT    NOT NULL DEFAULT '',
	title       TEXT    NOT NULL DEFAULT '',
	sub_title   TEXT    NOT NULL DEFAULT '',
	description TEXT    NOT NULL DEFAULT '',
	season      INTEGER,
	episode     INTEGER,
	categories  TEXT    NOT NULL DEFAULT '[]',
	actors      TEXT    NOT NULL DEFAULT '[]',
	directors   TEXT    NOT NULL DEFAULT '[]',
	rating      TEXT,
	icon        TEXT    NOT NULL DEFAULT '',
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (channel, start_unix)
);
CREATE INDEX IF NOT EXISTS idx_programs_stop ON programs(channel, stop_unix);
`

// Open initializes or connects to the guide database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// SavePrograms upserts programs keyed by channel and start time, and returns
// the number written.
func (s *Store) SavePrograms(ctx context.Context, programs []guide.Program) (int, error) {
	if len(programs) == 0 {
		return 0, nil
	}

	now := time.Now().Unix()
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO programs (channel, start_unix, stop_unix, lang, title, sub_title, description,
	season, episode, categories, actors, directors, rating, icon, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(channel, start_unix) DO UPDATE SET
	stop_unix = excluded.stop_unix,
	lang = excluded.lang,
	title = excluded.title,
	sub_title = excluded.sub_title,
	description = excluded.description,
	season = excluded.season,
	episode = excluded.episode,
	categories = excluded.categories,
	actors = excluded.actors,
	directors = excluded.directors,
	rating = excluded.rating,
	icon = excluded.icon,
	updated_at = excluded.updated_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range programs {
			args, err := programArgs(p, now)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("save programs: %w", err)
	}
	return len(programs), nil
}

func programArgs(p guide.Program, now int64) ([]any, error) {
	categories, err := encodeList(p.Categories)
	if err != nil {
		return nil, err
	}
	actors, err := encodeList(p.Actors)
	if err != nil {
		return nil, err
	}
	directors, err := encodeList(p.Directors)
	if err != nil {
		return nil, err
	}
	var rating sql.NullString
	if p.Rating != nil {
		data, err := json.Marshal(p.Rating)
		if err != nil {
			return nil, err
		}
		rating = sql.NullString{String: string(data), Valid: true}
	}
	return []any{
		p.Channel, p.Start.Unix(), p.Stop.Unix(), p.Lang, p.Title, p.SubTitle, p.Description,
		nullInt(p.Season), nullInt(p.Episode), categories, actors, directors, rating, p.Icon, now,
	}, nil
}

// Programs returns the programs of channel that overlap [from, to), ordered
// by start time.
func (s *Store) Programs(ctx context.Context, channel string, from, to time.Time) ([]guide.Program, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT channel, start_unix, stop_unix, lang, title, sub_title, description,
	season, episode, categories, actors, directors, rating, icon
FROM programs
WHERE channel = ? AND stop_unix > ? AND start_unix < ?
ORDER BY start_unix`, channel, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()

	programs := []guide.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}
	return programs, nil
}

// Channels returns every stored channel id with its program count.
func (s *Store) Channels(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT channel, COUNT(*) FROM programs GROUP BY channel`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			channel string
			n       int
		)
		if err := rows.Scan(&channel, &n); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		counts[channel] = n
	}
	return counts, rows.Err()
}

// Prune removes programs that ended before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, `DELETE FROM programs WHERE stop_unix <= ?`, cutoff.Unix())
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune programs: %w", err)
	}
	return res.RowsAffected()
}

func scanProgram(rows *sql.Rows) (guide.Program, error) {
	var (
		p                             guide.Program
		start, stop                   int64
		season, episode               sql.NullInt64
		categories, actors, directors string
		rating                        sql.NullString
	)
	if err := rows.Scan(&p.Channel, &start, &stop, &p.Lang, &p.Title, &p.SubTitle, &p.Description,
		&season, &episode, &categories, &actors, &directors, &rating, &p.Icon); err != nil {
		return guide.Program{}, fmt.Errorf("scan program: %w", err)
	}

	p.Start = time.Unix(start, 0).UTC()
	p.Stop = time.Unix(stop, 0).UTC()
	if season.Valid {
		p.Season = guide.IntPtr(int(season.Int64))
	}
	if episode.Valid {
		p.Episode = guide.IntPtr(int(episode.Int64))
	}

	var err error
	if p.Categories, err = decodeList(categories); err != nil {
		return guide.Program{}, err
	}
	if p.Actors, err = decodeList(actors); err != nil {
		return guide.Program{}, err
	}
	if p.Directors, err = decodeList(directors); err != nil {
		return guide.Program{}, err
	}
	if rating.Valid {
		p.Rating = &guide.Rating{}
		if err := json.Unmarshal([]byte(rating.String), p.Rating); err != nil {
			return guide.Program{}, fmt.Errorf("decode rating: %w", err)
		}
	}
	return p, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	values := []string{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return values, nil
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}
