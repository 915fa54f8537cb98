package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Digital-Shane/guide-tidy/internal/core"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/Digital-Shane/guide-tidy/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

type grabEventMsg struct {
	event core.GrabEvent
	done  bool
}

const grabErrorBaseLines = 6

// GrabProgressModel displays progress while the engine fetches schedules.
type GrabProgressModel struct {
	engine   *core.GrabEngine
	events   <-chan core.GrabEvent
	summary  core.GrabSummary
	errors   []error
	fatalErr error

	width  int
	height int

	progress progress.Model
	theme    theme.Theme

	ctx    context.Context
	cancel context.CancelFunc

	done bool
}

// NewGrabProgressModel wraps engine in a Bubble Tea model.
func NewGrabProgressModel(engine *core.GrabEngine, th theme.Theme) *GrabProgressModel {
	gradient := th.ProgressGradient()
	prog := progress.New(progress.WithGradient(gradient[0], gradient[1]))
	prog.Width = 50

	m := &GrabProgressModel{
		engine:   engine,
		width:    80,
		height:   12,
		progress: prog,
		theme:    th,
	}
	if engine != nil {
		m.summary = engine.SummarySnapshot()
		m.summary.TotalJobs = len(engine.Jobs())
	}
	return m
}

// Init starts the engine.
func (m *GrabProgressModel) Init() tea.Cmd {
	if m.engine == nil {
		m.done = true
		return tea.Quit
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.events = m.engine.Start(m.ctx)
	return m.waitForEvent()
}

func (m *GrabProgressModel) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-m.events
		if !ok {
			return grabEventMsg{done: true}
		}
		return grabEventMsg{event: evt}
	}
}

// Update processes Bubble Tea messages.
func (m *GrabProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.progress.Width = msg.Width - 4
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case grabEventMsg:
		return m.handleGrabEvent(msg)
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *GrabProgressModel) handleGrabEvent(msg grabEventMsg) (tea.Model, tea.Cmd) {
	if msg.done {
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.summary = m.engine.SummarySnapshot()
		m.errors = m.engine.Errors()
		m.done = true
		return m, tea.Quit
	}

	m.summary = msg.event.Summary
	if msg.event.Err != nil && !errors.Is(msg.event.Err, context.Canceled) {
		m.fatalErr = msg.event.Err
	}
	m.errors = m.engine.Errors()

	ratio := 0.0
	if m.summary.TotalJobs > 0 {
		ratio = float64(m.summary.ProcessedJobs) / float64(m.summary.TotalJobs)
	}
	cmd := m.progress.SetPercent(ratio)
	if m.summary.Done {
		m.done = true
		return m, tea.Batch(cmd, tea.Quit)
	}
	return m, tea.Batch(cmd, m.waitForEvent())
}

// View renders the progress UI.
func (m *GrabProgressModel) View() string {
	if m.fatalErr != nil {
		return fmt.Sprintf("Error: %v\n", m.fatalErr)
	}
	if m.summary.TotalJobs == 0 {
		return "No channels to grab.\n"
	}

	percent := 100 * m.summary.ProcessedJobs / m.summary.TotalJobs
	header := fmt.Sprintf("%s Grabbing Guide", m.theme.Icon("channel"))

	statsLines := []string{
		fmt.Sprintf("%s Schedules: %d/%d (%d%%)", m.theme.Icon("calendar"), m.summary.ProcessedJobs, m.summary.TotalJobs, percent),
		fmt.Sprintf("%s Programs: %d", m.theme.Icon("program"), m.summary.Programs),
		fmt.Sprintf("%s Workers: %d/%d", m.theme.Icon("worker"), m.summary.ActiveWorkers, m.summary.WorkerLimit),
	}

	errs := make([]string, 0, len(m.errors))
	for _, err := range m.errors {
		errs = append(errs, err.Error())
	}

	statusText := "Fetching schedules in parallel... please wait"
	if m.summary.LastJob != "" {
		statusText = m.summary.LastJob
	}
	if badge := m.statusBadge(); badge != "" {
		statusText = badge + " " + statusText
	}

	sections := []string{
		m.theme.HeaderStyle().Width(m.width).Render(header),
		m.progress.View(),
		m.renderStatsPanel(statsLines, errs),
		m.theme.StatusBarStyle().Width(m.width).Render(statusText),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *GrabProgressModel) renderStatsPanel(statsLines, errs []string) string {
	panel := m.theme.PanelStyle()
	panelWidth := max(m.width-panel.GetHorizontalFrameSize(), 0)

	blocks := []string{strings.Join(statsLines, "\n")}
	if errBlock := m.renderErrorBlock(errs); errBlock != "" {
		blocks = append(blocks, errBlock)
	}
	return panel.Width(panelWidth).Render(strings.Join(blocks, "\n"))
}

func (m *GrabProgressModel) renderErrorBlock(errs []string) string {
	if len(errs) == 0 {
		return ""
	}

	errorStyle := lipgloss.NewStyle().Foreground(m.theme.Colors().Error)

	maxErrorLines := max(m.height-grabErrorBaseLines-1, 1)
	errorsToShow := min(len(errs), maxErrorLines)
	startIdx := len(errs) - errorsToShow
	availableWidth := max(m.width-4, 10)

	lines := make([]string, 0, errorsToShow+2)
	lines = append(lines, fmt.Sprintf("%s Errors: %d", m.theme.Icon("error"), len(errs)))
	for _, msg := range errs[startIdx:] {
		lines = append(lines, "• "+runewidth.Truncate(msg, availableWidth, "..."))
	}
	if len(errs) > errorsToShow {
		lines = append(lines, fmt.Sprintf("... and %d more", len(errs)-errorsToShow))
	}

	return errorStyle.Render(strings.Join(lines, "\n"))
}

func (m *GrabProgressModel) statusBadge() string {
	switch {
	case m.summary.Canceled:
		return m.theme.BadgeStyle(theme.BadgeWarning).Render("CANCELED")
	case m.done && len(m.errors) > 0:
		return m.theme.BadgeStyle(theme.BadgeError).Render(fmt.Sprintf("%d FAILED", len(m.errors)))
	case m.done:
		return m.theme.BadgeStyle(theme.BadgeSuccess).Render("DONE")
	}
	return ""
}

// Summary returns the last summary seen.
func (m *GrabProgressModel) Summary() core.GrabSummary {
	return m.summary
}

// Done reports whether the engine finished or was canceled.
func (m *GrabProgressModel) Done() bool {
	return m.done
}

// Err returns a fatal engine error, or the first error that suggests the
// whole grab is broken rather than one channel.
func (m *GrabProgressModel) Err() error {
	if m.fatalErr != nil {
		return m.fatalErr
	}
	for _, err := range m.errors {
		var provErr *provider.ProviderError
		if errors.As(err, &provErr) && provErr.Code == provider.CodeAuthFailed {
			return err
		}
	}
	return nil
}
