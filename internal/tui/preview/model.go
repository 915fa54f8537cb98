package preview

import (
	"fmt"
	"strings"

	"github.com/Digital-Shane/guide-tidy/internal/tui/theme"
	"github.com/Digital-Shane/treeview"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Model is a browsable guide tree with a detail line for the focused program.
type Model struct {
	*treeview.TuiTreeModel[Entry]
	theme  theme.Theme
	width  int
	height int
}

// NewModel wraps tree in an interactive viewer.
func NewModel(tree *treeview.Tree[Entry], th theme.Theme) *Model {
	m := &Model{theme: th, width: 80, height: 24}

	keyMap := treeview.DefaultKeyMap()
	keyMap.SearchStart = []string{}
	keyMap.Reset = []string{}

	m.TuiTreeModel = treeview.NewTuiTreeModel(tree,
		treeview.WithTuiWidth[Entry](m.width),
		treeview.WithTuiHeight[Entry](m.treeHeight()),
		treeview.WithTuiAllowResize[Entry](true),
		treeview.WithTuiDisableNavBar[Entry](true),
		treeview.WithTuiKeyMap[Entry](keyMap),
	)
	return m
}

func (m *Model) treeHeight() int {
	// header, detail and status lines
	return max(m.height-4, 1)
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.TuiTreeModel.Init(), tea.WindowSize())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		treeModel, cmd := m.TuiTreeModel.Update(tea.WindowSizeMsg{Width: m.width, Height: m.treeHeight()})
		m.TuiTreeModel = treeModel.(*treeview.TuiTreeModel[Entry])
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c", "q":
			return m, tea.Quit
		}
	}

	treeModel, cmd := m.TuiTreeModel.Update(msg)
	m.TuiTreeModel = treeModel.(*treeview.TuiTreeModel[Entry])
	return m, cmd
}

func (m *Model) View() string {
	header := m.theme.HeaderStyle().Width(m.width).Render(fmt.Sprintf("%s Guide Preview", m.theme.Icon("calendar")))
	status := m.theme.StatusBarStyle().Width(m.width).Render("↑/↓ move  ←/→ collapse/expand  q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.TuiTreeModel.View(),
		m.detail(),
		status,
	)
}

// detail describes the focused node on one line.
func (m *Model) detail() string {
	node := m.TuiTreeModel.Tree.GetFocusedNode()
	if node == nil {
		return ""
	}
	e := node.Data()
	if e.IsChannel() {
		return m.theme.MutedStyle().Render(fmt.Sprintf("%d programs", e.Count))
	}

	p := e.Program
	slot := p.Start.In(e.Location).Format("15:04") + "-" + p.Stop.In(e.Location).Format("15:04")
	parts := []string{}
	if len(p.Categories) > 0 {
		parts = append(parts, strings.Join(p.Categories, ", "))
	}
	if p.Rating != nil {
		parts = append(parts, p.Rating.System+" "+p.Rating.Value)
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	prefix := m.theme.ProgramIcon(p.Categories) + " " + m.theme.TimeStyle().Render(slot) + " "
	text := runewidth.Truncate(strings.Join(parts, " | "), max(m.width-lipgloss.Width(prefix), 10), "…")
	return prefix + m.theme.MutedStyle().Render(text)
}
