// Package preview renders assembled programs as a channel to program tree.
package preview

import (
	"fmt"
	"strings"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/tui/theme"
	"github.com/Digital-Shane/treeview"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// titleWidth caps the program label so times stay aligned.
const titleWidth = 48

// Entry is the node payload. Channel nodes carry no Program.
type Entry struct {
	Channel  string
	Count    int
	Program  *guide.Program
	Location *time.Location
}

// IsChannel reports whether the entry is a channel header.
func (e Entry) IsChannel() bool {
	return e.Program == nil
}

// BuildTree groups programs by channel. Programs are expected sorted by
// channel then start, the order GrabEngine.Programs returns.
func BuildTree(programs []guide.Program, loc *time.Location, th theme.Theme) *treeview.Tree[Entry] {
	if loc == nil {
		loc = time.Local
	}

	var (
		nodes    []*treeview.Node[Entry]
		current  *treeview.Node[Entry]
		children []*treeview.Node[Entry]
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Data().Count = len(children)
		current.SetChildren(children)
		nodes = append(nodes, current)
	}

	for i := range programs {
		p := &programs[i]
		if current == nil || current.Data().Channel != p.Channel {
			flush()
			current = treeview.NewNode("ch:"+p.Channel, p.Channel, Entry{Channel: p.Channel, Location: loc})
			children = nil
		}
		id := fmt.Sprintf("%s@%d", p.Channel, p.Start.Unix())
		children = append(children, treeview.NewNode(id, p.Title, Entry{Channel: p.Channel, Program: p, Location: loc}))
	}
	flush()

	return treeview.NewTree(nodes,
		treeview.WithExpandAll[Entry](),
		treeview.WithProvider(NewProvider(th)),
	)
}

// NewProvider builds the icon, style and label rules for guide trees.
func NewProvider(th theme.Theme) *treeview.DefaultNodeProvider[Entry] {
	colors := th.Colors()

	isChannel := func(n *treeview.Node[Entry]) bool { return n.Data().IsChannel() }
	hasCategory := func(name string) func(*treeview.Node[Entry]) bool {
		return func(n *treeview.Node[Entry]) bool {
			p := n.Data().Program
			if p == nil {
				return false
			}
			for _, c := range p.Categories {
				if strings.EqualFold(c, name) {
					return true
				}
			}
			return false
		}
	}

	return treeview.NewDefaultNodeProvider(
		treeview.WithIconRule(isChannel, th.Icon("channel")),
		treeview.WithIconRule(hasCategory(guide.MovieCategory), th.Icon("movie")),
		treeview.WithIconRule(hasCategory(guide.SportsLabel), th.Icon("sports")),
		treeview.WithIconRule(hasCategory("News"), th.Icon("news")),
		treeview.WithDefaultIcon[Entry](th.Icon("program")),

		treeview.WithStyleRule(
			isChannel,
			lipgloss.NewStyle().Foreground(colors.Primary).Bold(true),
			lipgloss.NewStyle().Foreground(colors.Background).Bold(true).Background(colors.Secondary).PaddingRight(1),
		),
		treeview.WithStyleRule(
			hasCategory(guide.MovieCategory),
			lipgloss.NewStyle().Foreground(colors.Secondary),
			lipgloss.NewStyle().Foreground(colors.Background).Background(colors.Primary),
		),
		treeview.WithStyleRule(
			func(*treeview.Node[Entry]) bool { return true },
			lipgloss.NewStyle().Foreground(colors.Muted),
			lipgloss.NewStyle().Foreground(colors.Background).Background(colors.Primary),
		),

		treeview.WithFormatter(Formatter),
	)
}

// Formatter labels channel nodes with their program count and program nodes
// with their local time slot.
func Formatter(node *treeview.Node[Entry]) (string, bool) {
	e := node.Data()
	if e.IsChannel() {
		return fmt.Sprintf("%s (%d programs)", e.Channel, e.Count), true
	}
	return ProgramLabel(*e.Program, e.Location), true
}

// ProgramLabel renders "15:04-16:00 Title S01E02 · Sub-title" with the title
// part clipped to a fixed display width.
func ProgramLabel(p guide.Program, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	slot := p.Start.In(loc).Format("15:04") + "-" + p.Stop.In(loc).Format("15:04")

	title := guide.FirstNonEmpty(p.Title, "(untitled)")
	if code := p.EpisodeCode(); code != "" {
		title += " " + code
	}
	if p.SubTitle != "" {
		title += " · " + p.SubTitle
	}
	return slot + " " + runewidth.Truncate(title, titleWidth, "…")
}

// Lines renders programs as plain text for non-interactive output.
func Lines(programs []guide.Program, loc *time.Location) []string {
	var (
		lines   []string
		channel string
	)
	for i, p := range programs {
		if i == 0 || p.Channel != channel {
			channel = p.Channel
			lines = append(lines, channel)
		}
		label := ProgramLabel(p, loc)
		if len(p.Categories) > 0 {
			label = runewidth.FillRight(label, titleWidth+12) + " [" + strings.Join(p.Categories, ", ") + "]"
		}
		lines = append(lines, "  "+label)
	}
	return lines
}
