// Package theme holds the palette, styles and icons shared by the grab
// progress screen and the guide preview.
package theme

import (
	"maps"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// IconSet maps a semantic name to the glyph drawn for it.
type IconSet map[string]string

func (s IconSet) clone() IconSet {
	if s == nil {
		return nil
	}
	return maps.Clone(s)
}

// Colors is the palette.
type Colors struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Accent     lipgloss.Color
	Background lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

type Borders struct {
	Panel lipgloss.Border
}

type Spacing struct {
	PanelPadding   int
	PanelGap       int
	StatusHPadding int
}

// BadgeKind selects a badge variant.
type BadgeKind int

const (
	BadgeInfo BadgeKind = iota
	BadgeSuccess
	BadgeWarning
	BadgeError
	BadgeMuted
)

// Theme bundles palette, borders, spacing and icons.
type Theme struct {
	colors   Colors
	borders  Borders
	spacing  Spacing
	icons    IconSet
	fallback IconSet
}

// Option configures a Theme during construction.
type Option func(*Theme)

func WithIconSet(set IconSet) Option {
	return func(t *Theme) {
		t.icons = set.clone()
	}
}

func WithColors(colors Colors) Option {
	return func(t *Theme) {
		t.colors = colors
	}
}

func WithSpacing(spacing Spacing) Option {
	return func(t *Theme) {
		t.spacing = spacing
	}
}

func WithBorders(borders Borders) Option {
	return func(t *Theme) {
		t.borders = borders
	}
}

// New constructs a Theme with opts applied over the defaults.
func New(opts ...Option) Theme {
	defaults := []Option{
		WithColors(Colors{
			Primary:    lipgloss.Color("#24476b"),
			Secondary:  lipgloss.Color("#3d6a96"),
			Accent:     lipgloss.Color("#6fb1e0"),
			Background: lipgloss.Color("#f7f9fb"),
			Muted:      lipgloss.Color("#8e9aaf"),
			Success:    lipgloss.Color("#4fbf8b"),
			Warning:    lipgloss.Color("#e0a545"),
			Error:      lipgloss.Color("#e0525c"),
		}),
		WithBorders(Borders{Panel: lipgloss.RoundedBorder()}),
		WithSpacing(Spacing{PanelPadding: 1, PanelGap: 2, StatusHPadding: 1}),
		WithIconSet(defaultIconSet()),
	}

	t := Theme{fallback: asciiIcons.clone()}
	for _, opt := range append(defaults, opts...) {
		opt(&t)
	}
	if t.icons == nil {
		t.icons = defaultIconSet()
	}
	return t
}

// Default returns the default Theme.
func Default() Theme {
	return New()
}

func (t Theme) Colors() Colors   { return t.colors }
func (t Theme) Borders() Borders { return t.borders }
func (t Theme) Spacing() Spacing { return t.spacing }

// Icon returns the glyph for name, falling back to ASCII.
func (t Theme) Icon(name string) string {
	if icon, ok := t.icons[name]; ok {
		return icon
	}
	if icon, ok := t.fallback[name]; ok {
		return icon
	}
	return ""
}

// IconSet returns a copy of the icon map.
func (t Theme) IconSet() IconSet {
	return t.icons.clone()
}

// ProgramIcon picks the icon for a program from its categories.
func (t Theme) ProgramIcon(categories []string) string {
	for _, c := range categories {
		switch strings.ToLower(c) {
		case "movie", "movies":
			return t.Icon("movie")
		case "sports":
			return t.Icon("sports")
		case "news":
			return t.Icon("news")
		}
	}
	return t.Icon("program")
}

func (t Theme) HeaderStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Background(t.colors.Primary).
		Foreground(t.colors.Background).
		Align(lipgloss.Center)
}

func (t Theme) StatusBarStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Background(t.colors.Secondary).
		Foreground(t.colors.Background).
		Padding(0, t.spacing.StatusHPadding)
}

func (t Theme) PanelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(t.borders.Panel).
		BorderForeground(t.colors.Accent).
		Padding(t.spacing.PanelPadding)
}

// TimeStyle renders schedule times in the preview.
func (t Theme) TimeStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.colors.Secondary).Bold(true)
}

// MutedStyle renders secondary text such as sub-titles.
func (t Theme) MutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.colors.Muted)
}

func (t Theme) BadgeStyle(kind BadgeKind) lipgloss.Style {
	base := lipgloss.NewStyle().Padding(0, 1).Bold(true)

	switch kind {
	case BadgeSuccess:
		return base.Background(t.colors.Success).Foreground(t.colors.Background)
	case BadgeWarning:
		return base.Background(t.colors.Warning).Foreground(t.colors.Background)
	case BadgeError:
		return base.Background(t.colors.Error).Foreground(t.colors.Background)
	case BadgeMuted:
		return base.Background(t.colors.Muted).Foreground(t.colors.Background)
	default:
		return base.Background(t.colors.Accent).Foreground(t.colors.Background)
	}
}

// ProgressGradient returns the gradient colors for progress bars.
func (t Theme) ProgressGradient() []string {
	return []string{string(t.colors.Primary), string(t.colors.Accent)}
}

func defaultIconSet() IconSet {
	if isLimitedTerminal() {
		return asciiIcons.clone()
	}
	return emojiIcons.clone()
}

// isLimitedTerminal reports SSH sessions and Windows consoles.
func isLimitedTerminal() bool {
	if os.Getenv("SSH_CLIENT") != "" || os.Getenv("SSH_TTY") != "" || os.Getenv("SSH_CONNECTION") != "" {
		return true
	}
	return runtime.GOOS == "windows"
}

var emojiIcons = IconSet{
	"channel":  "📡",
	"program":  "📺",
	"movie":    "🎬",
	"sports":   "🏟",
	"news":     "📰",
	"calendar": "📅",
	"clock":    "🕒",
	"site":     "🌐",
	"search":   "🔎",
	"success":  "✅",
	"warning":  "⚠️",
	"error":    "❌",
	"stats":    "📊",
	"worker":   "🧠",
	"unknown":  "❓",
}

var asciiIcons = IconSet{
	"channel":  "[CH]",
	"program":  "[P]",
	"movie":    "[M]",
	"sports":   "[S]",
	"news":     "[N]",
	"calendar": "[C]",
	"clock":    "[T]",
	"site":     "[W]",
	"search":   "[?]",
	"success":  "[v]",
	"warning":  "[~]",
	"error":    "[!]",
	"stats":    "[*]",
	"worker":   "[#]",
	"unknown":  "[?]",
}
