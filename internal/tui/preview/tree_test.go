package preview

import (
	"strings"
	"testing"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/tui/theme"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/google/go-cmp/cmp"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
}

func samplePrograms() []guide.Program {
	return []guide.Program{
		{Channel: "Astro.my", Title: "Evening News", Start: at(18, 0), Stop: at(18, 30), Categories: []string{"News"}},
		{Channel: "Astro.my", Title: "The Heist", Start: at(18, 30), Stop: at(20, 30), Categories: []string{"Movie", "Action"}},
		{Channel: "Now.hk", Title: "Kitchen Wars", SubTitle: "Finale", Season: guide.IntPtr(2), Episode: guide.IntPtr(8), Start: at(19, 0), Stop: at(20, 0)},
	}
}

func TestProgramLabel(t *testing.T) {
	sgt := time.FixedZone("SGT", 8*60*60)

	tests := []struct {
		name string
		p    guide.Program
		loc  *time.Location
		want string
	}{
		{
			name: "utc",
			p:    guide.Program{Title: "Evening News", Start: at(18, 0), Stop: at(18, 30)},
			loc:  time.UTC,
			want: "18:00-18:30 Evening News",
		},
		{
			name: "episode and sub-title",
			p:    guide.Program{Title: "Kitchen Wars", SubTitle: "Finale", Season: guide.IntPtr(2), Episode: guide.IntPtr(8), Start: at(19, 0), Stop: at(20, 0)},
			loc:  sgt,
			want: "03:00-04:00 Kitchen Wars S02E08 · Finale",
		},
		{
			name: "untitled",
			p:    guide.Program{Start: at(1, 0), Stop: at(2, 0)},
			loc:  time.UTC,
			want: "01:00-02:00 (untitled)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ProgramLabel(tc.p, tc.loc); got != tc.want {
				t.Errorf("ProgramLabel() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestProgramLabelTruncatesWideTitles(t *testing.T) {
	p := guide.Program{Title: strings.Repeat("中", 40), Start: at(1, 0), Stop: at(2, 0)}
	got := ProgramLabel(p, time.UTC)

	if !strings.HasSuffix(got, "…") {
		t.Errorf("ProgramLabel() = %q, want ellipsis", got)
	}
	// 12 columns for the slot plus the clipped title.
	if w := len([]rune(strings.TrimPrefix(got, "01:00-02:00 "))); w > titleWidth/2+1 {
		t.Errorf("title kept %d runes, want at most %d", w, titleWidth/2+1)
	}
}

func TestLines(t *testing.T) {
	got := Lines(samplePrograms()[:1], time.UTC)
	want := []string{
		"Astro.my",
		"  " + "18:00-18:30 Evening News" + strings.Repeat(" ", titleWidth+12-len("18:00-18:30 Evening News")) + " [News]",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}

	all := Lines(samplePrograms(), time.UTC)
	if len(all) != 5 || all[3] != "Now.hk" {
		t.Errorf("Lines() = %q, want two channel headers", all)
	}
}

func TestBuildTree(t *testing.T) {
	tree := BuildTree(samplePrograms(), time.UTC, theme.Default())
	nodes := tree.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("BuildTree() produced %d channels, want 2", len(nodes))
	}

	astro := nodes[0]
	if !astro.Data().IsChannel() || astro.Data().Count != 2 || len(astro.Children()) != 2 {
		t.Errorf("first channel = %+v with %d children", *astro.Data(), len(astro.Children()))
	}
	if label, _ := Formatter(astro); label != "Astro.my (2 programs)" {
		t.Errorf("Formatter(channel) = %q", label)
	}
	if label, _ := Formatter(astro.Children()[1]); label != "18:30-20:30 The Heist" {
		t.Errorf("Formatter(program) = %q", label)
	}
}

func TestBuildTreeEmpty(t *testing.T) {
	tree := BuildTree(nil, nil, theme.Default())
	if len(tree.Nodes()) != 0 {
		t.Errorf("BuildTree(nil) = %d nodes, want 0", len(tree.Nodes()))
	}
}

func TestModelQuits(t *testing.T) {
	tree := BuildTree(samplePrograms(), time.UTC, theme.New(theme.WithIconSet(theme.IconSet{})))
	tm := teatest.NewTestModel(t, NewModel(tree, theme.Default()), teatest.WithInitialTermSize(100, 20))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	if _, ok := tm.FinalModel(t).(*Model); !ok {
		t.Errorf("FinalModel() type = %T, want *Model", tm.FinalModel(t))
	}
}
