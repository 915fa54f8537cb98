package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/core"
	"github.com/Digital-Shane/guide-tidy/internal/fetch"
	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/Digital-Shane/guide-tidy/internal/tui/theme"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
)

var grabDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// scheduleGetter serves one program per known channel. Requests for a
// channel listed in block wait until release is closed.
type scheduleGetter struct {
	known   map[string]bool
	block   map[string]bool
	release chan struct{}
	ready   chan struct{}
	once    sync.Once
}

func (g *scheduleGetter) Get(ctx context.Context, req fetch.Request) ([]byte, error) {
	id := strings.TrimPrefix(req.URL, "schedule://")
	if g.block[id] {
		g.once.Do(func() { close(g.ready) })
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !g.known[id] {
		return nil, &fetch.StatusError{URL: req.URL, StatusCode: 404}
	}
	return []byte(`[[{"title":"News ` + id + `","start":"2024-01-01T10:00:00Z","duration":"01:00:00"}]]`), nil
}

type testItem struct {
	Title    string `json:"title"`
	Start    string `json:"start"`
	Duration string `json:"duration"`
}

func testEngine(t *testing.T, get provider.Getter, channels ...string) *core.GrabEngine {
	t.Helper()
	r := provider.NewRegistry()
	d := &provider.Descriptor{
		Name: "test",
		Site: "test.example",
		Days: 1,
		URL: func(ch provider.Channel, _, _ time.Time) string {
			return "schedule://" + ch.SiteID
		},
		Decode: func(raw json.RawMessage) (provider.Item, error) {
			var it testItem
			if err := json.Unmarshal(raw, &it); err != nil {
				return provider.Item{}, err
			}
			return provider.Item{
				Key:   it.Title,
				Start: guide.InstantStart(it.Start),
				Span:  guide.ClockSpan(it.Duration),
				Raw:   raw,
			}, nil
		},
		Details: provider.DetailFunc(func(_ context.Context, _ provider.Getter, item provider.Item, _ provider.Channel) (provider.Detail, error) {
			return provider.Detail{Title: item.Key}, nil
		}),
	}
	if err := r.Register(d, 1); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	chs := make([]provider.Channel, 0, len(channels))
	for _, id := range channels {
		chs = append(chs, provider.Channel{Site: "test.example", SiteID: id})
	}
	return core.NewGrabEngine(core.GrabConfig{
		Registry:    r,
		Getter:      get,
		Channels:    chs,
		Date:        grabDate,
		WorkerCount: 2,
	})
}

func finalOutput(t *testing.T, tm *teatest.TestModel) []byte {
	t.Helper()
	out, err := io.ReadAll(tm.FinalOutput(t, teatest.WithFinalTimeout(2*time.Second)))
	if err != nil {
		t.Fatalf("FinalOutput read error = %v", err)
	}
	return out
}

func finalGrabModel(t *testing.T, tm *teatest.TestModel) *GrabProgressModel {
	t.Helper()
	final := tm.FinalModel(t, teatest.WithFinalTimeout(2*time.Second))
	model, ok := final.(*GrabProgressModel)
	if !ok {
		t.Fatalf("Final model type = %T, want *GrabProgressModel", final)
	}
	return model
}

func TestGrabProgressCompletes(t *testing.T) {
	get := &scheduleGetter{known: map[string]bool{"1": true, "2": true}}
	engine := testEngine(t, get, "1", "2", "3")

	tm := teatest.NewTestModel(t, NewGrabProgressModel(engine, theme.New(theme.WithIconSet(theme.IconSet{}))), teatest.WithInitialTermSize(120, 30))
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))

	model := finalGrabModel(t, tm)
	output := finalOutput(t, tm)

	if !model.Done() {
		t.Error("Done() = false, want true")
	}
	summary := model.Summary()
	if summary.ProcessedJobs != 3 || summary.Programs != 2 || summary.ErrorCount != 1 {
		t.Errorf("summary = %+v, want 3 jobs, 2 programs, 1 error", summary)
	}
	if err := model.Err(); err != nil {
		t.Errorf("Err() = %v, want nil for a missing schedule", err)
	}

	for _, want := range []string{"Grabbing Guide", "Schedules: 3/3 (100%)", "Programs: 2", "Errors: 1"} {
		if !bytes.Contains(output, []byte(want)) {
			t.Errorf("final output missing %q; output = %q", want, output)
		}
	}
}

func TestGrabProgressQuitKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{name: "ctrl_c", key: tea.KeyMsg{Type: tea.KeyCtrlC}},
		{name: "esc", key: tea.KeyMsg{Type: tea.KeyEsc}},
		{name: "q", key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			get := &scheduleGetter{
				known:   map[string]bool{"1": true},
				block:   map[string]bool{"1": true},
				release: make(chan struct{}),
				ready:   make(chan struct{}),
			}
			t.Cleanup(func() { close(get.release) })
			engine := testEngine(t, get, "1")

			tm := teatest.NewTestModel(t, NewGrabProgressModel(engine, theme.Default()))
			<-get.ready
			tm.Send(tc.key)
			tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))

			model := finalGrabModel(t, tm)
			if model.Done() {
				t.Error("Done() = true, want false when exiting via quit key")
			}
			if model.Err() != nil {
				t.Errorf("Err() = %v, want nil on quit", model.Err())
			}
		})
	}
}

func TestGrabProgressNoChannels(t *testing.T) {
	engine := testEngine(t, &scheduleGetter{})

	model := NewGrabProgressModel(engine, theme.Default())
	if got := model.View(); got != "No channels to grab.\n" {
		t.Errorf("View() = %q, want empty notice", got)
	}

	tm := teatest.NewTestModel(t, model)
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
	if final := finalGrabModel(t, tm); !final.Done() {
		t.Error("Done() = false, want true with no jobs")
	}
}

func TestGrabProgressAuthFailure(t *testing.T) {
	model := NewGrabProgressModel(nil, theme.Default())
	model.errors = []error{
		fmt.Errorf("job: %w", &provider.ProviderError{Code: provider.CodeNotFound}),
		fmt.Errorf("job: %w", &provider.ProviderError{Code: provider.CodeAuthFailed, Message: "bad key"}),
	}
	if err := model.Err(); err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("Err() = %v, want auth failure", err)
	}
}

func TestGrabProgressErrorBlockTruncates(t *testing.T) {
	model := NewGrabProgressModel(nil, theme.New(theme.WithIconSet(theme.IconSet{})))
	model.width, model.height = 30, 9

	block := model.renderErrorBlock([]string{
		"first error",
		"second error that is much longer than the panel is wide",
		"third error",
	})
	if !strings.Contains(block, "Errors: 3") || !strings.Contains(block, "... and 1 more") {
		t.Errorf("renderErrorBlock() = %q, want count and overflow line", block)
	}
	if strings.Contains(block, "first error") {
		t.Errorf("renderErrorBlock() = %q, want oldest error dropped", block)
	}
	if strings.Contains(block, "panel is wide") {
		t.Errorf("renderErrorBlock() = %q, want long error truncated", block)
	}
}
