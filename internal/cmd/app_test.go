package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/config"
	"github.com/Digital-Shane/guide-tidy/internal/core"
	"github.com/Digital-Shane/guide-tidy/internal/fetch"
	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/log"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/Digital-Shane/guide-tidy/internal/scrape"
	"github.com/Digital-Shane/guide-tidy/internal/store"
	"github.com/google/go-cmp/cmp"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 5, 6, 23, 30, 0, 0, time.FixedZone("UTC+8", 8*3600))
	tests := []struct {
		name    string
		value   string
		want    time.Time
		wantErr bool
	}{
		{name: "empty is today UTC", value: "", want: time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)},
		{name: "explicit", value: "2024-12-31", want: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{name: "bad format", value: "31/12/2024", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseDate(tc.value, now)
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseDate(%q) error = %v, wantErr %v", tc.value, err, tc.wantErr)
			}
			if !tc.wantErr && !got.Equal(tc.want) {
				t.Errorf("parseDate(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestRenderGrabSummary(t *testing.T) {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	results := []core.GrabResult{
		{
			Job:      core.GrabJob{Site: "astro.com.my", Channel: provider.Channel{SiteID: "395", Name: "Lifetime"}, Date: date},
			Programs: make([]guide.Program, 12),
		},
		{
			Job: core.GrabJob{Site: "singtel.com", Channel: provider.Channel{SiteID: "5", XMLTVID: "Ch5.sg"}, Date: date},
			Err: &provider.ProviderError{Provider: "singtel", Code: provider.CodeNotFound},
		},
		{
			Job: core.GrabJob{Site: "nowplayer.now.com", Channel: provider.Channel{SiteID: "096"}, Date: date},
			Err: errors.New("boom"),
		},
	}

	out := renderGrabSummary(results)
	for _, want := range []string{"Lifetime", "12", "ok", "Ch5.sg", "NOT_FOUND", "boom", "2024-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTable_PadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, nil)
	if !strings.Contains(out, "only") || strings.Count(out, "\n") < 4 {
		t.Errorf("renderTable() = \n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("renderTable() without headers should be empty")
	}
}

func TestNewSearcher(t *testing.T) {
	cfg := config.DefaultConfig()
	s, err := newSearcher(cfg)
	if err != nil || s != nil {
		t.Errorf("newSearcher() with no backend = %v, %v; want nil, nil", s, err)
	}

	cfg.Search.Provider = config.SearchTMDB
	if _, err := newSearcher(cfg); !errors.Is(err, errMissingAPIKey) {
		t.Errorf("newSearcher() without key error = %v, want errMissingAPIKey", err)
	}

	cfg.Search.Provider = config.SearchOMDB
	cfg.Search.OMDBAPIKey = "key"
	s, err = newSearcher(cfg)
	if err != nil {
		t.Fatalf("newSearcher() error = %v", err)
	}
	if s.Name() != "omdb" {
		t.Errorf("newSearcher().Name() = %q, want omdb", s.Name())
	}
}

func TestPrintProviders(t *testing.T) {
	registry, err := newRegistry(config.DefaultConfig())
	if err != nil {
		t.Fatalf("newRegistry() error = %v", err)
	}
	if err := registry.Disable("singtel"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	printProviders(&buf, registry)
	out := buf.String()

	astro := strings.Index(out, "astro.com.my")
	now := strings.Index(out, "nowplayer.now.com")
	singtel := strings.Index(out, "singtel.com")
	if astro < 0 || now < 0 || singtel < 0 {
		t.Fatalf("providers table missing a site:\n%s", out)
	}
	if !(astro < now && now < singtel) {
		t.Errorf("providers not in priority order:\n%s", out)
	}
	if !strings.Contains(out, "no") {
		t.Errorf("disabled provider not marked:\n%s", out)
	}
}

func TestPrintConfig_MasksKeys(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Search.TMDBAPIKey = "abcdef123456"
	cfg.Search.OMDBAPIKey = "abc"

	var buf bytes.Buffer
	if err := printConfig(&buf, cfg); err != nil {
		t.Fatalf("printConfig() error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "abcdef") || strings.Contains(out, "\"abc\"") {
		t.Errorf("printConfig() leaked a key:\n%s", out)
	}
	if !strings.Contains(out, "****3456") {
		t.Errorf("printConfig() missing masked key:\n%s", out)
	}
	if cfg.Search.TMDBAPIKey != "abcdef123456" {
		t.Error("printConfig() modified the config")
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var buf bytes.Buffer
	if err := initConfig(&buf, path); err != nil {
		t.Fatalf("initConfig() error = %v", err)
	}
	t.Setenv("TMDB_API_KEY", "")
	t.Setenv("TMDBKEY", "")
	t.Setenv("OMDB_API_KEY", "")
	t.Setenv("TVDB_API_KEY", "")
	t.Setenv("GUIDE_TIDY_REDIS_URL", "")
	loaded, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if diff := cmp.Diff(config.DefaultConfig(), loaded); diff != "" {
		t.Errorf("written config mismatch (-want +got):\n%s", diff)
	}

	home := t.TempDir()
	t.Setenv("HOME", home)
	buf.Reset()
	if err := initConfig(&buf, ""); err != nil {
		t.Fatalf("initConfig() to default path error = %v", err)
	}
	if want := filepath.Join(home, ".guide-tidy", "config.toml"); !strings.Contains(buf.String(), want) {
		t.Errorf("initConfig() = %q, want mention of %s", buf.String(), want)
	}
}

type pageGetter map[string]string

func (g pageGetter) Get(_ context.Context, req fetch.Request) ([]byte, error) {
	body, ok := g[req.URL]
	if !ok {
		return nil, &fetch.StatusError{URL: req.URL, StatusCode: 404}
	}
	return []byte(body), nil
}

func channelRegistry(t *testing.T) *provider.Registry {
	t.Helper()
	r := provider.NewRegistry()
	d := &provider.Descriptor{
		Name:   "test",
		Site:   "test.example",
		URL:    func(provider.Channel, time.Time, time.Time) string { return "" },
		Decode: func(json.RawMessage) (provider.Item, error) { return provider.Item{}, nil },
		ChannelList: &scrape.Source{
			URL:          "channels://list",
			ItemSelector: "li",
			IDSelector:   ".id",
			NameSelector: ".name",
			IDTrimPrefix: "CH",
		},
	}
	if err := r.Register(d, 1); err != nil {
		t.Fatal(err)
	}
	return r
}

const channelPage = `<ul>
<li><span class="id">CH101</span><span class="name">Now  Jelli</span></li>
<li><span class="id">CH102</span><span class="name">Now Drama</span></li>
</ul>`

func TestRunChannels(t *testing.T) {
	r := channelRegistry(t)
	get := pageGetter{"channels://list": channelPage}

	var buf bytes.Buffer
	if err := runChannels(context.Background(), &buf, r, get, "test", "", ""); err != nil {
		t.Fatalf("runChannels() error = %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "101") || !strings.Contains(out, "Now Jelli") {
		t.Errorf("channel table = \n%s", out)
	}

	path := filepath.Join(t.TempDir(), "test.yaml")
	buf.Reset()
	if err := runChannels(context.Background(), &buf, r, get, "test.example", "en", path); err != nil {
		t.Fatalf("runChannels() to file error = %v", err)
	}
	got, err := config.LoadChannels(path)
	if err != nil {
		t.Fatalf("LoadChannels() error = %v", err)
	}
	want := []provider.Channel{
		{Site: "test.example", SiteID: "101", Name: "Now Jelli", Lang: "en"},
		{Site: "test.example", SiteID: "102", Name: "Now Drama", Lang: "en"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("written channels mismatch (-want +got):\n%s", diff)
	}
}

func TestRunChannels_Errors(t *testing.T) {
	r := channelRegistry(t)
	ctx := context.Background()
	var buf bytes.Buffer

	if err := runChannels(ctx, &buf, r, pageGetter{}, "missing", "", ""); err == nil {
		t.Error("runChannels() with unknown provider error = nil")
	}

	err := runChannels(ctx, &buf, r, pageGetter{}, "test", "", "")
	var pe *provider.ProviderError
	if !errors.As(err, &pe) || pe.Code != provider.CodeNotFound {
		t.Errorf("runChannels() with missing page error = %v, want NOT_FOUND", err)
	}

	bare := provider.NewRegistry()
	if err := bare.Register(&provider.Descriptor{
		Name:   "bare",
		Site:   "bare.example",
		URL:    func(provider.Channel, time.Time, time.Time) string { return "" },
		Decode: func(json.RawMessage) (provider.Item, error) { return provider.Item{}, nil },
	}, 1); err != nil {
		t.Fatal(err)
	}
	if err := runChannels(ctx, &buf, bare, pageGetter{}, "bare", "", ""); err == nil {
		t.Error("runChannels() without channel list error = nil")
	}
}

func TestRunShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	programs := []guide.Program{
		{Channel: "Seven.test", Title: "Morning News", Start: day.Add(8 * time.Hour), Stop: day.Add(9 * time.Hour), Categories: []string{"News"}},
		{Channel: "Seven.test", Title: "Tomorrow", Start: day.Add(30 * time.Hour), Stop: day.Add(31 * time.Hour)},
		{Channel: "Eight.test", Title: "Other", Start: day.Add(8 * time.Hour), Stop: day.Add(9 * time.Hour)},
	}
	if _, err := db.SavePrograms(context.Background(), programs); err != nil {
		t.Fatalf("SavePrograms() error = %v", err)
	}
	db.Close()

	var buf bytes.Buffer
	if err := runShow(context.Background(), &buf, path, "Seven.test", day); err != nil {
		t.Fatalf("runShow() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Morning News") || strings.Contains(out, "Tomorrow") || strings.Contains(out, "Other") {
		t.Errorf("runShow() = \n%s", out)
	}

	buf.Reset()
	if err := runShow(context.Background(), &buf, path, "", day); err != nil {
		t.Fatalf("runShow() without channel error = %v", err)
	}
	if out := buf.String(); strings.Index(out, "Eight.test") > strings.Index(out, "Seven.test") {
		t.Errorf("channel table not sorted:\n%s", out)
	}

	buf.Reset()
	if err := runShow(context.Background(), &buf, path, "Nine.test", day); err != nil {
		t.Fatalf("runShow() error = %v", err)
	}
	if !strings.Contains(buf.String(), "No programs for Nine.test on 2024-01-01") {
		t.Errorf("runShow() empty = %q", buf.String())
	}
}

func TestPrintSessions(t *testing.T) {
	var buf bytes.Buffer
	printSessions(&buf, nil)
	if !strings.Contains(buf.String(), "No grab sessions") {
		t.Errorf("printSessions(nil) = %q", buf.String())
	}

	buf.Reset()
	printSessions(&buf, []*log.LogSession{{Metadata: log.SessionMetadata{
		CommandArgs:   []string{"grab", "--days", "2"},
		Timestamp:     time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC),
		TotalOps:      8,
		FailedOps:     1,
		TotalPrograms: 112,
	}}})
	for _, want := range []string{"grab --days 2", "8", "1", "112"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("sessions table missing %q:\n%s", want, buf.String())
		}
	}
}

func TestRunGrab_MissingChannelFile(t *testing.T) {
	opts := &grabOptions{channelsFile: filepath.Join(t.TempDir(), "absent.yaml"), instant: true}
	err := runGrab(context.Background(), &bytes.Buffer{}, config.DefaultConfig(), opts, nil)
	if err == nil || !strings.Contains(err.Error(), "channel file") {
		t.Errorf("runGrab() error = %v, want channel file error", err)
	}
}

func TestRunGrab_BadDate(t *testing.T) {
	opts := &grabOptions{channelsFile: "unused.yaml", date: "tomorrow"}
	if err := runGrab(context.Background(), &bytes.Buffer{}, nil, opts, nil); err == nil {
		t.Error("runGrab() with bad date error = nil")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"grab", "channels", "providers", "config", "show", "sessions"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("root command missing %q, have %v", want, names)
		}
	}
}
