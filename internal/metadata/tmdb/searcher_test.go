package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/metadata"
	"github.com/google/go-cmp/cmp"
	"github.com/ryanbradynd05/go-tmdb"
)

type mockClient struct {
	searchMovieFunc func(name string, options map[string]string) (*tmdb.MovieSearchResults, error)
	searchTvFunc    func(name string, options map[string]string) (*tmdb.TvSearchResults, error)
	calls           int
}

func (m *mockClient) SearchMovie(name string, options map[string]string) (*tmdb.MovieSearchResults, error) {
	m.calls++
	if m.searchMovieFunc != nil {
		return m.searchMovieFunc(name, options)
	}
	return nil, errors.New("not implemented")
}

func (m *mockClient) SearchTv(name string, options map[string]string) (*tmdb.TvSearchResults, error) {
	m.calls++
	if m.searchTvFunc != nil {
		return m.searchTvFunc(name, options)
	}
	return nil, errors.New("not implemented")
}

func tvResults(t *testing.T, body string) *tmdb.TvSearchResults {
	t.Helper()
	var res tmdb.TvSearchResults
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		t.Fatalf("decode tv results: %v", err)
	}
	return &res
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Options{APIKey: "  "}); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("New() error = %v, want %v", err, ErrInvalidAPIKey)
	}
	s, err := New(Options{APIKey: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.language != "en-US" {
		t.Errorf("default language = %q, want en-US", s.language)
	}
}

func TestSearchMovie(t *testing.T) {
	var gotOptions map[string]string
	client := &mockClient{
		searchMovieFunc: func(name string, options map[string]string) (*tmdb.MovieSearchResults, error) {
			gotOptions = options
			return &tmdb.MovieSearchResults{
				Results: []tmdb.MovieShort{
					{ID: 603, Title: "The Matrix", PosterPath: "/matrix.jpg", Popularity: 81.5},
					{ID: 604, Title: "The Matrix Reloaded", Popularity: 40},
				},
			}, nil
		},
	}
	s := NewWithClient(client, Options{Language: "en-GB"})

	got, err := s.Search(context.Background(), "The Matrix", metadata.KindMovie)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []metadata.Candidate{
		{Name: "The Matrix", PosterPath: "/matrix.jpg", Popularity: 81.5},
		{Name: "The Matrix Reloaded", Popularity: 40},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}
	if gotOptions["language"] != "en-GB" {
		t.Errorf("language option = %q, want en-GB", gotOptions["language"])
	}
}

func TestSearchSeries(t *testing.T) {
	client := &mockClient{
		searchTvFunc: func(name string, options map[string]string) (*tmdb.TvSearchResults, error) {
			return tvResults(t, `{"results":[{"id":1,"name":"Bluey","poster_path":"/bluey.jpg","popularity":120.25}]}`), nil
		},
	}
	s := NewWithClient(client, Options{})

	got, err := s.Search(context.Background(), "Bluey", metadata.KindSeries)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []metadata.Candidate{{Name: "Bluey", PosterPath: "/bluey.jpg", Popularity: 120.25}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchUsesCache(t *testing.T) {
	client := &mockClient{
		searchMovieFunc: func(name string, options map[string]string) (*tmdb.MovieSearchResults, error) {
			return &tmdb.MovieSearchResults{Results: []tmdb.MovieShort{{Title: name, PosterPath: "/p.jpg"}}}, nil
		},
	}
	dir := t.TempDir()
	s := NewWithClient(client, Options{CacheEnabled: true, CacheHours: 1, CacheDir: dir})

	for i := 0; i < 3; i++ {
		if _, err := s.Search(context.Background(), "Heat", metadata.KindMovie); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
	}
	if client.calls != 1 {
		t.Errorf("client calls = %d, want 1", client.calls)
	}
	if err := s.SaveCache(); err != nil {
		t.Fatalf("SaveCache() error = %v", err)
	}

	// A fresh searcher loads the persisted cache.
	reloaded := NewWithClient(client, Options{CacheEnabled: true, CacheHours: 1, CacheDir: dir})
	got, err := reloaded.Search(context.Background(), "heat", metadata.KindMovie)
	if err != nil {
		t.Fatalf("Search() after reload error = %v", err)
	}
	if client.calls != 1 {
		t.Errorf("client calls after reload = %d, want 1", client.calls)
	}
	if diff := cmp.Diff([]metadata.Candidate{{Name: "Heat", PosterPath: "/p.jpg"}}, got); diff != "" {
		t.Errorf("cached result mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		retry    bool
	}{
		{name: "auth", err: errors.New("401 Unauthorized"), wantCode: metadata.CodeAuthFailed},
		{name: "rate limit", err: errors.New("status 429"), wantCode: metadata.CodeRateLimited, retry: true},
		{name: "unavailable", err: errors.New("503 Service Unavailable"), wantCode: metadata.CodeUnavailable, retry: true},
		{name: "other", err: errors.New("boom"), wantCode: metadata.CodeUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &mockClient{
				searchMovieFunc: func(string, map[string]string) (*tmdb.MovieSearchResults, error) {
					return nil, tc.err
				},
			}
			_, err := NewWithClient(client, Options{}).Search(context.Background(), "X", metadata.KindMovie)
			var se *metadata.SearchError
			if !errors.As(err, &se) {
				t.Fatalf("Search() error = %v, want *metadata.SearchError", err)
			}
			if se.Code != tc.wantCode || se.Retry != tc.retry {
				t.Errorf("SearchError = {Code: %s, Retry: %v}, want {Code: %s, Retry: %v}", se.Code, se.Retry, tc.wantCode, tc.retry)
			}
		})
	}
}

func TestSearchRejectsBadInput(t *testing.T) {
	s := NewWithClient(&mockClient{}, Options{})
	if _, err := s.Search(context.Background(), " ", metadata.KindMovie); err == nil {
		t.Error("Search() with blank query returned nil error")
	}
	if _, err := s.Search(context.Background(), "X", metadata.Kind("episode")); err == nil {
		t.Error("Search() with unknown kind returned nil error")
	}
}

func TestSearchHonoursCancelledContext(t *testing.T) {
	client := &mockClient{}
	s := NewWithClient(client, Options{})
	s.rateLimiter = newRateLimiter(1, time.Hour)
	_ = s.rateLimiter.wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Search(ctx, "X", metadata.KindMovie); !errors.Is(err, context.Canceled) {
		t.Errorf("Search() error = %v, want context.Canceled", err)
	}
	if client.calls != 0 {
		t.Errorf("client called %d times after cancellation", client.calls)
	}
}

func TestCapabilities(t *testing.T) {
	s := NewWithClient(&mockClient{}, Options{})
	want := metadata.Capabilities{ImageBaseURL: "https://image.tmdb.org/t/p/w500"}
	if diff := cmp.Diff(want, s.Capabilities()); diff != "" {
		t.Errorf("Capabilities() mismatch (-want +got):\n%s", diff)
	}
	if s.Name() != "tmdb" {
		t.Errorf("Name() = %q, want tmdb", s.Name())
	}
}

// hangingClient blocks every search until release is closed.
type hangingClient struct {
	release chan struct{}
}

func (h *hangingClient) SearchMovie(string, map[string]string) (*tmdb.MovieSearchResults, error) {
	<-h.release
	return &tmdb.MovieSearchResults{}, nil
}

func (h *hangingClient) SearchTv(string, map[string]string) (*tmdb.TvSearchResults, error) {
	<-h.release
	return &tmdb.TvSearchResults{}, nil
}

func TestSearchReturnsWhenClientHangs(t *testing.T) {
	client := &hangingClient{release: make(chan struct{})}
	t.Cleanup(func() { close(client.release) })
	s := NewWithClient(client, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := s.Search(ctx, "Heat", metadata.KindMovie)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Search() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Search() took %v after the deadline", elapsed)
	}

	start = time.Now()
	icon := metadata.NewEnricher(s, metadata.WithSearchTimeout(50*time.Millisecond)).
		Enrich(context.Background(), "Heat", metadata.KindSeries)
	if icon != "" {
		t.Errorf("Enrich() = %q, want empty", icon)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Enrich() took %v with a hung client", elapsed)
	}
}
