// Package tmdb searches The Movie Database for poster artwork.
package tmdb

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/metadata"
	"github.com/patrickmn/go-cache"
	"github.com/ryanbradynd05/go-tmdb"
)

const (
	backendName  = "tmdb"
	imageBaseURL = "https://image.tmdb.org/t/p/w500"
)

// ErrInvalidAPIKey is returned by New when no API key is configured.
var ErrInvalidAPIKey = errors.New("tmdb: api key is required")

func init() {
	gob.Register([]metadata.Candidate{})
}

// Client is the subset of *tmdb.TMDb used for searching.
type Client interface {
	SearchMovie(name string, options map[string]string) (*tmdb.MovieSearchResults, error)
	SearchTv(name string, options map[string]string) (*tmdb.TvSearchResults, error)
}

// Options configures a Searcher.
type Options struct {
	APIKey       string
	Language     string
	CacheEnabled bool
	CacheHours   int
	// CacheDir holds the persisted cache. Empty disables persistence.
	CacheDir string
}

// Searcher implements metadata.Searcher against TMDB.
type Searcher struct {
	client      Client
	cache       *cache.Cache
	cacheFile   string
	language    string
	rateLimiter *rateLimiter
}

// New creates a Searcher backed by the real TMDB API.
func New(opts Options) (*Searcher, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrInvalidAPIKey
	}
	client := tmdb.Init(tmdb.Config{
		APIKey:   opts.APIKey,
		Proxies:  nil,
		UseProxy: false,
	})
	return NewWithClient(client, opts), nil
}

// NewWithClient creates a Searcher around an existing client.
func NewWithClient(client Client, opts Options) *Searcher {
	s := &Searcher{
		client:      client,
		language:    opts.Language,
		rateLimiter: newRateLimiter(38, 10*time.Second), // 38 requests per 10 seconds
	}
	if s.language == "" {
		s.language = "en-US"
	}

	if opts.CacheEnabled {
		hours := opts.CacheHours
		if hours <= 0 {
			hours = 168
		}
		s.cache = cache.New(time.Duration(hours)*time.Hour, 10*time.Minute)

		if opts.CacheDir != "" {
			if err := os.MkdirAll(opts.CacheDir, 0o755); err == nil {
				s.cacheFile = filepath.Join(opts.CacheDir, "tmdb_search.gob")
				if _, err := os.Stat(s.cacheFile); err == nil {
					_ = s.cache.LoadFile(s.cacheFile)
				}
			}
		}
	}
	return s
}

func (s *Searcher) Name() string { return backendName }

func (s *Searcher) Capabilities() metadata.Capabilities {
	return metadata.Capabilities{ImageBaseURL: imageBaseURL}
}

// Search returns movie or series candidates for query, served from the cache
// when possible.
func (s *Searcher) Search(ctx context.Context, query string, kind metadata.Kind) ([]metadata.Candidate, error) {
	if s.client == nil {
		return nil, fmt.Errorf("tmdb: searcher not configured")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &metadata.SearchError{
			Backend: backendName,
			Code:    metadata.CodeInvalidRequest,
			Message: "search requires a title",
		}
	}

	key := s.cacheKey(query, kind)
	if s.cache != nil {
		if cached, found := s.cache.Get(key); found {
			if candidates, ok := cached.([]metadata.Candidate); ok {
				return candidates, nil
			}
		}
	}

	if err := s.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}

	options := map[string]string{"language": s.language}
	var search func() ([]metadata.Candidate, error)
	switch kind {
	case metadata.KindMovie:
		search = func() ([]metadata.Candidate, error) { return s.searchMovie(query, options) }
	case metadata.KindSeries:
		search = func() ([]metadata.Candidate, error) { return s.searchSeries(query, options) }
	default:
		return nil, &metadata.SearchError{
			Backend: backendName,
			Code:    metadata.CodeInvalidRequest,
			Message: fmt.Sprintf("unsupported kind: %s", kind),
		}
	}

	// go-tmdb takes no context and its HTTP client has no timeout.
	candidates, err := metadata.Await(ctx, search)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, mapError(err)
	}

	if s.cache != nil {
		s.cache.Set(key, candidates, cache.DefaultExpiration)
	}
	return candidates, nil
}

func (s *Searcher) searchMovie(query string, options map[string]string) ([]metadata.Candidate, error) {
	results, err := s.client.SearchMovie(query, options)
	if err != nil || results == nil {
		return nil, err
	}
	candidates := make([]metadata.Candidate, 0, len(results.Results))
	for _, r := range results.Results {
		candidates = append(candidates, metadata.Candidate{
			Name:       r.Title,
			PosterPath: r.PosterPath,
			Popularity: float64(r.Popularity),
		})
	}
	return candidates, nil
}

func (s *Searcher) searchSeries(query string, options map[string]string) ([]metadata.Candidate, error) {
	results, err := s.client.SearchTv(query, options)
	if err != nil || results == nil {
		return nil, err
	}
	candidates := make([]metadata.Candidate, 0, len(results.Results))
	for _, r := range results.Results {
		candidates = append(candidates, metadata.Candidate{
			Name:       r.Name,
			PosterPath: r.PosterPath,
			Popularity: float64(r.Popularity),
		})
	}
	return candidates, nil
}

func (s *Searcher) cacheKey(query string, kind metadata.Kind) string {
	return fmt.Sprintf("%s|%s|%s", kind, s.language, strings.ToLower(query))
}

// SaveCache persists the cache to disk
func (s *Searcher) SaveCache() error {
	if s.cache != nil && s.cacheFile != "" {
		return s.cache.SaveFile(s.cacheFile)
	}
	return nil
}

// mapError maps TMDB client errors to search errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized"):
		return &metadata.SearchError{
			Backend: backendName,
			Code:    metadata.CodeAuthFailed,
			Message: "TMDB authentication failed: " + err.Error(),
		}
	case strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit"):
		return &metadata.SearchError{
			Backend:    backendName,
			Code:       metadata.CodeRateLimited,
			Message:    "TMDB rate limit exceeded",
			Retry:      true,
			RetryAfter: 10,
		}
	case strings.Contains(errStr, "503") || strings.Contains(errStr, "unavailable"):
		return &metadata.SearchError{
			Backend:    backendName,
			Code:       metadata.CodeUnavailable,
			Message:    "TMDB service unavailable",
			Retry:      true,
			RetryAfter: 30,
		}
	}

	return &metadata.SearchError{
		Backend: backendName,
		Code:    metadata.CodeUnknown,
		Message: "TMDB error: " + err.Error(),
	}
}
