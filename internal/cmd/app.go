package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/config"
	"github.com/Digital-Shane/guide-tidy/internal/fetch"
	"github.com/Digital-Shane/guide-tidy/internal/log"
	"github.com/Digital-Shane/guide-tidy/internal/metadata"
	"github.com/Digital-Shane/guide-tidy/internal/metadata/omdb"
	"github.com/Digital-Shane/guide-tidy/internal/metadata/tmdb"
	"github.com/Digital-Shane/guide-tidy/internal/metadata/tvdb"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/Digital-Shane/guide-tidy/internal/provider/builtin"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// newRegistry returns a registry holding the built-in sites with the
// [providers] overrides of cfg applied.
func newRegistry(cfg *config.Config) (*provider.Registry, error) {
	r := provider.NewRegistry()
	if err := builtin.Load(r); err != nil {
		return nil, err
	}
	if err := cfg.ApplyProviders(r); err != nil {
		return nil, err
	}
	return r, nil
}

// newFetcher builds the shared HTTP client. The returned func releases the
// Redis connection when one is configured.
func newFetcher(ctx context.Context, cfg *config.Config, observer fetch.Observer) (*fetch.Client, func(), error) {
	opts := fetch.Options{
		Timeout:           cfg.Fetch.Timeout(),
		Retry:             fetch.RetryOptions{Retries: cfg.Fetch.Retries},
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		MaxInFlight:       cfg.Fetch.MaxInFlight,
		Observer:          observer,
	}

	release := func() {}
	if cfg.Fetch.RedisURL != "" {
		rc, err := fetch.NewRedisCache(ctx, cfg.Fetch.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		opts.Cache = rc
		release = func() { _ = rc.Close() }
	} else {
		opts.Cache = fetch.NewMemoryCache(10 * time.Minute)
	}
	return fetch.New(opts), release, nil
}

var errMissingAPIKey = errors.New("search backend has no API key")

// newSearcher builds the configured metadata backend. A nil searcher means
// enrichment is off.
func newSearcher(cfg *config.Config) (metadata.Searcher, error) {
	backend := strings.ToLower(cfg.Search.Provider)
	if backend == config.SearchNone {
		return nil, nil
	}
	key := cfg.SearchAPIKey()
	if key == "" {
		return nil, fmt.Errorf("%s: %w", backend, errMissingAPIKey)
	}

	switch backend {
	case config.SearchTMDB:
		opts := tmdb.Options{
			APIKey:       key,
			Language:     cfg.Search.TMDBLanguage,
			CacheEnabled: cfg.Search.CacheEnabled,
			CacheHours:   cfg.Search.CacheHours,
		}
		if dir, err := config.Dir(); err == nil {
			opts.CacheDir = filepath.Join(dir, "cache")
		}
		s, err := tmdb.New(opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SearchOMDB:
		s, err := omdb.New(key, nil)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SearchTVDB:
		s, err := tvdb.New(key)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown search provider %q", cfg.Search.Provider)
}

// saveSearchCache persists backend caches that support it.
func saveSearchCache(s metadata.Searcher) {
	saver, ok := s.(interface{ SaveCache() error })
	if !ok {
		return
	}
	if err := saver.SaveCache(); err != nil {
		logger := log.WithComponent("search")
		logger.Warn().Err(err).Msg("failed to save search cache")
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// parseDate reads a YYYY-MM-DD flag value. Empty means today in UTC.
func parseDate(value string, now time.Time) (time.Time, error) {
	if value == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", value, err)
	}
	return t, nil
}

func endSession(w io.Writer) {
	path, err := log.EndSession()
	switch {
	case err != nil:
		logger := log.WithComponent("session")
		logger.Warn().Err(err).Msg("failed to write session log")
	case path != "":
		fmt.Fprintf(w, "Session log: %s\n", path)
	}
}
