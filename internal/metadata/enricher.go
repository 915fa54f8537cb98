package metadata

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/log"
	"github.com/rs/zerolog"
)

// DefaultSearchTimeout bounds one enrichment lookup.
const DefaultSearchTimeout = 10 * time.Second

var nonAlnumSpace = regexp.MustCompile(`[^a-z0-9 ]`)

// Enricher picks poster artwork for a program title from a Searcher.
type Enricher struct {
	searcher Searcher
	caps     Capabilities
	timeout  time.Duration
	logger   zerolog.Logger
}

// EnricherOption configures an Enricher during construction.
type EnricherOption func(*Enricher)

// WithSearchTimeout bounds each lookup. Non-positive values keep the default.
func WithSearchTimeout(d time.Duration) EnricherOption {
	return func(e *Enricher) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEnricher wraps searcher. A nil searcher yields an Enricher that never
// finds anything.
func NewEnricher(searcher Searcher, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		searcher: searcher,
		timeout:  DefaultSearchTimeout,
		logger:   log.WithComponent("enricher"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if searcher != nil {
		e.caps = searcher.Capabilities()
	}
	return e
}

// Backend returns the name of the wrapped search backend.
func (e *Enricher) Backend() string {
	if e == nil || e.searcher == nil {
		return ""
	}
	return e.searcher.Name()
}

// Enrich searches for title and returns the fully qualified poster URL of the
// best candidate, or "" when there is none. Search failures and timeouts are
// logged and treated as an empty result.
func (e *Enricher) Enrich(ctx context.Context, title string, kind Kind) string {
	if e == nil || e.searcher == nil || strings.TrimSpace(title) == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	candidates, err := Await(ctx, func() ([]Candidate, error) {
		return e.searcher.Search(ctx, title, kind)
	})
	if err != nil {
		if !NotFound(err) {
			e.logger.Debug().Err(err).Str("title", title).Str("kind", string(kind)).Msg("metadata search failed")
		}
		return ""
	}
	best, ok := SelectCandidate(title, candidates, e.caps.SingleTopResult)
	if !ok {
		return ""
	}
	return PosterURL(e.caps.ImageBaseURL, best.PosterPath)
}

// SelectCandidate applies the selection rules in order:
//
//  1. the first candidate whose normalized name equals the normalized query;
//  2. the only candidate, for single top result backends;
//  3. the first candidate, replaced by the most popular one when it has no
//     poster and there are at least two candidates.
func SelectCandidate(query string, candidates []Candidate, singleTopResult bool) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	want := NormalizeName(query)
	for _, c := range candidates {
		if NormalizeName(c.Name) == want {
			return c, true
		}
	}

	if singleTopResult && len(candidates) == 1 {
		return candidates[0], true
	}

	best := candidates[0]
	if best.PosterPath == "" && len(candidates) >= 2 {
		ranked := slices.Clone(candidates)
		slices.SortStableFunc(ranked, func(a, b Candidate) int {
			switch {
			case a.Popularity > b.Popularity:
				return -1
			case a.Popularity < b.Popularity:
				return 1
			}
			return 0
		})
		best = ranked[0]
	}
	return best, true
}

// NormalizeName lowercases and trims s and drops everything outside
// [a-z0-9 ].
func NormalizeName(s string) string {
	return nonAlnumSpace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// PosterURL joins base and path. Absolute paths are returned as is.
func PosterURL(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
