// Package omdb searches the Open Movie Database. A title query answers with
// one authoritative match.
package omdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/metadata"
	"github.com/Digital-Shane/omdb"
)

const backendName = "omdb"

// Searcher implements metadata.Searcher against OMDb.
type Searcher struct {
	client *omdb.Client
}

// New creates a Searcher. httpClient may be nil.
func New(apiKey string, httpClient *http.Client) (*Searcher, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("omdb: api key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Searcher{client: omdb.NewClient(apiKey, httpClient)}, nil
}

func (s *Searcher) Name() string { return backendName }

func (s *Searcher) Capabilities() metadata.Capabilities {
	return metadata.Capabilities{SingleTopResult: true}
}

// Search looks up a single title. Posters come back as absolute URLs.
func (s *Searcher) Search(ctx context.Context, query string, kind metadata.Kind) ([]metadata.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &metadata.SearchError{
			Backend: backendName,
			Code:    metadata.CodeInvalidRequest,
			Message: "search requires a title",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searchType := "movie"
	if kind == metadata.KindSeries {
		searchType = "series"
	}

	result, err := s.client.SearchByTitle(omdb.QueryData{
		Title:      query,
		SearchType: searchType,
		Plot:       "short",
	})
	if err != nil {
		return nil, mapError(err)
	}

	var title, poster string
	switch r := result.(type) {
	case omdb.MovieResult:
		title, poster = r.Title, r.Poster
	case *omdb.MovieResult:
		title, poster = r.Title, r.Poster
	case omdb.SeriesResult:
		title, poster = r.Title, r.Poster
	case *omdb.SeriesResult:
		title, poster = r.Title, r.Poster
	}
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}
	return []metadata.Candidate{candidate(title, poster)}, nil
}

func candidate(title, poster string) metadata.Candidate {
	poster = strings.TrimSpace(poster)
	if strings.EqualFold(poster, "N/A") {
		poster = ""
	}
	return metadata.Candidate{Name: title, PosterPath: poster}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "missing omdb api key"):
		return &metadata.SearchError{
			Backend: backendName,
			Code:    metadata.CodeAuthFailed,
			Message: "OMDb authentication failed: " + msg,
		}
	case strings.Contains(lower, "not found"):
		return &metadata.SearchError{Backend: backendName, Code: metadata.CodeNotFound, Message: msg}
	case strings.Contains(lower, "limit reached"), strings.Contains(lower, "too many requests"):
		return &metadata.SearchError{
			Backend:    backendName,
			Code:       metadata.CodeRateLimited,
			Message:    msg,
			Retry:      true,
			RetryAfter: 5,
		}
	default:
		return &metadata.SearchError{Backend: backendName, Code: metadata.CodeUnknown, Message: msg}
	}
}
