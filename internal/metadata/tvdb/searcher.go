// Package tvdb searches TheTVDB.
package tvdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/metadata"
	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/operations"
	"github.com/dashotv/tvdb/openapi/models/shared"
)

const (
	backendName  = "tvdb"
	imageBaseURL = "https://artworks.thetvdb.com"
)

// Client captures the dashotv client method used for searching.
type Client interface {
	GetSearchResults(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error)
}

// Searcher implements metadata.Searcher against TVDB.
type Searcher struct {
	client Client
}

// New logs in with apiKey.
func New(apiKey string) (*Searcher, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("tvdb: api key is required")
	}
	client, err := tvdbapi.Login(apiKey)
	if err != nil {
		return nil, mapError(err)
	}
	return NewWithClient(client), nil
}

func NewWithClient(client Client) *Searcher {
	return &Searcher{client: client}
}

func (s *Searcher) Name() string { return backendName }

func (s *Searcher) Capabilities() metadata.Capabilities {
	return metadata.Capabilities{ImageBaseURL: imageBaseURL}
}

// Search returns the hits of the requested type in the order TVDB ranks
// them. TVDB reports no popularity.
func (s *Searcher) Search(ctx context.Context, query string, kind metadata.Kind) ([]metadata.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &metadata.SearchError{Backend: backendName, Code: metadata.CodeInvalidRequest, Message: "search requires a title"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searchType := string(kind)
	resp, err := metadata.Await(ctx, func() (*tvdbapi.GetSearchResultsResponse, error) {
		return s.client.GetSearchResults(operations.GetSearchResultsRequest{
			Query: &query,
			Type:  &searchType,
		})
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, mapError(err)
	}
	if resp == nil {
		return nil, nil
	}

	candidates := make([]metadata.Candidate, 0, len(resp.Data))
	for _, result := range resp.Data {
		if t := pointerToString(result.Type); t != "" && !strings.EqualFold(t, searchType) {
			continue
		}
		candidates = append(candidates, toCandidate(result))
	}
	return candidates, nil
}

func toCandidate(result shared.SearchResult) metadata.Candidate {
	return metadata.Candidate{
		Name:       guide.FirstNonEmpty(pointerToString(result.Name), pointerToString(result.NameTranslated), pointerToString(result.Title)),
		PosterPath: pointerToString(result.ImageURL),
	}
}

func pointerToString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "401"), strings.Contains(lower, "unauthorized"), strings.Contains(lower, "apikey"):
		return &metadata.SearchError{Backend: backendName, Code: metadata.CodeAuthFailed, Message: "TVDB authentication failed: " + msg}
	case strings.Contains(lower, "429"), strings.Contains(lower, "too many"):
		return &metadata.SearchError{Backend: backendName, Code: metadata.CodeRateLimited, Message: msg, Retry: true, RetryAfter: 5}
	case strings.Contains(lower, "404"), strings.Contains(lower, "not found"):
		return &metadata.SearchError{Backend: backendName, Code: metadata.CodeNotFound, Message: msg}
	case strings.Contains(lower, "503"), strings.Contains(lower, "unavailable"):
		return &metadata.SearchError{Backend: backendName, Code: metadata.CodeUnavailable, Message: msg, Retry: true, RetryAfter: 30}
	default:
		return &metadata.SearchError{Backend: backendName, Code: metadata.CodeUnknown, Message: msg}
	}
}
