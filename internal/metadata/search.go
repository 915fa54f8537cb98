package metadata

import (
	"context"
	"errors"
	"fmt"
)

// Kind selects the catalog a search runs against.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// Candidate is one search hit. PosterPath is either a path relative to the
// backend's image base or an absolute URL; an empty value means no poster.
type Candidate struct {
	Name       string
	PosterPath string
	Popularity float64
}

// Capabilities describes how a search backend's results should be read.
type Capabilities struct {
	// SingleTopResult is set for backends that answer a title query with one
	// authoritative match rather than a ranked list.
	SingleTopResult bool
	// ImageBaseURL prefixes relative poster paths.
	ImageBaseURL string
}

// Searcher is the external metadata search service.
type Searcher interface {
	Name() string
	Capabilities() Capabilities
	Search(ctx context.Context, query string, kind Kind) ([]Candidate, error)
}

// Error codes shared by the search backends.
const (
	CodeAuthFailed     = "AUTH_FAILED"
	CodeRateLimited    = "RATE_LIMITED"
	CodeUnavailable    = "UNAVAILABLE"
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnknown        = "UNKNOWN"
)

// SearchError represents a classified failure from a search backend.
type SearchError struct {
	Backend    string
	Code       string
	Message    string
	Retry      bool
	RetryAfter int // Seconds to wait before retry
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Backend, e.Message)
}

// NotFound reports whether err is a SearchError with CodeNotFound.
func NotFound(err error) bool {
	var se *SearchError
	return errors.As(err, &se) && se.Code == CodeNotFound
}

// Await runs call and returns its result, or ctx.Err() once ctx is done.
// It is for client libraries that take no context: the abandoned call keeps
// running until the client returns and its result is discarded.
func Await[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
