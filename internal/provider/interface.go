// Package provider describes the EPG sites guide-tidy can read. Each site is
// a Descriptor: configuration plus a few small functions, consumed by the
// shared assembly pipeline.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/fetch"
	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/metadata"
	"github.com/Digital-Shane/guide-tidy/internal/scrape"
)

// Channel is one channel of one site.
type Channel struct {
	Site    string
	SiteID  string
	XMLTVID string
	Name    string
	Lang    string
	// TimeZone overrides the descriptor location when set.
	TimeZone string
	// Correction overrides every descriptor correction when set, zero
	// included.
	Correction *time.Duration
}

// ID returns the identifier programs are filed under.
func (c Channel) ID() string {
	return guide.FirstNonEmpty(c.XMLTVID, c.SiteID)
}

// Item is a raw schedule slot. Raw keeps the provider JSON for the detail
// fetcher.
type Item struct {
	Key   string
	Start guide.StartRepr
	Span  guide.SpanRepr
	Raw   json.RawMessage
}

// Detail is the descriptive record for one item. The zero value is the
// fallback used when the detail lookup fails.
type Detail struct {
	Title       string
	SubTitle    string
	Description string
	Actors      []string
	Directors   []string
	Rating      *guide.Rating
	// Artwork is the provider's own image URL.
	Artwork    string
	Categories guide.CategoryInput
	Season     *int
	Episode    *int
	// SearchTitle is the metadata search query. Empty means the parsed title.
	SearchTitle string
	Genre       string
	// Episodic is "Y" or "N" when the provider reports it.
	Episodic string
}

// Getter is the transport used to load payloads and details.
type Getter interface {
	Get(ctx context.Context, req fetch.Request) ([]byte, error)
}

// DetailFetcher loads the Detail for an item.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, get Getter, item Item, ch Channel) (Detail, error)
}

// DetailFunc adapts a function to DetailFetcher.
type DetailFunc func(ctx context.Context, get Getter, item Item, ch Channel) (Detail, error)

func (f DetailFunc) FetchDetail(ctx context.Context, get Getter, item Item, ch Channel) (Detail, error) {
	return f(ctx, get, item, ch)
}

// Descriptor parameterizes the pipeline for one site.
type Descriptor struct {
	Name        string
	Site        string
	Description string
	Days        int

	Location           *time.Location
	Correction         time.Duration
	ChannelCorrections map[string]time.Duration

	// SchedulePath is the object path to the schedule inside the payload,
	// e.g. {"response", "schedule"}.
	SchedulePath []string
	Decode       func(raw json.RawMessage) (Item, error)

	Categories *guide.CategoryMapper
	Details    DetailFetcher
	// SearchKind picks the metadata catalog for an item. Nil or !ok skips
	// enrichment.
	SearchKind func(d Detail) (metadata.Kind, bool)
	// DropOnMissingDetail discards items whose detail lookup failed instead
	// of emitting them with empty descriptive fields.
	DropOnMissingDetail bool

	URL      func(ch Channel, date, now time.Time) string
	Headers  func(ch Channel) map[string]string
	Timeout  time.Duration
	CacheTTL time.Duration

	ChannelList *scrape.Source
}

// Validate reports missing required fields.
func (d *Descriptor) Validate() error {
	switch {
	case d == nil:
		return errors.New("nil descriptor")
	case d.Name == "":
		return errors.New("descriptor name is required")
	case d.Site == "":
		return fmt.Errorf("%s: site is required", d.Name)
	case d.URL == nil:
		return fmt.Errorf("%s: URL builder is required", d.Name)
	case d.Decode == nil:
		return fmt.Errorf("%s: item decoder is required", d.Name)
	}
	return nil
}

// TimePolicy returns the time settings for ch. Channel settings win over the
// per-channel table (keyed by site id or xmltv id), which wins over the
// descriptor default.
func (d *Descriptor) TimePolicy(ch Channel) guide.TimePolicy {
	policy := guide.TimePolicy{Location: d.Location, Correction: d.Correction}
	if ch.TimeZone != "" {
		if loc, err := time.LoadLocation(ch.TimeZone); err == nil {
			policy.Location = loc
		}
	}
	if c, ok := d.ChannelCorrections[ch.SiteID]; ok {
		policy.Correction = c
	} else if c, ok := d.ChannelCorrections[ch.XMLTVID]; ok && ch.XMLTVID != "" {
		policy.Correction = c
	}
	if ch.Correction != nil {
		policy.Correction = *ch.Correction
	}
	return policy
}

// Request builds the schedule request for ch on date.
func (d *Descriptor) Request(ch Channel, date, now time.Time) fetch.Request {
	req := fetch.Request{
		URL:      d.URL(ch, date, now),
		Timeout:  d.Timeout,
		CacheTTL: d.CacheTTL,
	}
	if d.Headers != nil {
		req.Headers = d.Headers(ch)
	}
	return req
}

// FetchDetail runs the detail fetcher. Descriptors without one produce an
// empty Detail.
func (d *Descriptor) FetchDetail(ctx context.Context, get Getter, item Item, ch Channel) (Detail, error) {
	if d.Details == nil {
		return Detail{}, nil
	}
	return d.Details.FetchDetail(ctx, get, item, ch)
}

// Error codes for ProviderError.
const (
	CodeAuthFailed     = "AUTH_FAILED"
	CodeRateLimited    = "RATE_LIMITED"
	CodeUnavailable    = "UNAVAILABLE"
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnknown        = "UNKNOWN"
)

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	Retry      bool
	RetryAfter int // Seconds to wait before retry
	Err        error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ClassifyError wraps a transport or decode error for provider name.
func ClassifyError(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: name, Code: CodeUnavailable, Message: name + ": request timed out", Retry: true, Err: err}
	}

	var se *fetch.StatusError
	if !errors.As(err, &se) {
		var syntax *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntax) || errors.As(err, &typeErr) {
			return &ProviderError{Provider: name, Code: CodeInvalidRequest, Message: name + ": malformed response: " + err.Error(), Err: err}
		}
		return &ProviderError{Provider: name, Code: CodeUnknown, Message: name + ": " + err.Error(), Err: err}
	}

	pe := &ProviderError{Provider: name, Message: fmt.Sprintf("%s: %s", name, se.Error()), Err: err}
	switch {
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		pe.Code = CodeAuthFailed
	case se.StatusCode == http.StatusNotFound:
		pe.Code = CodeNotFound
	case se.StatusCode == http.StatusTooManyRequests:
		pe.Code, pe.Retry = CodeRateLimited, true
		pe.RetryAfter = int(se.RetryAfter / time.Second)
	case se.StatusCode >= 500:
		pe.Code, pe.Retry = CodeUnavailable, true
	default:
		pe.Code = CodeUnknown
	}
	return pe
}
