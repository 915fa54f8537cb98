// Package fetch downloads provider payloads over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent when a request carries none.
const DefaultUserAgent = "guide-tidy/1.0"

// maxBodySize caps a single response body.
const maxBodySize = 32 << 20

// Request describes one GET.
type Request struct {
	URL     string
	Headers map[string]string
	// Timeout bounds the whole request including retries. Zero uses the
	// client default.
	Timeout time.Duration
	// CacheTTL enables the response cache for this request when positive.
	CacheTTL time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Retry      RetryOptions
	// RequestsPerSecond limits the request rate across all callers. Zero
	// disables the limit.
	RequestsPerSecond float64
	// MaxInFlight bounds concurrent requests. Zero means 8.
	MaxInFlight int
	Cache       ResponseCache
	Observer    Observer
}

// Observer receives one call per network request.
type Observer interface {
	Fetched(host string, status int, d time.Duration, cached bool)
}

// Client is the transport collaborator shared by every provider. It is safe
// for concurrent use.
type Client struct {
	http     *http.Client
	timeout  time.Duration
	retry    RetryOptions
	limiter  *rate.Limiter
	sem      chan struct{}
	cache    ResponseCache
	observer Observer
	logger   zerolog.Logger
}

// New builds a Client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
		}}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	inFlight := opts.MaxInFlight
	if inFlight <= 0 {
		inFlight = 8
	}

	c := &Client{
		http:     httpClient,
		timeout:  timeout,
		retry:    opts.Retry,
		sem:      make(chan struct{}, inFlight),
		cache:    opts.Cache,
		observer: opts.Observer,
		logger:   log.WithComponent("fetch"),
	}
	if opts.RequestsPerSecond > 0 {
		burst := max(1, int(opts.RequestsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// Get downloads req.URL and returns the body. Network errors, 429 and 5xx
// responses are retried. Successful bodies are cached when req.CacheTTL is
// set and the client has a cache.
func (c *Client) Get(ctx context.Context, req Request) ([]byte, error) {
	useCache := c.cache != nil && req.CacheTTL > 0
	if useCache {
		if body, ok := c.cache.Get(ctx, req.URL); ok {
			c.observe(req.URL, http.StatusOK, 0, true)
			return body, nil
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := retry(ctx, c.retry, func(attempt int) ([]byte, error) {
		if attempt > 0 {
			c.logger.Debug().Str("url", req.URL).Int("attempt", attempt+1).Msg("retrying request")
		}
		return c.do(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	if useCache {
		c.cache.Set(ctx, req.URL, body, req.CacheTTL)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, req Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &permanentError{err: err}
		}
	}
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, &permanentError{err: ctx.Err()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &permanentError{err: err}
	}
	httpReq.Header.Set("User-Agent", DefaultUserAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &permanentError{err: ctx.Err()}
		}
		if isRetryable(err) {
			return nil, err
		}
		return nil, &permanentError{err: err}
	}
	defer resp.Body.Close()
	c.observe(req.URL, resp.StatusCode, time.Since(start), false)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		se := &StatusError{
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		if se.Temporary() {
			return nil, se
		}
		return nil, &permanentError{err: se}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) observe(rawURL string, status int, d time.Duration, cached bool) {
	if c.observer == nil {
		return
	}
	host := rawURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?"); i >= 0 {
		host = host[:i]
	}
	c.observer.Fetched(host, status, d, cached)
}

func isRetryable(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "eof")
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
