package fetch

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryOptions configures how often a failed request is repeated. Retries
// counts the attempts after the first one.
type RetryOptions struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 300 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 5 * time.Second
	}
	return o
}

// permanentError stops the retry loop.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// retry runs fn until it succeeds, fails permanently, ctx ends, or the
// retries are used up. The last error is returned unwrapped.
func retry[T any](ctx context.Context, opts RetryOptions, fn func(attempt int) (T, error)) (T, error) {
	opts = opts.withDefaults()
	var zero T
	var lastErr error

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn(attempt)
		if err == nil {
			return v, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err
		if attempt == opts.Retries {
			break
		}

		timer := time.NewTimer(backoff(opts, attempt, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// backoff doubles the delay per attempt with up to 25% jitter. A server
// supplied Retry-After wins when it is longer.
func backoff(opts RetryOptions, attempt int, err error) time.Duration {
	d := opts.BaseDelay << attempt
	if d > opts.MaxDelay || d <= 0 {
		d = opts.MaxDelay
	}
	d += time.Duration(rand.Int63n(int64(d/4 + 1)))

	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > d {
		d = min(se.RetryAfter, opts.MaxDelay)
	}
	return d
}
