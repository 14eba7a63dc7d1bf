// Package retry wraps operations with bounded exponential-backoff retry.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults applied when an Options field is left zero.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 10 * time.Second
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// Options configures Do.
type Options struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)

	// ShouldRetry overrides the default classification (see Retryable).
	ShouldRetry func(err error) bool
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = Retryable
	}
	return o
}

// Backoff returns the delay to wait after the given 1-based failed attempt:
// min(InitialDelay * 2^(attempt-1), MaxDelay). No jitter is applied.
func Backoff(opts Options, attempt int) time.Duration {
	b := newBackOff(opts.withDefaults())
	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// newBackOff builds the deterministic doubling schedule used by Do.
func newBackOff(opts Options) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.InitialDelay
	b.MaxInterval = opts.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Retryable reports whether err is worth another attempt. Client errors
// (HTTP 4xx) and context cancellation are final; everything else is retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		if code >= 400 && code < 500 {
			return false
		}
	}
	return true
}

// Do invokes fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned unchanged.
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	attempt := 0
	operation := func() (T, error) {
		attempt++
		result, err := fn(ctx)
		if err != nil && !opts.ShouldRetry(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}
	notify := func(err error, delay time.Duration) {
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err, delay)
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(opts), uint64(opts.MaxAttempts-1)), ctx)
	result, err := backoff.RetryNotifyWithData(operation, b, notify)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
