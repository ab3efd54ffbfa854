// Package retry runs an operation with bounded, exponentially backed-off
// retries. Only errors matched by one of the configured matchers are retried;
// everything else is returned after the first attempt.
package retry

import (
	"context"
	"math"
	"time"

	"arena-indexer/internal/apperrors"
)

// Matcher decides whether an error is worth retrying.
type Matcher func(error) bool

// Options configures a retry run.
type Options struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	RetryableErrors   []Matcher

	// OnRetry is invoked before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultOptions returns 3 attempts, 1s initial delay, 30s cap, multiplier 2,
// retrying transient network failures and transient database failures.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		RetryableErrors:   []Matcher{apperrors.Retryable, apperrors.IsTransientCause},
	}
}

// sleep waits for d or until ctx is done. Tests replace it.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay returns the backoff before the retry that follows attempt (1-based).
func (o Options) Delay(attempt int) time.Duration {
	d := float64(o.InitialDelay) * math.Pow(o.BackoffMultiplier, float64(attempt-1))
	if d > float64(o.MaxDelay) || math.IsInf(d, 1) {
		return o.MaxDelay
	}
	return time.Duration(d)
}

func (o Options) retryable(err error) bool {
	for _, m := range o.RetryableErrors {
		if m(err) {
			return true
		}
	}
	return false
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.InitialDelay < 0 {
		o.InitialDelay = 0
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = def.MaxDelay
	}
	if o.BackoffMultiplier < 1 {
		o.BackoffMultiplier = def.BackoffMultiplier
	}
	if o.RetryableErrors == nil {
		o.RetryableErrors = def.RetryableErrors
	}
	return o
}

// Do invokes fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned unchanged.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a result.
func DoValue[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.normalized()

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= opts.MaxAttempts || !opts.retryable(err) {
			return zero, err
		}

		delay := opts.Delay(attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, err
		}
	}
}
