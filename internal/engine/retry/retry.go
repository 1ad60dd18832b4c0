package retry

import (
	"context"
	"fmt"
	"time"
)

// Backoff selects how the delay grows between attempts.
type Backoff int

const (
	// Exponential doubles the delay after every failed attempt, capped at MaxDelay.
	Exponential Backoff = iota
	// Linear grows the delay by InitialDelay per attempt, capped at MaxDelay.
	Linear
)

// Options configures a retry loop.
type Options struct {
	MaxRetries   int           // retries after the first attempt; 0 means try once
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Backoff      Backoff
	OnRetry      func(attempt int, err error) // called before each sleep
	IsRetryable  func(error) bool             // defaults to Retryable
}

// DefaultOptions provides sensible defaults for flaky HTTP calls.
var DefaultOptions = Options{
	MaxRetries:   3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
	Backoff:      Exponential,
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// retry budget is exhausted. Non-retryable errors propagate immediately
// without consuming a retry slot. On exhaustion the last error is returned,
// wrapped with the attempt count.
func Do[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T

	classify := opts.IsRetryable
	if classify == nil {
		classify = Retryable
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries+1; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !classify(err) {
			return zero, err
		}
		if attempt > opts.MaxRetries {
			break
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(Delay(attempt, opts)):
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", opts.MaxRetries+1, lastErr)
}

// DoLinear is Do with linear backoff forced on.
func DoLinear[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts Options) (T, error) {
	opts.Backoff = Linear
	return Do(ctx, fn, opts)
}

// Delay computes the sleep before retrying after the given failed attempt
// (1-based). Exponential: min(initial * 2^(attempt-1), max). Linear:
// min(initial * attempt, max).
func Delay(attempt int, opts Options) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d time.Duration
	switch opts.Backoff {
	case Linear:
		d = opts.InitialDelay * time.Duration(attempt)
	default:
		d = opts.InitialDelay << (attempt - 1)
	}

	if opts.MaxDelay > 0 && d > opts.MaxDelay {
		d = opts.MaxDelay
	}
	if d < 0 {
		// Shift overflow on absurd attempt counts.
		d = opts.MaxDelay
	}
	return d
}
