package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetry tells Blocking to call the function again.
var ErrRetry = errors.New("retry")

// ErrExhausted is returned by a Backoff limited with Limit.
var ErrExhausted = errors.New("retry: exhausted")

// Backoff is a (blocking) function returns when to retry.
//
// # Args
//
// - context: context. If context is canceled, Backoff should return ctx.Err().
//
// # Returns
//
// - error: nil if retry, non-nil if not.
type Backoff func(context.Context) error

// StaticBackoff returns a Backoff function that waits for a fixed interval.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff returns a Backoff function that waits with exponential backoff.
//
// # Args
//
// - initialInterval: initial interval.
//
// - r: multiplier of interval.
//
// # Returns
//
// Backoff function.
// For N-th call, it waits for `initialInterval * r^N` or context to be done.
func ExponentialBackoff(initialInterval time.Duration, r float64) Backoff {
	interval := initialInterval
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(float64(interval) * r)
			return nil
		}
	}
}

// Limit returns a Backoff which allows at most n retries.
//
// After that, it returns ErrExhausted.
func Limit(b Backoff, n int) Backoff {
	count := 0
	return func(ctx context.Context) error {
		if n <= count {
			return fmt.Errorf("%w: %d times", ErrExhausted, n)
		}
		count += 1
		return b(ctx)
	}
}

// Blocking calls f until it returns nil or non-retry error.
//
// # Args
//
// - ctx: context
//
// - b: backoff function, called before each retry.
//
// - f: function to be called. If f returns ErrRetry, Blocking calls f again after backoff.
//
// # Returns
//
// - T: last return value of f
//
// - error: error returned by f. If backoff stops retrying, its error is joined.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	for {
		last, err := f()
		if err == nil {
			return last, nil
		}
		if !errors.Is(err, ErrRetry) {
			return last, err
		}
		if berr := b(ctx); berr != nil {
			return last, errors.Join(berr, err)
		}
	}
}
