// Package retryx is the retry policy shared by every outbound call.
package retryx

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy bounds how a call is retried. A zero Policy makes exactly one attempt.
type Policy struct {
	// MaxAttempts counts the first attempt. Values below 1 mean 1.
	MaxAttempts int
	// Backoff returns the delay after failed attempt n (1-based).
	Backoff func(n int) time.Duration
	// Retryable decides whether a failure is worth another attempt. Nil retries everything
	// except context cancellation.
	Retryable func(error) bool
	// OnRetry is called before each sleep.
	OnRetry func(n int, delay time.Duration, err error)
}

// Linear waits step*n after attempt n.
func Linear(step time.Duration) func(int) time.Duration {
	return func(n int) time.Duration { return step * time.Duration(n) }
}

// Exponential waits base*2^(n-1), capped at max when max > 0.
func Exponential(base, max time.Duration) func(int) time.Duration {
	return func(n int) time.Duration {
		d := base
		for i := 1; i < n; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

func Constant(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent stops retrying regardless of the policy's Retryable func.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// WithMaxAttempts returns a copy of p with a different bound.
func (p Policy) WithMaxAttempts(n int) Policy {
	p.MaxAttempts = n
	return p
}

func (p Policy) retryable(err error) bool {
	if IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempt bound
// is reached, or ctx is done. The last error from fn is returned unwrapped.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var (
		attempt int
		lastErr error
	)
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		var d time.Duration
		if p.Backoff != nil {
			d = p.Backoff(attempt)
		}
		if d < 0 {
			d = 0
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, d, lastErr)
		}
		return d, false
	})
	backoff := retry.WithMaxRetries(uint64(p.attempts()-1), next)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.retryable(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if pe, ok := err.(*permanentError); ok {
		return pe.err
	}
	return err
}
