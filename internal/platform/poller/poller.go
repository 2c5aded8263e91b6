// Package poller waits for a remote job to reach a terminal state under a
// bounded schedule.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// State is the result of one status check.
type State int

const (
	Pending State = iota
	Done
	Failed
)

// Outcome is how a Wait ended.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimedOut Outcome = "timed_out"
	OutcomeCanceled Outcome = "canceled"
)

// DefaultMaxWait applies when a Policy sets neither MaxAttempts nor MaxWait.
const DefaultMaxWait = 10 * time.Minute

type Policy struct {
	Interval    time.Duration
	MaxAttempts int
	MaxWait     time.Duration
}

var errPending = errors.New("poller: still pending")

// Wait calls check until it reports Done or Failed, the policy is exhausted
// (OutcomeTimedOut), or ctx is done (OutcomeCanceled). The first check runs
// immediately. A check error is passed to onErr and counts as Pending.
func (p Policy) Wait(ctx context.Context, check func(ctx context.Context) (State, error), onErr func(attempt int, err error)) (Outcome, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	var b retry.Backoff = retry.BackoffFunc(func() (time.Duration, bool) { return interval, false })
	if p.MaxAttempts > 0 {
		b = retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
	}
	maxWait := p.MaxWait
	if maxWait <= 0 && p.MaxAttempts <= 0 {
		maxWait = DefaultMaxWait
	}
	if maxWait > 0 {
		b = retry.WithMaxDuration(maxWait, b)
	}

	var (
		attempt int
		final   State
	)
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		st, err := check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if onErr != nil {
				onErr(attempt, err)
			}
			return retry.RetryableError(errPending)
		}
		if st == Pending {
			return retry.RetryableError(errPending)
		}
		final = st
		return nil
	})
	switch {
	case err == nil && final == Done:
		return OutcomeComplete, nil
	case err == nil:
		return OutcomeFailed, nil
	case errors.Is(err, errPending):
		return OutcomeTimedOut, nil
	case ctx.Err() != nil:
		return OutcomeCanceled, ctx.Err()
	default:
		return OutcomeCanceled, err
	}
}
