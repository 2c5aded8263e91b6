package retryx

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestDoStopsAtMaxAttempts(t *testing.T) {
	step := 5 * time.Millisecond
	var stamps []time.Time
	p := Policy{MaxAttempts: 3, Backoff: Linear(step)}
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		stamps = append(stamps, time.Now())
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err: want=%v got=%v", errBoom, err)
	}
	if len(stamps) != 3 {
		t.Fatalf("attempts: want=3 got=%d", len(stamps))
	}
	if gap := stamps[1].Sub(stamps[0]); gap < step {
		t.Fatalf("first gap %v shorter than %v", gap, step)
	}
	if gap := stamps[2].Sub(stamps[1]); gap < 2*step {
		t.Fatalf("second gap %v shorter than %v", gap, 2*step)
	}
}

func TestDoZeroPolicyIsSingleAttempt(t *testing.T) {
	calls := 0
	_ = Policy{}.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errBoom
	})
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestDoNonRetryableReturnsImmediately(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 5, Retryable: func(err error) bool { return !errors.Is(err, errBoom) }}
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errBoom
	})
	if calls != 1 || !errors.Is(err, errBoom) {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestDoPermanentIsUnwrapped(t *testing.T) {
	calls := 0
	err := Policy{MaxAttempts: 4}.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return Permanent(errBoom)
	})
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
	if err != errBoom {
		t.Fatalf("err: want bare errBoom got=%v", err)
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	var retries []int
	p := Policy{
		MaxAttempts: 4,
		Backoff:     Constant(time.Millisecond),
		OnRetry:     func(n int, _ time.Duration, _ error) { retries = append(retries, n) },
	}
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		if attempt < 3 {
			return errBoom
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Fatalf("OnRetry calls: got=%v", retries)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxAttempts: 10, Backoff: Constant(time.Hour)}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
		calls++
		return errBoom
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err: want canceled got=%v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestExponentialCaps(t *testing.T) {
	b := Exponential(time.Second, 5*time.Second)
	for n, want := range map[int]time.Duration{1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second, 4: 5 * time.Second, 9: 5 * time.Second} {
		if got := b(n); got != want {
			t.Fatalf("Exponential(%d): want=%v got=%v", n, want, got)
		}
	}
}
