package poller

import (
	"context"
	"errors"
	"testing"
	"time"
)

func sequence(states ...State) func(context.Context) (State, error) {
	i := 0
	return func(context.Context) (State, error) {
		if i >= len(states) {
			return states[len(states)-1], nil
		}
		s := states[i]
		i++
		return s, nil
	}
}

func TestWaitComplete(t *testing.T) {
	p := Policy{Interval: time.Millisecond, MaxAttempts: 5}
	out, err := p.Wait(context.Background(), sequence(Pending, Pending, Done), nil)
	if err != nil || out != OutcomeComplete {
		t.Fatalf("out=%q err=%v", out, err)
	}
}

func TestWaitFailedIsNotTimeout(t *testing.T) {
	p := Policy{Interval: time.Millisecond, MaxAttempts: 5}
	out, _ := p.Wait(context.Background(), sequence(Pending, Failed), nil)
	if out != OutcomeFailed {
		t.Fatalf("out: want=%q got=%q", OutcomeFailed, out)
	}
}

func TestWaitTimesOutAfterMaxAttempts(t *testing.T) {
	calls := 0
	check := func(context.Context) (State, error) {
		calls++
		return Pending, nil
	}
	out, err := Policy{Interval: time.Millisecond, MaxAttempts: 4}.Wait(context.Background(), check, nil)
	if err != nil || out != OutcomeTimedOut {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if calls != 4 {
		t.Fatalf("calls: want=4 got=%d", calls)
	}
}

func TestWaitTimesOutAfterMaxWait(t *testing.T) {
	start := time.Now()
	out, _ := Policy{Interval: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}.Wait(context.Background(), sequence(Pending), nil)
	if out != OutcomeTimedOut {
		t.Fatalf("out: want=%q got=%q", OutcomeTimedOut, out)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("max wait not enforced: %v", elapsed)
	}
}

func TestWaitCheckErrorsCountAsPending(t *testing.T) {
	var seen []int
	calls := 0
	check := func(context.Context) (State, error) {
		calls++
		if calls < 3 {
			return Pending, errors.New("502")
		}
		return Done, nil
	}
	out, err := Policy{Interval: time.Millisecond, MaxAttempts: 5}.Wait(context.Background(), check, func(n int, _ error) { seen = append(seen, n) })
	if err != nil || out != OutcomeComplete {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if len(seen) != 2 {
		t.Fatalf("onErr calls: want=2 got=%v", seen)
	}
}

func TestWaitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	out, err := Policy{Interval: time.Hour}.Wait(ctx, sequence(Pending), nil)
	if out != OutcomeCanceled || !errors.Is(err, context.Canceled) {
		t.Fatalf("out=%q err=%v", out, err)
	}
}
