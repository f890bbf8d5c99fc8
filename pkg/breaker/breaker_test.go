package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tytandoteth/world-oracle-gateway/pkg/breaker"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

var errUpstream = errors.New("upstream down")

func failing(ctx context.Context) error { return errUpstream }
func passing(ctx context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	b := breaker.NewWithClock("oracle", 3, time.Minute, clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, failing, nil); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}

	if got := b.State().State; got != breaker.StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", got)
	}

	// Open breaker must reject without touching the primary.
	primaryCalled := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		primaryCalled = true
		return nil
	}, nil)
	if !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if primaryCalled {
		t.Error("primary must not be invoked while open")
	}
}

func TestBreaker_FallbackInvokedWhileOpen(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	b := breaker.NewWithClock("oracle", 1, time.Minute, clk)
	ctx := context.Background()

	b.Execute(ctx, failing, nil)

	fallbackCalled := false
	err := b.Execute(ctx, passing, func(ctx context.Context, cause error) error {
		fallbackCalled = true
		if !errors.Is(cause, breaker.ErrOpen) {
			t.Errorf("fallback cause should be ErrOpen, got %v", cause)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("fallback result should be returned, got %v", err)
	}
	if !fallbackCalled {
		t.Error("fallback must run while breaker is open")
	}
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	b := breaker.NewWithClock("oracle", 1, time.Minute, clk)
	ctx := context.Background()

	b.Execute(ctx, failing, nil)
	if got := b.State().State; got != breaker.StateOpen {
		t.Fatalf("expected open, got %s", got)
	}

	clk.Advance(time.Minute + time.Second)

	primaryCalled := false
	err := b.Execute(ctx, func(ctx context.Context) error {
		primaryCalled = true
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("probe should succeed, got %v", err)
	}
	if !primaryCalled {
		t.Fatal("primary must be invoked once the reset window elapses")
	}

	st := b.State()
	if st.State != breaker.StateClosed {
		t.Errorf("expected closed after successful probe, got %s", st.State)
	}
	if st.FailureCount != 0 {
		t.Errorf("failure count should reset on success, got %d", st.FailureCount)
	}
}

func TestBreaker_HalfOpenProbeReopens(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	b := breaker.NewWithClock("oracle", 1, time.Minute, clk)
	ctx := context.Background()

	b.Execute(ctx, failing, nil)
	clk.Advance(time.Minute + time.Second)

	if err := b.Execute(ctx, failing, nil); !errors.Is(err, errUpstream) {
		t.Fatalf("expected upstream error from probe, got %v", err)
	}
	if got := b.State().State; got != breaker.StateOpen {
		t.Errorf("failed probe must reopen the breaker, got %s", got)
	}

	// Window restarts from the probe failure.
	clk.Advance(30 * time.Second)
	if err := b.Execute(ctx, passing, nil); !errors.Is(err, breaker.ErrOpen) {
		t.Errorf("expected ErrOpen inside restarted window, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	b := breaker.NewWithClock("oracle", 3, time.Minute, clk)
	ctx := context.Background()

	b.Execute(ctx, failing, nil)
	b.Execute(ctx, failing, nil)
	b.Execute(ctx, passing, nil)

	st := b.State()
	if st.FailureCount != 0 {
		t.Errorf("expected failure count 0 after success, got %d", st.FailureCount)
	}
	if st.State != breaker.StateClosed {
		t.Errorf("expected closed, got %s", st.State)
	}
}

func TestBreaker_IndependentInstances(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	a := breaker.NewWithClock("oracle", 1, time.Minute, clk)
	c := breaker.NewWithClock("health", 1, time.Minute, clk)
	ctx := context.Background()

	a.Execute(ctx, failing, nil)

	if got := a.State().State; got != breaker.StateOpen {
		t.Fatalf("expected oracle breaker open, got %s", got)
	}
	if got := c.State().State; got != breaker.StateClosed {
		t.Errorf("health breaker must stay closed, got %s", got)
	}
}
