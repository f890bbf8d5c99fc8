// Package breaker implements a three-state circuit breaker around calls to
// unreliable upstreams. Each named operation owns an independent instance;
// failures in one never open the breaker for another.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// ErrOpen signals that the breaker rejected the call without invoking the
// primary and no fallback was supplied. Callers must treat it as a
// fallback-triggering condition, not a fatal error.
var ErrOpen = errors.New("breaker: open")

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Breaker guards one named operation. Closed passes calls through; open
// rejects immediately until the reset window elapses; half-open lets a
// single probe through.
type Breaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	clock        Clock

	mu          sync.Mutex
	state       string
	failures    int
	lastFailure time.Time
	probing     bool
}

func New(name string, threshold int, resetTimeout time.Duration) *Breaker {
	return NewWithClock(name, threshold, resetTimeout, realClock{})
}

func NewWithClock(name string, threshold int, resetTimeout time.Duration, clock Clock) *Breaker {
	return &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        clock,
		state:        StateClosed,
	}
}

// Execute runs primary through the breaker. While the breaker is open and
// the reset window has not elapsed, fallback is invoked instead (or ErrOpen
// is returned when fallback is nil) and primary is never touched. Once the
// window elapses a single half-open probe is allowed: its success closes
// the breaker, its failure reopens it and restarts the window.
func (b *Breaker) Execute(ctx context.Context, primary func(ctx context.Context) error, fallback func(ctx context.Context, cause error) error) error {
	if err := b.admit(); err != nil {
		if fallback != nil {
			return fallback(ctx, err)
		}
		return err
	}

	err := primary(ctx)
	b.record(err)
	if err != nil && fallback != nil {
		return fallback(ctx, err)
	}
	return err
}

// admit decides whether a call may reach the primary.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.clock.Now().Sub(b.lastFailure) < b.resetTimeout {
			return ErrOpen
		}
		// Cooldown elapsed: allow exactly one probe.
		b.state = StateHalfOpen
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false

	if err == nil {
		b.failures = 0
		b.state = StateClosed
		return
	}

	b.failures++
	b.lastFailure = b.clock.Now()
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.state = StateOpen
	}
}

// State returns a point-in-time view for health reporting.
func (b *Breaker) State() models.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	var last int64
	if !b.lastFailure.IsZero() {
		last = b.lastFailure.UnixMilli()
	}
	return models.BreakerState{
		Name:            b.name,
		State:           b.state,
		FailureCount:    b.failures,
		LastFailureTime: last,
		Threshold:       b.threshold,
		ResetTimeoutMs:  b.resetTimeout.Milliseconds(),
	}
}
