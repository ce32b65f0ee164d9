package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is the sentinel cause attached to a HistorianError when a
// circuit breaker is refusing calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is one of a CircuitBreaker's three phases.
type BreakerState int

const (
	// BreakerClosed lets every call through; failures just accumulate.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects every call until resetTimeout has elapsed.
	BreakerOpen
	// BreakerHalfOpen lets exactly one probe call through to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips open after a run of consecutive failures against a
// flaky dependency (an embedding backend, say) and stays open for
// resetTimeout before allowing a single probe call through.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.Mutex
	state       BreakerState
	failStreak  int
	openedAt    time.Time
}

// CircuitBreakerOption customizes a CircuitBreaker built by NewCircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures overrides the default 5-failure trip threshold.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(b *CircuitBreaker) { b.maxFailures = n }
}

// WithResetTimeout overrides the default 30s open-state cooldown.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(b *CircuitBreaker) { b.resetTimeout = d }
}

// NewCircuitBreaker builds a breaker identified by name, for logging and
// metrics labeling when several breakers guard different dependencies.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	b := &CircuitBreaker{
		name:         name,
		maxFailures:  5,
		resetTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker's label.
func (b *CircuitBreaker) Name() string { return b.name }

// Failures returns the current consecutive-failure streak.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failStreak
}

// State reports the breaker's current phase, resolving an expired open
// cooldown to half-open as a side effect of observation.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolve()
}

// resolve returns the effective state given elapsed time, without mutating
// b.state — callers that act on a half-open resolution record that
// transition themselves via RecordSuccess/RecordFailure. Caller must hold mu.
func (b *CircuitBreaker) resolve() BreakerState {
	if b.state == BreakerOpen && time.Since(b.openedAt) > b.resetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Allow reports whether a call should proceed: always in closed or
// half-open phase, never while open and still cooling down.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolve() != BreakerOpen
}

// RecordSuccess closes the breaker and resets its failure streak.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failStreak = 0
	b.state = BreakerClosed
}

// RecordFailure bumps the failure streak and trips the breaker open once
// the streak reaches maxFailures.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failStreak++
	if b.failStreak >= b.maxFailures {
		b.state = BreakerOpen
		b.openedAt = time.Now()
	}
}

// Execute runs fn through the breaker, returning ErrCircuitOpen instead of
// calling fn while the breaker is open.
func (b *CircuitBreaker) Execute(fn func() error) error {
	_, err := CircuitExecuteWithResult(b, func() (struct{}, error) {
		return struct{}{}, fn()
	}, func() (struct{}, error) {
		return struct{}{}, ErrCircuitOpen
	})
	return err
}

// ExecuteWithResult runs fn through the breaker, falling back to fallback
// while the breaker is open instead of calling fn.
func (b *CircuitBreaker) ExecuteWithResult(fn func() (string, error), fallback func() (string, error)) (string, error) {
	return CircuitExecuteWithResult(b, fn, fallback)
}

// CircuitExecuteWithResult is the shared, type-generic core of
// Execute/ExecuteWithResult: in the open phase it calls fallback without
// touching fn; in the half-open phase it lets exactly one fn call probe
// the dependency (callers arriving while that probe runs get fallback) and
// re-opens on failure; in the closed phase it calls fn and records the outcome.
func CircuitExecuteWithResult[T any](b *CircuitBreaker, fn func() (T, error), fallback func() (T, error)) (T, error) {
	b.mu.Lock()
	phase := b.resolve()
	if phase == BreakerOpen || (phase == BreakerHalfOpen && b.state == BreakerHalfOpen) {
		b.mu.Unlock()
		return fallback()
	}
	b.state = phase // commit an open->half-open resolution before the probe
	b.mu.Unlock()

	result, err := fn()
	if err != nil {
		b.RecordFailure()
		return result, err
	}
	b.RecordSuccess()
	return result, nil
}
