package errors

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysFail() error { return errors.New("backend unavailable") }

// AC01: a streak of maxFailures failures trips the breaker open, and a
// subsequent call is rejected with ErrCircuitOpen rather than reaching fn.
func TestCircuitBreaker_TripsOpenAfterFailureStreak(t *testing.T) {
	b := NewCircuitBreaker("upstream", WithMaxFailures(3), WithResetTimeout(time.Second))

	for i := 0; i < 3; i++ {
		_ = b.Execute(alwaysFail)
	}
	require.Equal(t, BreakerOpen, b.State())

	reached := false
	err := b.Execute(func() error { reached = true; return nil })
	assert.False(t, reached, "fn must not run while the breaker is open")
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

// AC02: once resetTimeout elapses, a single probe call is let through; its
// success closes the breaker again.
func TestCircuitBreaker_ProbesAndClosesAfterCooldown(t *testing.T) {
	b := NewCircuitBreaker("upstream", WithMaxFailures(2), WithResetTimeout(40*time.Millisecond))

	_ = b.Execute(alwaysFail)
	_ = b.Execute(alwaysFail)
	require.Equal(t, BreakerOpen, b.State())

	time.Sleep(60 * time.Millisecond)

	probed := false
	err := b.Execute(func() error { probed = true; return nil })
	assert.NoError(t, err)
	assert.True(t, probed)
	assert.Equal(t, BreakerClosed, b.State())
}

// AC03: a probe call that fails during the cooldown window reopens the
// breaker rather than leaving it half-open indefinitely.
func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	b := NewCircuitBreaker("upstream", WithMaxFailures(2), WithResetTimeout(40*time.Millisecond))

	_ = b.Execute(alwaysFail)
	_ = b.Execute(alwaysFail)
	time.Sleep(60 * time.Millisecond)

	err := b.Execute(alwaysFail)
	assert.Error(t, err)
	assert.Equal(t, BreakerOpen, b.State())
}

// AC04: a success clears the failure streak before it reaches the trip
// threshold, so the breaker never opens.
func TestCircuitBreaker_SuccessClearsPartialStreak(t *testing.T) {
	b := NewCircuitBreaker("upstream", WithMaxFailures(5), WithResetTimeout(time.Second))

	for i := 0; i < 3; i++ {
		_ = b.Execute(alwaysFail)
	}
	require.Equal(t, 3, b.Failures())

	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, BreakerClosed, b.State())
	assert.Zero(t, b.Failures())
}

// AC05: ExecuteWithResult falls back instead of calling fn while open.
func TestCircuitBreaker_ExecuteWithResultUsesFallbackWhenOpen(t *testing.T) {
	b := NewCircuitBreaker("upstream", WithMaxFailures(1), WithResetTimeout(time.Second))
	_ = b.Execute(alwaysFail)

	primaryCalled := false
	result, err := b.ExecuteWithResult(
		func() (string, error) { primaryCalled = true; return "primary", nil },
		func() (string, error) { return "fallback", nil },
	)

	require.NoError(t, err)
	assert.False(t, primaryCalled)
	assert.Equal(t, "fallback", result)
}

// AC06: concurrent callers never race or panic, and every call resolves.
func TestCircuitBreaker_ConcurrentCallsAllResolve(t *testing.T) {
	b := NewCircuitBreaker("upstream", WithMaxFailures(10), WithResetTimeout(time.Second))

	var wg sync.WaitGroup
	var oks, fails atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := b.Execute(func() error {
				if i%2 == 0 {
					return nil
				}
				return alwaysFail()
			})
			if err == nil {
				oks.Add(1)
			} else {
				fails.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 20, oks.Load()+fails.Load())
}

func TestCircuitBreaker_Allow(t *testing.T) {
	t.Run("closed allows", func(t *testing.T) {
		b := NewCircuitBreaker("svc")
		assert.True(t, b.Allow())
	})

	t.Run("open rejects", func(t *testing.T) {
		b := NewCircuitBreaker("svc", WithMaxFailures(1), WithResetTimeout(time.Second))
		_ = b.Execute(alwaysFail)
		assert.False(t, b.Allow())
	})
}

func TestCircuitBreaker_RecordSuccessAndFailureDirectly(t *testing.T) {
	b := NewCircuitBreaker("svc", WithMaxFailures(3))

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, 2, b.Failures())
	assert.Equal(t, BreakerClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())

	b.RecordSuccess()
	assert.Zero(t, b.Failures())
	assert.Equal(t, BreakerClosed, b.State())
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	b := NewCircuitBreaker("orders")
	assert.Equal(t, "orders", b.Name())
	assert.Equal(t, 5, b.maxFailures)
	assert.Equal(t, 30*time.Second, b.resetTimeout)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestErrCircuitOpen_Message(t *testing.T) {
	assert.Equal(t, "circuit breaker is open", ErrCircuitOpen.Error())
}
