package errors

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failTimes(n int, err error) func() error {
	calls := 0
	return func() error {
		calls++
		if calls <= n {
			return err
		}
		return nil
	}
}

func TestRetry_SucceedsWithinBudget(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 5 * time.Millisecond

	calls := 0
	fn := func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}

	require.NoError(t, Retry(context.Background(), cfg, fn))
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUpAfterMaxRetries(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}
	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return errors.New("persistent")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 retries")
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestRetry_AbortsOnCancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 300 * time.Millisecond

	start := time.Now()
	err := Retry(ctx, cfg, func() error { return errors.New("nope") })
	elapsed := time.Since(start)

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, elapsed, 250*time.Millisecond)
}

func TestRetry_AbortsWhenDeadlineAlreadyPassed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	cfg := RetryConfig{MaxRetries: 10, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	err := Retry(ctx, cfg, func() error { return errors.New("nope") })

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetry_BackoffDoublesEachAttempt(t *testing.T) {
	var at []time.Time
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: 20 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	fn := failTimes(3, errors.New("nope"))
	_ = Retry(context.Background(), cfg, func() error {
		at = append(at, time.Now())
		return fn()
	})
	require.Len(t, at, 4)

	gaps := []time.Duration{at[1].Sub(at[0]), at[2].Sub(at[1]), at[3].Sub(at[2])}
	want := []int64{20, 40, 80}
	for i, g := range gaps {
		assert.InDelta(t, want[i], g.Milliseconds(), float64(want[i]))
	}
}

func TestRetry_BackoffNeverExceedsMaxDelay(t *testing.T) {
	var at []time.Time
	cfg := RetryConfig{MaxRetries: 10, InitialDelay: 20 * time.Millisecond, MaxDelay: 30 * time.Millisecond, Multiplier: 2}

	fn := failTimes(4, errors.New("nope"))
	_ = Retry(context.Background(), cfg, func() error {
		at = append(at, time.Now())
		return fn()
	})

	for i := 2; i < len(at); i++ {
		assert.LessOrEqual(t, at[i].Sub(at[i-1]).Milliseconds(), int64(50))
	}
}

func TestRetry_JitterVariesTheWait(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, Jitter: true}

	var gaps []time.Duration
	for i := 0; i < 3; i++ {
		var at []time.Time
		fn := failTimes(2, errors.New("nope"))
		_ = Retry(context.Background(), cfg, func() error {
			at = append(at, time.Now())
			return fn()
		})
		if len(at) >= 2 {
			gaps = append(gaps, at[1].Sub(at[0]))
		}
	}

	require.GreaterOrEqual(t, len(gaps), 2)
	for _, g := range gaps {
		assert.GreaterOrEqual(t, g.Milliseconds(), int64(25))
		assert.LessOrEqual(t, g.Milliseconds(), int64(110))
	}
}

func TestRetry_NoDelayWhenFirstAttemptSucceeds(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}

	start := time.Now()
	err := Retry(context.Background(), cfg, func() error { return nil })

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRetry_ManyConcurrentCallersAllSucceed(t *testing.T) {
	var successes atomic.Int32
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			cfg := RetryConfig{MaxRetries: 3, InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 2}
			fn := failTimes(1, errors.New("nope"))
			if Retry(context.Background(), cfg, fn) == nil {
				successes.Add(1)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.EqualValues(t, 10, successes.Load())
}

func TestRetryWithResult_ReturnsLastSuccessfulValue(t *testing.T) {
	calls := 0
	fn := func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("nope")
		}
		return 42, nil
	}

	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 5 * time.Millisecond

	result, err := RetryWithResult(context.Background(), cfg, fn)
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestRetryWithResult_ReturnsZeroValueOnExhaustion(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 1, InitialDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}
	result, err := RetryWithResult(context.Background(), cfg, func() (string, error) {
		return "partial", errors.New("nope")
	})

	require.Error(t, err)
	assert.Empty(t, result)
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialDelay)
	assert.Equal(t, 16*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.False(t, cfg.Jitter)
}
