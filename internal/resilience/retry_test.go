package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("service unavailable"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always 500"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "always 500")
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return errors.New("404 not found")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SingleAttemptDisablesRetry(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), fastRetry(1), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("flaky"), 502)
	})
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: time.Second}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(_ context.Context) error {
			calls++
			return NewTransientError(errors.New("busy"), 503)
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestDo_CustomShouldRetry(t *testing.T) {
	calls := 0
	cfg := fastRetry(4)
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "again" }

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("again")
		}
		return errors.New("stop")
	})
	require.EqualError(t, err, "stop")
	assert.Equal(t, 2, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		return NewTransientError(errors.New("x"), 429)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	calls := 0
	v, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("reset"), 0)
		}
		return "12.50", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "12.50", v)
}

func TestDoVal_ZeroOnFailure(t *testing.T) {
	v, err := DoVal(context.Background(), fastRetry(2), func(_ context.Context) (int, error) {
		return 42, errors.New("permanent")
	})
	require.Error(t, err)
	assert.Zero(t, v)
}

func TestApplyDefaults(t *testing.T) {
	cfg := applyDefaults(RetryConfig{JitterFraction: -1})
	def := DefaultRetryConfig()
	assert.Equal(t, def.MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, def.InitialBackoff, cfg.InitialBackoff)
	assert.Equal(t, def.MaxBackoff, cfg.MaxBackoff)
	assert.Equal(t, def.Multiplier, cfg.Multiplier)
	assert.Zero(t, cfg.JitterFraction)
}

func TestComputeBackoff_ExponentialAndCapped(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2.0}

	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, computeBackoff(2, cfg))
	assert.Equal(t, time.Second, computeBackoff(10, cfg))
}

func TestComputeBackoff_JitterStaysInBounds(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2.0, JitterFraction: 0.25}
	for i := 0; i < 50; i++ {
		d := computeBackoff(0, cfg)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(5, 100, 2000, 3.0, 0)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 2*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 3.0, cfg.Multiplier)
	assert.Zero(t, cfg.JitterFraction)

	def := FromRetryConfig(0, 0, 0, 0, -1)
	assert.Equal(t, DefaultRetryConfig().MaxAttempts, def.MaxAttempts)
	assert.Equal(t, DefaultRetryConfig().JitterFraction, def.JitterFraction)
}

func TestRetryLogger(t *testing.T) {
	fn := RetryLogger("fetch")
	require.NotNil(t, fn)
	assert.NotPanics(t, func() { fn(1, errors.New("boom")) })
}
