package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexlabs/apex-go/config"
	"github.com/apexlabs/apex-go/sdkerrors"
)

func fastRetryConfig(maxRetries int) *config.RetryConfig {
	noJitter := false
	return &config.RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: config.Duration(time.Millisecond),
		MaxBackoff:     config.Duration(10 * time.Millisecond),
		Multiplier:     2.0,
		Jitter:         &noJitter,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), fastRetryConfig(3), func() error {
		attempts++
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()

	terminal := sdkerrors.Validation("invalid address %q", "0xzz")

	attempts := 0
	err := Do(context.Background(), fastRetryConfig(3), func() error {
		attempts++
		return terminal
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Same(t, terminal, err, "terminal error must be returned unchanged")
}

func TestDo_RetryableExhaustsBudget(t *testing.T) {
	t.Parallel()

	terminal := sdkerrors.Connection("endpoint unreachable")

	attempts := 0
	err := Do(context.Background(), fastRetryConfig(3), func() error {
		attempts++
		return terminal
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 4, attempts, "attempt 0 plus three retries")
	assert.Same(t, terminal, err)
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), fastRetryConfig(5), func() error {
		attempts++
		if attempts < 3 {
			return sdkerrors.Connection("flaky endpoint")
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ContextCanceledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, fastRetryConfig(3), func() error {
		attempts++
		return nil
	}, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	noJitter := false
	cfg := &config.RetryConfig{
		MaxRetries:     3,
		InitialBackoff: config.Duration(time.Minute),
		MaxBackoff:     config.Duration(time.Minute),
		Multiplier:     2.0,
		Jitter:         &noJitter,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	start := time.Now()
	err := Do(ctx, cfg, func() error {
		attempts++
		return sdkerrors.Connection("down")
	}, nil)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second, "cancellation must cut the backoff sleep short")
}

func TestDo_ShouldRetryOverride(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), fastRetryConfig(3), func() error {
		attempts++
		return errors.New("plain error")
	}, &Options{
		ShouldRetry: func(error) bool { return true },
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
}

func TestDo_OnRetryCallback(t *testing.T) {
	t.Parallel()

	var gotAttempts []int
	var gotBackoffs []time.Duration

	err := Do(context.Background(), fastRetryConfig(2), func() error {
		return sdkerrors.Connection("down")
	}, &Options{
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			gotAttempts = append(gotAttempts, attempt)
			gotBackoffs = append(gotBackoffs, backoff)
			assert.Error(t, err)
		},
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, gotAttempts)
	require.Len(t, gotBackoffs, 2)
	assert.Equal(t, time.Millisecond, gotBackoffs[0])
	assert.Equal(t, 2*time.Millisecond, gotBackoffs[1])
}

func TestDoWithResult(t *testing.T) {
	t.Parallel()

	attempts := 0
	balance, err := DoWithResult(context.Background(), fastRetryConfig(3), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", sdkerrors.Connection("flaky")
		}
		return "1000", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "1000", balance)
	assert.Equal(t, 2, attempts)
}

func TestDoWithResult_ErrorReturnsZeroValue(t *testing.T) {
	t.Parallel()

	balance, err := DoWithResult(context.Background(), fastRetryConfig(1), func() (string, error) {
		return "partial", sdkerrors.Connection("down")
	}, nil)

	require.Error(t, err)
	assert.Empty(t, balance)
}

func TestBackoff_Progression(t *testing.T) {
	t.Parallel()

	initial := 100 * time.Millisecond
	max := 30 * time.Second

	assert.Equal(t, 100*time.Millisecond, Backoff(0, initial, max, 2.0, false))
	assert.Equal(t, 200*time.Millisecond, Backoff(1, initial, max, 2.0, false))
	assert.Equal(t, 400*time.Millisecond, Backoff(2, initial, max, 2.0, false))
	assert.Equal(t, 800*time.Millisecond, Backoff(3, initial, max, 2.0, false))
}

func TestBackoff_CappedAtMax(t *testing.T) {
	t.Parallel()

	got := Backoff(10, time.Second, 5*time.Second, 2.0, false)
	assert.Equal(t, 5*time.Second, got)
}

func TestBackoff_JitterBounds(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	for i := 0; i < 200; i++ {
		got := Backoff(0, base, time.Minute, 2.0, true)
		assert.GreaterOrEqual(t, got, 85*time.Millisecond)
		assert.Less(t, got, 115*time.Millisecond)
	}
}

func TestDo_NilConfigUsesDefaults(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), nil, func() error {
		attempts++
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_WrappedContextErrorNotRetried(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), fastRetryConfig(3), func() error {
		attempts++
		return sdkerrors.Wrap(sdkerrors.KindConnection, context.Canceled, "call aborted")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "context cancellation never retries even under a retryable kind")
}