package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/apexlabs/apex-go/config"
)

func TestLimiter_AllowWithinBurst(t *testing.T) {
	t.Parallel()

	l := New(10, 2)

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "third request exceeds the burst")
}

func TestLimiter_WaitThrottles(t *testing.T) {
	t.Parallel()

	l := New(100, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}

	// Two of the three waits had to pay the 10ms token interval.
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(1, 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.Error(t, err)
}

func TestLimiter_NilNeverBlocks(t *testing.T) {
	t.Parallel()

	var l *Limiter

	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Wait(context.Background()))
		require.True(t, l.Allow())
	}
	assert.Nil(t, l.Reserve())
	assert.Equal(t, rate.Inf, l.Limit())
	assert.Zero(t, l.Burst())
}

func TestNew_NonPositiveRPSDisables(t *testing.T) {
	t.Parallel()

	assert.Nil(t, New(0, 5))
	assert.Nil(t, New(-1, 5))
}

func TestNew_BurstDefaultsToRPS(t *testing.T) {
	t.Parallel()

	l := New(7, 0)
	assert.Equal(t, 7, l.Burst())
	assert.Equal(t, rate.Limit(7), l.Limit())
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FromConfig(nil))
	assert.Nil(t, FromConfig(&config.RateLimitConfig{Enabled: false, RPS: 10}))

	l := FromConfig(&config.RateLimitConfig{Enabled: true, RPS: 10, Burst: 3})
	require.NotNil(t, l)
	assert.Equal(t, rate.Limit(10), l.Limit())
	assert.Equal(t, 3, l.Burst())
}

func TestLimiter_Reserve(t *testing.T) {
	t.Parallel()

	l := New(10, 1)
	r1 := l.Reserve()
	require.NotNil(t, r1)
	assert.True(t, r1.OK())
	assert.Zero(t, r1.Delay())

	r2 := l.Reserve()
	require.NotNil(t, r2)
	assert.Greater(t, r2.Delay(), time.Duration(0))
	r2.Cancel()
}
