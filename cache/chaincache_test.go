package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexlabs/apex-go/config"
)

func newTestChainCache(t *testing.T, cfg *config.CacheConfig) *ChainCache {
	t.Helper()

	c, err := NewChainCache("ethereum", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestChainCache_Defaults(t *testing.T) {
	t.Parallel()

	c := newTestChainCache(t, nil)

	ctx := context.Background()
	c.SetBalance(ctx, "0xabc", "1000")

	balance, ok := c.GetBalance(ctx, "0xabc")
	require.True(t, ok)
	assert.Equal(t, "1000", balance)
}

func TestChainCache_TiersAreIndependent(t *testing.T) {
	t.Parallel()

	c := newTestChainCache(t, config.DefaultCacheConfig())
	ctx := context.Background()

	c.SetBalance(ctx, "0xabc", "1000")
	c.SetTransactionStatus(ctx, "0xdeadbeef", "confirmed")
	c.SetBlock(ctx, 12345, `{"number":12345}`)

	// The same key in another tier does not collide.
	_, ok := c.GetTransactionStatus(ctx, "0xabc")
	assert.False(t, ok)

	balance, ok := c.GetBalance(ctx, "0xabc")
	require.True(t, ok)
	assert.Equal(t, "1000", balance)

	status, ok := c.GetTransactionStatus(ctx, "0xdeadbeef")
	require.True(t, ok)
	assert.Equal(t, "confirmed", status)

	block, ok := c.GetBlock(ctx, 12345)
	require.True(t, ok)
	assert.Equal(t, `{"number":12345}`, block)

	_, ok = c.GetBlock(ctx, 99999)
	assert.False(t, ok)
}

func TestChainCache_StatsPerTier(t *testing.T) {
	t.Parallel()

	c := newTestChainCache(t, config.DefaultCacheConfig())
	ctx := context.Background()

	c.SetBalance(ctx, "0xabc", "1000")
	c.GetBalance(ctx, "0xabc")
	c.GetBalance(ctx, "0xmissing")
	c.GetTransactionStatus(ctx, "0xmissing")

	stats := c.Stats()
	require.Len(t, stats, 3)
	require.Contains(t, stats, TierBalance)
	require.Contains(t, stats, TierTxStatus)
	require.Contains(t, stats, TierBlock)

	assert.Equal(t, int64(1), stats[TierBalance].Hits)
	assert.Equal(t, int64(1), stats[TierBalance].Misses)
	assert.Equal(t, int64(1), stats[TierBalance].Sets)
	assert.Equal(t, 1, stats[TierBalance].Entries)

	assert.Equal(t, int64(1), stats[TierTxStatus].Misses)
	assert.Equal(t, int64(0), stats[TierBlock].Hits)
}

func TestChainCache_BlockTierCapacity(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultCacheConfig()
	cfg.MaxCacheSize = 20 // block tier gets 2

	c := newTestChainCache(t, cfg)
	ctx := context.Background()

	c.SetBlock(ctx, 1, "b1")
	c.SetBlock(ctx, 2, "b2")
	c.SetBlock(ctx, 3, "b3")

	stats := c.Stats()
	assert.Equal(t, 2, stats[TierBlock].Entries)
	assert.Equal(t, int64(1), stats[TierBlock].Evictions)

	// The balance tier keeps the full capacity.
	for i := 0; i < 20; i++ {
		c.SetBalance(ctx, string(rune('a'+i)), "0")
	}
	assert.Equal(t, 20, c.Stats()[TierBalance].Entries)
}

func TestChainCache_BlockTierCapacityAtLeastOne(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultCacheConfig()
	cfg.MaxCacheSize = 5 // 5/10 rounds down, floor is 1

	c := newTestChainCache(t, cfg)
	ctx := context.Background()

	c.SetBlock(ctx, 1, "b1")

	block, ok := c.GetBlock(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, "b1", block)
}

func TestChainCache_ClearAll(t *testing.T) {
	t.Parallel()

	c := newTestChainCache(t, config.DefaultCacheConfig())
	ctx := context.Background()

	c.SetBalance(ctx, "0xabc", "1000")
	c.SetTransactionStatus(ctx, "0xdead", "pending")
	c.SetBlock(ctx, 7, "b7")

	c.ClearAll(ctx)

	_, ok := c.GetBalance(ctx, "0xabc")
	assert.False(t, ok)
	_, ok = c.GetTransactionStatus(ctx, "0xdead")
	assert.False(t, ok)
	_, ok = c.GetBlock(ctx, 7)
	assert.False(t, ok)

	// Counters survive the clear.
	stats := c.Stats()
	assert.Equal(t, int64(1), stats[TierBalance].Sets)
	assert.Equal(t, 0, stats[TierBalance].Entries)
}

func TestChainCache_CleanupExpired(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultCacheConfig()
	cfg.BalanceTTL = config.Duration(20 * time.Millisecond)
	cfg.TxStatusTTL = config.Duration(20 * time.Millisecond)
	cfg.BlockTTL = config.Duration(time.Minute)

	c := newTestChainCache(t, cfg)
	ctx := context.Background()

	c.SetBalance(ctx, "0xabc", "1000")
	c.SetTransactionStatus(ctx, "0xdead", "pending")
	c.SetBlock(ctx, 7, "b7")

	time.Sleep(40 * time.Millisecond)

	removed := c.CleanupExpired(ctx)
	assert.Equal(t, 2, removed)

	_, ok := c.GetBlock(ctx, 7)
	assert.True(t, ok)

	assert.Equal(t, 0, c.CleanupExpired(ctx))
}

func TestChainCache_BackgroundSweep(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultCacheConfig()
	cfg.BalanceTTL = config.Duration(10 * time.Millisecond)
	cfg.CleanupInterval = config.Duration(20 * time.Millisecond)

	c := newTestChainCache(t, cfg)
	ctx := context.Background()

	c.SetBalance(ctx, "0xabc", "1000")

	assert.Eventually(t, func() bool {
		return c.Stats()[TierBalance].Entries == 0
	}, time.Second, 10*time.Millisecond, "sweep should reclaim the expired entry")
}

func TestChainCache_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	c, err := NewChainCache("ethereum", config.DefaultCacheConfig())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
