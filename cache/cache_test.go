package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexlabs/apex-go/sdkerrors"
)

func newTestCache(t *testing.T, maxSize int) *Cache[string, string] {
	t.Helper()

	c, err := New[string, string](maxSize)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, -1, -100} {
		_, err := New[string, string](size)
		require.Error(t, err)
		assert.True(t, sdkerrors.IsKind(err, sdkerrors.KindConfiguration))
	}
}

func TestCache_SetAndGet(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100)

	c.Set("key1", "value1", time.Minute)

	value, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "value1", value)
}

func TestCache_Get_Miss(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100)

	value, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Empty(t, value)

	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_Get_Expired(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100)

	c.Set("key1", "value1", 30*time.Millisecond)

	_, ok := c.Get("key1")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get("key1")
	assert.False(t, ok)

	// The expired entry stays until a sweep removes it.
	assert.Equal(t, 1, c.Len())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_Set_Overwrite(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100)

	c.Set("key1", "old", time.Minute)
	c.Set("key1", "new", time.Minute)

	value, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "new", value)
	assert.Equal(t, 1, c.Len())

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Sets)
	assert.Equal(t, int64(0), stats.Evictions)
}

func TestCache_Set_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 2)

	c.Set("key1", "v1", time.Minute)
	c.Set("key2", "v2", time.Minute)
	c.Set("key1", "v1b", time.Minute)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(0), c.Stats().Evictions)

	_, ok := c.Get("key2")
	assert.True(t, ok)
}

func TestCache_Set_EvictsOldest(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 2)

	c.Set("key1", "v1", time.Minute)
	time.Sleep(5 * time.Millisecond)
	c.Set("key2", "v2", time.Minute)
	time.Sleep(5 * time.Millisecond)
	c.Set("key3", "v3", time.Minute)

	_, ok := c.Get("key1")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.Get("key2")
	assert.True(t, ok)
	_, ok = c.Get("key3")
	assert.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Entries)
}

func TestCache_Set_EvictsExpiredFirst(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 2)

	c.Set("shortlived", "v1", 20*time.Millisecond)
	c.Set("longlived", "v2", time.Minute)

	time.Sleep(40 * time.Millisecond)

	c.Set("key3", "v3", time.Minute)

	// The expired entry made room, so the unexpired older entry survives.
	_, ok := c.Get("longlived")
	assert.True(t, ok)
	_, ok = c.Get("key3")
	assert.True(t, ok)

	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_CapacityInvariant(t *testing.T) {
	t.Parallel()

	const maxSize = 10
	c := newTestCache(t, maxSize)

	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("key%d", i), "value", time.Minute)
		assert.LessOrEqual(t, c.Len(), maxSize)
	}

	stats := c.Stats()
	assert.Equal(t, maxSize, stats.Entries)
	assert.Equal(t, int64(90), stats.Evictions)
}

func TestCache_Remove(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100)

	c.Set("key1", "value1", time.Minute)

	value, ok := c.Remove("key1")
	require.True(t, ok)
	assert.Equal(t, "value1", value)
	assert.Equal(t, 0, c.Len())

	_, ok = c.Remove("key1")
	assert.False(t, ok)
}

func TestCache_Remove_ExpiredEntryStillReturned(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100)

	c.Set("key1", "value1", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	value, ok := c.Remove("key1")
	assert.True(t, ok)
	assert.Equal(t, "value1", value)
}

func TestCache_Clear_PreservesCounters(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100)

	c.Set("key1", "v1", time.Minute)
	c.Set("key2", "v2", time.Minute)
	c.Get("key1")
	c.Get("absent")

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.True(t, c.IsEmpty())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Sets)
	assert.Equal(t, 0, stats.Entries)
}

func TestCache_CleanupExpired(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100)

	c.Set("short1", "v", 20*time.Millisecond)
	c.Set("short2", "v", 20*time.Millisecond)
	c.Set("long", "v", time.Minute)

	time.Sleep(40 * time.Millisecond)

	removed := c.CleanupExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(2), c.Stats().Evictions)

	// Nothing left to remove.
	assert.Equal(t, 0, c.CleanupExpired())
}

func TestStats_HitRate(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, 100)

	assert.Equal(t, 0.0, c.Stats().HitRate())

	c.Set("key1", "value1", time.Minute)
	for i := 0; i < 8; i++ {
		c.Get("key1")
	}
	c.Get("absent1")
	c.Get("absent2")

	assert.InDelta(t, 80.0, c.Stats().HitRate(), 0.001)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	const maxSize = 50
	c := newTestCache(t, maxSize)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key%d", i%60)
				c.Set(key, "value", time.Minute)
				c.Get(key)
				if i%10 == 0 {
					c.Remove(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), maxSize)

	stats := c.Stats()
	assert.Equal(t, stats.Entries, c.Len())
	assert.Equal(t, int64(1000), stats.Sets)
}
