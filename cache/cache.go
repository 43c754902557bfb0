package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/apexlabs/apex-go/sdkerrors"
)

// entry is a stored value together with its insertion time and lifetime.
type entry[V any] struct {
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

// expired reports whether the entry's lifetime has elapsed at now.
func (e entry[V]) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// Cache is a size-bounded TTL store safe for concurrent use. Lookups never
// remove expired entries; they are reclaimed by CleanupExpired or when an
// insert needs room. Each entry carries its own TTL, so tiers with different
// lifetimes can share one instance.
type Cache[K comparable, V any] struct {
	maxSize int

	mu    sync.RWMutex
	items map[K]entry[V]

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

// New creates a cache holding at most maxSize entries.
func New[K comparable, V any](maxSize int) (*Cache[K, V], error) {
	if maxSize <= 0 {
		return nil, sdkerrors.Configuration("cache max size must be positive, got %d", maxSize)
	}
	return &Cache[K, V]{
		maxSize: maxSize,
		items:   make(map[K]entry[V]),
	}, nil
}

// Get returns the value for key if it is present and not expired. An expired
// entry counts as a miss and stays in the map until the next sweep.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key with the given TTL, overwriting any previous
// entry. When the cache is full and key is new, expired entries are evicted
// first; if none were expired, the oldest entry makes room.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	now := time.Now()

	c.mu.Lock()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictLocked(now)
	}
	c.items[key] = entry[V]{value: value, insertedAt: now, ttl: ttl}
	c.mu.Unlock()

	c.sets.Add(1)
}

// evictLocked frees room for one insertion. Expired entries go first; if the
// cache is still full afterwards, the entry with the oldest insertion time is
// dropped. Caller must hold the write lock.
func (c *Cache[K, V]) evictLocked(now time.Time) {
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
			c.evictions.Add(1)
		}
	}
	if len(c.items) < c.maxSize {
		return
	}

	var (
		oldestKey  K
		oldestTime time.Time
		found      bool
	)
	for k, e := range c.items {
		if !found || e.insertedAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.insertedAt
			found = true
		}
	}
	if found {
		delete(c.items, oldestKey)
		c.evictions.Add(1)
	}
}

// Remove deletes key and returns the value that was stored, expired or not.
func (c *Cache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	e, ok := c.items[key]
	if ok {
		delete(c.items, key)
	}
	c.mu.Unlock()

	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Clear drops all entries. Hit, miss, set, and eviction counters survive so
// that long-running rate statistics are not lost.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.items = make(map[K]entry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones that have
// not been swept yet.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// IsEmpty reports whether the cache holds no entries.
func (c *Cache[K, V]) IsEmpty() bool {
	return c.Len() == 0
}

// CleanupExpired removes every expired entry in one pass and returns how many
// were removed. Each removal counts as an eviction.
func (c *Cache[K, V]) CleanupExpired() int {
	now := time.Now()
	removed := 0

	c.mu.Lock()
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
	}
	return removed
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.RLock()
	entries := len(c.items)
	c.mu.RUnlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
	}
}
