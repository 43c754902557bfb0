package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader layers request coalescing over a Cache. Concurrent lookups for the
// same missing key share a single upstream fetch instead of stampeding.
type Loader[K comparable, V any] struct {
	cache *Cache[K, V]
	group singleflight.Group
}

// NewLoader creates a loader backed by the given cache.
func NewLoader[K comparable, V any](c *Cache[K, V]) *Loader[K, V] {
	return &Loader[K, V]{cache: c}
}

// GetOrCompute returns the cached value for key, running fn to produce and
// cache it on a miss. Errors from fn reach every waiting caller and are
// never cached.
func (l *Loader[K, V]) GetOrCompute(ctx context.Context, key K, ttl time.Duration, fn func(context.Context) (V, error)) (V, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}

	res, err, _ := l.group.Do(fmt.Sprint(key), func() (interface{}, error) {
		// A winner may have cached the value while we queued.
		if v, ok := l.cache.Get(key); ok {
			return v, nil
		}
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		l.cache.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Invalidate removes key from the cache and forgets any in-flight fetch so
// the next lookup recomputes.
func (l *Loader[K, V]) Invalidate(key K) {
	l.cache.Remove(key)
	l.group.Forget(fmt.Sprint(key))
}
