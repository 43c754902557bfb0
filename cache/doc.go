// Package cache provides bounded TTL caching for chain query results.
//
// The package has two layers. Cache is a generic, size-bounded TTL store
// with hit/miss/eviction accounting. ChainCache composes three Cache tiers
// (balances, transaction statuses, blocks) behind a chain-scoped facade,
// runs a background sweep for expired entries, and can optionally be backed
// by Redis instead of process memory.
//
// Expired entries are evicted lazily: a lookup that finds an expired entry
// reports a miss but leaves the entry in place for the next sweep or for
// capacity eviction. When an insert would exceed the configured capacity,
// expired entries are evicted first and the oldest entry only if that is
// not enough.
//
// Loader layers request coalescing on top of a Cache so that concurrent
// lookups for a missing key trigger a single upstream fetch.
package cache
