package config

import "time"

// Cache defaults.
const (
	// DefaultBalanceTTL is the TTL for cached balance queries.
	DefaultBalanceTTL = 30 * time.Second

	// DefaultTxStatusTTL is the TTL for cached transaction status lookups.
	DefaultTxStatusTTL = 5 * time.Minute

	// DefaultBlockTTL is the TTL for cached block data.
	DefaultBlockTTL = 1 * time.Hour

	// DefaultMetadataTTL is the TTL for cached chain metadata.
	DefaultMetadataTTL = 1 * time.Hour

	// DefaultMaxCacheSize is the per-tier entry bound for the general tiers.
	DefaultMaxCacheSize = 10000

	// DefaultCleanupInterval is the interval between background sweeps of
	// expired cache entries.
	DefaultCleanupInterval = 5 * time.Minute
)

// Pool defaults.
const (
	// DefaultMaxConnectionsPerEndpoint bounds concurrent use of one endpoint.
	DefaultMaxConnectionsPerEndpoint = 10

	// DefaultHealthCheckInterval is the interval between health check rounds.
	DefaultHealthCheckInterval = 30 * time.Second

	// DefaultHealthCheckTimeout bounds a single liveness probe.
	DefaultHealthCheckTimeout = 5 * time.Second

	// DefaultMaxFailures is the consecutive-failure count at which an
	// endpoint is marked unhealthy.
	DefaultMaxFailures = 3

	// DefaultUnhealthyRetryDelay is the cooldown after which an unhealthy
	// endpoint becomes eligible for optimistic selection again.
	DefaultUnhealthyRetryDelay = 60 * time.Second
)

// Retry defaults.
const (
	// DefaultMaxRetries is the number of retries after the initial attempt.
	DefaultMaxRetries = 3

	// DefaultInitialBackoff is the backoff before the first retry.
	DefaultInitialBackoff = 1 * time.Second

	// DefaultMaxBackoff caps the backoff between attempts.
	DefaultMaxBackoff = 30 * time.Second

	// DefaultMultiplier is the exponential backoff growth factor.
	DefaultMultiplier = 2.0
)

// Circuit breaker defaults.
const (
	// DefaultFailureThreshold is the consecutive-failure count that opens
	// the breaker.
	DefaultFailureThreshold = 5

	// DefaultSuccessThreshold is the half-open success count that closes
	// the breaker.
	DefaultSuccessThreshold = 2

	// DefaultBreakerTimeout is the open-state cooldown before a probe call
	// is allowed through.
	DefaultBreakerTimeout = 30 * time.Second
)

// Redis defaults.
const (
	// DefaultRedisPoolSize is the connection pool size for the Redis client.
	DefaultRedisPoolSize = 10

	// DefaultRedisConnectTimeout is the dial timeout for Redis connections.
	DefaultRedisConnectTimeout = 5 * time.Second

	// DefaultRedisReadTimeout is the read timeout for Redis operations.
	DefaultRedisReadTimeout = 3 * time.Second

	// DefaultRedisWriteTimeout is the write timeout for Redis operations.
	DefaultRedisWriteTimeout = 3 * time.Second

	// DefaultRedisKeyPrefix namespaces all SDK keys in a shared Redis.
	DefaultRedisKeyPrefix = "apex:cache:"
)

// Chain family probe methods used for liveness checks.
const (
	// DefaultEVMProbeMethod fetches the latest block number on EVM chains.
	DefaultEVMProbeMethod = "eth_blockNumber"

	// DefaultSubstrateProbeMethod fetches the latest header on Substrate chains.
	DefaultSubstrateProbeMethod = "chain_getHeader"
)
