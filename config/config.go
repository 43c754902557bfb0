// Package config provides configuration types, loading, and hot reload for
// the SDK.
package config

import (
	"github.com/apexlabs/apex-go/sdkerrors"
)

// Chain family constants.
const (
	// FamilyEVM marks an EVM-compatible chain (JSON-RPC eth_* surface).
	FamilyEVM = "evm"

	// FamilySubstrate marks a Substrate-based chain.
	FamilySubstrate = "substrate"
)

// Cache backend constants.
const (
	// CacheBackendMemory keeps all tiers in process memory.
	CacheBackendMemory = "memory"

	// CacheBackendRedis stores tiers in a shared Redis.
	CacheBackendRedis = "redis"
)

// Config is the root SDK configuration.
type Config struct {
	// Chains lists the chains the SDK can build clients for.
	Chains []ChainConfig `yaml:"chains" json:"chains"`

	// Cache configures the multi-tier query cache.
	Cache *CacheConfig `yaml:"cache,omitempty" json:"cache,omitempty"`

	// Pool configures the per-chain connection pool.
	Pool *PoolConfig `yaml:"pool,omitempty" json:"pool,omitempty"`

	// Retry configures the retry executor wrapping RPC calls.
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`

	// CircuitBreaker configures the per-endpoint circuit breakers.
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`

	// RateLimit configures the client-side request throttle.
	RateLimit *RateLimitConfig `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`

	// Logging configures structured logging.
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`

	// Tracing configures OpenTelemetry tracing.
	Tracing *TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}

// ChainConfig describes one chain and its RPC endpoints.
type ChainConfig struct {
	// Name is the unique chain identifier (e.g. "ethereum", "polkadot").
	Name string `yaml:"name" json:"name"`

	// Family is the chain family: "evm" or "substrate". Defaults to "evm".
	Family string `yaml:"family,omitempty" json:"family,omitempty"`

	// Endpoints is the list of RPC endpoint URLs (http, https, ws, wss).
	Endpoints []string `yaml:"endpoints" json:"endpoints"`

	// ProbeMethod overrides the liveness probe RPC method for this chain.
	ProbeMethod string `yaml:"probeMethod,omitempty" json:"probeMethod,omitempty"`
}

// GetFamily returns the effective chain family.
func (c *ChainConfig) GetFamily() string {
	if c == nil || c.Family == "" {
		return FamilyEVM
	}
	return c.Family
}

// GetProbeMethod returns the effective liveness probe method for the chain's
// family.
func (c *ChainConfig) GetProbeMethod() string {
	if c != nil && c.ProbeMethod != "" {
		return c.ProbeMethod
	}
	if c.GetFamily() == FamilySubstrate {
		return DefaultSubstrateProbeMethod
	}
	return DefaultEVMProbeMethod
}

// CacheConfig configures the multi-tier query cache.
type CacheConfig struct {
	// BalanceTTL is the TTL for balance entries (volatile, short).
	BalanceTTL Duration `yaml:"balanceTTL,omitempty" json:"balanceTTL,omitempty"`

	// TxStatusTTL is the TTL for transaction status entries.
	TxStatusTTL Duration `yaml:"txStatusTTL,omitempty" json:"txStatusTTL,omitempty"`

	// BlockTTL is the TTL for block data entries (immutable, long).
	BlockTTL Duration `yaml:"blockTTL,omitempty" json:"blockTTL,omitempty"`

	// MetadataTTL is the TTL for chain metadata entries.
	MetadataTTL Duration `yaml:"metadataTTL,omitempty" json:"metadataTTL,omitempty"`

	// MaxCacheSize bounds the balance and tx-status tiers; the block tier
	// uses a tenth of it.
	MaxCacheSize int `yaml:"maxCacheSize,omitempty" json:"maxCacheSize,omitempty"`

	// CleanupInterval is the period of the background expired-entry sweep.
	CleanupInterval Duration `yaml:"cleanupInterval,omitempty" json:"cleanupInterval,omitempty"`

	// Backend selects the tier store: "memory" (default) or "redis".
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"`

	// Redis contains Redis-specific configuration, required when
	// Backend is "redis".
	Redis *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// GetBalanceTTL returns the effective balance TTL.
func (c *CacheConfig) GetBalanceTTL() Duration {
	if c == nil || c.BalanceTTL <= 0 {
		return Duration(DefaultBalanceTTL)
	}
	return c.BalanceTTL
}

// GetTxStatusTTL returns the effective transaction status TTL.
func (c *CacheConfig) GetTxStatusTTL() Duration {
	if c == nil || c.TxStatusTTL <= 0 {
		return Duration(DefaultTxStatusTTL)
	}
	return c.TxStatusTTL
}

// GetBlockTTL returns the effective block data TTL.
func (c *CacheConfig) GetBlockTTL() Duration {
	if c == nil || c.BlockTTL <= 0 {
		return Duration(DefaultBlockTTL)
	}
	return c.BlockTTL
}

// GetMetadataTTL returns the effective metadata TTL.
func (c *CacheConfig) GetMetadataTTL() Duration {
	if c == nil || c.MetadataTTL <= 0 {
		return Duration(DefaultMetadataTTL)
	}
	return c.MetadataTTL
}

// GetMaxCacheSize returns the effective cache size bound.
func (c *CacheConfig) GetMaxCacheSize() int {
	if c == nil || c.MaxCacheSize <= 0 {
		return DefaultMaxCacheSize
	}
	return c.MaxCacheSize
}

// GetCleanupInterval returns the effective cleanup interval.
func (c *CacheConfig) GetCleanupInterval() Duration {
	if c == nil || c.CleanupInterval <= 0 {
		return Duration(DefaultCleanupInterval)
	}
	return c.CleanupInterval
}

// GetBackend returns the effective cache backend.
func (c *CacheConfig) GetBackend() string {
	if c == nil || c.Backend == "" {
		return CacheBackendMemory
	}
	return c.Backend
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		BalanceTTL:      Duration(DefaultBalanceTTL),
		TxStatusTTL:     Duration(DefaultTxStatusTTL),
		BlockTTL:        Duration(DefaultBlockTTL),
		MetadataTTL:     Duration(DefaultMetadataTTL),
		MaxCacheSize:    DefaultMaxCacheSize,
		CleanupInterval: Duration(DefaultCleanupInterval),
		Backend:         CacheBackendMemory,
	}
}

// RedisConfig contains Redis-specific cache configuration.
type RedisConfig struct {
	// URL is the Redis connection URL.
	// Format: redis://[user:password@]host:port[/db]
	URL string `yaml:"url" json:"url"`

	// PoolSize is the maximum number of connections in the Redis pool.
	PoolSize int `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`

	// ConnectTimeout is the timeout for establishing connections.
	ConnectTimeout Duration `yaml:"connectTimeout,omitempty" json:"connectTimeout,omitempty"`

	// ReadTimeout is the timeout for read operations.
	ReadTimeout Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`

	// WriteTimeout is the timeout for write operations.
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`

	// KeyPrefix is prepended to every key stored in Redis.
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`

	// TTLJitter is the maximum fraction of jitter applied to TTLs
	// (0.0 to 1.0), spreading expiry of entries written together.
	TTLJitter float64 `yaml:"ttlJitter,omitempty" json:"ttlJitter,omitempty"`
}

// GetPoolSize returns the effective Redis pool size.
func (r *RedisConfig) GetPoolSize() int {
	if r == nil || r.PoolSize <= 0 {
		return DefaultRedisPoolSize
	}
	return r.PoolSize
}

// GetConnectTimeout returns the effective Redis dial timeout.
func (r *RedisConfig) GetConnectTimeout() Duration {
	if r == nil || r.ConnectTimeout <= 0 {
		return Duration(DefaultRedisConnectTimeout)
	}
	return r.ConnectTimeout
}

// GetReadTimeout returns the effective Redis read timeout.
func (r *RedisConfig) GetReadTimeout() Duration {
	if r == nil || r.ReadTimeout <= 0 {
		return Duration(DefaultRedisReadTimeout)
	}
	return r.ReadTimeout
}

// GetWriteTimeout returns the effective Redis write timeout.
func (r *RedisConfig) GetWriteTimeout() Duration {
	if r == nil || r.WriteTimeout <= 0 {
		return Duration(DefaultRedisWriteTimeout)
	}
	return r.WriteTimeout
}

// GetKeyPrefix returns the effective Redis key prefix.
func (r *RedisConfig) GetKeyPrefix() string {
	if r == nil || r.KeyPrefix == "" {
		return DefaultRedisKeyPrefix
	}
	return r.KeyPrefix
}

// IsEmpty returns true if the RedisConfig has no connection target.
func (r *RedisConfig) IsEmpty() bool {
	return r == nil || r.URL == ""
}

// PoolConfig configures the connection pool shared by a chain's endpoints.
type PoolConfig struct {
	// MaxConnectionsPerEndpoint bounds concurrent use of one endpoint.
	MaxConnectionsPerEndpoint int `yaml:"maxConnectionsPerEndpoint,omitempty" json:"maxConnectionsPerEndpoint,omitempty"`

	// HealthCheckInterval is the period between health check rounds.
	HealthCheckInterval Duration `yaml:"healthCheckInterval,omitempty" json:"healthCheckInterval,omitempty"`

	// HealthCheckTimeout bounds a single liveness probe.
	HealthCheckTimeout Duration `yaml:"healthCheckTimeout,omitempty" json:"healthCheckTimeout,omitempty"`

	// MaxFailures is the consecutive-failure count at which an endpoint is
	// marked unhealthy.
	MaxFailures int `yaml:"maxFailures,omitempty" json:"maxFailures,omitempty"`

	// UnhealthyRetryDelay is the cooldown after which an unhealthy endpoint
	// is optimistically retried.
	UnhealthyRetryDelay Duration `yaml:"unhealthyRetryDelay,omitempty" json:"unhealthyRetryDelay,omitempty"`
}

// GetMaxConnectionsPerEndpoint returns the effective per-endpoint bound.
func (p *PoolConfig) GetMaxConnectionsPerEndpoint() int {
	if p == nil || p.MaxConnectionsPerEndpoint <= 0 {
		return DefaultMaxConnectionsPerEndpoint
	}
	return p.MaxConnectionsPerEndpoint
}

// GetHealthCheckInterval returns the effective health check interval.
func (p *PoolConfig) GetHealthCheckInterval() Duration {
	if p == nil || p.HealthCheckInterval <= 0 {
		return Duration(DefaultHealthCheckInterval)
	}
	return p.HealthCheckInterval
}

// GetHealthCheckTimeout returns the effective probe timeout.
func (p *PoolConfig) GetHealthCheckTimeout() Duration {
	if p == nil || p.HealthCheckTimeout <= 0 {
		return Duration(DefaultHealthCheckTimeout)
	}
	return p.HealthCheckTimeout
}

// GetMaxFailures returns the effective unhealthy threshold.
func (p *PoolConfig) GetMaxFailures() int {
	if p == nil || p.MaxFailures <= 0 {
		return DefaultMaxFailures
	}
	return p.MaxFailures
}

// GetUnhealthyRetryDelay returns the effective retry cooldown.
func (p *PoolConfig) GetUnhealthyRetryDelay() Duration {
	if p == nil || p.UnhealthyRetryDelay <= 0 {
		return Duration(DefaultUnhealthyRetryDelay)
	}
	return p.UnhealthyRetryDelay
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxConnectionsPerEndpoint: DefaultMaxConnectionsPerEndpoint,
		HealthCheckInterval:       Duration(DefaultHealthCheckInterval),
		HealthCheckTimeout:        Duration(DefaultHealthCheckTimeout),
		MaxFailures:               DefaultMaxFailures,
		UnhealthyRetryDelay:       Duration(DefaultUnhealthyRetryDelay),
	}
}

// RetryConfig configures the retry executor.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`

	// InitialBackoff is the backoff before the first retry.
	InitialBackoff Duration `yaml:"initialBackoff,omitempty" json:"initialBackoff,omitempty"`

	// MaxBackoff caps the backoff between attempts.
	MaxBackoff Duration `yaml:"maxBackoff,omitempty" json:"maxBackoff,omitempty"`

	// Multiplier is the exponential backoff growth factor.
	Multiplier float64 `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`

	// Jitter enables randomized backoff scaling. Defaults to true when
	// unset.
	Jitter *bool `yaml:"jitter,omitempty" json:"jitter,omitempty"`
}

// GetMaxRetries returns the effective retry count.
func (r *RetryConfig) GetMaxRetries() int {
	if r == nil || r.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return r.MaxRetries
}

// GetInitialBackoff returns the effective initial backoff.
func (r *RetryConfig) GetInitialBackoff() Duration {
	if r == nil || r.InitialBackoff <= 0 {
		return Duration(DefaultInitialBackoff)
	}
	return r.InitialBackoff
}

// GetMaxBackoff returns the effective backoff cap.
func (r *RetryConfig) GetMaxBackoff() Duration {
	if r == nil || r.MaxBackoff <= 0 {
		return Duration(DefaultMaxBackoff)
	}
	return r.MaxBackoff
}

// GetMultiplier returns the effective backoff multiplier.
func (r *RetryConfig) GetMultiplier() float64 {
	if r == nil || r.Multiplier <= 0 {
		return DefaultMultiplier
	}
	return r.Multiplier
}

// GetJitter returns the effective jitter flag.
func (r *RetryConfig) GetJitter() bool {
	if r == nil || r.Jitter == nil {
		return true
	}
	return *r.Jitter
}

// CircuitBreakerConfig configures per-endpoint circuit breakers.
type CircuitBreakerConfig struct {
	// Enabled turns circuit breaking on for RPC calls.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// FailureThreshold is the consecutive-failure count that opens the
	// breaker.
	FailureThreshold int `yaml:"failureThreshold,omitempty" json:"failureThreshold,omitempty"`

	// SuccessThreshold is the half-open success count that closes the
	// breaker.
	SuccessThreshold int `yaml:"successThreshold,omitempty" json:"successThreshold,omitempty"`

	// Timeout is the open-state cooldown before a probe call is allowed.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// GetFailureThreshold returns the effective failure threshold.
func (c *CircuitBreakerConfig) GetFailureThreshold() int {
	if c == nil || c.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return c.FailureThreshold
}

// GetSuccessThreshold returns the effective success threshold.
func (c *CircuitBreakerConfig) GetSuccessThreshold() int {
	if c == nil || c.SuccessThreshold <= 0 {
		return DefaultSuccessThreshold
	}
	return c.SuccessThreshold
}

// GetTimeout returns the effective open-state cooldown.
func (c *CircuitBreakerConfig) GetTimeout() Duration {
	if c == nil || c.Timeout <= 0 {
		return Duration(DefaultBreakerTimeout)
	}
	return c.Timeout
}

// RateLimitConfig configures the client-side request throttle.
type RateLimitConfig struct {
	// Enabled turns the throttle on.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// RPS is the sustained requests-per-second budget.
	RPS int `yaml:"rps,omitempty" json:"rps,omitempty"`

	// Burst is the burst allowance. Defaults to RPS when unset.
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// GetBurst returns the effective burst allowance.
func (r *RateLimitConfig) GetBurst() int {
	if r == nil {
		return 0
	}
	if r.Burst <= 0 {
		return r.RPS
	}
	return r.Burst
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format is the output format: "json" or "console".
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// Output is the destination: "stderr" (default) or "stdout".
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns tracing on.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// ServiceName is the reported service name.
	ServiceName string `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (host:port).
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`

	// SamplingRate is the trace sampling ratio in [0.0, 1.0].
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
}

// Chain returns the chain configuration with the given name.
func (c *Config) Chain(name string) (*ChainConfig, bool) {
	for i := range c.Chains {
		if c.Chains[i].Name == name {
			return &c.Chains[i], true
		}
	}
	return nil, false
}

// Validate checks the configuration for construction-time errors.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return sdkerrors.Configuration("no chains configured")
	}

	seen := make(map[string]bool, len(c.Chains))
	for i := range c.Chains {
		if err := c.Chains[i].validate(); err != nil {
			return err
		}
		if seen[c.Chains[i].Name] {
			return sdkerrors.Configuration("duplicate chain name: %s", c.Chains[i].Name)
		}
		seen[c.Chains[i].Name] = true
	}

	if c.Cache != nil {
		if err := c.Cache.validate(); err != nil {
			return err
		}
	}

	if c.Retry != nil && c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1.0 {
		return sdkerrors.Configuration("retry multiplier must be >= 1.0, got %v", c.Retry.Multiplier)
	}

	if c.RateLimit != nil && c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return sdkerrors.Configuration("rate limit enabled with non-positive rps")
	}

	return nil
}

func (c *ChainConfig) validate() error {
	if c.Name == "" {
		return sdkerrors.Configuration("chain name is required")
	}
	if len(c.Endpoints) == 0 {
		return sdkerrors.Configuration("chain %s: no endpoints provided", c.Name)
	}
	switch c.Family {
	case "", FamilyEVM, FamilySubstrate:
	default:
		return sdkerrors.Configuration("chain %s: unknown family %q", c.Name, c.Family)
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if c.MaxCacheSize < 0 {
		return sdkerrors.Configuration("cache size must be positive, got %d", c.MaxCacheSize)
	}
	switch c.Backend {
	case "", CacheBackendMemory:
	case CacheBackendRedis:
		if c.Redis.IsEmpty() {
			return sdkerrors.Configuration("redis cache backend requires a redis url")
		}
		if c.Redis.TTLJitter < 0 || c.Redis.TTLJitter > 1 {
			return sdkerrors.Configuration("redis ttlJitter must be in [0, 1], got %v", c.Redis.TTLJitter)
		}
	default:
		return sdkerrors.Configuration("unknown cache backend: %s", c.Backend)
	}
	return nil
}
