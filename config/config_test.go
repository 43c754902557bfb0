package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexlabs/apex-go/sdkerrors"
)

func TestCacheConfig_Accessors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *CacheConfig
	}{
		{"nil config", nil},
		{"zero value", &CacheConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, 30*time.Second, tt.cfg.GetBalanceTTL().Duration())
			assert.Equal(t, 5*time.Minute, tt.cfg.GetTxStatusTTL().Duration())
			assert.Equal(t, time.Hour, tt.cfg.GetBlockTTL().Duration())
			assert.Equal(t, time.Hour, tt.cfg.GetMetadataTTL().Duration())
			assert.Equal(t, 10000, tt.cfg.GetMaxCacheSize())
			assert.Equal(t, 5*time.Minute, tt.cfg.GetCleanupInterval().Duration())
			assert.Equal(t, CacheBackendMemory, tt.cfg.GetBackend())
		})
	}
}

func TestCacheConfig_CustomValues(t *testing.T) {
	t.Parallel()

	cfg := &CacheConfig{
		BalanceTTL:   Duration(10 * time.Second),
		MaxCacheSize: 500,
		Backend:      CacheBackendRedis,
	}

	assert.Equal(t, 10*time.Second, cfg.GetBalanceTTL().Duration())
	assert.Equal(t, 500, cfg.GetMaxCacheSize())
	assert.Equal(t, CacheBackendRedis, cfg.GetBackend())
	// Unset fields still fall back.
	assert.Equal(t, 5*time.Minute, cfg.GetTxStatusTTL().Duration())
}

func TestPoolConfig_Accessors(t *testing.T) {
	t.Parallel()

	var nilCfg *PoolConfig

	assert.Equal(t, 10, nilCfg.GetMaxConnectionsPerEndpoint())
	assert.Equal(t, 30*time.Second, nilCfg.GetHealthCheckInterval().Duration())
	assert.Equal(t, 5*time.Second, nilCfg.GetHealthCheckTimeout().Duration())
	assert.Equal(t, 3, nilCfg.GetMaxFailures())
	assert.Equal(t, 60*time.Second, nilCfg.GetUnhealthyRetryDelay().Duration())

	cfg := DefaultPoolConfig()
	assert.Equal(t, 3, cfg.GetMaxFailures())
}

func TestRetryConfig_GetJitter(t *testing.T) {
	t.Parallel()

	off := false
	on := true

	tests := []struct {
		name     string
		cfg      *RetryConfig
		expected bool
	}{
		{"nil config", nil, true},
		{"unset", &RetryConfig{}, true},
		{"explicit off", &RetryConfig{Jitter: &off}, false},
		{"explicit on", &RetryConfig{Jitter: &on}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.cfg.GetJitter())
		})
	}
}

func TestCircuitBreakerConfig_Accessors(t *testing.T) {
	t.Parallel()

	var nilCfg *CircuitBreakerConfig

	assert.Equal(t, 5, nilCfg.GetFailureThreshold())
	assert.Equal(t, 2, nilCfg.GetSuccessThreshold())
	assert.Equal(t, 30*time.Second, nilCfg.GetTimeout().Duration())
}

func TestRateLimitConfig_GetBurst(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, (*RateLimitConfig)(nil).GetBurst())
	assert.Equal(t, 50, (&RateLimitConfig{RPS: 50}).GetBurst())
	assert.Equal(t, 100, (&RateLimitConfig{RPS: 50, Burst: 100}).GetBurst())
}

func TestChainConfig_GetProbeMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      *ChainConfig
		expected string
	}{
		{"evm default", &ChainConfig{Name: "ethereum"}, "eth_blockNumber"},
		{"substrate default", &ChainConfig{Name: "polkadot", Family: FamilySubstrate}, "chain_getHeader"},
		{"explicit override", &ChainConfig{Name: "custom", ProbeMethod: "net_version"}, "net_version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.cfg.GetProbeMethod())
		})
	}
}

func TestConfig_Chain(t *testing.T) {
	t.Parallel()

	cfg := &Config{Chains: []ChainConfig{
		{Name: "ethereum", Endpoints: []string{"http://localhost:8545"}},
		{Name: "polkadot", Family: FamilySubstrate, Endpoints: []string{"ws://localhost:9944"}},
	}}

	chain, ok := cfg.Chain("polkadot")
	require.True(t, ok)
	assert.Equal(t, FamilySubstrate, chain.Family)

	_, ok = cfg.Chain("cosmos")
	assert.False(t, ok)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	validChains := []ChainConfig{{Name: "ethereum", Endpoints: []string{"http://localhost:8545"}}}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name:    "no chains",
			cfg:     &Config{},
			wantErr: "no chains configured",
		},
		{
			name:    "chain without name",
			cfg:     &Config{Chains: []ChainConfig{{Endpoints: []string{"http://x"}}}},
			wantErr: "chain name is required",
		},
		{
			name:    "chain without endpoints",
			cfg:     &Config{Chains: []ChainConfig{{Name: "ethereum"}}},
			wantErr: "no endpoints provided",
		},
		{
			name: "duplicate chain names",
			cfg: &Config{Chains: []ChainConfig{
				{Name: "ethereum", Endpoints: []string{"http://a"}},
				{Name: "ethereum", Endpoints: []string{"http://b"}},
			}},
			wantErr: "duplicate chain name",
		},
		{
			name:    "unknown family",
			cfg:     &Config{Chains: []ChainConfig{{Name: "x", Family: "cosmos", Endpoints: []string{"http://a"}}}},
			wantErr: "unknown family",
		},
		{
			name:    "negative cache size",
			cfg:     &Config{Chains: validChains, Cache: &CacheConfig{MaxCacheSize: -1}},
			wantErr: "cache size must be positive",
		},
		{
			name:    "redis backend without url",
			cfg:     &Config{Chains: validChains, Cache: &CacheConfig{Backend: CacheBackendRedis}},
			wantErr: "requires a redis url",
		},
		{
			name:    "multiplier below one",
			cfg:     &Config{Chains: validChains, Retry: &RetryConfig{Multiplier: 0.5}},
			wantErr: "multiplier must be >= 1.0",
		},
		{
			name:    "rate limit without rps",
			cfg:     &Config{Chains: validChains, RateLimit: &RateLimitConfig{Enabled: true}},
			wantErr: "non-positive rps",
		},
		{
			name: "valid",
			cfg: &Config{
				Chains: validChains,
				Cache:  DefaultCacheConfig(),
				Pool:   DefaultPoolConfig(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, sdkerrors.IsKind(err, sdkerrors.KindConfiguration))
		})
	}
}
