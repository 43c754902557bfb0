package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/apexlabs/apex-go/config"
	"github.com/apexlabs/apex-go/observability"
)

// tracerName is the OpenTelemetry tracer name for cache operations.
const tracerName = "apex-go/cache"

// Tier names used for per-tier statistics and metric labels.
const (
	TierBalance  = "balance"
	TierTxStatus = "tx_status"
	TierBlock    = "block"
)

// tierStore is the storage behind a ChainCache. Implementations must be
// safe for concurrent use.
type tierStore interface {
	Get(ctx context.Context, tier, key string) (string, bool)
	Set(ctx context.Context, tier, key, value string, ttl time.Duration)
	CleanupExpired(ctx context.Context) int
	ClearAll(ctx context.Context)
	Stats() map[string]Stats
	Close() error
}

// ChainCache caches query results for one chain across three tiers:
// account balances, transaction statuses, and blocks. The block tier gets a
// tenth of the configured capacity because block payloads are large and
// reads cluster on recent blocks. A background sweep reclaims expired
// entries on the configured interval until Close is called.
type ChainCache struct {
	chain  string
	cfg    *config.CacheConfig
	store  tierStore
	logger observability.Logger

	metricsMu     sync.Mutex
	lastEvictions map[string]int64

	stopCh    chan struct{}
	stoppedCh chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Option is a functional option for configuring a ChainCache.
type Option func(*ChainCache)

// WithLogger sets the logger for the cache.
func WithLogger(logger observability.Logger) Option {
	return func(c *ChainCache) {
		c.logger = logger
	}
}

// NewChainCache creates a cache for the named chain. The backend is chosen
// from cfg: process memory by default, Redis when configured. A nil cfg uses
// defaults.
func NewChainCache(chain string, cfg *config.CacheConfig, opts ...Option) (*ChainCache, error) {
	c := &ChainCache{
		chain:         chain,
		cfg:           cfg,
		logger:        observability.NopLogger(),
		lastEvictions: make(map[string]int64),
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	var err error
	switch cfg.GetBackend() {
	case config.CacheBackendRedis:
		c.store, err = newRedisStore(chain, cfg, c.logger)
	default:
		c.store, err = newMemoryStore(cfg)
	}
	if err != nil {
		return nil, err
	}

	GetMetrics().Init(chain)

	go c.cleanupLoop(cfg.GetCleanupInterval().Duration())

	c.logger.Debug("chain cache created",
		observability.String("chain", chain),
		observability.String("backend", cfg.GetBackend()),
		observability.Int("maxSize", cfg.GetMaxCacheSize()),
	)

	return c, nil
}

// GetBalance returns the cached balance for an address.
func (c *ChainCache) GetBalance(ctx context.Context, address string) (string, bool) {
	return c.get(ctx, TierBalance, address)
}

// SetBalance caches the balance for an address.
func (c *ChainCache) SetBalance(ctx context.Context, address, balance string) {
	c.set(ctx, TierBalance, address, balance, c.cfg.GetBalanceTTL().Duration())
}

// GetTransactionStatus returns the cached status for a transaction hash.
func (c *ChainCache) GetTransactionStatus(ctx context.Context, hash string) (string, bool) {
	return c.get(ctx, TierTxStatus, hash)
}

// SetTransactionStatus caches the status for a transaction hash.
func (c *ChainCache) SetTransactionStatus(ctx context.Context, hash, status string) {
	c.set(ctx, TierTxStatus, hash, status, c.cfg.GetTxStatusTTL().Duration())
}

// GetBlock returns the cached block payload for a block number.
func (c *ChainCache) GetBlock(ctx context.Context, number uint64) (string, bool) {
	return c.get(ctx, TierBlock, strconv.FormatUint(number, 10))
}

// SetBlock caches the block payload for a block number.
func (c *ChainCache) SetBlock(ctx context.Context, number uint64, data string) {
	c.set(ctx, TierBlock, strconv.FormatUint(number, 10), data, c.cfg.GetBlockTTL().Duration())
}

func (c *ChainCache) get(ctx context.Context, tier, key string) (string, bool) {
	_, span := otel.Tracer(tracerName).Start(ctx, "cache.Get",
		trace.WithAttributes(
			attribute.String("cache.chain", c.chain),
			attribute.String("cache.tier", tier),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	value, ok := c.store.Get(ctx, tier, key)
	span.SetAttributes(attribute.Bool("cache.hit", ok))

	m := GetMetrics()
	if ok {
		m.hitsTotal.WithLabelValues(c.chain, tier).Inc()
	} else {
		m.missesTotal.WithLabelValues(c.chain, tier).Inc()
	}
	return value, ok
}

func (c *ChainCache) set(ctx context.Context, tier, key, value string, ttl time.Duration) {
	_, span := otel.Tracer(tracerName).Start(ctx, "cache.Set",
		trace.WithAttributes(
			attribute.String("cache.chain", c.chain),
			attribute.String("cache.tier", tier),
			attribute.String("cache.key", key),
			attribute.Int("cache.value_size", len(value)),
		),
	)
	defer span.End()

	c.store.Set(ctx, tier, key, value, ttl)
	GetMetrics().setsTotal.WithLabelValues(c.chain, tier).Inc()
}

// Stats returns a per-tier snapshot of cache counters, keyed by tier name.
func (c *ChainCache) Stats() map[string]Stats {
	stats := c.store.Stats()
	c.syncMetrics(stats)
	return stats
}

// ClearAll drops every entry in every tier. Counters are preserved.
func (c *ChainCache) ClearAll(ctx context.Context) {
	_, span := otel.Tracer(tracerName).Start(ctx, "cache.ClearAll",
		trace.WithAttributes(attribute.String("cache.chain", c.chain)),
	)
	defer span.End()

	c.store.ClearAll(ctx)
	c.logger.Debug("cleared all cache tiers", observability.String("chain", c.chain))
	c.syncMetrics(c.store.Stats())
}

// CleanupExpired removes expired entries from every tier and returns how
// many were removed.
func (c *ChainCache) CleanupExpired(ctx context.Context) int {
	removed := c.store.CleanupExpired(ctx)
	if removed > 0 {
		c.logger.Debug("removed expired cache entries",
			observability.String("chain", c.chain),
			observability.Int("removed", removed),
		)
	}
	c.syncMetrics(c.store.Stats())
	return removed
}

// syncMetrics pushes snapshot-derived values to Prometheus: entry gauges
// directly, eviction counters as deltas against the last snapshot.
func (c *ChainCache) syncMetrics(stats map[string]Stats) {
	m := GetMetrics()

	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()

	for tier, s := range stats {
		m.entries.WithLabelValues(c.chain, tier).Set(float64(s.Entries))
		if d := s.Evictions - c.lastEvictions[tier]; d > 0 {
			m.evictionsTotal.WithLabelValues(c.chain, tier).Add(float64(d))
			c.lastEvictions[tier] = s.Evictions
		}
	}
}

func (c *ChainCache) cleanupLoop(interval time.Duration) {
	defer close(c.stoppedCh)

	if interval <= 0 {
		<-c.stopCh
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.CleanupExpired(context.Background())
		}
	}
}

// Close stops the background sweep and releases backend resources. It is
// safe to call more than once.
func (c *ChainCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopCh)
		<-c.stoppedCh
		c.closeErr = c.store.Close()
	})
	return c.closeErr
}

// memoryStore keeps the three tiers in process memory.
type memoryStore struct {
	tiers map[string]*Cache[string, string]
}

func newMemoryStore(cfg *config.CacheConfig) (*memoryStore, error) {
	size := cfg.GetMaxCacheSize()
	blockSize := size / 10
	if blockSize < 1 {
		blockSize = 1
	}

	balance, err := New[string, string](size)
	if err != nil {
		return nil, err
	}
	txStatus, err := New[string, string](size)
	if err != nil {
		return nil, err
	}
	block, err := New[string, string](blockSize)
	if err != nil {
		return nil, err
	}

	return &memoryStore{
		tiers: map[string]*Cache[string, string]{
			TierBalance:  balance,
			TierTxStatus: txStatus,
			TierBlock:    block,
		},
	}, nil
}

func (s *memoryStore) Get(_ context.Context, tier, key string) (string, bool) {
	return s.tiers[tier].Get(key)
}

func (s *memoryStore) Set(_ context.Context, tier, key, value string, ttl time.Duration) {
	s.tiers[tier].Set(key, value, ttl)
}

func (s *memoryStore) CleanupExpired(context.Context) int {
	total := 0
	for _, c := range s.tiers {
		total += c.CleanupExpired()
	}
	return total
}

func (s *memoryStore) ClearAll(context.Context) {
	for _, c := range s.tiers {
		c.Clear()
	}
}

func (s *memoryStore) Stats() map[string]Stats {
	stats := make(map[string]Stats, len(s.tiers))
	for tier, c := range s.tiers {
		stats[tier] = c.Stats()
	}
	return stats
}

func (s *memoryStore) Close() error {
	return nil
}
