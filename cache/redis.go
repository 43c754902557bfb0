package cache

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/apexlabs/apex-go/config"
	"github.com/apexlabs/apex-go/observability"
	"github.com/apexlabs/apex-go/sdkerrors"
)

// redisBreakerFailures is the consecutive-failure count that opens the
// breaker guarding Redis round-trips.
const redisBreakerFailures = 5

// redisStore keeps the three tiers in Redis. Keys are laid out as
// <prefix><chain>:<tier>:<key> and expire server-side, so sweeps are a
// no-op. Every round-trip goes through a circuit breaker; while Redis is
// down or the breaker is open, reads degrade to misses and writes are
// dropped.
type redisStore struct {
	chain     string
	client    *redis.Client
	breaker   *gobreaker.CircuitBreaker
	keyPrefix string
	ttlJitter float64
	logger    observability.Logger

	counters map[string]*tierCounters
}

type tierCounters struct {
	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

func newRedisStore(chain string, cfg *config.CacheConfig, logger observability.Logger) (*redisStore, error) {
	rc := cfg.Redis
	if rc.IsEmpty() {
		return nil, sdkerrors.Configuration("redis cache backend requires a redis URL")
	}

	opts, err := redis.ParseURL(rc.URL)
	if err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.KindConfiguration, err, "invalid redis URL")
	}
	opts.PoolSize = rc.GetPoolSize()
	opts.DialTimeout = rc.GetConnectTimeout().Duration()
	opts.ReadTimeout = rc.GetReadTimeout().Duration()
	opts.WriteTimeout = rc.GetWriteTimeout().Duration()

	client := redis.NewClient(opts)
	if err := pingRedis(client, rc.GetConnectTimeout().Duration()); err != nil {
		_ = client.Close()
		return nil, sdkerrors.Wrap(sdkerrors.KindConnection, err, "redis ping failed")
	}

	s := &redisStore{
		chain:     chain,
		client:    client,
		keyPrefix: rc.GetKeyPrefix(),
		ttlJitter: rc.TTLJitter,
		logger:    logger,
		counters: map[string]*tierCounters{
			TierBalance:  {},
			TierTxStatus: {},
			TierBlock:    {},
		},
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "redis-cache-" + chain,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= redisBreakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("redis cache breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	return s, nil
}

func pingRedis(client *redis.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

// applyTTLJitter randomizes a TTL by up to ±jitterFactor so entries written
// together do not expire together.
func applyTTLJitter(ttl time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 || ttl <= 0 {
		return ttl
	}
	if jitterFactor > 1.0 {
		jitterFactor = 1.0
	}
	//nolint:gosec // G404: TTL jitter does not require cryptographic randomness
	jitter := time.Duration(float64(ttl) * jitterFactor * (2*rand.Float64() - 1))
	result := ttl + jitter
	if result <= 0 {
		return ttl
	}
	return result
}

func (s *redisStore) key(tier, key string) string {
	return s.keyPrefix + s.chain + ":" + tier + ":" + key
}

func (s *redisStore) Get(ctx context.Context, tier, key string) (string, bool) {
	c := s.counters[tier]

	res, err := s.breaker.Execute(func() (interface{}, error) {
		val, err := s.client.Get(ctx, s.key(tier, key)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return val, nil
	})
	if err != nil {
		s.logger.Debug("redis get failed, treating as miss",
			observability.String("tier", tier),
			observability.Error(err),
		)
		c.misses.Add(1)
		return "", false
	}
	if res == nil {
		c.misses.Add(1)
		return "", false
	}

	c.hits.Add(1)
	return res.(string), true
}

func (s *redisStore) Set(ctx context.Context, tier, key, value string, ttl time.Duration) {
	c := s.counters[tier]
	ttl = applyTTLJitter(ttl, s.ttlJitter)

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, s.key(tier, key), value, ttl).Err()
	})
	if err != nil {
		s.logger.Debug("redis set failed, dropping entry",
			observability.String("tier", tier),
			observability.Error(err),
		)
		return
	}

	c.sets.Add(1)
}

// CleanupExpired is a no-op: Redis expires keys server-side.
func (s *redisStore) CleanupExpired(context.Context) int {
	return 0
}

func (s *redisStore) ClearAll(ctx context.Context) {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		var cursor uint64
		for {
			keys, next, err := s.client.Scan(ctx, cursor, s.keyPrefix+s.chain+":*", 200).Result()
			if err != nil {
				return nil, err
			}
			if len(keys) > 0 {
				if err := s.client.Del(ctx, keys...).Err(); err != nil {
					return nil, err
				}
			}
			if next == 0 {
				return nil, nil
			}
			cursor = next
		}
	})
	if err != nil {
		s.logger.Warn("redis clear failed",
			observability.String("chain", s.chain),
			observability.Error(err),
		)
	}
}

func (s *redisStore) Stats() map[string]Stats {
	stats := make(map[string]Stats, len(s.counters))
	for tier, c := range s.counters {
		stats[tier] = Stats{
			Hits:    c.hits.Load(),
			Misses:  c.misses.Load(),
			Sets:    c.sets.Load(),
			Entries: s.countKeys(context.Background(), tier),
		}
	}
	return stats
}

// countKeys scans for the tier's keys. Best effort: on error it returns
// what was counted so far.
func (s *redisStore) countKeys(ctx context.Context, tier string) int {
	pattern := s.keyPrefix + s.chain + ":" + tier + ":*"
	var cursor uint64
	count := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return count
		}
		count += len(keys)
		if next == 0 {
			return count
		}
		cursor = next
	}
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
