package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for cache operations, labeled by
// chain and tier.
type Metrics struct {
	hitsTotal      *prometheus.CounterVec
	missesTotal    *prometheus.CounterVec
	setsTotal      *prometheus.CounterVec
	evictionsTotal *prometheus.CounterVec
	entries        *prometheus.GaugeVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton cache metrics instance. Metrics are
// created unregistered; call MustRegister to expose them on a registry.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

func newMetrics() *Metrics {
	labels := []string{"chain", "tier"}

	return &Metrics{
		hitsTotal: promauto.With(nil).NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits.",
		}, labels),
		missesTotal: promauto.With(nil).NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses.",
		}, labels),
		setsTotal: promauto.With(nil).NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex",
			Subsystem: "cache",
			Name:      "sets_total",
			Help:      "Total number of cache writes.",
		}, labels),
		evictionsTotal: promauto.With(nil).NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of entries evicted by capacity or expiry.",
		}, labels),
		entries: promauto.With(nil).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "apex",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Current number of entries per tier.",
		}, labels),
	}
}

// MustRegister registers all cache metrics with the given registry.
// It panics if any metric is already registered.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.hitsTotal,
		m.missesTotal,
		m.setsTotal,
		m.evictionsTotal,
		m.entries,
	)
}

// Init pre-seeds the metric series for a chain so every tier is visible
// before the first cache access.
func (m *Metrics) Init(chain string) {
	for _, tier := range []string{TierBalance, TierTxStatus, TierBlock} {
		m.hitsTotal.WithLabelValues(chain, tier)
		m.missesTotal.WithLabelValues(chain, tier)
		m.setsTotal.WithLabelValues(chain, tier)
		m.evictionsTotal.WithLabelValues(chain, tier)
		m.entries.WithLabelValues(chain, tier)
	}
}
