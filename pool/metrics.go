package pool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for pool health, labeled by chain.
type Metrics struct {
	endpoints         *prometheus.GaugeVec
	healthyEndpoints  *prometheus.GaugeVec
	healthChecksTotal *prometheus.CounterVec
	probeDuration     *prometheus.HistogramVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton pool metrics instance. Metrics are
// created unregistered; call MustRegister to expose them on a registry.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

func newMetrics() *Metrics {
	return &Metrics{
		endpoints: promauto.With(nil).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "apex",
			Subsystem: "pool",
			Name:      "endpoints",
			Help:      "Number of endpoints in the pool.",
		}, []string{"chain"}),
		healthyEndpoints: promauto.With(nil).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "apex",
			Subsystem: "pool",
			Name:      "healthy_endpoints",
			Help:      "Number of endpoints currently healthy.",
		}, []string{"chain"}),
		healthChecksTotal: promauto.With(nil).NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex",
			Subsystem: "pool",
			Name:      "health_checks_total",
			Help:      "Total number of endpoint health probes by result.",
		}, []string{"chain", "result"}),
		probeDuration: promauto.With(nil).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apex",
			Subsystem: "pool",
			Name:      "probe_duration_seconds",
			Help:      "Latency of successful health probes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain"}),
	}
}

// MustRegister registers all pool metrics with the given registry.
// It panics if any metric is already registered.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.endpoints,
		m.healthyEndpoints,
		m.healthChecksTotal,
		m.probeDuration,
	)
}

// Init pre-seeds the metric series for a chain.
func (m *Metrics) Init(chain string) {
	m.endpoints.WithLabelValues(chain)
	m.healthyEndpoints.WithLabelValues(chain)
	m.healthChecksTotal.WithLabelValues(chain, "success")
	m.healthChecksTotal.WithLabelValues(chain, "failure")
	m.probeDuration.WithLabelValues(chain)
}
