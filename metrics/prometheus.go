package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/apexlabs/apex-go/cache"
	"github.com/apexlabs/apex-go/circuitbreaker"
	"github.com/apexlabs/apex-go/pool"
)

// Metrics contains Prometheus metrics for RPC calls, labeled by chain.
type Metrics struct {
	callsTotal     *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec
	latencySeconds *prometheus.HistogramVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton RPC metrics instance. Metrics are
// created unregistered; call MustRegister to expose them on a registry.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

func newMetrics() *Metrics {
	return &Metrics{
		callsTotal: promauto.With(nil).NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Total number of RPC calls by result.",
		}, []string{"chain", "result"}),
		retriesTotal: promauto.With(nil).NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex",
			Subsystem: "rpc",
			Name:      "retries_total",
			Help:      "Total number of RPC retry attempts.",
		}, []string{"chain"}),
		latencySeconds: promauto.With(nil).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apex",
			Subsystem: "rpc",
			Name:      "latency_seconds",
			Help:      "Latency of RPC calls, including failures.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain"}),
	}
}

// MustRegister registers all RPC metrics with the given registry. It
// panics if any metric is already registered.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.callsTotal,
		m.retriesTotal,
		m.latencySeconds,
	)
}

// Init pre-seeds the metric series for a chain.
func (m *Metrics) Init(chain string) {
	m.callsTotal.WithLabelValues(chain, "success")
	m.callsTotal.WithLabelValues(chain, "failure")
	m.retriesTotal.WithLabelValues(chain)
	m.latencySeconds.WithLabelValues(chain)
}

// Registry bundles every SDK collector behind one private Prometheus
// registry: RPC calls, cache activity, pool health, and breaker state.
type Registry struct {
	registry *prometheus.Registry
}

// NewRegistry creates a registry with all SDK collectors registered.
// The package singletons may be registered on any number of registries,
// so independent Registry values see the same series.
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()
	GetMetrics().MustRegister(registry)
	cache.GetMetrics().MustRegister(registry)
	pool.GetMetrics().MustRegister(registry)
	circuitbreaker.GetMetrics().MustRegister(registry)
	return &Registry{registry: registry}
}

// Handler returns an HTTP handler serving the registry in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Gather collects the current metric families.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.registry.Gather()
}

// Prometheus returns the underlying registry for callers that need to
// register their own collectors alongside the SDK's.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.registry
}
