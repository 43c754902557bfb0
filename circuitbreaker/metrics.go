package circuitbreaker

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for breakers, labeled by breaker
// name.
type Metrics struct {
	state           *prometheus.GaugeVec
	tripsTotal      *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton breaker metrics instance. Metrics are
// created unregistered; call MustRegister to expose them on a registry.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

func newMetrics() *Metrics {
	return &Metrics{
		state: promauto.With(nil).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "apex",
			Subsystem: "circuitbreaker",
			Name:      "state",
			Help:      "Breaker state (0 closed, 1 open, 2 half-open).",
		}, []string{"breaker"}),
		tripsTotal: promauto.With(nil).NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex",
			Subsystem: "circuitbreaker",
			Name:      "trips_total",
			Help:      "Total number of transitions to the open state.",
		}, []string{"breaker"}),
		rejectionsTotal: promauto.With(nil).NewCounterVec(prometheus.CounterOpts{
			Namespace: "apex",
			Subsystem: "circuitbreaker",
			Name:      "rejections_total",
			Help:      "Total number of calls rejected while open.",
		}, []string{"breaker"}),
	}
}

// MustRegister registers all breaker metrics with the given registry.
// It panics if any metric is already registered.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.state,
		m.tripsTotal,
		m.rejectionsTotal,
	)
}

// Init pre-seeds the metric series for a breaker.
func (m *Metrics) Init(name string) {
	m.state.WithLabelValues(name)
	m.tripsTotal.WithLabelValues(name)
	m.rejectionsTotal.WithLabelValues(name)
}
