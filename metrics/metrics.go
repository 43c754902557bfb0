// Package metrics tracks RPC call statistics for a chain and exposes
// them two ways: through Prometheus collectors bundled behind a Registry,
// and through a text exposition Exporter that renders snapshots without a
// scrape endpoint.
package metrics

import (
	"sync/atomic"
	"time"
)

// RPCMetrics accumulates call statistics for one chain. All counters are
// atomic, so recording is safe from concurrent callers.
type RPCMetrics struct {
	chain string

	totalCalls      atomic.Int64
	successfulCalls atomic.Int64
	failedCalls     atomic.Int64
	retries         atomic.Int64
	totalLatency    atomic.Int64
}

// RPCSnapshot is a point-in-time view of RPC call statistics.
type RPCSnapshot struct {
	Chain           string  `json:"chain"`
	TotalCalls      int64   `json:"totalCalls"`
	SuccessfulCalls int64   `json:"successfulCalls"`
	FailedCalls     int64   `json:"failedCalls"`
	Retries         int64   `json:"retries"`
	SuccessRate     float64 `json:"successRate"`
	AvgLatencyMs    float64 `json:"avgLatencyMs"`
}

// NewRPCMetrics creates a recorder for the given chain and pre-seeds its
// Prometheus series.
func NewRPCMetrics(chain string) *RPCMetrics {
	if chain != "" {
		GetMetrics().Init(chain)
	}
	return &RPCMetrics{chain: chain}
}

// RecordSuccess records a completed call and its latency.
func (m *RPCMetrics) RecordSuccess(latency time.Duration) {
	m.totalCalls.Add(1)
	m.successfulCalls.Add(1)
	m.totalLatency.Add(int64(latency))
	if m.chain != "" {
		pm := GetMetrics()
		pm.callsTotal.WithLabelValues(m.chain, "success").Inc()
		pm.latencySeconds.WithLabelValues(m.chain).Observe(latency.Seconds())
	}
}

// RecordFailure records a failed call. The latency still counts toward
// the average, since a slow failure holds the caller just as long.
func (m *RPCMetrics) RecordFailure(latency time.Duration) {
	m.totalCalls.Add(1)
	m.failedCalls.Add(1)
	m.totalLatency.Add(int64(latency))
	if m.chain != "" {
		pm := GetMetrics()
		pm.callsTotal.WithLabelValues(m.chain, "failure").Inc()
		pm.latencySeconds.WithLabelValues(m.chain).Observe(latency.Seconds())
	}
}

// RecordRetry records one retry attempt.
func (m *RPCMetrics) RecordRetry() {
	m.retries.Add(1)
	if m.chain != "" {
		GetMetrics().retriesTotal.WithLabelValues(m.chain).Inc()
	}
}

// TotalCalls returns the number of calls recorded so far.
func (m *RPCMetrics) TotalCalls() int64 {
	return m.totalCalls.Load()
}

// SuccessRate returns the success percentage, 100.0 when nothing has
// been recorded yet.
func (m *RPCMetrics) SuccessRate() float64 {
	total := m.totalCalls.Load()
	if total == 0 {
		return 100.0
	}
	return float64(m.successfulCalls.Load()) / float64(total) * 100.0
}

// AvgLatency returns the mean latency across all recorded calls, zero
// when nothing has been recorded yet.
func (m *RPCMetrics) AvgLatency() time.Duration {
	total := m.totalCalls.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatency.Load() / total)
}

// Snapshot returns a consistent-enough copy of the counters for
// reporting. Counters loaded individually may drift by in-flight
// recordings, which is acceptable for statistics.
func (m *RPCMetrics) Snapshot() RPCSnapshot {
	total := m.totalCalls.Load()
	snap := RPCSnapshot{
		Chain:           m.chain,
		TotalCalls:      total,
		SuccessfulCalls: m.successfulCalls.Load(),
		FailedCalls:     m.failedCalls.Load(),
		Retries:         m.retries.Load(),
		SuccessRate:     100.0,
	}
	if total > 0 {
		snap.SuccessRate = float64(snap.SuccessfulCalls) / float64(total) * 100.0
		snap.AvgLatencyMs = float64(m.totalLatency.Load()) / float64(total) / float64(time.Millisecond)
	}
	return snap
}
