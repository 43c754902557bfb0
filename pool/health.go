package pool

import (
	"sync"
	"time"
)

// HealthSnapshot is a point-in-time copy of one endpoint's health.
type HealthSnapshot struct {
	Endpoint     string        `json:"endpoint"`
	Healthy      bool          `json:"healthy"`
	FailureCount int           `json:"failureCount"`
	LastSuccess  time.Time     `json:"lastSuccess"`
	LastFailure  time.Time     `json:"lastFailure"`
	AvgLatency   time.Duration `json:"avgLatency"`
}

// EndpointHealth tracks one endpoint's health. An endpoint starts healthy
// and goes unhealthy after maxFailures consecutive failures. It never
// recovers on its own; only a reported success flips it back.
type EndpointHealth struct {
	mu           sync.Mutex
	healthy      bool
	failureCount int
	maxFailures  int
	lastSuccess  time.Time
	lastFailure  time.Time
	avgLatency   time.Duration
}

func newEndpointHealth(maxFailures int) *EndpointHealth {
	return &EndpointHealth{
		healthy:     true,
		maxFailures: maxFailures,
	}
}

// markHealthy records a success. The endpoint becomes healthy
// unconditionally, the failure streak resets, and the latency sample is
// folded into an exponential moving average.
func (h *EndpointHealth) markHealthy(latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.healthy = true
	h.failureCount = 0
	h.lastSuccess = time.Now()

	if h.avgLatency == 0 {
		h.avgLatency = latency
	} else {
		h.avgLatency = (h.avgLatency*9 + latency) / 10
	}
}

// markUnhealthy records a failure and reports whether this failure flipped
// the endpoint from healthy to unhealthy.
func (h *EndpointHealth) markUnhealthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failureCount++
	h.lastFailure = time.Now()

	if h.failureCount >= h.maxFailures && h.healthy {
		h.healthy = false
		return true
	}
	return false
}

// markDialFailed records a failed initial connection, taking the endpoint
// straight to unhealthy with a single counted failure.
func (h *EndpointHealth) markDialFailed() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.healthy = false
	h.failureCount = 1
	h.lastFailure = time.Now()
}

func (h *EndpointHealth) isHealthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.healthy
}

func (h *EndpointHealth) lastFailureTime() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastFailure
}

func (h *EndpointHealth) snapshot(endpoint string) HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	return HealthSnapshot{
		Endpoint:     endpoint,
		Healthy:      h.healthy,
		FailureCount: h.failureCount,
		LastSuccess:  h.lastSuccess,
		LastFailure:  h.lastFailure,
		AvgLatency:   h.avgLatency,
	}
}
