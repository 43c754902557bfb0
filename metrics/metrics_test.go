package metrics

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexlabs/apex-go/cache"
	"github.com/apexlabs/apex-go/circuitbreaker"
	"github.com/apexlabs/apex-go/pool"
)

func TestRPCMetrics_RecordAndRates(t *testing.T) {
	t.Parallel()

	m := NewRPCMetrics("ethereum")

	m.RecordSuccess(100 * time.Millisecond)
	m.RecordSuccess(200 * time.Millisecond)
	m.RecordFailure(150 * time.Millisecond)

	assert.Equal(t, int64(3), m.TotalCalls())
	assert.InDelta(t, 66.67, m.SuccessRate(), 0.1)
	assert.Equal(t, 150*time.Millisecond, m.AvgLatency())
}

func TestRPCMetrics_EmptyRates(t *testing.T) {
	t.Parallel()

	m := NewRPCMetrics("ethereum")

	assert.Equal(t, 100.0, m.SuccessRate())
	assert.Equal(t, time.Duration(0), m.AvgLatency())
}

func TestRPCMetrics_Snapshot(t *testing.T) {
	t.Parallel()

	m := NewRPCMetrics("polkadot")
	m.RecordSuccess(100 * time.Millisecond)
	m.RecordFailure(300 * time.Millisecond)
	m.RecordRetry()
	m.RecordRetry()

	snap := m.Snapshot()
	assert.Equal(t, "polkadot", snap.Chain)
	assert.Equal(t, int64(2), snap.TotalCalls)
	assert.Equal(t, int64(1), snap.SuccessfulCalls)
	assert.Equal(t, int64(1), snap.FailedCalls)
	assert.Equal(t, int64(2), snap.Retries)
	assert.Equal(t, 50.0, snap.SuccessRate)
	assert.InDelta(t, 200.0, snap.AvgLatencyMs, 0.01)
}

func TestRPCMetrics_EmptySnapshot(t *testing.T) {
	t.Parallel()

	snap := NewRPCMetrics("ethereum").Snapshot()
	assert.Equal(t, 100.0, snap.SuccessRate)
	assert.Zero(t, snap.AvgLatencyMs)
}

func TestRPCMetrics_ConcurrentRecording(t *testing.T) {
	t.Parallel()

	m := NewRPCMetrics("ethereum")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordSuccess(time.Millisecond)
				m.RecordRetry()
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(1000), snap.TotalCalls)
	assert.Equal(t, int64(1000), snap.SuccessfulCalls)
	assert.Equal(t, int64(1000), snap.Retries)
	assert.Equal(t, 100.0, snap.SuccessRate)
}

func TestRegistry_GatherIncludesAllCollectors(t *testing.T) {
	t.Parallel()

	NewRPCMetrics("gather-chain").RecordSuccess(time.Millisecond)
	cache.GetMetrics().Init("gather-chain")
	pool.GetMetrics().Init("gather-chain")
	circuitbreaker.GetMetrics().Init("gather-breaker")

	r := NewRegistry()
	families, err := r.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["apex_rpc_calls_total"])
	assert.True(t, names["apex_rpc_latency_seconds"])
	assert.True(t, names["apex_cache_hits_total"])
	assert.True(t, names["apex_cache_entries"])
	assert.True(t, names["apex_pool_healthy_endpoints"])
	assert.True(t, names["apex_circuitbreaker_state"])
}

func TestRegistry_IndependentInstances(t *testing.T) {
	t.Parallel()

	r1 := NewRegistry()
	r2 := NewRegistry()

	_, err := r1.Gather()
	require.NoError(t, err)
	_, err = r2.Gather()
	require.NoError(t, err)
	assert.NotSame(t, r1.Prometheus(), r2.Prometheus())
}

func TestRegistry_Handler(t *testing.T) {
	t.Parallel()

	NewRPCMetrics("handler-chain").RecordSuccess(time.Millisecond)
	r := NewRegistry()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "apex_rpc_calls_total")
}
