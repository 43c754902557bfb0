package metrics

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apexlabs/apex-go/cache"
	"github.com/apexlabs/apex-go/pool"
)

// Exporter renders SDK statistics in the Prometheus text exposition
// format from snapshots, for callers that want metrics output without
// running a scrape endpoint. Cache and pool sections are included when
// their snapshot providers are configured.
type Exporter struct {
	chain        string
	startTime    time.Time
	rpc          *RPCMetrics
	cacheStats   func() map[string]cache.Stats
	healthStatus func() []pool.HealthSnapshot
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithCacheStats adds a per-tier cache stats section to the output.
func WithCacheStats(fn func() map[string]cache.Stats) ExporterOption {
	return func(e *Exporter) {
		e.cacheStats = fn
	}
}

// WithHealthStatus adds a pool health section to the output.
func WithHealthStatus(fn func() []pool.HealthSnapshot) ExporterOption {
	return func(e *Exporter) {
		e.healthStatus = fn
	}
}

// NewExporter creates an exporter for one chain. Uptime is measured
// from this call.
func NewExporter(chain string, rpc *RPCMetrics, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		chain:     chain,
		startTime: time.Now(),
		rpc:       rpc,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Uptime returns how long the exporter has existed.
func (e *Exporter) Uptime() time.Duration {
	return time.Since(e.startTime)
}

// String renders the full exposition document.
func (e *Exporter) String() string {
	var b strings.Builder

	var snap RPCSnapshot
	if e.rpc != nil {
		snap = e.rpc.Snapshot()
	} else {
		snap.SuccessRate = 100.0
	}
	chainLabel := fmt.Sprintf("{chain=%q}", e.chain)

	header(&b, "apex_rpc_calls_total", "Total number of RPC calls.", "counter")
	fmt.Fprintf(&b, "apex_rpc_calls_total%s %d\n", chainLabel, snap.TotalCalls)

	header(&b, "apex_rpc_calls_successful", "Successful RPC calls.", "counter")
	fmt.Fprintf(&b, "apex_rpc_calls_successful%s %d\n", chainLabel, snap.SuccessfulCalls)

	header(&b, "apex_rpc_calls_failed", "Failed RPC calls.", "counter")
	fmt.Fprintf(&b, "apex_rpc_calls_failed%s %d\n", chainLabel, snap.FailedCalls)

	header(&b, "apex_rpc_retries_total", "Total number of RPC retry attempts.", "counter")
	fmt.Fprintf(&b, "apex_rpc_retries_total%s %d\n", chainLabel, snap.Retries)

	header(&b, "apex_rpc_success_rate", "RPC success rate percentage.", "gauge")
	fmt.Fprintf(&b, "apex_rpc_success_rate%s %s\n", chainLabel, formatFloat(snap.SuccessRate))

	header(&b, "apex_rpc_latency_avg_ms", "Average RPC latency in milliseconds.", "gauge")
	fmt.Fprintf(&b, "apex_rpc_latency_avg_ms%s %s\n", chainLabel, formatFloat(snap.AvgLatencyMs))

	if e.cacheStats != nil {
		e.writeCacheSection(&b)
	}
	if e.healthStatus != nil {
		e.writePoolSection(&b)
	}

	header(&b, "apex_uptime_seconds", "Uptime in seconds.", "counter")
	fmt.Fprintf(&b, "apex_uptime_seconds %d\n", int64(e.Uptime().Seconds()))

	return b.String()
}

func (e *Exporter) writeCacheSection(b *strings.Builder) {
	stats := e.cacheStats()
	tiers := make([]string, 0, len(stats))
	for tier := range stats {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)

	header(b, "apex_cache_hit_rate", "Cache hit rate percentage per tier.", "gauge")
	for _, tier := range tiers {
		fmt.Fprintf(b, "apex_cache_hit_rate{chain=%q,tier=%q} %s\n",
			e.chain, tier, formatFloat(stats[tier].HitRate()))
	}

	header(b, "apex_cache_entries", "Live cache entries per tier.", "gauge")
	for _, tier := range tiers {
		fmt.Fprintf(b, "apex_cache_entries{chain=%q,tier=%q} %d\n",
			e.chain, tier, stats[tier].Entries)
	}
}

func (e *Exporter) writePoolSection(b *strings.Builder) {
	status := e.healthStatus()
	healthy := 0
	for _, s := range status {
		if s.Healthy {
			healthy++
		}
	}
	chainLabel := fmt.Sprintf("{chain=%q}", e.chain)

	header(b, "apex_pool_endpoints", "Number of endpoints in the pool.", "gauge")
	fmt.Fprintf(b, "apex_pool_endpoints%s %d\n", chainLabel, len(status))

	header(b, "apex_pool_healthy_endpoints", "Number of healthy endpoints.", "gauge")
	fmt.Fprintf(b, "apex_pool_healthy_endpoints%s %d\n", chainLabel, healthy)
}

// WriteTo writes the exposition document to w.
func (e *Exporter) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, e.String())
	return int64(n), err
}

func header(b *strings.Builder, name, help, typ string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
