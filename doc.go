// Package apex is a multi-chain blockchain SDK built around resilient
// RPC access: a health-aware connection pool with round-robin selection,
// a multi-tier TTL cache for read-heavy queries, retry with exponential
// backoff and jitter, per-chain circuit breaking, and client-side rate
// limiting.
//
// A Client is created per chain from a single Config:
//
//	cfg, err := config.Load("apex.yaml")
//	if err != nil {
//		return err
//	}
//	client, err := apex.New(ctx, cfg, "ethereum")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	balance, err := client.Balance(ctx, "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb7")
//
// Reads check the cache first; misses go to a pooled endpoint through the
// circuit breaker and retry executor, and the outcome feeds the
// endpoint's health record. Call statistics are available as snapshots
// (RPCStats, CacheStats, HealthStatus), as a Prometheus scrape handler
// (MetricsHandler), and as a rendered text exposition (ExportMetrics).
package apex
