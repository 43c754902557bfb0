package apex

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/apexlabs/apex-go/cache"
	"github.com/apexlabs/apex-go/circuitbreaker"
	"github.com/apexlabs/apex-go/config"
	"github.com/apexlabs/apex-go/metrics"
	"github.com/apexlabs/apex-go/observability"
	"github.com/apexlabs/apex-go/pool"
	"github.com/apexlabs/apex-go/ratelimit"
	"github.com/apexlabs/apex-go/retry"
	"github.com/apexlabs/apex-go/rpc"
	"github.com/apexlabs/apex-go/sdkerrors"
)

// tracerName is the OpenTelemetry tracer name for client operations.
const tracerName = "apex-go/client"

// metadataCacheSize bounds the chain metadata cache. One entry per
// metadata key is ever live, the headroom is for future keys.
const metadataCacheSize = 16

// Client is the per-chain SDK facade. Read queries are served from the
// multi-tier cache when fresh; misses go to a pooled endpoint through the
// circuit breaker and the retry executor, and every outcome feeds the
// endpoint's health record and the RPC statistics.
type Client struct {
	chain  string
	family string
	cfg    *config.Config
	logger observability.Logger
	tracer *observability.Tracer

	pool     *pool.Pool
	cache    *cache.ChainCache
	breaker  *circuitbreaker.Breaker
	limiter  *ratelimit.Limiter
	metadata *cache.Loader[string, string]

	rpcStats *metrics.RPCMetrics
	registry *metrics.Registry
	exporter *metrics.Exporter

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger observability.Logger
	dialer pool.Dialer
}

// WithLogger overrides the logger built from the logging configuration.
func WithLogger(logger observability.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithDialer overrides how pool connections are established. Tests use
// this to substitute stub transports.
func WithDialer(dialer pool.Dialer) Option {
	return func(o *clientOptions) {
		o.dialer = dialer
	}
}

// New creates a client for one configured chain and starts its
// background health checker and cache sweep. The health checker stops
// when ctx is cancelled or Close is called.
func New(ctx context.Context, cfg *config.Config, chain string, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, sdkerrors.Configuration("configuration is required")
	}
	chainCfg, ok := cfg.Chain(chain)
	if !ok {
		return nil, sdkerrors.Configuration("chain %q is not configured", chain)
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = newLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
	}

	tracer, err := newTracer(cfg.Tracing)
	if err != nil {
		return nil, err
	}

	dialer := o.dialer
	if dialer == nil {
		probeMethod := chainCfg.GetProbeMethod()
		dialer = func(endpoint string) (rpc.Conn, error) {
			return rpc.Dial(endpoint,
				rpc.WithProbeMethod(probeMethod),
				rpc.WithLogger(logger),
			)
		}
	}

	p, err := pool.New(chain, chainCfg.Endpoints, cfg.Pool,
		pool.WithLogger(logger),
		pool.WithDialer(dialer),
	)
	if err != nil {
		return nil, err
	}

	cc, err := cache.NewChainCache(chain, cfg.Cache, cache.WithLogger(logger))
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	metaCache, err := cache.New[string, string](metadataCacheSize)
	if err != nil {
		_ = cc.Close()
		_ = p.Close()
		return nil, err
	}

	var breaker *circuitbreaker.Breaker
	if cfg.CircuitBreaker != nil && cfg.CircuitBreaker.Enabled {
		breaker = circuitbreaker.New("rpc-"+chain, cfg.CircuitBreaker,
			circuitbreaker.WithLogger(logger))
	}

	rpcStats := metrics.NewRPCMetrics(chain)
	c := &Client{
		chain:    chain,
		family:   chainCfg.GetFamily(),
		cfg:      cfg,
		logger:   logger,
		tracer:   tracer,
		pool:     p,
		cache:    cc,
		breaker:  breaker,
		limiter:  ratelimit.FromConfig(cfg.RateLimit),
		metadata: cache.NewLoader(metaCache),
		rpcStats: rpcStats,
		registry: metrics.NewRegistry(),
	}
	c.exporter = metrics.NewExporter(chain, rpcStats,
		metrics.WithCacheStats(cc.Stats),
		metrics.WithHealthStatus(p.HealthStatus),
	)

	p.StartHealthChecker(ctx)

	logger.Info("client initialized",
		observability.String("chain", chain),
		observability.String("family", c.family),
		observability.Int("endpoints", p.Len()),
		observability.Bool("circuit_breaker", breaker != nil),
		observability.Bool("rate_limit", c.limiter != nil),
	)
	return c, nil
}

func newLogger(cfg *config.LoggingConfig) (observability.Logger, error) {
	lc := observability.DefaultLogConfig()
	if cfg != nil {
		if cfg.Level != "" {
			lc.Level = cfg.Level
		}
		if cfg.Format != "" {
			lc.Format = cfg.Format
		}
		if cfg.Output != "" {
			lc.Output = cfg.Output
		}
	}
	return observability.NewLogger(lc)
}

func newTracer(cfg *config.TracingConfig) (*observability.Tracer, error) {
	tc := observability.TracerConfig{ServiceName: "apex-go"}
	if cfg != nil {
		tc.Enabled = cfg.Enabled
		tc.OTLPEndpoint = cfg.OTLPEndpoint
		tc.SamplingRate = cfg.SamplingRate
		if cfg.ServiceName != "" {
			tc.ServiceName = cfg.ServiceName
		}
	}
	return observability.NewTracer(tc)
}

// Chain returns the chain name this client serves.
func (c *Client) Chain() string {
	return c.chain
}

// Family returns the chain family, "evm" or "substrate".
func (c *Client) Family() string {
	return c.family
}

// Balance returns the balance payload for an address. For EVM chains
// this is the hex-encoded wei amount at the latest block. Fresh cached
// values are served without touching the network.
func (c *Client) Balance(ctx context.Context, address string) (string, error) {
	if cached, ok := c.cache.GetBalance(ctx, address); ok {
		return cached, nil
	}
	if c.family == config.FamilySubstrate {
		return "", sdkerrors.Newf(sdkerrors.KindUnsupportedChain,
			"balance queries on %s require the substrate storage adapter", c.chain)
	}

	var balance string
	if err := c.call(ctx, "eth_getBalance", []any{address, "latest"}, &balance); err != nil {
		return "", err
	}
	c.cache.SetBalance(ctx, address, balance)
	return balance, nil
}

// TransactionStatus returns the raw receipt JSON for a transaction
// hash. A missing receipt is an operation error, not a cacheable value.
func (c *Client) TransactionStatus(ctx context.Context, hash string) (string, error) {
	if cached, ok := c.cache.GetTransactionStatus(ctx, hash); ok {
		return cached, nil
	}
	if c.family == config.FamilySubstrate {
		return "", sdkerrors.Newf(sdkerrors.KindUnsupportedChain,
			"transaction status on %s requires the substrate storage adapter", c.chain)
	}

	var raw json.RawMessage
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{hash}, &raw); err != nil {
		return "", err
	}
	if isNullResult(raw) {
		return "", sdkerrors.Newf(sdkerrors.KindOperation, "transaction %s not found", hash)
	}
	status := string(raw)
	c.cache.SetTransactionStatus(ctx, hash, status)
	return status, nil
}

// BlockByNumber returns the raw block JSON for a block number. Blocks
// are effectively immutable, so hits come from the long-TTL block tier.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (string, error) {
	if cached, ok := c.cache.GetBlock(ctx, number); ok {
		return cached, nil
	}

	var data string
	switch c.family {
	case config.FamilySubstrate:
		var hash string
		if err := c.call(ctx, "chain_getBlockHash", []any{number}, &hash); err != nil {
			return "", err
		}
		if hash == "" {
			return "", sdkerrors.Newf(sdkerrors.KindOperation, "block %d not found", number)
		}
		var raw json.RawMessage
		if err := c.call(ctx, "chain_getBlock", []any{hash}, &raw); err != nil {
			return "", err
		}
		data = string(raw)
	default:
		var raw json.RawMessage
		if err := c.call(ctx, "eth_getBlockByNumber", []any{hexUint(number), false}, &raw); err != nil {
			return "", err
		}
		if isNullResult(raw) {
			return "", sdkerrors.Newf(sdkerrors.KindOperation, "block %d not found", number)
		}
		data = string(raw)
	}

	c.cache.SetBlock(ctx, number, data)
	return data, nil
}

// ChainHeight returns the latest block number. Heights move every few
// seconds, so they are never cached.
func (c *Client) ChainHeight(ctx context.Context) (uint64, error) {
	switch c.family {
	case config.FamilySubstrate:
		var header struct {
			Number string `json:"number"`
		}
		if err := c.call(ctx, "chain_getHeader", nil, &header); err != nil {
			return 0, err
		}
		return parseHexUint(header.Number)
	default:
		var height string
		if err := c.call(ctx, "eth_blockNumber", nil, &height); err != nil {
			return 0, err
		}
		return parseHexUint(height)
	}
}

// SubmitTransaction broadcasts a signed raw transaction and returns the
// reported hash. Submissions bypass the cache entirely.
func (c *Client) SubmitTransaction(ctx context.Context, raw string) (string, error) {
	method := "eth_sendRawTransaction"
	if c.family == config.FamilySubstrate {
		method = "author_submitExtrinsic"
	}
	var hash string
	if err := c.call(ctx, method, []any{raw}, &hash); err != nil {
		return "", err
	}
	c.logger.Info("transaction submitted",
		observability.String("chain", c.chain),
		observability.String("hash", hash),
	)
	return hash, nil
}

// Metadata returns the chain metadata payload: the runtime metadata for
// substrate chains, the chain id for EVM chains. Concurrent misses are
// coalesced into a single backend fetch.
func (c *Client) Metadata(ctx context.Context) (string, error) {
	ttl := c.cfg.Cache.GetMetadataTTL().Duration()
	return c.metadata.GetOrCompute(ctx, "metadata", ttl, func(ctx context.Context) (string, error) {
		method := "eth_chainId"
		if c.family == config.FamilySubstrate {
			method = "state_getMetadata"
		}
		var meta string
		if err := c.call(ctx, method, nil, &meta); err != nil {
			return "", err
		}
		return meta, nil
	})
}

// call runs one RPC through the full recovery stack: rate limiter, then
// the retry executor, with each attempt passing through the circuit
// breaker to a round-robin pooled connection. Attempt outcomes feed the
// endpoint health record; the overall outcome feeds the RPC statistics.
func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "client.call",
		trace.WithAttributes(
			attribute.String("rpc.chain", c.chain),
			attribute.String("rpc.method", method),
		),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	start := time.Now()
	err := retry.Do(ctx, c.cfg.Retry, func() error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.attempt(ctx, method, params, result)
		})
	}, &retry.Options{
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			c.rpcStats.RecordRetry()
			c.logger.Warn("retrying rpc call",
				observability.String("chain", c.chain),
				observability.String("method", method),
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(err),
			)
		},
	})

	latency := time.Since(start)
	if err != nil {
		c.rpcStats.RecordFailure(latency)
		span.RecordError(err)
		return err
	}
	c.rpcStats.RecordSuccess(latency)
	return nil
}

// attempt performs a single call on the next pooled connection.
// Connection-kinded failures count against the endpoint; an RPC-level
// error still proves the endpoint answered, so it counts as healthy.
func (c *Client) attempt(ctx context.Context, method string, params []any, result any) error {
	conn := c.pool.Get()
	start := time.Now()
	if err := conn.Call(ctx, method, params, result); err != nil {
		if sdkerrors.KindOf(err) == sdkerrors.KindConnection {
			conn.ReportFailure()
		}
		return err
	}
	conn.ReportSuccess(time.Since(start))
	return nil
}

// RunHealthChecks probes every endpoint once, in parallel.
func (c *Client) RunHealthChecks(ctx context.Context) {
	c.pool.RunHealthChecks(ctx)
}

// CacheStats returns per-tier cache statistics.
func (c *Client) CacheStats() map[string]cache.Stats {
	return c.cache.Stats()
}

// ClearCache drops every cached entry across all tiers.
func (c *Client) ClearCache(ctx context.Context) {
	c.cache.ClearAll(ctx)
}

// HealthStatus returns a health snapshot per endpoint, in configuration
// order.
func (c *Client) HealthStatus() []pool.HealthSnapshot {
	return c.pool.HealthStatus()
}

// RPCStats returns a snapshot of the RPC call statistics.
func (c *Client) RPCStats() metrics.RPCSnapshot {
	return c.rpcStats.Snapshot()
}

// BreakerState returns the circuit breaker state, closed when breaking
// is disabled.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// MetricsHandler returns an HTTP handler exposing every SDK collector
// in the Prometheus exposition format.
func (c *Client) MetricsHandler() http.Handler {
	return c.registry.Handler()
}

// ExportMetrics renders the current statistics as a Prometheus text
// document without needing a scrape endpoint.
func (c *Client) ExportMetrics() string {
	return c.exporter.String()
}

// Close stops the health checker and cache sweep and closes every
// pooled connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.cache.Close()
		if err := c.pool.Close(); err != nil && c.closeErr == nil {
			c.closeErr = err
		}
		if c.tracer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.tracer.Shutdown(ctx); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}
		c.logger.Info("client closed", observability.String("chain", c.chain))
	})
	return c.closeErr
}

func hexUint(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

func parseHexUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, sdkerrors.Wrap(sdkerrors.KindOperation, err, "malformed block height")
	}
	return v, nil
}

func isNullResult(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
