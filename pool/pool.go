package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apexlabs/apex-go/config"
	"github.com/apexlabs/apex-go/observability"
	"github.com/apexlabs/apex-go/rpc"
	"github.com/apexlabs/apex-go/sdkerrors"
)

// Dialer creates a connection to an endpoint.
type Dialer func(endpoint string) (rpc.Conn, error)

// PooledConn is one endpoint's connection plus its health record. Multiple
// callers may use the same PooledConn concurrently.
type PooledConn struct {
	endpoint string
	dialer   Dialer
	logger   observability.Logger
	health   *EndpointHealth

	mu   sync.RWMutex
	conn rpc.Conn // nil until a dial has succeeded
}

// Endpoint returns the endpoint URL.
func (pc *PooledConn) Endpoint() string {
	return pc.endpoint
}

// Health returns a snapshot of the endpoint's health.
func (pc *PooledConn) Health() HealthSnapshot {
	return pc.health.snapshot(pc.endpoint)
}

// Call invokes a JSON-RPC method on the endpoint, dialing first if no
// connection is established yet. Call does not touch health state; callers
// report outcomes through ReportSuccess and ReportFailure.
func (pc *PooledConn) Call(ctx context.Context, method string, params, result any) error {
	conn, err := pc.live()
	if err != nil {
		return err
	}
	return conn.Call(ctx, method, params, result)
}

// Probe measures endpoint liveness, dialing first when needed.
func (pc *PooledConn) Probe(ctx context.Context) (time.Duration, error) {
	conn, err := pc.live()
	if err != nil {
		return 0, err
	}
	return conn.Probe(ctx)
}

// ReportSuccess records a successful operation and its observed latency.
func (pc *PooledConn) ReportSuccess(latency time.Duration) {
	pc.health.markHealthy(latency)
}

// ReportFailure records a failed operation against the endpoint's health.
func (pc *PooledConn) ReportFailure() {
	if pc.health.markUnhealthy() {
		pc.logger.Warn("endpoint marked unhealthy",
			observability.String("endpoint", pc.endpoint),
		)
	}
}

// live returns the established connection, redialing endpoints whose
// initial dial failed.
func (pc *PooledConn) live() (rpc.Conn, error) {
	pc.mu.RLock()
	conn := pc.conn
	pc.mu.RUnlock()
	if conn != nil {
		return conn, nil
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.conn != nil {
		return pc.conn, nil
	}

	conn, err := pc.dialer(pc.endpoint)
	if err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.KindConnection, err, "endpoint dial failed")
	}
	pc.conn = conn
	return conn, nil
}

func (pc *PooledConn) close() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.conn == nil {
		return nil
	}
	err := pc.conn.Close()
	pc.conn = nil
	return err
}

// Pool holds one PooledConn per endpoint of a chain and selects between
// them by round-robin.
type Pool struct {
	chain  string
	cfg    *config.PoolConfig
	dialer Dialer
	logger observability.Logger

	mu    sync.RWMutex
	conns []*PooledConn

	cursor atomic.Uint64

	checkerMu sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// Option is a functional option for configuring a Pool.
type Option func(*Pool)

// WithLogger sets the logger for the pool.
func WithLogger(logger observability.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithDialer sets the function used to connect to endpoints. The default
// dials by URL scheme via rpc.Dial.
func WithDialer(dialer Dialer) Option {
	return func(p *Pool) {
		p.dialer = dialer
	}
}

// New creates a pool over the given endpoints. Per-endpoint dial failures
// are tolerated: the endpoint is admitted unhealthy and redialed later.
// Only an empty endpoint list fails construction.
func New(chain string, endpoints []string, cfg *config.PoolConfig, opts ...Option) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, sdkerrors.Configuration("connection pool requires at least one endpoint")
	}

	p := &Pool{
		chain:  chain,
		cfg:    cfg,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dialer == nil {
		p.dialer = func(endpoint string) (rpc.Conn, error) {
			return rpc.Dial(endpoint)
		}
	}

	p.logger.Info("creating connection pool",
		observability.String("chain", chain),
		observability.Int("endpoints", len(endpoints)),
	)

	for _, endpoint := range endpoints {
		pc := &PooledConn{
			endpoint: endpoint,
			dialer:   p.dialer,
			logger:   p.logger,
			health:   newEndpointHealth(cfg.GetMaxFailures()),
		}

		conn, err := p.dialer(endpoint)
		if err != nil {
			p.logger.Warn("failed to connect to endpoint",
				observability.String("chain", chain),
				observability.String("endpoint", endpoint),
				observability.Error(err),
			)
			pc.health.markDialFailed()
		} else {
			pc.conn = conn
			p.logger.Debug("connected to endpoint",
				observability.String("chain", chain),
				observability.String("endpoint", endpoint),
			)
		}

		p.conns = append(p.conns, pc)
	}

	GetMetrics().Init(chain)
	p.syncGauges()

	return p, nil
}

// Get selects a connection by round-robin. Unhealthy endpoints are skipped
// unless their retry delay has elapsed, in which case one is offered
// optimistically without flipping its health. If every probe fails, Get
// falls back to the first connection; it never returns nil for a
// constructed pool.
func (p *Pool) Get() *PooledConn {
	p.mu.RLock()
	defer p.mu.RUnlock()

	total := uint64(len(p.conns))
	retryDelay := p.cfg.GetUnhealthyRetryDelay().Duration()

	for attempts := uint64(0); attempts < total; attempts++ {
		pc := p.conns[(p.cursor.Add(1)-1)%total]

		if pc.health.isHealthy() {
			return pc
		}

		if last := pc.health.lastFailureTime(); !last.IsZero() && time.Since(last) > retryDelay {
			p.logger.Info("retrying previously unhealthy endpoint",
				observability.String("chain", p.chain),
				observability.String("endpoint", pc.endpoint),
			)
			return pc
		}
	}

	p.logger.Warn("all endpoints unhealthy, returning first endpoint",
		observability.String("chain", p.chain),
	)
	return p.conns[0]
}

// Len returns the number of pooled endpoints.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// HealthyCount returns how many endpoints are currently healthy.
func (p *Pool) HealthyCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	healthy := 0
	for _, pc := range p.conns {
		if pc.health.isHealthy() {
			healthy++
		}
	}
	return healthy
}

// HealthStatus returns a health snapshot per endpoint, in pool order.
func (p *Pool) HealthStatus() []HealthSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := make([]HealthSnapshot, 0, len(p.conns))
	for _, pc := range p.conns {
		status = append(status, pc.Health())
	}
	return status
}

// RunHealthChecks probes every endpoint once, in parallel. Each probe's
// outcome updates only its own endpoint; one failure never aborts the rest.
func (p *Pool) RunHealthChecks(ctx context.Context) {
	p.mu.RLock()
	conns := make([]*PooledConn, len(p.conns))
	copy(conns, p.conns)
	p.mu.RUnlock()

	timeout := p.cfg.GetHealthCheckTimeout().Duration()

	var wg sync.WaitGroup
	for _, pc := range conns {
		wg.Add(1)
		go func(pc *PooledConn) {
			defer wg.Done()
			p.checkConn(ctx, pc, timeout)
		}(pc)
	}
	wg.Wait()

	p.syncGauges()
}

func (p *Pool) checkConn(ctx context.Context, pc *PooledConn, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m := GetMetrics()

	latency, err := pc.Probe(ctx)
	if err != nil {
		pc.ReportFailure()
		m.healthChecksTotal.WithLabelValues(p.chain, "failure").Inc()
		p.logger.Warn("health check failed",
			observability.String("chain", p.chain),
			observability.String("endpoint", pc.endpoint),
			observability.Error(err),
		)
		return
	}

	pc.ReportSuccess(latency)
	m.healthChecksTotal.WithLabelValues(p.chain, "success").Inc()
	m.probeDuration.WithLabelValues(p.chain).Observe(latency.Seconds())
	p.logger.Debug("health check passed",
		observability.String("chain", p.chain),
		observability.String("endpoint", pc.endpoint),
		observability.Duration("latency", latency),
	)
}

// StartHealthChecker begins periodic health checks in the background. It
// is a no-op if the checker is already running.
func (p *Pool) StartHealthChecker(ctx context.Context) {
	p.checkerMu.Lock()
	if p.running {
		p.checkerMu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.stoppedCh = make(chan struct{})
	stopCh, stoppedCh := p.stopCh, p.stoppedCh
	p.checkerMu.Unlock()

	go p.run(ctx, stopCh, stoppedCh)
}

func (p *Pool) run(ctx context.Context, stopCh <-chan struct{}, stoppedCh chan<- struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(p.cfg.GetHealthCheckInterval().Duration())
	defer ticker.Stop()

	p.RunHealthChecks(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			p.RunHealthChecks(ctx)
		}
	}
}

// StopHealthChecker stops the background checker and waits for it to
// finish. It is a no-op if the checker was never started.
func (p *Pool) StopHealthChecker() {
	p.checkerMu.Lock()
	if !p.running {
		p.checkerMu.Unlock()
		return
	}
	p.running = false
	stopCh, stoppedCh := p.stopCh, p.stoppedCh
	p.checkerMu.Unlock()

	close(stopCh)
	<-stoppedCh
}

// Close stops the health checker and closes every connection.
func (p *Pool) Close() error {
	p.StopHealthChecker()

	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, pc := range p.conns {
		if err := pc.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pool) syncGauges() {
	m := GetMetrics()
	m.endpoints.WithLabelValues(p.chain).Set(float64(p.Len()))
	m.healthyEndpoints.WithLabelValues(p.chain).Set(float64(p.HealthyCount()))
}
