// Package circuitbreaker guards a dependency with a three-state breaker.
//
// A closed breaker executes operations directly and counts consecutive
// failures. Reaching the failure threshold opens it, and an open breaker
// rejects calls with ErrCircuitOpen without executing them until the
// cooldown elapses. The first call after cooldown moves the breaker to
// half-open, where successes count toward closing it again and a failure
// sends it straight back to open.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/apexlabs/apex-go/config"
	"github.com/apexlabs/apex-go/observability"
	"github.com/apexlabs/apex-go/sdkerrors"
)

// ErrCircuitOpen is returned for calls rejected while the breaker is open.
// It carries KindCircuitOpen, so an outer retry layer treats it as
// retryable once the cooldown has elapsed.
var ErrCircuitOpen = sdkerrors.New(sdkerrors.KindCircuitOpen, "circuit breaker is open")

// State is the breaker state.
type State int32

const (
	// StateClosed is the normal state: operations execute directly.
	StateClosed State = iota
	// StateOpen rejects every call until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets calls through while probing for recovery.
	StateHalfOpen
)

// String returns the state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Operation is a call guarded by the breaker.
type Operation func(ctx context.Context) error

// OnStateChangeFunc is invoked synchronously on every state transition.
// It runs with the breaker lock held and must not call back into the
// breaker.
type OnStateChangeFunc func(name string, from, to State)

// Counts is a point-in-time snapshot of the breaker counters.
type Counts struct {
	// FailureCount is the consecutive-failure streak. Any success
	// resets it.
	FailureCount int `json:"failureCount"`

	// SuccessCount is the half-open success streak. It resets each
	// time the breaker enters half-open.
	SuccessCount int `json:"successCount"`

	// LastFailure is when the most recent failure was recorded.
	LastFailure time.Time `json:"lastFailure"`
}

// Breaker is a circuit breaker for a single logical dependency.
//
// State transitions are serialized by an internal mutex; the guarded
// operation itself runs outside the lock, so several half-open probes may
// run concurrently. A nil *Breaker is valid and executes operations
// without any guarding.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	logger           observability.Logger
	onStateChange    OnStateChangeFunc

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	lastFailure  time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithLogger sets the logger used for state-transition messages.
func WithLogger(logger observability.Logger) Option {
	return func(b *Breaker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithOnStateChange registers a callback invoked on every transition.
func WithOnStateChange(fn OnStateChangeFunc) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// New creates a closed breaker named after the dependency it guards.
// A nil cfg uses the defaults (5 failures to open, 2 half-open successes
// to close, 30s cooldown).
func New(name string, cfg *config.CircuitBreakerConfig, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: cfg.GetFailureThreshold(),
		successThreshold: cfg.GetSuccessThreshold(),
		timeout:          cfg.GetTimeout().Duration(),
		logger:           observability.NopLogger(),
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	GetMetrics().Init(name)
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// State returns the current state. An open breaker reports open until a
// call arrives after the cooldown, matching the transition-on-call model.
func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns a snapshot of the breaker counters.
func (b *Breaker) Counts() Counts {
	if b == nil {
		return Counts{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return Counts{
		FailureCount: b.failureCount,
		SuccessCount: b.successCount,
		LastFailure:  b.lastFailure,
	}
}

// Execute runs op through the breaker. While open and inside the
// cooldown it returns ErrCircuitOpen without invoking op; otherwise op's
// own error is returned unchanged and recorded as a success or failure.
func (b *Breaker) Execute(ctx context.Context, op Operation) error {
	if b == nil {
		return op(ctx)
	}
	if err := b.allow(time.Now()); err != nil {
		return err
	}
	if err := op(ctx); err != nil {
		b.recordFailure(time.Now())
		return err
	}
	b.recordSuccess()
	return nil
}

// ExecuteWithResult runs op through b and returns its value. On
// rejection or failure the zero value is returned with the error.
func ExecuteWithResult[T any](ctx context.Context, b *Breaker, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// allow decides whether a call may proceed, moving an open breaker to
// half-open once the cooldown has elapsed.
func (b *Breaker) allow(now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return nil
	}
	if now.Sub(b.lastFailure) > b.timeout {
		b.successCount = 0
		b.transitionLocked(StateHalfOpen)
		return nil
	}
	GetMetrics().rejectionsTotal.WithLabelValues(b.name).Inc()
	return ErrCircuitOpen
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	if b.state == StateHalfOpen {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.transitionLocked(StateClosed)
		}
	}
}

func (b *Breaker) recordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailure = now
	if b.failureCount >= b.failureThreshold {
		b.transitionLocked(StateOpen)
	}
}

// transitionLocked moves the breaker to a new state. Callers must hold
// b.mu.
func (b *Breaker) transitionLocked(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to

	m := GetMetrics()
	m.state.WithLabelValues(b.name).Set(float64(to))
	switch to {
	case StateOpen:
		m.tripsTotal.WithLabelValues(b.name).Inc()
		b.logger.Warn("circuit breaker opened",
			observability.String("breaker", b.name),
			observability.Int("failures", b.failureCount),
		)
	case StateHalfOpen:
		b.logger.Info("circuit breaker half-open, probing",
			observability.String("breaker", b.name),
		)
	case StateClosed:
		b.logger.Info("circuit breaker closed",
			observability.String("breaker", b.name),
			observability.Int("successes", b.successCount),
		)
	}

	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}
