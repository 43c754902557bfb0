// Package ratelimit provides a client-side request throttle.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/apexlabs/apex-go/config"
)

// Limiter throttles outgoing requests to a sustained rate with a burst
// allowance. A nil *Limiter never blocks, so callers can hold one
// unconditionally and leave throttling disabled by configuration.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing rps sustained requests per second with
// the given burst. Non-positive rps returns a nil limiter.
func New(rps, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = rps
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// FromConfig creates a limiter from configuration, nil when throttling
// is disabled.
func FromConfig(cfg *config.RateLimitConfig) *Limiter {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return New(cfg.RPS, cfg.GetBurst())
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed right now.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// Reserve returns a reservation for a future request. The caller is
// expected to honor its delay. Returns nil when throttling is disabled.
func (l *Limiter) Reserve() *rate.Reservation {
	if l == nil {
		return nil
	}
	return l.limiter.Reserve()
}

// Limit returns the sustained rate, Inf when throttling is disabled.
func (l *Limiter) Limit() rate.Limit {
	if l == nil {
		return rate.Inf
	}
	return l.limiter.Limit()
}

// Burst returns the burst allowance, 0 when throttling is disabled.
func (l *Limiter) Burst() int {
	if l == nil {
		return 0
	}
	return l.limiter.Burst()
}
