// Package retry provides exponential backoff retry for chain operations.
//
// Errors are classified through the error kinds in sdkerrors by default:
// connection-flavored failures retry, configuration and validation
// failures do not, and context cancellation always stops the loop. The
// terminal error is returned unchanged so callers keep the root cause.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/apexlabs/apex-go/config"
	"github.com/apexlabs/apex-go/sdkerrors"
)

// RetryableFunc is an operation that can be retried.
type RetryableFunc func() error

// ShouldRetryFunc determines if an error should trigger a retry.
type ShouldRetryFunc func(error) bool

// OnRetryFunc is called before each retry sleep with the upcoming attempt
// number (1-based), the error that caused it, and the backoff duration.
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

// Options contains optional retry behavior configuration.
type Options struct {
	// ShouldRetry determines if an error should trigger a retry.
	// If nil, sdkerrors.IsRetryable decides.
	ShouldRetry ShouldRetryFunc

	// OnRetry is called before each retry attempt.
	OnRetry OnRetryFunc
}

// Do executes fn until it succeeds, fails with a non-retryable error, or
// exhausts cfg's retry budget. The first invocation is attempt 0; up to
// MaxRetries further attempts follow. The last error is returned unchanged.
func Do(ctx context.Context, cfg *config.RetryConfig, fn RetryableFunc, opts *Options) error {
	maxRetries := cfg.GetMaxRetries()
	initialBackoff := cfg.GetInitialBackoff().Duration()
	maxBackoff := cfg.GetMaxBackoff().Duration()
	multiplier := cfg.GetMultiplier()
	jitter := cfg.GetJitter()

	shouldRetry := ShouldRetryFunc(sdkerrors.IsRetryable)
	if opts != nil && opts.ShouldRetry != nil {
		shouldRetry = opts.ShouldRetry
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !shouldRetry(lastErr) {
			return lastErr
		}

		// No sleep after the final attempt.
		if attempt < maxRetries {
			backoff := Backoff(attempt, initialBackoff, maxBackoff, multiplier, jitter)

			if opts != nil && opts.OnRetry != nil {
				opts.OnRetry(attempt+1, lastErr, backoff)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return lastErr
}

// DoWithResult executes fn with the same retry semantics as Do and returns
// its value.
func DoWithResult[T any](ctx context.Context, cfg *config.RetryConfig, fn func() (T, error), opts *Options) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	}, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Backoff computes the sleep that follows the given attempt (0-based):
// initialBackoff * multiplier^attempt, capped at maxBackoff. With jitter
// the result is scaled by a uniform random factor in [0.85, 1.15) so
// concurrent callers spread out instead of retrying in lockstep.
func Backoff(attempt int, initialBackoff, maxBackoff time.Duration, multiplier float64, jitter bool) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(multiplier, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	if jitter {
		//nolint:gosec // G404: retry timing does not require cryptographic randomness
		backoff *= 1.0 + (rand.Float64()*0.3 - 0.15)
	}

	return time.Duration(backoff)
}
