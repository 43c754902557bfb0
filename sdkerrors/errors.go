// Package sdkerrors defines the error taxonomy shared across the SDK and the
// retryability classification used by the retry executor.
package sdkerrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error by its origin.
type Kind uint8

const (
	// KindUnknown is the zero value for errors that carry no classification.
	KindUnknown Kind = iota

	// KindConnection covers unreachable endpoints, dial failures, and
	// transport-level timeouts.
	KindConnection

	// KindOperation covers domain errors returned by a backend call.
	KindOperation

	// KindConfiguration covers invalid construction input such as an empty
	// endpoint list or a zero-capacity cache.
	KindConfiguration

	// KindValidation covers malformed caller input (addresses, hashes).
	KindValidation

	// KindUnsupportedChain covers operations against a chain family the SDK
	// has no adapter for.
	KindUnsupportedChain

	// KindCircuitOpen is the synthetic error produced by an open circuit
	// breaker short-circuiting a call.
	KindCircuitOpen
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindOperation:
		return "operation"
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindUnsupportedChain:
		return "unsupported_chain"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error is a classified SDK error. It optionally wraps an underlying cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil {
		if e.msg != "" {
			return e.msg + ": " + e.err.Error()
		}
		return e.err.Error()
	}
	return e.msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// Kind returns the error classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// New creates a classified error with a static message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error, preserving it as the unwrap target.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

// Connection creates a connection-kind error.
func Connection(format string, args ...any) *Error {
	return Newf(KindConnection, format, args...)
}

// Operation creates an operation-kind error.
func Operation(format string, args ...any) *Error {
	return Newf(KindOperation, format, args...)
}

// Configuration creates a configuration-kind error.
func Configuration(format string, args ...any) *Error {
	return Newf(KindConfiguration, format, args...)
}

// Validation creates a validation-kind error.
func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

// UnsupportedChain creates an unsupported-chain error.
func UnsupportedChain(chain string) *Error {
	return Newf(KindUnsupportedChain, "unsupported chain: %s", chain)
}

// KindOf returns the classification of err, unwrapping as needed.
// Unclassified errors report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// transientMarkers are message substrings that identify an otherwise
// unclassified failure as transient.
var transientMarkers = []string{
	"timeout",
	"network",
	"connection",
	"unavailable",
	"temporary",
}

// IsRetryable reports whether an operation failing with err is worth
// retrying. Connection-level and circuit-open failures are retryable,
// construction and input errors are not, and operation-level or
// unclassified errors are retryable only when their message carries a
// transient marker. Context cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch KindOf(err) {
	case KindConnection, KindCircuitOpen:
		return true
	case KindConfiguration, KindValidation, KindUnsupportedChain:
		return false
	default:
		return hasTransientMarker(err.Error())
	}
}

func hasTransientMarker(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
