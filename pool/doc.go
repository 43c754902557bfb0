// Package pool manages a set of JSON-RPC connections to a chain's
// endpoints with round-robin selection and health tracking.
//
// Every endpoint is admitted at construction, even when its initial dial
// fails; a failed endpoint starts unhealthy and is redialed on demand.
// Selection skips unhealthy endpoints until their retry delay elapses,
// then offers them optimistically. When every endpoint is unhealthy the
// pool still hands out the first connection rather than failing, leaving
// the retry layer to deal with the outcome.
//
// Health state moves on two inputs: callers report per-operation outcomes
// through ReportSuccess and ReportFailure, and a background checker probes
// every endpoint on an interval.
package pool
