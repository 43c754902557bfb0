// Package rpc implements JSON-RPC 2.0 client connections over HTTP and
// WebSocket transports.
//
// Dial picks the transport from the endpoint URL scheme: http and https
// endpoints issue one POST per call, ws and wss endpoints hold a persistent
// socket and multiplex concurrent calls by request id. Both transports
// satisfy Conn, so callers never branch on the transport.
//
// Transport failures carry the connection error kind and are retryable;
// error objects returned by the node carry the operation kind and are not.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apexlabs/apex-go/observability"
	"github.com/apexlabs/apex-go/sdkerrors"
)

// Conn is a JSON-RPC 2.0 connection to a single endpoint. Implementations
// are safe for concurrent use.
type Conn interface {
	// Call invokes method with params and unmarshals the response into
	// result. A nil result discards the response payload.
	Call(ctx context.Context, method string, params, result any) error

	// Probe issues the configured probe method and returns the round-trip
	// latency.
	Probe(ctx context.Context) (time.Duration, error)

	// Endpoint returns the URL this connection targets.
	Endpoint() string

	// Close releases the connection's resources.
	Close() error
}

// request is a JSON-RPC 2.0 request envelope.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// response is a JSON-RPC 2.0 response envelope.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// rpcError is the JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// finishCall maps a decoded response envelope onto the caller's result.
func finishCall(resp *response, result any) error {
	if resp.Error != nil {
		return sdkerrors.Wrap(sdkerrors.KindOperation, resp.Error, "rpc call failed")
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return sdkerrors.Wrap(sdkerrors.KindOperation, err, "unmarshal rpc result")
	}
	return nil
}

// Default connection parameters.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultDialTimeout    = 10 * time.Second
	DefaultProbeMethod    = "eth_blockNumber"
)

type options struct {
	httpClient  *http.Client
	probeMethod string
	headers     http.Header
	logger      observability.Logger
	dialTimeout time.Duration
}

func defaultOptions() *options {
	return &options{
		probeMethod: DefaultProbeMethod,
		headers:     http.Header{},
		logger:      observability.NopLogger(),
		dialTimeout: DefaultDialTimeout,
	}
}

// Option is a functional option for configuring a connection.
type Option func(*options)

// WithHTTPClient sets the HTTP client used by http and https connections.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithProbeMethod sets the method Probe issues, for example eth_blockNumber
// or chain_getHeader.
func WithProbeMethod(method string) Option {
	return func(o *options) {
		if method != "" {
			o.probeMethod = method
		}
	}
}

// WithHeader adds a header to every request, typically for endpoint
// API keys.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers.Add(key, value)
	}
}

// WithLogger sets the logger for the connection.
func WithLogger(logger observability.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDialTimeout bounds WebSocket handshake time.
func WithDialTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.dialTimeout = timeout
		}
	}
}

// Dial connects to endpoint and returns a Conn for its URL scheme. HTTP
// connections are lazy and cannot fail here; WebSocket connections perform
// the handshake and return a connection error on failure.
func Dial(endpoint string, opts ...Option) (Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.KindConfiguration, err, "invalid endpoint URL")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return newHTTPConn(endpoint, o), nil
	case "ws", "wss":
		return dialWS(endpoint, o)
	default:
		return nil, sdkerrors.Configuration("unsupported endpoint scheme %q", u.Scheme)
	}
}
