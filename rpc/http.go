package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/apexlabs/apex-go/observability"
	"github.com/apexlabs/apex-go/sdkerrors"
)

// httpConn issues one POST per call. Request ids are a process-local
// counter; responses arrive on the same round-trip, so ids are not used
// for correlation.
type httpConn struct {
	endpoint    string
	client      *http.Client
	headers     http.Header
	probeMethod string
	logger      observability.Logger
	nextID      atomic.Uint64
}

func newHTTPConn(endpoint string, o *options) *httpConn {
	client := o.httpClient
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &httpConn{
		endpoint:    endpoint,
		client:      client,
		headers:     o.headers,
		probeMethod: o.probeMethod,
		logger:      o.logger,
	}
}

func (c *httpConn) Call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return sdkerrors.Wrap(sdkerrors.KindOperation, err, "marshal rpc request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return sdkerrors.Wrap(sdkerrors.KindOperation, err, "build rpc request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, values := range c.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return sdkerrors.Wrap(sdkerrors.KindConnection, err, "rpc request failed")
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return sdkerrors.Connection("endpoint %s returned HTTP %d", c.endpoint, httpResp.StatusCode)
	}

	var resp response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return sdkerrors.Wrap(sdkerrors.KindOperation, err, "decode rpc response")
	}

	return finishCall(&resp, result)
}

func (c *httpConn) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var result json.RawMessage
	if err := c.Call(ctx, c.probeMethod, nil, &result); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func (c *httpConn) Endpoint() string {
	return c.endpoint
}

func (c *httpConn) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
