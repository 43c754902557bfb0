package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/apexlabs/apex-go/observability"
	"github.com/apexlabs/apex-go/sdkerrors"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long the read side tolerates silence before the
	// connection is considered dead.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait so pings keep the read
	// deadline fresh.
	pingPeriod = (pongWait * 9) / 10
)

// wsConn multiplexes concurrent calls over one socket. Each call registers
// a pending channel keyed by a UUID request id; the read loop routes
// responses back by id. Writes are serialized by a mutex as required by
// gorilla/websocket.
type wsConn struct {
	endpoint    string
	conn        *websocket.Conn
	probeMethod string
	logger      observability.Logger

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *response

	closeOnce sync.Once
	closedCh  chan struct{}
	closeErr  error
}

func dialWS(endpoint string, o *options) (*wsConn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.dialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: o.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, o.headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.KindConnection, err, "websocket dial failed")
	}

	c := &wsConn{
		endpoint:    endpoint,
		conn:        conn,
		probeMethod: o.probeMethod,
		logger:      o.logger,
		pending:     make(map[string]chan *response),
		closedCh:    make(chan struct{}),
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *wsConn) Call(ctx context.Context, method string, params, result any) error {
	select {
	case <-c.closedCh:
		return sdkerrors.Connection("websocket connection to %s is closed", c.endpoint)
	default:
	}

	id := uuid.NewString()
	ch := make(chan *response, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer c.removePending(id)

	if err := c.write(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return sdkerrors.Wrap(sdkerrors.KindConnection, err, "websocket write failed")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closedCh:
		return sdkerrors.Connection("websocket connection to %s closed mid-call", c.endpoint)
	case resp := <-ch:
		return finishCall(resp, result)
	}
}

func (c *wsConn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) removePending(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// readLoop routes responses to their pending calls until the socket dies.
func (c *wsConn) readLoop() {
	defer c.teardown()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read failed",
					observability.String("endpoint", c.endpoint),
					observability.Error(err),
				)
			}
			return
		}
		c.dispatch(&resp)
	}
}

func (c *wsConn) dispatch(resp *response) {
	var id string
	if err := json.Unmarshal(resp.ID, &id); err != nil {
		// Server notification or an id shape we never sent.
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- resp
	}
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closedCh:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// teardown closes the socket and releases every waiting call via closedCh.
func (c *wsConn) teardown() {
	c.closeOnce.Do(func() {
		close(c.closedCh)
		c.closeErr = c.conn.Close()
	})
}

func (c *wsConn) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var result json.RawMessage
	if err := c.Call(ctx, c.probeMethod, nil, &result); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func (c *wsConn) Endpoint() string {
	return c.endpoint
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()

	c.teardown()
	return c.closeErr
}
