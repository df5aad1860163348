// Package wstransport adapts github.com/gorilla/websocket into the narrow
// transport interface the session Supervisor depends on: connect, send,
// close, and a single serialized stream of inbound callbacks. The read-pump
// goroutine and idempotent-close structure are grounded on the scanner
// goroutine and sync.Once shutdown pattern used by the pack's stdio
// transport, adapted from line-oriented stdin reads to websocket frame
// reads.
package wstransport

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wsdurable/client/pkg/logging"
	"github.com/wsdurable/client/pkg/wserrors"
)

// Handlers is the set of callbacks the Transport Adapter delivers one at a
// time: OnOpen from Connect before the read pump starts, the others on the
// single internal read-pump goroutine. Implementations must not block for
// long, since a blocked handler stalls delivery of subsequent frames.
type Handlers struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func(code int, reason string)
	OnError   func(err error)
}

// Transport is the narrow surface the Supervisor uses to talk to a single
// WebSocket connection attempt. A Transport is single-use: Connect dials
// once, Close tears down once, and a fresh Transport is constructed for each
// connection attempt.
type Transport interface {
	// Connect dials url and starts the read pump. It blocks until the
	// handshake completes, ctx is canceled, or the dialer's handshake
	// timeout elapses.
	Connect(ctx context.Context, url string, header http.Header) error
	// Send writes a single text frame. Safe for concurrent use.
	Send(data []byte) error
	// Close closes the underlying connection. Idempotent.
	Close() error
}

// wsTransport is the gorilla/websocket-backed Transport implementation.
type wsTransport struct {
	dialer  *websocket.Dialer
	handler Handlers
	logger  logging.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	closeOnce sync.Once
	closed    chan struct{}

	stopOnce sync.Once
	closeErr error
}

// Option configures a wsTransport at construction time.
type Option func(*wsTransport)

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(logger logging.Logger) Option {
	return func(t *wsTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithHandshakeTimeout overrides the dialer's handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(t *wsTransport) {
		t.dialer.HandshakeTimeout = d
	}
}

// New constructs a Transport bound to handler for a single connection attempt.
func New(handler Handlers, opts ...Option) Transport {
	t := &wsTransport{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		handler: handler,
		logger:  logging.NewNop(),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *wsTransport) Connect(ctx context.Context, url string, header http.Header) error {
	conn, _, err := t.dialer.DialContext(ctx, url, header)
	if err != nil {
		return wserrors.TransientTransport("connect", err)
	}

	t.writeMu.Lock()
	t.conn = conn
	t.writeMu.Unlock()

	// on_open is delivered before the read pump starts, so it never runs
	// concurrently with on_message/on_close/on_error.
	if t.handler.OnOpen != nil {
		t.handler.OnOpen()
	}

	go t.readPump()
	return nil
}

// readPump is the single goroutine that owns reads from the connection,
// serializing on_message/on_close/on_error delivery the way the supervisor
// requires. It recovers from panics in handler code so one misbehaving
// callback does not take down the pump.
func (t *wsTransport) readPump() {
	defer t.signalClosed()

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.dispatchClose(err)
			return
		}
		t.dispatchMessage(data)
	}
}

func (t *wsTransport) dispatchMessage(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in on_message handler", logging.Any("recovered", r), logging.String("stack", string(debug.Stack())))
			if t.handler.OnError != nil {
				t.handler.OnError(wserrors.CallbackFailure("wstransport", fmt.Errorf("panic: %v", r)))
			}
		}
	}()
	if t.handler.OnMessage != nil {
		t.handler.OnMessage(data)
	}
}

func (t *wsTransport) dispatchClose(err error) {
	code := websocket.CloseAbnormalClosure
	reason := err.Error()
	if ce, ok := err.(*websocket.CloseError); ok {
		code = ce.Code
		reason = ce.Text
	}
	if t.handler.OnClose != nil {
		t.handler.OnClose(code, reason)
	}
}

func (t *wsTransport) signalClosed() {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
}

func (t *wsTransport) Send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.conn == nil {
		return wserrors.TransientTransport("send", fmt.Errorf("transport not connected"))
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return wserrors.TransientTransport("send", err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	t.stopOnce.Do(func() {
		t.writeMu.Lock()
		conn := t.conn
		t.writeMu.Unlock()

		if conn == nil {
			return
		}

		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		t.closeErr = conn.Close()
	})
	return t.closeErr
}
