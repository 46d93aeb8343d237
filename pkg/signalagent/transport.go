package signalagent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	connectTimeout = 10 * time.Second
	writeTimeout   = 5 * time.Second
	readLimit      = 512 * 1024
)

// TransportHandler receives transport lifecycle and frame callbacks.
// Callbacks are invoked from the transport's receive goroutine; handlers
// must not block on operations whose completion depends on further frames.
type TransportHandler interface {
	OnText(msg []byte)
	OnClose(code int, reason string)
	OnError(err error)
}

// Transport owns a single WebSocket connection to a DCD relay endpoint.
// It is purely mechanical: no sign-in or retry logic lives here.
type Transport struct {
	handler TransportHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	open      atomic.Bool
	closeOnce sync.Once
}

// NewTransport creates a transport delivering callbacks to handler.
func NewTransport(handler TransportHandler) *Transport {
	return &Transport{handler: handler}
}

// Open dials the relay and starts the receive loop. The upgrade carries the
// mydlink sub-protocol token and Origin header the relay requires.
func (t *Transport) Open(ctx context.Context, relayURL string) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: connectTimeout,
		Subprotocols:     []string{subProtocol},
	}

	header := http.Header{}
	header.Set("Origin", wsOrigin)

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, relayURL, header)
	if err != nil {
		status := "unknown"
		if resp != nil {
			status = resp.Status
		}
		return fmt.Errorf("dial relay (http=%s): %w", status, err)
	}

	conn.SetReadLimit(readLimit)

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.open.Store(true)

	log.Debug().Str("url", relayURL).Msg("Relay transport open")

	go t.readLoop(conn)

	return nil
}

// IsOpen returns true while the connection is established.
func (t *Transport) IsOpen() bool {
	return t.open.Load()
}

// Send writes a single text frame. Callers deciding control flow must check
// IsOpen first; sending on a closed transport only logs and errors.
func (t *Transport) Send(text []byte) error {
	if !t.open.Load() {
		log.Warn().Msg("Relay transport not open, dropping frame")
		return errors.New("transport not open")
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New("transport not open")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, text)
}

// readLoop delivers inbound frames until the connection dies.
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			t.open.Store(false)

			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				t.handler.OnClose(closeErr.Code, closeErr.Text)
			} else {
				t.handler.OnError(err)
				t.handler.OnClose(websocket.CloseAbnormalClosure, err.Error())
			}
			return
		}

		if msgType == websocket.TextMessage {
			t.handler.OnText(msg)
		}
	}
}

// Close is idempotent and releases the underlying connection.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		t.open.Store(false)

		t.mu.Lock()
		conn := t.conn
		t.conn = nil
		t.mu.Unlock()

		if conn != nil {
			t.writeMu.Lock()
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "disconnect"),
				time.Now().Add(writeTimeout),
			)
			t.writeMu.Unlock()
			_ = conn.Close()
		}
	})
}
