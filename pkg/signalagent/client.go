// Package signalagent implements the mydlink Signal Agent (SA) protocol:
// a JSON-over-WebSocket command/event session to a DCD relay. The relay is
// the only path to Gen2 devices; the client never talks to a device
// directly.
package signalagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultSignInTimeout  = 10 * time.Second
	defaultCommandTimeout = 10 * time.Second
)

var (
	// ErrNotSignedIn indicates a command was issued before the sign_in
	// handshake completed. The client does not self-heal; the owner must
	// reconnect.
	ErrNotSignedIn = errors.New("not signed in to relay")

	// ErrTimeout indicates no response arrived within the command timeout.
	ErrTimeout = errors.New("relay request timed out")
)

// ConnectionState describes the lifecycle of a Signal Agent session.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateSignedIn
	StateDegraded
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSignedIn:
		return "signed_in"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Listener receives device state changes pushed by the relay.
// Callbacks arrive on the transport's receive goroutine.
type Listener interface {
	OnSwitchStateChanged(deviceID string, on bool)
	OnPowerChanged(deviceID string, watts float64)
	OnConnectionStateChanged(connected bool)
}

// Client is a Signal Agent session over one Transport. A client instance
// covers one physical connection; reconnection builds a fresh client.
type Client struct {
	email       string
	accessToken string

	transport *Transport
	pending   *pendingTable
	seq       atomic.Int32

	signInTimeout  time.Duration
	commandTimeout time.Duration

	listenerMu sync.RWMutex
	listener   Listener

	stateMu  sync.Mutex
	state    ConnectionState
	signedIn atomic.Bool

	lostOnce sync.Once
}

// NewClient creates a Signal Agent client for the given account identity.
func NewClient(accessToken, email string) *Client {
	c := &Client{
		email:          email,
		accessToken:    accessToken,
		pending:        newPendingTable(),
		state:          StateDisconnected,
		signInTimeout:  defaultSignInTimeout,
		commandTimeout: defaultCommandTimeout,
	}
	c.transport = NewTransport(c)
	return c
}

// SetListener sets the state change listener. Set before Connect.
func (c *Client) SetListener(l Listener) {
	c.listenerMu.Lock()
	c.listener = l
	c.listenerMu.Unlock()
}

func (c *Client) getListener() Listener {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.listener
}

// Connect opens the relay connection and performs the sign_in handshake.
// On any failure the transport is released and the caller owns the retry.
func (c *Client) Connect(ctx context.Context, relayURL string) error {
	c.setState(StateConnecting)

	if err := c.transport.Open(ctx, relayURL); err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("connect relay: %w", err)
	}

	if err := c.signIn(ctx); err != nil {
		c.transport.Close()
		c.setState(StateDisconnected)
		return err
	}

	c.signedIn.Store(true)
	c.setState(StateSignedIn)

	log.Info().Str("owner", c.email).Msg("Signed in to DCD relay")

	return nil
}

// signIn sends the handshake and awaits its response.
func (c *Client) signIn(ctx context.Context) error {
	seq := c.nextSeq()

	payload, err := encodeSignIn(seq, c.email, c.accessToken, time.Now())
	if err != nil {
		return fmt.Errorf("encode sign_in: %w", err)
	}

	req := c.pending.register(seq)

	if err := c.transport.Send(payload); err != nil {
		c.pending.expire(seq)
		return fmt.Errorf("send sign_in: %w", err)
	}

	msg, ok := c.await(ctx, req, c.signInTimeout)
	if !ok {
		return fmt.Errorf("sign_in: %w", ErrTimeout)
	}

	if code := msg.responseCode(); code != codeSuccess {
		return fmt.Errorf("sign_in rejected: code=%d message=%q", code, msg.Message)
	}

	return nil
}

// SwitchPlug switches the plug identified by deviceToken on or off. Only
// permitted while signed in; a not-signed-in client fails fast without
// sending a frame. Success is a direct code-0 response or, because the
// relay prioritizes state-confirmation events over direct replies for this
// command family, a setting-change event resolving the request.
func (c *Client) SwitchPlug(ctx context.Context, deviceToken string, on bool) error {
	if !c.signedIn.Load() {
		return ErrNotSignedIn
	}

	seq := c.nextSeq()

	payload, err := encodeSetSetting(seq, deviceToken, on, time.Now())
	if err != nil {
		return fmt.Errorf("encode set_setting: %w", err)
	}

	req := c.pending.register(seq)

	if err := c.transport.Send(payload); err != nil {
		c.pending.expire(seq)
		return fmt.Errorf("send set_setting: %w", err)
	}

	msg, ok := c.await(ctx, req, c.commandTimeout)
	if !ok {
		return fmt.Errorf("set_setting: %w", ErrTimeout)
	}

	if code := msg.responseCode(); code != codeSuccess {
		return fmt.Errorf("set_setting rejected: code=%d message=%q", code, msg.Message)
	}

	log.Debug().Bool("on", on).Msg("Switch command acknowledged")

	return nil
}

// await blocks until the slot resolves, the timeout elapses, or ctx is
// cancelled. Timeouts race resolution; whichever fires first wins and the
// loser is a no-op.
func (c *Client) await(ctx context.Context, req *pendingRequest, timeout time.Duration) (Message, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-req.ch:
		return msg, true
	case <-timer.C:
	case <-ctx.Done():
	}

	c.pending.expire(req.seq)

	// A response may have landed between the timeout firing and the slot
	// being expired; prefer it over the timeout.
	select {
	case msg := <-req.ch:
		return msg, true
	default:
		return Message{}, false
	}
}

// Disconnect closes the relay connection and releases transport resources.
func (c *Client) Disconnect() {
	c.signedIn.Store(false)
	c.transport.Close()
	c.setState(StateDisconnected)
}

// IsConnected reports whether the session is open and signed in.
func (c *Client) IsConnected() bool {
	return c.signedIn.Load() && c.transport.IsOpen()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Client) setState(s ConnectionState) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

func (c *Client) nextSeq() int {
	return int(c.seq.Add(1))
}

// --- TransportHandler implementation ---

// OnText processes one inbound frame: correlation resolution first, then
// event dispatch, independently. Malformed frames are dropped; the session
// continues.
func (c *Client) OnText(raw []byte) {
	msg, err := parseMessage(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Dropping malformed relay frame")
		return
	}

	if msg.SequenceID != nil {
		c.pending.resolve(*msg.SequenceID, msg)
	}

	if msg.Command == cmdEvent {
		c.handleEvent(msg)
	}
}

// OnClose marks the session degraded. Close and error may both fire for a
// single physical disconnect; the listener is notified exactly once.
func (c *Client) OnClose(code int, reason string) {
	log.Debug().Int("code", code).Str("reason", reason).Msg("Relay connection closed")
	c.connectionLost()
}

// OnError reports a transport failure and degrades the session.
func (c *Client) OnError(err error) {
	log.Error().Err(err).Msg("Relay connection error")
	c.connectionLost()
}

func (c *Client) connectionLost() {
	c.lostOnce.Do(func() {
		c.signedIn.Store(false)

		c.stateMu.Lock()
		if c.state != StateDisconnected {
			c.state = StateDegraded
		}
		c.stateMu.Unlock()

		if l := c.getListener(); l != nil {
			l.OnConnectionStateChanged(false)
		}
	})
}

// handleEvent routes a setting-change event to the listener and applies the
// event-confirmation fallback for in-flight commands.
func (c *Client) handleEvent(msg Message) {
	if msg.eventType() != EventSettingChange {
		log.Debug().Int("type", msg.eventType()).Msg("Unhandled relay event")
		return
	}

	// The relay does not guarantee a direct set_setting reply; the
	// setting-change event doubles as the confirmation. Resolve the oldest
	// pending request as a synthetic success, one per event, whether or
	// not the payload correlates with that request.
	code := codeSuccess
	c.pending.resolveOldest(Message{Code: &code})

	if msg.Metadata == nil {
		return
	}

	listener := c.getListener()
	if listener == nil {
		return
	}

	settingType := 0
	if msg.Metadata.Type != nil {
		settingType = *msg.Metadata.Type
	}

	switch settingType {
	case SettingTypePlug:
		on := msg.Metadata.Value != nil && *msg.Metadata.Value == 1
		log.Debug().Str("device", msg.DeviceID).Bool("on", on).Msg("Switch state changed")
		listener.OnSwitchStateChanged(msg.DeviceID, on)
	case SettingTypePower:
		var watts float64
		if msg.Metadata.Value != nil {
			watts = *msg.Metadata.Value
		}
		log.Debug().Str("device", msg.DeviceID).Float64("watts", watts).Msg("Power changed")
		listener.OnPowerChanged(msg.DeviceID, watts)
	default:
		// Unrecognized setting types are ignored without error.
	}
}
