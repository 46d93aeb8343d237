package signalagent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeRelay is an in-process DCD relay endpoint. The scenario function runs
// per connection and drives the server side of the conversation.
type fakeRelay struct {
	server   *httptest.Server
	upgrader websocket.Upgrader
}

func newFakeRelay(t *testing.T, scenario func(conn *websocket.Conn)) *fakeRelay {
	t.Helper()

	relay := &fakeRelay{
		upgrader: websocket.Upgrader{
			Subprotocols: []string{subProtocol},
			CheckOrigin:  func(r *http.Request) bool { return true },
		},
	}

	relay.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := relay.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		scenario(conn)
	}))
	t.Cleanup(relay.server.Close)

	return relay
}

func (r *fakeRelay) url() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

// readFrame reads and decodes the next client frame.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Errorf("relay read failed: %v", err)
		return nil
	}
	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Errorf("relay decode failed: %v", err)
		return nil
	}
	return frame
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()

	raw, err := json.Marshal(frame)
	if err != nil {
		t.Errorf("relay encode failed: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Errorf("relay write failed: %v", err)
	}
}

// acceptSignIn answers the handshake with code 0 and returns its frame.
func acceptSignIn(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	frame := readFrame(t, conn)
	if frame == nil {
		return nil
	}
	if frame["command"] != "sign_in" {
		t.Errorf("expected sign_in first, got %v", frame["command"])
	}
	writeFrame(t, conn, map[string]any{
		"command":     "sign_in",
		"sequence_id": frame["sequence_id"],
		"code":        0,
	})
	return frame
}

// recordingListener captures listener callbacks for assertions.
type recordingListener struct {
	mu            sync.Mutex
	switchEvents  []bool
	powerEvents   []float64
	disconnects   int
	lastDeviceID  string
	disconnected  chan struct{}
	disconnectOne sync.Once
}

func newRecordingListener() *recordingListener {
	return &recordingListener{disconnected: make(chan struct{})}
}

func (l *recordingListener) OnSwitchStateChanged(deviceID string, on bool) {
	l.mu.Lock()
	l.switchEvents = append(l.switchEvents, on)
	l.lastDeviceID = deviceID
	l.mu.Unlock()
}

func (l *recordingListener) OnPowerChanged(deviceID string, watts float64) {
	l.mu.Lock()
	l.powerEvents = append(l.powerEvents, watts)
	l.lastDeviceID = deviceID
	l.mu.Unlock()
}

func (l *recordingListener) OnConnectionStateChanged(connected bool) {
	l.mu.Lock()
	if !connected {
		l.disconnects++
	}
	l.mu.Unlock()
	if !connected {
		l.disconnectOne.Do(func() { close(l.disconnected) })
	}
}

func TestClient_ConnectSignsIn(t *testing.T) {
	hold := make(chan struct{})
	relay := newFakeRelay(t, func(conn *websocket.Conn) {
		frame := acceptSignIn(t, conn)
		if frame["owner_id"] != "user@example.com" {
			t.Errorf("expected owner_id from email, got %v", frame["owner_id"])
		}
		<-hold
	})
	defer close(hold)

	client := NewClient("token", "user@example.com")
	defer client.Disconnect()

	if err := client.Connect(context.Background(), relay.url()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if !client.IsConnected() {
		t.Error("expected client connected after sign-in")
	}
	if client.State() != StateSignedIn {
		t.Errorf("expected signed_in state, got %s", client.State())
	}
}

func TestClient_SignInRejected(t *testing.T) {
	relay := newFakeRelay(t, func(conn *websocket.Conn) {
		frame := readFrame(t, conn)
		if frame == nil {
			return
		}
		writeFrame(t, conn, map[string]any{
			"command":     "sign_in",
			"sequence_id": frame["sequence_id"],
			"code":        401,
			"message":     "invalid token",
		})
	})

	client := NewClient("bad-token", "user@example.com")

	err := client.Connect(context.Background(), relay.url())
	if err == nil {
		t.Fatal("expected sign-in rejection error")
	}
	if !strings.Contains(err.Error(), "code=401") {
		t.Errorf("expected rejection code in error, got: %v", err)
	}
	if client.IsConnected() {
		t.Error("rejected client must not report connected")
	}
}

func TestClient_SignInContextCancelled(t *testing.T) {
	relay := newFakeRelay(t, func(conn *websocket.Conn) {
		// Swallow the handshake and never answer.
		readFrame(t, conn)
		time.Sleep(time.Second)
	})

	client := NewClient("token", "user@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := client.Connect(ctx, relay.url())
	if err == nil {
		t.Fatal("expected timeout error for silent relay")
	}
	if client.IsConnected() {
		t.Error("timed-out client must not report connected")
	}
}

func TestClient_SignInTimeout(t *testing.T) {
	relay := newFakeRelay(t, func(conn *websocket.Conn) {
		// Swallow the handshake and never answer.
		readFrame(t, conn)
		time.Sleep(time.Second)
	})

	client := NewClient("token", "user@example.com")
	client.signInTimeout = 100 * time.Millisecond

	// The context stays live: the sign-in deadline itself has to fire.
	err := client.Connect(context.Background(), relay.url())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout from silent relay, got %v", err)
	}
	if client.IsConnected() {
		t.Error("timed-out client must not report connected")
	}
	if client.State() != StateDisconnected {
		t.Errorf("expected disconnected state, got %s", client.State())
	}
}

func TestClient_SwitchPlugNotSignedIn(t *testing.T) {
	client := NewClient("token", "user@example.com")

	err := client.SwitchPlug(context.Background(), "device-token", true)
	if err != ErrNotSignedIn {
		t.Errorf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestClient_SwitchPlugDirectResponse(t *testing.T) {
	hold := make(chan struct{})
	relay := newFakeRelay(t, func(conn *websocket.Conn) {
		acceptSignIn(t, conn)

		frame := readFrame(t, conn)
		if frame == nil {
			return
		}
		if frame["command"] != "set_setting" {
			t.Errorf("expected set_setting, got %v", frame["command"])
		}
		if frame["device_id"] != "device-token" {
			t.Errorf("expected device token, got %v", frame["device_id"])
		}
		writeFrame(t, conn, map[string]any{
			"command":     "set_setting",
			"sequence_id": frame["sequence_id"],
			"code":        0,
		})
		<-hold
	})
	defer close(hold)

	client := NewClient("token", "user@example.com")
	defer client.Disconnect()

	if err := client.Connect(context.Background(), relay.url()); err != nil {
		t.Fatal(err)
	}

	if err := client.SwitchPlug(context.Background(), "device-token", true); err != nil {
		t.Errorf("expected switch to succeed, got %v", err)
	}
}

func TestClient_SwitchPlugConfirmedByEvent(t *testing.T) {
	hold := make(chan struct{})
	relay := newFakeRelay(t, func(conn *websocket.Conn) {
		acceptSignIn(t, conn)

		frame := readFrame(t, conn)
		if frame == nil {
			return
		}
		// No direct response: confirm with a setting-change event instead.
		writeFrame(t, conn, map[string]any{
			"command":   "event",
			"type":      EventSettingChange,
			"device_id": "device-token",
			"metadata":  map[string]any{"type": SettingTypePlug, "value": 1},
		})
		<-hold
	})
	defer close(hold)

	client := NewClient("token", "user@example.com")
	defer client.Disconnect()

	listener := newRecordingListener()
	client.SetListener(listener)

	if err := client.Connect(context.Background(), relay.url()); err != nil {
		t.Fatal(err)
	}

	if err := client.SwitchPlug(context.Background(), "device-token", true); err != nil {
		t.Errorf("expected event-confirmed switch to succeed, got %v", err)
	}

	// The confirmation event still reaches the listener.
	deadline := time.After(time.Second)
	for {
		listener.mu.Lock()
		n := len(listener.switchEvents)
		listener.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected listener to receive the switch event")
		case <-time.After(10 * time.Millisecond):
		}
	}

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if !listener.switchEvents[0] {
		t.Error("expected on=true from event value 1")
	}
	if listener.lastDeviceID != "device-token" {
		t.Errorf("expected device token in event, got %q", listener.lastDeviceID)
	}
}

func TestClient_PowerEvent(t *testing.T) {
	hold := make(chan struct{})
	relay := newFakeRelay(t, func(conn *websocket.Conn) {
		acceptSignIn(t, conn)
		writeFrame(t, conn, map[string]any{
			"command":   "event",
			"type":      EventSettingChange,
			"device_id": "device-token",
			"metadata":  map[string]any{"type": SettingTypePower, "value": 12.5},
		})
		<-hold
	})
	defer close(hold)

	client := NewClient("token", "user@example.com")
	defer client.Disconnect()

	listener := newRecordingListener()
	client.SetListener(listener)

	if err := client.Connect(context.Background(), relay.url()); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		listener.mu.Lock()
		n := len(listener.powerEvents)
		listener.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected listener to receive the power event")
		case <-time.After(10 * time.Millisecond):
		}
	}

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if listener.powerEvents[0] != 12.5 {
		t.Errorf("expected 12.5 watts, got %v", listener.powerEvents[0])
	}
}

func TestClient_DisconnectNotifiedOnce(t *testing.T) {
	relay := newFakeRelay(t, func(conn *websocket.Conn) {
		acceptSignIn(t, conn)
		// Drop the connection without a close handshake.
		conn.Close()
	})

	client := NewClient("token", "user@example.com")
	listener := newRecordingListener()
	client.SetListener(listener)

	if err := client.Connect(context.Background(), relay.url()); err != nil {
		t.Fatal(err)
	}

	select {
	case <-listener.disconnected:
	case <-time.After(time.Second):
		t.Fatal("expected a disconnect notification")
	}

	// Give any duplicate callback a moment to land.
	time.Sleep(50 * time.Millisecond)

	listener.mu.Lock()
	defer listener.mu.Unlock()
	if listener.disconnects != 1 {
		t.Errorf("expected exactly one disconnect notification, got %d", listener.disconnects)
	}

	if client.IsConnected() {
		t.Error("client must not report connected after the link dropped")
	}
	if client.State() != StateDegraded {
		t.Errorf("expected degraded state, got %s", client.State())
	}
}

func TestClient_MalformedFrameIsDropped(t *testing.T) {
	hold := make(chan struct{})
	relay := newFakeRelay(t, func(conn *websocket.Conn) {
		acceptSignIn(t, conn)
		if err := conn.WriteMessage(websocket.TextMessage, []byte("{broken")); err != nil {
			t.Errorf("relay write failed: %v", err)
		}

		frame := readFrame(t, conn)
		if frame == nil {
			return
		}
		writeFrame(t, conn, map[string]any{
			"command":     "set_setting",
			"sequence_id": frame["sequence_id"],
			"code":        0,
		})
		<-hold
	})
	defer close(hold)

	client := NewClient("token", "user@example.com")
	defer client.Disconnect()

	if err := client.Connect(context.Background(), relay.url()); err != nil {
		t.Fatal(err)
	}

	// The session survives the bad frame and still serves commands.
	if err := client.SwitchPlug(context.Background(), "device-token", false); err != nil {
		t.Errorf("expected command to succeed after malformed frame, got %v", err)
	}
}
