// Package plug drives mydlink smart plugs through the cloud REST API and
// the Signal Agent relay protocol. A Session owns one plug's relay
// connection; the Controller aggregates sessions behind device.Controller.
package plug

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sebmichel83/mydlink-hub/pkg/device"
	"github.com/sebmichel83/mydlink-hub/pkg/mydlink"
	"github.com/sebmichel83/mydlink-hub/pkg/signalagent"
)

const reconnectDelay = 60 * time.Second

// Account is the slice of the mydlink REST client a session needs.
type Account interface {
	Devices(ctx context.Context) ([]mydlink.Device, error)
	DeviceInfo(ctx context.Context, mydlinkID, mac string) (*mydlink.DeviceInfo, error)
	AccessToken() string
	Email() string
}

// RelayClient is the slice of the Signal Agent client a session needs.
type RelayClient interface {
	SetListener(signalagent.Listener)
	Connect(ctx context.Context, relayURL string) error
	SwitchPlug(ctx context.Context, deviceToken string, on bool) error
	Disconnect()
	IsConnected() bool
}

// RelayDialer builds a fresh relay client for one connection attempt.
type RelayDialer func(accessToken, email string) RelayClient

func defaultRelayDialer(accessToken, email string) RelayClient {
	return signalagent.NewClient(accessToken, email)
}

// sessionEvent notifies the owning controller of a state or availability
// change originating inside the session.
type sessionEvent func(deviceID, eventType string)

// Session is the lifecycle of one plug: device info resolution, the Signal
// Agent connection, state tracking, and timed reconnection after failures.
type Session struct {
	deviceID string
	account  Account
	dial     RelayDialer
	notify   sessionEvent

	mu          sync.Mutex
	mac         string
	info        *mydlink.DeviceInfo
	client      RelayClient
	reconnect   *time.Timer
	closed      bool
	switchState *bool
	power       float64
	online      bool
}

// NewSession creates a session for one plug. mac may be empty; it is then
// resolved from the account's device list on connect. notify may be nil.
func NewSession(deviceID, mac string, account Account, dial RelayDialer, notify sessionEvent) *Session {
	if dial == nil {
		dial = defaultRelayDialer
	}
	if notify == nil {
		notify = func(string, string) {}
	}
	return &Session{
		deviceID: deviceID,
		mac:      mac,
		account:  account,
		dial:     dial,
		notify:   notify,
	}
}

// DeviceID returns the mydlink device id this session drives.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// Connect resolves device details and establishes the relay session.
// Configuration problems are terminal and reported as
// device.ErrConfiguration; communication failures schedule a retry after
// the reconnect delay and return a plain error.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	mac := s.mac
	s.mu.Unlock()

	if mac == "" {
		resolved, err := s.resolveMAC(ctx)
		if err != nil {
			return err
		}
		mac = resolved
		s.mu.Lock()
		s.mac = mac
		s.mu.Unlock()
	}

	info, err := s.account.DeviceInfo(ctx, s.deviceID, mac)
	if err != nil {
		s.scheduleReconnect()
		return fmt.Errorf("fetch device info: %w", err)
	}

	s.mu.Lock()
	s.info = info
	if info.SwitchState != nil {
		s.switchState = info.SwitchState
	}
	s.mu.Unlock()

	// Offline is checked before the coordinate validation: an offline plug
	// may legitimately have no relay coordinates in its cloud record, and
	// that is a communication problem, not a configuration one.
	if !info.Online {
		s.setOnline(false)
		s.scheduleReconnect()
		return fmt.Errorf("device %s is offline", s.deviceID)
	}

	if info.DCDURL == "" || info.DeviceToken == "" {
		return fmt.Errorf("%w: device %s has no relay coordinates", device.ErrConfiguration, s.deviceID)
	}
	if s.account.AccessToken() == "" || s.account.Email() == "" {
		return fmt.Errorf("%w: account has no active session", device.ErrConfiguration)
	}

	client := s.dial(s.account.AccessToken(), s.account.Email())
	client.SetListener(s)

	if err := client.Connect(ctx, info.DCDURL); err != nil {
		s.scheduleReconnect()
		return fmt.Errorf("relay connect: %w", err)
	}

	s.mu.Lock()
	old := s.client
	s.client = client
	s.mu.Unlock()
	if old != nil {
		old.Disconnect()
	}

	s.setOnline(true)

	log.Info().Str("device", s.deviceID).Msg("Plug session established")

	return nil
}

// resolveMAC looks the device up in the account registry.
func (s *Session) resolveMAC(ctx context.Context) (string, error) {
	devices, err := s.account.Devices(ctx)
	if err != nil {
		s.scheduleReconnect()
		return "", fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devices {
		if d.MydlinkID == s.deviceID {
			return d.MAC, nil
		}
	}
	return "", fmt.Errorf("%w: device %s not registered to account", device.ErrConfiguration, s.deviceID)
}

// Switch turns the plug on or off over the relay. Without a live signed-in
// relay session it attempts a fresh connect right away instead of waiting
// for the reconnect timer.
func (s *Session) Switch(ctx context.Context, on bool) error {
	s.mu.Lock()
	client := s.client
	info := s.info
	s.mu.Unlock()

	if client == nil || !client.IsConnected() || info == nil {
		if err := s.Connect(ctx); err != nil {
			return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
		}
		s.mu.Lock()
		client = s.client
		info = s.info
		s.mu.Unlock()
	}

	if client == nil || !client.IsConnected() || info == nil {
		return device.ErrNotConnected
	}

	if err := client.SwitchPlug(ctx, info.DeviceToken, on); err != nil {
		return err
	}

	s.mu.Lock()
	s.switchState = &on
	s.mu.Unlock()

	s.notify(s.deviceID, device.EventStateChanged)

	return nil
}

// RefreshState reconciles cached state with the cloud record. Online and
// offline transitions drive the relay connection: a device that came back
// reconnects, one that dropped off tears the session down until the next
// cycle.
func (s *Session) RefreshState(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	mac := s.mac
	s.mu.Unlock()

	if mac == "" {
		return
	}

	info, err := s.account.DeviceInfo(ctx, s.deviceID, mac)
	if err != nil {
		log.Warn().Err(err).Str("device", s.deviceID).Msg("State refresh failed")
		return
	}

	s.mu.Lock()
	s.info = info
	if info.SwitchState != nil {
		s.switchState = info.SwitchState
	}
	wasOnline := s.online
	connected := s.client != nil && s.client.IsConnected()
	s.mu.Unlock()

	if info.SwitchState != nil {
		s.notify(s.deviceID, device.EventStateChanged)
	}

	switch {
	case info.Online && !connected:
		if err := s.Connect(ctx); err != nil {
			log.Warn().Err(err).Str("device", s.deviceID).Msg("Reconnect during refresh failed")
		}
	case !info.Online && wasOnline:
		log.Warn().Str("device", s.deviceID).Msg("Device went offline")
		s.setOnline(false)
	}
}

// State returns the session's view of the plug.
func (s *Session) State() device.DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := device.DeviceState{
		"online": s.online,
		"power":  s.power,
	}
	if s.switchState != nil {
		state["state"] = onOff(*s.switchState)
	}
	return state
}

// Online reports the session's availability view.
func (s *Session) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Info returns the last fetched device record, nil before the first
// successful connect.
func (s *Session) Info() *mydlink.DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *Session) setOnline(online bool) {
	s.mu.Lock()
	changed := s.online != online
	s.online = online
	s.mu.Unlock()

	if changed {
		if online {
			s.notify(s.deviceID, device.EventDeviceOnline)
		} else {
			s.notify(s.deviceID, device.EventDeviceOffline)
		}
	}
}

// scheduleReconnect arms a single retry after the reconnect delay,
// replacing any already pending one.
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.reconnect != nil {
		s.reconnect.Stop()
	}

	s.reconnect = time.AfterFunc(reconnectDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Connect(ctx); err != nil {
			log.Warn().Err(err).Str("device", s.deviceID).Msg("Reconnect attempt failed")
		}
	})

	log.Debug().Str("device", s.deviceID).Dur("delay", reconnectDelay).Msg("Scheduled reconnect")
}

// Close tears the session down. A closed session never reconnects.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
}

// --- signalagent.Listener implementation ---

// OnSwitchStateChanged applies relay-pushed switch changes. Events carry
// the device token, not the mydlink id; foreign tokens are ignored.
func (s *Session) OnSwitchStateChanged(deviceID string, on bool) {
	s.mu.Lock()
	if s.info == nil || s.info.DeviceToken != deviceID {
		s.mu.Unlock()
		return
	}
	s.switchState = &on
	s.mu.Unlock()

	log.Debug().Str("device", s.deviceID).Bool("on", on).Msg("Switch state pushed by relay")

	s.notify(s.deviceID, device.EventStateChanged)
}

// OnPowerChanged applies relay-pushed power readings.
func (s *Session) OnPowerChanged(deviceID string, watts float64) {
	s.mu.Lock()
	if s.info == nil || s.info.DeviceToken != deviceID {
		s.mu.Unlock()
		return
	}
	s.power = watts
	s.mu.Unlock()

	s.notify(s.deviceID, device.EventStateChanged)
}

// OnConnectionStateChanged reacts to relay connection loss.
func (s *Session) OnConnectionStateChanged(connected bool) {
	if connected {
		return
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	log.Warn().Str("device", s.deviceID).Msg("Lost relay connection")

	s.setOnline(false)
	s.scheduleReconnect()
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
