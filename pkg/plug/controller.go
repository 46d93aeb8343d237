package plug

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sebmichel83/mydlink-hub/pkg/device"
	"github.com/sebmichel83/mydlink-hub/pkg/mydlink"
)

const pollInterval = 60 * time.Second

// ControllerAccount extends Account with the account lifecycle operations
// the controller owns.
type ControllerAccount interface {
	Account
	Login(ctx context.Context, email, password string) error
	UserInfo(ctx context.Context) (*mydlink.UserInfo, error)
	IsTokenValid() bool
	Close()
}

// NameStore persists locally assigned device names. The cloud API has no
// rename call usable by third parties, so renames are local only.
type NameStore interface {
	DeviceName(id string) (string, bool)
	SetDeviceName(id, name string) error
	DeleteDeviceName(id string) error
}

// Controller implements device.Controller and device.EventSubscriber for
// mydlink smart plugs reached through the cloud relay.
type Controller struct {
	account ControllerAccount
	email   string
	passwd  string
	names   NameStore
	dial    RelayDialer

	sessionsMu sync.RWMutex
	sessions   map[string]*Session
	registry   map[string]mydlink.Device

	subscribersMu sync.Mutex
	subscribers   []chan device.DiscoveryEvent

	stopChan chan struct{}
	stopOnce sync.Once
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithAccount substitutes the REST client, used by tests.
func WithAccount(a ControllerAccount) ControllerOption {
	return func(c *Controller) { c.account = a }
}

// WithRelayDialer substitutes the Signal Agent client factory.
func WithRelayDialer(d RelayDialer) ControllerOption {
	return func(c *Controller) { c.dial = d }
}

// WithNameStore attaches persistence for local device names.
func WithNameStore(s NameStore) ControllerOption {
	return func(c *Controller) { c.names = s }
}

// NewController logs in to the mydlink account, discovers its devices, and
// connects a session per plug. Login failures with bad credentials are
// terminal; the caller should not retry them unchanged.
func NewController(ctx context.Context, email, password string, opts ...ControllerOption) (*Controller, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", device.ErrConfiguration)
	}

	c := &Controller{
		email:    email,
		passwd:   password,
		sessions: make(map[string]*Session),
		registry: make(map[string]mydlink.Device),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.account == nil {
		c.account = mydlink.NewClient()
	}

	log.Info().Str("email", email).Msg("Initializing mydlink controller")

	if err := c.account.Login(ctx, email, password); err != nil {
		return nil, fmt.Errorf("%w: login failed: %v", device.ErrConfiguration, err)
	}

	if err := c.rescan(ctx); err != nil {
		return nil, fmt.Errorf("initial device scan: %w", err)
	}

	go c.pollLoop()

	log.Info().Int("devices", len(c.registry)).Msg("mydlink controller initialized")

	return c, nil
}

// rescan refreshes the device registry and starts sessions for devices not
// seen before. New devices are announced to subscribers.
func (c *Controller) rescan(ctx context.Context) error {
	devices, err := c.account.Devices(ctx)
	if err != nil {
		return err
	}

	for _, d := range devices {
		c.sessionsMu.Lock()
		_, known := c.sessions[d.MydlinkID]
		c.registry[d.MydlinkID] = d
		c.sessionsMu.Unlock()

		if known {
			continue
		}

		session := NewSession(d.MydlinkID, d.MAC, c.account, c.dial, c.onSessionEvent)
		c.sessionsMu.Lock()
		c.sessions[d.MydlinkID] = session
		c.sessionsMu.Unlock()

		if err := session.Connect(ctx); err != nil {
			log.Warn().Err(err).Str("device", d.MydlinkID).Msg("Session connect failed, will retry")
		}

		dev := c.toDevice(d)
		c.publishEvent(device.DiscoveryEvent{
			Type:      device.EventDeviceJoined,
			Device:    &dev,
			Timestamp: time.Now(),
		})
	}

	return nil
}

// pollLoop reconciles all sessions against the cloud on a fixed cadence
// and re-authenticates when the access token lapses.
func (c *Controller) pollLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), pollInterval)
			c.pollOnce(ctx)
			cancel()
		}
	}
}

func (c *Controller) pollOnce(ctx context.Context) {
	if !c.account.IsTokenValid() {
		log.Info().Msg("Access token expired, logging in again")
		if err := c.account.Login(ctx, c.email, c.passwd); err != nil {
			log.Error().Err(err).Msg("Re-login failed")
			return
		}
	}

	c.sessionsMu.RLock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessionsMu.RUnlock()

	for _, s := range sessions {
		s.RefreshState(ctx)
	}
}

// onSessionEvent forwards session-internal changes to subscribers.
func (c *Controller) onSessionEvent(deviceID, eventType string) {
	c.sessionsMu.RLock()
	entry, ok := c.registry[deviceID]
	c.sessionsMu.RUnlock()

	var dev *device.Device
	if ok {
		d := c.toDevice(entry)
		dev = &d
	} else {
		dev = &device.Device{ID: deviceID}
	}

	c.publishEvent(device.DiscoveryEvent{
		Type:      eventType,
		Device:    dev,
		Timestamp: time.Now(),
	})
}

// publishEvent sends a discovery event to all subscribers.
func (c *Controller) publishEvent(evt device.DiscoveryEvent) {
	c.subscribersMu.Lock()
	defer c.subscribersMu.Unlock()

	for _, ch := range c.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// toDevice converts a registry entry to the protocol-agnostic device view.
func (c *Controller) toDevice(d mydlink.Device) device.Device {
	name := d.Name
	if c.names != nil {
		if local, ok := c.names.DeviceName(d.MydlinkID); ok {
			name = local
		}
	}
	if name == "" {
		name = d.MydlinkID
	}

	stateSchema, _ := json.Marshal(plugStateSchema())

	return device.Device{
		ID:           d.MydlinkID,
		Name:         name,
		Type:         device.DeviceTypeSwitch,
		Protocol:     device.ProtocolMydlink,
		Manufacturer: "D-Link",
		Model:        d.Model,
		MAC:          d.MAC,
		StateSchema:  stateSchema,
	}
}

// plugStateSchema returns the JSON schema for settable plug state.
func plugStateSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"state": map[string]any{
				"type": "string",
				"enum": []string{"ON", "OFF"},
			},
		},
		"additionalProperties": false,
	}
}

// --- device.Controller interface ---

func (c *Controller) ListDevices(_ context.Context) ([]device.Device, error) {
	c.sessionsMu.RLock()
	defer c.sessionsMu.RUnlock()

	devices := make([]device.Device, 0, len(c.registry))
	for _, d := range c.registry {
		devices = append(devices, c.toDevice(d))
	}
	return devices, nil
}

func (c *Controller) GetDevice(_ context.Context, id string) (*device.Device, error) {
	c.sessionsMu.RLock()
	entry, ok := c.registry[id]
	c.sessionsMu.RUnlock()

	if !ok {
		return nil, device.ErrNotFound
	}

	dev := c.toDevice(entry)
	return &dev, nil
}

// RenameDevice stores a local name. The cloud record keeps its own name.
func (c *Controller) RenameDevice(_ context.Context, id, newName string) error {
	c.sessionsMu.RLock()
	_, ok := c.registry[id]
	c.sessionsMu.RUnlock()

	if !ok {
		return device.ErrNotFound
	}
	if c.names == nil {
		return device.ErrUnsupported
	}

	return c.names.SetDeviceName(id, newName)
}

// RemoveDevice forgets the device locally. It stays registered to the
// cloud account and comes back on the next rescan unless unregistered via
// the mydlink app.
func (c *Controller) RemoveDevice(_ context.Context, id string, force bool) error {
	c.sessionsMu.Lock()
	session, ok := c.sessions[id]
	if !ok && !force {
		c.sessionsMu.Unlock()
		return device.ErrNotFound
	}
	delete(c.sessions, id)
	delete(c.registry, id)
	c.sessionsMu.Unlock()

	if session != nil {
		session.Close()
	}

	if c.names != nil {
		if err := c.names.DeleteDeviceName(id); err != nil {
			log.Warn().Err(err).Str("device", id).Msg("Failed to delete local device name")
		}
	}

	c.publishEvent(device.DiscoveryEvent{
		Type:      device.EventDeviceLeft,
		Device:    &device.Device{ID: id},
		Timestamp: time.Now(),
	})

	return nil
}

func (c *Controller) GetDeviceState(ctx context.Context, id string) (device.DeviceState, error) {
	c.sessionsMu.RLock()
	session, ok := c.sessions[id]
	c.sessionsMu.RUnlock()

	if !ok {
		return nil, device.ErrNotFound
	}

	return session.State(), nil
}

func (c *Controller) SetDeviceState(ctx context.Context, id string, state map[string]any) (device.DeviceState, error) {
	c.sessionsMu.RLock()
	session, ok := c.sessions[id]
	c.sessionsMu.RUnlock()

	if !ok {
		return nil, device.ErrNotFound
	}

	stateVal, ok := state["state"]
	if !ok {
		return nil, fmt.Errorf("%w: missing state field", device.ErrValidation)
	}
	strVal, ok := stateVal.(string)
	if !ok {
		return nil, fmt.Errorf("%w: state must be a string", device.ErrValidation)
	}

	var on bool
	switch strings.ToUpper(strVal) {
	case "ON":
		on = true
	case "OFF":
		on = false
	default:
		return nil, fmt.Errorf("%w: invalid state value %q", device.ErrValidation, strVal)
	}

	if err := session.Switch(ctx, on); err != nil {
		return nil, err
	}

	return session.State(), nil
}

// PermitJoin rescans the account for newly registered devices. mydlink
// pairing happens in the vendor app; enabling join here only picks up the
// result. Disabling is a no-op.
func (c *Controller) PermitJoin(ctx context.Context, enable bool, _ int) error {
	if !enable {
		return nil
	}
	return c.rescan(ctx)
}

func (c *Controller) IsConnected() bool {
	return c.account.IsTokenValid()
}

func (c *Controller) Close() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})

	c.sessionsMu.Lock()
	sessions := c.sessions
	c.sessions = make(map[string]*Session)
	c.sessionsMu.Unlock()

	for _, s := range sessions {
		s.Close()
	}

	c.account.Close()

	log.Info().Msg("mydlink controller closed")
}

// --- device.EventSubscriber interface ---

func (c *Controller) Subscribe() chan device.DiscoveryEvent {
	ch := make(chan device.DiscoveryEvent, 16)
	c.subscribersMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.subscribersMu.Unlock()
	return ch
}

func (c *Controller) Unsubscribe(ch chan device.DiscoveryEvent) {
	c.subscribersMu.Lock()
	defer c.subscribersMu.Unlock()

	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}
