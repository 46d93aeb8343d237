package device

import (
	"encoding/json"
	"time"
)

// Device represents a protocol-agnostic smart home device
type Device struct {
	ID           string          `json:"id"`            // Unique identifier (mydlink device ID)
	Name         string          `json:"name"`          // User-friendly name
	Type         string          `json:"type"`          // Device type (switch, sensor, etc.)
	Protocol     string          `json:"protocol"`      // Communication protocol
	Manufacturer string          `json:"manufacturer"`  // Device manufacturer/vendor
	Model        string          `json:"model"`         // Device model
	MAC          string          `json:"mac,omitempty"` // Hardware address, if known
	StateSchema  json.RawMessage `json:"state_schema"`  // JSON Schema for settable state
}

// DeviceState represents the current state of a device as a dynamic map.
type DeviceState map[string]any

// DiscoveryEvent represents a device discovery or state event
type DiscoveryEvent struct {
	Type      string    `json:"type"`             // Event type (device_joined, device_left, state_changed, ...)
	Device    *Device   `json:"device,omitempty"` // Device information if available
	Timestamp time.Time `json:"timestamp"`        // When the event occurred
}

// Discovery event types
const (
	EventDeviceJoined  = "device_joined"
	EventDeviceLeft    = "device_left"
	EventStateChanged  = "state_changed"
	EventDeviceOnline  = "device_online"
	EventDeviceOffline = "device_offline"
)

// Protocol constants
const (
	ProtocolMydlink = "mydlink"
)

// Device type constants
const (
	DeviceTypeSwitch = "switch"
)
