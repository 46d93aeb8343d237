package signalagent

import (
	"encoding/json"
	"fmt"
	"time"
)

// Signal Agent protocol constants
const (
	cmdSignIn     = "sign_in"
	cmdSetSetting = "set_setting"
	cmdEvent      = "event"

	roleClientAgent = "client_agent"
	clientName      = "mydlink-hub"

	// Setting type identifiers carried in event/command metadata
	SettingTypePlug  = 16
	SettingTypePower = 9

	// Event type for asynchronous setting-change pushes
	EventSettingChange = 61

	codeSuccess = 0

	// WebSocket upgrade parameters required by the DCD relay
	subProtocol = "mydlink-ws"
	wsOrigin    = "https://mydlink.com"
)

// signInScope is the fixed capability list sent with every sign_in.
var signInScope = []string{
	"user", "device:status", "device:control", "viewing",
	"photo", "policy", "client", "event",
}

// Message is a parsed inbound relay frame. A frame is a response when it
// carries a sequence_id, an event when command == "event", and may be both.
// Optional fields are pointers so that absence is distinguishable from zero.
type Message struct {
	Command    string    `json:"command,omitempty"`
	SequenceID *int      `json:"sequence_id,omitempty"`
	Code       *int      `json:"code,omitempty"`
	Message    string    `json:"message,omitempty"`
	DeviceID   string    `json:"device_id,omitempty"`
	Type       *int      `json:"type,omitempty"`
	Metadata   *Metadata `json:"metadata,omitempty"`
}

// Metadata is the nested setting payload of events and commands.
type Metadata struct {
	Type  *int     `json:"type,omitempty"`
	Value *float64 `json:"value,omitempty"`
}

// responseCode returns the response code, or -1 if the frame carried none.
func (m Message) responseCode() int {
	if m.Code == nil {
		return -1
	}
	return *m.Code
}

// eventType returns the top-level event type, or 0 if absent.
func (m Message) eventType() int {
	if m.Type == nil {
		return 0
	}
	return *m.Type
}

// parseMessage decodes a raw relay frame. Unknown fields are ignored and
// missing optional fields are left nil; only malformed JSON is an error.
func parseMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("parse frame: %w", err)
	}
	return msg, nil
}

type signInCommand struct {
	Command    string   `json:"command"`
	SequenceID int      `json:"sequence_id"`
	Timestamp  int64    `json:"timestamp"`
	ClientName string   `json:"client_name"`
	Role       string   `json:"role"`
	OwnerID    string   `json:"owner_id"`
	OwnerToken string   `json:"owner_token"`
	Scope      []string `json:"scope"`
}

type settingValue struct {
	Value int `json:"value"`
}

// setSettingCommand uses the flat wire shape: device_id carries the bare
// device token and uid/idx/type/metadata sit at the top level.
type setSettingCommand struct {
	Command    string       `json:"command"`
	SequenceID int          `json:"sequence_id"`
	Timestamp  int64        `json:"timestamp"`
	DeviceID   string       `json:"device_id"`
	UID        int          `json:"uid"`
	Idx        int          `json:"idx"`
	Type       int          `json:"type"`
	Metadata   settingValue `json:"metadata"`
}

// encodeSignIn builds the sign_in handshake frame.
func encodeSignIn(seq int, email, accessToken string, now time.Time) ([]byte, error) {
	return json.Marshal(signInCommand{
		Command:    cmdSignIn,
		SequenceID: seq,
		Timestamp:  now.Unix(),
		ClientName: clientName,
		Role:       roleClientAgent,
		OwnerID:    email,
		OwnerToken: accessToken,
		Scope:      signInScope,
	})
}

// encodeSetSetting builds a set_setting frame switching a plug on or off.
func encodeSetSetting(seq int, deviceToken string, on bool, now time.Time) ([]byte, error) {
	value := 0
	if on {
		value = 1
	}
	return json.Marshal(setSettingCommand{
		Command:    cmdSetSetting,
		SequenceID: seq,
		Timestamp:  now.Unix(),
		DeviceID:   deviceToken,
		UID:        0,
		Idx:        0,
		Type:       SettingTypePlug,
		Metadata:   settingValue{Value: value},
	})
}
