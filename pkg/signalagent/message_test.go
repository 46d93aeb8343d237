package signalagent

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEncodeSignIn(t *testing.T) {
	now := time.Unix(1700000000, 0)

	raw, err := encodeSignIn(1, "user@example.com", "token-abc", now)
	if err != nil {
		t.Fatal(err)
	}

	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatal(err)
	}

	if frame["command"] != "sign_in" {
		t.Errorf("expected command sign_in, got %v", frame["command"])
	}
	if frame["sequence_id"] != float64(1) {
		t.Errorf("expected sequence_id 1, got %v", frame["sequence_id"])
	}
	if frame["timestamp"] != float64(1700000000) {
		t.Errorf("expected timestamp 1700000000, got %v", frame["timestamp"])
	}
	if frame["owner_id"] != "user@example.com" {
		t.Errorf("expected owner_id from email, got %v", frame["owner_id"])
	}
	if frame["owner_token"] != "token-abc" {
		t.Errorf("expected owner_token from access token, got %v", frame["owner_token"])
	}
	if frame["role"] != "client_agent" {
		t.Errorf("expected role client_agent, got %v", frame["role"])
	}
	scope, ok := frame["scope"].([]any)
	if !ok || len(scope) == 0 {
		t.Errorf("expected non-empty scope list, got %v", frame["scope"])
	}
}

func TestEncodeSetSetting(t *testing.T) {
	now := time.Unix(1700000000, 0)

	raw, err := encodeSetSetting(9, "device-token", true, now)
	if err != nil {
		t.Fatal(err)
	}

	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatal(err)
	}

	if frame["command"] != "set_setting" {
		t.Errorf("expected command set_setting, got %v", frame["command"])
	}
	if frame["device_id"] != "device-token" {
		t.Errorf("expected bare device token in device_id, got %v", frame["device_id"])
	}
	if frame["type"] != float64(SettingTypePlug) {
		t.Errorf("expected type %d, got %v", SettingTypePlug, frame["type"])
	}

	meta, ok := frame["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected metadata object, got %v", frame["metadata"])
	}
	if meta["value"] != float64(1) {
		t.Errorf("expected value 1 for on, got %v", meta["value"])
	}
}

func TestEncodeSetSetting_Off(t *testing.T) {
	raw, err := encodeSetSetting(10, "device-token", false, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	var frame struct {
		Metadata settingValue `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Metadata.Value != 0 {
		t.Errorf("expected value 0 for off, got %d", frame.Metadata.Value)
	}
}

func TestParseMessage_Response(t *testing.T) {
	msg, err := parseMessage([]byte(`{"command":"sign_in","sequence_id":3,"code":0}`))
	if err != nil {
		t.Fatal(err)
	}

	if msg.SequenceID == nil || *msg.SequenceID != 3 {
		t.Errorf("expected sequence_id 3, got %v", msg.SequenceID)
	}
	if msg.responseCode() != 0 {
		t.Errorf("expected code 0, got %d", msg.responseCode())
	}
}

func TestParseMessage_SettingChangeEvent(t *testing.T) {
	raw := []byte(`{"command":"event","type":61,"device_id":"ABCDEF123456","metadata":{"type":16,"value":1}}`)

	msg, err := parseMessage(raw)
	if err != nil {
		t.Fatal(err)
	}

	if msg.Command != "event" {
		t.Errorf("expected event command, got %q", msg.Command)
	}
	if msg.eventType() != EventSettingChange {
		t.Errorf("expected event type %d, got %d", EventSettingChange, msg.eventType())
	}
	if msg.Metadata == nil || msg.Metadata.Type == nil || *msg.Metadata.Type != SettingTypePlug {
		t.Errorf("expected plug metadata type, got %+v", msg.Metadata)
	}
}

func TestParseMessage_ToleratesUnknownFields(t *testing.T) {
	raw := []byte(`{"command":"event","type":61,"something_new":{"nested":true},"extra":42}`)

	if _, err := parseMessage(raw); err != nil {
		t.Errorf("unknown fields must not fail parsing: %v", err)
	}
}

func TestParseMessage_MissingFieldsAreNil(t *testing.T) {
	msg, err := parseMessage([]byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}

	if msg.SequenceID != nil || msg.Code != nil || msg.Type != nil || msg.Metadata != nil {
		t.Errorf("expected nil optional fields on empty frame, got %+v", msg)
	}
	if msg.responseCode() != -1 {
		t.Errorf("expected -1 for missing code, got %d", msg.responseCode())
	}
}

func TestParseMessage_MalformedJSON(t *testing.T) {
	if _, err := parseMessage([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed frame")
	}
}
