package log

import (
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction:    DirectionOut,
		Layer:        LayerProtocol,
		Category:     CategoryMessage,
		Transport:    TransportReceiver,
		RemoteAddr:   "192.168.1.100:9009",
		PanelID:      "1A2B3C4D5E6F",
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.ConnectionID != original.ConnectionID {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, original.ConnectionID)
	}
	if decoded.Direction != original.Direction {
		t.Errorf("Direction: got %v, want %v", decoded.Direction, original.Direction)
	}
	if decoded.Layer != original.Layer {
		t.Errorf("Layer: got %v, want %v", decoded.Layer, original.Layer)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category: got %v, want %v", decoded.Category, original.Category)
	}
	if decoded.Transport != original.Transport {
		t.Errorf("Transport: got %v, want %v", decoded.Transport, original.Transport)
	}
	if decoded.RemoteAddr != original.RemoteAddr {
		t.Errorf("RemoteAddr: got %q, want %q", decoded.RemoteAddr, original.RemoteAddr)
	}
	if decoded.PanelID != original.PanelID {
		t.Errorf("PanelID: got %q, want %q", decoded.PanelID, original.PanelID)
	}
}

func TestFrameEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Frame: &FrameEvent{
			Dialect:   DialectV1,
			Size:      256,
			Data:      []byte{0x09, 0xE9, 0x21, 0x31, 0x32},
			Truncated: true,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Frame == nil {
		t.Fatal("Frame is nil")
	}
	if decoded.Frame.Dialect != original.Frame.Dialect {
		t.Errorf("Frame.Dialect: got %v, want %v", decoded.Frame.Dialect, original.Frame.Dialect)
	}
	if decoded.Frame.Size != original.Frame.Size {
		t.Errorf("Frame.Size: got %d, want %d", decoded.Frame.Size, original.Frame.Size)
	}
	if string(decoded.Frame.Data) != string(original.Frame.Data) {
		t.Errorf("Frame.Data: got %v, want %v", decoded.Frame.Data, original.Frame.Data)
	}
	if decoded.Frame.Truncated != original.Frame.Truncated {
		t.Errorf("Frame.Truncated: got %v, want %v", decoded.Frame.Truncated, original.Frame.Truncated)
	}
}

func TestCommandEventCBORRoundTrip(t *testing.T) {
	processingTime := 2 * time.Millisecond

	tests := []struct {
		name string
		cmd  *CommandEvent
	}{
		{
			name: "request",
			cmd: &CommandEvent{
				Dialect:     DialectV2,
				Code:        0x401E,
				Name:        "ARM_DISARM",
				PayloadSize: 2,
			},
		},
		{
			name: "reply",
			cmd: &CommandEvent{
				Dialect:        DialectV2,
				Code:           0x401E,
				Name:           "ARM_DISARM",
				Result:         "ack",
				ProcessingTime: &processingTime,
			},
		},
		{
			name: "v1 command byte",
			cmd: &CommandEvent{
				Dialect: DialectV1,
				Code:    0x5A,
				Name:    "PARTIAL_STATUS",
				Result:  "success",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := Event{
				Timestamp:    time.Now(),
				ConnectionID: "conn-123",
				Direction:    DirectionOut,
				Layer:        LayerProtocol,
				Category:     CategoryMessage,
				Command:      tt.cmd,
			}

			data, err := EncodeEvent(original)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}

			decoded, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			if decoded.Command == nil {
				t.Fatal("Command is nil")
			}
			if decoded.Command.Dialect != tt.cmd.Dialect {
				t.Errorf("Command.Dialect: got %v, want %v", decoded.Command.Dialect, tt.cmd.Dialect)
			}
			if decoded.Command.Code != tt.cmd.Code {
				t.Errorf("Command.Code: got 0x%04X, want 0x%04X", decoded.Command.Code, tt.cmd.Code)
			}
			if decoded.Command.Name != tt.cmd.Name {
				t.Errorf("Command.Name: got %q, want %q", decoded.Command.Name, tt.cmd.Name)
			}
			if decoded.Command.Result != tt.cmd.Result {
				t.Errorf("Command.Result: got %q, want %q", decoded.Command.Result, tt.cmd.Result)
			}
			if tt.cmd.ProcessingTime != nil {
				if decoded.Command.ProcessingTime == nil {
					t.Fatal("Command.ProcessingTime is nil")
				}
				if *decoded.Command.ProcessingTime != *tt.cmd.ProcessingTime {
					t.Errorf("Command.ProcessingTime: got %v, want %v",
						*decoded.Command.ProcessingTime, *tt.cmd.ProcessingTime)
				}
			}
		})
	}
}

func TestStateChangeEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerService,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntitySession,
			OldState: "app_ok",
			NewState: "authorized",
			Reason:   "authorize accepted",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.StateChange == nil {
		t.Fatal("StateChange is nil")
	}
	if decoded.StateChange.Entity != original.StateChange.Entity {
		t.Errorf("StateChange.Entity: got %v, want %v", decoded.StateChange.Entity, original.StateChange.Entity)
	}
	if decoded.StateChange.OldState != original.StateChange.OldState {
		t.Errorf("StateChange.OldState: got %q, want %q", decoded.StateChange.OldState, original.StateChange.OldState)
	}
	if decoded.StateChange.NewState != original.StateChange.NewState {
		t.Errorf("StateChange.NewState: got %q, want %q", decoded.StateChange.NewState, original.StateChange.NewState)
	}
	if decoded.StateChange.Reason != original.StateChange.Reason {
		t.Errorf("StateChange.Reason: got %q, want %q", decoded.StateChange.Reason, original.StateChange.Reason)
	}
}

func TestErrorEventCBORRoundTrip(t *testing.T) {
	code := 0xE1

	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerProtocol,
		Category:     CategoryError,
		Error: &ErrorEventData{
			Layer:   LayerProtocol,
			Message: "incorrect password",
			Code:    &code,
			Context: "authorize",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Error == nil {
		t.Fatal("Error is nil")
	}
	if decoded.Error.Layer != original.Error.Layer {
		t.Errorf("Error.Layer: got %v, want %v", decoded.Error.Layer, original.Error.Layer)
	}
	if decoded.Error.Message != original.Error.Message {
		t.Errorf("Error.Message: got %q, want %q", decoded.Error.Message, original.Error.Message)
	}
	if decoded.Error.Code == nil || *decoded.Error.Code != *original.Error.Code {
		t.Errorf("Error.Code: got %v, want %v", decoded.Error.Code, original.Error.Code)
	}
	if decoded.Error.Context != original.Error.Context {
		t.Errorf("Error.Context: got %q, want %q", decoded.Error.Context, original.Error.Context)
	}
}

func TestEventCBORForwardCompat(t *testing.T) {
	// Decode an event into a struct missing the newer fields.
	// The decoder is configured with ExtraDecErrorNone, so unknown
	// keys are silently ignored by older readers.
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-compat",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Frame:        &FrameEvent{Dialect: DialectV2, Size: 9},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	type oldEvent struct {
		Timestamp    time.Time `cbor:"1,keyasint"`
		ConnectionID string    `cbor:"2,keyasint"`
		Direction    Direction `cbor:"3,keyasint"`
		// No layer, category or payload fields.
	}

	var old oldEvent
	if err := decMode.Unmarshal(data, &old); err != nil {
		t.Fatalf("decoding into a reduced struct should succeed, got: %v", err)
	}
	if old.ConnectionID != "conn-compat" {
		t.Errorf("ConnectionID: got %q, want %q", old.ConnectionID, "conn-compat")
	}
}

func TestEventCBORUsesIntegerKeys(t *testing.T) {
	event := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	// Decode to generic map and verify keys are integers
	var rawMap map[uint64]any
	if err := decMode.Unmarshal(data, &rawMap); err != nil {
		t.Fatalf("failed to decode as map: %v", err)
	}

	expectedKeys := []uint64{1, 2, 3, 4, 5}
	for _, key := range expectedKeys {
		if _, ok := rawMap[key]; !ok {
			t.Errorf("expected integer key %d not found in encoded data", key)
		}
	}

	// Verify no string keys
	var stringMap map[string]any
	if err := decMode.Unmarshal(data, &stringMap); err == nil && len(stringMap) > 0 {
		t.Error("encoded data contains string keys, expected integer keys only")
	}
}

func TestTimestampNanosecondPrecision(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 15, 32, 987654321, time.UTC)
	event := Event{
		Timestamp:    ts,
		ConnectionID: "conn-ns",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Timestamp.Nanosecond() != ts.Nanosecond() {
		t.Errorf("nanoseconds: got %d, want %d", decoded.Timestamp.Nanosecond(), ts.Nanosecond())
	}
}
