package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slogger := slog.New(handler)

	adapter := NewSlogAdapter(slogger)

	adapter.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		Frame: &FrameEvent{
			Dialect: DialectV2,
			Size:    256,
			Data:    []byte{0x01, 0x02},
		},
	})

	output := buf.String()
	if output == "" {
		t.Fatal("no output produced")
	}

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if logEntry["conn_id"] != "conn-123" {
		t.Errorf("conn_id: got %v, want %q", logEntry["conn_id"], "conn-123")
	}
	if logEntry["direction"] != "IN" {
		t.Errorf("direction: got %v, want %q", logEntry["direction"], "IN")
	}
	if logEntry["layer"] != "TRANSPORT" {
		t.Errorf("layer: got %v, want %q", logEntry["layer"], "TRANSPORT")
	}
	if logEntry["dialect"] != "V2" {
		t.Errorf("dialect: got %v, want %q", logEntry["dialect"], "V2")
	}
	if logEntry["frame_size"] != float64(256) {
		t.Errorf("frame_size: got %v, want %v", logEntry["frame_size"], 256)
	}
}

func TestSlogAdapterLogsCommandEvent(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slogger := slog.New(handler)

	adapter := NewSlogAdapter(slogger)

	adapter.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-456",
		Direction:    DirectionOut,
		Layer:        LayerProtocol,
		Category:     CategoryMessage,
		PanelID:      "1A2B3C4D5E6F",
		Command: &CommandEvent{
			Dialect:     DialectV2,
			Code:        0x0B4A,
			Name:        "PANEL_STATUS",
			Result:      "ack",
			PayloadSize: 144,
		},
	})

	output := buf.String()
	if output == "" {
		t.Fatal("no output produced")
	}

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if logEntry["command"] != "PANEL_STATUS" {
		t.Errorf("command: got %v, want %q", logEntry["command"], "PANEL_STATUS")
	}
	if logEntry["result"] != "ack" {
		t.Errorf("result: got %v, want %q", logEntry["result"], "ack")
	}
	if logEntry["panel_id"] != "1A2B3C4D5E6F" {
		t.Errorf("panel_id: got %v, want %q", logEntry["panel_id"], "1A2B3C4D5E6F")
	}
	if logEntry["payload_size"] != float64(144) {
		t.Errorf("payload_size: got %v, want %v", logEntry["payload_size"], 144)
	}
}

func TestSlogAdapterIncludesConnectionID(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slogger := slog.New(handler)

	adapter := NewSlogAdapter(slogger)

	adapter.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "abc12345-def6-7890",
		Direction:    DirectionIn,
		Layer:        LayerService,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntitySession,
			NewState: "authorized",
		},
	})

	output := buf.String()
	if !strings.Contains(output, "abc12345-def6-7890") {
		t.Error("output does not contain connection ID")
	}
	if !strings.Contains(output, "authorized") {
		t.Error("output does not contain the new state")
	}
}

func TestSlogAdapterLogsErrorEvent(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slogger := slog.New(handler)

	adapter := NewSlogAdapter(slogger)

	code := 0xE4
	adapter.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-err",
		Direction:    DirectionIn,
		Layer:        LayerProtocol,
		Category:     CategoryError,
		Error: &ErrorEventData{
			Layer:   LayerProtocol,
			Message: "open zones",
			Code:    &code,
			Context: "arm",
		},
	})

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if logEntry["error_msg"] != "open zones" {
		t.Errorf("error_msg: got %v, want %q", logEntry["error_msg"], "open zones")
	}
	if logEntry["error_code"] != float64(0xE4) {
		t.Errorf("error_code: got %v, want %v", logEntry["error_code"], 0xE4)
	}
}
