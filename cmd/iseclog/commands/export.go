package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/isecnet-bridge/isecnet-go/pkg/log"
)

// csvHeader names the flattened columns. Type-specific payloads are
// summarized in the dialect, code, and detail columns.
var csvHeader = []string{
	"timestamp", "connection_id", "direction", "layer", "category",
	"transport", "panel_id", "type", "dialect", "code", "detail",
}

// RunExport exports the capture file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// exportJSONL writes one JSON document per event. The JSON field names
// are the Go ones; consumers wanting the compact integer keys should
// keep the CBOR capture instead.
func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := cw.Write(csvRow(event)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// csvRow flattens one event into the csvHeader columns.
func csvRow(event log.Event) []string {
	eventType := "unknown"
	dialect := ""
	code := ""
	detail := ""

	switch {
	case event.Frame != nil:
		eventType = "frame"
		dialect = event.Frame.Dialect.String()
		detail = fmt.Sprintf("%d bytes", event.Frame.Size)

	case event.Command != nil:
		eventType = "command"
		dialect = event.Command.Dialect.String()
		code = fmt.Sprintf("0x%04X", event.Command.Code)
		detail = event.Command.Name
		if event.Command.Result != "" {
			detail += " " + event.Command.Result
		}

	case event.StateChange != nil:
		eventType = "state"
		detail = event.StateChange.NewState
		if event.StateChange.OldState != "" {
			detail = event.StateChange.OldState + " -> " + event.StateChange.NewState
		}

	case event.Error != nil:
		eventType = "error"
		if event.Error.Code != nil {
			code = fmt.Sprintf("%d", *event.Error.Code)
		}
		detail = event.Error.Message
	}

	return []string{
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		event.ConnectionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		event.Transport.String(),
		event.PanelID,
		eventType,
		dialect,
		code,
		detail,
	}
}
