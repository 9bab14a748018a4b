// Package log provides structured protocol capture for panel traffic.
//
// This package defines the Logger interface and Event types for
// recording protocol-level events at multiple layers (transport,
// protocol, service). It is separate from operational logging (slog):
// protocol capture yields a complete machine-readable trace of every
// frame exchanged with a panel, for debugging and offline analysis.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/isecgw/panels.ilog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/isecgw/panels.ilog"),
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: raw frame bytes (FrameEvent)
//   - Protocol: decoded command exchanges (CommandEvent)
//   - Service: state changes (StateChangeEvent)
//
// Errors at any layer carry a dedicated event type.
//
// # File Format
//
// Log files use CBOR encoding with the .ilog extension. Reader streams
// events back with optional filtering.
package log
