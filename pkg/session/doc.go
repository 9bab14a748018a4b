// Package session drives one authenticated panel connection through
// the ISECNet handshake and command flow, over either the vendor cloud
// relay (V2 dialect) or a direct IP receiver (V1 dialect).
//
// A Session serializes request/response exchanges with an internal
// mutex and reports frames, stage changes, and errors through a
// log.Logger, so callers may share one Session across goroutines.
package session
