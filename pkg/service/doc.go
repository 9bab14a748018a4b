// Package service is the command facade consumed by the gateway's
// outer surfaces (the HTTP layer, the event poller, the console).
//
// AlarmService turns a (session id, panel id, operation) triple into
// protocol traffic:
//
//   - resolves the app session to a vendor-cloud token
//   - looks up the saved panel password
//   - resolves the connection descriptor, from the cache when fresh,
//     else from the vendor cloud
//   - translates vendor partition ids to wire partition indexes
//   - acquires a pooled session and issues the command
//
// Example usage:
//
//	svc, err := service.New(service.Config{
//		Pool:        pool,
//		Store:       store,
//		Broadcaster: broadcaster,
//		Tokens:      auth,
//		Cloud:       client,
//	})
//	st, err := svc.GetStatus(ctx, sessionID, panelID)
//
// # Command quirks
//
// The facade owns the behaviors that make panel commands usable:
//
//   - Arm verification. Receiver-mode panels often acknowledge an arm
//     with silence. The facade waits VerifySleep, reads status on the
//     same session, and reports open zones when the panel is still
//     disarmed.
//   - Partition learning. A panel replying "no partitions" to a
//     command carrying a partition byte is recorded as unpartitioned
//     and the command retried once without the byte.
//   - Last-known fallback. When the panel is unreachable, GetStatus
//     serves the cached snapshot flagged ConnectionUnavailable instead
//     of failing.
//
// # Errors
//
// Reachability failures (relay busy, panel offline, dial and read
// timeouts) are lifted to *ConnectionError so callers can suggest
// closing the vendor's own app, which holds the panel's single
// connection slot. Arm refusals over open sensors come back as
// *OpenZonesError naming the zones. Everything else passes through
// from pkg/session untouched.
package service
