// Package persistence keeps the gateway's durable state: upstream
// session tokens, per-session panel passwords, zone friendly names,
// and the last status read from each panel. Everything lives in
// memory behind one lock and is mirrored to a single JSON snapshot
// written atomically (temp sibling, fsync, rename), so a crash leaves
// either the old file or the new one intact.
//
// Two caches are memory-only: resolved connection descriptors expire
// after five minutes, and the partitions-enabled flag is re-learned
// from the next status read.
package persistence
