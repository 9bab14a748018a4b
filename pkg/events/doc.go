// Package events fans panel events out to stream consumers. A
// Broadcaster holds one bounded queue per subscriber and never blocks
// a producer: when a queue is full the oldest entry is dropped. The
// SSEWriter renders a subscriber's queue as a text/event-stream body
// with periodic pings.
package events
