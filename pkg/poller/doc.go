// Package poller watches the vendor cloud's event feed while stream
// consumers are connected and broadcasts rows that appeared after each
// consumer's session joined.
//
// The loop runs only while the broadcaster has subscribers: Bind wires
// Start and Stop to the broadcaster's lifecycle hooks. The first poll
// for a session records the feed's high-water mark silently; later
// polls broadcast anything newer, oldest first.
package poller
