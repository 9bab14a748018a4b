package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// SSEWriter renders a subscriber's events in text/event-stream framing.
// The zero value serves with a 30 second ping interval.
type SSEWriter struct {
	// PingInterval is the cadence of ping events that keep proxies and
	// clients from dropping an otherwise quiet stream.
	PingInterval time.Duration

	// Now is the ping timestamp clock, for tests.
	Now func() time.Time
}

// Serve writes events until ctx is canceled, the subscriber is
// unsubscribed, or the writer fails. Each event is framed as
// "event: <type>" and "data: <json>" lines; the writer is flushed
// after every frame when it supports flushing.
func (w *SSEWriter) Serve(ctx context.Context, out io.Writer, sub *Subscriber) error {
	interval := w.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	now := w.Now
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeFrame(out, ev.Type, ev.Data); err != nil {
				return err
			}
		case <-ticker.C:
			ping := map[string]string{"timestamp": now().UTC().Format(time.RFC3339)}
			if err := writeFrame(out, TypePing, ping); err != nil {
				return err
			}
		}
	}
}

func writeFrame(out io.Writer, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	if f, ok := out.(interface{ Flush() }); ok {
		f.Flush()
	}
	return nil
}
