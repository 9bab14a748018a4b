package events

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// SSE event types.
const (
	// TypeAlarmEvent carries panel activity: state changes and polled
	// vendor-cloud events.
	TypeAlarmEvent = "alarm_event"

	// TypePing is the periodic liveness event.
	TypePing = "ping"
)

// EventStateChanged is the payload event_type for arm-state transitions.
const EventStateChanged = "state_changed"

// Event is the envelope queued to subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// StateChange is broadcast after a command changes a panel's arm state.
type StateChange struct {
	EventType   string `json:"event_type"`
	DeviceID    int64  `json:"device_id"`
	PartitionID *int64 `json:"partition_id"`
	NewStatus   string `json:"new_status"`
	Source      string `json:"source"`
}

// subscriberBuffer bounds each subscriber's queue.
const subscriberBuffer = 64

// Subscriber receives broadcast events until unsubscribed.
type Subscriber struct {
	// ID identifies the subscriber for Unsubscribe.
	ID string

	// SessionID is the app session the stream authenticates as. The
	// poller uses it to query the vendor cloud.
	SessionID string

	ch chan Event
}

// Events is the subscriber's queue. It is closed by Unsubscribe.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// offer enqueues without blocking, dropping the oldest queued event
// when the buffer is full. Callers hold the broadcaster lock.
func (s *Subscriber) offer(ev Event) {
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Broadcaster delivers events to every subscriber.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	onSubscribe func()
	onEmpty     func()
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]*Subscriber)}
}

// OnSubscribe sets a hook called after every Subscribe. The poller
// uses it to start its loop; starting must be idempotent.
func (b *Broadcaster) OnSubscribe(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSubscribe = fn
}

// OnEmpty sets a hook called when the last subscriber leaves.
func (b *Broadcaster) OnEmpty(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onEmpty = fn
}

// Subscribe registers a new stream consumer.
func (b *Broadcaster) Subscribe(sessionID string) *Subscriber {
	sub := &Subscriber{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		ch:        make(chan Event, subscriberBuffer),
	}
	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	fn := b.onSubscribe
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
	return sub
}

// Unsubscribe removes the subscriber and closes its queue. Unknown ids
// are ignored.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
	empty := len(b.subscribers) == 0
	fn := b.onEmpty
	b.mu.Unlock()

	if ok && empty && fn != nil {
		fn()
	}
}

// Broadcast queues the event for every subscriber. It never blocks.
func (b *Broadcaster) Broadcast(eventType string, data any) {
	ev := Event{Type: eventType, Data: data}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		sub.offer(ev)
	}
}

// SubscriberCount returns the number of connected subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// SessionIDs returns the distinct app sessions with at least one
// subscriber, sorted.
func (b *Broadcaster) SessionIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]struct{}, len(b.subscribers))
	out := make([]string, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if _, ok := seen[sub.SessionID]; ok {
			continue
		}
		seen[sub.SessionID] = struct{}{}
		out = append(out, sub.SessionID)
	}
	sort.Strings(out)
	return out
}
