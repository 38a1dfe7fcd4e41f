package loader

import (
	"sync"

	"github.com/google/uuid"
)

// EventType is a lifecycle notification type
type EventType int

const (
	// EventBeforeLoad is published before an application is loaded
	EventBeforeLoad EventType = iota
	// EventLoadFailed is published when loading an image failed
	EventLoadFailed
	// EventStopped is published after a running application was cleaned up
	EventStopped
)

// EventType string constants
const (
	eventBeforeLoadStr = "before_load"
	eventLoadFailedStr = "load_failed"
	eventStoppedStr    = "stopped"
)

// String returns the string representation of an EventType
func (t EventType) String() string {
	switch t {
	case EventBeforeLoad:
		return eventBeforeLoadStr
	case EventLoadFailed:
		return eventLoadFailedStr
	default:
		return eventStoppedStr
	}
}

// Event is a lifecycle notification
type Event struct {
	Type EventType
	// Name is the application name or image path, when known
	Name string
	// RunID identifies the run for EventStopped
	RunID uuid.UUID
}

// Subscriber receives published events
type Subscriber func(Event)

// Subscription is a registered Subscriber
type Subscription struct {
	bus *EventBus
	id  uint64
}

// Unsubscribe removes the subscriber. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.remove(s.id)
}

type subscriber struct {
	id uint64
	fn Subscriber
}

// EventBus delivers events synchronously to subscribers in registration
// order. Subscribers run on the publishing goroutine; a subscriber called by
// the Supervisor must not make synchronous Supervisor calls.
type EventBus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber
}

// NewEventBus creates an empty EventBus
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn and returns its Subscription
func (b *EventBus) Subscribe(fn Subscriber) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs = append(b.subs, subscriber{id: b.nextID, fn: fn})
	return &Subscription{bus: b, id: b.nextID}
}

func (b *EventBus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every subscriber registered at the time of the call
func (b *EventBus) Publish(ev Event) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
