package store

import (
	"sync"

	"github.com/google/uuid"
)

// EventKind classifies a repository change notification.
type EventKind string

const (
	EventTaskInserted    EventKind = "task_inserted"
	EventTaskUpdated     EventKind = "task_updated"
	EventTaskDeleted     EventKind = "task_deleted"
	EventReminderUpdated EventKind = "reminder_updated"
)

// Event is a single change notification. TaskID is set for task events,
// ReminderID for reminder events.
type Event struct {
	Kind       EventKind
	TaskID     int64
	ReminderID int64
}

// Subscription is a cancellable handle to a stream of repository events.
type Subscription struct {
	// C delivers events. It is closed when the subscription is
	// cancelled or the hub shuts down.
	C <-chan Event

	id     string
	cancel func()
	once   sync.Once
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// subscriber is a registered event consumer inside the hub.
type subscriber struct {
	kinds map[EventKind]bool // empty means all kinds
	ch    chan Event
}

// EventHub fans repository change events out to subscribers in-process.
// The sqlite adapter emits directly after each mutation; the remote
// adapter's change-feed poller emits as it observes the feed.
type EventHub struct {
	mu     sync.Mutex
	subs   map[string]*subscriber
	closed bool
}

// NewEventHub returns an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[string]*subscriber)}
}

// Subscribe registers a consumer for the given event kinds (all kinds
// when none are given).
func (h *EventHub) Subscribe(kinds ...EventKind) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{
		kinds: make(map[EventKind]bool, len(kinds)),
		ch:    make(chan Event, 16),
	}
	for _, k := range kinds {
		sub.kinds[k] = true
	}

	id := uuid.New().String()
	if h.closed {
		close(sub.ch)
	} else {
		h.subs[id] = sub
	}

	return &Subscription{
		C:  sub.ch,
		id: id,
		cancel: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if s, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(s.ch)
			}
		},
	}
}

// Publish delivers an event to every matching subscriber without
// blocking; slow consumers drop events rather than stall mutations.
func (h *EventHub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if len(sub.kinds) > 0 && !sub.kinds[ev.Kind] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Close cancels every subscription.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
