package engine

import (
	"sync"
	"time"
)

type EventKind string

const (
	EventConversationCreated EventKind = "conversation.created"
	EventConversationActive  EventKind = "conversation.activated"
	EventMessageAppended     EventKind = "message.appended"
	EventRouteChanged        EventKind = "route.changed"
	EventSendStarted         EventKind = "send.started"
	EventSendCompleted       EventKind = "send.completed"
	EventBookingStarted      EventKind = "booking.started"
	EventBookingCompleted    EventKind = "booking.completed"
	EventAppointmentRecorded EventKind = "appointment.recorded"
	EventViewChanged         EventKind = "view.changed"
	EventBannerChanged       EventKind = "banner.changed"
	EventPersistFailed       EventKind = "persist.failed"
)

// Event describes a committed state change. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind           EventKind     `json:"kind"`
	ConversationID string        `json:"conversationId,omitempty"`
	Message        *Message      `json:"message,omitempty"`
	Route          *RouteContext `json:"route,omitempty"`
	Appointment    *Appointment  `json:"appointment,omitempty"`
	Outcome        string        `json:"outcome,omitempty"`
	View           ViewMode      `json:"view,omitempty"`
	Text           string        `json:"text,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
	At             time.Time     `json:"at"`
}

// Bus fans committed events out to observers in commit order. Observers are
// called in the order they subscribed, outside the state lock, so they may
// call back into the engine. Events committed while a delivery is running are
// queued and delivered by the goroutine already draining.
type Bus struct {
	mu   sync.Mutex
	next int
	subs []subscriber

	qmu      sync.Mutex
	queue    []Event
	draining bool
}

type subscriber struct {
	id int
	fn func(Event)
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Publish(events ...Event) {
	b.enqueue(events)
	b.drain()
}

func (b *Bus) enqueue(events []Event) {
	if len(events) == 0 {
		return
	}
	b.qmu.Lock()
	b.queue = append(b.queue, events...)
	b.qmu.Unlock()
}

// drain delivers queued events until the queue is empty. Only one goroutine
// drains at a time; others return immediately and leave their events to it.
func (b *Bus) drain() {
	b.qmu.Lock()
	if b.draining {
		b.qmu.Unlock()
		return
	}
	b.draining = true
	for len(b.queue) > 0 {
		events := b.queue
		b.queue = nil
		b.qmu.Unlock()

		b.mu.Lock()
		subs := make([]subscriber, len(b.subs))
		copy(subs, b.subs)
		b.mu.Unlock()

		for _, ev := range events {
			for _, sub := range subs {
				sub.fn(ev)
			}
		}
		b.qmu.Lock()
	}
	b.draining = false
	b.qmu.Unlock()
}
