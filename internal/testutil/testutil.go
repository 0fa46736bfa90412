// Package testutil provides shared test helpers.
package testutil

import (
	"sync"

	"github.com/sandcastle-dev/sandcastle/internal/domain"
	"github.com/sandcastle-dev/sandcastle/internal/domain/events"
	"github.com/sandcastle-dev/sandcastle/internal/domain/ports"
)

// MockSubscriber is an in-memory subscriber that records every event it
// receives.
type MockSubscriber struct {
	id   string
	done chan struct{}

	mu       sync.Mutex
	received []events.Event
	closed   bool
}

// NewMockSubscriber creates a mock subscriber with the given ID.
func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *MockSubscriber) ID() string {
	return s.id
}

// Send records the event.
func (s *MockSubscriber) Send(event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSubscriberClosed
	}
	s.received = append(s.received, event)
	return nil
}

// Close marks the subscriber closed.
func (s *MockSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// Done returns a channel that's closed when the subscriber is closed.
func (s *MockSubscriber) Done() <-chan struct{} {
	return s.done
}

// IsClosed reports whether Close has been called.
func (s *MockSubscriber) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Received returns a copy of all recorded events.
func (s *MockSubscriber) Received() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]events.Event, len(s.received))
	copy(out, s.received)
	return out
}

// ReceivedTypes returns the types of all recorded events, in order.
func (s *MockSubscriber) ReceivedTypes() []events.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]events.EventType, len(s.received))
	for i, ev := range s.received {
		out[i] = ev.Type()
	}
	return out
}

// RecordingHub is an EventHub that records published events instead of
// distributing them.
type RecordingHub struct {
	mu     sync.Mutex
	events []events.Event
}

// NewRecordingHub creates an empty recording hub.
func NewRecordingHub() *RecordingHub {
	return &RecordingHub{}
}

// Start is a no-op.
func (h *RecordingHub) Start() error { return nil }

// Stop is a no-op.
func (h *RecordingHub) Stop() error { return nil }

// Publish records the event.
func (h *RecordingHub) Publish(event events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

// Subscribe is a no-op.
func (h *RecordingHub) Subscribe(sub ports.Subscriber) {}

// Unsubscribe is a no-op.
func (h *RecordingHub) Unsubscribe(id string) {}

// SubscriberCount always returns zero.
func (h *RecordingHub) SubscriberCount() int { return 0 }

// Events returns a copy of the recorded events.
func (h *RecordingHub) Events() []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]events.Event, len(h.events))
	copy(out, h.events)
	return out
}

// CountType returns how many recorded events have the given type.
func (h *RecordingHub) CountType(t events.EventType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ev := range h.events {
		if ev.Type() == t {
			n++
		}
	}
	return n
}

// LastOfType returns the most recent recorded event of the given type, or
// nil if none was recorded.
func (h *RecordingHub) LastOfType(t events.EventType) events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.events) - 1; i >= 0; i-- {
		if h.events[i].Type() == t {
			return h.events[i]
		}
	}
	return nil
}
