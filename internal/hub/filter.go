package hub

import (
	"github.com/sandcastle-dev/sandcastle/internal/domain/events"
	"github.com/sandcastle-dev/sandcastle/internal/domain/ports"
	"github.com/sandcastle-dev/sandcastle/internal/subscriptions"
)

// SessionFilteredSubscriber wraps a subscriber and forwards only events for
// sessions the client currently holds a live subscription slot for. The set
// of live sessions is read straight from the client's subscriptions.Manager,
// so eviction takes effect on the very next event without extra bookkeeping.
//
// Events without a session ID (global events: repository changes, heartbeats)
// are always forwarded.
type SessionFilteredSubscriber struct {
	inner ports.Subscriber
	live  *subscriptions.Manager
}

// NewSessionFilteredSubscriber creates a filtered subscriber wrapping inner,
// consulting live for the forwarding decision.
func NewSessionFilteredSubscriber(inner ports.Subscriber, live *subscriptions.Manager) *SessionFilteredSubscriber {
	return &SessionFilteredSubscriber{inner: inner, live: live}
}

// ID returns the subscriber's unique identifier.
func (f *SessionFilteredSubscriber) ID() string {
	return f.inner.ID()
}

// Send forwards the event to the wrapped subscriber if it passes the filter.
func (f *SessionFilteredSubscriber) Send(event events.Event) error {
	if !f.shouldForward(event) {
		return nil // silently skip events for sessions the client isn't watching
	}
	return f.inner.Send(event)
}

// Close closes the wrapped subscriber.
func (f *SessionFilteredSubscriber) Close() error {
	return f.inner.Close()
}

// Done returns a channel that's closed when the subscriber is done.
func (f *SessionFilteredSubscriber) Done() <-chan struct{} {
	return f.inner.Done()
}

func (f *SessionFilteredSubscriber) shouldForward(event events.Event) bool {
	// Eviction notices carry the session they name precisely because that
	// session is no longer live; they are addressed to the client whose
	// visit displaced it, not to clients still streaming the session.
	if event.Type() == events.EventTypeSessionEvicted {
		if base, ok := event.(*events.BaseEvent); ok {
			if payload, ok := base.Payload.(events.SessionEvictedPayload); ok {
				return payload.ClientID == f.inner.ID()
			}
		}
		return false
	}

	sessionID := event.GetSessionID()
	if sessionID == "" {
		return true
	}
	return f.live.Controller(sessionID) != nil
}
