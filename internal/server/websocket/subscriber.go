package websocket

import (
	"github.com/sandcastle-dev/sandcastle/internal/domain"
	"github.com/sandcastle-dev/sandcastle/internal/domain/events"
)

// ClientSubscriber wraps a WebSocket client as an EventHub subscriber.
type ClientSubscriber struct {
	client *Client
}

// NewClientSubscriber creates a subscriber from a WebSocket client.
func NewClientSubscriber(client *Client) *ClientSubscriber {
	return &ClientSubscriber{client: client}
}

// ID returns the subscriber's unique identifier.
func (s *ClientSubscriber) ID() string {
	return s.client.ID()
}

// Send serializes an event and queues it for the client.
func (s *ClientSubscriber) Send(event events.Event) error {
	if s.client.isClosed() {
		return domain.ErrSubscriberClosed
	}

	data, err := event.ToJSON()
	if err != nil {
		return err
	}

	s.client.Send(data)
	return nil
}

// Close closes the underlying client.
func (s *ClientSubscriber) Close() error {
	s.client.Close()
	return nil
}

// Done returns a channel that's closed when the client is done.
func (s *ClientSubscriber) Done() <-chan struct{} {
	return s.client.done
}
