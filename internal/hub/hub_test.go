package hub

import (
	"testing"
	"time"

	"github.com/sandcastle-dev/sandcastle/internal/domain/events"
	"github.com/sandcastle-dev/sandcastle/internal/testutil"
)

func TestHub_StartStop(t *testing.T) {
	h := New()

	if err := h.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !h.IsRunning() {
		t.Error("hub should be running after Start()")
	}

	// Starting again should be a no-op
	if err := h.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	if err := h.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if h.IsRunning() {
		t.Error("hub should not be running after Stop()")
	}

	// Stopping again should be a no-op
	if err := h.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	h := New()
	_ = h.Start()
	defer func() { _ = h.Stop() }()

	sub := testutil.NewMockSubscriber("test-1")
	h.Subscribe(sub)

	waitFor(t, func() bool { return h.SubscriberCount() == 1 })

	h.Unsubscribe("test-1")

	waitFor(t, func() bool { return h.SubscriberCount() == 0 })

	if !sub.IsClosed() {
		t.Error("subscriber should be closed after unsubscribe")
	}
}

func TestHub_Publish(t *testing.T) {
	h := New()
	_ = h.Start()
	defer func() { _ = h.Stop() }()

	sub := testutil.NewMockSubscriber("test-1")
	h.Subscribe(sub)
	waitFor(t, func() bool { return h.SubscriberCount() == 1 })

	h.Publish(events.NewEvent(events.EventTypeHeartbeat, nil))

	waitFor(t, func() bool { return len(sub.Received()) == 1 })

	got := sub.Received()[0]
	if got.Type() != events.EventTypeHeartbeat {
		t.Errorf("received event type = %q, want heartbeat", got.Type())
	}
}

func TestHub_StopClosesSubscribers(t *testing.T) {
	h := New()
	_ = h.Start()

	sub := testutil.NewMockSubscriber("test-1")
	h.Subscribe(sub)
	waitFor(t, func() bool { return h.SubscriberCount() == 1 })

	_ = h.Stop()

	if !sub.IsClosed() {
		t.Error("Stop should close all subscribers")
	}
	if h.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d after Stop, want 0", h.SubscriberCount())
	}
}

func TestHub_FailingSubscriberIsRemoved(t *testing.T) {
	h := New()
	_ = h.Start()
	defer func() { _ = h.Stop() }()

	sub := testutil.NewMockSubscriber("test-1")
	h.Subscribe(sub)
	waitFor(t, func() bool { return h.SubscriberCount() == 1 })

	// A closed subscriber fails Send; the hub should drop it.
	_ = sub.Close()
	h.Publish(events.NewEvent(events.EventTypeHeartbeat, nil))

	waitFor(t, func() bool { return h.SubscriberCount() == 0 })
}

// waitFor polls cond until it's true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
