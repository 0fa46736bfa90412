// Package events defines all event types published on the hub.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Session events
	EventTypeSessionCreated  EventType = "session_created"
	EventTypeSessionArchived EventType = "session_archived"
	EventTypeSessionMessage  EventType = "session_message"
	EventTypeSessionVisited  EventType = "session_visited"
	EventTypeSessionLeft     EventType = "session_left"
	EventTypeSessionEvicted  EventType = "session_evicted" // superseded by a newer live subscription

	// Repository events
	EventTypeRepositoryRegistered EventType = "repository_registered"
	EventTypeRepositoryRemoved    EventType = "repository_removed"

	// Worktree events
	EventTypeWorktreeCreated EventType = "worktree_created"
	EventTypeWorktreeRemoved EventType = "worktree_removed"
	EventTypeWorktreePruned  EventType = "worktree_pruned"

	// Stream events
	EventTypeStreamCaughtUp EventType = "stream_caught_up" // transcript reader reached end of file

	// Connection events
	EventTypeHeartbeat EventType = "heartbeat"

	// Response events
	EventTypeError EventType = "error"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)

	// GetRepositoryID returns the repository ID (may be empty).
	GetRepositoryID() string

	// GetSessionID returns the session ID (may be empty).
	GetSessionID() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType    EventType   `json:"event"`
	EventTime    time.Time   `json:"timestamp"`
	RepositoryID string      `json:"repository_id,omitempty"`
	SessionID    string      `json:"session_id,omitempty"`
	Payload      interface{} `json:"payload"`
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GetRepositoryID returns the repository ID.
func (e *BaseEvent) GetRepositoryID() string {
	return e.RepositoryID
}

// GetSessionID returns the session ID.
func (e *BaseEvent) GetSessionID() string {
	return e.SessionID
}

// SetContext sets the repository and session context for an event.
func (e *BaseEvent) SetContext(repositoryID, sessionID string) {
	e.RepositoryID = repositoryID
	e.SessionID = sessionID
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewEventWithContext creates a new event with repository and session context.
func NewEventWithContext(eventType EventType, payload interface{}, repositoryID, sessionID string) *BaseEvent {
	return &BaseEvent{
		EventType:    eventType,
		EventTime:    time.Now().UTC(),
		RepositoryID: repositoryID,
		SessionID:    sessionID,
		Payload:      payload,
	}
}
