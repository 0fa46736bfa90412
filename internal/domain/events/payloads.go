package events

import "encoding/json"

// SessionMessagePayload carries one transcript line streamed from a live
// session.
type SessionMessagePayload struct {
	SessionID string          `json:"session_id"`
	Line      int64           `json:"line"`
	Message   json.RawMessage `json:"message"`
}

// SessionEvictedPayload tells a client that one of its live subscriptions
// was displaced by a newer one. The stream for the evicted session ends
// cleanly after this event. ClientID identifies the client whose visit
// displaced the session; transports deliver the event only to that client.
type SessionEvictedPayload struct {
	SessionID    string `json:"session_id"`
	SupersededBy string `json:"superseded_by"`
	ClientID     string `json:"client_id"`
}

// StreamCaughtUpPayload marks the point where a transcript stream has
// replayed all existing lines and switches to live tailing.
type StreamCaughtUpPayload struct {
	SessionID string `json:"session_id"`
	Lines     int64  `json:"lines"`
}

// SessionLifecyclePayload is shared by session created/archived events.
type SessionLifecyclePayload struct {
	SessionID    string `json:"session_id"`
	RepositoryID string `json:"repository_id"`
	Title        string `json:"title,omitempty"`
}

// WorktreePayload is shared by worktree created/removed events.
type WorktreePayload struct {
	RepositoryID string `json:"repository_id"`
	Path         string `json:"path"`
	Branch       string `json:"branch,omitempty"`
}

// WorktreePrunedPayload reports the outcome of a prune pass.
type WorktreePrunedPayload struct {
	RepositoryID string   `json:"repository_id"`
	Pruned       []string `json:"pruned"`
}

// RepositoryPayload is shared by repository registered/removed events.
type RepositoryPayload struct {
	RepositoryID string `json:"repository_id"`
	Name         string `json:"name"`
	Path         string `json:"path"`
}

// HeartbeatPayload is broadcast periodically to all connected clients.
type HeartbeatPayload struct {
	Sequence      int64 `json:"sequence"`
	UptimeSeconds int64 `json:"uptime_seconds"`
	Subscriptions int   `json:"subscriptions"`
}

// ErrorPayload carries an error event to clients.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
