// Package subscriptions tracks which sessions currently hold a live
// streaming slot for a single client. The Manager enforces a hard cap on
// simultaneously-live subscriptions: visiting a new session beyond capacity
// evicts the least-recently-visited one and cancels its in-flight work.
package subscriptions

import "sync"

// DefaultMaxLive is the default number of simultaneously-live subscriptions
// per client.
const DefaultMaxLive = 3

// entry associates a session with the cancellation handle the Manager owns
// for that session's in-flight work.
type entry struct {
	sessionID  string
	controller *Controller
}

// Visit is the outcome of Manager.Visit. Evicted is the session that lost
// its slot to make room, or empty when nothing was evicted.
type Visit struct {
	IsNew   bool
	Evicted string
}

// Manager is the single authority over which sessions hold a live
// subscription slot. Entries are kept most-recently-visited first in a plain
// slice; capacities are single-digit by design, so linear scans beat any
// indexed structure for auditability.
//
// All methods are safe for concurrent use. None of them block: cancellation
// is signalled and the call returns without waiting for the work to wind
// down.
type Manager struct {
	mu       sync.Mutex
	capacity int
	entries  []entry
}

// NewManager creates a Manager holding at most capacity live subscriptions.
// A capacity below 1 is coerced to 1.
func NewManager(capacity int) *Manager {
	if capacity < 1 {
		capacity = 1
	}
	return &Manager{capacity: capacity}
}

// Visit marks sessionID as the most recently visited session.
//
// If the session already holds a slot it is promoted to the front and keeps
// its existing Controller untouched. Otherwise a new entry with a fresh
// Controller is inserted at the front; if that pushes the manager over
// capacity, the least-recently-visited entry is removed, its Controller
// cancelled, and its session reported as Evicted.
func (m *Manager) Visit(sessionID string) Visit {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].sessionID == sessionID {
			if i > 0 {
				e := m.entries[i]
				copy(m.entries[1:i+1], m.entries[:i])
				m.entries[0] = e
			}
			return Visit{IsNew: false}
		}
	}

	m.entries = append(m.entries, entry{})
	copy(m.entries[1:], m.entries)
	m.entries[0] = entry{sessionID: sessionID, controller: newController()}

	if len(m.entries) > m.capacity {
		last := m.entries[len(m.entries)-1]
		m.entries = m.entries[:len(m.entries)-1]
		last.controller.Cancel()
		return Visit{IsNew: true, Evicted: last.sessionID}
	}

	return Visit{IsNew: true}
}

// Leave removes sessionID's subscription and cancels its Controller.
// Leaving a session that holds no slot is a no-op; Leave is idempotent.
func (m *Manager) Leave(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].sessionID == sessionID {
			ctrl := m.entries[i].controller
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			ctrl.Cancel()
			return
		}
	}
}

// LeaveAll removes every subscription and cancels each Controller. Called
// when the owning client disconnects.
func (m *Manager) LeaveAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		m.entries[i].controller.Cancel()
	}
	m.entries = nil
}

// Controller returns the cancellation handle currently associated with
// sessionID, or nil if the session holds no slot. Pure lookup: the recency
// order is not touched. The result is only valid for the instant of the
// call; an eviction may cancel it at any time after.
func (m *Manager) Controller(sessionID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].sessionID == sessionID {
			return m.entries[i].controller
		}
	}
	return nil
}

// Subscribed returns the tracked session IDs, most recently visited first.
func (m *Manager) Subscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, len(m.entries))
	for i := range m.entries {
		ids[i] = m.entries[i].sessionID
	}
	return ids
}

// Len returns the number of live subscriptions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Capacity returns the configured maximum number of live subscriptions.
func (m *Manager) Capacity() int {
	return m.capacity
}
