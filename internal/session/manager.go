// Package session orchestrates chat sessions: persistence, per-client live
// subscriptions, and the transcript streams bound to them.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/sandcastle-dev/sandcastle/internal/config"
	"github.com/sandcastle-dev/sandcastle/internal/domain/events"
	"github.com/sandcastle-dev/sandcastle/internal/domain/ports"
	"github.com/sandcastle-dev/sandcastle/internal/store"
	"github.com/sandcastle-dev/sandcastle/internal/stream"
	"github.com/sandcastle-dev/sandcastle/internal/subscriptions"
)

// clientState tracks one connected client's live subscriptions and the
// transcript streamers serving them.
type clientState struct {
	live    *subscriptions.Manager
	streams map[string]*stream.Streamer // keyed by session ID
}

// Manager orchestrates sessions across connected clients. Each client gets
// its own capacity-bounded set of live subscriptions; visiting a session
// starts a transcript stream tied to that subscription's lifetime.
type Manager struct {
	store  *store.Store
	hub    ports.EventHub
	cfg    *config.Config
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*clientState
}

// NewManager creates a new session manager.
func NewManager(st *store.Store, hub ports.EventHub, cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		store:   st,
		hub:     hub,
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*clientState),
	}
}

// RegisterClient creates the live subscription set for a newly connected
// client and returns it so transports can wire event filtering to it.
func (m *Manager) RegisterClient(clientID string) *subscriptions.Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.clients[clientID]; ok {
		return state.live
	}

	state := &clientState{
		live:    subscriptions.NewManager(m.cfg.Subscriptions.MaxLive),
		streams: make(map[string]*stream.Streamer),
	}
	m.clients[clientID] = state

	m.logger.Debug("client registered", "client_id", clientID, "max_live", state.live.Capacity())
	return state.live
}

// UnregisterClient cancels all of a client's live subscriptions. The
// transcript streamers stop on their own once their contexts end.
func (m *Manager) UnregisterClient(clientID string) {
	m.mu.Lock()
	state, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	state.live.LeaveAll()
	m.logger.Debug("client unregistered", "client_id", clientID)
}

// Live returns the client's live subscription set, or nil if the client is
// not registered.
func (m *Manager) Live(clientID string) *subscriptions.Manager {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.clients[clientID]; ok {
		return state.live
	}
	return nil
}

// VisitResult reports the outcome of a Visit: the session that went live
// and the session displaced from the client's live set, if any.
type VisitResult struct {
	Session *store.Session
	Evicted string
}

// Visit marks a session live for the client. A new subscription starts a
// transcript stream for the session; revisiting only refreshes its
// recency. When the visit displaces the least recently visited session, a
// session_evicted event is published for it, its stream ends, and its ID
// is reported in the result so callers can surface the eviction.
func (m *Manager) Visit(ctx context.Context, clientID, sessionID string) (*VisitResult, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	state, ok := m.clients[clientID]
	if !ok {
		state = &clientState{
			live:    subscriptions.NewManager(m.cfg.Subscriptions.MaxLive),
			streams: make(map[string]*stream.Streamer),
		}
		m.clients[clientID] = state
	}
	m.mu.Unlock()

	visit := state.live.Visit(sessionID)

	if visit.Evicted != "" {
		m.mu.Lock()
		delete(state.streams, visit.Evicted)
		m.mu.Unlock()

		// The evicted session may live in a different repository than the
		// one just visited.
		evictedRepo := ""
		if evicted, err := m.store.GetSession(ctx, visit.Evicted); err == nil {
			evictedRepo = evicted.RepositoryID
		}

		m.logger.Info("session evicted", "client_id", clientID, "session_id", visit.Evicted, "superseded_by", sessionID)
		m.hub.Publish(events.NewEventWithContext(events.EventTypeSessionEvicted, events.SessionEvictedPayload{
			SessionID:    visit.Evicted,
			SupersededBy: sessionID,
			ClientID:     clientID,
		}, evictedRepo, visit.Evicted))
	}

	if visit.IsNew {
		ctrl := state.live.Controller(sessionID)
		streamer := stream.NewStreamer(m.cfg.Sessions.TranscriptsDir, sess.RepositoryID, sessionID, m.hub)

		m.mu.Lock()
		state.streams[sessionID] = streamer
		m.mu.Unlock()

		go func() {
			if err := streamer.Run(ctrl.Context()); err != nil {
				m.logger.Warn("transcript stream failed", "session_id", sessionID, "error", err)
			}
			m.mu.Lock()
			if state.streams[sessionID] == streamer {
				delete(state.streams, sessionID)
			}
			m.mu.Unlock()
		}()

		m.logger.Info("session visited", "client_id", clientID, "session_id", sessionID)
		m.hub.Publish(events.NewEventWithContext(events.EventTypeSessionVisited, events.SessionLifecyclePayload{
			SessionID:    sessionID,
			RepositoryID: sess.RepositoryID,
			Title:        sess.Title,
		}, sess.RepositoryID, sessionID))
	}

	if err := m.store.TouchSession(ctx, sessionID); err != nil {
		m.logger.Warn("failed to touch session", "session_id", sessionID, "error", err)
	}

	return &VisitResult{Session: sess, Evicted: visit.Evicted}, nil
}

// Leave drops the client's live subscription for the session. Leaving a
// session that is not live is a no-op.
func (m *Manager) Leave(ctx context.Context, clientID, sessionID string) error {
	m.mu.Lock()
	state, ok := m.clients[clientID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if state.live.Controller(sessionID) == nil {
		return nil
	}

	state.live.Leave(sessionID)

	m.mu.Lock()
	delete(state.streams, sessionID)
	m.mu.Unlock()

	repositoryID := ""
	if sess, err := m.store.GetSession(ctx, sessionID); err == nil {
		repositoryID = sess.RepositoryID
	}

	m.logger.Info("session left", "client_id", clientID, "session_id", sessionID)
	m.hub.Publish(events.NewEventWithContext(events.EventTypeSessionLeft, events.SessionLifecyclePayload{
		SessionID:    sessionID,
		RepositoryID: repositoryID,
	}, repositoryID, sessionID))

	return nil
}

// Subscribed returns the client's live sessions, most recently visited
// first.
func (m *Manager) Subscribed(clientID string) []string {
	m.mu.Lock()
	state, ok := m.clients[clientID]
	m.mu.Unlock()

	if !ok {
		return []string{}
	}
	return state.live.Subscribed()
}

// LiveCount returns the total number of live subscriptions across all
// connected clients.
func (m *Manager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, state := range m.clients {
		total += state.live.Len()
	}
	return total
}

// Create persists a new session for a registered repository.
func (m *Manager) Create(ctx context.Context, repositoryID, title, worktreePath string) (*store.Session, error) {
	repo, err := m.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	sess := &store.Session{
		ID:           uuid.New().String(),
		RepositoryID: repo.ID,
		Title:        title,
		WorktreePath: worktreePath,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	m.logger.Info("session created", "session_id", sess.ID, "repository_id", repo.ID)
	m.hub.Publish(events.NewEventWithContext(events.EventTypeSessionCreated, events.SessionLifecyclePayload{
		SessionID:    sess.ID,
		RepositoryID: repo.ID,
		Title:        title,
	}, repo.ID, sess.ID))

	return sess, nil
}

// Get returns a session by ID.
func (m *Manager) Get(ctx context.Context, sessionID string) (*store.Session, error) {
	return m.store.GetSession(ctx, sessionID)
}

// List returns sessions, optionally scoped to a repository. Archived
// sessions are included only when requested.
func (m *Manager) List(ctx context.Context, repositoryID string, includeArchived bool) ([]*store.Session, error) {
	return m.store.ListSessions(ctx, repositoryID, includeArchived)
}

// Archive marks a session archived and drops any live subscriptions to it
// across all clients.
func (m *Manager) Archive(ctx context.Context, sessionID string) error {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := m.store.ArchiveSession(ctx, sessionID); err != nil {
		return err
	}

	m.mu.Lock()
	states := make([]*clientState, 0, len(m.clients))
	for _, state := range m.clients {
		states = append(states, state)
	}
	m.mu.Unlock()

	for _, state := range states {
		if state.live.Controller(sessionID) != nil {
			state.live.Leave(sessionID)
			m.mu.Lock()
			delete(state.streams, sessionID)
			m.mu.Unlock()
		}
	}

	m.logger.Info("session archived", "session_id", sessionID)
	m.hub.Publish(events.NewEventWithContext(events.EventTypeSessionArchived, events.SessionLifecyclePayload{
		SessionID:    sessionID,
		RepositoryID: sess.RepositoryID,
		Title:        sess.Title,
	}, sess.RepositoryID, sessionID))

	return nil
}

// Stop cancels every client's live subscriptions.
func (m *Manager) Stop() error {
	m.mu.Lock()
	states := make([]*clientState, 0, len(m.clients))
	for _, state := range m.clients {
		states = append(states, state)
	}
	m.clients = make(map[string]*clientState)
	m.mu.Unlock()

	for _, state := range states {
		state.live.LeaveAll()
	}

	m.logger.Info("session manager stopped")
	return nil
}
