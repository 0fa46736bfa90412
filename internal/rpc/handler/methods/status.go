package methods

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sandcastle-dev/sandcastle/internal/domain/ports"
	"github.com/sandcastle-dev/sandcastle/internal/rpc/handler"
	"github.com/sandcastle-dev/sandcastle/internal/rpc/message"
	"github.com/sandcastle-dev/sandcastle/internal/store"
)

// LiveCounter reports live subscriptions across connected clients.
type LiveCounter interface {
	LiveCount() int
}

// StatusService handles the server status RPC method.
type StatusService struct {
	version string
	started time.Time
	store   *store.Store
	hub     ports.EventHub
	live    LiveCounter
}

// NewStatusService creates a new status service.
func NewStatusService(version string, st *store.Store, hub ports.EventHub, live LiveCounter) *StatusService {
	return &StatusService{
		version: version,
		started: time.Now(),
		store:   st,
		hub:     hub,
		live:    live,
	}
}

// RegisterMethods registers the status method with the handler.
func (s *StatusService) RegisterMethods(registry *handler.Registry) {
	registry.Register("server/status", s.Status)
}

// Status reports server health, uptime, and resource counts.
func (s *StatusService) Status(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	repos, sessions, worktrees, err := s.store.Counts(ctx)
	if err != nil {
		return nil, message.ErrStoreError(err.Error())
	}

	return map[string]interface{}{
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"clients":        s.hub.SubscriberCount(),
		"subscriptions":  s.live.LiveCount(),
		"repositories":   repos,
		"sessions":       sessions,
		"worktrees":      worktrees,
	}, nil
}
