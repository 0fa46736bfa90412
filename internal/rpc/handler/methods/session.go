package methods

import (
	"context"
	"encoding/json"

	"github.com/sandcastle-dev/sandcastle/internal/rpc/handler"
	"github.com/sandcastle-dev/sandcastle/internal/rpc/message"
	"github.com/sandcastle-dev/sandcastle/internal/store"
)

// SessionManager manages session persistence.
type SessionManager interface {
	Create(ctx context.Context, repositoryID, title, worktreePath string) (*store.Session, error)
	Get(ctx context.Context, sessionID string) (*store.Session, error)
	List(ctx context.Context, repositoryID string, includeArchived bool) ([]*store.Session, error)
	Archive(ctx context.Context, sessionID string) error
}

// SessionService handles session CRUD RPC methods.
type SessionService struct {
	manager SessionManager
}

// NewSessionService creates a new session service.
func NewSessionService(manager SessionManager) *SessionService {
	return &SessionService{manager: manager}
}

// RegisterMethods registers all session methods with the handler.
func (s *SessionService) RegisterMethods(registry *handler.Registry) {
	registry.Register("session/create", s.Create)
	registry.Register("session/get", s.Get)
	registry.Register("session/list", s.List)
	registry.Register("session/archive", s.Archive)
}

// Create creates a new session for a registered repository.
func (s *SessionService) Create(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		RepositoryID string `json:"repository_id"`
		Title        string `json:"title"`
		WorktreePath string `json:"worktree_path"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
	}
	if p.RepositoryID == "" {
		return nil, message.ErrInvalidParams("repository_id is required")
	}

	sess, err := s.manager.Create(ctx, p.RepositoryID, p.Title, p.WorktreePath)
	if err != nil {
		return nil, message.FromError(err)
	}

	return map[string]interface{}{
		"success": true,
		"session": sess,
	}, nil
}

// Get returns a session by ID.
func (s *SessionService) Get(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
	}
	if p.SessionID == "" {
		return nil, message.ErrInvalidParams("session_id is required")
	}

	sess, err := s.manager.Get(ctx, p.SessionID)
	if err != nil {
		return nil, message.FromError(err)
	}

	return map[string]interface{}{
		"session": sess,
	}, nil
}

// List returns sessions, optionally scoped to a repository.
func (s *SessionService) List(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		RepositoryID    string `json:"repository_id"`
		IncludeArchived bool   `json:"include_archived"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
		}
	}

	sessions, err := s.manager.List(ctx, p.RepositoryID, p.IncludeArchived)
	if err != nil {
		return nil, message.FromError(err)
	}

	return map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	}, nil
}

// Archive marks a session archived. Live subscriptions to it are dropped.
func (s *SessionService) Archive(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
	}
	if p.SessionID == "" {
		return nil, message.ErrInvalidParams("session_id is required")
	}

	if err := s.manager.Archive(ctx, p.SessionID); err != nil {
		return nil, message.FromError(err)
	}

	return map[string]interface{}{
		"success":    true,
		"session_id": p.SessionID,
	}, nil
}
