package methods

import (
	"context"
	"encoding/json"

	"github.com/sandcastle-dev/sandcastle/internal/rpc/handler"
	"github.com/sandcastle-dev/sandcastle/internal/rpc/message"
	"github.com/sandcastle-dev/sandcastle/internal/store"
	"github.com/sandcastle-dev/sandcastle/internal/worktree"
)

// WorktreeManager runs git worktree operations for registered repositories.
type WorktreeManager interface {
	Create(ctx context.Context, repositoryID, path, branch string) (*store.Worktree, error)
	List(ctx context.Context, repositoryID string) ([]worktree.Info, error)
	Remove(ctx context.Context, repositoryID, path string, force bool) error
	Prune(ctx context.Context, repositoryID string) ([]string, error)
}

// WorktreeService handles worktree RPC methods.
type WorktreeService struct {
	manager WorktreeManager
}

// NewWorktreeService creates a new worktree service.
func NewWorktreeService(manager WorktreeManager) *WorktreeService {
	return &WorktreeService{manager: manager}
}

// RegisterMethods registers all worktree methods with the handler.
func (s *WorktreeService) RegisterMethods(registry *handler.Registry) {
	registry.Register("worktree/create", s.Create)
	registry.Register("worktree/list", s.List)
	registry.Register("worktree/remove", s.Remove)
	registry.Register("worktree/prune", s.Prune)
}

// Create adds a git worktree for a repository.
func (s *WorktreeService) Create(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		RepositoryID string `json:"repository_id"`
		Path         string `json:"path"`
		Branch       string `json:"branch"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
	}
	if p.RepositoryID == "" {
		return nil, message.ErrInvalidParams("repository_id is required")
	}
	if p.Path == "" {
		return nil, message.ErrInvalidParams("path is required")
	}

	wt, err := s.manager.Create(ctx, p.RepositoryID, p.Path, p.Branch)
	if err != nil {
		return nil, message.FromError(err)
	}

	return map[string]interface{}{
		"success":  true,
		"worktree": wt,
	}, nil
}

// List returns the worktrees git reports for a repository.
func (s *WorktreeService) List(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		RepositoryID string `json:"repository_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
	}
	if p.RepositoryID == "" {
		return nil, message.ErrInvalidParams("repository_id is required")
	}

	infos, err := s.manager.List(ctx, p.RepositoryID)
	if err != nil {
		return nil, message.FromError(err)
	}

	return map[string]interface{}{
		"worktrees": infos,
		"count":     len(infos),
	}, nil
}

// Remove deletes a worktree.
func (s *WorktreeService) Remove(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		RepositoryID string `json:"repository_id"`
		Path         string `json:"path"`
		Force        bool   `json:"force"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
	}
	if p.RepositoryID == "" {
		return nil, message.ErrInvalidParams("repository_id is required")
	}
	if p.Path == "" {
		return nil, message.ErrInvalidParams("path is required")
	}

	if err := s.manager.Remove(ctx, p.RepositoryID, p.Path, p.Force); err != nil {
		return nil, message.FromError(err)
	}

	return map[string]interface{}{
		"success": true,
		"path":    p.Path,
	}, nil
}

// Prune reconciles stored worktrees against what git still reports.
func (s *WorktreeService) Prune(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		RepositoryID string `json:"repository_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
	}
	if p.RepositoryID == "" {
		return nil, message.ErrInvalidParams("repository_id is required")
	}

	pruned, err := s.manager.Prune(ctx, p.RepositoryID)
	if err != nil {
		return nil, message.FromError(err)
	}

	return map[string]interface{}{
		"success": true,
		"pruned":  pruned,
		"count":   len(pruned),
	}, nil
}
