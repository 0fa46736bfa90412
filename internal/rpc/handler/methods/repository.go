package methods

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sandcastle-dev/sandcastle/internal/domain"
	"github.com/sandcastle-dev/sandcastle/internal/domain/events"
	"github.com/sandcastle-dev/sandcastle/internal/domain/ports"
	"github.com/sandcastle-dev/sandcastle/internal/rpc/handler"
	"github.com/sandcastle-dev/sandcastle/internal/rpc/message"
	"github.com/sandcastle-dev/sandcastle/internal/store"
)

// RepositoryService handles repository registration RPC methods.
type RepositoryService struct {
	store *store.Store
	hub   ports.EventHub
}

// NewRepositoryService creates a new repository service.
func NewRepositoryService(st *store.Store, hub ports.EventHub) *RepositoryService {
	return &RepositoryService{store: st, hub: hub}
}

// RegisterMethods registers all repository methods with the handler.
func (s *RepositoryService) RegisterMethods(registry *handler.Registry) {
	registry.Register("repository/register", s.Register)
	registry.Register("repository/list", s.List)
	registry.Register("repository/remove", s.Remove)
}

// Register registers a local git repository. The path must exist and
// contain a .git entry.
func (s *RepositoryService) Register(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		Path string `json:"path"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
	}
	if p.Path == "" {
		return nil, message.ErrInvalidParams("path is required")
	}

	absPath, err := filepath.Abs(p.Path)
	if err != nil {
		return nil, message.ErrInvalidParams("invalid path: " + err.Error())
	}

	if _, err := os.Stat(filepath.Join(absPath, ".git")); err != nil {
		return nil, message.FromError(domain.ErrNotGitRepo)
	}

	name := p.Name
	if name == "" {
		name = filepath.Base(absPath)
	}

	repo := &store.Repository{
		ID:   uuid.New().String(),
		Name: name,
		Path: absPath,
	}
	if err := s.store.CreateRepository(ctx, repo); err != nil {
		return nil, message.FromError(err)
	}

	log.Info().
		Str("repository_id", repo.ID).
		Str("path", absPath).
		Msg("repository registered")

	s.hub.Publish(events.NewEventWithContext(events.EventTypeRepositoryRegistered, events.RepositoryPayload{
		RepositoryID: repo.ID,
		Name:         repo.Name,
		Path:         repo.Path,
	}, repo.ID, ""))

	return map[string]interface{}{
		"success":    true,
		"repository": repo,
	}, nil
}

// List returns all registered repositories.
func (s *RepositoryService) List(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	repos, err := s.store.ListRepositories(ctx)
	if err != nil {
		return nil, message.FromError(err)
	}

	return map[string]interface{}{
		"repositories": repos,
		"count":        len(repos),
	}, nil
}

// Remove unregisters a repository. Its sessions and worktree records are
// removed with it; the working tree on disk is left alone.
func (s *RepositoryService) Remove(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p struct {
		RepositoryID string `json:"repository_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, message.ErrInvalidParams("failed to parse params: " + err.Error())
	}
	if p.RepositoryID == "" {
		return nil, message.ErrInvalidParams("repository_id is required")
	}

	repo, err := s.store.GetRepository(ctx, p.RepositoryID)
	if err != nil {
		return nil, message.FromError(err)
	}

	if err := s.store.DeleteRepository(ctx, p.RepositoryID); err != nil {
		return nil, message.FromError(err)
	}

	log.Info().
		Str("repository_id", repo.ID).
		Str("path", repo.Path).
		Msg("repository removed")

	s.hub.Publish(events.NewEventWithContext(events.EventTypeRepositoryRemoved, events.RepositoryPayload{
		RepositoryID: repo.ID,
		Name:         repo.Name,
		Path:         repo.Path,
	}, repo.ID, ""))

	return map[string]interface{}{
		"success":       true,
		"repository_id": p.RepositoryID,
	}, nil
}
