// Package worktree implements the Git CLI wrapper for managing repository
// worktrees.
package worktree

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sandcastle-dev/sandcastle/internal/domain"
	"github.com/sandcastle-dev/sandcastle/internal/domain/events"
	"github.com/sandcastle-dev/sandcastle/internal/domain/ports"
	"github.com/sandcastle-dev/sandcastle/internal/store"
)

// Manager runs git worktree operations for registered repositories and keeps
// the store's worktree table in step with what git reports.
type Manager struct {
	store   *store.Store
	hub     ports.EventHub
	command string
	timeout time.Duration
}

// NewManager creates a new worktree manager. command is the git binary to
// invoke and timeout bounds each git invocation.
func NewManager(st *store.Store, hub ports.EventHub, command string, timeout time.Duration) *Manager {
	return &Manager{
		store:   st,
		hub:     hub,
		command: command,
		timeout: timeout,
	}
}

// Create adds a new worktree for the repository at the given path. When
// branch is non-empty a new branch of that name is created at HEAD.
func (m *Manager) Create(ctx context.Context, repositoryID, path, branch string) (*store.Worktree, error) {
	repo, err := m.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	args := []string{"worktree", "add"}
	if branch != "" {
		args = append(args, "-b", branch)
	}
	args = append(args, path)

	if _, err := m.runGit(ctx, repo.Path, "add", path, args...); err != nil {
		return nil, err
	}

	wt := &store.Worktree{
		ID:           uuid.New().String(),
		RepositoryID: repo.ID,
		Path:         path,
		Branch:       branch,
	}
	if err := m.store.CreateWorktree(ctx, wt); err != nil {
		return nil, err
	}

	log.Info().
		Str("repository_id", repo.ID).
		Str("path", path).
		Str("branch", branch).
		Msg("worktree created")

	m.publish(events.NewEventWithContext(events.EventTypeWorktreeCreated, events.WorktreePayload{
		RepositoryID: repo.ID,
		Path:         path,
		Branch:       branch,
	}, repo.ID, ""))

	return wt, nil
}

// List returns the worktrees git currently knows about for the repository.
// The main checkout is included as the first entry.
func (m *Manager) List(ctx context.Context, repositoryID string) ([]Info, error) {
	repo, err := m.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	output, err := m.runGit(ctx, repo.Path, "list", "", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	return parsePorcelain(output), nil
}

// Remove deletes the worktree at path. force removes worktrees with
// uncommitted changes.
func (m *Manager) Remove(ctx context.Context, repositoryID, path string, force bool) error {
	repo, err := m.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return err
	}

	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	if _, err := m.runGit(ctx, repo.Path, "remove", path, args...); err != nil {
		return err
	}

	if err := m.store.DeleteWorktreeByPath(ctx, path); err != nil {
		return err
	}

	log.Info().
		Str("repository_id", repo.ID).
		Str("path", path).
		Msg("worktree removed")

	m.publish(events.NewEventWithContext(events.EventTypeWorktreeRemoved, events.WorktreePayload{
		RepositoryID: repo.ID,
		Path:         path,
	}, repo.ID, ""))

	return nil
}

// Prune runs git worktree prune and drops store rows for worktrees git no
// longer reports. It returns the paths that were pruned.
func (m *Manager) Prune(ctx context.Context, repositoryID string) ([]string, error) {
	repo, err := m.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	if _, err := m.runGit(ctx, repo.Path, "prune", "", "worktree", "prune"); err != nil {
		return nil, err
	}

	output, err := m.runGit(ctx, repo.Path, "list", "", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	alive := make(map[string]bool)
	for _, info := range parsePorcelain(output) {
		alive[info.Path] = true
	}

	known, err := m.store.ListWorktrees(ctx, repo.ID)
	if err != nil {
		return nil, err
	}

	pruned := make([]string, 0)
	for _, wt := range known {
		if alive[wt.Path] {
			continue
		}
		if err := m.store.DeleteWorktreeByPath(ctx, wt.Path); err != nil {
			return nil, err
		}
		pruned = append(pruned, wt.Path)
	}

	if len(pruned) > 0 {
		log.Info().
			Str("repository_id", repo.ID).
			Strs("pruned", pruned).
			Msg("worktrees pruned")

		m.publish(events.NewEventWithContext(events.EventTypeWorktreePruned, events.WorktreePrunedPayload{
			RepositoryID: repo.ID,
			Pruned:       pruned,
		}, repo.ID, ""))
	}

	return pruned, nil
}

// runGit executes the git binary in dir and returns its stdout. op and path
// label the resulting WorktreeError for callers.
func (m *Manager) runGit(ctx context.Context, dir, op, path string, args ...string) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, m.command, args...)
	cmd.Dir = dir

	output, err := cmd.Output()
	if err != nil {
		stderr := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		log.Debug().
			Str("op", op).
			Str("dir", dir).
			Str("stderr", stderr).
			Err(err).
			Msg("git command failed")
		return "", domain.NewWorktreeError(op, path, err, stderr)
	}

	return string(output), nil
}

func (m *Manager) publish(event events.Event) {
	if m.hub == nil {
		return
	}
	m.hub.Publish(event)
}
