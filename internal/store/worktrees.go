package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sandcastle-dev/sandcastle/internal/domain"
)

// CreateWorktree records a worktree created for a repository.
func (s *Store) CreateWorktree(ctx context.Context, wt *Worktree) error {
	wt.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO worktrees (id, repository_id, path, branch, created_at) VALUES (?, ?, ?, ?, ?)",
		wt.ID, wt.RepositoryID, wt.Path, wt.Branch, wt.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrWorktreeExists
		}
		return fmt.Errorf("failed to create worktree: %w", err)
	}
	return nil
}

// GetWorktreeByPath returns the worktree record at path.
func (s *Store) GetWorktreeByPath(ctx context.Context, path string) (*Worktree, error) {
	var wt Worktree
	err := s.db.QueryRowContext(ctx,
		"SELECT id, repository_id, path, branch, created_at FROM worktrees WHERE path = ?", path,
	).Scan(&wt.ID, &wt.RepositoryID, &wt.Path, &wt.Branch, &wt.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWorktreeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	return &wt, nil
}

// ListWorktrees returns worktree records, optionally filtered by repository.
func (s *Store) ListWorktrees(ctx context.Context, repositoryID string) ([]*Worktree, error) {
	query := "SELECT id, repository_id, path, branch, created_at FROM worktrees"
	args := []interface{}{}
	if repositoryID != "" {
		query += " WHERE repository_id = ?"
		args = append(args, repositoryID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}
	defer rows.Close()

	worktrees := make([]*Worktree, 0)
	for rows.Next() {
		var wt Worktree
		if err := rows.Scan(&wt.ID, &wt.RepositoryID, &wt.Path, &wt.Branch, &wt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan worktree: %w", err)
		}
		worktrees = append(worktrees, &wt)
	}
	return worktrees, rows.Err()
}

// DeleteWorktreeByPath removes the worktree record at path. Missing records
// are a no-op: prune may race with explicit removal.
func (s *Store) DeleteWorktreeByPath(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM worktrees WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("failed to delete worktree: %w", err)
	}
	return nil
}
