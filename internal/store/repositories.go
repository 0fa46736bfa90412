package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandcastle-dev/sandcastle/internal/domain"
)

// CreateRepository registers a repository. The path must be unique.
func (s *Store) CreateRepository(ctx context.Context, repo *Repository) error {
	repo.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO repositories (id, name, path, created_at) VALUES (?, ?, ?, ?)",
		repo.ID, repo.Name, repo.Path, repo.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrRepositoryExists
		}
		return fmt.Errorf("failed to create repository: %w", err)
	}
	return nil
}

// GetRepository returns a repository by ID.
func (s *Store) GetRepository(ctx context.Context, id string) (*Repository, error) {
	var repo Repository
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, path, created_at FROM repositories WHERE id = ?", id,
	).Scan(&repo.ID, &repo.Name, &repo.Path, &repo.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRepositoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return &repo, nil
}

// GetRepositoryByPath returns a repository by its filesystem path.
func (s *Store) GetRepositoryByPath(ctx context.Context, path string) (*Repository, error) {
	var repo Repository
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, path, created_at FROM repositories WHERE path = ?", path,
	).Scan(&repo.ID, &repo.Name, &repo.Path, &repo.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRepositoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return &repo, nil
}

// ListRepositories returns all registered repositories, newest first.
func (s *Store) ListRepositories(ctx context.Context) ([]*Repository, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, path, created_at FROM repositories ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	repos := make([]*Repository, 0)
	for rows.Next() {
		var repo Repository
		if err := rows.Scan(&repo.ID, &repo.Name, &repo.Path, &repo.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, &repo)
	}
	return repos, rows.Err()
}

// DeleteRepository removes a repository and, via cascade, its sessions and
// worktree records.
func (s *Store) DeleteRepository(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM repositories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRepositoryNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure. modernc.org/sqlite doesn't export a typed error for this, so
// match on the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
