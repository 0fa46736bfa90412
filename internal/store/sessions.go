package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sandcastle-dev/sandcastle/internal/domain"
)

// CreateSession persists a new session. The repository must exist.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, repository_id, title, worktree_path, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		sess.ID, sess.RepositoryID, sess.Title, sess.WorktreePath, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var archived int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, repository_id, title, worktree_path, archived, created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.RepositoryID, &sess.Title, &sess.WorktreePath, &archived, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	sess.Archived = archived != 0
	return &sess, nil
}

// ListSessions returns sessions, optionally filtered by repository.
// Archived sessions are excluded unless includeArchived is set.
func (s *Store) ListSessions(ctx context.Context, repositoryID string, includeArchived bool) ([]*Session, error) {
	query := `SELECT id, repository_id, title, worktree_path, archived, created_at, updated_at
	          FROM sessions WHERE 1=1`
	args := []interface{}{}
	if repositoryID != "" {
		query += " AND repository_id = ?"
		args = append(args, repositoryID)
	}
	if !includeArchived {
		query += " AND archived = 0"
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*Session, 0)
	for rows.Next() {
		var sess Session
		var archived int
		if err := rows.Scan(&sess.ID, &sess.RepositoryID, &sess.Title, &sess.WorktreePath, &archived, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.Archived = archived != 0
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// TouchSession bumps a session's updated_at timestamp.
func (s *Store) TouchSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return requireRow(res, domain.ErrSessionNotFound)
}

// ArchiveSession marks a session archived. Archiving twice is a no-op.
func (s *Store) ArchiveSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET archived = 1, updated_at = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	return requireRow(res, domain.ErrSessionNotFound)
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
