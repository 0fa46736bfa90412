package store

import "time"

// Repository is a registered git repository.
type Repository struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a chat session bound to a repository, optionally pinned to a
// worktree.
type Session struct {
	ID           string    `json:"id"`
	RepositoryID string    `json:"repository_id"`
	Title        string    `json:"title,omitempty"`
	WorktreePath string    `json:"worktree_path,omitempty"`
	Archived     bool      `json:"archived"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Worktree is a git worktree created for a repository.
type Worktree struct {
	ID           string    `json:"id"`
	RepositoryID string    `json:"repository_id"`
	Path         string    `json:"path"`
	Branch       string    `json:"branch,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
