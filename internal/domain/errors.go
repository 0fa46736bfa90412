// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrRepositoryExists   = errors.New("repository already registered")
	ErrNotGitRepo         = errors.New("not a git repository")
	ErrSessionNotFound    = errors.New("session not found")
	ErrWorktreeNotFound   = errors.New("worktree not found")
	ErrWorktreeExists     = errors.New("worktree already exists")
	ErrTranscriptNotFound = errors.New("session transcript not found")
	ErrHubNotRunning      = errors.New("event hub is not running")
	ErrSubscriberClosed   = errors.New("subscriber is closed")
)

// WorktreeError represents an error from a git worktree operation.
type WorktreeError struct {
	Op     string // Operation that failed (add, list, remove, prune)
	Path   string // Worktree path, if known
	Err    error  // Underlying error
	Stderr string // Trailing git stderr output, if any
}

func (e *WorktreeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git worktree %s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("git worktree %s: %v", e.Op, e.Err)
}

func (e *WorktreeError) Unwrap() error {
	return e.Err
}

// NewWorktreeError creates a new WorktreeError.
func NewWorktreeError(op, path string, err error, stderr string) *WorktreeError {
	return &WorktreeError{Op: op, Path: path, Err: err, Stderr: stderr}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
