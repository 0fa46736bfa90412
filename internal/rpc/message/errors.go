package message

import (
	"encoding/json"
	"errors"

	"github.com/sandcastle-dev/sandcastle/internal/domain"
)

// Standard JSON-RPC 2.0 error codes.
const (
	// ParseError indicates invalid JSON was received.
	ParseError = -32700

	// InvalidRequest indicates the JSON is not a valid Request object.
	InvalidRequest = -32600

	// MethodNotFound indicates the method does not exist.
	MethodNotFound = -32601

	// InvalidParams indicates invalid method parameters.
	InvalidParams = -32602

	// InternalError indicates an internal JSON-RPC error.
	InternalError = -32603
)

// Application error codes (-32001 to -32050).
const (
	// Session errors
	SessionNotFound = -32010

	// Repository errors
	RepositoryNotFound = -32020
	RepositoryExists   = -32021
	NotAGitRepo        = -32022

	// Worktree errors
	WorktreeNotFound        = -32030
	WorktreeExists          = -32031
	WorktreeOperationFailed = -32032

	// Storage errors
	StoreError = -32040
)

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new JSON-RPC error.
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithData creates a new JSON-RPC error with additional data.
func NewErrorWithData(code int, message string, data interface{}) *Error {
	err := &Error{
		Code:    code,
		Message: message,
	}

	if data != nil {
		if d, e := json.Marshal(data); e == nil {
			err.Data = d
		}
	}

	return err
}

// Standard error constructors.

// ErrParseError creates a parse error.
func ErrParseError(message string) *Error {
	if message == "" {
		message = "Parse error"
	}
	return NewError(ParseError, message)
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *Error {
	if message == "" {
		message = "Invalid Request"
	}
	return NewError(InvalidRequest, message)
}

// ErrMethodNotFound creates a method not found error.
func ErrMethodNotFound(method string) *Error {
	return NewError(MethodNotFound, "Method not found: "+method)
}

// ErrInvalidParams creates an invalid params error.
func ErrInvalidParams(message string) *Error {
	if message == "" {
		message = "Invalid params"
	}
	return NewError(InvalidParams, message)
}

// ErrInternalError creates an internal error.
func ErrInternalError(message string) *Error {
	if message == "" {
		message = "Internal error"
	}
	return NewError(InternalError, message)
}

// Application error constructors.

// ErrSessionNotFound creates a session not found error.
func ErrSessionNotFound(sessionID string) *Error {
	return NewErrorWithData(SessionNotFound, "Session not found", map[string]string{
		"session_id": sessionID,
	})
}

// ErrRepositoryNotFound creates a repository not found error.
func ErrRepositoryNotFound(repositoryID string) *Error {
	return NewErrorWithData(RepositoryNotFound, "Repository not found", map[string]string{
		"repository_id": repositoryID,
	})
}

// ErrRepositoryExists creates a repository already registered error.
func ErrRepositoryExists(path string) *Error {
	return NewErrorWithData(RepositoryExists, "Repository already registered", map[string]string{
		"path": path,
	})
}

// ErrNotAGitRepo creates a not a git repository error.
func ErrNotAGitRepo(path string) *Error {
	return NewErrorWithData(NotAGitRepo, "Not a git repository", map[string]string{
		"path": path,
	})
}

// ErrWorktreeNotFound creates a worktree not found error.
func ErrWorktreeNotFound(path string) *Error {
	return NewErrorWithData(WorktreeNotFound, "Worktree not found", map[string]string{
		"path": path,
	})
}

// ErrWorktreeExists creates a worktree already exists error.
func ErrWorktreeExists(path string) *Error {
	return NewErrorWithData(WorktreeExists, "Worktree already exists", map[string]string{
		"path": path,
	})
}

// ErrWorktreeOperationFailed creates a worktree operation failed error.
func ErrWorktreeOperationFailed(op, detail string) *Error {
	msg := "Worktree operation failed"
	if detail != "" {
		msg += ": " + detail
	}
	return NewErrorWithData(WorktreeOperationFailed, msg, map[string]string{
		"operation": op,
	})
}

// ErrStoreError creates a storage error.
func ErrStoreError(message string) *Error {
	if message == "" {
		message = "Storage error"
	}
	return NewError(StoreError, message)
}

// FromError maps an application error to a JSON-RPC error. Unrecognized
// errors become internal errors.
func FromError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var wtErr *domain.WorktreeError
	if errors.As(err, &wtErr) {
		detail := wtErr.Stderr
		if detail == "" {
			detail = wtErr.Err.Error()
		}
		return ErrWorktreeOperationFailed(wtErr.Op, detail)
	}

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return NewError(SessionNotFound, "Session not found")
	case errors.Is(err, domain.ErrRepositoryNotFound):
		return NewError(RepositoryNotFound, "Repository not found")
	case errors.Is(err, domain.ErrRepositoryExists):
		return NewError(RepositoryExists, "Repository already registered")
	case errors.Is(err, domain.ErrNotGitRepo):
		return NewError(NotAGitRepo, "Not a git repository")
	case errors.Is(err, domain.ErrWorktreeNotFound):
		return NewError(WorktreeNotFound, "Worktree not found")
	case errors.Is(err, domain.ErrWorktreeExists):
		return NewError(WorktreeExists, "Worktree already exists")
	default:
		return ErrInternalError(err.Error())
	}
}

// ErrorCodeName returns a human-readable name for an error code.
func ErrorCodeName(code int) string {
	switch code {
	case ParseError:
		return "ParseError"
	case InvalidRequest:
		return "InvalidRequest"
	case MethodNotFound:
		return "MethodNotFound"
	case InvalidParams:
		return "InvalidParams"
	case InternalError:
		return "InternalError"
	case SessionNotFound:
		return "SessionNotFound"
	case RepositoryNotFound:
		return "RepositoryNotFound"
	case RepositoryExists:
		return "RepositoryExists"
	case NotAGitRepo:
		return "NotAGitRepo"
	case WorktreeNotFound:
		return "WorktreeNotFound"
	case WorktreeExists:
		return "WorktreeExists"
	case WorktreeOperationFailed:
		return "WorktreeOperationFailed"
	case StoreError:
		return "StoreError"
	default:
		return "UnknownError"
	}
}
