package tasks

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the requested task row does not exist.
	ErrNotFound = errors.New("task not found in store")
	// ErrInvalidArgument means the request was malformed before it reached
	// the store (empty text, bad worker set).
	ErrInvalidArgument = errors.New("invalid task argument")
	// ErrUnavailable wraps connectivity failures so callers can tell a
	// broken store apart from a rejected operation.
	ErrUnavailable = errors.New("task store unavailable")
)

// Store is the persistent task repository. Every mutating call is a single
// atomic conditional update: the authorization predicate and the state
// precondition are evaluated by the store itself in the same step that
// writes, and the boolean result reports whether any row actually changed.
// A false result is a normal denial, never an error.
type Store interface {
	Add(ctx context.Context, chatID, creatorID int64, text string, opts AddOptions) (int64, error)
	Close(ctx context.Context, taskID, chatID, userID int64, isAdmin bool) (bool, error)
	Assign(ctx context.Context, taskID, chatID, userID int64, workers []int64, isAdmin bool) (bool, error)
	RemoveWorker(ctx context.Context, taskID, chatID, userID int64) (bool, error)
	SetDeadline(ctx context.Context, taskID, chatID, userID int64, deadline *time.Time) (bool, error)
	SetMarked(ctx context.Context, taskID, chatID, userID int64, marked, isAdmin bool) (bool, error)
	List(ctx context.Context, chatID int64, freeOnly bool) ([]Task, error)
	ListByWorker(ctx context.Context, userID int64) ([]Task, error)
	Info(ctx context.Context, taskID int64) (Task, error)
	CloseStore() error
}
