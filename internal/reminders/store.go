// Package reminders holds the per-user scheduled reminders and the periodic
// delivery sweep. Reminders reference tasks and are cascade-canceled by the
// task store when a task closes.
package reminders

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidArgument means the reminder request was rejected before
	// persisting, typically a trigger instant that is not in the future.
	ErrInvalidArgument = errors.New("invalid reminder argument")
	// ErrUnavailable wraps connectivity failures.
	ErrUnavailable = errors.New("reminder store unavailable")
	// ErrNotFound means the requested reminder row does not exist.
	ErrNotFound = errors.New("reminder not found in store")
)

// Reminder is one scheduled notification. Rows are never deleted; delivery
// and cancellation both flip the canceled flag.
type Reminder struct {
	ID       int64     `json:"id"`
	TaskID   int64     `json:"task_id"`
	UserID   int64     `json:"user_id"`
	At       time.Time `json:"datetime"`
	Canceled bool      `json:"canceled"`
}

// DueReminder joins a due reminder with its task's current text and
// deadline for message composition.
type DueReminder struct {
	Reminder
	TaskText     string     `json:"task_text"`
	TaskDeadline *time.Time `json:"task_deadline,omitempty"`
}

type Store interface {
	// Create persists a reminder; at must be strictly in the future.
	Create(ctx context.Context, taskID, userID int64, at time.Time) (int64, error)
	// Reschedule moves an existing reminder forward and revives it if it
	// was already delivered. Used by the postpone flow; never adds a row.
	Reschedule(ctx context.Context, reminderID int64, at time.Time) (bool, error)
	// Cancel marks a single reminder canceled.
	Cancel(ctx context.Context, reminderID int64) (bool, error)
	// Due returns all non-canceled reminders with datetime <= now.
	Due(ctx context.Context, now time.Time) ([]DueReminder, error)
	// CloseBatch marks the given ids canceled. Idempotent.
	CloseBatch(ctx context.Context, ids []int64) error
	// Get returns a reminder row by id.
	Get(ctx context.Context, reminderID int64) (Reminder, error)
	CloseStore() error
}
