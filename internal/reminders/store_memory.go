package reminders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/deltasquad/taskbot/internal/tasks"
)

// TaskSource is the slice of the task store the reminder store needs to
// compose due-reminder messages.
type TaskSource interface {
	Info(ctx context.Context, taskID int64) (tasks.Task, error)
}

// MemoryStore mirrors the Postgres semantics under one mutex. It registers
// itself as the close cascade of the in-memory task store so closing a task
// cancels its reminders in the same critical section.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Reminder
	source TaskSource
}

func NewMemoryStore(source TaskSource) *MemoryStore {
	return &MemoryStore{byID: make(map[int64]*Reminder), source: source}
}

// CancelForTask cancels every reminder linked to taskID. Wired as the task
// store's OnClose hook.
func (s *MemoryStore) CancelForTask(taskID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.byID {
		if r.TaskID == taskID {
			r.Canceled = true
		}
	}
}

func (s *MemoryStore) Create(_ context.Context, taskID, userID int64, at time.Time) (int64, error) {
	if !at.After(time.Now()) {
		return 0, fmt.Errorf("%w: reminder time must be in the future", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.byID[s.nextID] = &Reminder{ID: s.nextID, TaskID: taskID, UserID: userID, At: at}
	return s.nextID, nil
}

func (s *MemoryStore) Reschedule(_ context.Context, reminderID int64, at time.Time) (bool, error) {
	if !at.After(time.Now()) {
		return false, fmt.Errorf("%w: reminder time must be in the future", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[reminderID]
	if !ok {
		return false, nil
	}
	r.At = at
	r.Canceled = false
	return true, nil
}

func (s *MemoryStore) Cancel(_ context.Context, reminderID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[reminderID]
	if !ok || r.Canceled {
		return false, nil
	}
	r.Canceled = true
	return true, nil
}

func (s *MemoryStore) Due(ctx context.Context, now time.Time) ([]DueReminder, error) {
	s.mu.RLock()
	pending := make([]Reminder, 0, 8)
	for _, r := range s.byID {
		if !r.Canceled && !r.At.After(now) {
			pending = append(pending, *r)
		}
	}
	s.mu.RUnlock()

	out := make([]DueReminder, 0, len(pending))
	for _, r := range pending {
		t, err := s.source.Info(ctx, r.TaskID)
		if err != nil {
			continue
		}
		out = append(out, DueReminder{Reminder: r, TaskText: t.Text, TaskDeadline: t.Deadline})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

func (s *MemoryStore) CloseBatch(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if r, ok := s.byID[id]; ok {
			r.Canceled = true
		}
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, reminderID int64) (Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[reminderID]
	if !ok {
		return Reminder{}, ErrNotFound
	}
	return *r, nil
}

func (s *MemoryStore) CloseStore() error { return nil }
