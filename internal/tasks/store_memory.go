package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is the in-process Store used for DATABASE_URL-less runs and
// tests. Conditions are evaluated under one mutex, which gives the same
// atomic check-and-set semantics as the conditional SQL updates.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Task

	// onClose hooks run inside Close while the task lock is held, so the
	// reminder cascade commits together with the close.
	onClose []func(taskID int64)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[int64]*Task)}
}

// OnClose registers a cascade hook invoked for every successful task close.
func (s *MemoryStore) OnClose(fn func(taskID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

func (s *MemoryStore) Add(_ context.Context, chatID, creatorID int64, text string, opts AddOptions) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("%w: empty task text", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	workers := make([]int64, len(opts.Workers))
	copy(workers, opts.Workers)
	task := &Task{
		ID:        s.nextID,
		ChatID:    chatID,
		CreatorID: creatorID,
		Text:      text,
		Marked:    opts.Marked,
		Workers:   workers,
		Assigned:  len(workers) > 0,
		CreatedAt: time.Now().UTC(),
	}
	if opts.Deadline != nil {
		dl := *opts.Deadline
		task.Deadline = &dl
	}
	s.byID[task.ID] = task
	return task.ID, nil
}

func (s *MemoryStore) Close(_ context.Context, taskID, chatID, userID int64, isAdmin bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[taskID]
	if !ok || t.ChatID != chatID || t.Closed {
		return false, nil
	}
	if !(isAdmin || t.CreatorID == userID || t.HasWorker(userID) || t.Unclaimed()) {
		return false, nil
	}
	t.Closed = true
	for _, fn := range s.onClose {
		fn(taskID)
	}
	return true, nil
}

func (s *MemoryStore) Assign(_ context.Context, taskID, chatID, userID int64, workers []int64, isAdmin bool) (bool, error) {
	if len(workers) == 0 {
		return false, fmt.Errorf("%w: empty worker set", ErrInvalidArgument)
	}
	selfClaim := !isAdmin && len(workers) == 1 && workers[0] == userID
	if !isAdmin && !selfClaim {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[taskID]
	if !ok || t.ChatID != chatID || t.Closed {
		return false, nil
	}
	if selfClaim && !t.Unclaimed() {
		return false, nil
	}
	t.Workers = make([]int64, len(workers))
	copy(t.Workers, workers)
	t.Assigned = !selfClaim
	return true, nil
}

func (s *MemoryStore) RemoveWorker(_ context.Context, taskID, chatID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[taskID]
	if !ok || t.ChatID != chatID || t.Closed || t.Assigned || !t.HasWorker(userID) {
		return false, nil
	}
	kept := t.Workers[:0]
	for _, w := range t.Workers {
		if w != userID {
			kept = append(kept, w)
		}
	}
	t.Workers = kept
	return true, nil
}

func (s *MemoryStore) SetDeadline(_ context.Context, taskID, chatID, userID int64, deadline *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[taskID]
	if !ok || t.ChatID != chatID || t.Closed {
		return false, nil
	}
	if t.CreatorID != userID && !t.HasWorker(userID) {
		return false, nil
	}
	if deadline == nil {
		t.Deadline = nil
	} else {
		dl := *deadline
		t.Deadline = &dl
	}
	return true, nil
}

func (s *MemoryStore) SetMarked(_ context.Context, taskID, chatID, userID int64, marked, isAdmin bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[taskID]
	if !ok || t.ChatID != chatID || t.Closed {
		return false, nil
	}
	if !isAdmin && t.CreatorID != userID {
		return false, nil
	}
	t.Marked = marked
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, chatID int64, freeOnly bool) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, 16)
	for _, t := range s.byID {
		if t.ChatID != chatID || t.Closed {
			continue
		}
		if freeOnly && !t.Unclaimed() {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out, nil
}

func (s *MemoryStore) ListByWorker(_ context.Context, userID int64) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, 8)
	for _, t := range s.byID {
		if t.Closed || !t.HasWorker(userID) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out, nil
}

func (s *MemoryStore) Info(_ context.Context, taskID int64) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[taskID]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) CloseStore() error { return nil }
