package tasks

import (
	"time"
)

// Task is one shared tracker entry. Text, chat and creator are fixed at
// creation; everything else mutates through conditional store updates only.
type Task struct {
	ID        int64      `json:"id"`
	ChatID    int64      `json:"chat_id"`
	CreatorID int64      `json:"creator_id"`
	Text      string     `json:"task_text"`
	Marked    bool       `json:"marked"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Workers   []int64    `json:"workers"`
	Assigned  bool       `json:"assigned"`
	Closed    bool       `json:"closed"`
	CreatedAt time.Time  `json:"created_at"`
}

// AddOptions carries the optional fields of Add. The zero value is a plain
// unmarked, undated, unclaimed task.
type AddOptions struct {
	Marked   bool
	Deadline *time.Time
	Workers  []int64
}

// HasWorker reports whether userID is currently in the worker set.
func (t Task) HasWorker(userID int64) bool {
	for _, w := range t.Workers {
		if w == userID {
			return true
		}
	}
	return false
}

// Unclaimed reports whether nobody is working on the task.
func (t Task) Unclaimed() bool {
	return len(t.Workers) == 0
}

func (t Task) Clone() Task {
	out := t
	if t.Workers != nil {
		out.Workers = make([]int64, len(t.Workers))
		copy(out.Workers, t.Workers)
	}
	if t.Deadline != nil {
		dl := *t.Deadline
		out.Deadline = &dl
	}
	return out
}

// Less implements the listing order: marked tasks first, then earlier
// deadline first with undated tasks last, then id for a stable tie-break.
func Less(a, b Task) bool {
	if a.Marked != b.Marked {
		return a.Marked
	}
	switch {
	case a.Deadline == nil && b.Deadline == nil:
		return a.ID < b.ID
	case a.Deadline == nil:
		return false
	case b.Deadline == nil:
		return true
	}
	if !a.Deadline.Equal(*b.Deadline) {
		return a.Deadline.Before(*b.Deadline)
	}
	return a.ID < b.ID
}
