// Package events is a small in-process pub/sub of task activity, consumed by
// the websocket feed. Subscribers get buffered channels; a slow subscriber
// drops events instead of blocking publishers.
package events

import (
	"sync"
	"time"
)

type Type string

const (
	TaskAdded         Type = "task_added"
	TaskClosed        Type = "task_closed"
	TaskClaimed       Type = "task_claimed"
	TaskReleased      Type = "task_released"
	TaskDeadlineSet   Type = "task_deadline_set"
	TaskMarked        Type = "task_marked"
	ReminderDelivered Type = "reminder_delivered"
)

type Event struct {
	Type   Type      `json:"type"`
	ChatID int64     `json:"chat_id,omitempty"`
	TaskID int64     `json:"task_id,omitempty"`
	UserID int64     `json:"user_id,omitempty"`
	Text   string    `json:"text,omitempty"`
	At     time.Time `json:"at"`
}

type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]chan Event)}
}

// Subscribe returns a channel of future events and a cancel func. The
// channel is closed on cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	b.subscribers[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(c)
		}
	}
}

func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}
