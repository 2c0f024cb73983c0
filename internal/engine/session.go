package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the position of a session inside the menu flow.
type State int

const (
	StateIdle State = iota
	StateChoosingCommand
	StateChoosingDeadlineDate
	StateTypingDeadlineTime
	StateChoosingRemindDate
	StateTypingRemindTime
)

// Flow tags which multi-step flow the draft date belongs to.
type Flow int

const (
	FlowNone Flow = iota
	FlowDeadline
	FlowReminder
)

// Session is the ephemeral per-(chat,user) conversation state. At most one
// task is pinned at a time; re-entering the menu replaces the whole session.
type Session struct {
	ID     string
	ChatID int64
	UserID int64

	State State
	Flow  Flow

	// TaskID and TaskChatID pin the task being acted on. TaskChatID is the
	// task's origin chat, which may differ from ChatID when the menu was
	// entered from a personal listing.
	TaskID     int64
	TaskChatID int64
	IsAdmin    bool

	// DraftDate is the picked calendar date awaiting an optional time.
	DraftDate time.Time
	// ReminderID is set when the reminder flow was entered via postpone, in
	// which case committing reschedules that row instead of creating one.
	ReminderID int64

	LastActivityAt time.Time
}

type sessionKey struct {
	chatID int64
	userID int64
}

// Manager owns all live sessions behind one lock, with creation-on-entry,
// clear-on-terminal-transition, and janitor eviction of stale entries.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[sessionKey]*Session
	inactivityTimeout time.Duration
	onEvict           func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[sessionKey]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

// SetEvictHook installs a callback run for sessions removed by the janitor.
func (m *Manager) SetEvictHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = hook
}

// Begin creates a fresh session for (chatID, userID), replacing any active
// one and discarding its drafts.
func (m *Manager) Begin(chatID, userID int64) *Session {
	s := &Session{
		ID:             uuid.NewString(),
		ChatID:         chatID,
		UserID:         userID,
		State:          StateChoosingCommand,
		LastActivityAt: time.Now().UTC(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionKey{chatID, userID}] = s
	return s
}

// Get returns the active session for (chatID, userID), or nil.
func (m *Manager) Get(chatID, userID int64) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionKey{chatID, userID}]
}

// Touch refreshes the inactivity clock.
func (m *Manager) Touch(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.LastActivityAt = time.Now().UTC()
}

// End removes the session. Safe to call on an already-cleared session.
func (m *Manager) End(chatID, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey{chatID, userID})
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartJanitor evicts sessions idle past the timeout until ctx is canceled.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.evictStale()
			}
		}
	}()
}

func (m *Manager) evictStale() {
	now := time.Now().UTC()
	var evicted []*Session

	m.mu.Lock()
	for key, s := range m.sessions {
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		delete(m.sessions, key)
		evicted = append(evicted, s)
	}
	hook := m.onEvict
	m.mu.Unlock()

	if hook != nil {
		for _, s := range evicted {
			hook(s)
		}
	}
}
