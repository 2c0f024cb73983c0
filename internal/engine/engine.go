// Package engine sequences multi-step chat interactions into single coherent
// task or reminder operations. One finite state machine per (chat, user);
// task state is re-read at every decision point instead of trusting what the
// menu was drawn from.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deltasquad/taskbot/internal/events"
	"github.com/deltasquad/taskbot/internal/observability"
	"github.com/deltasquad/taskbot/internal/policy"
	"github.com/deltasquad/taskbot/internal/reminders"
	"github.com/deltasquad/taskbot/internal/tasks"
)

const (
	msgApology    = "Sorry, something went wrong."
	msgPickAction = "Choose an action for the task"
	msgPickDate   = "Please pick a date"
	msgAskTime    = "Enter a time (hh:mm), or leave the menu"
	msgBadTime    = "That does not look like hh:mm."
	msgAccepted   = "Done."
)

var timePattern = regexp.MustCompile(`^\s*([01]?[0-9]|2[0-3]):([0-5][0-9])\s*$`)

// Reply is what the transport should present after an engine step.
type Reply struct {
	Text string
	// Actions, when non-empty, is the reply keyboard to draw.
	Actions []Action
	// AskDate asks the transport to show the calendar picker.
	AskDate bool
	// AskTime asks the transport to force-reply prompt for hh:mm.
	AskTime bool
	// SessionOver marks a terminal transition: session cleared, any
	// keyboard removed.
	SessionOver bool
}

type Engine struct {
	tasks     tasks.Store
	reminders reminders.Store
	sessions  *Manager
	tz        *time.Location
	bus       *events.Bus
	metrics   *observability.Metrics
	log       *logrus.Entry
}

func New(taskStore tasks.Store, reminderStore reminders.Store, sessions *Manager, tz *time.Location, bus *events.Bus, metrics *observability.Metrics, log *logrus.Logger) *Engine {
	if tz == nil {
		tz = time.UTC
	}
	return &Engine{
		tasks:     taskStore,
		reminders: reminderStore,
		sessions:  sessions,
		tz:        tz,
		bus:       bus,
		metrics:   metrics,
		log:       log.WithField("component", "engine"),
	}
}

// Sessions exposes the session manager for transport-side state routing.
func (e *Engine) Sessions() *Manager { return e.sessions }

// Timezone is the zone used for date and time entry.
func (e *Engine) Timezone() *time.Location { return e.tz }

// EnterMenu pins taskID into a fresh (chatID, userID) session and offers the
// policy-approved actions. Entry fails when the requester has no relationship
// to the task: different chat and not a worker.
func (e *Engine) EnterMenu(ctx context.Context, chatID, userID, taskID int64, isAdmin bool) (Reply, error) {
	task, err := e.tasks.Info(ctx, taskID)
	if errors.Is(err, tasks.ErrNotFound) {
		return e.terminal(chatID, userID, "There is no such task.")
	}
	if err != nil {
		return e.fail(ctx, chatID, userID, "task_info", err)
	}
	if task.ChatID != chatID && !task.HasWorker(userID) {
		return e.terminal(chatID, userID, "This task is not yours to act on.")
	}

	sess := e.sessions.Begin(chatID, userID)
	sess.TaskID = task.ID
	sess.TaskChatID = task.ChatID
	sess.IsAdmin = isAdmin
	e.trackSessions()

	return Reply{
		Text:    msgPickAction,
		Actions: AllowedActions(task, userID, isAdmin),
	}, nil
}

// Select handles a menu pick. Terminal actions commit immediately; the
// deadline and reminder flows re-check authorization against a fresh task
// snapshot before advancing, since the task may have changed under the menu.
func (e *Engine) Select(ctx context.Context, chatID, userID int64, action Action) (Reply, error) {
	sess := e.sessions.Get(chatID, userID)
	if sess == nil || sess.State != StateChoosingCommand {
		return Reply{Text: msgApology, SessionOver: true}, nil
	}
	if action == ActionLeave {
		return e.Leave(chatID, userID), nil
	}
	e.sessions.Touch(sess)

	task, err := e.tasks.Info(ctx, sess.TaskID)
	if errors.Is(err, tasks.ErrNotFound) {
		return e.terminal(chatID, userID, "There is no such task.")
	}
	if err != nil {
		return e.fail(ctx, chatID, userID, "task_info", err)
	}
	if !containsAction(AllowedActions(task, userID, sess.IsAdmin), action) {
		return e.terminal(chatID, userID, "You cannot do that with this task.")
	}

	switch action {
	case ActionClose:
		ok, err := e.tasks.Close(ctx, sess.TaskID, sess.TaskChatID, userID, sess.IsAdmin)
		if err != nil {
			return e.fail(ctx, chatID, userID, "close_task", err)
		}
		if ok {
			e.publish(events.TaskClosed, task, userID)
			return e.terminal(chatID, userID, "Task closed.")
		}
		return e.terminal(chatID, userID, "You cannot close this task.")

	case ActionClaim:
		ok, err := e.tasks.Assign(ctx, sess.TaskID, sess.TaskChatID, userID, []int64{userID}, false)
		if err != nil {
			return e.fail(ctx, chatID, userID, "assign_task", err)
		}
		if ok {
			e.publish(events.TaskClaimed, task, userID)
			return e.terminal(chatID, userID, "Task taken.")
		}
		return e.terminal(chatID, userID, "You cannot take this task.")

	case ActionRelease:
		ok, err := e.tasks.RemoveWorker(ctx, sess.TaskID, sess.TaskChatID, userID)
		if err != nil {
			return e.fail(ctx, chatID, userID, "rem_worker", err)
		}
		if ok {
			e.publish(events.TaskReleased, task, userID)
			return e.terminal(chatID, userID, "Task returned to the pool.")
		}
		return e.terminal(chatID, userID, "You cannot return this task.")

	case ActionMark, ActionUnmark:
		marked := action == ActionMark
		ok, err := e.tasks.SetMarked(ctx, sess.TaskID, sess.TaskChatID, userID, marked, sess.IsAdmin)
		if err != nil {
			return e.fail(ctx, chatID, userID, "set_marked_status", err)
		}
		if !ok {
			return e.terminal(chatID, userID, "You cannot change the mark on this task.")
		}
		e.publish(events.TaskMarked, task, userID)
		if marked {
			return e.terminal(chatID, userID, "Priority mark set.")
		}
		return e.terminal(chatID, userID, "Priority mark removed.")

	case ActionClearDeadline:
		ok, err := e.tasks.SetDeadline(ctx, sess.TaskID, sess.TaskChatID, userID, nil)
		if err != nil {
			return e.fail(ctx, chatID, userID, "set_deadline", err)
		}
		if ok {
			e.publish(events.TaskDeadlineSet, task, userID)
			return e.terminal(chatID, userID, "Deadline cleared.")
		}
		return e.terminal(chatID, userID, "You cannot change the deadline of this task.")

	case ActionSetDeadline:
		if !policy.CanSetDeadline(task, userID) {
			return e.terminal(chatID, userID, "You cannot change the deadline of this task.")
		}
		sess.State = StateChoosingDeadlineDate
		sess.Flow = FlowDeadline
		return Reply{Text: msgPickDate, AskDate: true}, nil

	case ActionRemind:
		sess.State = StateChoosingRemindDate
		sess.Flow = FlowReminder
		sess.ReminderID = 0
		return Reply{Text: msgPickDate, AskDate: true}, nil
	}

	return e.terminal(chatID, userID, msgAccepted)
}

// StartPostpone re-enters the reminder scheduling flow pinned to an existing
// reminder, so committing moves that row instead of creating a duplicate.
func (e *Engine) StartPostpone(ctx context.Context, chatID, userID, reminderID int64) (Reply, error) {
	rem, err := e.reminders.Get(ctx, reminderID)
	if errors.Is(err, reminders.ErrNotFound) {
		return e.terminal(chatID, userID, "That reminder no longer exists.")
	}
	if err != nil {
		return e.fail(ctx, chatID, userID, "get_reminder", err)
	}
	if rem.UserID != userID {
		return e.terminal(chatID, userID, "That reminder is not yours.")
	}

	sess := e.sessions.Begin(chatID, userID)
	sess.TaskID = rem.TaskID
	sess.State = StateChoosingRemindDate
	sess.Flow = FlowReminder
	sess.ReminderID = reminderID
	e.trackSessions()

	return Reply{Text: msgPickDate, AskDate: true}, nil
}

// PickDate consumes a calendar selection. Past dates are rejected without
// leaving the date-picking state. In the deadline flow the date commits
// immediately with an end-of-day default, then an optional precise time is
// requested.
func (e *Engine) PickDate(ctx context.Context, chatID, userID int64, year int, month time.Month, day int) (Reply, error) {
	sess := e.sessions.Get(chatID, userID)
	if sess == nil || (sess.State != StateChoosingDeadlineDate && sess.State != StateChoosingRemindDate) {
		return Reply{Text: msgApology, SessionOver: true}, nil
	}
	e.sessions.Touch(sess)

	date := time.Date(year, month, day, 0, 0, 0, 0, e.tz)
	today := e.startOfToday()
	if date.Before(today) {
		return Reply{Text: "That date is already in the past, pick another.", AskDate: true}, nil
	}
	sess.DraftDate = date

	if sess.State == StateChoosingDeadlineDate {
		// End-of-day default commits right away; a precise time may refine
		// it in the next step. The 23:59:59 second marks "date only" for
		// the renderer.
		dl := date.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		ok, err := e.tasks.SetDeadline(ctx, sess.TaskID, sess.TaskChatID, userID, &dl)
		if err != nil {
			return e.fail(ctx, chatID, userID, "set_deadline", err)
		}
		if !ok {
			return e.terminal(chatID, userID, "You cannot change the deadline of this task.")
		}
		sess.State = StateTypingDeadlineTime
		return Reply{
			Text:    fmt.Sprintf("Deadline set for %s. %s", date.Format("Mon 02.01"), msgAskTime),
			AskTime: true,
		}, nil
	}

	sess.State = StateTypingRemindTime
	return Reply{
		Text:    fmt.Sprintf("Reminder on %s. %s", date.Format("Mon 02.01"), msgAskTime),
		AskTime: true,
	}, nil
}

// EnterTime consumes the hh:mm reply that finishes either flow. Both paths
// are terminal: a malformed time in the deadline flow still ends the session
// because the date-level deadline has already committed.
func (e *Engine) EnterTime(ctx context.Context, chatID, userID int64, text string) (Reply, error) {
	sess := e.sessions.Get(chatID, userID)
	if sess == nil || (sess.State != StateTypingDeadlineTime && sess.State != StateTypingRemindTime) {
		return Reply{Text: msgApology, SessionOver: true}, nil
	}
	e.sessions.Touch(sess)

	m := timePattern.FindStringSubmatch(text)
	if m == nil {
		return e.terminal(chatID, userID, msgBadTime)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	at := time.Date(sess.DraftDate.Year(), sess.DraftDate.Month(), sess.DraftDate.Day(),
		hour, minute, 0, 0, e.tz)

	if sess.State == StateTypingDeadlineTime {
		ok, err := e.tasks.SetDeadline(ctx, sess.TaskID, sess.TaskChatID, userID, &at)
		if err != nil {
			return e.fail(ctx, chatID, userID, "set_deadline", err)
		}
		if !ok {
			return e.terminal(chatID, userID, "You cannot change the deadline of this task.")
		}
		e.publish(events.TaskDeadlineSet, tasks.Task{ID: sess.TaskID, ChatID: sess.TaskChatID}, userID)
		return e.terminal(chatID, userID, "Deadline time set.")
	}

	if !at.After(time.Now()) {
		return e.terminal(chatID, userID, "That moment has already passed, reminder not scheduled.")
	}
	if sess.ReminderID != 0 {
		ok, err := e.reminders.Reschedule(ctx, sess.ReminderID, at)
		if err != nil && !errors.Is(err, reminders.ErrInvalidArgument) {
			return e.fail(ctx, chatID, userID, "reset_reminder", err)
		}
		if err != nil || !ok {
			return e.terminal(chatID, userID, "Could not move the reminder.")
		}
		return e.terminal(chatID, userID, "Reminder postponed.")
	}
	if _, err := e.reminders.Create(ctx, sess.TaskID, userID, at); err != nil {
		if errors.Is(err, reminders.ErrInvalidArgument) {
			return e.terminal(chatID, userID, "That moment has already passed, reminder not scheduled.")
		}
		return e.fail(ctx, chatID, userID, "create_reminder", err)
	}
	return e.terminal(chatID, userID, "Reminder scheduled.")
}

// Leave is the explicit fallback: clears the session and discards drafts
// without committing anything further.
func (e *Engine) Leave(chatID, userID int64) Reply {
	e.sessions.End(chatID, userID)
	e.trackSessions()
	return Reply{Text: msgAccepted, SessionOver: true}
}

// terminal clears the session and reports the outcome.
func (e *Engine) terminal(chatID, userID int64, text string) (Reply, error) {
	e.sessions.End(chatID, userID)
	e.trackSessions()
	return Reply{Text: text, SessionOver: true}, nil
}

// fail converts any store failure into the generic apology and always ends
// the session, so a broken store can never leave a session stuck.
func (e *Engine) fail(_ context.Context, chatID, userID int64, op string, err error) (Reply, error) {
	e.log.WithError(err).WithField("op", op).Warn("store operation failed")
	if e.metrics != nil {
		e.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
	e.sessions.End(chatID, userID)
	e.trackSessions()
	return Reply{Text: msgApology, SessionOver: true}, nil
}

func (e *Engine) publish(typ events.Type, task tasks.Task, userID int64) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{
		Type:   typ,
		ChatID: task.ChatID,
		TaskID: task.ID,
		UserID: userID,
		Text:   task.Text,
	})
}

func (e *Engine) trackSessions() {
	if e.metrics != nil {
		e.metrics.ActiveSessions.Set(float64(e.sessions.ActiveCount()))
	}
}

func (e *Engine) startOfToday() time.Time {
	now := time.Now().In(e.tz)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.tz)
}
