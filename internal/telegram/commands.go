package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/deltasquad/taskbot/internal/engine"
	"github.com/deltasquad/taskbot/internal/events"
	"github.com/deltasquad/taskbot/internal/policy"
	"github.com/deltasquad/taskbot/internal/render"
	"github.com/deltasquad/taskbot/internal/tasks"
)

const msgApology = "Sorry, something went wrong."

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, cmd, arg string) {
	if b.metrics != nil {
		b.metrics.Commands.WithLabelValues(cmd).Inc()
	}
	chatID, userID := msg.Chat.ID, msg.From.ID

	switch cmd {
	case "start":
		b.reply(chatID, "Hi! I keep track of this group's shared tasks. Try /add or /help.")
	case "help":
		b.reply(chatID, helpText)
	case "add":
		b.cmdAdd(ctx, chatID, userID, arg)
	case "close":
		b.cmdClose(ctx, chatID, userID, arg)
	case "take":
		b.cmdTake(ctx, chatID, userID, arg)
	case "assign":
		b.cmdAssign(ctx, chatID, userID, arg)
	case "return":
		b.cmdReturn(ctx, chatID, userID, arg)
	case "mark":
		b.cmdMark(ctx, chatID, userID, arg)
	case "no_dl":
		b.cmdClearDeadline(ctx, chatID, userID, arg)
	case "dl":
		b.cmdEnterFlow(ctx, chatID, userID, arg, engine.ActionSetDeadline)
	case "rem":
		b.cmdEnterFlow(ctx, chatID, userID, arg, engine.ActionRemind)
	case "list":
		b.cmdList(ctx, chatID, false)
	case "free":
		b.cmdList(ctx, chatID, true)
	case "my":
		b.cmdMy(ctx, chatID, userID)
	case "act":
		b.cmdAct(ctx, chatID, userID, arg)
	}
}

const helpText = `/add <text> - add a task
/list - all open tasks, /free - unclaimed only, /my - yours across chats
/act_<id> - action menu for a task
/take, /return, /close, /mark, /no_dl <id> - direct task actions
/assign <id> <user id...> - assign workers (admins only)
/dl <id> - set a deadline, /rem <id> - schedule a personal reminder`

func (b *Bot) cmdAdd(ctx context.Context, chatID, userID int64, text string) {
	id, err := b.tasks.Add(ctx, chatID, userID, text, tasks.AddOptions{})
	if errors.Is(err, tasks.ErrInvalidArgument) {
		b.reply(chatID, "You cannot add an empty task.")
		return
	}
	if err != nil {
		b.storeFailure(chatID, "add_task", err)
		return
	}
	b.publish(events.TaskAdded, chatID, id, userID, text)
	b.reply(chatID, fmt.Sprintf("Task added. Actions: /act_%d", id))
}

func (b *Bot) cmdClose(ctx context.Context, chatID, userID int64, arg string) {
	taskID, ok := parseTaskID(arg)
	if !ok {
		b.reply(chatID, "Which task? Use /close <id>.")
		return
	}
	done, err := b.tasks.Close(ctx, taskID, chatID, userID, b.isAdmin(chatID, userID))
	if err != nil {
		b.storeFailure(chatID, "close_task", err)
		return
	}
	if !done {
		b.reply(chatID, "You cannot close this task.")
		return
	}
	b.publish(events.TaskClosed, chatID, taskID, userID, "")
	b.reply(chatID, "Task closed.")
}

func (b *Bot) cmdTake(ctx context.Context, chatID, userID int64, arg string) {
	taskID, ok := parseTaskID(arg)
	if !ok {
		b.reply(chatID, "Which task? Use /take <id>.")
		return
	}
	done, err := b.tasks.Assign(ctx, taskID, chatID, userID, []int64{userID}, false)
	if err != nil {
		b.storeFailure(chatID, "assign_task", err)
		return
	}
	if !done {
		b.reply(chatID, "You cannot take this task.")
		return
	}
	b.publish(events.TaskClaimed, chatID, taskID, userID, "")
	b.reply(chatID, "Task taken.")
}

// cmdAssign is the admin-only direct assignment: /assign <task id> <user id...>.
func (b *Bot) cmdAssign(ctx context.Context, chatID, userID int64, arg string) {
	if !policy.CanAdminAssign(b.isAdmin(chatID, userID)) {
		b.reply(chatID, "Only chat admins can assign workers.")
		return
	}
	fields := strings.Fields(arg)
	if len(fields) < 2 {
		b.reply(chatID, "Use /assign <task id> <user id...>.")
		return
	}
	taskID, ok := parseTaskID(fields[0])
	if !ok {
		b.reply(chatID, "Use /assign <task id> <user id...>.")
		return
	}
	workers := make([]int64, 0, len(fields)-1)
	for _, f := range fields[1:] {
		w, ok := parseTaskID(f)
		if !ok {
			b.reply(chatID, "Worker ids must be positive numbers.")
			return
		}
		workers = append(workers, w)
	}
	done, err := b.tasks.Assign(ctx, taskID, chatID, userID, workers, true)
	if err != nil {
		b.storeFailure(chatID, "assign_task", err)
		return
	}
	if !done {
		b.reply(chatID, "You cannot assign workers to this task.")
		return
	}
	b.publish(events.TaskClaimed, chatID, taskID, userID, "")
	b.reply(chatID, "Workers assigned.")
}

func (b *Bot) cmdReturn(ctx context.Context, chatID, userID int64, arg string) {
	taskID, ok := parseTaskID(arg)
	if !ok {
		b.reply(chatID, "Which task? Use /return <id>.")
		return
	}
	done, err := b.tasks.RemoveWorker(ctx, taskID, chatID, userID)
	if err != nil {
		b.storeFailure(chatID, "rem_worker", err)
		return
	}
	if !done {
		b.reply(chatID, "You cannot return this task.")
		return
	}
	b.publish(events.TaskReleased, chatID, taskID, userID, "")
	b.reply(chatID, "Task returned to the pool.")
}

// cmdMark toggles the priority flag. The read is only to learn the current
// flag for the toggle intent; the store still validates atomically.
func (b *Bot) cmdMark(ctx context.Context, chatID, userID int64, arg string) {
	taskID, ok := parseTaskID(arg)
	if !ok {
		b.reply(chatID, "Which task? Use /mark <id>.")
		return
	}
	task, err := b.tasks.Info(ctx, taskID)
	if errors.Is(err, tasks.ErrNotFound) {
		b.reply(chatID, "There is no such task.")
		return
	}
	if err != nil {
		b.storeFailure(chatID, "task_info", err)
		return
	}
	marked := !task.Marked
	done, err := b.tasks.SetMarked(ctx, taskID, chatID, userID, marked, b.isAdmin(chatID, userID))
	if err != nil {
		b.storeFailure(chatID, "set_marked_status", err)
		return
	}
	if !done {
		b.reply(chatID, "You cannot change the mark on this task.")
		return
	}
	b.publish(events.TaskMarked, chatID, taskID, userID, "")
	if marked {
		b.reply(chatID, "Priority mark set.")
	} else {
		b.reply(chatID, "Priority mark removed.")
	}
}

func (b *Bot) cmdClearDeadline(ctx context.Context, chatID, userID int64, arg string) {
	taskID, ok := parseTaskID(arg)
	if !ok {
		b.reply(chatID, "Which task? Use /no_dl <id>.")
		return
	}
	done, err := b.tasks.SetDeadline(ctx, taskID, chatID, userID, nil)
	if err != nil {
		b.storeFailure(chatID, "set_deadline", err)
		return
	}
	if !done {
		b.reply(chatID, "You cannot change the deadline of this task.")
		return
	}
	b.publish(events.TaskDeadlineSet, chatID, taskID, userID, "")
	b.reply(chatID, "Deadline cleared.")
}

// cmdEnterFlow is the shortcut form of the menu flows: /dl <id> and
// /rem <id> pin the task and jump straight into the date-picking state.
func (b *Bot) cmdEnterFlow(ctx context.Context, chatID, userID int64, arg string, action engine.Action) {
	taskID, ok := parseTaskID(arg)
	if !ok {
		b.reply(chatID, "Which task? Give me its number.")
		return
	}
	entry, err := b.engine.EnterMenu(ctx, chatID, userID, taskID, b.isAdmin(chatID, userID))
	if err != nil {
		b.log.WithError(err).Warn("flow entry failed")
		return
	}
	if entry.SessionOver {
		b.send(chatID, entry)
		return
	}
	reply, err := b.engine.Select(ctx, chatID, userID, action)
	if err != nil {
		b.log.WithError(err).Warn("flow entry failed")
		return
	}
	b.send(chatID, reply)
}

func (b *Bot) cmdAct(ctx context.Context, chatID, userID int64, arg string) {
	taskID, ok := parseTaskID(arg)
	if !ok {
		b.reply(chatID, "Which task? Use /act_<id> from a listing.")
		return
	}
	reply, err := b.engine.EnterMenu(ctx, chatID, userID, taskID, b.isAdmin(chatID, userID))
	if err != nil {
		b.log.WithError(err).Warn("menu entry failed")
		return
	}
	b.send(chatID, reply)
}

func (b *Bot) cmdList(ctx context.Context, chatID int64, freeOnly bool) {
	list, err := b.tasks.List(ctx, chatID, freeOnly)
	if err != nil {
		b.storeFailure(chatID, "get_tasks", err)
		return
	}
	if len(list) == 0 {
		b.reply(chatID, "The task list is empty!")
		return
	}
	b.sendPaged(chatID, render.Pages(list, b.engine.Timezone(), b, b.cfg.PageLineBudget))
}

func (b *Bot) cmdMy(ctx context.Context, chatID, userID int64) {
	list, err := b.tasks.ListByWorker(ctx, userID)
	if err != nil {
		b.storeFailure(chatID, "get_user_tasks", err)
		return
	}
	if len(list) == 0 {
		b.reply(chatID, "You have no tasks in progress.")
		return
	}
	b.sendPaged(chatID, render.Pages(list, b.engine.Timezone(), b, b.cfg.PageLineBudget))
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(chatID, engine.Reply{Text: text})
}

func (b *Bot) storeFailure(chatID int64, op string, err error) {
	b.log.WithError(err).WithField("op", op).Warn("store operation failed")
	if b.metrics != nil {
		b.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
	b.reply(chatID, msgApology)
}

func (b *Bot) publish(typ events.Type, chatID, taskID, userID int64, text string) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(events.Event{Type: typ, ChatID: chatID, TaskID: taskID, UserID: userID, Text: text})
}
