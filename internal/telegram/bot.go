// Package telegram is the chat transport: it maps commands, button taps and
// free-form replies onto the conversation engine and the stores, and carries
// reminder deliveries back out.
package telegram

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/deltasquad/taskbot/internal/engine"
	"github.com/deltasquad/taskbot/internal/events"
	"github.com/deltasquad/taskbot/internal/observability"
	"github.com/deltasquad/taskbot/internal/reminders"
	"github.com/deltasquad/taskbot/internal/tasks"
)

type Config struct {
	PageLineBudget int
	AdminCacheTTL  time.Duration
}

type Bot struct {
	api       *tgbotapi.BotAPI
	engine    *engine.Engine
	tasks     tasks.Store
	reminders reminders.Store
	bus       *events.Bus
	metrics   *observability.Metrics
	log       *logrus.Entry
	cfg       Config

	adminMu    sync.Mutex
	adminCache map[int64]adminEntry

	pagerMu sync.Mutex
	pagers  map[pagerKey]*pager
}

func New(api *tgbotapi.BotAPI, eng *engine.Engine, taskStore tasks.Store, reminderStore reminders.Store, bus *events.Bus, metrics *observability.Metrics, log *logrus.Logger, cfg Config) *Bot {
	if cfg.PageLineBudget <= 0 {
		cfg.PageLineBudget = 40
	}
	if cfg.AdminCacheTTL <= 0 {
		cfg.AdminCacheTTL = time.Minute
	}
	return &Bot{
		api:        api,
		engine:     eng,
		tasks:      taskStore,
		reminders:  reminderStore,
		bus:        bus,
		metrics:    metrics,
		log:        log.WithField("component", "telegram"),
		cfg:        cfg,
		adminCache: make(map[int64]adminEntry),
		pagers:     make(map[pagerKey]*pager),
	}
}

// Run consumes the long-polling update stream until ctx is canceled.
// Updates are handled sequentially, which keeps each (chat, user) session
// logically single-threaded.
func (b *Bot) Run(ctx context.Context) {
	updCfg := tgbotapi.NewUpdate(0)
	updCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updCfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if cmd, arg, ok := splitCommand(text); ok {
		b.handleCommand(ctx, msg, cmd, arg)
		return
	}

	// Free text only means something while a session is pinned. A stray
	// numeric reply must never be re-parsed as a task reference here.
	sess := b.engine.Sessions().Get(msg.Chat.ID, msg.From.ID)
	if sess == nil {
		return
	}
	b.handleSessionText(ctx, msg, sess, text)
}

func (b *Bot) handleSessionText(ctx context.Context, msg *tgbotapi.Message, sess *engine.Session, text string) {
	chatID, userID := msg.Chat.ID, msg.From.ID

	if engine.ParseAction(text) == engine.ActionLeave {
		b.send(chatID, b.engine.Leave(chatID, userID))
		return
	}

	switch sess.State {
	case engine.StateChoosingCommand:
		action := engine.ParseAction(text)
		if action == engine.ActionNone {
			b.send(chatID, engine.Reply{Text: "Please use one of the menu buttons."})
			return
		}
		reply, err := b.engine.Select(ctx, chatID, userID, action)
		if err != nil {
			b.log.WithError(err).Warn("menu selection failed")
			return
		}
		b.send(chatID, reply)

	case engine.StateTypingDeadlineTime, engine.StateTypingRemindTime:
		reply, err := b.engine.EnterTime(ctx, chatID, userID, text)
		if err != nil {
			b.log.WithError(err).Warn("time entry failed")
			return
		}
		b.send(chatID, reply)

	default:
		// Date-picking states only accept calendar taps.
		b.send(chatID, engine.Reply{Text: "Please pick a date from the calendar, or leave the menu."})
	}
}

// splitCommand splits "/close 5" or "/act_5" style input into a command name
// and its argument.
func splitCommand(text string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	rest := text[1:]
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		cmd, arg = rest[:i], strings.TrimSpace(rest[i+1:])
	} else {
		cmd = rest
	}
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	if after, found := strings.CutPrefix(cmd, "act_"); found {
		return "act", after, true
	}
	return cmd, arg, true
}

func parseTaskID(arg string) (int64, bool) {
	arg = strings.TrimSpace(arg)
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// send turns an engine reply into outbound telegram traffic: text plus
// whichever keyboard shape the reply asks for.
func (b *Bot) send(chatID int64, reply engine.Reply) {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableNotification = true

	switch {
	case reply.AskDate:
		msg.ReplyMarkup = monthKeyboard(time.Now().In(b.engine.Timezone()))
	case reply.AskTime:
		msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, Selective: true}
	case len(reply.Actions) > 0:
		msg.ReplyMarkup = actionKeyboard(reply.Actions)
	case reply.SessionOver:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}

	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).Warn("unable to send message")
	}
}

func actionKeyboard(actions []engine.Action) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(a.Label())))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	kb.Selective = true
	return kb
}
