package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/deltasquad/taskbot/internal/events"
	"github.com/deltasquad/taskbot/internal/reminders"
	"github.com/deltasquad/taskbot/internal/render"
)

// Deliver implements reminders.Sender: one notification to the reminder's
// user with postpone and close buttons. An error here leaves the reminder
// due so the scheduler retries it next sweep.
func (b *Bot) Deliver(_ context.Context, rem reminders.DueReminder) error {
	msg := tgbotapi.NewMessage(rem.UserID, render.ReminderMessage(rem, b.engine.Timezone()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Postpone", postponePrefix+strconv.FormatInt(rem.ID, 10)),
			tgbotapi.NewInlineKeyboardButtonData("Close", cancelPrefix+strconv.FormatInt(rem.ID, 10)),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("deliver reminder %d: %w", rem.ID, err)
	}
	b.publish(events.ReminderDelivered, 0, rem.TaskID, rem.UserID, rem.TaskText)
	return nil
}
