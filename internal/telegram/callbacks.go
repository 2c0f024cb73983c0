package telegram

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback tokens: pr:<id> postpones a reminder, cr:<id> dismisses one,
// nav:* pages a listing, cal:* drives the date picker.
const (
	postponePrefix = "pr:"
	cancelPrefix   = "cr:"
	navLeftToken   = "nav:l"
	navRightToken  = "nav:r"
	navCloseToken  = "nav:cl"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		return
	}
	data := cb.Data
	chatID := cb.Message.Chat.ID
	userID := cb.From.ID

	// Telegram wants every callback answered, even when nothing happens.
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			b.log.WithError(err).Debug("unable to answer callback")
		}
	}()

	switch {
	case data == calIgnore:

	case strings.HasPrefix(data, calDayPrefix):
		date, ok := parseCalendarDay(strings.TrimPrefix(data, calDayPrefix))
		if !ok {
			return
		}
		b.deleteMessage(chatID, cb.Message.MessageID)
		reply, err := b.engine.PickDate(ctx, chatID, userID, date.Year(), date.Month(), date.Day())
		if err != nil {
			b.log.WithError(err).Warn("date pick failed")
			return
		}
		b.send(chatID, reply)

	case strings.HasPrefix(data, calPrevPrefix), strings.HasPrefix(data, calNextPrefix):
		b.pageCalendar(cb, data)

	case strings.HasPrefix(data, postponePrefix):
		remID, ok := parseCallbackID(data, postponePrefix)
		if !ok {
			return
		}
		b.deleteMessage(chatID, cb.Message.MessageID)
		reply, err := b.engine.StartPostpone(ctx, chatID, userID, remID)
		if err != nil {
			b.log.WithError(err).Warn("reminder postpone failed")
			return
		}
		b.send(chatID, reply)

	case strings.HasPrefix(data, cancelPrefix):
		remID, ok := parseCallbackID(data, cancelPrefix)
		if !ok {
			return
		}
		if _, err := b.reminders.Cancel(ctx, remID); err != nil {
			b.storeFailure(chatID, "close_reminders", err)
			return
		}
		b.deleteMessage(chatID, cb.Message.MessageID)

	case data == navLeftToken, data == navRightToken, data == navCloseToken:
		b.handleNav(chatID, cb.Message.MessageID, data)
	}
}

func (b *Bot) pageCalendar(cb *tgbotapi.CallbackQuery, data string) {
	var shift int
	var raw string
	if after, found := strings.CutPrefix(data, calPrevPrefix); found {
		shift, raw = -1, after
	} else {
		shift, raw = 1, strings.TrimPrefix(data, calNextPrefix)
	}
	anchor, ok := parseCalendarMonth(raw)
	if !ok {
		return
	}
	kb := monthKeyboard(anchor.AddDate(0, shift, 0))
	edit := tgbotapi.NewEditMessageReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID, kb)
	if _, err := b.api.Send(edit); err != nil {
		b.log.WithError(err).Debug("unable to page calendar")
	}
}

func parseCallbackID(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.WithError(err).Debug("unable to delete message")
	}
}

// pager state for multi-page listings, keyed by the listing message.

type pagerKey struct {
	chatID    int64
	messageID int
}

type pager struct {
	pages []string
	idx   int
}

func (b *Bot) sendPaged(chatID int64, pages []string) {
	if len(pages) == 0 {
		return
	}
	msg := tgbotapi.NewMessage(chatID, pages[0])
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.DisableNotification = true
	if len(pages) > 1 {
		msg.ReplyMarkup = navKeyboard()
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.WithError(err).Warn("unable to send listing")
		return
	}
	if len(pages) > 1 {
		b.pagerMu.Lock()
		b.pagers[pagerKey{chatID, sent.MessageID}] = &pager{pages: pages}
		b.pagerMu.Unlock()
	}
}

func (b *Bot) handleNav(chatID int64, messageID int, token string) {
	key := pagerKey{chatID, messageID}

	if token == navCloseToken {
		b.pagerMu.Lock()
		delete(b.pagers, key)
		b.pagerMu.Unlock()
		b.deleteMessage(chatID, messageID)
		return
	}

	b.pagerMu.Lock()
	p, ok := b.pagers[key]
	if ok {
		if token == navLeftToken && p.idx > 0 {
			p.idx--
		}
		if token == navRightToken && p.idx < len(p.pages)-1 {
			p.idx++
		}
	}
	var text string
	if ok {
		text = p.pages[p.idx]
	}
	b.pagerMu.Unlock()
	if !ok {
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	kb := navKeyboard()
	edit.ReplyMarkup = &kb
	if _, err := b.api.Send(edit); err != nil {
		b.log.WithError(err).Debug("unable to page listing")
	}
}

func navKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("<", navLeftToken),
			tgbotapi.NewInlineKeyboardButtonData("x", navCloseToken),
			tgbotapi.NewInlineKeyboardButtonData(">", navRightToken),
		),
	)
}
