package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type adminEntry struct {
	ids       map[int64]bool
	fetchedAt time.Time
}

// isAdmin reports whether userID administers chatID. The administrator list
// is cached briefly; authorization still ends at the store's conditional
// updates, so a stale positive only draws an extra menu button.
func (b *Bot) isAdmin(chatID, userID int64) bool {
	b.adminMu.Lock()
	entry, ok := b.adminCache[chatID]
	b.adminMu.Unlock()

	if !ok || time.Since(entry.fetchedAt) > b.cfg.AdminCacheTTL {
		admins, err := b.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
			ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		})
		if err != nil {
			b.log.WithError(err).Debug("unable to fetch chat administrators")
			return ok && entry.ids[userID]
		}
		ids := make(map[int64]bool, len(admins))
		for _, a := range admins {
			ids[a.User.ID] = true
		}
		entry = adminEntry{ids: ids, fetchedAt: time.Now()}
		b.adminMu.Lock()
		b.adminCache[chatID] = entry
		b.adminMu.Unlock()
	}
	return entry.ids[userID]
}

// WorkerName implements render.WorkerNamer with chat member lookups.
func (b *Bot) WorkerName(chatID, userID int64) (string, string, bool) {
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		b.log.WithError(err).Debug("unable to fetch chat member")
		return "", "", false
	}
	u := member.User
	if u == nil {
		return "", "", false
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	link := fmt.Sprintf("tg://user?id=%d", u.ID)
	if u.UserName != "" {
		link = "https://t.me/" + u.UserName
	}
	return name, link, name != ""
}
