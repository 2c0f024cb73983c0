// Package render composes user-visible HTML text for task listings and
// reminder notifications.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/deltasquad/taskbot/internal/reminders"
	"github.com/deltasquad/taskbot/internal/tasks"
)

const (
	markedPrefix   = "<b>[ ! ]</b> "
	unmarkedPrefix = "▸ "
	bellPrefix     = "[\U0001F514] "
	divider        = "----------------"
)

// WorkerNamer resolves a user id to display name and profile link for
// listings. The transport backs it with chat member lookups.
type WorkerNamer interface {
	WorkerName(chatID, userID int64) (name, link string, ok bool)
}

// Deadline formats a deadline in the given zone. The end-of-day default
// carries a 23:59:59 sentinel; only a refined time (zero seconds) is shown.
func Deadline(dl time.Time, tz *time.Location) string {
	local := dl.In(tz)
	format := "Mon 02.01"
	if local.Second() == 0 {
		format += " 15:04"
	}
	return local.Format(format)
}

// Task renders one listing entry: mark, text, workers, deadline, action hint.
func Task(t tasks.Task, tz *time.Location, namer WorkerNamer) string {
	var b strings.Builder
	if t.Marked {
		b.WriteString(markedPrefix)
	} else {
		b.WriteString(unmarkedPrefix)
	}
	b.WriteString(html.EscapeString(t.Text))
	b.WriteString("\n")

	if len(t.Workers) > 0 && namer != nil {
		b.WriteString("<b>Worker:</b> ")
		for _, w := range t.Workers {
			name, link, ok := namer.WorkerName(t.ChatID, w)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, `<a href="%s">%s</a> `, link, html.EscapeString(name))
		}
		b.WriteString("\n")
	}
	if t.Deadline != nil {
		fmt.Fprintf(&b, "<b>Due:</b> <code>%s</code>\n", Deadline(*t.Deadline, tz))
	}
	fmt.Fprintf(&b, "<b>Actions:</b> /act_%d\n", t.ID)
	return b.String()
}

// ReminderMessage renders the reminder notification body.
func ReminderMessage(rem reminders.DueReminder, tz *time.Location) string {
	var b strings.Builder
	b.WriteString(bellPrefix)
	b.WriteString(html.EscapeString(rem.TaskText))
	b.WriteString("\n")
	if rem.TaskDeadline != nil {
		fmt.Fprintf(&b, "<b>Due:</b> <code>%s</code>", Deadline(*rem.TaskDeadline, tz))
	}
	return b.String()
}

// Pages packs rendered tasks into pages bounded by an approximate line
// budget rather than a fixed task count. A single oversized entry still gets
// its own page.
func Pages(list []tasks.Task, tz *time.Location, namer WorkerNamer, lineBudget int) []string {
	if lineBudget <= 0 {
		lineBudget = 40
	}
	pages := make([]string, 0, 2)
	var (
		b     strings.Builder
		lines int
	)
	flush := func() {
		if b.Len() > 0 {
			pages = append(pages, b.String())
			b.Reset()
			lines = 0
		}
	}
	for _, t := range list {
		entry := Task(t, tz, namer) + divider + "\n\n"
		n := strings.Count(entry, "\n")
		if lines > 0 && lines+n > lineBudget {
			flush()
		}
		b.WriteString(entry)
		lines += n
	}
	flush()
	return pages
}
