package render

import (
	"strings"
	"testing"
	"time"

	"github.com/deltasquad/taskbot/internal/reminders"
	"github.com/deltasquad/taskbot/internal/tasks"
)

type staticNamer map[int64]string

func (n staticNamer) WorkerName(_, userID int64) (string, string, bool) {
	name, ok := n[userID]
	return name, "tg://user?id=1", ok
}

func TestDeadlineHidesEndOfDayDefault(t *testing.T) {
	endOfDay := time.Date(2026, 9, 4, 23, 59, 59, 0, time.UTC)
	refined := time.Date(2026, 9, 4, 14, 30, 0, 0, time.UTC)

	if got := Deadline(endOfDay, time.UTC); got != "Fri 04.09" {
		t.Fatalf("Deadline(end of day) = %q, want %q", got, "Fri 04.09")
	}
	if got := Deadline(refined, time.UTC); got != "Fri 04.09 14:30" {
		t.Fatalf("Deadline(refined) = %q, want %q", got, "Fri 04.09 14:30")
	}
}

func TestDeadlineConvertsZone(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	dl := time.Date(2026, 9, 4, 21, 30, 0, 0, time.UTC)
	if got := Deadline(dl, msk); got != "Sat 05.09 00:30" {
		t.Fatalf("Deadline() = %q, want %q", got, "Sat 05.09 00:30")
	}
}

func TestTaskEscapesTextAndShowsMark(t *testing.T) {
	dl := time.Date(2026, 9, 4, 14, 30, 0, 0, time.UTC)
	task := tasks.Task{
		ID:       7,
		ChatID:   10,
		Text:     "fix <script> tag",
		Marked:   true,
		Deadline: &dl,
		Workers:  []int64{3},
	}

	got := Task(task, time.UTC, staticNamer{3: "ann"})
	for _, want := range []string{
		"<b>[ ! ]</b> ",
		"fix &lt;script&gt; tag",
		">ann</a>",
		"Fri 04.09 14:30",
		"/act_7",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Task() = %q, missing %q", got, want)
		}
	}
	if strings.Contains(got, "<script>") {
		t.Fatalf("Task() leaked unescaped HTML: %q", got)
	}
}

func TestTaskSkipsUnresolvableWorkers(t *testing.T) {
	task := tasks.Task{ID: 1, ChatID: 10, Text: "t", Workers: []int64{99}}
	got := Task(task, time.UTC, staticNamer{})
	if strings.Contains(got, "<a href") {
		t.Fatalf("Task() rendered a link for an unresolvable worker: %q", got)
	}
}

func TestReminderMessage(t *testing.T) {
	dl := time.Date(2026, 9, 4, 23, 59, 59, 0, time.UTC)
	rem := reminders.DueReminder{
		Reminder:     reminders.Reminder{ID: 1, TaskID: 7, UserID: 3},
		TaskText:     "buy <milk>",
		TaskDeadline: &dl,
	}

	got := ReminderMessage(rem, time.UTC)
	if !strings.HasPrefix(got, "[\U0001F514] ") {
		t.Fatalf("ReminderMessage() = %q, want bell prefix", got)
	}
	if !strings.Contains(got, "buy &lt;milk&gt;") {
		t.Fatalf("ReminderMessage() = %q, want escaped task text", got)
	}
	if !strings.Contains(got, "Fri 04.09") || strings.Contains(got, "23:59") {
		t.Fatalf("ReminderMessage() = %q, want date-only deadline", got)
	}
}

func TestPagesSplitByLineBudget(t *testing.T) {
	list := make([]tasks.Task, 6)
	for i := range list {
		list[i] = tasks.Task{ID: int64(i + 1), ChatID: 10, Text: "task"}
	}

	// Each entry is four lines; a budget of eight fits two per page.
	pages := Pages(list, time.UTC, nil, 8)
	if len(pages) != 3 {
		t.Fatalf("Pages() produced %d pages, want 3", len(pages))
	}
	for i, p := range pages {
		if got := strings.Count(p, "/act_"); got != 2 {
			t.Fatalf("page %d holds %d tasks, want 2", i, got)
		}
	}
}

func TestPagesOversizedEntryGetsOwnPage(t *testing.T) {
	long := strings.Repeat("line\n", 10)
	list := []tasks.Task{
		{ID: 1, ChatID: 10, Text: "short"},
		{ID: 2, ChatID: 10, Text: long},
		{ID: 3, ChatID: 10, Text: "short"},
	}

	pages := Pages(list, time.UTC, nil, 8)
	if len(pages) != 3 {
		t.Fatalf("Pages() produced %d pages, want 3", len(pages))
	}
	if !strings.Contains(pages[1], "/act_2") {
		t.Fatalf("oversized entry not isolated on its own page")
	}
}

func TestPagesEmptyList(t *testing.T) {
	if pages := Pages(nil, time.UTC, nil, 40); len(pages) != 0 {
		t.Fatalf("Pages(nil) = %v, want empty", pages)
	}
}
