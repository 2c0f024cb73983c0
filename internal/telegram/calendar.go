package telegram

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Inline month-grid calendar. Day taps carry cal:day:YYYY-MM-DD; the header
// arrows page between months without touching the session.

const (
	calDayPrefix  = "cal:day:"
	calPrevPrefix = "cal:prev:"
	calNextPrefix = "cal:next:"
	calIgnore     = "cal:ignore"
)

func monthKeyboard(anchor time.Time) tgbotapi.InlineKeyboardMarkup {
	year, month := anchor.Year(), anchor.Month()
	first := time.Date(year, month, 1, 0, 0, 0, 0, anchor.Location())

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 8)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("<", calPrevPrefix+first.Format("2006-01")),
		tgbotapi.NewInlineKeyboardButtonData(first.Format("Jan 2006"), calIgnore),
		tgbotapi.NewInlineKeyboardButtonData(">", calNextPrefix+first.Format("2006-01")),
	))

	weekdays := []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}
	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, wd := range weekdays {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(wd, calIgnore))
	}
	rows = append(rows, header)

	// Monday-first offset of the 1st.
	offset := (int(first.Weekday()) + 6) % 7
	daysInMonth := first.AddDate(0, 1, -1).Day()

	row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < offset; i++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", calIgnore))
	}
	for day := 1; day <= daysInMonth; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, anchor.Location())
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d", day), calDayPrefix+date.Format("2006-01-02")))
		if len(row) == 7 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", calIgnore))
		}
		rows = append(rows, row)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func parseCalendarDay(data string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", data)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseCalendarMonth(data string) (time.Time, bool) {
	t, err := time.Parse("2006-01", data)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
