package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
)

func (b *Bot) handleMonth(ctx context.Context, chatID int64, user *model.User, args string) error {
	year, month, err := parseMonth(args, b.now())
	if err != nil {
		return b.sendText(chatID, "Месяц указывается как <code>2024-03</code> или <code>03.2024</code>.")
	}
	view, err := b.deps.Analytics.Month(ctx, user.ID, year, month, b.now())
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(view.Days) == 0 {
		return b.sendText(chatID, renderMonth(view))
	}
	return b.sendWithReplyMarkup(chatID, renderMonth(view), monthKeyboard(view.Days))
}

func (b *Bot) handleCalendar(ctx context.Context, chatID int64, user *model.User, args string) error {
	year, month, err := parseMonth(args, b.now())
	if err != nil {
		return b.sendText(chatID, "Месяц указывается как <code>2024-03</code> или <code>03.2024</code>.")
	}
	view, err := b.deps.Analytics.Month(ctx, user.ID, year, month, b.now())
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, renderCalendar(view, b.now()))
}

// parseMonth accepts 2006-01, 01.2006 and an empty string for the current month.
func parseMonth(raw string, now time.Time) (int, time.Month, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		today := calendar.DateOf(now)
		return today.Year, today.Month, nil
	}
	for _, layout := range []string{"2006-01", "01.2006", "1.2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Year(), t.Month(), nil
		}
	}
	return 0, 0, fmt.Errorf("invalid month %q", raw)
}
