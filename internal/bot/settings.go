package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"time-tracker/internal/model"
)

func (b *Bot) handleSettings(ctx context.Context, chatID int64, user *model.User) error {
	prefs, err := b.deps.Preferences.Get(ctx, user.ID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, renderSettings(*prefs))
}

// handleWindow accepts "/window 8 20".
func (b *Bot) handleWindow(ctx context.Context, chatID int64, user *model.User, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return b.sendText(chatID, "Формат: /window &lt;начало&gt; &lt;конец&gt;, часы от 0 до 24, например /window 8 20")
	}
	start, errStart := strconv.Atoi(strings.TrimSuffix(fields[0], ":00"))
	end, errEnd := strconv.Atoi(strings.TrimSuffix(fields[1], ":00"))
	if errStart != nil || errEnd != nil {
		return b.sendText(chatID, "Часы указываются целыми числами, например /window 8 20")
	}
	prefs, err := b.deps.Preferences.SetWindow(ctx, user.ID, start, end)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, renderSettings(*prefs))
}

func (b *Bot) handleTimeline(ctx context.Context, chatID int64, user *model.User, args string) error {
	on, ok := parseSwitch(args)
	if !ok {
		return b.sendText(chatID, "Формат: /timeline on|off")
	}
	prefs, err := b.deps.Preferences.SetTimelineVisible(ctx, user.ID, on)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, renderSettings(*prefs))
}

func (b *Bot) handleCompleted(ctx context.Context, chatID int64, user *model.User, args string) error {
	on, ok := parseSwitch(args)
	if !ok {
		return b.sendText(chatID, "Формат: /completed on|off")
	}
	prefs, err := b.deps.Preferences.SetCompletedVisible(ctx, user.ID, on)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, renderSettings(*prefs))
}

func renderSettings(p model.Preferences) string {
	return fmt.Sprintf("⚙️ <b>Настройки</b>\n"+
		"• Окно таймлайна: %02d:00–%02d:00 (/window)\n"+
		"• Таймлайн: %s (/timeline)\n"+
		"• Завершённые записи: %s (/completed)",
		p.TimelineStartHour, p.TimelineEndHour, onOff(p.TimelineVisible), onOff(p.CompletedVisible))
}

func parseSwitch(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "вкл", "да", "1":
		return true, true
	case "off", "выкл", "нет", "0":
		return false, true
	default:
		return false, false
	}
}

func onOff(v bool) string {
	if v {
		return "вкл"
	}
	return "выкл"
}
