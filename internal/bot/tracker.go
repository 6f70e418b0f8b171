package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"time-tracker/internal/aggregate"
	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
	"time-tracker/internal/palette"
	"time-tracker/internal/service"
	"time-tracker/internal/timer"
)

func (b *Bot) handleGo(ctx context.Context, chatID int64, user *model.User, args string) error {
	options, err := b.deps.Categories.Options(ctx, user.ID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if args == "" {
		if len(options) <= 1 {
			return b.startTimer(ctx, chatID, user, nil)
		}
		return b.sendWithReplyMarkup(chatID, "▶️ Выбери категорию:", categoryPicker(options))
	}
	category, ok := service.MatchTitle(options, args)
	if !ok {
		return b.sendText(chatID, fmt.Sprintf("Категория «%s» не найдена. Список: /categories", escape(args)))
	}
	id := category.ID
	return b.startTimer(ctx, chatID, user, &id)
}

func (b *Bot) startTimer(ctx context.Context, chatID int64, user *model.User, categoryID *uint) error {
	rec, err := b.deps.Records.Start(ctx, user.ID, categoryID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	b.log.WithField("user", user.ID).WithField("record", rec.ID).Info("timer started")

	category := b.displayCategory(ctx, user.ID, *rec)
	text := fmt.Sprintf("▶️ Таймер запущен: %s <b>%s</b> с %s",
		palette.Swatch(category.Color), escape(category.Title), calendar.FormatClock(rec.StartedAt))
	if err := b.sendText(chatID, text); err != nil {
		return err
	}
	return b.showDay(ctx, chatID, user, calendar.DateOf(b.now()))
}

func (b *Bot) handleStop(ctx context.Context, chatID int64, user *model.User) error {
	rec, err := b.deps.Records.Stop(ctx, user.ID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	b.log.WithField("user", user.ID).WithField("record", rec.ID).Info("timer stopped")

	category := b.displayCategory(ctx, user.ID, *rec)
	return b.sendText(chatID, fmt.Sprintf("⏹ Остановлено: %s <b>%s</b> · %s",
		palette.Swatch(category.Color), escape(category.Title),
		calendar.FormatDurationStopped(rec.Duration(b.now()))))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64, user *model.User) error {
	active, err := b.deps.Records.Active(ctx, user.ID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	status := timer.StatusOf(active)
	if status.State == timer.Stopped {
		return b.sendWithReplyMarkup(chatID, "⏸ Таймер остановлен.", startKeyboard())
	}

	now := b.now()
	category := b.displayCategory(ctx, user.ID, *status.Record)
	since := calendar.FormatClock(status.Record.StartedAt)
	if started := calendar.DateOf(status.Record.StartedAt); started != calendar.DateOf(now) {
		since = calendar.DateLabel(now, started) + " " + since
	}
	elapsed := timer.Elapsed(status.Record, now)
	if v := b.currentView(chatID); v != nil {
		if projected, ok := v.Elapsed(*status.Record); ok && projected > 0 {
			elapsed = projected
		}
	}
	text := fmt.Sprintf("⏱ %s <b>%s</b>\nИдёт: <b>%s</b> (с %s)",
		palette.Swatch(category.Color), escape(category.Title),
		calendar.FormatDurationWithSeconds(elapsed), since)
	return b.sendWithReplyMarkup(chatID, text, stopKeyboard())
}

func (b *Bot) handleDay(ctx context.Context, chatID int64, user *model.User, args string) error {
	if args == "" {
		return b.showDay(ctx, chatID, user, b.selectedDate(chatID))
	}
	d, err := calendar.ParseDate(args, calendar.DateOf(b.now()))
	if err != nil {
		return b.sendText(chatID, "Дата указывается как <code>2024-03-15</code> или <code>15.03</code>.")
	}
	return b.showDay(ctx, chatID, user, d)
}

// handleAdd stores a finished interval on the selected date:
// /add 09:00 10:30 [категория]
func (b *Bot) handleAdd(ctx context.Context, chatID int64, user *model.User, args string) error {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return b.sendText(chatID, "Формат: /add <code>09:00 10:30</code> [категория]")
	}
	categoryID, err := b.resolveCategory(ctx, user.ID, strings.Join(fields[2:], " "))
	if err != nil {
		return b.sendError(chatID, err)
	}

	d := b.selectedDate(chatID)
	rec, err := b.deps.Records.AddManual(ctx, user.ID, d, fields[0], fields[1], categoryID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("➕ Запись <b>#%d</b>: %s–%s · %s (%s)",
		rec.ID, calendar.FormatClock(rec.StartedAt), calendar.FormatClock(rec.End(b.now())),
		calendar.FormatDurationLong(rec.Duration(b.now())), calendar.DateLabel(b.now(), d)))
}

// handleEdit moves a record within its own start date. A running record
// accepts a single clock time, which moves its start.
func (b *Bot) handleEdit(ctx context.Context, chatID int64, user *model.User, args string) error {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return b.sendText(chatID, "Формат: /edit <code>&lt;id&gt; 09:00 10:30</code> [категория]")
	}
	id, err := parseID(fields[0])
	if err != nil {
		return b.sendText(chatID, "Укажи номер записи, например /edit 12 09:00 10:30")
	}
	rec, err := b.deps.Records.Get(ctx, user.ID, id)
	if err != nil {
		return b.sendError(chatID, err)
	}

	edit := service.RecordEdit{
		Date:       calendar.DateOf(rec.StartedAt),
		From:       fields[1],
		CategoryID: rec.CategoryID,
	}
	rest := fields[2:]
	if len(rest) > 0 && (!rec.IsOpen() || looksLikeClock(rest[0])) {
		edit.To = rest[0]
		rest = rest[1:]
	}
	if title := strings.Join(rest, " "); title != "" {
		categoryID, err := b.resolveCategory(ctx, user.ID, title)
		if err != nil {
			return b.sendError(chatID, err)
		}
		edit.CategoryID = categoryID
	}
	if !rec.IsOpen() && edit.To == "" {
		return b.sendText(chatID, "Укажи начало и конец: /edit <code>&lt;id&gt; 09:00 10:30</code>")
	}

	if err := b.deps.Records.Edit(ctx, user.ID, id, edit); err != nil {
		return b.sendError(chatID, err)
	}
	if v := b.currentView(chatID); v != nil && rec.IsOpen() {
		if active, err := b.deps.Records.Active(ctx, user.ID); err == nil {
			b.followTimer(v, active)
		}
	}
	return b.sendText(chatID, fmt.Sprintf("✏️ Запись <b>#%d</b> обновлена.", id))
}

func (b *Bot) handleComment(ctx context.Context, chatID int64, user *model.User, args string) error {
	idPart, text, _ := strings.Cut(args, " ")
	id, err := parseID(idPart)
	if err != nil {
		return b.sendText(chatID, "Формат: /comment <code>&lt;id&gt;</code> [текст]. Без текста комментарий удаляется.")
	}
	if err := b.deps.Records.SetComment(ctx, user.ID, id, text); err != nil {
		return b.sendError(chatID, err)
	}
	if strings.TrimSpace(text) == "" {
		return b.sendText(chatID, fmt.Sprintf("💬 Комментарий к записи #%d удалён.", id))
	}
	return b.sendText(chatID, fmt.Sprintf("💬 Комментарий к записи #%d сохранён.", id))
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, user *model.User, args string) error {
	id, err := parseID(args)
	if err != nil {
		return b.sendText(chatID, "Укажи номер записи, например /delete 12")
	}
	if _, err := b.deps.Records.Get(ctx, user.ID, id); err != nil {
		return b.sendError(chatID, err)
	}
	return b.askConfirmation(chatID, confirmationRequest{id: id, action: actionDeleteRecord})
}

func (b *Bot) handleReport(ctx context.Context, chatID int64, user *model.User) error {
	text, err := b.deps.Reports.DailySummary(ctx, *user, b.now())
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось сформировать отчёт: %s", escape(err.Error())))
	}
	if text == "" {
		text = "Сегодня ещё ничего не отслежено."
	}
	return b.sendText(chatID, text)
}

// resolveCategory maps a typed title to a category id. An empty title means
// no category.
func (b *Bot) resolveCategory(ctx context.Context, userID uint, title string) (*uint, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	options, err := b.deps.Categories.Options(ctx, userID)
	if err != nil {
		return nil, err
	}
	category, ok := service.MatchTitle(options, title)
	if !ok {
		return nil, fmt.Errorf("category %q: %w", title, service.ErrNotFound)
	}
	id := category.ID
	return &id, nil
}

func (b *Bot) displayCategory(ctx context.Context, userID uint, rec model.Record) model.Category {
	categories, err := b.deps.Categories.List(ctx, userID)
	if err != nil {
		b.log.WithError(err).Warn("list categories")
	}
	return aggregate.ResolveDisplayCategory(rec, categories)
}

func categoryPicker(options []model.Category) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range options {
		label := fmt.Sprintf("%s %s", palette.Swatch(c.Color), shortTitle(normalizeTitle(c.Title), 20))
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbStartPrefix, c.ID)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func startKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(menuLabelStart, cbPick),
	))
}

func stopKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(menuLabelStop, cbStop),
	))
}

func looksLikeClock(value string) bool {
	_, err := calendar.CombineDateAndClock(calendar.Date{Year: 2000, Month: 1, Day: 1}, value)
	return err == nil
}
