package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"time-tracker/internal/aggregate"
	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
	"time-tracker/internal/palette"
	"time-tracker/internal/service"
	"time-tracker/internal/timer"
)

const (
	daySlots       = 24
	monthSlots     = 12
	maxRecordRows  = 8
	heatLegendText = "⬜ 0 · 🟨 до 1 ч · 🟧 1–3 ч · 🟥 3–6 ч · 🟪 от 6 ч"
)

var heatSquares = [...]string{"⬜", "🟨", "🟧", "🟥", "🟪"}

const weekHeader = "Пн Вт Ср Чт Пт Сб Вс"

// renderTimeline draws segments as a strip of colored squares. Each slot
// takes the color of the segment covering most of it.
func renderTimeline(segments []aggregate.Segment, slots int) string {
	if slots <= 0 {
		return ""
	}
	var builder strings.Builder
	step := 100.0 / float64(slots)
	for i := 0; i < slots; i++ {
		lo := float64(i) * step
		hi := lo + step
		best, bestColor := 0.0, ""
		for _, s := range segments {
			overlap := min(hi, s.Left+s.Width) - max(lo, s.Left)
			if overlap > best {
				best, bestColor = overlap, s.Color
			}
		}
		if bestColor == "" {
			builder.WriteString(palette.Empty)
			continue
		}
		builder.WriteString(palette.Swatch(bestColor))
	}
	return builder.String()
}

func renderWindowStrip(segments []aggregate.Segment, w calendar.HourWindow, slots int) string {
	return fmt.Sprintf("<code>%02d</code> %s <code>%02d</code>", w.Start, renderTimeline(segments, slots), w.End)
}

// renderDay is the tracker screen for one date.
func renderDay(v *service.DayView, now time.Time) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🗓 <b>%s</b>\n", escape(v.Header)))

	switch {
	case v.Active != nil:
		category := aggregate.ResolveDisplayCategory(*v.Active, v.Categories)
		builder.WriteString(fmt.Sprintf("⏱ %s <b>%s</b> · %s (с %s)\n",
			palette.Swatch(category.Color), escape(category.Title),
			calendar.FormatDurationWithSeconds(timer.Elapsed(v.Active, now)),
			calendar.FormatClock(v.Active.StartedAt)))
	case v.Running != nil:
		builder.WriteString(fmt.Sprintf("⏱ Таймер идёт с %s, %s · /today\n",
			calendar.DateLabel(now, calendar.DateOf(v.Running.StartedAt)), calendar.FormatClock(v.Running.StartedAt)))
	}

	if v.Preferences.TimelineVisible {
		builder.WriteString("\n" + renderWindowStrip(v.Segments, v.Preferences.Window(), daySlots) + "\n")
	}

	switch {
	case len(v.Records) == 0 && v.Active == nil:
		builder.WriteString("\nЗаписей нет.\n")
	case len(v.Records) == 0:
	case v.Preferences.CompletedVisible:
		builder.WriteString("\n<b>Записи</b>\n")
		for _, rec := range v.Records {
			builder.WriteString(formatRecord(rec, v.Categories, now))
		}
	default:
		builder.WriteString(fmt.Sprintf("\nЗавершённых записей: %d (скрыты, /completed on)\n", len(v.Records)))
	}

	builder.WriteString(fmt.Sprintf("\nΣ Всего: <b>%s</b>", calendar.FormatDurationStopped(v.Total)))
	return builder.String()
}

func formatRecord(rec model.Record, categories []model.Category, now time.Time) string {
	category := aggregate.ResolveDisplayCategory(rec, categories)
	line := fmt.Sprintf("<b>#%d</b> %s–%s %s %s · %s\n",
		rec.ID,
		calendar.FormatClock(rec.StartedAt), calendar.FormatClock(rec.End(now)),
		palette.Swatch(category.Color), escape(category.Title),
		calendar.FormatDurationLong(rec.Duration(now)))
	if comment := strings.TrimSpace(rec.CommentText()); comment != "" {
		line += fmt.Sprintf("   💬 %s\n", escape(comment))
	}
	return line
}

func dayKeyboard(v *service.DayView, now time.Time) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️", cbDayPrefix+v.Date.AddDays(-1).Key()),
			tgbotapi.NewInlineKeyboardButtonData("📅 Сегодня", cbDayPrefix+calendar.DateOf(now).Key()),
			tgbotapi.NewInlineKeyboardButtonData("▶️", cbDayPrefix+v.Date.AddDays(1).Key()),
		),
	}
	switch {
	case v.Running != nil:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(menuLabelStop, cbStop)))
	default:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(menuLabelStart, cbPick)))
	}
	if v.Preferences.CompletedVisible {
		var row []tgbotapi.InlineKeyboardButton
		for i, rec := range v.Records {
			if i == maxRecordRows {
				break
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 #%d", rec.ID), fmt.Sprintf("%s%d", cbDeletePrefix, rec.ID)))
			if len(row) == 4 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// renderMonth lists the tracked days of a month with their totals.
func renderMonth(m *service.MonthView) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📊 <b>%s</b>\n", escape(m.Label)))
	if len(m.Days) == 0 {
		builder.WriteString("\nВ этом месяце ничего не отслежено.")
		return builder.String()
	}
	builder.WriteString(fmt.Sprintf("Всего: <b>%s</b>\n", calendar.FormatDurationStopped(m.Total)))
	for _, d := range m.Days {
		builder.WriteString(fmt.Sprintf("\n<b>%s</b> — %s\n", escape(d.Label), calendar.FormatDurationLong(d.Total)))
		builder.WriteString(renderWindowStrip(d.Segments, m.Window, monthSlots) + "\n")
	}
	return strings.TrimSpace(builder.String())
}

func monthKeyboard(days []service.MonthDay) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, d := range days {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%02d", d.Date.Day), cbDayPrefix+d.Date.Key()))
		if len(row) == 7 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// renderCalendar draws the month as a Monday-first heat-map.
func renderCalendar(m *service.MonthView, now time.Time) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🗓 <b>%s</b>\n<code>%s</code>\n", escape(m.Label), weekHeader))

	today := calendar.DateOf(now)
	var busiest aggregate.CalendarCell
	for i, cell := range m.Grid {
		switch {
		case cell.Day == 0:
			builder.WriteString(palette.Empty)
		case cell.Date == today:
			builder.WriteString("🔘")
		default:
			builder.WriteString(heatSquares[aggregate.HeatLevel(cell.Total)])
		}
		if cell.Total > busiest.Total {
			busiest = cell
		}
		if i%7 == 6 {
			builder.WriteByte('\n')
		} else {
			builder.WriteByte(' ')
		}
	}

	builder.WriteString("\n" + heatLegendText + "\n")
	builder.WriteString(fmt.Sprintf("Всего: <b>%s</b>", calendar.FormatDurationStopped(m.Total)))
	if busiest.Total > 0 {
		builder.WriteString(fmt.Sprintf("\nСамый насыщенный день: %s · %s",
			calendar.DateShort(busiest.Date), calendar.FormatDurationLong(busiest.Total)))
	}
	return strings.TrimSpace(builder.String())
}
