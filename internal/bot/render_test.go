package bot

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time-tracker/internal/aggregate"
	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
	"time-tracker/internal/palette"
	"time-tracker/internal/service"
)

func msk(day, hour, minute int) time.Time {
	return time.Date(2026, time.October, day, hour, minute, 0, 0, calendar.Zone)
}

func TestRenderTimeline(t *testing.T) {
	strip := renderTimeline([]aggregate.Segment{
		{RecordID: 1, Left: 0, Width: 50, Color: "#dd2e44"},
		{RecordID: 2, Left: 75, Width: 25, Color: "#55acee"},
	}, 4)
	assert.Equal(t, "🟥🟥"+palette.Empty+"🟦", strip)

	assert.Equal(t, strings.Repeat(palette.Empty, 3), renderTimeline(nil, 3))
	assert.Empty(t, renderTimeline(nil, 0))
}

func TestRenderTimelinePicksLargestOverlap(t *testing.T) {
	strip := renderTimeline([]aggregate.Segment{
		{RecordID: 1, Left: 0, Width: 10, Color: "#dd2e44"},
		{RecordID: 2, Left: 10, Width: 90, Color: "#78b159"},
	}, 2)
	assert.Equal(t, "🟩🟩", strip)
}

func TestRenderDay(t *testing.T) {
	now := msk(19, 12, 0)
	work := model.Category{ID: 7, Title: "Работа", Color: "#55acee", Visible: true, Kind: model.KindUser}
	system := model.Category{ID: 1, Title: model.NoCategoryTitle, Color: model.DefaultColor, Visible: true, Kind: model.KindSystem}
	end := msk(19, 10, 30)
	comment := "отчёт <черновик>"
	deleted := uint(99)
	closed := model.Record{ID: 3, CategoryID: &work.ID, StartedAt: msk(19, 9, 0), EndedAt: &end, Comment: &comment}
	orphan := model.Record{ID: 4, CategoryID: &deleted, StartedAt: msk(19, 7, 0), EndedAt: ptrTime(msk(19, 7, 30))}
	active := model.Record{ID: 5, StartedAt: msk(19, 11, 0)}

	view := &service.DayView{
		Date:        calendar.DateOf(now),
		Header:      "Сегодня, 19 октября, пн",
		Records:     []model.Record{closed, orphan},
		Running:     &active,
		Active:      &active,
		Total:       3 * time.Hour,
		Categories:  []model.Category{system, work},
		Preferences: model.DefaultPreferences(1),
	}

	text := renderDay(view, now)
	assert.Contains(t, text, "Сегодня, 19 октября")
	assert.Contains(t, text, "Без категории</b> · 1 ч 0 м 0 с")
	assert.Contains(t, text, "<b>#3</b> 09:00–10:30 🟦 Работа · 1 ч 30 м")
	assert.Contains(t, text, "отчёт &lt;черновик&gt;")
	assert.Contains(t, text, "<b>#4</b> 07:00–07:30")
	assert.Contains(t, text, " ? · 30 м")
	assert.Contains(t, text, "Всего: <b>3 ч</b>")

	view.Preferences.CompletedVisible = false
	view.Preferences.TimelineVisible = false
	text = renderDay(view, now)
	assert.NotContains(t, text, "#3")
	assert.Contains(t, text, "Завершённых записей: 2")
	assert.NotContains(t, text, "<code>00</code>")
}

func TestRenderDayRunningOnAnotherDate(t *testing.T) {
	now := msk(19, 12, 0)
	running := model.Record{ID: 5, StartedAt: msk(19, 11, 0)}
	view := &service.DayView{
		Date:        calendar.DateOf(now).AddDays(-1),
		Header:      "Вчера, 18 октября, вс",
		Running:     &running,
		Preferences: model.DefaultPreferences(1),
	}
	text := renderDay(view, now)
	assert.Contains(t, text, "Таймер идёт с Сегодня")
	assert.Contains(t, text, "Записей нет.")
	assert.Contains(t, text, "Всего: <b>0 м</b>")

	kb := dayKeyboard(view, now)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, cbDayPrefix+"2026-10-17", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, cbDayPrefix+"2026-10-19", *kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, cbStop, *kb.InlineKeyboard[1][0].CallbackData)
}

func TestRenderCalendar(t *testing.T) {
	now := msk(19, 12, 0)
	buckets := []aggregate.DayBucket{
		{Date: calendar.NewDate(2026, time.October, 5), Total: 7 * time.Hour},
		{Date: calendar.NewDate(2026, time.October, 6), Total: 30 * time.Minute},
	}
	view := &service.MonthView{
		Year:  2026,
		Month: time.October,
		Label: "Октябрь 2026",
		Grid:  aggregate.MonthGrid(2026, time.October, buckets),
		Total: 7*time.Hour + 30*time.Minute,
	}
	text := renderCalendar(view, now)
	lines := strings.Split(text, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	// October 2026 starts on a Thursday.
	assert.True(t, strings.HasPrefix(lines[2], strings.Repeat(palette.Empty+" ", 3)))
	assert.Contains(t, text, "🟪 🟨")
	assert.Contains(t, text, "🔘")
	assert.Contains(t, text, "Самый насыщенный день: 5 октября")
}

func TestRenderMonthEmpty(t *testing.T) {
	text := renderMonth(&service.MonthView{Label: "Март 2024"})
	assert.Contains(t, text, "ничего не отслежено")
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("start: %w", service.ErrTimerRunning), "уже запущен"},
		{service.ErrNoActiveTimer, "не запущен"},
		{fmt.Errorf("09:00-08:00: %w", service.ErrInvalidRange), "позже начала"},
		{service.ErrInvalidClock, "ЧЧ:ММ"},
		{service.ErrInvalidWindow, "от 0 до 24"},
		{service.ErrInvalidColor, "#rrggbb"},
		{service.ErrEmptyTitle, "пустым"},
		{service.ErrInvalidOrder, "ровно один раз"},
		{fmt.Errorf("category 1: %w", service.ErrSystemCategory), "изменить нельзя"},
		{fmt.Errorf("record: %w", service.ErrNotFound), "Не найдено"},
		{errors.New("disk <full>"), "Ошибка: disk &lt;full&gt;"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Contains(t, errorText(tt.err), tt.want)
		})
	}
	assert.Empty(t, errorText(nil))
}

func TestParseHelpers(t *testing.T) {
	t.Run("month", func(t *testing.T) {
		now := msk(19, 12, 0)
		y, m, err := parseMonth("", now)
		require.NoError(t, err)
		assert.Equal(t, 2026, y)
		assert.Equal(t, time.October, m)

		y, m, err = parseMonth("03.2024", now)
		require.NoError(t, err)
		assert.Equal(t, 2024, y)
		assert.Equal(t, time.March, m)

		_, _, err = parseMonth("2024-13", now)
		assert.Error(t, err)
	})
	t.Run("id", func(t *testing.T) {
		id, err := parseID("#12")
		require.NoError(t, err)
		assert.Equal(t, uint(12), id)
		_, err = parseID("0")
		assert.Error(t, err)
	})
	t.Run("title and color", func(t *testing.T) {
		title, color := splitTitleAndColor("  Глубокая работа  #abc ")
		assert.Equal(t, "Глубокая работа", title)
		assert.Equal(t, "#abc", color)
		title, color = splitTitleAndColor("#хештег")
		assert.Equal(t, "#хештег", title)
		assert.Empty(t, color)
	})
	t.Run("switch", func(t *testing.T) {
		on, ok := parseSwitch("ON")
		assert.True(t, on)
		assert.True(t, ok)
		_, ok = parseSwitch("maybe")
		assert.False(t, ok)
	})
	t.Run("clock", func(t *testing.T) {
		assert.True(t, looksLikeClock("9:05"))
		assert.False(t, looksLikeClock("Работа"))
	})
}

func ptrTime(t time.Time) *time.Time { return &t }
