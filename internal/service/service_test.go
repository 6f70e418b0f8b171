package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
	"time-tracker/internal/repository"
)

type testEnv struct {
	user      *model.User
	setup     *SetupService
	cats      *CategoryService
	records   *RecordService
	prefs     *PreferencesService
	tracker   *TrackerService
	analytics *AnalyticsService
	reports   *ReportService
	clock     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	db, err := repository.NewDB("file:"+uuid.NewString()+"?mode=memory&cache=shared", log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	users := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	prefsRepo := repository.NewPreferencesRepository(db)

	user, err := users.UpsertFromTelegram(context.Background(), repository.Identity{TelegramID: 100, ChatID: 100})
	require.NoError(t, err)

	env := &testEnv{
		user:    user,
		setup:   NewSetupService(categoryRepo, prefsRepo),
		cats:    NewCategoryService(categoryRepo),
		records: NewRecordService(recordRepo, categoryRepo),
		prefs:   NewPreferencesService(prefsRepo),
		reports: NewReportService(recordRepo, categoryRepo),
		clock:   time.Date(2026, time.October, 19, 9, 0, 0, 0, calendar.Zone),
	}
	env.records.now = func() time.Time { return env.clock }
	env.tracker = NewTrackerService(recordRepo, categoryRepo, env.prefs)
	env.analytics = NewAnalyticsService(recordRepo, categoryRepo, env.prefs)
	return env
}

func (e *testEnv) today() calendar.Date {
	return calendar.DateOf(e.clock)
}

func TestSetupEnsureIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.setup.Ensure(ctx, env.user.ID)
	require.NoError(t, err)
	second, err := env.setup.Ensure(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := env.cats.List(ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsSystem())
	assert.Equal(t, model.NoCategoryTitle, list[0].Title)
}

func TestStartStopScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	work, err := env.cats.Create(ctx, env.user.ID, "Работа", "#FF0000")
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", work.Color)

	started, err := env.records.Start(ctx, env.user.ID, &work.ID)
	require.NoError(t, err)
	assert.True(t, started.IsOpen())

	_, err = env.records.Start(ctx, env.user.ID, nil)
	assert.ErrorIs(t, err, ErrTimerRunning)

	env.clock = env.clock.Add(90 * time.Minute)
	stopped, err := env.records.Stop(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5400*time.Second, stopped.Duration(env.clock))

	_, err = env.records.Stop(ctx, env.user.ID)
	assert.ErrorIs(t, err, ErrNoActiveTimer)

	view, err := env.tracker.Day(ctx, env.user.ID, env.today(), env.clock)
	require.NoError(t, err)
	require.Len(t, view.Records, 1)
	assert.Nil(t, view.Active)
	assert.Equal(t, 5400*time.Second, view.Total)
	assert.Equal(t, "1 ч 30 м", calendar.FormatDurationLong(view.Total))
	assert.Equal(t, "Сегодня, 19 октября, пн", view.Header)

	require.Len(t, view.Segments, 1)
	assert.InDelta(t, 37.5, view.Segments[0].Left, 1e-9)
	assert.InDelta(t, 6.25, view.Segments[0].Width, 1e-9)
	assert.Equal(t, "#ff0000", view.Segments[0].Color)
}

func TestStartWithSystemCategoryStoresNoCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	system, err := env.setup.Ensure(ctx, env.user.ID)
	require.NoError(t, err)

	rec, err := env.records.Start(ctx, env.user.ID, &system.ID)
	require.NoError(t, err)
	assert.Nil(t, rec.CategoryID)

	missing := uint(9999)
	env.clock = env.clock.Add(time.Minute)
	_, err = env.records.Stop(ctx, env.user.ID)
	require.NoError(t, err)
	_, err = env.records.Start(ctx, env.user.ID, &missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStopInTheSameInstantIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started, err := env.records.Start(ctx, env.user.ID, nil)
	require.NoError(t, err)

	_, err = env.records.Stop(ctx, env.user.ID)
	assert.ErrorIs(t, err, ErrInvalidRange)
	active, err := env.records.Active(ctx, env.user.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, started.ID, active.ID)

	env.clock = env.clock.Add(300 * time.Millisecond)
	stopped, err := env.records.Stop(ctx, env.user.ID)
	require.NoError(t, err)
	require.NotNil(t, stopped.EndedAt)
	assert.True(t, stopped.EndedAt.After(stopped.StartedAt))
	assert.Equal(t, 300*time.Millisecond, stopped.EndedAt.Sub(stopped.StartedAt))
}

func TestRunningRecordOnlyCountsToday(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.records.Start(ctx, env.user.ID, nil)
	require.NoError(t, err)
	now := env.clock.Add(10 * time.Minute)

	today, err := env.tracker.Day(ctx, env.user.ID, env.today(), now)
	require.NoError(t, err)
	require.NotNil(t, today.Active)
	assert.Empty(t, today.Records, "the running record is not listed")
	assert.Equal(t, 10*time.Minute, today.Total)
	require.Len(t, today.Segments, 1)
	assert.True(t, today.Segments[0].Open)

	yesterday, err := env.tracker.Day(ctx, env.user.ID, env.today().AddDays(-1), now)
	require.NoError(t, err)
	assert.Nil(t, yesterday.Active)
	assert.NotNil(t, yesterday.Running)
	assert.Zero(t, yesterday.Total)
}

func TestAddManualValidatesRange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	day := env.today()

	_, err := env.records.AddManual(ctx, env.user.ID, day, "10:00", "10:00", nil)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = env.records.AddManual(ctx, env.user.ID, day, "11:00", "10:00", nil)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = env.records.AddManual(ctx, env.user.ID, day, "25:00", "26:00", nil)
	assert.ErrorIs(t, err, ErrInvalidClock)

	records, err := env.records.ListDay(ctx, env.user.ID, day)
	require.NoError(t, err)
	assert.Empty(t, records, "rejected writes leave nothing behind")

	rec, err := env.records.AddManual(ctx, env.user.ID, day, "8:15", "9:00", nil)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, rec.Duration(env.clock))
	assert.Equal(t, "08:15", calendar.FormatClock(rec.StartedAt))
}

func TestEditAndComment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	day := env.today()
	sport, err := env.cats.Create(ctx, env.user.ID, "Спорт", "")
	require.NoError(t, err)

	rec, err := env.records.AddManual(ctx, env.user.ID, day, "07:00", "08:00", nil)
	require.NoError(t, err)

	err = env.records.Edit(ctx, env.user.ID, rec.ID, RecordEdit{Date: day, From: "07:30", To: "07:00", CategoryID: &sport.ID})
	assert.ErrorIs(t, err, ErrInvalidRange)

	require.NoError(t, env.records.Edit(ctx, env.user.ID, rec.ID, RecordEdit{Date: day, From: "07:30", To: "08:30", CategoryID: &sport.ID}))
	got, err := env.records.Get(ctx, env.user.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "07:30", calendar.FormatClock(got.StartedAt))
	assert.Equal(t, "08:30", calendar.FormatClock(*got.EndedAt))
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, sport.ID, *got.CategoryID)

	require.NoError(t, env.records.SetComment(ctx, env.user.ID, rec.ID, "  пробежка  "))
	got, err = env.records.Get(ctx, env.user.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "пробежка", got.CommentText())

	require.NoError(t, env.records.SetComment(ctx, env.user.ID, rec.ID, "   "))
	got, err = env.records.Get(ctx, env.user.ID, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Comment)

	require.NoError(t, env.records.Delete(ctx, env.user.ID, rec.ID))
	assert.ErrorIs(t, env.records.Delete(ctx, env.user.ID, rec.ID), ErrNotFound)
}

func TestEditRunningRecordMovesStartOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec, err := env.records.Start(ctx, env.user.ID, nil)
	require.NoError(t, err)

	require.NoError(t, env.records.Edit(ctx, env.user.ID, rec.ID, RecordEdit{Date: env.today(), From: "08:00"}))
	got, err := env.records.Get(ctx, env.user.ID, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOpen())
	assert.Equal(t, "08:00", calendar.FormatClock(got.StartedAt))

	err = env.records.Edit(ctx, env.user.ID, rec.ID, RecordEdit{Date: env.today(), From: "23:00"})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestCategoryReorderScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.setup.Ensure(ctx, env.user.ID)
	require.NoError(t, err)

	a, err := env.cats.Create(ctx, env.user.ID, "A", "#111111")
	require.NoError(t, err)
	b, err := env.cats.Create(ctx, env.user.ID, "B", "#222222")
	require.NoError(t, err)
	c, err := env.cats.Create(ctx, env.user.ID, "C", "#333333")
	require.NoError(t, err)
	hidden, err := env.cats.Create(ctx, env.user.ID, "H", "#444444")
	require.NoError(t, err)
	require.NoError(t, env.cats.SetVisible(ctx, env.user.ID, hidden.ID, false))

	require.NoError(t, env.cats.Reorder(ctx, env.user.ID, []uint{c.ID, a.ID, b.ID}))

	list, err := env.cats.List(ctx, env.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.True(t, list[0].IsSystem())
	assert.Equal(t, []string{"C", "A", "B", "H"}, []string{list[1].Title, list[2].Title, list[3].Title, list[4].Title})

	options, err := env.cats.Options(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Len(t, options, 4, "hidden categories are not offered")

	for name, ids := range map[string][]uint{
		"missing one":     {c.ID, a.ID},
		"duplicate":       {c.ID, c.ID, a.ID},
		"includes hidden": {c.ID, a.ID, hidden.ID},
		"includes system": {list[0].ID, a.ID, b.ID},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, env.cats.Reorder(ctx, env.user.ID, ids), ErrInvalidOrder)
		})
	}
}

func TestCategoryValidationAndSystemProtection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	system, err := env.setup.Ensure(ctx, env.user.ID)
	require.NoError(t, err)

	_, err = env.cats.Create(ctx, env.user.ID, "  ", "#ffffff")
	assert.ErrorIs(t, err, ErrEmptyTitle)
	_, err = env.cats.Create(ctx, env.user.ID, "Чтение", "зелёный")
	assert.ErrorIs(t, err, ErrInvalidColor)

	assert.ErrorIs(t, env.cats.Rename(ctx, env.user.ID, system.ID, "x"), ErrSystemCategory)
	assert.ErrorIs(t, env.cats.Recolor(ctx, env.user.ID, system.ID, "#ffffff"), ErrSystemCategory)
	assert.ErrorIs(t, env.cats.SetVisible(ctx, env.user.ID, system.ID, false), ErrSystemCategory)
	assert.ErrorIs(t, env.cats.Delete(ctx, env.user.ID, system.ID), ErrSystemCategory)
	assert.ErrorIs(t, env.cats.Delete(ctx, env.user.ID, 4242), ErrNotFound)

	read, err := env.cats.Create(ctx, env.user.ID, "Чтение", "")
	require.NoError(t, err)
	require.NoError(t, env.cats.Rename(ctx, env.user.ID, read.ID, " Книги "))
	require.NoError(t, env.cats.Recolor(ctx, env.user.ID, read.ID, "00ff00"))
	got, err := env.cats.Get(ctx, env.user.ID, read.ID)
	require.NoError(t, err)
	assert.Equal(t, "Книги", got.Title)
	assert.Equal(t, "#00ff00", got.Color)

	list, err := env.cats.List(ctx, env.user.ID)
	require.NoError(t, err)
	match, ok := MatchTitle(list, "книги")
	require.True(t, ok)
	assert.Equal(t, read.ID, match.ID)
	_, ok = MatchTitle(list, "нет такой")
	assert.False(t, ok)
}

func TestDeletedCategoryRendersAsUnknown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gone, err := env.cats.Create(ctx, env.user.ID, "Временная", "#ff0000")
	require.NoError(t, err)
	_, err = env.records.AddManual(ctx, env.user.ID, env.today(), "06:00", "07:00", &gone.ID)
	require.NoError(t, err)
	require.NoError(t, env.cats.Delete(ctx, env.user.ID, gone.ID))

	view, err := env.tracker.Day(ctx, env.user.ID, env.today(), env.clock)
	require.NoError(t, err)
	require.Len(t, view.Segments, 1)
	assert.Equal(t, model.DefaultColor, view.Segments[0].Color)

	totals, sum, err := env.reports.Totals(ctx, env.user.ID, env.today(), env.clock)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, model.KindUnknown, totals[0].Category.Kind)
	assert.Equal(t, time.Hour, sum)
}

func TestPreferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	prefs, err := env.prefs.Get(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, calendar.FullDay, prefs.Window())

	_, err = env.prefs.SetWindow(ctx, env.user.ID, 10, 10)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	prefs, err = env.prefs.SetWindow(ctx, env.user.ID, 8, 20)
	require.NoError(t, err)
	assert.Equal(t, calendar.HourWindow{Start: 8, End: 20}, prefs.Window())

	_, err = env.prefs.SetTimelineVisible(ctx, env.user.ID, false)
	require.NoError(t, err)
	_, err = env.prefs.SetCompletedVisible(ctx, env.user.ID, false)
	require.NoError(t, err)

	prefs, err = env.prefs.Get(ctx, env.user.ID)
	require.NoError(t, err)
	assert.False(t, prefs.TimelineVisible)
	assert.False(t, prefs.CompletedVisible)
	assert.Equal(t, 8, prefs.TimelineStartHour)
}

func TestAnalyticsMonth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	day := env.today()

	_, err := env.records.AddManual(ctx, env.user.ID, day, "09:00", "10:00", nil)
	require.NoError(t, err)
	_, err = env.records.AddManual(ctx, env.user.ID, day.AddDays(-18), "09:00", "09:30", nil)
	require.NoError(t, err)
	_, err = env.records.AddManual(ctx, env.user.ID, day.AddDays(-30), "09:00", "09:30", nil)
	require.NoError(t, err)

	view, err := env.analytics.Month(ctx, env.user.ID, 2026, time.October, env.clock)
	require.NoError(t, err)
	assert.Equal(t, "Октябрь 2026", view.Label)
	require.Len(t, view.Days, 2)
	assert.Equal(t, 1, view.Days[0].Date.Day)
	assert.Equal(t, 19, view.Days[1].Date.Day)
	assert.True(t, strings.HasPrefix(view.Days[1].Label, "Сегодня"))
	assert.Equal(t, 90*time.Minute, view.Total)
	assert.Len(t, view.Grid, 3+31)
	assert.Equal(t, time.Hour, view.Grid[3+18].Total)
	require.Len(t, view.Days[1].Segments, 1)
}

func TestDailySummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	text, err := env.reports.DailySummary(ctx, *env.user, env.clock)
	require.NoError(t, err)
	assert.Empty(t, text)

	work, err := env.cats.Create(ctx, env.user.ID, "Работа <срочно>", "#ff0000")
	require.NoError(t, err)
	_, err = env.records.AddManual(ctx, env.user.ID, env.today(), "06:00", "08:00", &work.ID)
	require.NoError(t, err)
	_, err = env.records.AddManual(ctx, env.user.ID, env.today(), "08:00", "08:20", nil)
	require.NoError(t, err)

	text, err = env.reports.DailySummary(ctx, *env.user, env.clock)
	require.NoError(t, err)
	assert.Contains(t, text, "Итоги дня")
	assert.Contains(t, text, "Работа &lt;срочно&gt;: <b>2 ч</b>")
	assert.Contains(t, text, model.NoCategoryTitle+": <b>20 м</b>")
	assert.Contains(t, text, "Всего: <b>2 ч 20 м</b>")
	assert.Less(t, strings.Index(text, "Работа"), strings.Index(text, model.NoCategoryTitle))
}
