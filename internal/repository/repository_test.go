package repository

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"time-tracker/internal/calendar"
	"time-tracker/internal/events"
	"time-tracker/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	db, err := NewDB("file:"+uuid.NewString()+"?mode=memory&cache=shared", log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestUser(t *testing.T, db *gorm.DB, telegramID int64) *model.User {
	t.Helper()
	user, err := NewUserRepository(db).UpsertFromTelegram(context.Background(), Identity{TelegramID: telegramID, ChatID: telegramID, FirstName: "Аня"})
	require.NoError(t, err)
	return user
}

func TestUserRepositoryUpsert(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	first, err := repo.UpsertFromTelegram(ctx, Identity{TelegramID: 42, ChatID: 42, Username: "anya"})
	require.NoError(t, err)
	second, err := repo.UpsertFromTelegram(ctx, Identity{TelegramID: 42, ChatID: 43, FirstName: "Аня"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	found, err := repo.FindByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(43), found.ChatID)
	assert.Equal(t, "Аня", found.DisplayName())

	_, err = repo.FindByTelegramID(ctx, 7)
	assert.True(t, IsNotFound(err))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCategoryRepositorySystemAndOrdering(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, 1)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	system, err := repo.EnsureSystem(ctx, user.ID)
	require.NoError(t, err)
	again, err := repo.EnsureSystem(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, system.ID, again.ID)
	assert.True(t, system.IsSystem())

	maxOrder, err := repo.MaxSortOrder(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, maxOrder)

	work := &model.Category{UserID: user.ID, Title: "Работа", Color: "#ff0000", Visible: true, SortOrder: 2}
	study := &model.Category{UserID: user.ID, Title: "Учёба", Color: "#00ff00", Visible: true, SortOrder: 1}
	require.NoError(t, repo.Create(ctx, work))
	require.NoError(t, repo.Create(ctx, study))
	assert.Equal(t, model.KindUser, work.Kind)

	list, err := repo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uint{system.ID, study.ID, work.ID}, []uint{list[0].ID, list[1].ID, list[2].ID})

	maxOrder, err = repo.MaxSortOrder(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, maxOrder)

	require.NoError(t, repo.UpdateSortOrders(ctx, user.ID, []uint{work.ID, study.ID}))
	list, err = repo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{system.ID, work.ID, study.ID}, []uint{list[0].ID, list[1].ID, list[2].ID})

	err = repo.UpdateSortOrders(ctx, user.ID, []uint{study.ID, system.ID})
	assert.True(t, IsNotFound(err))
	got, err := repo.GetByID(ctx, user.ID, study.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SortOrder, "failed reorder must roll back")

	found, err := repo.FindByTitle(ctx, user.ID, "Работа")
	require.NoError(t, err)
	assert.Equal(t, work.ID, found.ID)
}

func TestCategoryRepositoryProtectsSystem(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, 1)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	system, err := repo.EnsureSystem(ctx, user.ID)
	require.NoError(t, err)

	assert.True(t, IsNotFound(repo.Update(ctx, user.ID, system.ID, map[string]interface{}{"title": "x"})))
	assert.True(t, IsNotFound(repo.Delete(ctx, user.ID, system.ID)))

	other := newTestUser(t, db, 2)
	cat := &model.Category{UserID: user.ID, Title: "Спорт", Color: "#0000ff", Visible: true}
	require.NoError(t, repo.Create(ctx, cat))
	assert.True(t, IsNotFound(repo.Delete(ctx, other.ID, cat.ID)))

	require.NoError(t, repo.Update(ctx, user.ID, cat.ID, map[string]interface{}{"visible": false}))
	got, err := repo.GetByID(ctx, user.ID, cat.ID)
	require.NoError(t, err)
	assert.False(t, got.Visible)

	require.NoError(t, repo.Delete(ctx, user.ID, cat.ID))
	_, err = repo.GetByID(ctx, user.ID, cat.ID)
	assert.True(t, IsNotFound(err))
}

func TestRecordRepositorySingleOpenRecord(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, 1)
	repo := NewRecordRepository(db)
	ctx := context.Background()

	start := time.Date(2026, time.October, 19, 9, 0, 0, 0, calendar.Zone)
	open := &model.Record{UserID: user.ID, StartedAt: start}
	require.NoError(t, repo.Create(ctx, open))
	assert.Equal(t, time.UTC, open.StartedAt.Location())

	err := repo.Create(ctx, &model.Record{UserID: user.ID, StartedAt: start.Add(time.Minute)})
	assert.ErrorIs(t, err, ErrOpenRecordExists)

	end := start.Add(-time.Hour)
	closedBefore := &model.Record{UserID: user.ID, StartedAt: start.Add(-2 * time.Hour), EndedAt: &end}
	require.NoError(t, repo.Create(ctx, closedBefore))

	found, err := repo.FindOpen(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, open.ID, found.ID)

	_, err = repo.Close(ctx, user.ID, start)
	assert.ErrorIs(t, err, ErrInvalidRange, "zero-length record")
	_, err = repo.Close(ctx, user.ID, start.Add(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidRange)
	found, err = repo.FindOpen(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found, "a rejected close leaves the record running")

	closed, err := repo.Close(ctx, user.ID, start.Add(90*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, closed.EndedAt)
	assert.True(t, closed.EndedAt.Equal(start.Add(90*time.Minute)))

	found, err = repo.FindOpen(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = repo.Close(ctx, user.ID, start)
	assert.True(t, IsNotFound(err))

	err = repo.Create(ctx, &model.Record{UserID: user.ID, StartedAt: start, EndedAt: &start})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRecordRepositoryWindows(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, 1)
	repo := NewRecordRepository(db)
	ctx := context.Background()
	day := calendar.NewDate(2026, time.October, 19)

	at := func(d calendar.Date, h, m int) time.Time {
		return time.Date(d.Year, d.Month, d.Day, h, m, 0, 0, calendar.Zone)
	}
	ptr := func(t time.Time) *time.Time { return &t }

	overnight := &model.Record{UserID: user.ID, StartedAt: at(day.AddDays(-1), 23, 0), EndedAt: ptr(at(day, 1, 0))}
	morning := &model.Record{UserID: user.ID, StartedAt: at(day, 9, 0), EndedAt: ptr(at(day, 10, 30))}
	// 00:30 MSK is still the 19th although it is the 18th in UTC.
	early := &model.Record{UserID: user.ID, StartedAt: at(day, 0, 30), EndedAt: ptr(at(day, 0, 45))}
	tomorrow := &model.Record{UserID: user.ID, StartedAt: at(day.AddDays(1), 8, 0), EndedAt: ptr(at(day.AddDays(1), 9, 0))}
	for _, rec := range []*model.Record{overnight, morning, early, tomorrow} {
		require.NoError(t, repo.Create(ctx, rec))
	}

	started, err := repo.ListBetween(ctx, user.ID, calendar.DayWindowUTC(day), false)
	require.NoError(t, err)
	require.Len(t, started, 2)
	assert.Equal(t, morning.ID, started[0].ID)
	assert.Equal(t, early.ID, started[1].ID)

	overlapping, err := repo.ListOverlapping(ctx, user.ID, calendar.DayWindowUTC(day))
	require.NoError(t, err)
	require.Len(t, overlapping, 3)
	assert.Equal(t, overnight.ID, overlapping[0].ID)

	month, err := repo.ListBetween(ctx, user.ID, calendar.MonthWindowUTC(2026, time.October), true)
	require.NoError(t, err)
	assert.Len(t, month, 4)

	comment := "отчёт"
	require.NoError(t, repo.Update(ctx, user.ID, morning.ID, map[string]interface{}{"comment": &comment}))
	got, err := repo.FindByID(ctx, user.ID, morning.ID)
	require.NoError(t, err)
	assert.Equal(t, "отчёт", got.CommentText())

	require.NoError(t, repo.Delete(ctx, user.ID, morning.ID))
	assert.True(t, IsNotFound(repo.Delete(ctx, user.ID, morning.ID)))
}

func TestPreferencesRepository(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, 1)
	repo := NewPreferencesRepository(db)
	ctx := context.Background()

	_, err := repo.Find(ctx, user.ID)
	assert.True(t, IsNotFound(err))

	require.NoError(t, repo.CreateDefault(ctx, user.ID))
	prefs, err := repo.Find(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPreferences(user.ID).Window(), prefs.Window())
	assert.True(t, prefs.TimelineVisible)

	prefs.TimelineStartHour = 8
	prefs.TimelineEndHour = 20
	prefs.CompletedVisible = false
	require.NoError(t, repo.Upsert(ctx, prefs))
	require.NoError(t, repo.CreateDefault(ctx, user.ID))

	prefs, err = repo.Find(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, calendar.HourWindow{Start: 8, End: 20}, prefs.Window())
	assert.False(t, prefs.CompletedVisible)
	assert.True(t, prefs.TimelineVisible)
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []events.Change
}

func (p *recordingPublisher) Publish(c events.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

func (p *recordingPublisher) snapshot() []events.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Change(nil), p.changes...)
}

func TestWatchChangesPublishesPerTable(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, 1)
	pub := &recordingPublisher{}
	require.NoError(t, WatchChanges(db, pub))
	ctx := context.Background()

	records := NewRecordRepository(db)
	rec := &model.Record{UserID: user.ID, StartedAt: time.Now()}
	require.NoError(t, records.Create(ctx, rec))
	_, err := records.Close(ctx, user.ID, rec.StartedAt.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, records.Delete(ctx, user.ID, rec.ID))

	cats := NewCategoryRepository(db)
	require.NoError(t, cats.Create(ctx, &model.Category{UserID: user.ID, Title: "Работа", Color: "#ff0000", Visible: true}))
	// No-op update of a missing row publishes nothing.
	_ = cats.Update(ctx, user.ID, 999, map[string]interface{}{"title": "x"})

	_, err = NewUserRepository(db).UpsertFromTelegram(ctx, Identity{TelegramID: 5})
	require.NoError(t, err)

	got := pub.snapshot()
	require.Len(t, got, 4)
	assert.Equal(t, events.Change{Topic: events.Records, Op: events.OpInsert, UserID: user.ID}, got[0])
	assert.Equal(t, events.Change{Topic: events.Records, Op: events.OpUpdate, UserID: user.ID}, got[1])
	assert.Equal(t, events.Change{Topic: events.Records, Op: events.OpDelete, UserID: user.ID}, got[2])
	assert.Equal(t, events.Change{Topic: events.Categories, Op: events.OpInsert, UserID: user.ID}, got[3])
}
