package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"time-tracker/internal/aggregate"
	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
	"time-tracker/internal/palette"
	"time-tracker/internal/repository"
)

// CategoryTotal is the time tracked against one display category.
type CategoryTotal struct {
	Category model.Category
	Total    time.Duration
}

// ReportService builds human-readable summaries for daily notifications.
type ReportService struct {
	recordRepo   *repository.RecordRepository
	categoryRepo *repository.CategoryRepository
}

func NewReportService(recordRepo *repository.RecordRepository, categoryRepo *repository.CategoryRepository) *ReportService {
	return &ReportService{recordRepo: recordRepo, categoryRepo: categoryRepo}
}

// Totals sums the records that started on day per display category, largest first.
func (s *ReportService) Totals(ctx context.Context, userID uint, day calendar.Date, now time.Time) ([]CategoryTotal, time.Duration, error) {
	records, err := s.recordRepo.ListBetween(ctx, userID, calendar.DayWindowUTC(day), true)
	if err != nil {
		return nil, 0, err
	}
	categories, err := s.categoryRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	totals, sum := TotalsByCategory(records, categories, now)
	return totals, sum, nil
}

// TotalsByCategory groups records by their resolved display category. Open
// records count up to now.
func TotalsByCategory(records []model.Record, categories []model.Category, now time.Time) ([]CategoryTotal, time.Duration) {
	type key struct {
		id   uint
		kind model.CategoryKind
	}
	index := make(map[key]int)
	var out []CategoryTotal
	var sum time.Duration
	for _, rec := range records {
		cat := aggregate.ResolveDisplayCategory(rec, categories)
		k := key{id: cat.ID, kind: cat.Kind}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, CategoryTotal{Category: cat})
		}
		d := rec.Duration(now)
		out[i].Total += d
		sum += d
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	return out, sum
}

// DailySummary renders the end-of-day report. It returns an empty string
// when nothing was tracked.
func (s *ReportService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	day := calendar.DateOf(now)
	totals, sum, err := s.Totals(ctx, user.ID, day, now)
	if err != nil {
		return "", err
	}
	if sum <= 0 {
		return "", nil
	}

	var builder strings.Builder
	builder.WriteString("📊 <b>Итоги дня</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", calendar.DateShort(day)))
	for _, t := range totals {
		builder.WriteString(fmt.Sprintf("%s %s: <b>%s</b>\n",
			palette.Swatch(t.Category.Color),
			html.EscapeString(strings.TrimSpace(t.Category.Title)),
			calendar.FormatDurationLong(t.Total)))
	}
	builder.WriteString(fmt.Sprintf("\n⏱ Всего: <b>%s</b>", calendar.FormatDurationLong(sum)))

	return strings.TrimSpace(builder.String()), nil
}
