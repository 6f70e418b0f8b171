package service

import (
	"context"
	"time"

	"time-tracker/internal/aggregate"
	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
	"time-tracker/internal/repository"
)

// MonthDay is one row of the monthly analytics list.
type MonthDay struct {
	Date     calendar.Date
	Label    string
	Total    time.Duration
	Records  []model.Record
	Segments []aggregate.Segment
}

// MonthView is the analytics screen for one month.
type MonthView struct {
	Year       int
	Month      time.Month
	Label      string
	Days       []MonthDay
	Grid       []aggregate.CalendarCell
	Total      time.Duration
	Categories []model.Category
	Window     calendar.HourWindow
}

// AnalyticsService builds monthly views.
type AnalyticsService struct {
	recordRepo   *repository.RecordRepository
	categoryRepo *repository.CategoryRepository
	prefs        *PreferencesService
}

func NewAnalyticsService(recordRepo *repository.RecordRepository, categoryRepo *repository.CategoryRepository, prefs *PreferencesService) *AnalyticsService {
	return &AnalyticsService{recordRepo: recordRepo, categoryRepo: categoryRepo, prefs: prefs}
}

// Month groups the month's records by start day. An open record counts up
// to now.
func (s *AnalyticsService) Month(ctx context.Context, userID uint, year int, month time.Month, now time.Time) (*MonthView, error) {
	first := calendar.NewDate(year, month, 1)
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	categories, err := s.categoryRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.recordRepo.ListBetween(ctx, userID, calendar.MonthWindowUTC(first.Year, first.Month), true)
	if err != nil {
		return nil, err
	}

	buckets := aggregate.GroupByDay(records, now)
	view := &MonthView{
		Year:       first.Year,
		Month:      first.Month,
		Label:      calendar.MonthLabel(first),
		Days:       make([]MonthDay, 0, len(buckets)),
		Grid:       aggregate.MonthGrid(first.Year, first.Month, buckets),
		Categories: categories,
		Window:     prefs.Window(),
	}
	for _, b := range buckets {
		view.Days = append(view.Days, MonthDay{
			Date:     b.Date,
			Label:    calendar.DayLabel(now, b.Date.Year, b.Date.Month, b.Date.Day),
			Total:    b.Total,
			Records:  b.Records,
			Segments: aggregate.TimelineSegments(b.Records, categories, b.Date, prefs.Window(), now, model.DefaultColor),
		})
		view.Total += b.Total
	}
	return view, nil
}
