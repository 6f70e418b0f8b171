package service

import (
	"context"
	"time"

	"time-tracker/internal/aggregate"
	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
	"time-tracker/internal/repository"
	"time-tracker/internal/timer"
)

// DayView is everything the tracker screen shows for one date.
type DayView struct {
	Date        calendar.Date
	Header      string
	Records     []model.Record // closed records started on Date, newest first
	Running     *model.Record  // the open record whatever date is viewed
	Active      *model.Record  // Running, but only when Date is today
	Total       time.Duration
	Segments    []aggregate.Segment
	Categories  []model.Category
	Options     []model.Category
	Preferences model.Preferences
}

// TrackerService assembles the day view.
type TrackerService struct {
	recordRepo   *repository.RecordRepository
	categoryRepo *repository.CategoryRepository
	prefs        *PreferencesService
}

func NewTrackerService(recordRepo *repository.RecordRepository, categoryRepo *repository.CategoryRepository, prefs *PreferencesService) *TrackerService {
	return &TrackerService{recordRepo: recordRepo, categoryRepo: categoryRepo, prefs: prefs}
}

func (s *TrackerService) Day(ctx context.Context, userID uint, d calendar.Date, now time.Time) (*DayView, error) {
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	categories, err := s.categoryRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	running, err := s.recordRepo.FindOpen(ctx, userID)
	if err != nil {
		return nil, err
	}
	window := calendar.DayWindowUTC(d)
	started, err := s.recordRepo.ListBetween(ctx, userID, window, false)
	if err != nil {
		return nil, err
	}
	overlapping, err := s.recordRepo.ListOverlapping(ctx, userID, window)
	if err != nil {
		return nil, err
	}

	closed := make([]model.Record, 0, len(started))
	for _, rec := range started {
		if !rec.IsOpen() {
			closed = append(closed, rec)
		}
	}
	aggregate.SortNewestFirst(closed)

	active := timer.Effective(running, d, now)
	return &DayView{
		Date:        d,
		Header:      calendar.HeaderLabel(now, d.Time()),
		Records:     closed,
		Running:     running,
		Active:      active,
		Total:       aggregate.TotalForPeriod(closed, active, d, now),
		Segments:    aggregate.TimelineSegments(overlapping, categories, d, prefs.Window(), now, model.DefaultColor),
		Categories:  categories,
		Options:     SelectableOf(categories),
		Preferences: *prefs,
	}, nil
}
