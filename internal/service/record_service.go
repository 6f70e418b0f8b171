package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
	"time-tracker/internal/repository"
)

// RecordEdit replaces the bounds and category of a record. To may be empty
// for a running record, in which case only the start moves.
type RecordEdit struct {
	Date       calendar.Date
	From       string
	To         string
	CategoryID *uint
}

// RecordService wraps timer and record business logic.
type RecordService struct {
	recordRepo   *repository.RecordRepository
	categoryRepo *repository.CategoryRepository
	now          func() time.Time
}

func NewRecordService(recordRepo *repository.RecordRepository, categoryRepo *repository.CategoryRepository) *RecordService {
	return &RecordService{recordRepo: recordRepo, categoryRepo: categoryRepo, now: time.Now}
}

// ValidateRange rejects intervals whose end is not strictly after the start.
func ValidateRange(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidRange
	}
	return nil
}

// Start opens a record now. Choosing the system category
// stores no category at all.
func (s *RecordService) Start(ctx context.Context, userID uint, categoryID *uint) (*model.Record, error) {
	ref, err := s.categoryRef(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	record := model.Record{
		UserID:     userID,
		CategoryID: ref,
		StartedAt:  s.now(),
	}
	if err := s.recordRepo.Create(ctx, &record); err != nil {
		if errors.Is(err, repository.ErrOpenRecordExists) {
			return nil, ErrTimerRunning
		}
		return nil, err
	}
	return &record, nil
}

// Stop closes the running record now. A record cannot end at the instant it
// started.
func (s *RecordService) Stop(ctx context.Context, userID uint) (*model.Record, error) {
	record, err := s.recordRepo.Close(ctx, userID, s.now())
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNoActiveTimer
		}
		return nil, err
	}
	return record, nil
}

// Active returns the running record or nil.
func (s *RecordService) Active(ctx context.Context, userID uint) (*model.Record, error) {
	return s.recordRepo.FindOpen(ctx, userID)
}

func (s *RecordService) Get(ctx context.Context, userID, id uint) (*model.Record, error) {
	record, err := s.recordRepo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, wrapNotFound(err, "record")
	}
	return record, nil
}

// AddManual stores a closed interval on day between two clock times.
func (s *RecordService) AddManual(ctx context.Context, userID uint, day calendar.Date, from, to string, categoryID *uint) (*model.Record, error) {
	start, end, err := bounds(day, from, to)
	if err != nil {
		return nil, err
	}
	ref, err := s.categoryRef(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	record := model.Record{
		UserID:     userID,
		CategoryID: ref,
		StartedAt:  start,
		EndedAt:    &end,
	}
	if err := s.recordRepo.Create(ctx, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RecordService) Edit(ctx context.Context, userID, id uint, edit RecordEdit) error {
	record, err := s.recordRepo.FindByID(ctx, userID, id)
	if err != nil {
		return wrapNotFound(err, "record")
	}

	patch := map[string]interface{}{}
	if record.IsOpen() && strings.TrimSpace(edit.To) == "" {
		start, err := calendar.CombineDateAndClock(edit.Date, edit.From)
		if err != nil {
			return err
		}
		if err := ValidateRange(start, s.now()); err != nil {
			return err
		}
		patch["started_at"] = start
	} else {
		start, end, err := bounds(edit.Date, edit.From, edit.To)
		if err != nil {
			return err
		}
		patch["started_at"] = start
		patch["ended_at"] = end
	}

	ref, err := s.categoryRef(ctx, userID, edit.CategoryID)
	if err != nil {
		return err
	}
	patch["category_id"] = ref

	if err := s.recordRepo.Update(ctx, userID, id, patch); err != nil {
		return wrapNotFound(err, "record")
	}
	return nil
}

// SetComment stores the trimmed text; an empty text clears the comment.
func (s *RecordService) SetComment(ctx context.Context, userID, id uint, text string) error {
	var comment *string
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		comment = &trimmed
	}
	if err := s.recordRepo.Update(ctx, userID, id, map[string]interface{}{"comment": comment}); err != nil {
		return wrapNotFound(err, "record")
	}
	return nil
}

func (s *RecordService) Delete(ctx context.Context, userID, id uint) error {
	if err := s.recordRepo.Delete(ctx, userID, id); err != nil {
		return wrapNotFound(err, "record")
	}
	return nil
}

// ListDay returns the records that started on day, newest first.
func (s *RecordService) ListDay(ctx context.Context, userID uint, day calendar.Date) ([]model.Record, error) {
	return s.recordRepo.ListBetween(ctx, userID, calendar.DayWindowUTC(day), false)
}

// ListMonth returns the records that started in the month, oldest first.
func (s *RecordService) ListMonth(ctx context.Context, userID uint, year int, month time.Month) ([]model.Record, error) {
	return s.recordRepo.ListBetween(ctx, userID, calendar.MonthWindowUTC(year, month), true)
}

// categoryRef validates a category choice. Nil and the system category both
// mean uncategorized.
func (s *RecordService) categoryRef(ctx context.Context, userID uint, categoryID *uint) (*uint, error) {
	if categoryID == nil {
		return nil, nil
	}
	category, err := s.categoryRepo.GetByID(ctx, userID, *categoryID)
	if err != nil {
		return nil, wrapNotFound(err, "category")
	}
	if category.IsSystem() {
		return nil, nil
	}
	id := category.ID
	return &id, nil
}

func bounds(day calendar.Date, from, to string) (time.Time, time.Time, error) {
	start, err := calendar.CombineDateAndClock(day, from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := calendar.CombineDateAndClock(day, to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if err := ValidateRange(start, end); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%s-%s: %w", from, to, err)
	}
	return start, end, nil
}
