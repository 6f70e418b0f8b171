package service

import (
	"context"

	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
	"time-tracker/internal/repository"
)

// PreferencesService reads and updates per-user display settings.
type PreferencesService struct {
	repo *repository.PreferencesRepository
}

func NewPreferencesService(repo *repository.PreferencesRepository) *PreferencesService {
	return &PreferencesService{repo: repo}
}

// Get returns the user's preferences, creating the default row on first use.
func (s *PreferencesService) Get(ctx context.Context, userID uint) (*model.Preferences, error) {
	prefs, err := s.repo.Find(ctx, userID)
	if err == nil {
		return prefs, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}
	if err := s.repo.CreateDefault(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.Find(ctx, userID)
}

// SetWindow changes the timeline hour window; start must be before end.
func (s *PreferencesService) SetWindow(ctx context.Context, userID uint, start, end int) (*model.Preferences, error) {
	w := calendar.HourWindow{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return s.modify(ctx, userID, func(p *model.Preferences) {
		p.TimelineStartHour = w.Start
		p.TimelineEndHour = w.End
	})
}

func (s *PreferencesService) SetTimelineVisible(ctx context.Context, userID uint, visible bool) (*model.Preferences, error) {
	return s.modify(ctx, userID, func(p *model.Preferences) { p.TimelineVisible = visible })
}

func (s *PreferencesService) SetCompletedVisible(ctx context.Context, userID uint, visible bool) (*model.Preferences, error) {
	return s.modify(ctx, userID, func(p *model.Preferences) { p.CompletedVisible = visible })
}

func (s *PreferencesService) modify(ctx context.Context, userID uint, apply func(*model.Preferences)) (*model.Preferences, error) {
	prefs, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	apply(prefs)
	if err := s.repo.Upsert(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}
