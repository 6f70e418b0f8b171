package service

import (
	"context"
	"fmt"

	"time-tracker/internal/model"
	"time-tracker/internal/repository"
)

// SetupService provisions what every user needs before the first view.
type SetupService struct {
	categoryRepo *repository.CategoryRepository
	prefsRepo    *repository.PreferencesRepository
}

func NewSetupService(categoryRepo *repository.CategoryRepository, prefsRepo *repository.PreferencesRepository) *SetupService {
	return &SetupService{categoryRepo: categoryRepo, prefsRepo: prefsRepo}
}

// Ensure creates the system category and default preferences when missing.
// It is safe to call on every sign-in.
func (s *SetupService) Ensure(ctx context.Context, userID uint) (*model.Category, error) {
	system, err := s.categoryRepo.EnsureSystem(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ensure setup: %w", err)
	}
	if err := s.prefsRepo.CreateDefault(ctx, userID); err != nil {
		return nil, fmt.Errorf("ensure setup: %w", err)
	}
	return system, nil
}
