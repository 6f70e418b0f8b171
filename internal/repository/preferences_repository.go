package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"time-tracker/internal/model"
)

// PreferencesRepository keeps one display preferences row per user.
type PreferencesRepository struct {
	db *gorm.DB
}

func NewPreferencesRepository(db *gorm.DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

func (r *PreferencesRepository) Find(ctx context.Context, userID uint) (*model.Preferences, error) {
	var prefs model.Preferences
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Upsert writes every field of prefs, inserting the row when missing.
func (r *PreferencesRepository) Upsert(ctx context.Context, prefs *model.Preferences) error {
	prefs.UpdatedAt = time.Time{}
	err := r.scoped(ctx, prefs.UserID).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"timeline_start_hour",
			"timeline_end_hour",
			"timeline_visible",
			"completed_visible",
			"updated_at",
		}),
	}).Create(prefs).Error
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// CreateDefault inserts the default row unless one exists.
func (r *PreferencesRepository) CreateDefault(ctx context.Context, userID uint) error {
	prefs := model.DefaultPreferences(userID)
	if err := r.scoped(ctx, userID).Clauses(clause.OnConflict{DoNothing: true}).Create(&prefs).Error; err != nil {
		return fmt.Errorf("create default preferences: %w", err)
	}
	return nil
}

func (r *PreferencesRepository) scoped(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(withUser(ctx, userID))
}
