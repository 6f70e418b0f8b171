package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"time-tracker/internal/model"
)

// CategoryRepository manages record categories.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// ListByUser returns the system category first, then user categories by rank.
func (r *CategoryRepository) ListByUser(ctx context.Context, userID uint) ([]model.Category, error) {
	var categories []model.Category
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("CASE WHEN kind = 'system' THEN 0 ELSE 1 END, sort_order ASC, id ASC").
		Find(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, userID, id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) FindSystem(ctx context.Context, userID uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Where("user_id = ? AND kind = ?", userID, model.KindSystem).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) FindByTitle(ctx context.Context, userID uint, title string) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Where("user_id = ? AND title = ?", userID, title).
		Order("id ASC").First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// EnsureSystem returns the user's system category, creating it on first use.
// Concurrent callers end up with the same row.
func (r *CategoryRepository) EnsureSystem(ctx context.Context, userID uint) (*model.Category, error) {
	db := r.scoped(ctx, userID)
	category := model.Category{
		UserID:  userID,
		Title:   model.NoCategoryTitle,
		Color:   model.DefaultColor,
		Visible: true,
		Kind:    model.KindSystem,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&category).Error; err != nil {
		return nil, fmt.Errorf("create system category: %w", err)
	}
	system, err := r.FindSystem(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find system category: %w", err)
	}
	return system, nil
}

// MaxSortOrder is the highest rank among the user's own categories, 0 when none.
func (r *CategoryRepository) MaxSortOrder(ctx context.Context, userID uint) (int, error) {
	var maxOrder int
	err := r.db.WithContext(ctx).Model(&model.Category{}).
		Where("user_id = ? AND kind = ?", userID, model.KindUser).
		Select("COALESCE(MAX(sort_order), 0)").
		Scan(&maxOrder).Error
	if err != nil {
		return 0, fmt.Errorf("max sort order: %w", err)
	}
	return maxOrder, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category *model.Category) error {
	if category.Kind == "" {
		category.Kind = model.KindUser
	}
	if err := r.scoped(ctx, category.UserID).Create(category).Error; err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// Update patches a user category. The system category is never matched.
func (r *CategoryRepository) Update(ctx context.Context, userID, id uint, patch map[string]interface{}) error {
	res := r.scoped(ctx, userID).Model(&model.Category{}).
		Where("user_id = ? AND id = ? AND kind = ?", userID, id, model.KindUser).
		Updates(patch)
	if res.Error != nil {
		return fmt.Errorf("update category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a user category. Records that referenced it keep the
// dangling id.
func (r *CategoryRepository) Delete(ctx context.Context, userID, id uint) error {
	res := r.scoped(ctx, userID).
		Where("user_id = ? AND id = ? AND kind = ?", userID, id, model.KindUser).
		Delete(&model.Category{})
	if res.Error != nil {
		return fmt.Errorf("delete category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateSortOrders assigns ranks 1..n in the order of ids, all or nothing.
func (r *CategoryRepository) UpdateSortOrders(ctx context.Context, userID uint, ids []uint) error {
	return r.scoped(ctx, userID).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			res := tx.Model(&model.Category{}).
				Where("user_id = ? AND id = ? AND kind = ?", userID, id, model.KindUser).
				Update("sort_order", i+1)
			if res.Error != nil {
				return fmt.Errorf("update sort order: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("update sort order of %d: %w", id, gorm.ErrRecordNotFound)
			}
		}
		return nil
	})
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func (r *CategoryRepository) scoped(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(withUser(ctx, userID))
}
