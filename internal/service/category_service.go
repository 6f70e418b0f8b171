package service

import (
	"context"
	"fmt"
	"strings"

	"time-tracker/internal/model"
	"time-tracker/internal/palette"
	"time-tracker/internal/repository"
)

// CategoryService provides helpers around categories.
type CategoryService struct {
	repo *repository.CategoryRepository
}

func NewCategoryService(repo *repository.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

// List returns every category of the user, system first, then by rank.
func (s *CategoryService) List(ctx context.Context, userID uint) ([]model.Category, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Options are the categories offered when starting a timer.
func (s *CategoryService) Options(ctx context.Context, userID uint) ([]model.Category, error) {
	categories, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return SelectableOf(categories), nil
}

func SelectableOf(categories []model.Category) []model.Category {
	out := make([]model.Category, 0, len(categories))
	for _, c := range categories {
		if c.Selectable() {
			out = append(out, c)
		}
	}
	return out
}

// MatchTitle finds a selectable category by title, ignoring case and
// surrounding spaces.
func MatchTitle(categories []model.Category, title string) (model.Category, bool) {
	want := strings.TrimSpace(title)
	if want == "" {
		return model.Category{}, false
	}
	for _, c := range categories {
		if c.Selectable() && strings.EqualFold(strings.TrimSpace(c.Title), want) {
			return c, true
		}
	}
	return model.Category{}, false
}

func (s *CategoryService) Get(ctx context.Context, userID, id uint) (*model.Category, error) {
	category, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, wrapNotFound(err, "category")
	}
	return category, nil
}

// Create adds a visible user category ranked after the existing ones. An
// empty color picks the next default.
func (s *CategoryService) Create(ctx context.Context, userID uint, title, color string) (*model.Category, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	maxOrder, err := s.repo.MaxSortOrder(ctx, userID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(color) == "" {
		color = palette.Default(maxOrder)
	}
	normalized, err := palette.Normalize(color)
	if err != nil {
		return nil, err
	}

	category := model.Category{
		UserID:    userID,
		Title:     title,
		Color:     normalized,
		Visible:   true,
		SortOrder: maxOrder + 1,
		Kind:      model.KindUser,
	}
	if err := s.repo.Create(ctx, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CategoryService) Rename(ctx context.Context, userID, id uint, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	return s.update(ctx, userID, id, map[string]interface{}{"title": title})
}

func (s *CategoryService) Recolor(ctx context.Context, userID, id uint, color string) error {
	normalized, err := palette.Normalize(color)
	if err != nil {
		return err
	}
	return s.update(ctx, userID, id, map[string]interface{}{"color": normalized})
}

func (s *CategoryService) SetVisible(ctx context.Context, userID, id uint, visible bool) error {
	return s.update(ctx, userID, id, map[string]interface{}{"visible": visible})
}

// Delete removes a user category. Records keep pointing at it and render
// with the unknown placeholder.
func (s *CategoryService) Delete(ctx context.Context, userID, id uint) error {
	if err := s.guard(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return wrapNotFound(err, "category")
	}
	return nil
}

// Reorder ranks the visible user categories in the given order; hidden ones
// follow in their current order. visibleIDs must be a permutation of the
// visible user categories.
func (s *CategoryService) Reorder(ctx context.Context, userID uint, visibleIDs []uint) error {
	categories, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	visible := make(map[uint]bool)
	var hidden []uint
	for _, c := range categories {
		switch {
		case c.IsSystem():
		case c.Visible:
			visible[c.ID] = true
		default:
			hidden = append(hidden, c.ID)
		}
	}

	if len(visibleIDs) != len(visible) {
		return ErrInvalidOrder
	}
	seen := make(map[uint]bool, len(visibleIDs))
	for _, id := range visibleIDs {
		if !visible[id] || seen[id] {
			return ErrInvalidOrder
		}
		seen[id] = true
	}

	ordered := make([]uint, 0, len(visibleIDs)+len(hidden))
	ordered = append(ordered, visibleIDs...)
	ordered = append(ordered, hidden...)
	if err := s.repo.UpdateSortOrders(ctx, userID, ordered); err != nil {
		return wrapNotFound(err, "reorder categories")
	}
	return nil
}

func (s *CategoryService) update(ctx context.Context, userID, id uint, patch map[string]interface{}) error {
	if err := s.guard(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, userID, id, patch); err != nil {
		return wrapNotFound(err, "category")
	}
	return nil
}

func (s *CategoryService) guard(ctx context.Context, userID, id uint) error {
	category, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return wrapNotFound(err, "category")
	}
	if category.IsSystem() {
		return fmt.Errorf("category %d: %w", id, ErrSystemCategory)
	}
	return nil
}
