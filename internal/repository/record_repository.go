package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
)

var (
	// ErrOpenRecordExists is returned when a second open record would be created.
	ErrOpenRecordExists = errors.New("open record already exists")
	// ErrInvalidRange is returned when an end is not strictly after its start.
	ErrInvalidRange = errors.New("end must be after start")
)

// RecordRepository handles CRUD for tracked records.
type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// ListBetween returns records whose start falls inside w.
func (r *RecordRepository) ListBetween(ctx context.Context, userID uint, w calendar.Window, ascending bool) ([]model.Record, error) {
	order := "started_at DESC, id DESC"
	if ascending {
		order = "started_at ASC, id ASC"
	}
	var records []model.Record
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND started_at >= ? AND started_at <= ?", userID, utc(w.From), utc(w.To)).
		Order(order).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// ListOverlapping returns records that intersect w, including open ones that
// started before it.
func (r *RecordRepository) ListOverlapping(ctx context.Context, userID uint, w calendar.Window) ([]model.Record, error) {
	var records []model.Record
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND started_at <= ? AND (ended_at IS NULL OR ended_at >= ?)", userID, utc(w.To), utc(w.From)).
		Order("started_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list overlapping records: %w", err)
	}
	return records, nil
}

// FindOpen returns the user's running record, or nil when the timer is stopped.
func (r *RecordRepository) FindOpen(ctx context.Context, userID uint) (*model.Record, error) {
	return findOpen(r.db.WithContext(ctx), userID)
}

func (r *RecordRepository) FindByID(ctx context.Context, userID, id uint) (*model.Record, error) {
	var record model.Record
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts a record. An open record is refused while another one is
// open for the same user.
func (r *RecordRepository) Create(ctx context.Context, record *model.Record) error {
	record.StartedAt = utc(record.StartedAt)
	record.EndedAt = utcPtr(record.EndedAt)
	if record.EndedAt != nil && !record.EndedAt.After(record.StartedAt) {
		return ErrInvalidRange
	}

	err := r.scoped(ctx, record.UserID).Transaction(func(tx *gorm.DB) error {
		if record.IsOpen() {
			open, err := findOpen(tx, record.UserID)
			if err != nil {
				return err
			}
			if open != nil {
				return ErrOpenRecordExists
			}
		}
		return tx.Create(record).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrOpenRecordExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrOpenRecordExists
	default:
		return fmt.Errorf("create record: %w", err)
	}
}

// Update patches a record owned by the user. Time values are stored in UTC.
func (r *RecordRepository) Update(ctx context.Context, userID, id uint, patch map[string]interface{}) error {
	for key, value := range patch {
		switch v := value.(type) {
		case time.Time:
			patch[key] = utc(v)
		case *time.Time:
			patch[key] = utcPtr(v)
		}
	}
	res := r.scoped(ctx, userID).Model(&model.Record{}).
		Where("user_id = ? AND id = ?", userID, id).
		Updates(patch)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrOpenRecordExists
		}
		return fmt.Errorf("update record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Close ends the user's open record at endedAt and returns it.
func (r *RecordRepository) Close(ctx context.Context, userID uint, endedAt time.Time) (*model.Record, error) {
	var closed *model.Record
	err := r.scoped(ctx, userID).Transaction(func(tx *gorm.DB) error {
		open, err := findOpen(tx, userID)
		if err != nil {
			return err
		}
		if open == nil {
			return gorm.ErrRecordNotFound
		}
		end := utc(endedAt)
		if !end.After(open.StartedAt) {
			return ErrInvalidRange
		}
		if err := tx.Model(open).Update("ended_at", end).Error; err != nil {
			return fmt.Errorf("close record: %w", err)
		}
		open.EndedAt = &end
		closed = open
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (r *RecordRepository) Delete(ctx context.Context, userID, id uint) error {
	res := r.scoped(ctx, userID).Where("user_id = ? AND id = ?", userID, id).Delete(&model.Record{})
	if res.Error != nil {
		return fmt.Errorf("delete record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func findOpen(db *gorm.DB, userID uint) (*model.Record, error) {
	var record model.Record
	err := db.Where("user_id = ? AND ended_at IS NULL", userID).Order("started_at DESC").First(&record).Error
	switch {
	case err == nil:
		return &record, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find open record: %w", err)
	}
}

func (r *RecordRepository) scoped(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(withUser(ctx, userID))
}
