package model

import "time"

// Record is one tracked interval. EndedAt is nil while the timer runs.
type Record struct {
	ID         uint      `gorm:"primaryKey"`
	UserID     uint      `gorm:"not null;index:idx_records_user_started,priority:1"`
	CategoryID *uint     `gorm:"index"`
	StartedAt  time.Time `gorm:"not null;index:idx_records_user_started,priority:2"`
	EndedAt    *time.Time
	Comment    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Record) TableName() string { return "records" }

func (r Record) IsOpen() bool {
	return r.EndedAt == nil
}

// End returns the end instant, or now for an open record.
func (r Record) End(now time.Time) time.Time {
	if r.EndedAt != nil {
		return *r.EndedAt
	}
	return now
}

// Duration measures the record up to now when it is still open.
func (r Record) Duration(now time.Time) time.Duration {
	d := r.End(now).Sub(r.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

func (r Record) CommentText() string {
	if r.Comment == nil {
		return ""
	}
	return *r.Comment
}
