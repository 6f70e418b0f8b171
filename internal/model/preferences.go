package model

import (
	"time"

	"time-tracker/internal/calendar"
)

// Preferences is the per-user display configuration, one row per user.
type Preferences struct {
	UserID            uint `gorm:"primaryKey;autoIncrement:false"`
	TimelineStartHour int  `gorm:"not null;default:0"`
	TimelineEndHour   int  `gorm:"not null;default:24"`
	TimelineVisible   bool `gorm:"not null"`
	CompletedVisible  bool `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Preferences) TableName() string { return "user_preferences" }

// DefaultPreferences is the row created on first use.
func DefaultPreferences(userID uint) Preferences {
	return Preferences{
		UserID:            userID,
		TimelineStartHour: calendar.FullDay.Start,
		TimelineEndHour:   calendar.FullDay.End,
		TimelineVisible:   true,
		CompletedVisible:  true,
	}
}

func (p Preferences) Window() calendar.HourWindow {
	return calendar.HourWindow{Start: p.TimelineStartHour, End: p.TimelineEndHour}
}
