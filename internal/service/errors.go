package service

import (
	"errors"
	"fmt"

	"time-tracker/internal/calendar"
	"time-tracker/internal/palette"
	"time-tracker/internal/repository"
)

// Validation errors abort the operation before anything is written.
var (
	ErrInvalidRange  = repository.ErrInvalidRange
	ErrInvalidClock  = calendar.ErrInvalidClock
	ErrInvalidWindow = calendar.ErrInvalidWindow
	ErrInvalidColor  = palette.ErrInvalidColor
	ErrEmptyTitle    = errors.New("title is required")
	ErrInvalidOrder  = errors.New("order must list every visible category once")
)

// State errors.
var (
	ErrTimerRunning   = errors.New("timer is already running")
	ErrNoActiveTimer  = errors.New("no active timer")
	ErrSystemCategory = errors.New("system category cannot be changed")
	ErrNotFound       = errors.New("not found")
)

// wrapNotFound turns a store miss into ErrNotFound and leaves other errors as they are.
func wrapNotFound(err error, what string) error {
	if repository.IsNotFound(err) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
