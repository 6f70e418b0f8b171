package aggregate

import (
	"time"

	"time-tracker/internal/calendar"
)

// CalendarCell is one cell of the monthly heat-map. Day is zero for the
// padding cells before the first of the month.
type CalendarCell struct {
	Day   int
	Date  calendar.Date
	Total time.Duration
}

// MonthGrid lays the month out Monday-first with leading padding cells and
// attaches the bucket totals.
func MonthGrid(year int, month time.Month, buckets []DayBucket) []CalendarCell {
	first := calendar.NewDate(year, month, 1)
	padding := (int(first.Weekday()) + 6) % 7
	days := calendar.DaysInMonth(first.Year, first.Month)

	totals := make(map[calendar.Date]time.Duration, len(buckets))
	for _, b := range buckets {
		totals[b.Date] += b.Total
	}

	cells := make([]CalendarCell, 0, padding+days)
	for i := 0; i < padding; i++ {
		cells = append(cells, CalendarCell{})
	}
	for dd := 1; dd <= days; dd++ {
		d := calendar.Date{Year: first.Year, Month: first.Month, Day: dd}
		cells = append(cells, CalendarCell{Day: dd, Date: d, Total: totals[d]})
	}
	return cells
}

// HeatLevel buckets a day total into 0 (nothing) .. 4 (six hours or more).
func HeatLevel(total time.Duration) int {
	switch {
	case total <= 0:
		return 0
	case total < time.Hour:
		return 1
	case total < 3*time.Hour:
		return 2
	case total < 6*time.Hour:
		return 3
	default:
		return 4
	}
}
