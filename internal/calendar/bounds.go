package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidClock  = errors.New("invalid clock time")
	ErrInvalidWindow = errors.New("invalid hour window")
)

// Window is an inclusive UTC range used to filter store queries.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// DayWindowUTC returns 00:00:00.000 and 23:59:59.999 of d in Zone, as UTC.
func DayWindowUTC(d Date) Window {
	from := d.Time()
	to := d.AddDays(1).Time().Add(-time.Millisecond)
	return Window{From: from.UTC(), To: to.UTC()}
}

// MonthWindowUTC spans the first to the last calendar day of the month.
func MonthWindowUTC(year int, month time.Month) Window {
	first := NewDate(year, month, 1)
	last := Date{Year: first.Year, Month: first.Month, Day: DaysInMonth(first.Year, first.Month)}
	return Window{From: DayWindowUTC(first).From, To: DayWindowUTC(last).To}
}

// CombineDateAndClock builds a reporting-zone instant from a date and an
// "HH:MM" (or "HH:MM:SS") clock and returns it in UTC. "H:MM" is padded.
func CombineDateAndClock(d Date, clock string) (time.Time, error) {
	value := strings.TrimSpace(clock)
	if len(value) == 4 && value[1] == ':' {
		value = "0" + value
	}
	if len(value) == 5 {
		value += ":00"
	}
	t, err := time.ParseInLocation("15:04:05", value, Zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), t.Second(), 0, Zone).UTC(), nil
}

// HourWindow is the hour-of-day range a timeline is scaled to, [Start, End).
type HourWindow struct {
	Start int
	End   int
}

// FullDay is the default 0–24 window.
var FullDay = HourWindow{Start: 0, End: 24}

func (w HourWindow) Validate() error {
	if w.Start < 0 || w.End > 24 || w.Start >= w.End {
		return fmt.Errorf("%w: %d–%d", ErrInvalidWindow, w.Start, w.End)
	}
	return nil
}

func (w HourWindow) StartMinute() int { return w.Start * 60 }
func (w HourWindow) EndMinute() int   { return w.End * 60 }
func (w HourWindow) SpanMinutes() int { return (w.End - w.Start) * 60 }

// MinuteRange is a [Start, End) slice of a day in minutes since midnight.
type MinuteRange struct {
	Start int
	End   int
}

// BucketAndClip returns the part of [start, end) that falls on day, clipped
// to the hour window. An open record (end == nil) runs until now. A record
// that began on an earlier day starts at the window start; one that ends on
// a later day stops at the window end. ok is false when nothing is left.
func BucketAndClip(start time.Time, end *time.Time, now time.Time, d Date, w HourWindow) (MinuteRange, bool) {
	finish := now
	if end != nil {
		finish = *end
	}
	startZ := start.In(Zone)
	endZ := finish.In(Zone)
	startDay := DateOf(startZ)
	endDay := DateOf(endZ)
	if d.Before(startDay) || endDay.Before(d) {
		return MinuteRange{}, false
	}

	lo := w.StartMinute()
	if !startDay.Before(d) {
		lo = max(lo, minuteOfDay(startZ))
	}
	hi := w.EndMinute()
	if !d.Before(endDay) {
		hi = min(hi, minuteOfDay(endZ))
	}
	if hi <= lo {
		return MinuteRange{}, false
	}
	return MinuteRange{Start: lo, End: hi}, true
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
