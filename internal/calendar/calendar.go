// Package calendar maps instants to reporting-day dates and renders dates and
// durations the way the tracker shows them.
//
// Every calendar computation happens in Zone, a fixed UTC+3 offset without
// daylight-saving transitions, whatever the host timezone is.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Zone is the single reporting timezone.
var Zone = time.FixedZone("MSK", 3*60*60)

const day = 24 * time.Hour

// Now returns the current instant expressed in Zone.
func Now() time.Time {
	return time.Now().In(Zone)
}

// Date is a calendar day in the reporting timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the reporting-zone calendar day containing t.
func DateOf(t time.Time) Date {
	y, m, d := t.In(Zone).Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate builds a Date, normalizing out-of-range months and days the way
// time.Date does (e.g. month 13 is January of the next year).
func NewDate(year int, month time.Month, dayOfMonth int) Date {
	return DateOf(time.Date(year, month, dayOfMonth, 12, 0, 0, 0, Zone))
}

// Time returns 00:00 of the day in Zone.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, Zone)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Key is the stable YYYY-MM-DD form used for map keys and callbacks.
func (d Date) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) String() string {
	return d.Key()
}

// ParseDate accepts 2006-01-02, 02.01.2006 and 02.01 (year taken from today).
func ParseDate(raw string, today Date) (Date, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", "02.01.2006", "2.1.2006"} {
		if t, err := time.ParseInLocation(layout, value, Zone); err == nil {
			return DateOf(t), nil
		}
	}
	parts := strings.Split(value, ".")
	if len(parts) == 2 {
		dd, errD := strconv.Atoi(parts[0])
		mm, errM := strconv.Atoi(parts[1])
		if errD == nil && errM == nil && mm >= 1 && mm <= 12 && dd >= 1 && dd <= DaysInMonth(today.Year, time.Month(mm)) {
			return Date{Year: today.Year, Month: time.Month(mm), Day: dd}, nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q", raw)
}

// DaysInMonth handles variable month lengths, leap years included.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsToday reports whether d is the reporting-zone date of now.
func IsToday(now time.Time, d Date) bool {
	return DateOf(now) == d
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b Date) int {
	return int(b.Time().Sub(a.Time()) / day)
}
