package calendar

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// LessThanMinute is shown for any duration below one minute.
const LessThanMinute = "Менее минуты"

const (
	prefixToday     = "Сегодня, "
	prefixYesterday = "Вчера, "
	prefixTomorrow  = "Завтра, "
)

var weekdayShort = [...]string{"вс", "пн", "вт", "ср", "чт", "пт", "сб"}

var monthGenitive = [...]string{
	"", "января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

var monthNominative = [...]string{
	"", "январь", "февраль", "март", "апрель", "май", "июнь",
	"июль", "август", "сентябрь", "октябрь", "ноябрь", "декабрь",
}

// DayLabel renders "<day> <month>, <weekday>" and prefixes it with
// Сегодня/Вчера/Завтра when the date is within one day of now.
func DayLabel(now time.Time, year int, month time.Month, dayOfMonth int) string {
	return relativeLabel(DateOf(now), NewDate(year, month, dayOfMonth))
}

// HeaderLabel is DayLabel for an instant; both agree for the same calendar day.
func HeaderLabel(now, t time.Time) string {
	return relativeLabel(DateOf(now), DateOf(t))
}

// DateLabel is DayLabel for a Date.
func DateLabel(now time.Time, d Date) string {
	return relativeLabel(DateOf(now), d)
}

func relativeLabel(today, d Date) string {
	base := DateShort(d)
	switch DaysBetween(today, d) {
	case 0:
		return prefixToday + base
	case -1:
		return prefixYesterday + base
	case 1:
		return prefixTomorrow + base
	default:
		return base
	}
}

// DateShort renders "<day> <month>, <weekday>" without a relative prefix.
func DateShort(d Date) string {
	return fmt.Sprintf("%d %s, %s", d.Day, monthGenitive[d.Month], weekdayShort[d.Weekday()])
}

// MonthLabel renders "<Month> <Year>", capitalized.
func MonthLabel(d Date) string {
	return capitalize(monthNominative[d.Month]) + " " + fmt.Sprint(d.Year)
}

// FormatClock renders HH:MM in the reporting zone.
func FormatClock(t time.Time) string {
	return t.In(Zone).Format("15:04")
}

// FormatDurationLong renders hours and minutes, omitting zero components.
func FormatDurationLong(d time.Duration) string {
	if d < time.Minute {
		return LessThanMinute
	}
	h, m, _ := split(d)
	parts := make([]string, 0, 2)
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%d ч", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%d м", m))
	}
	if len(parts) == 0 {
		return LessThanMinute
	}
	return strings.Join(parts, " ")
}

// FormatDurationWithSeconds is the running timer display: seconds always,
// hours only when non-zero, minutes once at least a minute has passed.
func FormatDurationWithSeconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h, m, s := split(d)
	parts := make([]string, 0, 3)
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%d ч", h))
	}
	if h > 0 || m > 0 {
		parts = append(parts, fmt.Sprintf("%d м", m))
	}
	parts = append(parts, fmt.Sprintf("%d с", s))
	return strings.Join(parts, " ")
}

// FormatDurationStopped renders hours and minutes with a "0 м" fallback.
func FormatDurationStopped(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h, m, _ := split(d)
	parts := make([]string, 0, 2)
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%d ч", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%d м", m))
	}
	if len(parts) == 0 {
		return "0 м"
	}
	return strings.Join(parts, " ")
}

func split(d time.Duration) (hours, minutes, seconds int64) {
	total := int64(d / time.Second)
	mins := total / 60
	return mins / 60, mins % 60, total % 60
}

func capitalize(value string) string {
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
