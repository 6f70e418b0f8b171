// Package aggregate groups fetched records by reporting day, measures them and
// lays them out on timelines.
package aggregate

import (
	"sort"
	"time"

	"time-tracker/internal/calendar"
	"time-tracker/internal/model"
)

// ResolveDisplayCategory never fails: a nil reference resolves to the user's
// system category (or NoCategory before it exists), a dangling one to
// UnknownCategory.
func ResolveDisplayCategory(rec model.Record, categories []model.Category) model.Category {
	if rec.CategoryID == nil {
		for _, c := range categories {
			if c.IsSystem() {
				return c
			}
		}
		return model.NoCategory
	}
	for _, c := range categories {
		if c.ID == *rec.CategoryID && c.Persisted() {
			return c
		}
	}
	return model.UnknownCategory
}

// DayBucket holds the records that started on one reporting day.
type DayBucket struct {
	Date    calendar.Date
	Records []model.Record
	Total   time.Duration
}

// GroupByDay buckets records by the reporting day of their start instant.
// A record spanning several days counts only towards its start day. Open
// records are measured up to now. Buckets come back in ascending date order
// and records inside a bucket in ascending start order, whatever the input
// order was.
func GroupByDay(records []model.Record, now time.Time) []DayBucket {
	byDay := make(map[calendar.Date]*DayBucket)
	for _, rec := range records {
		d := calendar.DateOf(rec.StartedAt)
		bucket, ok := byDay[d]
		if !ok {
			bucket = &DayBucket{Date: d}
			byDay[d] = bucket
		}
		bucket.Records = append(bucket.Records, rec)
		bucket.Total += rec.Duration(now)
	}

	out := make([]DayBucket, 0, len(byDay))
	for _, bucket := range byDay {
		sortByStart(bucket.Records)
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// StartedOn keeps the records whose start instant falls on d.
func StartedOn(records []model.Record, d calendar.Date) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if calendar.DateOf(rec.StartedAt) == d {
			out = append(out, rec)
		}
	}
	return out
}

// Segment is one record drawn on a timeline, in percent of the hour window.
type Segment struct {
	RecordID uint
	Left     float64
	Width    float64
	Color    string
	Open     bool
}

// TimelineSegments lays every record that overlaps day out on the window.
// Overlapping records produce overlapping segments.
func TimelineSegments(records []model.Record, categories []model.Category, d calendar.Date, w calendar.HourWindow, now time.Time, fallbackColor string) []Segment {
	span := float64(w.SpanMinutes())
	if span <= 0 {
		return nil
	}
	segments := make([]Segment, 0, len(records))
	for _, rec := range records {
		rng, ok := calendar.BucketAndClip(rec.StartedAt, rec.EndedAt, now, d, w)
		if !ok {
			continue
		}
		color := fallbackColor
		if cat := ResolveDisplayCategory(rec, categories); cat.Persisted() {
			color = cat.Color
		}
		segments = append(segments, Segment{
			RecordID: rec.ID,
			Left:     float64(rng.Start-w.StartMinute()) / span * 100,
			Width:    float64(rng.End-rng.Start) / span * 100,
			Color:    color,
			Open:     rec.IsOpen(),
		})
	}
	return segments
}

// TotalForPeriod sums closed records. The running record is added only when
// it is supplied and the viewed date is today.
func TotalForPeriod(records []model.Record, active *model.Record, viewed calendar.Date, now time.Time) time.Duration {
	var total time.Duration
	for _, rec := range records {
		if rec.EndedAt != nil {
			total += rec.EndedAt.Sub(rec.StartedAt)
		}
	}
	if active != nil && calendar.IsToday(now, viewed) {
		if elapsed := now.Sub(active.StartedAt); elapsed > 0 {
			total += elapsed
		}
	}
	return total
}

// SortNewestFirst orders records by descending start, ties by descending id.
func SortNewestFirst(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].StartedAt.After(records[j].StartedAt)
		}
		return records[i].ID > records[j].ID
	})
}

func sortByStart(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].StartedAt.Before(records[j].StartedAt)
		}
		return records[i].ID < records[j].ID
	})
}
