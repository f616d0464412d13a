// Package interval provides half-open time range arithmetic shared by the
// event validator, the conflict resolver, the release workflow and the agenda.
package interval

import (
	"fmt"
	"sort"
	"time"
)

// DayLayout is the format of calendar-day keys.
const DayLayout = "2006-01-02"

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// New builds an interval from its bounds.
func New(start, end time.Time) Interval {
	return Interval{Start: start, End: end}
}

// Overlaps returns true if a and b share at least one instant.
// Intervals that only touch (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Contains returns true if inner lies entirely within outer.
func Contains(outer, inner Interval) bool {
	return !inner.Start.Before(outer.Start) && !inner.End.After(outer.End)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// DurationHours returns the length of the interval in hours.
func DurationHours(i Interval) float64 {
	return i.Duration().Hours()
}

// Intersection returns the shared part of a and b. The result is only
// meaningful when Overlaps(a, b) is true.
func Intersection(a, b Interval) Interval {
	out := a
	if b.Start.After(out.Start) {
		out.Start = b.Start
	}
	if b.End.Before(out.End) {
		out.End = b.End
	}
	return out
}

// Less orders intervals by start, then by end.
func Less(a, b Interval) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	return a.End.Before(b.End)
}

// Sort orders a slice of intervals in place by start, then end.
func Sort(ivs []Interval) {
	sort.SliceStable(ivs, func(i, j int) bool { return Less(ivs[i], ivs[j]) })
}

// DayKey returns the calendar day of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}

// SpansDays returns the ordered day keys of every calendar day in loc that
// the interval touches. An interval ending exactly at midnight does not touch
// the following day. Degenerate intervals yield the day of Start.
func SpansDays(i Interval, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}

	day := StartOfDay(i.Start, loc)
	last := day
	if i.End.After(i.Start) {
		last = StartOfDay(i.End.Add(-time.Nanosecond), loc)
	}

	var keys []string
	for !day.After(last) {
		keys = append(keys, day.Format(DayLayout))
		day = day.AddDate(0, 0, 1)
	}
	return keys
}

// ParseDay parses a "2006-01-02" key as midnight in loc.
func ParseDay(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DayLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing day %q: %w", key, err)
	}
	return t, nil
}

// WholeDays returns [startKey 00:00, endKey+1 00:00) in loc, so that a range
// of calendar days can be compared with timed events using Overlaps.
func WholeDays(startKey, endKey string, loc *time.Location) (Interval, error) {
	start, err := ParseDay(startKey, loc)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseDay(endKey, loc)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: end.AddDate(0, 0, 1)}, nil
}
