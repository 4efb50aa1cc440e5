package schedule

import (
	"time"

	"fieldline/internal/domain"
)

// Expansion bounds. A recurrence never yields more than MaxOccurrences
// instances, and no instance starts more than MaxMonths after the anchor.
const (
	MaxOccurrences = 50
	MaxMonths      = 12
)

// Spec is a recurrence pattern anchored at some initial range.
type Spec struct {
	Frequency  string
	Interval   int
	Count      *int
	Until      *time.Time
	DaysOfWeek []int
}

// Expand materializes the bounded set of occurrence ranges for a spec.
// The anchor's duration is computed once and held constant; the anchor's
// time of day is preserved across all instances. Expansion is deterministic
// for a given anchor and spec.
func Expand(anchor TimeRange, spec Spec) []TimeRange {
	maxCount := MaxOccurrences
	if spec.Count != nil && *spec.Count < maxCount {
		maxCount = *spec.Count
	}
	if maxCount <= 0 {
		return nil
	}
	maxDate := anchor.Start.AddDate(0, MaxMonths, 0)
	if spec.Until != nil && spec.Until.Before(maxDate) {
		maxDate = *spec.Until
	}
	interval := spec.Interval
	if interval < 1 {
		interval = 1
	}
	duration := anchor.Duration()

	if spec.Frequency == domain.FrequencyWeekly && len(spec.DaysOfWeek) > 0 {
		return expandWeekdays(anchor, spec.DaysOfWeek, duration, maxCount, maxDate)
	}

	out := make([]TimeRange, 0, maxCount)
	for i := 0; i < maxCount; i++ {
		start := advance(anchor.Start, spec.Frequency, interval, i)
		if start.After(maxDate) {
			break
		}
		out = append(out, TimeRange{Start: start, End: start.Add(duration)})
	}
	return out
}

// expandWeekdays walks day-by-day from the anchor's date and emits an
// instance at the anchor's time of day for every calendar day whose weekday
// is in the requested set (0=Sunday..6=Saturday).
func expandWeekdays(anchor TimeRange, daysOfWeek []int, duration time.Duration, maxCount int, maxDate time.Time) []TimeRange {
	wanted := make(map[time.Weekday]bool, len(daysOfWeek))
	for _, d := range daysOfWeek {
		if d >= 0 && d <= 6 {
			wanted[time.Weekday(d)] = true
		}
	}
	if len(wanted) == 0 {
		return nil
	}
	y, m, d := anchor.Start.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, anchor.Start.Location())
	tod := anchor.Start.Sub(day)

	var out []TimeRange
	for len(out) < maxCount && !day.After(maxDate) {
		if wanted[day.Weekday()] {
			start := day.Add(tod)
			if !start.After(maxDate) {
				out = append(out, TimeRange{Start: start, End: start.Add(duration)})
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// advance computes the i-th occurrence start from the anchor, so clamping
// and interval arithmetic never compound across instances. An unrecognized
// frequency falls back to daily advancement rather than producing nothing.
func advance(anchor time.Time, frequency string, interval, i int) time.Time {
	switch frequency {
	case domain.FrequencyWeekly:
		return anchor.AddDate(0, 0, i*interval*7)
	case domain.FrequencyMonthly:
		return addMonthsClamped(anchor, i*interval)
	default:
		return anchor.AddDate(0, 0, i*interval)
	}
}

// addMonthsClamped preserves the anchor's day of month, clamping to the last
// day of shorter months (Jan 31 + 1mo = Feb 28/29, + 2mo = Mar 31).
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, months, 0)
	if last := daysInMonth(firstOfTarget.Year(), firstOfTarget.Month()); d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
