package schedule

import "time"

// BreakPeriod is a blocked interval that recurrence instances may not cross.
type BreakPeriod struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason,omitempty"`
}

// FilterBreaks drops every instance that overlaps any break period. The
// overlap test is half-open, so an instance that only touches a break
// boundary survives. Order is preserved.
func FilterBreaks(instances []TimeRange, breaks []BreakPeriod) []TimeRange {
	if len(breaks) == 0 {
		return instances
	}
	out := make([]TimeRange, 0, len(instances))
	for _, inst := range instances {
		if !overlapsAnyBreak(inst, breaks) {
			out = append(out, inst)
		}
	}
	return out
}

func overlapsAnyBreak(r TimeRange, breaks []BreakPeriod) bool {
	for _, b := range breaks {
		if r.Start.Before(b.End) && r.End.After(b.Start) {
			return true
		}
	}
	return false
}
