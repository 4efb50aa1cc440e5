package schedule

import (
	"testing"
	"time"

	"fieldline/internal/domain"
)

func anchorAt(t *testing.T, start string, d time.Duration) TimeRange {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		t.Fatalf("parse anchor: %v", err)
	}
	return TimeRange{Start: s, End: s.Add(d)}
}

func intPtr(v int) *int { return &v }

func TestExpandDaily(t *testing.T) {
	anchor := anchorAt(t, "2025-03-03T09:00:00Z", time.Hour)
	got := Expand(anchor, Spec{Frequency: domain.FrequencyDaily, Interval: 2, Count: intPtr(3)})
	if len(got) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(got))
	}
	wantStarts := []string{"2025-03-03T09:00:00Z", "2025-03-05T09:00:00Z", "2025-03-07T09:00:00Z"}
	for i, w := range wantStarts {
		if got[i].Start.Format(time.RFC3339) != w {
			t.Fatalf("instance %d starts %s, want %s", i, got[i].Start.Format(time.RFC3339), w)
		}
		if got[i].Duration() != time.Hour {
			t.Fatalf("instance %d duration %s, want 1h", i, got[i].Duration())
		}
	}
}

func TestExpandCapsAtMaxOccurrences(t *testing.T) {
	anchor := anchorAt(t, "2025-01-01T08:00:00Z", 30*time.Minute)
	got := Expand(anchor, Spec{Frequency: domain.FrequencyDaily, Interval: 1})
	if len(got) != MaxOccurrences {
		t.Fatalf("expected cap of %d, got %d", MaxOccurrences, len(got))
	}
	got = Expand(anchor, Spec{Frequency: domain.FrequencyDaily, Interval: 1, Count: intPtr(500)})
	if len(got) != MaxOccurrences {
		t.Fatalf("count above cap must still cap at %d, got %d", MaxOccurrences, len(got))
	}
}

func TestExpandNeverPassesTwelveMonths(t *testing.T) {
	anchor := anchorAt(t, "2025-01-15T10:00:00Z", time.Hour)
	limit := anchor.Start.AddDate(0, MaxMonths, 0)
	got := Expand(anchor, Spec{Frequency: domain.FrequencyMonthly, Interval: 1})
	if len(got) == 0 {
		t.Fatalf("expected instances")
	}
	for _, r := range got {
		if r.Start.After(limit) {
			t.Fatalf("instance %s past 12-month horizon %s", r.Start, limit)
		}
	}
}

func TestExpandHonorsUntilDate(t *testing.T) {
	anchor := anchorAt(t, "2025-03-03T09:00:00Z", time.Hour)
	until := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	got := Expand(anchor, Spec{Frequency: domain.FrequencyDaily, Interval: 3, Until: &until})
	// 3rd, 6th, 9th fit; 12th is past until.
	if len(got) != 3 {
		t.Fatalf("expected 3 instances before until, got %d", len(got))
	}
}

func TestExpandWeeklyCustomDays(t *testing.T) {
	// Anchor is Monday 2025-03-03; Tue/Thu requested, so Monday itself is
	// skipped and the first two instances land on the following Tue and Thu.
	anchor := anchorAt(t, "2025-03-03T14:00:00Z", time.Hour)
	got := Expand(anchor, Spec{
		Frequency:  domain.FrequencyWeekly,
		Interval:   1,
		Count:      intPtr(2),
		DaysOfWeek: []int{2, 4},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(got))
	}
	if got[0].Start.Format(time.RFC3339) != "2025-03-04T14:00:00Z" {
		t.Fatalf("first instance %s, want Tuesday 2025-03-04T14:00:00Z", got[0].Start.Format(time.RFC3339))
	}
	if got[1].Start.Format(time.RFC3339) != "2025-03-06T14:00:00Z" {
		t.Fatalf("second instance %s, want Thursday 2025-03-06T14:00:00Z", got[1].Start.Format(time.RFC3339))
	}
}

func TestExpandWeeklyCustomIncludesAnchorDay(t *testing.T) {
	// Wednesday anchor with Wednesday in the set keeps the anchor day.
	anchor := anchorAt(t, "2025-03-05T09:00:00Z", time.Hour)
	got := Expand(anchor, Spec{
		Frequency:  domain.FrequencyWeekly,
		Interval:   1,
		Count:      intPtr(1),
		DaysOfWeek: []int{3},
	})
	if len(got) != 1 || !got[0].Start.Equal(anchor.Start) {
		t.Fatalf("expected anchor day instance, got %v", got)
	}
}

func TestExpandWeeklyStandard(t *testing.T) {
	anchor := anchorAt(t, "2025-03-03T09:00:00Z", time.Hour)
	got := Expand(anchor, Spec{Frequency: domain.FrequencyWeekly, Interval: 2, Count: intPtr(3)})
	wantStarts := []string{"2025-03-03T09:00:00Z", "2025-03-17T09:00:00Z", "2025-03-31T09:00:00Z"}
	if len(got) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(got))
	}
	for i, w := range wantStarts {
		if got[i].Start.Format(time.RFC3339) != w {
			t.Fatalf("instance %d starts %s, want %s", i, got[i].Start.Format(time.RFC3339), w)
		}
	}
}

func TestExpandMonthlyClampsMonthEnd(t *testing.T) {
	// Policy: the anchor's day of month is preserved, clamped to the last
	// day of shorter months. Clamping never compounds because each instance
	// is computed from the anchor, not the previous instance.
	anchor := anchorAt(t, "2025-01-31T09:00:00Z", time.Hour)
	got := Expand(anchor, Spec{Frequency: domain.FrequencyMonthly, Interval: 1, Count: intPtr(4)})
	wantStarts := []string{
		"2025-01-31T09:00:00Z",
		"2025-02-28T09:00:00Z",
		"2025-03-31T09:00:00Z",
		"2025-04-30T09:00:00Z",
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 instances, got %d", len(got))
	}
	for i, w := range wantStarts {
		if got[i].Start.Format(time.RFC3339) != w {
			t.Fatalf("instance %d starts %s, want %s", i, got[i].Start.Format(time.RFC3339), w)
		}
	}
}

func TestExpandMonthlyLeapFebruary(t *testing.T) {
	anchor := anchorAt(t, "2024-01-31T09:00:00Z", time.Hour)
	got := Expand(anchor, Spec{Frequency: domain.FrequencyMonthly, Interval: 1, Count: intPtr(2)})
	if got[1].Start.Format(time.RFC3339) != "2024-02-29T09:00:00Z" {
		t.Fatalf("leap February instance %s, want 2024-02-29T09:00:00Z", got[1].Start.Format(time.RFC3339))
	}
}

func TestExpandUnknownFrequencyFallsBackToDaily(t *testing.T) {
	anchor := anchorAt(t, "2025-03-03T09:00:00Z", time.Hour)
	got := Expand(anchor, Spec{Frequency: "fortnightly", Interval: 1, Count: intPtr(2)})
	if len(got) != 2 {
		t.Fatalf("unknown frequency must still produce output, got %d", len(got))
	}
	if got[1].Start.Sub(got[0].Start) != 24*time.Hour {
		t.Fatalf("fallback advancement is daily, got step %s", got[1].Start.Sub(got[0].Start))
	}
}

func TestExpandZeroCount(t *testing.T) {
	anchor := anchorAt(t, "2025-03-03T09:00:00Z", time.Hour)
	if got := Expand(anchor, Spec{Frequency: domain.FrequencyDaily, Interval: 1, Count: intPtr(0)}); len(got) != 0 {
		t.Fatalf("count 0 expands to nothing, got %d", len(got))
	}
}
