package schedule

import (
	"testing"
	"time"
)

func mustRange(t *testing.T, start, end string) TimeRange {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		t.Fatalf("parse end: %v", err)
	}
	r, err := NewTimeRange(s, e)
	if err != nil {
		t.Fatalf("new range: %v", err)
	}
	return r
}

func TestNewTimeRangeRejectsInverted(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	if _, err := NewTimeRange(at, at); err == nil {
		t.Fatalf("expected error for zero-length range")
	}
	if _, err := NewTimeRange(at, at.Add(-time.Hour)); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestOverlaps(t *testing.T) {
	base := mustRange(t, "2025-03-01T09:00:00Z", "2025-03-01T10:00:00Z")
	cases := []struct {
		name  string
		other TimeRange
		want  bool
	}{
		{"identical", mustRange(t, "2025-03-01T09:00:00Z", "2025-03-01T10:00:00Z"), true},
		{"contained", mustRange(t, "2025-03-01T09:15:00Z", "2025-03-01T09:45:00Z"), true},
		{"partial tail", mustRange(t, "2025-03-01T09:30:00Z", "2025-03-01T10:30:00Z"), true},
		{"partial head", mustRange(t, "2025-03-01T08:30:00Z", "2025-03-01T09:30:00Z"), true},
		{"touching end", mustRange(t, "2025-03-01T10:00:00Z", "2025-03-01T11:00:00Z"), false},
		{"touching start", mustRange(t, "2025-03-01T08:00:00Z", "2025-03-01T09:00:00Z"), false},
		{"disjoint", mustRange(t, "2025-03-02T09:00:00Z", "2025-03-02T10:00:00Z"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Overlaps(tc.other); got != tc.want {
				t.Fatalf("Overlaps(%s) = %v, want %v", tc.other, got, tc.want)
			}
			if got := tc.other.Overlaps(base); got != tc.want {
				t.Fatalf("symmetric Overlaps(%s) = %v, want %v", tc.other, got, tc.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	r := mustRange(t, "2025-03-01T09:00:00Z", "2025-03-01T10:30:00Z")
	if r.Duration() != 90*time.Minute {
		t.Fatalf("duration = %s, want 90m", r.Duration())
	}
}
