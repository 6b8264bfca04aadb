package limits_test

import (
	"testing"
	"time"

	"github.com/allowly/allowly-api/internal/domain/limits"
)

func TestWindowForDaily(t *testing.T) {
	at := time.Date(2026, 3, 15, 13, 45, 12, 0, time.UTC)
	start, end := limits.WindowFor(limits.PeriodDaily, at)

	wantStart := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)

	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Fatalf("daily window = [%v, %v), want [%v, %v)", start, end, wantStart, wantEnd)
	}
}

func TestWindowForWeeklyMondayAligned(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"wednesday", time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC), time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)},
		{"monday midnight", time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)},
		{"sunday night", time.Date(2026, 3, 22, 23, 59, 59, 0, time.UTC), time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)},
		{"next monday", time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := limits.WindowFor(limits.PeriodWeekly, tc.at)
			if !start.Equal(tc.want) {
				t.Fatalf("weekly start = %v, want %v", start, tc.want)
			}
			if !end.Equal(tc.want.AddDate(0, 0, 7)) {
				t.Fatalf("weekly end = %v, want %v", end, tc.want.AddDate(0, 0, 7))
			}
		})
	}
}

func TestWindowForMonthly(t *testing.T) {
	at := time.Date(2026, 12, 31, 22, 0, 0, 0, time.UTC)
	start, end := limits.WindowFor(limits.PeriodMonthly, at)

	wantStart := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Fatalf("monthly window = [%v, %v), want [%v, %v)", start, end, wantStart, wantEnd)
	}
}

func TestWindowForNonUTCInput(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 01:30 on March 16 local time is still March 15 in UTC.
	at := time.Date(2026, 3, 16, 1, 30, 0, 0, loc)

	start, _ := limits.WindowFor(limits.PeriodDaily, at)
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Fatalf("daily start = %v, want %v", start, want)
	}
}

func TestTrackerContainsHalfOpen(t *testing.T) {
	start, end := limits.WindowFor(limits.PeriodDaily, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	tracker := limits.Tracker{WindowStart: start, WindowEnd: end}

	if !tracker.Contains(start) {
		t.Fatal("window start should be inside the window")
	}
	if tracker.Contains(end) {
		t.Fatal("window end should be outside the window")
	}
	if tracker.Contains(end.Add(-time.Second)) == false {
		t.Fatal("last second of the window should be inside")
	}
}

func TestTrackerRemainingFloorsAtZero(t *testing.T) {
	tracker := limits.Tracker{LimitAmount: 1000, SpentAmount: 800, PendingAmount: 400}
	if got := tracker.Remaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}

	tracker = limits.Tracker{LimitAmount: 1000, SpentAmount: 300, PendingAmount: 200}
	if got := tracker.Remaining(); got != 500 {
		t.Fatalf("remaining = %d, want 500", got)
	}
}

func TestTrackerPercentUsed(t *testing.T) {
	tracker := limits.Tracker{LimitAmount: 2000, SpentAmount: 1000, PendingAmount: 500}
	if got := tracker.PercentUsed(); got != 0.75 {
		t.Fatalf("percent used = %v, want 0.75", got)
	}

	tracker = limits.Tracker{LimitAmount: 0, SpentAmount: 100}
	if got := tracker.PercentUsed(); got != 0 {
		t.Fatalf("percent used with zero limit = %v, want 0", got)
	}
}
