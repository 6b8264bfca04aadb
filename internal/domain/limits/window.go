package limits

import "time"

// WindowFor computes the canonical UTC window [start, end) for the
// period containing at. Daily windows are calendar days, weekly windows
// are Monday-aligned 7-day spans, monthly windows are calendar months.
func WindowFor(period Period, at time.Time) (time.Time, time.Time) {
	at = at.UTC()

	switch period {
	case PeriodDaily:
		start := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)

	case PeriodWeekly:
		// time.Weekday has Sunday == 0; shift so Monday starts the week.
		offset := (int(at.Weekday()) + 6) % 7
		start := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)

	case PeriodMonthly:
		start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}

	// Unknown periods are rejected upstream; fall back to a daily window.
	start := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Contains reports whether at falls inside the tracker's window.
func (t *Tracker) Contains(at time.Time) bool {
	at = at.UTC()
	return !at.Before(t.WindowStart) && at.Before(t.WindowEnd)
}
