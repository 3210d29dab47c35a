package access

import "time"

// MonthStart returns the first instant of t's calendar month in UTC. Usage
// counts toward a window when created_at >= MonthStart.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextMonthStart returns the instant the current window resets.
func NextMonthStart(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0)
}
