package util

import "time"

// DateOnly truncates t to its calendar day in UTC
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthRange returns the first and last day of the given month
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// EndOfPreviousMonth returns the last day of the month before now's month
func EndOfPreviousMonth(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m, 0, 0, 0, 0, 0, time.UTC)
}

// FirstOfNextMonth returns the first day of the month after now's month
func FirstOfNextMonth(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}

// MinDate returns the earlier of a and b
func MinDate(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
