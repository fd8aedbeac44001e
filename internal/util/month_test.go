package util

import (
	"testing"
	"time"
)

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	in := time.Date(2026, 3, 15, 23, 45, 10, 99, loc)
	got := DateOnly(in)
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOnly = %v, want %v", got, want)
	}
}

func TestMonthRange(t *testing.T) {
	tests := []struct {
		year      int
		month     time.Month
		wantFirst string
		wantLast  string
	}{
		{2024, time.February, "2024-02-01", "2024-02-29"},
		{2023, time.February, "2023-02-01", "2023-02-28"},
		{2024, time.December, "2024-12-01", "2024-12-31"},
		{2024, time.April, "2024-04-01", "2024-04-30"},
	}

	for _, tt := range tests {
		first, last := MonthRange(tt.year, tt.month)
		if first.Format("2006-01-02") != tt.wantFirst || last.Format("2006-01-02") != tt.wantLast {
			t.Errorf("MonthRange(%d, %d) = (%s, %s), want (%s, %s)", tt.year, tt.month,
				first.Format("2006-01-02"), last.Format("2006-01-02"), tt.wantFirst, tt.wantLast)
		}
	}
}

func TestEndOfPreviousMonth(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), "2026-02-28"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-02-29"},
		{time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), "2025-12-31"},
	}

	for _, tt := range tests {
		got := EndOfPreviousMonth(tt.now).Format("2006-01-02")
		if got != tt.want {
			t.Errorf("EndOfPreviousMonth(%v) = %s, want %s", tt.now, got, tt.want)
		}
	}
}

func TestFirstOfNextMonth(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), "2026-04-01"},
		{time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC), "2027-01-01"},
	}

	for _, tt := range tests {
		got := FirstOfNextMonth(tt.now).Format("2006-01-02")
		if got != tt.want {
			t.Errorf("FirstOfNextMonth(%v) = %s, want %s", tt.now, got, tt.want)
		}
	}
}

func TestMinDate(t *testing.T) {
	a := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if !MinDate(a, b).Equal(a) || !MinDate(b, a).Equal(a) {
		t.Error("MinDate should return the earlier date")
	}
}
