package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFrequencyConstants(t *testing.T) {
	tests := []struct {
		name      string
		frequency Frequency
		expected  string
	}{
		{"daily frequency", FrequencyDaily, "daily"},
		{"weekly frequency", FrequencyWeekly, "weekly"},
		{"monthly frequency", FrequencyMonthly, "monthly"},
		{"yearly frequency", FrequencyYearly, "yearly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.frequency) != tt.expected {
				t.Errorf("Frequency constant %s = %s, want %s", tt.name, tt.frequency, tt.expected)
			}
			if !tt.frequency.Valid() {
				t.Errorf("Expected %s to be valid", tt.frequency)
			}
		})
	}

	if Frequency("hourly").Valid() {
		t.Error("Expected hourly to be invalid")
	}
}

func TestFrequencyAdvance(t *testing.T) {
	tests := []struct {
		name      string
		frequency Frequency
		from      time.Time
		units     int
		expected  time.Time
	}{
		{"daily one", FrequencyDaily, date(2024, 1, 31), 1, date(2024, 2, 1)},
		{"weekly two", FrequencyWeekly, date(2024, 1, 1), 2, date(2024, 1, 15)},
		{"monthly simple", FrequencyMonthly, date(2024, 1, 15), 5, date(2024, 6, 15)},
		{"monthly clamps to february", FrequencyMonthly, date(2024, 1, 31), 1, date(2024, 2, 29)},
		{"monthly clamps non leap", FrequencyMonthly, date(2023, 1, 31), 1, date(2023, 2, 28)},
		{"monthly from start keeps day", FrequencyMonthly, date(2024, 1, 31), 2, date(2024, 3, 31)},
		{"monthly across year", FrequencyMonthly, date(2024, 11, 30), 3, date(2025, 2, 28)},
		{"yearly", FrequencyYearly, date(2024, 3, 15), 2, date(2026, 3, 15)},
		{"yearly leap day", FrequencyYearly, date(2024, 2, 29), 1, date(2025, 2, 28)},
		{"zero units", FrequencyMonthly, date(2024, 5, 5), 0, date(2024, 5, 5)},
		{"unknown frequency", Frequency("hourly"), date(2024, 5, 5), 3, date(2024, 5, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.frequency.Advance(tt.from, tt.units)
			if !got.Equal(tt.expected) {
				t.Errorf("Advance(%s, %d) = %s, want %s", tt.from.Format("2006-01-02"), tt.units, got.Format("2006-01-02"), tt.expected.Format("2006-01-02"))
			}
		})
	}
}

func TestFrequencyStepsBefore_StaysBeforeTarget(t *testing.T) {
	target := date(2024, 6, 1)
	tests := []struct {
		frequency Frequency
		start     time.Time
		interval  int
	}{
		{FrequencyDaily, date(2014, 6, 1), 1},
		{FrequencyDaily, date(2024, 5, 30), 1},
		{FrequencyWeekly, date(2020, 1, 3), 2},
		{FrequencyMonthly, date(2020, 1, 31), 1},
		{FrequencyMonthly, date(2023, 7, 1), 3},
		{FrequencyYearly, date(2000, 6, 1), 1},
		{FrequencyYearly, date(2000, 12, 31), 4},
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			steps := tt.frequency.StepsBefore(tt.start, target, tt.interval)
			assert.GreaterOrEqual(t, steps, 0)
			got := tt.frequency.Advance(tt.start, steps*tt.interval)
			assert.True(t, got.Before(target), "step %d lands on %s", steps, got)
		})
	}
}

func TestFrequencyStepsBefore_TargetNotAfterStart(t *testing.T) {
	assert.Equal(t, 0, FrequencyDaily.StepsBefore(date(2024, 6, 1), date(2024, 5, 1), 1))
	assert.Equal(t, 0, FrequencyDaily.StepsBefore(date(2024, 6, 1), date(2024, 6, 1), 1))
}

func TestRecurrenceRuleValidate(t *testing.T) {
	end := date(2024, 1, 1)
	tests := []struct {
		name    string
		rule    RecurrenceRule
		wantErr bool
	}{
		{"valid", RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1, StartDate: date(2024, 1, 1)}, false},
		{"end equals start", RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1, StartDate: date(2024, 1, 1), EndDate: &end}, false},
		{"bad frequency", RecurrenceRule{Frequency: "hourly", Interval: 1, StartDate: date(2024, 1, 1)}, true},
		{"zero interval", RecurrenceRule{Frequency: FrequencyDaily, Interval: 0, StartDate: date(2024, 1, 1)}, true},
		{"missing start", RecurrenceRule{Frequency: FrequencyDaily, Interval: 1}, true},
		{"end before start", RecurrenceRule{Frequency: FrequencyDaily, Interval: 1, StartDate: date(2024, 2, 1), EndDate: &end}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecurrenceRuleStep(t *testing.T) {
	assert.Equal(t, 1, (&RecurrenceRule{Interval: 0}).Step())
	assert.Equal(t, 3, (&RecurrenceRule{Interval: 3}).Step())
}

func TestRRuleRoundTrip(t *testing.T) {
	end := date(2025, 12, 31)
	rule := RecurrenceRule{
		ID:        uuid.New(),
		Frequency: FrequencyWeekly,
		Interval:  2,
		StartDate: date(2024, 1, 1),
		EndDate:   &end,
	}

	s, err := rule.RRule()
	require.NoError(t, err)
	assert.Contains(t, s, "FREQ=WEEKLY")
	assert.Contains(t, s, "INTERVAL=2")

	freq, interval, until, err := ParseRRule(s)
	require.NoError(t, err)
	assert.Equal(t, FrequencyWeekly, freq)
	assert.Equal(t, int32(2), interval)
	require.NotNil(t, until)
	assert.True(t, until.Equal(end))
}

func TestParseRRule_PrefixAndDefaults(t *testing.T) {
	freq, interval, until, err := ParseRRule("RRULE:FREQ=YEARLY")
	require.NoError(t, err)
	assert.Equal(t, FrequencyYearly, freq)
	assert.Equal(t, int32(1), interval)
	assert.Nil(t, until)
}

func TestParseRRule_Invalid(t *testing.T) {
	_, _, _, err := ParseRRule("FREQ=SOMETIMES")
	assert.ErrorIs(t, err, ErrValidation)

	_, _, _, err = ParseRRule("FREQ=HOURLY")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestModificationModeValid(t *testing.T) {
	assert.True(t, ModeCurrent.Valid())
	assert.True(t, ModeFuture.Valid())
	assert.True(t, ModeAll.Valid())
	assert.False(t, ModificationMode("past").Valid())
}
