package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

// Frequency is the repeat unit of a recurrence rule
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Valid reports whether f is a known frequency
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// Advance moves date forward by the given number of frequency units.
// Month-based frequencies keep the day of month of date and clamp it to the
// last day of shorter months, so stepping from Jan 31 yields Feb 28/29 and
// stepping from Feb 29 by one year yields Feb 28. Callers that need a series
// should always advance from the series start, not from a previous step.
func (f Frequency) Advance(date time.Time, units int) time.Time {
	switch f {
	case FrequencyDaily:
		return date.AddDate(0, 0, units)
	case FrequencyWeekly:
		return date.AddDate(0, 0, 7*units)
	case FrequencyMonthly:
		return addMonthsClamped(date, units)
	case FrequencyYearly:
		return addMonthsClamped(date, 12*units)
	}
	return date
}

// StepsBefore returns a number of interval steps n such that advancing start by
// n*interval units lands strictly before target. It is a lower bound used to
// skip the part of a series that lies before a requested period.
func (f Frequency) StepsBefore(start, target time.Time, interval int) int {
	if interval < 1 {
		interval = 1
	}
	if !target.After(start) {
		return 0
	}

	var units int
	switch f {
	case FrequencyDaily:
		units = int(target.Sub(start).Hours() / 24)
	case FrequencyWeekly:
		units = int(target.Sub(start).Hours()/24) / 7
	case FrequencyMonthly:
		units = monthsBetween(start, target)
	case FrequencyYearly:
		units = monthsBetween(start, target) / 12
	default:
		return 0
	}

	steps := units/interval - 1
	if steps < 0 {
		return 0
	}
	return steps
}

func addMonthsClamped(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, date.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// RecurrenceRule describes how an anchor transaction repeats.
// EndDate is inclusive: the rule may still generate an occurrence on it.
type RecurrenceRule struct {
	ID        uuid.UUID  `json:"id"`
	Frequency Frequency  `json:"frequency"`
	Interval  int32      `json:"interval"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Step returns the interval with the default of 1 applied
func (r *RecurrenceRule) Step() int {
	if r.Interval < 1 {
		return 1
	}
	return int(r.Interval)
}

// EndsBy reports whether the rule has an end date on or before date
func (r *RecurrenceRule) EndsBy(date time.Time) bool {
	return r.EndDate != nil && !r.EndDate.After(date)
}

// Validate checks the rule invariants before it is written
func (r *RecurrenceRule) Validate() error {
	if !r.Frequency.Valid() {
		return NewFieldError("frequency", "must be one of daily, weekly, monthly, yearly")
	}
	if r.Interval < 1 {
		return NewFieldError("interval", "must be at least 1")
	}
	if r.StartDate.IsZero() {
		return NewFieldError("startDate", "is required")
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return NewFieldError("endDate", "must not be before the start date")
	}
	return nil
}

// RRule renders the rule as an RFC 5545 RRULE string
func (r *RecurrenceRule) RRule() (string, error) {
	opt := rrule.ROption{
		Freq:     rruleFrequency(r.Frequency),
		Interval: r.Step(),
		Dtstart:  r.StartDate,
	}
	if r.EndDate != nil {
		opt.Until = *r.EndDate
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return "", err
	}
	return rule.OrigOptions.RRuleString(), nil
}

// ParseRRule converts an RRULE string into frequency, interval and end date.
// Only the FREQ, INTERVAL and UNTIL parts are honored.
func ParseRRule(s string) (Frequency, int32, *time.Time, error) {
	opt, err := rrule.StrToROption(strings.TrimPrefix(strings.TrimSpace(s), "RRULE:"))
	if err != nil {
		return "", 0, nil, NewFieldError("rrule", err.Error())
	}

	var freq Frequency
	switch opt.Freq {
	case rrule.DAILY:
		freq = FrequencyDaily
	case rrule.WEEKLY:
		freq = FrequencyWeekly
	case rrule.MONTHLY:
		freq = FrequencyMonthly
	case rrule.YEARLY:
		freq = FrequencyYearly
	default:
		return "", 0, nil, NewFieldError("rrule", "unsupported frequency")
	}

	interval := int32(opt.Interval)
	if interval < 1 {
		interval = 1
	}

	var until *time.Time
	if !opt.Until.IsZero() {
		u := time.Date(opt.Until.Year(), opt.Until.Month(), opt.Until.Day(), 0, 0, 0, 0, time.UTC)
		until = &u
	}
	return freq, interval, until, nil
}

func rruleFrequency(f Frequency) rrule.Frequency {
	switch f {
	case FrequencyDaily:
		return rrule.DAILY
	case FrequencyWeekly:
		return rrule.WEEKLY
	case FrequencyYearly:
		return rrule.YEARLY
	}
	return rrule.MONTHLY
}

// RecurrenceRuleRepository persists recurrence rules.
// Rules are never deleted; rules left without an anchor are tolerated.
type RecurrenceRuleRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*RecurrenceRule, error)
	Create(ctx context.Context, rule *RecurrenceRule) (*RecurrenceRule, error)
	Update(ctx context.Context, rule *RecurrenceRule) (*RecurrenceRule, error)
}

// ModificationMode selects how an edit applies to a recurring series
type ModificationMode string

const (
	ModeCurrent ModificationMode = "current"
	ModeFuture  ModificationMode = "future"
	ModeAll     ModificationMode = "all"
)

// Valid reports whether m is a known mode
func (m ModificationMode) Valid() bool {
	return m == ModeCurrent || m == ModeFuture || m == ModeAll
}

// ModificationResult lists what a series modification wrote
type ModificationResult struct {
	Mode ModificationMode `json:"mode"`
	// Rule is the pre-existing rule after the edit (truncated or rewritten)
	Rule *RecurrenceRule `json:"rule"`
	// Anchor is the pre-existing anchor, rewritten only in "all" mode
	Anchor *Transaction `json:"anchor"`
	// OneOff is the single edited occurrence created by "current" mode
	OneOff *Transaction `json:"oneOff,omitempty"`
	// NewRule and NewAnchor continue the series after a split
	NewRule   *RecurrenceRule `json:"newRule,omitempty"`
	NewAnchor *Transaction    `json:"newAnchor,omitempty"`
}
