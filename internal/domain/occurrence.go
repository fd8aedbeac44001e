package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxOccurrenceIterations bounds the advancement loop for a single anchor
const MaxOccurrenceIterations = 1000

// OccurrenceKey identifies "this series, on this calendar day".
// SeriesID is an anchor transaction ID or a recurrence rule ID.
type OccurrenceKey struct {
	SeriesID uuid.UUID
	Date     time.Time
}

// NewOccurrenceKey builds a key with the date reduced to its calendar day
func NewOccurrenceKey(seriesID uuid.UUID, date time.Time) OccurrenceKey {
	y, m, d := date.Date()
	return OccurrenceKey{SeriesID: seriesID, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// String formats the key as {seriesId}-{year}-{month}-{day}, month 1-based
func (k OccurrenceKey) String() string {
	y, m, d := k.Date.Date()
	return fmt.Sprintf("%s-%d-%d-%d", k.SeriesID, y, int(m), d)
}

// ParseOccurrenceKey parses the String form. Series IDs are UUIDs and may
// contain hyphens, so the date parts are taken from the right.
func ParseOccurrenceKey(s string) (OccurrenceKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) < 4 {
		return OccurrenceKey{}, NewFieldError("id", "not an occurrence identifier")
	}
	n := len(parts)
	seriesID, err := uuid.Parse(strings.Join(parts[:n-3], "-"))
	if err != nil {
		return OccurrenceKey{}, NewFieldError("id", "not an occurrence identifier")
	}

	var nums [3]int
	for i, p := range parts[n-3:] {
		v, err := strconv.Atoi(p)
		if err != nil {
			return OccurrenceKey{}, NewFieldError("id", "not an occurrence identifier")
		}
		nums[i] = v
	}

	date := time.Date(nums[0], time.Month(nums[1]), nums[2], 0, 0, 0, 0, time.UTC)
	if date.Year() != nums[0] || int(date.Month()) != nums[1] || date.Day() != nums[2] {
		return OccurrenceKey{}, NewFieldError("id", "invalid occurrence date")
	}
	return OccurrenceKey{SeriesID: seriesID, Date: date}, nil
}

// MarshalJSON encodes the key as its string form
func (k OccurrenceKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// VirtualOccurrence is a computed, non-persisted projection of a recurring
// anchor onto one calendar day
type VirtualOccurrence struct {
	Key          OccurrenceKey   `json:"id"`
	UserID       uuid.UUID       `json:"userId"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	CategoryID   *uuid.UUID      `json:"categoryId,omitempty"`
	RecurrenceID uuid.UUID       `json:"recurrenceId"`
	IsGenerated  bool            `json:"isGenerated"`
}

// OccurrenceBatch is the output of a generation run.
// Truncated is set when an anchor hit MaxOccurrenceIterations.
type OccurrenceBatch struct {
	Occurrences []VirtualOccurrence
	Truncated   bool
}

// OccurrenceWindow is the requested period plus the logical target month
type OccurrenceWindow struct {
	Start       time.Time
	End         time.Time
	TargetMonth time.Month
	TargetYear  int
}

// Contains reports whether date is inside [Start, End] and in the target month
func (w OccurrenceWindow) Contains(date time.Time) bool {
	if date.Before(w.Start) || date.After(w.End) {
		return false
	}
	return date.Year() == w.TargetYear && date.Month() == w.TargetMonth
}
