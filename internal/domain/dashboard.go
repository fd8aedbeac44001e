package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxTrendMonths is the maximum number of months a trend request may span
const MaxTrendMonths = 24

// CategoryAmount is the net amount booked to a category in a month.
// Transactions without a category are reported with a nil ID.
type CategoryAmount struct {
	ID     *uuid.UUID      `json:"id"`
	Name   string          `json:"name"`
	Color  *string         `json:"color,omitempty"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// MonthSummary aggregates real and generated transactions of one month
type MonthSummary struct {
	Year           int              `json:"year"`
	Month          int              `json:"month"`
	Income         decimal.Decimal  `json:"income"`
	Expenses       decimal.Decimal  `json:"expenses"`
	Net            decimal.Decimal  `json:"net"`
	StoredCount    int              `json:"storedCount"`
	GeneratedCount int              `json:"generatedCount"`
	ByCategory     []CategoryAmount `json:"byCategory"`
}
