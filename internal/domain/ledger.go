package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is one row of a month listing, either a stored transaction or
// a generated occurrence. Generated rows carry the occurrence key as ID.
type LedgerEntry struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	CategoryID   *uuid.UUID      `json:"categoryId,omitempty"`
	IsRecurring  bool            `json:"isRecurring"`
	RecurrenceID *uuid.UUID      `json:"recurrenceId,omitempty"`
	IsGenerated  bool            `json:"isGenerated"`
}

func EntryFromTransaction(tx *Transaction) LedgerEntry {
	return LedgerEntry{
		ID:           tx.ID.String(),
		Description:  tx.Description,
		Amount:       tx.Amount,
		Date:         tx.Date,
		CategoryID:   tx.CategoryID,
		IsRecurring:  tx.IsRecurring,
		RecurrenceID: tx.RecurrenceID,
	}
}

func EntryFromOccurrence(o VirtualOccurrence) LedgerEntry {
	ruleID := o.RecurrenceID
	return LedgerEntry{
		ID:           o.Key.String(),
		Description:  o.Description,
		Amount:       o.Amount,
		Date:         o.Date,
		CategoryID:   o.CategoryID,
		IsRecurring:  true,
		RecurrenceID: &ruleID,
		IsGenerated:  true,
	}
}

// SortLedger orders entries newest first, then by description
func SortLedger(entries []LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].Description < entries[j].Description
	})
}

// MonthLedger lists the stored and generated entries of one month
type MonthLedger struct {
	Year      int           `json:"year"`
	Month     int           `json:"month"`
	Entries   []LedgerEntry `json:"entries"`
	Truncated bool          `json:"truncated"`
}
