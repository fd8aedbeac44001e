package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is a single financial movement. Negative amounts are expenses,
// positive amounts are income. A recurring transaction is the anchor of a
// recurrence rule and always carries its RecurrenceID.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"userId"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	CategoryID   *uuid.UUID      `json:"categoryId,omitempty"`
	IsRecurring  bool            `json:"isRecurring"`
	RecurrenceID *uuid.UUID      `json:"recurrenceId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Amounts are stored with two decimal places and at most twelve integer digits
const AmountScale = 2

var maxAmount = decimal.New(1, 12)

// ValidateAmount rejects amounts the ledger cannot store exactly
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return NewFieldError("amount", "must have at most 2 decimal places")
	}
	if amount.Abs().GreaterThanOrEqual(maxAmount) {
		return NewFieldError("amount", "must be less than 1000000000000 in magnitude")
	}
	return nil
}

// Validate checks the transaction fields and the recurring/rule invariant
func (t *Transaction) Validate() error {
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return NewFieldError("description", "is required")
	}
	if len(desc) > MaxDescriptionLength {
		return NewFieldError("description", "exceeds maximum length")
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return NewFieldError("date", "is required")
	}
	if t.IsRecurring != (t.RecurrenceID != nil) {
		return ErrInvalidState
	}
	return nil
}

// TransactionFilter narrows a transaction query. Dates are inclusive.
type TransactionFilter struct {
	UserID     uuid.UUID
	StartDate  *time.Time
	EndDate    *time.Time
	CategoryID *uuid.UUID
}

// RecurringAnchor pairs an anchor transaction with its rule
type RecurringAnchor struct {
	Transaction *Transaction
	Rule        *RecurrenceRule
}

// TransactionRepository persists transactions
type TransactionRepository interface {
	Find(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
	FindRecurringAnchors(ctx context.Context, userID uuid.UUID) ([]*RecurringAnchor, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*Transaction, error)
	// GetByIDForUpdate locks the row until the surrounding store transaction ends
	GetByIDForUpdate(ctx context.Context, userID, id uuid.UUID) (*Transaction, error)
	Create(ctx context.Context, tx *Transaction) (*Transaction, error)
	Update(ctx context.Context, tx *Transaction) (*Transaction, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}
