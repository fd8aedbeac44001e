package service

import (
	"context"
	"strings"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/util"
	"github.com/dafibh/fortuna/budget-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RecurrenceInput makes a new transaction the anchor of a series
type RecurrenceInput struct {
	Frequency domain.Frequency
	Interval  int32
	EndDate   *time.Time
}

// TransactionInput holds the input for creating or updating a transaction.
// A nil or blank CategoryName leaves the transaction uncategorized.
type TransactionInput struct {
	Description  string
	Amount       decimal.Decimal
	Date         time.Time
	CategoryName *string
	Recurrence   *RecurrenceInput
}

// TransactionService handles transaction-related business logic
type TransactionService struct {
	store       domain.Store
	occurrences *OccurrenceService
	publisher   websocket.EventPublisher
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(store domain.Store, occurrences *OccurrenceService, publisher websocket.EventPublisher) *TransactionService {
	return &TransactionService{
		store:       store,
		occurrences: occurrences,
		publisher:   publisher,
	}
}

// Create stores a transaction. With a Recurrence the rule and its anchor are
// written in the same store transaction.
func (s *TransactionService) Create(ctx context.Context, userID uuid.UUID, input TransactionInput) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		UserID:      userID,
		Description: strings.TrimSpace(input.Description),
		Amount:      input.Amount,
		Date:        util.DateOnly(input.Date),
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	var rule *domain.RecurrenceRule
	if input.Recurrence != nil {
		rule = &domain.RecurrenceRule{
			Frequency: input.Recurrence.Frequency,
			Interval:  input.Recurrence.Interval,
			StartDate: tx.Date,
		}
		if rule.Interval == 0 {
			rule.Interval = 1
		}
		if input.Recurrence.EndDate != nil {
			end := util.DateOnly(*input.Recurrence.EndDate)
			rule.EndDate = &end
		}
		if err := rule.Validate(); err != nil {
			return nil, err
		}
	}

	var created *domain.Transaction
	err := s.store.WithinTx(ctx, func(store domain.Store) error {
		categoryID, err := optionalCategory(ctx, store, userID, input.CategoryName)
		if err != nil {
			return err
		}
		tx.CategoryID = categoryID

		if rule != nil {
			createdRule, err := store.RecurrenceRules().Create(ctx, rule)
			if err != nil {
				return err
			}
			tx.IsRecurring = true
			tx.RecurrenceID = &createdRule.ID
		}

		created, err = store.Transactions().Create(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("transaction_id", created.ID.String()).
		Bool("recurring", created.IsRecurring).
		Msg("Transaction created")

	s.publisher.Publish(userID, websocket.TransactionCreated(created))
	return created, nil
}

// GetByID retrieves a stored transaction
func (s *TransactionService) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Transaction, error) {
	return s.store.Transactions().GetByID(ctx, userID, id)
}

// Update rewrites a non-recurring transaction. Recurring anchors are edited
// through RecurrenceService.ModifySeries.
func (s *TransactionService) Update(ctx context.Context, userID, id uuid.UUID, input TransactionInput) (*domain.Transaction, error) {
	var updated *domain.Transaction
	err := s.store.WithinTx(ctx, func(store domain.Store) error {
		existing, err := store.Transactions().GetByIDForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		if existing.IsRecurring {
			return domain.ErrRecurringAnchor
		}

		existing.Description = strings.TrimSpace(input.Description)
		existing.Amount = input.Amount
		existing.Date = util.DateOnly(input.Date)
		if err := existing.Validate(); err != nil {
			return err
		}

		existing.CategoryID, err = optionalCategory(ctx, store, userID, input.CategoryName)
		if err != nil {
			return err
		}

		updated, err = store.Transactions().Update(ctx, existing)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(userID, websocket.TransactionUpdated(updated))
	return updated, nil
}

// Delete removes a stored transaction. A deleted anchor leaves its rule behind.
func (s *TransactionService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.Transactions().Delete(ctx, userID, id); err != nil {
		return err
	}

	s.publisher.Publish(userID, websocket.TransactionDeleted(map[string]interface{}{"id": id}))
	return nil
}

// ListForMonth merges the stored transactions of a month with the occurrences
// generated for it, newest first
func (s *TransactionService) ListForMonth(ctx context.Context, userID uuid.UUID, year int, month time.Month) (*domain.MonthLedger, error) {
	if month < time.January || month > time.December {
		return nil, domain.NewFieldError("month", "must be between 1 and 12")
	}
	first, last := util.MonthRange(year, month)

	stored, err := s.store.Transactions().Find(ctx, domain.TransactionFilter{
		UserID:    userID,
		StartDate: &first,
		EndDate:   &last,
	})
	if err != nil {
		return nil, err
	}

	batch, err := s.occurrences.GenerateForMonth(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LedgerEntry, 0, len(stored)+len(batch.Occurrences))
	for _, tx := range stored {
		entries = append(entries, domain.EntryFromTransaction(tx))
	}
	for _, occ := range batch.Occurrences {
		entries = append(entries, domain.EntryFromOccurrence(occ))
	}
	domain.SortLedger(entries)

	return &domain.MonthLedger{
		Year:      year,
		Month:     int(month),
		Entries:   entries,
		Truncated: batch.Truncated,
	}, nil
}

func optionalCategory(ctx context.Context, store domain.Store, userID uuid.UUID, name *string) (*uuid.UUID, error) {
	if name == nil || strings.TrimSpace(*name) == "" {
		return nil, nil
	}
	id, err := resolveCategory(ctx, store, userID, *name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
