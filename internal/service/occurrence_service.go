package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/util"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OccurrenceService projects recurring anchors onto a period.
// It only reads from the store and is safe for concurrent use.
type OccurrenceService struct {
	store domain.Store
}

// NewOccurrenceService creates a new OccurrenceService
func NewOccurrenceService(store domain.Store) *OccurrenceService {
	return &OccurrenceService{store: store}
}

// GenerateOccurrences returns the virtual occurrences of every recurring anchor
// of the user that fall in [periodStart, periodEnd] and in the target month,
// skipping days already stored as real transactions of the same series.
// The result is unsorted.
func (s *OccurrenceService) GenerateOccurrences(ctx context.Context, userID uuid.UUID, periodStart, periodEnd time.Time, targetMonth time.Month, targetYear int) (*domain.OccurrenceBatch, error) {
	window, err := newWindow(periodStart, periodEnd, targetMonth, targetYear)
	if err != nil {
		return nil, err
	}

	batch := &domain.OccurrenceBatch{Occurrences: make([]domain.VirtualOccurrence, 0)}

	anchors, err := s.store.Transactions().FindRecurringAnchors(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load recurring anchors: %w", err)
	}
	if len(anchors) == 0 {
		return batch, nil
	}

	stored, err := s.store.Transactions().Find(ctx, domain.TransactionFilter{
		UserID:    userID,
		StartDate: &window.Start,
		EndDate:   &window.End,
	})
	if err != nil {
		return nil, fmt.Errorf("load stored transactions: %w", err)
	}
	occupied := OccupiedKeys(stored)

	for _, a := range anchors {
		occurrences, err := ProjectAnchor(a.Transaction, a.Rule, window, occupied)
		switch {
		case errors.Is(err, domain.ErrUnknownFrequency):
			log.Warn().
				Str("user_id", userID.String()).
				Str("anchor_id", a.Transaction.ID.String()).
				Str("frequency", string(a.Rule.Frequency)).
				Msg("Skipping recurring anchor with unrecognized frequency")
			continue
		case errors.Is(err, domain.ErrIterationLimitExceeded):
			batch.Truncated = true
			log.Warn().
				Err(err).
				Str("user_id", userID.String()).
				Str("anchor_id", a.Transaction.ID.String()).
				Int("max_iterations", domain.MaxOccurrenceIterations).
				Msg("Occurrence generation capped")
		case err != nil:
			return nil, err
		}
		batch.Occurrences = append(batch.Occurrences, occurrences...)
	}

	return batch, nil
}

// GenerateForMonth generates the occurrences of a calendar month
func (s *OccurrenceService) GenerateForMonth(ctx context.Context, userID uuid.UUID, year int, month time.Month) (*domain.OccurrenceBatch, error) {
	first, last := util.MonthRange(year, month)
	return s.GenerateOccurrences(ctx, userID, first, last, month, year)
}

func newWindow(periodStart, periodEnd time.Time, targetMonth time.Month, targetYear int) (domain.OccurrenceWindow, error) {
	if periodStart.IsZero() || periodEnd.IsZero() {
		return domain.OccurrenceWindow{}, domain.NewFieldError("period", "start and end are required")
	}
	start, end := util.DateOnly(periodStart), util.DateOnly(periodEnd)
	if end.Before(start) {
		return domain.OccurrenceWindow{}, domain.NewFieldError("period", "end must not be before start")
	}
	if targetMonth < time.January || targetMonth > time.December {
		return domain.OccurrenceWindow{}, domain.NewFieldError("month", "must be between 1 and 12")
	}
	if targetYear < 1 {
		return domain.OccurrenceWindow{}, domain.NewFieldError("year", "must be positive")
	}
	return domain.OccurrenceWindow{Start: start, End: end, TargetMonth: targetMonth, TargetYear: targetYear}, nil
}

// OccupiedKeys builds the set of series days already materialized by stored
// transactions. A row occupies its day under its own ID and, when it belongs
// to a rule, under the rule ID.
func OccupiedKeys(stored []*domain.Transaction) map[domain.OccurrenceKey]struct{} {
	occupied := make(map[domain.OccurrenceKey]struct{}, len(stored)*2)
	for _, tx := range stored {
		occupied[domain.NewOccurrenceKey(tx.ID, tx.Date)] = struct{}{}
		if tx.RecurrenceID != nil {
			occupied[domain.NewOccurrenceKey(*tx.RecurrenceID, tx.Date)] = struct{}{}
		}
	}
	return occupied
}

// ProjectAnchor computes the occurrences of one anchor inside window.
// occupied is read and extended: the anchor's own day, the rule start and every
// emitted day are added so repeated calls never emit a day twice.
// It returns domain.ErrUnknownFrequency for rules it cannot advance, and the
// occurrences found so far with domain.ErrIterationLimitExceeded when the loop
// runs MaxOccurrenceIterations times without leaving the window.
func ProjectAnchor(anchor *domain.Transaction, rule *domain.RecurrenceRule, window domain.OccurrenceWindow, occupied map[domain.OccurrenceKey]struct{}) ([]domain.VirtualOccurrence, error) {
	if !rule.Frequency.Valid() {
		return nil, domain.ErrUnknownFrequency
	}

	start := util.DateOnly(rule.StartDate)
	occupy := func(date time.Time) {
		occupied[domain.NewOccurrenceKey(anchor.ID, date)] = struct{}{}
		occupied[domain.NewOccurrenceKey(rule.ID, date)] = struct{}{}
	}
	isOccupied := func(date time.Time) bool {
		if _, ok := occupied[domain.NewOccurrenceKey(anchor.ID, date)]; ok {
			return true
		}
		_, ok := occupied[domain.NewOccurrenceKey(rule.ID, date)]
		return ok
	}

	occupy(anchor.Date)
	occupy(start)

	var end *time.Time
	if rule.EndDate != nil {
		e := util.DateOnly(*rule.EndDate)
		end = &e
	}

	interval := rule.Step()
	steps := rule.Frequency.StepsBefore(start, window.Start, interval)

	var out []domain.VirtualOccurrence
	for i := 0; ; i++ {
		if i == domain.MaxOccurrenceIterations {
			return out, fmt.Errorf("anchor %s: %w", anchor.ID, domain.ErrIterationLimitExceeded)
		}

		date := rule.Frequency.Advance(start, steps*interval)
		steps++

		if date.After(window.End) || (end != nil && date.After(*end)) {
			break
		}
		if !window.Contains(date) || isOccupied(date) {
			continue
		}

		out = append(out, domain.VirtualOccurrence{
			Key:          domain.NewOccurrenceKey(anchor.ID, date),
			UserID:       anchor.UserID,
			Description:  anchor.Description,
			Amount:       anchor.Amount,
			Date:         date,
			CategoryID:   anchor.CategoryID,
			RecurrenceID: rule.ID,
			IsGenerated:  true,
		})
		occupy(date)
	}
	return out, nil
}
