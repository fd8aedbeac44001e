package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/util"
	"github.com/dafibh/fortuna/budget-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SeriesChanges are the new values of a series edit.
// CategoryName nil keeps the anchor's category; an empty name clears it.
// Frequency and EndDate nil inherit the existing rule's values.
type SeriesChanges struct {
	Description  string
	Amount       decimal.Decimal
	Date         time.Time
	CategoryName *string
	Frequency    *domain.Frequency
	EndDate      *time.Time
}

func (c *SeriesChanges) normalize() error {
	c.Description = strings.TrimSpace(c.Description)
	if c.Description == "" {
		return domain.NewFieldError("description", "is required")
	}
	if len(c.Description) > domain.MaxDescriptionLength {
		return domain.NewFieldError("description", "exceeds maximum length")
	}
	if err := domain.ValidateAmount(c.Amount); err != nil {
		return err
	}
	if c.Date.IsZero() {
		return domain.NewFieldError("date", "is required")
	}
	c.Date = util.DateOnly(c.Date)
	if c.Frequency != nil && !c.Frequency.Valid() {
		return domain.NewFieldError("frequency", "must be one of daily, weekly, monthly, yearly")
	}
	if c.EndDate != nil {
		end := util.DateOnly(*c.EndDate)
		if end.Before(c.Date) {
			return domain.NewFieldError("endDate", "must not be before the date")
		}
		c.EndDate = &end
	}
	return nil
}

// RecurrenceService edits recurring series
type RecurrenceService struct {
	store     domain.Store
	publisher websocket.EventPublisher
}

// NewRecurrenceService creates a new RecurrenceService
func NewRecurrenceService(store domain.Store, publisher websocket.EventPublisher) *RecurrenceService {
	return &RecurrenceService{store: store, publisher: publisher}
}

// ModifySeries applies changes to the series anchored at anchorID.
//
//   - current: the old rule ends at the end of the month before now, the
//     edited occurrence becomes a one-off transaction and the original series
//     resumes on the first day of next month under a new rule and anchor.
//     A series starting this month or later turns its anchor into the one-off.
//   - future: the old rule ends at the same boundary, or the day before
//     changes.Date when that is earlier, and a new rule and anchor carrying the
//     changes start at changes.Date. When nothing of the old series lies before
//     that boundary the rule and anchor are rewritten in place.
//   - all: the rule and anchor are rewritten in place.
//
// Splitting a rule that already ends by the boundary fails with
// ErrSeriesEnded. Every mode runs in one store transaction with the anchor row
// locked, so a failure leaves the series untouched and a repeated split of the
// same series is rejected instead of forking it again.
func (s *RecurrenceService) ModifySeries(ctx context.Context, userID, anchorID uuid.UUID, mode domain.ModificationMode, changes SeriesChanges, now time.Time) (*domain.ModificationResult, error) {
	if !mode.Valid() {
		return nil, domain.ErrInvalidMode
	}
	if err := changes.normalize(); err != nil {
		return nil, err
	}

	var result *domain.ModificationResult
	err := s.store.WithinTx(ctx, func(store domain.Store) error {
		anchor, err := store.Transactions().GetByIDForUpdate(ctx, userID, anchorID)
		if err != nil {
			return err
		}
		if !anchor.IsRecurring || anchor.RecurrenceID == nil {
			return domain.ErrNotRecurring
		}

		rule, err := store.RecurrenceRules().GetByID(ctx, *anchor.RecurrenceID)
		if err != nil {
			return err
		}

		categoryID, err := seriesCategory(ctx, store, userID, anchor, changes.CategoryName)
		if err != nil {
			return err
		}

		e := seriesEdit{store: store, anchor: anchor, rule: rule, changes: changes, categoryID: categoryID, now: now}
		switch mode {
		case domain.ModeCurrent:
			result, err = e.current(ctx)
		case domain.ModeFuture:
			result, err = e.future(ctx)
		case domain.ModeAll:
			result, err = e.all(ctx)
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrValidation) && !errors.Is(err, domain.ErrInvalidState) {
			log.Error().
				Err(err).
				Str("user_id", userID.String()).
				Str("anchor_id", anchorID.String()).
				Str("mode", string(mode)).
				Msg("Failed to modify recurring series")
		}
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("anchor_id", anchorID.String()).
		Str("mode", string(mode)).
		Bool("split", result.NewRule != nil).
		Msg("Recurring series modified")

	s.publisher.Publish(userID, websocket.SeriesModified(result))
	return result, nil
}

func seriesCategory(ctx context.Context, store domain.Store, userID uuid.UUID, anchor *domain.Transaction, name *string) (*uuid.UUID, error) {
	if name == nil {
		return anchor.CategoryID, nil
	}
	if strings.TrimSpace(*name) == "" {
		return nil, nil
	}
	id, err := resolveCategory(ctx, store, userID, *name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// seriesEdit holds the state of one modification inside its transaction
type seriesEdit struct {
	store      domain.Store
	anchor     *domain.Transaction
	rule       *domain.RecurrenceRule
	changes    SeriesChanges
	categoryID *uuid.UUID
	now        time.Time
}

func (e *seriesEdit) current(ctx context.Context) (*domain.ModificationResult, error) {
	boundary := util.EndOfPreviousMonth(e.now)
	if e.rule.StartDate.After(boundary) {
		return e.currentAtStart(ctx)
	}
	if e.rule.EndsBy(boundary) {
		return nil, domain.ErrSeriesEnded
	}

	truncated, err := e.truncate(ctx, boundary)
	if err != nil {
		return nil, err
	}

	oneOff, err := e.store.Transactions().Create(ctx, &domain.Transaction{
		UserID:      e.anchor.UserID,
		Description: e.changes.Description,
		Amount:      e.changes.Amount,
		Date:        e.changes.Date,
		CategoryID:  e.categoryID,
	})
	if err != nil {
		return nil, err
	}

	result := &domain.ModificationResult{Mode: domain.ModeCurrent, Rule: truncated, Anchor: e.anchor, OneOff: oneOff}
	return e.resume(ctx, result, util.FirstOfNextMonth(e.now))
}

// currentAtStart handles a series that has no occurrence before this month.
// Its anchor is the occurrence being edited, so the anchor row itself becomes
// the one-off and the series resumes after it.
func (e *seriesEdit) currentAtStart(ctx context.Context) (*domain.ModificationResult, error) {
	start := util.DateOnly(e.rule.StartDate)

	oneOff := *e.anchor
	oneOff.Description = e.changes.Description
	oneOff.Amount = e.changes.Amount
	oneOff.Date = e.changes.Date
	oneOff.CategoryID = e.categoryID
	oneOff.IsRecurring = false
	oneOff.RecurrenceID = nil
	if err := oneOff.Validate(); err != nil {
		return nil, err
	}
	updated, err := e.store.Transactions().Update(ctx, &oneOff)
	if err != nil {
		return nil, err
	}

	truncated, err := e.truncate(ctx, start)
	if err != nil {
		return nil, err
	}

	next := util.FirstOfNextMonth(e.now)
	if !start.Before(next) {
		next = e.rule.Frequency.Advance(start, e.rule.Step())
	}

	result := &domain.ModificationResult{Mode: domain.ModeCurrent, Rule: truncated, Anchor: updated, OneOff: updated}
	return e.resume(ctx, result, next)
}

// resume continues the original series from start under a new rule and
// anchor carrying the original values. Nothing is created when the original
// rule ends before start.
func (e *seriesEdit) resume(ctx context.Context, result *domain.ModificationResult, start time.Time) (*domain.ModificationResult, error) {
	if e.rule.EndDate != nil && e.rule.EndDate.Before(start) {
		return result, nil
	}

	newRule, err := e.createRule(ctx, &domain.RecurrenceRule{
		Frequency: e.rule.Frequency,
		Interval:  int32(e.rule.Step()),
		StartDate: start,
		EndDate:   e.rule.EndDate,
	})
	if err != nil {
		return nil, err
	}

	newAnchor, err := e.createAnchor(ctx, &domain.Transaction{
		UserID:      e.anchor.UserID,
		Description: e.anchor.Description,
		Amount:      e.anchor.Amount,
		Date:        start,
		CategoryID:  e.anchor.CategoryID,
	}, newRule)
	if err != nil {
		return nil, err
	}

	result.NewRule = newRule
	result.NewAnchor = newAnchor
	return result, nil
}

func (e *seriesEdit) future(ctx context.Context) (*domain.ModificationResult, error) {
	// the old series keeps nothing on or after the new start
	boundary := util.MinDate(util.EndOfPreviousMonth(e.now), e.changes.Date.AddDate(0, 0, -1))
	if e.rule.StartDate.After(boundary) {
		return e.rewrite(ctx, domain.ModeFuture)
	}
	if e.rule.EndsBy(boundary) {
		return nil, domain.ErrSeriesEnded
	}

	frequency := e.rule.Frequency
	if e.changes.Frequency != nil {
		frequency = *e.changes.Frequency
	}
	end := e.rule.EndDate
	if e.changes.EndDate != nil {
		end = e.changes.EndDate
	}

	truncated, err := e.truncate(ctx, boundary)
	if err != nil {
		return nil, err
	}

	newRule, err := e.createRule(ctx, &domain.RecurrenceRule{
		Frequency: frequency,
		Interval:  int32(e.rule.Step()),
		StartDate: e.changes.Date,
		EndDate:   end,
	})
	if err != nil {
		return nil, err
	}

	newAnchor, err := e.createAnchor(ctx, &domain.Transaction{
		UserID:      e.anchor.UserID,
		Description: e.changes.Description,
		Amount:      e.changes.Amount,
		Date:        e.changes.Date,
		CategoryID:  e.categoryID,
	}, newRule)
	if err != nil {
		return nil, err
	}

	return &domain.ModificationResult{
		Mode:      domain.ModeFuture,
		Rule:      truncated,
		Anchor:    e.anchor,
		NewRule:   newRule,
		NewAnchor: newAnchor,
	}, nil
}

func (e *seriesEdit) all(ctx context.Context) (*domain.ModificationResult, error) {
	return e.rewrite(ctx, domain.ModeAll)
}

// rewrite updates the rule and anchor in place
func (e *seriesEdit) rewrite(ctx context.Context, mode domain.ModificationMode) (*domain.ModificationResult, error) {
	rule := *e.rule
	rule.StartDate = e.changes.Date
	if e.changes.Frequency != nil {
		rule.Frequency = *e.changes.Frequency
	}
	if e.changes.EndDate != nil {
		rule.EndDate = e.changes.EndDate
	}
	if rule.Interval < 1 {
		rule.Interval = 1
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	updatedRule, err := e.store.RecurrenceRules().Update(ctx, &rule)
	if err != nil {
		return nil, err
	}

	anchor := *e.anchor
	anchor.Description = e.changes.Description
	anchor.Amount = e.changes.Amount
	anchor.Date = e.changes.Date
	anchor.CategoryID = e.categoryID

	updatedAnchor, err := e.store.Transactions().Update(ctx, &anchor)
	if err != nil {
		return nil, err
	}

	return &domain.ModificationResult{Mode: mode, Rule: updatedRule, Anchor: updatedAnchor}, nil
}

// truncate ends the existing rule at boundary. Callers make sure the rule
// does not already end by then, so a rule is never extended.
func (e *seriesEdit) truncate(ctx context.Context, boundary time.Time) (*domain.RecurrenceRule, error) {
	rule := *e.rule
	rule.EndDate = &boundary
	return e.store.RecurrenceRules().Update(ctx, &rule)
}

func (e *seriesEdit) createRule(ctx context.Context, rule *domain.RecurrenceRule) (*domain.RecurrenceRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return e.store.RecurrenceRules().Create(ctx, rule)
}

func (e *seriesEdit) createAnchor(ctx context.Context, tx *domain.Transaction, rule *domain.RecurrenceRule) (*domain.Transaction, error) {
	tx.IsRecurring = true
	tx.RecurrenceID = &rule.ID
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return e.store.Transactions().Create(ctx, tx)
}
