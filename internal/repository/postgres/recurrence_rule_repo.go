package postgres

import (
	"context"
	"errors"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ruleColumns = `id, frequency, interval, start_date, end_date, created_at, updated_at`

// RecurrenceRuleRepository implements domain.RecurrenceRuleRepository using PostgreSQL
type RecurrenceRuleRepository struct {
	q querier
}

// NewRecurrenceRuleRepository creates a new RecurrenceRuleRepository
func NewRecurrenceRuleRepository(pool *pgxpool.Pool) *RecurrenceRuleRepository {
	return &RecurrenceRuleRepository{q: pool}
}

// GetByID retrieves a rule by its ID
func (r *RecurrenceRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RecurrenceRule, error) {
	row := r.q.QueryRow(ctx, `SELECT `+ruleColumns+` FROM recurrence_rules WHERE id = $1`, uuidToPg(id))
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecurrenceRuleNotFound
		}
		return nil, err
	}
	return rule, nil
}

// Create creates a new rule
func (r *RecurrenceRuleRepository) Create(ctx context.Context, rule *domain.RecurrenceRule) (*domain.RecurrenceRule, error) {
	row := r.q.QueryRow(ctx,
		`INSERT INTO recurrence_rules (frequency, interval, start_date, end_date)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+ruleColumns,
		string(rule.Frequency), rule.Interval, dateToPg(rule.StartDate), datePtrToPg(rule.EndDate),
	)
	return scanRule(row)
}

// Update rewrites a rule's frequency, interval and dates
func (r *RecurrenceRuleRepository) Update(ctx context.Context, rule *domain.RecurrenceRule) (*domain.RecurrenceRule, error) {
	row := r.q.QueryRow(ctx,
		`UPDATE recurrence_rules
		 SET frequency = $2, interval = $3, start_date = $4, end_date = $5, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+ruleColumns,
		uuidToPg(rule.ID), string(rule.Frequency), rule.Interval,
		dateToPg(rule.StartDate), datePtrToPg(rule.EndDate),
	)
	updated, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecurrenceRuleNotFound
		}
		return nil, err
	}
	return updated, nil
}

func scanRule(row pgx.Row) (*domain.RecurrenceRule, error) {
	var (
		id                 pgtype.UUID
		frequency          string
		interval           int32
		start, end         pgtype.Date
		createdAt, updated pgtype.Timestamptz
	)
	if err := row.Scan(&id, &frequency, &interval, &start, &end, &createdAt, &updated); err != nil {
		return nil, err
	}
	return &domain.RecurrenceRule{
		ID:        uuid.UUID(id.Bytes),
		Frequency: domain.Frequency(frequency),
		Interval:  interval,
		StartDate: pgDateToTime(start),
		EndDate:   pgDateToTimePtr(end),
		CreatedAt: createdAt.Time,
		UpdatedAt: updated.Time,
	}, nil
}
