package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, user_id, description, amount, date, category_id, is_recurring, recurrence_id, created_at, updated_at`

// TransactionRepository implements domain.TransactionRepository using PostgreSQL
type TransactionRepository struct {
	q querier
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{q: pool}
}

// Find returns the user's stored transactions matching the filter, oldest first
func (r *TransactionRepository) Find(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	conds := []string{"user_id = $1"}
	args := []any{uuidToPg(filter.UserID)}

	if filter.StartDate != nil {
		args = append(args, dateToPg(*filter.StartDate))
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, dateToPg(*filter.EndDate))
		conds = append(conds, fmt.Sprintf("date <= $%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, uuidToPg(*filter.CategoryID))
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}

	rows, err := r.q.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE `+strings.Join(conds, " AND ")+`
		 ORDER BY date, created_at`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// FindRecurringAnchors returns every recurring transaction of the user with its rule
func (r *TransactionRepository) FindRecurringAnchors(ctx context.Context, userID uuid.UUID) ([]*domain.RecurringAnchor, error) {
	rows, err := r.q.Query(ctx,
		`SELECT t.id, t.user_id, t.description, t.amount, t.date, t.category_id, t.is_recurring,
		        t.recurrence_id, t.created_at, t.updated_at,
		        r.id, r.frequency, r.interval, r.start_date, r.end_date, r.created_at, r.updated_at
		 FROM transactions t
		 JOIN recurrence_rules r ON r.id = t.recurrence_id
		 WHERE t.user_id = $1 AND t.is_recurring
		 ORDER BY t.date, t.created_at`,
		uuidToPg(userID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*domain.RecurringAnchor, 0)
	for rows.Next() {
		var (
			row                     transactionRow
			ruleID                  pgtype.UUID
			frequency               string
			interval                int32
			start, end              pgtype.Date
			ruleCreated, ruleUpdate pgtype.Timestamptz
		)
		err := rows.Scan(
			&row.id, &row.userID, &row.description, &row.amount, &row.date, &row.categoryID,
			&row.isRecurring, &row.recurrenceID, &row.createdAt, &row.updatedAt,
			&ruleID, &frequency, &interval, &start, &end, &ruleCreated, &ruleUpdate,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, &domain.RecurringAnchor{
			Transaction: row.toDomain(),
			Rule: &domain.RecurrenceRule{
				ID:        uuid.UUID(ruleID.Bytes),
				Frequency: domain.Frequency(frequency),
				Interval:  interval,
				StartDate: pgDateToTime(start),
				EndDate:   pgDateToTimePtr(end),
				CreatedAt: ruleCreated.Time,
				UpdatedAt: ruleUpdate.Time,
			},
		})
	}
	return result, rows.Err()
}

// GetByID retrieves a transaction owned by the user
func (r *TransactionRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Transaction, error) {
	return r.getOne(ctx, userID, id, "")
}

// GetByIDForUpdate retrieves a transaction and locks its row until the
// surrounding transaction ends
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, userID, id uuid.UUID) (*domain.Transaction, error) {
	return r.getOne(ctx, userID, id, " FOR UPDATE")
}

func (r *TransactionRepository) getOne(ctx context.Context, userID, id uuid.UUID, lock string) (*domain.Transaction, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2`+lock,
		uuidToPg(id), uuidToPg(userID),
	)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// Create creates a new transaction
func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	amount, err := decimalToPgNumeric(tx.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	row := r.q.QueryRow(ctx,
		`INSERT INTO transactions (user_id, description, amount, date, category_id, is_recurring, recurrence_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+transactionColumns,
		uuidToPg(tx.UserID), tx.Description, amount, dateToPg(tx.Date),
		uuidPtrToPg(tx.CategoryID), tx.IsRecurring, uuidPtrToPg(tx.RecurrenceID),
	)
	return scanTransaction(row)
}

// Update rewrites the mutable fields of a transaction
func (r *TransactionRepository) Update(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	amount, err := decimalToPgNumeric(tx.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	row := r.q.QueryRow(ctx,
		`UPDATE transactions
		 SET description = $3, amount = $4, date = $5, category_id = $6,
		     is_recurring = $7, recurrence_id = $8, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+transactionColumns,
		uuidToPg(tx.ID), uuidToPg(tx.UserID), tx.Description, amount, dateToPg(tx.Date),
		uuidPtrToPg(tx.CategoryID), tx.IsRecurring, uuidPtrToPg(tx.RecurrenceID),
	)
	updated, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return updated, nil
}

// Delete removes a transaction owned by the user
func (r *TransactionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM transactions WHERE id = $1 AND user_id = $2`,
		uuidToPg(id), uuidToPg(userID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

type transactionRow struct {
	id           pgtype.UUID
	userID       pgtype.UUID
	description  string
	amount       pgtype.Numeric
	date         pgtype.Date
	categoryID   pgtype.UUID
	isRecurring  bool
	recurrenceID pgtype.UUID
	createdAt    pgtype.Timestamptz
	updatedAt    pgtype.Timestamptz
}

func (row transactionRow) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.UUID(row.id.Bytes),
		UserID:       uuid.UUID(row.userID.Bytes),
		Description:  row.description,
		Amount:       pgNumericToDecimal(row.amount),
		Date:         pgDateToTime(row.date),
		CategoryID:   pgToUUIDPtr(row.categoryID),
		IsRecurring:  row.isRecurring,
		RecurrenceID: pgToUUIDPtr(row.recurrenceID),
		CreatedAt:    row.createdAt.Time,
		UpdatedAt:    row.updatedAt.Time,
	}
}

func scanTransaction(s pgx.Row) (*domain.Transaction, error) {
	var row transactionRow
	err := s.Scan(
		&row.id, &row.userID, &row.description, &row.amount, &row.date, &row.categoryID,
		&row.isRecurring, &row.recurrenceID, &row.createdAt, &row.updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}
