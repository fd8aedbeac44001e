package postgres

import (
	"context"
	"fmt"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Store on a pgx pool.
// A Store returned inside WithinTx routes every query through the open transaction.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// NewStore creates a Store backed by pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Transactions() domain.TransactionRepository {
	return &TransactionRepository{q: s.q}
}

func (s *Store) RecurrenceRules() domain.RecurrenceRuleRepository {
	return &RecurrenceRuleRepository{q: s.q}
}

func (s *Store) Categories() domain.CategoryRepository {
	return &CategoryRepository{q: s.q}
}

// WithinTx runs fn inside a database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(store domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{pool: s.pool, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
