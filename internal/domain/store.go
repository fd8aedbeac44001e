package domain

import "context"

// Store groups the repositories the recurrence core works against.
// WithinTx runs fn with a Store bound to one database transaction: every write
// made through it commits together when fn returns nil and is rolled back
// otherwise. Nested calls reuse the outer transaction.
type Store interface {
	Transactions() TransactionRepository
	RecurrenceRules() RecurrenceRuleRepository
	Categories() CategoryRepository
	WithinTx(ctx context.Context, fn func(store Store) error) error
}
