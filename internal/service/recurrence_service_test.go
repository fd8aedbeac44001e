package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// now used by every edit: mid June 2024
var editNow = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

type recurrenceFixture struct {
	store     *testutil.MockStore
	publisher *testutil.RecordingPublisher
	svc       *RecurrenceService
	userID    uuid.UUID
	anchor    *domain.Transaction
	rule      *domain.RecurrenceRule
	category  *domain.Category
}

// newRecurrenceFixture seeds a monthly "Rent" series that started two months before editNow
func newRecurrenceFixture(t *testing.T) *recurrenceFixture {
	t.Helper()
	store := testutil.NewMockStore()
	publisher := &testutil.RecordingPublisher{}
	userID := uuid.New()

	category := store.AddCategory(&domain.Category{UserID: userID, Name: "Housing"})
	anchor, rule := store.AddRecurring(
		&domain.Transaction{
			UserID:      userID,
			Description: "Rent",
			Amount:      decimal.NewFromInt(-800),
			Date:        day(2024, 4, 1),
			CategoryID:  &category.ID,
		},
		&domain.RecurrenceRule{Frequency: domain.FrequencyMonthly, Interval: 1, StartDate: day(2024, 4, 1)},
	)

	return &recurrenceFixture{
		store:     store,
		publisher: publisher,
		svc:       NewRecurrenceService(store, publisher),
		userID:    userID,
		anchor:    anchor,
		rule:      rule,
		category:  category,
	}
}

func rentIncrease() SeriesChanges {
	return SeriesChanges{
		Description: "Rent (new lease)",
		Amount:      decimal.NewFromInt(-900),
		Date:        day(2024, 6, 1),
	}
}

func TestModifySeries_Current(t *testing.T) {
	f := newRecurrenceFixture(t)

	result, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, domain.ModeCurrent, rentIncrease(), editNow)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeCurrent, result.Mode)

	// (a) old rule ends on the last day of the previous month
	oldRule := f.store.Rule(f.rule.ID)
	require.NotNil(t, oldRule.EndDate)
	assert.True(t, oldRule.EndDate.Equal(day(2024, 5, 31)))

	// (b) exactly one new non-recurring transaction with the new values
	require.NotNil(t, result.OneOff)
	oneOff := f.store.Transaction(result.OneOff.ID)
	require.NotNil(t, oneOff)
	assert.False(t, oneOff.IsRecurring)
	assert.Nil(t, oneOff.RecurrenceID)
	assert.True(t, oneOff.Date.Equal(day(2024, 6, 1)))
	assert.Equal(t, "Rent (new lease)", oneOff.Description)
	assert.True(t, oneOff.Amount.Equal(decimal.NewFromInt(-900)))
	assert.Equal(t, &f.category.ID, oneOff.CategoryID)

	// (c) exactly one new anchor resuming the original series next month
	require.NotNil(t, result.NewRule)
	require.NotNil(t, result.NewAnchor)
	newRule := f.store.Rule(result.NewRule.ID)
	assert.True(t, newRule.StartDate.Equal(day(2024, 7, 1)))
	assert.Equal(t, f.rule.Frequency, newRule.Frequency)
	assert.Equal(t, f.rule.EndDate, newRule.EndDate)
	assert.Equal(t, int32(1), newRule.Interval)

	newAnchor := f.store.Transaction(result.NewAnchor.ID)
	assert.True(t, newAnchor.IsRecurring)
	assert.Equal(t, result.NewRule.ID, *newAnchor.RecurrenceID)
	assert.Equal(t, "Rent", newAnchor.Description)
	assert.True(t, newAnchor.Amount.Equal(decimal.NewFromInt(-800)))
	assert.True(t, newAnchor.Date.Equal(day(2024, 7, 1)))

	assert.Equal(t, 3, f.store.CountTransactions())
	assert.Equal(t, 2, f.store.CountRules())

	// the original anchor is history and stays as it was
	original := f.store.Transaction(f.anchor.ID)
	assert.Equal(t, "Rent", original.Description)
	assert.True(t, original.Date.Equal(day(2024, 4, 1)))

	assert.Equal(t, []string{"series.modified"}, f.publisher.Types())
}

func TestModifySeries_CurrentThenGenerate(t *testing.T) {
	f := newRecurrenceFixture(t)
	_, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, domain.ModeCurrent, rentIncrease(), editNow)
	require.NoError(t, err)

	gen := NewOccurrenceService(f.store)
	months := []struct {
		month time.Month
		want  int
	}{
		{time.May, 1},    // old series, before the boundary
		{time.June, 0},   // covered by the one-off row
		{time.July, 0},   // covered by the new anchor row
		{time.August, 1}, // continuation
	}
	for _, m := range months {
		batch, err := gen.GenerateForMonth(context.Background(), f.userID, 2024, m.month)
		require.NoError(t, err)
		assert.Len(t, batch.Occurrences, m.want, "month %s", m.month)
	}
}

func TestModifySeries_Future(t *testing.T) {
	f := newRecurrenceFixture(t)
	weekly := domain.FrequencyWeekly
	end := day(2025, 6, 1)
	changes := rentIncrease()
	changes.Frequency = &weekly
	changes.EndDate = &end

	result, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, domain.ModeFuture, changes, editNow)
	require.NoError(t, err)

	original := f.store.Transaction(f.anchor.ID)
	assert.Equal(t, f.anchor.Description, original.Description)
	assert.True(t, original.Amount.Equal(f.anchor.Amount))
	assert.True(t, original.Date.Equal(f.anchor.Date))
	assert.Equal(t, f.anchor.RecurrenceID, original.RecurrenceID)

	oldRule := f.store.Rule(f.rule.ID)
	assert.True(t, oldRule.EndDate.Equal(day(2024, 5, 31)))
	assert.Equal(t, domain.FrequencyMonthly, oldRule.Frequency)

	require.NotNil(t, result.NewRule)
	newRule := f.store.Rule(result.NewRule.ID)
	assert.True(t, newRule.StartDate.Equal(day(2024, 6, 1)))
	assert.Equal(t, domain.FrequencyWeekly, newRule.Frequency)
	assert.True(t, newRule.EndDate.Equal(end))

	newAnchor := f.store.Transaction(result.NewAnchor.ID)
	assert.Equal(t, "Rent (new lease)", newAnchor.Description)
	assert.True(t, newAnchor.Date.Equal(day(2024, 6, 1)))
	assert.Equal(t, result.NewRule.ID, *newAnchor.RecurrenceID)
	assert.Nil(t, result.OneOff)

	assert.Equal(t, 2, f.store.CountTransactions())
	assert.Equal(t, 2, f.store.CountRules())
}

func TestModifySeries_FutureInheritsRule(t *testing.T) {
	f := newRecurrenceFixture(t)

	result, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, domain.ModeFuture, rentIncrease(), editNow)
	require.NoError(t, err)

	assert.Equal(t, domain.FrequencyMonthly, result.NewRule.Frequency)
	assert.Nil(t, result.NewRule.EndDate)
	assert.Equal(t, &f.category.ID, result.NewAnchor.CategoryID, "category inherited when none given")
}

func TestModifySeries_All(t *testing.T) {
	f := newRecurrenceFixture(t)
	yearly := domain.FrequencyYearly
	end := day(2030, 3, 1)
	changes := SeriesChanges{
		Description:  "Mortgage",
		Amount:       decimal.NewFromInt(-1200),
		Date:         day(2024, 3, 1),
		CategoryName: strPtr("Home"),
		Frequency:    &yearly,
		EndDate:      &end,
	}

	result, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, domain.ModeAll, changes, editNow)
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.CountTransactions())
	assert.Equal(t, 1, f.store.CountRules())
	assert.Nil(t, result.NewRule)
	assert.Nil(t, result.NewAnchor)
	assert.Nil(t, result.OneOff)

	anchor := f.store.Transaction(f.anchor.ID)
	assert.Equal(t, "Mortgage", anchor.Description)
	assert.True(t, anchor.Amount.Equal(decimal.NewFromInt(-1200)))
	assert.True(t, anchor.Date.Equal(day(2024, 3, 1)))
	require.NotNil(t, anchor.CategoryID)
	assert.NotEqual(t, f.category.ID, *anchor.CategoryID)

	rule := f.store.Rule(f.rule.ID)
	assert.Equal(t, domain.FrequencyYearly, rule.Frequency)
	assert.True(t, rule.StartDate.Equal(day(2024, 3, 1)))
	assert.True(t, rule.EndDate.Equal(end))
}

func TestModifySeries_AllFallsBackToExistingRule(t *testing.T) {
	f := newRecurrenceFixture(t)
	end := day(2026, 1, 1)
	rule := f.store.Rule(f.rule.ID)
	rule.EndDate = &end
	f.store.AddRule(rule)

	_, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, domain.ModeAll, rentIncrease(), editNow)
	require.NoError(t, err)

	updated := f.store.Rule(f.rule.ID)
	assert.Equal(t, domain.FrequencyMonthly, updated.Frequency)
	require.NotNil(t, updated.EndDate)
	assert.True(t, updated.EndDate.Equal(end), "end date is not truncated in all mode")
	assert.True(t, updated.StartDate.Equal(day(2024, 6, 1)))
}

func TestModifySeries_CategoryReuse(t *testing.T) {
	f := newRecurrenceFixture(t)
	changes := rentIncrease()
	changes.CategoryName = strPtr("Housing")

	result, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, domain.ModeFuture, changes, editNow)
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.CountCategories())
	require.NotNil(t, result.NewAnchor.CategoryID)
	assert.Equal(t, f.category.ID, *result.NewAnchor.CategoryID)
}

func TestModifySeries_CategoryCreatedOnceAndCaseSensitive(t *testing.T) {
	f := newRecurrenceFixture(t)
	changes := rentIncrease()
	changes.CategoryName = strPtr("housing")

	result, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, domain.ModeCurrent, changes, editNow)
	require.NoError(t, err)

	assert.Equal(t, 2, f.store.CountCategories())
	require.NotNil(t, result.OneOff.CategoryID)
	assert.NotEqual(t, f.category.ID, *result.OneOff.CategoryID)
	// the continuation keeps the original category
	assert.Equal(t, f.category.ID, *result.NewAnchor.CategoryID)
}

func TestModifySeries_EmptyCategoryClears(t *testing.T) {
	f := newRecurrenceFixture(t)
	changes := rentIncrease()
	changes.CategoryName = strPtr("  ")

	result, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, domain.ModeAll, changes, editNow)
	require.NoError(t, err)
	assert.Nil(t, result.Anchor.CategoryID)
}

func TestModifySeries_RollsBackOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		mode   domain.ModificationMode
		failOn string
	}{
		{"current fails creating one-off", domain.ModeCurrent, testutil.OpTransactionCreate},
		{"current fails creating continuation rule", domain.ModeCurrent, testutil.OpRuleCreate},
		{"future fails creating rule", domain.ModeFuture, testutil.OpRuleCreate},
		{"future fails creating anchor", domain.ModeFuture, testutil.OpTransactionCreate},
		{"all fails updating anchor", domain.ModeAll, testutil.OpTransactionUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRecurrenceFixture(t)
			boom := errors.New("connection lost")
			f.store.FailOn = func(op string) error {
				if op == tt.failOn {
					return boom
				}
				return nil
			}
			changes := rentIncrease()
			changes.CategoryName = strPtr("Brand new")

			_, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, tt.mode, changes, editNow)
			require.ErrorIs(t, err, boom)

			rule := f.store.Rule(f.rule.ID)
			assert.Nil(t, rule.EndDate, "rule must not stay truncated")
			assert.Equal(t, domain.FrequencyMonthly, rule.Frequency)
			assert.True(t, rule.StartDate.Equal(day(2024, 4, 1)))
			assert.Equal(t, "Rent", f.store.Transaction(f.anchor.ID).Description)
			assert.Equal(t, 1, f.store.CountTransactions())
			assert.Equal(t, 1, f.store.CountRules())
			assert.Equal(t, 1, f.store.CountCategories(), "category created on demand is rolled back too")
			assert.Equal(t, 1, f.store.RolledBackCount)
			assert.Empty(t, f.publisher.Types())
		})
	}
}

func TestModifySeries_Preconditions(t *testing.T) {
	f := newRecurrenceFixture(t)
	plain := f.store.AddTransaction(&domain.Transaction{UserID: f.userID, Description: "Coffee", Amount: decimal.NewFromInt(-4), Date: day(2024, 6, 2)})

	tests := []struct {
		name     string
		userID   uuid.UUID
		anchorID uuid.UUID
		mode     domain.ModificationMode
		changes  SeriesChanges
		wantErr  error
	}{
		{"unknown anchor", f.userID, uuid.New(), domain.ModeFuture, rentIncrease(), domain.ErrNotFound},
		{"someone else's anchor", uuid.New(), f.anchor.ID, domain.ModeFuture, rentIncrease(), domain.ErrNotFound},
		{"not recurring", f.userID, plain.ID, domain.ModeFuture, rentIncrease(), domain.ErrInvalidState},
		{"unknown mode", f.userID, f.anchor.ID, domain.ModificationMode("some"), rentIncrease(), domain.ErrInvalidState},
		{"missing description", f.userID, f.anchor.ID, domain.ModeAll, SeriesChanges{Date: day(2024, 6, 1)}, domain.ErrValidation},
		{"missing date", f.userID, f.anchor.ID, domain.ModeAll, SeriesChanges{Description: "Rent"}, domain.ErrValidation},
		{"bad frequency", f.userID, f.anchor.ID, domain.ModeAll, func() SeriesChanges {
			c := rentIncrease()
			freq := domain.Frequency("hourly")
			c.Frequency = &freq
			return c
		}(), domain.ErrValidation},
		{"end before date", f.userID, f.anchor.ID, domain.ModeFuture, func() SeriesChanges {
			c := rentIncrease()
			end := day(2024, 5, 1)
			c.EndDate = &end
			return c
		}(), domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ModifySeries(context.Background(), tt.userID, tt.anchorID, tt.mode, tt.changes, editNow)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Nil(t, f.store.Rule(f.rule.ID).EndDate)
	assert.Equal(t, 2, f.store.CountTransactions())
	assert.Empty(t, f.publisher.Types())
}

// monthLedger returns the merged ledger of a 2024 month
func monthLedger(t *testing.T, store *testutil.MockStore, userID uuid.UUID, month time.Month) []domain.LedgerEntry {
	t.Helper()
	svc := NewTransactionService(store, NewOccurrenceService(store), &testutil.RecordingPublisher{})
	ledger, err := svc.ListForMonth(context.Background(), userID, 2024, month)
	require.NoError(t, err)
	return ledger.Entries
}

func ledgerTotal(entries []domain.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

func TestModifySeries_SplitOfEndedSeriesRejected(t *testing.T) {
	for _, mode := range []domain.ModificationMode{domain.ModeCurrent, domain.ModeFuture} {
		t.Run(string(mode), func(t *testing.T) {
			f := newRecurrenceFixture(t)
			end := day(2024, 5, 10)
			rule := f.store.Rule(f.rule.ID)
			rule.EndDate = &end
			f.store.AddRule(rule)

			_, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, mode, rentIncrease(), editNow)
			require.ErrorIs(t, err, domain.ErrSeriesEnded)
			assert.ErrorIs(t, err, domain.ErrInvalidState)

			assert.True(t, f.store.Rule(f.rule.ID).EndDate.Equal(end), "end date is never moved")
			assert.Equal(t, 1, f.store.CountTransactions())
			assert.Equal(t, 1, f.store.CountRules())
		})
	}
}

func TestModifySeries_CurrentOnSeriesStartedThisMonth(t *testing.T) {
	store := testutil.NewMockStore()
	svc := NewRecurrenceService(store, &testutil.RecordingPublisher{})
	userID := uuid.New()
	anchor, rule := seedSeries(store, userID, "Phone", -50, domain.FrequencyMonthly, day(2024, 6, 5), nil)

	changes := SeriesChanges{Description: "Phone", Amount: decimal.NewFromInt(-70), Date: day(2024, 6, 5)}
	result, err := svc.ModifySeries(context.Background(), userID, anchor.ID, domain.ModeCurrent, changes, editNow)
	require.NoError(t, err)

	require.NotNil(t, result.OneOff)
	assert.Equal(t, anchor.ID, result.OneOff.ID, "the anchor row becomes the one-off")
	oneOff := store.Transaction(anchor.ID)
	assert.False(t, oneOff.IsRecurring)
	assert.Nil(t, oneOff.RecurrenceID)
	assert.True(t, oneOff.Amount.Equal(decimal.NewFromInt(-70)))
	assert.True(t, store.Rule(rule.ID).EndDate.Equal(day(2024, 6, 5)))

	require.NotNil(t, result.NewAnchor)
	assert.True(t, result.NewAnchor.Date.Equal(day(2024, 7, 1)))
	assert.True(t, result.NewAnchor.Amount.Equal(decimal.NewFromInt(-50)))

	june := monthLedger(t, store, userID, time.June)
	require.Len(t, june, 1)
	assert.True(t, ledgerTotal(june).Equal(decimal.NewFromInt(-70)))

	july := monthLedger(t, store, userID, time.July)
	require.Len(t, july, 1)
	assert.True(t, ledgerTotal(july).Equal(decimal.NewFromInt(-50)))

	assert.Equal(t, 2, store.CountTransactions())
	assert.Equal(t, 2, store.CountRules())
}

func TestModifySeries_CurrentOnSeriesStartingLater(t *testing.T) {
	store := testutil.NewMockStore()
	svc := NewRecurrenceService(store, &testutil.RecordingPublisher{})
	userID := uuid.New()
	anchor, _ := seedSeries(store, userID, "Insurance", -120, domain.FrequencyMonthly, day(2024, 8, 10), nil)

	changes := SeriesChanges{Description: "Insurance", Amount: decimal.NewFromInt(-150), Date: day(2024, 8, 12)}
	result, err := svc.ModifySeries(context.Background(), userID, anchor.ID, domain.ModeCurrent, changes, editNow)
	require.NoError(t, err)

	require.NotNil(t, result.NewRule)
	assert.True(t, result.NewRule.StartDate.Equal(day(2024, 9, 10)), "resumes at the next scheduled date")

	august := monthLedger(t, store, userID, time.August)
	require.Len(t, august, 1)
	assert.True(t, august[0].Date.Equal(day(2024, 8, 12)))
	assert.True(t, ledgerTotal(august).Equal(decimal.NewFromInt(-150)))
	assert.Len(t, monthLedger(t, store, userID, time.July), 0)
}

func TestModifySeries_FutureOnSeriesStartedThisMonthRewritesInPlace(t *testing.T) {
	store := testutil.NewMockStore()
	svc := NewRecurrenceService(store, &testutil.RecordingPublisher{})
	userID := uuid.New()
	anchor, rule := seedSeries(store, userID, "Gym", -30, domain.FrequencyWeekly, day(2024, 6, 5), nil)

	changes := SeriesChanges{Description: "Gym", Amount: decimal.NewFromInt(-35), Date: day(2024, 6, 19)}
	result, err := svc.ModifySeries(context.Background(), userID, anchor.ID, domain.ModeFuture, changes, editNow)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeFuture, result.Mode)
	assert.Nil(t, result.NewRule)
	assert.Nil(t, result.NewAnchor)
	assert.True(t, store.Rule(rule.ID).StartDate.Equal(day(2024, 6, 19)))
	assert.Nil(t, store.Rule(rule.ID).EndDate)
	assert.True(t, store.Transaction(anchor.ID).Date.Equal(day(2024, 6, 19)))

	june := monthLedger(t, store, userID, time.June)
	require.Len(t, june, 2)
	assert.True(t, ledgerTotal(june).Equal(decimal.NewFromInt(-70)))
	assert.Equal(t, 1, store.CountRules())
}

func TestModifySeries_FutureDatedBeforeBoundary(t *testing.T) {
	f := newRecurrenceFixture(t)
	changes := rentIncrease()
	changes.Date = day(2024, 5, 1)

	result, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, domain.ModeFuture, changes, editNow)
	require.NoError(t, err)

	assert.True(t, f.store.Rule(f.rule.ID).EndDate.Equal(day(2024, 4, 30)))
	assert.True(t, result.NewRule.StartDate.Equal(day(2024, 5, 1)))

	may := monthLedger(t, f.store, f.userID, time.May)
	require.Len(t, may, 1)
	assert.True(t, ledgerTotal(may).Equal(decimal.NewFromInt(-900)))
}

func TestModifySeries_ConcurrentSplitsCreateOneSeries(t *testing.T) {
	f := newRecurrenceFixture(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ModifySeries(context.Background(), f.userID, f.anchor.ID, domain.ModeFuture, rentIncrease(), editNow)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrSeriesEnded):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, conflicts)
	assert.Equal(t, 8, f.store.TxCount)
	assert.Equal(t, 2, f.store.CountRules())
	assert.Equal(t, 2, f.store.CountTransactions())
	assert.True(t, f.store.Rule(f.rule.ID).EndDate.Equal(day(2024, 5, 31)))

	june := monthLedger(t, f.store, f.userID, time.June)
	require.Len(t, june, 1)
	assert.True(t, ledgerTotal(june).Equal(decimal.NewFromInt(-900)))
}
