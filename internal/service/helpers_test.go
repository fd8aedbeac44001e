package service

import (
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string {
	return &s
}

// seedSeries stores a recurring anchor and its rule starting on start
func seedSeries(store *testutil.MockStore, userID uuid.UUID, description string, amount int64, freq domain.Frequency, start time.Time, end *time.Time) (*domain.Transaction, *domain.RecurrenceRule) {
	return store.AddRecurring(
		&domain.Transaction{
			UserID:      userID,
			Description: description,
			Amount:      decimal.NewFromInt(amount),
			Date:        start,
		},
		&domain.RecurrenceRule{
			Frequency: freq,
			Interval:  1,
			StartDate: start,
			EndDate:   end,
		},
	)
}

func occurrenceDates(occs []domain.VirtualOccurrence) []time.Time {
	dates := make([]time.Time, 0, len(occs))
	for _, o := range occs {
		dates = append(dates, o.Date)
	}
	return dates
}
