package service

import (
	"context"
	"sort"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DashboardService aggregates the month ledgers of a user
type DashboardService struct {
	store        domain.Store
	transactions *TransactionService
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(store domain.Store, transactions *TransactionService) *DashboardService {
	return &DashboardService{
		store:        store,
		transactions: transactions,
	}
}

// GetSummary returns the totals of a month over stored and generated entries
func (s *DashboardService) GetSummary(ctx context.Context, userID uuid.UUID, year int, month time.Month) (*domain.MonthSummary, error) {
	ledger, err := s.transactions.ListForMonth(ctx, userID, year, month)
	if err != nil {
		return nil, err
	}

	categories, err := s.store.Categories().GetAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return summarize(ledger, categories), nil
}

// GetTrend returns one summary per month for the months ending at endYear/endMonth,
// oldest first. Months are computed concurrently.
func (s *DashboardService) GetTrend(ctx context.Context, userID uuid.UUID, endYear int, endMonth time.Month, months int) ([]*domain.MonthSummary, error) {
	if months < 1 || months > domain.MaxTrendMonths {
		return nil, domain.NewFieldError("months", "must be between 1 and 24")
	}
	if endMonth < time.January || endMonth > time.December {
		return nil, domain.NewFieldError("month", "must be between 1 and 12")
	}

	categories, err := s.store.Categories().GetAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*domain.MonthSummary, months)
	last := time.Date(endYear, endMonth, 1, 0, 0, 0, 0, time.UTC)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := 0; i < months; i++ {
		i := i
		first := last.AddDate(0, i-months+1, 0)
		g.Go(func() error {
			ledger, err := s.transactions.ListForMonth(gctx, userID, first.Year(), first.Month())
			if err != nil {
				return err
			}
			summaries[i] = summarize(ledger, categories)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return summaries, nil
}

func summarize(ledger *domain.MonthLedger, categories []*domain.Category) *domain.MonthSummary {
	summary := &domain.MonthSummary{
		Year:       ledger.Year,
		Month:      ledger.Month,
		Income:     decimal.Zero,
		Expenses:   decimal.Zero,
		Net:        decimal.Zero,
		ByCategory: make([]domain.CategoryAmount, 0),
	}

	byID := make(map[uuid.UUID]*domain.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	totals := make(map[uuid.UUID]*domain.CategoryAmount)
	var uncategorized *domain.CategoryAmount

	for _, e := range ledger.Entries {
		if e.IsGenerated {
			summary.GeneratedCount++
		} else {
			summary.StoredCount++
		}

		if e.Amount.IsPositive() {
			summary.Income = summary.Income.Add(e.Amount)
		} else {
			summary.Expenses = summary.Expenses.Add(e.Amount.Neg())
		}

		var bucket *domain.CategoryAmount
		if e.CategoryID != nil {
			if c, ok := byID[*e.CategoryID]; ok {
				bucket = totals[c.ID]
				if bucket == nil {
					id := c.ID
					bucket = &domain.CategoryAmount{ID: &id, Name: c.Name, Color: c.Color, Amount: decimal.Zero}
					totals[c.ID] = bucket
				}
			}
		}
		if bucket == nil {
			if uncategorized == nil {
				uncategorized = &domain.CategoryAmount{Name: "Uncategorized", Amount: decimal.Zero}
			}
			bucket = uncategorized
		}
		bucket.Amount = bucket.Amount.Add(e.Amount)
		bucket.Count++
	}

	summary.Net = summary.Income.Sub(summary.Expenses)

	for _, b := range totals {
		summary.ByCategory = append(summary.ByCategory, *b)
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		return summary.ByCategory[i].Name < summary.ByCategory[j].Name
	})
	if uncategorized != nil {
		summary.ByCategory = append(summary.ByCategory, *uncategorized)
	}

	return summary
}
