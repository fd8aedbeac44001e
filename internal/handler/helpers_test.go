package handler

import (
	"io"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/service"
	"github.com/dafibh/fortuna/budget-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2024, time.June, 15, 14, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type testEnv struct {
	store     *testutil.MockStore
	publisher *testutil.RecordingPublisher
	userID    uuid.UUID

	occurrences  *service.OccurrenceService
	transactions *service.TransactionService
	recurrences  *service.RecurrenceService
	categories   *service.CategoryService
	dashboard    *service.DashboardService
	csv          *service.CSVService
}

func newTestEnv() *testEnv {
	store := testutil.NewMockStore()
	publisher := &testutil.RecordingPublisher{}
	occurrences := service.NewOccurrenceService(store)
	transactions := service.NewTransactionService(store, occurrences, publisher)
	return &testEnv{
		store:        store,
		publisher:    publisher,
		userID:       uuid.New(),
		occurrences:  occurrences,
		transactions: transactions,
		recurrences:  service.NewRecurrenceService(store, publisher),
		categories:   service.NewCategoryService(store, publisher),
		dashboard:    service.NewDashboardService(store, transactions),
		csv:          service.NewCSVService(store, transactions, publisher),
	}
}

// request builds an authenticated echo context for userID
func (env *testEnv) request(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	setupUserContext(c, env.userID)
	return c, rec
}

// addRent stores a monthly rent series starting 2024-04-01
func (env *testEnv) addRent() (*domain.Transaction, *domain.RecurrenceRule) {
	start := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	return env.store.AddRecurring(&domain.Transaction{
		UserID:      env.userID,
		Description: "Rent",
		Amount:      decimal.NewFromInt(-800),
		Date:        start,
	}, &domain.RecurrenceRule{
		Frequency: domain.FrequencyMonthly,
		Interval:  1,
		StartDate: start,
	})
}
