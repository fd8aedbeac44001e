package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOccurrenceHandler(env *testEnv) *OccurrenceHandler {
	h := NewOccurrenceHandler(env.occurrences)
	h.now = fixedClock
	return h
}

func TestGetOccurrences_Month(t *testing.T) {
	env := newTestEnv()
	h := newTestOccurrenceHandler(env)
	start := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	env.store.AddRecurring(&domain.Transaction{
		UserID:      env.userID,
		Description: "Gym",
		Amount:      decimal.NewFromInt(-30),
		Date:        start,
	}, &domain.RecurrenceRule{Frequency: domain.FrequencyMonthly, StartDate: start})

	c, rec := env.request(http.MethodGet, "/api/v1/occurrences?year=2024&month=2", "")
	require.NoError(t, h.GetOccurrences(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var response OccurrencesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "2024-02-01", response.Start)
	assert.Equal(t, "2024-02-29", response.End)
	require.Len(t, response.Occurrences, 1)
	assert.Equal(t, "2024-02-29", response.Occurrences[0].Date, "day 31 clamps to the end of February")
	assert.True(t, response.Occurrences[0].IsGenerated)
	assert.False(t, response.Truncated)
}

func TestGetOccurrences_WeeklyInWindow(t *testing.T) {
	env := newTestEnv()
	h := newTestOccurrenceHandler(env)
	start := time.Date(2024, time.May, 27, 0, 0, 0, 0, time.UTC)
	env.store.AddRecurring(&domain.Transaction{
		UserID:      env.userID,
		Description: "Allowance",
		Amount:      decimal.NewFromInt(-10),
		Date:        start,
	}, &domain.RecurrenceRule{Frequency: domain.FrequencyWeekly, StartDate: start})

	// The window spills into May and July but only June dates count
	c, rec := env.request(http.MethodGet, "/api/v1/occurrences?year=2024&month=6&start=2024-05-20&end=2024-07-10", "")
	require.NoError(t, h.GetOccurrences(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var response OccurrencesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	dates := make([]string, len(response.Occurrences))
	for i, o := range response.Occurrences {
		dates[i] = o.Date
	}
	assert.Equal(t, []string{"2024-06-24", "2024-06-17", "2024-06-10", "2024-06-03"}, dates)
}

func TestGetOccurrences_InvalidPeriod(t *testing.T) {
	env := newTestEnv()
	h := newTestOccurrenceHandler(env)

	for _, target := range []string{
		"/api/v1/occurrences?start=2024-06-30&end=2024-06-01",
		"/api/v1/occurrences?start=yesterday",
		"/api/v1/occurrences?month=0",
	} {
		c, rec := env.request(http.MethodGet, target, "")
		require.NoError(t, h.GetOccurrences(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}
