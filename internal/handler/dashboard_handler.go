package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/middleware"
	"github.com/dafibh/fortuna/budget-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const defaultTrendMonths = 6

// DashboardHandler handles dashboard-related HTTP requests
type DashboardHandler struct {
	dashboardService *service.DashboardService
	now              func() time.Time
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		now:              time.Now,
	}
}

// CategoryAmountResponse is one category's share of a month
type CategoryAmountResponse struct {
	ID     *string `json:"id"`
	Name   string  `json:"name"`
	Color  *string `json:"color,omitempty"`
	Amount string  `json:"amount"`
	Count  int     `json:"count"`
}

// MonthSummaryResponse represents a month's totals in API responses
type MonthSummaryResponse struct {
	Year           int                      `json:"year"`
	Month          int                      `json:"month"`
	Income         string                   `json:"income"`
	Expenses       string                   `json:"expenses"`
	Net            string                   `json:"net"`
	StoredCount    int                      `json:"storedCount"`
	GeneratedCount int                      `json:"generatedCount"`
	ByCategory     []CategoryAmountResponse `json:"byCategory"`
}

// GetSummary godoc
// @Summary Month summary
// @Description Income, expenses and per-category totals of a month, generated occurrences included
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Param year query int false "Year (defaults to the current year)"
// @Param month query int false "Month 1-12 (defaults to the current month)"
// @Success 200 {object} MonthSummaryResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Router /dashboard/summary [get]
func (h *DashboardHandler) GetSummary(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	year, month, err := parseYearMonth(c, h.now())
	if err != nil {
		return handleServiceError(c, err, "Invalid period")
	}

	summary, err := h.dashboardService.GetSummary(c.Request().Context(), userID, year, month)
	if err != nil {
		return handleServiceError(c, err, "Failed to get dashboard summary")
	}

	return c.JSON(http.StatusOK, toMonthSummaryResponse(summary))
}

// GetTrend godoc
// @Summary Monthly trend
// @Description Summaries of the months ending with the given month, oldest first
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Param year query int false "Last year (defaults to the current year)"
// @Param month query int false "Last month 1-12 (defaults to the current month)"
// @Param months query int false "Number of months, 1-24 (default 6)"
// @Success 200 {array} MonthSummaryResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Router /dashboard/trend [get]
func (h *DashboardHandler) GetTrend(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	year, month, err := parseYearMonth(c, h.now())
	if err != nil {
		return handleServiceError(c, err, "Invalid period")
	}

	months := defaultTrendMonths
	if v := c.QueryParam("months"); v != "" {
		if months, err = strconv.Atoi(v); err != nil {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "months", Message: "Must be a valid integer"},
			})
		}
	}

	summaries, err := h.dashboardService.GetTrend(c.Request().Context(), userID, year, month, months)
	if err != nil {
		return handleServiceError(c, err, "Failed to get trend")
	}

	resp := make([]MonthSummaryResponse, len(summaries))
	for i, s := range summaries {
		resp[i] = toMonthSummaryResponse(s)
	}
	return c.JSON(http.StatusOK, resp)
}

func toMonthSummaryResponse(s *domain.MonthSummary) MonthSummaryResponse {
	resp := MonthSummaryResponse{
		Year:           s.Year,
		Month:          s.Month,
		Income:         s.Income.StringFixed(2),
		Expenses:       s.Expenses.StringFixed(2),
		Net:            s.Net.StringFixed(2),
		StoredCount:    s.StoredCount,
		GeneratedCount: s.GeneratedCount,
		ByCategory:     make([]CategoryAmountResponse, len(s.ByCategory)),
	}
	for i, ca := range s.ByCategory {
		resp.ByCategory[i] = CategoryAmountResponse{
			ID:     formatOptionalID(ca.ID),
			Name:   ca.Name,
			Color:  ca.Color,
			Amount: ca.Amount.StringFixed(2),
			Count:  ca.Count,
		}
	}
	return resp
}
