package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/middleware"
	"github.com/dafibh/fortuna/budget-backend/internal/service"
	"github.com/dafibh/fortuna/budget-backend/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// OccurrenceHandler exposes the occurrence generator
type OccurrenceHandler struct {
	occurrenceService *service.OccurrenceService
	now               func() time.Time
}

// NewOccurrenceHandler creates a new OccurrenceHandler
func NewOccurrenceHandler(occurrenceService *service.OccurrenceService) *OccurrenceHandler {
	return &OccurrenceHandler{
		occurrenceService: occurrenceService,
		now:               time.Now,
	}
}

// OccurrencesResponse lists generated occurrences
type OccurrencesResponse struct {
	Start       string                `json:"start"`
	End         string                `json:"end"`
	Year        int                   `json:"year"`
	Month       int                   `json:"month"`
	Occurrences []TransactionResponse `json:"occurrences"`
	Truncated   bool                  `json:"truncated"`
}

// GetOccurrences godoc
// @Summary Generate recurring occurrences
// @Description Occurrences of every recurring series falling in [start, end] and in the target month. start and end default to the bounds of the target month.
// @Tags occurrences
// @Produce json
// @Security BearerAuth
// @Param year query int false "Target year (defaults to the current year)"
// @Param month query int false "Target month 1-12 (defaults to the current month)"
// @Param start query string false "Period start (YYYY-MM-DD)"
// @Param end query string false "Period end (YYYY-MM-DD)"
// @Success 200 {object} OccurrencesResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Router /occurrences [get]
func (h *OccurrenceHandler) GetOccurrences(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	year, month, err := parseYearMonth(c, h.now())
	if err != nil {
		return handleServiceError(c, err, "Invalid period")
	}

	start, end := util.MonthRange(year, month)
	if v := c.QueryParam("start"); v != "" {
		if start, err = parseDate("start", v); err != nil {
			return handleServiceError(c, err, "Invalid period")
		}
	}
	if v := c.QueryParam("end"); v != "" {
		if end, err = parseDate("end", v); err != nil {
			return handleServiceError(c, err, "Invalid period")
		}
	}

	batch, err := h.occurrenceService.GenerateOccurrences(c.Request().Context(), userID, start, end, month, year)
	if err != nil {
		return handleServiceError(c, err, "Failed to generate occurrences")
	}

	entries := make([]domain.LedgerEntry, len(batch.Occurrences))
	for i, occ := range batch.Occurrences {
		entries[i] = domain.EntryFromOccurrence(occ)
	}
	domain.SortLedger(entries)

	resp := OccurrencesResponse{
		Start:       start.Format(dateLayout),
		End:         end.Format(dateLayout),
		Year:        year,
		Month:       int(month),
		Occurrences: make([]TransactionResponse, len(entries)),
		Truncated:   batch.Truncated,
	}
	for i, e := range entries {
		resp.Occurrences[i] = toEntryResponse(e)
	}
	return c.JSON(http.StatusOK, resp)
}
