package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/dafibh/fortuna/budget-backend/internal/middleware"
	"github.com/dafibh/fortuna/budget-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SeriesHandler handles edits of recurring series
type SeriesHandler struct {
	recurrenceService *service.RecurrenceService
	now               func() time.Time
}

// NewSeriesHandler creates a new SeriesHandler
func NewSeriesHandler(recurrenceService *service.RecurrenceService) *SeriesHandler {
	return &SeriesHandler{
		recurrenceService: recurrenceService,
		now:               time.Now,
	}
}

// ModifySeriesRequest represents the series edit request body.
// A missing category keeps the current one; an empty string clears it.
type ModifySeriesRequest struct {
	Mode        string  `json:"mode"`
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	Date        string  `json:"date"`
	Category    *string `json:"category,omitempty"`
	Frequency   *string `json:"frequency,omitempty"`
	EndDate     *string `json:"endDate,omitempty"`
}

// RecurrenceRuleResponse represents a recurrence rule in API responses
type RecurrenceRuleResponse struct {
	ID        string  `json:"id"`
	Frequency string  `json:"frequency"`
	Interval  int32   `json:"interval"`
	StartDate string  `json:"startDate"`
	EndDate   *string `json:"endDate,omitempty"`
	RRule     string  `json:"rrule,omitempty"`
}

// SeriesModificationResponse lists the rules and transactions an edit wrote
type SeriesModificationResponse struct {
	Mode      string                  `json:"mode"`
	Rule      RecurrenceRuleResponse  `json:"rule"`
	Anchor    TransactionResponse     `json:"anchor"`
	OneOff    *TransactionResponse    `json:"oneOff,omitempty"`
	NewRule   *RecurrenceRuleResponse `json:"newRule,omitempty"`
	NewAnchor *TransactionResponse    `json:"newAnchor,omitempty"`
}

// ModifySeries godoc
// @Summary Edit a recurring series
// @Description mode=current changes one month's occurrence, mode=future changes it and every later occurrence, mode=all rewrites the whole series
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Anchor transaction ID"
// @Param request body ModifySeriesRequest true "Series edit request"
// @Success 200 {object} SeriesModificationResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /transactions/{id}/series [put]
func (h *SeriesHandler) ModifySeries(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	anchorID, err := parseTransactionID(c)
	if err != nil {
		return handleServiceError(c, err, "Invalid transaction ID")
	}

	var req ModifySeriesRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	changes, err := req.toChanges()
	if err != nil {
		return handleServiceError(c, err, "Invalid series edit")
	}

	result, err := h.recurrenceService.ModifySeries(c.Request().Context(), userID, anchorID, domain.ModificationMode(req.Mode), changes, h.now())
	if err != nil {
		return handleServiceError(c, err, "Failed to modify series")
	}

	return c.JSON(http.StatusOK, toSeriesModificationResponse(result))
}

func (r ModifySeriesRequest) toChanges() (service.SeriesChanges, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return service.SeriesChanges{}, err
	}
	date, err := parseDate("date", r.Date)
	if err != nil {
		return service.SeriesChanges{}, err
	}
	endDate, err := parseOptionalDate("endDate", r.EndDate)
	if err != nil {
		return service.SeriesChanges{}, err
	}

	changes := service.SeriesChanges{
		Description:  r.Description,
		Amount:       amount,
		Date:         date,
		CategoryName: r.Category,
		EndDate:      endDate,
	}
	if r.Frequency != nil && *r.Frequency != "" {
		f := domain.Frequency(*r.Frequency)
		changes.Frequency = &f
	}
	return changes, nil
}

func toRuleResponse(rule *domain.RecurrenceRule) RecurrenceRuleResponse {
	resp := RecurrenceRuleResponse{
		ID:        rule.ID.String(),
		Frequency: string(rule.Frequency),
		Interval:  rule.Interval,
		StartDate: rule.StartDate.Format(dateLayout),
		EndDate:   formatOptionalDate(rule.EndDate),
	}
	if s, err := rule.RRule(); err == nil {
		resp.RRule = s
	}
	return resp
}

func toSeriesModificationResponse(result *domain.ModificationResult) SeriesModificationResponse {
	resp := SeriesModificationResponse{
		Mode:   string(result.Mode),
		Rule:   toRuleResponse(result.Rule),
		Anchor: toTransactionResponse(result.Anchor),
	}
	if result.OneOff != nil {
		oneOff := toTransactionResponse(result.OneOff)
		resp.OneOff = &oneOff
	}
	if result.NewRule != nil {
		rule := toRuleResponse(result.NewRule)
		resp.NewRule = &rule
	}
	if result.NewAnchor != nil {
		anchor := toTransactionResponse(result.NewAnchor)
		resp.NewAnchor = &anchor
	}
	return resp
}
