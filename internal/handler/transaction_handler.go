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

// TransactionHandler handles transaction-related HTTP requests
type TransactionHandler struct {
	transactionService *service.TransactionService
	now                func() time.Time
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		now:                time.Now,
	}
}

// RecurrenceRequest makes a new transaction repeat
type RecurrenceRequest struct {
	Frequency string  `json:"frequency"`
	Interval  int32   `json:"interval,omitempty"`
	EndDate   *string `json:"endDate,omitempty"`
}

// TransactionRequest represents the create and update transaction request body
type TransactionRequest struct {
	Description string             `json:"description"`
	Amount      string             `json:"amount"`
	Date        string             `json:"date"`
	Category    *string            `json:"category,omitempty"`
	Recurrence  *RecurrenceRequest `json:"recurrence,omitempty"`
}

// TransactionResponse represents a stored transaction or a generated
// occurrence in API responses
type TransactionResponse struct {
	ID           string  `json:"id"`
	Description  string  `json:"description"`
	Amount       string  `json:"amount"`
	Date         string  `json:"date"`
	CategoryID   *string `json:"categoryId,omitempty"`
	IsRecurring  bool    `json:"isRecurring"`
	RecurrenceID *string `json:"recurrenceId,omitempty"`
	IsGenerated  bool    `json:"isGenerated"`
	CreatedAt    string  `json:"createdAt,omitempty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
}

// MonthLedgerResponse is the transaction list of one month
type MonthLedgerResponse struct {
	Year         int                   `json:"year"`
	Month        int                   `json:"month"`
	Transactions []TransactionResponse `json:"transactions"`
	Truncated    bool                  `json:"truncated"`
}

func (r TransactionRequest) toInput() (service.TransactionInput, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return service.TransactionInput{}, err
	}
	date, err := parseDate("date", r.Date)
	if err != nil {
		return service.TransactionInput{}, err
	}

	input := service.TransactionInput{
		Description:  r.Description,
		Amount:       amount,
		Date:         date,
		CategoryName: r.Category,
	}

	if r.Recurrence != nil {
		endDate, err := parseOptionalDate("recurrence.endDate", r.Recurrence.EndDate)
		if err != nil {
			return service.TransactionInput{}, err
		}
		input.Recurrence = &service.RecurrenceInput{
			Frequency: domain.Frequency(r.Recurrence.Frequency),
			Interval:  r.Recurrence.Interval,
			EndDate:   endDate,
		}
	}
	return input, nil
}

// CreateTransaction godoc
// @Summary Create a transaction
// @Description Create a one-off transaction, or the anchor of a new recurring series when recurrence is set
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransactionRequest true "Transaction creation request"
// @Success 201 {object} TransactionResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Router /transactions [post]
func (h *TransactionHandler) CreateTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var req TransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input, err := req.toInput()
	if err != nil {
		return handleServiceError(c, err, "Invalid transaction")
	}

	tx, err := h.transactionService.Create(c.Request().Context(), userID, input)
	if err != nil {
		return handleServiceError(c, err, "Failed to create transaction")
	}

	return c.JSON(http.StatusCreated, toTransactionResponse(tx))
}

// GetTransactions godoc
// @Summary List a month's transactions
// @Description Stored transactions of the month merged with the occurrences generated by recurring series, newest first
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param year query int false "Year (defaults to the current year)"
// @Param month query int false "Month 1-12 (defaults to the current month)"
// @Success 200 {object} MonthLedgerResponse
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Router /transactions [get]
func (h *TransactionHandler) GetTransactions(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	year, month, err := parseYearMonth(c, h.now())
	if err != nil {
		return handleServiceError(c, err, "Invalid period")
	}

	ledger, err := h.transactionService.ListForMonth(c.Request().Context(), userID, year, month)
	if err != nil {
		return handleServiceError(c, err, "Failed to get transactions")
	}

	return c.JSON(http.StatusOK, toMonthLedgerResponse(ledger))
}

// GetTransaction godoc
// @Summary Get a transaction
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} TransactionResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /transactions/{id} [get]
func (h *TransactionHandler) GetTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	id, err := parseTransactionID(c)
	if err != nil {
		return handleServiceError(c, err, "Invalid transaction ID")
	}

	tx, err := h.transactionService.GetByID(c.Request().Context(), userID, id)
	if err != nil {
		return handleServiceError(c, err, "Failed to get transaction")
	}

	return c.JSON(http.StatusOK, toTransactionResponse(tx))
}

// UpdateTransaction godoc
// @Summary Update a one-off transaction
// @Description Recurring anchors are edited through PUT /transactions/{id}/series
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param request body TransactionRequest true "Transaction update request"
// @Success 200 {object} TransactionResponse
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /transactions/{id} [put]
func (h *TransactionHandler) UpdateTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	id, err := parseTransactionID(c)
	if err != nil {
		return handleServiceError(c, err, "Invalid transaction ID")
	}

	var req TransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if req.Recurrence != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "recurrence", Message: "Cannot be changed on an existing transaction"},
		})
	}

	input, err := req.toInput()
	if err != nil {
		return handleServiceError(c, err, "Invalid transaction")
	}

	tx, err := h.transactionService.Update(c.Request().Context(), userID, id, input)
	if err != nil {
		return handleServiceError(c, err, "Failed to update transaction")
	}

	return c.JSON(http.StatusOK, toTransactionResponse(tx))
}

// DeleteTransaction godoc
// @Summary Delete a transaction
// @Description Deleting a recurring anchor stops its generated occurrences
// @Tags transactions
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 204
// @Failure 400 {object} ProblemDetails
// @Failure 404 {object} ProblemDetails
// @Failure 409 {object} ProblemDetails
// @Router /transactions/{id} [delete]
func (h *TransactionHandler) DeleteTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	id, err := parseTransactionID(c)
	if err != nil {
		return handleServiceError(c, err, "Invalid transaction ID")
	}

	if err := h.transactionService.Delete(c.Request().Context(), userID, id); err != nil {
		return handleServiceError(c, err, "Failed to delete transaction")
	}

	return c.NoContent(http.StatusNoContent)
}

func toTransactionResponse(tx *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           tx.ID.String(),
		Description:  tx.Description,
		Amount:       tx.Amount.StringFixed(2),
		Date:         tx.Date.Format(dateLayout),
		CategoryID:   formatOptionalID(tx.CategoryID),
		IsRecurring:  tx.IsRecurring,
		RecurrenceID: formatOptionalID(tx.RecurrenceID),
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    tx.UpdatedAt.Format(time.RFC3339),
	}
}

func toEntryResponse(e domain.LedgerEntry) TransactionResponse {
	return TransactionResponse{
		ID:           e.ID,
		Description:  e.Description,
		Amount:       e.Amount.StringFixed(2),
		Date:         e.Date.Format(dateLayout),
		CategoryID:   formatOptionalID(e.CategoryID),
		IsRecurring:  e.IsRecurring,
		RecurrenceID: formatOptionalID(e.RecurrenceID),
		IsGenerated:  e.IsGenerated,
	}
}

func toMonthLedgerResponse(ledger *domain.MonthLedger) MonthLedgerResponse {
	resp := MonthLedgerResponse{
		Year:         ledger.Year,
		Month:        ledger.Month,
		Transactions: make([]TransactionResponse, len(ledger.Entries)),
		Truncated:    ledger.Truncated,
	}
	for i, e := range ledger.Entries {
		resp.Transactions[i] = toEntryResponse(e)
	}
	return resp
}
