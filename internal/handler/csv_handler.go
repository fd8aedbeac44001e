package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/middleware"
	"github.com/dafibh/fortuna/budget-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// MaxImportFileSize limits uploaded CSV files (2MB)
const MaxImportFileSize = 2 << 20

// CSVHandler handles CSV import and export
type CSVHandler struct {
	csvService    *service.CSVService
	exportService *service.ExportService
	now           func() time.Time
}

// NewCSVHandler creates a new CSVHandler
func NewCSVHandler(csvService *service.CSVService, exportService *service.ExportService) *CSVHandler {
	return &CSVHandler{
		csvService:    csvService,
		exportService: exportService,
		now:           time.Now,
	}
}

// ArchiveResponse represents a stored export
type ArchiveResponse struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

// Export godoc
// @Summary Export transactions as CSV
// @Description With year and month, exports that month's ledger including generated occurrences; without them, exports every stored transaction
// @Tags csv
// @Produce text/csv
// @Security BearerAuth
// @Param year query int false "Year"
// @Param month query int false "Month 1-12"
// @Success 200 {file} file
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Router /csv/export [get]
func (h *CSVHandler) Export(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var buf bytes.Buffer
	filename := "transactions.csv"
	if c.QueryParam("year") == "" && c.QueryParam("month") == "" {
		if err := h.csvService.ExportAll(c.Request().Context(), &buf, userID); err != nil {
			return handleServiceError(c, err, "Failed to export transactions")
		}
	} else {
		year, month, err := parseYearMonth(c, h.now())
		if err != nil {
			return handleServiceError(c, err, "Invalid period")
		}
		if err := h.csvService.ExportMonth(c.Request().Context(), &buf, userID, year, month); err != nil {
			return handleServiceError(c, err, "Failed to export transactions")
		}
		filename = fmt.Sprintf("transactions-%04d-%02d.csv", year, int(month))
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Import godoc
// @Summary Import transactions from CSV
// @Description Rows are validated individually; valid rows are written together and invalid rows are reported by line
// @Tags csv
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "CSV file"
// @Success 200 {object} service.ImportResult
// @Failure 400 {object} ProblemDetails
// @Failure 401 {object} ProblemDetails
// @Router /csv/import [post]
func (h *CSVHandler) Import(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewValidationError(c, "No file provided", []ValidationError{
			{Field: "file", Message: "CSV file is required"},
		})
	}
	if file.Size > MaxImportFileSize {
		return NewValidationError(c, "File too large", []ValidationError{
			{Field: "file", Message: "File size must be less than 2MB"},
		})
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to open uploaded file")
		return NewInternalError(c, "Failed to read file")
	}
	defer src.Close()

	result, err := h.csvService.Import(c.Request().Context(), userID, src)
	if err != nil {
		return handleServiceError(c, err, "Failed to import transactions")
	}

	return c.JSON(http.StatusOK, result)
}

// Archive godoc
// @Summary Archive an export to object storage
// @Description Uploads the CSV export and returns a short-lived download link. Without year and month the archive holds every stored transaction.
// @Tags csv
// @Produce json
// @Security BearerAuth
// @Param year query int false "Year"
// @Param month query int false "Month 1-12"
// @Success 201 {object} ArchiveResponse
// @Failure 400 {object} ProblemDetails
// @Failure 503 {object} ProblemDetails
// @Router /csv/archive [post]
func (h *CSVHandler) Archive(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var year int
	var month time.Month
	if c.QueryParam("year") != "" || c.QueryParam("month") != "" {
		var err error
		if year, month, err = parseYearMonth(c, h.now()); err != nil {
			return handleServiceError(c, err, "Invalid period")
		}
	}

	archive, err := h.exportService.Archive(c.Request().Context(), userID, year, month)
	if err != nil {
		return handleServiceError(c, err, "Failed to archive export")
	}

	return c.JSON(http.StatusCreated, ArchiveResponse{
		Key:       archive.Key,
		URL:       archive.URL,
		ExpiresAt: archive.ExpiresAt.Format(time.RFC3339),
	})
}
