package handler

import (
	"strconv"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, domain.NewFieldError(field, "is required")
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, domain.NewFieldError(field, "must be in YYYY-MM-DD format")
	}
	return t, nil
}

func parseOptionalDate(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := parseDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, domain.NewFieldError("amount", "is required")
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, domain.NewFieldError("amount", "must be a valid decimal number")
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// parseID reads a UUID path parameter
func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, domain.NewFieldError(name, "must be a valid UUID")
	}
	return id, nil
}

// parseTransactionID reads the :id parameter of a stored transaction.
// Generated occurrence keys are recognized and rejected.
func parseTransactionID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	if id, err := uuid.Parse(raw); err == nil {
		return id, nil
	}
	if _, err := domain.ParseOccurrenceKey(raw); err == nil {
		return uuid.Nil, domain.ErrVirtualOccurrence
	}
	return uuid.Nil, domain.NewFieldError("id", "must be a valid UUID")
}

// parseYearMonth reads the year and month query parameters, defaulting to
// the month containing now
func parseYearMonth(c echo.Context, now time.Time) (int, time.Month, error) {
	year, month := now.Year(), now.Month()

	if v := c.QueryParam("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return 0, 0, domain.NewFieldError("year", "must be a valid year")
		}
		year = y
	}
	if v := c.QueryParam("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, domain.NewFieldError("month", "must be between 1 and 12")
		}
		month = time.Month(m)
	}
	return year, month, nil
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func formatOptionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
