package domain

import (
	"errors"
	"fmt"
)

// Error categories
var (
	ErrNotFound               = errors.New("resource not found")
	ErrAlreadyExists          = errors.New("resource already exists")
	ErrValidation             = errors.New("validation failed")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrInvalidState           = errors.New("invalid state")
	ErrIterationLimitExceeded = errors.New("occurrence iteration limit exceeded")
	ErrUnavailable            = errors.New("service unavailable")
)

// Specific errors, each wrapping one of the categories above
var (
	ErrUserNotFound           = fmt.Errorf("user: %w", ErrNotFound)
	ErrTransactionNotFound    = fmt.Errorf("transaction: %w", ErrNotFound)
	ErrCategoryNotFound       = fmt.Errorf("category: %w", ErrNotFound)
	ErrRecurrenceRuleNotFound = fmt.Errorf("recurrence rule: %w", ErrNotFound)
	ErrCategoryExists         = fmt.Errorf("category: %w", ErrAlreadyExists)

	ErrNotRecurring      = fmt.Errorf("transaction is not recurring: %w", ErrInvalidState)
	ErrInvalidMode       = fmt.Errorf("unrecognized modification mode: %w", ErrInvalidState)
	ErrRecurringAnchor   = fmt.Errorf("recurring transactions are edited through their series: %w", ErrInvalidState)
	ErrVirtualOccurrence = fmt.Errorf("generated occurrences are not stored: %w", ErrInvalidState)
	ErrUnknownFrequency  = fmt.Errorf("unrecognized frequency: %w", ErrInvalidState)
	ErrSeriesEnded       = fmt.Errorf("series already ends before the split point: %w", ErrInvalidState)

	ErrArchiveDisabled = fmt.Errorf("export archive storage is not configured: %w", ErrUnavailable)
)

// Validation constants
const (
	MaxDescriptionLength  = 255
	MaxCategoryNameLength = 100
)

// FieldError describes a single invalid input field.
// It matches ErrValidation with errors.Is.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

// NewFieldError creates a FieldError
func NewFieldError(field, message string) error {
	return &FieldError{Field: field, Message: message}
}
