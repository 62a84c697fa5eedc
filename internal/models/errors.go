package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// Both wrap ErrNotFound; they only add which entity is missing.
	ErrCardNotFound    = fmt.Errorf("card %w", ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("study session %w", ErrNotFound)
	// ErrConflict reports that a versioned row changed between read and write.
	ErrConflict = errors.New("concurrent update conflict")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
