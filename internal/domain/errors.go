package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrDocumentNotFound is returned when a document does not exist or was deleted
var ErrDocumentNotFound = errors.New("document not found")

// ErrNotFound names the missing entity
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found with ID: %s", e.Entity, e.ID)
}

// Is lets errors.Is match ErrDocumentNotFound for documents
func (e *ErrNotFound) Is(target error) bool {
	return target == ErrDocumentNotFound && e.Entity == "document"
}

// ValidationError represents an error that occurs due to invalid input or parameters
type ValidationError struct {
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new validation error with the given message
func NewValidationError(message string) error {
	return ValidationError{
		Message: message,
	}
}

// IsValidationError reports whether err wraps a ValidationError
func IsValidationError(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

// ErrRateLimited is returned when an action is throttled
type ErrRateLimited struct {
	Action     string
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("%s rate limited, retry in %s", e.Action, e.RetryAfter.Round(time.Second))
}
