package errors

import "fmt"

// ValidationError reports bad input shape. It is raised before any state change.
type ValidationError struct {
	Field   string
	Message string
	// Err optionally classifies the failure, e.g. ErrInvalidCard.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
