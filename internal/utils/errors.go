package utils

import (
	"errors"
	"fmt"
)

// ErrInsufficientPredictions is returned when the combiner receives no model predictions.
var ErrInsufficientPredictions = errors.New("insufficient predictions: at least one model prediction is required")

// ValidationError represents an error occurring during input validation.
// Validation errors are surfaced to the caller unchanged; no local recovery is attempted.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError with a specific message.
//
// Parameters:
//   - message: The validation error message.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
//
// Parameters:
//   - format: The format string.
//   - args: Arguments for the format string.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// NewFieldValidationError creates a ValidationError bound to a request field.
func NewFieldValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidationError reports whether err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ModelFitError records why a forecasting model could not be fitted.
// It never leaves the adapter that produced it: the adapter substitutes its
// fallback forecast and keeps the error only for logging and inspection.
type ModelFitError struct {
	Model string
	Cause error
}

// Error returns the error message string.
func (e *ModelFitError) Error() string {
	return fmt.Sprintf("model %s fit failed: %v", e.Model, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ModelFitError) Unwrap() error {
	return e.Cause
}

// NewModelFitError wraps cause as a ModelFitError for model.
func NewModelFitError(model string, cause error) error {
	return &ModelFitError{Model: model, Cause: cause}
}
