package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Message: "test error message",
	}

	assert.Equal(t, "test error message", err.Error())
}

func TestValidationError_ErrorWithField(t *testing.T) {
	err := &ValidationError{
		Field:   "horizon_days",
		Message: "must be positive",
	}

	assert.Equal(t, "horizon_days: must be positive", err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("validation failed")

	assert.Error(t, err)
	assert.Equal(t, "validation failed", err.Error())

	// Check that it's the correct type
	validationErr, ok := err.(*ValidationError)
	assert.True(t, ok)
	assert.Equal(t, "validation failed", validationErr.Message)
}

func TestNewValidationErrorf(t *testing.T) {
	err := NewValidationErrorf("at least %d data points required, got %d", 5, 4)

	assert.Error(t, err)
	assert.Equal(t, "at least 5 data points required, got 4", err.Error())

	validationErr, ok := err.(*ValidationError)
	assert.True(t, ok)
	assert.Empty(t, validationErr.Field)
}

func TestNewFieldValidationError(t *testing.T) {
	err := NewFieldValidationError("rows", "at least %d data points required", 5)

	validationErr, ok := err.(*ValidationError)
	assert.True(t, ok)
	assert.Equal(t, "rows", validationErr.Field)
	assert.Equal(t, "rows: at least 5 data points required", err.Error())
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct", NewValidationError("bad"), true},
		{"wrapped", fmt.Errorf("preprocess: %w", NewValidationError("bad")), true},
		{"other", errors.New("boom"), false},
		{"sentinel", ErrInsufficientPredictions, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidationError(tt.err))
		})
	}
}

func TestModelFitError(t *testing.T) {
	cause := errors.New("singular matrix")
	err := NewModelFitError("arima", cause)

	assert.Equal(t, "model arima fit failed: singular matrix", err.Error())
	assert.ErrorIs(t, err, cause)

	var fitErr *ModelFitError
	assert.True(t, errors.As(err, &fitErr))
	assert.Equal(t, "arima", fitErr.Model)
}
