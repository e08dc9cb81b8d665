package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewConfigurationError(CodeInvalidHintRate, "hint rate out of range")
	assert.Equal(t, "INVALID_HINT_RATE: hint rate out of range", err.Error())

	err = err.WithDetails("got 1.5")
	assert.Equal(t, "INVALID_HINT_RATE: hint rate out of range - got 1.5", err.Error())
}

func TestAppErrorIsMatchesTypeAndCode(t *testing.T) {
	err := NewNumericalError(CodeTrainingDiverged, "loss is NaN")

	assert.True(t, errors.Is(err, NewNumericalError(CodeTrainingDiverged, "other message")))
	assert.False(t, errors.Is(err, NewNumericalError("OTHER_CODE", "loss is NaN")))
	assert.False(t, errors.Is(err, NewConfigurationError(CodeTrainingDiverged, "loss is NaN")))
}

func TestWrapErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(cause, ErrorTypeStorage, CodeWriteFailed, "failed to persist run")

	assert.ErrorIs(t, err, cause)

	var appErr *AppError
	require.ErrorAs(t, error(err), &appErr)
	assert.Equal(t, ErrorTypeStorage, appErr.Type)
	assert.False(t, appErr.Retryable)
}

func TestNumericalErrorsAreRetryable(t *testing.T) {
	assert.True(t, NewNumericalError(CodeTrainingDiverged, "x").Retryable)
	assert.True(t, WrapError(errors.New("x"), ErrorTypeNumerical, CodeTrainingDiverged, "y").Retryable)
	assert.False(t, NewConfigurationError(CodeInvalidAlpha, "x").Retryable)
	assert.False(t, NewStructuralError(CodePruneExhaustsLayer, "x").Retryable)
}

func TestWithContext(t *testing.T) {
	err := NewNumericalError(CodeTrainingDiverged, "loss is NaN").
		WithContext("iteration", 1200)

	require.NotNil(t, err.Context)
	assert.Equal(t, 1200, err.Context["iteration"])
}
