package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors callers match with errors.Is. Everything else is
// identified by AppError type and code.
var (
	ErrNotTrained    = errors.New("model must be trained before imputation")
	ErrModelNotFound = errors.New("stored model not found")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeData          ErrorType = "data"
	ErrorTypeNumerical     ErrorType = "numerical"
	ErrorTypeStructural    ErrorType = "structural"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeAnalysis      ErrorType = "analysis"
	ErrorTypeInternal      ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:      errType,
		Code:      code,
		Message:   message,
		Cause:     err,
		Retryable: errType == ErrorTypeNumerical,
	}
}

// NewConfigurationError creates a configuration error. Configuration errors
// are fatal: they are surfaced before any training iteration runs.
func NewConfigurationError(code, message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, code, message)
}

// NewDataError creates a data error
func NewDataError(code, message string) *AppError {
	return NewAppError(ErrorTypeData, code, message)
}

// NewNumericalError creates a numerical error. Numerical errors abort the
// current run only; re-running is an orchestration decision, so they are
// marked retryable.
func NewNumericalError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeNumerical,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// NewStructuralError creates a structural error
func NewStructuralError(code, message string) *AppError {
	return NewAppError(ErrorTypeStructural, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

// Error codes for different error scenarios
const (
	// Configuration error codes
	CodeInvalidHintRate   = "INVALID_HINT_RATE"
	CodeInvalidAlpha      = "INVALID_ALPHA"
	CodeInvalidMissRate   = "INVALID_MISS_RATE"
	CodeInvalidBatchSize  = "INVALID_BATCH_SIZE"
	CodeInvalidIterations = "INVALID_ITERATIONS"
	CodeInvalidSparsity   = "INVALID_SPARSITY"
	CodeInvalidTopology   = "INVALID_TOPOLOGY"
	CodeTopologyMismatch  = "TOPOLOGY_MISMATCH"
	CodeInvalidModality   = "INVALID_MISS_MODALITY"

	// Data error codes
	CodeEmptyDataset    = "EMPTY_DATASET"
	CodeRaggedDataset   = "RAGGED_DATASET"
	CodeNonNumericValue = "NON_NUMERIC_VALUE"
	CodeNoGroundTruth   = "NO_GROUND_TRUTH"

	// Numerical error codes
	CodeTrainingDiverged = "TRAINING_DIVERGED"

	// Structural error codes
	CodePruneExhaustsLayer = "PRUNE_EXHAUSTS_LAYER"
	CodeRegrowOverCapacity = "REGROW_OVER_CAPACITY"
	CodeMaskShapeMismatch  = "MASK_SHAPE_MISMATCH"

	// Storage error codes
	CodeModelNotFound  = "MODEL_NOT_FOUND"
	CodeRunLogNotFound = "RUN_LOG_NOT_FOUND"
	CodeWriteFailed    = "WRITE_FAILED"
	CodeReadFailed     = "READ_FAILED"
)
