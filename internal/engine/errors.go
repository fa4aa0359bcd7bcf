package engine

import (
	"errors"
	"fmt"
	"time"
)

// TransformError represents a hard failure in the transform pipeline.
//
// Only two kinds exist: a malformed operation (fails the mechanical gate
// before entering the fold, never retried automatically) and a processing
// timeout (the fold exceeded its budget; callers should shed load, e.g.
// compact the pending set, rather than blindly retry).
type TransformError struct {
	// Code identifies the error category.
	Code TransformErrorCode

	// Message is a human-readable description.
	Message string

	// OperationID identifies the rejected operation.
	OperationID string

	// ElementID identifies the operation's target, when known.
	ElementID string

	// Details contains additional context.
	Details map[string]string
}

// TransformErrorCode categorizes transform failures.
type TransformErrorCode string

const (
	// ErrCodeMalformedOperation indicates the operation failed the
	// well-formedness gate.
	ErrCodeMalformedOperation TransformErrorCode = "MALFORMED_OPERATION"

	// ErrCodeProcessingTimeout indicates the fold exceeded its budget.
	ErrCodeProcessingTimeout TransformErrorCode = "PROCESSING_TIMEOUT"
)

// Error implements the error interface.
func (e *TransformError) Error() string {
	if e.OperationID != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.OperationID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMalformedError reports whether err is a malformed-operation rejection.
// Uses errors.As to handle wrapped errors.
func IsMalformedError(err error) bool {
	var te *TransformError
	return errors.As(err, &te) && te.Code == ErrCodeMalformedOperation
}

// IsTimeoutError reports whether err is a processing-budget timeout.
// Uses errors.As to handle wrapped errors.
func IsTimeoutError(err error) bool {
	var te *TransformError
	return errors.As(err, &te) && te.Code == ErrCodeProcessingTimeout
}

// NewMalformedError creates a TransformError for a failed validation gate.
func NewMalformedError(operationID, elementID string, cause error) *TransformError {
	return &TransformError{
		Code:        ErrCodeMalformedOperation,
		Message:     cause.Error(),
		OperationID: operationID,
		ElementID:   elementID,
	}
}

// NewTimeoutError creates a TransformError for an exceeded fold budget.
func NewTimeoutError(operationID string, elapsed, budget time.Duration, folded int) *TransformError {
	return &TransformError{
		Code:        ErrCodeProcessingTimeout,
		Message:     fmt.Sprintf("transform exceeded processing budget (%s >= %s)", elapsed, budget),
		OperationID: operationID,
		Details: map[string]string{
			"elapsed": elapsed.String(),
			"budget":  budget.String(),
			"folded":  fmt.Sprintf("%d", folded),
		},
	}
}
