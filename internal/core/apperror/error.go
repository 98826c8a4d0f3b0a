// Package apperror provides structured error handling for the stock ledger.
// All domain errors must use AppError so callers can render precise messages.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes grouped by concern.
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeInsufficientMaterial = "INSUFFICIENT_MATERIAL"
	CodeOverReversal         = "OVER_REVERSAL"
	CodeAlreadyClosed        = "ALREADY_CLOSED"
	CodeCannotReverse        = "CANNOT_REVERSE"

	// Internal invariant failures (500, never swallowed)
	CodeConsistency = "CONSISTENCY_VIOLATION"

	// Conflict (409)
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the service.
// It implements the error interface and carries structured details for callers.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (shortages, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidInput creates an invalid input error (400).
// Used for non-positive quantities and malformed ids.
func NewInvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInsufficientStock creates a stock shortage error for a single decrease.
func NewInsufficientStock(itemID string, requested, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"item_id":   itemID,
			"requested": requested,
			"available": available,
		},
	}
}

// Shortage describes one unsatisfied recipe line.
type Shortage struct {
	MaterialID string  `json:"materialId"`
	Required   float64 `json:"required"`
	Available  float64 `json:"available"`
	Shortage   float64 `json:"shortage"`
}

// NewInsufficientMaterial creates an error carrying the complete shortage list
// for a production batch or sale that cannot be fully satisfied.
func NewInsufficientMaterial(shortages []Shortage) *AppError {
	return &AppError{
		Code:       CodeInsufficientMaterial,
		Message:    "Insufficient material to satisfy all recipe lines",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"shortages": shortages},
	}
}

// NewOverReversal creates an error for a reversal/waste exceeding the remaining budget.
func NewOverReversal(batchID string, requested, remaining float64) *AppError {
	return &AppError{
		Code:       CodeOverReversal,
		Message:    "Requested quantity exceeds remaining batch budget",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"batch_id":  batchID,
			"requested": requested,
			"remaining": remaining,
		},
	}
}

// NewAlreadyClosed creates an error for operations on closed batches or voided sales.
func NewAlreadyClosed(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeAlreadyClosed,
		Message:    fmt.Sprintf("%s is already closed", entity),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewCannotReverse creates an error when finished goods are no longer on hand.
func NewCannotReverse(batchID, reason string) *AppError {
	return &AppError{
		Code:       CodeCannotReverse,
		Message:    "Batch cannot be reversed",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"batch_id": batchID,
			"reason":   reason,
		},
	}
}

// NewConsistencyViolation creates an error for a failed internal invariant.
// Always treated as fatal/internal and logged, never silently swallowed.
func NewConsistencyViolation(message string) *AppError {
	return &AppError{
		Code:       CodeConsistency,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified concurrently. Retry the whole operation.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode checks if error carries the given code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return IsCode(err, CodeConcurrentModification)
}
