package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeTimeout      = "TIMEOUT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInvalidInput = "INVALID_INPUT"

	CodeInvalidRange        = "INVALID_RANGE"
	CodeCapacityExceeded    = "CAPACITY_EXCEEDED"
	CodeResourceUnavailable = "RESOURCE_UNAVAILABLE"
	CodeSlotConflict        = "SLOT_CONFLICT"
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeLockTimeout         = "LOCK_TIMEOUT"
)

// Sentinels for errors.Is matching. Matching compares codes only, so any
// AppError produced by the constructors below matches its kind.
var (
	ErrNotFound            = New(CodeNotFound, "not found", http.StatusNotFound)
	ErrInvalidRange        = New(CodeInvalidRange, "invalid time range", http.StatusUnprocessableEntity)
	ErrCapacityExceeded    = New(CodeCapacityExceeded, "capacity exceeded", http.StatusUnprocessableEntity)
	ErrResourceUnavailable = New(CodeResourceUnavailable, "resource unavailable", http.StatusConflict)
	ErrSlotConflict        = New(CodeSlotConflict, "slot conflict", http.StatusConflict)
	ErrInvalidQuantity     = New(CodeInvalidQuantity, "invalid quantity", http.StatusUnprocessableEntity)
	ErrInvalidTransition   = New(CodeInvalidTransition, "invalid transition", http.StatusConflict)
	ErrLockTimeout         = New(CodeLockTimeout, "lock timeout", http.StatusServiceUnavailable)
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError of the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

// Retryable reports whether the caller may retry the same request unchanged.
func (e *AppError) Retryable() bool {
	return e.Code == CodeLockTimeout || e.Code == CodeTimeout || e.Code == CodeUnavailable
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Timeout(message string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    message,
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

func Unavailable(service string) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    fmt.Sprintf("%s is temporarily unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func InvalidRange(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeInvalidRange,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func CapacityExceeded(resourceID string, partySize, capacity int) *AppError {
	return &AppError{
		Code:       CodeCapacityExceeded,
		Message:    fmt.Sprintf("party size %d exceeds capacity %d", partySize, capacity),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"resource_id": resourceID,
			"party_size":  partySize,
			"capacity":    capacity,
		},
	}
}

func ResourceUnavailable(resourceID, status string) *AppError {
	return &AppError{
		Code:       CodeResourceUnavailable,
		Message:    fmt.Sprintf("resource is %s", status),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"resource_id": resourceID,
			"status":      status,
		},
	}
}

func SlotConflict(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeSlotConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		Details:    details,
	}
}

func InvalidQuantity(field string, value int) *AppError {
	return &AppError{
		Code:       CodeInvalidQuantity,
		Message:    fmt.Sprintf("%s must be at least 1", field),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"field": field,
			"value": value,
		},
	}
}

func InvalidTransition(entity, from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"from": from,
			"to":   to,
		},
	}
}

func LockTimeout(key string, err error) *AppError {
	return &AppError{
		Code:       CodeLockTimeout,
		Message:    "resource is busy, please retry",
		HTTPStatus: http.StatusServiceUnavailable,
		Details: map[string]any{
			"lock": key,
		},
		Err: err,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// IsRetryable reports whether err is an AppError the caller may retry.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable()
	}
	return false
}
