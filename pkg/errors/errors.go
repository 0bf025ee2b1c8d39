package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Synchronization failure codes. A LoadFailure leaves a collection empty, a
// WriteFailure means a mutation produced no echo, an AIFailure maps to a
// benign fallback value, and a SubscriptionLoss triggers a resync.
const (
	ErrLoadFailure ErrorCode = iota + 2000
	ErrWriteFailure
	ErrAIFailure
	ErrSubscriptionLoss
)

// ErrEchoTimeout is returned by Gateway.Await when a mutation's change event
// does not come back through the feed before the deadline.
var ErrEchoTimeout = &AppError{
	Code:    ErrWriteFailure,
	Message: "mutation was not echoed by the change feed",
}

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func NewLoadFailure(collection string, err error) *AppError {
	return &AppError{
		Code:    ErrLoadFailure,
		Message: fmt.Sprintf("bulk load of %s failed", collection),
		Err:     err,
	}
}

func NewWriteFailure(op string, err error) *AppError {
	return &AppError{
		Code:    ErrWriteFailure,
		Message: fmt.Sprintf("%s write failed", op),
		Err:     err,
	}
}

func NewSubscriptionLoss(err error) *AppError {
	return &AppError{
		Code:    ErrSubscriptionLoss,
		Message: "change feed subscription lost",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// IsWriteFailure reports whether err is a write failure, including an echo
// timeout.
func IsWriteFailure(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrWriteFailure
	}
	return false
}
