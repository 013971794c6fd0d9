package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the routing engine.
type ErrorCode string

const (
	// ErrValidation indicates malformed input to a store write. Fatal to
	// the single call, never retried.
	ErrValidation ErrorCode = "VALIDATION"
	// ErrNotFound indicates a referenced agent or edge is absent. Surfaced
	// to the caller, not retried.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrTransport indicates an agent or collaborator was unreachable or
	// timed out. Retried up to the configured bound.
	ErrTransport ErrorCode = "TRANSPORT"
	// ErrLowConfidence is not a failure: it marks a discovery miss that
	// triggers neurogenesis.
	ErrLowConfidence ErrorCode = "LOW_CONFIDENCE"
	// ErrNeurogenesisFailed indicates a terminal expansion failure,
	// surfaced as a task-level error with reason detail.
	ErrNeurogenesisFailed ErrorCode = "NEUROGENESIS_FAILED"
	// ErrStoreUnavailable indicates the capability store backend rejected
	// or lost the operation.
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// Error is a structured error with code, message, and optional cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: code == ErrTransport}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable overrides the retryable flag.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable checks if an error is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return GetErrorCode(err) == ErrValidation }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return GetErrorCode(err) == ErrNotFound }

// IsTransport reports whether err is a transport error.
func IsTransport(err error) bool { return GetErrorCode(err) == ErrTransport }
