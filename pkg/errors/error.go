// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters, signals, orders, configuration
//   - Exchange errors (200-299): Venue connectivity, auth, and request failures
//   - Execution errors (300-399): Order execution and lifecycle errors
//   - Risk errors (400-499): Risk gate rejections
//   - Position errors (500-599): Position table and lifecycle errors
//   - Feed errors (600-699): Market data feed errors
//   - Engine errors (700-799): Orchestration and startup/shutdown errors
//   - Callback errors (800-899): Callback execution failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodePositionNotFound, "no position for symbol %s", symbol)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeExchangeRequest, "failed to fetch account", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodePositionNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// TransientError represents a venue I/O failure that is expected to succeed on
// retry (network timeouts, rate limits, 5xx responses). The live execution
// path retries these with a bounded count; any other error fails immediately.
type TransientError struct {
	Op      string // operation that failed, e.g. "create_order"
	Symbol  string // optional: symbol context
	Message string // human-readable message
	Cause   error
}

// NewTransientError creates a new TransientError.
func NewTransientError(op, symbol, message string, cause error) *TransientError {
	return &TransientError{
		Op:      op,
		Symbol:  symbol,
		Message: message,
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *TransientError) Unwrap() error {
	return e.Cause
}

// IsTransient checks if an error is a TransientError.
// It uses errors.As to check the error chain.
func IsTransient(err error) bool {
	var transientErr *TransientError

	return errors.As(err, &transientErr)
}
