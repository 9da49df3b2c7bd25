// Package errors provides unified error handling with typed failure codes.
// Codes cover the full verification failure taxonomy so callers can decide
// UI messaging per reason instead of matching on message strings.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code identifies a failure class.
type Code int

const (
	CodeUnknown Code = iota

	// Verification backend failures
	CodeNotFound
	CodeLowConfidence
	CodeUnavailable
	CodeTimeout
	CodeMalformedResponse

	// Face processing failures
	CodePreprocessFailed
	CodeModelOutputMissing

	// Pipeline preconditions
	CodeNoTargetIdentity
	CodeCancelled
)

var codeNames = map[Code]string{
	CodeUnknown:            "UNKNOWN",
	CodeNotFound:           "NOT_FOUND",
	CodeLowConfidence:      "LOW_CONFIDENCE",
	CodeUnavailable:        "UNAVAILABLE",
	CodeTimeout:            "TIMEOUT",
	CodeMalformedResponse:  "MALFORMED_RESPONSE",
	CodePreprocessFailed:   "PREPROCESS_FAILED",
	CodeModelOutputMissing: "MODEL_OUTPUT_MISSING",
	CodeNoTargetIdentity:   "NO_TARGET_IDENTITY",
	CodeCancelled:          "CANCELLED",
}

// String returns the stable name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// AppError is the base error type with structured code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// CodeOf extracts the failure code from an error chain.
// Non-AppError values report CodeUnknown.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific failure code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
// Only transport-level conditions qualify; identity mismatches never do.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeUnavailable, CodeTimeout:
		return true
	default:
		return false
	}
}
