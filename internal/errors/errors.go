package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// RepositoryNotFound indicates the repository path does not exist
	RepositoryNotFound ErrorCode = "REPOSITORY_NOT_FOUND"
	// ServerUnavailable indicates a language server failed to start or died
	ServerUnavailable ErrorCode = "SERVER_UNAVAILABLE"
	// Timeout indicates a per-request timeout elapsed
	Timeout ErrorCode = "TIMEOUT"
	// ProtocolViolation indicates a malformed or unexpected server message
	ProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
	// DeadlineExceeded indicates the whole-run deadline expired
	DeadlineExceeded ErrorCode = "DEADLINE_EXCEEDED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// SweepError represents an analysis error with a stable code
type SweepError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// New creates a new SweepError
func New(code ErrorCode, message string, cause error) *SweepError {
	return &SweepError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error implements the error interface
func (e *SweepError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *SweepError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *SweepError) WithDetails(details interface{}) *SweepError {
	e.Details = details
	return e
}

// IsCode reports whether err is (or wraps) a SweepError with the given code
func IsCode(err error, code ErrorCode) bool {
	var se *SweepError
	if stderrors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// CodeOf returns the error code of err, or InternalError for untyped errors
func CodeOf(err error) ErrorCode {
	var se *SweepError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return InternalError
}
