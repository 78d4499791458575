package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures across the pipeline
type ErrorType string

const (
	// ErrorTypeElement means a required UI element could not be resolved
	// through any candidate selector. Fatal to the run.
	ErrorTypeElement ErrorType = "element"
	// ErrorTypeAuth means authentication was rejected by the host.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeNetwork covers transport-level request failures.
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeTransfer covers failures while streaming a file to disk.
	ErrorTypeTransfer ErrorType = "transfer"
	// ErrorTypeExtraction covers in-page data extraction anomalies.
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeMissingURL means a rendition has no usable locator. Soft.
	ErrorTypeMissingURL ErrorType = "missing_url"
	// ErrorTypeTimeout means a bounded wait expired. Soft.
	ErrorTypeTimeout ErrorType = "timeout"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error is a classified pipeline error
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Newf creates a classified error with a formatted message
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error wrapping a cause
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// WithCode attaches an HTTP status code
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// TypeOf returns the classification of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsSoft reports whether err is expected/soft: reported per rendition,
// never fatal to the run.
func IsSoft(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeMissingURL, ErrorTypeTimeout:
		return true
	}
	return false
}

// IsFatal reports whether err must abort the run before any download.
func IsFatal(err error) bool {
	return TypeOf(err) == ErrorTypeElement
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeAuth, ErrorTypeElement, ErrorTypeMissingURL, ErrorTypeExtraction:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500
	}
}
