package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorCategory is the closed taxonomy attached to fetch failures.
type ErrorCategory string

const (
	ErrRateLimit      ErrorCategory = "rate_limit"
	ErrTimeout        ErrorCategory = "timeout"
	ErrAuthentication ErrorCategory = "authentication"
	ErrNotFound       ErrorCategory = "not_found"
	ErrServer         ErrorCategory = "server_error"
	ErrParse          ErrorCategory = "parse_error"
	ErrUnknown        ErrorCategory = "unknown"
)

// Error is a categorized fetch failure. It wraps the underlying cause so
// callers can still inspect it with errors.As/Is.
type Error struct {
	Category   ErrorCategory
	StatusCode int
	Message    string
	cause      error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Category, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds a categorized error wrapping cause.
func NewError(cat ErrorCategory, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Category: cat, Message: msg, cause: cause}
}

// StatusError categorizes an unexpected HTTP status code.
func StatusError(code int, body string) *Error {
	return &Error{Category: categoryForStatus(code), StatusCode: code, Message: body}
}

func categoryForStatus(code int) ErrorCategory {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuthentication
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ErrTimeout
	case code >= 500:
		return ErrServer
	default:
		return ErrUnknown
	}
}

// Classify maps an arbitrary error onto the taxonomy. Already-categorized
// errors keep their category; otherwise network shape decides.
func Classify(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return ErrTimeout
		}
		// Connection-level failures behave like server unavailability.
		return ErrServer
	}
	return ErrUnknown
}

// Transient reports whether a category is worth retrying. Client-side
// failures (auth, not found, parse) fail fast.
func Transient(cat ErrorCategory) bool {
	switch cat {
	case ErrRateLimit, ErrTimeout, ErrServer:
		return true
	default:
		return false
	}
}
