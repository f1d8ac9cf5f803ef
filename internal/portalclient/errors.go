package portalclient

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a connection-level failure
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the request timed out
	ErrTypeTimeout
	// ErrTypeRejected indicates the portal refused the submitted values
	ErrTypeRejected
	// ErrTypeHTTP indicates an unexpected status code
	ErrTypeHTTP
	// ErrTypeNotPortal indicates the server answered but is not a portal
	ErrTypeNotPortal
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeRejected:
		return "Rejected"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeNotPortal:
		return "Not a Portal"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is returned by Client operations.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyNetworkError wraps a transport error. Refused connections are
// retryable: the portal may still be starting its HTTP phase.
func classifyNetworkError(message string, err error) *Error {
	if os.IsTimeout(err) {
		return &Error{Type: ErrTypeTimeout, Message: message, Err: err, Retryable: true}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{Type: ErrTypeNetwork, Message: message + ": connection refused", Err: err, Retryable: true}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &Error{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: true}
	}
	return &Error{Type: ErrTypeNetwork, Message: message, Err: err}
}

// IsRejected reports whether the portal refused the submission.
func IsRejected(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrTypeRejected
}

// IsRetryable reports whether another attempt may succeed.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
