package portal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeScan indicates the radio could not start or finish a scan
	ErrTypeScan ErrorType = iota
	// ErrTypeAccessPoint indicates the soft-AP could not be brought up
	ErrTypeAccessPoint
	// ErrTypeHTTP indicates the config endpoint could not listen
	ErrTypeHTTP
	// ErrTypeDNS indicates the DNS redirector could not bind
	ErrTypeDNS
	// ErrTypeValidation indicates a rejected credential submission or config value
	ErrTypeValidation
	// ErrTypeNotReady indicates credentials were requested before the session finished
	ErrTypeNotReady
	// ErrTypeSessionActive indicates a second session was created while one is live
	ErrTypeSessionActive
	// ErrTypeUnknown indicates an unknown or unexpected error
	ErrTypeUnknown
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeScan:
		return "Scan Error"
	case ErrTypeAccessPoint:
		return "Access Point Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeNotReady:
		return "Not Ready"
	case ErrTypeSessionActive:
		return "Session Active"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is returned by every fallible portal operation
type Error struct {
	Type      ErrorType // Category of error
	Message   string    // Human-readable error message
	Err       error     // Underlying error (if any)
	Retryable bool      // Whether a fresh session may succeed
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewScanError creates a scan error. Scans are restarted, so it is retryable.
func NewScanError(message string, err error) *Error {
	return &Error{Type: ErrTypeScan, Message: message, Err: err, Retryable: true}
}

// NewAccessPointError creates a soft-AP start-up error
func NewAccessPointError(message string, err error) *Error {
	return &Error{Type: ErrTypeAccessPoint, Message: message, Err: err}
}

// NewHTTPError creates an HTTP listener error
func NewHTTPError(message string, err error) *Error {
	return &Error{Type: ErrTypeHTTP, Message: message, Err: err}
}

// NewDNSError creates a DNS redirector error
func NewDNSError(message string, err error) *Error {
	return &Error{Type: ErrTypeDNS, Message: message, Err: err}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *Error {
	return &Error{Type: ErrTypeValidation, Message: message}
}

// NewNotReadyError creates the error Config returns before Done
func NewNotReadyError(state State) *Error {
	return &Error{
		Type:      ErrTypeNotReady,
		Message:   fmt.Sprintf("no credentials captured yet (state %s)", state),
		Retryable: true,
	}
}

// NewSessionActiveError creates the error NewSession returns when the registry is occupied
func NewSessionActiveError() *Error {
	return &Error{Type: ErrTypeSessionActive, Message: "a portal session is already live"}
}

func errorType(err error) (ErrorType, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Type, true
	}
	return ErrTypeUnknown, false
}

// IsStartupError checks if an error stopped a session from reaching Serving
func IsStartupError(err error) bool {
	t, ok := errorType(err)
	return ok && (t == ErrTypeAccessPoint || t == ErrTypeHTTP || t == ErrTypeDNS)
}

// IsAccessPointError checks if an error is a soft-AP error
func IsAccessPointError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeAccessPoint
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeValidation
}

// IsNotReadyError checks if an error means credentials are not captured yet
func IsNotReadyError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeNotReady
}

// IsSessionActiveError checks if an error means another session holds the registry
func IsSessionActiveError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeSessionActive
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-friendly troubleshooting advice for an error
func GetTroubleshootingHint(err error) string {
	t, ok := errorType(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch t {
	case ErrTypeScan:
		return strings.Join([]string{
			"The Wi-Fi scan did not complete.",
			"Troubleshooting:",
			"  • Check the interface name with: iw dev",
			"  • Make sure no other process (NetworkManager, wpa_supplicant) holds the interface",
			"  • Scanning requires root or CAP_NET_ADMIN",
		}, "\n")

	case ErrTypeAccessPoint:
		return strings.Join([]string{
			"The configuration access point could not be started.",
			"Troubleshooting:",
			"  • Verify the adapter supports AP mode: iw list | grep -A8 'Supported interface modes'",
			"  • Stop NetworkManager or mark the interface unmanaged",
			"  • Check that hostapd is installed and on PATH",
			"  • Try a different channel with --channel",
		}, "\n")

	case ErrTypeHTTP:
		return strings.Join([]string{
			"The configuration page could not be served.",
			"Troubleshooting:",
			"  • Another web server may already be bound to port 80",
			"  • Binding ports below 1024 requires root or CAP_NET_BIND_SERVICE",
			"  • Use --http-port to pick another port for testing",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"The DNS redirector could not bind.",
			"Troubleshooting:",
			"  • systemd-resolved or dnsmasq may already hold port 53",
			"  • Binding ports below 1024 requires root or CAP_NET_BIND_SERVICE",
			"  • Use --dns-port to pick another port for testing",
		}, "\n")

	case ErrTypeSessionActive:
		return "Only one portal session can run at a time. Close the existing session first."

	case ErrTypeNotReady:
		return "Credentials are only available once the portal has finished."

	case ErrTypeValidation:
		return "The submitted values are invalid. Check the error message for details."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

// GetShortErrorMessage returns a concise, user-friendly error message
func GetShortErrorMessage(err error) string {
	var pe *Error
	if !errors.As(err, &pe) {
		return err.Error()
	}

	switch pe.Type {
	case ErrTypeScan:
		return "Wi-Fi scan failed"
	case ErrTypeAccessPoint:
		return "Could not start the configuration access point"
	case ErrTypeHTTP:
		return "Could not start the configuration page server"
	case ErrTypeDNS:
		return "Could not start the DNS redirector"
	case ErrTypeSessionActive:
		return "A portal session is already running"
	default:
		return pe.Message
	}
}
