// Package errors provides error types and handling for the capture engine.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Decode represents payload decompression/decoding failures.
	Decode
	// Recovery represents a payload that defeated the recovery pass. Errors
	// of this type degrade a single entry and are never surfaced to callers.
	Recovery
	// Security represents an unsupported security scheme kind. This is an
	// integration error and propagates to the caller.
	Security
	// Storage represents a persistence collaborator failure. The engine
	// continues in-memory when these occur.
	Storage
	// Transport represents proxy/forwarding failures.
	Transport
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Decode:
		return "decode"
	case Recovery:
		return "recovery"
	case Security:
		return "security"
	case Storage:
		return "storage"
	case Transport:
		return "transport"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Recoverable reports whether errors of this type degrade a single entry
// instead of interrupting exchange processing.
func (t ErrorType) Recoverable() bool {
	switch t {
	case Decode, Recovery, Storage:
		return true
	default:
		return false
	}
}

// CaptureError represents a categorized capture error.
type CaptureError struct {
	Type      ErrorType
	Operation string
	Subject   string // endpoint key, scheme kind, or store path
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.Subject, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.Subject, e.Message)
}

// Unwrap returns the underlying error.
func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target by type.
func (e *CaptureError) Is(target error) bool {
	t, ok := target.(*CaptureError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates a new CaptureError.
func New(errType ErrorType, operation, subject, message string, cause error) *CaptureError {
	return &CaptureError{
		Type:      errType,
		Operation: operation,
		Subject:   subject,
		Message:   message,
		Cause:     cause,
	}
}

// NewDecodeError creates a payload decoding error.
func NewDecodeError(subject string, cause error) *CaptureError {
	return New(Decode, "decode_payload", subject, "payload could not be decoded", cause)
}

// NewRecoveryError creates a recovery error for text the repair pass could
// not interpret.
func NewRecoveryError(subject string) *CaptureError {
	return New(Recovery, "recover_payload", subject, "payload is unstructured", nil)
}

// NewUnsupportedSecurityKind creates the error raised for a security hint
// kind the registry does not understand.
func NewUnsupportedSecurityKind(kind string) *CaptureError {
	return New(Security, "register_scheme", kind, "unsupported security scheme kind", nil)
}

// NewStorageError creates a persistence failure error.
func NewStorageError(operation, path string, cause error) *CaptureError {
	return New(Storage, operation, path, "storage unavailable", cause)
}

// NewTransportError creates a forwarding failure error.
func NewTransportError(url string, cause error) *CaptureError {
	return New(Transport, "forward", url, "upstream request failed", cause)
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var capErr *CaptureError
	if errors.As(err, &capErr) {
		return capErr.Type
	}
	return Unknown
}

// IsRecoverable reports whether an error may be swallowed after degrading
// the affected entry.
func IsRecoverable(err error) bool {
	var capErr *CaptureError
	if errors.As(err, &capErr) {
		return capErr.Type.Recoverable()
	}
	return false
}

// IsUnsupportedSecurityKind checks for the security integration error.
func IsUnsupportedSecurityKind(err error) bool {
	var capErr *CaptureError
	if errors.As(err, &capErr) {
		return capErr.Type == Security
	}
	return false
}

// IsStorageError checks for persistence collaborator failures.
func IsStorageError(err error) bool {
	var capErr *CaptureError
	if errors.As(err, &capErr) {
		return capErr.Type == Storage
	}
	return false
}
