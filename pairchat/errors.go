package pairchat

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// Transport errors (retried by the poll loop unless leaving)
	ErrorTransport
	ErrorTimeout
	ErrorServerStatus

	// Snapshot errors (logged, no event applied)
	ErrorEmptySnapshot
	ErrorMalformedSnapshot

	// Validation errors (surfaced to the user, no network call)
	ErrorEmptyMessage
	ErrorNotYourTurn
	ErrorTooShort
	ErrorSendInFlight

	// Client-side errors
	ErrorCanceled
	ErrorLeaving
	ErrorSessionClosed
	ErrorInvalidConfig
	ErrorSerialization
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorTransport:
		return "transport_error"
	case ErrorTimeout:
		return "timeout"
	case ErrorServerStatus:
		return "server_status"
	case ErrorEmptySnapshot:
		return "empty_snapshot"
	case ErrorMalformedSnapshot:
		return "malformed_snapshot"
	case ErrorEmptyMessage:
		return "empty_message"
	case ErrorNotYourTurn:
		return "not_your_turn"
	case ErrorTooShort:
		return "too_short"
	case ErrorSendInFlight:
		return "send_in_flight"
	case ErrorCanceled:
		return "canceled"
	case ErrorLeaving:
		return "leaving"
	case ErrorSessionClosed:
		return "session_closed"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorSerialization:
		return "serialization_error"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ChatError is a structured error with code and context.
type ChatError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *ChatError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface for error comparison.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new ChatError with the given code and message.
func NewError(code ErrorCode, message string) *ChatError {
	return &ChatError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a ChatError.
func WrapError(code ErrorCode, message string, err error) *ChatError {
	return &ChatError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// Sentinels for errors.Is comparisons; only the code is compared.
var (
	ErrEmptySnapshot     = NewError(ErrorEmptySnapshot, "empty snapshot")
	ErrMalformedSnapshot = NewError(ErrorMalformedSnapshot, "malformed snapshot")
	ErrEmptyMessage      = NewError(ErrorEmptyMessage, "empty message")
	ErrNotYourTurn       = NewError(ErrorNotYourTurn, "wait for the other participant")
	ErrTooShort          = NewError(ErrorTooShort, "conversation too short to stop")
	ErrSendInFlight      = NewError(ErrorSendInFlight, "a message is already being sent")
	ErrLeaving           = NewError(ErrorLeaving, "session is leaving the room")
	ErrSessionClosed     = NewError(ErrorSessionClosed, "session is not running")
	ErrInvalidConfig     = NewError(ErrorInvalidConfig, "invalid config")
)

// CodeOf returns the ErrorCode carried by err, or ErrorUnknown.
func CodeOf(err error) ErrorCode {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrorUnknown
}

// IsTransportError checks if an error should be retried by the poll loop.
func IsTransportError(err error) bool {
	switch CodeOf(err) {
	case ErrorTransport, ErrorTimeout, ErrorServerStatus:
		return true
	default:
		return false
	}
}

// IsSnapshotError checks if an error came from an unusable server response.
func IsSnapshotError(err error) bool {
	switch CodeOf(err) {
	case ErrorEmptySnapshot, ErrorMalformedSnapshot, ErrorSerialization:
		return true
	default:
		return false
	}
}

// IsValidationError checks if an error was raised before any network call.
func IsValidationError(err error) bool {
	c := CodeOf(err)
	return c >= ErrorEmptyMessage && c <= ErrorSendInFlight
}
