package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed engine error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for the sync engine.
var (
	// ErrQueued is a distinguished non-failure: the write could not reach
	// the remote store and was parked in the offline queue. Callers should
	// treat the data as safe but pending.
	ErrQueued = New("WRITE_QUEUED", http.StatusAccepted, "write queued for later delivery")

	ErrRemoteUnavailable = New("REMOTE_UNAVAILABLE", http.StatusServiceUnavailable, "remote store unreachable")
	ErrRemoteRejected    = New("REMOTE_REJECTED", http.StatusUnprocessableEntity, "remote store rejected the write")
	ErrDuplicateIdentity = New("DUPLICATE_IDENTITY", http.StatusConflict, "identity already exists")
	ErrDeadLetter        = New("WRITE_DEAD_LETTER", http.StatusGone, "queued write exceeded its retry cap")
	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrValidation        = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrMalformedInput    = New("MALFORMED_INPUT", http.StatusBadRequest, "input structure is malformed")
	ErrInternal          = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal error")
)

// IsQueued reports whether err resolves to ErrQueued.
func IsQueued(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrQueued.Code
}

// IsTransient reports whether err is recoverable by waiting and retrying.
// Only remote unavailability qualifies; validation, duplicate and permission
// failures will not heal on their own.
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrRemoteUnavailable.Code
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
