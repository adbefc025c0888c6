package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	// ErrorInvalidInput is a caller mistake; the handler answers 400.
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrorInternal is a fault the caller never sees; the handler greets.
	ErrorInternal ErrorCode = "INTERNAL_ERROR"
)

// Reasons carried by *Error.
const (
	ReasonMessageTooLong   = "message_too_long"
	ReasonInvalidSessionID = "invalid_session_id"
	ReasonStateLoad        = "state_load_error"
	ReasonStateSave        = "state_save_error"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsInvalidInput returns the reason when err is an INVALID_INPUT *Error.
func AsInvalidInput(err error) (string, bool) {
	var ucErr *Error
	if errors.As(err, &ucErr) && ucErr.Code == ErrorInvalidInput {
		return ucErr.Reason, true
	}
	return "", false
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
