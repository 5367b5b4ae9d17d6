package service

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures surfaced to callers
type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeProtocolMismatch ErrorCode = "PROTOCOL_MISMATCH"
	CodeSystemFailure    ErrorCode = "SYSTEM_FAILURE"
)

// Error is a typed failure. Two Errors match under errors.Is when their codes are equal.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrValidation       = &Error{Code: CodeValidation}
	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrProtocolMismatch = &Error{Code: CodeProtocolMismatch}
	ErrSystemFailure    = &Error{Code: CodeSystemFailure}
)

// ErrUnknownSegment is returned when a segment name has no predicate for the program's protocol.
// It indicates a caller bug rather than bad user input, so it carries no ErrorCode.
var ErrUnknownSegment = errors.New("unknown segment")

func validationError(format string, args ...any) error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func systemFailure(err error, format string, args ...any) error {
	return &Error{Code: CodeSystemFailure, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the ErrorCode of err, or "" when err is not a typed service error
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
