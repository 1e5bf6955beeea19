package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies domain failures so the transport boundary can map
// them to caller-facing responses without string matching.
type ErrorCode string

const (
	CodeUnauthorized   ErrorCode = "Unauthorized"
	CodeInvalidState   ErrorCode = "InvalidState"
	CodeInvalidInput   ErrorCode = "InvalidInput"
	CodeNotFound       ErrorCode = "NotFound"
	CodeStorageFailure ErrorCode = "StorageFailure"
)

// Error is a typed domain failure carrying a machine code and a
// human-readable message.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// ErrUnauthorized reports a caller lacking the role or ownership required.
func ErrUnauthorized(msg string) error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// ErrInvalidState reports an operation illegal in the current lifecycle state.
func ErrInvalidState(msg string) error {
	return &Error{Code: CodeInvalidState, Message: msg}
}

// ErrInvalidInput reports a malformed or missing required value.
func ErrInvalidInput(msg string) error {
	return &Error{Code: CodeInvalidInput, Message: msg}
}

// ErrNotFound reports an absent referenced entity.
func ErrNotFound(kind, id string) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %q not found", kind, id)}
}

// ErrStorage wraps a persistence-layer failure. It is never interpreted
// as a domain outcome.
func ErrStorage(op string, cause error) error {
	return &Error{Code: CodeStorageFailure, Message: op, cause: cause}
}

// CodeOf extracts the error code, or StorageFailure for unclassified errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeStorageFailure
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
