// Package errors provides the structured error type shared by the
// compiler, the schema cache and the reference executor.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the taxonomy the compiler reports.
type Kind int

const (
	KindNone Kind = iota
	// KindIdentifier covers names that are too long, malformed or duplicated.
	KindIdentifier
	// KindStructural covers malformed definitions: missing or duplicate
	// primary keys, key column-count mismatches, bad expressions.
	KindStructural
	// KindReference covers unknown tables or columns, views used where a
	// table is required and unsupported index kinds.
	KindReference
	// KindResource covers allocation failures while building objects.
	KindResource
	// KindPrecondition covers IF [NOT] EXISTS guards.
	KindPrecondition
	// KindRuntime covers errors raised while a program executes.
	KindRuntime
)

var kindNames = []string{"none", "identifier", "structural", "reference", "resource", "precondition", "runtime"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a structured sqlvibe error carrying an error code, a taxonomy
// kind, a human-readable message and an optional wrapped cause.
type Error struct {
	Code     ErrorCode
	Kind     Kind
	Message  string
	Err      error
	SQLState string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

// Unwrap returns the wrapped error for use with errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches target. Two *Error values match
// when their codes are equal.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new *Error.
func New(code ErrorCode, kind Kind, msg string) *Error {
	return &Error{Code: code, Kind: kind, Message: msg}
}

// Errorf creates a new *Error with a formatted message.
func Errorf(code ErrorCode, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Code: code, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new *Error around cause.
func Wrap(code ErrorCode, kind Kind, msg string, cause error) *Error {
	return &Error{Code: code, Kind: kind, Message: msg, Err: cause}
}

// ErrorCodeOf returns the ErrorCode of err: SVDB_OK for nil, the code of
// the first *Error in the chain, SVDB_ERROR otherwise.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return SVDB_OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return SVDB_ERROR
}

// KindOf returns the taxonomy kind of err.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// IsErrorCode reports whether err carries the given error code.
func IsErrorCode(err error, code ErrorCode) bool {
	return ErrorCodeOf(err) == code
}

// MessageOf returns the bare diagnostic of err without the code prefix.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
