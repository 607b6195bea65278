package sqlvibe

import (
	"context"
	stderrors "errors"
	"io"
	"os"

	"github.com/sqlvibe/svcomp/internal/SF/errors"
)

// Error is a structured sqlvibe error carrying an error code, the error
// kind, a human-readable message, and an optional wrapped underlying error.
type Error = errors.Error

// ErrorCode represents a sqlvibe error code following the SQLite error code convention.
type ErrorCode = errors.ErrorCode

const (
	SVDB_OK         = errors.SVDB_OK
	SVDB_ERROR      = errors.SVDB_ERROR
	SVDB_INTERNAL   = errors.SVDB_INTERNAL
	SVDB_ABORT      = errors.SVDB_ABORT
	SVDB_NOMEM      = errors.SVDB_NOMEM
	SVDB_NOTFOUND   = errors.SVDB_NOTFOUND
	SVDB_SCHEMA     = errors.SVDB_SCHEMA
	SVDB_TOOBIG     = errors.SVDB_TOOBIG
	SVDB_CONSTRAINT = errors.SVDB_CONSTRAINT
	SVDB_MISMATCH   = errors.SVDB_MISMATCH
	SVDB_MISUSE     = errors.SVDB_MISUSE
	SVDB_RANGE      = errors.SVDB_RANGE

	SVDB_CONSTRAINT_CHECK      = errors.SVDB_CONSTRAINT_CHECK
	SVDB_CONSTRAINT_FOREIGNKEY = errors.SVDB_CONSTRAINT_FOREIGNKEY
	SVDB_CONSTRAINT_NOTNULL    = errors.SVDB_CONSTRAINT_NOTNULL
	SVDB_CONSTRAINT_PRIMARYKEY = errors.SVDB_CONSTRAINT_PRIMARYKEY
	SVDB_CONSTRAINT_TRIGGER    = errors.SVDB_CONSTRAINT_TRIGGER
	SVDB_CONSTRAINT_UNIQUE     = errors.SVDB_CONSTRAINT_UNIQUE
	SVDB_CONSTRAINT_DATATYPE   = errors.SVDB_CONSTRAINT_DATATYPE

	SVDB_SCHEMA_EXISTS    = errors.SVDB_SCHEMA_EXISTS
	SVDB_SCHEMA_NOTEXISTS = errors.SVDB_SCHEMA_NOTEXISTS
	SVDB_SCHEMA_DEPENDENT = errors.SVDB_SCHEMA_DEPENDENT
	SVDB_ABORT_ROLLBACK   = errors.SVDB_ABORT_ROLLBACK
)

// NewError creates a new *Error with the given code and message.
func NewError(code ErrorCode, msg string) *Error {
	return errors.New(code, errors.KindNone, msg)
}

// Errorf creates a new *Error with the given code and a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return errors.Errorf(code, errors.KindNone, format, args...)
}

// ErrorCodeOf returns the ErrorCode of err.
// Returns SVDB_OK for nil, the code from any *Error in the chain, or SVDB_ERROR
// for any other non-nil error.
func ErrorCodeOf(err error) ErrorCode {
	return errors.ErrorCodeOf(err)
}

// IsErrorCode reports whether err carries the given error code.
func IsErrorCode(err error, code ErrorCode) bool {
	return errors.IsErrorCode(err, code)
}

// ToError converts an arbitrary error to a *Error with an appropriate code.
// If err is already a *Error it is returned unchanged.
// If err is nil, nil is returned.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}

	var se *Error
	if stderrors.As(err, &se) {
		return se
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		return errors.Wrap(SVDB_ABORT, errors.KindRuntime, "statement canceled", err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(SVDB_ABORT, errors.KindRuntime, "statement deadline exceeded", err)
	case stderrors.Is(err, io.EOF), stderrors.Is(err, io.ErrUnexpectedEOF):
		return errors.Wrap(SVDB_ERROR, errors.KindStructural, err.Error(), err)
	case stderrors.Is(err, os.ErrNotExist):
		return errors.Wrap(SVDB_NOTFOUND, errors.KindResource, err.Error(), err)
	}
	return errors.Wrap(SVDB_ERROR, errors.KindRuntime, err.Error(), err)
}
