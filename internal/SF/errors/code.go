package errors

import "fmt"

// ErrorCode is a sqlvibe result code following the SQLite numbering scheme:
// the low byte holds the primary code, the upper bits the extended detail.
type ErrorCode int32

// Primary error codes.
const (
	SVDB_OK         ErrorCode = 0
	SVDB_ERROR      ErrorCode = 1
	SVDB_INTERNAL   ErrorCode = 2
	SVDB_ABORT      ErrorCode = 4
	SVDB_NOMEM      ErrorCode = 7
	SVDB_NOTFOUND   ErrorCode = 12
	SVDB_SCHEMA     ErrorCode = 17
	SVDB_TOOBIG     ErrorCode = 18
	SVDB_CONSTRAINT ErrorCode = 19
	SVDB_MISMATCH   ErrorCode = 20
	SVDB_MISUSE     ErrorCode = 21
	SVDB_RANGE      ErrorCode = 25
)

// Extended error codes.
const (
	SVDB_CONSTRAINT_CHECK      ErrorCode = 275  // 19 | (1 << 8)
	SVDB_CONSTRAINT_FOREIGNKEY ErrorCode = 787  // 19 | (3 << 8)
	SVDB_CONSTRAINT_NOTNULL    ErrorCode = 1299 // 19 | (5 << 8)
	SVDB_CONSTRAINT_PRIMARYKEY ErrorCode = 1555 // 19 | (6 << 8)
	SVDB_CONSTRAINT_TRIGGER    ErrorCode = 1811 // 19 | (7 << 8)
	SVDB_CONSTRAINT_UNIQUE     ErrorCode = 2067 // 19 | (8 << 8)
	SVDB_CONSTRAINT_DATATYPE   ErrorCode = 3091 // 19 | (12 << 8)

	// SCHEMA extended codes used by DDL compilation.
	SVDB_SCHEMA_EXISTS    ErrorCode = 273 // 17 | (1 << 8)
	SVDB_SCHEMA_NOTEXISTS ErrorCode = 529 // 17 | (2 << 8)
	SVDB_SCHEMA_DEPENDENT ErrorCode = 785 // 17 | (3 << 8)

	SVDB_ABORT_ROLLBACK ErrorCode = 516 // 4 | (2 << 8)
)

var codeNames = map[ErrorCode]string{
	SVDB_OK:         "SVDB_OK",
	SVDB_ERROR:      "SVDB_ERROR",
	SVDB_INTERNAL:   "SVDB_INTERNAL",
	SVDB_ABORT:      "SVDB_ABORT",
	SVDB_NOMEM:      "SVDB_NOMEM",
	SVDB_NOTFOUND:   "SVDB_NOTFOUND",
	SVDB_SCHEMA:     "SVDB_SCHEMA",
	SVDB_TOOBIG:     "SVDB_TOOBIG",
	SVDB_CONSTRAINT: "SVDB_CONSTRAINT",
	SVDB_MISMATCH:   "SVDB_MISMATCH",
	SVDB_MISUSE:     "SVDB_MISUSE",
	SVDB_RANGE:      "SVDB_RANGE",

	SVDB_CONSTRAINT_CHECK:      "SVDB_CONSTRAINT_CHECK",
	SVDB_CONSTRAINT_FOREIGNKEY: "SVDB_CONSTRAINT_FOREIGNKEY",
	SVDB_CONSTRAINT_NOTNULL:    "SVDB_CONSTRAINT_NOTNULL",
	SVDB_CONSTRAINT_PRIMARYKEY: "SVDB_CONSTRAINT_PRIMARYKEY",
	SVDB_CONSTRAINT_TRIGGER:    "SVDB_CONSTRAINT_TRIGGER",
	SVDB_CONSTRAINT_UNIQUE:     "SVDB_CONSTRAINT_UNIQUE",
	SVDB_CONSTRAINT_DATATYPE:   "SVDB_CONSTRAINT_DATATYPE",
	SVDB_SCHEMA_EXISTS:         "SVDB_SCHEMA_EXISTS",
	SVDB_SCHEMA_NOTEXISTS:      "SVDB_SCHEMA_NOTEXISTS",
	SVDB_SCHEMA_DEPENDENT:      "SVDB_SCHEMA_DEPENDENT",
	SVDB_ABORT_ROLLBACK:        "SVDB_ABORT_ROLLBACK",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("SVDB_UNKNOWN(%d)", int32(c))
}

// Primary strips the extended bits.
func (c ErrorCode) Primary() ErrorCode {
	return c & 0xff
}

// ParseErrorCode maps a symbolic name such as "SVDB_CONSTRAINT_UNIQUE"
// back to its code.
func ParseErrorCode(name string) (ErrorCode, bool) {
	for code, n := range codeNames {
		if n == name {
			return code, true
		}
	}
	return SVDB_OK, false
}
