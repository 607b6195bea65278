package errors

import "errors"

// SQLSTATE codes (SQL standard ISO/IEC 9075)
const (
	SQLState_OK                           = "00000"
	SQLState_NumericValueOutOfRange       = "22003"
	SQLState_IntegrityConstraintViolation = "23000"
	SQLState_NotNullViolation             = "23502"
	SQLState_ForeignKeyViolation          = "23503"
	SQLState_UniqueViolation              = "23505"
	SQLState_CheckViolation               = "23514"
	SQLState_InvalidName                  = "42602"
	SQLState_UndefinedObject              = "42704"
	SQLState_DuplicateObject              = "42710"
	SQLState_DependentObjects             = "2BP01"
	SQLState_InvalidDefinition            = "42P16"
)

// WithSQLState returns a copy of e with the given SQLState code.
func WithSQLState(e *Error, state string) *Error {
	cp := *e
	cp.SQLState = state
	return &cp
}

// SQLStateOf returns the SQLSTATE code for the error, or "00000" if nil.
func SQLStateOf(err error) string {
	if err == nil {
		return SQLState_OK
	}
	var e *Error
	if errors.As(err, &e) && e.SQLState != "" {
		return e.SQLState
	}
	switch ErrorCodeOf(err) {
	case SVDB_CONSTRAINT_UNIQUE, SVDB_CONSTRAINT_PRIMARYKEY:
		return SQLState_UniqueViolation
	case SVDB_CONSTRAINT_FOREIGNKEY:
		return SQLState_ForeignKeyViolation
	case SVDB_CONSTRAINT_NOTNULL:
		return SQLState_NotNullViolation
	case SVDB_CONSTRAINT_CHECK:
		return SQLState_CheckViolation
	case SVDB_CONSTRAINT:
		return SQLState_IntegrityConstraintViolation
	case SVDB_SCHEMA_EXISTS:
		return SQLState_DuplicateObject
	case SVDB_SCHEMA_NOTEXISTS:
		return SQLState_UndefinedObject
	case SVDB_SCHEMA_DEPENDENT:
		return SQLState_DependentObjects
	}
	switch KindOf(err) {
	case KindIdentifier:
		return SQLState_InvalidName
	case KindStructural:
		return SQLState_InvalidDefinition
	}
	return "HY000"
}
