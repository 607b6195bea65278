package util

import (
	"fmt"
	"reflect"
)

// Assert panics with a formatted message if the condition is false.
// It guards compiler invariants whose violation is a programming error,
// never a user error.
func Assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("Assertion failed: "+format, args...))
	}
}

// AssertNotNil panics if the value is nil (including typed nils like (*int)(nil))
func AssertNotNil(value interface{}, name string) {
	if value == nil {
		panic(fmt.Sprintf("Assertion failed: %s must not be nil", name))
	}
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		panic(fmt.Sprintf("Assertion failed: %s must not be nil", name))
	}
}
