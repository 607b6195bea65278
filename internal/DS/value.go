package DS

import (
	"bytes"
	"math"
	"strings"

	"github.com/sqlvibe/svcomp/internal/IS"
)

// Tuple is one stored row. Field values are nil, int64, float64, string,
// bool or []byte.
type Tuple []interface{}

// Normalize converts Go integer kinds to int64 so that tuples built from
// different sources compare and print the same way.
func Normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	}
	return v
}

func typeRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64, int, int32, uint32, uint64:
		return 2
	case string:
		return 3
	case []byte:
		return 4
	}
	return 5
}

// Compare orders two values: NULL, booleans, numbers, strings, blobs.
// Strings compare under collation coll.
func Compare(a, b interface{}, coll uint32) int {
	a, b = Normalize(a), Normalize(b)
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(int64(ra), int64(rb))
	}

	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case int64:
		if bv, ok := b.(int64); ok {
			return cmpInt(av, bv)
		}
		return cmpFloat(float64(av), b.(float64))
	case float64:
		if bv, ok := b.(int64); ok {
			return cmpFloat(av, float64(bv))
		}
		return cmpFloat(av, b.(float64))
	case string:
		return cmpString(av, b.(string), coll)
	case []byte:
		return bytes.Compare(av, b.([]byte))
	}
	return 0
}

// Equal reports whether two values compare equal under coll.
func Equal(a, b interface{}, coll uint32) bool {
	return Compare(a, b, coll) == 0
}

func cmpInt(a, b int64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case math.IsNaN(a) && !math.IsNaN(b):
		return -1
	case !math.IsNaN(a) && math.IsNaN(b):
		return 1
	}
	return 0
}

func cmpString(a, b string, coll uint32) int {
	if coll == IS.CollUnicodeCI {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}
	return strings.Compare(a, b)
}

// CopyTuple returns a copy of t with normalized values.
func CopyTuple(t Tuple) Tuple {
	out := make(Tuple, len(t))
	for i, v := range t {
		out[i] = Normalize(v)
	}
	return out
}
