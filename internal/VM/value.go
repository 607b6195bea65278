package VM

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sqlvibe/svcomp/internal/DS"
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
)

func truthy(v interface{}) bool {
	switch x := DS.Normalize(v).(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return err == nil && f != 0
	}
	return false
}

func toInt(v interface{}) (int64, bool) {
	switch x := DS.Normalize(v).(type) {
	case int64:
		return x, true
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x <= math.MaxInt64 {
			return int64(x), true
		}
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch x := DS.Normalize(v).(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func typeName(v interface{}) string {
	switch x := DS.Normalize(v).(type) {
	case nil:
		return "NULL"
	case int64:
		return fmt.Sprintf("integer(%d)", x)
	case float64:
		return fmt.Sprintf("double(%g)", x)
	case string:
		return fmt.Sprintf("string('%s')", x)
	case bool:
		return fmt.Sprintf("boolean(%v)", x)
	case []byte:
		return "varbinary"
	}
	return fmt.Sprintf("%T", v)
}

func mismatch(v interface{}, to string) error {
	return errors.Errorf(errors.SVDB_MISMATCH, errors.KindRuntime,
		"Type mismatch: can not convert %s to %s", typeName(v), to)
}

func arith(op OpCode, a, b interface{}) (interface{}, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	if op == OpConcat {
		as, aok := DS.Normalize(a).(string)
		bs, bok := DS.Normalize(b).(string)
		if !aok {
			return nil, mismatch(a, "string")
		}
		if !bok {
			return nil, mismatch(b, "string")
		}
		return as + bs, nil
	}

	ai, aInt := DS.Normalize(a).(int64)
	bi, bInt := DS.Normalize(b).(int64)
	if aInt && bInt {
		switch op {
		case OpAdd:
			r := ai + bi
			if (r > ai) != (bi > 0) {
				return nil, errors.New(errors.SVDB_RANGE, errors.KindRuntime, "Failed to execute SQL statement: integer is overflowed")
			}
			return r, nil
		case OpSubtract:
			r := ai - bi
			if (r < ai) != (bi > 0) {
				return nil, errors.New(errors.SVDB_RANGE, errors.KindRuntime, "Failed to execute SQL statement: integer is overflowed")
			}
			return r, nil
		case OpMultiply:
			if ai != 0 && (ai*bi)/ai != bi {
				return nil, errors.New(errors.SVDB_RANGE, errors.KindRuntime, "Failed to execute SQL statement: integer is overflowed")
			}
			return ai * bi, nil
		case OpDivide:
			if bi == 0 {
				return nil, errors.New(errors.SVDB_ERROR, errors.KindRuntime, "Failed to execute SQL statement: division by zero")
			}
			return ai / bi, nil
		case OpRemainder:
			if bi == 0 {
				return nil, errors.New(errors.SVDB_ERROR, errors.KindRuntime, "Failed to execute SQL statement: division by zero")
			}
			return ai % bi, nil
		}
	}

	af, aok := toFloat(a)
	if !aok {
		return nil, mismatch(a, "number")
	}
	bf, bok := toFloat(b)
	if !bok {
		return nil, mismatch(b, "number")
	}
	switch op {
	case OpAdd:
		return af + bf, nil
	case OpSubtract:
		return af - bf, nil
	case OpMultiply:
		return af * bf, nil
	case OpDivide:
		if bf == 0 {
			return nil, errors.New(errors.SVDB_ERROR, errors.KindRuntime, "Failed to execute SQL statement: division by zero")
		}
		return af / bf, nil
	case OpRemainder:
		if bf == 0 {
			return nil, errors.New(errors.SVDB_ERROR, errors.KindRuntime, "Failed to execute SQL statement: division by zero")
		}
		return math.Mod(af, bf), nil
	}
	return nil, fmt.Errorf("arith: unexpected opcode %s", op)
}

func compare(op OpCode, a, b interface{}, coll uint32) interface{} {
	if a == nil || b == nil {
		return nil
	}
	c := DS.Compare(a, b, coll)
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	return nil
}

// logic evaluates AND/OR under three-valued logic.
func logic(op OpCode, a, b interface{}) interface{} {
	if op == OpAnd {
		if (a != nil && !truthy(a)) || (b != nil && !truthy(b)) {
			return false
		}
		if a == nil || b == nil {
			return nil
		}
		return true
	}
	if (a != nil && truthy(a)) || (b != nil && truthy(b)) {
		return true
	}
	if a == nil || b == nil {
		return nil
	}
	return false
}

// applyType checks v against a field type, converting between numeric
// representations where no precision is lost.
func applyType(v interface{}, typ IS.FieldType) (interface{}, error) {
	v = DS.Normalize(v)
	if v == nil {
		return nil, nil
	}
	switch typ {
	case IS.FieldInteger, IS.FieldUnsigned:
		i, ok := v.(int64)
		if !ok {
			f, isFloat := v.(float64)
			if !isFloat || f != math.Trunc(f) {
				return nil, mismatch(v, string(typ))
			}
			i = int64(f)
		}
		if typ == IS.FieldUnsigned && i < 0 {
			return nil, mismatch(v, string(typ))
		}
		return i, nil
	case IS.FieldDouble:
		f, ok := toFloat(v)
		if !ok {
			return nil, mismatch(v, string(typ))
		}
		return f, nil
	case IS.FieldNumber:
		if _, ok := toFloat(v); !ok {
			return nil, mismatch(v, string(typ))
		}
	case IS.FieldString:
		if _, ok := v.(string); !ok {
			return nil, mismatch(v, string(typ))
		}
	case IS.FieldBoolean:
		if _, ok := v.(bool); !ok {
			return nil, mismatch(v, string(typ))
		}
	case IS.FieldVarbinary:
		if _, ok := v.([]byte); !ok {
			return nil, mismatch(v, string(typ))
		}
	}
	return v, nil
}
