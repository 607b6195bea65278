package VM

// OpCode represents the operation codes for the VM
type OpCode int

const (
	// Control flow
	OpNoop OpCode = iota
	OpInit
	OpGoto
	OpHalt
	OpSetDiag
	OpInitCoroutine
	OpYield
	OpEndCoroutine

	// Conditional jumps
	OpIf
	OpIfNot
	OpIsNull
	OpNotNull
	OpHaltIfNull
	OpIfPos
	OpIfNotPos
	OpDecrJumpZero
	OpMustBeInt

	// Literals
	OpNull
	OpInteger
	OpInt64
	OpReal
	OpString
	OpBool
	OpBlob

	// Memory operations
	OpCopy
	OpSCopy
	OpMove
	OpAddImm

	// Arithmetic and comparison, P1 op P2 -> P3
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpRemainder
	OpConcat
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
	OpNegative
	OpIsNullValue

	// Cursor operations
	OpOpenRead
	OpOpenWrite
	OpOpenTEphemeral
	OpClose
	OpRewind
	OpNext
	OpColumn
	OpRowData

	// Probes
	OpFound
	OpNotFound
	OpNoConflict

	// Records and writes
	OpMakeRecord
	OpApplyType
	OpIdxInsert
	OpIdxDelete
	OpDelete
	OpNextIdEphemeral

	// Catalog
	OpNextSpaceID
	OpNextSequenceID

	// Integrity hooks
	OpTrigger
	OpFkCounter

	// Result
	OpResultRow

	opMax
)

var opNames = [...]string{
	OpNoop:            "Noop",
	OpInit:            "Init",
	OpGoto:            "Goto",
	OpHalt:            "Halt",
	OpSetDiag:         "SetDiag",
	OpInitCoroutine:   "InitCoroutine",
	OpYield:           "Yield",
	OpEndCoroutine:    "EndCoroutine",
	OpIf:              "If",
	OpIfNot:           "IfNot",
	OpIsNull:          "IsNull",
	OpNotNull:         "NotNull",
	OpHaltIfNull:      "HaltIfNull",
	OpIfPos:           "IfPos",
	OpIfNotPos:        "IfNotPos",
	OpDecrJumpZero:    "DecrJumpZero",
	OpMustBeInt:       "MustBeInt",
	OpNull:            "Null",
	OpInteger:         "Integer",
	OpInt64:           "Int64",
	OpReal:            "Real",
	OpString:          "String",
	OpBool:            "Bool",
	OpBlob:            "Blob",
	OpCopy:            "Copy",
	OpSCopy:           "SCopy",
	OpMove:            "Move",
	OpAddImm:          "AddImm",
	OpAdd:             "Add",
	OpSubtract:        "Subtract",
	OpMultiply:        "Multiply",
	OpDivide:          "Divide",
	OpRemainder:       "Remainder",
	OpConcat:          "Concat",
	OpEq:              "Eq",
	OpNe:              "Ne",
	OpLt:              "Lt",
	OpLe:              "Le",
	OpGt:              "Gt",
	OpGe:              "Ge",
	OpAnd:             "And",
	OpOr:              "Or",
	OpNot:             "Not",
	OpNegative:        "Negative",
	OpIsNullValue:     "IsNullValue",
	OpOpenRead:        "OpenRead",
	OpOpenWrite:       "OpenWrite",
	OpOpenTEphemeral:  "OpenTEphemeral",
	OpClose:           "Close",
	OpRewind:          "Rewind",
	OpNext:            "Next",
	OpColumn:          "Column",
	OpRowData:         "RowData",
	OpFound:           "Found",
	OpNotFound:        "NotFound",
	OpNoConflict:      "NoConflict",
	OpMakeRecord:      "MakeRecord",
	OpApplyType:       "ApplyType",
	OpIdxInsert:       "IdxInsert",
	OpIdxDelete:       "IdxDelete",
	OpDelete:          "Delete",
	OpNextIdEphemeral: "NextIdEphemeral",
	OpNextSpaceID:     "NextSpaceId",
	OpNextSequenceID:  "NextSequenceId",
	OpTrigger:         "Trigger",
	OpFkCounter:       "FkCounter",
	OpResultRow:       "ResultRow",
}

func (op OpCode) String() string {
	if op >= 0 && op < opMax {
		return opNames[op]
	}
	return "Unknown"
}

// ParseOpCode returns the opcode with the given name.
func ParseOpCode(name string) (OpCode, bool) {
	for op := OpNoop; op < opMax; op++ {
		if opNames[op] == name {
			return op, true
		}
	}
	return 0, false
}

// IsJump reports whether P2 holds a jump target.
func (op OpCode) IsJump() bool {
	switch op {
	case OpInit, OpGoto, OpInitCoroutine, OpYield, OpIf, OpIfNot, OpIsNull, OpNotNull,
		OpIfPos, OpIfNotPos, OpDecrJumpZero, OpRewind, OpNext, OpFound, OpNotFound, OpNoConflict:
		return true
	}
	return false
}

func (op OpCode) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// InstrFlag is a bitmask carried in P5.
type InstrFlag = uint16

const (
	// InstrFlagSpaceReg on OpOpenRead/OpOpenWrite: P3 is a register
	// holding the space id rather than the id itself.
	InstrFlagSpaceReg InstrFlag = 1 << 0

	// InstrFlagNChange on OpIdxInsert/OpDelete: count the write as a change.
	InstrFlagNChange InstrFlag = 1 << 1

	// InstrFlagXfer on OpIdxInsert: the record is copied unchanged from a
	// compatible space.
	InstrFlagXfer InstrFlag = 1 << 2

	// InstrFlagNullJump on OpIf/OpIfNot: a NULL operand takes the jump.
	InstrFlagNullJump InstrFlag = 1 << 3
)
