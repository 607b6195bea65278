package VM

import (
	"context"
	"fmt"
	"strings"

	"github.com/sqlvibe/svcomp/internal/DS"
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/log"
)

// TriggerFunc runs the body of a row trigger; row holds the new (or, for
// DELETE, the old) tuple.
type TriggerFunc func(ctx context.Context, name string, row []interface{}) error

// Result describes the side effects of one program run.
type Result struct {
	// Changes is the final value of the program's change register.
	Changes int64
	// Inserted counts tuples written into user spaces.
	Inserted int64
	// Deleted counts tuples removed from user spaces, REPLACE victims
	// included.
	Deleted int64
	// Triggers lists fired triggers in firing order.
	Triggers []string
	Rows     [][]interface{}
}

type cursor struct {
	spaceID uint32
	iid     uint32
	rows    []DS.Tuple
	pos     int
	current DS.Tuple
}

// VM runs a finished program against a store. A VM runs one program once.
type VM struct {
	prog      *Program
	store     *DS.Store
	regs      []interface{}
	cursors   map[int32]*cursor
	ephemeral []uint32
	pc        int
	diag      string
	diagCode  errors.ErrorCode
	diagKind  errors.Kind
	fkCounter int64
	// fkDeferred counts violations of DEFERRABLE keys; with no
	// transaction spanning statements they also settle at statement end
	fkDeferred int64
	result     Result

	// Trigger is called by OpTrigger; nil means triggers only get recorded.
	Trigger TriggerFunc
}

func NewVM(prog *Program, store *DS.Store) *VM {
	return &VM{
		prog:    prog,
		store:   store,
		regs:    make([]interface{}, prog.NumRegs+1),
		cursors: make(map[int32]*cursor),
	}
}

// Exec runs the program as one statement: on error every change is undone
// unless the failing instruction asked for FAIL semantics.
func (vm *VM) Exec(ctx context.Context) (*Result, error) {
	if !vm.prog.IsFinished() {
		return nil, errors.New(errors.SVDB_MISUSE, errors.KindPrecondition, "program is not finished")
	}
	vm.store.Begin()
	defer vm.dropEphemeral()

	action, err := vm.run(ctx)
	if err == nil && vm.fkCounter != 0 {
		err = errors.New(errors.SVDB_CONSTRAINT_FOREIGNKEY, errors.KindRuntime, "FOREIGN KEY constraint failed")
		action = QP.OnConflictAbort
	} else if err == nil && vm.fkDeferred != 0 {
		err = errors.New(errors.SVDB_CONSTRAINT_FOREIGNKEY, errors.KindRuntime, "deferred FOREIGN KEY constraint failed")
		action = QP.OnConflictAbort
	}
	if vm.prog.ChangeReg > 0 {
		vm.result.Changes, _ = toInt(vm.regs[vm.prog.ChangeReg])
	}
	if err != nil {
		if action == QP.OnConflictFail {
			vm.store.Commit()
		} else {
			vm.store.Rollback()
		}
		return &vm.result, err
	}
	vm.store.Commit()
	return &vm.result, nil
}

func (vm *VM) dropEphemeral() {
	for _, id := range vm.ephemeral {
		vm.store.DropEphemeral(id)
	}
}

func (vm *VM) cursor(n int32) (*cursor, error) {
	c, ok := vm.cursors[n]
	if !ok {
		return nil, fmt.Errorf("cursor %d is not open", n)
	}
	return c, nil
}

func (vm *VM) key(start int32, n int) []interface{} {
	return append([]interface{}(nil), vm.regs[start:int(start)+n]...)
}

func insertMode(action QP.OnConflict) DS.InsertMode {
	switch action {
	case QP.OnConflictIgnore:
		return DS.InsertIgnore
	case QP.OnConflictReplace:
		return DS.InsertReplace
	}
	return DS.InsertAbort
}

func parseOrders(s string) []QP.SortOrder {
	orders := make([]QP.SortOrder, len(s))
	for i := range s {
		if s[i] == 'd' {
			orders[i] = QP.SortDesc
		}
	}
	return orders
}

// run executes until Halt. The returned action decides whether changes
// made before an error are kept.
func (vm *VM) run(ctx context.Context) (QP.OnConflict, error) {
	insts := vm.prog.Instructions
	steps := 0
	for vm.pc < len(insts) {
		if steps++; steps&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return QP.OnConflictAbort, errors.Wrap(errors.SVDB_ABORT, errors.KindRuntime, "statement interrupted", err)
			}
		}
		inst := &insts[vm.pc]
		vm.pc++

		switch inst.Op {
		case OpNoop:

		case OpInit, OpGoto:
			vm.pc = int(inst.P2)

		case OpHalt:
			if inst.P1 == 0 {
				return QP.OnConflictAbort, nil
			}
			msg := inst.P4String()
			code := errors.ErrorCode(inst.P1)
			kind := errors.Kind(inst.P3)
			if msg == "" {
				msg, code, kind = vm.diag, vm.diagCode, vm.diagKind
			}
			action := QP.OnConflict(inst.P2)
			if action == QP.OnConflictIgnore {
				return action, nil
			}
			return action, errors.New(code, kind, msg)

		case OpSetDiag:
			vm.diagCode = errors.ErrorCode(inst.P1)
			vm.diagKind = errors.Kind(inst.P3)
			vm.diag = inst.P4String()

		case OpInitCoroutine:
			vm.regs[inst.P1] = int64(inst.P3)
			vm.pc = int(inst.P2)

		case OpYield:
			saved, _ := toInt(vm.regs[inst.P1])
			vm.regs[inst.P1] = int64(vm.pc)
			vm.pc = int(saved)

		case OpEndCoroutine:
			caller, _ := toInt(vm.regs[inst.P1])
			vm.pc = int(insts[caller-1].P2)

		case OpIf, OpIfNot:
			v := vm.regs[inst.P1]
			if v == nil {
				if inst.P5&InstrFlagNullJump != 0 {
					vm.pc = int(inst.P2)
				}
			} else if truthy(v) == (inst.Op == OpIf) {
				vm.pc = int(inst.P2)
			}

		case OpIsNull:
			if vm.regs[inst.P1] == nil {
				vm.pc = int(inst.P2)
			}

		case OpNotNull:
			if vm.regs[inst.P1] != nil {
				vm.pc = int(inst.P2)
			}

		case OpHaltIfNull:
			if vm.regs[inst.P3] == nil {
				action := QP.OnConflict(inst.P2)
				return action, errors.New(errors.ErrorCode(inst.P1), errors.KindRuntime, inst.P4String())
			}

		case OpIfPos:
			n, _ := toInt(vm.regs[inst.P1])
			if n > 0 {
				vm.regs[inst.P1] = n - int64(inst.P3)
				vm.pc = int(inst.P2)
			}

		case OpIfNotPos:
			if n, _ := toInt(vm.regs[inst.P1]); n <= 0 {
				vm.pc = int(inst.P2)
			}

		case OpDecrJumpZero:
			n, _ := toInt(vm.regs[inst.P1])
			vm.regs[inst.P1] = n - 1
			if n-1 == 0 {
				vm.pc = int(inst.P2)
			}

		case OpMustBeInt:
			n, ok := toInt(vm.regs[inst.P1])
			if !ok || n < 0 {
				return QP.OnConflictAbort, errors.New(errors.SVDB_MISMATCH, errors.KindRuntime, inst.P4String())
			}
			vm.regs[inst.P1] = n

		case OpNull:
			n := int(inst.P2)
			if n < 1 {
				n = 1
			}
			for i := 0; i < n; i++ {
				vm.regs[int(inst.P1)+i] = nil
			}

		case OpInteger:
			vm.regs[inst.P2] = int64(inst.P1)

		case OpInt64, OpReal, OpString, OpBlob:
			vm.regs[inst.P2] = DS.Normalize(inst.P4)

		case OpBool:
			vm.regs[inst.P2] = inst.P1 != 0

		case OpCopy, OpSCopy:
			vm.regs[inst.P2] = vm.regs[inst.P1]

		case OpMove:
			n := int(inst.P3)
			if n < 1 {
				n = 1
			}
			for i := 0; i < n; i++ {
				vm.regs[int(inst.P2)+i] = vm.regs[int(inst.P1)+i]
				vm.regs[int(inst.P1)+i] = nil
			}

		case OpAddImm:
			n, _ := toInt(vm.regs[inst.P1])
			vm.regs[inst.P1] = n + int64(inst.P2)

		case OpAdd, OpSubtract, OpMultiply, OpDivide, OpRemainder, OpConcat:
			v, err := arith(inst.Op, vm.regs[inst.P1], vm.regs[inst.P2])
			if err != nil {
				return QP.OnConflictAbort, err
			}
			vm.regs[inst.P3] = v

		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			vm.regs[inst.P3] = compare(inst.Op, vm.regs[inst.P1], vm.regs[inst.P2], uint32(inst.P4Int()))

		case OpAnd, OpOr:
			vm.regs[inst.P3] = logic(inst.Op, vm.regs[inst.P1], vm.regs[inst.P2])

		case OpNot:
			if v := vm.regs[inst.P1]; v == nil {
				vm.regs[inst.P2] = nil
			} else {
				vm.regs[inst.P2] = !truthy(v)
			}

		case OpNegative:
			v, err := arith(OpSubtract, int64(0), vm.regs[inst.P1])
			if err != nil {
				return QP.OnConflictAbort, err
			}
			vm.regs[inst.P2] = v

		case OpIsNullValue:
			vm.regs[inst.P2] = (vm.regs[inst.P1] == nil) != (inst.P3 == 1)

		case OpOpenRead, OpOpenWrite:
			id := uint32(inst.P3)
			if inst.P5&InstrFlagSpaceReg != 0 {
				n, _ := toInt(vm.regs[inst.P3])
				id = uint32(n)
			}
			sp := vm.store.Schema().Space(id)
			if sp == nil {
				return QP.OnConflictAbort, errors.Errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Space '%d' does not exist", id)
			}
			if sp.Index(uint32(inst.P2)) == nil {
				return QP.OnConflictAbort, errors.Errorf(errors.SVDB_NOTFOUND, errors.KindReference,
					"No index #%d is defined in space '%s'", inst.P2, sp.Name())
			}
			vm.cursors[inst.P1] = &cursor{spaceID: id, iid: uint32(inst.P2)}

		case OpOpenTEphemeral:
			id := vm.store.NewEphemeral(int(inst.P2), parseOrders(inst.P4String()))
			vm.ephemeral = append(vm.ephemeral, id)
			vm.cursors[inst.P1] = &cursor{spaceID: id}

		case OpClose:
			delete(vm.cursors, inst.P1)

		case OpRewind:
			c, err := vm.cursor(inst.P1)
			if err != nil {
				return QP.OnConflictAbort, err
			}
			if c.rows, err = vm.store.Select(c.spaceID, c.iid, nil); err != nil {
				return QP.OnConflictAbort, err
			}
			c.pos, c.current = 0, nil
			if len(c.rows) == 0 {
				vm.pc = int(inst.P2)
			} else {
				c.current = c.rows[0]
			}

		case OpNext:
			c, err := vm.cursor(inst.P1)
			if err != nil {
				return QP.OnConflictAbort, err
			}
			c.pos++
			if c.pos < len(c.rows) {
				c.current = c.rows[c.pos]
				vm.pc = int(inst.P2)
			} else {
				c.current = nil
			}

		case OpColumn:
			c, err := vm.cursor(inst.P1)
			if err != nil {
				return QP.OnConflictAbort, err
			}
			var v interface{}
			if int(inst.P2) < len(c.current) {
				v = c.current[inst.P2]
			}
			vm.regs[inst.P3] = v

		case OpRowData:
			c, err := vm.cursor(inst.P1)
			if err != nil {
				return QP.OnConflictAbort, err
			}
			vm.regs[inst.P2] = append(DS.Tuple(nil), c.current...)

		case OpFound, OpNotFound, OpNoConflict:
			c, err := vm.cursor(inst.P1)
			if err != nil {
				return QP.OnConflictAbort, err
			}
			key := vm.key(inst.P3, inst.P4Int())
			if inst.Op == OpNoConflict {
				hasNull := false
				for _, v := range key {
					hasNull = hasNull || v == nil
				}
				if hasNull {
					vm.pc = int(inst.P2)
					break
				}
			}
			row, err := vm.store.Get(c.spaceID, c.iid, key)
			if err != nil {
				return QP.OnConflictAbort, err
			}
			c.current = row
			if (row != nil) == (inst.Op == OpFound) {
				vm.pc = int(inst.P2)
			}

		case OpMakeRecord:
			vm.regs[inst.P3] = DS.Tuple(vm.key(inst.P1, int(inst.P2)))

		case OpApplyType:
			types := strings.Split(inst.P4String(), ",")
			for i := 0; i < int(inst.P2) && i < len(types); i++ {
				r := int(inst.P1) + i
				v, err := applyType(vm.regs[r], IS.FieldType(types[i]))
				if err != nil {
					return QP.OnConflictAbort, err
				}
				vm.regs[r] = v
			}

		case OpIdxInsert:
			c, err := vm.cursor(inst.P2)
			if err != nil {
				return QP.OnConflictAbort, err
			}
			rec, ok := vm.regs[inst.P1].(DS.Tuple)
			if !ok {
				return QP.OnConflictAbort, fmt.Errorf("register %d does not hold a record", inst.P1)
			}
			action := QP.OnConflict(inst.P3)
			outcome, err := vm.store.Insert(c.spaceID, rec, insertMode(action))
			if err != nil {
				return action, err
			}
			if !IS.IsSystemSpace(c.spaceID) && c.spaceID <= IS.MaxSpaceID {
				switch outcome {
				case DS.Inserted:
					vm.result.Inserted++
				case DS.Replaced:
					vm.result.Inserted++
					vm.result.Deleted++
				}
			}

		case OpIdxDelete:
			c, err := vm.cursor(inst.P1)
			if err != nil {
				return QP.OnConflictAbort, err
			}
			row, err := vm.store.Delete(c.spaceID, c.iid, vm.key(inst.P2, int(inst.P3)))
			if err != nil {
				return QP.OnConflictAbort, err
			}
			if row != nil && !IS.IsSystemSpace(c.spaceID) {
				vm.result.Deleted++
			}

		case OpDelete:
			c, err := vm.cursor(inst.P1)
			if err != nil {
				return QP.OnConflictAbort, err
			}
			if c.current == nil {
				break
			}
			pk := vm.store.Schema().Space(c.spaceID).PrimaryKey()
			row, err := vm.store.Delete(c.spaceID, 0, DS.KeyOf(pk, c.current))
			if err != nil {
				return QP.OnConflictAbort, err
			}
			if row != nil && !IS.IsSystemSpace(c.spaceID) {
				vm.result.Deleted++
			}
			c.current = nil

		case OpNextIdEphemeral:
			c, err := vm.cursor(inst.P1)
			if err != nil {
				return QP.OnConflictAbort, err
			}
			id, err := vm.store.NextEphemeralRowID(c.spaceID)
			if err != nil {
				return QP.OnConflictAbort, err
			}
			vm.regs[inst.P2] = id

		case OpNextSpaceID:
			id, err := vm.store.NextSpaceID()
			if err != nil {
				return QP.OnConflictAbort, err
			}
			vm.regs[inst.P1] = int64(id)

		case OpNextSequenceID:
			vm.regs[inst.P1] = int64(vm.store.NextSequenceID())

		case OpTrigger:
			name := inst.P4String()
			vm.result.Triggers = append(vm.result.Triggers, name)
			if vm.Trigger != nil {
				if err := vm.Trigger(ctx, name, vm.key(inst.P1, int(inst.P2))); err != nil {
					return QP.OnConflictAbort, errors.Wrap(errors.SVDB_CONSTRAINT_TRIGGER, errors.KindRuntime,
						fmt.Sprintf("trigger '%s' failed", name), err)
				}
			}

		case OpFkCounter:
			if inst.P1 != 0 {
				vm.fkDeferred += int64(inst.P2)
			} else {
				vm.fkCounter += int64(inst.P2)
			}

		case OpResultRow:
			vm.result.Rows = append(vm.result.Rows, vm.key(inst.P1, int(inst.P2)))

		default:
			return QP.OnConflictAbort, fmt.Errorf("unknown opcode %s at %d", inst.Op, vm.pc-1)
		}
	}
	log.Debug("VM: program ran off its end at %d", vm.pc)
	return QP.OnConflictAbort, nil
}
