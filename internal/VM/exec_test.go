package VM

import (
	"context"
	"testing"

	"github.com/sqlvibe/svcomp/internal/DS"
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
)

const testSpace = 512

func newTestStore() *DS.Store {
	schema := IS.NewSchema()
	sp := IS.NewSpace("t", IS.ProvenanceLive)
	sp.Def.ID = testSpace
	sp.Def.Engine = "memtx"
	sp.Def.Fields = []IS.FieldDef{
		{Name: "id", Type: IS.FieldInteger, NullAction: QP.OnConflictAbort},
		{Name: "name", Type: IS.FieldString, NullAction: QP.OnConflictNone},
	}
	sp.Indexes = []*IS.IndexDef{
		{SpaceID: testSpace, IID: 0, Name: "pk", Type: IS.IndexTree, Unique: true,
			Parts: []IS.KeyPart{{FieldNo: 0, Type: IS.FieldInteger}}},
		{SpaceID: testSpace, IID: 1, Name: "name", Type: IS.IndexTree, Unique: true,
			Parts: []IS.KeyPart{{FieldNo: 1, Type: IS.FieldString, IsNullable: true}}},
	}
	schema.Put(sp)
	return DS.NewStore(schema)
}

func run(t *testing.T, p *Program, store *DS.Store) (*Result, error) {
	t.Helper()
	if err := p.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if store == nil {
		store = newTestStore()
	}
	return NewVM(p, store).Exec(context.Background())
}

// emitInsert writes (id, name) through an open write cursor.
func emitInsert(p *Program, cur int, id int64, name interface{}, action QP.OnConflict) {
	base := p.GetTempRange(2)
	rec := p.GetTempReg()
	p.EmitInteger(id, base)
	p.EmitLoadConst(base+1, name)
	p.EmitOp(OpMakeRecord, base, 2, rec)
	p.EmitOp(OpIdxInsert, rec, cur, int(action))
	p.ReleaseTempReg(rec)
	p.ReleaseTempRange(base, 2)
}

func TestExecArithmetic(t *testing.T) {
	p := NewProgram()
	a, b, out := p.AllocReg(), p.AllocReg(), p.AllocReg()
	p.EmitInteger(6, a)
	p.EmitInteger(7, b)
	p.EmitOp(OpMultiply, a, b, out)
	p.EmitOp(OpResultRow, out, 1, 0)
	p.EmitOp(OpConcat, a, b, out)
	p.Emit(OpHalt)

	_, err := run(t, p, nil)
	if !errors.IsErrorCode(err, errors.SVDB_MISMATCH) {
		t.Errorf("concat of integers: got %v", err)
	}
}

func TestExecResultRows(t *testing.T) {
	p := NewProgram()
	a, b, out := p.AllocReg(), p.AllocReg(), p.AllocReg()
	p.EmitInteger(6, a)
	p.EmitInteger(7, b)
	p.EmitOp(OpMultiply, a, b, out)
	p.EmitOp(OpResultRow, out, 1, 0)
	p.EmitOp4(OpLt, a, b, out, 0)
	p.EmitOp(OpResultRow, out, 1, 0)
	p.Emit(OpHalt)

	res, err := run(t, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 2 || res.Rows[0][0] != int64(42) || res.Rows[1][0] != true {
		t.Errorf("rows = %v", res.Rows)
	}
}

func TestExecOverflow(t *testing.T) {
	p := NewProgram()
	a, out := p.AllocReg(), p.AllocReg()
	p.EmitInteger(1<<62, a)
	p.EmitOp(OpAdd, a, a, out)
	p.Emit(OpHalt)
	if _, err := run(t, p, nil); !errors.IsErrorCode(err, errors.SVDB_RANGE) {
		t.Errorf("overflow: got %v", err)
	}
}

// TestExecCoroutine runs a producer yielding three values to a consumer
// that collects them.
func TestExecCoroutine(t *testing.T) {
	p := NewProgram()
	co, val := p.AllocReg(), p.AllocReg()
	body, loop, end := p.NewLabel(), p.NewLabel(), p.NewLabel()

	after := p.NewLabel()
	p.EmitOp(OpInitCoroutine, co, after, body)
	p.ResolveLabel(body)
	for i := int64(1); i <= 3; i++ {
		p.EmitInteger(i*10, val)
		p.EmitOp(OpYield, co, 0, 0)
	}
	p.EmitOp(OpEndCoroutine, co, 0, 0)
	p.ResolveLabel(after)

	p.ResolveLabel(loop)
	p.EmitOp(OpYield, co, end, 0)
	p.EmitOp(OpResultRow, val, 1, 0)
	p.EmitGoto(loop)
	p.ResolveLabel(end)
	p.Emit(OpHalt)

	res, err := run(t, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 3 || res.Rows[2][0] != int64(30) {
		t.Errorf("rows = %v", res.Rows)
	}
}

func TestExecInsertAndScan(t *testing.T) {
	store := newTestStore()
	p := NewProgram()
	p.ChangeReg = p.AllocReg()
	p.EmitInteger(0, p.ChangeReg)
	cur := p.AllocCursor()
	p.EmitOp(OpOpenWrite, cur, 0, testSpace)
	for i, name := range []string{"a", "b", "c"} {
		emitInsert(p, cur, int64(i+1), name, QP.OnConflictAbort)
		p.EmitOp(OpAddImm, p.ChangeReg, 1, 0)
	}

	rd := p.AllocCursor()
	col := p.AllocReg()
	done := p.NewLabel()
	p.EmitOp(OpOpenRead, rd, 0, testSpace)
	p.EmitOp(OpRewind, rd, done, 0)
	top := p.Addr()
	p.EmitOp(OpColumn, rd, 1, col)
	p.EmitOp(OpResultRow, col, 1, 0)
	p.EmitOp(OpNext, rd, top, 0)
	p.ResolveLabel(done)
	p.Emit(OpHalt)

	res, err := run(t, p, store)
	if err != nil {
		t.Fatal(err)
	}
	if res.Changes != 3 || res.Inserted != 3 {
		t.Errorf("changes %d inserted %d", res.Changes, res.Inserted)
	}
	if len(res.Rows) != 3 || res.Rows[0][0] != "a" || res.Rows[2][0] != "c" {
		t.Errorf("scan = %v", res.Rows)
	}
}

func TestExecAbortRollsBack(t *testing.T) {
	store := newTestStore()
	p := NewProgram()
	cur := p.AllocCursor()
	p.EmitOp(OpOpenWrite, cur, 0, testSpace)
	emitInsert(p, cur, 1, "a", QP.OnConflictAbort)
	emitInsert(p, cur, 1, "b", QP.OnConflictAbort)
	p.Emit(OpHalt)

	_, err := run(t, p, store)
	if !errors.IsErrorCode(err, errors.SVDB_CONSTRAINT_PRIMARYKEY) {
		t.Fatalf("got %v", err)
	}
	if n := store.Len(testSpace); n != 0 {
		t.Errorf("statement left %d rows", n)
	}
}

func TestExecFailKeepsPriorRows(t *testing.T) {
	store := newTestStore()
	p := NewProgram()
	cur := p.AllocCursor()
	p.EmitOp(OpOpenWrite, cur, 0, testSpace)
	emitInsert(p, cur, 1, "a", QP.OnConflictFail)
	emitInsert(p, cur, 1, "b", QP.OnConflictFail)
	p.Emit(OpHalt)

	if _, err := run(t, p, store); err == nil {
		t.Fatalf("duplicate accepted")
	}
	if n := store.Len(testSpace); n != 1 {
		t.Errorf("FAIL kept %d rows, want 1", n)
	}
}

func TestExecReplaceCountsDelete(t *testing.T) {
	store := newTestStore()
	p := NewProgram()
	cur := p.AllocCursor()
	p.EmitOp(OpOpenWrite, cur, 0, testSpace)
	emitInsert(p, cur, 1, "a", QP.OnConflictAbort)
	emitInsert(p, cur, 1, "b", QP.OnConflictReplace)
	p.Emit(OpHalt)

	res, err := run(t, p, store)
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 2 || res.Deleted != 1 || store.Len(testSpace) != 1 {
		t.Errorf("inserted %d deleted %d len %d", res.Inserted, res.Deleted, store.Len(testSpace))
	}
}

func TestExecFoundAndDelete(t *testing.T) {
	store := newTestStore()
	p := NewProgram()
	cur := p.AllocCursor()
	p.EmitOp(OpOpenWrite, cur, 0, testSpace)
	emitInsert(p, cur, 1, "a", QP.OnConflictAbort)

	idx := p.AllocCursor()
	key := p.AllocReg()
	miss := p.NewLabel()
	p.EmitOp(OpOpenWrite, idx, 1, testSpace)
	p.EmitString("a", key)
	p.EmitOp4(OpNotFound, idx, miss, key, 1)
	p.EmitOp(OpDelete, idx, 0, 0)
	p.ResolveLabel(miss)
	p.Emit(OpHalt)

	res, err := run(t, p, store)
	if err != nil {
		t.Fatal(err)
	}
	if res.Deleted != 1 || store.Len(testSpace) != 0 {
		t.Errorf("deleted %d, %d rows left", res.Deleted, store.Len(testSpace))
	}
}

func TestExecNoConflictSkipsNullKeys(t *testing.T) {
	p := NewProgram()
	cur := p.AllocCursor()
	key := p.AllocReg()
	ok := p.NewLabel()
	p.EmitOp(OpOpenRead, cur, 1, testSpace)
	p.EmitNull(key)
	p.EmitOp4(OpNoConflict, cur, ok, key, 1)
	p.EmitOp4(OpHalt, int(errors.SVDB_CONSTRAINT_UNIQUE), int(QP.OnConflictAbort), 0, "conflict")
	p.ResolveLabel(ok)
	p.Emit(OpHalt)
	if _, err := run(t, p, nil); err != nil {
		t.Errorf("NULL key reported a conflict: %v", err)
	}
}

func TestExecHaltIfNull(t *testing.T) {
	p := NewProgram()
	r := p.AllocReg()
	p.EmitNull(r)
	p.EmitOp4(OpHaltIfNull, int(errors.SVDB_CONSTRAINT_NOTNULL), int(QP.OnConflictAbort), r, "NOT NULL constraint failed: t.name")
	p.Emit(OpHalt)
	_, err := run(t, p, nil)
	if !errors.IsErrorCode(err, errors.SVDB_CONSTRAINT_NOTNULL) {
		t.Fatalf("got %v", err)
	}
	if errors.MessageOf(err) != "NOT NULL constraint failed: t.name" {
		t.Errorf("message %q", errors.MessageOf(err))
	}
}

func TestExecHaltIgnore(t *testing.T) {
	p := NewProgram()
	p.EmitOp(OpHalt, int(errors.SVDB_CONSTRAINT), int(QP.OnConflictIgnore), 0)
	if _, err := run(t, p, nil); err != nil {
		t.Errorf("IGNORE halt returned %v", err)
	}
}

func TestExecHaltUsesDiag(t *testing.T) {
	p := NewProgram()
	p.EmitOp4(OpSetDiag, int(errors.SVDB_SCHEMA_EXISTS), 0, int(errors.KindIdentifier), "Space 't' already exists")
	p.EmitOp(OpHalt, int(errors.SVDB_SCHEMA_EXISTS), int(QP.OnConflictAbort), 0)
	_, err := run(t, p, nil)
	if errors.MessageOf(err) != "Space 't' already exists" || errors.KindOf(err) != errors.KindIdentifier {
		t.Errorf("got %v (kind %v)", err, errors.KindOf(err))
	}
}

func TestExecFKCounter(t *testing.T) {
	p := NewProgram()
	p.EmitOp(OpFkCounter, 0, 1, 0)
	p.Emit(OpHalt)
	if _, err := run(t, p, nil); !errors.IsErrorCode(err, errors.SVDB_CONSTRAINT_FOREIGNKEY) {
		t.Errorf("unbalanced FK counter: got %v", err)
	}

	p = NewProgram()
	p.EmitOp(OpFkCounter, 0, 1, 0)
	p.EmitOp(OpFkCounter, 0, -1, 0)
	p.Emit(OpHalt)
	if _, err := run(t, p, nil); err != nil {
		t.Errorf("balanced FK counter: got %v", err)
	}

	// deferred and immediate violations are counted apart
	p = NewProgram()
	p.EmitOp(OpFkCounter, 1, 1, 0)
	p.EmitOp(OpFkCounter, 0, -1, 0)
	p.EmitOp(OpFkCounter, 0, 1, 0)
	p.Emit(OpHalt)
	_, err := run(t, p, nil)
	if !errors.IsErrorCode(err, errors.SVDB_CONSTRAINT_FOREIGNKEY) || errors.MessageOf(err) != "deferred FOREIGN KEY constraint failed" {
		t.Errorf("deferred violation: got %v", err)
	}
}

func TestExecApplyType(t *testing.T) {
	p := NewProgram()
	base := p.AllocRegs(2)
	p.EmitLoadConst(base, 3.0)
	p.EmitString("x", base+1)
	p.EmitOp4(OpApplyType, base, 2, 0, "integer,string")
	p.EmitOp(OpResultRow, base, 2, 0)
	p.EmitOp4(OpApplyType, base+1, 1, 0, "integer")
	p.Emit(OpHalt)

	res, err := run(t, p, nil)
	if !errors.IsErrorCode(err, errors.SVDB_MISMATCH) {
		t.Errorf("string to integer: got %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != int64(3) {
		t.Errorf("rows = %v", res.Rows)
	}
}

func TestExecTriggerHook(t *testing.T) {
	p := NewProgram()
	r := p.AllocReg()
	p.EmitInteger(9, r)
	p.EmitOp4(OpTrigger, r, 1, testSpace, "audit")
	p.Emit(OpHalt)
	if err := p.Finish(); err != nil {
		t.Fatal(err)
	}
	vm := NewVM(p, newTestStore())
	var seen []interface{}
	vm.Trigger = func(ctx context.Context, name string, row []interface{}) error {
		seen = row
		return nil
	}
	res, err := vm.Exec(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Triggers) != 1 || res.Triggers[0] != "audit" || len(seen) != 1 || seen[0] != int64(9) {
		t.Errorf("triggers %v row %v", res.Triggers, seen)
	}
}

func TestExecEphemeral(t *testing.T) {
	p := NewProgram()
	cur := p.AllocCursor()
	base := p.AllocRegs(2)
	rec := p.AllocReg()
	p.EmitOp4(OpOpenTEphemeral, cur, 2, 0, "a")
	for _, v := range []int64{2, 1} {
		p.EmitOp(OpNextIdEphemeral, cur, base, 0)
		p.EmitInteger(v, base+1)
		p.EmitOp(OpMakeRecord, base, 2, rec)
		p.EmitOp(OpIdxInsert, rec, cur, int(QP.OnConflictAbort))
	}
	done := p.NewLabel()
	p.EmitOp(OpRewind, cur, done, 0)
	top := p.Addr()
	p.EmitOp(OpColumn, cur, 1, base+1)
	p.EmitOp(OpResultRow, base+1, 1, 0)
	p.EmitOp(OpNext, cur, top, 0)
	p.ResolveLabel(done)
	p.Emit(OpHalt)

	res, err := run(t, p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 2 || res.Rows[0][0] != int64(2) || res.Inserted != 0 {
		t.Errorf("rows %v inserted %d", res.Rows, res.Inserted)
	}
}

func TestExecCancelled(t *testing.T) {
	p := NewProgram()
	p.EmitGoto(0)
	if err := p.Finish(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewVM(p, newTestStore()).Exec(ctx); !errors.IsErrorCode(err, errors.SVDB_ABORT) {
		t.Errorf("cancelled loop: got %v", err)
	}
}
