package CG

import (
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/VM"
)

// openCursor opens cursor on index iid of space. Only TREE indexes can be
// positioned by key, so any other type is refused.
func (p *Parse) openCursor(cursor int, space *IS.Space, iid uint32, write bool) bool {
	if p.failed() {
		return false
	}
	idx := space.Index(iid)
	if idx == nil {
		p.errorf(errors.SVDB_NOTFOUND, errors.KindReference,
			"No index #%d is defined in space '%s'", iid, space.Name())
		return false
	}
	if idx.Type != IS.IndexTree {
		p.errorf(errors.SVDB_ERROR, errors.KindReference,
			"Can't open a cursor on index '%s' of space '%s': %s index is not ordered", idx.Name, space.Name(), idx.Type)
		return false
	}
	op := VM.OpOpenRead
	if write {
		op = VM.OpOpenWrite
	}
	p.prog.EmitOp(op, cursor, int(iid), int(space.ID()))
	p.prog.SetComment("%s.%s", space.Name(), idx.Name)
	return true
}

// sysCursor returns a write cursor on the primary key of a system space,
// opening it on first use.
func (p *Parse) sysCursor(spaceID uint32) int {
	if c, ok := p.sysCursors[spaceID]; ok {
		return c
	}
	c := p.prog.AllocCursor()
	p.sysCursors[spaceID] = c
	p.openCursor(c, p.schema.Space(spaceID), 0, true)
	return c
}

// packRecord packs count registers starting at first into a record and
// returns the temp register holding it.
func (p *Parse) packRecord(first, count int) int {
	rec := p.prog.GetTempReg()
	p.prog.EmitOp(VM.OpMakeRecord, first, count, rec)
	return rec
}

// presenceTest describes one "already exists" / "does not exist" probe.
type presenceTest struct {
	spaceID uint32
	iid     uint32
	key     int
	keyLen  int
	// haltIfPresent selects which outcome halts
	haltIfPresent bool
	// soft halts without an error, for IF [NOT] EXISTS
	soft bool
	code errors.ErrorCode
	kind errors.Kind
	msg  string
}

// haltOnPresenceTest probes an index for a key and halts the program when
// the outcome named by the test occurs.
func (p *Parse) haltOnPresenceTest(t presenceTest) {
	if p.failed() {
		return
	}
	cursor := p.prog.AllocCursor()
	if !p.openCursor(cursor, p.schema.Space(t.spaceID), t.iid, false) {
		return
	}
	ok := p.prog.NewLabel()
	if t.haltIfPresent {
		p.prog.EmitOp4(VM.OpNotFound, cursor, ok, t.key, t.keyLen)
	} else {
		p.prog.EmitOp4(VM.OpFound, cursor, ok, t.key, t.keyLen)
	}
	if t.soft {
		p.prog.Emit(VM.OpHalt)
	} else {
		p.prog.EmitOp4(VM.OpSetDiag, int(t.code), 0, int(t.kind), t.msg)
		p.prog.EmitOp(VM.OpHalt, int(t.code), int(QP.OnConflictAbort), int(t.kind))
	}
	p.prog.ResolveLabel(ok)
	p.prog.EmitOp(VM.OpClose, cursor, 0, 0)
}

// emitCatalogInsert writes the n registers at first as a row of a system
// space.
func (p *Parse) emitCatalogInsert(spaceID uint32, first, n int, action QP.OnConflict) {
	if p.failed() {
		return
	}
	cursor := p.sysCursor(spaceID)
	rec := p.packRecord(first, n)
	p.prog.EmitOp(VM.OpIdxInsert, rec, cursor, int(action))
	p.prog.SetComment("%s", p.schema.Space(spaceID).Name())
	p.prog.ReleaseTempReg(rec)
}

// emitCatalogDelete removes the system space row whose primary key is in
// the n registers at key.
func (p *Parse) emitCatalogDelete(spaceID uint32, key, n int) {
	if p.failed() {
		return
	}
	cursor := p.sysCursor(spaceID)
	p.prog.EmitOp(VM.OpIdxDelete, cursor, key, n)
	p.prog.SetComment("%s", p.schema.Space(spaceID).Name())
}

// loadConsts loads values into consecutive temp registers and returns the
// first; callers release with ReleaseTempRange.
func (p *Parse) loadConsts(values ...interface{}) int {
	base := p.prog.GetTempRange(len(values))
	for i, v := range values {
		p.prog.EmitLoadConst(base+i, v)
	}
	return base
}

// loadSpaceID copies a space reference into dst.
func (p *Parse) loadSpaceID(ref IS.SpaceRef, dst int) {
	if ref.IsPending() {
		p.prog.EmitCopy(ref.Reg(), dst)
		return
	}
	p.prog.EmitInteger(int64(ref.ID()), dst)
}

// deleteCatalogRow emits the deletion of a system row keyed by a space
// reference followed by constant key parts, or by constants only when ref
// is nil.
func (p *Parse) deleteCatalogRow(spaceID uint32, ref *IS.SpaceRef, parts ...interface{}) {
	n := len(parts)
	if ref != nil {
		n++
	}
	base := p.prog.GetTempRange(n)
	r := base
	if ref != nil {
		p.loadSpaceID(*ref, r)
		r++
	}
	for _, v := range parts {
		p.prog.EmitLoadConst(r, v)
		r++
	}
	p.emitCatalogDelete(spaceID, base, n)
	p.prog.ReleaseTempRange(base, n)
}
