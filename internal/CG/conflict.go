package CG

import (
	"fmt"

	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/VM"
)

// emitNotNullChecks enforces NOT NULL field by field:
//
//	ABORT, ROLLBACK, FAIL  halt with a diagnostic
//	IGNORE                 skip the row
//	REPLACE                store the DEFAULT; without one it acts as ABORT
//
// The AUTOINCREMENT field may be NULL, the storage fills it in.
func (p *Parse) emitNotNullChecks(ic *insertCtx, endRow int) {
	sp := ic.space
	for no := range sp.Def.Fields {
		f := &sp.Def.Fields[no]
		if f.IsNullable() || p.isSequenceField(sp, no) {
			continue
		}
		reg := ic.regRow + no
		msg := fmt.Sprintf("NOT NULL constraint failed: %s.%s", sp.Name(), f.Name)
		action := effectiveAction(ic.action, f.NullAction)
		switch action {
		case QP.OnConflictIgnore:
			p.prog.EmitOp(VM.OpIsNull, reg, endRow, 0)
			continue
		case QP.OnConflictReplace:
			if f.Default != nil {
				ok := p.prog.NewLabel()
				p.prog.EmitOp(VM.OpNotNull, reg, ok, 0)
				p.exprCode(f.Default, nil, reg)
				p.prog.ResolveLabel(ok)
			} else if f.NullAction == QP.OnConflictReplace {
				p.log.Warn("NOT NULL ON CONFLICT REPLACE field %s.%s has no DEFAULT, acting as ABORT", sp.Name(), f.Name)
			} else {
				p.log.Debug("REPLACE on NOT NULL field %s.%s without DEFAULT acts as ABORT", sp.Name(), f.Name)
			}
			action = QP.OnConflictAbort
		}
		p.prog.EmitOp4(VM.OpHaltIfNull, int(errors.SVDB_CONSTRAINT_NOTNULL), int(action), reg, msg)
	}
}

// emitCheckConstraints evaluates the enabled CHECK constraints against
// the row registers. NULL passes a check.
func (p *Parse) emitCheckConstraints(ic *insertCtx, endRow int) {
	sp := ic.space
	sc := &scope{space: sp, regBase: ic.regRow}
	for _, ck := range sp.Checks {
		if !ck.Enabled || ck.Expr == nil || p.failed() {
			continue
		}
		cond := p.prog.GetTempReg()
		p.exprCode(ck.Expr, sc, cond)
		ok := p.prog.NewLabel()
		p.prog.EmitOp(VM.OpIf, cond, ok, 0)
		p.prog.Last().SetP5(VM.InstrFlagNullJump)
		p.prog.ReleaseTempReg(cond)

		action := effectiveAction(ic.action, QP.OnConflictAbort)
		switch action {
		case QP.OnConflictIgnore:
			p.prog.EmitGoto(endRow)
		case QP.OnConflictReplace:
			action = QP.OnConflictAbort
			fallthrough
		default:
			p.prog.EmitOp4(VM.OpSetDiag, int(errors.SVDB_CONSTRAINT_CHECK), 0, int(errors.KindRuntime),
				fmt.Sprintf("Check constraint failed '%s': %s", ck.Name, ck.Code))
			p.prog.EmitOp(VM.OpHalt, int(errors.SVDB_CONSTRAINT_CHECK), int(action), int(errors.KindRuntime))
		}
		p.prog.ResolveLabel(ok)
	}
}

// emitUniqueChecks probes unique indexes before the write.
//
// REPLACE deletes every row that collides on a secondary index, firing
// DELETE triggers and orphaning children of the deleted row; a primary
// key collision is left to the storage unless DELETE triggers or
// referencing foreign keys need to see the old row. IGNORE skips the row
// on any collision. FAIL and ROLLBACK halt with their own action. ABORT
// is left to the storage, which raises the same error.
//
// Only TREE indexes can be probed; others are enforced by the storage.
func (p *Parse) emitUniqueChecks(ic *insertCtx, endRow int) {
	sp := ic.space
	probePK := sp.HasTriggers(IS.TriggerDelete) || len(sp.ParentFKs) > 0
	for _, idx := range sp.Indexes {
		if !idx.Unique || idx.Type != IS.IndexTree || p.failed() {
			continue
		}
		action := effectiveAction(ic.action, idx.OnConflict)
		switch action {
		case QP.OnConflictAbort:
			continue
		case QP.OnConflictReplace:
			if idx.IID == 0 && !probePK {
				continue
			}
		}
		p.emitUniqueProbe(ic, idx, action, endRow)
	}
}

func (p *Parse) emitUniqueProbe(ic *insertCtx, idx *IS.IndexDef, action QP.OnConflict, endRow int) {
	sp := ic.space
	n := len(idx.Parts)
	key := p.prog.GetTempRange(n)
	for i, part := range idx.Parts {
		p.prog.EmitSCopy(ic.regRow+int(part.FieldNo), key+i)
	}
	c := p.prog.AllocCursor()
	p.openCursor(c, sp, idx.IID, true)
	ok := p.prog.NewLabel()
	p.prog.EmitOp4(VM.OpNoConflict, c, ok, key, n)
	p.prog.ReleaseTempRange(key, n)

	switch action {
	case QP.OnConflictReplace:
		p.emitReplaceDelete(ic, c)
	case QP.OnConflictIgnore:
		p.prog.EmitGoto(endRow)
	default:
		code := errors.SVDB_CONSTRAINT_UNIQUE
		if idx.IID == 0 {
			code = errors.SVDB_CONSTRAINT_PRIMARYKEY
		}
		p.prog.EmitOp4(VM.OpSetDiag, int(code), 0, int(errors.KindRuntime),
			fmt.Sprintf("Duplicate key exists in unique index \"%s\" in space \"%s\"", idx.Name, sp.Name()))
		p.prog.EmitOp(VM.OpHalt, int(code), int(action), int(errors.KindRuntime))
	}
	p.prog.ResolveLabel(ok)
	p.prog.EmitOp(VM.OpClose, c, 0, 0)
}

// emitReplaceDelete removes the row cursor c is positioned on. DELETE
// triggers see the old row; its children are counted as orphans until a
// new parent row settles them.
func (p *Parse) emitReplaceDelete(ic *insertCtx, c int) {
	sp := ic.space
	nfields := len(sp.Def.Fields)
	hasTriggers := sp.HasTriggers(IS.TriggerDelete)
	if hasTriggers || len(sp.ParentFKs) > 0 {
		if ic.oldRow == 0 {
			ic.oldRow = p.prog.AllocRegs(nfields)
		}
		for i := 0; i < nfields; i++ {
			p.prog.EmitOp(VM.OpColumn, c, i, ic.oldRow+i)
		}
	}
	p.emitTriggers(sp, IS.TriggerDelete, IS.TriggerBefore, ic.oldRow)
	p.prog.EmitOp(VM.OpDelete, c, 0, 0)
	p.prog.Last().SetP5(VM.InstrFlagNChange)
	p.prog.SetComment("replace %s", sp.Name())
	if len(sp.ParentFKs) > 0 {
		p.emitFKParentScan(sp, ic.oldRow, 1)
	}
	p.emitTriggers(sp, IS.TriggerDelete, IS.TriggerAfter, ic.oldRow)
}
