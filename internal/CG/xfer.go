package CG

import (
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/VM"
)

// xferSource returns the source space when INSERT INTO dest SELECT can
// copy whole tuples, nil when it must go row by row. Nothing here raises
// an error; an ineligible statement is compiled by the general path,
// which reports any problem.
func (p *Parse) xferSource(dest *IS.Space, sel *QP.SelectStmt) *IS.Space {
	if sel.IsCompound() || sel.From == nil || sel.Joined || sel.Distinct ||
		sel.Where != nil || len(sel.GroupBy) > 0 || sel.Having != nil ||
		len(sel.OrderBy) > 0 || sel.Limit != nil || sel.Offset != nil {
		return nil
	}
	if len(sel.Columns) != 1 || !QP.IsStar(sel.Columns[0].Expr) {
		return nil
	}
	src := p.schema.SpaceByName(sel.From.Name)
	if src == nil || src.IsView() || src.ID() == dest.ID() {
		return nil
	}
	if src.PrimaryKey() == nil || dest.PrimaryKey() == nil {
		return nil
	}
	if !xferFieldsMatch(dest, src) || !xferIndexesMatch(dest, src) {
		return nil
	}
	if len(dest.Checks) > 0 || len(src.Checks) > 0 {
		return nil
	}
	if len(dest.ChildFKs) > 0 || len(dest.ParentFKs) > 0 || len(dest.Triggers) > 0 {
		return nil
	}
	p.log.Debug("xfer %s -> %s", src.Name(), dest.Name())
	return src
}

// xferFieldsMatch requires equal types and collations field by field; a
// NOT NULL destination field needs a NOT NULL source field.
func xferFieldsMatch(dest, src *IS.Space) bool {
	if len(dest.Def.Fields) != len(src.Def.Fields) {
		return false
	}
	for i := range dest.Def.Fields {
		d, s := &dest.Def.Fields[i], &src.Def.Fields[i]
		if d.Type != s.Type || d.CollID != s.CollID {
			return false
		}
		if !d.IsNullable() && s.IsNullable() {
			return false
		}
	}
	return true
}

// xferIndexesMatch requires a source index of the same shape for every
// destination index, so the source holds no tuple the destination
// indexes would reject.
func xferIndexesMatch(dest, src *IS.Space) bool {
	for _, d := range dest.Indexes {
		found := false
		for _, s := range src.Indexes {
			if sameIndexShape(d, s) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sameIndexShape(a, b *IS.IndexDef) bool {
	if a.Unique != b.Unique || a.Type != b.Type || len(a.Parts) != len(b.Parts) {
		return false
	}
	for i := range a.Parts {
		x, y := a.Parts[i], b.Parts[i]
		if x.FieldNo != y.FieldNo || x.CollID != y.CollID || x.Order != y.Order {
			return false
		}
	}
	return true
}

// xferNeedsGuard reports whether a conflict in the destination could be
// resolved by anything but aborting the statement. Copying whole tuples
// can only match the row-by-row result then if the destination starts
// empty.
func xferNeedsGuard(dest *IS.Space, action QP.OnConflict) bool {
	for _, idx := range dest.Indexes {
		switch effectiveAction(action, idx.OnConflict) {
		case QP.OnConflictAbort, QP.OnConflictRollback:
		default:
			return true
		}
	}
	return false
}

// emitXfer copies every source tuple into the destination. When a guard
// is needed it returns the label of the row-by-row fallback, taken when
// the destination is not empty, and the label after both paths; both are
// zero otherwise.
func (p *Parse) emitXfer(ic *insertCtx, src *IS.Space) (fallback, exit int) {
	dest := ic.space
	if xferNeedsGuard(dest, ic.action) {
		fallback = p.prog.NewLabel()
		exit = p.prog.NewLabel()
		start := p.prog.NewLabel()
		p.prog.EmitOp(VM.OpRewind, ic.cursor, start, 0)
		p.prog.SetComment("xfer only into an empty space")
		p.prog.EmitGoto(fallback)
		p.prog.ResolveLabel(start)
	}

	c := p.prog.AllocCursor()
	if !p.openCursor(c, src, 0, false) {
		return 0, 0
	}
	end := p.prog.NewLabel()
	rec := p.prog.GetTempReg()
	p.prog.EmitOp(VM.OpRewind, c, end, 0)
	top := p.prog.Addr()
	p.prog.EmitOp(VM.OpRowData, c, rec, 0)
	p.prog.EmitOp(VM.OpIdxInsert, rec, ic.cursor, int(QP.OnConflictAbort))
	p.prog.Last().SetP5(VM.InstrFlagXfer | VM.InstrFlagNChange)
	p.prog.SetComment("%s", dest.Name())
	p.prog.EmitOp(VM.OpAddImm, p.prog.ChangeReg, 1, 0)
	p.prog.EmitOp(VM.OpNext, c, top, 0)
	p.prog.ResolveLabel(end)
	p.prog.EmitOp(VM.OpClose, c, 0, 0)
	p.prog.ReleaseTempReg(rec)
	if fallback != 0 {
		p.prog.EmitGoto(exit)
	}
	return fallback, exit
}
