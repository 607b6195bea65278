package CG

import (
	"strings"

	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/VM"
)

// pendingFK is a FOREIGN KEY waiting for the finishing pass. Column names
// are resolved there because a self-referencing key may name columns that
// are declared after it.
type pendingFK struct {
	def        IS.FKDef
	childCols  []string
	parentCols []string
	parent     *IS.Space
}

// AddForeignKey queues a FOREIGN KEY. Without child columns the key is the
// most recently added column; without parent columns it refers to the
// parent's primary key.
func (p *Parse) AddForeignKey(fk QP.ForeignKeyClause) {
	if p.space == nil || p.failed() {
		return
	}
	sp := p.space
	name := fk.Name
	if name == "" {
		name = p.fkName()
	} else if !p.checkIdentifier(name) {
		return
	} else if p.constraintTaken(name) {
		p.errorf(errors.SVDB_SCHEMA_EXISTS, errors.KindIdentifier,
			"Constraint '%s' already exists in space '%s'", name, sp.Name())
		return
	}

	pending := &pendingFK{
		childCols:  fk.ChildCols,
		parentCols: fk.ParentCols,
	}
	if len(pending.childCols) == 0 {
		n := len(sp.Def.Fields)
		if n == 0 {
			p.errorf(errors.SVDB_ERROR, errors.KindStructural,
				"Failed to create foreign key constraint '%s': no child column", name)
			return
		}
		pending.childCols = []string{sp.Def.Fields[n-1].Name}
	}

	selfRef := fk.ParentTable == sp.Name()
	parentRef := p.spaceRef()
	if !selfRef {
		parent := p.schema.SpaceByName(fk.ParentTable)
		if parent == nil {
			p.errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Space '%s' does not exist", fk.ParentTable)
			return
		}
		if parent.IsView() {
			p.errorf(errors.SVDB_ERROR, errors.KindReference,
				"Failed to create foreign key constraint '%s': referenced space can't be VIEW", name)
			return
		}
		pending.parent = parent
		parentRef = IS.Known(parent.ID())
	}

	pending.def = IS.FKDef{
		Name:     name,
		ChildID:  p.spaceRef(),
		ParentID: parentRef,
		Match:    orMatch(fk.Match),
		OnDelete: orAction(fk.OnDelete),
		OnUpdate: orAction(fk.OnUpdate),
		Deferred: fk.Deferred,
		SelfRef:  selfRef,
	}
	p.pendingFKs = append(p.pendingFKs, pending)
}

func orMatch(m QP.FKMatch) QP.FKMatch {
	if m == "" {
		return QP.FKMatchSimple
	}
	return m
}

func orAction(a QP.FKAction) QP.FKAction {
	if a == "" {
		return QP.FKNoAction
	}
	return a
}

// resolveFK turns the column names of a pending key into field links.
// The parent of a self-reference is the table under construction, with
// its primary key when no parent columns were given.
func (p *Parse) resolveFK(fk *pendingFK) bool {
	child := p.space
	parent := fk.parent
	if fk.def.SelfRef {
		parent = child
	}
	var parentFields []uint32
	if len(fk.parentCols) == 0 {
		pk := parent.PrimaryKey()
		if pk == nil {
			p.errorf(errors.SVDB_ERROR, errors.KindStructural,
				"Failed to create foreign key constraint '%s': referenced space has no primary key", fk.def.Name)
			return false
		}
		parentFields = pk.FieldNos()
	} else {
		for _, name := range fk.parentCols {
			no := parent.FieldIndex(name)
			if no < 0 {
				p.errorf(errors.SVDB_NOTFOUND, errors.KindReference,
					"Failed to create foreign key constraint '%s': unknown column %s in foreign key definition",
					fk.def.Name, name)
				return false
			}
			parentFields = append(parentFields, uint32(no))
		}
	}
	if len(parentFields) != len(fk.childCols) {
		if len(fk.parentCols) == 0 {
			p.errorf(errors.SVDB_ERROR, errors.KindStructural,
				"Failed to create foreign key constraint '%s': number of columns in foreign key does not match the number of columns in the primary index of referenced table",
				fk.def.Name)
		} else {
			p.errorf(errors.SVDB_ERROR, errors.KindStructural,
				"Failed to create foreign key constraint '%s': number of columns in foreign key does not match the number of referenced columns (%s)",
				fk.def.Name, strings.Join(fk.parentCols, ", "))
		}
		return false
	}
	fk.def.Links = fk.def.Links[:0]
	for i, name := range fk.childCols {
		no := child.FieldIndex(name)
		if no < 0 {
			p.errorf(errors.SVDB_NOTFOUND, errors.KindReference,
				"Failed to create foreign key constraint '%s': unknown column %s in foreign key definition",
				fk.def.Name, name)
			return false
		}
		fk.def.Links = append(fk.def.Links, IS.FKLink{ChildField: uint32(no), ParentField: parentFields[i]})
	}
	// child rows are checked through an ordered cursor on this index
	if idx, _ := parentIndex(parent, &fk.def); idx == nil {
		p.errorf(errors.SVDB_ERROR, errors.KindReference,
			"Failed to create foreign key constraint '%s': referenced fields don't compose unique index", fk.def.Name)
		return false
	}
	return true
}

// emitFKRow writes the _fk_constraint row of a resolved key.
func (p *Parse) emitFKRow(fk *IS.FKDef) {
	base := p.prog.GetTempRange(9)
	p.prog.EmitString(fk.Name, base+IS.FKFieldName)
	p.loadSpaceID(fk.ChildID, base+IS.FKFieldChildID)
	p.loadSpaceID(fk.ParentID, base+IS.FKFieldParentID)
	p.prog.EmitBool(fk.Deferred, base+IS.FKFieldDeferred)
	p.prog.EmitString(string(fk.Match), base+IS.FKFieldMatch)
	p.prog.EmitString(string(fk.OnDelete), base+IS.FKFieldOnDelete)
	p.prog.EmitString(string(fk.OnUpdate), base+IS.FKFieldOnUpdate)
	p.prog.EmitBlob(IS.EncodeFieldList(fk.ChildFields()), base+IS.FKFieldChildCols)
	p.prog.EmitBlob(IS.EncodeFieldList(fk.ParentFields()), base+IS.FKFieldParentCols)
	p.emitCatalogInsert(IS.FKConstraintSpaceID, base, 9, QP.OnConflictAbort)
	p.prog.ReleaseTempRange(base, 9)
}

// emitPendingFKs resolves and writes every queued foreign key. For an
// existing table a runtime probe rejects names already in the catalog,
// and the table must be empty: its rows were never checked against the
// parent.
func (p *Parse) emitPendingFKs() {
	for _, fk := range p.pendingFKs {
		if p.failed() || !p.resolveFK(fk) {
			return
		}
		if p.space.Provenance != IS.NewUnderConstruction {
			p.haltUnlessEmpty(p.space, errors.SVDB_ERROR,
				"Failed to create foreign key constraint '"+fk.def.Name+"': referencing space can't contain tuples")
			key := p.prog.GetTempRange(2)
			p.prog.EmitString(fk.def.Name, key)
			p.loadSpaceID(fk.def.ChildID, key+1)
			p.haltOnPresenceTest(presenceTest{
				spaceID: IS.FKConstraintSpaceID, key: key, keyLen: 2, haltIfPresent: true,
				code: errors.SVDB_SCHEMA_EXISTS, kind: errors.KindIdentifier,
				msg: "Constraint '" + fk.def.Name + "' already exists in space '" + p.space.Name() + "'",
			})
			p.prog.ReleaseTempRange(key, 2)
		}
		p.emitFKRow(&fk.def)
	}
}

// haltUnlessEmpty halts the program with code when sp holds any row.
func (p *Parse) haltUnlessEmpty(sp *IS.Space, code errors.ErrorCode, msg string) {
	if p.failed() {
		return
	}
	cursor := p.prog.AllocCursor()
	if !p.openCursor(cursor, sp, 0, false) {
		return
	}
	empty := p.prog.NewLabel()
	p.prog.EmitOp(VM.OpRewind, cursor, empty, 0)
	p.prog.EmitOp4(VM.OpSetDiag, int(code), 0, int(errors.KindStructural), msg)
	p.prog.EmitOp(VM.OpHalt, int(code), int(QP.OnConflictAbort), int(errors.KindStructural))
	p.prog.ResolveLabel(empty)
	p.prog.EmitOp(VM.OpClose, cursor, 0, 0)
}

// parentIndex finds a unique index of parent whose key is exactly the
// parent fields of fk, returning the child field feeding each key part.
func parentIndex(parent *IS.Space, fk *IS.FKDef) (*IS.IndexDef, []uint32) {
	for _, idx := range parent.Indexes {
		if !idx.Unique || idx.Type != IS.IndexTree || len(idx.Parts) != len(fk.Links) {
			continue
		}
		childFields := make([]uint32, 0, len(idx.Parts))
		for _, part := range idx.Parts {
			for _, l := range fk.Links {
				if l.ParentField == part.FieldNo {
					childFields = append(childFields, l.ChildField)
					break
				}
			}
		}
		if len(childFields) == len(idx.Parts) {
			return idx, childFields
		}
	}
	return nil, nil
}

// emitFKChildChecks checks that every foreign key of the new row at
// rowBase points at an existing parent row. A violation bumps the FK
// counter, which must be back to zero when the statement ends.
func (p *Parse) emitFKChildChecks(sp *IS.Space, rowBase int) {
	for _, fk := range sp.ChildFKs {
		if p.failed() {
			return
		}
		parent := p.schema.Space(fk.ParentID.ID())
		if parent == nil {
			p.errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Space '%d' does not exist", fk.ParentID.ID())
			return
		}
		idx, childFields := parentIndex(parent, fk)
		if idx == nil {
			p.errorf(errors.SVDB_ERROR, errors.KindReference,
				"Foreign key '%s': referenced fields don't compose unique index", fk.Name)
			return
		}
		ok := p.prog.NewLabel()
		violated := p.prog.NewLabel()

		// MATCH SIMPLE: any NULL child column satisfies the key. MATCH
		// FULL: only all of them NULL does.
		if fk.Match == QP.FKMatchFull {
			someSet := p.prog.NewLabel()
			for _, l := range fk.Links {
				p.prog.EmitOp(VM.OpNotNull, rowBase+int(l.ChildField), someSet, 0)
			}
			p.prog.EmitGoto(ok)
			p.prog.ResolveLabel(someSet)
			for _, l := range fk.Links {
				p.prog.EmitOp(VM.OpIsNull, rowBase+int(l.ChildField), violated, 0)
			}
		} else {
			for _, l := range fk.Links {
				p.prog.EmitOp(VM.OpIsNull, rowBase+int(l.ChildField), ok, 0)
			}
		}

		if fk.SelfRef {
			// the new row may be its own parent
			differs := p.prog.NewLabel()
			cmp := p.prog.GetTempReg()
			for _, l := range fk.Links {
				p.prog.EmitOp4(VM.OpEq, rowBase+int(l.ChildField), rowBase+int(l.ParentField), cmp, 0)
				p.prog.EmitOp(VM.OpIfNot, cmp, differs, 0)
				p.prog.Last().SetP5(VM.InstrFlagNullJump)
			}
			p.prog.ReleaseTempReg(cmp)
			p.prog.EmitGoto(ok)
			p.prog.ResolveLabel(differs)
		}

		cursor := p.prog.AllocCursor()
		p.openCursor(cursor, parent, idx.IID, false)
		key := p.prog.GetTempRange(len(childFields))
		for i, f := range childFields {
			p.prog.EmitSCopy(rowBase+int(f), key+i)
		}
		p.prog.EmitOp4(VM.OpFound, cursor, ok, key, len(childFields))
		p.prog.ReleaseTempRange(key, len(childFields))
		p.prog.ResolveLabel(violated)
		p.emitFKViolation(fk, 1)
		p.prog.ResolveLabel(ok)
	}
}

func (p *Parse) emitFKViolation(fk *IS.FKDef, delta int) {
	deferred := 0
	if fk.Deferred {
		deferred = 1
	}
	p.prog.EmitOp(VM.OpFkCounter, deferred, delta, 0)
	p.prog.SetComment("%s", fk.Name)
}

// emitFKParentScan adjusts the FK counter by delta for every child row
// that references the parent key held in the row at rowBase. Inserting a
// parent row settles orphans counted earlier in the statement; deleting
// one orphans its children.
func (p *Parse) emitFKParentScan(sp *IS.Space, rowBase int, delta int) {
	for _, fk := range sp.ParentFKs {
		if p.failed() {
			return
		}
		child := p.schema.Space(fk.ChildID.ID())
		if child == nil || child.PrimaryKey() == nil {
			continue
		}
		cursor := p.prog.AllocCursor()
		if !p.openCursor(cursor, child, 0, false) {
			return
		}
		done := p.prog.NewLabel()
		next := p.prog.NewLabel()
		val := p.prog.GetTempReg()
		cmp := p.prog.GetTempReg()
		p.prog.EmitOp(VM.OpRewind, cursor, done, 0)
		top := p.prog.Addr()
		for _, l := range fk.Links {
			p.prog.EmitOp(VM.OpColumn, cursor, int(l.ChildField), val)
			p.prog.EmitOp4(VM.OpEq, val, rowBase+int(l.ParentField), cmp, int(fieldCollation(child, l.ChildField)))
			p.prog.EmitOp(VM.OpIfNot, cmp, next, 0)
			p.prog.Last().SetP5(VM.InstrFlagNullJump)
		}
		p.emitFKViolation(fk, delta)
		p.prog.ResolveLabel(next)
		p.prog.EmitOp(VM.OpNext, cursor, top, 0)
		p.prog.ResolveLabel(done)
		p.prog.EmitOp(VM.OpClose, cursor, 0, 0)
		p.prog.ReleaseTempReg(cmp)
		p.prog.ReleaseTempReg(val)
	}
}

func fieldCollation(sp *IS.Space, no uint32) uint32 {
	if int(no) < len(sp.Def.Fields) {
		return sp.Def.Fields[no].CollID
	}
	return IS.CollNone
}
