package CG

import (
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
)

// prepareAlter makes a private copy of a live space to build changes on.
// The id is known, so spaceReg is loaded with a constant.
func (p *Parse) prepareAlter(sp *IS.Space) {
	p.space = sp.ShallowCopy()
	p.space.Provenance = IS.ExistingAltered
	p.liveIndexes = len(sp.Indexes)
	p.spaceReg = p.prog.AllocReg()
	p.prog.EmitInteger(int64(sp.ID()), p.spaceReg)
	p.prog.SetComment("space %s", sp.Name())
}

// AlterTable compiles one ALTER TABLE action.
func (p *Parse) AlterTable(stmt *QP.AlterTableStmt) {
	sp := p.lookupTable(stmt.Table, false)
	if sp == nil {
		return
	}
	p.prepareAlter(sp)
	p.log.Debug("alter table %s: action %d", sp.Name(), stmt.Action)

	switch stmt.Action {
	case QP.AlterAddColumn:
		p.alterAddColumn(stmt.Column)
	case QP.AlterAddConstraint:
		p.alterAddConstraint(stmt.Constraint)
	case QP.AlterDropConstraint:
		p.alterDropConstraint(stmt.Name)
	case QP.AlterRename:
		p.alterRename(stmt.Name)
	case QP.AlterEnableCheck:
		p.alterEnableCheck(stmt.Name, stmt.Enable)
	default:
		p.errorf(errors.SVDB_ERROR, errors.KindStructural, "Unsupported ALTER TABLE action %d", stmt.Action)
	}
}

func (p *Parse) alterAddColumn(col *QP.ColumnDef) {
	if col == nil {
		p.errorf(errors.SVDB_MISUSE, errors.KindStructural, "ALTER TABLE ADD COLUMN without a column")
		return
	}
	first := len(p.space.Def.Fields)
	p.defineColumn(col)
	if p.failed() || !p.fixNullability(first) {
		return
	}
	p.emitSpaceRow(p.space, QP.OnConflictReplace)
	p.emitIndexRows(p.liveIndexes)
	if p.autoinc >= 0 {
		p.emitSequence()
	}
	p.emitPendingFKs()
	p.emitPendingChecks()
}

func (p *Parse) alterAddConstraint(tc *QP.TableConstraint) {
	if tc == nil {
		p.errorf(errors.SVDB_MISUSE, errors.KindStructural, "ALTER TABLE ADD CONSTRAINT without a constraint")
		return
	}
	sp := p.space
	if tc.Kind == QP.ConstraintUnique && sp.PrimaryKey() == nil {
		p.errorf(errors.SVDB_ERROR, errors.KindStructural,
			"Can't create or modify index '%s' in space '%s': can not add a secondary key before primary",
			tc.Name, sp.Name())
		return
	}
	if tc.Name != "" && (sp.IndexByName(tc.Name) != nil || p.constraintTaken(tc.Name)) {
		p.errorf(errors.SVDB_SCHEMA_EXISTS, errors.KindIdentifier,
			"Constraint '%s' already exists in space '%s'", tc.Name, sp.Name())
		return
	}
	before := make([]QP.OnConflict, len(sp.Def.Fields))
	for i := range sp.Def.Fields {
		before[i] = sp.Def.Fields[i].NullAction
	}
	p.addConstraint(tc)
	if p.failed() || !p.fixNullability(len(sp.Def.Fields)) {
		return
	}
	for i := range before {
		if sp.Def.Fields[i].NullAction != before[i] {
			// a new primary key tightened a field; the format must follow
			p.emitSpaceRow(sp, QP.OnConflictReplace)
			break
		}
	}
	p.emitIndexRows(p.liveIndexes)
	if p.autoinc >= 0 {
		p.emitSequence()
	}
	p.emitPendingFKs()
	p.emitPendingChecks()
}

// alterDropConstraint drops the index, CHECK or FOREIGN KEY called name.
func (p *Parse) alterDropConstraint(name string) {
	sp := p.space
	ref := IS.Known(sp.ID())
	if idx := sp.IndexByName(name); idx != nil {
		if p.canDropIndex(sp, idx) {
			p.deleteCatalogRow(IS.IndexSpaceID, &ref, int64(idx.IID))
		}
		return
	}
	if ck := sp.Check(name); ck != nil {
		p.deleteCatalogRow(IS.CKConstraintSpaceID, &ref, ck.Name)
		return
	}
	if fk := sp.ChildFK(name); fk != nil {
		p.deleteFKRow(fk)
		return
	}
	p.errorf(errors.SVDB_NOTFOUND, errors.KindReference,
		"Constraint '%s' does not exist in space '%s'", name, sp.Name())
}

// canDropIndex refuses to drop a primary key that other indexes depend
// on, or the only unique index a foreign key can refer through.
func (p *Parse) canDropIndex(sp *IS.Space, idx *IS.IndexDef) bool {
	if idx.IID == 0 && len(sp.Indexes) > 1 {
		p.errorf(errors.SVDB_SCHEMA_DEPENDENT, errors.KindStructural,
			"Can't drop primary key in space '%s' while secondary keys exist", sp.Name())
		return false
	}
	rest := sp.ShallowCopy()
	rest.Indexes = rest.Indexes[:0]
	for _, other := range sp.Indexes {
		if other != idx {
			rest.Indexes = append(rest.Indexes, other)
		}
	}
	for _, fk := range sp.ParentFKs {
		if other, _ := parentIndex(sp, fk); other != idx {
			continue
		}
		if alt, _ := parentIndex(rest, fk); alt == nil {
			p.errorf(errors.SVDB_SCHEMA_DEPENDENT, errors.KindStructural,
				"Can't drop index '%s' in space '%s': foreign key '%s' depends on it", idx.Name, sp.Name(), fk.Name)
			return false
		}
	}
	return true
}

func (p *Parse) deleteFKRow(fk *IS.FKDef) {
	key := p.prog.GetTempRange(2)
	p.prog.EmitString(fk.Name, key)
	p.loadSpaceID(fk.ChildID, key+1)
	p.emitCatalogDelete(IS.FKConstraintSpaceID, key, 2)
	p.prog.ReleaseTempRange(key, 2)
}

func (p *Parse) alterRename(name string) {
	if !p.checkIdentifier(name) {
		return
	}
	if p.schema.SpaceByName(name) != nil {
		p.errorf(errors.SVDB_SCHEMA_EXISTS, errors.KindIdentifier, "Space '%s' already exists", name)
		return
	}
	p.space.Def.Name = name
	p.emitSpaceRow(p.space, QP.OnConflictReplace)
}

func (p *Parse) alterEnableCheck(name string, enable bool) {
	ck := p.space.Check(name)
	if ck == nil {
		p.errorf(errors.SVDB_NOTFOUND, errors.KindReference,
			"Constraint '%s' does not exist in space '%s'", name, p.space.Name())
		return
	}
	cp := *ck
	cp.Enabled = enable
	p.emitCheckRow(&cp, QP.OnConflictReplace)
}
