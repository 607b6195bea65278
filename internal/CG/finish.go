package CG

import (
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/VM"
)

// FinishTable completes CREATE TABLE: it fixes the final shape of the
// table and emits its catalog rows. The order of the writes matters, each
// step refers to objects created by the ones before it:
//
//	_space, _index (primary key first), _sequence + _space_sequence,
//	_fk_constraint, _ck_constraint
func (p *Parse) FinishTable() {
	if p.space == nil || p.failed() {
		return
	}
	sp := p.space
	if !sp.IsView() {
		if sp.PrimaryKey() == nil {
			p.errorf(errors.SVDB_ERROR, errors.KindStructural,
				"Failed to create space '%s': PRIMARY KEY missing", sp.Name())
			return
		}
		if !p.fixNullability(0) {
			return
		}
		renumberIndexes(sp)
	}

	if p.ifNotExists {
		key := p.prog.GetTempReg()
		p.prog.EmitString(sp.Name(), key)
		p.haltOnPresenceTest(presenceTest{
			spaceID: IS.SpaceSpaceID, iid: 2, key: key, keyLen: 1,
			haltIfPresent: true, soft: true,
		})
		p.prog.ReleaseTempReg(key)
	}
	p.prog.EmitOp(VM.OpNextSpaceID, p.spaceReg, 0, 0)
	p.prog.SetComment("new space id")
	p.emitSpaceRow(sp, QP.OnConflictAbort)
	p.emitIndexRows(0)
	if p.autoinc >= 0 {
		p.emitSequence()
	}
	p.emitPendingFKs()
	p.emitPendingChecks()
	p.log.Debug("table %s: %d fields, %d indexes, %d checks, %d foreign keys",
		sp.Name(), len(sp.Def.Fields), len(sp.Indexes), len(p.pendingChecks), len(p.pendingFKs))
}

// fixNullability makes the fields of a newly declared primary key NOT
// NULL and every new field that did not state its nullability nullable,
// then refreshes the key parts of the new indexes. Fields before
// firstField and indexes already in the catalog are left alone.
func (p *Parse) fixNullability(firstField int) bool {
	sp := p.space
	if pk := sp.PrimaryKey(); pk != nil && p.isNewIndex(pk) {
		for _, part := range pk.Parts {
			f := &sp.Def.Fields[part.FieldNo]
			switch f.NullAction {
			case QP.OnConflictNone:
				p.errorf(errors.SVDB_ERROR, errors.KindStructural,
					"Primary index of space '%s' can not contain nullable parts", sp.Name())
				return false
			case QP.OnConflictDefault:
				f.NullAction = QP.OnConflictAbort
			}
		}
	}
	for i := firstField; i < len(sp.Def.Fields); i++ {
		if sp.Def.Fields[i].NullAction == QP.OnConflictDefault {
			sp.Def.Fields[i].NullAction = QP.OnConflictNone
		}
	}
	refreshKeyParts(sp, sp.Indexes[p.liveIndexes:])
	return true
}

func (p *Parse) isNewIndex(idx *IS.IndexDef) bool {
	for _, x := range p.space.Indexes[p.liveIndexes:] {
		if x == idx {
			return true
		}
	}
	return false
}

func refreshKeyParts(sp *IS.Space, indexes []*IS.IndexDef) {
	for _, idx := range indexes {
		for i := range idx.Parts {
			idx.Parts[i].IsNullable = sp.Def.Fields[idx.Parts[i].FieldNo].IsNullable()
		}
	}
}

// emitSpaceRow writes the _space row of sp with its id taken from
// spaceReg.
func (p *Parse) emitSpaceRow(sp *IS.Space, action QP.OnConflict) {
	def := sp.Def
	base := p.prog.GetTempRange(7)
	p.prog.EmitSCopy(p.spaceReg, base+IS.SpaceFieldID)
	p.prog.EmitInteger(int64(def.Owner), base+IS.SpaceFieldOwner)
	p.prog.EmitString(def.Name, base+IS.SpaceFieldName)
	p.prog.EmitString(def.Engine, base+IS.SpaceFieldEngine)
	p.prog.EmitInteger(int64(len(def.Fields)), base+IS.SpaceFieldFieldCount)
	p.prog.EmitBlob(IS.EncodeSpaceOpts(def.Opts), base+IS.SpaceFieldOpts)
	p.prog.EmitBlob(IS.EncodeFormat(def.Fields), base+IS.SpaceFieldFormat)
	p.emitCatalogInsert(IS.SpaceSpaceID, base, 7, action)
	p.prog.ReleaseTempRange(base, 7)
}

// emitIndexRows writes the _index rows of the indexes from position from
// on; ALTER passes the number of indexes already in the catalog.
func (p *Parse) emitIndexRows(from int) {
	for _, idx := range p.space.Indexes[from:] {
		if p.failed() {
			return
		}
		p.emitIndexRow(idx)
	}
}

func (p *Parse) emitIndexRow(idx *IS.IndexDef) {
	base := p.prog.GetTempRange(6)
	p.prog.EmitSCopy(p.spaceReg, base+IS.IndexFieldSpaceID)
	p.prog.EmitInteger(int64(idx.IID), base+IS.IndexFieldIID)
	p.prog.EmitString(idx.Name, base+IS.IndexFieldName)
	p.prog.EmitString(string(idx.Type), base+IS.IndexFieldType)
	p.prog.EmitBlob(IS.EncodeIndexOpts(idx.Unique, idx.OnConflict), base+IS.IndexFieldOpts)
	p.prog.EmitBlob(IS.EncodeIndexParts(idx.Parts), base+IS.IndexFieldParts)
	p.emitCatalogInsert(IS.IndexSpaceID, base, 6, QP.OnConflictAbort)
	p.prog.ReleaseTempRange(base, 6)
}

// emitSequence creates the sequence of an AUTOINCREMENT column and links
// it to the table. A table that already has a sequence link can not get a
// second one.
func (p *Parse) emitSequence() {
	sp := p.space
	if sp.Provenance != IS.NewUnderConstruction {
		p.haltOnPresenceTest(presenceTest{
			spaceID: IS.SpaceSequenceSpaceID, key: p.spaceReg, keyLen: 1, haltIfPresent: true,
			code: errors.SVDB_SCHEMA_EXISTS, kind: errors.KindStructural,
			msg: "Can't add AUTOINCREMENT: space '" + sp.Name() + "' can't feature more than one AUTOINCREMENT field",
		})
	}
	seq := IS.NewSequence(sp.Name())
	seqReg := p.prog.AllocReg()
	p.prog.EmitOp(VM.OpNextSequenceID, seqReg, 0, 0)

	base := p.prog.GetTempRange(9)
	p.prog.EmitSCopy(seqReg, base+IS.SequenceFieldID)
	p.prog.EmitInteger(int64(IS.AdminUserID), base+IS.SequenceFieldOwner)
	p.prog.EmitString(seq.Name, base+IS.SequenceFieldName)
	p.prog.EmitInteger(seq.Step, base+IS.SequenceFieldStep)
	p.prog.EmitInteger(seq.Min, base+IS.SequenceFieldMin)
	p.prog.EmitInteger(seq.Max, base+IS.SequenceFieldMax)
	p.prog.EmitInteger(seq.Start, base+IS.SequenceFieldStart)
	p.prog.EmitInteger(seq.Cache, base+IS.SequenceFieldCache)
	p.prog.EmitBool(seq.Cycle, base+IS.SequenceFieldCycle)
	p.emitCatalogInsert(IS.SequenceSpaceID, base, 9, QP.OnConflictAbort)
	p.prog.ReleaseTempRange(base, 9)

	link := p.prog.GetTempRange(5)
	p.prog.EmitSCopy(p.spaceReg, link+IS.SpaceSequenceFieldSpaceID)
	p.prog.EmitSCopy(seqReg, link+IS.SpaceSequenceFieldSequenceID)
	p.prog.EmitBool(true, link+IS.SpaceSequenceFieldIsGenerated)
	p.prog.EmitInteger(int64(p.autoinc), link+IS.SpaceSequenceFieldFieldNo)
	p.prog.EmitString("", link+IS.SpaceSequenceFieldPath)
	p.emitCatalogInsert(IS.SpaceSequenceSpaceID, link, 5, QP.OnConflictAbort)
	p.prog.ReleaseTempRange(link, 5)
}

// emitPendingChecks writes the queued CHECK constraints. For an existing
// table a runtime probe rejects names already in the catalog.
func (p *Parse) emitPendingChecks() {
	for _, ck := range p.pendingChecks {
		if p.failed() {
			return
		}
		if p.space.Provenance != IS.NewUnderConstruction {
			key := p.prog.GetTempRange(2)
			p.prog.EmitSCopy(p.spaceReg, key)
			p.prog.EmitString(ck.Name, key+1)
			p.haltOnPresenceTest(presenceTest{
				spaceID: IS.CKConstraintSpaceID, key: key, keyLen: 2, haltIfPresent: true,
				code: errors.SVDB_SCHEMA_EXISTS, kind: errors.KindIdentifier,
				msg: "Constraint '" + ck.Name + "' already exists in space '" + p.space.Name() + "'",
			})
			p.prog.ReleaseTempRange(key, 2)
		}
		p.emitCheckRow(ck, QP.OnConflictAbort)
	}
}

func (p *Parse) emitCheckRow(ck *IS.CheckDef, action QP.OnConflict) {
	base := p.prog.GetTempRange(5)
	p.prog.EmitSCopy(p.spaceReg, base+IS.CKFieldSpaceID)
	p.prog.EmitString(ck.Name, base+IS.CKFieldName)
	p.prog.EmitBool(ck.Enabled, base+IS.CKFieldEnabled)
	p.prog.EmitString(ck.Language, base+IS.CKFieldLanguage)
	p.prog.EmitString(ck.Code, base+IS.CKFieldCode)
	p.emitCatalogInsert(IS.CKConstraintSpaceID, base, 5, action)
	p.prog.ReleaseTempRange(base, 5)
}
