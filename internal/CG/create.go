package CG

import (
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
)

// CreateTable compiles CREATE TABLE.
func (p *Parse) CreateTable(stmt *QP.CreateTableStmt) {
	sp := p.StartTable(stmt.Name, TableOptions{
		IfNotExists: stmt.IfNotExists,
		Temporary:   stmt.Temporary,
		Engine:      stmt.Engine,
	})
	if sp == nil {
		return
	}
	for i := range stmt.Columns {
		p.defineColumn(&stmt.Columns[i])
	}
	for i := range stmt.Constraints {
		p.addConstraint(&stmt.Constraints[i])
	}
	p.FinishTable()
}

// defineColumn adds one column with its inline clauses.
func (p *Parse) defineColumn(col *QP.ColumnDef) {
	typ, ok := IS.ParseFieldType(col.Type)
	if !ok {
		p.errorf(errors.SVDB_ERROR, errors.KindStructural,
			"Unknown type '%s' of column '%s'", col.Type, col.Name)
		return
	}
	no := p.AddColumn(col.Name, typ)
	if no < 0 {
		return
	}
	if col.NotNull {
		action := col.NullAction
		if action == QP.OnConflictDefault {
			action = QP.OnConflictAbort
		}
		p.SetNullableAction(no, action)
	}
	if col.Null {
		p.SetNullableAction(no, QP.OnConflictNone)
	}
	if col.Collation != "" {
		p.SetCollation(no, col.Collation)
	}
	if col.Default != "" {
		p.AddDefaultValue(no, col.Default)
	}
	for i := range col.Constraints {
		p.addConstraint(&col.Constraints[i])
	}
}

// addConstraint applies a PRIMARY KEY, UNIQUE, CHECK or FOREIGN KEY
// clause. A column clause has no column list and applies to the most
// recently added column.
func (p *Parse) addConstraint(tc *QP.TableConstraint) {
	switch tc.Kind {
	case QP.ConstraintPrimaryKey:
		p.declarePrimaryKey(tc.Name, tc.Columns, tc.OnConflict, tc.Autoincrement, tc.Order)
	case QP.ConstraintUnique:
		p.AddUnique(tc.Name, tc.Columns, tc.OnConflict)
	case QP.ConstraintCheck:
		p.AddCheckConstraint(tc.Name, tc.Check)
	case QP.ConstraintForeignKey:
		if tc.ForeignKey == nil {
			p.errorf(errors.SVDB_MISUSE, errors.KindStructural, "FOREIGN KEY clause without a reference")
			return
		}
		fk := *tc.ForeignKey
		if fk.Name == "" {
			fk.Name = tc.Name
		}
		p.AddForeignKey(fk)
	default:
		p.errorf(errors.SVDB_MISUSE, errors.KindStructural, "Unknown constraint kind %d", tc.Kind)
	}
}

// CreateView compiles CREATE VIEW. A view has no indexes; its fields are
// the result columns of the SELECT.
func (p *Parse) CreateView(stmt *QP.CreateViewStmt) {
	if stmt.Select == nil {
		p.errorf(errors.SVDB_MISUSE, errors.KindStructural, "CREATE VIEW without a SELECT")
		return
	}
	names := p.selectColumnNames(stmt.Select)
	if p.failed() {
		return
	}
	if len(stmt.Columns) > 0 {
		if len(stmt.Columns) != len(names) {
			p.errorf(errors.SVDB_ERROR, errors.KindStructural,
				"expected %d columns for '%s' but got %d", len(stmt.Columns), stmt.Name, len(names))
			return
		}
		names = stmt.Columns
	}
	sp := p.StartTable(stmt.Name, TableOptions{
		IfNotExists: stmt.IfNotExists,
		IsView:      true,
		ViewSQL:     stmt.Select.String(),
	})
	if sp == nil {
		return
	}
	for _, name := range names {
		p.AddColumn(name, IS.FieldAny)
	}
	p.fixNullability(0)
	p.FinishTable()
}

// CreateIndex compiles CREATE INDEX.
func (p *Parse) CreateIndex(stmt *QP.CreateIndexStmt) {
	sp := p.lookupTable(stmt.Table, false)
	if sp == nil || !p.checkIdentifier(stmt.Name) {
		return
	}
	typ, ok := IS.ParseIndexType(stmt.Type)
	if !ok {
		p.errorf(errors.SVDB_ERROR, errors.KindReference, "Unknown index type '%s'", stmt.Type)
		return
	}
	switch {
	case typ == IS.IndexRTree || typ == IS.IndexBitset:
		p.errorf(errors.SVDB_ERROR, errors.KindReference,
			"Can't create index '%s': %s index is not supported", stmt.Name, typ)
		return
	case typ == IS.IndexHash && !stmt.Unique:
		p.errorf(errors.SVDB_ERROR, errors.KindReference,
			"Can't create index '%s': HASH index must be unique", stmt.Name)
		return
	}
	if sp.IndexByName(stmt.Name) != nil && !stmt.IfNotExists {
		p.errorf(errors.SVDB_SCHEMA_EXISTS, errors.KindIdentifier,
			"Index '%s' already exists in space '%s'", stmt.Name, sp.Name())
		return
	}
	if sp.PrimaryKey() == nil {
		p.errorf(errors.SVDB_ERROR, errors.KindStructural,
			"Can't create or modify index '%s' in space '%s': can not add a secondary key before primary",
			stmt.Name, sp.Name())
		return
	}
	p.prepareAlter(sp)
	if stmt.IfNotExists {
		key := p.prog.GetTempRange(2)
		p.prog.EmitSCopy(p.spaceReg, key)
		p.prog.EmitString(stmt.Name, key+1)
		p.haltOnPresenceTest(presenceTest{
			spaceID: IS.IndexSpaceID, iid: 2, key: key, keyLen: 2,
			haltIfPresent: true, soft: true,
		})
		p.prog.ReleaseTempRange(key, 2)
		if sp.IndexByName(stmt.Name) != nil {
			return
		}
	}
	idx := p.addIndex(indexSpec{name: stmt.Name, cols: stmt.Columns, unique: stmt.Unique, typ: typ})
	if idx == nil {
		return
	}
	refreshKeyParts(p.space, []*IS.IndexDef{idx})
	p.emitIndexRow(idx)
}

// DropTable compiles DROP TABLE and DROP VIEW. Dependent objects go
// first: triggers, the sequence, foreign keys, checks, then secondary
// indexes in reverse order, the primary key and finally the space.
func (p *Parse) DropTable(stmt *QP.DropTableStmt) {
	sp := p.schema.SpaceByName(stmt.Name)
	if sp == nil {
		if !stmt.IfExists {
			p.errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Space '%s' does not exist", stmt.Name)
		}
		return
	}
	if IS.IsSystemSpace(sp.ID()) {
		p.errorf(errors.SVDB_ERROR, errors.KindReference, "Can't drop system space '%s'", sp.Name())
		return
	}
	if stmt.IsView != sp.IsView() {
		what := "table"
		if stmt.IsView {
			what = "view"
		}
		p.errorf(errors.SVDB_ERROR, errors.KindReference, "Space '%s' is not a %s", sp.Name(), what)
		return
	}
	for _, fk := range sp.ParentFKs {
		if !fk.SelfRef {
			p.errorf(errors.SVDB_SCHEMA_DEPENDENT, errors.KindStructural,
				"Can't drop space '%s': other objects depend on it", sp.Name())
			return
		}
	}
	p.log.Debug("drop space %s", sp.Name())
	ref := IS.Known(sp.ID())
	for _, tr := range sp.Triggers {
		p.deleteCatalogRow(IS.TriggerSpaceID, nil, tr.Name)
	}
	if sp.Sequence != nil {
		p.deleteCatalogRow(IS.SpaceSequenceSpaceID, &ref)
		p.deleteCatalogRow(IS.SequenceSpaceID, nil, int64(sp.Sequence.ID))
	}
	for _, fk := range sp.ChildFKs {
		p.deleteFKRow(fk)
	}
	for _, ck := range sp.Checks {
		p.deleteCatalogRow(IS.CKConstraintSpaceID, &ref, ck.Name)
	}
	for i := len(sp.Indexes) - 1; i >= 0; i-- {
		if sp.Indexes[i].IID != 0 {
			p.deleteCatalogRow(IS.IndexSpaceID, &ref, int64(sp.Indexes[i].IID))
		}
	}
	if sp.PrimaryKey() != nil {
		p.deleteCatalogRow(IS.IndexSpaceID, &ref, int64(0))
	}
	p.deleteCatalogRow(IS.SpaceSpaceID, &ref)
}

// DropIndex compiles DROP INDEX.
func (p *Parse) DropIndex(stmt *QP.DropIndexStmt) {
	sp := p.schema.SpaceByName(stmt.Table)
	if sp == nil {
		if !stmt.IfExists {
			p.errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Space '%s' does not exist", stmt.Table)
		}
		return
	}
	idx := sp.IndexByName(stmt.Name)
	if idx == nil {
		if !stmt.IfExists {
			p.errorf(errors.SVDB_NOTFOUND, errors.KindReference,
				"No index '%s' is defined in space '%s'", stmt.Name, sp.Name())
		}
		return
	}
	if !p.canDropIndex(sp, idx) {
		return
	}
	ref := IS.Known(sp.ID())
	p.deleteCatalogRow(IS.IndexSpaceID, &ref, int64(idx.IID))
}

// findTrigger returns the trigger called name and its space.
func (p *Parse) findTrigger(name string) (*IS.TriggerDef, *IS.Space) {
	for _, sp := range p.schema.Spaces() {
		for _, tr := range sp.Triggers {
			if tr.Name == name {
				return tr, sp
			}
		}
	}
	return nil, nil
}

// CreateTrigger registers a row trigger. INSTEAD OF triggers are only
// allowed on views and views accept nothing else.
func (p *Parse) CreateTrigger(stmt *QP.CreateTriggerStmt) {
	if !p.checkIdentifier(stmt.Name) {
		return
	}
	sp := p.lookupTable(stmt.Table, true)
	if sp == nil {
		return
	}
	event := IS.TriggerEvent(stmt.Event)
	switch event {
	case IS.TriggerInsert, IS.TriggerDelete, IS.TriggerUpdate:
	default:
		p.errorf(errors.SVDB_ERROR, errors.KindStructural, "Unknown trigger event '%s'", stmt.Event)
		return
	}
	timing := IS.TriggerTiming(stmt.Timing)
	if timing == "" {
		timing = IS.TriggerBefore
	}
	switch timing {
	case IS.TriggerBefore, IS.TriggerAfter:
		if sp.IsView() {
			p.errorf(errors.SVDB_ERROR, errors.KindReference,
				"cannot create %s trigger on view: %s", timing, sp.Name())
			return
		}
	case IS.TriggerInsteadOf:
		if !sp.IsView() {
			p.errorf(errors.SVDB_ERROR, errors.KindReference,
				"cannot create INSTEAD OF trigger on space: %s", sp.Name())
			return
		}
	default:
		p.errorf(errors.SVDB_ERROR, errors.KindStructural, "Unknown trigger timing '%s'", stmt.Timing)
		return
	}
	if tr, _ := p.findTrigger(stmt.Name); tr != nil && !stmt.IfNotExists {
		p.errorf(errors.SVDB_SCHEMA_EXISTS, errors.KindIdentifier, "Trigger '%s' already exists", stmt.Name)
		return
	}
	if stmt.IfNotExists {
		key := p.loadConsts(stmt.Name)
		p.haltOnPresenceTest(presenceTest{
			spaceID: IS.TriggerSpaceID, key: key, keyLen: 1, haltIfPresent: true, soft: true,
		})
		p.prog.ReleaseTempReg(key)
	}
	base := p.loadConsts(stmt.Name, int64(sp.ID()), IS.EncodeTriggerOpts(event, timing))
	p.emitCatalogInsert(IS.TriggerSpaceID, base, 3, QP.OnConflictAbort)
	p.prog.ReleaseTempRange(base, 3)
}

// DropTrigger compiles DROP TRIGGER.
func (p *Parse) DropTrigger(stmt *QP.DropTriggerStmt) {
	if tr, _ := p.findTrigger(stmt.Name); tr == nil {
		if !stmt.IfExists {
			p.errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Trigger '%s' doesn't exist", stmt.Name)
		}
		return
	}
	p.deleteCatalogRow(IS.TriggerSpaceID, nil, stmt.Name)
}
