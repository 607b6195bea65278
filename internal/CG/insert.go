package CG

import (
	"strings"

	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/VM"
)

// InsertTemplate is the code shape chosen for an INSERT.
type InsertTemplate int

const (
	TemplateNone InsertTemplate = iota
	// TemplateXfer copies whole tuples from a compatible space.
	TemplateXfer
	// TemplateValues codes VALUES rows straight into the row registers.
	TemplateValues
	// TemplateCoroutine pulls SELECT rows one at a time from a coroutine.
	TemplateCoroutine
	// TemplateTempTable materializes the SELECT before inserting.
	TemplateTempTable
)

var templateNames = []string{"none", "xfer", "values", "coroutine", "temp-table"}

func (t InsertTemplate) String() string {
	if int(t) < len(templateNames) {
		return templateNames[t]
	}
	return "unknown"
}

// Template returns the plan chosen by the last Insert call. guarded is
// set when the xfer path only runs after a runtime emptiness check and a
// row-by-row fallback was emitted as well.
func (p *Parse) Template() (tmpl InsertTemplate, guarded bool) {
	return p.template, p.xferGuarded
}

// insertCtx is the per-statement state shared by the row pipeline.
type insertCtx struct {
	space  *IS.Space
	action QP.OnConflict
	cursor int
	// regRow holds one register per field of space
	regRow int
	// colMap maps source column i to its target field
	colMap []int
	// oldRow receives a row deleted by REPLACE, allocated on first use
	oldRow int
}

// Insert compiles INSERT.
func (p *Parse) Insert(stmt *QP.InsertStmt) {
	if p.failed() {
		return
	}
	sp := p.schema.SpaceByName(stmt.Table)
	if sp == nil {
		p.errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Space '%s' does not exist", stmt.Table)
		return
	}
	if IS.IsSystemSpace(sp.ID()) {
		p.errorf(errors.SVDB_ERROR, errors.KindReference, "Can't modify system space '%s'", sp.Name())
		return
	}
	if sp.IsView() && len(sp.TriggersFor(IS.TriggerInsert, IS.TriggerInsteadOf)) == 0 {
		p.errorf(errors.SVDB_ERROR, errors.KindReference, "Can't modify space '%s': space is a view", sp.Name())
		return
	}
	colMap := p.insertColumns(sp, stmt.Columns)
	if p.failed() {
		return
	}
	if !p.checkInsertArity(stmt, len(colMap)) {
		return
	}

	nfields := len(sp.Def.Fields)
	ic := &insertCtx{
		space:  sp,
		action: stmt.OnConflict,
		cursor: -1,
		regRow: p.prog.AllocRegs(nfields),
		colMap: colMap,
	}
	p.prog.ChangeReg = p.prog.AllocReg()
	p.prog.EmitInteger(0, p.prog.ChangeReg)
	p.prog.SetComment("change counter")
	if !sp.IsView() {
		ic.cursor = p.prog.AllocCursor()
		if !p.openCursor(ic.cursor, sp, 0, true) {
			return
		}
	}
	p.log.Debug("insert into %s: %d columns, action %s", sp.Name(), len(colMap), stmt.OnConflict)

	switch {
	case stmt.Select != nil:
		p.insertFromSelect(ic, stmt)
	case stmt.DefaultValues:
		p.template = TemplateValues
		p.loadRow(ic, nil)
		p.emitRowInsert(ic)
	default:
		p.template = TemplateValues
		for _, row := range stmt.Values {
			p.loadRow(ic, row)
			p.emitRowInsert(ic)
		}
	}
	if p.cfg.CountChanges && !p.failed() {
		p.prog.EmitOp(VM.OpResultRow, p.prog.ChangeReg, 1, 0)
	}
}

// insertColumns maps an explicit column list to field numbers; without a
// list every field is a target in order.
func (p *Parse) insertColumns(sp *IS.Space, cols []string) []int {
	if len(cols) == 0 {
		m := make([]int, len(sp.Def.Fields))
		for i := range m {
			m[i] = i
		}
		return m
	}
	m := make([]int, len(cols))
	seen := make(map[int]bool, len(cols))
	for i, name := range cols {
		no := sp.FieldIndex(name)
		if no < 0 {
			p.errorf(errors.SVDB_ERROR, errors.KindReference, "table %s has no column named %s", sp.Name(), name)
			return nil
		}
		if seen[no] {
			p.errorf(errors.SVDB_ERROR, errors.KindReference, "column '%s' specified more than once", name)
			return nil
		}
		seen[no] = true
		m[i] = no
	}
	return m
}

func (p *Parse) checkInsertArity(stmt *QP.InsertStmt, n int) bool {
	if stmt.DefaultValues {
		return true
	}
	if stmt.Select != nil {
		names := p.selectColumnNames(stmt.Select)
		if p.failed() {
			return false
		}
		if len(names) != n {
			p.errorf(errors.SVDB_ERROR, errors.KindStructural, "%d values for %d columns", len(names), n)
			return false
		}
		return true
	}
	if len(stmt.Values) == 0 {
		p.errorf(errors.SVDB_MISUSE, errors.KindStructural, "INSERT without rows")
		return false
	}
	for _, row := range stmt.Values {
		if len(row) != n {
			p.errorf(errors.SVDB_ERROR, errors.KindStructural, "%d values for %d columns", len(row), n)
			return false
		}
	}
	return true
}

// loadDefault stores the DEFAULT value of field no in its row register.
// A field without DEFAULT gets NULL; so does the AUTOINCREMENT field,
// whose NULL the storage replaces with the next sequence value.
func (p *Parse) loadDefault(ic *insertCtx, no int) {
	f := &ic.space.Def.Fields[no]
	reg := ic.regRow + no
	if f.Default != nil && !p.isSequenceField(ic.space, no) {
		p.exprCode(f.Default, nil, reg)
		return
	}
	p.prog.EmitNull(reg)
}

func (p *Parse) isSequenceField(sp *IS.Space, no int) bool {
	return sp.Sequence != nil && int(sp.SeqFieldNo) == no
}

// loadRow codes one VALUES row, or a row of defaults when row is nil.
func (p *Parse) loadRow(ic *insertCtx, row []QP.Expr) {
	given := make([]bool, len(ic.space.Def.Fields))
	for i, e := range row {
		no := ic.colMap[i]
		given[no] = true
		if _, ok := e.(*QP.DefaultExpr); ok {
			p.loadDefault(ic, no)
			continue
		}
		p.exprCode(e, nil, ic.regRow+no)
	}
	p.loadMissing(ic, given)
}

func (p *Parse) loadMissing(ic *insertCtx, given []bool) {
	for no := range ic.space.Def.Fields {
		if !given[no] {
			p.loadDefault(ic, no)
		}
	}
}

// givenFields marks the fields a SELECT row supplies.
func givenFields(ic *insertCtx) []bool {
	given := make([]bool, len(ic.space.Def.Fields))
	for _, no := range ic.colMap {
		given[no] = true
	}
	return given
}

// insertFromSelect picks between xfer, coroutine and temp-table plans.
// A guarded xfer falls back to the coroutine plan, which is always safe
// for an xfer-eligible pair.
func (p *Parse) insertFromSelect(ic *insertCtx, stmt *QP.InsertStmt) {
	sp := ic.space
	n := len(ic.colMap)
	if p.cfg.XferOptimization && len(stmt.Columns) == 0 && !sp.IsView() {
		if src := p.xferSource(sp, stmt.Select); src != nil {
			p.template = TemplateXfer
			fallback, exit := p.emitXfer(ic, src)
			if fallback == 0 {
				return
			}
			p.xferGuarded = true
			p.prog.ResolveLabel(fallback)
			p.insertViaCoroutine(ic, stmt.Select, n)
			p.prog.ResolveLabel(exit)
			return
		}
	}
	if selectReads(stmt.Select, sp) || sp.HasTriggers(IS.TriggerInsert) {
		p.template = TemplateTempTable
		p.insertViaTempTable(ic, stmt.Select, n)
		return
	}
	p.template = TemplateCoroutine
	p.insertViaCoroutine(ic, stmt.Select, n)
}

// insertViaCoroutine runs the SELECT as a coroutine that yields each row
// into selOut; the consumer loop inserts it.
func (p *Parse) insertViaCoroutine(ic *insertCtx, sel *QP.SelectStmt, n int) {
	selOut := p.prog.AllocRegs(n)
	co := p.prog.AllocReg()
	body := p.prog.NewLabel()
	after := p.prog.NewLabel()
	p.prog.EmitOp(VM.OpInitCoroutine, co, after, body)
	p.prog.SetComment("select producer")
	p.prog.ResolveLabel(body)
	p.prog.ClearTempCache()
	p.selectLoop(sel, selOut, n, func() {
		p.prog.EmitOp(VM.OpYield, co, 0, 0)
	})
	p.prog.EmitOp(VM.OpEndCoroutine, co, 0, 0)
	p.prog.ResolveLabel(after)
	p.prog.ClearTempCache()

	end := p.prog.NewLabel()
	top := p.prog.Addr()
	p.prog.EmitOp(VM.OpYield, co, end, 0)
	for i, no := range ic.colMap {
		p.prog.EmitSCopy(selOut+i, ic.regRow+no)
	}
	p.loadMissing(ic, givenFields(ic))
	p.emitRowInsert(ic)
	p.prog.EmitGoto(top)
	p.prog.ResolveLabel(end)
}

// insertViaTempTable reads the whole SELECT into an ephemeral space keyed
// by a row counter before the first row reaches the target.
func (p *Parse) insertViaTempTable(ic *insertCtx, sel *QP.SelectStmt, n int) {
	tmp := p.prog.AllocCursor()
	p.prog.EmitOp4(VM.OpOpenTEphemeral, tmp, n+1, 0, "a")
	p.prog.SetComment("insert buffer")
	selOut := p.prog.AllocRegs(n)
	buf := p.prog.AllocRegs(n + 1)
	p.selectLoop(sel, selOut, n, func() {
		p.prog.EmitOp(VM.OpNextIdEphemeral, tmp, buf, 0)
		for i := 0; i < n; i++ {
			p.prog.EmitSCopy(selOut+i, buf+1+i)
		}
		rec := p.packRecord(buf, n+1)
		p.prog.EmitOp(VM.OpIdxInsert, rec, tmp, 0)
		p.prog.ReleaseTempReg(rec)
	})

	end := p.prog.NewLabel()
	p.prog.EmitOp(VM.OpRewind, tmp, end, 0)
	top := p.prog.Addr()
	for i, no := range ic.colMap {
		p.prog.EmitOp(VM.OpColumn, tmp, i+1, ic.regRow+no)
	}
	p.loadMissing(ic, givenFields(ic))
	p.emitRowInsert(ic)
	p.prog.EmitOp(VM.OpNext, tmp, top, 0)
	p.prog.ResolveLabel(end)
	p.prog.EmitOp(VM.OpClose, tmp, 0, 0)
}

// emitTriggers fires the triggers of sp for event at timing with the row
// at rowBase.
func (p *Parse) emitTriggers(sp *IS.Space, event IS.TriggerEvent, timing IS.TriggerTiming, rowBase int) {
	for _, tr := range sp.TriggersFor(event, timing) {
		p.prog.EmitOp4(VM.OpTrigger, rowBase, len(sp.Def.Fields), int(sp.ID()), tr.Name)
	}
}

// fieldTypes is the OpApplyType operand of sp.
func fieldTypes(sp *IS.Space) string {
	types := make([]string, len(sp.Def.Fields))
	for i, f := range sp.Def.Fields {
		types[i] = string(f.Type)
	}
	return strings.Join(types, ",")
}

// emitRowInsert is the per-row pipeline: triggers, NOT NULL, types,
// CHECK, uniqueness, foreign keys, the write and the change counter.
func (p *Parse) emitRowInsert(ic *insertCtx) {
	if p.failed() {
		return
	}
	sp := ic.space
	endRow := p.prog.NewLabel()
	if sp.IsView() {
		p.emitTriggers(sp, IS.TriggerInsert, IS.TriggerInsteadOf, ic.regRow)
		p.prog.ResolveLabel(endRow)
		return
	}
	nfields := len(sp.Def.Fields)

	p.emitTriggers(sp, IS.TriggerInsert, IS.TriggerBefore, ic.regRow)
	p.emitNotNullChecks(ic, endRow)
	p.prog.EmitOp4(VM.OpApplyType, ic.regRow, nfields, 0, fieldTypes(sp))
	p.emitCheckConstraints(ic, endRow)
	p.emitUniqueChecks(ic, endRow)
	p.emitFKChildChecks(sp, ic.regRow)
	p.emitFKParentScan(sp, ic.regRow, -1)

	rec := p.packRecord(ic.regRow, nfields)
	action := effectiveAction(ic.action, sp.PrimaryKey().OnConflict)
	p.prog.EmitOp(VM.OpIdxInsert, rec, ic.cursor, int(action))
	p.prog.Last().SetP5(VM.InstrFlagNChange)
	p.prog.SetComment("%s", sp.Name())
	p.prog.ReleaseTempReg(rec)

	p.emitTriggers(sp, IS.TriggerInsert, IS.TriggerAfter, ic.regRow)
	p.prog.EmitOp(VM.OpAddImm, p.prog.ChangeReg, 1, 0)
	p.prog.ResolveLabel(endRow)
}
