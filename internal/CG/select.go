package CG

import (
	"fmt"
	"strings"

	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/VM"
)

// Select compiles a standalone SELECT whose rows are returned as result
// rows.
func (p *Parse) Select(sel *QP.SelectStmt) {
	names := p.selectColumnNames(sel)
	if p.failed() {
		return
	}
	p.columns = names
	n := len(names)
	out := p.prog.AllocRegs(n)
	p.selectLoop(sel, out, n, func() {
		p.prog.EmitOp(VM.OpResultRow, out, n, 0)
	})
}

// checkSelect rejects the SELECT shapes the compiler has no plan for.
func (p *Parse) checkSelect(sel *QP.SelectStmt) bool {
	for s := sel; s != nil; s = s.SetOpRight {
		switch {
		case len(s.GroupBy) > 0 || s.Having != nil:
			p.errorf(errors.SVDB_ERROR, errors.KindStructural, "GROUP BY is not supported")
		case s.Joined:
			p.errorf(errors.SVDB_ERROR, errors.KindStructural, "SELECT from more than one space is not supported")
		case s.SetOpRight != nil && (!strings.EqualFold(s.SetOp, "UNION") || !s.SetOpAll):
			p.errorf(errors.SVDB_ERROR, errors.KindStructural, "%s is not supported, only UNION ALL is", strings.ToUpper(s.SetOp))
		case sel.IsCompound() && (len(s.OrderBy) > 0 || s.Limit != nil):
			p.errorf(errors.SVDB_ERROR, errors.KindStructural, "ORDER BY and LIMIT are not supported on a compound SELECT")
		}
		if p.failed() {
			return false
		}
	}
	return true
}

// selectSource returns the space a SELECT reads, or nil for a SELECT
// without FROM.
func (p *Parse) selectSource(s *QP.SelectStmt) *IS.Space {
	if s.From == nil {
		return nil
	}
	sp := p.schema.SpaceByName(s.From.Name)
	if sp == nil {
		p.errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Space '%s' does not exist", s.From.Name)
		return nil
	}
	if sp.IsView() {
		p.errorf(errors.SVDB_ERROR, errors.KindReference, "SELECT from view '%s' is not supported", sp.Name())
		return nil
	}
	return sp
}

// resultColumns expands stars and names every result column.
func (p *Parse) resultColumns(s *QP.SelectStmt, src *IS.Space) ([]QP.Expr, []string) {
	var exprs []QP.Expr
	var names []string
	for i, col := range s.Columns {
		if star, ok := col.Expr.(*QP.StarExpr); ok {
			if src == nil {
				p.errorf(errors.SVDB_ERROR, errors.KindReference, "no tables specified")
				return nil, nil
			}
			if star.Table != "" && star.Table != src.Name() && star.Table != s.From.Alias {
				p.errorf(errors.SVDB_ERROR, errors.KindReference, "no such table: %s", star.Table)
				return nil, nil
			}
			for _, f := range src.Def.Fields {
				exprs = append(exprs, &QP.ColumnRef{Name: f.Name})
				names = append(names, f.Name)
			}
			continue
		}
		name := col.Alias
		if name == "" {
			if ref, ok := col.Expr.(*QP.ColumnRef); ok {
				name = ref.Name
			} else {
				name = fmt.Sprintf("COLUMN_%d", i+1)
			}
		}
		exprs = append(exprs, col.Expr)
		names = append(names, name)
	}
	return exprs, names
}

// selectColumnNames validates sel and returns its result column names.
func (p *Parse) selectColumnNames(sel *QP.SelectStmt) []string {
	if !p.checkSelect(sel) {
		return nil
	}
	var names []string
	for s := sel; s != nil; s = s.SetOpRight {
		src := p.selectSource(s)
		if p.failed() {
			return nil
		}
		_, cols := p.resultColumns(s, src)
		if p.failed() {
			return nil
		}
		if names == nil {
			names = cols
		} else if len(cols) != len(names) {
			p.errorf(errors.SVDB_ERROR, errors.KindStructural,
				"SELECTs to the left and right of UNION ALL do not have the same number of result columns")
			return nil
		}
	}
	return names
}

// selectLoop emits code that computes every row of sel into the n
// registers at out and runs the code emitted by emitRow once per row.
func (p *Parse) selectLoop(sel *QP.SelectStmt, out, n int, emitRow func()) {
	for s := sel; s != nil && !p.failed(); s = s.SetOpRight {
		p.simpleSelect(s, out, n, emitRow)
	}
}

func (p *Parse) simpleSelect(s *QP.SelectStmt, out, n int, emitRow func()) {
	src := p.selectSource(s)
	exprs, _ := p.resultColumns(s, src)
	if p.failed() {
		return
	}
	if len(exprs) != n {
		p.errorf(errors.SVDB_ERROR, errors.KindStructural,
			"SELECTs to the left and right of UNION ALL do not have the same number of result columns")
		return
	}
	sc := &scope{space: src}
	if s.From != nil {
		sc.alias = s.From.Alias
	}
	done := p.prog.NewLabel()

	limitReg, offsetReg := 0, 0
	if s.Limit != nil {
		limitReg = p.prog.AllocReg()
		p.exprCode(s.Limit, nil, limitReg)
		p.prog.EmitOp4(VM.OpMustBeInt, limitReg, 0, 0, "Only positive integers are allowed in the LIMIT clause")
		p.prog.EmitOp(VM.OpIfNotPos, limitReg, done, 0)
		if s.Offset != nil {
			offsetReg = p.prog.AllocReg()
			p.exprCode(s.Offset, nil, offsetReg)
			p.prog.EmitOp4(VM.OpMustBeInt, offsetReg, 0, 0, "Only positive integers are allowed in the OFFSET clause")
		}
	}
	distinct := -1
	if s.Distinct {
		distinct = p.prog.AllocCursor()
		p.prog.EmitOp(VM.OpOpenTEphemeral, distinct, n, 0)
		p.prog.SetComment("distinct")
	}

	output := func() {
		skip := p.prog.NewLabel()
		if distinct >= 0 {
			p.prog.EmitOp4(VM.OpFound, distinct, skip, out, n)
			rec := p.packRecord(out, n)
			p.prog.EmitOp(VM.OpIdxInsert, rec, distinct, 0)
			p.prog.ReleaseTempReg(rec)
		}
		if offsetReg > 0 {
			p.prog.EmitOp(VM.OpIfPos, offsetReg, skip, 1)
		}
		emitRow()
		if limitReg > 0 {
			p.prog.EmitOp(VM.OpDecrJumpZero, limitReg, done, 0)
		}
		p.prog.ResolveLabel(skip)
	}
	computeRow := func() {
		for i, e := range exprs {
			p.exprCode(e, sc, out+i)
		}
	}

	if len(s.OrderBy) == 0 {
		p.scanRows(src, s.Where, sc, func() {
			computeRow()
			output()
		})
	} else {
		p.sortedRows(s, src, sc, out, n, computeRow, output, done)
	}
	p.prog.ResolveLabel(done)
	if distinct >= 0 {
		p.prog.EmitOp(VM.OpClose, distinct, 0, 0)
	}
}

// sortedRows feeds the rows through a sorter space keyed by the ORDER BY
// terms and a sequence number, then emits them in key order. An integer
// literal term refers to a result column.
func (p *Parse) sortedRows(s *QP.SelectStmt, src *IS.Space, sc *scope, out, n int,
	computeRow, output func(), done int) {
	k := len(s.OrderBy)
	width := k + 1 + n
	sorter := p.prog.AllocCursor()
	var orders strings.Builder
	for _, ob := range s.OrderBy {
		if ob.Desc {
			orders.WriteByte('d')
		} else {
			orders.WriteByte('a')
		}
	}
	orders.WriteByte('a')
	p.prog.EmitOp4(VM.OpOpenTEphemeral, sorter, width, 0, orders.String())
	p.prog.SetComment("sorter")

	base := p.prog.AllocRegs(width)
	p.scanRows(src, s.Where, sc, func() {
		computeRow()
		for i, ob := range s.OrderBy {
			if lit, ok := ob.Expr.(*QP.Literal); ok {
				if col, ok := lit.Value.(int64); ok {
					if col < 1 || int(col) > n {
						p.errorf(errors.SVDB_ERROR, errors.KindStructural,
							"ORDER BY term out of range - should be between 1 and %d", n)
						return
					}
					p.prog.EmitSCopy(out+int(col)-1, base+i)
					continue
				}
			}
			p.exprCode(ob.Expr, sc, base+i)
		}
		p.prog.EmitOp(VM.OpNextIdEphemeral, sorter, base+k, 0)
		for j := 0; j < n; j++ {
			p.prog.EmitSCopy(out+j, base+k+1+j)
		}
		rec := p.packRecord(base, width)
		p.prog.EmitOp(VM.OpIdxInsert, rec, sorter, 0)
		p.prog.ReleaseTempReg(rec)
	})

	end := p.prog.NewLabel()
	p.prog.EmitOp(VM.OpRewind, sorter, end, 0)
	top := p.prog.Addr()
	for j := 0; j < n; j++ {
		p.prog.EmitOp(VM.OpColumn, sorter, k+1+j, out+j)
	}
	output()
	p.prog.EmitOp(VM.OpNext, sorter, top, 0)
	p.prog.ResolveLabel(end)
	p.prog.EmitOp(VM.OpClose, sorter, 0, 0)
}

// scanRows runs body for every row of src passing where. Without a source
// body runs once.
func (p *Parse) scanRows(src *IS.Space, where QP.Expr, sc *scope, body func()) {
	if p.failed() {
		return
	}
	if src == nil {
		skip := p.prog.NewLabel()
		p.whereCheck(where, sc, skip)
		body()
		p.prog.ResolveLabel(skip)
		return
	}
	c := p.prog.AllocCursor()
	sc.cursor = c
	if !p.openCursor(c, src, 0, false) {
		return
	}
	end := p.prog.NewLabel()
	next := p.prog.NewLabel()
	p.prog.EmitOp(VM.OpRewind, c, end, 0)
	top := p.prog.Addr()
	p.whereCheck(where, sc, next)
	body()
	p.prog.ResolveLabel(next)
	p.prog.EmitOp(VM.OpNext, c, top, 0)
	p.prog.ResolveLabel(end)
	p.prog.EmitOp(VM.OpClose, c, 0, 0)
}

// whereCheck jumps to skip unless where is true.
func (p *Parse) whereCheck(where QP.Expr, sc *scope, skip int) {
	if where == nil {
		return
	}
	cond := p.prog.GetTempReg()
	p.exprCode(where, sc, cond)
	p.prog.EmitOp(VM.OpIfNot, cond, skip, 0)
	p.prog.Last().SetP5(VM.InstrFlagNullJump)
	p.prog.ReleaseTempReg(cond)
}

// selectReads reports whether any part of sel reads from sp.
func selectReads(sel *QP.SelectStmt, sp *IS.Space) bool {
	for s := sel; s != nil; s = s.SetOpRight {
		if s.From != nil && s.From.Name == sp.Name() {
			return true
		}
	}
	return false
}
