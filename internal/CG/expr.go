package CG

import (
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/VM"
)

// scope resolves column references of an expression. Columns are read
// from registers when regBase is set, from the cursor row otherwise.
type scope struct {
	space   *IS.Space
	alias   string
	cursor  int
	regBase int
}

var binaryOps = map[QP.TokenType]VM.OpCode{
	QP.TokenPlus:     VM.OpAdd,
	QP.TokenMinus:    VM.OpSubtract,
	QP.TokenAsterisk: VM.OpMultiply,
	QP.TokenSlash:    VM.OpDivide,
	QP.TokenPercent:  VM.OpRemainder,
	QP.TokenConcat:   VM.OpConcat,
	QP.TokenEq:       VM.OpEq,
	QP.TokenNe:       VM.OpNe,
	QP.TokenLt:       VM.OpLt,
	QP.TokenLe:       VM.OpLe,
	QP.TokenGt:       VM.OpGt,
	QP.TokenGe:       VM.OpGe,
	QP.TokenAnd:      VM.OpAnd,
	QP.TokenOr:       VM.OpOr,
}

// resolveColumn returns the field number of a column reference.
func (p *Parse) resolveColumn(ref *QP.ColumnRef, sc *scope) int {
	if sc == nil || sc.space == nil {
		p.errorf(errors.SVDB_ERROR, errors.KindReference, "Can't resolve field '%s'", ref.Name)
		return -1
	}
	if ref.Table != "" && ref.Table != sc.space.Name() && ref.Table != sc.alias {
		p.errorf(errors.SVDB_ERROR, errors.KindReference, "Can't resolve field '%s.%s'", ref.Table, ref.Name)
		return -1
	}
	no := sc.space.FieldIndex(ref.Name)
	if no < 0 {
		p.errorf(errors.SVDB_ERROR, errors.KindReference, "Can't resolve field '%s'", ref.Name)
	}
	return no
}

// exprCode emits code that leaves the value of e in dst.
func (p *Parse) exprCode(e QP.Expr, sc *scope, dst int) {
	if p.failed() {
		return
	}
	switch x := e.(type) {
	case *QP.Literal:
		p.prog.EmitLoadConst(dst, x.Value)
	case *QP.ColumnRef:
		no := p.resolveColumn(x, sc)
		if no < 0 {
			return
		}
		if sc.regBase > 0 {
			p.prog.EmitSCopy(sc.regBase+no, dst)
		} else {
			p.prog.EmitOp(VM.OpColumn, sc.cursor, no, dst)
		}
	case *QP.BinaryExpr:
		op, ok := binaryOps[x.Op]
		if !ok {
			p.errorf(errors.SVDB_ERROR, errors.KindStructural, "Unsupported operator in '%s'", x.String())
			return
		}
		l := p.prog.GetTempReg()
		r := p.prog.GetTempReg()
		p.exprCode(x.Left, sc, l)
		p.exprCode(x.Right, sc, r)
		if op.IsComparison() {
			coll := p.exprCollation(x.Left, sc)
			if coll == IS.CollNone {
				coll = p.exprCollation(x.Right, sc)
			}
			p.prog.EmitOp4(op, l, r, dst, int(coll))
		} else {
			p.prog.EmitOp(op, l, r, dst)
		}
		p.prog.ReleaseTempReg(r)
		p.prog.ReleaseTempReg(l)
	case *QP.UnaryExpr:
		switch x.Op {
		case QP.TokenMinus:
			p.exprCode(x.Expr, sc, dst)
			p.prog.EmitOp(VM.OpNegative, dst, dst, 0)
		case QP.TokenPlus:
			p.exprCode(x.Expr, sc, dst)
		case QP.TokenNot:
			p.exprCode(x.Expr, sc, dst)
			p.prog.EmitOp(VM.OpNot, dst, dst, 0)
		default:
			p.errorf(errors.SVDB_ERROR, errors.KindStructural, "Unsupported operator in '%s'", x.String())
		}
	case *QP.IsNullExpr:
		p.exprCode(x.Expr, sc, dst)
		not := 0
		if x.Not {
			not = 1
		}
		p.prog.EmitOp(VM.OpIsNullValue, dst, dst, not)
	case *QP.CollateExpr:
		if _, ok := IS.LookupCollation(x.Collation); !ok {
			p.errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Collation '%s' does not exist", x.Collation)
			return
		}
		p.exprCode(x.Expr, sc, dst)
	case *QP.DefaultExpr:
		p.errorf(errors.SVDB_ERROR, errors.KindStructural, "DEFAULT is not allowed in this context")
	case *QP.StarExpr:
		p.errorf(errors.SVDB_ERROR, errors.KindStructural, "'*' is not allowed in this context")
	default:
		p.errorf(errors.SVDB_ERROR, errors.KindStructural, "Unsupported expression %T", e)
	}
}

// exprCollation is the collation a comparison against e uses.
func (p *Parse) exprCollation(e QP.Expr, sc *scope) uint32 {
	switch x := e.(type) {
	case *QP.CollateExpr:
		id, _ := IS.LookupCollation(x.Collation)
		return id
	case *QP.ColumnRef:
		if sc == nil || sc.space == nil {
			return IS.CollNone
		}
		if no := sc.space.FieldIndex(x.Name); no >= 0 {
			return sc.space.Def.Fields[no].CollID
		}
	}
	return IS.CollNone
}
