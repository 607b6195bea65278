package QP

import (
	"fmt"
	"strconv"
	"strings"
)

// ASTNode is implemented by every statement the compiler accepts.
type ASTNode interface {
	NodeType() string
}

type Expr interface {
	exprNode()
	String() string
}

// Literal holds nil, int64, float64, string, bool or []byte.
type Literal struct {
	Value interface{}
}

type ColumnRef struct {
	Table string
	Name  string
}

type BinaryExpr struct {
	Op    TokenType
	Left  Expr
	Right Expr
}

// UnaryExpr is unary minus, unary plus or NOT.
type UnaryExpr struct {
	Op   TokenType
	Expr Expr
}

type IsNullExpr struct {
	Expr Expr
	Not  bool
}

type CollateExpr struct {
	Expr      Expr
	Collation string
}

// DefaultExpr is the DEFAULT keyword used in place of a VALUES item.
type DefaultExpr struct{}

// StarExpr is "*" or "t.*" in a result column list.
type StarExpr struct {
	Table string
}

func (*Literal) exprNode()     {}
func (*ColumnRef) exprNode()   {}
func (*BinaryExpr) exprNode()  {}
func (*UnaryExpr) exprNode()   {}
func (*IsNullExpr) exprNode()  {}
func (*CollateExpr) exprNode() {}
func (*DefaultExpr) exprNode() {}
func (*StarExpr) exprNode()    {}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case []byte:
		return fmt.Sprintf("X'%X'", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (c *ColumnRef) String() string {
	if c.Table != "" {
		return quoteIdent(c.Table) + "." + quoteIdent(c.Name)
	}
	return quoteIdent(c.Name)
}

func (b *BinaryExpr) String() string {
	return "(" + b.Left.String() + " " + b.Op.String() + " " + b.Right.String() + ")"
}

func (u *UnaryExpr) String() string {
	if u.Op == TokenNot {
		return "(NOT " + u.Expr.String() + ")"
	}
	return "(" + u.Op.String() + u.Expr.String() + ")"
}

func (i *IsNullExpr) String() string {
	if i.Not {
		return "(" + i.Expr.String() + " IS NOT NULL)"
	}
	return "(" + i.Expr.String() + " IS NULL)"
}

func (c *CollateExpr) String() string {
	return c.Expr.String() + " COLLATE " + quoteIdent(c.Collation)
}

func (*DefaultExpr) String() string { return "DEFAULT" }

func (s *StarExpr) String() string {
	if s.Table != "" {
		return quoteIdent(s.Table) + ".*"
	}
	return "*"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// IsStar reports whether the expression is a bare "*".
func IsStar(e Expr) bool {
	s, ok := e.(*StarExpr)
	return ok && s.Table == ""
}

type ResultColumn struct {
	Expr  Expr
	Alias string
}

type TableRef struct {
	Name  string
	Alias string
}

type OrderBy struct {
	Expr Expr
	Desc bool
}

type SelectStmt struct {
	Distinct   bool
	Columns    []ResultColumn
	From       *TableRef
	Joined     bool // FROM lists more than one source
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	OrderBy    []OrderBy
	Limit      Expr
	Offset     Expr
	SetOp      string // UNION, EXCEPT, INTERSECT
	SetOpAll   bool
	SetOpRight *SelectStmt
}

func (s *SelectStmt) NodeType() string { return "SelectStmt" }

// IsCompound reports whether the SELECT has a set-operation right side.
func (s *SelectStmt) IsCompound() bool {
	return s.SetOpRight != nil
}

func (s *SelectStmt) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if s.Distinct {
		sb.WriteString("DISTINCT ")
	}
	for i, col := range s.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col.Expr.String())
		if col.Alias != "" {
			sb.WriteString(" AS " + quoteIdent(col.Alias))
		}
	}
	if s.From != nil {
		sb.WriteString(" FROM " + quoteIdent(s.From.Name))
		if s.From.Alias != "" {
			sb.WriteString(" AS " + quoteIdent(s.From.Alias))
		}
	}
	if s.Where != nil {
		sb.WriteString(" WHERE " + s.Where.String())
	}
	if len(s.GroupBy) > 0 {
		parts := make([]string, len(s.GroupBy))
		for i, e := range s.GroupBy {
			parts[i] = e.String()
		}
		sb.WriteString(" GROUP BY " + strings.Join(parts, ", "))
	}
	if s.Having != nil {
		sb.WriteString(" HAVING " + s.Having.String())
	}
	if len(s.OrderBy) > 0 {
		parts := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			parts[i] = o.Expr.String()
			if o.Desc {
				parts[i] += " DESC"
			}
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if s.Limit != nil {
		sb.WriteString(" LIMIT " + s.Limit.String())
	}
	if s.Offset != nil {
		sb.WriteString(" OFFSET " + s.Offset.String())
	}
	if s.SetOpRight != nil {
		sb.WriteString(" " + s.SetOp)
		if s.SetOpAll {
			sb.WriteString(" ALL")
		}
		sb.WriteString(" " + s.SetOpRight.String())
	}
	return sb.String()
}
