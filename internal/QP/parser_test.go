package QP

import (
	"testing"
)

func TestParseExpr(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a > 0", `("a" > 0)`},
		{"a > 0 AND b < 10 OR c IS NULL", `((("a" > 0) AND ("b" < 10)) OR ("c" IS NULL))`},
		{"NOT a = 1", `(NOT ("a" = 1))`},
		{"1 + 2 * 3", `(1 + (2 * 3))`},
		{"(1 + 2) * 3", `((1 + 2) * 3)`},
		{"-5", `-5`},
		{"-x", `(-"x")`},
		{"a || 'x' = 'yx'", `(("a" || 'x') = 'yx')`},
		{"t.a IS NOT NULL", `("t"."a" IS NOT NULL)`},
		{"name COLLATE unicode_ci = 'A'", `("name" COLLATE "unicode_ci" = 'A')`},
		{"TRUE", `TRUE`},
		{"2.5", `2.5`},
		{"'it''s'", `'it''s'`},
	}

	for _, tt := range tests {
		e, err := ParseExpr(tt.input)
		if err != nil {
			t.Errorf("ParseExpr(%q) failed: %v", tt.input, err)
			continue
		}
		if got := e.String(); got != tt.want {
			t.Errorf("ParseExpr(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseExprErrors(t *testing.T) {
	inputs := []string{"", "a >", "(a", "a b", "f(1)", "a IS 1", "'open"}
	for _, in := range inputs {
		if _, err := ParseExpr(in); err == nil {
			t.Errorf("ParseExpr(%q) should fail", in)
		}
	}
}

func TestParseExprLiteralTypes(t *testing.T) {
	e := MustParseExpr("42")
	if lit, ok := e.(*Literal); !ok || lit.Value != int64(42) {
		t.Errorf("expected int64 literal, got %#v", e)
	}
	e = MustParseExpr("NULL")
	if lit, ok := e.(*Literal); !ok || lit.Value != nil {
		t.Errorf("expected NULL literal, got %#v", e)
	}
	e = MustParseExpr("DEFAULT")
	if _, ok := e.(*DefaultExpr); !ok {
		t.Errorf("expected DEFAULT, got %#v", e)
	}
}

func TestParseSelectStar(t *testing.T) {
	sel, err := ParseSelect("SELECT * FROM src")
	if err != nil {
		t.Fatalf("ParseSelect failed: %v", err)
	}
	if len(sel.Columns) != 1 || !IsStar(sel.Columns[0].Expr) {
		t.Errorf("expected single star column, got %v", sel.Columns)
	}
	if sel.From == nil || sel.From.Name != "src" {
		t.Errorf("expected FROM src, got %v", sel.From)
	}
	if sel.Where != nil || sel.Distinct || sel.IsCompound() || sel.Joined {
		t.Errorf("unexpected clauses in %s", sel)
	}
}

func TestParseSelectClauses(t *testing.T) {
	sel, err := ParseSelect("SELECT DISTINCT a, b + 1 AS c FROM t x WHERE a > 1 ORDER BY a DESC, b LIMIT 10 OFFSET 2")
	if err != nil {
		t.Fatalf("ParseSelect failed: %v", err)
	}
	if !sel.Distinct {
		t.Error("expected DISTINCT")
	}
	if len(sel.Columns) != 2 || sel.Columns[1].Alias != "c" {
		t.Errorf("unexpected columns %v", sel.Columns)
	}
	if sel.From.Alias != "x" {
		t.Errorf("expected alias x, got %q", sel.From.Alias)
	}
	if len(sel.OrderBy) != 2 || !sel.OrderBy[0].Desc || sel.OrderBy[1].Desc {
		t.Errorf("unexpected ORDER BY %v", sel.OrderBy)
	}
	if sel.Limit == nil || sel.Offset == nil {
		t.Error("expected LIMIT and OFFSET")
	}
}

func TestParseSelectCompoundAndJoin(t *testing.T) {
	sel := MustParseSelect("SELECT a FROM t UNION ALL SELECT a FROM u")
	if !sel.IsCompound() || sel.SetOp != "UNION" || !sel.SetOpAll {
		t.Errorf("expected UNION ALL, got %s", sel)
	}
	if sel.SetOpRight.From.Name != "u" {
		t.Errorf("expected right side FROM u, got %s", sel.SetOpRight)
	}

	sel = MustParseSelect("SELECT * FROM t, u WHERE t.a = u.a")
	if !sel.Joined {
		t.Error("expected Joined for comma join")
	}
	if sel.Where == nil {
		t.Error("expected WHERE after join tail")
	}

	sel = MustParseSelect("SELECT a, count FROM t GROUP BY a HAVING a > 1")
	if len(sel.GroupBy) != 1 || sel.Having == nil {
		t.Errorf("expected GROUP BY/HAVING, got %s", sel)
	}
}

func TestParseSelectValuesOnly(t *testing.T) {
	sel := MustParseSelect("SELECT 1, 'x'")
	if sel.From != nil || len(sel.Columns) != 2 {
		t.Errorf("unexpected %s", sel)
	}
}

func TestInsertStmtString(t *testing.T) {
	stmt := &InsertStmt{
		Table:      "t",
		Columns:    []string{"a", "b"},
		Values:     [][]Expr{{&Literal{Value: int64(1)}, &Literal{Value: "x"}}},
		OnConflict: OnConflictReplace,
	}
	want := `INSERT OR REPLACE INTO "t"("a", "b") VALUES (1, 'x')`
	if got := stmt.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}

	stmt = &InsertStmt{Table: "t", Select: MustParseSelect("SELECT * FROM s")}
	want = `INSERT INTO "t" SELECT * FROM "s"`
	if got := stmt.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}
