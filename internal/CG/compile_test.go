package CG

import (
	"context"
	"testing"

	"github.com/sqlvibe/svcomp/internal/DS"
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/VM"
	"github.com/sqlvibe/svcomp/internal/config"
)

func testConfig() config.CompilerConfig {
	return config.DefaultConfig().Compiler
}

func newStore() *DS.Store {
	return DS.NewStore(IS.NewSchema())
}

// execWith compiles stmt against the live schema of s and runs it.
func execWith(t *testing.T, s *DS.Store, cfg config.CompilerConfig, stmt QP.ASTNode) (*Plan, *VM.Result, error) {
	t.Helper()
	plan, err := CompilePlan(s.Schema(), cfg, stmt)
	if err != nil {
		return nil, nil, err
	}
	res, err := VM.NewVM(plan.Program, s).Exec(context.Background())
	return plan, res, err
}

func exec(t *testing.T, s *DS.Store, stmt QP.ASTNode) (*VM.Result, error) {
	t.Helper()
	_, res, err := execWith(t, s, testConfig(), stmt)
	return res, err
}

func mustExec(t *testing.T, s *DS.Store, stmt QP.ASTNode) *VM.Result {
	t.Helper()
	res, err := exec(t, s, stmt)
	if err != nil {
		t.Fatalf("exec %s: %v", stmt.NodeType(), err)
	}
	return res
}

func expectCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got success", code)
	}
	if !errors.IsErrorCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func col(name, typ string) QP.ColumnDef {
	return QP.ColumnDef{Name: name, Type: typ}
}

func notNull(name, typ string) QP.ColumnDef {
	return QP.ColumnDef{Name: name, Type: typ, NotNull: true}
}

func pkCol(name, typ string) QP.ColumnDef {
	return QP.ColumnDef{Name: name, Type: typ,
		Constraints: []QP.TableConstraint{{Kind: QP.ConstraintPrimaryKey}}}
}

func pk(cols ...string) QP.TableConstraint {
	return QP.TableConstraint{Kind: QP.ConstraintPrimaryKey, Columns: QP.Columns(cols...)}
}

func unique(cols ...string) QP.TableConstraint {
	return QP.TableConstraint{Kind: QP.ConstraintUnique, Columns: QP.Columns(cols...)}
}

func check(name, expr string) QP.TableConstraint {
	return QP.TableConstraint{Kind: QP.ConstraintCheck, Name: name, Check: expr}
}

func foreignKey(child []string, parent string, parentCols ...string) QP.TableConstraint {
	return QP.TableConstraint{Kind: QP.ConstraintForeignKey, ForeignKey: &QP.ForeignKeyClause{
		ChildCols: child, ParentTable: parent, ParentCols: parentCols,
	}}
}

func createTable(name string, cols []QP.ColumnDef, cons ...QP.TableConstraint) *QP.CreateTableStmt {
	return &QP.CreateTableStmt{Name: name, Columns: cols, Constraints: cons}
}

func lit(v interface{}) QP.Expr {
	switch x := v.(type) {
	case int:
		return &QP.Literal{Value: int64(x)}
	default:
		return &QP.Literal{Value: v}
	}
}

func values(rows ...[]interface{}) [][]QP.Expr {
	out := make([][]QP.Expr, len(rows))
	for i, row := range rows {
		out[i] = make([]QP.Expr, len(row))
		for k, v := range row {
			out[i][k] = lit(v)
		}
	}
	return out
}

func row(vs ...interface{}) []interface{} { return vs }

func insertValues(table string, action QP.OnConflict, rows ...[]interface{}) *QP.InsertStmt {
	return &QP.InsertStmt{Table: table, Values: values(rows...), OnConflict: action}
}

func space(t *testing.T, s *DS.Store, name string) *IS.Space {
	t.Helper()
	sp := s.Schema().SpaceByName(name)
	if sp == nil {
		t.Fatalf("space %s not in schema", name)
	}
	return sp
}

func rows(t *testing.T, s *DS.Store, name string) []DS.Tuple {
	t.Helper()
	out, err := s.Select(space(t, s, name).ID(), 0, nil)
	if err != nil {
		t.Fatalf("select %s: %v", name, err)
	}
	return out
}

func indexNames(sp *IS.Space) []string {
	names := make([]string, len(sp.Indexes))
	for i, idx := range sp.Indexes {
		names[i] = idx.Name
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// newPeople creates people(id integer primary key, name text unique, age
// integer).
func newPeople(t *testing.T) *DS.Store {
	t.Helper()
	s := newStore()
	mustExec(t, s, createTable("people", []QP.ColumnDef{
		pkCol("id", "INTEGER"),
		{Name: "name", Type: "TEXT", Constraints: []QP.TableConstraint{{Kind: QP.ConstraintUnique}}},
		col("age", "INTEGER"),
	}))
	return s
}

func TestCompileNilStatement(t *testing.T) {
	if _, err := Compile(IS.NewSchema(), testConfig(), nil); !errors.IsErrorCode(err, errors.SVDB_MISUSE) {
		t.Errorf("nil statement: got %v", err)
	}
}

func TestCompileLeavesSchemaUntouched(t *testing.T) {
	s := newStore()
	before := s.Schema().Version()
	if _, err := Compile(s.Schema(), testConfig(), createTable("t", []QP.ColumnDef{pkCol("a", "INTEGER")})); err != nil {
		t.Fatal(err)
	}
	if s.Schema().SpaceByName("t") != nil || s.Schema().Version() != before {
		t.Errorf("compiling changed the schema")
	}
}

func TestCompileErrorProducesNoProgram(t *testing.T) {
	s := newStore()
	prog, err := Compile(s.Schema(), testConfig(), createTable("t", []QP.ColumnDef{col("a", "INTEGER")}))
	if err == nil || prog != nil {
		t.Fatalf("table without primary key: prog=%v err=%v", prog, err)
	}
	if !errors.IsErrorCode(err, errors.SVDB_ERROR) {
		t.Errorf("code = %s", errors.ErrorCodeOf(err))
	}
}

func TestCompiledProgramIsFinished(t *testing.T) {
	s := newPeople(t)
	prog, err := Compile(s.Schema(), testConfig(), insertValues("people", QP.OnConflictDefault, row(1, "a", 30)))
	if err != nil {
		t.Fatal(err)
	}
	if !prog.IsFinished() {
		t.Fatal("program not finished")
	}
	if prog.Instructions[0].Op != VM.OpInit {
		t.Errorf("first instruction = %s, want Init", prog.Instructions[0].Op)
	}
	if last := prog.Instructions[len(prog.Instructions)-1]; last.Op != VM.OpHalt {
		t.Errorf("last instruction = %s, want Halt", last.Op)
	}
}
