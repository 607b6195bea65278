package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/config"
	"github.com/sqlvibe/svcomp/pkg/sqlvibe"
)

const petsScript = `
name: pets
steps:
  - create_table:
      name: people
      columns:
        - {name: id, type: INTEGER, primary_key: true}
        - {name: name, type: TEXT, not_null: true, unique: true}
        - {name: age, type: INTEGER, default: "18"}
  - create_table:
      name: pets
      columns:
        - {name: id, type: INTEGER, primary_key: true}
        - {name: owner, type: INTEGER, references: {table: people}}
  - name: seed
    insert:
      table: people
      columns: [id, name]
      values: [[1, ann], [2, bob]]
    expect_rows: 2
  - name: duplicate name
    insert: {table: people, values: [[3, ann, 40]]}
    expect_error: SVDB_CONSTRAINT_UNIQUE
  - name: any constraint
    insert: {table: people, values: [[4, null, 40]]}
    expect_error: SVDB_CONSTRAINT
  - name: replace
    insert: {table: people, or: replace, values: [[1, cid, {expr: "20 + 1"}]]}
    expect_rows: 1
  - name: orphan
    insert: {table: pets, values: [[10, 99]]}
    expect_error: SVDB_CONSTRAINT_FOREIGNKEY
  - insert: {table: pets, values: [[10, 1], [11, null]]}
  - name: read back
    query: SELECT id, name, age FROM people ORDER BY id
    expect: [[1, cid, 21], [2, bob, 18]]
`

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Log.Level = "error"
	db, err := sqlvibe.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	var out bytes.Buffer
	return NewRunner(db, &out, OutputTable), &out
}

func TestRunScript(t *testing.T) {
	s, err := ParseScript([]byte(petsScript))
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "pets" || len(s.Steps) != 9 || s.Steps[0].Name != "step 1" {
		t.Fatalf("script = %s with %d steps", s.Name, len(s.Steps))
	}
	r, out := newTestRunner(t)
	if failed := r.Run(context.Background(), s); failed != 0 {
		t.Errorf("%d steps failed:\n%s", failed, out)
	}
}

func TestRunReportsFailures(t *testing.T) {
	s, err := ParseScript([]byte(`
steps:
  - create_table:
      name: t
      columns: [{name: id, type: INTEGER, primary_key: true}]
  - name: wrong count
    insert: {table: t, values: [[1], [2]]}
    expect_rows: 3
  - name: unexpected success
    insert: {table: t, values: [[3]]}
    expect_error: SVDB_CONSTRAINT_PRIMARYKEY
  - name: wrong rows
    query: SELECT id FROM t ORDER BY id
    expect: [[1], [2]]
  - name: two statements
    query: SELECT id FROM t
    insert: {table: t, values: [[4]]}
`))
	if err != nil {
		t.Fatal(err)
	}
	r, out := newTestRunner(t)
	if failed := r.Run(context.Background(), s); failed != 4 {
		t.Errorf("failed = %d, want 4:\n%s", failed, out)
	}
	for _, want := range []string{"FAIL wrong count", "FAIL unexpected success", "FAIL wrong rows", "FAIL two statements"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestStepStatement(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{"index", Step{CreateIndex: &IndexSpec{Name: "i", Table: "t", Columns: []string{"a"}}}, "CreateIndexStmt"},
		{"drop view", Step{Drop: &DropSpec{View: "v"}}, "DropTableStmt"},
		{"drop index", Step{Drop: &DropSpec{Index: "t.i"}}, "DropIndexStmt"},
		{"drop trigger", Step{Drop: &DropSpec{Trigger: "tr"}}, "DropTriggerStmt"},
		{"trigger", Step{CreateTrigger: &TriggerSpec{Name: "tr", Table: "t", Event: "insert", Timing: "after"}}, "CreateTriggerStmt"},
		{"alter", Step{Alter: &AlterSpec{Table: "t", RenameTo: "u"}}, "AlterTableStmt"},
		{"view", Step{CreateView: &ViewSpec{Name: "v", Select: "SELECT 1"}}, "CreateViewStmt"},
		{"query", Step{Query: "SELECT 1"}, "SelectStmt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := tt.step.Statement()
			if err != nil {
				t.Fatal(err)
			}
			if stmt.NodeType() != tt.want {
				t.Errorf("NodeType() = %s, want %s", stmt.NodeType(), tt.want)
			}
		})
	}
}

func TestStepStatementErrors(t *testing.T) {
	tests := []struct {
		name string
		step Step
	}{
		{"empty", Step{}},
		{"bad action", Step{Insert: &InsertSpec{Table: "t", Or: "explode"}}},
		{"bad kind", Step{CreateTable: &TableSpec{Name: "t", Constraints: []ConstraintSpec{{Kind: "exclude"}}}}},
		{"bad index ref", Step{Drop: &DropSpec{Index: "i"}}},
		{"no alter action", Step{Alter: &AlterSpec{Table: "t"}}},
		{"bad value", Step{Insert: &InsertSpec{Table: "t", Values: [][]interface{}{{[]int{1}}}}}},
		{"bad select", Step{Query: "SELECT (1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.step.Statement(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestInsertSpecConversion(t *testing.T) {
	stmt, err := (&InsertSpec{
		Table:  "t",
		Or:     "IGNORE",
		Values: [][]interface{}{{1, 2.5, "x", nil, true, map[string]interface{}{"default": true}}},
	}).stmt()
	if err != nil {
		t.Fatal(err)
	}
	in := stmt.(*QP.InsertStmt)
	if in.OnConflict != QP.OnConflictIgnore {
		t.Errorf("OnConflict = %s", in.OnConflict)
	}
	if v := in.Values[0][0].(*QP.Literal).Value; v != int64(1) {
		t.Errorf("int literal = %#v", v)
	}
	if _, ok := in.Values[0][5].(*QP.DefaultExpr); !ok {
		t.Errorf("default = %T", in.Values[0][5])
	}
}

func TestCheckError(t *testing.T) {
	err := sqlvibe.NewError(sqlvibe.SVDB_CONSTRAINT_NOTNULL, "x")
	tests := []struct {
		expect string
		err    error
		ok     bool
	}{
		{"", nil, true},
		{"", err, false},
		{"SVDB_CONSTRAINT_NOTNULL", err, true},
		{"SVDB_CONSTRAINT", err, true},
		{"SVDB_CONSTRAINT_UNIQUE", err, false},
		{"SVDB_CONSTRAINT", nil, false},
		{"SVDB_NOPE", err, false},
	}
	for _, tt := range tests {
		if got := checkError(tt.expect, tt.err) == nil; got != tt.ok {
			t.Errorf("checkError(%q, %v) ok = %v, want %v", tt.expect, tt.err, got, tt.ok)
		}
	}
}

func TestFormatter(t *testing.T) {
	rows := &sqlvibe.Rows{Columns: []string{"id", "name"}, Data: [][]interface{}{{int64(1), "a, b"}, {int64(2), nil}}}
	tests := []struct {
		mode    OutputMode
		headers bool
		null    string
		want    string
	}{
		{OutputCSV, true, "", "id,name\n1,\"a, b\"\n2,NULL\n"},
		{OutputCSV, false, "-", "1,\"a, b\"\n2,-\n"},
		{OutputTable, true, "", "-------------\n| id | name |\n-------------\n| 1  | a, b |\n| 2  | NULL |\n"},
		{OutputTable, false, "", "| 1  | a, b |\n| 2  | NULL |\n"},
	}
	for _, tt := range tests {
		f := NewFormatter(tt.mode)
		f.SetShowHeaders(tt.headers)
		f.SetNullValue(tt.null)
		if got := f.Format(rows); got != tt.want {
			t.Errorf("%s headers=%v:\n%q\nwant\n%q", tt.mode, tt.headers, got, tt.want)
		}
	}
}

func TestParseOutputMode(t *testing.T) {
	for in, want := range map[string]OutputMode{"table": OutputTable, "CSV": OutputCSV} {
		if got, ok := ParseOutputMode(in); !ok || got != want {
			t.Errorf("ParseOutputMode(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseOutputMode("json"); ok {
		t.Errorf("json accepted")
	}
}

func TestRunExplain(t *testing.T) {
	s, err := ParseScript([]byte(`
steps:
  - create_table:
      name: t
      columns: [{name: id, type: INTEGER, primary_key: true}]
  - insert: {table: t, values: [[1]]}
`))
	if err != nil {
		t.Fatal(err)
	}
	r, out := newTestRunner(t)
	r.explain = true
	if failed := r.Run(context.Background(), s); failed != 0 {
		t.Fatalf("%d steps failed:\n%s", failed, out)
	}
	for _, want := range []string{"| addr", "image ", "fingerprint "} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestImportCSV(t *testing.T) {
	dir := t.TempDir()
	csvData := "id,name,age\n1,ann,30\n2,bob,\n1,cid,52\n"
	if err := os.WriteFile(filepath.Join(dir, "people.csv"), []byte(csvData), 0o644); err != nil {
		t.Fatal(err)
	}
	script := `
name: import
steps:
  - create_table:
      name: people
      columns:
        - {name: id, type: INTEGER, primary_key: true}
        - {name: name, type: TEXT}
        - {name: age, type: INTEGER}
  - name: duplicate key
    import: {table: people, file: people.csv}
    expect_error: SVDB_CONSTRAINT_PRIMARYKEY
  - import: {table: people, file: people.csv, or: ignore}
    expect_rows: 2
  - query: SELECT id, name, age FROM people ORDER BY id
    expect: [[1, ann, 30], [2, bob, null]]
`
	path := filepath.Join(dir, "import.yaml")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadScript(path)
	if err != nil {
		t.Fatal(err)
	}
	r, out := newTestRunner(t)
	if failed := r.Run(context.Background(), s); failed != 0 {
		t.Errorf("%d steps failed:\n%s", failed, out)
	}
}

func TestCSVValue(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"", nil},
		{"42", int64(42)},
		{"-1.5", -1.5},
		{"ann", "ann"},
	}
	for _, tt := range tests {
		if got := csvValue(tt.in); got != tt.want {
			t.Errorf("csvValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestTestdataScripts(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("no scripts: %v", err)
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScript(path)
			if err != nil {
				t.Fatal(err)
			}
			r, out := newTestRunner(t)
			if failed := r.Run(context.Background(), s); failed != 0 {
				t.Errorf("%d steps failed:\n%s", failed, out)
			}
		})
	}
}
