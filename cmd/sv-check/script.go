package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
)

// Script is a YAML statement script: a list of steps run in order against
// one fresh database.
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step holds exactly one statement plus optional expectations.
type Step struct {
	Name          string          `yaml:"name"`
	CreateTable   *TableSpec      `yaml:"create_table"`
	CreateIndex   *IndexSpec      `yaml:"create_index"`
	CreateView    *ViewSpec       `yaml:"create_view"`
	CreateTrigger *TriggerSpec    `yaml:"create_trigger"`
	Drop          *DropSpec       `yaml:"drop"`
	Alter         *AlterSpec      `yaml:"alter"`
	Insert        *InsertSpec     `yaml:"insert"`
	Import        *ImportSpec     `yaml:"import"`
	Query         string          `yaml:"query"`
	ExpectError   string          `yaml:"expect_error"`
	ExpectRows    *int            `yaml:"expect_rows"`
	Expect        [][]interface{} `yaml:"expect"`
}

type ColumnSpec struct {
	Name          string          `yaml:"name"`
	Type          string          `yaml:"type"`
	NotNull       bool            `yaml:"not_null"`
	OnNull        string          `yaml:"on_null"`
	Default       string          `yaml:"default"`
	Collate       string          `yaml:"collate"`
	PrimaryKey    bool            `yaml:"primary_key"`
	Autoincrement bool            `yaml:"autoincrement"`
	Unique        bool            `yaml:"unique"`
	References    *ForeignKeySpec `yaml:"references"`
}

type ConstraintSpec struct {
	Kind       string          `yaml:"kind"` // primary_key, unique, check, foreign_key
	Name       string          `yaml:"name"`
	Columns    []string        `yaml:"columns"`
	OnConflict string          `yaml:"on_conflict"`
	Check      string          `yaml:"check"`
	ForeignKey *ForeignKeySpec `yaml:"foreign_key"`
}

type ForeignKeySpec struct {
	Columns    []string `yaml:"columns"`
	Table      string   `yaml:"table"`
	RefColumns []string `yaml:"ref_columns"`
	Match      string   `yaml:"match"`
	OnDelete   string   `yaml:"on_delete"`
	OnUpdate   string   `yaml:"on_update"`
	Deferred   bool     `yaml:"deferred"`
}

type TableSpec struct {
	Name        string           `yaml:"name"`
	IfNotExists bool             `yaml:"if_not_exists"`
	Engine      string           `yaml:"engine"`
	Columns     []ColumnSpec     `yaml:"columns"`
	Constraints []ConstraintSpec `yaml:"constraints"`
}

type IndexSpec struct {
	Name        string   `yaml:"name"`
	Table       string   `yaml:"table"`
	Columns     []string `yaml:"columns"`
	Unique      bool     `yaml:"unique"`
	Type        string   `yaml:"type"`
	IfNotExists bool     `yaml:"if_not_exists"`
}

type ViewSpec struct {
	Name        string   `yaml:"name"`
	Columns     []string `yaml:"columns"`
	Select      string   `yaml:"select"`
	IfNotExists bool     `yaml:"if_not_exists"`
}

type TriggerSpec struct {
	Name   string `yaml:"name"`
	Table  string `yaml:"table"`
	Event  string `yaml:"event"`
	Timing string `yaml:"timing"`
}

type DropSpec struct {
	Table    string `yaml:"table"`
	View     string `yaml:"view"`
	Index    string `yaml:"index"`
	Trigger  string `yaml:"trigger"`
	IfExists bool   `yaml:"if_exists"`
}

type AlterSpec struct {
	Table          string          `yaml:"table"`
	AddColumn      *ColumnSpec     `yaml:"add_column"`
	AddConstraint  *ConstraintSpec `yaml:"add_constraint"`
	DropConstraint string          `yaml:"drop_constraint"`
	RenameTo       string          `yaml:"rename_to"`
	EnableCheck    string          `yaml:"enable_check"`
	DisableCheck   string          `yaml:"disable_check"`
}

type InsertSpec struct {
	Table         string          `yaml:"table"`
	Or            string          `yaml:"or"`
	Columns       []string        `yaml:"columns"`
	Values        [][]interface{} `yaml:"values"`
	Select        string          `yaml:"select"`
	DefaultValues bool            `yaml:"default_values"`
}

// LoadScript reads a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i := range s.Steps {
		if in := s.Steps[i].Import; in != nil && !filepath.IsAbs(in.File) {
			in.File = filepath.Join(dir, in.File)
		}
	}
	return s, nil
}

// ParseScript decodes a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	for i := range s.Steps {
		if s.Steps[i].Name == "" {
			s.Steps[i].Name = fmt.Sprintf("step %d", i+1)
		}
	}
	return &s, nil
}

func parseOnConflict(s string) (QP.OnConflict, error) {
	name := strings.ToLower(s)
	o := IS.ParseOnConflict(name)
	if o == QP.OnConflictDefault && name != "" && name != "default" {
		return o, fmt.Errorf("unknown conflict action %q", s)
	}
	return o, nil
}

func (fk *ForeignKeySpec) clause() *QP.ForeignKeyClause {
	return &QP.ForeignKeyClause{
		ChildCols:   fk.Columns,
		ParentTable: fk.Table,
		ParentCols:  fk.RefColumns,
		Match:       QP.FKMatch(strings.ToLower(fk.Match)),
		OnDelete:    QP.FKAction(strings.ToLower(fk.OnDelete)),
		OnUpdate:    QP.FKAction(strings.ToLower(fk.OnUpdate)),
		Deferred:    fk.Deferred,
	}
}

func (c *ColumnSpec) def() (QP.ColumnDef, error) {
	action, err := parseOnConflict(c.OnNull)
	if err != nil {
		return QP.ColumnDef{}, err
	}
	col := QP.ColumnDef{
		Name:       c.Name,
		Type:       c.Type,
		NotNull:    c.NotNull || c.OnNull != "",
		NullAction: action,
		Default:    c.Default,
		Collation:  c.Collate,
	}
	if c.PrimaryKey {
		col.Constraints = append(col.Constraints, QP.TableConstraint{Kind: QP.ConstraintPrimaryKey, Autoincrement: c.Autoincrement})
	}
	if c.Unique {
		col.Constraints = append(col.Constraints, QP.TableConstraint{Kind: QP.ConstraintUnique})
	}
	if c.References != nil {
		col.Constraints = append(col.Constraints, QP.TableConstraint{Kind: QP.ConstraintForeignKey, ForeignKey: c.References.clause()})
	}
	return col, nil
}

func (c *ConstraintSpec) def() (QP.TableConstraint, error) {
	action, err := parseOnConflict(c.OnConflict)
	if err != nil {
		return QP.TableConstraint{}, err
	}
	tc := QP.TableConstraint{Name: c.Name, Columns: QP.Columns(c.Columns...), OnConflict: action}
	switch strings.ToLower(c.Kind) {
	case "primary_key":
		tc.Kind = QP.ConstraintPrimaryKey
	case "unique":
		tc.Kind = QP.ConstraintUnique
	case "check":
		tc.Kind = QP.ConstraintCheck
		tc.Check = c.Check
		tc.Columns = nil
	case "foreign_key":
		if c.ForeignKey == nil {
			return tc, fmt.Errorf("foreign_key constraint without foreign_key clause")
		}
		tc.Kind = QP.ConstraintForeignKey
		tc.ForeignKey = c.ForeignKey.clause()
		tc.Columns = nil
	default:
		return tc, fmt.Errorf("unknown constraint kind %q", c.Kind)
	}
	return tc, nil
}

// value turns one YAML scalar into a literal. A mapping {expr: "..."}
// is parsed as an expression and {default: true} is the DEFAULT keyword.
func value(v interface{}) (QP.Expr, error) {
	switch x := v.(type) {
	case nil:
		return &QP.Literal{Value: nil}, nil
	case int:
		return &QP.Literal{Value: int64(x)}, nil
	case int64, float64, string, bool:
		return &QP.Literal{Value: x}, nil
	case map[string]interface{}:
		if text, ok := x["expr"].(string); ok {
			return QP.ParseExpr(text)
		}
		if d, ok := x["default"].(bool); ok && d {
			return &QP.DefaultExpr{}, nil
		}
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", v, v)
}

// Statement converts the step into the statement it describes.
func (s *Step) Statement() (QP.ASTNode, error) {
	var stmts []QP.ASTNode
	var err error
	add := func(stmt QP.ASTNode, e error) {
		if e != nil && err == nil {
			err = e
		}
		stmts = append(stmts, stmt)
	}
	if s.CreateTable != nil {
		add(s.CreateTable.stmt())
	}
	if s.CreateIndex != nil {
		ix := s.CreateIndex
		add(&QP.CreateIndexStmt{Name: ix.Name, Table: ix.Table, Columns: QP.Columns(ix.Columns...),
			Unique: ix.Unique, Type: strings.ToUpper(ix.Type), IfNotExists: ix.IfNotExists}, nil)
	}
	if s.CreateView != nil {
		sel, e := QP.ParseSelect(s.CreateView.Select)
		add(&QP.CreateViewStmt{Name: s.CreateView.Name, Columns: s.CreateView.Columns, Select: sel,
			IfNotExists: s.CreateView.IfNotExists}, e)
	}
	if s.CreateTrigger != nil {
		tr := s.CreateTrigger
		add(&QP.CreateTriggerStmt{Name: tr.Name, Table: tr.Table, Event: strings.ToUpper(tr.Event),
			Timing: strings.ToUpper(tr.Timing)}, nil)
	}
	if s.Drop != nil {
		add(s.Drop.stmt())
	}
	if s.Alter != nil {
		add(s.Alter.stmt())
	}
	if s.Insert != nil {
		add(s.Insert.stmt())
	}
	if s.Import != nil {
		add(s.Import.stmt())
	}
	if s.Query != "" {
		sel, e := QP.ParseSelect(s.Query)
		add(sel, e)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	if len(stmts) != 1 {
		return nil, fmt.Errorf("%s: a step holds exactly one statement, found %d", s.Name, len(stmts))
	}
	return stmts[0], nil
}

func (t *TableSpec) stmt() (QP.ASTNode, error) {
	stmt := &QP.CreateTableStmt{Name: t.Name, IfNotExists: t.IfNotExists, Engine: t.Engine}
	for i := range t.Columns {
		col, err := t.Columns[i].def()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, col)
	}
	for i := range t.Constraints {
		tc, err := t.Constraints[i].def()
		if err != nil {
			return nil, err
		}
		stmt.Constraints = append(stmt.Constraints, tc)
	}
	return stmt, nil
}

func (d *DropSpec) stmt() (QP.ASTNode, error) {
	switch {
	case d.Table != "":
		return &QP.DropTableStmt{Name: d.Table, IfExists: d.IfExists}, nil
	case d.View != "":
		return &QP.DropTableStmt{Name: d.View, IfExists: d.IfExists, IsView: true}, nil
	case d.Index != "":
		table, name, ok := strings.Cut(d.Index, ".")
		if !ok {
			return nil, fmt.Errorf("drop index wants table.index, got %q", d.Index)
		}
		return &QP.DropIndexStmt{Name: name, Table: table, IfExists: d.IfExists}, nil
	case d.Trigger != "":
		return &QP.DropTriggerStmt{Name: d.Trigger, IfExists: d.IfExists}, nil
	}
	return nil, fmt.Errorf("drop names nothing")
}

func (a *AlterSpec) stmt() (QP.ASTNode, error) {
	stmt := &QP.AlterTableStmt{Table: a.Table}
	switch {
	case a.AddColumn != nil:
		col, err := a.AddColumn.def()
		if err != nil {
			return nil, err
		}
		stmt.Action = QP.AlterAddColumn
		stmt.Column = &col
	case a.AddConstraint != nil:
		tc, err := a.AddConstraint.def()
		if err != nil {
			return nil, err
		}
		stmt.Action = QP.AlterAddConstraint
		stmt.Constraint = &tc
	case a.DropConstraint != "":
		stmt.Action = QP.AlterDropConstraint
		stmt.Name = a.DropConstraint
	case a.RenameTo != "":
		stmt.Action = QP.AlterRename
		stmt.Name = a.RenameTo
	case a.EnableCheck != "":
		stmt.Action = QP.AlterEnableCheck
		stmt.Name = a.EnableCheck
		stmt.Enable = true
	case a.DisableCheck != "":
		stmt.Action = QP.AlterEnableCheck
		stmt.Name = a.DisableCheck
	default:
		return nil, fmt.Errorf("alter of %s names no action", a.Table)
	}
	return stmt, nil
}

func (in *InsertSpec) stmt() (QP.ASTNode, error) {
	action, err := parseOnConflict(in.Or)
	if err != nil {
		return nil, err
	}
	stmt := &QP.InsertStmt{Table: in.Table, Columns: in.Columns, OnConflict: action, DefaultValues: in.DefaultValues}
	if in.Select != "" {
		sel, err := QP.ParseSelect(in.Select)
		if err != nil {
			return nil, err
		}
		stmt.Select = sel
		return stmt, nil
	}
	for _, row := range in.Values {
		exprs := make([]QP.Expr, len(row))
		for i, v := range row {
			e, err := value(v)
			if err != nil {
				return nil, err
			}
			exprs[i] = e
		}
		stmt.Values = append(stmt.Values, exprs)
	}
	return stmt, nil
}
