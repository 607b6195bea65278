package QP

import (
	"fmt"
	"strings"
)

// OnConflict is the conflict-resolution action of a constraint or a
// statement. OnConflictDefault means "not specified".
type OnConflict int

const (
	OnConflictDefault OnConflict = iota
	OnConflictNone
	OnConflictRollback
	OnConflictAbort
	OnConflictFail
	OnConflictIgnore
	OnConflictReplace
)

var onConflictNames = []string{"default", "none", "rollback", "abort", "fail", "ignore", "replace"}

func (o OnConflict) String() string {
	if int(o) < len(onConflictNames) {
		return onConflictNames[o]
	}
	return fmt.Sprintf("on_conflict(%d)", int(o))
}

type SortOrder int

const (
	SortAsc SortOrder = iota
	SortDesc
	SortUndef
)

func (s SortOrder) String() string {
	switch s {
	case SortDesc:
		return "desc"
	case SortUndef:
		return "undef"
	}
	return "asc"
}

// FKAction is an ON DELETE / ON UPDATE action.
type FKAction string

const (
	FKNoAction   FKAction = "no_action"
	FKRestrict   FKAction = "restrict"
	FKCascade    FKAction = "cascade"
	FKSetNull    FKAction = "set_null"
	FKSetDefault FKAction = "set_default"
)

// FKMatch is a MATCH clause.
type FKMatch string

const (
	FKMatchSimple  FKMatch = "simple"
	FKMatchPartial FKMatch = "partial"
	FKMatchFull    FKMatch = "full"
)

// IndexedColumn is one element of a key column list.
type IndexedColumn struct {
	Name      string
	Collation string
	Order     SortOrder
}

// Columns builds an IndexedColumn list from bare names.
func Columns(names ...string) []IndexedColumn {
	cols := make([]IndexedColumn, len(names))
	for i, n := range names {
		cols[i] = IndexedColumn{Name: n}
	}
	return cols
}

type ForeignKeyClause struct {
	Name        string
	ChildCols   []string // empty for a column constraint
	ParentTable string
	ParentCols  []string // empty means the parent primary key
	OnDelete    FKAction
	OnUpdate    FKAction
	Match       FKMatch
	Deferred    bool
}

type ConstraintKind int

const (
	ConstraintPrimaryKey ConstraintKind = iota + 1
	ConstraintUnique
	ConstraintCheck
	ConstraintForeignKey
)

// TableConstraint is a table-level (or column-level, with Columns empty)
// PRIMARY KEY, UNIQUE, CHECK or FOREIGN KEY clause.
type TableConstraint struct {
	Name          string
	Kind          ConstraintKind
	Columns       []IndexedColumn
	OnConflict    OnConflict
	Autoincrement bool
	Order         SortOrder
	Check         string
	ForeignKey    *ForeignKeyClause
}

// ColumnDef is one column definition as the parser delivers it.
type ColumnDef struct {
	Name        string
	Type        string
	NotNull     bool
	NullAction  OnConflict // action of NOT NULL; Default means abort
	Null        bool       // explicit NULL
	Default     string
	Collation   string
	Constraints []TableConstraint
}

type CreateTableStmt struct {
	Name        string
	IfNotExists bool
	Temporary   bool
	Engine      string
	Columns     []ColumnDef
	Constraints []TableConstraint
}

func (c *CreateTableStmt) NodeType() string { return "CreateTableStmt" }

type AlterAction int

const (
	AlterAddColumn AlterAction = iota + 1
	AlterAddConstraint
	AlterDropConstraint
	AlterRename
	AlterEnableCheck
)

type AlterTableStmt struct {
	Table      string
	Action     AlterAction
	Column     *ColumnDef
	Constraint *TableConstraint
	Name       string // constraint name for drop/enable, new name for rename
	Enable     bool
}

func (a *AlterTableStmt) NodeType() string { return "AlterTableStmt" }

type CreateIndexStmt struct {
	Name        string
	Table       string
	Columns     []IndexedColumn
	Unique      bool
	IfNotExists bool
	Type        string // TREE (default), HASH, RTREE, BITSET
}

func (c *CreateIndexStmt) NodeType() string { return "CreateIndexStmt" }

type DropTableStmt struct {
	Name     string
	IfExists bool
	IsView   bool
}

func (d *DropTableStmt) NodeType() string { return "DropTableStmt" }

type DropIndexStmt struct {
	Name     string
	Table    string
	IfExists bool
}

func (d *DropIndexStmt) NodeType() string { return "DropIndexStmt" }

type CreateViewStmt struct {
	Name        string
	IfNotExists bool
	Columns     []string
	Select      *SelectStmt
}

func (c *CreateViewStmt) NodeType() string { return "CreateViewStmt" }

type InsertStmt struct {
	Table         string
	Columns       []string
	Values        [][]Expr
	Select        *SelectStmt
	DefaultValues bool
	OnConflict    OnConflict
}

func (i *InsertStmt) NodeType() string { return "InsertStmt" }

// String renders the statement as canonical SQL text.
func (i *InsertStmt) String() string {
	var sb strings.Builder
	sb.WriteString("INSERT ")
	if i.OnConflict != OnConflictDefault {
		sb.WriteString("OR " + strings.ToUpper(i.OnConflict.String()) + " ")
	}
	sb.WriteString("INTO " + quoteIdent(i.Table))
	if len(i.Columns) > 0 {
		cols := make([]string, len(i.Columns))
		for k, c := range i.Columns {
			cols[k] = quoteIdent(c)
		}
		sb.WriteString("(" + strings.Join(cols, ", ") + ")")
	}
	switch {
	case i.DefaultValues:
		sb.WriteString(" DEFAULT VALUES")
	case i.Select != nil:
		sb.WriteString(" " + i.Select.String())
	default:
		sb.WriteString(" VALUES ")
		for r, row := range i.Values {
			if r > 0 {
				sb.WriteString(", ")
			}
			vals := make([]string, len(row))
			for k, v := range row {
				vals[k] = v.String()
			}
			sb.WriteString("(" + strings.Join(vals, ", ") + ")")
		}
	}
	return sb.String()
}

// CreateTriggerStmt registers a row trigger. The body is owned by the host
// and run through the VM trigger hook.
type CreateTriggerStmt struct {
	Name        string
	Table       string
	Event       string // INSERT, DELETE, UPDATE
	Timing      string // BEFORE, AFTER, INSTEAD OF
	IfNotExists bool
}

func (c *CreateTriggerStmt) NodeType() string { return "CreateTriggerStmt" }

type DropTriggerStmt struct {
	Name     string
	IfExists bool
}

func (d *DropTriggerStmt) NodeType() string { return "DropTriggerStmt" }
