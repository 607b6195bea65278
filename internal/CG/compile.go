package CG

import (
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/VM"
	"github.com/sqlvibe/svcomp/internal/config"
)

// Plan is a compiled statement.
type Plan struct {
	Program *VM.Program
	// Template is the INSERT plan, TemplateNone for other statements.
	Template InsertTemplate
	// XferGuarded is set when the xfer path has a row-by-row fallback.
	XferGuarded bool
	// Columns names the result columns of a SELECT.
	Columns []string
}

// Compile translates one statement into a finished program. Nothing in
// schema is changed; DDL takes effect when the program runs.
func Compile(schema *IS.Schema, cfg config.CompilerConfig, stmt QP.ASTNode) (*VM.Program, error) {
	plan, err := CompilePlan(schema, cfg, stmt)
	if err != nil {
		return nil, err
	}
	return plan.Program, nil
}

// CompilePlan is Compile that also reports the INSERT plan chosen.
func CompilePlan(schema *IS.Schema, cfg config.CompilerConfig, stmt QP.ASTNode) (*Plan, error) {
	p := NewParse(schema, cfg)
	switch s := stmt.(type) {
	case *QP.CreateTableStmt:
		p.CreateTable(s)
	case *QP.CreateViewStmt:
		p.CreateView(s)
	case *QP.AlterTableStmt:
		p.AlterTable(s)
	case *QP.CreateIndexStmt:
		p.CreateIndex(s)
	case *QP.DropTableStmt:
		p.DropTable(s)
	case *QP.DropIndexStmt:
		p.DropIndex(s)
	case *QP.CreateTriggerStmt:
		p.CreateTrigger(s)
	case *QP.DropTriggerStmt:
		p.DropTrigger(s)
	case *QP.InsertStmt:
		p.Insert(s)
	case *QP.SelectStmt:
		p.Select(s)
	case nil:
		return nil, errors.New(errors.SVDB_MISUSE, errors.KindStructural, "no statement to compile")
	default:
		return nil, errors.Errorf(errors.SVDB_ERROR, errors.KindStructural, "unsupported statement %s", stmt.NodeType())
	}
	prog, err := p.Finish()
	if err != nil {
		return nil, err
	}
	tmpl, guarded := p.Template()
	return &Plan{Program: prog, Template: tmpl, XferGuarded: guarded, Columns: p.columns}, nil
}
