package CG

import (
	"github.com/google/uuid"

	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/SF/util"
	"github.com/sqlvibe/svcomp/internal/VM"
	"github.com/sqlvibe/svcomp/internal/config"
	"github.com/sqlvibe/svcomp/internal/log"
)

// Parse is the compilation context of one statement. Every definition
// built through it lives only as long as the Parse; on error the whole
// context is dropped and nothing it produced is referenced again.
//
// Only the first error is kept. Once it is set every builder operation
// returns without doing anything.
type Parse struct {
	prog   *VM.Program
	schema *IS.Schema
	cfg    config.CompilerConfig
	err    error
	id     string
	log    *log.Entry

	// table under construction (CREATE) or altered copy (ALTER)
	space *IS.Space
	// register holding the id of space; its value is assigned at run time
	// for a new table
	spaceReg    int
	liveIndexes int
	pkDeclared  bool
	// field number of the AUTOINCREMENT column, -1 when there is none
	autoinc       int
	ifNotExists   bool
	pendingChecks []*IS.CheckDef
	pendingFKs    []*pendingFK

	sysCursors map[uint32]int

	// INSERT plan chosen by Insert
	template    InsertTemplate
	xferGuarded bool
	columns     []string
}

// NewParse starts the compilation of one statement against schema.
func NewParse(schema *IS.Schema, cfg config.CompilerConfig) *Parse {
	util.AssertNotNil(schema, "schema")
	p := &Parse{
		prog:       VM.NewProgram(),
		schema:     schema,
		cfg:        cfg,
		id:         uuid.NewString(),
		autoinc:    -1,
		sysCursors: make(map[uint32]int),
	}
	p.log = log.With("CG", p.id)
	p.prog.EmitOp(VM.OpInit, 0, 1, 0)
	return p
}

// ID is the compile id used in log lines.
func (p *Parse) ID() string {
	return p.id
}

func (p *Parse) Program() *VM.Program {
	return p.prog
}

// Err returns the first error recorded, or nil.
func (p *Parse) Err() error {
	return p.err
}

func (p *Parse) failed() bool {
	return p.err != nil
}

func (p *Parse) setError(err error) {
	if p.err == nil {
		p.err = err
		p.log.Debug("compile error: %v", err)
	}
}

func (p *Parse) errorf(code errors.ErrorCode, kind errors.Kind, format string, args ...interface{}) {
	p.setError(errors.Errorf(code, kind, format, args...))
}

// Finish terminates the program with a successful halt and makes it
// runnable. It returns the first compile error instead when there is one.
func (p *Parse) Finish() (*VM.Program, error) {
	if p.failed() {
		return nil, p.err
	}
	p.prog.Emit(VM.OpHalt)
	if err := p.prog.Finish(); err != nil {
		return nil, errors.Wrap(errors.SVDB_INTERNAL, errors.KindStructural, "bytecode generation failed", err)
	}
	p.log.Debug("program finished: %d instructions, %d registers", len(p.prog.Instructions), p.prog.NumRegs)
	return p.prog, nil
}

// checkIdentifier validates an object name.
func (p *Parse) checkIdentifier(name string) bool {
	if p.failed() {
		return false
	}
	if name == "" || len(name) > p.cfg.MaxIdentifierLength || !util.IsPrintable(name) {
		p.errorf(errors.SVDB_ERROR, errors.KindIdentifier,
			"Invalid identifier '%s' (expected printable symbols only or it is too long)", name)
		return false
	}
	return true
}

// lookupTable returns the live space named name. A missing space, or a
// view where a table is required, is an error.
func (p *Parse) lookupTable(name string, allowView bool) *IS.Space {
	if p.failed() {
		return nil
	}
	sp := p.schema.SpaceByName(name)
	if sp == nil {
		p.errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Space '%s' does not exist", name)
		return nil
	}
	if sp.IsView() && !allowView {
		p.errorf(errors.SVDB_ERROR, errors.KindReference, "Can't modify space '%s': space is a view", name)
		return nil
	}
	return sp
}

// effectiveAction resolves a statement-level action against a
// constraint-level one; an unspecified action is ABORT.
func effectiveAction(stmt, constraint QP.OnConflict) QP.OnConflict {
	if stmt != QP.OnConflictDefault {
		return stmt
	}
	if constraint == QP.OnConflictDefault || constraint == QP.OnConflictNone {
		return QP.OnConflictAbort
	}
	return constraint
}
