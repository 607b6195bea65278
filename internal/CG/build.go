package CG

import (
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/SF/util"
)

// TableOptions are the CREATE TABLE / CREATE VIEW flags.
type TableOptions struct {
	IfNotExists bool
	Temporary   bool
	Engine      string
	IsView      bool
	ViewSQL     string
}

// StartTable begins the definition of a new table. The id of the table is
// unknown until the program runs; constraints refer to it through the
// register returned by spaceRef.
func (p *Parse) StartTable(name string, opts TableOptions) *IS.Space {
	if !p.checkIdentifier(name) {
		return nil
	}
	if p.schema.SpaceByName(name) != nil && !opts.IfNotExists {
		p.errorf(errors.SVDB_SCHEMA_EXISTS, errors.KindIdentifier, "Space '%s' already exists", name)
		return nil
	}
	sp := IS.NewSpace(name, IS.NewUnderConstruction)
	sp.Def.Owner = IS.AdminUserID
	sp.Def.Engine = opts.Engine
	if sp.Def.Engine == "" {
		sp.Def.Engine = p.cfg.DefaultEngine
	}
	sp.Def.Opts = IS.SpaceOpts{IsView: opts.IsView, IsTemporary: opts.Temporary, ViewSQL: opts.ViewSQL}
	p.space = sp
	p.spaceReg = p.prog.AllocReg()
	p.ifNotExists = opts.IfNotExists
	p.log.Debug("start table %s", name)
	return sp
}

// AddColumn appends a field and returns its number, or -1 on error.
func (p *Parse) AddColumn(name string, typ IS.FieldType) int {
	if p.space == nil || !p.checkIdentifier(name) {
		return -1
	}
	def := p.space.Def
	if len(def.Fields) >= p.cfg.MaxColumns {
		p.errorf(errors.SVDB_TOOBIG, errors.KindResource,
			"Failed to create space '%s': too many columns, the limit is %d", def.Name, p.cfg.MaxColumns)
		return -1
	}
	if p.space.FieldIndex(name) >= 0 {
		p.errorf(errors.SVDB_SCHEMA_EXISTS, errors.KindIdentifier,
			"Space field '%s' is duplicate", name)
		return -1
	}
	def.Fields = append(def.Fields, IS.FieldDef{
		Name:       name,
		Type:       typ,
		NullAction: QP.OnConflictDefault,
	})
	return len(def.Fields) - 1
}

func (p *Parse) field(no int) *IS.FieldDef {
	util.Assert(p.space != nil && no >= 0 && no < len(p.space.Def.Fields), "field %d out of range", no)
	return &p.space.Def.Fields[no]
}

// SetNullableAction records NULL (OnConflictNone) or NOT NULL with its
// conflict action. A column may not be given two different actions.
func (p *Parse) SetNullableAction(no int, action QP.OnConflict) {
	if p.failed() || no < 0 {
		return
	}
	f := p.field(no)
	if f.NullAction != QP.OnConflictDefault && f.NullAction != action {
		p.errorf(errors.SVDB_ERROR, errors.KindStructural,
			"NULL declaration for column '%s' of table '%s' has been already set to '%s'",
			f.Name, p.space.Name(), f.NullAction)
		return
	}
	f.NullAction = action
}

// SetCollation sets the collation of a column.
func (p *Parse) SetCollation(no int, name string) {
	if p.failed() || no < 0 {
		return
	}
	id, ok := IS.LookupCollation(name)
	if !ok {
		p.errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Collation '%s' does not exist", name)
		return
	}
	p.field(no).CollID = id
}

// AddDefaultValue attaches a DEFAULT expression to a column. The text is
// stored canonicalised and must parse as an expression.
func (p *Parse) AddDefaultValue(no int, text string) {
	if p.failed() || no < 0 {
		return
	}
	f := p.field(no)
	expr, err := QP.ParseExpr(text)
	if err != nil {
		p.setError(errors.Wrap(errors.SVDB_ERROR, errors.KindStructural,
			"Failed to parse default value of column '"+f.Name+"'", err))
		return
	}
	if !isConstant(expr) {
		p.errorf(errors.SVDB_ERROR, errors.KindStructural,
			"Default value of column '%s' is not constant", f.Name)
		return
	}
	f.DefaultText = util.TrimSQL(text)
	f.Default = expr
}

// DeclarePrimaryKey declares the primary key. With no columns the key is
// the most recently added column. A table has at most one primary key; a
// second declaration fails and leaves the first untouched.
func (p *Parse) DeclarePrimaryKey(cols []QP.IndexedColumn, onConflict QP.OnConflict, autoinc bool, order QP.SortOrder) {
	p.declarePrimaryKey("", cols, onConflict, autoinc, order)
}

func (p *Parse) declarePrimaryKey(name string, cols []QP.IndexedColumn, onConflict QP.OnConflict, autoinc bool, order QP.SortOrder) {
	if p.space == nil || p.failed() {
		return
	}
	sp := p.space
	if p.pkDeclared || (sp.Provenance != IS.NewUnderConstruction && sp.PrimaryKey() != nil) {
		p.errorf(errors.SVDB_ERROR, errors.KindStructural,
			"Failed to create space '%s': primary key has been already declared", sp.Name())
		return
	}
	if len(cols) == 0 {
		n := len(sp.Def.Fields)
		if n == 0 {
			p.errorf(errors.SVDB_ERROR, errors.KindStructural,
				"Failed to create space '%s': PRIMARY KEY without columns", sp.Name())
			return
		}
		cols = []QP.IndexedColumn{{Name: sp.Def.Fields[n-1].Name, Order: order}}
	}
	p.pkDeclared = true
	idx := p.addIndex(indexSpec{name: name, cols: cols, unique: true, primary: true, onConflict: onConflict})
	if idx == nil || !autoinc {
		return
	}
	if len(idx.Parts) != 1 || !sp.Def.Fields[idx.Parts[0].FieldNo].Type.IsInteger() {
		p.errorf(errors.SVDB_ERROR, errors.KindStructural,
			"Failed to create space '%s': AUTOINCREMENT is only allowed on an INTEGER PRIMARY KEY", sp.Name())
		return
	}
	p.autoinc = int(idx.Parts[0].FieldNo)
}

// AddUnique declares a UNIQUE constraint.
func (p *Parse) AddUnique(name string, cols []QP.IndexedColumn, onConflict QP.OnConflict) {
	if p.space == nil || p.failed() {
		return
	}
	if len(cols) == 0 {
		n := len(p.space.Def.Fields)
		if n == 0 {
			return
		}
		cols = []QP.IndexedColumn{{Name: p.space.Def.Fields[n-1].Name}}
	}
	p.addIndex(indexSpec{name: name, cols: cols, unique: true, onConflict: onConflict})
}

// AddCheckConstraint queues a CHECK constraint. Its expression text is
// stored trimmed.
func (p *Parse) AddCheckConstraint(name, text string) {
	if p.space == nil || p.failed() {
		return
	}
	if name == "" {
		name = p.checkName()
	} else if !p.checkIdentifier(name) {
		return
	} else if p.constraintTaken(name) {
		p.errorf(errors.SVDB_SCHEMA_EXISTS, errors.KindIdentifier,
			"Constraint '%s' already exists in space '%s'", name, p.space.Name())
		return
	}
	expr, err := QP.ParseExpr(text)
	if err != nil {
		p.setError(errors.Wrap(errors.SVDB_ERROR, errors.KindStructural,
			"Failed to create check constraint '"+name+"'", err))
		return
	}
	p.pendingChecks = append(p.pendingChecks, &IS.CheckDef{
		SpaceID:  p.spaceRef(),
		Name:     name,
		Language: IS.CheckLanguageSQL,
		Code:     util.TrimSQL(text),
		Enabled:  true,
		Expr:     expr,
	})
}

// isConstant reports whether e references no column.
func isConstant(e QP.Expr) bool {
	switch x := e.(type) {
	case *QP.Literal:
		return true
	case *QP.BinaryExpr:
		return isConstant(x.Left) && isConstant(x.Right)
	case *QP.UnaryExpr:
		return isConstant(x.Expr)
	case *QP.IsNullExpr:
		return isConstant(x.Expr)
	case *QP.CollateExpr:
		return isConstant(x.Expr)
	}
	return false
}
