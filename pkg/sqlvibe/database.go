// Package sqlvibe is the embedding API of the statement compiler: it owns a
// schema and an in-memory store, compiles statements against the live
// schema, caches the plans and runs them.
package sqlvibe

import (
	"context"
	"fmt"
	"sync"

	"github.com/sqlvibe/svcomp/internal/CG"
	"github.com/sqlvibe/svcomp/internal/DS"
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/VM"
	"github.com/sqlvibe/svcomp/internal/config"
	"github.com/sqlvibe/svcomp/internal/log"
)

// TriggerFunc runs the body of a row trigger. See SetTriggerHandler.
type TriggerFunc = VM.TriggerFunc

type Database struct {
	mu      sync.Mutex
	cfg     config.Config
	store   *DS.Store
	plans   *CG.PlanCache
	trigger TriggerFunc
	closed  bool
}

type Result struct {
	// RowsAffected is the statement change count.
	RowsAffected int64
	Inserted     int64
	Deleted      int64
	// Triggers lists the triggers fired, in order.
	Triggers []string
	// Template names the INSERT plan; empty for other statements.
	Template string
}

type Rows struct {
	Columns []string
	Data    [][]interface{}
	pos     int  // Current position, starts at 0
	started bool // Whether Next() has been called
}

func (r *Rows) Next() bool {
	if r.Data == nil {
		return false
	}
	// On first call, don't advance pos (it's already at 0)
	if !r.started {
		r.started = true
		return len(r.Data) > 0
	}
	r.pos++
	return r.pos < len(r.Data)
}

func (r *Rows) Scan(dest ...interface{}) error {
	if r.Data == nil || r.pos < 0 || r.pos >= len(r.Data) {
		return fmt.Errorf("no rows available")
	}
	row := r.Data[r.pos]
	for i, val := range dest {
		if i >= len(row) {
			break
		}
		switch d := val.(type) {
		case *int:
			if v, ok := asInt64(row[i]); ok {
				*d = int(v)
			}
		case *int64:
			if v, ok := asInt64(row[i]); ok {
				*d = v
			}
		case *float64:
			switch v := row[i].(type) {
			case int64:
				*d = float64(v)
			case float64:
				*d = v
			}
		case *string:
			if row[i] != nil {
				switch v := row[i].(type) {
				case string:
					*d = v
				default:
					*d = fmt.Sprintf("%v", v)
				}
			}
		case *bool:
			if v, ok := row[i].(bool); ok {
				*d = v
			}
		case *interface{}:
			*d = row[i]
		default:
			return fmt.Errorf("unsupported scan destination %T", val)
		}
	}
	return nil
}

func asInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		return int64(x), true
	}
	return 0, false
}

// Open creates an empty database. A nil cfg means the defaults.
func Open(cfg *config.Config) (*Database, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, Errorf(SVDB_MISUSE, "invalid configuration: %v", err)
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, Errorf(SVDB_MISUSE, "invalid configuration: %v", err)
	}
	log.SetLevel(level)

	db := &Database{
		cfg:   *cfg,
		store: DS.NewStore(IS.NewSchema()),
		plans: CG.NewPlanCache(cfg.Cache.PlanCacheSize),
	}
	log.Info("sqlvibe: opened database (engine %s, plan cache %d)", cfg.Compiler.DefaultEngine, cfg.Cache.PlanCacheSize)
	return db, nil
}

// SetTriggerHandler installs the function that runs trigger bodies. Without
// one, triggers are only recorded in Result.Triggers.
func (db *Database) SetTriggerHandler(fn TriggerFunc) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.trigger = fn
}

// Schema returns the live schema. Callers must not modify it.
func (db *Database) Schema() *IS.Schema {
	return db.store.Schema()
}

// Compile compiles stmt against the current schema without running it.
func (db *Database) Compile(stmt QP.ASTNode) (*CG.Plan, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, NewError(SVDB_MISUSE, "database is closed")
	}
	return db.plan(stmt)
}

// plan returns a cached plan for statements with a canonical text form.
// The cache entry is tied to the schema version, so DDL retires it.
func (db *Database) plan(stmt QP.ASTNode) (*CG.Plan, error) {
	text := ""
	if s, ok := stmt.(fmt.Stringer); ok {
		text = s.String()
	}
	version := db.store.Schema().Version()
	if text != "" {
		if plan, ok := db.plans.Get(text, version); ok {
			log.Debug("sqlvibe: plan cache hit for %q", text)
			return plan, nil
		}
	}
	plan, err := CG.CompilePlan(db.store.Schema(), db.cfg.Compiler, stmt)
	if err != nil {
		return nil, err
	}
	if text != "" {
		db.plans.Put(text, version, plan)
	}
	return plan, nil
}

// Exec compiles and runs one statement.
func (db *Database) Exec(ctx context.Context, stmt QP.ASTNode) (*Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, NewError(SVDB_MISUSE, "database is closed")
	}
	plan, err := db.plan(stmt)
	if err != nil {
		return nil, err
	}
	res, err := db.run(ctx, plan)
	if err != nil {
		return nil, err
	}
	out := &Result{
		RowsAffected: res.Changes,
		Inserted:     res.Inserted,
		Deleted:      res.Deleted,
		Triggers:     res.Triggers,
	}
	if plan.Template != CG.TemplateNone {
		out.Template = plan.Template.String()
	}
	return out, nil
}

func (db *Database) run(ctx context.Context, plan *CG.Plan) (*VM.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, ToError(err)
	}
	vm := VM.NewVM(plan.Program, db.store)
	vm.Trigger = db.trigger
	return vm.Exec(ctx)
}

// Query runs a SELECT given as text.
func (db *Database) Query(ctx context.Context, sql string) (*Rows, error) {
	sel, err := QP.ParseSelect(sql)
	if err != nil {
		return nil, Errorf(SVDB_ERROR, "%v", err)
	}
	return db.QueryStmt(ctx, sel)
}

// QueryStmt runs a parsed SELECT.
func (db *Database) QueryStmt(ctx context.Context, sel *QP.SelectStmt) (*Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, NewError(SVDB_MISUSE, "database is closed")
	}
	plan, err := db.plan(sel)
	if err != nil {
		return nil, err
	}
	res, err := db.run(ctx, plan)
	if err != nil {
		return nil, err
	}
	data := res.Rows
	if data == nil {
		data = [][]interface{}{}
	}
	return &Rows{Columns: plan.Columns, Data: data}, nil
}

// PlanCacheStats returns the plan cache hit and miss counters.
func (db *Database) PlanCacheStats() (hits, misses int64) {
	return db.plans.Stats()
}

func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.plans.Invalidate()
	return nil
}
