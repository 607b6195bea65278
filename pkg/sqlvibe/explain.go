package sqlvibe

import (
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/VM"
)

// Explain compiles stmt and returns its bytecode, one row per instruction.
func (db *Database) Explain(stmt QP.ASTNode) (*Rows, error) {
	plan, err := db.Compile(stmt)
	if err != nil {
		return nil, err
	}
	return explainProgram(plan.Program), nil
}

func explainProgram(program *VM.Program) *Rows {
	if program == nil || len(program.Instructions) == 0 {
		return &Rows{Columns: []string{"result"}, Data: [][]interface{}{{"no bytecode generated"}}}
	}
	return &Rows{Columns: VM.ExplainColumns, Data: program.ExplainRows()}
}

// Fingerprint returns the fingerprint of the program compiled for stmt;
// two statements with the same fingerprint run identical bytecode.
func (db *Database) Fingerprint(stmt QP.ASTNode) (string, error) {
	plan, err := db.Compile(stmt)
	if err != nil {
		return "", err
	}
	return plan.Program.Fingerprint()
}

// Image returns the compressed binary image of the program compiled for
// stmt. VM.Program.UnmarshalBinary restores it; the image is only valid
// against the schema it was compiled for.
func (db *Database) Image(stmt QP.ASTNode) ([]byte, error) {
	plan, err := db.Compile(stmt)
	if err != nil {
		return nil, err
	}
	return plan.Program.MarshalBinary()
}
