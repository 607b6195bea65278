package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/log"
	"github.com/sqlvibe/svcomp/pkg/sqlvibe"
)

// Runner runs scripts and reports each step to out.
type Runner struct {
	db        *sqlvibe.Database
	out       io.Writer
	formatter *Formatter
	explain   bool
	verbose   bool
}

func NewRunner(db *sqlvibe.Database, out io.Writer, mode OutputMode) *Runner {
	return &Runner{db: db, out: out, formatter: NewFormatter(mode)}
}

// Run executes every step and returns the number that did not meet their
// expectations. A step that cannot be converted is a failure too.
func (r *Runner) Run(ctx context.Context, s *Script) int {
	logger := log.With("sv-check", s.Name)
	failures := 0
	for i := range s.Steps {
		step := &s.Steps[i]
		if err := r.step(ctx, step); err != nil {
			failures++
			fmt.Fprintf(r.out, "FAIL %s: %v\n", step.Name, err)
			logger.Warn("%s failed: %v", step.Name, err)
			continue
		}
		if r.verbose {
			fmt.Fprintf(r.out, "ok   %s\n", step.Name)
		}
	}
	logger.Info("%d steps, %d failed", len(s.Steps), failures)
	return failures
}

func (r *Runner) step(ctx context.Context, step *Step) error {
	stmt, err := step.Statement()
	if err != nil {
		return err
	}
	if r.explain {
		if rows, err := r.db.Explain(stmt); err == nil {
			fmt.Fprint(r.out, r.formatter.Format(rows))
		}
		if image, err := r.db.Image(stmt); err == nil {
			fp, _ := r.db.Fingerprint(stmt)
			fmt.Fprintf(r.out, "     image %d bytes, fingerprint %s\n", len(image), fp)
		}
	}

	if sel, ok := stmt.(*QP.SelectStmt); ok {
		rows, err := r.db.QueryStmt(ctx, sel)
		if err := checkError(step.ExpectError, err); err != nil || rows == nil {
			return err
		}
		if r.verbose {
			fmt.Fprint(r.out, r.formatter.Format(rows))
		}
		return checkRows(step, rows)
	}

	res, err := r.db.Exec(ctx, stmt)
	if err := checkError(step.ExpectError, err); err != nil || res == nil {
		return err
	}
	if step.ExpectRows != nil && res.RowsAffected != int64(*step.ExpectRows) {
		return fmt.Errorf("%d rows affected, want %d", res.RowsAffected, *step.ExpectRows)
	}
	if r.verbose && res.Template != "" {
		fmt.Fprintf(r.out, "     %s: %d inserted, %d deleted\n", res.Template, res.Inserted, res.Deleted)
	}
	return nil
}

// checkError matches err against the expected code name. A primary code
// such as SVDB_CONSTRAINT also matches its extended codes.
func checkError(expect string, err error) error {
	if expect == "" {
		return err
	}
	want, ok := errors.ParseErrorCode(expect)
	if !ok {
		return fmt.Errorf("unknown error code %q", expect)
	}
	if err == nil {
		return fmt.Errorf("succeeded, want %s", expect)
	}
	got := errors.ErrorCodeOf(err)
	if got == want || (want == want.Primary() && got.Primary() == want) {
		return nil
	}
	return fmt.Errorf("got %s (%v), want %s", got, errors.MessageOf(err), expect)
}

func checkRows(step *Step, rows *sqlvibe.Rows) error {
	if step.ExpectRows != nil && len(rows.Data) != *step.ExpectRows {
		return fmt.Errorf("%d rows, want %d", len(rows.Data), *step.ExpectRows)
	}
	if step.Expect == nil {
		return nil
	}
	if len(rows.Data) != len(step.Expect) {
		return fmt.Errorf("%d rows, want %d", len(rows.Data), len(step.Expect))
	}
	for i, want := range step.Expect {
		got := rows.Data[i]
		if cells(got) != cells(want) {
			return fmt.Errorf("row %d is %s, want %s", i+1, cells(got), cells(want))
		}
	}
	return nil
}

func cells(row []interface{}) string {
	parts := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			parts[i] = "NULL"
		} else {
			parts[i] = fmt.Sprintf("%v", v)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
