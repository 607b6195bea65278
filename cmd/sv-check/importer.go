package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sqlvibe/svcomp/internal/QP"
)

// ImportSpec loads a CSV file into an existing table. The header row is
// the column list; every record becomes one row of a single INSERT.
type ImportSpec struct {
	Table string `yaml:"table"`
	File  string `yaml:"file"`
	Or    string `yaml:"or"`
}

func (im *ImportSpec) stmt() (QP.ASTNode, error) {
	action, err := parseOnConflict(im.Or)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(im.File)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", im.File, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty CSV file", im.File)
	}
	if len(records) == 1 {
		return nil, fmt.Errorf("%s: no data rows in CSV", im.File)
	}

	stmt := &QP.InsertStmt{Table: im.Table, Columns: records[0], OnConflict: action}
	for _, rec := range records[1:] {
		row := make([]QP.Expr, len(rec))
		for i, field := range rec {
			row[i] = &QP.Literal{Value: csvValue(field)}
		}
		stmt.Values = append(stmt.Values, row)
	}
	return stmt, nil
}

// csvValue reads an empty field as NULL and numeric text as a number.
func csvValue(field string) interface{} {
	if field == "" {
		return nil
	}
	if n, err := strconv.ParseInt(field, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(field, 64); err == nil {
		return f
	}
	return field
}
