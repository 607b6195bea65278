package main

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/sqlvibe/svcomp/pkg/sqlvibe"
)

type OutputMode string

const (
	OutputTable OutputMode = "table"
	OutputCSV   OutputMode = "csv"
)

// ParseOutputMode accepts the names of the output modes, case-insensitively.
func ParseOutputMode(s string) (OutputMode, bool) {
	switch m := OutputMode(strings.ToLower(s)); m {
	case OutputTable, OutputCSV:
		return m, true
	}
	return "", false
}

// Formatter renders query results and EXPLAIN listings of script steps.
type Formatter struct {
	mode        OutputMode
	showHeaders bool
	nullValue   string
}

func NewFormatter(mode OutputMode) *Formatter {
	return &Formatter{mode: mode, showHeaders: true, nullValue: "NULL"}
}

func (f *Formatter) SetShowHeaders(show bool) {
	f.showHeaders = show
}

// SetNullValue sets the text printed for NULL; empty keeps "NULL".
func (f *Formatter) SetNullValue(value string) {
	if value != "" {
		f.nullValue = value
	}
}

func (f *Formatter) Format(rows *sqlvibe.Rows) string {
	if rows == nil || len(rows.Columns) == 0 {
		return ""
	}
	text := make([][]string, len(rows.Data))
	for i, row := range rows.Data {
		text[i] = make([]string, len(rows.Columns))
		for j := range rows.Columns {
			if j < len(row) {
				text[i][j] = f.cell(row[j])
			}
		}
	}
	if f.mode == OutputCSV {
		return f.renderCSV(rows.Columns, text)
	}
	return f.renderTable(rows.Columns, text)
}

// renderTable pads every column to its widest cell and frames the header.
func (f *Formatter) renderTable(cols []string, data [][]string) string {
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for _, row := range data {
		for i, s := range row {
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}
	line := func(sb *strings.Builder, vals []string) {
		sb.WriteByte('|')
		for i, v := range vals {
			fmt.Fprintf(sb, " %-*s |", widths[i], v)
		}
		sb.WriteByte('\n')
	}

	var sb strings.Builder
	if f.showHeaders {
		total := 1
		for _, w := range widths {
			total += w + 3
		}
		rule := strings.Repeat("-", total) + "\n"
		sb.WriteString(rule)
		line(&sb, cols)
		sb.WriteString(rule)
	}
	for _, row := range data {
		line(&sb, row)
	}
	return sb.String()
}

func (f *Formatter) renderCSV(cols []string, data [][]string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if f.showHeaders {
		w.Write(cols)
	}
	w.WriteAll(data)
	return sb.String()
}

func (f *Formatter) cell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return f.nullValue
	case []byte:
		return fmt.Sprintf("x'%x'", x)
	}
	return fmt.Sprintf("%v", v)
}
