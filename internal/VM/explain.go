package VM

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// ExplainColumns are the column names of ExplainRows.
var ExplainColumns = []string{"addr", "opcode", "p1", "p2", "p3", "p4", "p5", "comment"}

func formatP4(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return fmt.Sprintf("x'%x'", x)
	}
	return fmt.Sprintf("%v", v)
}

// ExplainRows returns one row per instruction.
func (p *Program) ExplainRows() [][]interface{} {
	rows := make([][]interface{}, 0, len(p.Instructions))
	for i, inst := range p.Instructions {
		rows = append(rows, []interface{}{
			int64(i),
			inst.Op.String(),
			int64(inst.P1),
			int64(inst.P2),
			int64(inst.P3),
			formatP4(inst.P4),
			fmt.Sprintf("%02x", inst.P5),
			inst.Comment,
		})
	}
	return rows
}

// Explain renders the program as an aligned listing.
func (p *Program) Explain() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(ExplainColumns, "\t"))
	for _, row := range p.ExplainRows() {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = fmt.Sprintf("%v", c)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	return sb.String()
}
