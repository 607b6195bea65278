package sqlvibe

import (
	"fmt"
	"sort"

	"github.com/sqlvibe/svcomp/internal/IS"
)

// TableInfo holds metadata about a table or view.
type TableInfo struct {
	Name string
	ID   uint32
	Type string // "table" or "view"
}

// ColumnInfo holds metadata about a single column.
type ColumnInfo struct {
	Name       string
	Type       string
	NotNull    bool
	Default    string
	PrimaryKey bool
}

type IndexInfo struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
	Type    string
}

// GetTables returns all user tables and views sorted by name.
func (db *Database) GetTables() []TableInfo {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []TableInfo
	for _, sp := range db.store.Schema().Spaces() {
		if IS.IsSystemSpace(sp.ID()) {
			continue
		}
		kind := "table"
		if sp.IsView() {
			kind = "view"
		}
		result = append(result, TableInfo{Name: sp.Name(), ID: sp.ID(), Type: kind})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (db *Database) space(table string) (*IS.Space, error) {
	sp := db.store.Schema().SpaceByName(table)
	if sp == nil {
		return nil, Errorf(SVDB_NOTFOUND, "no such table: %s", table)
	}
	return sp, nil
}

// GetColumns returns the columns of the named table in field order.
func (db *Database) GetColumns(table string) ([]ColumnInfo, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	sp, err := db.space(table)
	if err != nil {
		return nil, err
	}
	inPK := map[uint32]bool{}
	if pk := sp.PrimaryKey(); pk != nil {
		for _, no := range pk.FieldNos() {
			inPK[no] = true
		}
	}
	cols := make([]ColumnInfo, len(sp.Def.Fields))
	for i := range sp.Def.Fields {
		f := &sp.Def.Fields[i]
		cols[i] = ColumnInfo{
			Name:       f.Name,
			Type:       string(f.Type),
			NotNull:    !f.IsNullable(),
			Default:    f.DefaultText,
			PrimaryKey: inPK[uint32(i)],
		}
	}
	return cols, nil
}

// GetIndexes returns the indexes of the named table, primary key first.
func (db *Database) GetIndexes(table string) ([]IndexInfo, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	sp, err := db.space(table)
	if err != nil {
		return nil, err
	}
	result := make([]IndexInfo, 0, len(sp.Indexes))
	for _, idx := range sp.Indexes {
		cols := make([]string, len(idx.Parts))
		for i, part := range idx.Parts {
			if int(part.FieldNo) >= len(sp.Def.Fields) {
				return nil, Errorf(SVDB_INTERNAL, "index %s refers to field %d", idx.Name, part.FieldNo)
			}
			cols[i] = sp.Def.Fields[part.FieldNo].Name
		}
		result = append(result, IndexInfo{
			Name:    idx.Name,
			Table:   sp.Name(),
			Columns: cols,
			Unique:  idx.Unique,
			Type:    string(idx.Type),
		})
	}
	return result, nil
}

// GetConstraints lists the CHECK and FOREIGN KEY constraint names of the
// named table.
func (db *Database) GetConstraints(table string) (checks, foreignKeys []string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	sp, err := db.space(table)
	if err != nil {
		return nil, nil, err
	}
	for _, ck := range sp.Checks {
		state := ""
		if !ck.Enabled {
			state = " (disabled)"
		}
		checks = append(checks, fmt.Sprintf("%s%s", ck.Name, state))
	}
	for _, fk := range sp.ChildFKs {
		foreignKeys = append(foreignKeys, fk.Name)
	}
	return checks, foreignKeys, nil
}
