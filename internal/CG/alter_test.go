package CG

import (
	"strings"
	"testing"

	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
)

func alter(table string, action QP.AlterAction) *QP.AlterTableStmt {
	return &QP.AlterTableStmt{Table: table, Action: action}
}

func addColumn(table string, c QP.ColumnDef) *QP.AlterTableStmt {
	stmt := alter(table, QP.AlterAddColumn)
	stmt.Column = &c
	return stmt
}

func addConstraint(table string, tc QP.TableConstraint) *QP.AlterTableStmt {
	stmt := alter(table, QP.AlterAddConstraint)
	stmt.Constraint = &tc
	return stmt
}

func dropConstraint(table, name string) *QP.AlterTableStmt {
	stmt := alter(table, QP.AlterDropConstraint)
	stmt.Name = name
	return stmt
}

func TestAlterAddColumn(t *testing.T) {
	s := newPeople(t)
	mustExec(t, s, insertValues("people", QP.OnConflictDefault, row(1, "a", 30)))
	mustExec(t, s, addColumn("people", col("email", "TEXT")))

	sp := space(t, s, "people")
	if len(sp.Def.Fields) != 4 || !sp.Def.Fields[3].IsNullable() {
		t.Fatalf("fields = %+v", sp.Def.Fields)
	}
	got := rows(t, s, "people")
	if len(got) != 1 || len(got[0]) != 4 || got[0][3] != nil {
		t.Errorf("rows = %v", got)
	}
}

func TestAlterAddColumnNotNullOnRows(t *testing.T) {
	s := newPeople(t)
	mustExec(t, s, addColumn("people", notNull("a", "INTEGER")))
	mustExec(t, s, insertValues("people", QP.OnConflictDefault, row(1, "a", 30, 5)))

	_, err := exec(t, s, addColumn("people", notNull("b", "INTEGER")))
	if err == nil {
		t.Fatal("NOT NULL column added to a non-empty space")
	}
	if len(space(t, s, "people").Def.Fields) != 4 {
		t.Errorf("failed ALTER changed the format")
	}
}

func TestAlterAddColumnWithUnique(t *testing.T) {
	s := newPeople(t)
	c := col("code", "TEXT")
	c.Constraints = []QP.TableConstraint{{Kind: QP.ConstraintUnique}}
	mustExec(t, s, addColumn("people", c))
	sp := space(t, s, "people")
	idx := sp.IndexByName("unique_unnamed_people_3")
	if idx == nil || idx.IID != 2 || idx.Parts[0].FieldNo != 3 || !idx.Parts[0].IsNullable {
		t.Fatalf("indexes = %v", indexNames(sp))
	}
}

func TestAlterAddColumnErrors(t *testing.T) {
	s := newPeople(t)
	_, err := exec(t, s, addColumn("people", col("name", "TEXT")))
	expectCode(t, err, errors.SVDB_SCHEMA_EXISTS)
	_, err = exec(t, s, addColumn("nobody", col("x", "TEXT")))
	expectCode(t, err, errors.SVDB_NOTFOUND)

	primary := col("x", "INTEGER")
	primary.Constraints = []QP.TableConstraint{{Kind: QP.ConstraintPrimaryKey}}
	_, err = exec(t, s, addColumn("people", primary))
	expectCode(t, err, errors.SVDB_ERROR)
	if len(space(t, s, "people").Def.Fields) != 3 {
		t.Errorf("failed ALTER changed the format")
	}
}

func TestAlterAddConstraints(t *testing.T) {
	s := newPeople(t)
	mustExec(t, s, addConstraint("people", unique("age")))
	mustExec(t, s, addConstraint("people", check("", "age >= 0")))
	mustExec(t, s, addConstraint("people", check("adult", "age >= 18")))

	sp := space(t, s, "people")
	if want := []string{"pk_unnamed_people_1", "unique_unnamed_people_2", "unique_unnamed_people_3"}; !equalStrings(indexNames(sp), want) {
		t.Errorf("indexes = %v, want %v", indexNames(sp), want)
	}
	if sp.Check("ck_unnamed_people_1") == nil || sp.Check("adult") == nil {
		t.Errorf("checks = %+v", sp.Checks)
	}

	// an anonymous UNIQUE equal to the primary key adds nothing
	mustExec(t, s, addConstraint("people", unique("id")))
	if len(space(t, s, "people").Indexes) != 3 {
		t.Errorf("indexes = %v", indexNames(space(t, s, "people")))
	}
}

func TestAlterAddConstraintErrors(t *testing.T) {
	tests := []struct {
		name string
		tc   QP.TableConstraint
		code errors.ErrorCode
	}{
		{"second primary key", pk("age"), errors.SVDB_ERROR},
		{"name taken by index", QP.TableConstraint{Kind: QP.ConstraintUnique, Name: "pk_unnamed_people_1",
			Columns: QP.Columns("age")}, errors.SVDB_SCHEMA_EXISTS},
		{"unknown column", unique("height"), errors.SVDB_NOTFOUND},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newPeople(t)
			_, err := exec(t, s, addConstraint("people", tt.tc))
			expectCode(t, err, tt.code)
		})
	}

	s := newPeople(t)
	mustExec(t, s, addConstraint("people", check("c", "age > 0")))
	_, err := exec(t, s, addConstraint("people", check("c", "age < 200")))
	expectCode(t, err, errors.SVDB_SCHEMA_EXISTS)
}

func TestAlterAddForeignKey(t *testing.T) {
	s := newPeople(t)
	mustExec(t, s, createTable("pets", []QP.ColumnDef{pkCol("id", "INTEGER"), col("owner", "INTEGER")}))
	mustExec(t, s, addConstraint("pets", foreignKey([]string{"owner"}, "people")))
	pets := space(t, s, "pets")
	if len(pets.ChildFKs) != 1 || pets.ChildFKs[0].Name != "fk_unnamed_pets_1" {
		t.Fatalf("child keys = %+v", pets.ChildFKs)
	}

	named := foreignKey([]string{"owner"}, "people")
	named.Name = "fk_unnamed_pets_1"
	_, err := exec(t, s, addConstraint("pets", named))
	expectCode(t, err, errors.SVDB_SCHEMA_EXISTS)
}

func TestAlterAddForeignKeyOnRows(t *testing.T) {
	s := newPeople(t)
	mustExec(t, s, createTable("pets", []QP.ColumnDef{pkCol("id", "INTEGER"), col("owner", "INTEGER")}))
	mustExec(t, s, insertValues("pets", QP.OnConflictDefault, row(1, 5)))

	_, err := exec(t, s, addConstraint("pets", foreignKey([]string{"owner"}, "people")))
	expectCode(t, err, errors.SVDB_ERROR)
	if msg := errors.MessageOf(err); !strings.Contains(msg, "can't contain tuples") {
		t.Errorf("message = %q", msg)
	}
	if len(space(t, s, "pets").ChildFKs) != 0 || len(space(t, s, "people").ParentFKs) != 0 {
		t.Fatal("foreign key linked despite existing rows")
	}

	// the parent insert that would settle the orphan is an ordinary insert
	mustExec(t, s, insertValues("people", QP.OnConflictDefault, row(5, "e", 40)))
	if got := rows(t, s, "people"); len(got) != 1 {
		t.Errorf("people = %v", got)
	}
}

func TestAlterAddPrimaryKeyAfterDrop(t *testing.T) {
	s := newStore()
	mustExec(t, s, createTable("t", []QP.ColumnDef{pkCol("id", "INTEGER"), notNull("a", "INTEGER"), col("b", "INTEGER")}))
	mustExec(t, s, dropConstraint("t", "pk_unnamed_t_1"))
	if space(t, s, "t").PrimaryKey() != nil {
		t.Fatal("primary key still present")
	}

	_, err := exec(t, s, addConstraint("t", pk("b")))
	expectCode(t, err, errors.SVDB_ERROR)

	mustExec(t, s, addConstraint("t", pk("a")))
	sp := space(t, s, "t")
	key := sp.PrimaryKey()
	if key == nil || len(key.Parts) != 1 || key.Parts[0].FieldNo != 1 || key.Parts[0].IsNullable {
		t.Fatalf("primary key = %+v", key)
	}
	if sp.Def.Fields[1].IsNullable() || !sp.Def.Fields[2].IsNullable() {
		t.Errorf("format nullability: a %v b %v", sp.Def.Fields[1].IsNullable(), sp.Def.Fields[2].IsNullable())
	}
	mustExec(t, s, insertValues("t", QP.OnConflictDefault, row(1, 10, nil)))
	_, err = exec(t, s, insertValues("t", QP.OnConflictDefault, row(2, nil, 5)))
	expectCode(t, err, errors.SVDB_CONSTRAINT_NOTNULL)
}

func TestAlterDropConstraint(t *testing.T) {
	s := newPeople(t)
	mustExec(t, s, createTable("pets", []QP.ColumnDef{pkCol("id", "INTEGER"), col("owner", "INTEGER")},
		foreignKey([]string{"owner"}, "people"), check("", "id > 0")))

	mustExec(t, s, dropConstraint("pets", "ck_unnamed_pets_1"))
	mustExec(t, s, dropConstraint("pets", "fk_unnamed_pets_1"))
	pets := space(t, s, "pets")
	if len(pets.Checks) != 0 || len(pets.ChildFKs) != 0 {
		t.Errorf("checks %d, keys %d", len(pets.Checks), len(pets.ChildFKs))
	}
	if len(space(t, s, "people").ParentFKs) != 0 {
		t.Errorf("parent side of the dropped key survived")
	}

	mustExec(t, s, dropConstraint("people", "unique_unnamed_people_2"))
	if len(space(t, s, "people").Indexes) != 1 {
		t.Errorf("indexes = %v", indexNames(space(t, s, "people")))
	}

	_, err := exec(t, s, dropConstraint("people", "nothing"))
	expectCode(t, err, errors.SVDB_NOTFOUND)
}

func TestAlterDropReferencedIndex(t *testing.T) {
	s := newPeople(t)
	mustExec(t, s, createTable("tags", []QP.ColumnDef{pkCol("id", "INTEGER"), col("who", "TEXT")},
		foreignKey([]string{"who"}, "people", "name")))
	_, err := exec(t, s, dropConstraint("people", "unique_unnamed_people_2"))
	expectCode(t, err, errors.SVDB_SCHEMA_DEPENDENT)

	// a second index over the same field takes over the reference
	mustExec(t, s, &QP.CreateIndexStmt{Name: "name2", Table: "people", Columns: QP.Columns("name"), Unique: true})
	mustExec(t, s, dropConstraint("people", "unique_unnamed_people_2"))
}

func TestAlterRename(t *testing.T) {
	s := newPeople(t)
	mustExec(t, s, insertValues("people", QP.OnConflictDefault, row(1, "a", 30)))
	id := space(t, s, "people").ID()
	stmt := alter("people", QP.AlterRename)
	stmt.Name = "persons"
	mustExec(t, s, stmt)

	if s.Schema().SpaceByName("people") != nil {
		t.Errorf("old name still resolves")
	}
	sp := space(t, s, "persons")
	if sp.ID() != id || len(sp.Indexes) != 2 {
		t.Errorf("renamed space = %d with %v", sp.ID(), indexNames(sp))
	}
	if len(rows(t, s, "persons")) != 1 {
		t.Errorf("rows lost in rename")
	}

	mustExec(t, s, createTable("people", []QP.ColumnDef{pkCol("id", "INTEGER")}))
	stmt = alter("persons", QP.AlterRename)
	stmt.Name = "people"
	_, err := exec(t, s, stmt)
	expectCode(t, err, errors.SVDB_SCHEMA_EXISTS)
}

func TestAlterEnableCheck(t *testing.T) {
	s := newPeople(t)
	mustExec(t, s, addConstraint("people", check("adult", "age >= 18")))

	_, err := exec(t, s, insertValues("people", QP.OnConflictDefault, row(1, "kid", 9)))
	expectCode(t, err, errors.SVDB_CONSTRAINT_CHECK)

	off := alter("people", QP.AlterEnableCheck)
	off.Name = "adult"
	mustExec(t, s, off)
	if space(t, s, "people").Check("adult").Enabled {
		t.Fatal("check still enabled")
	}
	mustExec(t, s, insertValues("people", QP.OnConflictDefault, row(1, "kid", 9)))

	on := alter("people", QP.AlterEnableCheck)
	on.Name = "adult"
	on.Enable = true
	mustExec(t, s, on)
	_, err = exec(t, s, insertValues("people", QP.OnConflictDefault, row(2, "kid2", 9)))
	expectCode(t, err, errors.SVDB_CONSTRAINT_CHECK)

	missing := alter("people", QP.AlterEnableCheck)
	missing.Name = "nothing"
	_, err = exec(t, s, missing)
	expectCode(t, err, errors.SVDB_NOTFOUND)
}

func TestAlterView(t *testing.T) {
	s := newPeople(t)
	mustExec(t, s, &QP.CreateViewStmt{Name: "v", Select: QP.MustParseSelect("SELECT id FROM people")})
	_, err := exec(t, s, addColumn("v", col("x", "TEXT")))
	expectCode(t, err, errors.SVDB_ERROR)
}

// TestConstraintNamesStable checks that generated names already in the
// catalog survive any later ALTER unchanged.
func TestConstraintNamesStable(t *testing.T) {
	s := newPeople(t)
	before := indexNames(space(t, s, "people"))
	steps := []*QP.AlterTableStmt{
		addColumn("people", col("x", "INTEGER")),
		addConstraint("people", unique("x")),
		addConstraint("people", check("", "x > 0")),
		addConstraint("people", unique("age")),
		dropConstraint("people", "unique_unnamed_people_3"),
		addConstraint("people", unique("x", "age")),
	}
	for i, stmt := range steps {
		mustExec(t, s, stmt)
		after := indexNames(space(t, s, "people"))
		for k, name := range before {
			if k >= len(after) || after[k] != name {
				t.Fatalf("step %d: names %v, earlier %v", i, after, before)
			}
		}
		seen := map[string]bool{}
		for _, name := range after {
			if seen[name] {
				t.Fatalf("step %d: duplicate name %s in %v", i, name, after)
			}
			seen[name] = true
		}
	}
}
