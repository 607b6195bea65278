package DS

import (
	"testing"

	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
)

func spaceRow(id uint32, name string, fields []IS.FieldDef) Tuple {
	return Tuple{int64(id), int64(IS.AdminUserID), name, "memtx", int64(len(fields)),
		IS.EncodeSpaceOpts(IS.SpaceOpts{}), IS.EncodeFormat(fields)}
}

func indexRow(spaceID, iid uint32, name string, unique bool, parts ...IS.KeyPart) Tuple {
	return Tuple{int64(spaceID), int64(iid), name, "TREE",
		IS.EncodeIndexOpts(unique, QP.OnConflictDefault), IS.EncodeIndexParts(parts)}
}

// newTestStore creates space t(id integer primary key, name string unique
// nullable, score scalar nullable) with id 512.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(IS.NewSchema())
	fields := []IS.FieldDef{
		{Name: "id", Type: IS.FieldInteger, NullAction: QP.OnConflictAbort},
		{Name: "name", Type: IS.FieldString, NullAction: QP.OnConflictNone},
		{Name: "score", Type: IS.FieldScalar, NullAction: QP.OnConflictNone},
	}
	s.Begin()
	mustInsert(t, s, IS.SpaceSpaceID, spaceRow(512, "t", fields))
	mustInsert(t, s, IS.IndexSpaceID, indexRow(512, 0, "pk_unnamed_t_1", true,
		IS.KeyPart{FieldNo: 0, Type: IS.FieldInteger}))
	mustInsert(t, s, IS.IndexSpaceID, indexRow(512, 1, "unique_unnamed_t_2", true,
		IS.KeyPart{FieldNo: 1, Type: IS.FieldString, IsNullable: true}))
	s.Commit()
	return s
}

func mustInsert(t *testing.T, s *Store, spaceID uint32, row Tuple) {
	t.Helper()
	if _, err := s.Insert(spaceID, row, InsertAbort); err != nil {
		t.Fatalf("Insert into %d: %v", spaceID, err)
	}
}

func TestCatalogCreatesSpace(t *testing.T) {
	s := newTestStore(t)
	sp := s.Schema().SpaceByName("t")
	if sp == nil {
		t.Fatalf("space t not in schema")
	}
	if sp.ID() != 512 || len(sp.Indexes) != 2 {
		t.Errorf("got id %d with %d indexes", sp.ID(), len(sp.Indexes))
	}
	if id, err := s.NextSpaceID(); err != nil || id != 513 {
		t.Errorf("NextSpaceID = %d, %v", id, err)
	}
}

func TestInsertModes(t *testing.T) {
	s := newTestStore(t)
	s.Begin()
	mustInsert(t, s, 512, Tuple{int64(1), "a", nil})

	_, err := s.Insert(512, Tuple{int64(1), "b", nil}, InsertAbort)
	if !errors.IsErrorCode(err, errors.SVDB_CONSTRAINT_PRIMARYKEY) {
		t.Errorf("duplicate pk: got %v", err)
	}
	out, err := s.Insert(512, Tuple{int64(1), "b", nil}, InsertIgnore)
	if err != nil || out != Skipped {
		t.Errorf("ignore: got %v, %v", out, err)
	}
	out, err = s.Insert(512, Tuple{int64(1), "b", nil}, InsertReplace)
	if err != nil || out != Replaced {
		t.Errorf("replace: got %v, %v", out, err)
	}
	row, _ := s.Get(512, 0, []interface{}{1})
	if row == nil || row[1] != "b" {
		t.Errorf("row after replace = %v", row)
	}

	_, err = s.Insert(512, Tuple{int64(2), "b", nil}, InsertReplace)
	if !errors.IsErrorCode(err, errors.SVDB_CONSTRAINT_UNIQUE) {
		t.Errorf("secondary conflict: got %v", err)
	}
	if s.Len(512) != 1 {
		t.Errorf("Len = %d, want 1", s.Len(512))
	}
	s.Commit()
}

func TestUniqueAllowsNulls(t *testing.T) {
	s := newTestStore(t)
	s.Begin()
	mustInsert(t, s, 512, Tuple{int64(1), nil, nil})
	mustInsert(t, s, 512, Tuple{int64(2), nil, nil})
	s.Commit()
	if s.Len(512) != 2 {
		t.Errorf("Len = %d, want 2", s.Len(512))
	}
}

func TestFieldCountChecked(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Insert(512, Tuple{int64(1)}, InsertAbort); err == nil {
		t.Errorf("short tuple accepted")
	}
}

func TestRollback(t *testing.T) {
	s := newTestStore(t)
	s.Begin()
	mustInsert(t, s, 512, Tuple{int64(1), "a", nil})
	s.Commit()

	s.Begin()
	mustInsert(t, s, 512, Tuple{int64(2), "b", nil})
	if _, err := s.Delete(512, 0, []interface{}{int64(1)}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	fields := []IS.FieldDef{{Name: "x", Type: IS.FieldInteger, NullAction: QP.OnConflictAbort}}
	mustInsert(t, s, IS.SpaceSpaceID, spaceRow(513, "u", fields))
	s.Rollback()

	rows, _ := s.Select(512, 0, nil)
	if len(rows) != 1 || rows[0][0] != int64(1) {
		t.Errorf("rows after rollback = %v", rows)
	}
	if s.Schema().SpaceByName("u") != nil {
		t.Errorf("space u survived rollback")
	}
}

func TestSelectOrder(t *testing.T) {
	s := newTestStore(t)
	s.Begin()
	for _, id := range []int64{3, 1, 2} {
		mustInsert(t, s, 512, Tuple{id, nil, nil})
	}
	s.Commit()
	rows, err := s.Select(512, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, row := range rows {
		if row[0] != int64(i+1) {
			t.Errorf("row %d = %v", i, row)
		}
	}
}

func TestEphemeral(t *testing.T) {
	s := NewStore(IS.NewSchema())
	id := s.NewEphemeral(2, []QP.SortOrder{QP.SortDesc})
	s.Begin()
	for _, v := range []int64{1, 3, 2} {
		if _, err := s.Insert(id, Tuple{v, "x"}, InsertAbort); err != nil {
			t.Fatal(err)
		}
	}
	s.Commit()
	rows, _ := s.Select(id, 0, nil)
	if len(rows) != 3 || rows[0][0] != int64(3) || rows[2][0] != int64(1) {
		t.Errorf("descending scan = %v", rows)
	}
	n1, _ := s.NextEphemeralRowID(id)
	n2, _ := s.NextEphemeralRowID(id)
	if n1 != 1 || n2 != 2 {
		t.Errorf("row ids %d, %d", n1, n2)
	}
	s.DropEphemeral(id)
	if _, err := s.Select(id, 0, nil); err == nil {
		t.Errorf("dropped ephemeral still readable")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b interface{}
		coll uint32
		want int
	}{
		{nil, int64(1), 0, -1},
		{int64(1), 1.5, 0, -1},
		{int64(2), 2.0, 0, 0},
		{"a", int64(9), 0, 1},
		{"ABC", "abc", IS.CollUnicodeCI, 0},
		{"ABC", "abc", 0, -1},
		{true, int64(0), 0, -1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b, tt.coll); got != tt.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
