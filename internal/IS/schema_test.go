package IS

import (
	"testing"

	"github.com/sqlvibe/svcomp/internal/QP"
)

func TestSchemaBootstrap(t *testing.T) {
	s := NewSchema()

	tests := []struct {
		name string
		id   uint32
	}{
		{"_schema", SchemaSpaceID},
		{"_space", SpaceSpaceID},
		{"_index", IndexSpaceID},
		{"_sequence", SequenceSpaceID},
		{"_sequence_data", SequenceDataSpaceID},
		{"_trigger", TriggerSpaceID},
		{"_space_sequence", SpaceSequenceSpaceID},
		{"_fk_constraint", FKConstraintSpaceID},
		{"_ck_constraint", CKConstraintSpaceID},
	}
	for _, tt := range tests {
		sp := s.SpaceByName(tt.name)
		if sp == nil {
			t.Errorf("system space %s missing", tt.name)
			continue
		}
		if sp.ID() != tt.id {
			t.Errorf("%s: expected id %d, got %d", tt.name, tt.id, sp.ID())
		}
		if pk := sp.PrimaryKey(); pk == nil || sp.Indexes[0] != pk {
			t.Errorf("%s: primary key must be index 0", tt.name)
		}
	}

	if idx := s.Space(SpaceSpaceID).Index(2); idx == nil || idx.Name != "name" || !idx.Unique {
		t.Errorf("_space must have a unique name index with iid 2")
	}
	if s.LastSpaceID() >= MinUserSpaceID {
		t.Errorf("system ids must stay below %d", MinUserSpaceID)
	}
}

func TestSchemaPutRename(t *testing.T) {
	s := NewSchema()
	v0 := s.Version()

	sp := NewSpace("t1", ProvenanceLive)
	sp.Def.ID = 512
	s.Put(sp)
	if s.Version() == v0 {
		t.Error("Put must bump the version")
	}
	if s.SpaceByName("t1") != sp || s.Space(512) != sp {
		t.Fatal("space not published")
	}

	renamed := sp.ShallowCopy()
	renamed.Def.Name = "t2"
	s.Put(renamed)
	if s.SpaceByName("t1") != nil {
		t.Error("old name must be gone after rename")
	}
	if s.SpaceByName("t2") != renamed {
		t.Error("new name must resolve")
	}

	s.Remove(512)
	if s.Space(512) != nil || s.SpaceByName("t2") != nil {
		t.Error("space must be removed")
	}
}

func TestSchemaSequences(t *testing.T) {
	s := NewSchema()
	if s.LastSequenceID() != 0 {
		t.Errorf("expected no sequences")
	}
	seq := NewSequence("t")
	seq.ID = 1
	s.PutSequence(seq)
	if s.SequenceByName("t") != seq || s.Sequence(1) != seq {
		t.Error("sequence not published")
	}
	if s.LastSequenceID() != 1 {
		t.Errorf("expected last sequence id 1, got %d", s.LastSequenceID())
	}
	s.RemoveSequence(1)
	if s.Sequence(1) != nil {
		t.Error("sequence must be removed")
	}
}

func TestSpaceShallowCopy(t *testing.T) {
	sp := NewSpace("t", ProvenanceLive)
	sp.Def.Fields = []FieldDef{{Name: "a", Type: FieldInteger}}
	sp.Indexes = []*IndexDef{{IID: 0, Name: "pk"}}

	cp := sp.ShallowCopy()
	cp.Def.Fields = append(cp.Def.Fields, FieldDef{Name: "b"})
	cp.Indexes = append(cp.Indexes, &IndexDef{IID: 1, Name: "b"})
	cp.Def.Fields[0].Name = "z"

	if len(sp.Def.Fields) != 1 || sp.Def.Fields[0].Name != "a" {
		t.Error("field edits on the copy leaked into the original")
	}
	if len(sp.Indexes) != 1 {
		t.Error("index edits on the copy leaked into the original")
	}
	if cp.Indexes[0] != sp.Indexes[0] {
		t.Error("index objects must be shared")
	}
}

func TestSpaceSortIndexes(t *testing.T) {
	sp := NewSpace("t", NewUnderConstruction)
	sp.Indexes = []*IndexDef{{IID: 1, Name: "u1"}, {IID: 2, Name: "u2"}, {IID: 0, Name: "pk"}}
	sp.SortIndexes()
	names := []string{sp.Indexes[0].Name, sp.Indexes[1].Name, sp.Indexes[2].Name}
	want := []string{"pk", "u1", "u2"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestFieldNullability(t *testing.T) {
	tests := []struct {
		action   QP.OnConflict
		nullable bool
	}{
		{QP.OnConflictDefault, true},
		{QP.OnConflictNone, true},
		{QP.OnConflictAbort, false},
		{QP.OnConflictReplace, false},
	}
	for _, tt := range tests {
		f := FieldDef{NullAction: tt.action}
		if f.IsNullable() != tt.nullable {
			t.Errorf("%s: expected nullable=%v", tt.action, tt.nullable)
		}
	}
}

func TestSpaceRef(t *testing.T) {
	k := Known(600)
	if k.IsPending() || k.ID() != 600 {
		t.Errorf("unexpected known ref %v", k)
	}
	p := PendingAt(7)
	if !p.IsPending() || p.Reg() != 7 || p.String() != "r[7]" {
		t.Errorf("unexpected pending ref %v", p)
	}
	defer func() {
		if recover() == nil {
			t.Error("ID on a pending reference must panic")
		}
	}()
	_ = p.ID()
}

func TestParseFieldType(t *testing.T) {
	tests := map[string]FieldType{
		"INT":         FieldInteger,
		"integer":     FieldInteger,
		"VARCHAR(20)": FieldString,
		"text":        FieldString,
		"REAL":        FieldDouble,
		"boolean":     FieldBoolean,
		"":            FieldScalar,
		"unsigned":    FieldUnsigned,
	}
	for decl, want := range tests {
		got, ok := ParseFieldType(decl)
		if !ok || got != want {
			t.Errorf("ParseFieldType(%q) = %v, %v; want %v", decl, got, ok, want)
		}
	}
	if _, ok := ParseFieldType("GEOMETRY"); ok {
		t.Error("unknown type must be rejected")
	}
}

func TestLookupCollation(t *testing.T) {
	if id, ok := LookupCollation("UNICODE_CI"); !ok || id != CollUnicodeCI {
		t.Errorf("unexpected lookup %d %v", id, ok)
	}
	if _, ok := LookupCollation("klingon"); ok {
		t.Error("unknown collation must fail")
	}
	if CollationName(CollBinary) != "binary" {
		t.Error("unexpected collation name")
	}
}
