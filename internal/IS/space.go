package IS

import (
	"sort"

	"github.com/sqlvibe/svcomp/internal/QP"
)

// FieldDef describes one field of a space.
type FieldDef struct {
	Name string
	Type FieldType
	// NullAction is OnConflictDefault until NOT NULL or NULL is declared;
	// OnConflictNone means nullable.
	NullAction  QP.OnConflict
	DefaultText string
	Default     QP.Expr
	CollID      uint32
}

// IsNullable reports whether NULL may be stored in the field.
func (f *FieldDef) IsNullable() bool {
	return f.NullAction == QP.OnConflictNone || f.NullAction == QP.OnConflictDefault
}

// HasDefault reports whether the field carries a DEFAULT clause.
func (f *FieldDef) HasDefault() bool {
	return f.DefaultText != ""
}

type KeyPart struct {
	FieldNo    uint32
	Type       FieldType
	CollID     uint32
	Order      QP.SortOrder
	IsNullable bool
}

type IndexDef struct {
	SpaceID uint32
	IID     uint32
	Name    string
	Type    IndexType
	Unique  bool
	Parts   []KeyPart
	// OnConflict is the action declared on the PRIMARY KEY or UNIQUE clause.
	OnConflict QP.OnConflict
}

// FieldNos returns the key field numbers in key order.
func (idx *IndexDef) FieldNos() []uint32 {
	nos := make([]uint32, len(idx.Parts))
	for i, p := range idx.Parts {
		nos[i] = p.FieldNo
	}
	return nos
}

// SameParts reports whether both indexes have identical key parts, field
// by field and collation by collation.
func (idx *IndexDef) SameParts(other *IndexDef) bool {
	if len(idx.Parts) != len(other.Parts) {
		return false
	}
	for i := range idx.Parts {
		if idx.Parts[i].FieldNo != other.Parts[i].FieldNo || idx.Parts[i].CollID != other.Parts[i].CollID {
			return false
		}
	}
	return true
}

// Covers reports whether the key consists of exactly the given fields in
// any order.
func (idx *IndexDef) Covers(fields []uint32) bool {
	if len(idx.Parts) != len(fields) {
		return false
	}
	for _, p := range idx.Parts {
		found := false
		for _, f := range fields {
			if f == p.FieldNo {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (idx *IndexDef) Copy() *IndexDef {
	cp := *idx
	cp.Parts = append([]KeyPart(nil), idx.Parts...)
	return &cp
}

type SpaceOpts struct {
	IsView      bool
	IsTemporary bool
	ViewSQL     string
}

type SpaceDef struct {
	ID     uint32
	Owner  uint32
	Name   string
	Engine string
	Fields []FieldDef
	Opts   SpaceOpts
}

// Space is a space definition together with its indexes and constraints.
type Space struct {
	Def        *SpaceDef
	Indexes    []*IndexDef
	Checks     []*CheckDef
	ChildFKs   []*FKDef
	ParentFKs  []*FKDef
	Sequence   *SequenceDef
	SeqFieldNo uint32
	Triggers   []*TriggerDef
	Provenance Provenance
}

func NewSpace(name string, provenance Provenance) *Space {
	return &Space{
		Def:        &SpaceDef{Name: name},
		Provenance: provenance,
	}
}

func (s *Space) Name() string { return s.Def.Name }
func (s *Space) ID() uint32   { return s.Def.ID }
func (s *Space) IsView() bool { return s.Def.Opts.IsView }

// PrimaryKey returns index 0, or nil when none has been declared yet.
func (s *Space) PrimaryKey() *IndexDef {
	for _, idx := range s.Indexes {
		if idx.IID == 0 {
			return idx
		}
	}
	return nil
}

func (s *Space) Index(iid uint32) *IndexDef {
	for _, idx := range s.Indexes {
		if idx.IID == iid {
			return idx
		}
	}
	return nil
}

func (s *Space) IndexByName(name string) *IndexDef {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// FieldIndex returns the field number of the named column or -1.
func (s *Space) FieldIndex(name string) int {
	for i := range s.Def.Fields {
		if s.Def.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *Space) Check(name string) *CheckDef {
	for _, ck := range s.Checks {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func (s *Space) ChildFK(name string) *FKDef {
	for _, fk := range s.ChildFKs {
		if fk.Name == name {
			return fk
		}
	}
	return nil
}

// SortIndexes moves the primary key to slot 0 keeping the relative order
// of the secondary indexes.
func (s *Space) SortIndexes() {
	sort.SliceStable(s.Indexes, func(i, j int) bool {
		return s.Indexes[i].IID == 0 && s.Indexes[j].IID != 0
	})
}

// TriggersFor returns the triggers fired by event at timing.
func (s *Space) TriggersFor(event TriggerEvent, timing TriggerTiming) []*TriggerDef {
	var out []*TriggerDef
	for _, tr := range s.Triggers {
		if tr.Event == event && tr.Timing == timing {
			out = append(out, tr)
		}
	}
	return out
}

// HasTriggers reports whether any row trigger fires on event.
func (s *Space) HasTriggers(event TriggerEvent) bool {
	for _, tr := range s.Triggers {
		if tr.Event == event {
			return true
		}
	}
	return false
}

// ShallowCopy returns a copy whose field list and index, constraint and
// trigger slices may be edited without touching s. Index and constraint
// objects themselves are shared.
func (s *Space) ShallowCopy() *Space {
	def := *s.Def
	def.Fields = append([]FieldDef(nil), s.Def.Fields...)
	cp := *s
	cp.Def = &def
	cp.Indexes = append([]*IndexDef(nil), s.Indexes...)
	cp.Checks = append([]*CheckDef(nil), s.Checks...)
	cp.ChildFKs = append([]*FKDef(nil), s.ChildFKs...)
	cp.ParentFKs = append([]*FKDef(nil), s.ParentFKs...)
	cp.Triggers = append([]*TriggerDef(nil), s.Triggers...)
	return &cp
}
