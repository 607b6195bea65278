package IS

import (
	"github.com/sqlvibe/svcomp/internal/QP"
)

// Ids of the system spaces. Index 0 of every space is its primary key.
const (
	SchemaSpaceID        uint32 = 272
	SpaceSpaceID         uint32 = 280
	SequenceSpaceID      uint32 = 284
	SequenceDataSpaceID  uint32 = 285
	IndexSpaceID         uint32 = 288
	TriggerSpaceID       uint32 = 328
	SpaceSequenceSpaceID uint32 = 340
	FKConstraintSpaceID  uint32 = 356
	CKConstraintSpaceID  uint32 = 364

	// MinUserSpaceID is the first id handed out to user spaces.
	MinUserSpaceID uint32 = 512
	// MaxSpaceID bounds space ids handed out by the catalog.
	MaxSpaceID uint32 = 0x7fffffff

	AdminUserID uint32 = 1
)

// Field numbers of _space rows.
const (
	SpaceFieldID = iota
	SpaceFieldOwner
	SpaceFieldName
	SpaceFieldEngine
	SpaceFieldFieldCount
	SpaceFieldOpts
	SpaceFieldFormat
)

// Field numbers of _index rows.
const (
	IndexFieldSpaceID = iota
	IndexFieldIID
	IndexFieldName
	IndexFieldType
	IndexFieldOpts
	IndexFieldParts
)

// Field numbers of _sequence rows.
const (
	SequenceFieldID = iota
	SequenceFieldOwner
	SequenceFieldName
	SequenceFieldStep
	SequenceFieldMin
	SequenceFieldMax
	SequenceFieldStart
	SequenceFieldCache
	SequenceFieldCycle
)

// Field numbers of _space_sequence rows.
const (
	SpaceSequenceFieldSpaceID = iota
	SpaceSequenceFieldSequenceID
	SpaceSequenceFieldIsGenerated
	SpaceSequenceFieldFieldNo
	SpaceSequenceFieldPath
)

// Field numbers of _fk_constraint rows.
const (
	FKFieldName = iota
	FKFieldChildID
	FKFieldParentID
	FKFieldDeferred
	FKFieldMatch
	FKFieldOnDelete
	FKFieldOnUpdate
	FKFieldChildCols
	FKFieldParentCols
)

// Field numbers of _ck_constraint rows.
const (
	CKFieldSpaceID = iota
	CKFieldName
	CKFieldEnabled
	CKFieldLanguage
	CKFieldCode
)

// Field numbers of _trigger rows.
const (
	TriggerFieldName = iota
	TriggerFieldSpaceID
	TriggerFieldOpts
)

type sysField struct {
	name string
	typ  FieldType
}

type sysIndex struct {
	iid    uint32
	name   string
	unique bool
	fields []uint32
}

type sysSpace struct {
	id      uint32
	name    string
	fields  []sysField
	indexes []sysIndex
}

var systemSpaces = []sysSpace{
	{SchemaSpaceID, "_schema",
		[]sysField{{"key", FieldString}, {"value", FieldAny}},
		[]sysIndex{{0, "primary", true, []uint32{0}}}},
	{SpaceSpaceID, "_space",
		[]sysField{{"id", FieldUnsigned}, {"owner", FieldUnsigned}, {"name", FieldString},
			{"engine", FieldString}, {"field_count", FieldUnsigned}, {"flags", FieldVarbinary},
			{"format", FieldVarbinary}},
		[]sysIndex{{0, "primary", true, []uint32{0}}, {1, "owner", false, []uint32{1}},
			{2, "name", true, []uint32{2}}}},
	{SequenceSpaceID, "_sequence",
		[]sysField{{"id", FieldUnsigned}, {"owner", FieldUnsigned}, {"name", FieldString},
			{"step", FieldInteger}, {"min", FieldInteger}, {"max", FieldInteger},
			{"start", FieldInteger}, {"cache", FieldInteger}, {"cycle", FieldBoolean}},
		[]sysIndex{{0, "primary", true, []uint32{0}}, {1, "owner", false, []uint32{1}},
			{2, "name", true, []uint32{2}}}},
	{SequenceDataSpaceID, "_sequence_data",
		[]sysField{{"id", FieldUnsigned}, {"value", FieldInteger}},
		[]sysIndex{{0, "primary", true, []uint32{0}}}},
	{IndexSpaceID, "_index",
		[]sysField{{"id", FieldUnsigned}, {"iid", FieldUnsigned}, {"name", FieldString},
			{"type", FieldString}, {"opts", FieldVarbinary}, {"parts", FieldVarbinary}},
		[]sysIndex{{0, "primary", true, []uint32{0, 1}}, {2, "name", true, []uint32{0, 2}}}},
	{TriggerSpaceID, "_trigger",
		[]sysField{{"name", FieldString}, {"space_id", FieldUnsigned}, {"opts", FieldVarbinary}},
		[]sysIndex{{0, "primary", true, []uint32{0}}, {1, "space_id", false, []uint32{1}}}},
	{SpaceSequenceSpaceID, "_space_sequence",
		[]sysField{{"id", FieldUnsigned}, {"sequence_id", FieldUnsigned}, {"is_generated", FieldBoolean},
			{"field", FieldUnsigned}, {"path", FieldString}},
		[]sysIndex{{0, "primary", true, []uint32{0}}, {1, "sequence", false, []uint32{1}}}},
	{FKConstraintSpaceID, "_fk_constraint",
		[]sysField{{"name", FieldString}, {"child_id", FieldUnsigned}, {"parent_id", FieldUnsigned},
			{"is_deferred", FieldBoolean}, {"match", FieldString}, {"on_delete", FieldString},
			{"on_update", FieldString}, {"child_cols", FieldVarbinary}, {"parent_cols", FieldVarbinary}},
		[]sysIndex{{0, "primary", true, []uint32{0, 1}}, {1, "parent_id", false, []uint32{2}}}},
	{CKConstraintSpaceID, "_ck_constraint",
		[]sysField{{"space_id", FieldUnsigned}, {"name", FieldString}, {"is_enabled", FieldBoolean},
			{"language", FieldString}, {"code", FieldString}},
		[]sysIndex{{0, "primary", true, []uint32{0, 1}}}},
}

func (ss sysSpace) build() *Space {
	sp := NewSpace(ss.name, ProvenanceLive)
	sp.Def.ID = ss.id
	sp.Def.Owner = AdminUserID
	sp.Def.Engine = "memtx"
	for _, f := range ss.fields {
		sp.Def.Fields = append(sp.Def.Fields, FieldDef{Name: f.name, Type: f.typ, NullAction: QP.OnConflictAbort})
	}
	for _, si := range ss.indexes {
		idx := &IndexDef{SpaceID: ss.id, IID: si.iid, Name: si.name, Type: IndexTree, Unique: si.unique}
		for _, fno := range si.fields {
			idx.Parts = append(idx.Parts, KeyPart{FieldNo: fno, Type: sp.Def.Fields[fno].Type})
		}
		sp.Indexes = append(sp.Indexes, idx)
	}
	return sp
}

// IsSystemSpace reports whether id belongs to the reserved range.
func IsSystemSpace(id uint32) bool {
	return id < MinUserSpaceID
}
