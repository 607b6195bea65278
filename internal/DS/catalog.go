package DS

import (
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/log"
)

// applyCatalog keeps the schema cache in step with a write into a system
// space. old is the replaced or deleted tuple, t the new one.
func (s *Store) applyCatalog(spaceID uint32, old, t Tuple) error {
	switch spaceID {
	case IS.SpaceSpaceID:
		if t == nil {
			return s.dropSpace(old)
		}
		return s.putSpace(t, old != nil)
	case IS.IndexSpaceID, IS.SequenceSpaceID, IS.SpaceSequenceSpaceID,
		IS.FKConstraintSpaceID, IS.CKConstraintSpaceID, IS.TriggerSpaceID:
		if old != nil {
			if err := s.catalogDelete(spaceID, old); err != nil {
				return err
			}
		}
		if t != nil {
			return s.catalogInsert(spaceID, t)
		}
	}
	return nil
}

func (s *Store) catalogInsert(spaceID uint32, t Tuple) error {
	switch spaceID {
	case IS.IndexSpaceID:
		return s.createIndex(t)
	case IS.SequenceSpaceID:
		return s.createSequence(t)
	case IS.SpaceSequenceSpaceID:
		return s.linkSequence(t)
	case IS.FKConstraintSpaceID:
		return s.createFK(t)
	case IS.CKConstraintSpaceID:
		return s.createCheck(t)
	case IS.TriggerSpaceID:
		return s.createTrigger(t)
	}
	return nil
}

func (s *Store) catalogDelete(spaceID uint32, t Tuple) error {
	switch spaceID {
	case IS.IndexSpaceID:
		return s.dropIndex(t)
	case IS.SequenceSpaceID:
		return s.dropSequence(t)
	case IS.SpaceSequenceSpaceID:
		return s.unlinkSequence(t)
	case IS.FKConstraintSpaceID:
		return s.dropFK(t)
	case IS.CKConstraintSpaceID:
		return s.dropCheck(t)
	case IS.TriggerSpaceID:
		return s.dropTrigger(t)
	}
	return nil
}

func tUint(t Tuple, i int) uint32 {
	switch v := Normalize(field(t, uint32(i))).(type) {
	case int64:
		return uint32(v)
	case float64:
		return uint32(v)
	}
	return 0
}

func tInt(t Tuple, i int) int64 {
	switch v := Normalize(field(t, uint32(i))).(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func tStr(t Tuple, i int) string {
	v, _ := field(t, uint32(i)).(string)
	return v
}

func tBool(t Tuple, i int) bool {
	v, _ := field(t, uint32(i)).(bool)
	return v
}

func tBytes(t Tuple, i int) []byte {
	v, _ := field(t, uint32(i)).([]byte)
	return v
}

func catalogError(format string, args ...interface{}) error {
	return errors.Errorf(errors.SVDB_SCHEMA, errors.KindRuntime, format, args...)
}

// publish replaces a space definition in the schema cache and the store.
func (s *Store) publish(sp, prev *IS.Space) {
	s.schema.Put(sp)
	if d, ok := s.spaces[sp.ID()]; ok {
		d.def = sp
	}
	s.onUndo(func() {
		s.schema.Put(prev)
		if d, ok := s.spaces[prev.ID()]; ok {
			d.def = prev
		}
	})
}

func (s *Store) liveSpace(id uint32) (*IS.Space, *spaceData, error) {
	sp := s.schema.Space(id)
	d, ok := s.spaces[id]
	if sp == nil || !ok {
		return nil, nil, errors.Errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Space '%d' does not exist", id)
	}
	return sp, d, nil
}

func (s *Store) putSpace(t Tuple, replace bool) error {
	fields, err := IS.DecodeFormat(tBytes(t, IS.SpaceFieldFormat))
	if err != nil {
		return catalogError("Failed to create space: %v", err)
	}
	opts, err := IS.DecodeSpaceOpts(tBytes(t, IS.SpaceFieldOpts))
	if err != nil {
		return catalogError("Failed to create space: %v", err)
	}
	def := &IS.SpaceDef{
		ID:     tUint(t, IS.SpaceFieldID),
		Owner:  tUint(t, IS.SpaceFieldOwner),
		Name:   tStr(t, IS.SpaceFieldName),
		Engine: tStr(t, IS.SpaceFieldEngine),
		Fields: fields,
		Opts:   opts,
	}
	if int(tUint(t, IS.SpaceFieldFieldCount)) != len(fields) {
		return catalogError("Failed to create space '%s': field count does not match format", def.Name)
	}

	if !replace {
		sp := &IS.Space{Def: def, Provenance: IS.ProvenanceLive}
		s.schema.Put(sp)
		s.attach(sp)
		s.onUndo(func() {
			s.schema.Remove(def.ID)
			delete(s.spaces, def.ID)
		})
		log.Debug("DS: created space %s (%d)", def.Name, def.ID)
		return nil
	}

	prev, d, err := s.liveSpace(def.ID)
	if err != nil {
		return err
	}
	if len(fields) < len(prev.Def.Fields) {
		return catalogError("Can't modify space '%s': field count can not shrink", def.Name)
	}
	if err := s.padRows(d, prev, fields); err != nil {
		return err
	}
	sp := prev.ShallowCopy()
	sp.Def = def
	s.publish(sp, prev)
	return nil
}

// padRows extends stored tuples with NULLs for fields added by ALTER.
func (s *Store) padRows(d *spaceData, prev *IS.Space, fields []IS.FieldDef) error {
	added := len(fields) - len(prev.Def.Fields)
	if added == 0 {
		return nil
	}
	pk, ok := d.indexes[0]
	if !ok || len(pk.rows) == 0 {
		return nil
	}
	for i := len(prev.Def.Fields); i < len(fields); i++ {
		if !fields[i].IsNullable() {
			return catalogError("Tuple field %d (%s) required by space format is missing", i+1, fields[i].Name)
		}
	}
	for _, old := range pk.snapshot() {
		padded := append(append(Tuple(nil), old...), make(Tuple, added)...)
		s.removeRow(d, old)
		s.putRow(d, padded)
	}
	return nil
}

func (s *Store) dropSpace(t Tuple) error {
	id := tUint(t, IS.SpaceFieldID)
	prev, d, err := s.liveSpace(id)
	if err != nil {
		return err
	}
	if len(d.indexes) > 0 {
		return catalogError("Can't drop space '%s': the space has indexes", prev.Name())
	}
	if len(prev.ChildFKs) > 0 || len(prev.ParentFKs) > 0 {
		return catalogError("Can't drop space '%s': other objects depend on it", prev.Name())
	}
	s.schema.Remove(id)
	delete(s.spaces, id)
	s.onUndo(func() {
		s.schema.Put(prev)
		s.spaces[id] = d
	})
	log.Debug("DS: dropped space %s (%d)", prev.Name(), id)
	return nil
}

func (s *Store) createIndex(t Tuple) error {
	spaceID := tUint(t, IS.IndexFieldSpaceID)
	prev, d, err := s.liveSpace(spaceID)
	if err != nil {
		return err
	}
	name := tStr(t, IS.IndexFieldName)
	typ, ok := IS.ParseIndexType(tStr(t, IS.IndexFieldType))
	if !ok {
		return catalogError("Can't create or modify index '%s' in space '%s': unknown index type", name, prev.Name())
	}
	unique, onConflict, err := IS.DecodeIndexOpts(tBytes(t, IS.IndexFieldOpts))
	if err != nil {
		return catalogError("Can't create or modify index '%s' in space '%s': %v", name, prev.Name(), err)
	}
	parts, err := IS.DecodeIndexParts(tBytes(t, IS.IndexFieldParts))
	if err != nil {
		return catalogError("Can't create or modify index '%s' in space '%s': %v", name, prev.Name(), err)
	}
	def := &IS.IndexDef{
		SpaceID: spaceID, IID: tUint(t, IS.IndexFieldIID), Name: name,
		Type: typ, Unique: unique, Parts: parts, OnConflict: onConflict,
	}
	if len(parts) == 0 {
		return catalogError("Can't create or modify index '%s' in space '%s': part count must be positive", name, prev.Name())
	}
	for _, p := range parts {
		if int(p.FieldNo) >= len(prev.Def.Fields) {
			return catalogError("Can't create or modify index '%s' in space '%s': field %d is out of range",
				name, prev.Name(), p.FieldNo+1)
		}
	}

	pk := d.indexes[0]
	if def.IID == 0 {
		if !def.Unique {
			return catalogError("Can't create or modify index '%s' in space '%s': primary key must be unique", name, prev.Name())
		}
		pk = nil
	} else if pk == nil {
		return catalogError("Can't create or modify index '%s' in space '%s': can not add a secondary key before primary",
			name, prev.Name())
	}

	var ix *index
	if pk == nil {
		ix = newIndex(def, def)
	} else {
		ix = newIndex(def, pk.def)
		for _, row := range pk.rows {
			if ix.conflict(row) != nil {
				return duplicateError(d, ix)
			}
			ix.insert(row)
		}
	}
	d.indexes[def.IID] = ix
	s.onUndo(func() { delete(d.indexes, def.IID) })

	sp := prev.ShallowCopy()
	sp.Indexes = append(sp.Indexes, def)
	sp.SortIndexes()
	s.publish(sp, prev)
	return nil
}

func (s *Store) dropIndex(t Tuple) error {
	spaceID := tUint(t, IS.IndexFieldSpaceID)
	iid := tUint(t, IS.IndexFieldIID)
	prev, d, err := s.liveSpace(spaceID)
	if err != nil {
		return err
	}
	ix, ok := d.indexes[iid]
	if !ok {
		return catalogError("No index #%d is defined in space '%s'", iid, prev.Name())
	}
	if iid == 0 && len(d.indexes) > 1 {
		return catalogError("Can't drop primary key in space '%s' while secondary keys exist", prev.Name())
	}
	delete(d.indexes, iid)
	s.onUndo(func() { d.indexes[iid] = ix })

	sp := prev.ShallowCopy()
	sp.Indexes = sp.Indexes[:0]
	for _, def := range prev.Indexes {
		if def.IID != iid {
			sp.Indexes = append(sp.Indexes, def)
		}
	}
	s.publish(sp, prev)
	return nil
}

func (s *Store) createSequence(t Tuple) error {
	seq := &IS.SequenceDef{
		ID:    tUint(t, IS.SequenceFieldID),
		Owner: tUint(t, IS.SequenceFieldOwner),
		Name:  tStr(t, IS.SequenceFieldName),
		Step:  tInt(t, IS.SequenceFieldStep),
		Min:   tInt(t, IS.SequenceFieldMin),
		Max:   tInt(t, IS.SequenceFieldMax),
		Start: tInt(t, IS.SequenceFieldStart),
		Cache: tInt(t, IS.SequenceFieldCache),
		Cycle: tBool(t, IS.SequenceFieldCycle),
	}
	if seq.Step == 0 || seq.Min > seq.Max || seq.Start < seq.Min || seq.Start > seq.Max {
		return catalogError("Failed to create sequence '%s': invalid bounds", seq.Name)
	}
	s.schema.PutSequence(seq)
	s.onUndo(func() { s.schema.RemoveSequence(seq.ID) })
	return nil
}

func (s *Store) dropSequence(t Tuple) error {
	id := tUint(t, IS.SequenceFieldID)
	seq := s.schema.Sequence(id)
	if seq == nil {
		return catalogError("Sequence '%d' does not exist", id)
	}
	for _, sp := range s.schema.Spaces() {
		if sp.Sequence != nil && sp.Sequence.ID == id {
			return catalogError("Can't drop sequence '%s': the sequence is in use", seq.Name)
		}
	}
	s.schema.RemoveSequence(id)
	v, started := s.seqValues[id]
	delete(s.seqValues, id)
	s.onUndo(func() {
		s.schema.PutSequence(seq)
		if started {
			s.seqValues[id] = v
		}
	})
	return nil
}

func (s *Store) linkSequence(t Tuple) error {
	prev, _, err := s.liveSpace(tUint(t, IS.SpaceSequenceFieldSpaceID))
	if err != nil {
		return err
	}
	seq := s.schema.Sequence(tUint(t, IS.SpaceSequenceFieldSequenceID))
	if seq == nil {
		return catalogError("Sequence '%d' does not exist", tUint(t, IS.SpaceSequenceFieldSequenceID))
	}
	fieldNo := tUint(t, IS.SpaceSequenceFieldFieldNo)
	if int(fieldNo) >= len(prev.Def.Fields) {
		return catalogError("Sequence field %d is out of range in space '%s'", fieldNo+1, prev.Name())
	}
	sp := prev.ShallowCopy()
	sp.Sequence = seq
	sp.SeqFieldNo = fieldNo
	s.publish(sp, prev)
	return nil
}

func (s *Store) unlinkSequence(t Tuple) error {
	prev, _, err := s.liveSpace(tUint(t, IS.SpaceSequenceFieldSpaceID))
	if err != nil {
		return err
	}
	sp := prev.ShallowCopy()
	sp.Sequence = nil
	sp.SeqFieldNo = 0
	s.publish(sp, prev)
	return nil
}

func (s *Store) createFK(t Tuple) error {
	name := tStr(t, IS.FKFieldName)
	child, _, err := s.liveSpace(tUint(t, IS.FKFieldChildID))
	if err != nil {
		return err
	}
	parent, _, err := s.liveSpace(tUint(t, IS.FKFieldParentID))
	if err != nil {
		return err
	}
	childCols, err := IS.DecodeFieldList(tBytes(t, IS.FKFieldChildCols))
	if err != nil {
		return catalogError("Failed to create foreign key constraint '%s': %v", name, err)
	}
	parentCols, err := IS.DecodeFieldList(tBytes(t, IS.FKFieldParentCols))
	if err != nil {
		return catalogError("Failed to create foreign key constraint '%s': %v", name, err)
	}
	if len(childCols) == 0 || len(childCols) != len(parentCols) {
		return catalogError("Failed to create foreign key constraint '%s': number of referenced columns not match", name)
	}
	fk := &IS.FKDef{
		Name:     name,
		ChildID:  IS.Known(child.ID()),
		ParentID: IS.Known(parent.ID()),
		Match:    QP.FKMatch(tStr(t, IS.FKFieldMatch)),
		OnDelete: QP.FKAction(tStr(t, IS.FKFieldOnDelete)),
		OnUpdate: QP.FKAction(tStr(t, IS.FKFieldOnUpdate)),
		Deferred: tBool(t, IS.FKFieldDeferred),
		SelfRef:  child.ID() == parent.ID(),
	}
	for i := range childCols {
		if int(childCols[i]) >= len(child.Def.Fields) || int(parentCols[i]) >= len(parent.Def.Fields) {
			return catalogError("Failed to create foreign key constraint '%s': foreign key refers to nonexistent field", name)
		}
		fk.Links = append(fk.Links, IS.FKLink{ChildField: childCols[i], ParentField: parentCols[i]})
	}
	covered := false
	for _, idx := range parent.Indexes {
		if idx.Unique && idx.Type == IS.IndexTree && idx.Covers(parentCols) {
			covered = true
			break
		}
	}
	if !covered {
		return catalogError("Failed to create foreign key constraint '%s': referenced fields don't compose unique index", name)
	}
	if s.Len(child.ID()) > 0 {
		return catalogError("Failed to create foreign key constraint '%s': referencing space can't contain tuples", name)
	}

	childCopy := child.ShallowCopy()
	childCopy.ChildFKs = append(childCopy.ChildFKs, fk)
	if fk.SelfRef {
		childCopy.ParentFKs = append(childCopy.ParentFKs, fk)
		s.publish(childCopy, child)
		return nil
	}
	parentCopy := parent.ShallowCopy()
	parentCopy.ParentFKs = append(parentCopy.ParentFKs, fk)
	s.publish(childCopy, child)
	s.publish(parentCopy, parent)
	return nil
}

func withoutFK(list []*IS.FKDef, fk *IS.FKDef) []*IS.FKDef {
	out := make([]*IS.FKDef, 0, len(list))
	for _, x := range list {
		if x != fk {
			out = append(out, x)
		}
	}
	return out
}

func (s *Store) dropFK(t Tuple) error {
	name := tStr(t, IS.FKFieldName)
	child, _, err := s.liveSpace(tUint(t, IS.FKFieldChildID))
	if err != nil {
		return err
	}
	fk := child.ChildFK(name)
	if fk == nil {
		return catalogError("Constraint '%s' does not exist in space '%s'", name, child.Name())
	}
	childCopy := child.ShallowCopy()
	childCopy.ChildFKs = withoutFK(childCopy.ChildFKs, fk)
	if fk.SelfRef {
		childCopy.ParentFKs = withoutFK(childCopy.ParentFKs, fk)
		s.publish(childCopy, child)
		return nil
	}
	s.publish(childCopy, child)
	if parent := s.schema.Space(fk.ParentID.ID()); parent != nil {
		parentCopy := parent.ShallowCopy()
		parentCopy.ParentFKs = withoutFK(parentCopy.ParentFKs, fk)
		s.publish(parentCopy, parent)
	}
	return nil
}

func (s *Store) createCheck(t Tuple) error {
	prev, _, err := s.liveSpace(tUint(t, IS.CKFieldSpaceID))
	if err != nil {
		return err
	}
	name := tStr(t, IS.CKFieldName)
	lang := tStr(t, IS.CKFieldLanguage)
	if lang != IS.CheckLanguageSQL {
		return catalogError("Failed to create check constraint '%s': unsupported language '%s'", name, lang)
	}
	code := tStr(t, IS.CKFieldCode)
	expr, err := QP.ParseExpr(code)
	if err != nil {
		return catalogError("Failed to create check constraint '%s': %v", name, err)
	}
	ck := &IS.CheckDef{
		SpaceID:  IS.Known(prev.ID()),
		Name:     name,
		Language: lang,
		Code:     code,
		Enabled:  tBool(t, IS.CKFieldEnabled),
		Expr:     expr,
	}
	sp := prev.ShallowCopy()
	sp.Checks = append(sp.Checks, ck)
	s.publish(sp, prev)
	return nil
}

func (s *Store) dropCheck(t Tuple) error {
	prev, _, err := s.liveSpace(tUint(t, IS.CKFieldSpaceID))
	if err != nil {
		return err
	}
	name := tStr(t, IS.CKFieldName)
	sp := prev.ShallowCopy()
	sp.Checks = sp.Checks[:0]
	for _, ck := range prev.Checks {
		if ck.Name != name {
			sp.Checks = append(sp.Checks, ck)
		}
	}
	s.publish(sp, prev)
	return nil
}

func (s *Store) createTrigger(t Tuple) error {
	prev, _, err := s.liveSpace(tUint(t, IS.TriggerFieldSpaceID))
	if err != nil {
		return err
	}
	event, timing, err := IS.DecodeTriggerOpts(tBytes(t, IS.TriggerFieldOpts))
	if err != nil {
		return catalogError("Failed to create trigger '%s': %v", tStr(t, IS.TriggerFieldName), err)
	}
	sp := prev.ShallowCopy()
	sp.Triggers = append(sp.Triggers, &IS.TriggerDef{
		Name:    tStr(t, IS.TriggerFieldName),
		SpaceID: prev.ID(),
		Event:   event,
		Timing:  timing,
	})
	s.publish(sp, prev)
	return nil
}

func (s *Store) dropTrigger(t Tuple) error {
	prev, _, err := s.liveSpace(tUint(t, IS.TriggerFieldSpaceID))
	if err != nil {
		return err
	}
	name := tStr(t, IS.TriggerFieldName)
	sp := prev.ShallowCopy()
	sp.Triggers = sp.Triggers[:0]
	for _, tr := range prev.Triggers {
		if tr.Name != name {
			sp.Triggers = append(sp.Triggers, tr)
		}
	}
	s.publish(sp, prev)
	return nil
}
