package DS

import (
	"fmt"

	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
	"github.com/sqlvibe/svcomp/internal/log"
)

// InsertMode selects what Insert does when the primary key is taken.
type InsertMode int

const (
	InsertAbort InsertMode = iota
	InsertIgnore
	InsertReplace
)

// ephemeralBase is the first id given to ephemeral spaces; it lies above
// every id the catalog can assign.
const ephemeralBase uint32 = IS.MaxSpaceID + 1

type spaceData struct {
	def     *IS.Space
	indexes map[uint32]*index
	nextID  int64
}

// Store is an in-memory tuple store with ordered indexes. Writes into the
// system spaces update the schema cache, so running a compiled DDL program
// against the store changes the schema the compiler sees next.
//
// A Store is not safe for concurrent use; callers serialize statements.
type Store struct {
	schema        *IS.Schema
	spaces        map[uint32]*spaceData
	seqValues     map[uint32]int64
	undo          []func()
	nextEphemeral uint32
}

func NewStore(schema *IS.Schema) *Store {
	s := &Store{
		schema:        schema,
		spaces:        make(map[uint32]*spaceData),
		seqValues:     make(map[uint32]int64),
		nextEphemeral: ephemeralBase,
	}
	for _, sp := range schema.Spaces() {
		s.attach(sp)
	}
	return s
}

func (s *Store) Schema() *IS.Schema {
	return s.schema
}

func (s *Store) attach(sp *IS.Space) *spaceData {
	d := &spaceData{def: sp, indexes: make(map[uint32]*index)}
	pk := sp.PrimaryKey()
	for _, def := range sp.Indexes {
		d.indexes[def.IID] = newIndex(def, pk)
	}
	s.spaces[sp.ID()] = d
	return d
}

func (s *Store) space(id uint32) (*spaceData, error) {
	d, ok := s.spaces[id]
	if !ok {
		return nil, errors.Errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Space '%d' does not exist", id)
	}
	return d, nil
}

func (d *spaceData) primary() (*index, error) {
	ix, ok := d.indexes[0]
	if !ok {
		return nil, errors.Errorf(errors.SVDB_ERROR, errors.KindReference,
			"No index #0 is defined in space '%s'", d.def.Name())
	}
	return ix, nil
}

func (d *spaceData) index(iid uint32) (*index, error) {
	ix, ok := d.indexes[iid]
	if !ok {
		return nil, errors.Errorf(errors.SVDB_ERROR, errors.KindReference,
			"No index #%d is defined in space '%s'", iid, d.def.Name())
	}
	return ix, nil
}

// Begin starts statement-level undo logging.
func (s *Store) Begin() {
	s.undo = s.undo[:0]
}

// Commit keeps every change made since Begin.
func (s *Store) Commit() {
	s.undo = s.undo[:0]
}

// Rollback reverts every change made since Begin.
func (s *Store) Rollback() {
	s.rollbackTo(0)
}

func (s *Store) rollbackTo(mark int) {
	for i := len(s.undo) - 1; i >= mark; i-- {
		s.undo[i]()
	}
	s.undo = s.undo[:mark]
}

func (s *Store) onUndo(fn func()) {
	s.undo = append(s.undo, fn)
}

func duplicateError(d *spaceData, ix *index) error {
	code := errors.SVDB_CONSTRAINT_UNIQUE
	if ix.def.IID == 0 {
		code = errors.SVDB_CONSTRAINT_PRIMARYKEY
	}
	return errors.Errorf(code, errors.KindRuntime,
		"Duplicate key exists in unique index \"%s\" in space \"%s\"", ix.def.Name, d.def.Name())
}

func (s *Store) putRow(d *spaceData, t Tuple) {
	for _, ix := range d.indexes {
		ix.insert(t)
	}
	s.onUndo(func() {
		for _, ix := range d.indexes {
			ix.remove(t)
		}
	})
}

func (s *Store) removeRow(d *spaceData, t Tuple) {
	for _, ix := range d.indexes {
		ix.remove(t)
	}
	s.onUndo(func() {
		for _, ix := range d.indexes {
			ix.insert(t)
		}
	})
}

// InsertOutcome tells what Insert did with the tuple.
type InsertOutcome int

const (
	Skipped InsertOutcome = iota
	Inserted
	Replaced
)

// Insert writes t into the space. Under InsertIgnore a conflicting tuple
// is Skipped; under InsertReplace a tuple with the same primary key is
// Replaced. Conflicts in secondary unique indexes are errors unless
// ignored.
func (s *Store) Insert(spaceID uint32, t Tuple, mode InsertMode) (InsertOutcome, error) {
	d, err := s.space(spaceID)
	if err != nil {
		return Skipped, err
	}
	pk, err := d.primary()
	if err != nil {
		return Skipped, err
	}
	t = CopyTuple(t)
	if spaceID < ephemeralBase && len(t) != len(d.def.Def.Fields) {
		return Skipped, errors.Errorf(errors.SVDB_CONSTRAINT, errors.KindRuntime,
			"Tuple field count %d does not match space '%s' field count %d",
			len(t), d.def.Name(), len(d.def.Def.Fields))
	}

	mark := len(s.undo)
	if err := s.applySequence(d, t); err != nil {
		return Skipped, err
	}

	var old Tuple
	if prev := pk.conflict(t); prev != nil {
		switch mode {
		case InsertIgnore:
			s.rollbackTo(mark)
			return Skipped, nil
		case InsertReplace:
			old = prev
		default:
			s.rollbackTo(mark)
			return Skipped, duplicateError(d, pk)
		}
	}
	for _, ix := range d.indexes {
		if ix == pk {
			continue
		}
		if prev := ix.conflict(t); prev != nil && !sameRow(pk, prev, old) {
			s.rollbackTo(mark)
			if mode == InsertIgnore {
				return Skipped, nil
			}
			return Skipped, duplicateError(d, ix)
		}
	}

	if old != nil {
		s.removeRow(d, old)
	}
	s.putRow(d, t)
	if IS.IsSystemSpace(spaceID) {
		if err := s.applyCatalog(spaceID, old, t); err != nil {
			s.rollbackTo(mark)
			return Skipped, err
		}
	}
	if old != nil {
		return Replaced, nil
	}
	return Inserted, nil
}

func sameRow(pk *index, a, b Tuple) bool {
	return a != nil && b != nil && pk.cmpTuples(a, b) == 0
}

func (s *Store) applySequence(d *spaceData, t Tuple) error {
	seq := d.def.Sequence
	if seq == nil || int(d.def.SeqFieldNo) >= len(t) {
		return nil
	}
	no := d.def.SeqFieldNo
	cur, started := s.seqValues[seq.ID]
	if t[no] == nil {
		next := seq.Start
		if started {
			next = cur + seq.Step
		}
		if next > seq.Max || next < seq.Min {
			if !seq.Cycle {
				return errors.Errorf(errors.SVDB_RANGE, errors.KindRuntime,
					"Sequence '%s' has overflowed", seq.Name)
			}
			next = seq.Min
		}
		t[no] = next
		s.setSequence(seq.ID, next, cur, started)
		return nil
	}
	if v, ok := t[no].(int64); ok && (!started || v > cur) {
		s.setSequence(seq.ID, v, cur, started)
	}
	return nil
}

func (s *Store) setSequence(id uint32, v, prev int64, started bool) {
	s.seqValues[id] = v
	s.onUndo(func() {
		if started {
			s.seqValues[id] = prev
		} else {
			delete(s.seqValues, id)
		}
	})
}

// SequenceValue returns the last value generated by a sequence.
func (s *Store) SequenceValue(id uint32) (int64, bool) {
	v, ok := s.seqValues[id]
	return v, ok
}

// Delete removes the tuple whose key in index iid equals key and returns
// it, or nil when there is none.
func (s *Store) Delete(spaceID, iid uint32, key []interface{}) (Tuple, error) {
	d, err := s.space(spaceID)
	if err != nil {
		return nil, err
	}
	ix, err := d.index(iid)
	if err != nil {
		return nil, err
	}
	m := ix.match(normalizeKey(key))
	if len(m) == 0 {
		return nil, nil
	}
	t := m[0]
	mark := len(s.undo)
	s.removeRow(d, t)
	if IS.IsSystemSpace(spaceID) {
		if err := s.applyCatalog(spaceID, t, nil); err != nil {
			s.rollbackTo(mark)
			return nil, err
		}
	}
	return t, nil
}

func normalizeKey(key []interface{}) []interface{} {
	out := make([]interface{}, len(key))
	for i, v := range key {
		out[i] = Normalize(v)
	}
	return out
}

// Get returns the first tuple whose key in index iid starts with key.
func (s *Store) Get(spaceID, iid uint32, key []interface{}) (Tuple, error) {
	rows, err := s.Select(spaceID, iid, key)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Select returns a snapshot of the tuples whose key in index iid starts
// with key, in index order. An empty key selects everything.
func (s *Store) Select(spaceID, iid uint32, key []interface{}) ([]Tuple, error) {
	d, err := s.space(spaceID)
	if err != nil {
		return nil, err
	}
	ix, err := d.index(iid)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return ix.snapshot(), nil
	}
	return append([]Tuple(nil), ix.match(normalizeKey(key))...), nil
}

// Len returns the number of tuples in a space.
func (s *Store) Len(spaceID uint32) int {
	d, ok := s.spaces[spaceID]
	if !ok {
		return 0
	}
	if pk, ok := d.indexes[0]; ok {
		return len(pk.rows)
	}
	return 0
}

// NewEphemeral creates a scratch space of fieldCount fields whose primary
// key covers every field; orders gives the sort order of leading parts.
func (s *Store) NewEphemeral(fieldCount int, orders []QP.SortOrder) uint32 {
	id := s.nextEphemeral
	s.nextEphemeral++
	sp := IS.NewSpace(fmt.Sprintf("ephemeral_%d", id-ephemeralBase), IS.EphemeralScratch)
	sp.Def.ID = id
	sp.Def.Engine = "memtx"
	pk := &IS.IndexDef{SpaceID: id, IID: 0, Name: "pk", Type: IS.IndexTree, Unique: true}
	for i := 0; i < fieldCount; i++ {
		sp.Def.Fields = append(sp.Def.Fields, IS.FieldDef{
			Name: fmt.Sprintf("c%d", i), Type: IS.FieldScalar, NullAction: QP.OnConflictNone,
		})
		part := IS.KeyPart{FieldNo: uint32(i), Type: IS.FieldScalar, IsNullable: true}
		if i < len(orders) {
			part.Order = orders[i]
		}
		pk.Parts = append(pk.Parts, part)
	}
	sp.Indexes = []*IS.IndexDef{pk}
	s.attach(sp)
	log.Debug("DS: ephemeral space %d with %d fields", id, fieldCount)
	return id
}

// DropEphemeral discards a scratch space.
func (s *Store) DropEphemeral(id uint32) {
	if id >= ephemeralBase {
		delete(s.spaces, id)
	}
}

// NextEphemeralRowID returns a counter unique within one ephemeral space.
func (s *Store) NextEphemeralRowID(id uint32) (int64, error) {
	d, err := s.space(id)
	if err != nil {
		return 0, err
	}
	d.nextID++
	return d.nextID, nil
}

// NextSpaceID returns the id the next created space gets.
func (s *Store) NextSpaceID() (uint32, error) {
	last := s.schema.LastSpaceID()
	if last < IS.MinUserSpaceID {
		return IS.MinUserSpaceID, nil
	}
	if last >= IS.MaxSpaceID {
		return 0, errors.New(errors.SVDB_RANGE, errors.KindResource, "Space id limit is reached")
	}
	return last + 1, nil
}

// NextSequenceID returns the id the next created sequence gets.
func (s *Store) NextSequenceID() uint32 {
	return s.schema.LastSequenceID() + 1
}
