package IS

import (
	"sort"
	"sync"
)

// Schema is the in-memory schema cache the compiler resolves names
// against. Published Space values are never mutated in place: writers
// build a copy and Put it, so readers may hold a Space across a schema
// change.
type Schema struct {
	mu        sync.RWMutex
	spaces    map[uint32]*Space
	byName    map[string]*Space
	sequences map[uint32]*SequenceDef
	version   uint64
}

// NewSchema returns a schema holding only the system spaces.
func NewSchema() *Schema {
	s := &Schema{
		spaces:    make(map[uint32]*Space),
		byName:    make(map[string]*Space),
		sequences: make(map[uint32]*SequenceDef),
	}
	for _, ss := range systemSpaces {
		sp := ss.build()
		s.spaces[sp.ID()] = sp
		s.byName[sp.Name()] = sp
	}
	return s
}

// Version changes whenever a space or sequence is added, replaced or
// removed.
func (s *Schema) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Schema) Space(id uint32) *Space {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spaces[id]
}

func (s *Schema) SpaceByName(name string) *Space {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byName[name]
}

// Spaces returns all spaces ordered by id.
func (s *Schema) Spaces() []*Space {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Space, 0, len(s.spaces))
	for _, sp := range s.spaces {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Put publishes sp under its id, replacing (and possibly renaming) the
// previous definition.
func (s *Schema) Put(sp *Space) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.spaces[sp.ID()]; ok && s.byName[old.Name()] == old {
		delete(s.byName, old.Name())
	}
	s.spaces[sp.ID()] = sp
	s.byName[sp.Name()] = sp
	s.version++
}

func (s *Schema) Remove(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.spaces[id]; ok {
		delete(s.spaces, id)
		if s.byName[old.Name()] == old {
			delete(s.byName, old.Name())
		}
		s.version++
	}
}

// MaxSpaceID returns the largest id in use, system spaces included.
func (s *Schema) LastSpaceID() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max uint32
	for id := range s.spaces {
		if id > max {
			max = id
		}
	}
	return max
}

func (s *Schema) Sequence(id uint32) *SequenceDef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequences[id]
}

func (s *Schema) SequenceByName(name string) *SequenceDef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, seq := range s.sequences {
		if seq.Name == name {
			return seq
		}
	}
	return nil
}

func (s *Schema) PutSequence(seq *SequenceDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[seq.ID] = seq
	s.version++
}

func (s *Schema) RemoveSequence(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sequences[id]; ok {
		delete(s.sequences, id)
		s.version++
	}
}

// MaxSequenceID returns the largest sequence id in use or zero.
func (s *Schema) LastSequenceID() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max uint32
	for id := range s.sequences {
		if id > max {
			max = id
		}
	}
	return max
}
