package CG

import (
	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/errors"
)

type indexSpec struct {
	name       string
	cols       []QP.IndexedColumn
	unique     bool
	primary    bool
	onConflict QP.OnConflict
	typ        IS.IndexType
}

// keyParts resolves key columns against the table under construction.
// Repeated columns are dropped, keeping the first occurrence.
func (p *Parse) keyParts(cols []QP.IndexedColumn) []IS.KeyPart {
	sp := p.space
	parts := make([]IS.KeyPart, 0, len(cols))
	seen := make(map[uint32]bool, len(cols))
	for _, col := range cols {
		no := sp.FieldIndex(col.Name)
		if no < 0 {
			p.errorf(errors.SVDB_NOTFOUND, errors.KindReference,
				"Can't find column '%s' in table '%s'", col.Name, sp.Name())
			return nil
		}
		if seen[uint32(no)] {
			continue
		}
		seen[uint32(no)] = true
		f := &sp.Def.Fields[no]
		part := IS.KeyPart{
			FieldNo:    uint32(no),
			Type:       f.Type,
			CollID:     f.CollID,
			Order:      col.Order,
			IsNullable: f.IsNullable(),
		}
		if part.Order == QP.SortUndef {
			part.Order = QP.SortAsc
		}
		if col.Collation != "" {
			id, ok := IS.LookupCollation(col.Collation)
			if !ok {
				p.errorf(errors.SVDB_NOTFOUND, errors.KindReference, "Collation '%s' does not exist", col.Collation)
				return nil
			}
			part.CollID = id
		}
		parts = append(parts, part)
	}
	return parts
}

// addIndex adds a PRIMARY KEY, UNIQUE or plain index to the table under
// construction and returns it.
//
// A primary key whose parts equal an earlier anonymous UNIQUE index takes
// that index over as index 0 and keeps its name. A later anonymous UNIQUE
// equal to the primary key is dropped. The two orders are not symmetric
// on purpose: existing schemas depend on the names each one produces.
func (p *Parse) addIndex(spec indexSpec) *IS.IndexDef {
	if p.failed() {
		return nil
	}
	sp := p.space
	parts := p.keyParts(spec.cols)
	if parts == nil {
		return nil
	}
	if spec.typ == "" {
		spec.typ = IS.IndexTree
	}
	idx := &IS.IndexDef{
		SpaceID:    sp.ID(),
		Type:       spec.typ,
		Unique:     spec.unique,
		Parts:      parts,
		OnConflict: spec.onConflict,
	}

	if spec.primary {
		for _, old := range sp.Indexes[p.liveIndexes:] {
			if !old.Unique || !IsUnnamed(old.Name) || !old.SameParts(idx) {
				continue
			}
			if !p.sameAction(old, spec.onConflict) {
				return nil
			}
			old.IID = 0
			p.log.Debug("unique index %s promoted to primary key", old.Name)
			return old
		}
	} else if spec.unique && spec.name == "" {
		if pk := sp.PrimaryKey(); pk != nil && pk.SameParts(idx) {
			if !p.sameAction(pk, spec.onConflict) {
				return nil
			}
			return pk
		}
	}

	switch {
	case spec.name != "":
		if !p.checkIdentifier(spec.name) {
			return nil
		}
		if sp.IndexByName(spec.name) != nil {
			p.errorf(errors.SVDB_SCHEMA_EXISTS, errors.KindIdentifier,
				"Index '%s' already exists in space '%s'", spec.name, sp.Name())
			return nil
		}
		idx.Name = spec.name
	case spec.primary:
		idx.Name = p.indexName(prefixPK)
	default:
		idx.Name = p.indexName(prefixUnique)
	}

	if spec.primary {
		idx.IID = 0
	} else {
		idx.IID = p.nextIID()
	}
	sp.Indexes = append(sp.Indexes, idx)
	return idx
}

// sameAction fails the statement when two constraints folded into one
// index disagree on their conflict action.
func (p *Parse) sameAction(idx *IS.IndexDef, action QP.OnConflict) bool {
	if effectiveAction(QP.OnConflictDefault, idx.OnConflict) != effectiveAction(QP.OnConflictDefault, action) {
		p.errorf(errors.SVDB_ERROR, errors.KindStructural,
			"Failed to create space '%s': ON CONFLICT clauses of index '%s' differ", p.space.Name(), idx.Name)
		return false
	}
	return true
}

// nextIID returns an index id not used in the table. New tables are
// renumbered when they are finished.
func (p *Parse) nextIID() uint32 {
	var max uint32
	for _, idx := range p.space.Indexes {
		if idx.IID > max {
			max = idx.IID
		}
	}
	return max + 1
}

// renumberIndexes puts the primary key first and numbers the secondary
// indexes 1..n in declaration order.
func renumberIndexes(sp *IS.Space) {
	sp.SortIndexes()
	iid := uint32(1)
	for _, idx := range sp.Indexes {
		if idx.IID == 0 {
			continue
		}
		idx.IID = iid
		iid++
	}
}
