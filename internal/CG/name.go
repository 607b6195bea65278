package CG

import (
	"fmt"
	"strings"

	"github.com/sqlvibe/svcomp/internal/IS"
)

// Prefixes of generated constraint names.
const (
	prefixPK     = "pk"
	prefixUnique = "unique"
	prefixCheck  = "ck"
	prefixFK     = "fk"
)

// unnamedName builds <kind>_unnamed_<table>_<ordinal>. ordinal is one past
// the number of constraints of the same family already known, live ones
// included, and is bumped past any name that is taken.
func unnamedName(kind, table string, count int, taken func(string) bool) string {
	for ordinal := count + 1; ; ordinal++ {
		name := fmt.Sprintf("%s_unnamed_%s_%d", kind, table, ordinal)
		if !taken(name) {
			return name
		}
	}
}

// IsUnnamed reports whether name was generated for an anonymous constraint.
func IsUnnamed(name string) bool {
	i := strings.Index(name, "_unnamed_")
	if i <= 0 {
		return false
	}
	switch name[:i] {
	case prefixPK, prefixUnique, prefixCheck, prefixFK:
		return true
	}
	return false
}

func (p *Parse) indexName(kind string) string {
	sp := p.space
	return unnamedName(kind, sp.Name(), len(sp.Indexes), func(n string) bool {
		return sp.IndexByName(n) != nil
	})
}

func (p *Parse) checkName() string {
	sp := p.space
	return unnamedName(prefixCheck, sp.Name(), len(sp.Checks)+len(p.pendingChecks), p.constraintTaken)
}

func (p *Parse) fkName() string {
	sp := p.space
	return unnamedName(prefixFK, sp.Name(), len(sp.ChildFKs)+len(p.pendingFKs), p.constraintTaken)
}

// constraintTaken reports whether a CHECK or FOREIGN KEY of the table
// under construction already uses name.
func (p *Parse) constraintTaken(name string) bool {
	sp := p.space
	if sp.Check(name) != nil || sp.ChildFK(name) != nil {
		return true
	}
	for _, ck := range p.pendingChecks {
		if ck.Name == name {
			return true
		}
	}
	for _, fk := range p.pendingFKs {
		if fk.def.Name == name {
			return true
		}
	}
	return false
}

// spaceRef is the reference constraint rows use for the space being
// built or altered.
func (p *Parse) spaceRef() IS.SpaceRef {
	if p.space.Provenance == IS.NewUnderConstruction {
		return IS.PendingAt(p.spaceReg)
	}
	return IS.Known(p.space.ID())
}
