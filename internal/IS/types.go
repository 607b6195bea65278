package IS

import (
	"strings"
)

// FieldType is a storage-level field type.
type FieldType string

const (
	FieldAny       FieldType = "any"
	FieldUnsigned  FieldType = "unsigned"
	FieldString    FieldType = "string"
	FieldNumber    FieldType = "number"
	FieldDouble    FieldType = "double"
	FieldInteger   FieldType = "integer"
	FieldBoolean   FieldType = "boolean"
	FieldVarbinary FieldType = "varbinary"
	FieldScalar    FieldType = "scalar"
)

// ParseFieldType maps a declared SQL column type to a field type. Type
// arguments such as VARCHAR(20) are ignored.
func ParseFieldType(decl string) (FieldType, bool) {
	name := strings.ToUpper(strings.TrimSpace(decl))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	switch name {
	case "":
		return FieldScalar, true
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT":
		return FieldInteger, true
	case "UNSIGNED":
		return FieldUnsigned, true
	case "TEXT", "STRING", "VARCHAR", "CHAR", "CLOB":
		return FieldString, true
	case "REAL", "DOUBLE", "FLOAT":
		return FieldDouble, true
	case "NUMBER", "NUMERIC", "DECIMAL":
		return FieldNumber, true
	case "BOOL", "BOOLEAN":
		return FieldBoolean, true
	case "BLOB", "VARBINARY":
		return FieldVarbinary, true
	case "SCALAR":
		return FieldScalar, true
	case "ANY":
		return FieldAny, true
	}
	return "", false
}

// IsInteger reports whether values of the type are always integers.
func (t FieldType) IsInteger() bool {
	return t == FieldInteger || t == FieldUnsigned
}

// Collation ids. Zero means no collation.
const (
	CollNone      uint32 = 0
	CollUnicode   uint32 = 1
	CollUnicodeCI uint32 = 2
	CollBinary    uint32 = 3
)

var collationNames = []string{"none", "unicode", "unicode_ci", "binary"}

// LookupCollation resolves a collation name to its id.
func LookupCollation(name string) (uint32, bool) {
	lower := strings.ToLower(name)
	for id, n := range collationNames {
		if n == lower {
			return uint32(id), true
		}
	}
	return 0, false
}

// CollationName returns the name of a collation id.
func CollationName(id uint32) string {
	if int(id) < len(collationNames) {
		return collationNames[id]
	}
	return "none"
}

// IndexType is the access method of an index.
type IndexType string

const (
	IndexTree   IndexType = "TREE"
	IndexHash   IndexType = "HASH"
	IndexRTree  IndexType = "RTREE"
	IndexBitset IndexType = "BITSET"
)

// ParseIndexType maps an index type name; the empty string is TREE.
func ParseIndexType(name string) (IndexType, bool) {
	switch strings.ToUpper(name) {
	case "", "TREE":
		return IndexTree, true
	case "HASH":
		return IndexHash, true
	case "RTREE":
		return IndexRTree, true
	case "BITSET":
		return IndexBitset, true
	}
	return "", false
}

// Provenance tells where a space definition handled by the compiler came from.
type Provenance int

const (
	// ProvenanceLive is a space read from the schema cache.
	ProvenanceLive Provenance = iota
	// NewUnderConstruction is a CREATE TABLE target not yet in the catalog.
	NewUnderConstruction
	// ExistingAltered is a shallow copy of a live space edited by ALTER.
	ExistingAltered
	// EphemeralScratch is a throwaway space used inside one program.
	EphemeralScratch
)

func (p Provenance) String() string {
	switch p {
	case NewUnderConstruction:
		return "new"
	case ExistingAltered:
		return "altered"
	case EphemeralScratch:
		return "ephemeral"
	}
	return "live"
}
