package DS

import (
	"sort"

	"github.com/sqlvibe/svcomp/internal/IS"
	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/util"
)

// index keeps the tuples of a space ordered by its key parts. Secondary
// indexes break ties on the primary key, so every tuple has exactly one
// position in every index.
type index struct {
	def  *IS.IndexDef
	pk   *IS.IndexDef
	rows []Tuple
}

func newIndex(def, pk *IS.IndexDef) *index {
	return &index{def: def, pk: pk}
}

func comparePart(part IS.KeyPart, a, b interface{}) int {
	c := Compare(a, b, part.CollID)
	if part.Order == QP.SortDesc {
		return -c
	}
	return c
}

// cmpKey compares tuple t with a key prefix.
func (ix *index) cmpKey(t Tuple, key []interface{}) int {
	for i, v := range key {
		if i >= len(ix.def.Parts) {
			break
		}
		part := ix.def.Parts[i]
		if c := comparePart(part, field(t, part.FieldNo), v); c != 0 {
			return c
		}
	}
	return 0
}

func (ix *index) cmpTuples(a, b Tuple) int {
	for _, part := range ix.def.Parts {
		if c := comparePart(part, field(a, part.FieldNo), field(b, part.FieldNo)); c != 0 {
			return c
		}
	}
	if ix.pk == nil || ix.pk == ix.def {
		return 0
	}
	for _, part := range ix.pk.Parts {
		if c := comparePart(part, field(a, part.FieldNo), field(b, part.FieldNo)); c != 0 {
			return c
		}
	}
	return 0
}

func field(t Tuple, no uint32) interface{} {
	if int(no) < len(t) {
		return t[no]
	}
	return nil
}

// KeyOf extracts the key of t in index part order.
func KeyOf(def *IS.IndexDef, t Tuple) []interface{} {
	return appendKey(make([]interface{}, 0, len(def.Parts)), def, t)
}

func appendKey(dst []interface{}, def *IS.IndexDef, t Tuple) []interface{} {
	for _, part := range def.Parts {
		dst = append(dst, field(t, part.FieldNo))
	}
	return dst
}

func hasNull(key []interface{}) bool {
	for _, v := range key {
		if v == nil {
			return true
		}
	}
	return false
}

// lowerBound returns the first position whose tuple is >= key.
func (ix *index) lowerBound(key []interface{}) int {
	return sort.Search(len(ix.rows), func(i int) bool {
		return ix.cmpKey(ix.rows[i], key) >= 0
	})
}

// match returns the tuples whose key starts with key.
func (ix *index) match(key []interface{}) []Tuple {
	lo := ix.lowerBound(key)
	hi := lo
	for hi < len(ix.rows) && ix.cmpKey(ix.rows[hi], key) == 0 {
		hi++
	}
	return ix.rows[lo:hi]
}

// conflict returns the tuple t would collide with in a unique index, or
// nil. Keys containing NULL never collide.
func (ix *index) conflict(t Tuple) Tuple {
	if !ix.def.Unique {
		return nil
	}
	kp := util.GetInterfaceSlice()
	defer util.PutInterfaceSlice(kp)
	*kp = appendKey(*kp, ix.def, t)
	key := *kp
	if hasNull(key) && ix.def.IID != 0 {
		return nil
	}
	if m := ix.match(key); len(m) > 0 {
		return m[0]
	}
	return nil
}

func (ix *index) position(t Tuple) (int, bool) {
	pos := sort.Search(len(ix.rows), func(i int) bool {
		return ix.cmpTuples(ix.rows[i], t) >= 0
	})
	return pos, pos < len(ix.rows) && ix.cmpTuples(ix.rows[pos], t) == 0
}

func (ix *index) insert(t Tuple) {
	pos, _ := ix.position(t)
	ix.rows = append(ix.rows, nil)
	copy(ix.rows[pos+1:], ix.rows[pos:])
	ix.rows[pos] = t
}

func (ix *index) remove(t Tuple) bool {
	pos, ok := ix.position(t)
	if !ok {
		return false
	}
	ix.rows = append(ix.rows[:pos], ix.rows[pos+1:]...)
	return true
}

func (ix *index) snapshot() []Tuple {
	return append([]Tuple(nil), ix.rows...)
}
