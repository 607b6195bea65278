package util

import "sync"

// InterfaceSlicePool is a pool of reusable []interface{} slices.
var InterfaceSlicePool = sync.Pool{
	New: func() interface{} {
		s := make([]interface{}, 0, 32)
		return &s
	},
}

// GetInterfaceSlice retrieves a []interface{} slice from the pool.
func GetInterfaceSlice() *[]interface{} {
	sp := InterfaceSlicePool.Get().(*[]interface{})
	*sp = (*sp)[:0] // reset length, keep capacity
	return sp
}

// PutInterfaceSlice returns a []interface{} slice to the pool. The
// elements are cleared so pooled slices do not pin values.
func PutInterfaceSlice(s *[]interface{}) {
	if s == nil {
		return
	}
	clear(*s)
	*s = (*s)[:0]
	InterfaceSlicePool.Put(s)
}
