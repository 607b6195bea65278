package VM

import (
	"github.com/sqlvibe/svcomp/internal/SF/util"
)

// maxTempRegs bounds the single-register free list.
const maxTempRegs = 8

// AllocReg returns a fresh permanent register.
func (p *Program) AllocReg() int {
	p.NumRegs++
	return p.NumRegs
}

// AllocRegs returns the first of n fresh consecutive registers.
func (p *Program) AllocRegs(n int) int {
	util.Assert(n > 0, "register count must be positive, got %d", n)
	base := p.NumRegs + 1
	p.NumRegs += n
	return base
}

// GetTempReg returns a scratch register, reusing released ones first.
func (p *Program) GetTempReg() int {
	if n := len(p.tempRegs); n > 0 {
		r := p.tempRegs[n-1]
		p.tempRegs = p.tempRegs[:n-1]
		return r
	}
	return p.AllocReg()
}

// ReleaseTempReg hands a scratch register back.
func (p *Program) ReleaseTempReg(r int) {
	if r != 0 && len(p.tempRegs) < maxTempRegs {
		p.tempRegs = append(p.tempRegs, r)
	}
}

// GetTempRange returns the first of n consecutive scratch registers. A
// range is carved from the most recently released range when it fits.
// Ranges must be released in the reverse order they were taken.
func (p *Program) GetTempRange(n int) int {
	if n == 1 {
		return p.GetTempReg()
	}
	if n <= p.rangeSize {
		base := p.rangeBase
		p.rangeBase += n
		p.rangeSize -= n
		return base
	}
	return p.AllocRegs(n)
}

// ReleaseTempRange hands back a range obtained from GetTempRange.
func (p *Program) ReleaseTempRange(base, n int) {
	if n == 1 {
		p.ReleaseTempReg(base)
		return
	}
	util.Assert(base > 0 && base+n-1 <= p.NumRegs, "release of unallocated range %d..%d", base, base+n-1)
	if n > p.rangeSize {
		p.rangeBase = base
		p.rangeSize = n
	}
}

// ClearTempCache forgets every released register. Callers use it before
// code whose registers must stay untouched across a loop or coroutine.
func (p *Program) ClearTempCache() {
	p.tempRegs = p.tempRegs[:0]
	p.rangeSize = 0
}
