package VM

import (
	"fmt"

	"github.com/sqlvibe/svcomp/internal/SF/util"
)

// Program is a bytecode program under construction or ready to run.
// Registers are numbered from 1; register 0 is never used so that a zero
// operand can mean "none". Jump targets may be given as labels (negative
// numbers from NewLabel) and are patched by Finish.
type Program struct {
	Instructions []Instruction
	NumRegs      int
	NumCursors   int
	// ChangeReg holds the statement change counter, or 0.
	ChangeReg int

	labels    []int
	tempRegs  []int
	rangeBase int
	rangeSize int
	finished  bool
}

func NewProgram() *Program {
	return &Program{
		Instructions: make([]Instruction, 0),
	}
}

func (p *Program) AddInstruction(inst Instruction) int {
	idx := len(p.Instructions)
	p.Instructions = append(p.Instructions, inst)
	return idx
}

func (p *Program) Emit(op OpCode) int {
	return p.AddInstruction(Instruction{Op: op})
}

func (p *Program) EmitOp(op OpCode, p1, p2, p3 int) int {
	return p.AddInstruction(Instruction{
		Op: op,
		P1: int32(p1),
		P2: int32(p2),
		P3: int32(p3),
	})
}

func (p *Program) EmitOp4(op OpCode, p1, p2, p3 int, p4 interface{}) int {
	return p.AddInstruction(Instruction{
		Op: op,
		P1: int32(p1),
		P2: int32(p2),
		P3: int32(p3),
		P4: p4,
	})
}

func (p *Program) EmitGoto(target int) int {
	return p.EmitOp(OpGoto, 0, target, 0)
}

func (p *Program) EmitNull(dst int) int {
	return p.EmitOp(OpNull, dst, 1, 0)
}

func (p *Program) EmitInteger(value int64, dst int) int {
	if value >= -1<<31 && value < 1<<31 {
		return p.EmitOp(OpInteger, int(value), dst, 0)
	}
	return p.EmitOp4(OpInt64, 0, dst, 0, value)
}

func (p *Program) EmitString(value string, dst int) int {
	return p.EmitOp4(OpString, 0, dst, 0, value)
}

func (p *Program) EmitBool(value bool, dst int) int {
	v := 0
	if value {
		v = 1
	}
	return p.EmitOp(OpBool, v, dst, 0)
}

func (p *Program) EmitBlob(value []byte, dst int) int {
	return p.EmitOp4(OpBlob, 0, dst, 0, value)
}

// EmitLoadConst loads a Go value of one of the VM value types.
func (p *Program) EmitLoadConst(dst int, value interface{}) int {
	switch v := value.(type) {
	case nil:
		return p.EmitNull(dst)
	case int64:
		return p.EmitInteger(v, dst)
	case int:
		return p.EmitInteger(int64(v), dst)
	case uint32:
		return p.EmitInteger(int64(v), dst)
	case float64:
		return p.EmitOp4(OpReal, 0, dst, 0, v)
	case string:
		return p.EmitString(v, dst)
	case bool:
		return p.EmitBool(v, dst)
	case []byte:
		return p.EmitBlob(v, dst)
	}
	util.Assert(false, "unsupported constant %T", value)
	return -1
}

func (p *Program) EmitCopy(src, dst int) int {
	return p.EmitOp(OpCopy, src, dst, 0)
}

func (p *Program) EmitSCopy(src, dst int) int {
	return p.EmitOp(OpSCopy, src, dst, 0)
}

// Addr returns the address of the next instruction.
func (p *Program) Addr() int {
	return len(p.Instructions)
}

// Op returns the instruction at addr.
func (p *Program) Op(addr int) *Instruction {
	util.Assert(addr >= 0 && addr < len(p.Instructions), "instruction address %d out of range", addr)
	return &p.Instructions[addr]
}

// Last returns the most recently emitted instruction.
func (p *Program) Last() *Instruction {
	return p.Op(len(p.Instructions) - 1)
}

// SetComment attaches an EXPLAIN comment to the last instruction.
func (p *Program) SetComment(format string, args ...interface{}) {
	if len(p.Instructions) > 0 {
		p.Last().Comment = fmt.Sprintf(format, args...)
	}
}

// JumpHere makes the jump at addr target the next instruction.
func (p *Program) JumpHere(addr int) {
	p.Op(addr).P2 = int32(p.Addr())
}

// NewLabel returns a fresh unresolved label.
func (p *Program) NewLabel() int {
	p.labels = append(p.labels, -1)
	return -len(p.labels)
}

// ResolveLabel binds label to the next instruction.
func (p *Program) ResolveLabel(label int) {
	i := -label - 1
	util.Assert(i >= 0 && i < len(p.labels), "bad label %d", label)
	util.Assert(p.labels[i] < 0, "label %d resolved twice", label)
	p.labels[i] = p.Addr()
}

func (p *Program) resolve(target int32) (int32, error) {
	if target >= 0 {
		return target, nil
	}
	i := int(-target - 1)
	if i >= len(p.labels) || p.labels[i] < 0 {
		return 0, fmt.Errorf("unresolved label %d", target)
	}
	return int32(p.labels[i]), nil
}

// Finish patches label references and makes the program runnable.
func (p *Program) Finish() error {
	if p.finished {
		return nil
	}
	for addr := range p.Instructions {
		inst := &p.Instructions[addr]
		if !inst.Op.IsJump() {
			continue
		}
		target, err := p.resolve(inst.P2)
		if err != nil {
			return fmt.Errorf("instruction %d (%s): %w", addr, inst.Op, err)
		}
		inst.P2 = target
		if inst.Op == OpInitCoroutine {
			if inst.P3, err = p.resolve(inst.P3); err != nil {
				return fmt.Errorf("instruction %d (%s): %w", addr, inst.Op, err)
			}
		}
	}
	p.finished = true
	return nil
}

func (p *Program) IsFinished() bool {
	return p.finished
}

// AllocCursor returns a new cursor number.
func (p *Program) AllocCursor() int {
	c := p.NumCursors
	p.NumCursors++
	return c
}
