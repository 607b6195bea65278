package VM

type Instruction struct {
	Op      OpCode
	P1      int32
	P2      int32
	P3      int32
	P4      interface{}
	P5      InstrFlag
	Comment string
}

func NewInstruction(op OpCode) Instruction {
	return Instruction{Op: op}
}

func (i *Instruction) SetP1(p1 int32) *Instruction {
	i.P1 = p1
	return i
}

func (i *Instruction) SetP2(p2 int32) *Instruction {
	i.P2 = p2
	return i
}

func (i *Instruction) SetP3(p3 int32) *Instruction {
	i.P3 = p3
	return i
}

func (i *Instruction) SetP4(p4 interface{}) *Instruction {
	i.P4 = p4
	return i
}

func (i *Instruction) SetP5(p5 InstrFlag) *Instruction {
	i.P5 = p5
	return i
}

// P4Int returns P4 as an int, or zero.
func (i *Instruction) P4Int() int {
	switch v := i.P4.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	}
	return 0
}

// P4String returns P4 as a string, or "".
func (i *Instruction) P4String() string {
	s, _ := i.P4.(string)
	return s
}
