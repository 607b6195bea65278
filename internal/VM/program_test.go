package VM

import (
	"strings"
	"testing"
)

func TestLabels(t *testing.T) {
	p := NewProgram()
	end := p.NewLabel()
	r := p.AllocReg()
	p.EmitInteger(1, r)
	p.EmitOp(OpIf, r, end, 0)
	p.EmitOp(OpHalt, 1, 0, 0)
	p.ResolveLabel(end)
	p.Emit(OpHalt)
	if err := p.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if got := p.Op(1).P2; got != 3 {
		t.Errorf("label patched to %d, want 3", got)
	}
	if !p.IsFinished() {
		t.Errorf("program not finished")
	}
}

func TestUnresolvedLabel(t *testing.T) {
	p := NewProgram()
	p.EmitGoto(p.NewLabel())
	if err := p.Finish(); err == nil {
		t.Errorf("Finish accepted an unresolved label")
	}
}

func TestCoroutineLabels(t *testing.T) {
	p := NewProgram()
	body, after := p.NewLabel(), p.NewLabel()
	r := p.AllocReg()
	p.EmitOp(OpInitCoroutine, r, after, body)
	p.ResolveLabel(body)
	p.EmitOp(OpEndCoroutine, r, 0, 0)
	p.ResolveLabel(after)
	p.Emit(OpHalt)
	if err := p.Finish(); err != nil {
		t.Fatal(err)
	}
	if inst := p.Op(0); inst.P2 != 2 || inst.P3 != 1 {
		t.Errorf("InitCoroutine P2=%d P3=%d", inst.P2, inst.P3)
	}
}

func TestTempRegisters(t *testing.T) {
	p := NewProgram()
	a := p.GetTempReg()
	p.ReleaseTempReg(a)
	if b := p.GetTempReg(); b != a {
		t.Errorf("released register %d not reused, got %d", a, b)
	}

	base := p.GetTempRange(4)
	p.ReleaseTempRange(base, 4)
	if got := p.GetTempRange(2); got != base {
		t.Errorf("range reuse: got %d want %d", got, base)
	}
	if got := p.GetTempRange(2); got != base+2 {
		t.Errorf("second carve: got %d want %d", got, base+2)
	}
	n := p.NumRegs
	p.ClearTempCache()
	if got := p.GetTempRange(3); got != n+1 {
		t.Errorf("after ClearTempCache got %d want %d", got, n+1)
	}
}

func TestTempRegisterCap(t *testing.T) {
	p := NewProgram()
	regs := make([]int, 0, maxTempRegs+2)
	for i := 0; i < maxTempRegs+2; i++ {
		regs = append(regs, p.AllocReg())
	}
	for _, r := range regs {
		p.ReleaseTempReg(r)
	}
	if len(p.tempRegs) != maxTempRegs {
		t.Errorf("free list holds %d registers", len(p.tempRegs))
	}
}

func TestEmitLoadConst(t *testing.T) {
	p := NewProgram()
	r := p.AllocReg()
	tests := []struct {
		v  interface{}
		op OpCode
	}{
		{nil, OpNull},
		{int64(5), OpInteger},
		{int64(1) << 40, OpInt64},
		{1.5, OpReal},
		{"x", OpString},
		{true, OpBool},
		{[]byte{1}, OpBlob},
	}
	for _, tt := range tests {
		addr := p.EmitLoadConst(r, tt.v)
		if got := p.Op(addr).Op; got != tt.op {
			t.Errorf("EmitLoadConst(%v) emitted %s, want %s", tt.v, got, tt.op)
		}
	}
}

func TestExplain(t *testing.T) {
	p := NewProgram()
	p.EmitString("t", p.AllocReg())
	p.SetComment("name")
	p.Emit(OpHalt)
	out := p.Explain()
	for _, want := range []string{"addr", "String", "Halt", "name"} {
		if !strings.Contains(out, want) {
			t.Errorf("Explain output lacks %q:\n%s", want, out)
		}
	}
	if rows := p.ExplainRows(); len(rows) != 2 || rows[0][5] != "t" {
		t.Errorf("ExplainRows = %v", rows)
	}
}

func TestOpCodeNames(t *testing.T) {
	for op := OpNoop; op < opMax; op++ {
		back, ok := ParseOpCode(op.String())
		if !ok || back != op {
			t.Errorf("ParseOpCode(%s) = %v, %v", op, back, ok)
		}
	}
}
