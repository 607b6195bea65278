package util

import "testing"

func TestAssert(t *testing.T) {
	Assert(true, "should not panic")

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Assert(false) should panic")
		}
		if r != "Assertion failed: value 3" {
			t.Errorf("unexpected panic message %v", r)
		}
	}()
	Assert(false, "value %d", 3)
}

func TestAssertNotNil(t *testing.T) {
	var p *int
	defer func() {
		if recover() == nil {
			t.Fatal("AssertNotNil on typed nil should panic")
		}
	}()
	AssertNotNil(p, "p")
}

func TestTrimSQL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a > 0", "a > 0"},
		{"  a   >\n\t0  ", "a > 0"},
		{"b = 'x    y'", "b = 'x    y'"},
		{"b =   \"c  d\"  AND  e", "b = \"c  d\" AND e"},
		{"s = 'it''s   ok'   ", "s = 'it''s   ok'"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := TrimSQL(tt.in); got != tt.want {
			t.Errorf("TrimSQL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsPrintable(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"users", true},
		{"имя", true},
		{"a b", true},
		{"a\x00b", false},
		{"tab\t", false},
		{string([]byte{0xff, 0xfe}), false},
	}
	for _, tt := range tests {
		if got := IsPrintable(tt.in); got != tt.want {
			t.Errorf("IsPrintable(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInterfaceSlicePool(t *testing.T) {
	sp := GetInterfaceSlice()
	if len(*sp) != 0 {
		t.Fatalf("pooled slice len = %d", len(*sp))
	}
	*sp = append(*sp, "a", int64(1))
	backing := (*sp)[:2]
	PutInterfaceSlice(sp)
	if backing[0] != nil || backing[1] != nil {
		t.Errorf("returned slice still holds %v", backing)
	}
	PutInterfaceSlice(nil)
}
