package VM

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"

	"github.com/golang/snappy"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// A program image is the finished instruction list as a deterministic
// protobuf structpb list, snappy-compressed. Each instruction is
// [op name, p1, p2, p3, p4 kind, p4 text, p5, comment]; P4 is carried as
// text so 64-bit integers and blobs survive exactly.

const imageVersion = 1

var imageMarshal = proto.MarshalOptions{Deterministic: true}

func encodeP4(v interface{}) (string, string, error) {
	switch x := v.(type) {
	case nil:
		return "", "", nil
	case int:
		return "i", strconv.FormatInt(int64(x), 10), nil
	case int64:
		return "i", strconv.FormatInt(x, 10), nil
	case float64:
		return "f", strconv.FormatUint(math.Float64bits(x), 16), nil
	case string:
		return "s", x, nil
	case bool:
		return "b", strconv.FormatBool(x), nil
	case []byte:
		return "x", base64.StdEncoding.EncodeToString(x), nil
	}
	return "", "", fmt.Errorf("P4 of type %T is not serializable", v)
}

func decodeP4(kind, text string) (interface{}, error) {
	switch kind {
	case "":
		return nil, nil
	case "i":
		return strconv.ParseInt(text, 10, 64)
	case "f":
		bits, err := strconv.ParseUint(text, 16, 64)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(bits), nil
	case "s":
		return text, nil
	case "b":
		return strconv.ParseBool(text)
	case "x":
		return base64.StdEncoding.DecodeString(text)
	}
	return nil, fmt.Errorf("unknown P4 kind %q", kind)
}

func (p *Program) rawImage() ([]byte, error) {
	insts := make([]interface{}, len(p.Instructions))
	for i, inst := range p.Instructions {
		kind, text, err := encodeP4(inst.P4)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		insts[i] = []interface{}{
			inst.Op.String(), float64(inst.P1), float64(inst.P2), float64(inst.P3),
			kind, text, float64(inst.P5), inst.Comment,
		}
	}
	v, err := structpb.NewValue(map[string]interface{}{
		"version":      imageVersion,
		"num_regs":     p.NumRegs,
		"num_cursors":  p.NumCursors,
		"change_reg":   p.ChangeReg,
		"instructions": insts,
	})
	if err != nil {
		return nil, err
	}
	return imageMarshal.Marshal(v)
}

// MarshalBinary encodes a finished program.
func (p *Program) MarshalBinary() ([]byte, error) {
	if !p.finished {
		return nil, fmt.Errorf("program is not finished")
	}
	raw, err := p.rawImage()
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

// UnmarshalBinary replaces p with a decoded program image.
func (p *Program) UnmarshalBinary(data []byte) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("program image: %w", err)
	}
	var v structpb.Value
	if err := proto.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("program image: %w", err)
	}
	m, ok := v.AsInterface().(map[string]interface{})
	if !ok {
		return fmt.Errorf("program image: not a map")
	}
	if ver, _ := m["version"].(float64); int(ver) != imageVersion {
		return fmt.Errorf("program image: unsupported version %v", m["version"])
	}
	list, _ := m["instructions"].([]interface{})
	insts := make([]Instruction, len(list))
	for i, item := range list {
		f, ok := item.([]interface{})
		if !ok || len(f) != 8 {
			return fmt.Errorf("program image: malformed instruction %d", i)
		}
		name, _ := f[0].(string)
		op, ok := ParseOpCode(name)
		if !ok {
			return fmt.Errorf("program image: unknown opcode %q", name)
		}
		kind, _ := f[4].(string)
		text, _ := f[5].(string)
		p4, err := decodeP4(kind, text)
		if err != nil {
			return fmt.Errorf("program image: instruction %d: %w", i, err)
		}
		comment, _ := f[7].(string)
		insts[i] = Instruction{
			Op:      op,
			P1:      int32(num(f[1])),
			P2:      int32(num(f[2])),
			P3:      int32(num(f[3])),
			P4:      p4,
			P5:      InstrFlag(num(f[6])),
			Comment: comment,
		}
	}
	*p = Program{
		Instructions: insts,
		NumRegs:      int(num(m["num_regs"])),
		NumCursors:   int(num(m["num_cursors"])),
		ChangeReg:    int(num(m["change_reg"])),
		finished:     true,
	}
	return nil
}

func num(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
