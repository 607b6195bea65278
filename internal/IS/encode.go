package IS

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/util"
)

// Catalog blobs (space format and options, index options and parts, foreign
// key column lists, trigger options) are protobuf-encoded structpb values.
// Marshalling is deterministic so the same definition always yields the same
// bytes, which keeps compiled programs byte-for-byte reproducible.

var blobMarshal = proto.MarshalOptions{Deterministic: true}

func encodeBlob(v interface{}) []byte {
	pv, err := structpb.NewValue(v)
	util.Assert(err == nil, "catalog blob not encodable: %v", err)
	b, err := blobMarshal.Marshal(pv)
	util.Assert(err == nil, "catalog blob marshal: %v", err)
	return b
}

func decodeBlob(b []byte) (interface{}, error) {
	var pv structpb.Value
	if err := proto.Unmarshal(b, &pv); err != nil {
		return nil, fmt.Errorf("malformed catalog blob: %w", err)
	}
	return pv.AsInterface(), nil
}

func decodeList(b []byte) ([]interface{}, error) {
	v, err := decodeBlob(b)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("catalog blob: expected list, got %T", v)
	}
	return list, nil
}

func decodeMap(b []byte) (map[string]interface{}, error) {
	v, err := decodeBlob(b)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("catalog blob: expected map, got %T", v)
	}
	return m, nil
}

func asString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func asUint(m map[string]interface{}, key string) uint32 {
	f, _ := m[key].(float64)
	return uint32(f)
}

func asBool(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// ParseOnConflict maps an action name back to its value.
func ParseOnConflict(name string) QP.OnConflict {
	for o := QP.OnConflictDefault; o <= QP.OnConflictReplace; o++ {
		if o.String() == name {
			return o
		}
	}
	return QP.OnConflictDefault
}

// EncodeFormat encodes the field list of a _space row.
func EncodeFormat(fields []FieldDef) []byte {
	list := make([]interface{}, len(fields))
	for i, f := range fields {
		m := map[string]interface{}{
			"name":            f.Name,
			"type":            string(f.Type),
			"is_nullable":     f.IsNullable(),
			"nullable_action": f.NullAction.String(),
		}
		if f.DefaultText != "" {
			m["default"] = f.DefaultText
		}
		if f.CollID != CollNone {
			m["collation"] = f.CollID
		}
		list[i] = m
	}
	return encodeBlob(list)
}

// DecodeFormat decodes a _space format blob, re-parsing default texts.
func DecodeFormat(b []byte) ([]FieldDef, error) {
	list, err := decodeList(b)
	if err != nil {
		return nil, err
	}
	fields := make([]FieldDef, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("format entry %d: expected map", i)
		}
		fields[i] = FieldDef{
			Name:        asString(m, "name"),
			Type:        FieldType(asString(m, "type")),
			NullAction:  ParseOnConflict(asString(m, "nullable_action")),
			DefaultText: asString(m, "default"),
			CollID:      asUint(m, "collation"),
		}
		if fields[i].DefaultText != "" {
			expr, err := QP.ParseExpr(fields[i].DefaultText)
			if err != nil {
				return nil, fmt.Errorf("default of field %q: %w", fields[i].Name, err)
			}
			fields[i].Default = expr
		}
	}
	return fields, nil
}

func EncodeSpaceOpts(opts SpaceOpts) []byte {
	m := map[string]interface{}{}
	if opts.IsView {
		m["view"] = true
		m["sql"] = opts.ViewSQL
	}
	if opts.IsTemporary {
		m["temporary"] = true
	}
	return encodeBlob(m)
}

func DecodeSpaceOpts(b []byte) (SpaceOpts, error) {
	m, err := decodeMap(b)
	if err != nil {
		return SpaceOpts{}, err
	}
	return SpaceOpts{
		IsView:      asBool(m, "view"),
		IsTemporary: asBool(m, "temporary"),
		ViewSQL:     asString(m, "sql"),
	}, nil
}

func EncodeIndexOpts(unique bool, onConflict QP.OnConflict) []byte {
	m := map[string]interface{}{"unique": unique}
	if onConflict != QP.OnConflictDefault {
		m["on_conflict"] = onConflict.String()
	}
	return encodeBlob(m)
}

func DecodeIndexOpts(b []byte) (unique bool, onConflict QP.OnConflict, err error) {
	m, err := decodeMap(b)
	if err != nil {
		return false, QP.OnConflictDefault, err
	}
	return asBool(m, "unique"), ParseOnConflict(asString(m, "on_conflict")), nil
}

func EncodeIndexParts(parts []KeyPart) []byte {
	list := make([]interface{}, len(parts))
	for i, p := range parts {
		m := map[string]interface{}{
			"field":       p.FieldNo,
			"type":        string(p.Type),
			"is_nullable": p.IsNullable,
			"sort_order":  p.Order.String(),
		}
		if p.CollID != CollNone {
			m["collation"] = p.CollID
		}
		list[i] = m
	}
	return encodeBlob(list)
}

func DecodeIndexParts(b []byte) ([]KeyPart, error) {
	list, err := decodeList(b)
	if err != nil {
		return nil, err
	}
	parts := make([]KeyPart, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("key part %d: expected map", i)
		}
		order := QP.SortAsc
		if asString(m, "sort_order") == QP.SortDesc.String() {
			order = QP.SortDesc
		}
		parts[i] = KeyPart{
			FieldNo:    asUint(m, "field"),
			Type:       FieldType(asString(m, "type")),
			CollID:     asUint(m, "collation"),
			Order:      order,
			IsNullable: asBool(m, "is_nullable"),
		}
	}
	return parts, nil
}

// EncodeFieldList encodes the child or parent column list of a foreign key.
func EncodeFieldList(fields []uint32) []byte {
	list := make([]interface{}, len(fields))
	for i, f := range fields {
		list[i] = f
	}
	return encodeBlob(list)
}

func DecodeFieldList(b []byte) ([]uint32, error) {
	list, err := decodeList(b)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(list))
	for i, item := range list {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("field list entry %d: expected number", i)
		}
		out[i] = uint32(f)
	}
	return out, nil
}

func EncodeTriggerOpts(event TriggerEvent, timing TriggerTiming) []byte {
	return encodeBlob(map[string]interface{}{"event": string(event), "timing": string(timing)})
}

func DecodeTriggerOpts(b []byte) (TriggerEvent, TriggerTiming, error) {
	m, err := decodeMap(b)
	if err != nil {
		return "", "", err
	}
	return TriggerEvent(asString(m, "event")), TriggerTiming(asString(m, "timing")), nil
}
