package emitter

import (
	"testing"

	"github.com/blockberries/x07/pkg/schema"
)

func TestTypeConstantsStruct(t *testing.T) {
	s := demoSchema(t)
	typ := s.Types[0] // demo.widget: required "name" (bytes), required "age" (number)
	consts := typeConstants(typ)

	want := map[string]uint32{
		"err_base_v1":          1000,
		"code_doc_invalid":     1001,
		"code_root_kind":       1002,
		"code_doc_too_large":   1003,
		"code_unknown_field":   1030,
		"code_noncanonical_map": 1031,
		"code_dup_field":       1032,
		"code_map_too_many_entries": 1033,
		"code_kind_name":               1111, // field id 1: 1000 + 1*100 + 11
		"code_too_long_name":           1112,
		"code_missing_name":            1110, // 1000 + 1*100 + 10
		"code_kind_age":                1211, // field id 2: 1000 + 2*100 + 11
		"code_too_long_age":            1212,
		"code_missing_age":             1210,
		"code_noncanonical_number_age": 1214,
	}
	got := map[string]uint32{}
	for _, c := range consts {
		if v, ok := c.Value.(uint32); ok {
			got[c.Name] = v
		}
	}
	for name, wantVal := range want {
		gotVal, ok := got[name]
		if !ok {
			t.Errorf("missing constant %s", name)
			continue
		}
		if gotVal != wantVal {
			t.Errorf("%s = %d, want %d", name, gotVal, wantVal)
		}
	}
	if _, ok := got["code_bool_value_name"]; ok {
		t.Errorf("bytes-typed field name should not get a bool_value code")
	}
}

func TestTypeConstantsEnum(t *testing.T) {
	data := []byte(`{
		"schema_version": "specrows@0.1.0",
		"package": {"name": "demo", "version": "1.0.0"},
		"defaults": {
			"codec": "docvalue_v1",
			"max_doc_bytes": 4096, "max_depth": 8, "max_map_entries": 32,
			"max_seq_items": 32, "max_string_bytes": 1024, "max_number_bytes": 32,
			"allow_unknown_fields": false
		},
		"types": [
			{
				"type_id": "demo.shape", "version": 1, "kind": "enum", "err_base": 2000,
				"variants": [
					{"id": 1, "name": "circle", "payload": "number"},
					{"id": 2, "name": "dot", "payload": "unit"}
				]
			}
		]
	}`)
	s, err := schema.LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	typ := s.Types[0]
	consts := typeConstants(typ)
	var sawTagInvalid, sawPayloadInvalid bool
	for _, c := range consts {
		switch c.Name {
		case "code_enum_tag_invalid":
			sawTagInvalid = true
			if c.Value.(uint32) != 2020 {
				t.Errorf("code_enum_tag_invalid = %v, want 2020", c.Value)
			}
		case "code_enum_payload_invalid":
			sawPayloadInvalid = true
			if c.Value.(uint32) != 2021 {
				t.Errorf("code_enum_payload_invalid = %v, want 2021", c.Value)
			}
		case "code_unknown_field":
			t.Errorf("enum type should not export struct-only codes")
		}
	}
	if !sawTagInvalid || !sawPayloadInvalid {
		t.Errorf("enum constants missing tag/payload invalid codes: %+v", consts)
	}
}
