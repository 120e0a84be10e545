package emitter

import (
	"testing"

	"github.com/blockberries/x07/pkg/schema"
)

func TestStructFunctionsIncludesCoreAndAccessors(t *testing.T) {
	s := demoSchema(t)
	typ := s.Types[0] // demo.widget: required "name" (bytes), required "age" (number)
	fns := typeFunctions(typ)

	byName := map[string]functionDoc{}
	for _, fn := range fns {
		byName[fn.Name] = fn
	}

	for _, want := range []string{
		"validate_doc_v1", "validate_value_v1", "encode_value_v1", "encode_doc_v1",
		"get_name_view_v1", "get_age_v1",
	} {
		if _, ok := byName[want]; !ok {
			t.Errorf("missing function %s, got %+v", want, fns)
		}
	}
	// both fields are required: no has_<f>_v1 accessors expected.
	if _, ok := byName["has_name_v1"]; ok {
		t.Errorf("required field name should not get a has_ accessor")
	}

	encode := byName["encode_value_v1"]
	if len(encode.Body.Params) != 2 || encode.Body.Params[0] != "name" || encode.Body.Params[1] != "age" {
		t.Errorf("encode_value_v1 params not in declared field order: %+v", encode.Body.Params)
	}
	if encode.Body.EntryOrder != "declared_field_order" {
		t.Errorf("encode_value_v1 entry_order = %q", encode.Body.EntryOrder)
	}

	getAge := byName["get_age_v1"]
	if getAge.GoName != "GetAgeV1" {
		t.Errorf("GoName = %q, want GetAgeV1", getAge.GoName)
	}
}

func TestEnumFunctionsDispatchByVariant(t *testing.T) {
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
	fns := typeFunctions(typ)

	byName := map[string]functionDoc{}
	for _, fn := range fns {
		byName[fn.Name] = fn
	}
	if _, ok := byName["get_circle_payload_v1"]; !ok {
		t.Errorf("missing circle payload accessor, got %+v", fns)
	}
	if _, ok := byName["is_dot_v1"]; !ok {
		t.Errorf("missing unit-variant predicate accessor, got %+v", fns)
	}
	if _, ok := byName["get_tag_v1"]; !ok {
		t.Errorf("missing get_tag_v1")
	}
}
