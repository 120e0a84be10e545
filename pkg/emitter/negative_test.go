package emitter

import (
	"encoding/base64"
	"testing"

	"github.com/blockberries/x07/pkg/docvalue"
	"github.com/blockberries/x07/pkg/schema"
)

func TestTypeNegativeVectorsStructCoversAllCorruptions(t *testing.T) {
	s := demoSchema(t)
	typ := s.Types[0] // demo.widget: err_base 1000, name (bytes, max_bytes 64, required), age (number, max_bytes 8, required)

	vecs, err := typeNegativeVectors(s, typ)
	if err != nil {
		t.Fatalf("typeNegativeVectors: %v", err)
	}

	byName := map[string]negativeVector{}
	for _, v := range vecs {
		byName[v.Name] = v
	}

	checkCode(t, byName, "tag_corruption", uint32(typ.ErrBase+offDocInvalid))
	checkCode(t, byName, "root_kind_corruption", uint32(typ.ErrBase+offRootKind))
	checkCode(t, byName, "unknown_field", uint32(typ.ErrBase+offUnknownField))
	checkCode(t, byName, "dup_field", uint32(typ.ErrBase+offDupField))
	checkCode(t, byName, "noncanonical_map_order", uint32(typ.ErrBase+offNoncanonicalMap))
	checkCode(t, byName, "overlong_field_name", fieldCode(typ.ErrBase, 1, offFieldTooLong))

	// demo's schema_version is specrows@0.1.0: no noncanonical-number vector expected.
	if _, ok := byName["noncanonical_number_age"]; ok {
		t.Errorf("0.1.0 schema should not emit a noncanonical_number vector")
	}

	for name, v := range byName {
		raw, err := base64.StdEncoding.DecodeString(v.DocBase64)
		if err != nil {
			t.Fatalf("%s: doc_base64 does not decode: %v", name, err)
		}
		if len(raw) == 0 {
			t.Errorf("%s: empty corrupted doc", name)
		}
	}
}

func checkCode(t *testing.T, byName map[string]negativeVector, name string, want uint32) {
	t.Helper()
	v, ok := byName[name]
	if !ok {
		t.Errorf("missing negative vector %s", name)
		return
	}
	if v.ExpectedCode != want {
		t.Errorf("%s expected_code = %d, want %d", name, v.ExpectedCode, want)
	}
}

func TestTypeNegativeVectorsNoncanonicalNumberOn020Schema(t *testing.T) {
	data := []byte(`{
		"schema_version": "specrows@0.2.0",
		"package": {"name": "demo", "version": "1.0.0"},
		"defaults": {
			"codec": "docvalue_v1",
			"max_doc_bytes": 4096, "max_depth": 8, "max_map_entries": 32,
			"max_seq_items": 32, "max_string_bytes": 1024, "max_number_bytes": 32,
			"allow_unknown_fields": false
		},
		"types": [
			{
				"type_id": "demo.counter", "version": 1, "kind": "struct", "err_base": 3000,
				"fields": [
					{"id": 1, "name": "value", "ty": "number", "required": true, "max_bytes": 8}
				],
				"examples": [
					{"name": "basic", "fields": {"value": "\"7\""}}
				]
			}
		]
	}`)
	s, err := schema.LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	typ := s.Types[0]
	vecs, err := typeNegativeVectors(s, typ)
	if err != nil {
		t.Fatalf("typeNegativeVectors: %v", err)
	}
	var found *negativeVector
	for i := range vecs {
		if vecs[i].Name == "noncanonical_number_value" {
			found = &vecs[i]
		}
	}
	if found == nil {
		t.Fatalf("missing noncanonical_number_value vector on 0.2.0 schema: %+v", vecs)
	}
	wantCode := fieldCode(typ.ErrBase, 1, offFieldNoncanonicalNumber)
	if found.ExpectedCode != wantCode {
		t.Errorf("expected_code = %d, want %d", found.ExpectedCode, wantCode)
	}
}

func TestTypeNegativeVectorsEnumTagInvalid(t *testing.T) {
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
				],
				"examples": [
					{"name": "a_dot", "variant": "dot"}
				]
			}
		]
	}`)
	s, err := schema.LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	typ := s.Types[0]
	vecs, err := typeNegativeVectors(s, typ)
	if err != nil {
		t.Fatalf("typeNegativeVectors: %v", err)
	}
	var found *negativeVector
	for i := range vecs {
		if vecs[i].Name == "enum_tag_invalid" {
			found = &vecs[i]
		}
	}
	if found == nil {
		t.Fatalf("missing enum_tag_invalid vector: %+v", vecs)
	}
	if found.ExpectedCode != uint32(typ.ErrBase+offEnumTagInvalid) {
		t.Errorf("expected_code = %d, want %d", found.ExpectedCode, typ.ErrBase+offEnumTagInvalid)
	}
	raw, err := base64.StdEncoding.DecodeString(found.DocBase64)
	if err != nil {
		t.Fatalf("doc_base64 does not decode: %v", err)
	}
	off, err := docvalue.DocValueOffset(raw)
	if err != nil {
		t.Fatalf("DocValueOffset: %v", err)
	}
	tagOff, err := docvalue.SeqGet(raw, off, 0)
	if err != nil {
		t.Fatalf("SeqGet: %v", err)
	}
	tag, err := docvalue.ValueNumber(raw, tagOff)
	if err != nil {
		t.Fatalf("ValueNumber: %v", err)
	}
	if string(tag) == "1" || string(tag) == "2" {
		t.Errorf("corrupted tag %q still matches a real variant", tag)
	}
}
