package emitter

import (
	"testing"

	"github.com/blockberries/x07/pkg/docvalue"
	"github.com/blockberries/x07/pkg/schema"
)

// TestBuildGoldenDocStructRoundTrip reproduces the struct roundtrip
// scenario (spec §8 Scenario 1): the golden doc must be an Ok doc whose
// root map decodes back to the example's field values.
func TestBuildGoldenDocStructRoundTrip(t *testing.T) {
	s := demoSchema(t)
	typ := s.Types[0] // demo.widget: name (bytes), age (number)
	ex := typ.Examples[0]

	doc, err := buildGoldenDoc(typ, ex)
	if err != nil {
		t.Fatalf("buildGoldenDoc: %v", err)
	}

	off, err := docvalue.DocValueOffset(doc)
	if err != nil {
		t.Fatalf("DocValueOffset: %v", err)
	}
	kind, err := docvalue.KindAt(doc, off)
	if err != nil || kind != docvalue.KindMap {
		t.Fatalf("root kind = %v, err %v; want map", kind, err)
	}

	nameOff, err := docvalue.MapFind(doc, off, []byte("name"))
	if err != nil {
		t.Fatalf("MapFind name: %v", err)
	}
	name, err := docvalue.ValueString(doc, nameOff)
	if err != nil || string(name) != "bob" {
		t.Errorf("name = %q, err %v; want bob", name, err)
	}

	ageOff, err := docvalue.MapFind(doc, off, []byte("age"))
	if err != nil {
		t.Fatalf("MapFind age: %v", err)
	}
	age, err := docvalue.ValueNumber(doc, ageOff)
	if err != nil || string(age) != "30" {
		t.Errorf("age = %q, err %v; want 30", age, err)
	}
}

func TestBuildGoldenDocEnum(t *testing.T) {
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
					{"name": "a_circle", "variant": "circle", "has_payload": true, "payload": "\"42\""}
				]
			}
		]
	}`)
	s, err := schema.LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	typ := s.Types[0]
	ex := typ.Examples[0]

	doc, err := buildGoldenDoc(typ, ex)
	if err != nil {
		t.Fatalf("buildGoldenDoc: %v", err)
	}
	off, err := docvalue.DocValueOffset(doc)
	if err != nil {
		t.Fatalf("DocValueOffset: %v", err)
	}
	n, err := docvalue.SeqLen(doc, off)
	if err != nil || n != 2 {
		t.Fatalf("SeqLen = %d, err %v; want 2", n, err)
	}
	tagOff, err := docvalue.SeqGet(doc, off, 0)
	if err != nil {
		t.Fatalf("SeqGet tag: %v", err)
	}
	tag, err := docvalue.ValueNumber(doc, tagOff)
	if err != nil || string(tag) != "1" {
		t.Errorf("tag = %q, err %v; want 1 (circle)", tag, err)
	}
	payloadOff, err := docvalue.SeqGet(doc, off, 1)
	if err != nil {
		t.Fatalf("SeqGet payload: %v", err)
	}
	payload, err := docvalue.ValueNumber(doc, payloadOff)
	if err != nil || string(payload) != "42" {
		t.Errorf("payload = %q, err %v; want 42", payload, err)
	}
}
