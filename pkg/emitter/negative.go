package emitter

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/blockberries/x07/pkg/docvalue"
	"github.com/blockberries/x07/pkg/schema"
)

// allowNumberStyle mirrors normalize.go's own gate on number_style support
// (spec §4.2 step 2: "number_style only valid for specrows@0.2.0").
func allowNumberStyle(schemaVersion string) bool {
	return strings.HasSuffix(schemaVersion, "@0.2.0")
}

// negativeVector is one entry of a tests module's test_negative_v1 export
// (spec §4.3 "Tests module"; spec §8 Testable Property 4): a corrupted doc
// and the exact error code validate_doc_v1 is expected to return for it.
type negativeVector struct {
	Name         string `json:"name"`
	Corruption   string `json:"corruption"`
	DocBase64    string `json:"doc_base64"`
	ExpectedCode uint32 `json:"expected_code"`
}

// baseGoldenDoc picks (or, absent any example, synthesizes) the doc every
// negative vector corrupts a copy of.
func baseGoldenDoc(t schema.TypeDef) ([]byte, error) {
	for _, ex := range t.Examples {
		doc, err := buildGoldenDoc(t, ex)
		if err == nil {
			return doc, nil
		}
	}
	return synthesizeDoc(t)
}

// synthesizeDoc builds a minimal valid doc straight from field/variant
// metadata when a type has no usable example (every required field gets
// its type's zero value; every optional field is omitted).
func synthesizeDoc(t schema.TypeDef) ([]byte, error) {
	switch t.Kind {
	case schema.KindStruct:
		entries := make([]docvalue.MapEntryBuild, 0, len(t.Fields))
		for _, f := range t.Fields {
			if !f.Required {
				continue
			}
			v, err := zeroValue(f.Ty)
			if err != nil {
				return nil, err
			}
			entries = append(entries, docvalue.MapEntryBuild{Key: []byte(f.Name), Value: v})
		}
		return docvalue.DocOk(docvalue.ValueMapFromEntries(entries)), nil
	case schema.KindEnum:
		if len(t.Variants) == 0 {
			return nil, fmt.Errorf("type %s has no variants to synthesize a doc from", t.TypeID)
		}
		v := t.Variants[0]
		tag := docvalue.ValueNumberBytes([]byte(fmt.Sprintf("%d", v.ID)))
		payload := docvalue.ValueNullBytes()
		if !v.IsUnit {
			p, err := zeroValue(v.Payload)
			if err != nil {
				return nil, err
			}
			payload = p
		}
		return docvalue.DocOk(docvalue.ValueSeqFromElems([][]byte{tag, payload})), nil
	default:
		return nil, fmt.Errorf("unknown type kind for %s", t.TypeID)
	}
}

func zeroValue(ty schema.FieldTy) ([]byte, error) {
	switch ty.Kind {
	case schema.TyBool:
		return docvalue.ValueBoolBytes(false), nil
	case schema.TyNumber:
		return docvalue.ValueNumberBytes([]byte("0")), nil
	case schema.TyBytes:
		return docvalue.ValueStringBytes(nil), nil
	case schema.TySeq:
		return docvalue.ValueSeqFromElems(nil), nil
	default:
		return nil, fmt.Errorf("synthesizeDoc: unsupported field type %s", ty.String())
	}
}

// typeNegativeVectors builds test_negative_v1 for t (spec §4.3, §8 Property
// 4): tag corruption, root-kind corruption, and — for struct types that
// have the relevant shape — unknown field, duplicate key, noncanonical map
// order, an overlong field, and (0.2.0 schemas only) a noncanonical number.
func typeNegativeVectors(s *schema.Schema, t schema.TypeDef) ([]negativeVector, error) {
	base, err := baseGoldenDoc(t)
	if err != nil {
		return nil, fmt.Errorf("type %s: building base doc for negative vectors: %w", t.TypeID, err)
	}

	vecs := []negativeVector{
		corruptTag(base, uint32(t.ErrBase+offDocInvalid)),
		corruptRootKind(base, uint32(t.ErrBase+offRootKind)),
	}

	if t.Kind == schema.KindStruct {
		vecs = append(vecs, structNegativeVectors(s, t, base)...)
	} else {
		vecs = append(vecs, enumNegativeVectors(t, base)...)
	}
	return vecs, nil
}

func corruptTag(base []byte, expectedCode uint32) negativeVector {
	doc := append([]byte(nil), base...)
	doc[0] = 2 // neither DocTagOk(1) nor DocTagErr(0)
	return negativeVector{Name: "tag_corruption", Corruption: "doc_tag", DocBase64: encodeDocBase64(doc), ExpectedCode: expectedCode}
}

func corruptRootKind(base []byte, expectedCode uint32) negativeVector {
	doc := append([]byte(nil), base...)
	valueOff, err := docvalue.DocValueOffset(doc)
	if err == nil && valueOff < len(doc) {
		doc[valueOff] = doc[valueOff] + 1 // still a valid Kind byte range in practice (0..5)
		if doc[valueOff] > byte(docvalue.KindMap) {
			doc[valueOff] = byte(docvalue.KindNull)
		}
	}
	return negativeVector{Name: "root_kind_corruption", Corruption: "root_kind", DocBase64: encodeDocBase64(doc), ExpectedCode: expectedCode}
}

func structNegativeVectors(s *schema.Schema, t schema.TypeDef, base []byte) []negativeVector {
	var out []negativeVector

	if !s.Defaults.AllowUnknownFields {
		if v, ok := withExtraMapEntry(base, t, "__unknown_field__", uint32(t.ErrBase+offUnknownField)); ok {
			out = append(out, v)
		}
	}
	if v, ok := withDuplicateMapKey(base, t, uint32(t.ErrBase+offDupField)); ok {
		out = append(out, v)
	}
	if v, ok := withReorderedMapEntries(base, t, uint32(t.ErrBase+offNoncanonicalMap)); ok {
		out = append(out, v)
	}
	if v, ok := withOverlongField(base, t); ok {
		out = append(out, v)
	}
	if allowNumberStyle(s.SchemaVersion) {
		if v, ok := withNoncanonicalNumber(base, t); ok {
			out = append(out, v)
		}
	}
	return out
}

func enumNegativeVectors(t schema.TypeDef, base []byte) []negativeVector {
	var out []negativeVector
	valueOff, err := docvalue.DocValueOffset(base)
	if err != nil {
		return out
	}
	// enum_tag_invalid: rewrite the tag element to a number no variant owns.
	if seqLen, err := docvalue.SeqLen(base, valueOff); err == nil && seqLen == 2 {
		unknownTag := 0
		for _, v := range t.Variants {
			if v.ID > unknownTag {
				unknownTag = v.ID
			}
		}
		unknownTag++
		tagVal := docvalue.ValueNumberBytes([]byte(fmt.Sprintf("%d", unknownTag)))
		payloadOff, err := docvalue.SeqGet(base, valueOff, 1)
		if err == nil {
			payloadEnd, err := docvalue.SkipValue(base, payloadOff)
			if err == nil {
				doc := append([]byte(nil), base[:valueOff]...)
				doc = append(doc, docvalue.ValueSeqFromElems([][]byte{tagVal, base[payloadOff:payloadEnd]})...)
				out = append(out, negativeVector{
					Name: "enum_tag_invalid", Corruption: "enum_tag",
					DocBase64: encodeDocBase64(doc), ExpectedCode: uint32(t.ErrBase + offEnumTagInvalid),
				})
			}
		}
	}
	return out
}

// withExtraMapEntry appends an extra entry whose key sorts after every
// existing key, violating `allow_unknown_fields=false`.
func withExtraMapEntry(base []byte, t schema.TypeDef, extraKey string, expectedCode uint32) (negativeVector, bool) {
	entries, ok := decodeMapEntries(base)
	if !ok {
		return negativeVector{}, false
	}
	entries = append(entries, docvalue.MapEntryBuild{Key: []byte("\xff" + extraKey), Value: docvalue.ValueNullBytes()})
	doc := docvalue.DocOk(docvalue.ValueMapFromEntries(entries))
	return negativeVector{Name: "unknown_field", Corruption: "unknown_field", DocBase64: encodeDocBase64(doc), ExpectedCode: expectedCode}, true
}

func withDuplicateMapKey(base []byte, t schema.TypeDef, expectedCode uint32) (negativeVector, bool) {
	entries, ok := decodeMapEntries(base)
	if !ok || len(entries) == 0 {
		return negativeVector{}, false
	}
	entries = append(entries, docvalue.MapEntryBuild{Key: entries[0].Key, Value: entries[0].Value})
	doc := docvalue.DocOk(docvalue.ValueMapFromEntries(entries))
	return negativeVector{Name: "dup_field", Corruption: "dup_key", DocBase64: encodeDocBase64(doc), ExpectedCode: expectedCode}, true
}

func withReorderedMapEntries(base []byte, t schema.TypeDef, expectedCode uint32) (negativeVector, bool) {
	entries, ok := decodeMapEntries(base)
	if !ok || len(entries) < 2 {
		return negativeVector{}, false
	}
	entries[0], entries[1] = entries[1], entries[0]
	doc := docvalue.DocOk(docvalue.ValueMapFromEntries(entries))
	return negativeVector{Name: "noncanonical_map_order", Corruption: "map_order", DocBase64: encodeDocBase64(doc), ExpectedCode: expectedCode}, true
}

// withOverlongField replaces the first bytes-or-number field with
// max_bytes>0 with a value one byte past its budget.
func withOverlongField(base []byte, t schema.TypeDef) (negativeVector, bool) {
	var target *schema.FieldDef
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.MaxBytes > 0 && (f.Ty.Kind == schema.TyBytes || f.Ty.Kind == schema.TyNumber) {
			target = f
			break
		}
	}
	if target == nil {
		return negativeVector{}, false
	}
	entries, ok := decodeMapEntries(base)
	if !ok {
		return negativeVector{}, false
	}
	overlong := bytes.Repeat([]byte("9"), target.MaxBytes+1)
	var newValue []byte
	if target.Ty.Kind == schema.TyNumber {
		newValue = docvalue.ValueNumberBytes(overlong)
	} else {
		newValue = docvalue.ValueStringBytes(overlong)
	}
	found := false
	for i := range entries {
		if string(entries[i].Key) == target.Name {
			entries[i].Value = newValue
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, docvalue.MapEntryBuild{Key: []byte(target.Name), Value: newValue})
		docvalue.SortMapEntries(entries)
	}
	doc := docvalue.DocOk(docvalue.ValueMapFromEntries(entries))
	return negativeVector{
		Name: "overlong_field_" + target.Name, Corruption: "overlong_field",
		DocBase64: encodeDocBase64(doc), ExpectedCode: fieldCode(t.ErrBase, target.ID, offFieldTooLong),
	}, true
}

// withNoncanonicalNumber replaces the first number field with the spec's
// own example of a noncanonical int_ascii_v1 rendering, "-0" (spec §8
// Scenario 5).
func withNoncanonicalNumber(base []byte, t schema.TypeDef) (negativeVector, bool) {
	var target *schema.FieldDef
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Ty.Kind == schema.TyNumber {
			target = f
			break
		}
	}
	if target == nil {
		return negativeVector{}, false
	}
	entries, ok := decodeMapEntries(base)
	if !ok {
		return negativeVector{}, false
	}
	newValue := docvalue.ValueNumberBytes([]byte("-0"))
	found := false
	for i := range entries {
		if string(entries[i].Key) == target.Name {
			entries[i].Value = newValue
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, docvalue.MapEntryBuild{Key: []byte(target.Name), Value: newValue})
		docvalue.SortMapEntries(entries)
	}
	doc := docvalue.DocOk(docvalue.ValueMapFromEntries(entries))
	return negativeVector{
		Name: "noncanonical_number_" + target.Name, Corruption: "noncanonical_number",
		DocBase64: encodeDocBase64(doc), ExpectedCode: fieldCode(t.ErrBase, target.ID, offFieldNoncanonicalNumber),
	}, true
}

// decodeMapEntries walks an Ok struct doc's map value back into builder
// entries so a corruption can rewrite one and re-assemble the map.
func decodeMapEntries(doc []byte) ([]docvalue.MapEntryBuild, bool) {
	off, err := docvalue.DocValueOffset(doc)
	if err != nil {
		return nil, false
	}
	n, err := docvalue.MapLen(doc, off)
	if err != nil {
		return nil, false
	}
	entries := make([]docvalue.MapEntryBuild, 0, n)
	err = docvalue.MapEntries(doc, off, func(e docvalue.MapEntry) error {
		end, err := docvalue.SkipValue(doc, e.ValueOff)
		if err != nil {
			return err
		}
		entries = append(entries, docvalue.MapEntryBuild{
			Key:   append([]byte(nil), e.Key...),
			Value: append([]byte(nil), doc[e.ValueOff:end]...),
		})
		return nil
	})
	if err != nil {
		return nil, false
	}
	return entries, true
}

func encodeDocBase64(doc []byte) string {
	return base64.StdEncoding.EncodeToString(doc)
}
