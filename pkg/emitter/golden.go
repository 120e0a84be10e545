package emitter

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/blockberries/x07/pkg/docvalue"
	"github.com/blockberries/x07/pkg/schema"
)

// decodeExampleScalar unwraps an example field's raw JSON text fragment —
// already parsed once as part of the surrounding schema document, so its
// Go string content is itself a JSON literal such as `"bob"` or `"7"` —
// into the literal scalar bytes it denotes.
func decodeExampleScalar(raw string) ([]byte, error) {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decoding example value %q: %w", raw, err)
	}
	return []byte(s), nil
}

// encodeScalarValue builds the Value bytes for one bool/number/bytes leaf,
// given its unwrapped literal content.
func encodeScalarValue(ty schema.FieldTy, content []byte) ([]byte, error) {
	switch ty.Kind {
	case schema.TyBool:
		switch string(content) {
		case "true":
			return docvalue.ValueBoolBytes(true), nil
		case "false":
			return docvalue.ValueBoolBytes(false), nil
		default:
			return nil, fmt.Errorf("invalid bool example value %q", content)
		}
	case schema.TyNumber:
		return docvalue.ValueNumberBytes(content), nil
	case schema.TyBytes:
		return docvalue.ValueStringBytes(content), nil
	default:
		return nil, fmt.Errorf("encodeScalarValue: %s is not a leaf type", ty.String())
	}
}

// encodeExampleValue builds the Value bytes for one field/variant example,
// given its raw (still-wrapped) JSON text. Seq-of-leaf fields are supported
// by unwrapping a JSON array of further raw fragments; struct-typed and
// seq-of-compound fields are outside golden-doc generation's grounding (no
// example in this schema dialect carries enough shape to build them) and
// return an error naming the limitation.
func encodeExampleValue(ty schema.FieldTy, raw string) ([]byte, error) {
	switch ty.Kind {
	case schema.TyBool, schema.TyNumber, schema.TyBytes:
		content, err := decodeExampleScalar(raw)
		if err != nil {
			return nil, err
		}
		return encodeScalarValue(ty, content)
	case schema.TySeq:
		if ty.Elem == nil || ty.Elem.Kind == schema.TySeq || ty.Elem.Kind == schema.TyStruct {
			return nil, fmt.Errorf("golden-doc generation does not support seq:%s example elements", ty.Elem)
		}
		var elemsRaw []string
		if err := json.Unmarshal([]byte(raw), &elemsRaw); err != nil {
			return nil, fmt.Errorf("decoding seq example %q: %w", raw, err)
		}
		elems := make([][]byte, 0, len(elemsRaw))
		for _, er := range elemsRaw {
			content, err := decodeExampleScalar(er)
			if err != nil {
				return nil, err
			}
			v, err := encodeScalarValue(*ty.Elem, content)
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		}
		return docvalue.ValueSeqFromElems(elems), nil
	default:
		return nil, fmt.Errorf("golden-doc generation does not support struct-typed example fields (%s)", ty.String())
	}
}

// buildGoldenDoc renders ex's exact wire bytes (spec §4.3 "golden_doc"; spec
// §8 Testable Property 3). Map entries are assembled in declared field
// order per the encoder's own contract (spec §4.3 "the emitter chooses the
// simpler contract: declared field order is used for entry assembly").
func buildGoldenDoc(t schema.TypeDef, ex schema.ExampleDef) ([]byte, error) {
	switch t.Kind {
	case schema.KindStruct:
		return buildGoldenDocStruct(t, ex)
	case schema.KindEnum:
		return buildGoldenDocEnum(t, ex)
	default:
		return nil, fmt.Errorf("unknown type kind for %s", t.TypeID)
	}
}

func buildGoldenDocStruct(t schema.TypeDef, ex schema.ExampleDef) ([]byte, error) {
	entries := make([]docvalue.MapEntryBuild, 0, len(t.Fields))
	for _, f := range t.Fields { // t.Fields is already ordered by numeric id (spec §4.2 step 4)
		raw, present := ex.Struct[f.Name]
		if !present {
			continue
		}
		val, err := encodeExampleValue(f.Ty, raw)
		if err != nil {
			return nil, fmt.Errorf("type %s example %q field %q: %w", t.TypeID, ex.Name, f.Name, err)
		}
		entries = append(entries, docvalue.MapEntryBuild{Key: []byte(f.Name), Value: val})
	}
	return docvalue.DocOk(docvalue.ValueMapFromEntries(entries)), nil
}

func buildGoldenDocEnum(t schema.TypeDef, ex schema.ExampleDef) ([]byte, error) {
	if ex.Enum == nil {
		return nil, fmt.Errorf("type %s example %q: enum type requires an enum example", t.TypeID, ex.Name)
	}
	variant, ok := findVariant(t, ex.Enum.Variant)
	if !ok {
		return nil, fmt.Errorf("type %s example %q: unknown variant %q", t.TypeID, ex.Name, ex.Enum.Variant)
	}
	tagValue := docvalue.ValueNumberBytes([]byte(strconv.Itoa(variant.ID)))
	var payloadValue []byte
	if variant.IsUnit {
		payloadValue = docvalue.ValueNullBytes()
	} else {
		v, err := encodeExampleValue(variant.Payload, ex.Enum.PayloadValue)
		if err != nil {
			return nil, fmt.Errorf("type %s example %q variant %q: %w", t.TypeID, ex.Name, variant.Name, err)
		}
		payloadValue = v
	}
	return docvalue.DocOk(docvalue.ValueSeqFromElems([][]byte{tagValue, payloadValue})), nil
}

func findVariant(t schema.TypeDef, name string) (schema.VariantDef, bool) {
	for _, v := range t.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return schema.VariantDef{}, false
}
