package emitter

import (
	"strconv"

	"github.com/blockberries/x07/pkg/schema"
)

// Error code offsets (spec §3.3 "Invariants").
const (
	offDocInvalid  = 1
	offRootKind    = 2
	offDocTooLarge = 3

	offEnumTagInvalid     = 20
	offEnumPayloadInvalid = 21

	offUnknownField      = 30
	offNoncanonicalMap   = 31
	offDupField          = 32
	offMapTooManyEntries = 33

	fieldCodeStride = 100

	offFieldMissing            = 10
	offFieldKind               = 11
	offFieldTooLong            = 12
	offFieldBoolValue          = 13
	offFieldNoncanonicalNumber = 14
)

// constantDoc is one exported numeric or string constant of a runtime
// module (spec §4.3 "Constants").
type constantDoc struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// fieldCode computes err_base + field_id*100 + offset (spec §3.3).
func fieldCode(errBase, fieldID, offset int) uint32 {
	return uint32(errBase + fieldID*fieldCodeStride + offset)
}

// typeConstants builds every numeric constant a runtime module exports for
// t, in a stable declared order: shape_note_v1, err_base_v1, the type-level
// error codes, then per-field (struct) or per-variant-independent (enum)
// codes.
func typeConstants(t schema.TypeDef) []constantDoc {
	out := []constantDoc{
		{Name: "shape_note_v1", Value: t.Kind.String() + ":" + t.TypeID + "@v" + strconv.Itoa(t.Version)},
		{Name: "err_base_v1", Value: uint32(t.ErrBase)},
		{Name: "code_doc_invalid", Value: uint32(t.ErrBase + offDocInvalid)},
		{Name: "code_root_kind", Value: uint32(t.ErrBase + offRootKind)},
		{Name: "code_doc_too_large", Value: uint32(t.ErrBase + offDocTooLarge)},
	}
	switch t.Kind {
	case schema.KindEnum:
		out = append(out,
			constantDoc{Name: "code_enum_tag_invalid", Value: uint32(t.ErrBase + offEnumTagInvalid)},
			constantDoc{Name: "code_enum_payload_invalid", Value: uint32(t.ErrBase + offEnumPayloadInvalid)},
		)
	case schema.KindStruct:
		out = append(out,
			constantDoc{Name: "code_unknown_field", Value: uint32(t.ErrBase + offUnknownField)},
			constantDoc{Name: "code_noncanonical_map", Value: uint32(t.ErrBase + offNoncanonicalMap)},
			constantDoc{Name: "code_dup_field", Value: uint32(t.ErrBase + offDupField)},
			constantDoc{Name: "code_map_too_many_entries", Value: uint32(t.ErrBase + offMapTooManyEntries)},
		)
		for _, f := range t.Fields {
			out = append(out, constantDoc{Name: "code_kind_" + f.Name, Value: fieldCode(t.ErrBase, f.ID, offFieldKind)})
			out = append(out, constantDoc{Name: "code_too_long_" + f.Name, Value: fieldCode(t.ErrBase, f.ID, offFieldTooLong)})
			if f.Required {
				out = append(out, constantDoc{Name: "code_missing_" + f.Name, Value: fieldCode(t.ErrBase, f.ID, offFieldMissing)})
			}
			if f.Ty.Kind == schema.TyBool {
				out = append(out, constantDoc{Name: "code_bool_value_" + f.Name, Value: fieldCode(t.ErrBase, f.ID, offFieldBoolValue)})
			}
			if f.Ty.Kind == schema.TyNumber {
				out = append(out, constantDoc{Name: "code_noncanonical_number_" + f.Name, Value: fieldCode(t.ErrBase, f.ID, offFieldNoncanonicalNumber)})
			}
		}
	}
	return out
}
