package emitter

import "github.com/blockberries/x07/pkg/schema"

// functionDoc is one exported function of a runtime module: a declarative
// body describing exactly what the function checks or builds (spec §4.3),
// concrete enough for a downstream compiler to lower straight into the
// target runtime without guessing field order, codes, or dispatch rules.
type functionDoc struct {
	Name   string `json:"name"`
	FnKind string `json:"fn_kind"`
	Field  string `json:"field,omitempty"`
	// GoName hints at the identifier a Go-targeting consumer of this AST
	// would use: a fixed literal for the four validate/encode functions,
	// ToPascalCase of the function name for accessors.
	GoName string          `json:"go_name"`
	Body   functionBodyDoc `json:"body"`
}

// functionBodyDoc holds every field a function body might need; only the
// ones relevant to FnKind are populated (omitempty keeps the rest out of
// the canonicalized output).
type functionBodyDoc struct {
	MaxDocBytes        int             `json:"max_doc_bytes,omitempty"`
	Delegate           string          `json:"delegate,omitempty"`
	ExpectKind         string          `json:"expect_kind,omitempty"`
	MaxMapEntries      int             `json:"max_map_entries,omitempty"`
	AllowUnknownFields bool            `json:"allow_unknown_fields,omitempty"`
	EntryOrder         string          `json:"entry_order,omitempty"`
	Fields             []fieldCheckDoc `json:"fields,omitempty"`
	Params             []string        `json:"params,omitempty"`
	ReturnField        string          `json:"return_field,omitempty"`
	Variants           []variantDispatchDoc `json:"variants,omitempty"`
}

type fieldCheckDoc struct {
	Field       string `json:"field"`
	Key         string `json:"key"`
	ID          int    `json:"id"`
	Ty          string `json:"ty"`
	Required    bool   `json:"required"`
	MaxBytes    int    `json:"max_bytes,omitempty"`
	MaxItems    int    `json:"max_items,omitempty"`
	NumberStyle string `json:"number_style,omitempty"`
	MissingCode uint32 `json:"missing_code,omitempty"`
	KindCode    uint32 `json:"kind_code"`
	TooLongCode uint32 `json:"too_long_code,omitempty"`
	BoolCode    uint32 `json:"bool_value_code,omitempty"`
	NumberCode  uint32 `json:"noncanonical_number_code,omitempty"`
}

type variantDispatchDoc struct {
	Variant     string `json:"variant"`
	ID          int    `json:"id"`
	IsUnit      bool   `json:"is_unit"`
	Payload     string `json:"payload,omitempty"`
	NumberStyle string `json:"number_style,omitempty"`
}

// typeFunctions builds every exported function of t's runtime module, in
// the insertion order the emitter imposes (spec §4.3: "insertion-order-
// stable function order imposed by the emitter").
func typeFunctions(t schema.TypeDef) []functionDoc {
	if t.Kind == schema.KindEnum {
		return enumFunctions(t)
	}
	return structFunctions(t)
}

func structFunctions(t schema.TypeDef) []functionDoc {
	fieldChecks := make([]fieldCheckDoc, 0, len(t.Fields))
	params := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		fc := fieldCheckDoc{
			Field: f.Name, Key: f.Name, ID: f.ID, Ty: f.Ty.String(), Required: f.Required,
			MaxBytes: f.MaxBytes, MaxItems: f.MaxItems,
			KindCode:    fieldCode(t.ErrBase, f.ID, offFieldKind),
			TooLongCode: fieldCode(t.ErrBase, f.ID, offFieldTooLong),
		}
		if f.HasNumberStyle {
			fc.NumberStyle = f.NumberStyle.String()
		}
		if f.Required {
			fc.MissingCode = fieldCode(t.ErrBase, f.ID, offFieldMissing)
		}
		if f.Ty.Kind == schema.TyBool {
			fc.BoolCode = fieldCode(t.ErrBase, f.ID, offFieldBoolValue)
		}
		if f.Ty.Kind == schema.TyNumber {
			fc.NumberCode = fieldCode(t.ErrBase, f.ID, offFieldNoncanonicalNumber)
		}
		fieldChecks = append(fieldChecks, fc)
		params = append(params, f.Name)
	}

	fns := []functionDoc{
		{
			Name: "validate_doc_v1", FnKind: "validate_doc", GoName: "ValidateDocV1",
			Body: functionBodyDoc{MaxDocBytes: t.Budgets.MaxDocBytes, Delegate: "validate_value_v1"},
		},
		{
			Name: "validate_value_v1", FnKind: "validate_value", GoName: "ValidateValueV1",
			Body: functionBodyDoc{
				ExpectKind: "map", MaxMapEntries: t.Budgets.MaxMapEntries,
				AllowUnknownFields: false, Fields: fieldChecks,
			},
		},
		{
			Name: "encode_value_v1", FnKind: "encode_value", GoName: "EncodeValueV1",
			Body: functionBodyDoc{EntryOrder: "declared_field_order", Fields: fieldChecks, Params: params},
		},
		{
			Name: "encode_doc_v1", FnKind: "encode_doc", GoName: "EncodeDocV1",
			Body: functionBodyDoc{Delegate: "encode_value_v1", Params: params},
		},
	}

	for _, f := range t.Fields {
		fns = append(fns, fieldAccessors(f)...)
	}
	return fns
}

func fieldAccessors(f schema.FieldDef) []functionDoc {
	var name, kind string
	switch f.Ty.Kind {
	case schema.TyBool, schema.TyNumber:
		name, kind = "get_"+f.Name+"_v1", "accessor_value"
	case schema.TyBytes:
		name, kind = "get_"+f.Name+"_view_v1", "accessor_view"
	default: // TyStruct, TySeq
		name, kind = "get_"+f.Name+"_value_view_v1", "accessor_value_view"
	}
	out := []functionDoc{
		{Name: name, FnKind: kind, Field: f.Name, GoName: ToPascalCase(name), Body: functionBodyDoc{ReturnField: f.Name}},
	}
	if !f.Required {
		hasName := "has_" + f.Name + "_v1"
		out = append(out, functionDoc{Name: hasName, FnKind: "accessor_has", Field: f.Name, GoName: ToPascalCase(hasName), Body: functionBodyDoc{ReturnField: f.Name}})
	}
	return out
}

func enumFunctions(t schema.TypeDef) []functionDoc {
	variants := make([]variantDispatchDoc, 0, len(t.Variants))
	for _, v := range t.Variants {
		vd := variantDispatchDoc{Variant: v.Name, ID: v.ID, IsUnit: v.IsUnit}
		if !v.IsUnit {
			vd.Payload = v.Payload.String()
			if v.HasNumberStyle {
				vd.NumberStyle = v.NumberStyle.String()
			}
		}
		variants = append(variants, vd)
	}

	fns := []functionDoc{
		{
			Name: "validate_doc_v1", FnKind: "validate_doc", GoName: "ValidateDocV1",
			Body: functionBodyDoc{MaxDocBytes: t.Budgets.MaxDocBytes, Delegate: "validate_value_v1"},
		},
		{
			Name: "validate_value_v1", FnKind: "validate_value", GoName: "ValidateValueV1",
			Body: functionBodyDoc{ExpectKind: "seq", Variants: variants},
		},
		{
			Name: "encode_value_v1", FnKind: "encode_value", GoName: "EncodeValueV1",
			Body: functionBodyDoc{EntryOrder: "tag_then_payload", Variants: variants, Params: []string{"variant", "payload"}},
		},
		{
			Name: "encode_doc_v1", FnKind: "encode_doc", GoName: "EncodeDocV1",
			Body: functionBodyDoc{Delegate: "encode_value_v1", Params: []string{"variant", "payload"}},
		},
		{Name: "get_tag_v1", FnKind: "accessor_tag", GoName: "GetTagV1", Body: functionBodyDoc{Variants: variants}},
	}
	for _, v := range t.Variants {
		if v.IsUnit {
			fns = append(fns, functionDoc{
				Name: "is_" + v.Name + "_v1", FnKind: "accessor_variant_is", Field: v.Name,
				GoName: ToPascalCase("is_" + v.Name + "_v1"), Body: functionBodyDoc{ReturnField: v.Name},
			})
			continue
		}
		payloadKind := "accessor_payload_value"
		name := "get_" + v.Name + "_payload_v1"
		if v.Payload.Kind == schema.TyBytes {
			payloadKind, name = "accessor_payload_view", "get_"+v.Name+"_payload_view_v1"
		} else if v.Payload.Kind == schema.TyStruct || v.Payload.Kind == schema.TySeq {
			payloadKind, name = "accessor_payload_value_view", "get_"+v.Name+"_payload_value_view_v1"
		}
		fns = append(fns, functionDoc{Name: name, FnKind: payloadKind, Field: v.Name, GoName: ToPascalCase(name), Body: functionBodyDoc{ReturnField: v.Name}})
	}
	return fns
}
