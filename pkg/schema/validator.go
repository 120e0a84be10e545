package schema

import "fmt"

// validateExamples implements spec §4.2 step 6 / §3.3: every example must
// match its declared type. Struct examples' keys must be known and every
// required field must be present; enum examples must select a known
// variant and supply a payload iff the variant is non-unit.
func validateExamples(schema *Schema, idx *TypeIndex) error {
	for i := range schema.Types {
		t := &schema.Types[i]
		for j, ex := range t.Examples {
			pos := Position{Path: fmt.Sprintf("%s.examples[%d]", t.Pos, j)}
			switch t.Kind {
			case KindStruct:
				if err := validateStructExample(pos, t, ex); err != nil {
					return err
				}
			case KindEnum:
				if err := validateEnumExample(pos, t, ex); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateStructExample(pos Position, t *TypeDef, ex ExampleDef) error {
	if ex.Struct == nil {
		return newError(pos, ErrExampleMismatch, "struct type %s requires an object-keyed example", t.TypeID)
	}
	byName := make(map[string]FieldDef, len(t.Fields))
	for _, f := range t.Fields {
		byName[f.Name] = f
	}
	for key := range ex.Struct {
		if _, ok := byName[key]; !ok {
			return newError(pos, ErrExampleMismatch, "unknown field %q in example %q of %s", key, ex.Name, t.TypeID)
		}
	}
	for _, f := range t.Fields {
		if _, present := ex.Struct[f.Name]; f.Required && !present {
			return newError(pos, ErrExampleMismatch, "missing required field %q in example %q of %s", f.Name, ex.Name, t.TypeID)
		}
	}
	return nil
}

func validateEnumExample(pos Position, t *TypeDef, ex ExampleDef) error {
	if ex.Enum == nil {
		return newError(pos, ErrExampleMismatch, "enum type %s requires a [variant] or [variant, payload] example", t.TypeID)
	}
	var variant *VariantDef
	for i := range t.Variants {
		if t.Variants[i].Name == ex.Enum.Variant {
			variant = &t.Variants[i]
			break
		}
	}
	if variant == nil {
		return newError(pos, ErrExampleMismatch, "unknown variant %q in example %q of %s", ex.Enum.Variant, ex.Name, t.TypeID)
	}
	if variant.IsUnit && ex.Enum.HasPayload {
		return newError(pos, ErrExampleMismatch, "unit variant %q must not carry a payload (example %q of %s)", variant.Name, ex.Name, t.TypeID)
	}
	if !variant.IsUnit && !ex.Enum.HasPayload {
		return newError(pos, ErrExampleMismatch, "non-unit variant %q requires a payload (example %q of %s)", variant.Name, ex.Name, t.TypeID)
	}
	return nil
}
