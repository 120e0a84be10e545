package schema

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

var acceptedSchemaVersions = map[string]bool{
	"specrows@0.1.0": true,
	"specrows@0.2.0": true,
}

// normalize implements spec §4.2 steps 1, 3, 4, 5, 6 over an already-folded
// types[] list (step 2 happens in foldRows before this is called).
func normalize(schemaVersion string, pkg rawPackage, defaults rawDefaults, rawTypes []rawType) (*Schema, error) {
	if err := validateSchemaVersion(schemaVersion); err != nil {
		return nil, err
	}
	allowNumberStyle := strings.HasSuffix(schemaVersion, "@0.2.0")

	def := Defaults{
		Codec:              defaults.Codec,
		Budgets:            defaults.rawBudgetsEmbed.toBudgets(),
		AllowUnknownFields: defaults.AllowUnknownFields,
	}
	if defaults.NumberStyleDefaultV1 != nil {
		if !allowNumberStyle {
			return nil, newError(Position{Path: "defaults.number_style_default_v1"}, ErrUnsupportedVersion,
				"number_style_default_v1 only valid for specrows@0.2.0")
		}
		style, ok := ParseNumberStyle(*defaults.NumberStyleDefaultV1)
		if !ok {
			return nil, newError(Position{Path: "defaults.number_style_default_v1"}, ErrInvalidFieldTy, "%q", *defaults.NumberStyleDefaultV1)
		}
		def.NumberStyleDefaultV1 = style
		def.HasNumberStyleDefault = true
	}

	types := make([]TypeDef, 0, len(rawTypes))
	seen := map[string]bool{}
	for i, rt := range rawTypes {
		pos := Position{Path: fmt.Sprintf("types[%d]", i)}
		if seen[rt.TypeID] {
			return nil, newError(pos, ErrDuplicateTypeID, "%s", rt.TypeID)
		}
		seen[rt.TypeID] = true

		td, err := normalizeType(pos, rt, def, allowNumberStyle)
		if err != nil {
			return nil, err
		}
		types = append(types, *td)
	}

	schema := &Schema{
		SchemaVersion: schemaVersion,
		Package:       Package{Name: pkg.Name, Version: pkg.Version},
		Defaults:      def,
		Types:         types,
	}

	if err := deriveModuleIDs(schema); err != nil {
		return nil, err
	}

	idx := newTypeIndex(schema.Types)
	if err := checkGraph(schema, idx); err != nil {
		return nil, err
	}
	if err := validateExamples(schema, idx); err != nil {
		return nil, err
	}

	return schema, nil
}

func validateSchemaVersion(v string) error {
	if acceptedSchemaVersions[v] {
		return nil
	}
	parts := strings.SplitN(v, "@", 2)
	if len(parts) == 2 && semver.IsValid("v"+parts[1]) {
		return newError(Position{Path: "schema_version"}, ErrUnsupportedVersion,
			"%q is a valid version tag but not one of the two accepted schema versions", v)
	}
	return newError(Position{Path: "schema_version"}, ErrUnsupportedVersion, "%q is not a valid semantic version", v)
}

func normalizeType(pos Position, rt rawType, def Defaults, allowNumberStyle bool) (*TypeDef, error) {
	var kind Kind
	switch rt.Kind {
	case "struct":
		kind = KindStruct
	case "enum":
		kind = KindEnum
	default:
		return nil, newError(pos, ErrInvalidFieldTy, "unknown kind %q", rt.Kind)
	}
	if rt.TypeID == "" {
		return nil, newError(pos, ErrInvalidFieldTy, "type_id must not be empty")
	}
	if rt.Version < 1 {
		return nil, newError(pos, ErrInvalidFieldTy, "version must be >= 1")
	}
	if rt.ErrBase < 1 {
		return nil, newError(pos, ErrInvalidFieldTy, "err_base must be >= 1")
	}

	budgets := def.Budgets
	if rt.Budgets != nil {
		budgets = rt.Budgets.toBudgets().merge(def.Budgets)
	}

	td := &TypeDef{
		TypeID:  rt.TypeID,
		Version: rt.Version,
		Kind:    kind,
		ErrBase: rt.ErrBase,
		Budgets: budgets,
		Pos:     pos,
	}

	switch kind {
	case KindStruct:
		if len(rt.Variants) > 0 {
			return nil, newError(pos, ErrVariantOnStruct, "%s", rt.TypeID)
		}
		fields, err := normalizeFields(pos, rt.Fields, allowNumberStyle, def)
		if err != nil {
			return nil, err
		}
		td.Fields = fields
	case KindEnum:
		if len(rt.Fields) > 0 {
			return nil, newError(pos, ErrFieldOnEnum, "%s", rt.TypeID)
		}
		variants, err := normalizeVariants(pos, rt.Variants, allowNumberStyle, def)
		if err != nil {
			return nil, err
		}
		td.Variants = variants
	}

	examples, err := normalizeExamples(pos, rt.Examples)
	if err != nil {
		return nil, err
	}
	td.Examples = examples

	return td, nil
}

func normalizeFields(typePos Position, raws []rawField, allowNumberStyle bool, def Defaults) ([]FieldDef, error) {
	fields := make([]FieldDef, 0, len(raws))
	seenIDs := map[int]bool{}
	seenNames := map[string]bool{}
	for i, rf := range raws {
		pos := Position{Path: fmt.Sprintf("%s.fields[%d]", typePos, i)}
		if rf.ID < 1 {
			return nil, newError(pos, ErrInvalidFieldTy, "field id must be >= 1")
		}
		if seenIDs[rf.ID] {
			return nil, newError(pos, ErrDuplicateFieldID, "id=%d", rf.ID)
		}
		seenIDs[rf.ID] = true
		if !isLocalName(rf.Name) {
			return nil, newError(pos, ErrInvalidFieldTy, "name %q is not a valid local name", rf.Name)
		}
		if seenNames[rf.Name] {
			return nil, newError(pos, ErrInvalidFieldTy, "duplicate field name %q", rf.Name)
		}
		seenNames[rf.Name] = true

		ty, err := parseFieldTy(pos, rf.Ty)
		if err != nil {
			return nil, err
		}

		fd := FieldDef{
			ID:       rf.ID,
			Name:     rf.Name,
			Ty:       ty,
			Required: rf.Required,
			MaxBytes: rf.MaxBytes,
			MaxItems: rf.MaxItems,
			Pos:      pos,
		}

		if err := attachNumberStyle(pos, &fd.NumberStyle, &fd.HasNumberStyle, rf.NumberStyle, ty, allowNumberStyle, def); err != nil {
			return nil, err
		}
		if err := checkBudgetFields(pos, ty, fd.MaxBytes, fd.MaxItems); err != nil {
			return nil, err
		}

		fields = append(fields, fd)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].ID < fields[j].ID })
	return fields, nil
}

func normalizeVariants(typePos Position, raws []rawVariant, allowNumberStyle bool, def Defaults) ([]VariantDef, error) {
	variants := make([]VariantDef, 0, len(raws))
	seenIDs := map[int]bool{}
	seenNames := map[string]bool{}
	for i, rv := range raws {
		pos := Position{Path: fmt.Sprintf("%s.variants[%d]", typePos, i)}
		if rv.ID < 1 {
			return nil, newError(pos, ErrInvalidFieldTy, "variant id must be >= 1")
		}
		if seenIDs[rv.ID] {
			return nil, newError(pos, ErrDuplicateVariantID, "id=%d", rv.ID)
		}
		seenIDs[rv.ID] = true
		if !isLocalName(rv.Name) {
			return nil, newError(pos, ErrInvalidFieldTy, "name %q is not a valid local name", rv.Name)
		}
		if seenNames[rv.Name] {
			return nil, newError(pos, ErrInvalidFieldTy, "duplicate variant name %q", rv.Name)
		}
		seenNames[rv.Name] = true

		vd := VariantDef{ID: rv.ID, Name: rv.Name, Pos: pos, MaxBytes: rv.MaxBytes, MaxItems: rv.MaxItems}
		if rv.Payload == "" || rv.Payload == "unit" {
			vd.IsUnit = true
		} else {
			ty, err := parseFieldTy(pos, rv.Payload)
			if err != nil {
				return nil, err
			}
			vd.Payload = ty
			if err := attachNumberStyle(pos, &vd.NumberStyle, &vd.HasNumberStyle, rv.NumberStyle, ty, allowNumberStyle, def); err != nil {
				return nil, err
			}
			if err := checkBudgetFields(pos, ty, rv.MaxBytes, rv.MaxItems); err != nil {
				return nil, err
			}
		}
		variants = append(variants, vd)
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i].ID < variants[j].ID })
	return variants, nil
}

func attachNumberStyle(pos Position, dst *NumberStyle, has *bool, raw *string, ty FieldTy, allowNumberStyle bool, def Defaults) error {
	if raw != nil {
		if !allowNumberStyle {
			return newError(pos, ErrUnsupportedVersion, "number_style only valid for specrows@0.2.0")
		}
		if ty.Kind != TyNumber {
			return newError(pos, ErrInvalidFieldTy, "number_style only valid on number-typed fields")
		}
		style, ok := ParseNumberStyle(*raw)
		if !ok {
			return newError(pos, ErrInvalidFieldTy, "unknown number_style %q", *raw)
		}
		*dst = style
		*has = true
		return nil
	}
	if ty.Kind == TyNumber && allowNumberStyle {
		if def.HasNumberStyleDefault {
			*dst = def.NumberStyleDefaultV1
			*has = true
		}
	}
	return nil
}

func checkBudgetFields(pos Position, ty FieldTy, maxBytes, maxItems int) error {
	switch ty.Kind {
	case TyBytes, TyNumber:
		if maxBytes <= 0 {
			return newError(pos, ErrMissingBudget, "ty %v requires max_bytes", ty)
		}
	case TySeq:
		if maxItems <= 0 {
			return newError(pos, ErrMissingBudget, "ty %v requires max_items", ty)
		}
		if ty.Elem != nil && ty.Elem.Kind == TySeq {
			return newError(pos, ErrInvalidFieldTy, "seq-of-seq is forbidden")
		}
		if ty.Elem != nil && (ty.Elem.Kind == TyBytes || ty.Elem.Kind == TyNumber) && maxBytes <= 0 {
			// Non-fatal: element-level max_bytes is declared on the element type
			// itself in a richer dialect; this simplified surface only allows
			// scalar elements of bool/struct shape without a byte budget, or
			// expects the caller to have supplied max_bytes alongside max_items.
		}
	}
	return nil
}

func parseFieldTy(pos Position, s string) (FieldTy, error) {
	switch s {
	case "bool":
		return FieldTy{Kind: TyBool}, nil
	case "number":
		return FieldTy{Kind: TyNumber}, nil
	case "bytes":
		return FieldTy{Kind: TyBytes}, nil
	}
	if strings.HasPrefix(s, "struct:") {
		id := strings.TrimPrefix(s, "struct:")
		if id == "" {
			return FieldTy{}, newError(pos, ErrInvalidFieldTy, "struct: with empty type_id")
		}
		return FieldTy{Kind: TyStruct, StructID: id}, nil
	}
	if strings.HasPrefix(s, "seq:") {
		elemStr := strings.TrimPrefix(s, "seq:")
		elem, err := parseFieldTy(pos, elemStr)
		if err != nil {
			return FieldTy{}, err
		}
		if elem.Kind == TySeq {
			return FieldTy{}, newError(pos, ErrInvalidFieldTy, "seq-of-seq is forbidden")
		}
		e := elem
		return FieldTy{Kind: TySeq, Elem: &e}, nil
	}
	return FieldTy{}, newError(pos, ErrInvalidFieldTy, "unrecognized ty %q", s)
}

func isLocalName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' {
			continue
		}
		if r >= 'a' && r <= 'z' {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func deriveModuleIDs(schema *Schema) error {
	for i := range schema.Types {
		t := &schema.Types[i]
		path := strings.ReplaceAll(t.TypeID, ".", "_")
		t.ModuleID = fmt.Sprintf("%s.schema.%s_v%d", schema.Package.Name, path, t.Version)
		t.TestsModuleID = t.ModuleID + ".tests"
	}
	return nil
}

// checkGraph implements spec §4.2 step 5: reject recursive references via
// depth-first coloring, and reject struct:<id> references to enum types.
func checkGraph(schema *Schema, idx *TypeIndex) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(schema.Types))

	var visit func(typeID string, pos Position) error
	visit = func(typeID string, pos Position) error {
		switch color[typeID] {
		case gray:
			return newError(pos, ErrCyclicType, "%s", typeID)
		case black:
			return nil
		}
		color[typeID] = gray
		t, ok := idx.Lookup(typeID)
		if !ok {
			return newError(pos, ErrUnknownType, "%s", typeID)
		}
		refs := typeRefs(t)
		for _, ref := range refs {
			target, ok := idx.Lookup(ref)
			if !ok {
				return newError(pos, ErrUnknownType, "%s", ref)
			}
			if target.Kind == KindEnum && refIsStructUse(t, ref) {
				return newError(pos, ErrEnumAsStruct, "%s", ref)
			}
			if err := visit(ref, pos); err != nil {
				return err
			}
		}
		color[typeID] = black
		return nil
	}

	for i := range schema.Types {
		t := &schema.Types[i]
		if err := visit(t.TypeID, t.Pos); err != nil {
			return err
		}
	}
	return nil
}

// typeRefs returns every struct:<id> reference reachable from t's fields or
// variant payloads (including through seq elements), for cycle detection.
func typeRefs(t *TypeDef) []string {
	var refs []string
	addTy := func(ty FieldTy) {
		for {
			if ty.Kind == TyStruct {
				refs = append(refs, ty.StructID)
				return
			}
			if ty.Kind == TySeq && ty.Elem != nil {
				ty = *ty.Elem
				continue
			}
			return
		}
	}
	for _, f := range t.Fields {
		addTy(f.Ty)
	}
	for _, v := range t.Variants {
		if !v.IsUnit {
			addTy(v.Payload)
		}
	}
	return refs
}

func refIsStructUse(t *TypeDef, ref string) bool {
	isStructUse := func(ty FieldTy) bool {
		for {
			if ty.Kind == TyStruct {
				return ty.StructID == ref
			}
			if ty.Kind == TySeq && ty.Elem != nil {
				ty = *ty.Elem
				continue
			}
			return false
		}
	}
	for _, f := range t.Fields {
		if isStructUse(f.Ty) {
			return true
		}
	}
	for _, v := range t.Variants {
		if !v.IsUnit && isStructUse(v.Payload) {
			return true
		}
	}
	return false
}

func normalizeExamples(typePos Position, raws []rawExample) ([]ExampleDef, error) {
	examples := make([]ExampleDef, 0, len(raws))
	for i, re := range raws {
		pos := Position{Path: fmt.Sprintf("%s.examples[%d]", typePos, i)}
		ex := ExampleDef{Name: re.Name, Pos: pos}
		if re.Fields != nil {
			ex.Struct = re.Fields
		} else {
			ex.Enum = &EnumExample{Variant: re.Variant, HasPayload: re.HasPayload, PayloadValue: re.Payload}
		}
		examples = append(examples, ex)
	}
	return examples, nil
}
