// Package schema loads, normalizes, and validates the declarative JSON
// schema documents consumed by the module emitter (spec §3.2, §4.2).
package schema

// Position identifies where in the source document a diagnostic applies,
// for error messages that point at e.g. "types[2].fields[1].name" or
// "rows[5][2]".
type Position struct {
	Path string // a dotted/bracketed JSON-pointer-ish description
}

func (p Position) String() string {
	if p.Path == "" {
		return "<root>"
	}
	return p.Path
}

// Kind distinguishes struct and enum TypeDefs.
type Kind int

const (
	KindStruct Kind = iota
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// NumberStyle names a canonical ASCII-decimal number rendering (spec §3.1).
type NumberStyle int

const (
	NumberStyleUnset NumberStyle = iota
	NumberStyleIntASCIIV1
	NumberStyleUintASCIIV1
)

func (s NumberStyle) String() string {
	switch s {
	case NumberStyleIntASCIIV1:
		return "int_ascii_v1"
	case NumberStyleUintASCIIV1:
		return "uint_ascii_v1"
	default:
		return ""
	}
}

func ParseNumberStyle(s string) (NumberStyle, bool) {
	switch s {
	case "int_ascii_v1":
		return NumberStyleIntASCIIV1, true
	case "uint_ascii_v1":
		return NumberStyleUintASCIIV1, true
	default:
		return NumberStyleUnset, false
	}
}

// Budgets bounds a Doc's size/shape (spec §3.2 Defaults / per-type override).
type Budgets struct {
	MaxDocBytes    int
	MaxDepth       int
	MaxMapEntries  int
	MaxSeqItems    int
	MaxStringBytes int
	MaxNumberBytes int
}

// merge returns a Budgets with zero fields in b replaced by the
// corresponding field from fallback (per-type override / defaults
// inheritance, spec §4.2 step 1).
func (b Budgets) merge(fallback Budgets) Budgets {
	out := b
	if out.MaxDocBytes == 0 {
		out.MaxDocBytes = fallback.MaxDocBytes
	}
	if out.MaxDepth == 0 {
		out.MaxDepth = fallback.MaxDepth
	}
	if out.MaxMapEntries == 0 {
		out.MaxMapEntries = fallback.MaxMapEntries
	}
	if out.MaxSeqItems == 0 {
		out.MaxSeqItems = fallback.MaxSeqItems
	}
	if out.MaxStringBytes == 0 {
		out.MaxStringBytes = fallback.MaxStringBytes
	}
	if out.MaxNumberBytes == 0 {
		out.MaxNumberBytes = fallback.MaxNumberBytes
	}
	return out
}

// Package identifies the schema's dotted lowercase package name and version.
type Package struct {
	Name    string
	Version string
}

// Defaults holds the schema-wide defaults (spec §3.2 Defaults).
type Defaults struct {
	Codec                 string
	Budgets               Budgets
	AllowUnknownFields    bool
	NumberStyleDefaultV1  NumberStyle
	HasNumberStyleDefault bool
}

// FieldTyKind distinguishes the shape of a FieldTy.
type FieldTyKind int

const (
	TyBool FieldTyKind = iota
	TyNumber
	TyBytes
	TyStruct
	TySeq
)

// FieldTy is the parsed form of a field/variant/seq-element type string:
// "bool" | "number" | "bytes" | "struct:<type_id>" | "seq:<elem-ty>".
// Seq-of-seq is forbidden (spec §3.2); Elem is nil unless Kind == TySeq.
type FieldTy struct {
	Kind     FieldTyKind
	StructID string   // set when Kind == TyStruct
	Elem     *FieldTy // set when Kind == TySeq; Elem.Kind != TySeq
}

func (t FieldTy) String() string {
	switch t.Kind {
	case TyBool:
		return "bool"
	case TyNumber:
		return "number"
	case TyBytes:
		return "bytes"
	case TyStruct:
		return "struct:" + t.StructID
	case TySeq:
		if t.Elem == nil {
			return "seq:?"
		}
		return "seq:" + t.Elem.String()
	default:
		return "?"
	}
}

// FieldDef is one struct field (spec §3.2 FieldDef).
type FieldDef struct {
	ID             int
	Name           string
	Ty             FieldTy
	Required       bool
	MaxBytes       int // required for bytes-typed fields (string or number payload length)
	MaxItems       int // required for seq-typed fields
	NumberStyle    NumberStyle
	HasNumberStyle bool
	Pos            Position
}

// VariantDef is one enum variant (spec §3.2 VariantDef). Payload.Kind is
// meaningless (IsUnit == true) for unit variants.
type VariantDef struct {
	ID             int
	Name           string
	IsUnit         bool
	Payload        FieldTy
	MaxBytes       int
	MaxItems       int
	NumberStyle    NumberStyle
	HasNumberStyle bool
	Pos            Position
}

// ExampleDef is a named literal used for golden-vector generation (spec
// §3.2 ExampleDef). For struct types, Struct holds field-name -> raw JSON
// string value. For enum types, Enum holds the selected variant name and,
// if the variant is non-unit, its raw JSON string payload value.
type ExampleDef struct {
	Name   string
	Struct map[string]string
	Enum   *EnumExample
	Pos    Position
}

type EnumExample struct {
	Variant      string
	HasPayload   bool
	PayloadValue string
}

// TypeDef is one normalized schema type (spec §3.2 TypeDef).
type TypeDef struct {
	TypeID   string
	Version  int
	Kind     Kind
	ErrBase  int
	Budgets  Budgets
	Fields   []FieldDef   // Kind == KindStruct
	Variants []VariantDef // Kind == KindEnum
	Examples []ExampleDef
	Pos      Position

	// ModuleID / TestsModuleID are derived in normalize (spec §4.2 step 4):
	// "<pkg>.schema.<path_of_type_id>_v<version>" and "<module_id>.tests".
	ModuleID      string
	TestsModuleID string
}

// Schema is the fully normalized, validated result of loading a schema
// document (spec §4.2's output: "a single normalized list of TypeDef").
type Schema struct {
	SchemaVersion string
	Package       Package
	Defaults      Defaults
	Types         []TypeDef // ordered by declaration order
}

// TypeIndex is a lookup table over a Schema's types, built during
// validation (spec §4.2 step 5).
type TypeIndex struct {
	byID map[string]*TypeDef
}

func newTypeIndex(types []TypeDef) *TypeIndex {
	idx := &TypeIndex{byID: make(map[string]*TypeDef, len(types))}
	for i := range types {
		idx.byID[types[i].TypeID] = &types[i]
	}
	return idx
}

func (idx *TypeIndex) Lookup(typeID string) (*TypeDef, bool) {
	t, ok := idx.byID[typeID]
	return t, ok
}
