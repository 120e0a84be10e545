package schema

import (
	"encoding/json"
	"fmt"
)

// rawSchema mirrors the two accepted JSON surface dialects (spec §4.2):
// nested (Types non-empty) or rows (Rows non-empty); mutually exclusive.
type rawSchema struct {
	SchemaVersion string          `json:"schema_version"`
	Package       rawPackage      `json:"package"`
	Defaults      rawDefaults     `json:"defaults"`
	Types         []rawType       `json:"types,omitempty"`
	Rows          []json.RawMessage `json:"rows,omitempty"`
}

type rawPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type rawDefaults struct {
	Codec                string `json:"codec"`
	rawBudgetsEmbed
	AllowUnknownFields   bool    `json:"allow_unknown_fields"`
	NumberStyleDefaultV1 *string `json:"number_style_default_v1,omitempty"`
}

// rawBudgetsEmbed lets rawDefaults and rawType share the six budget fields
// without repeating the json tags.
type rawBudgetsEmbed struct {
	MaxDocBytes    int `json:"max_doc_bytes,omitempty"`
	MaxDepth       int `json:"max_depth,omitempty"`
	MaxMapEntries  int `json:"max_map_entries,omitempty"`
	MaxSeqItems    int `json:"max_seq_items,omitempty"`
	MaxStringBytes int `json:"max_string_bytes,omitempty"`
	MaxNumberBytes int `json:"max_number_bytes,omitempty"`
}

func (b rawBudgetsEmbed) toBudgets() Budgets {
	return Budgets{
		MaxDocBytes:    b.MaxDocBytes,
		MaxDepth:       b.MaxDepth,
		MaxMapEntries:  b.MaxMapEntries,
		MaxSeqItems:    b.MaxSeqItems,
		MaxStringBytes: b.MaxStringBytes,
		MaxNumberBytes: b.MaxNumberBytes,
	}
}

type rawType struct {
	TypeID   string          `json:"type_id"`
	Version  int             `json:"version"`
	Kind     string          `json:"kind"`
	ErrBase  int             `json:"err_base"`
	Budgets  *rawBudgetsEmbed `json:"budgets,omitempty"`
	Fields   []rawField      `json:"fields,omitempty"`
	Variants []rawVariant    `json:"variants,omitempty"`
	Examples []rawExample    `json:"examples,omitempty"`
}

type rawField struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Ty          string `json:"ty"`
	Required    bool   `json:"required"`
	MaxBytes    int    `json:"max_bytes,omitempty"`
	MaxItems    int    `json:"max_items,omitempty"`
	NumberStyle *string `json:"number_style,omitempty"`
}

type rawVariant struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Payload     string  `json:"payload"` // "unit" or a FieldTy string
	MaxBytes    int     `json:"max_bytes,omitempty"`
	MaxItems    int     `json:"max_items,omitempty"`
	NumberStyle *string `json:"number_style,omitempty"`
}

type rawExample struct {
	Name       string            `json:"name"`
	Fields     map[string]string `json:"fields,omitempty"`     // struct examples
	Variant    string            `json:"variant,omitempty"`    // enum examples
	HasPayload bool              `json:"has_payload,omitempty"`
	Payload    string            `json:"payload,omitempty"`
}

// LoadBytes parses a schema JSON document (either dialect), folds rows into
// the nested shape if needed, normalizes, and validates it (spec §4.2 steps
// 1-6). It returns the first error encountered, wrapped with positional
// context.
func LoadBytes(data []byte) (*Schema, error) {
	var raw rawSchema
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newError(Position{Path: "<root>"}, err, "invalid JSON")
	}

	if len(raw.Types) > 0 && len(raw.Rows) > 0 {
		return nil, newError(Position{Path: "<root>"}, ErrBothDialects, "")
	}

	types := raw.Types
	if len(raw.Rows) > 0 {
		var err error
		types, err = foldRows(raw.Rows)
		if err != nil {
			return nil, err
		}
	}

	return normalize(raw.SchemaVersion, raw.Package, raw.Defaults, types)
}

// foldRows implements spec §4.2 step 2: fold the rows dialect into the
// synthetic types[] shape, preserving insertion order, rejecting unknown
// tags and rows attached to the wrong kind of type.
func foldRows(rows []json.RawMessage) ([]rawType, error) {
	var types []rawType
	var cur *rawType
	seenTypeIDs := map[string]bool{}

	for i, rawRow := range rows {
		pos := Position{Path: fmt.Sprintf("rows[%d]", i)}

		var row []json.RawMessage
		if err := json.Unmarshal(rawRow, &row); err != nil {
			return nil, newError(pos, err, "row is not a JSON array")
		}
		if len(row) == 0 {
			return nil, newError(pos, ErrUnknownRowTag, "empty row")
		}
		var tag string
		if err := json.Unmarshal(row[0], &tag); err != nil {
			return nil, newError(pos, err, "row tag must be a string")
		}

		switch tag {
		case "type":
			var t rawRowType
			if err := decodeRow(row[1:], &t); err != nil {
				return nil, newError(pos, err, "malformed type row")
			}
			if seenTypeIDs[t.TypeID] {
				return nil, newError(pos, ErrDuplicateTypeID, "%s", t.TypeID)
			}
			seenTypeIDs[t.TypeID] = true
			types = append(types, rawType{
				TypeID:  t.TypeID,
				Version: t.Version,
				Kind:    t.Kind,
				ErrBase: t.ErrBase,
				Budgets: t.Budgets,
			})
			cur = &types[len(types)-1]
		case "field":
			if cur == nil {
				return nil, newError(pos, ErrUnknownRowTag, "field row with no preceding type row")
			}
			if cur.Kind != "struct" {
				return nil, newError(pos, ErrFieldOnEnum, "%s", cur.TypeID)
			}
			var f rawField
			if err := decodeRow(row[1:], &f); err != nil {
				return nil, newError(pos, err, "malformed field row")
			}
			for _, existing := range cur.Fields {
				if existing.ID == f.ID {
					return nil, newError(pos, ErrDuplicateFieldID, "id=%d in %s", f.ID, cur.TypeID)
				}
			}
			cur.Fields = append(cur.Fields, f)
		case "variant":
			if cur == nil {
				return nil, newError(pos, ErrUnknownRowTag, "variant row with no preceding type row")
			}
			if cur.Kind != "enum" {
				return nil, newError(pos, ErrVariantOnStruct, "%s", cur.TypeID)
			}
			var v rawVariant
			if err := decodeRow(row[1:], &v); err != nil {
				return nil, newError(pos, err, "malformed variant row")
			}
			for _, existing := range cur.Variants {
				if existing.ID == v.ID {
					return nil, newError(pos, ErrDuplicateVariantID, "id=%d in %s", v.ID, cur.TypeID)
				}
			}
			cur.Variants = append(cur.Variants, v)
		case "example":
			if cur == nil {
				return nil, newError(pos, ErrUnknownRowTag, "example row with no preceding type row")
			}
			var ex rawExample
			if err := decodeRow(row[1:], &ex); err != nil {
				return nil, newError(pos, err, "malformed example row")
			}
			cur.Examples = append(cur.Examples, ex)
		default:
			return nil, newError(pos, ErrUnknownRowTag, "%q", tag)
		}
	}

	return types, nil
}

// rawRowType is the "type" row's tail shape: [type_id, version, kind,
// err_base, budgets?].
type rawRowType struct {
	TypeID  string           `json:"0"`
	Version int              `json:"1"`
	Kind    string           `json:"2"`
	ErrBase int              `json:"3"`
	Budgets *rawBudgetsEmbed `json:"4"`
}

// decodeRow decodes a positional JSON array tail into dst, unmarshaling
// each element by position in a per-type switch (the "0", "1", ... json
// tags on rawRowType are not consulted). An optional trailing budgets/
// options element is read where the row type has one; further elements
// are ignored.
func decodeRow(tail []json.RawMessage, dst any) error {
	switch d := dst.(type) {
	case *rawRowType:
		if len(tail) < 4 {
			return fmt.Errorf("type row needs at least 4 elements, got %d", len(tail))
		}
		if err := json.Unmarshal(tail[0], &d.TypeID); err != nil {
			return err
		}
		if err := json.Unmarshal(tail[1], &d.Version); err != nil {
			return err
		}
		if err := json.Unmarshal(tail[2], &d.Kind); err != nil {
			return err
		}
		if err := json.Unmarshal(tail[3], &d.ErrBase); err != nil {
			return err
		}
		if len(tail) > 4 {
			var b rawBudgetsEmbed
			if err := json.Unmarshal(tail[4], &b); err != nil {
				return err
			}
			d.Budgets = &b
		}
		return nil
	case *rawField:
		if len(tail) < 4 {
			return fmt.Errorf("field row needs at least 4 elements, got %d", len(tail))
		}
		if err := json.Unmarshal(tail[0], &d.ID); err != nil {
			return err
		}
		if err := json.Unmarshal(tail[1], &d.Name); err != nil {
			return err
		}
		if err := json.Unmarshal(tail[2], &d.Ty); err != nil {
			return err
		}
		if err := json.Unmarshal(tail[3], &d.Required); err != nil {
			return err
		}
		if len(tail) > 4 {
			var opts rawFieldOpts
			if err := json.Unmarshal(tail[4], &opts); err != nil {
				return err
			}
			d.MaxBytes = opts.MaxBytes
			d.MaxItems = opts.MaxItems
			d.NumberStyle = opts.NumberStyle
		}
		return nil
	case *rawVariant:
		if len(tail) < 2 {
			return fmt.Errorf("variant row needs at least 2 elements, got %d", len(tail))
		}
		if err := json.Unmarshal(tail[0], &d.ID); err != nil {
			return err
		}
		if err := json.Unmarshal(tail[1], &d.Name); err != nil {
			return err
		}
		if len(tail) > 2 {
			if err := json.Unmarshal(tail[2], &d.Payload); err != nil {
				return err
			}
		} else {
			d.Payload = "unit"
		}
		if len(tail) > 3 {
			var opts rawFieldOpts
			if err := json.Unmarshal(tail[3], &opts); err != nil {
				return err
			}
			d.MaxBytes = opts.MaxBytes
			d.MaxItems = opts.MaxItems
			d.NumberStyle = opts.NumberStyle
		}
		return nil
	case *rawExample:
		if len(tail) < 1 {
			return fmt.Errorf("example row needs at least 1 element, got %d", len(tail))
		}
		if err := json.Unmarshal(tail[0], &d.Name); err != nil {
			return err
		}
		if len(tail) == 2 {
			// struct example: ["name", {fields...}]
			var fields map[string]string
			if err := json.Unmarshal(tail[1], &fields); err == nil {
				d.Fields = fields
				return nil
			}
			// enum example with no payload: ["name", "variant"]
			var variant string
			if err := json.Unmarshal(tail[1], &variant); err != nil {
				return fmt.Errorf("example row element 1 is neither a fields object nor a variant string: %w", err)
			}
			d.Variant = variant
			return nil
		}
		if len(tail) >= 3 {
			if err := json.Unmarshal(tail[1], &d.Variant); err != nil {
				return err
			}
			if err := json.Unmarshal(tail[2], &d.Payload); err != nil {
				return err
			}
			d.HasPayload = true
		}
		return nil
	default:
		return fmt.Errorf("decodeRow: unsupported destination type %T", dst)
	}
}

type rawFieldOpts struct {
	MaxBytes    int     `json:"max_bytes,omitempty"`
	MaxItems    int     `json:"max_items,omitempty"`
	NumberStyle *string `json:"number_style,omitempty"`
}
