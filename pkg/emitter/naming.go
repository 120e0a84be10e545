package emitter

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCaser backs ToPascalCase, matching the teacher's codegen naming
// helpers (golang.org/x/text/cases.Title over English), now used for the
// GoName hints of generated accessor functions (functions.go).
var titleCaser = cases.Title(language.English)

// ToPascalCase converts a name to PascalCase.
func ToPascalCase(s string) string {
	parts := splitName(s)
	for i, p := range parts {
		parts[i] = titleCaser.String(strings.ToLower(p))
	}
	return strings.Join(parts, "")
}

// ToSnakeCase converts a name to snake_case, used to derive the path
// segments of a module_id (spec §4.2's dotted type_id becomes a
// filesystem path, spec §6.2's output layout).
func ToSnakeCase(s string) string {
	parts := splitName(s)
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, "_")
}

// splitName splits on underscores/hyphens/dots and on case transitions.
func splitName(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	var current strings.Builder
	for i, r := range s {
		if r == '_' || r == '-' || r == '.' {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			continue
		}
		if i > 0 && isUpper(r) && !isUpper(rune(s[i-1])) {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
