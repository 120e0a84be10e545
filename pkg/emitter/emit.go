// Package emitter renders a normalized schema.Schema into the on-disk
// module layout spec §4.3/§6.2 describe: one canonical JSON AST module per
// TypeDef, a sibling tests module holding its golden examples, and a
// tests/tests.json manifest indexing every emitted tests module. Writes go
// through hostcap.AtomicWriter so a crash mid-run never leaves a
// half-written module on disk (spec §6.4: temp-file-same-dir + fsync +
// rename).
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/blockberries/x07/pkg/hostcap"
	"github.com/blockberries/x07/pkg/schema"
)

// Emitter renders a schema to modules under OutDir.
type Emitter struct {
	Writer hostcap.AtomicWriter
	OutDir string
}

// ModuleFile is one file the emitter wrote, recorded for the report.
type ModuleFile struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"` // "runtime" | "tests" | "manifest"
	SHA256  string `json:"sha256,omitempty"`
	Drifted bool   `json:"drifted,omitempty"`
}

// RenderedFile is one module body the emitter has built in memory, not yet
// written anywhere. Deriver uses Render directly (rather than Emit) so it
// can hash and diff file content against what is already on disk before
// deciding whether to write it (spec §4.3 Determinism).
type RenderedFile struct {
	Path    string
	Kind    string
	Content []byte
}

// Render constructs every module body for s deterministically (construction
// happens concurrently; the returned slice is always in the same
// path-sorted order regardless of goroutine completion order) without
// touching any writer.
func (e *Emitter) Render(ctx context.Context, s *schema.Schema) ([]RenderedFile, error) {
	type built struct {
		runtimePath, runtimeDoc string
		testsPath, testsDoc     string
		testsModuleID           string
	}
	results := make([]built, len(s.Types))

	g, _ := errgroup.WithContext(ctx)
	for i, t := range s.Types {
		i, t := i, t
		g.Go(func() error {
			runtimeDoc, err := buildRuntimeDoc(s, t)
			if err != nil {
				return fmt.Errorf("type %s: %w", t.TypeID, err)
			}
			testsDoc, err := buildTestsDoc(s, t)
			if err != nil {
				return fmt.Errorf("type %s: %w", t.TypeID, err)
			}
			runtimePath, testsPath := e.modulePaths(s, t)
			results[i] = built{
				runtimePath: runtimePath, runtimeDoc: runtimeDoc,
				testsPath: testsPath, testsDoc: testsDoc,
				testsModuleID: t.TestsModuleID,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var files []RenderedFile
	manifestEntries := make([]string, 0, len(results))
	for _, r := range results {
		files = append(files, RenderedFile{Path: r.runtimePath, Kind: "runtime", Content: []byte(r.runtimeDoc)})
		files = append(files, RenderedFile{Path: r.testsPath, Kind: "tests", Content: []byte(r.testsDoc)})
		manifestEntries = append(manifestEntries, r.testsModuleID)
	}
	sort.Strings(manifestEntries)

	manifestPath := e.OutDir + "/tests/tests.json"
	manifestDoc, err := buildManifest(manifestEntries)
	if err != nil {
		return nil, err
	}
	files = append(files, RenderedFile{Path: manifestPath, Kind: "manifest", Content: []byte(manifestDoc)})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Emit renders every TypeDef in s and writes the result through e.Writer,
// returning the list of files written.
func (e *Emitter) Emit(ctx context.Context, s *schema.Schema) ([]ModuleFile, error) {
	rendered, err := e.Render(ctx, s)
	if err != nil {
		return nil, err
	}
	files := make([]ModuleFile, 0, len(rendered))
	for _, r := range rendered {
		if err := e.Writer.WriteFile(r.Path, r.Content); err != nil {
			return nil, fmt.Errorf("writing %s: %w", r.Path, err)
		}
		files = append(files, ModuleFile{Path: r.Path, Kind: r.Kind})
	}
	return files, nil
}

// modulePaths derives the runtime and tests module paths from t.ModuleID
// (spec §6.2: "modules/<pkg>/schema/<segments>/<last>_v<version>.x07.json"
// + sibling "<last>_v<version>/tests.x07.json"), so every type gets its own
// tests module path.
func (e *Emitter) modulePaths(s *schema.Schema, t schema.TypeDef) (runtimePath, testsPath string) {
	rawSegments := strings.Split(t.TypeID, ".")
	segments := make([]string, len(rawSegments))
	for i, seg := range rawSegments {
		segments[i] = ToSnakeCase(seg)
	}
	last := segments[len(segments)-1]
	dir := fmt.Sprintf("%s/modules/%s/schema", e.OutDir, ToSnakeCase(s.Package.Name))
	if prefix := segments[:len(segments)-1]; len(prefix) > 0 {
		dir += "/" + strings.Join(prefix, "/")
	}
	runtimePath = fmt.Sprintf("%s/%s_v%d.x07.json", dir, last, t.Version)
	testsPath = fmt.Sprintf("%s/%s_v%d/tests.x07.json", dir, last, t.Version)
	return runtimePath, testsPath
}

// runtimeDoc is the canonical JSON AST module body for one TypeDef (spec
// §4.3: "an AST exporting validate_doc_v1, validate_value_v1,
// encode_doc_v1, encode_value_v1, per-field accessors, and numeric
// constants for every error code").
type runtimeDoc struct {
	SchemaVersion string        `json:"schema_version"`
	ModuleID      string        `json:"module_id"`
	TypeID        string        `json:"type_id"`
	Version       int           `json:"version"`
	Kind          string        `json:"kind"`
	ErrBase       int           `json:"err_base"`
	Imports       []string      `json:"imports"`
	Exports       []string      `json:"exports"`
	Constants     []constantDoc `json:"constants"`
	Functions     []functionDoc `json:"functions"`
	Budgets       budgetsDoc    `json:"budgets"`
	Fields        []fieldDoc    `json:"fields,omitempty"`
	Variants      []variantDoc  `json:"variants,omitempty"`
}

type budgetsDoc struct {
	MaxDocBytes    int `json:"max_doc_bytes"`
	MaxDepth       int `json:"max_depth"`
	MaxMapEntries  int `json:"max_map_entries"`
	MaxSeqItems    int `json:"max_seq_items"`
	MaxStringBytes int `json:"max_string_bytes"`
	MaxNumberBytes int `json:"max_number_bytes"`
}

type fieldDoc struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Ty          string `json:"ty"`
	Required    bool   `json:"required"`
	MaxBytes    int    `json:"max_bytes,omitempty"`
	MaxItems    int    `json:"max_items,omitempty"`
	NumberStyle string `json:"number_style,omitempty"`
}

type variantDoc struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	IsUnit      bool   `json:"is_unit"`
	Payload     string `json:"payload,omitempty"`
	NumberStyle string `json:"number_style,omitempty"`
}

func toBudgetsDoc(b schema.Budgets) budgetsDoc {
	return budgetsDoc{
		MaxDocBytes: b.MaxDocBytes, MaxDepth: b.MaxDepth, MaxMapEntries: b.MaxMapEntries,
		MaxSeqItems: b.MaxSeqItems, MaxStringBytes: b.MaxStringBytes, MaxNumberBytes: b.MaxNumberBytes,
	}
}

func buildRuntimeDoc(s *schema.Schema, t schema.TypeDef) (string, error) {
	constants := typeConstants(t)
	functions := typeFunctions(t)
	exports := make([]string, 0, len(constants)+len(functions))
	for _, c := range constants {
		exports = append(exports, c.Name)
	}
	for _, fn := range functions {
		exports = append(exports, fn.Name)
	}

	doc := runtimeDoc{
		SchemaVersion: s.SchemaVersion,
		ModuleID:      t.ModuleID,
		TypeID:        t.TypeID,
		Version:       t.Version,
		Kind:          t.Kind.String(),
		ErrBase:       t.ErrBase,
		Imports:       []string{},
		Exports:       exports,
		Constants:     constants,
		Functions:     functions,
		Budgets:       toBudgetsDoc(t.Budgets),
	}
	for _, f := range t.Fields {
		fd := fieldDoc{ID: f.ID, Name: f.Name, Ty: f.Ty.String(), Required: f.Required, MaxBytes: f.MaxBytes, MaxItems: f.MaxItems}
		if f.HasNumberStyle {
			fd.NumberStyle = f.NumberStyle.String()
		}
		doc.Fields = append(doc.Fields, fd)
	}
	for _, v := range t.Variants {
		vd := variantDoc{ID: v.ID, Name: v.Name, IsUnit: v.IsUnit}
		if !v.IsUnit {
			vd.Payload = v.Payload.String()
		}
		if v.HasNumberStyle {
			vd.NumberStyle = v.NumberStyle.String()
		}
		doc.Variants = append(doc.Variants, vd)
	}
	return marshalCanonical(doc)
}

// testsDoc is a tests module body: the positive vectors (spec §4.3
// test_vectors_v1 — one golden_doc per example, byte-exact under
// encode_doc_v1) and the negative vectors (test_negative_v1 — corrupted
// docs and the codes validate_doc_v1 must return for them).
type testsDoc struct {
	ModuleID     string           `json:"module_id"`
	TypeID       string           `json:"type_id"`
	Exports      []string         `json:"exports"`
	TestVectors  []testVectorDoc  `json:"test_vectors_v1"`
	TestNegative []negativeVector `json:"test_negative_v1"`
}

type testVectorDoc struct {
	Name      string            `json:"name"`
	Struct    map[string]string `json:"struct,omitempty"`
	Variant   string            `json:"variant,omitempty"`
	Payload   string            `json:"payload,omitempty"`
	GoldenDoc string            `json:"golden_doc"`
}

func buildTestsDoc(s *schema.Schema, t schema.TypeDef) (string, error) {
	doc := testsDoc{
		ModuleID: t.TestsModuleID,
		TypeID:   t.TypeID,
		Exports:  []string{"test_vectors_v1", "test_negative_v1"},
	}
	for _, ex := range t.Examples {
		golden, err := buildGoldenDoc(t, ex)
		if err != nil {
			return "", fmt.Errorf("type %s: %w", t.TypeID, err)
		}
		out := testVectorDoc{Name: ex.Name, GoldenDoc: encodeDocBase64(golden)}
		if ex.Struct != nil {
			out.Struct = ex.Struct
		}
		if ex.Enum != nil {
			out.Variant = ex.Enum.Variant
			if ex.Enum.HasPayload {
				out.Payload = ex.Enum.PayloadValue
			}
		}
		doc.TestVectors = append(doc.TestVectors, out)
	}

	negatives, err := typeNegativeVectors(s, t)
	if err != nil {
		return "", fmt.Errorf("type %s: %w", t.TypeID, err)
	}
	doc.TestNegative = negatives

	return marshalCanonical(doc)
}

// manifestEntry is one tests/tests.json row (spec §4.3 "Manifest shape":
// "{id, entry, world, expect}", entry = "<tests_module_id>.test_vectors_v1").
type manifestEntry struct {
	ID     string `json:"id"`
	Entry  string `json:"entry"`
	World  string `json:"world"`
	Expect string `json:"expect"`
}

func buildManifest(testsModuleIDs []string) (string, error) {
	entries := make([]manifestEntry, 0, len(testsModuleIDs))
	for _, id := range testsModuleIDs {
		entries = append(entries, manifestEntry{
			ID:     id,
			Entry:  id + ".test_vectors_v1",
			World:  "solve-pure",
			Expect: "pass",
		})
	}
	return marshalCanonical(entries)
}

// marshalCanonical renders v as sorted-key JSON with a trailing newline
// (spec §6.2: report/module output is sorted-keys-then-newline).
func marshalCanonical(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	sorted, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return "", err
	}
	return string(sorted) + "\n", nil
}
