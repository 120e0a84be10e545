package emitter

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/blockberries/x07/pkg/hostcap/fake"
	"github.com/blockberries/x07/pkg/schema"
)

// goldenFixture bundles an input schema with its expected rendered
// runtime module in one txtar archive, compiler-fixture-test style
// (grounded on the teacher's golang.org/x/tools dependency, repurposed
// here onto its txtar sub-package instead of go/packages loading).
const goldenFixture = `
-- input.json --
{
	"schema_version": "specrows@0.1.0",
	"package": {"name": "golden", "version": "1.0.0"},
	"defaults": {
		"codec": "docvalue_v1",
		"max_doc_bytes": 2048, "max_depth": 4, "max_map_entries": 16,
		"max_seq_items": 16, "max_string_bytes": 256, "max_number_bytes": 16,
		"allow_unknown_fields": false
	},
	"types": [
		{
			"type_id": "golden.point", "version": 1, "kind": "struct", "err_base": 2000,
			"fields": [
				{"id": 1, "name": "x", "ty": "number", "required": true, "max_bytes": 8},
				{"id": 2, "name": "y", "ty": "number", "required": true, "max_bytes": 8}
			],
			"examples": [
				{"name": "origin", "fields": {"x": "\"0\"", "y": "\"0\""}}
			]
		}
	]
}
-- want/type_id --
golden.point
-- want/runtime_path --
/out/modules/golden/schema/golden/point_v1.x07.json
-- want/tests_path --
/out/modules/golden/schema/golden/point_v1/tests.x07.json
`

func TestEmitGoldenFixture(t *testing.T) {
	ar := txtar.Parse([]byte(goldenFixture))
	files := map[string][]byte{}
	for _, f := range ar.Files {
		files[f.Name] = f.Data
	}

	input, ok := files["input.json"]
	if !ok {
		t.Fatalf("fixture missing input.json")
	}
	s, err := schema.LoadBytes(input)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	writer := fake.NewAtomicWriter()
	e := &Emitter{Writer: writer, OutDir: "/out"}
	emitted, err := e.Emit(context.Background(), s)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var runtimePath, testsPath string
	for _, f := range emitted {
		switch f.Kind {
		case "runtime":
			runtimePath = f.Path
		case "tests":
			testsPath = f.Path
		}
	}

	wantRuntimePath := strings.TrimSpace(string(files["want/runtime_path"]))
	wantTestsPath := strings.TrimSpace(string(files["want/tests_path"]))
	if runtimePath != wantRuntimePath {
		t.Errorf("runtime path = %s, want %s", runtimePath, wantRuntimePath)
	}
	if testsPath != wantTestsPath {
		t.Errorf("tests path = %s, want %s", testsPath, wantTestsPath)
	}

	runtimeBytes, _ := writer.Get(runtimePath)
	wantTypeID := strings.TrimSpace(string(files["want/type_id"]))
	if !strings.Contains(string(runtimeBytes), `"`+wantTypeID+`"`) {
		t.Errorf("runtime module does not mention type_id %q", wantTypeID)
	}
	for _, want := range []string{`"constants"`, `"functions"`, `"validate_doc_v1"`, `"encode_doc_v1"`, `"code_kind_x"`} {
		if !strings.Contains(string(runtimeBytes), want) {
			t.Errorf("runtime module missing %s", want)
		}
	}

	testsBytes, _ := writer.Get(testsPath)
	for _, want := range []string{`"test_vectors_v1"`, `"test_negative_v1"`, `"golden_doc"`, `"tag_corruption"`} {
		if !strings.Contains(string(testsBytes), want) {
			t.Errorf("tests module missing %s", want)
		}
	}
}
