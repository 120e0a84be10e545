package emitter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blockberries/x07/pkg/hostcap/fake"
)

func writeTempSchema(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.json")
	data := []byte(`{
		"schema_version": "specrows@0.1.0",
		"package": {"name": "demo", "version": "1.0.0"},
		"defaults": {
			"codec": "docvalue_v1",
			"max_doc_bytes": 4096, "max_depth": 8, "max_map_entries": 32,
			"max_seq_items": 32, "max_string_bytes": 1024, "max_number_bytes": 32,
			"allow_unknown_fields": false
		},
		"types": [
			{
				"type_id": "demo.widget", "version": 1, "kind": "struct", "err_base": 1000,
				"fields": [
					{"id": 1, "name": "name", "ty": "bytes", "required": true, "max_bytes": 64}
				],
				"examples": [
					{"name": "basic", "fields": {"name": "\"bob\""}}
				]
			}
		]
	}`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDeriverCheckReportsDriftOnEmptyDisk(t *testing.T) {
	input := writeTempSchema(t)
	writer := fake.NewAtomicWriter()
	d := NewDeriver("/out", writer, writer, false)
	report, err := d.Derive(context.Background(), input)
	if !errors.Is(err, ErrDrift) {
		t.Fatalf("Derive: expected ErrDrift, got %v", err)
	}
	if report.Wrote {
		t.Errorf("expected Wrote=false in --check mode")
	}
	if !report.Drift {
		t.Errorf("expected Drift=true when nothing is on disk yet")
	}
	if len(report.Files) != 3 {
		t.Errorf("expected 3 files listed, got %d", len(report.Files))
	}
	for _, f := range report.Files {
		if !f.Drifted {
			t.Errorf("expected %s to be marked drifted", f.Path)
		}
		if f.SHA256 == "" {
			t.Errorf("expected %s to carry a sha256", f.Path)
		}
	}
	if _, ok := writer.Get(report.Files[0].Path); ok {
		t.Errorf("--check mode must not touch the real writer")
	}
	if report.InputSHA256 == "" || report.CanonicalInputSHA256 == "" {
		t.Errorf("expected input hashes to be populated")
	}
}

func TestDeriverWriteWritesFiles(t *testing.T) {
	input := writeTempSchema(t)
	writer := fake.NewAtomicWriter()
	d := NewDeriver("/out", writer, writer, true)
	report, err := d.Derive(context.Background(), input)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !report.Wrote {
		t.Errorf("expected Wrote=true in --write mode")
	}
	for _, f := range report.Files {
		if _, ok := writer.Get(f.Path); !ok {
			t.Errorf("expected %s to be written", f.Path)
		}
	}
}

func TestDeriverCheckReportsNoDriftWhenDiskMatches(t *testing.T) {
	input := writeTempSchema(t)
	writer := fake.NewAtomicWriter()
	writeReport, err := NewDeriver("/out", writer, writer, true).Derive(context.Background(), input)
	if err != nil {
		t.Fatalf("initial write Derive: %v", err)
	}
	if !writeReport.Drift {
		t.Fatalf("expected drift on initial write against an empty disk: %+v", writeReport)
	}

	checkReport, err := NewDeriver("/out", writer, writer, false).Derive(context.Background(), input)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if checkReport.Drift {
		t.Errorf("expected no drift once disk matches the rendered output: %+v", checkReport)
	}
	for _, f := range checkReport.Files {
		if f.Drifted {
			t.Errorf("file %s unexpectedly marked drifted", f.Path)
		}
	}
}

func TestDeriverLoadFailureStillReports(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`not json`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	writer := fake.NewAtomicWriter()
	d := NewDeriver("/out", writer, writer, true)
	report, err := d.Derive(context.Background(), path)
	if err == nil {
		t.Fatalf("expected an error for invalid JSON")
	}
	if report.Wrote {
		t.Errorf("expected Wrote=false on failure")
	}
	if len(report.Errors) == 0 || !strings.Contains(report.Errors[0], "") {
		t.Errorf("expected an error message in report, got %+v", report.Errors)
	}
}
