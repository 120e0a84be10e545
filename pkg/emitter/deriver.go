package emitter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/blockberries/x07/pkg/hostcap"
	"github.com/blockberries/x07/pkg/schema"
)

// ErrDrift is returned by Derive when, without --write, a freshly rendered
// file differs from (or is missing from) what is on disk. The CLI exits
// non-zero on it without logging it as a failure (spec §6.2 exit codes).
var ErrDrift = errors.New("schema derive: output drift detected")

// Deriver loads one schema file and renders its modules, backing the
// `schema derive --input --out-dir --write --check --report-json`
// CLI contract (spec §6.2). Rendering always happens; --write is what
// actually persists the result through Writer, and drift against whatever
// Reader already holds is always computed and reported regardless of
// --write (spec §4.3 Determinism).
type Deriver struct {
	Writer hostcap.AtomicWriter
	Reader hostcap.FileReader
	OutDir string
	write  bool
}

// NewDeriver builds a Deriver. write selects whether Derive persists its
// rendered files through writer (--write) or only reports what would
// change (--check).
func NewDeriver(outDir string, writer hostcap.AtomicWriter, reader hostcap.FileReader, write bool) *Deriver {
	return &Deriver{Writer: writer, Reader: reader, OutDir: outDir, write: write}
}

// Derive reads inputPath, loads and normalizes it as a schema, renders its
// modules, and diffs each against what is already on disk. It returns the
// Report regardless of error so callers can still render --report-json on
// a load failure or on detected drift. The only error it returns that
// isn't a hard failure is ErrDrift: drift found while running without
// --write.
func (d *Deriver) Derive(ctx context.Context, inputPath string) (Report, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return BuildReport(inputPath, false, false, "", "", nil, []string{err.Error()}), fmt.Errorf("reading %s: %w", inputPath, err)
	}

	s, err := schema.LoadBytes(data)
	if err != nil {
		return BuildReport(inputPath, false, false, "", "", nil, []string{err.Error()}), fmt.Errorf("loading schema: %w", err)
	}

	e := &Emitter{OutDir: d.OutDir}
	rendered, err := e.Render(ctx, s)
	if err != nil {
		return BuildReport(inputPath, false, false, "", "", nil, []string{err.Error()}), fmt.Errorf("rendering modules: %w", err)
	}

	inputSHA := sha256Hex(data)
	canonInput, err := canonicalizeJSON(data)
	if err != nil {
		return BuildReport(inputPath, false, false, inputSHA, "", nil, []string{err.Error()}), fmt.Errorf("canonicalizing input: %w", err)
	}
	canonSHA := sha256Hex(canonInput)

	files := make([]ModuleFile, 0, len(rendered))
	drift := false
	for _, r := range rendered {
		existing, rerr := d.Reader.ReadFile(r.Path)
		drifted := rerr != nil || !bytes.Equal(existing, r.Content)
		if drifted {
			drift = true
		}
		if d.write {
			if err := d.Writer.WriteFile(r.Path, r.Content); err != nil {
				return BuildReport(inputPath, false, drift, inputSHA, canonSHA, files, []string{err.Error()}), fmt.Errorf("writing %s: %w", r.Path, err)
			}
		}
		files = append(files, ModuleFile{
			Path:    r.Path,
			Kind:    r.Kind,
			SHA256:  sha256Hex(r.Content),
			Drifted: drifted,
		})
	}

	report := BuildReport(inputPath, d.write, drift, inputSHA, canonSHA, files, nil)
	if drift && !d.write {
		return report, ErrDrift
	}
	return report, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// canonicalizeJSON reparses data and re-serializes it with map keys sorted
// (encoding/json.Marshal sorts map[string]any keys), the same
// canonicalization the report hashes against (spec §4.3 Determinism: "SHA-256
// of... the JSON-canonicalized input").
func canonicalizeJSON(data []byte) ([]byte, error) {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
