package emitter

import "sort"

// Report is the `--report-json` output of the schema-derive CLI (spec
// §6.2): a fixed schema_version tag, the input path, whether anything was
// written, whether any planned output drifted from what's on disk, the
// SHA-256 of the raw and canonicalized input, and the sorted list of files
// touched.
type Report struct {
	SchemaVersion        string       `json:"schema_version"`
	Input                string       `json:"input"`
	Wrote                bool         `json:"wrote"`
	Drift                bool         `json:"drift"`
	InputSHA256          string       `json:"input_sha256,omitempty"`
	CanonicalInputSHA256 string       `json:"canonical_input_sha256,omitempty"`
	Files                []ModuleFile `json:"files"`
	Errors               []string     `json:"errors,omitempty"`
}

const ReportSchemaVersion = "x07.schema.derive.report@0.1.0"

// BuildReport assembles a Report from one Derive call's result, sorting
// Files by path so the report is byte-identical across runs regardless of
// goroutine completion order.
func BuildReport(input string, wrote, drift bool, inputSHA256, canonicalInputSHA256 string, files []ModuleFile, errs []string) Report {
	sorted := append([]ModuleFile(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	return Report{
		SchemaVersion:        ReportSchemaVersion,
		Input:                input,
		Wrote:                wrote,
		Drift:                drift,
		InputSHA256:          inputSHA256,
		CanonicalInputSHA256: canonicalInputSHA256,
		Files:                sorted,
		Errors:               errs,
	}
}

// Marshal renders the report the same way every other emitted document is
// rendered: sorted keys, trailing newline.
func (r Report) Marshal() (string, error) {
	return marshalCanonical(r)
}
