package pipe

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"lukechampine.com/blake3"
)

// HelperIdentity computes the generated helper's name (spec §4.5):
// `<module>.__std_stream_pipe_v1_<hex8>`, where hex8 is the first 32 bits
// of a BLAKE3 hash over the descriptor canonicalized to JSON with sorted
// keys and every hoisted expression body replaced by null (the helper's
// identity is a function of its shape, not of the literal expression
// source text spliced into it).
func HelperIdentity(module string, d *Descriptor) (string, error) {
	canon, err := canonicalize(d)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(canon)
	return fmt.Sprintf("%s.__std_stream_pipe_v1_%s", module, hex.EncodeToString(sum[:4])), nil
}

// canonicalize renders d as JSON with map keys sorted (Go's encoding/json
// sorts map[string]any keys automatically) and expr-body text nulled out.
func canonicalize(d *Descriptor) ([]byte, error) {
	scrubbed := *d
	scrubbed.Params = make([]Param, len(d.Params))
	for i, p := range d.Params {
		scrubbed.Params[i] = Param{Kind: p.Kind, Slot: p.Slot, Source: ""}
	}
	raw, err := json.Marshal(scrubbed)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
