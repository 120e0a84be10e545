// Package pipe parses the `std.stream.pipe_v1` s-expression descriptor
// (spec §4.4) into a Descriptor — the compile-time shape a generated
// helper closes over — and renders that helper's Go source (spec §4.5
// codegen). The actual step-by-step execution semantics live in
// pkg/piperuntime; this package only gets a Descriptor into a form
// pkg/piperuntime.Plan (plus compiled hoisted-expression closures) can be
// built from.
package pipe

import "github.com/blockberries/x07/pkg/piperuntime"

// ParamKind identifies what shape of closure a hoisted parameter expects
// once the surrounding compiler compiles its std.stream.expr_v1 body.
type ParamKind int

const (
	ParamByteFn ParamKind = iota
	ParamPredFn
	ParamScratchFn
)

func (k ParamKind) String() string {
	switch k {
	case ParamByteFn:
		return "byte_fn"
	case ParamPredFn:
		return "pred_fn"
	case ParamScratchFn:
		return "scratch_fn"
	default:
		return "unknown"
	}
}

// Param is one hoisted `std.stream.expr_v1` body, in left-to-right
// declaration order (spec §4.4: "hoisted parameters preserve left-to-right
// declaration order"). Source holds the expression's original text
// representation (re-rendered from its Expr for diagnostics; Generate does
// not emit it); the compiled closure itself is produced
// elsewhere and threaded in via Params at Plan-build time.
type Param struct {
	Kind   ParamKind
	Slot   string // e.g. "chain[1].map_bytes.fn"
	Source string
}

// CfgDesc mirrors piperuntime.Cfg with the same field set; every field here
// is a literal (cfg fields are never std.stream.expr_v1-wrapped).
type CfgDesc = piperuntime.Cfg

// SrcDesc mirrors piperuntime.Src.
type SrcDesc = piperuntime.Src

// SinkDesc mirrors piperuntime.Sink.
type SinkDesc = piperuntime.Sink

// XfDesc is one chain transform. Its function-valued fields
// (MapFn/Filter/ScratchFn in piperuntime.Xf) are omitted here — those slots
// are always std.stream.expr_v1-wrapped, so the parser hoists them into
// Params instead of leaving them as Expr literals sitting in the tree.
type XfDesc struct {
	Kind piperuntime.XfKind

	TakeN int

	LineDelim    byte
	MaxLineBytes int

	ScratchCapBytes int
	ClearBeforeEach bool

	MaxDepth            int
	MaxObjectMembers    int
	MaxObjectTotalBytes int
	EmitChunkMaxBytes   int

	AllowEmpty    bool
	MaxFrames     int
	MaxFrameBytes int
	OnTruncated   piperuntime.OnTruncated

	// ParamIndex is the index into Descriptor.Params of this stage's
	// hoisted expression, or -1 if the stage has none (take/split_lines/
	// frame_u32le/json_canon_stream/deframe_u32le carry no expr body).
	ParamIndex int
}

// Descriptor is the fully parsed, not-yet-compiled pipe shape.
type Descriptor struct {
	Cfg    CfgDesc
	Src    SrcDesc
	Chain  []XfDesc
	Sink   SinkDesc
	Params []Param
}
