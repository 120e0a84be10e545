// Package piperuntime implements the executable semantics of one
// elaborated stream-pipe shape (spec §4.5): the run loop, its budget
// enforcement, per-stage transform state machines, sink implementations,
// and the Ok/Err response envelope. A Plan is the in-memory analogue of
// the generated helper's body; pkg/pipe renders thin Go glue that builds a
// Plan and calls Run — this package is what that glue (and the test suite)
// actually calls.
package piperuntime

// Cfg mirrors spec §3.4 PipeCfg.
type Cfg struct {
	ChunkMaxBytes   int
	BufreadCapBytes int
	MaxInBytes      int
	MaxOutBytes     int
	MaxItems        int
	MaxSteps        int // 0 means "derive from MaxInBytes/ChunkMaxBytes + 8" (spec §4.5)
	EmitPayload     bool
	EmitStats       bool
}

func (c Cfg) effectiveMaxSteps() int {
	if c.MaxSteps > 0 {
		return c.MaxSteps
	}
	if c.ChunkMaxBytes <= 0 {
		return 8
	}
	steps := c.MaxInBytes / c.ChunkMaxBytes
	if c.MaxInBytes%c.ChunkMaxBytes != 0 {
		steps++
	}
	return steps + 8
}

// SrcKind identifies the source driver (spec §3.4 PipeSrc).
type SrcKind int

const (
	SrcBytes SrcKind = iota
	SrcFSOpenRead
	SrcRRSend
	SrcDBRowsDoc
	SrcNetTCPReadStreamHandle
)

// OnTimeout / OnEOF policies for the net stream-handle source.
type OnTimeout int

const (
	OnTimeoutErr OnTimeout = iota
	OnTimeoutStop
	OnTimeoutStopIfClean
)

type OnEOF int

const (
	OnEOFLeaveOpen OnEOF = iota
	OnEOFShutdownRead
	OnEOFClose
)

// Src is the tagged union of source variants.
type Src struct {
	Kind SrcKind

	Bytes []byte // SrcBytes

	Path []byte // SrcFSOpenRead
	Key  []byte // SrcRRSend

	Query  []byte // SrcDBRowsDoc
	Params []byte
	Caps   []byte

	Addr        string // SrcNetTCPReadStreamHandle
	NetCaps     NetReadCaps
	OnTimeout   OnTimeout
	OnEOFPolicy OnEOF
}

// NetReadCaps mirrors the net capability doc layout (spec §6.4): version=1,
// max_read_bytes, max_write_bytes, reserved=0.
type NetReadCaps struct {
	Version      uint32
	MaxReadBytes uint32
	MaxWriteBytes uint32
	Reserved     uint32
}

// XfKind identifies a chain transform (spec §3.4 PipeXf).
type XfKind int

const (
	XfMapBytes XfKind = iota
	XfFilter
	XfTake
	XfSplitLines
	XfFrameU32LE
	XfMapInPlaceBuf
	XfJSONCanonStream
	XfDeframeU32LE
)

// ByteFn is a hoisted runtime expression's Go analogue: a function over a
// byte chunk, standing in for the `std.stream.expr_v1` body the real
// compiler would compile and splice in.
type ByteFn func(chunk []byte) ([]byte, error)

// PredFn stands in for a filter predicate expression.
type PredFn func(chunk []byte) (bool, error)

// ScratchFn stands in for a map_in_place_buf expression: it receives the
// input chunk and a mutable scratch buffer, returning the number of bytes
// written into scratch, or an error.
type ScratchFn func(chunk []byte, scratch []byte) (n int, err error)

// Xf is the tagged union of transform variants.
type Xf struct {
	Kind XfKind

	MapFn  ByteFn // XfMapBytes
	Filter PredFn // XfFilter

	TakeN int // XfTake

	LineDelim      byte // XfSplitLines
	MaxLineBytes   int

	ScratchCapBytes  int // XfMapInPlaceBuf
	ClearBeforeEach  bool
	ScratchFn        ScratchFn

	MaxDepth             int // XfJSONCanonStream
	MaxObjectMembers     int
	MaxObjectTotalBytes  int
	EmitChunkMaxBytes    int

	AllowEmpty    bool // XfDeframeU32LE
	MaxFrames     int
	MaxFrameBytes int
	OnTruncated   OnTruncated
}

type OnTruncated int

const (
	OnTruncatedErr OnTruncated = iota
	OnTruncatedDrop
)

// SinkKind identifies the terminal sink (spec §3.4 PipeSink).
type SinkKind int

const (
	SinkCollectBytes SinkKind = iota
	SinkHashFNV1a32
	SinkNull
	SinkWorldFSWriteFile
	SinkWorldFSWriteStream
	SinkNetTCPWriteStreamHandle
	SinkNetTCPConnectWrite
)

// Sink is the tagged union of sink variants.
type Sink struct {
	Kind SinkKind

	Path []byte // SinkWorldFSWriteFile / SinkWorldFSWriteStream
	FlushThresholdBytes int // SinkWorldFSWriteStream

	Addr          string // SinkNetTCPConnectWrite
	MaxFlushes    int    // SinkNetTCPWriteStreamHandle / SinkNetTCPConnectWrite
	MaxWriteCalls int
	OnFinish      OnFinish

	// U32Frames wraps the sink's item boundary in a u32_le length prefix
	// (spec §3.4: "wrapped optionally by u32frames (non-nestable)").
	U32Frames bool
}

type OnFinish int

const (
	OnFinishLeaveOpen OnFinish = iota
	OnFinishShutdownRead
	OnFinishClose
)

// Plan is the fully elaborated shape Run executes.
type Plan struct {
	Cfg   Cfg
	Src   Src
	Chain []Xf
	Sink  Sink
}
