package pipe

import (
	"fmt"
	"strings"
)

// Generate renders the Go source of the helper function for d (spec
// §4.5's codegen step). The helper is deliberately thin: it builds a
// piperuntime.Plan from the descriptor's literal fields, plugs the
// caller-supplied hoisted-parameter closures into their slots (in the same
// left-to-right order Params records them), and calls piperuntime.Run. The
// surrounding compiler is responsible for actually compiling each
// std.stream.expr_v1 body into the Go closure passed at call time; this
// package only emits the glue around those closures.
func Generate(module string, d *Descriptor) (source string, helperName string, err error) {
	helperName, err = HelperIdentity(module, d)
	if err != nil {
		return "", "", err
	}
	shortName := helperName[strings.LastIndex(helperName, ".")+1:]

	var b strings.Builder
	fmt.Fprintf(&b, "// %s runs the pipe shape hashed into its own name.\n", shortName)
	fmt.Fprintf(&b, "// Generated by pkg/pipe from a std.stream.pipe_v1 descriptor; do not hand-edit.\n")
	fmt.Fprintf(&b, "func %s(ctx context.Context, host piperuntime.Host, params []any) (piperuntime.Envelope, error) {\n", shortName)
	fmt.Fprintf(&b, "\tplan := piperuntime.Plan{\n")
	fmt.Fprintf(&b, "\t\tCfg: piperuntime.Cfg{\n")
	fmt.Fprintf(&b, "\t\t\tChunkMaxBytes:   %d,\n", d.Cfg.ChunkMaxBytes)
	fmt.Fprintf(&b, "\t\t\tBufreadCapBytes: %d,\n", d.Cfg.BufreadCapBytes)
	fmt.Fprintf(&b, "\t\t\tMaxInBytes:      %d,\n", d.Cfg.MaxInBytes)
	fmt.Fprintf(&b, "\t\t\tMaxOutBytes:     %d,\n", d.Cfg.MaxOutBytes)
	fmt.Fprintf(&b, "\t\t\tMaxItems:        %d,\n", d.Cfg.MaxItems)
	fmt.Fprintf(&b, "\t\t\tMaxSteps:        %d,\n", d.Cfg.MaxSteps)
	fmt.Fprintf(&b, "\t\t\tEmitPayload:     %t,\n", d.Cfg.EmitPayload)
	fmt.Fprintf(&b, "\t\t\tEmitStats:       %t,\n", d.Cfg.EmitStats)
	fmt.Fprintf(&b, "\t\t},\n")
	fmt.Fprintf(&b, "\t\tSrc: %s,\n", renderSrcLiteral(d))
	fmt.Fprintf(&b, "\t\tChain: []piperuntime.Xf{\n")
	for i, xf := range d.Chain {
		fmt.Fprintf(&b, "\t\t\t%s,\n", renderXfLiteral(i, xf))
	}
	fmt.Fprintf(&b, "\t\t},\n")
	fmt.Fprintf(&b, "\t\tSink: %s,\n", renderSinkLiteral(d))
	fmt.Fprintf(&b, "\t}\n")
	fmt.Fprintf(&b, "\treturn piperuntime.Run(ctx, host, plan)\n")
	fmt.Fprintf(&b, "}\n")
	return b.String(), shortName, nil
}

func renderSrcLiteral(d *Descriptor) string {
	return fmt.Sprintf("%#v", d.Src)
}

func renderSinkLiteral(d *Descriptor) string {
	return fmt.Sprintf("%#v", d.Sink)
}

func renderXfLiteral(i int, xf XfDesc) string {
	switch xf.Kind {
	case 0: // XfMapBytes
		return fmt.Sprintf("{Kind: piperuntime.XfMapBytes, MapFn: params[%d].(piperuntime.ByteFn)}", xf.ParamIndex)
	case 1: // XfFilter
		return fmt.Sprintf("{Kind: piperuntime.XfFilter, Filter: params[%d].(piperuntime.PredFn)}", xf.ParamIndex)
	case 2: // XfTake
		return fmt.Sprintf("{Kind: piperuntime.XfTake, TakeN: %d}", xf.TakeN)
	case 3: // XfSplitLines
		return fmt.Sprintf("{Kind: piperuntime.XfSplitLines, LineDelim: %d, MaxLineBytes: %d}", xf.LineDelim, xf.MaxLineBytes)
	case 4: // XfFrameU32LE
		return "{Kind: piperuntime.XfFrameU32LE}"
	case 5: // XfMapInPlaceBuf
		return fmt.Sprintf("{Kind: piperuntime.XfMapInPlaceBuf, ScratchCapBytes: %d, ClearBeforeEach: %t, ScratchFn: params[%d].(piperuntime.ScratchFn)}",
			xf.ScratchCapBytes, xf.ClearBeforeEach, xf.ParamIndex)
	case 6: // XfJSONCanonStream
		return fmt.Sprintf("{Kind: piperuntime.XfJSONCanonStream, MaxDepth: %d, MaxObjectMembers: %d, MaxObjectTotalBytes: %d, EmitChunkMaxBytes: %d}",
			xf.MaxDepth, xf.MaxObjectMembers, xf.MaxObjectTotalBytes, xf.EmitChunkMaxBytes)
	case 7: // XfDeframeU32LE
		return fmt.Sprintf("{Kind: piperuntime.XfDeframeU32LE, AllowEmpty: %t, MaxFrames: %d, MaxFrameBytes: %d, OnTruncated: %d}",
			xf.AllowEmpty, xf.MaxFrames, xf.MaxFrameBytes, xf.OnTruncated)
	default:
		return "{}"
	}
}
