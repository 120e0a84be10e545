package pipe

import (
	"strings"
	"testing"

	"github.com/blockberries/x07/pkg/exprast"
	"github.com/blockberries/x07/pkg/piperuntime"
)

func simplePipe() exprast.Expr {
	return exprast.List(
		exprast.Ident("std.stream.pipe_v1"),
		exprast.List(exprast.Ident("cfg"),
			exprast.KV("chunk_max_bytes", exprast.IntLit(64)),
			exprast.KV("max_in_bytes", exprast.IntLit(1024)),
			exprast.KV("max_out_bytes", exprast.IntLit(1024)),
			exprast.KV("max_items", exprast.IntLit(100)),
		),
		exprast.List(exprast.Ident("bytes"), exprast.KV("data", exprast.StrLit("hello"))),
		exprast.List(exprast.Ident("chain"),
			exprast.List(exprast.Ident("map_bytes"),
				exprast.KV("fn", exprast.List(exprast.Ident("std.stream.expr_v1"), exprast.Ident("upper")))),
			exprast.List(exprast.Ident("take"), exprast.KV("n", exprast.IntLit(1))),
		),
		exprast.List(exprast.Ident("collect_bytes")),
	)
}

func TestParseSimplePipe(t *testing.T) {
	d, err := Parse(simplePipe())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Cfg.ChunkMaxBytes != 64 || d.Cfg.MaxItems != 100 {
		t.Fatalf("cfg mismatch: %+v", d.Cfg)
	}
	if d.Src.Kind != piperuntime.SrcBytes || string(d.Src.Bytes) != "hello" {
		t.Fatalf("src mismatch: %+v", d.Src)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected 2 chain stages, got %d", len(d.Chain))
	}
	if d.Chain[0].Kind != piperuntime.XfMapBytes || d.Chain[0].ParamIndex != 0 {
		t.Fatalf("stage 0 mismatch: %+v", d.Chain[0])
	}
	if d.Chain[1].Kind != piperuntime.XfTake || d.Chain[1].TakeN != 1 {
		t.Fatalf("stage 1 mismatch: %+v", d.Chain[1])
	}
	if len(d.Params) != 1 || d.Params[0].Kind != ParamByteFn {
		t.Fatalf("expected 1 hoisted byte-fn param, got %+v", d.Params)
	}
	if d.Sink.Kind != piperuntime.SinkCollectBytes {
		t.Fatalf("sink mismatch: %+v", d.Sink)
	}
}

func TestParseRejectsWrongArity(t *testing.T) {
	e := exprast.List(exprast.Ident("std.stream.pipe_v1"), exprast.List(exprast.Ident("cfg")))
	if _, err := Parse(e); err == nil {
		t.Error("expected arity error")
	}
}

func TestParseRejectsUnwrappedExpr(t *testing.T) {
	e := exprast.List(
		exprast.Ident("std.stream.pipe_v1"),
		exprast.List(exprast.Ident("cfg"),
			exprast.KV("chunk_max_bytes", exprast.IntLit(8)),
			exprast.KV("max_in_bytes", exprast.IntLit(8)),
			exprast.KV("max_out_bytes", exprast.IntLit(8)),
			exprast.KV("max_items", exprast.IntLit(8)),
		),
		exprast.List(exprast.Ident("bytes"), exprast.KV("data", exprast.StrLit("x"))),
		exprast.List(exprast.Ident("chain"),
			exprast.List(exprast.Ident("map_bytes"), exprast.KV("fn", exprast.Ident("upper"))),
		),
		exprast.List(exprast.Ident("collect_bytes")),
	)
	if _, err := Parse(e); err == nil {
		t.Error("expected error for unwrapped expr field")
	}
}

func TestU32FramesNotNestable(t *testing.T) {
	e := exprast.List(exprast.Ident("u32frames"),
		exprast.List(exprast.Ident("u32frames"), exprast.List(exprast.Ident("collect_bytes"))))
	p := &parser{}
	if _, err := p.parseSink(e); err == nil {
		t.Error("expected nestable-wrapping error")
	}
}

func TestNetTCPReadU32FramesDesugarsDeframePrepend(t *testing.T) {
	e := exprast.List(
		exprast.Ident("std.stream.pipe_v1"),
		exprast.List(exprast.Ident("cfg"),
			exprast.KV("chunk_max_bytes", exprast.IntLit(8)),
			exprast.KV("max_in_bytes", exprast.IntLit(8)),
			exprast.KV("max_out_bytes", exprast.IntLit(8)),
			exprast.KV("max_items", exprast.IntLit(8)),
		),
		exprast.List(exprast.Ident("net_tcp_read_u32frames"), exprast.KV("addr", exprast.StrLit("127.0.0.1:9"))),
		exprast.List(exprast.Ident("chain")),
		exprast.List(exprast.Ident("collect_bytes")),
	)
	d, err := Parse(e)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(d.Chain) != 1 || d.Chain[0].Kind != piperuntime.XfDeframeU32LE {
		t.Fatalf("expected prepended deframe_u32le stage, got %+v", d.Chain)
	}
}

func TestHelperIdentityDeterministicAndIgnoresExprSource(t *testing.T) {
	d1, err := Parse(simplePipe())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	d2, err := Parse(simplePipe())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	d2.Params[0].Source = "totally different expr text"

	n1, err := HelperIdentity("demo", d1)
	if err != nil {
		t.Fatalf("HelperIdentity: %v", err)
	}
	n2, err := HelperIdentity("demo", d2)
	if err != nil {
		t.Fatalf("HelperIdentity: %v", err)
	}
	if n1 != n2 {
		t.Errorf("expected identity to ignore expr source text: %s != %s", n1, n2)
	}
	if !strings.HasPrefix(n1, "demo.__std_stream_pipe_v1_") {
		t.Errorf("unexpected helper name shape: %s", n1)
	}
}

func TestGenerateProducesHelperSource(t *testing.T) {
	d, err := Parse(simplePipe())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	src, name, err := Generate("demo", d)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(src, "piperuntime.Run(ctx, host, plan)") {
		t.Errorf("generated source missing Run call:\n%s", src)
	}
	if !strings.Contains(src, "func "+name) {
		t.Errorf("generated source missing func %s:\n%s", name, src)
	}
}

func TestRegistryDedupesIdenticalShapes(t *testing.T) {
	d1, _ := Parse(simplePipe())
	d2, _ := Parse(simplePipe())
	reg := NewRegistry()
	src1, name1, err := reg.Elaborate("demo", d1)
	if err != nil {
		t.Fatalf("Elaborate 1: %v", err)
	}
	src2, name2, err := reg.Elaborate("demo", d2)
	if err != nil {
		t.Fatalf("Elaborate 2: %v", err)
	}
	if name1 != name2 || src1 != src2 {
		t.Errorf("expected identical elaboration to be memoized/reused")
	}
}
