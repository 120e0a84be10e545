package pipe

import (
	"fmt"

	"github.com/blockberries/x07/pkg/exprast"
	"github.com/blockberries/x07/pkg/piperuntime"
)

// Parse turns the top-level `std.stream.pipe_v1` Expr into a Descriptor
// (spec §4.4). It expects exactly 4 children: cfg, src, chain, sink.
func Parse(e exprast.Expr) (*Descriptor, error) {
	head, ok := e.Head()
	if !ok || head != "std.stream.pipe_v1" {
		return nil, fmt.Errorf("pipe: expected std.stream.pipe_v1, got %v", e)
	}
	args := e.Args()
	if len(args) != 4 {
		return nil, fmt.Errorf("pipe: std.stream.pipe_v1 expects exactly 4 children, got %d", len(args))
	}

	p := &parser{}
	cfg, err := p.parseCfg(args[0])
	if err != nil {
		return nil, err
	}
	src, err := p.parseSrc(args[1])
	if err != nil {
		return nil, err
	}
	chain, err := p.parseChain(args[2])
	if err != nil {
		return nil, err
	}
	sink, err := p.parseSink(args[3])
	if err != nil {
		return nil, err
	}

	return &Descriptor{Cfg: cfg, Src: src, Chain: chain, Sink: sink, Params: p.params}, nil
}

type parser struct {
	params               []Param
	desugarDeframePrepend bool
}

func (p *parser) hoist(kind ParamKind, slot string, body exprast.Expr) int {
	idx := len(p.params)
	p.params = append(p.params, Param{Kind: kind, Slot: slot, Source: renderExpr(body)})
	return idx
}

// renderExpr produces a compact textual form of an Expr, good enough for a
// generated helper's doc comment or an error message — not meant to be
// re-parsed.
func renderExpr(e exprast.Expr) string {
	switch e.Kind {
	case exprast.KindIdent:
		return e.Ident
	case exprast.KindInt:
		return fmt.Sprintf("%d", e.Int)
	case exprast.KindStr:
		return fmt.Sprintf("%q", e.Str)
	case exprast.KindList:
		s := "("
		for i, it := range e.Items {
			if i > 0 {
				s += " "
			}
			s += renderExpr(it)
		}
		return s + ")"
	default:
		return "?"
	}
}

func kvMap(args []exprast.Expr) map[string]exprast.Expr {
	m := make(map[string]exprast.Expr, len(args))
	for _, a := range args {
		if name, val, ok := a.IsKV(); ok {
			m[name] = val
		}
	}
	return m
}

func isExprWrapped(e exprast.Expr) (exprast.Expr, bool) {
	if h, ok := e.Head(); ok && h == "std.stream.expr_v1" {
		args := e.Args()
		if len(args) != 1 {
			return exprast.Expr{}, false
		}
		return args[0], true
	}
	return exprast.Expr{}, false
}

func reqInt(m map[string]exprast.Expr, name string) (int, error) {
	e, ok := m[name]
	if !ok {
		return 0, fmt.Errorf("pipe: missing required field %q", name)
	}
	if e.Kind != exprast.KindInt {
		return 0, fmt.Errorf("pipe: field %q must be an integer", name)
	}
	return int(e.Int), nil
}

func optInt(m map[string]exprast.Expr, name string, def int) (int, error) {
	e, ok := m[name]
	if !ok {
		return def, nil
	}
	if e.Kind != exprast.KindInt {
		return 0, fmt.Errorf("pipe: field %q must be an integer", name)
	}
	return int(e.Int), nil
}

func reqBool(m map[string]exprast.Expr, name string) (bool, error) {
	e, ok := m[name]
	if !ok {
		return false, fmt.Errorf("pipe: missing required field %q", name)
	}
	if e.Kind != exprast.KindIdent || (e.Ident != "true" && e.Ident != "false") {
		return false, fmt.Errorf("pipe: field %q must be true/false", name)
	}
	return e.Ident == "true", nil
}

func optBool(m map[string]exprast.Expr, name string, def bool) (bool, error) {
	if _, ok := m[name]; !ok {
		return def, nil
	}
	return reqBool(m, name)
}

func reqStr(m map[string]exprast.Expr, name string) (string, error) {
	e, ok := m[name]
	if !ok {
		return "", fmt.Errorf("pipe: missing required field %q", name)
	}
	if e.Kind != exprast.KindStr {
		return "", fmt.Errorf("pipe: field %q must be a string", name)
	}
	return e.Str, nil
}

func optStr(m map[string]exprast.Expr, name, def string) (string, error) {
	if _, ok := m[name]; !ok {
		return def, nil
	}
	return reqStr(m, name)
}

func (p *parser) parseCfg(e exprast.Expr) (CfgDesc, error) {
	head, ok := e.Head()
	if !ok || head != "cfg" {
		return CfgDesc{}, fmt.Errorf("pipe: expected (cfg ...), got %v", e)
	}
	m := kvMap(e.Args())
	var cfg CfgDesc
	var err error
	if cfg.ChunkMaxBytes, err = reqInt(m, "chunk_max_bytes"); err != nil {
		return cfg, err
	}
	if cfg.BufreadCapBytes, err = optInt(m, "bufread_cap_bytes", cfg.ChunkMaxBytes); err != nil {
		return cfg, err
	}
	if cfg.MaxInBytes, err = reqInt(m, "max_in_bytes"); err != nil {
		return cfg, err
	}
	if cfg.MaxOutBytes, err = reqInt(m, "max_out_bytes"); err != nil {
		return cfg, err
	}
	if cfg.MaxItems, err = reqInt(m, "max_items"); err != nil {
		return cfg, err
	}
	if cfg.MaxSteps, err = optInt(m, "max_steps", 0); err != nil {
		return cfg, err
	}
	if cfg.EmitPayload, err = optBool(m, "emit_payload", true); err != nil {
		return cfg, err
	}
	if cfg.EmitStats, err = optBool(m, "emit_stats", true); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (p *parser) parseSrc(e exprast.Expr) (SrcDesc, error) {
	head, ok := e.Head()
	if !ok {
		return SrcDesc{}, fmt.Errorf("pipe: expected a source form, got %v", e)
	}
	m := kvMap(e.Args())
	switch head {
	case "bytes":
		s, err := reqStr(m, "data")
		if err != nil {
			return SrcDesc{}, err
		}
		return SrcDesc{Kind: piperuntime.SrcBytes, Bytes: []byte(s)}, nil
	case "fs_open_read":
		path, err := reqStr(m, "path")
		if err != nil {
			return SrcDesc{}, err
		}
		return SrcDesc{Kind: piperuntime.SrcFSOpenRead, Path: []byte(path)}, nil
	case "rr_send":
		key, err := reqStr(m, "key")
		if err != nil {
			return SrcDesc{}, err
		}
		return SrcDesc{Kind: piperuntime.SrcRRSend, Key: []byte(key)}, nil
	case "db_rows_doc":
		q, err := reqStr(m, "query")
		if err != nil {
			return SrcDesc{}, err
		}
		params, _ := optStr(m, "params", "")
		caps, _ := optStr(m, "caps", "")
		return SrcDesc{Kind: piperuntime.SrcDBRowsDoc, Query: []byte(q), Params: []byte(params), Caps: []byte(caps)}, nil
	case "net_tcp_read_stream_handle":
		return p.parseNetReadSrc(m)
	case "net_tcp_read_u32frames":
		// Desugars to a stream-handle source with deframe_u32le prepended
		// to the chain (spec §3.4). Src alone can't add a chain stage, so
		// this sets a flag on the parser and parseChain does the prepend.
		src, err := p.parseNetReadSrc(m)
		if err != nil {
			return SrcDesc{}, err
		}
		p.desugarDeframePrepend = true
		return src, nil
	default:
		return SrcDesc{}, fmt.Errorf("pipe: unknown source kind %q", head)
	}
}

func (p *parser) parseNetReadSrc(m map[string]exprast.Expr) (SrcDesc, error) {
	addr, err := reqStr(m, "addr")
	if err != nil {
		return SrcDesc{}, err
	}
	maxRead, _ := optInt(m, "max_read_bytes", 0)
	maxWrite, _ := optInt(m, "max_write_bytes", 0)
	onTimeout, err := optStr(m, "on_timeout", "err")
	if err != nil {
		return SrcDesc{}, err
	}
	onEOF, err := optStr(m, "on_eof", "leave_open")
	if err != nil {
		return SrcDesc{}, err
	}
	var ot piperuntime.OnTimeout
	switch onTimeout {
	case "err":
		ot = piperuntime.OnTimeoutErr
	case "stop":
		ot = piperuntime.OnTimeoutStop
	case "stop_if_clean":
		ot = piperuntime.OnTimeoutStopIfClean
	default:
		return SrcDesc{}, fmt.Errorf("pipe: unknown on_timeout policy %q", onTimeout)
	}
	var oe piperuntime.OnEOF
	switch onEOF {
	case "leave_open":
		oe = piperuntime.OnEOFLeaveOpen
	case "shutdown_read":
		oe = piperuntime.OnEOFShutdownRead
	case "close":
		oe = piperuntime.OnEOFClose
	default:
		return SrcDesc{}, fmt.Errorf("pipe: unknown on_eof policy %q", onEOF)
	}
	return SrcDesc{
		Kind:        piperuntime.SrcNetTCPReadStreamHandle,
		Addr:        addr,
		NetCaps:     piperuntime.NetReadCaps{Version: 1, MaxReadBytes: uint32(maxRead), MaxWriteBytes: uint32(maxWrite)},
		OnTimeout:   ot,
		OnEOFPolicy: oe,
	}, nil
}

func (p *parser) parseChain(e exprast.Expr) ([]XfDesc, error) {
	head, ok := e.Head()
	if !ok || head != "chain" {
		return nil, fmt.Errorf("pipe: expected (chain ...), got %v", e)
	}
	var out []XfDesc
	if p.desugarDeframePrepend {
		out = append(out, XfDesc{Kind: piperuntime.XfDeframeU32LE, ParamIndex: -1, MaxFrames: 0})
	}
	for i, stage := range e.Args() {
		xd, err := p.parseXf(i, stage)
		if err != nil {
			return nil, err
		}
		out = append(out, xd)
	}
	return out, nil
}

func (p *parser) parseXf(i int, e exprast.Expr) (XfDesc, error) {
	head, ok := e.Head()
	if !ok {
		return XfDesc{}, fmt.Errorf("pipe: expected a transform form at chain[%d], got %v", i, e)
	}
	m := kvMap(e.Args())
	slot := fmt.Sprintf("chain[%d].%s", i, head)
	switch head {
	case "map_bytes":
		idx, err := p.hoistRequiredExpr(ParamByteFn, slot+".fn", m, "fn")
		if err != nil {
			return XfDesc{}, err
		}
		return XfDesc{Kind: piperuntime.XfMapBytes, ParamIndex: idx}, nil
	case "filter":
		idx, err := p.hoistRequiredExpr(ParamPredFn, slot+".fn", m, "fn")
		if err != nil {
			return XfDesc{}, err
		}
		return XfDesc{Kind: piperuntime.XfFilter, ParamIndex: idx}, nil
	case "take":
		n, err := reqInt(m, "n")
		if err != nil {
			return XfDesc{}, err
		}
		return XfDesc{Kind: piperuntime.XfTake, TakeN: n, ParamIndex: -1}, nil
	case "split_lines":
		delim, err := optStr(m, "delim", "\n")
		if err != nil {
			return XfDesc{}, err
		}
		if len(delim) != 1 {
			return XfDesc{}, fmt.Errorf("pipe: split_lines delim must be exactly one byte")
		}
		maxLine, err := reqInt(m, "max_line_bytes")
		if err != nil {
			return XfDesc{}, err
		}
		return XfDesc{Kind: piperuntime.XfSplitLines, LineDelim: delim[0], MaxLineBytes: maxLine, ParamIndex: -1}, nil
	case "frame_u32le":
		return XfDesc{Kind: piperuntime.XfFrameU32LE, ParamIndex: -1}, nil
	case "map_in_place_buf":
		scratchCap, err := reqInt(m, "scratch_cap_bytes")
		if err != nil {
			return XfDesc{}, err
		}
		clear, err := optBool(m, "clear_before_each", false)
		if err != nil {
			return XfDesc{}, err
		}
		idx, err := p.hoistRequiredExpr(ParamScratchFn, slot+".fn", m, "fn")
		if err != nil {
			return XfDesc{}, err
		}
		return XfDesc{Kind: piperuntime.XfMapInPlaceBuf, ScratchCapBytes: scratchCap, ClearBeforeEach: clear, ParamIndex: idx}, nil
	case "json_canon_stream":
		maxDepth, _ := optInt(m, "max_depth", 0)
		maxMembers, _ := optInt(m, "max_object_members", 0)
		maxTotal, _ := optInt(m, "max_object_total_bytes", 0)
		emitChunk, _ := optInt(m, "emit_chunk_max_bytes", 0)
		return XfDesc{
			Kind: piperuntime.XfJSONCanonStream, ParamIndex: -1,
			MaxDepth: maxDepth, MaxObjectMembers: maxMembers,
			MaxObjectTotalBytes: maxTotal, EmitChunkMaxBytes: emitChunk,
		}, nil
	case "deframe_u32le":
		allowEmpty, _ := optBool(m, "allow_empty", false)
		maxFrames, _ := optInt(m, "max_frames", 0)
		maxFrameBytes, _ := optInt(m, "max_frame_bytes", 0)
		onTrunc, err := optStr(m, "on_truncated", "err")
		if err != nil {
			return XfDesc{}, err
		}
		var ot piperuntime.OnTruncated
		switch onTrunc {
		case "err":
			ot = piperuntime.OnTruncatedErr
		case "drop":
			ot = piperuntime.OnTruncatedDrop
		default:
			return XfDesc{}, fmt.Errorf("pipe: unknown on_truncated policy %q", onTrunc)
		}
		return XfDesc{Kind: piperuntime.XfDeframeU32LE, AllowEmpty: allowEmpty, MaxFrames: maxFrames, MaxFrameBytes: maxFrameBytes, OnTruncated: ot, ParamIndex: -1}, nil
	default:
		return XfDesc{}, fmt.Errorf("pipe: unknown transform kind %q", head)
	}
}

func (p *parser) hoistRequiredExpr(kind ParamKind, slot string, m map[string]exprast.Expr, name string) (int, error) {
	e, ok := m[name]
	if !ok {
		return -1, fmt.Errorf("pipe: missing required field %q", name)
	}
	body, ok := isExprWrapped(e)
	if !ok {
		return -1, fmt.Errorf("pipe: field %q must be wrapped in std.stream.expr_v1", name)
	}
	return p.hoist(kind, slot, body), nil
}

func (p *parser) parseSink(e exprast.Expr) (SinkDesc, error) {
	head, ok := e.Head()
	if !ok {
		return SinkDesc{}, fmt.Errorf("pipe: expected a sink form, got %v", e)
	}
	if head == "u32frames" {
		args := e.Args()
		if len(args) != 1 {
			return SinkDesc{}, fmt.Errorf("pipe: u32frames wraps exactly one inner sink")
		}
		inner, err := p.parseSink(args[0])
		if err != nil {
			return SinkDesc{}, err
		}
		if inner.U32Frames {
			return SinkDesc{}, fmt.Errorf("pipe: u32frames is not nestable")
		}
		inner.U32Frames = true
		return inner, nil
	}
	m := kvMap(e.Args())
	switch head {
	case "collect_bytes":
		return SinkDesc{Kind: piperuntime.SinkCollectBytes}, nil
	case "hash_fnv1a32":
		return SinkDesc{Kind: piperuntime.SinkHashFNV1a32}, nil
	case "null":
		return SinkDesc{Kind: piperuntime.SinkNull}, nil
	case "world_fs_write_file":
		path, err := reqStr(m, "path")
		if err != nil {
			return SinkDesc{}, err
		}
		return SinkDesc{Kind: piperuntime.SinkWorldFSWriteFile, Path: []byte(path)}, nil
	case "world_fs_write_stream", "world_fs_write_stream_hash":
		path, err := reqStr(m, "path")
		if err != nil {
			return SinkDesc{}, err
		}
		return SinkDesc{Kind: piperuntime.SinkWorldFSWriteStream, Path: []byte(path)}, nil
	case "net_tcp_write_stream_handle":
		addr, err := reqStr(m, "addr")
		if err != nil {
			return SinkDesc{}, err
		}
		onFinish, err := p.parseOnFinish(m)
		if err != nil {
			return SinkDesc{}, err
		}
		return SinkDesc{Kind: piperuntime.SinkNetTCPWriteStreamHandle, Addr: addr, OnFinish: onFinish}, nil
	case "net_tcp_connect_write":
		addr, err := reqStr(m, "addr")
		if err != nil {
			return SinkDesc{}, err
		}
		onFinish, err := p.parseOnFinish(m)
		if err != nil {
			return SinkDesc{}, err
		}
		return SinkDesc{Kind: piperuntime.SinkNetTCPConnectWrite, Addr: addr, OnFinish: onFinish}, nil
	case "net_tcp_write_u32frames":
		addr, err := reqStr(m, "addr")
		if err != nil {
			return SinkDesc{}, err
		}
		onFinish, err := p.parseOnFinish(m)
		if err != nil {
			return SinkDesc{}, err
		}
		return SinkDesc{Kind: piperuntime.SinkNetTCPWriteStreamHandle, Addr: addr, OnFinish: onFinish, U32Frames: true}, nil
	default:
		return SinkDesc{}, fmt.Errorf("pipe: unknown sink kind %q", head)
	}
}

func (p *parser) parseOnFinish(m map[string]exprast.Expr) (piperuntime.OnFinish, error) {
	s, err := optStr(m, "on_finish", "leave_open")
	if err != nil {
		return 0, err
	}
	switch s {
	case "leave_open":
		return piperuntime.OnFinishLeaveOpen, nil
	case "shutdown_read":
		return piperuntime.OnFinishShutdownRead, nil
	case "close":
		return piperuntime.OnFinishClose, nil
	default:
		return 0, fmt.Errorf("pipe: unknown on_finish policy %q", s)
	}
}
