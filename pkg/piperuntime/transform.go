package piperuntime

import (
	"bytes"

	"github.com/blockberries/x07/internal/wire"
	"github.com/blockberries/x07/pkg/hostcap"
)

// stage wraps one Xf with whatever carry state it needs across chunks, and
// exposes a uniform step function: feed one input chunk and get back zero
// or more output chunks. A stage's last call of a run carries eof=true,
// with in=nil when the stages before it had nothing left to pass on.
type stage struct {
	xf     Xf
	carry  []byte // split_lines / deframe_u32le pending partial record
	taken  int    // take: items forwarded so far
	scratch []byte // map_in_place_buf
	stopped bool
	jsonCanon hostcap.JSONCanon
}

func newStage(xf Xf, jc hostcap.JSONCanon) *stage {
	s := &stage{xf: xf, jsonCanon: jc}
	if xf.Kind == XfMapInPlaceBuf {
		s.scratch = make([]byte, xf.ScratchCapBytes)
	}
	return s
}

// step processes one chunk. eof indicates the source is exhausted and this
// is the final call for this stage (in may be empty); any stage holding a
// partial record must either emit it or error out per its own edge-case
// rule (see spec §4.5's per-transform semantics).
func (s *stage) step(in []byte, eof bool) (out [][]byte, stop bool, err error) {
	switch s.xf.Kind {
	case XfMapBytes:
		if len(in) == 0 {
			return nil, false, nil
		}
		mapped, err := s.xf.MapFn(in)
		if err != nil {
			return nil, false, newError(CodeStageFailed, "stream:map_bytes_failed: "+err.Error())
		}
		return [][]byte{mapped}, false, nil

	case XfFilter:
		if len(in) == 0 {
			return nil, false, nil
		}
		keep, err := s.xf.Filter(in)
		if err != nil {
			return nil, false, newError(CodeStageFailed, "stream:filter_failed: "+err.Error())
		}
		if !keep {
			return nil, false, nil
		}
		return [][]byte{in}, false, nil

	case XfTake:
		if s.stopped {
			return nil, true, nil
		}
		if len(in) == 0 {
			return nil, false, nil
		}
		if s.taken >= s.xf.TakeN {
			s.stopped = true
			return nil, true, nil
		}
		s.taken++
		stopNow := s.taken >= s.xf.TakeN
		if stopNow {
			s.stopped = true
		}
		return [][]byte{in}, stopNow, nil

	case XfSplitLines:
		return s.stepSplitLines(in, eof)

	case XfFrameU32LE:
		if len(in) == 0 {
			return nil, false, nil
		}
		framed := wire.AppendLenPrefixed(make([]byte, 0, 4+len(in)), in)
		return [][]byte{framed}, false, nil

	case XfMapInPlaceBuf:
		if len(in) == 0 {
			return nil, false, nil
		}
		if s.xf.ClearBeforeEach {
			for i := range s.scratch {
				s.scratch[i] = 0
			}
		}
		n, err := s.xf.ScratchFn(in, s.scratch)
		if err != nil {
			return nil, false, newError(CodeStageFailed, "stream:map_in_place_buf_failed: "+err.Error())
		}
		if n > len(s.scratch) {
			return nil, false, newError(CodeScratchOverflow, "stream:scratch_overflow")
		}
		out1 := make([]byte, n)
		copy(out1, s.scratch[:n])
		return [][]byte{out1}, false, nil

	case XfJSONCanonStream:
		return s.stepJSONCanon(in, eof)

	case XfDeframeU32LE:
		return s.stepDeframe(in, eof)

	default:
		return nil, false, newError(CodeCfgInvalid, "stream:unknown_transform_kind")
	}
}

func (s *stage) stepSplitLines(in []byte, eof bool) ([][]byte, bool, error) {
	s.carry = append(s.carry, in...)
	var out [][]byte
	for {
		idx := bytes.IndexByte(s.carry, s.xf.LineDelim)
		if idx < 0 {
			break
		}
		line := s.carry[:idx]
		if s.xf.MaxLineBytes > 0 && len(line) > s.xf.MaxLineBytes {
			return nil, false, newError(CodeLineTooLong, "stream:line_too_long")
		}
		out = append(out, append([]byte(nil), line...))
		s.carry = s.carry[idx+1:]
	}
	if eof {
		if len(s.carry) > 0 {
			if s.xf.MaxLineBytes > 0 && len(s.carry) > s.xf.MaxLineBytes {
				return nil, false, newError(CodeLineTooLong, "stream:line_too_long")
			}
			out = append(out, append([]byte(nil), s.carry...))
			s.carry = nil
		}
	}
	return out, false, nil
}

func (s *stage) stepJSONCanon(in []byte, eof bool) ([][]byte, bool, error) {
	s.carry = append(s.carry, in...)
	if !eof {
		return nil, false, nil
	}
	if len(s.carry) == 0 {
		return nil, false, nil
	}
	canon, err := s.jsonCanon.CanonDoc(s.carry, s.xf.MaxDepth, s.xf.MaxObjectMembers, s.xf.MaxObjectTotalBytes)
	if err != nil {
		return nil, false, newError(CodeJSONDecodeFailed, "stream:json_canon_failed: "+err.Error())
	}
	if s.xf.EmitChunkMaxBytes <= 0 || len(canon) <= s.xf.EmitChunkMaxBytes {
		return [][]byte{canon}, false, nil
	}
	var out [][]byte
	for off := 0; off < len(canon); off += s.xf.EmitChunkMaxBytes {
		end := off + s.xf.EmitChunkMaxBytes
		if end > len(canon) {
			end = len(canon)
		}
		out = append(out, canon[off:end])
	}
	return out, false, nil
}

func (s *stage) stepDeframe(in []byte, eof bool) ([][]byte, bool, error) {
	s.carry = append(s.carry, in...)
	var out [][]byte
	for {
		if s.xf.MaxFrameBytes > 0 {
			if n, _, err := wire.DecodeU32(s.carry); err == nil && n > uint32(s.xf.MaxFrameBytes) {
				return nil, false, newError(CodeFrameTooLarge, "stream:frame_too_large")
			}
		}
		payload, consumed, err := wire.TakeLenPrefixed(s.carry)
		if err != nil {
			break
		}
		if len(payload) == 0 && !s.xf.AllowEmpty {
			return nil, false, newError(CodeDeframeEmptyNotAllowed, "stream:deframe_empty_not_allowed")
		}
		out = append(out, append([]byte(nil), payload...))
		s.carry = s.carry[consumed:]
		if s.xf.MaxFrames > 0 && len(out) >= s.xf.MaxFrames {
			break
		}
	}
	if eof && len(s.carry) > 0 {
		if s.xf.OnTruncated == OnTruncatedDrop {
			s.carry = nil
		} else {
			return nil, false, newError(CodeDeframeTruncated, "stream:deframe_truncated")
		}
	}
	return out, false, nil
}
