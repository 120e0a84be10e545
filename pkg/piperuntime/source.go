package piperuntime

import (
	"bufio"
	"context"
	"io"

	"github.com/blockberries/x07/pkg/hostcap"
)

// sourceDriver yields successive chunks no larger than Cfg.ChunkMaxBytes,
// reporting eof=true on the call that observes end of input (that call may
// also carry a final non-empty chunk).
type sourceDriver interface {
	next(ctx context.Context) (chunk []byte, eof bool, err error)
	close() error
}

func newSourceDriver(host Host, cfg Cfg, src Src) (sourceDriver, error) {
	switch src.Kind {
	case SrcBytes:
		return &bytesSource{data: src.Bytes, chunkMax: cfg.ChunkMaxBytes}, nil
	case SrcFSOpenRead:
		if host.FS == nil {
			return nil, newError(CodeCfgInvalid, "stream:fs_capability_missing")
		}
		rc, err := host.FS.OpenRead(context.Background(), src.Path)
		if err != nil {
			return nil, newError(CodeFSOpenFailed, "stream:fs_open_failed: "+err.Error())
		}
		return &readerSource{r: bufio.NewReaderSize(rc, max(cfg.BufreadCapBytes, 1)), closer: rc, chunkMax: cfg.ChunkMaxBytes}, nil
	case SrcRRSend:
		if host.RR == nil {
			return nil, newError(CodeCfgInvalid, "stream:rr_capability_missing")
		}
		rc, err := host.RR.Send(context.Background(), src.Key)
		if err != nil {
			return nil, newError(CodeFSOpenFailed, "stream:rr_send_failed: "+err.Error())
		}
		return &readerSource{r: bufio.NewReaderSize(rc, max(cfg.BufreadCapBytes, 1)), closer: rc, chunkMax: cfg.ChunkMaxBytes}, nil
	case SrcDBRowsDoc:
		if host.DB == nil {
			return nil, newError(CodeCfgInvalid, "stream:db_capability_missing")
		}
		doc, err := host.DB.Query(context.Background(), src.Query, src.Params, src.Caps)
		if err != nil {
			return nil, newError(CodeDBQueryFailed, "stream:db_query_failed: "+err.Error())
		}
		return &bytesSource{data: doc, chunkMax: cfg.ChunkMaxBytes}, nil
	case SrcNetTCPReadStreamHandle:
		if host.Net == nil {
			return nil, newError(CodeCfgInvalid, "stream:net_capability_missing")
		}
		sh, err := host.Net.Connect(context.Background(), src.Addr, hostcap.NetCaps{
			MaxReadBytes:  int64(src.NetCaps.MaxReadBytes),
			MaxWriteBytes: int64(src.NetCaps.MaxWriteBytes),
		})
		if err != nil {
			return nil, newError(CodeNetConnectFailed, "stream:net_connect_failed: "+err.Error())
		}
		return &netSource{sh: sh, chunkMax: cfg.ChunkMaxBytes, onTimeout: src.OnTimeout, onEOF: src.OnEOFPolicy}, nil
	default:
		return nil, newError(CodeCfgInvalid, "stream:unknown_source_kind")
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type bytesSource struct {
	data     []byte
	off      int
	chunkMax int
}

func (s *bytesSource) next(ctx context.Context) ([]byte, bool, error) {
	if s.off >= len(s.data) {
		return nil, true, nil
	}
	end := s.off + s.chunkMax
	if end > len(s.data) {
		end = len(s.data)
	}
	chunk := s.data[s.off:end]
	s.off = end
	return chunk, s.off >= len(s.data), nil
}

func (s *bytesSource) close() error { return nil }

type readerSource struct {
	r        *bufio.Reader
	closer   io.Closer
	chunkMax int
}

func (s *readerSource) next(ctx context.Context) ([]byte, bool, error) {
	buf := make([]byte, s.chunkMax)
	n, err := s.r.Read(buf)
	if err != nil && err != io.EOF {
		return nil, false, newError(CodeFSOpenFailed, "stream:fs_read_failed: "+err.Error())
	}
	eof := err == io.EOF
	if !eof {
		if _, peekErr := s.r.Peek(1); peekErr == io.EOF {
			eof = true
		}
	}
	return buf[:n], eof, nil
}

func (s *readerSource) close() error { return s.closer.Close() }

type netSource struct {
	sh        hostcap.StreamHandle
	chunkMax  int
	onTimeout OnTimeout
	onEOF     OnEOF
	closed    bool
}

func (s *netSource) next(ctx context.Context) ([]byte, bool, error) {
	buf := make([]byte, s.chunkMax)
	n, err := s.sh.Read(ctx, buf)
	if err != nil {
		if err == io.EOF {
			s.applyOnEOF(ctx)
			return buf[:n], true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			switch s.onTimeout {
			case OnTimeoutStop, OnTimeoutStopIfClean:
				return buf[:n], true, nil
			default:
				return nil, false, newError(CodeNetTimeout, "stream:net_timeout")
			}
		}
		return nil, false, newError(CodeNetReadFailed, "stream:net_read_failed: "+err.Error())
	}
	return buf[:n], false, nil
}

func (s *netSource) applyOnEOF(ctx context.Context) {
	if s.closed {
		return
	}
	s.closed = true
	switch s.onEOF {
	case OnEOFShutdownRead:
		_ = s.sh.Shutdown(ctx)
	case OnEOFClose:
		_ = s.sh.Close()
	}
}

func (s *netSource) close() error {
	if s.closed {
		return nil
	}
	return s.sh.Close()
}
