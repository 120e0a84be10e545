package piperuntime

import (
	"bytes"
	"context"
	"hash/fnv"

	"github.com/blockberries/x07/internal/wire"
	"github.com/blockberries/x07/pkg/hostcap"
)

// sinkWriter accumulates sunk items and produces the final payload bytes
// that become the envelope's Ok payload (subject to Cfg.EmitPayload).
type sinkWriter interface {
	write(ctx context.Context, item []byte) error
	finish(ctx context.Context) ([]byte, error)
}

func newSinkWriter(host Host, sink Sink) (sinkWriter, error) {
	var base sinkWriter
	switch sink.Kind {
	case SinkCollectBytes:
		base = &collectSink{}
	case SinkHashFNV1a32:
		base = &hashSink{h: fnv.New32a()}
	case SinkNull:
		base = &nullSink{}
	case SinkWorldFSWriteFile:
		if host.FS == nil {
			return nil, newError(CodeCfgInvalid, "stream:fs_capability_missing")
		}
		base = &fsWriteFileSink{fs: host.FS, path: sink.Path}
	case SinkWorldFSWriteStream:
		if host.FS == nil {
			return nil, newError(CodeCfgInvalid, "stream:fs_capability_missing")
		}
		wh, err := host.FS.OpenWrite(context.Background(), sink.Path, hostcap.WriteCaps{})
		if err != nil {
			return nil, newError(CodeFSOpenFailed, "stream:fs_open_failed: "+err.Error())
		}
		base = &fsStreamSink{wh: wh}
	case SinkNetTCPWriteStreamHandle, SinkNetTCPConnectWrite:
		if host.Net == nil {
			return nil, newError(CodeCfgInvalid, "stream:net_capability_missing")
		}
		sh, err := host.Net.Connect(context.Background(), sink.Addr, hostcap.NetCaps{})
		if err != nil {
			return nil, newError(CodeNetConnectFailed, "stream:net_connect_failed: "+err.Error())
		}
		base = &netWriteSink{sh: sh, onFinish: sink.OnFinish}
	default:
		return nil, newError(CodeCfgInvalid, "stream:unknown_sink_kind")
	}
	if sink.U32Frames {
		return &u32FramesSink{inner: base}, nil
	}
	return base, nil
}

type collectSink struct{ buf bytes.Buffer }

func (s *collectSink) write(ctx context.Context, item []byte) error {
	s.buf.Write(item)
	return nil
}
func (s *collectSink) finish(ctx context.Context) ([]byte, error) { return s.buf.Bytes(), nil }

type hashSink struct {
	h interface {
		Write([]byte) (int, error)
		Sum32() uint32
	}
}

func (s *hashSink) write(ctx context.Context, item []byte) error {
	_, err := s.h.Write(item)
	return err
}
func (s *hashSink) finish(ctx context.Context) ([]byte, error) {
	return wire.AppendU32(nil, s.h.Sum32()), nil
}

type nullSink struct{}

func (s *nullSink) write(ctx context.Context, item []byte) error       { return nil }
func (s *nullSink) finish(ctx context.Context) ([]byte, error)         { return nil, nil }

type fsWriteFileSink struct {
	fs   hostcap.FS
	path []byte
	buf  bytes.Buffer
}

func (s *fsWriteFileSink) write(ctx context.Context, item []byte) error {
	s.buf.Write(item)
	return nil
}

func (s *fsWriteFileSink) finish(ctx context.Context) ([]byte, error) {
	wh, err := s.fs.OpenWrite(ctx, s.path, hostcap.WriteCaps{})
	if err != nil {
		return nil, newError(CodeFSOpenFailed, "stream:fs_open_failed: "+err.Error())
	}
	if _, err := wh.Write(ctx, s.buf.Bytes()); err != nil {
		return nil, newError(CodeFSWriteFailed, "stream:fs_write_failed: "+err.Error())
	}
	if err := wh.Close(); err != nil {
		return nil, newError(CodeFSCloseFailed, "stream:fs_close_failed: "+err.Error())
	}
	return s.buf.Bytes(), nil
}

type fsStreamSink struct {
	wh  hostcap.WriteHandle
	written bytes.Buffer
}

func (s *fsStreamSink) write(ctx context.Context, item []byte) error {
	if _, err := s.wh.Write(ctx, item); err != nil {
		return newError(CodeFSWriteFailed, "stream:fs_write_failed: "+err.Error())
	}
	s.written.Write(item)
	return nil
}

func (s *fsStreamSink) finish(ctx context.Context) ([]byte, error) {
	if err := s.wh.Close(); err != nil {
		return nil, newError(CodeFSCloseFailed, "stream:fs_close_failed: "+err.Error())
	}
	return s.written.Bytes(), nil
}

type netWriteSink struct {
	sh       hostcap.StreamHandle
	onFinish OnFinish
	written  bytes.Buffer
}

func (s *netWriteSink) write(ctx context.Context, item []byte) error {
	if _, err := s.sh.Write(ctx, item); err != nil {
		return newError(CodeNetWriteFailed, "stream:net_write_failed: "+err.Error())
	}
	s.written.Write(item)
	return nil
}

func (s *netWriteSink) finish(ctx context.Context) ([]byte, error) {
	switch s.onFinish {
	case OnFinishShutdownRead:
		if err := s.sh.Shutdown(ctx); err != nil {
			return nil, newError(CodeNetShutdownFailed, "stream:net_shutdown_failed: "+err.Error())
		}
	case OnFinishClose:
		if err := s.sh.Close(); err != nil {
			return nil, newError(CodeNetCloseFailed, "stream:net_close_failed: "+err.Error())
		}
	}
	return s.written.Bytes(), nil
}

// u32FramesSink wraps any sink's per-item boundary with a u32_le length
// prefix (spec §3.4: sinks may be wrapped, non-nestable).
type u32FramesSink struct {
	inner sinkWriter
}

func (s *u32FramesSink) write(ctx context.Context, item []byte) error {
	framed := wire.AppendLenPrefixed(make([]byte, 0, 4+len(item)), item)
	return s.inner.write(ctx, framed)
}

func (s *u32FramesSink) finish(ctx context.Context) ([]byte, error) {
	return s.inner.finish(ctx)
}
