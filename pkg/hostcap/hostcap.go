// Package hostcap declares the host capability interfaces that spec.md
// treats as external collaborators (filesystem, network, database, JSON
// canonicalization, atomic file writes). pkg/piperuntime and pkg/emitter
// depend only on these interfaces; pkg/hostcap/fake supplies in-memory
// implementations the test suite exercises.
package hostcap

import (
	"context"
	"io"
)

// WriteCaps bounds what an opened write stream is allowed to do.
type WriteCaps struct {
	MaxBytes   int64
	CreateOnly bool
}

// NetCaps bounds what a network connection is allowed to do.
type NetCaps struct {
	MaxReadBytes  int64
	MaxWriteBytes int64
	TimeoutMillis int64
}

// StreamHandle is the blocking read/write/shutdown/close/drop primitive
// spec §5 names as the suspension point for network sources and sinks.
type StreamHandle interface {
	Read(ctx context.Context, buf []byte) (n int, err error)
	Write(ctx context.Context, buf []byte) (n int, err error)
	Shutdown(ctx context.Context) error
	Close() error
	Drop()
}

// WriteHandle is the corresponding primitive for filesystem write sinks.
type WriteHandle interface {
	Write(ctx context.Context, buf []byte) (n int, err error)
	Close() error
}

// FS is the filesystem host capability (fs_open_read source,
// world_fs_write_file / world_fs_write_stream sinks).
type FS interface {
	OpenRead(ctx context.Context, path []byte) (io.ReadCloser, error)
	OpenWrite(ctx context.Context, path []byte, caps WriteCaps) (WriteHandle, error)
}

// Net is the network host capability (net_tcp_read_stream_handle source,
// net_tcp_write_stream_handle / net_tcp_connect_write sinks).
type Net interface {
	Connect(ctx context.Context, addr string, caps NetCaps) (StreamHandle, error)
}

// DB is the database host capability (db_rows_doc source).
type DB interface {
	Query(ctx context.Context, sql []byte, params []byte, caps []byte) ([]byte, error)
}

// JSONCanon is the JSON canonicalization host capability
// (json_canon_stream transform).
type JSONCanon interface {
	CanonDoc(view []byte, maxDepth, maxObjectMembers, maxObjectTotalBytes int) ([]byte, error)
}

// AtomicWriter is the module emitter's atomic-file-write primitive
// (spec §4.3 Determinism: temp-file-in-same-dir + fsync + rename).
type AtomicWriter interface {
	WriteFile(path string, data []byte) error
}

// FileReader reads a file's current on-disk contents. The schema-derive
// drift check (spec §4.3 Determinism) uses it to compare freshly rendered
// module bytes against whatever is already on disk, independent of
// whether --write is given.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// RR is the request/reply host capability backing the rr_send source: a
// single round trip keyed by an opaque request key, returning one reply
// buffer read to completion before the pipe's chain runs.
type RR interface {
	Send(ctx context.Context, key []byte) (io.ReadCloser, error)
}
