// Package fake provides in-memory implementations of pkg/hostcap's
// interfaces for use by tests and the reference CLI, so the full pipeline
// is exercisable without touching real infrastructure.
package fake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/blockberries/x07/pkg/hostcap"
)

// FS is an in-memory filesystem keyed by path string.
type FS struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewFS() *FS {
	return &FS{files: make(map[string][]byte)}
}

func (f *FS) Put(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = append([]byte(nil), data...)
}

func (f *FS) Get(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	return data, ok
}

func (f *FS) OpenRead(ctx context.Context, path []byte) (io.ReadCloser, error) {
	f.mu.Lock()
	data, ok := f.files[string(path)]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("fake: file not found: " + string(path))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeWriteHandle struct {
	fs      *FS
	path    string
	buf     bytes.Buffer
	maxBytes int64
}

func (w *fakeWriteHandle) Write(ctx context.Context, buf []byte) (int, error) {
	if w.maxBytes > 0 && int64(w.buf.Len()+len(buf)) > w.maxBytes {
		return 0, errors.New("fake: write exceeds WriteCaps.MaxBytes")
	}
	return w.buf.Write(buf)
}

func (w *fakeWriteHandle) Close() error {
	w.fs.Put(w.path, w.buf.Bytes())
	return nil
}

func (f *FS) OpenWrite(ctx context.Context, path []byte, caps hostcap.WriteCaps) (hostcap.WriteHandle, error) {
	p := string(path)
	if caps.CreateOnly {
		f.mu.Lock()
		_, exists := f.files[p]
		f.mu.Unlock()
		if exists {
			return nil, errors.New("fake: file already exists: " + p)
		}
	}
	return &fakeWriteHandle{fs: f, path: p, maxBytes: caps.MaxBytes}, nil
}

// Net is an in-memory net.Conn-like stream registry keyed by address.
// Scripted responses are queued per address with Queue; Connect pops the
// next one.
type Net struct {
	mu      sync.Mutex
	scripts map[string][][]byte
}

func NewNet() *Net {
	return &Net{scripts: make(map[string][][]byte)}
}

// Queue appends a scripted read payload that Connect's StreamHandle will
// return on its first Read call for addr.
func (n *Net) Queue(addr string, payload []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scripts[addr] = append(n.scripts[addr], payload)
}

type fakeStream struct {
	net     *Net
	addr    string
	reader  *bytes.Reader
	written bytes.Buffer
	closed  bool
}

func (n *Net) Connect(ctx context.Context, addr string, caps hostcap.NetCaps) (hostcap.StreamHandle, error) {
	n.mu.Lock()
	queue := n.scripts[addr]
	var payload []byte
	if len(queue) > 0 {
		payload = queue[0]
		n.scripts[addr] = queue[1:]
	}
	n.mu.Unlock()
	return &fakeStream{net: n, addr: addr, reader: bytes.NewReader(payload)}, nil
}

func (s *fakeStream) Read(ctx context.Context, buf []byte) (int, error) {
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	return s.reader.Read(buf)
}

func (s *fakeStream) Write(ctx context.Context, buf []byte) (int, error) {
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	return s.written.Write(buf)
}

func (s *fakeStream) Shutdown(ctx context.Context) error { return nil }
func (s *fakeStream) Close() error                       { s.closed = true; return nil }
func (s *fakeStream) Drop()                              { s.closed = true }

// Written returns everything written to the stream so far (test
// assertion helper).
func (s *fakeStream) Written() []byte { return s.written.Bytes() }

// DB returns a canned Doc-encoded response for a given SQL string.
type DB struct {
	mu        sync.Mutex
	responses map[string][]byte
	errs      map[string]error
}

func NewDB() *DB {
	return &DB{responses: make(map[string][]byte), errs: make(map[string]error)}
}

func (d *DB) SetResponse(sql string, doc []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses[sql] = doc
}

func (d *DB) SetError(sql string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[sql] = err
}

func (d *DB) Query(ctx context.Context, sql []byte, params []byte, caps []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := string(sql)
	if err, ok := d.errs[key]; ok {
		return nil, err
	}
	if doc, ok := d.responses[key]; ok {
		return doc, nil
	}
	return nil, errors.New("fake: no response configured for query: " + key)
}

// JSONCanon is a simplified canonicalizer good enough for tests: it
// re-serializes the input through encoding/json (which sorts map keys) and
// rejects documents whose nesting depth or member counts exceed the given
// limits. It does not attempt byte-for-byte compatibility with any
// particular canonical-JSON specification — only that it is deterministic
// and respects the declared budgets, which is all pkg/piperuntime needs
// from its injected capability in tests.
type JSONCanon struct{}

func NewJSONCanon() *JSONCanon { return &JSONCanon{} }

func (j *JSONCanon) CanonDoc(view []byte, maxDepth, maxObjectMembers, maxObjectTotalBytes int) ([]byte, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(view))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := checkDepthAndMembers(v, 1, maxDepth, maxObjectMembers); err != nil {
		return nil, err
	}
	out, err := canonMarshal(v)
	if err != nil {
		return nil, err
	}
	if maxObjectTotalBytes > 0 && len(out) > maxObjectTotalBytes {
		return nil, errors.New("fake: canonicalized document exceeds maxObjectTotalBytes")
	}
	return out, nil
}

func checkDepthAndMembers(v any, depth, maxDepth, maxMembers int) error {
	if maxDepth > 0 && depth > maxDepth {
		return errors.New("fake: json exceeds max depth")
	}
	switch t := v.(type) {
	case map[string]any:
		if maxMembers > 0 && len(t) > maxMembers {
			return errors.New("fake: json object exceeds max members")
		}
		for _, child := range t {
			if err := checkDepthAndMembers(child, depth+1, maxDepth, maxMembers); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range t {
			if err := checkDepthAndMembers(child, depth+1, maxDepth, maxMembers); err != nil {
				return err
			}
		}
	}
	return nil
}

func canonMarshal(v any) ([]byte, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := canonMarshal(t[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			eb, err := canonMarshal(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(eb)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return json.Marshal(t)
	}
}

// AtomicWriter is an in-memory stand-in for the real fsync+rename writer.
type AtomicWriter struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewAtomicWriter() *AtomicWriter {
	return &AtomicWriter{files: make(map[string][]byte)}
}

func (w *AtomicWriter) WriteFile(path string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[path] = append([]byte(nil), data...)
	return nil
}

func (w *AtomicWriter) Get(path string) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, ok := w.files[path]
	return data, ok
}

// ReadFile satisfies hostcap.FileReader, reading back whatever WriteFile
// has previously stored for path.
func (w *AtomicWriter) ReadFile(path string) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, ok := w.files[path]
	if !ok {
		return nil, errors.New("fake: file not found: " + path)
	}
	return append([]byte(nil), data...), nil
}

// RR is an in-memory request/reply registry keyed by request key.
type RR struct {
	mu        sync.Mutex
	responses map[string][]byte
}

func NewRR() *RR {
	return &RR{responses: make(map[string][]byte)}
}

func (r *RR) SetResponse(key string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[key] = append([]byte(nil), data...)
}

func (r *RR) Send(ctx context.Context, key []byte) (io.ReadCloser, error) {
	r.mu.Lock()
	data, ok := r.responses[string(key)]
	r.mu.Unlock()
	if !ok {
		return nil, errors.New("fake: no rr response configured for key: " + string(key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
