package fake

import (
	"context"
	"testing"

	"github.com/blockberries/x07/pkg/hostcap"
)

func TestFSRoundTrip(t *testing.T) {
	fs := NewFS()
	ctx := context.Background()

	wh, err := fs.OpenWrite(ctx, []byte("/tmp/x"), hostcap.WriteCaps{})
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if _, err := wh.Write(ctx, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := wh.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rc, err := fs.OpenRead(ctx, []byte("/tmp/x"))
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer rc.Close()
	buf := make([]byte, 5)
	n, err := rc.Read(buf)
	if err != nil && n != 5 {
		t.Fatalf("Read: n=%d err=%v", n, err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("read %q, want hello", buf[:n])
	}
}

func TestFSWriteCapsMaxBytes(t *testing.T) {
	fs := NewFS()
	ctx := context.Background()
	wh, err := fs.OpenWrite(ctx, []byte("/tmp/y"), hostcap.WriteCaps{MaxBytes: 3})
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if _, err := wh.Write(ctx, []byte("abcdef")); err == nil {
		t.Error("expected error exceeding MaxBytes")
	}
}

func TestNetQueueAndConnect(t *testing.T) {
	net := NewNet()
	net.Queue("addr1", []byte("payload"))
	ctx := context.Background()
	sh, err := net.Connect(ctx, "addr1", hostcap.NetCaps{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	buf := make([]byte, 7)
	n, _ := sh.Read(ctx, buf)
	if string(buf[:n]) != "payload" {
		t.Errorf("read %q, want payload", buf[:n])
	}
}

func TestDBQuery(t *testing.T) {
	db := NewDB()
	db.SetResponse("SELECT 1", []byte("doc"))
	got, err := db.Query(context.Background(), []byte("SELECT 1"), nil, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if string(got) != "doc" {
		t.Errorf("got %q, want doc", got)
	}
}

func TestJSONCanonSortsKeys(t *testing.T) {
	jc := NewJSONCanon()
	out, err := jc.CanonDoc([]byte(`{"b":1,"a":2}`), 10, 10, 0)
	if err != nil {
		t.Fatalf("CanonDoc: %v", err)
	}
	if string(out) != `{"a":2,"b":1}` {
		t.Errorf("got %q", out)
	}
}

func TestJSONCanonRejectsTooDeep(t *testing.T) {
	jc := NewJSONCanon()
	_, err := jc.CanonDoc([]byte(`{"a":{"b":{"c":1}}}`), 2, 10, 0)
	if err == nil {
		t.Error("expected depth error")
	}
}

func TestAtomicWriterRoundTrip(t *testing.T) {
	w := NewAtomicWriter()
	if err := w.WriteFile("/out/f.json", []byte("data")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, ok := w.Get("/out/f.json")
	if !ok || string(got) != "data" {
		t.Errorf("Get = (%q, %v)", got, ok)
	}
}
