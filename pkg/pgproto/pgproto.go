// Package pgproto is a reference implementation of the Postgres backend
// envelopes spec §6.5 describes for the db_rows_doc pipe source: the four
// envelope magics, open and query request decoding (exec decoding is a
// placeholder that always errors), a sandboxing policy gate, and the
// process-wide connection table spec §5 singles out as the one piece of
// shared mutable state in an otherwise single-threaded core.
package pgproto

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/blockberries/x07/internal/wire"
)

// Envelope magic bytes (spec §6.5) and the single supported version.
var (
	MagicOpen  = [4]byte{'X', '7', 'P', 'O'}
	MagicClose = [4]byte{'X', '7', 'P', 'C'}
	MagicQuery = [4]byte{'X', '7', 'P', 'Q'}
	MagicExec  = [4]byte{'X', '7', 'P', 'E'}
)

const ProtocolVersion uint32 = 1

// Error code space starts at 53520 (spec §6.5).
const (
	CodePolicyDenied      uint32 = 53520
	CodeTLSUnavailable     uint32 = 53521
	CodeConnCapExceeded     uint32 = 53522
	CodeQueryCapExceeded    uint32 = 53523
	CodeResponseTooLarge   uint32 = 53524
	CodeUnknownMagic        uint32 = 53525
	CodeUnsupportedVersion uint32 = 53526
	CodeConnNotFound        uint32 = 53527
	CodeQueryFailed         uint32 = 53528
)

// Error wraps a pgproto error code, in the same idiom as the other
// packages' typed code-carrying errors.
type Error struct {
	Code uint32
	Msg  string
}

func (e *Error) Error() string { return "pgproto: " + e.Msg }

func newError(code uint32, msg string) *Error { return &Error{Code: code, Msg: msg} }

// OpenRequest is the decoded form of an "X7PO" envelope: version, a target
// host:port, and whether TLS is required.
type OpenRequest struct {
	Version  uint32
	Host     string
	Port     int
	TLS      bool
}

// DecodeOpenRequest parses an X7PO envelope: magic(4), version u32_le,
// host (len-prefixed), port u32_le, tls byte.
func DecodeOpenRequest(data []byte) (OpenRequest, error) {
	rest, err := expectMagic(data, MagicOpen)
	if err != nil {
		return OpenRequest{}, err
	}
	version, n, err := wire.DecodeU32(rest)
	if err != nil {
		return OpenRequest{}, newError(CodeUnknownMagic, "truncated open request")
	}
	rest = rest[n:]
	if version != ProtocolVersion {
		return OpenRequest{}, newError(CodeUnsupportedVersion, "unsupported protocol version")
	}
	host, n, err := wire.TakeLenPrefixed(rest)
	if err != nil {
		return OpenRequest{}, newError(CodeUnknownMagic, "truncated host field")
	}
	rest = rest[n:]
	port, n, err := wire.DecodeU32(rest)
	if err != nil {
		return OpenRequest{}, newError(CodeUnknownMagic, "truncated port field")
	}
	rest = rest[n:]
	if len(rest) < 1 {
		return OpenRequest{}, newError(CodeUnknownMagic, "truncated tls flag")
	}
	return OpenRequest{Version: version, Host: string(host), Port: int(port), TLS: rest[0] != 0}, nil
}

func expectMagic(data []byte, magic [4]byte) ([]byte, error) {
	if len(data) < 4 || [4]byte{data[0], data[1], data[2], data[3]} != magic {
		return nil, newError(CodeUnknownMagic, "envelope magic mismatch")
	}
	return data[4:], nil
}

// QueryRequest is the decoded form of an "X7PQ" envelope.
type QueryRequest struct {
	ConnID uint32
	SQL    []byte
	Params []byte
}

func DecodeQueryRequest(data []byte) (QueryRequest, error) {
	rest, err := expectMagic(data, MagicQuery)
	if err != nil {
		return QueryRequest{}, err
	}
	connID, n, err := wire.DecodeU32(rest)
	if err != nil {
		return QueryRequest{}, newError(CodeUnknownMagic, "truncated conn id")
	}
	rest = rest[n:]
	sql, n, err := wire.TakeLenPrefixed(rest)
	if err != nil {
		return QueryRequest{}, newError(CodeUnknownMagic, "truncated sql field")
	}
	rest = rest[n:]
	params, _, err := wire.TakeLenPrefixed(rest)
	if err != nil {
		return QueryRequest{}, newError(CodeUnknownMagic, "truncated params field")
	}
	return QueryRequest{ConnID: connID, SQL: append([]byte(nil), sql...), Params: append([]byte(nil), params...)}, nil
}

// Policy gates which targets and how much traffic a sandboxed pipe run may
// reach (spec §6.5): an allowlist of host:port/CIDR targets, a TLS
// requirement, and live-connection/query/response caps.
type Policy struct {
	AllowedHosts    []string // exact "host:port" entries
	AllowedCIDRs    []*net.IPNet
	AllowedPorts    []int
	RequireTLS      bool
	MaxLiveConns    int
	MaxLiveQueries  int
	MaxResponseBytes int
}

func (p Policy) checkTarget(host string, port int) error {
	for _, h := range p.AllowedHosts {
		if h == host+":"+strconv.Itoa(port) {
			return p.checkPort(port)
		}
	}
	ip := net.ParseIP(host)
	if ip != nil {
		for _, cidr := range p.AllowedCIDRs {
			if cidr.Contains(ip) {
				return p.checkPort(port)
			}
		}
	}
	if len(p.AllowedHosts) == 0 && len(p.AllowedCIDRs) == 0 {
		return p.checkPort(port)
	}
	return newError(CodePolicyDenied, "target not in sandbox allowlist")
}

func (p Policy) checkPort(port int) error {
	if len(p.AllowedPorts) == 0 {
		return nil
	}
	for _, ap := range p.AllowedPorts {
		if ap == port {
			return nil
		}
	}
	return newError(CodePolicyDenied, "port not in sandbox allowlist")
}

// conn is one live logical connection tracked by ConnTable.
type conn struct {
	host    string
	port    int
	tls     bool
	queries int
}

// ConnTable is the process-wide connection table + query counter spec §5
// calls out as the one piece of shared state in an otherwise
// single-threaded core, guarded by its own mutex.
type ConnTable struct {
	mu       sync.Mutex
	policy   Policy
	conns    map[uint32]*conn
	nextID   uint32
	liveCount int
}

func NewConnTable(policy Policy) *ConnTable {
	return &ConnTable{policy: policy, conns: make(map[uint32]*conn)}
}

// Open validates req against the policy and, if accepted, allocates a new
// connection id.
func (t *ConnTable) Open(ctx context.Context, req OpenRequest) (uint32, error) {
	if err := t.policy.checkTarget(req.Host, req.Port); err != nil {
		return 0, err
	}
	if t.policy.RequireTLS && !req.TLS {
		return 0, newError(CodeTLSUnavailable, "tls required but not requested")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.policy.MaxLiveConns > 0 && t.liveCount >= t.policy.MaxLiveConns {
		return 0, newError(CodeConnCapExceeded, "live connection cap exceeded")
	}
	t.nextID++
	id := t.nextID
	t.conns[id] = &conn{host: req.Host, port: req.Port, tls: req.TLS}
	t.liveCount++
	return id, nil
}

// Close releases a connection, freeing its live-connection slot for a later
// Open (the id itself is never recycled).
func (t *ConnTable) Close(id uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.conns[id]; !ok {
		return newError(CodeConnNotFound, "connection not found")
	}
	delete(t.conns, id)
	t.liveCount--
	return nil
}

// CountQuery increments id's per-connection query counter and rejects it
// once the policy's live-query cap is crossed (spec §5: "budgets are
// inspected after increment, so overruns are caught on the crossing step
// itself").
func (t *ConnTable) CountQuery(id uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[id]
	if !ok {
		return newError(CodeConnNotFound, "connection not found")
	}
	c.queries++
	if t.policy.MaxLiveQueries > 0 && c.queries > t.policy.MaxLiveQueries {
		return newError(CodeQueryCapExceeded, "live query cap exceeded")
	}
	return nil
}

// CheckResponseSize enforces the policy's response-byte limit.
func (t *ConnTable) CheckResponseSize(n int) error {
	if t.policy.MaxResponseBytes > 0 && n > t.policy.MaxResponseBytes {
		return newError(CodeResponseTooLarge, "response exceeds policy byte limit")
	}
	return nil
}

var errNotImplemented = errors.New("pgproto: exec envelopes are not implemented by this reference")

// DecodeExecRequest is a placeholder: spec §6.5 names "X7PE" exec
// envelopes as part of the wire surface but this repo's db_rows_doc
// source only issues queries (spec §3.4), never statement execution.
func DecodeExecRequest(data []byte) error {
	if _, err := expectMagic(data, MagicExec); err != nil {
		return err
	}
	return errNotImplemented
}
