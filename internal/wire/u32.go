// Package wire provides low-level, bounds-checked encoding primitives for the
// Doc/Value wire format (spec §3.1). Every value in that format is built out
// of little-endian 32-bit length/count/code fields followed by raw bytes; this
// package is the only place that pokes at those bytes directly.
package wire

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated indicates fewer bytes were available than a field declared.
var ErrTruncated = errors.New("wire: truncated")

// Size of a u32_le field in bytes.
const U32Size = 4

// AppendU32 appends v to buf in little-endian format.
func AppendU32(buf []byte, v uint32) []byte {
	var tmp [U32Size]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// DecodeU32 decodes a little-endian u32 from the front of data.
// Returns the value and the number of bytes consumed (always U32Size on success).
func DecodeU32(data []byte) (uint32, int, error) {
	if len(data) < U32Size {
		return 0, 0, ErrTruncated
	}
	return binary.LittleEndian.Uint32(data), U32Size, nil
}

// PutU32 writes v into buf[0:4] in little-endian format.
// The caller must ensure buf has at least U32Size bytes available.
func PutU32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

// TakeLenPrefixed reads a u32_le length followed by that many bytes from the
// front of data. It returns the payload slice (a view into data, not a copy),
// the total number of bytes consumed (4+len), and an error if the declared
// length runs past the end of data.
func TakeLenPrefixed(data []byte) (payload []byte, consumed int, err error) {
	n, hdr, err := DecodeU32(data)
	if err != nil {
		return nil, 0, err
	}
	end := hdr + int(n)
	if end < hdr || end > len(data) {
		return nil, 0, ErrTruncated
	}
	return data[hdr:end], end, nil
}

// AppendLenPrefixed appends a u32_le length followed by payload.
func AppendLenPrefixed(buf []byte, payload []byte) []byte {
	buf = AppendU32(buf, uint32(len(payload)))
	return append(buf, payload...)
}
