// Package docvalue implements the Doc/Value binary wire format shared by
// every schema-derived module and by the stream pipe response envelope.
//
// A Doc is a tagged byte sequence: one leading byte (1 = Ok, 0 = Err)
// followed by either a single Value (Ok) or a structured error payload
// (Err). A Value is itself kind-tagged (null, bool, number, string, seq,
// map). See the package-level constants for the exact byte layouts.
package docvalue

import (
	"errors"
	"fmt"

	"github.com/blockberries/x07/internal/wire"
)

// Kind identifies the type of a Value.
type Kind byte

const (
	KindNull   Kind = 0
	KindBool   Kind = 1
	KindNumber Kind = 2
	KindString Kind = 3
	KindSeq    Kind = 4
	KindMap    Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// ErrMalformed indicates a Value or Doc could not be parsed; it is wrapped by
// more specific errors so callers can errors.Is(err, ErrMalformed).
var ErrMalformed = errors.New("docvalue: malformed")

// ErrOutOfRange indicates an offset or index fell outside its containing view.
var ErrOutOfRange = errors.New("docvalue: out of range")

// KindAt returns the Kind byte at off within view, or an error if off is out
// of range or the byte is not a known kind.
func KindAt(view []byte, off int) (Kind, error) {
	if off < 0 || off >= len(view) {
		return 0, ErrOutOfRange
	}
	k := Kind(view[off])
	switch k {
	case KindNull, KindBool, KindNumber, KindString, KindSeq, KindMap:
		return k, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind byte %d at offset %d", ErrMalformed, view[off], off)
	}
}

// SkipValue returns the offset one past the Value starting at off, validating
// that every declared length stays within view. It does not validate
// semantic invariants (canonical map order, canonical numbers) — the
// schema-generated validators check those.
func SkipValue(view []byte, off int) (int, error) {
	k, err := KindAt(view, off)
	if err != nil {
		return 0, err
	}
	cur := off + 1
	switch k {
	case KindNull:
		return cur, nil
	case KindBool:
		if cur >= len(view) {
			return 0, ErrOutOfRange
		}
		if view[cur] != 0 && view[cur] != 1 {
			return 0, fmt.Errorf("%w: bool byte must be 0 or 1, got %d", ErrMalformed, view[cur])
		}
		return cur + 1, nil
	case KindNumber, KindString:
		payload, consumed, err := wire.TakeLenPrefixed(view[cur:])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		_ = payload
		return cur + consumed, nil
	case KindSeq:
		n, hdr, err := wire.DecodeU32(view[cur:])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		cur += hdr
		for i := uint32(0); i < n; i++ {
			cur, err = SkipValue(view, cur)
			if err != nil {
				return 0, err
			}
		}
		return cur, nil
	case KindMap:
		n, hdr, err := wire.DecodeU32(view[cur:])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		cur += hdr
		for i := uint32(0); i < n; i++ {
			_, keyConsumed, err := wire.TakeLenPrefixed(view[cur:])
			if err != nil {
				return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			cur += keyConsumed
			cur, err = SkipValue(view, cur)
			if err != nil {
				return 0, err
			}
		}
		return cur, nil
	default:
		return 0, fmt.Errorf("%w: unreachable kind %v", ErrMalformed, k)
	}
}

// ValueBool reads a bool Value at off. Caller must have already checked Kind.
func ValueBool(view []byte, off int) (bool, error) {
	k, err := KindAt(view, off)
	if err != nil {
		return false, err
	}
	if k != KindBool {
		return false, fmt.Errorf("%w: expected bool, got %v", ErrMalformed, k)
	}
	if off+1 >= len(view) {
		return false, ErrOutOfRange
	}
	b := view[off+1]
	if b != 0 && b != 1 {
		return false, fmt.Errorf("%w: bool byte must be 0 or 1, got %d", ErrMalformed, b)
	}
	return b == 1, nil
}

// ValueNumber reads a number Value at off, returning its ASCII decimal bytes.
func ValueNumber(view []byte, off int) ([]byte, error) {
	return valueBytes(view, off, KindNumber)
}

// ValueString reads a string Value at off, returning its raw bytes.
func ValueString(view []byte, off int) ([]byte, error) {
	return valueBytes(view, off, KindString)
}

func valueBytes(view []byte, off int, want Kind) ([]byte, error) {
	k, err := KindAt(view, off)
	if err != nil {
		return nil, err
	}
	if k != want {
		return nil, fmt.Errorf("%w: expected %v, got %v", ErrMalformed, want, k)
	}
	payload, _, err := wire.TakeLenPrefixed(view[off+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return payload, nil
}

// ValueNull validates that the Value at off is a null.
func ValueNull(view []byte, off int) error {
	k, err := KindAt(view, off)
	if err != nil {
		return err
	}
	if k != KindNull {
		return fmt.Errorf("%w: expected null, got %v", ErrMalformed, k)
	}
	return nil
}

// SeqLen returns the element count of a seq Value at off.
func SeqLen(view []byte, off int) (int, error) {
	k, err := KindAt(view, off)
	if err != nil {
		return 0, err
	}
	if k != KindSeq {
		return 0, fmt.Errorf("%w: expected seq, got %v", ErrMalformed, k)
	}
	n, _, err := wire.DecodeU32(view[off+1:])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return int(n), nil
}

// SeqGet returns the offset of the index-th element of a seq Value at off.
func SeqGet(view []byte, off int, index int) (int, error) {
	k, err := KindAt(view, off)
	if err != nil {
		return 0, err
	}
	if k != KindSeq {
		return 0, fmt.Errorf("%w: expected seq, got %v", ErrMalformed, k)
	}
	n, hdr, err := wire.DecodeU32(view[off+1:])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if index < 0 || uint32(index) >= n {
		return 0, ErrOutOfRange
	}
	cur := off + 1 + hdr
	for i := uint32(0); i < uint32(index); i++ {
		cur, err = SkipValue(view, cur)
		if err != nil {
			return 0, err
		}
	}
	return cur, nil
}

// MapLen returns the entry count of a map Value at off.
func MapLen(view []byte, off int) (int, error) {
	k, err := KindAt(view, off)
	if err != nil {
		return 0, err
	}
	if k != KindMap {
		return 0, fmt.Errorf("%w: expected map, got %v", ErrMalformed, k)
	}
	n, _, err := wire.DecodeU32(view[off+1:])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return int(n), nil
}

// MapFind returns the offset of the value bound to key within the map Value
// at off, or ErrOutOfRange if the key is absent. This assumes the map is in
// canonical order but only performs a linear scan (spec §4.1 explicitly
// allows this — canonicality is a producer-side invariant, not something
// this reader enforces).
func MapFind(view []byte, off int, key []byte) (int, error) {
	k, err := KindAt(view, off)
	if err != nil {
		return 0, err
	}
	if k != KindMap {
		return 0, fmt.Errorf("%w: expected map, got %v", ErrMalformed, k)
	}
	n, hdr, err := wire.DecodeU32(view[off+1:])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	cur := off + 1 + hdr
	for i := uint32(0); i < n; i++ {
		entryKey, keyConsumed, err := wire.TakeLenPrefixed(view[cur:])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		cur += keyConsumed
		if string(entryKey) == string(key) {
			return cur, nil
		}
		cur, err = SkipValue(view, cur)
		if err != nil {
			return 0, err
		}
	}
	return 0, ErrOutOfRange
}

// MapEntry describes one key/value pair during iteration.
type MapEntry struct {
	Key      []byte
	ValueOff int
}

// MapEntries walks every entry of the map Value at off in on-wire order,
// calling fn for each. It stops and returns fn's error if fn returns non-nil.
func MapEntries(view []byte, off int, fn func(MapEntry) error) error {
	k, err := KindAt(view, off)
	if err != nil {
		return err
	}
	if k != KindMap {
		return fmt.Errorf("%w: expected map, got %v", ErrMalformed, k)
	}
	n, hdr, err := wire.DecodeU32(view[off+1:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	cur := off + 1 + hdr
	for i := uint32(0); i < n; i++ {
		entryKey, keyConsumed, err := wire.TakeLenPrefixed(view[cur:])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		cur += keyConsumed
		valOff := cur
		cur, err = SkipValue(view, cur)
		if err != nil {
			return err
		}
		if err := fn(MapEntry{Key: entryKey, ValueOff: valOff}); err != nil {
			return err
		}
	}
	return nil
}
