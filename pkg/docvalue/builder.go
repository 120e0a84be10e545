package docvalue

import (
	"github.com/blockberries/x07/internal/wire"
)

// ValueNullBytes encodes a null Value.
func ValueNullBytes() []byte {
	return []byte{byte(KindNull)}
}

// ValueBoolBytes encodes a bool Value.
func ValueBoolBytes(v bool) []byte {
	b := byte(0)
	if v {
		b = 1
	}
	return []byte{byte(KindBool), b}
}

// ValueNumberBytes encodes a number Value from its ASCII decimal
// representation. Callers are responsible for ensuring digits is already in
// a canonical style (see pkg/schema's number-style checks) — this builder
// does not canonicalize, it only frames.
func ValueNumberBytes(digits []byte) []byte {
	buf := []byte{byte(KindNumber)}
	return wire.AppendLenPrefixed(buf, digits)
}

// ValueStringBytes encodes a string (bytes) Value.
func ValueStringBytes(raw []byte) []byte {
	buf := []byte{byte(KindString)}
	return wire.AppendLenPrefixed(buf, raw)
}

// ValueSeqFromElems encodes a seq Value from a slice of already-encoded
// element Values, preserving their order.
func ValueSeqFromElems(elems [][]byte) []byte {
	buf := []byte{byte(KindSeq)}
	buf = wire.AppendU32(buf, uint32(len(elems)))
	for _, e := range elems {
		buf = append(buf, e...)
	}
	return buf
}

// MapEntryBuild is one key/value pair supplied to ValueMapFromEntries. Key
// must be supplied in canonical (strictly ascending byte-lexicographic, no
// duplicates) order by the caller; this builder does not sort, per spec
// §4.1's "constructors never emit a structurally invalid output... entries
// feed builders that either sort internally or are fed keys in canonical
// order by the caller" — generated encoders feed entries in declared field
// order, matching the schema's own canonical-order contract.
type MapEntryBuild struct {
	Key   []byte
	Value []byte
}

// ValueMapFromEntries encodes a map Value from entries already in canonical
// key order.
func ValueMapFromEntries(entries []MapEntryBuild) []byte {
	buf := []byte{byte(KindMap)}
	buf = wire.AppendU32(buf, uint32(len(entries)))
	for _, e := range entries {
		buf = wire.AppendLenPrefixed(buf, e.Key)
		buf = append(buf, e.Value...)
	}
	return buf
}

// SortMapEntries sorts entries into canonical byte-lexicographic key order
// in place and reports whether any duplicate key was found. Generated
// encoders that cannot guarantee declared-order canonicality may call this
// as the "conservative extension" mentioned in the schema design notes.
func SortMapEntries(entries []MapEntryBuild) (dup bool) {
	// insertion sort: entry counts are small (bounded by max_map_entries)
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && lessKey(entries[j].Key, entries[j-1].Key) {
			entries[j], entries[j-1] = entries[j-1], entries[j]
			j--
		}
	}
	for i := 1; i < len(entries); i++ {
		if string(entries[i].Key) == string(entries[i-1].Key) {
			return true
		}
	}
	return false
}

func lessKey(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
