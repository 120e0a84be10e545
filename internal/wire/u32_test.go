package wire

import (
	"bytes"
	"math"
	"testing"
)

func TestAppendU32(t *testing.T) {
	tests := []struct {
		name     string
		value    uint32
		expected []byte
	}{
		{"zero", 0, []byte{0x00, 0x00, 0x00, 0x00}},
		{"one", 1, []byte{0x01, 0x00, 0x00, 0x00}},
		{"256", 256, []byte{0x00, 0x01, 0x00, 0x00}},
		{"0x12345678", 0x12345678, []byte{0x78, 0x56, 0x34, 0x12}},
		{"max_uint32", math.MaxUint32, []byte{0xff, 0xff, 0xff, 0xff}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AppendU32(nil, tc.value)
			if !bytes.Equal(got, tc.expected) {
				t.Errorf("AppendU32(%d) = %v, want %v", tc.value, got, tc.expected)
			}
		})
	}
}

func TestDecodeU32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 256, 0x12345678, math.MaxUint32} {
		buf := AppendU32(nil, v)
		got, n, err := DecodeU32(buf)
		if err != nil {
			t.Fatalf("DecodeU32(%d): %v", v, err)
		}
		if n != U32Size || got != v {
			t.Errorf("DecodeU32(%d) = (%d, %d), want (%d, %d)", v, got, n, v, U32Size)
		}
	}
}

func TestDecodeU32Truncated(t *testing.T) {
	for n := 0; n < U32Size; n++ {
		if _, _, err := DecodeU32(make([]byte, n)); err != ErrTruncated {
			t.Errorf("DecodeU32(len=%d) error = %v, want ErrTruncated", n, err)
		}
	}
}

func TestTakeLenPrefixed(t *testing.T) {
	payload := []byte("hello")
	buf := AppendLenPrefixed(nil, payload)

	got, consumed, err := TakeLenPrefixed(buf)
	if err != nil {
		t.Fatalf("TakeLenPrefixed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %q, want %q", got, payload)
	}
	if consumed != U32Size+len(payload) {
		t.Errorf("consumed = %d, want %d", consumed, U32Size+len(payload))
	}
}

func TestTakeLenPrefixedTruncated(t *testing.T) {
	buf := AppendU32(nil, 10) // declares 10 bytes but supplies none
	if _, _, err := TakeLenPrefixed(buf); err != ErrTruncated {
		t.Errorf("error = %v, want ErrTruncated", err)
	}
}

func TestTakeLenPrefixedTrailingDataIgnored(t *testing.T) {
	buf := AppendLenPrefixed(nil, []byte("ab"))
	buf = append(buf, 0xFF, 0xFF) // trailing bytes belong to the caller, not this field
	got, consumed, err := TakeLenPrefixed(buf)
	if err != nil {
		t.Fatalf("TakeLenPrefixed: %v", err)
	}
	if string(got) != "ab" || consumed != U32Size+2 {
		t.Errorf("got=%q consumed=%d", got, consumed)
	}
}
