package docvalue

import (
	"bytes"
	"errors"
	"testing"
)

func TestScalarRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		enc  []byte
		kind Kind
	}{
		{"null", ValueNullBytes(), KindNull},
		{"bool_true", ValueBoolBytes(true), KindBool},
		{"bool_false", ValueBoolBytes(false), KindBool},
		{"number", ValueNumberBytes([]byte("42")), KindNumber},
		{"string", ValueStringBytes([]byte("hi")), KindString},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k, err := KindAt(tc.enc, 0)
			if err != nil {
				t.Fatalf("KindAt: %v", err)
			}
			if k != tc.kind {
				t.Errorf("kind = %v, want %v", k, tc.kind)
			}
			end, err := SkipValue(tc.enc, 0)
			if err != nil {
				t.Fatalf("SkipValue: %v", err)
			}
			if end != len(tc.enc) {
				t.Errorf("SkipValue consumed %d, want %d", end, len(tc.enc))
			}
		})
	}
}

func TestValueBool(t *testing.T) {
	for _, v := range []bool{true, false} {
		enc := ValueBoolBytes(v)
		got, err := ValueBool(enc, 0)
		if err != nil {
			t.Fatalf("ValueBool: %v", err)
		}
		if got != v {
			t.Errorf("ValueBool = %v, want %v", got, v)
		}
	}
}

func TestValueBoolRejectsNonCanonicalByte(t *testing.T) {
	enc := []byte{byte(KindBool), 2}
	if _, err := ValueBool(enc, 0); !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestValueNumberAndString(t *testing.T) {
	numEnc := ValueNumberBytes([]byte("123"))
	n, err := ValueNumber(numEnc, 0)
	if err != nil {
		t.Fatalf("ValueNumber: %v", err)
	}
	if string(n) != "123" {
		t.Errorf("ValueNumber = %q, want 123", n)
	}

	strEnc := ValueStringBytes([]byte("abc"))
	s, err := ValueString(strEnc, 0)
	if err != nil {
		t.Fatalf("ValueString: %v", err)
	}
	if string(s) != "abc" {
		t.Errorf("ValueString = %q, want abc", s)
	}
}

func TestSeqRoundTrip(t *testing.T) {
	elems := [][]byte{
		ValueNumberBytes([]byte("1")),
		ValueNumberBytes([]byte("2")),
		ValueStringBytes([]byte("x")),
	}
	enc := ValueSeqFromElems(elems)

	n, err := SeqLen(enc, 0)
	if err != nil {
		t.Fatalf("SeqLen: %v", err)
	}
	if n != 3 {
		t.Fatalf("SeqLen = %d, want 3", n)
	}

	off, err := SeqGet(enc, 0, 2)
	if err != nil {
		t.Fatalf("SeqGet: %v", err)
	}
	got, err := ValueString(enc, off)
	if err != nil {
		t.Fatalf("ValueString: %v", err)
	}
	if string(got) != "x" {
		t.Errorf("elem 2 = %q, want x", got)
	}
}

func TestSeqGetOutOfRange(t *testing.T) {
	enc := ValueSeqFromElems(nil)
	if _, err := SeqGet(enc, 0, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("error = %v, want ErrOutOfRange", err)
	}
}

func TestMapRoundTrip(t *testing.T) {
	entries := []MapEntryBuild{
		{Key: []byte("age"), Value: ValueNumberBytes([]byte("7"))},
		{Key: []byte("name"), Value: ValueStringBytes([]byte("hi"))},
	}
	enc := ValueMapFromEntries(entries)

	n, err := MapLen(enc, 0)
	if err != nil {
		t.Fatalf("MapLen: %v", err)
	}
	if n != 2 {
		t.Fatalf("MapLen = %d, want 2", n)
	}

	off, err := MapFind(enc, 0, []byte("name"))
	if err != nil {
		t.Fatalf("MapFind: %v", err)
	}
	got, err := ValueString(enc, off)
	if err != nil {
		t.Fatalf("ValueString: %v", err)
	}
	if string(got) != "hi" {
		t.Errorf("name = %q, want hi", got)
	}

	if _, err := MapFind(enc, 0, []byte("missing")); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("error = %v, want ErrOutOfRange", err)
	}
}

func TestMapEntriesIterationOrder(t *testing.T) {
	entries := []MapEntryBuild{
		{Key: []byte("a"), Value: ValueNullBytes()},
		{Key: []byte("b"), Value: ValueBoolBytes(true)},
		{Key: []byte("c"), Value: ValueNumberBytes([]byte("3"))},
	}
	enc := ValueMapFromEntries(entries)

	var keys []string
	err := MapEntries(enc, 0, func(e MapEntry) error {
		keys = append(keys, string(e.Key))
		return nil
	})
	if err != nil {
		t.Fatalf("MapEntries: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestNestedStructInSeq(t *testing.T) {
	inner := ValueMapFromEntries([]MapEntryBuild{
		{Key: []byte("x"), Value: ValueNumberBytes([]byte("1"))},
	})
	enc := ValueSeqFromElems([][]byte{inner, ValueNullBytes()})

	off, err := SeqGet(enc, 0, 0)
	if err != nil {
		t.Fatalf("SeqGet: %v", err)
	}
	xOff, err := MapFind(enc, off, []byte("x"))
	if err != nil {
		t.Fatalf("MapFind: %v", err)
	}
	got, err := ValueNumber(enc, xOff)
	if err != nil {
		t.Fatalf("ValueNumber: %v", err)
	}
	if string(got) != "1" {
		t.Errorf("x = %q, want 1", got)
	}
}

func TestTruncatedViewRejected(t *testing.T) {
	full := ValueStringBytes([]byte("hello world"))
	truncated := full[:len(full)-3]
	if _, err := SkipValue(truncated, 0); !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestUnknownKindByteRejected(t *testing.T) {
	if _, err := KindAt([]byte{0xFF}, 0); !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestDocOkRoundTrip(t *testing.T) {
	val := ValueNumberBytes([]byte("99"))
	doc := DocOk(val)

	isErr, err := DocIsErr(doc)
	if err != nil {
		t.Fatalf("DocIsErr: %v", err)
	}
	if isErr {
		t.Fatal("expected Ok doc")
	}

	off, err := DocValueOffset(doc)
	if err != nil {
		t.Fatalf("DocValueOffset: %v", err)
	}
	got, err := ValueNumber(doc, off)
	if err != nil {
		t.Fatalf("ValueNumber: %v", err)
	}
	if string(got) != "99" {
		t.Errorf("value = %q, want 99", got)
	}
}

func TestDocErrRoundTrip(t *testing.T) {
	doc := DocErr(1234, "bad thing", []byte("ctx"))

	isErr, err := DocIsErr(doc)
	if err != nil {
		t.Fatalf("DocIsErr: %v", err)
	}
	if !isErr {
		t.Fatal("expected Err doc")
	}

	code, err := DocErrorCode(doc)
	if err != nil {
		t.Fatalf("DocErrorCode: %v", err)
	}
	if code != 1234 {
		t.Errorf("code = %d, want 1234", code)
	}

	msg, err := DocErrorMessage(doc)
	if err != nil {
		t.Fatalf("DocErrorMessage: %v", err)
	}
	if msg != "bad thing" {
		t.Errorf("msg = %q, want %q", msg, "bad thing")
	}

	payload, err := DocErrorPayload(doc)
	if err != nil {
		t.Fatalf("DocErrorPayload: %v", err)
	}
	if string(payload) != "ctx" {
		t.Errorf("payload = %q, want ctx", payload)
	}
}

func TestDocErrEmptyPayload(t *testing.T) {
	doc := DocErr(5, "", nil)
	code, err := DocErrorCode(doc)
	if err != nil {
		t.Fatalf("DocErrorCode: %v", err)
	}
	if code != 5 {
		t.Errorf("code = %d, want 5", code)
	}
	payload, err := DocErrorPayload(doc)
	if err != nil {
		t.Fatalf("DocErrorPayload: %v", err)
	}
	if len(payload) != 0 {
		t.Errorf("payload = %q, want empty", payload)
	}
}

func TestDocUnknownTagRejected(t *testing.T) {
	if _, err := DocIsErr([]byte{2, 0}); !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestSortMapEntriesDetectsDuplicate(t *testing.T) {
	entries := []MapEntryBuild{
		{Key: []byte("b"), Value: ValueNullBytes()},
		{Key: []byte("a"), Value: ValueNullBytes()},
		{Key: []byte("a"), Value: ValueNullBytes()},
	}
	dup := SortMapEntries(entries)
	if !dup {
		t.Error("expected dup = true")
	}
	if !bytes.Equal(entries[0].Key, []byte("a")) {
		t.Errorf("entries[0].Key = %q, want a", entries[0].Key)
	}
}

func TestSortMapEntriesNoDuplicate(t *testing.T) {
	entries := []MapEntryBuild{
		{Key: []byte("c"), Value: ValueNullBytes()},
		{Key: []byte("a"), Value: ValueNullBytes()},
		{Key: []byte("b"), Value: ValueNullBytes()},
	}
	if dup := SortMapEntries(entries); dup {
		t.Error("expected dup = false")
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if string(entries[i].Key) != w {
			t.Errorf("entries[%d].Key = %q, want %q", i, entries[i].Key, w)
		}
	}
}
