package docvalue

import (
	"fmt"

	"github.com/blockberries/x07/internal/wire"
)

// Doc tags: the leading byte of every Doc.
const (
	DocTagErr byte = 0
	DocTagOk  byte = 1
)

// DocOk wraps a Value view (a complete, already-encoded Value byte sequence)
// into an Ok Doc.
func DocOk(value []byte) []byte {
	buf := make([]byte, 0, 1+len(value))
	buf = append(buf, DocTagOk)
	buf = append(buf, value...)
	return buf
}

// DocErr builds an Err Doc. Wire layout (spec §3.1): tag byte 0, then
// u32_le code, u32_le msg_len, msg_bytes, u32_le payload_len, payload_bytes.
// payload may be nil, meaning an empty payload.
func DocErr(code uint32, msg string, payload []byte) []byte {
	buf := make([]byte, 0, 1+4+4+len(msg)+4+len(payload))
	buf = append(buf, DocTagErr)
	buf = wire.AppendU32(buf, code)
	buf = wire.AppendLenPrefixed(buf, []byte(msg))
	buf = wire.AppendLenPrefixed(buf, payload)
	return buf
}

// DocIsErr reports whether doc is tagged as an Err Doc.
func DocIsErr(doc []byte) (bool, error) {
	if len(doc) < 1 {
		return false, ErrOutOfRange
	}
	switch doc[0] {
	case DocTagOk:
		return false, nil
	case DocTagErr:
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown doc tag %d", ErrMalformed, doc[0])
	}
}

// DocValueOffset returns the offset of the payload Value within an Ok Doc
// (i.e. 1, just past the tag byte), validating the tag first.
func DocValueOffset(doc []byte) (int, error) {
	isErr, err := DocIsErr(doc)
	if err != nil {
		return 0, err
	}
	if isErr {
		return 0, fmt.Errorf("%w: doc is Err, not Ok", ErrMalformed)
	}
	return 1, nil
}

// errFields decodes the three fixed fields of an Err Doc body: code,
// message bytes, and payload bytes.
func errFields(doc []byte) (code uint32, msg []byte, payload []byte, err error) {
	isErr, err := DocIsErr(doc)
	if err != nil {
		return 0, nil, nil, err
	}
	if !isErr {
		return 0, nil, nil, fmt.Errorf("%w: doc is Ok, not Err", ErrMalformed)
	}
	cur := 1
	code, n, err := wire.DecodeU32(doc[cur:])
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	cur += n
	msg, n, err = wire.TakeLenPrefixed(doc[cur:])
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	cur += n
	payload, _, err = wire.TakeLenPrefixed(doc[cur:])
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return code, msg, payload, nil
}

// DocErrorCode extracts the numeric error code from an Err Doc.
func DocErrorCode(doc []byte) (uint32, error) {
	code, _, _, err := errFields(doc)
	return code, err
}

// DocErrorMessage extracts the message string from an Err Doc.
func DocErrorMessage(doc []byte) (string, error) {
	_, msg, _, err := errFields(doc)
	if err != nil {
		return "", err
	}
	return string(msg), nil
}

// DocErrorPayload extracts the raw payload bytes from an Err Doc.
func DocErrorPayload(doc []byte) ([]byte, error) {
	_, _, payload, err := errFields(doc)
	return payload, err
}
