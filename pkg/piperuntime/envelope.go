package piperuntime

import (
	"github.com/blockberries/x07/internal/wire"
)

// Reserved error codes (spec §4.5 "Error envelope").
const (
	CodeCfgInvalid     uint32 = 1
	CodeBudgetIn       uint32 = 2
	CodeBudgetOut      uint32 = 3
	CodeBudgetItems    uint32 = 4
	CodeLineTooLong    uint32 = 5
	CodeDBQueryFailed  uint32 = 7
	CodeScratchOverflow uint32 = 8
	CodeStageFailed    uint32 = 9
	CodeFrameTooLarge  uint32 = 10

	CodeJSONDecodeFailed  uint32 = 20
	CodeJSONTooDeep       uint32 = 21
	CodeJSONTooManyMembers uint32 = 22
	CodeJSONTooLarge      uint32 = 23
	CodeJSONEmitTooLarge  uint32 = 24

	CodeFSOpenFailed  uint32 = 40
	CodeFSWriteFailed uint32 = 41
	CodeFSCloseFailed uint32 = 42
	CodeFSRenameFailed uint32 = 43

	CodeNetConnectFailed  uint32 = 60
	CodeNetReadFailed     uint32 = 61
	CodeNetWriteFailed    uint32 = 62
	CodeNetTimeout        uint32 = 63
	CodeNetShutdownFailed uint32 = 64
	CodeNetCloseFailed    uint32 = 65
	CodeNetEOFUnexpected  uint32 = 66

	CodeDeframeTruncated   uint32 = 80
	CodeDeframeFrameTooBig uint32 = 81
	CodeDeframeTooManyFrames uint32 = 82
	CodeDeframeTrailingBytes uint32 = 83
	CodeDeframeEmptyNotAllowed uint32 = 84
)

// Stats are the four run-loop counters every envelope carries (zeroed in
// the wire encoding when Cfg.EmitStats is false).
type Stats struct {
	BytesIn  uint32
	BytesOut uint32
	ItemsIn  uint32
	ItemsOut uint32
}

// Envelope is the decoded form of a Run result (spec §4.5 "Envelope
// format"): either Ok with stats+payload, or Err with code+message+payload.
type Envelope struct {
	Ok      bool
	Stats   Stats
	Payload []byte

	Code    uint32
	Message string
	ErrPayload []byte
}

// Encode renders the envelope to its wire bytes.
func (e Envelope) Encode() []byte {
	if e.Ok {
		buf := make([]byte, 0, 1+16+4+len(e.Payload))
		buf = append(buf, 1)
		buf = wire.AppendU32(buf, e.Stats.BytesIn)
		buf = wire.AppendU32(buf, e.Stats.BytesOut)
		buf = wire.AppendU32(buf, e.Stats.ItemsIn)
		buf = wire.AppendU32(buf, e.Stats.ItemsOut)
		buf = wire.AppendLenPrefixed(buf, e.Payload)
		return buf
	}
	buf := make([]byte, 0, 1+4+4+len(e.Message)+4+len(e.ErrPayload))
	buf = append(buf, 0)
	buf = wire.AppendU32(buf, e.Code)
	buf = wire.AppendLenPrefixed(buf, []byte(e.Message))
	buf = wire.AppendLenPrefixed(buf, e.ErrPayload)
	return buf
}

// DecodeEnvelope parses bytes produced by Encode. It is provided mainly for
// tests and tooling that round-trip a Run result.
func DecodeEnvelope(data []byte) (Envelope, error) {
	if len(data) < 1 {
		return Envelope{}, wire.ErrTruncated
	}
	switch data[0] {
	case 1:
		rest := data[1:]
		bytesIn, n, err := wire.DecodeU32(rest)
		if err != nil {
			return Envelope{}, err
		}
		rest = rest[n:]
		bytesOut, n, err := wire.DecodeU32(rest)
		if err != nil {
			return Envelope{}, err
		}
		rest = rest[n:]
		itemsIn, n, err := wire.DecodeU32(rest)
		if err != nil {
			return Envelope{}, err
		}
		rest = rest[n:]
		itemsOut, n, err := wire.DecodeU32(rest)
		if err != nil {
			return Envelope{}, err
		}
		rest = rest[n:]
		payload, _, err := wire.TakeLenPrefixed(rest)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{
			Ok:    true,
			Stats: Stats{BytesIn: bytesIn, BytesOut: bytesOut, ItemsIn: itemsIn, ItemsOut: itemsOut},
			Payload: append([]byte(nil), payload...),
		}, nil
	case 0:
		rest := data[1:]
		code, n, err := wire.DecodeU32(rest)
		if err != nil {
			return Envelope{}, err
		}
		rest = rest[n:]
		msg, n, err := wire.TakeLenPrefixed(rest)
		if err != nil {
			return Envelope{}, err
		}
		rest = rest[n:]
		payload, _, err := wire.TakeLenPrefixed(rest)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{
			Code:       code,
			Message:    string(msg),
			ErrPayload: append([]byte(nil), payload...),
		}, nil
	default:
		return Envelope{}, wire.ErrTruncated
	}
}

// errResult is a convenience constructor for an Err Run result.
func errResult(code uint32, msg string, payload []byte) (Envelope, error) {
	return Envelope{Code: code, Message: msg, ErrPayload: payload}, nil
}

func okResult(cfg Cfg, st Stats, payload []byte) (Envelope, error) {
	e := Envelope{Ok: true}
	if cfg.EmitStats {
		e.Stats = st
	}
	if cfg.EmitPayload {
		e.Payload = payload
	}
	return e, nil
}
