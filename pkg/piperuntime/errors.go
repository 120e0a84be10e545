package piperuntime

import "fmt"

// Error wraps a reserved envelope code with a human-readable message and an
// optional diagnostic payload, in the same idiom pkg/pgproto.Error wraps
// its own code space.
type Error struct {
	Code    uint32
	Msg     string
	Payload []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("piperuntime: code %d: %s", e.Code, e.Msg)
}

func newError(code uint32, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func newErrorPayload(code uint32, msg string, payload []byte) *Error {
	return &Error{Code: code, Msg: msg, Payload: payload}
}
