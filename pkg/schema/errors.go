package schema

import (
	"errors"
	"fmt"
)

// Sentinel errors, in the teacher's pkg/cramberry/errors.go idiom: wrap one
// of these with %w so callers can errors.Is/errors.As instead of matching
// strings.
var (
	ErrUnsupportedVersion = errors.New("schema: unsupported schema_version")
	ErrBothDialects       = errors.New("schema: both types and rows present")
	ErrNeitherDialect      = errors.New("schema: neither types nor rows present")
	ErrUnknownRowTag       = errors.New("schema: unknown row tag")
	ErrDuplicateTypeID     = errors.New("schema: duplicate type_id")
	ErrDuplicateFieldID    = errors.New("schema: duplicate field id")
	ErrDuplicateVariantID  = errors.New("schema: duplicate variant id")
	ErrFieldOnEnum         = errors.New("schema: field row attached to enum type")
	ErrVariantOnStruct     = errors.New("schema: variant row attached to struct type")
	ErrCyclicType          = errors.New("schema: cyclic type reference")
	ErrUnknownType         = errors.New("schema: reference to unknown type_id")
	ErrEnumAsStruct        = errors.New("schema: struct field references an enum type")
	ErrInvalidFieldTy      = errors.New("schema: invalid field type")
	ErrMissingBudget       = errors.New("schema: missing required budget field")
	ErrExampleMismatch     = errors.New("schema: example does not match declared type")
)

// Error wraps a sentinel with positional context, in the teacher's
// DecodeError/EncodeError idiom (Error()/Unwrap()).
type Error struct {
	Pos Position
	Err error
	Msg string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("schema: %s: %v", e.Pos, e.Err)
	}
	return fmt.Sprintf("schema: %s: %s: %v", e.Pos, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(pos Position, err error, format string, args ...any) *Error {
	return &Error{Pos: pos, Err: err, Msg: fmt.Sprintf(format, args...)}
}
