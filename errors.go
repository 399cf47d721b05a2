package sproto

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind classifies why an operation against a Schema failed.
type ErrKind int

const (
	// ErrSchemaCorrupt covers truncated bundles, out-of-range indices,
	// non-ascending tags, unknown builtin kinds and field count mismatches
	// discovered while loading a schema bundle.
	ErrSchemaCorrupt ErrKind = iota + 1
	// ErrBufferTooSmall covers an output buffer exhausted during encode
	// or pack, or an input truncated during decode or unpack.
	ErrBufferTooSmall
	// ErrWireMalformed covers a well-framed but semantically invalid
	// message: an integer length that isn't 4 or 8, an inline value on a
	// non-integer/non-boolean field, or a header/data region shorter
	// than declared.
	ErrWireMalformed
	// ErrVisitor covers a visitor returning the Error sentinel.
	ErrVisitor
	// ErrVisitorBadSize covers a visitor returning a length inconsistent
	// with the field's declared kind.
	ErrVisitorBadSize
)

func (k ErrKind) String() string {
	switch k {
	case ErrSchemaCorrupt:
		return "schema corrupt"
	case ErrBufferTooSmall:
		return "buffer too small"
	case ErrWireMalformed:
		return "wire malformed"
	case ErrVisitor:
		return "visitor error"
	case ErrVisitorBadSize:
		return "visitor bad size"
	default:
		return "unknown"
	}
}

// CodecError is the concrete error type every exported operation in this
// package returns on failure. It carries a Kind for programmatic
// dispatch and wraps an optional underlying cause.
type CodecError struct {
	Kind ErrKind
	msg  string
	err  error
}

func (e *CodecError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("sproto: %s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("sproto: %s: %s", e.Kind, e.msg)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is / errors.As.
func (e *CodecError) Unwrap() error { return e.err }

func newErr(kind ErrKind, msg string) error {
	return &CodecError{Kind: kind, msg: msg}
}

func wrapErr(kind ErrKind, msg string, cause error) error {
	return &CodecError{Kind: kind, msg: msg, err: errors.WithStack(cause)}
}

// IsKind reports whether err is a *CodecError of the given kind.
func IsKind(err error, kind ErrKind) bool {
	ce, ok := err.(*CodecError)
	return ok && ce.Kind == kind
}
