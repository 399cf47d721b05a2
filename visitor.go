package sproto

import "errors"

// ErrNil is returned by a Visitor to mean "this field is absent" -
// Encode skips emitting a header entry for it and moves to the next
// field. It also terminates array encoding (end of array).
var ErrNil = errors.New("sproto: field nil")

// ErrNoArray is returned by a Visitor to mean "the whole containing
// message is absent". Unlike ErrNil it is not a per-field skip: Encode
// aborts immediately and reports a zero-length message (spec's "message
// absent" short circuit), not an error. Encode honours it only from an
// array field's presence call (Index 0); returned from any other Visit
// call it fails the encode like any other error.
var ErrNoArray = errors.New("sproto: no array")

// FieldArg is the single argument passed to Visitor.Visit for every
// scalar value or array element touched during Encode or Decode. A
// Visitor must not retain Value past the call that supplied it.
type FieldArg struct {
	TagName   string
	TagID     int
	Kind      Kind  // base kind, array flag stripped
	SubType   *Type // set when Kind == KindStruct
	MainIndex int   // the field's Key, i.e. the "main index" map hint
	Extra     int

	// Index is 0 for a scalar field, 1..n for the nth array element
	// (1-based, matching the wire format's own convention), or -1 to
	// signal "create an empty array" when decoding a zero-length array
	// body.
	Index int

	// Value and Length carry the payload.
	//
	// On Decode: for INTEGER, Value is an 8-byte scratch buffer holding
	// the value's little-endian bytes, sign-extended to 64 bits; for
	// BOOLEAN, Value[0] holds 0 or 1; for STRING/STRUCT, Value aliases
	// the wire bytes directly (zero-copy) and Length == len(Value).
	//
	// On Encode: for INTEGER/BOOLEAN (and array elements of either),
	// the Visitor writes its value's little-endian bytes into Value (an
	// 8-byte, or 1-byte for BOOLEAN, scratch buffer) and returns how
	// many bytes it used. For STRING/STRUCT, Encode calls Visit twice
	// per value: once with Value == nil to ask its size (ErrNil here
	// means the value, or the next array element, doesn't exist), then
	// again with Value sized to exactly the returned length for the
	// actual write (copy, or for STRUCT, a recursive Encode call); the
	// second call is not made when the returned size is 0. An
	// array field additionally gets one presence call at Index 0 with
	// Value == nil before its elements are walked from Index 1; ErrNil
	// there means the whole array field is absent.
	Value  []byte
	Length int
}

// Visitor is called once per scalar value or array element during
// Encode and Decode. It is the Go analogue of sproto's single C callback
// (sproto_callback): one method, dispatched on FieldArg.Kind/Index by
// the caller, rather than a callback-plus-void-pointer pair.
type Visitor interface {
	// Visit is called for every field slot. On Encode it must either
	// write a value into arg.Value and return its length, or return
	// (0, ErrNil) / (0, ErrNoArray) to skip the field or abort the
	// message, or any other non-nil error to fail the whole encode. On
	// Decode its return value is ignored except for the error: any
	// non-nil error, ErrNil and ErrNoArray included, aborts the walk.
	Visit(arg *FieldArg) (int, error)
}

// VisitorFunc adapts a plain function to the Visitor interface, the way
// an inline closure is used at the call site in examples.
type VisitorFunc func(arg *FieldArg) (int, error)

// Visit implements Visitor.
func (f VisitorFunc) Visit(arg *FieldArg) (int, error) { return f(arg) }
