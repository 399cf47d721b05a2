// Package sproto implements a compact, schema-driven binary message
// format: fixed-width little-endian fields, a minimal header of
// skip/inline/pointer entries per struct, and a byte-level run-length
// pack/unpack pass for squeezing the mostly-zero result further.
//
// A Schema is produced once from a compiled bundle via Load and is
// safe for concurrent use afterwards. Encode and Decode walk a
// *Type's fields against a caller-supplied Visitor, so the package
// never materializes an intermediate object graph - callers drive a
// struct, map, or any other representation directly through the
// visitor callback.
package sproto
