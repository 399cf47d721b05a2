// Package wire implements the little-endian byte primitives the sproto
// wire format is built on: fixed-width u16/u32/u64 reads and writes.
//
// There is no varint encoding anywhere in this format; every integer on
// the wire has a fixed, known width (2, 4 or 8 bytes), and there is no
// endianness negotiation - everything is little-endian.
package wire

import "encoding/binary"

// Sizes of the fixed-width wire primitives, in bytes.
const (
	SizeofU16 = 2
	SizeofU32 = 4
	SizeofU64 = 8
)

// Uint16 reads a little-endian u16 from the front of b.
func Uint16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

// Uint32 reads a little-endian u32 from the front of b.
func Uint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// Uint64 reads a little-endian u64 from the front of b.
func Uint64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

// PutUint16 writes v as a little-endian u16 into the front of b.
func PutUint16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// PutUint32 writes v as a little-endian u32 into the front of b.
func PutUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// PutUint64 writes v as a little-endian u64 into the front of b.
func PutUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
