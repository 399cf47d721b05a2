package sproto

import "github.com/hollowquill/sproto/wire"

// Decode walks a message's header against t's field table, calling
// v.Visit for every inline value, data block, and array element it
// finds, and returns the number of bytes consumed from data.
//
// A tag with no matching field in t (forward compatibility: the
// message was produced by a newer schema) is still walked for its byte
// length - its data block, if any, is consumed to keep the cursor
// correct - but no Visit call is made for it.
func Decode(t *Type, data []byte, v Visitor) (int, error) {
	if t == nil {
		return 0, newErr(ErrWireMalformed, "decode: nil type")
	}
	if len(data) < wire.SizeofU16 {
		return 0, newErr(ErrBufferTooSmall, "decode: truncated header length")
	}
	fn := int(wire.Uint16(data))
	headerEnd := wire.SizeofU16 + fn*wire.SizeofU16
	if headerEnd > len(data) {
		return 0, newErr(ErrWireMalformed, "decode: header longer than message")
	}
	entries := data[wire.SizeofU16:headerEnd]
	rest := data[headerEnd:]

	tag := -1
	for i := 0; i < fn; i++ {
		raw := wire.Uint16(entries[i*wire.SizeofU16:])
		tag++
		if raw&1 == 1 {
			tag += int(raw / 2)
			continue
		}
		value := int(raw/2) - 1
		f := t.FieldByTag(tag)

		if value >= 0 {
			if f == nil {
				continue
			}
			if err := decodeInline(f, value, v); err != nil {
				return 0, err
			}
			continue
		}

		if len(rest) < wire.SizeofU32 {
			return 0, newErr(ErrWireMalformed, "decode: truncated data block length")
		}
		sz := wire.Uint32(rest)
		rest = rest[wire.SizeofU32:]
		if uint32(len(rest)) < sz {
			return 0, newErr(ErrWireMalformed, "decode: truncated data block")
		}
		block := rest[:sz]
		rest = rest[sz:]
		if f == nil {
			continue
		}
		if err := decodeBlock(f, block, v); err != nil {
			return 0, err
		}
	}

	return len(data) - len(rest), nil
}

// decodeInline delivers a value that was packed directly into the
// header entry: only INTEGER and BOOLEAN scalars are ever inlined.
func decodeInline(f *Field, value int, v Visitor) error {
	if f.Kind.IsArray() {
		return newErr(ErrWireMalformed, "decode: array field carries an inline value")
	}
	var buf [wire.SizeofU64]byte
	switch f.Kind.Base() {
	case KindInteger:
		wire.PutUint64(buf[:], uint64(int64(value)))
	case KindBoolean:
		if value > 1 {
			return newErr(ErrWireMalformed, "decode: boolean inline value out of range")
		}
		buf[0] = byte(value)
	default:
		return newErr(ErrWireMalformed, "decode: non-scalar field carries an inline value")
	}
	arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: f.Kind.Base(), MainIndex: f.Key, Extra: f.Extra, Value: buf[:]}
	if _, err := v.Visit(arg); err != nil {
		return asVisitorErr(err)
	}
	return nil
}

// decodeBlock delivers a value, or an array, carried in a data block.
func decodeBlock(f *Field, block []byte, v Visitor) error {
	base := f.Kind.Base()
	if f.Kind.IsArray() {
		switch base {
		case KindInteger:
			return decodeIntegerArray(f, block, v)
		case KindBoolean:
			return decodeBooleanArray(f, block, v)
		case KindString, KindStruct:
			return decodeBytesArray(f, base, block, v)
		default:
			return newErr(ErrSchemaCorrupt, "decode: unknown array element kind")
		}
	}

	switch base {
	case KindInteger:
		if len(block) != wire.SizeofU32 && len(block) != wire.SizeofU64 {
			return newErr(ErrWireMalformed, "decode: integer data block bad length")
		}
		var buf [wire.SizeofU64]byte
		if len(block) == wire.SizeofU32 {
			sv := int64(int32(wire.Uint32(block)))
			wire.PutUint64(buf[:], uint64(sv))
		} else {
			copy(buf[:], block)
		}
		arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: KindInteger, MainIndex: f.Key, Extra: f.Extra, Value: buf[:]}
		if _, err := v.Visit(arg); err != nil {
			return asVisitorErr(err)
		}
		return nil
	case KindBoolean:
		if len(block) != 1 || block[0] > 1 {
			return newErr(ErrWireMalformed, "decode: boolean data block bad length")
		}
		arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: KindBoolean, MainIndex: f.Key, Extra: f.Extra, Value: block[:1]}
		if _, err := v.Visit(arg); err != nil {
			return asVisitorErr(err)
		}
		return nil
	case KindString, KindStruct:
		arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: base, SubType: f.SubType, MainIndex: f.Key, Extra: f.Extra, Value: block, Length: len(block)}
		if _, err := v.Visit(arg); err != nil {
			return asVisitorErr(err)
		}
		return nil
	default:
		return newErr(ErrSchemaCorrupt, "decode: unknown field kind")
	}
}

// decodeEmptyArray tells the visitor an array field is present with
// zero elements (Index == -1, spec's "create an empty array" signal),
// as distinct from the field being entirely absent (no Visit call at
// all, because the header entry was a skip).
func decodeEmptyArray(f *Field, base Kind, v Visitor) error {
	arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: base, SubType: f.SubType, MainIndex: f.Key, Extra: f.Extra, Index: -1}
	if _, err := v.Visit(arg); err != nil {
		return asVisitorErr(err)
	}
	return nil
}

func decodeIntegerArray(f *Field, block []byte, v Visitor) error {
	if len(block) == 0 {
		return decodeEmptyArray(f, KindInteger, v)
	}
	intlen := int(block[0])
	if intlen != wire.SizeofU32 && intlen != wire.SizeofU64 {
		return newErr(ErrWireMalformed, "decode: integer array element width must be 4 or 8")
	}
	body := block[1:]
	if len(body)%intlen != 0 {
		return newErr(ErrWireMalformed, "decode: integer array body not a multiple of element width")
	}
	n := len(body) / intlen
	if n == 0 {
		return decodeEmptyArray(f, KindInteger, v)
	}
	for i := 0; i < n; i++ {
		elem := body[i*intlen : (i+1)*intlen]
		var buf [wire.SizeofU64]byte
		if intlen == wire.SizeofU32 {
			sv := int64(int32(wire.Uint32(elem)))
			wire.PutUint64(buf[:], uint64(sv))
		} else {
			copy(buf[:], elem)
		}
		arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: KindInteger, MainIndex: f.Key, Extra: f.Extra, Index: i + 1, Value: buf[:]}
		if _, err := v.Visit(arg); err != nil {
			return asVisitorErr(err)
		}
	}
	return nil
}

func decodeBooleanArray(f *Field, block []byte, v Visitor) error {
	if len(block) == 0 {
		return decodeEmptyArray(f, KindBoolean, v)
	}
	for i, b := range block {
		if b > 1 {
			return newErr(ErrWireMalformed, "decode: boolean array element out of range")
		}
		arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: KindBoolean, MainIndex: f.Key, Extra: f.Extra, Index: i + 1, Value: block[i : i+1]}
		if _, err := v.Visit(arg); err != nil {
			return asVisitorErr(err)
		}
	}
	return nil
}

func decodeBytesArray(f *Field, base Kind, block []byte, v Visitor) error {
	if len(block) == 0 {
		return decodeEmptyArray(f, base, v)
	}
	pos := 0
	idx := 0
	for pos < len(block) {
		if len(block)-pos < wire.SizeofU32 {
			return newErr(ErrWireMalformed, "decode: truncated array element length")
		}
		sz := wire.Uint32(block[pos:])
		pos += wire.SizeofU32
		if uint32(len(block)-pos) < sz {
			return newErr(ErrWireMalformed, "decode: truncated array element")
		}
		elem := block[pos : pos+int(sz)]
		pos += int(sz)
		idx++
		arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: base, SubType: f.SubType, MainIndex: f.Key, Extra: f.Extra, Index: idx, Value: elem, Length: len(elem)}
		if _, err := v.Visit(arg); err != nil {
			return asVisitorErr(err)
		}
	}
	return nil
}
