package sproto

import "github.com/hollowquill/sproto/wire"

// Encode walks t's fields in tag order, calling v.Visit for every value,
// and writes the resulting message into out. It returns the number of
// bytes written.
//
// Header and data are assembled into separate scratch buffers and
// concatenated once at the end, rather than written in place with a
// pre-sized header region the way the C implementation does it: it
// sidesteps shifting data around when a field's header entries turn
// out narrower than the worst case (spec's sanctioned "collect, then
// emit" alternative), while producing the identical byte layout.
func Encode(t *Type, out []byte, v Visitor) (int, error) {
	if t == nil {
		return 0, newErr(ErrWireMalformed, "encode: nil type")
	}

	var header []byte
	var data []byte
	fn := 0
	lastTag := -1

	emitSkip := func(gap int) {
		for gap > 0 {
			chunk := gap
			if chunk > 0x7fff {
				chunk = 0x7fff
			}
			entry := uint16((chunk-1)*2 + 1)
			header = append(header, byte(entry), byte(entry>>8))
			fn++
			gap -= chunk
		}
	}

	for _, f := range t.Fields {
		present, entry, block, err := encodeField(f, v)
		if err == ErrNoArray {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		if !present {
			continue
		}
		// The gap is measured against the field's own tag, not a count
		// of absent fields walked so far: an absent field never
		// advances lastTag, so a gap spanning several skipped tags
		// collapses into one skip entry sized to the tag distance.
		emitSkip(f.Tag - lastTag - 1)
		lastTag = f.Tag
		header = append(header, byte(entry), byte(entry>>8))
		fn++
		data = append(data, block...)
	}
	// A trailing gap past the last present field carries no
	// information and is simply never emitted into header.

	total := wire.SizeofU16 + len(header) + len(data)
	if total > len(out) {
		return 0, newErr(ErrBufferTooSmall, "encode: output buffer too small")
	}
	wire.PutUint16(out, uint16(fn))
	copy(out[wire.SizeofU16:], header)
	copy(out[wire.SizeofU16+len(header):], data)
	return total, nil
}

// encodeField resolves one field to either an inline header entry (a
// value word) or a data block to append to the data area. present is
// false when the field should be skipped entirely (ErrNil from its
// first Visit call).
func encodeField(f *Field, v Visitor) (present bool, entry uint16, block []byte, err error) {
	base := f.Kind.Base()
	if f.Kind.IsArray() {
		return encodeArray(f, base, v)
	}
	switch base {
	case KindInteger:
		return encodeInteger(f, v, 0)
	case KindBoolean:
		return encodeBoolean(f, v, 0)
	case KindString, KindStruct:
		return encodeBytes(f, base, v, 0)
	default:
		return false, 0, nil, newErr(ErrSchemaCorrupt, "encode: unknown field kind")
	}
}

func encodeInteger(f *Field, v Visitor, index int) (bool, uint16, []byte, error) {
	var buf [wire.SizeofU64]byte
	arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: KindInteger, MainIndex: f.Key, Extra: f.Extra, Index: index, Value: buf[:]}
	n, err := v.Visit(arg)
	switch err {
	case nil:
	case ErrNil:
		return false, 0, nil, nil
	default:
		return false, 0, nil, asVisitorErr(err)
	}
	switch n {
	case wire.SizeofU32:
		uv := wire.Uint32(buf[:wire.SizeofU32])
		if uv < 0x7fff {
			return true, uint16((uv+1)*2), nil, nil
		}
		block := make([]byte, wire.SizeofU32+wire.SizeofU32)
		wire.PutUint32(block, wire.SizeofU32)
		copy(block[wire.SizeofU32:], buf[:wire.SizeofU32])
		return true, 0, block, nil
	case wire.SizeofU64:
		block := make([]byte, wire.SizeofU32+wire.SizeofU64)
		wire.PutUint32(block, wire.SizeofU64)
		copy(block[wire.SizeofU32:], buf[:wire.SizeofU64])
		return true, 0, block, nil
	default:
		return false, 0, nil, newErr(ErrVisitorBadSize, "encode: integer visitor returned bad size")
	}
}

func encodeBoolean(f *Field, v Visitor, index int) (bool, uint16, []byte, error) {
	var buf [1]byte
	arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: KindBoolean, MainIndex: f.Key, Extra: f.Extra, Index: index, Value: buf[:]}
	n, err := v.Visit(arg)
	switch err {
	case nil:
	case ErrNil:
		return false, 0, nil, nil
	default:
		return false, 0, nil, asVisitorErr(err)
	}
	if n != 1 || buf[0] > 1 {
		return false, 0, nil, newErr(ErrVisitorBadSize, "encode: boolean visitor returned bad size")
	}
	return true, uint16((uint16(buf[0]) + 1) * 2), nil, nil
}

// encodeBytes handles a scalar STRING or STRUCT field with the
// size-then-write call pair documented on FieldArg.
func encodeBytes(f *Field, base Kind, v Visitor, index int) (bool, uint16, []byte, error) {
	sizeArg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: base, SubType: f.SubType, MainIndex: f.Key, Extra: f.Extra, Index: index}
	size, err := v.Visit(sizeArg)
	switch err {
	case nil:
	case ErrNil:
		return false, 0, nil, nil
	default:
		return false, 0, nil, asVisitorErr(err)
	}
	if size < 0 {
		return false, 0, nil, newErr(ErrVisitorBadSize, "encode: negative size from visitor")
	}
	block := make([]byte, wire.SizeofU32+size)
	wire.PutUint32(block, uint32(size))
	if size > 0 {
		writeArg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: base, SubType: f.SubType, MainIndex: f.Key, Extra: f.Extra, Index: index, Value: block[wire.SizeofU32:], Length: size}
		n, err := v.Visit(writeArg)
		if err != nil {
			return false, 0, nil, asVisitorErr(err)
		}
		if n != size {
			return false, 0, nil, newErr(ErrVisitorBadSize, "encode: visitor wrote a different size than it reported")
		}
	}
	return true, 0, block, nil
}

func encodeArray(f *Field, base Kind, v Visitor) (bool, uint16, []byte, error) {
	presenceArg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: base, SubType: f.SubType, MainIndex: f.Key, Extra: f.Extra, Index: 0}
	_, err := v.Visit(presenceArg)
	switch err {
	case nil:
	case ErrNil:
		return false, 0, nil, nil
	case ErrNoArray:
		return false, 0, nil, ErrNoArray
	default:
		return false, 0, nil, asVisitorErr(err)
	}

	var body []byte
	switch base {
	case KindInteger:
		body, err = encodeIntegerArray(f, v)
	case KindBoolean:
		body, err = encodeBooleanArray(f, v)
	case KindString, KindStruct:
		body, err = encodeBytesArray(f, base, v)
	default:
		return false, 0, nil, newErr(ErrSchemaCorrupt, "encode: unknown array element kind")
	}
	if err != nil {
		return false, 0, nil, err
	}

	block := make([]byte, wire.SizeofU32+len(body))
	wire.PutUint32(block, uint32(len(body)))
	copy(block[wire.SizeofU32:], body)
	return true, 0, block, nil
}

// encodeIntegerArray gathers every element at whatever width its
// visitor call chose (4 or 8 bytes), then re-emits them all at the
// widest width actually seen, sign-extending any 4-byte element that
// needs promotion (spec's array width-promotion rule), prefixed with a
// 1-byte element-width marker.
func encodeIntegerArray(f *Field, v Visitor) ([]byte, error) {
	type raw struct {
		n   int
		buf [wire.SizeofU64]byte
	}
	var elems []raw
	for i := 1; ; i++ {
		var buf [wire.SizeofU64]byte
		arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: KindInteger, MainIndex: f.Key, Extra: f.Extra, Index: i, Value: buf[:]}
		n, err := v.Visit(arg)
		if err == ErrNil {
			break
		}
		if err != nil {
			return nil, asVisitorErr(err)
		}
		if n != wire.SizeofU32 && n != wire.SizeofU64 {
			return nil, newErr(ErrVisitorBadSize, "encode: integer array element bad size")
		}
		elems = append(elems, raw{n: n, buf: buf})
	}

	width := wire.SizeofU32
	for _, e := range elems {
		if e.n == wire.SizeofU64 {
			width = wire.SizeofU64
			break
		}
	}

	body := make([]byte, 1+len(elems)*width)
	body[0] = byte(width)
	for i, e := range elems {
		dst := body[1+i*width:]
		if width == wire.SizeofU32 {
			copy(dst, e.buf[:wire.SizeofU32])
			continue
		}
		if e.n == wire.SizeofU64 {
			copy(dst, e.buf[:wire.SizeofU64])
			continue
		}
		// Promote a 4-byte element to 8 bytes, sign-extending.
		sv := int64(int32(wire.Uint32(e.buf[:wire.SizeofU32])))
		wire.PutUint64(dst, uint64(sv))
	}
	return body, nil
}

func encodeBooleanArray(f *Field, v Visitor) ([]byte, error) {
	var body []byte
	for i := 1; ; i++ {
		var buf [1]byte
		arg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: KindBoolean, MainIndex: f.Key, Extra: f.Extra, Index: i, Value: buf[:]}
		n, err := v.Visit(arg)
		if err == ErrNil {
			break
		}
		if err != nil {
			return nil, asVisitorErr(err)
		}
		if n != 1 || buf[0] > 1 {
			return nil, newErr(ErrVisitorBadSize, "encode: boolean array element bad size")
		}
		body = append(body, buf[0])
	}
	return body, nil
}

func encodeBytesArray(f *Field, base Kind, v Visitor) ([]byte, error) {
	var body []byte
	for i := 1; ; i++ {
		sizeArg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: base, SubType: f.SubType, MainIndex: f.Key, Extra: f.Extra, Index: i}
		size, err := v.Visit(sizeArg)
		if err == ErrNil {
			break
		}
		if err != nil {
			return nil, asVisitorErr(err)
		}
		if size < 0 {
			return nil, newErr(ErrVisitorBadSize, "encode: negative size from visitor")
		}
		elem := make([]byte, wire.SizeofU32+size)
		wire.PutUint32(elem, uint32(size))
		if size > 0 {
			writeArg := &FieldArg{TagName: f.Name, TagID: f.Tag, Kind: base, SubType: f.SubType, MainIndex: f.Key, Extra: f.Extra, Index: i, Value: elem[wire.SizeofU32:], Length: size}
			n, err := v.Visit(writeArg)
			if err != nil {
				return nil, asVisitorErr(err)
			}
			if n != size {
				return nil, newErr(ErrVisitorBadSize, "encode: visitor wrote a different size than it reported")
			}
		}
		body = append(body, elem...)
	}
	return body, nil
}

func asVisitorErr(err error) error {
	if _, ok := err.(*CodecError); ok {
		return err
	}
	return wrapErr(ErrVisitor, "visitor returned an error", err)
}
