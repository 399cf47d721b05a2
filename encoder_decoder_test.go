package sproto

import (
	"testing"

	"github.com/hollowquill/sproto/wire"
	"github.com/stretchr/testify/require"
)

// newType builds a Type directly, bypassing Load, for tests that only
// care about the encode/decode walk and not schema parsing.
func newType(name string, fields ...*Field) *Type {
	t := &Type{Name: name, Fields: fields}
	if len(fields) == 0 {
		t.base = -1
		return t
	}
	base := fields[0].Tag
	last := fields[len(fields)-1].Tag
	if last-base+1 == len(fields) {
		t.base = base
	} else {
		t.base = -1
	}
	t.maxN = last + 1
	return t
}

// --- scalar integer / boolean / string ---

type personRecord struct {
	id   int32
	name string
}

func (p *personRecord) Visit(arg *FieldArg) (int, error) {
	switch arg.TagID {
	case 0:
		wire.PutUint32(arg.Value, uint32(p.id))
		return wire.SizeofU32, nil
	case 1:
		if arg.Value == nil {
			return len(p.name), nil
		}
		copy(arg.Value, p.name)
		return len(p.name), nil
	}
	return 0, ErrNil
}

type personDecode struct {
	id   int32
	name string
}

func (p *personDecode) Visit(arg *FieldArg) (int, error) {
	switch arg.TagID {
	case 0:
		p.id = int32(wire.Uint32(arg.Value))
	case 1:
		p.name = string(arg.Value)
	}
	return 0, nil
}

func personType() *Type {
	return newType("Person",
		&Field{Tag: 0, Kind: KindInteger, Name: "id"},
		&Field{Tag: 1, Kind: KindString, Name: "name"},
	)
}

func TestEncodeDecodePersonRoundTrip(t *testing.T) {
	pt := personType()
	src := &personRecord{id: 42, name: "ada"}
	buf := make([]byte, 256)
	n, err := Encode(pt, buf, src)
	require.NoError(t, err)

	dst := &personDecode{}
	consumed, err := Decode(pt, buf[:n], dst)
	require.NoError(t, err)
	require.Equal(t, n, consumed)
	require.Equal(t, int32(42), dst.id)
	require.Equal(t, "ada", dst.name)
}

// TestEncodeSmallIntegerInline pins the exact byte layout for a single
// small-integer field: header fn=1, one inline entry, no data region.
func TestEncodeSmallIntegerInline(t *testing.T) {
	typ := newType("One", &Field{Tag: 0, Kind: KindInteger, Name: "v"})
	v := VisitorFunc(func(arg *FieldArg) (int, error) {
		wire.PutUint32(arg.Value, 7)
		return wire.SizeofU32, nil
	})
	buf := make([]byte, 32)
	n, err := Encode(typ, buf, v)
	require.NoError(t, err)
	require.Equal(t, []byte{
		1, 0, // fn = 1
		16, 0, // entry: (7+1)*2 = 16
	}, buf[:n])
}

// TestEncodeLargeIntegerDataBlock pins the layout when a value is too
// large to inline: header entry 0 (pointer), data block u32 len=4 + LE
// bytes.
func TestEncodeLargeIntegerDataBlock(t *testing.T) {
	typ := newType("One", &Field{Tag: 0, Kind: KindInteger, Name: "v"})
	v := VisitorFunc(func(arg *FieldArg) (int, error) {
		wire.PutUint32(arg.Value, 0x7fff)
		return wire.SizeofU32, nil
	})
	buf := make([]byte, 32)
	n, err := Encode(typ, buf, v)
	require.NoError(t, err)
	require.Equal(t, []byte{
		1, 0, // fn = 1
		0, 0, // entry: pointer
		4, 0, 0, 0, // data block length = 4
		0xff, 0x7f, 0, 0, // LE 0x7fff
	}, buf[:n])
}

func TestEncodeBooleanInline(t *testing.T) {
	typ := newType("Flag", &Field{Tag: 0, Kind: KindBoolean, Name: "b"})
	for _, want := range []bool{true, false} {
		v := VisitorFunc(func(arg *FieldArg) (int, error) {
			if want {
				arg.Value[0] = 1
			} else {
				arg.Value[0] = 0
			}
			return 1, nil
		})
		buf := make([]byte, 16)
		n, err := Encode(typ, buf, v)
		require.NoError(t, err)
		d := &struct{ got bool }{}
		_, err = Decode(typ, buf[:n], VisitorFunc(func(arg *FieldArg) (int, error) {
			d.got = arg.Value[0] != 0
			return 0, nil
		}))
		require.NoError(t, err)
		require.Equal(t, want, d.got)
	}
}

// TestEncodeSkipsAbsentFieldAndTrimsTrailing verifies that fields absent
// via ErrNil after the last present field (tags 1 and 2 here) are
// dropped from the header entirely, with no skip entries emitted for
// them.
func TestEncodeSkipsAbsentFieldAndTrimsTrailing(t *testing.T) {
	typ := newType("Three",
		&Field{Tag: 0, Kind: KindInteger, Name: "a"},
		&Field{Tag: 1, Kind: KindInteger, Name: "b"},
		&Field{Tag: 2, Kind: KindInteger, Name: "c"},
	)
	v := VisitorFunc(func(arg *FieldArg) (int, error) {
		if arg.TagID == 1 || arg.TagID == 2 {
			return 0, ErrNil
		}
		wire.PutUint32(arg.Value, 1)
		return wire.SizeofU32, nil
	})
	buf := make([]byte, 32)
	n, err := Encode(typ, buf, v)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 0, 4, 0}, buf[:n]) // fn=1, one inline entry for tag 0
}

// TestEncodeDecodeSparseTagGap pins the header layout for a type whose
// populated fields sit at tags 0 and 3: the gap between them must be
// emitted as a single skip-by-2 entry (covering tags 1-2), not dropped,
// or the decoder's tag cursor reads the second field under the wrong
// tag and silently discards it.
func TestEncodeDecodeSparseTagGap(t *testing.T) {
	typ := newType("Sparse",
		&Field{Tag: 0, Kind: KindInteger, Name: "a"},
		&Field{Tag: 3, Kind: KindInteger, Name: "d"},
	)
	v := VisitorFunc(func(arg *FieldArg) (int, error) {
		switch arg.TagID {
		case 0:
			wire.PutUint32(arg.Value, 1)
		case 3:
			wire.PutUint32(arg.Value, 2)
		}
		return wire.SizeofU32, nil
	})
	buf := make([]byte, 32)
	n, err := Encode(typ, buf, v)
	require.NoError(t, err)
	require.Equal(t, []byte{
		3, 0, // fn = 3: value, skip, value
		4, 0, // entry: tag 0 value, (1+1)*2 = 4
		3, 0, // entry: skip-by-2, (2-1)*2+1 = 3
		6, 0, // entry: tag 3 value, (2+1)*2 = 6
	}, buf[:n])

	got := map[int]uint64{}
	_, err = Decode(typ, buf[:n], VisitorFunc(func(arg *FieldArg) (int, error) {
		got[arg.TagID] = wire.Uint64(arg.Value)
		return 0, nil
	}))
	require.NoError(t, err)
	require.Equal(t, uint64(1), got[0])
	require.Equal(t, uint64(2), got[3])
}

// --- integer array with width promotion ---

type intArrayVisitor struct {
	xs     []int64
	absent bool
}

func (a *intArrayVisitor) Visit(arg *FieldArg) (int, error) {
	if a.absent && arg.Index == 0 {
		return 0, ErrNil
	}
	if arg.Index == 0 {
		return 0, nil
	}
	idx := arg.Index - 1
	if idx >= len(a.xs) {
		return 0, ErrNil
	}
	v := a.xs[idx]
	if v >= -0x80000000 && v <= 0x7fffffff {
		wire.PutUint32(arg.Value, uint32(int32(v)))
		return wire.SizeofU32, nil
	}
	wire.PutUint64(arg.Value, uint64(v))
	return wire.SizeofU64, nil
}

type intArrayDecode struct {
	xs    []int64
	empty bool
}

func (d *intArrayDecode) Visit(arg *FieldArg) (int, error) {
	if arg.Index == -1 {
		d.empty = true
		return 0, nil
	}
	d.xs = append(d.xs, int64(wire.Uint64(arg.Value)))
	return 0, nil
}

func TestEncodeDecodeIntegerArrayPromotion(t *testing.T) {
	typ := newType("Nums", &Field{Tag: 0, Kind: KindInteger | KindArray, Name: "xs"})
	src := &intArrayVisitor{xs: []int64{1, 2, 3000000000}}
	buf := make([]byte, 256)
	n, err := Encode(typ, buf, src)
	require.NoError(t, err)

	dst := &intArrayDecode{}
	_, err = Decode(typ, buf[:n], dst)
	require.NoError(t, err)
	require.Equal(t, src.xs, dst.xs)
}

func TestEncodeDecodeEmptyIntegerArray(t *testing.T) {
	typ := newType("Nums", &Field{Tag: 0, Kind: KindInteger | KindArray, Name: "xs"})
	src := &intArrayVisitor{xs: nil}
	buf := make([]byte, 64)
	n, err := Encode(typ, buf, src)
	require.NoError(t, err)

	dst := &intArrayDecode{}
	_, err = Decode(typ, buf[:n], dst)
	require.NoError(t, err)
	require.True(t, dst.empty)
	require.Empty(t, dst.xs)
}

func TestEncodeDecodeAbsentIntegerArray(t *testing.T) {
	typ := newType("Nums", &Field{Tag: 0, Kind: KindInteger | KindArray, Name: "xs"})
	src := &intArrayVisitor{absent: true}
	buf := make([]byte, 64)
	n, err := Encode(typ, buf, src)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0}, buf[:n]) // fn=0: field skipped entirely, no entries

	dst := &intArrayDecode{}
	_, err = Decode(typ, buf[:n], dst)
	require.NoError(t, err)
	require.False(t, dst.empty)
	require.Nil(t, dst.xs)
}

// --- string array ---

type stringArrayVisitor struct{ ss []string }

func (a *stringArrayVisitor) Visit(arg *FieldArg) (int, error) {
	if arg.Index == 0 {
		return 0, nil
	}
	idx := arg.Index - 1
	if idx >= len(a.ss) {
		return 0, ErrNil
	}
	if arg.Value == nil {
		return len(a.ss[idx]), nil
	}
	copy(arg.Value, a.ss[idx])
	return len(a.ss[idx]), nil
}

type stringArrayDecode struct{ ss []string }

func (d *stringArrayDecode) Visit(arg *FieldArg) (int, error) {
	if arg.Index == -1 {
		d.ss = []string{}
		return 0, nil
	}
	d.ss = append(d.ss, string(arg.Value))
	return 0, nil
}

func TestEncodeDecodeStringArray(t *testing.T) {
	typ := newType("Tags", &Field{Tag: 0, Kind: KindString | KindArray, Name: "tags"})
	src := &stringArrayVisitor{ss: []string{"red", "", "blue"}}
	buf := make([]byte, 256)
	n, err := Encode(typ, buf, src)
	require.NoError(t, err)

	dst := &stringArrayDecode{}
	_, err = Decode(typ, buf[:n], dst)
	require.NoError(t, err)
	require.Equal(t, src.ss, dst.ss)
}

// --- nested struct field ---

type addressRecord struct{ city string }

func (a *addressRecord) Visit(arg *FieldArg) (int, error) {
	if arg.Value == nil {
		return len(a.city), nil
	}
	copy(arg.Value, a.city)
	return len(a.city), nil
}

type addressDecode struct{ city string }

func (a *addressDecode) Visit(arg *FieldArg) (int, error) {
	a.city = string(arg.Value)
	return 0, nil
}

func addressType() *Type {
	return newType("Address", &Field{Tag: 0, Kind: KindString, Name: "city"})
}

type employeeRecord struct {
	name        string
	addr        *addressRecord
	addrEncoded []byte
}

func (e *employeeRecord) Visit(arg *FieldArg) (int, error) {
	switch arg.TagID {
	case 0:
		if arg.Value == nil {
			return len(e.name), nil
		}
		copy(arg.Value, e.name)
		return len(e.name), nil
	case 1:
		if e.addr == nil {
			return 0, ErrNil
		}
		if arg.Value == nil {
			// Size query: encode into a scratch buffer to learn the
			// exact length the nested struct needs.
			scratch := make([]byte, 256)
			n, err := Encode(arg.SubType, scratch, e.addr)
			if err != nil {
				return 0, err
			}
			e.addrEncoded = scratch[:n]
			return n, nil
		}
		copy(arg.Value, e.addrEncoded)
		return len(e.addrEncoded), nil
	}
	return 0, ErrNil
}

type employeeDecode struct {
	name string
	city string
}

func (e *employeeDecode) Visit(arg *FieldArg) (int, error) {
	switch arg.TagID {
	case 0:
		e.name = string(arg.Value)
	case 1:
		d := &addressDecode{}
		_, err := Decode(arg.SubType, arg.Value, d)
		if err != nil {
			return 0, err
		}
		e.city = d.city
	}
	return 0, nil
}

func TestEncodeDecodeNestedStruct(t *testing.T) {
	addrT := addressType()
	empT := newType("Employee",
		&Field{Tag: 0, Kind: KindString, Name: "name"},
		&Field{Tag: 1, Kind: KindStruct, Name: "addr", SubType: addrT},
	)

	src := &employeeRecord{name: "han", addr: &addressRecord{city: "tatooine"}}
	buf := make([]byte, 256)
	n, err := Encode(empT, buf, src)
	require.NoError(t, err)

	dst := &employeeDecode{}
	_, err = Decode(empT, buf[:n], dst)
	require.NoError(t, err)
	require.Equal(t, "han", dst.name)
	require.Equal(t, "tatooine", dst.city)
}

// --- forward compatibility: unknown tag is skipped, not fatal ---

func TestDecodeSkipsUnknownTag(t *testing.T) {
	wide := newType("Wide",
		&Field{Tag: 0, Kind: KindInteger, Name: "a"},
		&Field{Tag: 1, Kind: KindString, Name: "extra"},
	)
	narrow := newType("Narrow", &Field{Tag: 0, Kind: KindInteger, Name: "a"})

	v := VisitorFunc(func(arg *FieldArg) (int, error) {
		switch arg.TagID {
		case 0:
			wire.PutUint32(arg.Value, 9)
			return wire.SizeofU32, nil
		case 1:
			if arg.Value == nil {
				return 5, nil
			}
			copy(arg.Value, "hello")
			return 5, nil
		}
		return 0, ErrNil
	})
	buf := make([]byte, 64)
	n, err := Encode(wide, buf, v)
	require.NoError(t, err)

	got := 0
	_, err = Decode(narrow, buf[:n], VisitorFunc(func(arg *FieldArg) (int, error) {
		got = int(wire.Uint64(arg.Value))
		return 0, nil
	}))
	require.NoError(t, err)
	require.Equal(t, 9, got)
}

func TestEncodeBufferTooSmall(t *testing.T) {
	typ := personType()
	src := &personRecord{id: 1, name: "a longer name than the buffer"}
	buf := make([]byte, 4)
	_, err := Encode(typ, buf, src)
	require.Error(t, err)
	require.True(t, IsKind(err, ErrBufferTooSmall))
}
