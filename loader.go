package sproto

import "github.com/hollowquill/sproto/wire"

// Load parses a compiled schema bundle into a Schema. The bundle is
// itself a sproto-encoded value of shape { types: *Type, protocols:
// *Protocol } (spec §4.D): decoding it uses the same struct-record
// framing as an ordinary message, with the schema's own shape hard
// coded into this function instead of looked up in a Type.
//
// On any failure the arena allocated so far is released and no partial
// Schema is returned.
func Load(bundle []byte) (schema *Schema, err error) {
	s := &Schema{arena: newArena()}
	defer func() {
		if err != nil {
			s.arena.release()
			schema = nil
		}
	}()

	top, err := parseStructFields(bundle)
	if err != nil {
		return nil, err
	}

	var typesBlob, protocolsBlob []byte
	for _, f := range top {
		switch f.tag {
		case 0:
			if !f.hasData {
				return nil, newErr(ErrSchemaCorrupt, "bundle: types field must be a data pointer")
			}
			typesBlob = f.data
		case 1:
			if !f.hasData {
				return nil, newErr(ErrSchemaCorrupt, "bundle: protocols field must be a data pointer")
			}
			protocolsBlob = f.data
		default:
			return nil, newErr(ErrSchemaCorrupt, "bundle: unexpected top-level tag")
		}
	}

	typeRecords, err := splitRecords(typesBlob)
	if err != nil {
		return nil, err
	}

	// Two-phase load (spec §4.D/§9): allocate every Type up front so
	// struct fields can reference types declared later in the bundle,
	// then fill each one in.
	s.types = make([]*Type, len(typeRecords))
	for i := range s.types {
		s.types[i] = &Type{}
	}
	for i, rec := range typeRecords {
		if err := s.fillType(s.types[i], rec); err != nil {
			return nil, err
		}
	}

	s.typeByName = make(map[string]*Type, len(s.types))
	for _, t := range s.types {
		if t.Name == "" {
			return nil, newErr(ErrSchemaCorrupt, "type missing name")
		}
		if _, dup := s.typeByName[t.Name]; dup {
			return nil, newErr(ErrSchemaCorrupt, "duplicate type name "+t.Name)
		}
		s.typeByName[t.Name] = t
	}

	protoRecords, err := splitRecords(protocolsBlob)
	if err != nil {
		return nil, err
	}
	s.protocols = make([]*Protocol, len(protoRecords))
	s.protoByName = make(map[string]*Protocol, len(protoRecords))
	lastTag := -1
	for i, rec := range protoRecords {
		p, err := s.fillProtocol(rec)
		if err != nil {
			return nil, err
		}
		if p.Tag <= lastTag {
			return nil, newErr(ErrSchemaCorrupt, "protocol tags not ascending")
		}
		lastTag = p.Tag
		if _, dup := s.protoByName[p.Name]; dup {
			return nil, newErr(ErrSchemaCorrupt, "duplicate protocol name "+p.Name)
		}
		s.protoByName[p.Name] = p
		s.protocols[i] = p
	}

	return s, nil
}

// fillType decodes one type record (spec §4.D "Per type"): a struct
// record with one or two fields, tag 0 = name, tag 1 = the field array.
func (s *Schema) fillType(t *Type, rec []byte) error {
	fields, err := parseStructFields(rec)
	if err != nil {
		return err
	}

	for _, f := range fields {
		switch f.tag {
		case 0:
			if !f.hasData {
				return newErr(ErrSchemaCorrupt, "type name must be a string")
			}
			t.Name = s.arena.str(f.data)
		case 1:
			if !f.hasData {
				return newErr(ErrSchemaCorrupt, "type fields must be a data pointer")
			}
			if err := s.fillTypeFields(t, f.data); err != nil {
				return err
			}
		default:
			return newErr(ErrSchemaCorrupt, "type: unexpected tag")
		}
	}
	return nil
}

func (s *Schema) fillTypeFields(t *Type, blob []byte) error {
	fieldRecords, err := splitRecords(blob)
	if err != nil {
		return err
	}
	n := len(fieldRecords)
	t.Fields = make([]*Field, n)

	last := -1
	gaps := 0
	for i, rec := range fieldRecords {
		f, err := s.fillField(rec)
		if err != nil {
			return err
		}
		if f.Tag <= last {
			return newErr(ErrSchemaCorrupt, "field tags not ascending in "+t.Name)
		}
		if f.Tag > last+1 {
			gaps++
		}
		last = f.Tag
		t.Fields[i] = f
	}

	if n == 0 {
		t.base = -1
		t.maxN = 0
		return nil
	}
	base := t.Fields[0].Tag
	if t.Fields[n-1].Tag-base+1 == n {
		t.base = base
	} else {
		t.base = -1
	}
	t.maxN = n + gaps
	return nil
}

// fillField decodes one field record (spec §4.D "Per field"): tags
// 0..5 are name, builtin kind, type-index-or-extra, tag, array flag,
// key, walked with the same skip/inline/pointer cursor as a message.
func (s *Schema) fillField(rec []byte) (*Field, error) {
	f := &Field{Tag: -1, Key: -1}
	builtin := -1
	haveTypeIndex := false
	typeIndex := 0
	array := false

	entries, err := parseStructFields(rec)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		switch e.tag {
		case 0:
			if !e.hasData {
				return nil, newErr(ErrSchemaCorrupt, "field name must be a string")
			}
			f.Name = s.arena.str(e.data)
		case 1:
			builtin = e.value
		case 2:
			haveTypeIndex = true
			typeIndex = e.value
		case 3:
			f.Tag = e.value
		case 4:
			array = e.value != 0
		case 5:
			f.Key = e.value
		default:
			return nil, newErr(ErrSchemaCorrupt, "field: unexpected tag")
		}
	}

	if f.Tag < 0 || f.Name == "" || builtin < 0 {
		return nil, newErr(ErrSchemaCorrupt, "field missing name/tag/kind")
	}
	if builtin > int(KindStruct) {
		return nil, newErr(ErrSchemaCorrupt, "field: unknown builtin kind")
	}
	kind := Kind(builtin)

	if haveTypeIndex {
		switch kind {
		case KindInteger:
			f.Extra = pow10(typeIndex)
		case KindString:
			f.Extra = typeIndex
		default:
			if typeIndex < 0 || typeIndex >= len(s.types) {
				return nil, newErr(ErrSchemaCorrupt, "field: type index out of range")
			}
			kind = KindStruct
			f.SubType = s.types[typeIndex]
		}
	}
	if array {
		kind |= KindArray
	}
	f.Kind = kind
	return f, nil
}

// fillProtocol decodes one protocol record (spec §4.D "Per protocol"):
// tags 0..4 are name, tag, request index, response index, confirm.
func (s *Schema) fillProtocol(rec []byte) (*Protocol, error) {
	p := &Protocol{Tag: -1}
	entries, err := parseStructFields(rec)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		switch e.tag {
		case 0:
			if !e.hasData {
				return nil, newErr(ErrSchemaCorrupt, "protocol name must be a string")
			}
			p.Name = s.arena.str(e.data)
		case 1:
			p.Tag = e.value
		case 2:
			if e.value < 0 || e.value >= len(s.types) {
				return nil, newErr(ErrSchemaCorrupt, "protocol: request type index out of range")
			}
			p.Request = s.types[e.value]
		case 3:
			if e.value < 0 || e.value >= len(s.types) {
				return nil, newErr(ErrSchemaCorrupt, "protocol: response type index out of range")
			}
			p.Response = s.types[e.value]
		case 4:
			p.Confirm = e.value != 0
		default:
			return nil, newErr(ErrSchemaCorrupt, "protocol: unexpected tag")
		}
	}
	if p.Name == "" || p.Tag < 0 {
		return nil, newErr(ErrSchemaCorrupt, "protocol missing name/tag")
	}
	return p, nil
}

func pow10(n int) int {
	r := 1
	for i := 0; i < n; i++ {
		r *= 10
	}
	return r
}

// structField is one resolved (tag, value) pair produced by walking a
// struct record's header entries (spec §4.D "Field entry encoding"):
// either an inline small integer (hasData == false, value holds it) or
// a pointer to the next data block (hasData == true, data holds it).
type structField struct {
	tag     int
	value   int
	data    []byte
	hasData bool
}

// parseStructFields walks one struct record's header (u16 fn + fn u16
// entries) and data region, resolving the implicit tag cursor per entry
// (skip / inline / pointer, spec §4.D "Field entry encoding") and
// consuming data blocks from the data region in header order.
func parseStructFields(rec []byte) ([]structField, error) {
	if len(rec) < wire.SizeofU16 {
		return nil, newErr(ErrSchemaCorrupt, "struct record: truncated header")
	}
	fn := int(wire.Uint16(rec))
	headerEnd := wire.SizeofU16 + fn*wire.SizeofU16
	if headerEnd > len(rec) {
		return nil, newErr(ErrSchemaCorrupt, "struct record: header longer than record")
	}
	entries := rec[wire.SizeofU16:headerEnd]
	data := rec[headerEnd:]

	out := make([]structField, 0, fn)
	tag := -1
	for i := 0; i < fn; i++ {
		v := int(wire.Uint16(entries[i*wire.SizeofU16:]))
		tag++
		if v&1 == 1 {
			tag += v / 2
			continue
		}
		value := v/2 - 1
		if value < 0 {
			if len(data) < wire.SizeofU32 {
				return nil, newErr(ErrSchemaCorrupt, "struct record: truncated data block length")
			}
			sz := wire.Uint32(data)
			data = data[wire.SizeofU32:]
			if uint32(len(data)) < sz {
				return nil, newErr(ErrSchemaCorrupt, "struct record: truncated data block")
			}
			out = append(out, structField{tag: tag, data: data[:sz], hasData: true})
			data = data[sz:]
			continue
		}
		out = append(out, structField{tag: tag, value: value})
	}
	return out, nil
}

// readRecord strips one u32-length-prefixed record off the front of b.
func readRecord(b []byte) (content, rest []byte, err error) {
	if len(b) < wire.SizeofU32 {
		return nil, nil, newErr(ErrSchemaCorrupt, "record: truncated length")
	}
	sz := wire.Uint32(b)
	b = b[wire.SizeofU32:]
	if uint32(len(b)) < sz {
		return nil, nil, newErr(ErrSchemaCorrupt, "record: truncated body")
	}
	return b[:sz], b[sz:], nil
}

// splitRecords splits a data-pointer's payload into the sequence of
// length-prefixed records it contains (spec §4.D: "each element is
// itself a length-prefixed record").
func splitRecords(blob []byte) ([][]byte, error) {
	var out [][]byte
	for len(blob) > 0 {
		rec, rest, err := readRecord(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
		blob = rest
	}
	return out, nil
}
