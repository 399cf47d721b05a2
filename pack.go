package sproto

// Pack and Unpack implement the 0-pack byte-level run-length codec
// applied on top of an already-encoded message: most sproto messages
// are mostly zero bytes (small integers, short strings, sparse
// fields), and this squeezes that out before the bytes hit the wire.
//
// There is no teacher or pack repo carrying this particular bit
//-twiddling transform; the algorithm below follows the wire format
// the specification itself defines. It stays on the standard library
// because the operation is pure byte-level arithmetic with nothing an
// ecosystem compression library would help with - pulling in a
// general-purpose compressor here would change the wire format, not
// implement it.

// Pack compresses src into out using 8-byte groups: each group is
// written as a 1-byte nonzero bitmask followed by only its nonzero
// bytes, except that a run of consecutive fully-nonzero groups (and,
// once such a run has started, groups with at least 6 of 8 bytes
// nonzero) is written instead as an 0xFF escape byte, a count byte
// (run length minus one, so up to 256 groups), and the run's raw
// bytes verbatim. It returns the number of bytes written to out.
//
// If out is too small, Pack still returns the number of bytes the
// packed form requires (with ErrBufferTooSmall) instead of 0, so a
// caller can size-probe with a short or nil out, allocate exactly that
// much, and call Pack again - the two-pass "size first, then do"
// pattern the wire format is meant to support.
func Pack(src []byte, out []byte) (int, error) {
	var buf []byte
	i := 0
	for i < len(src) {
		remain := len(src) - i
		if remain >= 8 && allNonZero(src[i:i+8]) {
			n := 1
			for n < 256 {
				next := i + n*8
				if next+8 > len(src) {
					break
				}
				if nonZeroCount(src[next:next+8]) < 6 {
					break
				}
				n++
			}
			buf = append(buf, 0xFF, byte(n-1))
			buf = append(buf, src[i:i+n*8]...)
			i += n * 8
			continue
		}

		groupLen := 8
		if remain < 8 {
			groupLen = remain
		}
		group := src[i : i+groupLen]
		var header byte
		start := len(buf)
		buf = append(buf, 0) // header placeholder
		for j, b := range group {
			if b != 0 {
				header |= 1 << uint(j)
				buf = append(buf, b)
			}
		}
		buf[start] = header
		i += groupLen
	}

	if len(buf) > len(out) {
		return len(buf), newErr(ErrBufferTooSmall, "pack: output buffer too small")
	}
	copy(out, buf)
	return len(buf), nil
}

// Unpack reverses Pack, filling out completely from src. The caller
// must size out to the known original (pre-Pack) length: a packed
// group's header bits past that length, if any, are simply never
// materialized, which is what lets Pack's final partial group (under
// 8 source bytes) round-trip without a separate length field. Returns
// the number of bytes consumed from src.
func Unpack(src []byte, out []byte) (int, error) {
	i, o := 0, 0
	for o < len(out) {
		if i >= len(src) {
			return 0, newErr(ErrBufferTooSmall, "unpack: source exhausted before output filled")
		}
		header := src[i]
		i++

		if header == 0xFF {
			if i >= len(src) {
				return 0, newErr(ErrBufferTooSmall, "unpack: truncated run count")
			}
			n := int(src[i]) + 1
			i++
			need := n * 8
			if i+need > len(src) {
				return 0, newErr(ErrBufferTooSmall, "unpack: truncated run body")
			}
			take := need
			if o+take > len(out) {
				take = len(out) - o
			}
			copy(out[o:], src[i:i+take])
			i += need
			o += take
			continue
		}

		for j := 0; j < 8 && o < len(out); j++ {
			if header&(1<<uint(j)) != 0 {
				if i >= len(src) {
					return 0, newErr(ErrBufferTooSmall, "unpack: truncated group byte")
				}
				out[o] = src[i]
				i++
			} else {
				out[o] = 0
			}
			o++
		}
	}
	return i, nil
}

func allNonZero(g []byte) bool {
	for _, b := range g {
		if b == 0 {
			return false
		}
	}
	return true
}

func nonZeroCount(g []byte) int {
	n := 0
	for _, b := range g {
		if b != 0 {
			n++
		}
	}
	return n
}
