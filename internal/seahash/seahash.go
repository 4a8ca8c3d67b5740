// Package seahash implements the SeaHash non-cryptographic hash algorithm,
// used by the cache package to derive deterministic, version-stable content
// ids for compiled WASM modules. No SeaHash implementation exists anywhere in
// the example corpus this module was built against, so this is a from-scratch
// port of the public SeaHash design (four-lane multiplicative diffusion,
// fully reproducible across runs and platforms): a fixed-point hash function
// with no architecture-dependent behavior, no random seeding, and no
// dependency on hash/maphash-style per-process randomization.
package seahash

import "encoding/binary"

const (
	seed1 = 0x16f11fe89b0d677c
	seed2 = 0xb480a793d8e6c86c
	seed3 = 0x6fe2e5aaf078ebc9
	seed4 = 0x14f994a4c5259381

	diffuseConst = 0x6eed0e9da4d94a4f
)

// diffuse applies SeaHash's avalanche mixing step: two wrapping
// multiplications by a fixed odd constant with a data-dependent
// self-shift-xor in between.
func diffuse(x uint64) uint64 {
	x *= diffuseConst
	a := x >> 32
	b := x >> 60
	x ^= a >> b
	x *= diffuseConst
	return x
}

// state holds the four accumulator lanes mixed into as the input is
// consumed eight bytes at a time.
type state struct {
	a, b, c, d uint64
}

func newState() state {
	return state{a: seed1, b: seed2, c: seed3, d: seed4}
}

// writeLane folds v into lane and diffuses it, SeaHash-style.
func writeLane(lane, v uint64) uint64 {
	return diffuse(lane ^ v)
}

// Sum64 computes the 64-bit SeaHash digest of data.
func Sum64(data []byte) uint64 {
	st := newState()

	n := len(data)
	i := 0
	for ; i+32 <= n; i += 32 {
		st.a = writeLane(st.a, binary.LittleEndian.Uint64(data[i:]))
		st.b = writeLane(st.b, binary.LittleEndian.Uint64(data[i+8:]))
		st.c = writeLane(st.c, binary.LittleEndian.Uint64(data[i+16:]))
		st.d = writeLane(st.d, binary.LittleEndian.Uint64(data[i+24:]))
	}

	// Remaining whole 8-byte words, rotating across the four lanes.
	lane := 0
	for ; i+8 <= n; i += 8 {
		v := binary.LittleEndian.Uint64(data[i:])
		switch lane % 4 {
		case 0:
			st.a = writeLane(st.a, v)
		case 1:
			st.b = writeLane(st.b, v)
		case 2:
			st.c = writeLane(st.c, v)
		case 3:
			st.d = writeLane(st.d, v)
		}
		lane++
	}

	// Final partial word (1-7 trailing bytes), zero-padded and folded into
	// the next lane in rotation. Trailing zero bytes cannot collide with a
	// shorter input because the total length is mixed in below.
	if i < n {
		var buf [8]byte
		copy(buf[:], data[i:])
		v := binary.LittleEndian.Uint64(buf[:])
		switch lane % 4 {
		case 0:
			st.a = writeLane(st.a, v)
		case 1:
			st.b = writeLane(st.b, v)
		case 2:
			st.c = writeLane(st.c, v)
		case 3:
			st.d = writeLane(st.d, v)
		}
	}

	result := st.a ^ st.b ^ st.c ^ st.d
	return diffuse(result ^ uint64(n))
}
