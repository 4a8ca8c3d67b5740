package seahash

import "testing"

func TestSum64Deterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	h1 := Sum64(data)
	h2 := Sum64(data)
	if h1 != h2 {
		t.Fatalf("Sum64 not deterministic: %d != %d", h1, h2)
	}
}

func TestSum64DistinguishesInputs(t *testing.T) {
	a := Sum64([]byte("alpha"))
	b := Sum64([]byte("beta"))
	if a == b {
		t.Fatalf("distinct inputs hashed to the same value: %d", a)
	}
}

func TestSum64EmptyInput(t *testing.T) {
	h := Sum64(nil)
	if h != Sum64([]byte{}) {
		t.Fatalf("nil and empty slice hashed differently")
	}
}

func TestSum64LengthSensitive(t *testing.T) {
	// Trailing zero bytes must not collide with a shorter input.
	a := Sum64([]byte{0x01})
	b := Sum64([]byte{0x01, 0x00})
	if a == b {
		t.Fatalf("length-extension collision: %d", a)
	}
}

func TestSum64AcrossBlockBoundary(t *testing.T) {
	short := make([]byte, 31)
	long := make([]byte, 32)
	for i := range short {
		short[i] = byte(i)
	}
	copy(long, short)
	long[31] = 0xFF
	if Sum64(short) == Sum64(long) {
		t.Fatalf("block-boundary inputs collided")
	}
}
