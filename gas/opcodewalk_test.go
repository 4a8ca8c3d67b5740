package gas

import "testing"

// buildMinimalModule assembles a tiny valid WASM binary with one imported
// function and one defined function whose body exercises a handful of
// opcode classes, enough to exercise the section walker end to end.
func buildMinimalModule(t *testing.T) []byte {
	t.Helper()
	var b []byte
	b = append(b, []byte("\x00asm")...)
	b = append(b, []byte{0x01, 0x00, 0x00, 0x00}...) // version 1

	// Type section (id 1): one type, () -> ()
	typeSec := []byte{0x01, 0x60, 0x00, 0x00}
	b = appendSection(b, 1, typeSec)

	// Import section (id 2): one func import "env"."noop" : typeidx 0
	importSec := []byte{
		0x01,                   // 1 import
		0x03, 'e', 'n', 'v',    // module name
		0x04, 'n', 'o', 'o', 'p', // field name
		0x00, 0x00, // func import, typeidx 0
	}
	b = appendSection(b, 2, importSec)

	// Function section (id 3): one function, typeidx 0
	funcSec := []byte{0x01, 0x00}
	b = appendSection(b, 3, funcSec)

	// Code section (id 10): one body: no locals; call 0 inside a block;
	// return; end.
	body := []byte{
		0x00,       // 0 local groups
		0x02, 0x40, // block (empty blocktype)
		0x10, 0x00, // call 0
		0x0B, // end (of block)
		0x0F, // return
		0x0B, // end (of function)
	}
	codeSec := append([]byte{0x01}, encodeVaruint32(uint32(len(body)))...)
	codeSec = append(codeSec, body...)
	b = appendSection(b, 10, codeSec)

	return b
}

func appendSection(b []byte, id byte, body []byte) []byte {
	b = append(b, id)
	b = append(b, encodeVaruint32(uint32(len(body)))...)
	return append(b, body...)
}

func encodeVaruint32(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func TestWalkOpcodeCostsFindsDefinedFunction(t *testing.T) {
	mod := buildMinimalModule(t)
	table, err := WalkOpcodeCosts(mod)
	if err != nil {
		t.Fatalf("WalkOpcodeCosts: %v", err)
	}
	if table.ImportedFunc != 1 {
		t.Fatalf("ImportedFunc = %d, want 1", table.ImportedFunc)
	}
	cost, ok := table.Lookup(1) // index 0 is the import, 1 is the defined func
	if !ok {
		t.Fatalf("expected a cost entry for absolute func index 1")
	}
	// call (accounting) + return (accounting) = 2*PerOp*AccountingMultiplier,
	// plus block, end, end at the baseline PerOp each.
	want := 2*PerOp*AccountingMultiplier + 3*PerOp
	if cost.Total != want {
		t.Fatalf("cost.Total = %d, want %d", cost.Total, want)
	}
	if _, ok := table.Lookup(0); ok {
		t.Fatalf("imported function index 0 should have no static cost entry")
	}
}

func TestWalkOpcodeCostsRejectsBadMagic(t *testing.T) {
	if _, err := WalkOpcodeCosts([]byte("not wasm")); err == nil {
		t.Fatalf("expected an error for a non-wasm buffer")
	}
}

func TestWalkFunctionBodyCountsMemoryGrow(t *testing.T) {
	body := []byte{
		0x00,       // 0 locals
		0x41, 0x01, // i32.const 1
		0x40, 0x00, // memory.grow 0
		0x1A, // drop
		0x0B, // end
	}
	cost, err := walkFunctionBody(body)
	if err != nil {
		t.Fatalf("walkFunctionBody: %v", err)
	}
	if cost.MemoryGrowOps != 1 {
		t.Fatalf("MemoryGrowOps = %d, want 1", cost.MemoryGrowOps)
	}
	if cost.Total < MemoryGrowBase {
		t.Fatalf("Total = %d, want at least MemoryGrowBase", cost.Total)
	}
}
