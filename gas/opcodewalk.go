package gas

import "fmt"

// FunctionCost is the statically-computed gas cost of one function body,
// split into the plain per-op charge and the "accounting" (control-flow and
// call) charge, per the opcode table described in the engine's gas
// metering design: baseline PerOp per instruction, AccountingMultiplier
// applied to br/br_if/br_table/call/call_indirect/return.
type FunctionCost struct {
	// Total is the statically-known gas cost charged once when this
	// function is entered (see listener.go).
	Total uint64
	// MemoryGrowOps counts memory.grow instructions in the body; the fixed
	// MemoryGrowBase component for each is already folded into Total. The
	// variable pages*page_size*GAS_PER_BYTE component cannot be known
	// statically (the requested page count is a runtime operand) and is
	// instead charged reactively by the driver, which compares the
	// instance's memory size before and after the entrypoint call
	// completes — the host-side approximation sanctioned for engines that
	// cannot attach a compiler-level metering middleware.
	MemoryGrowOps int
}

// CostTable is the result of a static opcode-cost analysis: a per-function
// gas cost keyed by wazero's absolute function index (imports counted
// first, then module-defined functions, matching api.FunctionDefinition's
// indexing), plus the number of imported functions so callers can tell
// whether a given index has a statically-known cost at all.
type CostTable struct {
	Costs        map[uint32]FunctionCost
	ImportedFunc uint32
}

// Lookup returns the static cost for an absolute function index, or the
// zero FunctionCost if the index names an imported function (imports are
// charged individually by hostabi, not by this table).
func (t CostTable) Lookup(absoluteFuncIdx uint32) (FunctionCost, bool) {
	c, ok := t.Costs[absoluteFuncIdx]
	return c, ok
}

// WalkOpcodeCosts decodes the Import and Code sections of a WASM binary
// module and returns a per-function static cost table. A module that fails
// to parse (corrupt section framing) yields a zero CostTable and an error;
// callers should fall back to a conservative flat per-byte charge in that
// case rather than refuse to run the module, since wazero's own
// compilation step is the actual safety/validity gate.
func WalkOpcodeCosts(wasmBytes []byte) (CostTable, error) {
	r := &byteReader{b: wasmBytes}

	var magic [4]byte
	var version [4]byte
	if !r.readExact(magic[:]) || !r.readExact(version[:]) {
		return CostTable{}, fmt.Errorf("gas: truncated module header")
	}
	if string(magic[:]) != "\x00asm" {
		return CostTable{}, fmt.Errorf("gas: bad wasm magic")
	}

	var importedFuncCount uint32
	costs := map[uint32]FunctionCost{}

	for !r.eof() {
		id, ok := r.readByte()
		if !ok {
			break
		}
		size, ok := r.readVaruint32()
		if !ok {
			return CostTable{}, fmt.Errorf("gas: truncated section header")
		}
		body, ok := r.readN(int(size))
		if !ok {
			return CostTable{}, fmt.Errorf("gas: truncated section body")
		}

		switch id {
		case 2: // import section
			n, err := countFuncImports(body)
			if err != nil {
				return CostTable{}, err
			}
			importedFuncCount = n
		case 10: // code section
			sr := &byteReader{b: body}
			count, ok := sr.readVaruint32()
			if !ok {
				return CostTable{}, fmt.Errorf("gas: truncated code section count")
			}
			funcIdx := importedFuncCount
			for i := uint32(0); i < count; i++ {
				bodySize, ok := sr.readVaruint32()
				if !ok {
					return CostTable{}, fmt.Errorf("gas: truncated function body size")
				}
				fnBody, ok := sr.readN(int(bodySize))
				if !ok {
					return CostTable{}, fmt.Errorf("gas: truncated function body")
				}
				cost, err := walkFunctionBody(fnBody)
				if err != nil {
					// Best-effort fallback: a flat charge proportional to body
					// size keeps metering conservative without refusing to run
					// a module that wazero itself will separately validate.
					cost = FunctionCost{Total: PerOp * uint64(len(fnBody))}
				}
				costs[funcIdx] = cost
				funcIdx++
			}
		}
	}
	return CostTable{Costs: costs, ImportedFunc: importedFuncCount}, nil
}

// countFuncImports walks the Import section counting entries whose
// importdesc tags them as a function import (desc byte 0x00).
func countFuncImports(body []byte) (uint32, error) {
	r := &byteReader{b: body}
	n, ok := r.readVaruint32()
	if !ok {
		return 0, fmt.Errorf("gas: truncated import count")
	}
	var funcImports uint32
	for i := uint32(0); i < n; i++ {
		if !skipString(r) || !skipString(r) {
			return 0, fmt.Errorf("gas: truncated import names")
		}
		desc, ok := r.readByte()
		if !ok {
			return 0, fmt.Errorf("gas: truncated importdesc")
		}
		switch desc {
		case 0x00: // func: typeidx
			funcImports++
			if _, ok := r.readVaruint32(); !ok {
				return 0, fmt.Errorf("gas: truncated func import typeidx")
			}
		case 0x01: // table: tabletype (elemtype byte + limits)
			if _, ok := r.readByte(); !ok {
				return 0, fmt.Errorf("gas: truncated table import elemtype")
			}
			if !skipLimits(r) {
				return 0, fmt.Errorf("gas: truncated table import limits")
			}
		case 0x02: // mem: limits
			if !skipLimits(r) {
				return 0, fmt.Errorf("gas: truncated mem import limits")
			}
		case 0x03: // global: valtype + mutability byte
			if _, ok := r.readByte(); !ok {
				return 0, fmt.Errorf("gas: truncated global import valtype")
			}
			if _, ok := r.readByte(); !ok {
				return 0, fmt.Errorf("gas: truncated global import mutability")
			}
		default:
			return 0, fmt.Errorf("gas: unknown importdesc tag %#x", desc)
		}
	}
	return funcImports, nil
}

func skipString(r *byteReader) bool {
	n, ok := r.readVaruint32()
	if !ok {
		return false
	}
	_, ok = r.readN(int(n))
	return ok
}

func skipLimits(r *byteReader) bool {
	flags, ok := r.readByte()
	if !ok {
		return false
	}
	if _, ok := r.readVaruint32(); !ok { // min
		return false
	}
	if flags&0x01 != 0 {
		if _, ok := r.readVaruint32(); !ok { // max
			return false
		}
	}
	return true
}

func walkFunctionBody(body []byte) (FunctionCost, error) {
	r := &byteReader{b: body}

	// Local variable declarations: vec(count:varuint32, type:byte).
	localGroups, ok := r.readVaruint32()
	if !ok {
		return FunctionCost{}, fmt.Errorf("gas: truncated locals")
	}
	for i := uint32(0); i < localGroups; i++ {
		if _, ok := r.readVaruint32(); !ok {
			return FunctionCost{}, fmt.Errorf("gas: truncated local group count")
		}
		if _, ok := r.readByte(); !ok {
			return FunctionCost{}, fmt.Errorf("gas: truncated local group type")
		}
	}

	var cost FunctionCost
	for !r.eof() {
		op, ok := r.readByte()
		if !ok {
			break
		}
		accounting := false
		switch op {
		case 0x02, 0x03, 0x04: // block, loop, if: blocktype
			if _, ok := r.readVarint33(); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad blocktype")
			}
		case 0x0C, 0x0D: // br, br_if: labelidx
			accounting = true
			if _, ok := r.readVaruint32(); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad br labelidx")
			}
		case 0x0E: // br_table: vec(labelidx) + labelidx
			accounting = true
			n, ok := r.readVaruint32()
			if !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad br_table count")
			}
			for j := uint32(0); j < n; j++ {
				if _, ok := r.readVaruint32(); !ok {
					return FunctionCost{}, fmt.Errorf("gas: bad br_table entry")
				}
			}
			if _, ok := r.readVaruint32(); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad br_table default")
			}
		case 0x0F: // return
			accounting = true
		case 0x10: // call: funcidx
			accounting = true
			if _, ok := r.readVaruint32(); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad call funcidx")
			}
		case 0x11: // call_indirect: typeidx + reserved byte
			accounting = true
			if _, ok := r.readVaruint32(); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad call_indirect typeidx")
			}
			if _, ok := r.readByte(); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad call_indirect reserved byte")
			}
		case 0x20, 0x21, 0x22, 0x23, 0x24: // local/global get/set/tee
			if _, ok := r.readVaruint32(); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad local/global index")
			}
		case 0x28, 0x29, 0x2A, 0x2B, 0x2C, 0x2D, 0x2E, 0x2F,
			0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37,
			0x38, 0x39, 0x3A, 0x3B, 0x3C, 0x3D, 0x3E: // memory load/store: memarg
			if _, ok := r.readVaruint32(); !ok { // align
				return FunctionCost{}, fmt.Errorf("gas: bad memarg align")
			}
			if _, ok := r.readVaruint32(); !ok { // offset
				return FunctionCost{}, fmt.Errorf("gas: bad memarg offset")
			}
		case 0x3F: // memory.size: reserved byte
			if _, ok := r.readByte(); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad memory.size reserved byte")
			}
		case 0x40: // memory.grow: reserved byte
			cost.MemoryGrowOps++
			if _, ok := r.readByte(); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad memory.grow reserved byte")
			}
		case 0x41: // i32.const: varint32
			if _, ok := r.readVarint64(); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad i32.const")
			}
		case 0x42: // i64.const: varint64
			if _, ok := r.readVarint64(); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad i64.const")
			}
		case 0x43: // f32.const: 4 bytes
			if _, ok := r.readN(4); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad f32.const")
			}
		case 0x44: // f64.const: 8 bytes
			if _, ok := r.readN(8); !ok {
				return FunctionCost{}, fmt.Errorf("gas: bad f64.const")
			}
		default:
			// All other MVP opcodes (unreachable, nop, else, end, drop,
			// select, numeric/comparison/conversion ops) take no immediate.
		}

		if accounting {
			cost.Total += PerOp * AccountingMultiplier
		} else {
			cost.Total += PerOp
		}
	}
	cost.Total += MemoryGrowBase * uint64(cost.MemoryGrowOps)
	return cost, nil
}

// byteReader is a minimal forward-only cursor over a WASM binary buffer.
type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) eof() bool { return r.pos >= len(r.b) }

func (r *byteReader) readByte() (byte, bool) {
	if r.pos >= len(r.b) {
		return 0, false
	}
	v := r.b[r.pos]
	r.pos++
	return v, true
}

func (r *byteReader) readExact(dst []byte) bool {
	if r.pos+len(dst) > len(r.b) {
		return false
	}
	copy(dst, r.b[r.pos:])
	r.pos += len(dst)
	return true
}

func (r *byteReader) readN(n int) ([]byte, bool) {
	if n < 0 || r.pos+n > len(r.b) {
		return nil, false
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, true
}

// readVaruint32 decodes an unsigned LEB128 value up to 32 bits.
func (r *byteReader) readVaruint32() (uint32, bool) {
	var result uint32
	var shift uint
	for {
		b, ok := r.readByte()
		if !ok {
			return 0, false
		}
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, true
		}
		shift += 7
		if shift >= 35 {
			return 0, false
		}
	}
}

// readVarint64 decodes a signed LEB128 value up to 64 bits.
func (r *byteReader) readVarint64() (int64, bool) {
	var result int64
	var shift uint
	var b byte
	var ok bool
	for {
		b, ok = r.readByte()
		if !ok {
			return 0, false
		}
		result |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, true
		}
		if shift >= 70 {
			return 0, false
		}
	}
}

// readVarint33 decodes the block-type immediate, a signed LEB128 value used
// either as -0x40 (empty), a negative value type encoding, or (in the
// multi-value proposal) a non-negative type index. We only need to consume
// the correct number of bytes here, not interpret the value.
func (r *byteReader) readVarint33() (int64, bool) {
	return r.readVarint64()
}
