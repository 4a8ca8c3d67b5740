// Package gas implements the engine's gas accounting: the opcode cost model
// applied to WASM bytecode at compile time (approximated here via static
// per-function analysis plus a call-entry host listener, since wazero does
// not expose a public compiler metering middleware — see Meter and
// opcodewalk.go) and the explicit per-host-call charge formulas defined by
// the engine's host import surface.
package gas

// Tera is 10^12 gas units, the unit most constants below are expressed in.
const Tera uint64 = 1_000_000_000_000

// Opcode metering constants, mirroring probe-lang/lang/vm/vm.go's useGas
// cost-table pattern (a baseline trivial cost with a multiplier for
// control-flow/"accounting" instructions) generalized to the WASM
// instruction set.
const (
	// PerOp is the baseline gas charge for any instruction that is not an
	// "accounting" instruction.
	PerOp uint64 = 1

	// AccountingMultiplier is applied to PerOp for control-flow and call
	// instructions (br, br_if, br_table, call, call_indirect, return).
	AccountingMultiplier uint64 = 24

	// MemoryGrowBase is the fixed component of the memory.grow charge.
	MemoryGrowBase uint64 = Tera

	// PageSize is the WASM linear memory page size in bytes (64 KiB).
	PageSize uint64 = 64 * 1024
)

// Host-call gas constants, taken verbatim from the engine's charge-formula
// contract.
const (
	Startup                 uint64 = 5 * Tera
	PerByte                 uint64 = 10_000
	PerByteExecutionResult  uint64 = 10_000_000
	HTTPFetchBase           uint64 = 5 * Tera
	ProxyHTTPFetchBase      uint64 = 7 * Tera
	Secp256k1Base           uint64 = Tera
	Keccak256Base           uint64 = Tera
	BN254VerifyBase         uint64 = Tera
	WasiArgsGetBase         uint64 = Tera
	WasiArgsSizesGetBase    uint64 = Tera
	WasiEnvironGetBase      uint64 = Tera
	WasiEnvironSizesGetBase uint64 = Tera
	WasiFdWriteBase         uint64 = Tera
)

// MemoryGrowCost computes the gas charge for growing linear memory by
// pages, per GAS_MEMORY_GROW_BASE + (pages * page_size * GAS_PER_BYTE).
func MemoryGrowCost(pages uint64) uint64 {
	return MemoryGrowBase + pages*PageSize*PerByte
}

// ExecutionResultCost computes the charge for execution_result(n).
func ExecutionResultCost(n uint64) uint64 { return PerByteExecutionResult * n }

// HTTPFetchRequestCost computes the charge for http_fetch_request(n) /
// proxy_http_fetch_request(n); base differs by caller.
func HTTPFetchRequestCost(base, n uint64) uint64 { return base + PerByte*n }

// HTTPFetchResponseCost computes the charge for http_fetch_response(n).
func HTTPFetchResponseCost(n uint64) uint64 { return PerByte * n }

// BN254VerifyCost computes the charge for bn254_verify(n).
func BN254VerifyCost(n uint64) uint64 { return BN254VerifyBase + PerByte*n }

// Keccak256Cost computes the charge for keccak256(n).
func Keccak256Cost(n uint64) uint64 { return Keccak256Base + PerByte*n }

// Secp256k1VerifyCost computes the charge for secp256k1_verify(n), n being
// msg_len+sig_len+pk_len. The caller is responsible for checking overflow
// of the sum before calling this.
func Secp256k1VerifyCost(n uint64) uint64 { return Secp256k1Base + Keccak256Base + PerByte*n }

// MeteredWasiCost computes the charge for an allowed WASI call: a fixed
// base plus a per-byte/per-item charge over n (the relevant argv/env byte
// length or iovec count).
func MeteredWasiCost(base, n uint64) uint64 { return base + PerByte*n }
