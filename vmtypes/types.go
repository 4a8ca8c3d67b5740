// Package vmtypes holds the data model shared by every layer of the tally
// execution engine: the invocation descriptor, the structured result, and
// the small value types threaded between the cache, runtime context, driver,
// and orchestrator.
package vmtypes

// VmType selects the execution mode. Tally is currently the only value the
// engine accepts; VM_MODE (see package orchestrator) decides whether the
// post-driver max-result-bytes cap is enforced for a given invocation.
type VmType int

const (
	// Tally marks an invocation whose result is subject to the
	// orchestrator-level max_result_bytes cap when VM_MODE=="tally".
	Tally VmType = iota
)

// DefaultMaxMemoryPages is 160 pages of 64 KiB each, 10 MiB total, the
// default ceiling on a tally program's linear memory.
const DefaultMaxMemoryPages = 160

// DefaultStartFunc is the entrypoint looked up when VmCallData.StartFunc is
// empty.
const DefaultStartFunc = "_start"

// WasmSource identifies where the WASM bytes for an invocation come from.
// Exactly one field should be populated.
type WasmSource struct {
	// Bytes holds the WASM module inline.
	Bytes []byte
	// Path names a file on disk holding the WASM module.
	Path string
	// CacheID names a previously-stored cache entry by content id. It is
	// not resolvable on its own: a WasmSource whose only populated field is
	// CacheID is rejected, and when Bytes or Path is set CacheID is not
	// consulted.
	CacheID string
}

// GasLimitEnv is the envs key the driver reads the invocation's gas budget
// from; this is the one authoritative source for the budget, not a struct
// field, matching the C-ABI contract where gas_limit travels as part of the
// same envs block as every other DR_* setting.
const GasLimitEnv = "DR_TALLY_GAS_LIMIT"

// VmCallData is the invocation descriptor: one WASM program, its arguments
// and environment, and its resource caps. The gas budget is not a field
// here; it travels in Envs under GasLimitEnv, so a caller cannot supply one
// without the other.
type VmCallData struct {
	WasmSource     WasmSource
	Args           []string
	Envs           map[string]string
	StartFunc      string
	VmType         VmType
	MaxMemoryPages uint32
}

// StartFuncOrDefault returns StartFunc, defaulting to "_start".
func (c *VmCallData) StartFuncOrDefault() string {
	if c.StartFunc == "" {
		return DefaultStartFunc
	}
	return c.StartFunc
}

// MaxMemoryPagesOrDefault returns MaxMemoryPages, defaulting to 160.
func (c *VmCallData) MaxMemoryPagesOrDefault() uint32 {
	if c.MaxMemoryPages == 0 {
		return DefaultMaxMemoryPages
	}
	return c.MaxMemoryPages
}

// ArgsBytesLen is the sum of each argument's length plus one NUL terminator
// per argument, used by the startup gas cost formula.
func (c *VmCallData) ArgsBytesLen() uint64 {
	var n uint64
	for _, a := range c.Args {
		n += uint64(len(a)) + 1
	}
	return n
}

// EnvBytesLen is the sum of each key+value length plus two NUL terminators
// per pair.
func (c *VmCallData) EnvBytesLen() uint64 {
	var n uint64
	for k, v := range c.Envs {
		n += uint64(len(k)) + uint64(len(v)) + 2
	}
	return n
}

// ExitInfo carries the human-readable outcome message and the stable exit
// code taxonomy described by the engine's error handling design.
type ExitInfo struct {
	Message string
	Code    int32
}

// VmResult is the structured outcome of one invocation.
type VmResult struct {
	Stdout   []string
	Stderr   []string
	Result   []byte
	ExitInfo ExitInfo
	GasUsed  uint64
}

// Settings carries the caller-configurable resource caps and cache location,
// the Go analogue of the C-ABI "settings" struct.
type Settings struct {
	SedadHome      string
	MaxResultBytes int
	StdoutLimit    int
	StderrLimit    int
}
