// Package vmerrors declares the typed error taxonomy for the tally execution
// engine. Every internal failure is a distinct Go type carrying its own
// ExitCode, following the sentinel-error style of probe-lang/lang/vm's
// ErrOutOfGas/ErrStackUnderflow family rather than ad hoc string matching.
package vmerrors

import "fmt"

// Code is a stable, externally-observable exit code.
type Code int32

const (
	CodeOK                       Code = 0
	CodeProgramExitNotOK         Code = 1
	CodeWasiInitFailed           Code = 2
	CodeHostImportAssemblyFailed Code = 3
	CodeInstanceConstructFailed  Code = 4
	CodeEntrypointMissing        Code = 5
	CodeStdoutReadFailed         Code = 6
	CodeStderrReadFailed         Code = 7
	CodePipeNotUTF8              Code = 8
	CodeExecutionError           Code = 9
	CodeMemoryExportMissing      Code = 10
	CodeResultSizeExceeded       Code = 13
	CodeGasStartupCostTooHigh    Code = 14
	CodeHostPanic                Code = 42
	CodeOutOfGas                 Code = 250
	CodeRuntimeError             Code = 252
	CodePolyfilled               Code = 251
	CodeTallyResultTooLarge      Code = 255
)

// VmError is the interface every typed error in this package implements.
type VmError interface {
	error
	ExitCode() Code
}

// GasStartupCostTooHigh means the computed startup_cost exceeded gas_limit
// before any instantiation was attempted.
type GasStartupCostTooHigh struct {
	StartupCost uint64
	GasLimit    uint64
}

func (e *GasStartupCostTooHigh) Error() string {
	return fmt.Sprintf("VM Error: startup cost %d exceeds gas limit %d", e.StartupCost, e.GasLimit)
}
func (e *GasStartupCostTooHigh) ExitCode() Code { return CodeGasStartupCostTooHigh }

// GasLimitRequired means the invocation's envs lacked DR_TALLY_GAS_LIMIT.
type GasLimitRequired struct{}

func (e *GasLimitRequired) Error() string {
	return "VM Error: DR_TALLY_GAS_LIMIT is required"
}
func (e *GasLimitRequired) ExitCode() Code { return CodeGasStartupCostTooHigh }

// GasLimitInvalid means envs carried DR_TALLY_GAS_LIMIT but its value did
// not parse as a decimal u64.
type GasLimitInvalid struct{ Value string }

func (e *GasLimitInvalid) Error() string {
	return fmt.Sprintf("VM Error: DR_TALLY_GAS_LIMIT %q is not a valid u64", e.Value)
}
func (e *GasLimitInvalid) ExitCode() Code { return CodeGasStartupCostTooHigh }

// OutOfGas means gas was exhausted, either during opcode execution or a
// host-call charge.
type OutOfGas struct {
	Limit uint64
}

func (e *OutOfGas) Error() string { return "Runtime error: Out of gas" }
func (e *OutOfGas) ExitCode() Code { return CodeOutOfGas }

// WasiInitFailed means the curated WASI environment could not be assembled.
type WasiInitFailed struct{ Cause error }

func (e *WasiInitFailed) Error() string { return fmt.Sprintf("WASI init failed: %v", e.Cause) }
func (e *WasiInitFailed) Unwrap() error { return e.Cause }
func (e *WasiInitFailed) ExitCode() Code { return CodeWasiInitFailed }

// HostImportAssemblyFailed means building the seda_v1 + WASI import set
// failed before instantiation.
type HostImportAssemblyFailed struct{ Cause error }

func (e *HostImportAssemblyFailed) Error() string {
	return fmt.Sprintf("host import assembly failed: %v", e.Cause)
}
func (e *HostImportAssemblyFailed) Unwrap() error { return e.Cause }
func (e *HostImportAssemblyFailed) ExitCode() Code { return CodeHostImportAssemblyFailed }

// InstanceConstructFailed means wazero.InstantiateModule failed, e.g. the
// module declared more memory than max_memory_pages allows.
type InstanceConstructFailed struct{ Cause error }

func (e *InstanceConstructFailed) Error() string {
	return fmt.Sprintf("instance construction failed: %v", e.Cause)
}
func (e *InstanceConstructFailed) Unwrap() error { return e.Cause }
func (e *InstanceConstructFailed) ExitCode() Code { return CodeInstanceConstructFailed }

// EntrypointMissing means the chosen start function or the exported memory
// was not found on the instantiated module.
type EntrypointMissing struct{ Name string }

func (e *EntrypointMissing) Error() string {
	return fmt.Sprintf("entrypoint or memory export missing: %s", e.Name)
}
func (e *EntrypointMissing) ExitCode() Code { return CodeEntrypointMissing }

// MemoryExportMissing means the module does not export linear memory.
type MemoryExportMissing struct{}

func (e *MemoryExportMissing) Error() string { return "memory export not found" }
func (e *MemoryExportMissing) ExitCode() Code { return CodeMemoryExportMissing }

// PipeReadFailed means draining stdout or stderr failed at the OS/pipe
// level (not a UTF-8 decode failure, which is PipeNotUTF8).
type PipeReadFailed struct {
	Stderr bool
	Cause  error
}

func (e *PipeReadFailed) Error() string {
	which := "stdout"
	if e.Stderr {
		which = "stderr"
	}
	return fmt.Sprintf("%s read failed: %v", which, e.Cause)
}
func (e *PipeReadFailed) Unwrap() error { return e.Cause }
func (e *PipeReadFailed) ExitCode() Code {
	if e.Stderr {
		return CodeStderrReadFailed
	}
	return CodeStdoutReadFailed
}

// PipeNotUTF8 means a captured pipe's bytes did not decode as UTF-8.
type PipeNotUTF8 struct{ Stderr bool }

func (e *PipeNotUTF8) Error() string {
	which := "stdout"
	if e.Stderr {
		which = "stderr"
	}
	return fmt.Sprintf("%s output is not valid UTF-8", which)
}
func (e *PipeNotUTF8) ExitCode() Code { return CodePipeNotUTF8 }

// ResultSizeExceeded means the per-run internal result buffer exceeded the
// fixed 96000-byte cap enforced inside the driver (distinct from the
// caller-tunable max_result_bytes cap enforced by the orchestrator).
type ResultSizeExceeded struct {
	Limit int
}

func (e *ResultSizeExceeded) Error() string {
	return fmt.Sprintf("internal result size exceeded %d bytes", e.Limit)
}
func (e *ResultSizeExceeded) ExitCode() Code { return CodeResultSizeExceeded }

// TallyResultTooLarge means the orchestrator's caller-tunable max_result_bytes
// cap was exceeded in tally mode.
type TallyResultTooLarge struct {
	MaxResultBytes int
}

func (e *TallyResultTooLarge) Error() string {
	return fmt.Sprintf("Result larger than %dbytes.", e.MaxResultBytes)
}
func (e *TallyResultTooLarge) ExitCode() Code { return CodeTallyResultTooLarge }

// HostPanic means a panic was caught at the orchestrator boundary while
// running the driver.
type HostPanic struct{ Recovered interface{} }

func (e *HostPanic) Error() string {
	return "The tally VM panicked. Please consider opening an issue."
}
func (e *HostPanic) ExitCode() Code { return CodeHostPanic }

// Polyfilled means the program invoked a data-request-only import that is
// denied in the current mode.
type Polyfilled struct{ Name string }

func (e *Polyfilled) Error() string { return fmt.Sprintf("%s is not allowed in tally", e.Name) }
func (e *Polyfilled) ExitCode() Code { return CodePolyfilled }

// RuntimeError wraps a host-runtime (trap-like) error surfaced from WASM
// execution, preferring the typed error kind over the raw trap string.
type RuntimeError struct{ Kind string }

func (e *RuntimeError) Error() string { return fmt.Sprintf("Runtime error: %s", e.Kind) }
func (e *RuntimeError) ExitCode() Code { return CodeRuntimeError }

// ExecutionError is a generic, non-runtime-typed execution failure.
type ExecutionError struct{ Cause error }

func (e *ExecutionError) Error() string { return e.Cause.Error() }
func (e *ExecutionError) Unwrap() error { return e.Cause }
func (e *ExecutionError) ExitCode() Code { return CodeExecutionError }
