// Package runtimectx builds the per-invocation wazero runtime: a headless
// engine tuned to the invocation's memory limit, the compiled module
// (obtained from the cache store or freshly compiled), and the instantiated
// module wired to the seda_v1 and WASI host surfaces.
package runtimectx

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/probechain/tallyvm/cache"
	"github.com/probechain/tallyvm/gas"
	"github.com/probechain/tallyvm/hostabi"
	"github.com/probechain/tallyvm/vmerrors"
	"github.com/probechain/tallyvm/vmtypes"
)

// Context holds everything the driver needs to run one invocation's
// entrypoint: the instantiated module, the memory-backed I/O state, and the
// gas meter that both the function-call-entry listener and the host import
// surface charge against.
type Context struct {
	Runtime  wazero.Runtime
	Instance api.Module
	VM       *hostabi.VmContext
	Wasi     *hostabi.WasiEnv
	Meter    *gas.Meter
	Memory   api.Memory
}

// New builds the runtime for one invocation. It implements the runtime
// context component's new(sedad_home, call_data) sequence: a headless
// engine with memory tunables, compile-or-load through store, the seda_v1 +
// WASI import surface, and instantiation of the module under the chosen
// entrypoint's gas meter.
//
// Compilation is serialized by compileMu, the orchestrator's process-wide
// mutex (per the runtime context component's thread-safety note); it is
// held only around the cache Load/Store pair and released before the
// program runs. compileMu may be nil (e.g. in tests exercising a single
// invocation), in which case no serialization is applied.
func New(ctx context.Context, store *cache.Store, callData *vmtypes.VmCallData, meter *gas.Meter, compileMu *sync.Mutex) (*Context, error) {
	wasmBytes, err := resolveWasmBytes(callData)
	if err != nil {
		return nil, &vmerrors.HostImportAssemblyFailed{Cause: err}
	}

	rtConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(callData.MaxMemoryPagesOrDefault()).
		WithCompilationCache(store.CompilationCache()).
		WithCloseOnContextDone(true)

	costTable, walkErr := gas.WalkOpcodeCosts(wasmBytes)
	if walkErr != nil {
		// A module whose code section this walker cannot parse still gets
		// compiled and run; it simply goes unmetered at opcode granularity,
		// falling back to the host-call charges alone. wazero's own
		// compilation is the authoritative validity gate, not this walker.
		costTable = gas.CostTable{}
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	ctx = experimental.WithFunctionListenerFactory(ctx, gas.NewListenerFactory(costTable, meter))

	if compileMu != nil {
		compileMu.Lock()
	}
	id := cache.ContentID(wasmBytes)
	compiled, hit, err := store.Load(ctx, rt, id, wasmBytes)
	if err == nil && !hit {
		compiled, err = store.Store(ctx, rt, id, wasmBytes)
	}
	if compileMu != nil {
		compileMu.Unlock()
	}
	if err != nil {
		_ = rt.Close(ctx)
		return nil, &vmerrors.InstanceConstructFailed{Cause: err}
	}

	vctx := &hostabi.VmContext{}
	wasiEnv := hostabi.NewWasiEnv(callData.Args, callData.Envs)

	if err := hostabi.BuildSedaV1(ctx, rt, vctx, meter); err != nil {
		_ = rt.Close(ctx)
		return nil, &vmerrors.HostImportAssemblyFailed{Cause: err}
	}
	if err := hostabi.BuildWasiSubset(ctx, rt, wasiEnv, meter); err != nil {
		_ = rt.Close(ctx)
		return nil, &vmerrors.WasiInitFailed{Cause: err}
	}

	modConfig := wazero.NewModuleConfig().
		WithName(fmt.Sprintf("tally-%s", id)).
		WithStartFunctions() // suppress wazero's implicit _start auto-invoke; the driver calls the entrypoint explicitly.

	instance, err := rt.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, &vmerrors.InstanceConstructFailed{Cause: err}
	}

	mem := instance.Memory()
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, &vmerrors.MemoryExportMissing{}
	}

	return &Context{
		Runtime:  rt,
		Instance: instance,
		VM:       vctx,
		Wasi:     wasiEnv,
		Meter:    meter,
		Memory:   mem,
	}, nil
}

// Close releases the runtime (and, transitively, the instantiated module).
// The underlying cache.Store and its compilation cache directory are owned
// by the caller and outlive this invocation.
func (c *Context) Close(ctx context.Context) error {
	return c.Runtime.Close(ctx)
}

// resolveWasmBytes always needs the module's source bytes, even on a cache
// hit: wazero's directory-backed CompilationCache has no lookup-by-key API,
// only a transparent "CompileModule is a no-op on disk if already present"
// behavior, so a compile call (and therefore the original bytes) is
// unavoidable regardless of cache state. A WasmSource naming only a CacheID
// with neither Bytes nor Path is therefore unresolvable on its own; callers
// that only retained a cache id must also keep the path or bytes it was
// computed from.
func resolveWasmBytes(callData *vmtypes.VmCallData) ([]byte, error) {
	src := callData.WasmSource
	if len(src.Bytes) > 0 {
		return src.Bytes, nil
	}
	if src.Path != "" {
		b, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("runtimectx: read wasm file %s: %w", src.Path, err)
		}
		return b, nil
	}
	if src.CacheID != "" {
		return nil, fmt.Errorf("runtimectx: wasm_source names cache id %q but no bytes or path; wazero's compilation cache cannot be looked up by id alone", src.CacheID)
	}
	return nil, fmt.Errorf("runtimectx: wasm_source has neither inline bytes, a path, nor a cache id")
}
