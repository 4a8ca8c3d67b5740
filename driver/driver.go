// Package driver implements the execution driver: the sequence that turns
// a compiled, instantiated module into a VmResult — startup gas check,
// entrypoint execution on an isolated worker, panic containment, result and
// output capture, and the exit-code taxonomy.
package driver

import (
	"context"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/sys"

	"github.com/probechain/tallyvm/cache"
	"github.com/probechain/tallyvm/gas"
	"github.com/probechain/tallyvm/runtimectx"
	"github.com/probechain/tallyvm/vmerrors"
	"github.com/probechain/tallyvm/vmtypes"
)

// Panic is returned by Run when the entrypoint goroutine recovered a
// panic. Go's recover() only works within the panicking goroutine itself,
// so the worker goroutine spawned by Run is the one that actually calls
// recover(). Run returns the Panic alongside a VmResult already carrying
// exit code 42 and gas_used 0; the orchestrator, on seeing a *Panic,
// replaces that result with its own vmerrors.HostPanic result.
type Panic struct {
	Recovered interface{}
}

func (p *Panic) Error() string { return "tally vm: recovered panic in entrypoint worker" }

// Run executes one invocation end to end and always returns a populated
// VmResult; the error return is non-nil for every failure other than a
// WASI proc_exit (gas limit missing or invalid, startup cost too high,
// instantiation failures, a recovered panic, out of gas, runtime errors,
// the internal result cap, non-UTF-8 pipe output). ExitInfo/GasUsed are
// filled in either way.
func Run(ctx context.Context, store *cache.Store, callData *vmtypes.VmCallData, settings vmtypes.Settings, compileMu *sync.Mutex) (vmtypes.VmResult, error) {
	gasLimit, err := parseGasLimit(callData)
	if err != nil {
		return vmtypes.VmResult{ExitInfo: vmtypes.ExitInfo{
			Message: err.Error(),
			Code:    int32(vmerrors.CodeGasStartupCostTooHigh),
		}}, err
	}

	startupCost := gas.Startup + gas.PerByte*callData.ArgsBytesLen()
	if startupCost > gasLimit {
		return vmtypes.VmResult{
			GasUsed: gasLimit,
			ExitInfo: vmtypes.ExitInfo{
				Message: "VM Error: startup cost exceeds gas limit",
				Code:    int32(vmerrors.CodeGasStartupCostTooHigh),
			},
		}, &vmerrors.GasStartupCostTooHigh{StartupCost: startupCost, GasLimit: gasLimit}
	}

	// ctx is canceled the moment the meter observes exhaustion (see
	// gas.NewMeter's cancel callback), and runtimectx configures wazero with
	// WithCloseOnContextDone(true); together these bound a running
	// program's wall time to its gas budget instead of letting an
	// already-exhausted invocation keep executing until it traps or exits
	// on its own.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	meter := gas.NewMeter(gasLimit-startupCost, true, cancel)

	rctx, err := runtimectx.New(ctx, store, callData, meter, compileMu)
	if err != nil {
		var vmErr vmerrors.VmError
		code := vmerrors.CodeInstanceConstructFailed
		if asVmError(err, &vmErr) {
			code = vmErr.ExitCode()
		}
		// WASI init and host import assembly fail before anything is
		// instantiated, so they report no gas used.
		used := startupCost
		if code == vmerrors.CodeWasiInitFailed || code == vmerrors.CodeHostImportAssemblyFailed {
			used = 0
		}
		return vmtypes.VmResult{
			GasUsed:  used,
			ExitInfo: vmtypes.ExitInfo{Message: err.Error(), Code: int32(code)},
		}, err
	}
	defer rctx.Close(ctx)

	startFunc := callData.StartFuncOrDefault()
	fn := rctx.Instance.ExportedFunction(startFunc)
	if fn == nil {
		return vmtypes.VmResult{
			GasUsed: startupCost,
			ExitInfo: vmtypes.ExitInfo{
				Message: "entrypoint not found: " + startFunc,
				Code:    int32(vmerrors.CodeEntrypointMissing),
			},
		}, &vmerrors.EntrypointMissing{Name: startFunc}
	}

	memBefore := rctx.Memory.Size()

	type runOutcome struct {
		err   error
		panic *Panic
	}
	done := make(chan runOutcome, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer func() {
			if r := recover(); r != nil {
				done <- runOutcome{panic: &Panic{Recovered: r}}
			}
		}()
		_, callErr := fn.Call(ctx)
		done <- runOutcome{err: callErr}
	}()

	outcome := <-done

	memAfter := rctx.Memory.Size()
	if memAfter > memBefore {
		_ = meter.Charge(gas.PerByte * uint64(memAfter-memBefore))
	}

	gasUsed := finalizeGas(meter, gasLimit, startupCost)

	if outcome.panic != nil {
		return vmtypes.VmResult{GasUsed: 0, ExitInfo: vmtypes.ExitInfo{
			Message: "The tally VM panicked. Please consider opening an issue.",
			Code:    int32(vmerrors.CodeHostPanic),
		}}, outcome.panic
	}

	// Exhaustion is checked before the call's own error: canceling ctx makes
	// wazero abort the running call (WithCloseOnContextDone), so an
	// out-of-gas program surfaces here as some wazero-internal sys.ExitError
	// rather than as meter.Charge's own *vmerrors.OutOfGas. The meter, not
	// the shape of that error, is the source of truth for why the call
	// ended.
	if meter.Exhausted() {
		return vmtypes.VmResult{GasUsed: gasLimit, ExitInfo: vmtypes.ExitInfo{
			Message: "Runtime error: Out of gas",
			Code:    int32(vmerrors.CodeOutOfGas),
		}}, &vmerrors.OutOfGas{Limit: gasLimit}
	}

	if outcome.err != nil {
		return classifyRuntimeError(outcome.err, gasUsed)
	}

	var rbuf resultBuffer
	if len(rctx.VM.Result) > 0 {
		if err := rbuf.Set(rctx.VM.Result); err != nil {
			return vmtypes.VmResult{GasUsed: gasUsed, ExitInfo: vmtypes.ExitInfo{
				Message: err.Error(),
				Code:    int32(vmerrors.CodeResultSizeExceeded),
			}}, err
		}
	}

	stdout, err := drainUTF8(rctx.Wasi.Stdout.Bytes(), settings.StdoutLimit, false)
	if err != nil {
		return vmtypes.VmResult{GasUsed: gasUsed, ExitInfo: vmtypes.ExitInfo{
			Message: err.Error(),
			Code:    int32(vmerrors.CodePipeNotUTF8),
		}}, err
	}
	stderr, err := drainUTF8(rctx.Wasi.Stderr.Bytes(), settings.StderrLimit, true)
	if err != nil {
		return vmtypes.VmResult{GasUsed: gasUsed, ExitInfo: vmtypes.ExitInfo{
			Message: err.Error(),
			Code:    int32(vmerrors.CodePipeNotUTF8),
		}}, err
	}

	return vmtypes.VmResult{
		Stdout:   nonEmpty(stdout),
		Stderr:   nonEmpty(stderr),
		Result:   rbuf.Bytes(),
		GasUsed:  gasUsed,
		ExitInfo: vmtypes.ExitInfo{Message: "Ok", Code: int32(vmerrors.CodeOK)},
	}, nil
}

// parseGasLimit is the sole reader of the invocation's gas budget: envs
// must carry vmtypes.GasLimitEnv as a decimal u64, or the invocation is
// rejected before any WASM runs at all. A gas_limit struct field would let
// a caller satisfy the contract two different ways; keying it off envs
// alone, matching every other DR_* setting, keeps the contract testable as
// a single property.
func parseGasLimit(callData *vmtypes.VmCallData) (uint64, error) {
	raw, ok := callData.Envs[vmtypes.GasLimitEnv]
	if !ok {
		return 0, &vmerrors.GasLimitRequired{}
	}
	limit, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, &vmerrors.GasLimitInvalid{Value: raw}
	}
	return limit, nil
}

func finalizeGas(meter *gas.Meter, gasLimit, startupCost uint64) uint64 {
	if meter.Exhausted() {
		return gasLimit
	}
	return startupCost + meter.Used()
}

// classifyRuntimeError turns the error returned by fn.Call into a VmResult.
// A WASI program that calls proc_exit surfaces here as a *sys.ExitError
// (wazero closes the module with that exit code rather than returning
// normally); its raw code carries the program's own exit status and must
// pass through unchanged — exit 0 is success, any other value (e.g. 1, "Not
// ok" in the taxonomy) is that value, never the generic runtime-error code.
func classifyRuntimeError(err error, gasUsed uint64) (vmtypes.VmResult, error) {
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		msg := "Ok"
		if code != 0 {
			msg = exitErr.Error()
		}
		return vmtypes.VmResult{GasUsed: gasUsed, ExitInfo: vmtypes.ExitInfo{
			Message: msg,
			Code:    int32(code),
		}}, nil
	}

	var vmErr vmerrors.VmError
	if asVmError(err, &vmErr) {
		return vmtypes.VmResult{GasUsed: gasUsed, ExitInfo: vmtypes.ExitInfo{
			Message: vmErr.Error(),
			Code:    int32(vmErr.ExitCode()),
		}}, err
	}
	rt := &vmerrors.RuntimeError{Kind: err.Error()}
	return vmtypes.VmResult{GasUsed: gasUsed, ExitInfo: vmtypes.ExitInfo{
		Message: rt.Error(),
		Code:    int32(rt.ExitCode()),
	}}, rt
}

func asVmError(err error, target *vmerrors.VmError) bool {
	if e, ok := err.(vmerrors.VmError); ok {
		*target = e
		return true
	}
	return false
}

func drainUTF8(b []byte, limit int, isStderr bool) ([]byte, error) {
	if limit > 0 && len(b) > limit {
		b = b[:limit]
	}
	if !utf8.Valid(b) {
		return nil, &vmerrors.PipeNotUTF8{Stderr: isStderr}
	}
	return b, nil
}

func nonEmpty(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	return []string{string(b)}
}
