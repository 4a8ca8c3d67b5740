package hostabi

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/probechain/tallyvm/gas"
)

// WasiEnv is the curated subset of a WASI preopen environment the driver
// builds for one invocation: resolved argv/envp, and the pipes the program
// writes to through fd_write.
type WasiEnv struct {
	Args []string
	Envs map[string]string

	Stdout *pipe
	Stderr *pipe
}

// pipe is an in-memory, append-only byte sink, the Go analogue of the
// driver's in-memory stdout/stderr pipes.
type pipe struct {
	buf []byte
}

func (p *pipe) Write(b []byte) { p.buf = append(p.buf, b...) }
func (p *pipe) Bytes() []byte  { return p.buf }

// NewWasiEnv creates the pipes and captures the resolved argv/envp for one
// invocation.
func NewWasiEnv(args []string, envs map[string]string) *WasiEnv {
	return &WasiEnv{Args: args, Envs: envs, Stdout: &pipe{}, Stderr: &pipe{}}
}

// wasiErrnoSuccess / wasiErrnoInval mirror WASI's errno encoding (a u32
// result on every wasi_snapshot_preview1 call): 0 is success, any other
// value is a numbered failure. We only ever need success and one generic
// failure code for the polyfilled entries.
const (
	wasiErrnoSuccess uint32 = 0
	wasiErrnoInval   uint32 = 28 // WASI's EINVAL
)

// BuildWasiSubset registers wasi_snapshot_preview1.{args_get,
// args_sizes_get, environ_get, environ_sizes_get, fd_write, proc_exit}
// against rt, re-implemented directly over env rather than delegating to
// wazero's bundled wasi_snapshot_preview1.Instantiate — that bundled
// implementation's random_get/clock_time_get read real entropy and the
// real clock, which would break the determinism every tally invocation
// must guarantee. random_get and clock_time_get are registered here too,
// but polyfilled to a constant errno rather than omitted, since a program
// that imports them must still link; omitting them would make
// instantiation fail with a missing-import error instead of the intended
// deterministic-denial behavior.
func BuildWasiSubset(ctx context.Context, rt wazero.Runtime, env *WasiEnv, meter *gas.Meter) error {
	b := rt.NewHostModuleBuilder("wasi_snapshot_preview1")

	b.NewFunctionBuilder().WithFunc(argsSizesGet(env, meter)).Export("args_sizes_get")
	b.NewFunctionBuilder().WithFunc(argsGet(env, meter)).Export("args_get")
	b.NewFunctionBuilder().WithFunc(environSizesGet(env, meter)).Export("environ_sizes_get")
	b.NewFunctionBuilder().WithFunc(environGet(env, meter)).Export("environ_get")
	b.NewFunctionBuilder().WithFunc(fdWrite(env, meter)).Export("fd_write")
	b.NewFunctionBuilder().WithFunc(procExit()).Export("proc_exit")
	b.NewFunctionBuilder().WithFunc(denyRandomGet()).Export("random_get")
	b.NewFunctionBuilder().WithFunc(denyClockTimeGet()).Export("clock_time_get")

	if _, err := b.Instantiate(ctx); err != nil {
		return fmt.Errorf("hostabi: instantiate wasi subset: %w", err)
	}
	return nil
}

func argsSizesGet(env *WasiEnv, meter *gas.Meter) func(context.Context, api.Module, uint32, uint32) uint32 {
	return func(_ context.Context, mod api.Module, argcPtr, argvBufSizePtr uint32) uint32 {
		if meter.Charge(gas.MeteredWasiCost(gas.WasiArgsSizesGetBase, uint64(len(env.Args)))) != nil {
			return wasiErrnoInval
		}
		if !mod.Memory().WriteUint32Le(argcPtr, uint32(len(env.Args))) {
			return wasiErrnoInval
		}
		if !mod.Memory().WriteUint32Le(argvBufSizePtr, uint32(argsByteLen(env.Args))) {
			return wasiErrnoInval
		}
		return wasiErrnoSuccess
	}
}

func argsGet(env *WasiEnv, meter *gas.Meter) func(context.Context, api.Module, uint32, uint32) uint32 {
	return func(_ context.Context, mod api.Module, argvPtr, argvBufPtr uint32) uint32 {
		if meter.Charge(gas.MeteredWasiCost(gas.WasiArgsGetBase, uint64(argsByteLen(env.Args)))) != nil {
			return wasiErrnoInval
		}
		cursor := argvBufPtr
		for i, a := range env.Args {
			if !mod.Memory().WriteUint32Le(argvPtr+uint32(i*4), cursor) {
				return wasiErrnoInval
			}
			nulTerminated := append([]byte(a), 0)
			if !mod.Memory().Write(cursor, nulTerminated) {
				return wasiErrnoInval
			}
			cursor += uint32(len(nulTerminated))
		}
		return wasiErrnoSuccess
	}
}

func environSizesGet(env *WasiEnv, meter *gas.Meter) func(context.Context, api.Module, uint32, uint32) uint32 {
	return func(_ context.Context, mod api.Module, countPtr, bufSizePtr uint32) uint32 {
		if meter.Charge(gas.MeteredWasiCost(gas.WasiEnvironSizesGetBase, uint64(len(env.Envs)))) != nil {
			return wasiErrnoInval
		}
		if !mod.Memory().WriteUint32Le(countPtr, uint32(len(env.Envs))) {
			return wasiErrnoInval
		}
		if !mod.Memory().WriteUint32Le(bufSizePtr, uint32(envsByteLen(env.Envs))) {
			return wasiErrnoInval
		}
		return wasiErrnoSuccess
	}
}

func environGet(env *WasiEnv, meter *gas.Meter) func(context.Context, api.Module, uint32, uint32) uint32 {
	return func(_ context.Context, mod api.Module, envpPtr, envBufPtr uint32) uint32 {
		if meter.Charge(gas.MeteredWasiCost(gas.WasiEnvironGetBase, uint64(envsByteLen(env.Envs)))) != nil {
			return wasiErrnoInval
		}
		cursor := envBufPtr
		i := 0
		for k, v := range env.Envs {
			if !mod.Memory().WriteUint32Le(envpPtr+uint32(i*4), cursor) {
				return wasiErrnoInval
			}
			entry := append([]byte(k+"="+v), 0)
			if !mod.Memory().Write(cursor, entry) {
				return wasiErrnoInval
			}
			cursor += uint32(len(entry))
			i++
		}
		return wasiErrnoSuccess
	}
}

// fdWrite implements the single-iovec-array write WASI programs use for
// stdout (fd 1) and stderr (fd 2); any other fd is rejected.
func fdWrite(env *WasiEnv, meter *gas.Meter) func(context.Context, api.Module, uint32, uint32, uint32, uint32) uint32 {
	return func(_ context.Context, mod api.Module, fd, iovs, iovsLen, nwrittenPtr uint32) uint32 {
		var dst *pipe
		switch fd {
		case 1:
			dst = env.Stdout
		case 2:
			dst = env.Stderr
		default:
			return wasiErrnoInval
		}

		// The iovec lengths are known before any byte is read or written,
		// so the charge happens first: a charge failure then means no
		// partial write ever reaches dst on an exhausted meter.
		var total uint32
		for i := uint32(0); i < iovsLen; i++ {
			length, ok := mod.Memory().ReadUint32Le(iovs + i*8 + 4)
			if !ok {
				return wasiErrnoInval
			}
			total += length
		}
		if meter.Charge(gas.MeteredWasiCost(gas.WasiFdWriteBase, uint64(total))) != nil {
			return wasiErrnoInval
		}

		for i := uint32(0); i < iovsLen; i++ {
			base := iovs + i*8
			ptr, ok := mod.Memory().ReadUint32Le(base)
			if !ok {
				return wasiErrnoInval
			}
			length, ok := mod.Memory().ReadUint32Le(base + 4)
			if !ok {
				return wasiErrnoInval
			}
			b, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return wasiErrnoInval
			}
			dst.Write(b)
		}
		if !mod.Memory().WriteUint32Le(nwrittenPtr, total) {
			return wasiErrnoInval
		}
		return wasiErrnoSuccess
	}
}

// procExit closes the calling module with the program's exit code. wazero
// reports that closure to the driver as a *sys.ExitError carrying the code,
// which driver.classifyRuntimeError passes through as the invocation's
// exit code.
func procExit() func(context.Context, api.Module, uint32) {
	return func(ctx context.Context, mod api.Module, code uint32) {
		_ = mod.CloseWithExitCode(ctx, code)
	}
}

// denyRandomGet and denyClockTimeGet polyfill the two WASI imports that
// would otherwise break determinism, returning a constant errno instead of
// touching a real entropy source or clock.
func denyRandomGet() func(context.Context, api.Module, uint32, uint32) uint32 {
	return func(context.Context, api.Module, uint32, uint32) uint32 { return wasiErrnoInval }
}

func denyClockTimeGet() func(context.Context, api.Module, uint32, uint64, uint32) uint32 {
	return func(context.Context, api.Module, uint32, uint64, uint32) uint32 { return wasiErrnoInval }
}

func argsByteLen(args []string) int {
	n := 0
	for _, a := range args {
		n += len(a) + 1
	}
	return n
}

func envsByteLen(envs map[string]string) int {
	n := 0
	for k, v := range envs {
		n += len(k) + len(v) + 2
	}
	return n
}
