// Package orchestrator is the FFI façade: the thread-safe entry points
// (single, sequential batch, parallel batch) external callers use, plus
// cache diagnostics and the panic/result-cap policy that sits outside the
// execution driver.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/probechain/tallyvm/cache"
	"github.com/probechain/tallyvm/driver"
	"github.com/probechain/tallyvm/log"
	"github.com/probechain/tallyvm/vmerrors"
	"github.com/probechain/tallyvm/vmtypes"
)

// Orchestrator is the process-wide façade over one sedad_home's cache.
// Construct one per process (or per sedad_home); it is safe for concurrent
// use by multiple goroutines.
type Orchestrator struct {
	store     *cache.Store
	settings  vmtypes.Settings
	compileMu sync.Mutex
}

// New opens (or creates) the cache rooted at settings.SedadHome and returns
// an Orchestrator ready to serve invocations.
func New(settings vmtypes.Settings) (*Orchestrator, error) {
	store, err := cache.NewStore(settings.SedadHome)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open cache: %w", err)
	}
	return &Orchestrator{store: store, settings: settings}, nil
}

// Close releases the underlying cache's resources.
func (o *Orchestrator) Close(ctx context.Context) error {
	return o.store.Close(ctx)
}

// Single runs exactly one invocation and applies the tally-mode
// post-driver result cap and panic-containment policy. A *driver.Panic
// returned by the driver is turned into a vmerrors.HostPanic result here
// (exit code 42, gas_used 0), replacing whatever result the driver
// returned with it; the driver's worker goroutine performs the actual
// recover(), since Go requires that to happen in the panicking goroutine.
func (o *Orchestrator) Single(ctx context.Context, callData *vmtypes.VmCallData) vmtypes.VmResult {
	callID := uuid.NewString()
	logger := log.New("call_id", callID)
	logger.Debug("invocation start")

	result, err := driver.Run(ctx, o.store, callData, o.settings, &o.compileMu)
	if p, ok := err.(*driver.Panic); ok {
		logger.Error("invocation panicked", "recovered", p.Recovered)
		return vmtypes.VmResult{
			GasUsed: 0,
			ExitInfo: vmtypes.ExitInfo{
				Message: (&vmerrors.HostPanic{Recovered: p.Recovered}).Error(),
				Code:    int32(vmerrors.CodeHostPanic),
			},
		}
	}

	capped := applyTallyResultCap(result, callData, o.settings)
	logger.Debug("invocation finished", "exit_code", capped.ExitInfo.Code, "gas_used", capped.GasUsed)
	return capped
}

// Sequential runs N requests one after another, sharing this Orchestrator's
// cache directory and compile mutex, returning results in input order.
func (o *Orchestrator) Sequential(ctx context.Context, callDatas []*vmtypes.VmCallData) []vmtypes.VmResult {
	results := make([]vmtypes.VmResult, len(callDatas))
	for i, cd := range callDatas {
		results[i] = o.Single(ctx, cd)
	}
	return results
}

// Parallel runs N requests on a worker pool sized at least len(callDatas),
// per the orchestrator component's pool-sizing rule, preserving input
// order in the output slice. Blocking steps (compilation, disk I/O,
// entrypoint execution) all happen inside each worker's call to Single.
func (o *Orchestrator) Parallel(ctx context.Context, callDatas []*vmtypes.VmCallData) []vmtypes.VmResult {
	results := make([]vmtypes.VmResult, len(callDatas))
	g, gctx := errgroup.WithContext(ctx)
	for i, cd := range callDatas {
		i, cd := i, cd
		g.Go(func() error {
			results[i] = o.Single(gctx, cd)
			return nil
		})
	}
	_ = g.Wait() // Single never returns an error; every failure is encoded in VmResult
	return results
}

// CacheDiagnostics reports the cache directory and engine version so
// external tools can decide whether to purge stale caches.
func (o *Orchestrator) CacheDiagnostics() (dir, engineVersion string) {
	return o.store.Dir(), o.store.EngineVersion()
}

// ListCacheEntries reports every compiled module currently cached, for the
// cache-info CLI surface (§4.7).
func (o *Orchestrator) ListCacheEntries() ([]cache.Stat, error) {
	return o.store.ListEntries()
}

// FreeResult is a documented no-op retained for parity with the C-ABI
// "paired free" ownership contract described by the external interface:
// Go's garbage collector reclaims VmResult's slices on its own, but
// callers written against the FFI shape can still call this symmetrically.
func FreeResult(vmtypes.VmResult) {}

// applyTallyResultCap enforces the orchestrator-level, caller-tunable
// max_result_bytes cap when the invocation's environment requests tally
// mode, per the recognized VM_MODE environment variable.
func applyTallyResultCap(result vmtypes.VmResult, callData *vmtypes.VmCallData, settings vmtypes.Settings) vmtypes.VmResult {
	if callData.Envs["VM_MODE"] != "tally" {
		return result
	}
	if settings.MaxResultBytes <= 0 || len(result.Result) <= settings.MaxResultBytes {
		return result
	}
	result.Result = nil
	result.ExitInfo = vmtypes.ExitInfo{
		Message: (&vmerrors.TallyResultTooLarge{MaxResultBytes: settings.MaxResultBytes}).Error(),
		Code:    int32(vmerrors.CodeTallyResultTooLarge),
	}
	return result
}
