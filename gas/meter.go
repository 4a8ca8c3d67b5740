package gas

import (
	"sync"

	"github.com/probechain/tallyvm/vmerrors"
)

// Meter tracks gas consumption for a single invocation's instance. It
// generalizes probe-lang/lang/vm/vm.go's VM.useGas pattern: deduct a cost,
// and fail with a typed out-of-gas error if the running total would exceed
// the limit. A Meter also tracks whether metering is active at all — when
// no gas_limit is set on the invocation, every charge is a no-op.
//
// Charge alone cannot stop a running WASM call: wazero's FunctionListener
// and host-function signatures give neither a way to abort execution from
// inside a hook. So the first charge that exhausts the budget fires cancel
// exactly once, canceling the invocation's context; runtimectx configures
// wazero with WithCloseOnContextDone(true), which makes wazero itself abort
// the in-flight call at its next safe point. Gas accounting and wall-time
// enforcement are therefore the same mechanism, not two that have to agree.
type Meter struct {
	mu       sync.Mutex
	limit    uint64
	used     uint64
	metered  bool
	cancel   func()
	canceled bool
}

// NewMeter creates a Meter. If metered is false (no gas_limit supplied by
// the caller), Charge never fails and Used always reports 0. cancel is
// invoked at most once, the first time a Charge call observes exhaustion; a
// nil cancel is treated as a no-op, for callers (tests, mostly) that don't
// need the invocation actually aborted.
func NewMeter(limit uint64, metered bool, cancel func()) *Meter {
	if cancel == nil {
		cancel = func() {}
	}
	return &Meter{limit: limit, metered: metered, cancel: cancel}
}

// Charge deducts cost from the remaining budget. It returns
// *vmerrors.OutOfGas if the charge would exceed the limit; on failure the
// running total is set to the limit, so Used() reports the whole budget
// and Exhausted() reports true. On the transition into exhaustion it also
// fires the Meter's cancel callback (see the type doc).
func (m *Meter) Charge(cost uint64) error {
	if !m.metered {
		return nil
	}
	m.mu.Lock()
	if m.used+cost > m.limit {
		m.used = m.limit
		fireCancel := !m.canceled
		m.canceled = true
		m.mu.Unlock()
		if fireCancel {
			m.cancel()
		}
		return &vmerrors.OutOfGas{Limit: m.limit}
	}
	m.used += cost
	m.mu.Unlock()
	return nil
}

// Used returns gas consumed so far. With no gas_limit configured this is
// always 0.
func (m *Meter) Used() uint64 {
	if !m.metered {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Remaining returns the unconsumed budget; meaningless (and 0) when
// unmetered.
func (m *Meter) Remaining() uint64 {
	if !m.metered {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.used >= m.limit {
		return 0
	}
	return m.limit - m.used
}

// Exhausted reports whether the budget has been fully consumed.
func (m *Meter) Exhausted() bool {
	if !m.metered {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used >= m.limit
}

// Seed resets the meter to a fresh limit with nothing charged yet,
// including re-arming the cancel callback so a later exhaustion fires it
// again.
func (m *Meter) Seed(limit uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	m.used = 0
	m.canceled = false
}
