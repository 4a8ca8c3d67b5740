package driver

import "github.com/probechain/tallyvm/vmerrors"

// internalResultCap is the execution driver's own fixed ceiling on a run's
// result bytes (96000 B), distinct from and checked before the
// orchestrator's caller-tunable max_result_bytes cap.
const internalResultCap = 96000

// resultBuffer enforces internalResultCap on the bytes written via
// execution_result, modeled on probe-lang/lang/vm/memory.go's
// allocation-tracked Memory type, which rejects writes that would exceed a
// fixed bound rather than silently growing past it.
type resultBuffer struct {
	buf []byte
	set bool
}

// Set records data as the run's result, failing if it exceeds the internal
// cap. The zero value (never called) means "no result produced".
func (b *resultBuffer) Set(data []byte) error {
	if len(data) > internalResultCap {
		return &vmerrors.ResultSizeExceeded{Limit: internalResultCap}
	}
	b.buf = data
	b.set = true
	return nil
}

func (b *resultBuffer) Bytes() []byte { return b.buf }
