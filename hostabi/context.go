// Package hostabi implements the sandboxed host-call surface exposed to a
// running tally program: the curated seda_v1 namespace and a hand-built
// subset of WASI, both wired to gas charges via the gas package.
package hostabi

// VmContext is the per-invocation state shared by every host function: the
// execution_result buffer the program writes via seda_v1.execution_result,
// and the scratch buffer used by the three-step host-call pattern
// (issue action → call_result_length → call_result_write). It omits the
// instance/memory handle, which wazero already threads through each host
// call's api.Module parameter.
type VmContext struct {
	// Result holds the bytes most recently written via execution_result.
	Result []byte

	// Scratch holds the pending result of the last scratch-producing host
	// call (keccak256, a polyfill rejection message, …), consumed exactly
	// once by call_result_write.
	Scratch []byte
}

// ConsumeScratch returns the current scratch buffer and clears it, so a
// second consecutive call_result_write without an intervening producer
// call fails.
func (c *VmContext) ConsumeScratch() []byte {
	b := c.Scratch
	c.Scratch = nil
	return b
}
