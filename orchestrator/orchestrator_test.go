package orchestrator

import (
	"testing"

	"github.com/probechain/tallyvm/vmerrors"
	"github.com/probechain/tallyvm/vmtypes"
)

func TestApplyTallyResultCapSkippedWithoutTallyMode(t *testing.T) {
	cd := &vmtypes.VmCallData{Envs: map[string]string{"VM_MODE": "dr"}}
	result := vmtypes.VmResult{Result: make([]byte, 10)}
	got := applyTallyResultCap(result, cd, vmtypes.Settings{MaxResultBytes: 1})
	if len(got.Result) != 10 {
		t.Fatalf("result cap should not apply outside tally mode")
	}
}

func TestApplyTallyResultCapClearsResultInTallyMode(t *testing.T) {
	cd := &vmtypes.VmCallData{Envs: map[string]string{"VM_MODE": "tally"}}
	result := vmtypes.VmResult{Result: make([]byte, 10), GasUsed: 42, Stdout: []string{"keep"}}
	got := applyTallyResultCap(result, cd, vmtypes.Settings{MaxResultBytes: 1})
	if got.Result != nil {
		t.Fatalf("expected result to be cleared when over cap")
	}
	if got.ExitInfo.Code != int32(vmerrors.CodeTallyResultTooLarge) {
		t.Fatalf("ExitInfo.Code = %d, want CodeTallyResultTooLarge", got.ExitInfo.Code)
	}
	if got.GasUsed != 42 || len(got.Stdout) != 1 {
		t.Fatalf("gas_used and stdout must be preserved when the result is capped")
	}
}

func TestApplyTallyResultCapAllowsExactLimit(t *testing.T) {
	cd := &vmtypes.VmCallData{Envs: map[string]string{"VM_MODE": "tally"}}
	result := vmtypes.VmResult{Result: make([]byte, 5)}
	got := applyTallyResultCap(result, cd, vmtypes.Settings{MaxResultBytes: 5})
	if len(got.Result) != 5 {
		t.Fatalf("a result exactly at max_result_bytes must not be truncated")
	}
}

func TestFreeResultIsANoOp(t *testing.T) {
	FreeResult(vmtypes.VmResult{Result: []byte("x")})
}
