package driver

import (
	"errors"
	"testing"

	"github.com/tetratelabs/wazero/sys"

	"github.com/probechain/tallyvm/gas"
	"github.com/probechain/tallyvm/vmerrors"
	"github.com/probechain/tallyvm/vmtypes"
)

func TestResultBufferRejectsOversize(t *testing.T) {
	var b resultBuffer
	if err := b.Set(make([]byte, internalResultCap+1)); err == nil {
		t.Fatalf("expected ResultSizeExceeded for an over-cap result")
	}
	if err := b.Set(make([]byte, internalResultCap)); err != nil {
		t.Fatalf("result exactly at the cap should be accepted: %v", err)
	}
}

func TestDrainUTF8TruncatesAndValidates(t *testing.T) {
	out, err := drainUTF8([]byte("hello world"), 5, false)
	if err != nil {
		t.Fatalf("drainUTF8: %v", err)
	}
	if string(out) != "hello" {
		t.Fatalf("drainUTF8 truncated = %q, want %q", out, "hello")
	}

	_, err = drainUTF8([]byte{0xff, 0xfe, 0xfd}, 0, true)
	if err == nil {
		t.Fatalf("expected a PipeNotUTF8 error for invalid UTF-8")
	}
	var pipeErr *vmerrors.PipeNotUTF8
	if !errors.As(err, &pipeErr) || !pipeErr.Stderr {
		t.Fatalf("expected PipeNotUTF8{Stderr:true}, got %v", err)
	}
}

func TestFinalizeGasOnExhaustion(t *testing.T) {
	m := gas.NewMeter(100, true, nil)
	_ = m.Charge(100)
	if got := finalizeGas(m, 1000, 50); got != 1000 {
		t.Fatalf("finalizeGas on exhaustion = %d, want gasLimit 1000", got)
	}
}

func TestFinalizeGasOnCompletion(t *testing.T) {
	m := gas.NewMeter(100, true, nil)
	_ = m.Charge(30)
	if got := finalizeGas(m, 1000, 50); got != 80 {
		t.Fatalf("finalizeGas = %d, want startupCost(50)+used(30)=80", got)
	}
}

func TestClassifyRuntimeErrorPrefersTypedError(t *testing.T) {
	result, err := classifyRuntimeError(&vmerrors.OutOfGas{Limit: 10}, 10)
	if result.ExitInfo.Code != int32(vmerrors.CodeOutOfGas) {
		t.Fatalf("ExitInfo.Code = %d, want CodeOutOfGas", result.ExitInfo.Code)
	}
	if err == nil {
		t.Fatalf("expected a non-nil error")
	}
}

func TestClassifyRuntimeErrorWrapsUntypedError(t *testing.T) {
	result, _ := classifyRuntimeError(errors.New("boom"), 5)
	if result.ExitInfo.Code != int32(vmerrors.CodeRuntimeError) {
		t.Fatalf("ExitInfo.Code = %d, want CodeRuntimeError", result.ExitInfo.Code)
	}
}

func TestClassifyRuntimeErrorMapsWasiExitZeroToOk(t *testing.T) {
	result, err := classifyRuntimeError(sys.NewExitError(0), 5)
	if result.ExitInfo.Code != 0 {
		t.Fatalf("ExitInfo.Code = %d, want 0 for proc_exit(0)", result.ExitInfo.Code)
	}
	if err != nil {
		t.Fatalf("expected a nil error for a successful WASI exit, got %v", err)
	}
}

func TestClassifyRuntimeErrorMapsWasiExitCodeThrough(t *testing.T) {
	result, _ := classifyRuntimeError(sys.NewExitError(1), 5)
	if result.ExitInfo.Code != 1 {
		t.Fatalf("ExitInfo.Code = %d, want the raw WASI exit code 1", result.ExitInfo.Code)
	}
}

func TestParseGasLimitRejectsMissingEnv(t *testing.T) {
	_, err := parseGasLimit(&vmtypes.VmCallData{})
	var required *vmerrors.GasLimitRequired
	if !errors.As(err, &required) {
		t.Fatalf("expected GasLimitRequired for a call data with no envs, got %v", err)
	}
}

func TestParseGasLimitRejectsUnparseableEnv(t *testing.T) {
	_, err := parseGasLimit(&vmtypes.VmCallData{Envs: map[string]string{vmtypes.GasLimitEnv: "not-a-number"}})
	if err == nil {
		t.Fatalf("expected an error for a non-numeric DR_TALLY_GAS_LIMIT")
	}
}

func TestParseGasLimitReadsEnv(t *testing.T) {
	limit, err := parseGasLimit(&vmtypes.VmCallData{Envs: map[string]string{vmtypes.GasLimitEnv: "12345"}})
	if err != nil {
		t.Fatalf("parseGasLimit: %v", err)
	}
	if limit != 12345 {
		t.Fatalf("parseGasLimit = %d, want 12345", limit)
	}
}
