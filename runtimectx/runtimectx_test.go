package runtimectx

import (
	"os"
	"strings"
	"testing"

	"github.com/probechain/tallyvm/vmtypes"
)

func TestResolveWasmBytesPrefersInlineBytes(t *testing.T) {
	cd := &vmtypes.VmCallData{WasmSource: vmtypes.WasmSource{Bytes: []byte{0x00, 0x61, 0x73, 0x6d}}}
	b, err := resolveWasmBytes(cd)
	if err != nil {
		t.Fatalf("resolveWasmBytes: %v", err)
	}
	if len(b) != 4 {
		t.Fatalf("got %d bytes, want 4", len(b))
	}
}

func TestResolveWasmBytesReadsPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/module.wasm"
	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	cd := &vmtypes.VmCallData{WasmSource: vmtypes.WasmSource{Path: path}}
	got, err := resolveWasmBytes(cd)
	if err != nil {
		t.Fatalf("resolveWasmBytes: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("resolveWasmBytes = %v, want %v", got, want)
	}
}

func TestResolveWasmBytesRejectsCacheIDOnly(t *testing.T) {
	cd := &vmtypes.VmCallData{WasmSource: vmtypes.WasmSource{CacheID: "123"}}
	_, err := resolveWasmBytes(cd)
	if err == nil || !strings.Contains(err.Error(), "cache id") {
		t.Fatalf("expected a cache-id-only error, got %v", err)
	}
}

func TestResolveWasmBytesRejectsEmptySource(t *testing.T) {
	cd := &vmtypes.VmCallData{}
	if _, err := resolveWasmBytes(cd); err == nil {
		t.Fatalf("expected an error for an empty wasm_source")
	}
}
