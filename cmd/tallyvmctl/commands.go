package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/naoina/toml"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/probechain/tallyvm/log"
	"github.com/probechain/tallyvm/orchestrator"
	"github.com/probechain/tallyvm/vmtypes"
)

var (
	wasmFlag = cli.StringFlag{
		Name:  "wasm",
		Usage: "Path to the WASM program to run",
	}
	argFlag = cli.StringSliceFlag{
		Name:  "arg",
		Usage: "Argument to pass to the program; may be repeated",
	}
	envFlag = cli.StringSliceFlag{
		Name:  "env",
		Usage: "KEY=VALUE environment entry; may be repeated",
	}
	gasLimitFlag = cli.Uint64Flag{
		Name:  "gas-limit",
		Usage: "Gas limit for the invocation",
		Value: 300_000_000_000_000,
	}
	startFuncFlag = cli.StringFlag{
		Name:  "start-func",
		Usage: "Entrypoint export to call",
		Value: vmtypes.DefaultStartFunc,
	}
	batchFileFlag = cli.StringFlag{
		Name:  "file",
		Usage: "Path to a TOML batch-request file",
	}
	parallelFlag = cli.BoolFlag{
		Name:  "parallel",
		Usage: "Run the batch's requests concurrently instead of one after another",
	}
)

var runCommand = cli.Command{
	Action:    runRun,
	Name:      "run",
	Usage:     "Run a single WASM program and print its result",
	ArgsUsage: "",
	Flags:     []cli.Flag{wasmFlag, argFlag, envFlag, gasLimitFlag, startFuncFlag},
}

var batchCommand = cli.Command{
	Action:    runBatch,
	Name:      "batch",
	Usage:     "Run every request in a TOML batch file",
	ArgsUsage: "",
	Flags:     []cli.Flag{batchFileFlag, parallelFlag},
}

var cacheInfoCommand = cli.Command{
	Action:    runCacheInfo,
	Name:      "cache-info",
	Usage:     "Show the compiled-module cache directory and its entries",
	ArgsUsage: "",
}

// parseEnvs turns a list of KEY=VALUE strings into a map, the flag-surface
// analogue of VmCallData.Envs.
func parseEnvs(kvs []string) (map[string]string, error) {
	envs := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --env %q: want KEY=VALUE", kv)
		}
		envs[k] = v
	}
	return envs, nil
}

func buildCallData(ctx *cli.Context) (*vmtypes.VmCallData, error) {
	path := ctx.String(wasmFlag.Name)
	if path == "" {
		return nil, fmt.Errorf("--wasm is required")
	}
	wasmBytes, err := mmapWasmFile(path)
	if err != nil {
		return nil, err
	}
	envs, err := parseEnvs(ctx.StringSlice(envFlag.Name))
	if err != nil {
		return nil, err
	}
	if _, ok := envs[vmtypes.GasLimitEnv]; !ok {
		envs[vmtypes.GasLimitEnv] = strconv.FormatUint(ctx.Uint64(gasLimitFlag.Name), 10)
	}
	return &vmtypes.VmCallData{
		WasmSource: vmtypes.WasmSource{Bytes: wasmBytes},
		Args:       ctx.StringSlice(argFlag.Name),
		Envs:       envs,
		StartFunc:  ctx.String(startFuncFlag.Name),
	}, nil
}

// mmapWasmFile reads a program's bytes via a read-only mapping rather than a
// full buffered read, matching trie.Database's use of mmap-go for large
// on-disk artifacts. Unlike a buffered os.ReadFile, the returned slice
// aliases the mapping directly — no copy is made. The mapping, and the fd
// backing it, are deliberately left open for the life of the process: run
// and batch are one-shot commands that need the bytes until their single
// invocation finishes compiling and instantiating the module, and the OS
// reclaims both on exit.
func mmapWasmFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wasm file: %w", err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap wasm file: %w", err)
	}
	return []byte(m), nil
}

func runRun(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	callData, err := buildCallData(ctx)
	if err != nil {
		return err
	}

	orc, err := orchestrator.New(cfg.Settings)
	if err != nil {
		return fmt.Errorf("open orchestrator: %w", err)
	}
	defer orc.Close(context.Background())

	start := time.Now()
	result := orc.Single(context.Background(), callData)
	printResult(ctx.String(wasmFlag.Name), result, time.Since(start))
	return nil
}

// batchFile is the on-disk shape of a batch request: one call_data block
// per program, sharing whatever shared defaults the TOML sets per-entry.
type batchFile struct {
	Requests []batchRequest
}

type batchRequest struct {
	Wasm      string
	Args      []string
	Env       map[string]string
	GasLimit  uint64
	StartFunc string
}

func runBatch(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	file := ctx.String(batchFileFlag.Name)
	if file == "" {
		return fmt.Errorf("--file is required")
	}

	var bf batchFile
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}
	if err := toml.Unmarshal(raw, &bf); err != nil {
		return fmt.Errorf("decode batch file: %w", err)
	}

	callDatas := make([]*vmtypes.VmCallData, len(bf.Requests))
	for i, r := range bf.Requests {
		envs := r.Env
		if envs == nil {
			envs = map[string]string{}
		}
		if _, ok := envs[vmtypes.GasLimitEnv]; !ok {
			gasLimit := r.GasLimit
			if gasLimit == 0 {
				gasLimit = gasLimitFlag.Value
			}
			envs[vmtypes.GasLimitEnv] = strconv.FormatUint(gasLimit, 10)
		}
		callDatas[i] = &vmtypes.VmCallData{
			WasmSource: vmtypes.WasmSource{Path: r.Wasm},
			Args:       r.Args,
			Envs:       envs,
			StartFunc:  r.StartFunc,
		}
	}

	orc, err := orchestrator.New(cfg.Settings)
	if err != nil {
		return fmt.Errorf("open orchestrator: %w", err)
	}
	defer orc.Close(context.Background())

	log.Info("running batch", "requests", len(callDatas), "parallel", ctx.Bool(parallelFlag.Name))
	start := time.Now()
	var results []vmtypes.VmResult
	if ctx.Bool(parallelFlag.Name) {
		results = orc.Parallel(context.Background(), callDatas)
	} else {
		results = orc.Sequential(context.Background(), callDatas)
	}
	elapsed := time.Since(start)

	for i, result := range results {
		printResult(bf.Requests[i].Wasm, result, 0)
	}
	log.Info("batch finished", "requests", len(callDatas), "elapsed", elapsed)
	return nil
}

func runCacheInfo(ctx *cli.Context) error {
	cfg := makeConfig(ctx)
	orc, err := orchestrator.New(cfg.Settings)
	if err != nil {
		return fmt.Errorf("open orchestrator: %w", err)
	}
	defer orc.Close(context.Background())

	dir, engineVersion := orc.CacheDiagnostics()
	fmt.Printf("cache dir:      %s\n", dir)
	fmt.Printf("engine version: %s\n", engineVersion)

	entries, err := orc.ListCacheEntries()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Content ID", "Size (bytes)", "Modified"})
	for _, e := range entries {
		table.Append([]string{e.ID, fmt.Sprintf("%d", e.Size), time.Unix(e.ModTime, 0).Format(time.RFC3339)})
	}
	table.Render()
	return nil
}

func printResult(label string, result vmtypes.VmResult, elapsed time.Duration) {
	fmt.Printf("=== %s ===\n", label)
	fmt.Printf("exit code: %d (%s)\n", result.ExitInfo.Code, result.ExitInfo.Message)
	fmt.Printf("gas used:  %d\n", result.GasUsed)
	if elapsed > 0 {
		fmt.Printf("elapsed:   %s\n", elapsed)
	}
	if len(result.Result) > 0 {
		fmt.Printf("result:    %x\n", result.Result)
	}
	for _, line := range result.Stdout {
		fmt.Printf("stdout: %s\n", line)
	}
	for _, line := range result.Stderr {
		fmt.Printf("stderr: %s\n", line)
	}
}
