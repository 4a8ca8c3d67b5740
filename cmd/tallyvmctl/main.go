// Command tallyvmctl is a standalone front end for the tally execution
// engine: run one WASM program directly, replay a batch of them
// sequentially or in parallel, inspect the compiled-module cache, or dump
// the resolved configuration. It exists to exercise the orchestrator package
// outside of the oracle node process that normally embeds it.
package main

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/urfave/cli.v1"
)

var (
	gitCommit = ""
	gitDate   = ""

	sedadHomeFlag = cli.StringFlag{
		Name:  "sedad-home",
		Usage: "Directory holding the compiled-module cache",
		Value: "",
	}
	maxResultBytesFlag = cli.IntFlag{
		Name:  "max-result-bytes",
		Usage: "Tally-mode cap on the returned result, in bytes",
	}
	verbosityFlag = cli.StringFlag{
		Name:  "verbosity",
		Usage: "Log verbosity: crit, error, warn, info, debug, trace",
		Value: "info",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "tallyvmctl"
	app.Usage = "Run and inspect tally VM invocations"
	app.Version = fmt.Sprintf("%s-%s", "dev", gitDate)
	app.Flags = []cli.Flag{
		configFileFlag,
		sedadHomeFlag,
		maxResultBytesFlag,
		verbosityFlag,
	}
	app.Commands = []cli.Command{
		runCommand,
		batchCommand,
		cacheInfoCommand,
		dumpConfigCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
