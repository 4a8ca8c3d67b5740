package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/probechain/tallyvm/log"
	"github.com/probechain/tallyvm/vmtypes"
)

// tomlSettings ensures TOML keys use the same names as the Go struct fields,
// the same convention the engine's host project uses for its own node config.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		id := fmt.Sprintf("%s.%s", rt.String(), field)
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

var configFileFlag = cli.StringFlag{
	Name:  "config",
	Usage: "TOML configuration file",
}

var dumpConfigCommand = cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "[ <filepath> ]",
	Description: `The dumpconfig command shows the fully resolved configuration values tallyvmctl would run with.`,
}

// tallyvmctlConfig is the on-disk shape of tallyvmctl.toml: the resource
// caps and cache location threaded into every orchestrator.Settings, plus
// the handful of CLI-only knobs that never reach the engine itself.
type tallyvmctlConfig struct {
	Settings vmtypes.Settings
	Log      logConfig
}

type logConfig struct {
	Verbosity string
}

func defaultConfig() tallyvmctlConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return tallyvmctlConfig{
		Settings: vmtypes.Settings{
			SedadHome:      home + "/.tallyvmctl",
			MaxResultBytes: 96000,
			StdoutLimit:    8192,
			StderrLimit:    8192,
		},
		Log: logConfig{Verbosity: "info"},
	}
}

// loadConfig decodes file into cfg, following the host project's own
// loadConfig: a missing-field reporter good enough to catch typos, and a
// file-name-prefixed error for anything toml.LineError reports.
func loadConfig(file string, cfg *tallyvmctlConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads tallyvmctl's configuration: defaults, then an optional
// --config file, then flag overrides.
func makeConfig(ctx *cli.Context) tallyvmctlConfig {
	cfg := defaultConfig()

	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			fatalf("%v", err)
		}
	}

	if ctx.GlobalIsSet(sedadHomeFlag.Name) {
		cfg.Settings.SedadHome = ctx.GlobalString(sedadHomeFlag.Name)
	}
	if ctx.GlobalIsSet(maxResultBytesFlag.Name) {
		cfg.Settings.MaxResultBytes = ctx.GlobalInt(maxResultBytesFlag.Name)
	}
	if ctx.GlobalIsSet(verbosityFlag.Name) {
		cfg.Log.Verbosity = ctx.GlobalString(verbosityFlag.Name)
	}

	lvl, err := log.LvlFromString(cfg.Log.Verbosity)
	if err != nil {
		fatalf("invalid log verbosity %q: %v", cfg.Log.Verbosity, err)
	}
	log.SetHandler(log.LvlFilterHandler(lvl, log.ColorableStdoutHandler()))

	return cfg
}

// dumpConfig is the dumpconfig command: emit the fully resolved
// tallyvmctl.toml equivalent, mirroring the host project's own dumpconfig.
func dumpConfig(ctx *cli.Context) error {
	cfg := makeConfig(ctx)

	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	_, err = dump.Write(out)
	return err
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}
