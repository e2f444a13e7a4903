// Package config loads dwire's runtime configuration knobs (spec.md §6):
// buffer capacities, command-table capacity, debug-mode key,
// synchronous-transfer flag, log-level, and process-tree refresh cadence.
// A YAML file supplies the base configuration (grounded on deviceid.go's
// gopkg.in/yaml.v3 use for tocalls.yaml) and CLI flags layered on top
// override it (grounded on appserver.go's pflag.StringP/Bool/Parse
// sequence).
package config

import (
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/halcyon-embedded/dwire/pkg/logging"
)

// Config holds every tunable the core and its ambient collaborators need.
type Config struct {
	InCmdCap   int `yaml:"in_cmd_cap"`
	OutCmdCap  int `yaml:"out_cmd_cap"`
	OutLogCap  int `yaml:"out_log_cap"`
	OutProcCap int `yaml:"out_proc_cap"`

	RegistryCap int `yaml:"registry_cap"`

	DebugKey     string `yaml:"debug_key"`
	SyncTransfer bool   `yaml:"sync_transfer"`
	LogLevel     int    `yaml:"log_level"`
	ProcCadence  int    `yaml:"proc_cadence"`

	SerialDevice string `yaml:"serial_device"`
	SerialBaud   int    `yaml:"serial_baud"`
}

// Default returns a Config populated with spec.md's minimum buffer
// capacities and the other built-in defaults.
func Default() Config {
	return Config{
		InCmdCap:     64,
		OutCmdCap:    128,
		OutLogCap:    256,
		OutProcCap:   1024,
		RegistryCap:  23,
		DebugKey:     "aaaaa",
		SyncTransfer: false,
		LogLevel:     int(logging.DefaultLevel),
		ProcCadence:  5000,
		SerialBaud:   9600,
	}
}

// LoadYAML reads and merges a YAML config file over Default(), returning
// the merged Config. A missing path is not an error — it simply means
// defaults apply, matching deviceid.go's tolerant tocalls.yaml handling.
func LoadYAML(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FlagSet registers pflag overrides for every Config field onto fs,
// binding directly into cfg's fields so a subsequent fs.Parse(os.Args[1:])
// applies CLI overrides on top of whatever LoadYAML produced — the same
// "YAML base, flags win" layering appserver.go uses for its own
// hostname/port settings (there, flags are the only source; here YAML
// supplies the base layer config.go's tocalls-driven code lacks an
// equivalent of).
func FlagSet(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("dwire", pflag.ContinueOnError)

	fs.IntVar(&cfg.InCmdCap, "in-cmd-cap", cfg.InCmdCap, "InCmd buffer capacity")
	fs.IntVar(&cfg.OutCmdCap, "out-cmd-cap", cfg.OutCmdCap, "OutCmd buffer capacity")
	fs.IntVar(&cfg.OutLogCap, "out-log-cap", cfg.OutLogCap, "OutLog buffer capacity")
	fs.IntVar(&cfg.OutProcCap, "out-proc-cap", cfg.OutProcCap, "OutProc buffer capacity")
	fs.IntVar(&cfg.RegistryCap, "registry-cap", cfg.RegistryCap, "command registry capacity")
	fs.StringVar(&cfg.DebugKey, "debug-key", cfg.DebugKey, "debug-mode toggle token")
	fs.BoolVar(&cfg.SyncTransfer, "sync-transfer", cfg.SyncTransfer, "busy-wait sends instead of yielding")
	fs.IntVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log severity filter (0-5)")
	fs.IntVar(&cfg.ProcCadence, "proc-cadence", cfg.ProcCadence, "ticks between process-tree snapshots")
	fs.StringVar(&cfg.SerialDevice, "serial-device", cfg.SerialDevice, "serial device path")
	fs.IntVar(&cfg.SerialBaud, "serial-baud", cfg.SerialBaud, "serial baud rate")

	return fs
}

// Load builds a Config from yamlPath overridden by args (typically
// os.Args[1:]).
func Load(yamlPath string, args []string) (Config, error) {
	cfg, err := LoadYAML(yamlPath)
	if err != nil {
		return cfg, err
	}

	fs := FlagSet(&cfg)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}
