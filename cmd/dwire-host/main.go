// Command dwire-host attaches the debug transport core to a real serial
// device, grounded on appserver.go's pflag-driven main(): parse flags,
// validate arguments, wire collaborators, then loop.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/halcyon-embedded/dwire/pkg/config"
	"github.com/halcyon-embedded/dwire/pkg/dispatch"
	"github.com/halcyon-embedded/dwire/pkg/link"
	"github.com/halcyon-embedded/dwire/pkg/logging"
	"github.com/halcyon-embedded/dwire/pkg/proctree"
	"github.com/halcyon-embedded/dwire/pkg/registry"
	"github.com/halcyon-embedded/dwire/pkg/transport"
	"github.com/halcyon-embedded/dwire/pkg/wire"
)

// splitConfigFlag pulls --config (and --config=path) out of args, since
// config.FlagSet never registers it and pflag.ContinueOnError rejects
// unknown flags outright: handing --config straight through to
// config.Load would abort every invocation that uses it. Returns the YAML
// path (empty if absent) and the remaining args with no trace of --config.
func splitConfigFlag(args []string) (yamlPath string, rest []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--config":
			if i+1 < len(args) {
				yamlPath = args[i+1]
				i++
			}
		case strings.HasPrefix(a, "--config="):
			yamlPath = strings.TrimPrefix(a, "--config=")
		default:
			rest = append(rest, a)
		}
	}
	return yamlPath, rest
}

func main() {
	yamlPath, rest := splitConfigFlag(os.Args[1:])

	cfg, err := config.Load(yamlPath, rest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dwire-host: %s\n", err)
		os.Exit(1)
	}

	if cfg.SerialDevice == "" {
		fmt.Fprintln(os.Stderr, "dwire-host: --serial-device is required")
		os.Exit(1)
	}

	endpoint, err := link.OpenSerial(cfg.SerialDevice, cfg.SerialBaud)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dwire-host: could not open %s: %s\n", cfg.SerialDevice, err)
		os.Exit(1)
	}
	defer endpoint.Close()

	if err := run(cfg, endpoint); err != nil {
		fmt.Fprintf(os.Stderr, "dwire-host: %s\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, endpoint link.Endpoint) error {
	bufs := wire.NewBufferSet(cfg.InCmdCap, cfg.OutCmdCap, cfg.OutLogCap, cfg.OutProcCap)
	fc := transport.NewFrameCodec(bufs)
	endpoint.SetByteHandler(fc.OnByte)

	gate := transport.NewTxGate(endpoint)

	reg := registry.New(cfg.RegistryCap)
	tree := proctree.NewStaticTree(nil)
	d := dispatch.New(bufs, reg, tree, endpoint, gate, fc)
	d.DebugKey = cfg.DebugKey
	d.SyncTransfer = cfg.SyncTransfer
	d.ProcCadence = cfg.ProcCadence

	arb := transport.NewArbiter(fc, bufs, endpoint, gate)
	arb.SyncTransfer = cfg.SyncTransfer
	arb.DebugMode = d.DebugMode
	if err := arb.Start(); err != nil {
		return err
	}

	logger := logging.New(os.Stderr, d)
	logger.Infof("dwire-host attached to %s", cfg.SerialDevice)

	for {
		arb.Step()
		d.Step()
		d.Tick()
		time.Sleep(time.Millisecond)
	}
}
