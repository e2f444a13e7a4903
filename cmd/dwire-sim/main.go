// Command dwire-sim runs the debug transport core against an in-memory
// loopback pair instead of a real serial device, driving a toy host-side
// poller so the protocol can be exercised and observed without hardware.
package main

import (
	"fmt"
	"os"
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

func main() {
	cfg, err := config.Load("", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "dwire-sim: %s\n", err)
		os.Exit(1)
	}

	targetSide, hostSide := link.NewPipePair()
	defer targetSide.Close()
	defer hostSide.Close()

	bufs := wire.NewBufferSet(cfg.InCmdCap, cfg.OutCmdCap, cfg.OutLogCap, cfg.OutProcCap)
	fc := transport.NewFrameCodec(bufs)
	targetSide.SetByteHandler(fc.OnByte)

	gate := transport.NewTxGate(targetSide)

	reg := registry.New(cfg.RegistryCap)
	tree := proctree.NewStaticTree(demoTree())
	d := dispatch.New(bufs, reg, tree, targetSide, gate, fc)
	d.DebugKey = cfg.DebugKey
	d.SyncTransfer = cfg.SyncTransfer
	d.ProcCadence = cfg.ProcCadence

	reg.Register("ping", "", "replies Done", "demo", func(_ string, _ *registry.ReplyWriter) {})

	arb := transport.NewArbiter(fc, bufs, targetSide, gate)
	arb.SyncTransfer = cfg.SyncTransfer
	arb.DebugMode = d.DebugMode
	if err := arb.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "dwire-sim: %s\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, d)
	logger.Infof("dwire-sim running in-memory against a loopback pair")

	hostRecv := make(chan byte, 256)
	hostSide.SetByteHandler(func(b byte) { hostRecv <- b })

	go func() {
		for {
			arb.Step()
			d.Step()
			d.Tick()
			time.Sleep(time.Millisecond)
		}
	}()

	runToyHost(hostSide, hostRecv, d.DebugKey)
}

func demoTree() *proctree.Node {
	return &proctree.Node{
		Name:  "app",
		State: "RUNNING",
		Children: []*proctree.Node{
			{Name: "transport", State: "RUNNING"},
			{Name: "dispatch", State: "RUNNING"},
		},
	}
}

// runToyHost plays the host side of the half-duplex exchange: send the
// debug-mode key, poll for the reply, then poll repeatedly, printing
// whatever content frames arrive.
func runToyHost(host link.Endpoint, recv <-chan byte, debugKey string) {
	sendCommand(host, recv, debugKey)
	for i := 0; i < 20; i++ {
		time.Sleep(50 * time.Millisecond)
		poll(host, recv)
	}
}

func sendCommand(host link.Endpoint, recv <-chan byte, line string) {
	frame := []byte{wire.FlowSchedToTarget, wire.ContentIDCmdIn}
	frame = append(frame, []byte(line)...)
	frame = append(frame, wire.ContentEnd)
	host.Send(frame)
}

func poll(host link.Endpoint, recv <-chan byte) {
	host.Send([]byte{wire.FlowTargetToSched})
	var line []byte
	timeout := time.After(200 * time.Millisecond)
	for {
		select {
		case b := <-recv:
			if b == wire.ContentEnd {
				fmt.Printf("dwire-sim: reply %q\n", string(line))
				return
			}
			line = append(line, b)
		case <-timeout:
			return
		}
	}
}
