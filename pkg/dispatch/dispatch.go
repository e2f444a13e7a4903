// Package dispatch implements the Debug Dispatcher (spec.md §4.6): the
// sub-state machine that interprets received commands against a Command
// Registry, composes replies into OutCmd, periodically snapshots a
// process tree into OutProc, and enqueues log entries into OutLog with an
// optional immediate-send path.
//
// Grounded on appserver.go's inline command-token dispatch (BytesCut,
// EqualFold comparison, per-session reply composition) generalized from a
// fixed if/else chain to a registry lookup, and on agwlib.go's
// read-dispatch loop for the overall CmdRcvdWait/CmdInterpret/CmdSendStart
// cadence.
package dispatch

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/halcyon-embedded/dwire/pkg/link"
	"github.com/halcyon-embedded/dwire/pkg/logging"
	"github.com/halcyon-embedded/dwire/pkg/proctree"
	"github.com/halcyon-embedded/dwire/pkg/registry"
	"github.com/halcyon-embedded/dwire/pkg/transport"
	"github.com/halcyon-embedded/dwire/pkg/wire"
)

// DefaultDebugKey is the special token that toggles debug mode, per
// spec.md §4.6.
const DefaultDebugKey = "aaaaa"

// DefaultProcCadence is the number of Tick calls between process-tree
// emissions (spec.md §4.6's "≈5000 ticks").
const DefaultProcCadence = 5000

// CmdState is the Debug Dispatcher's command sub-state-machine state.
type CmdState int

const (
	CmdRcvdWait CmdState = iota
	CmdInterpret
	CmdSendStart
)

func (s CmdState) String() string {
	switch s {
	case CmdRcvdWait:
		return "CmdRcvdWait"
	case CmdInterpret:
		return "CmdInterpret"
	case CmdSendStart:
		return "CmdSendStart"
	default:
		return "Unknown"
	}
}

// Dispatcher is the Debug Dispatcher. It owns the debug-mode latch, the
// log-level filter, the infoHelp pagination cursor, and the process-tree
// emission cadence counter.
type Dispatcher struct {
	Bufs     *wire.BufferSet
	Registry *registry.Registry
	Tree     proctree.Tree
	LE       link.Endpoint
	Gate     *transport.TxGate

	// FC is the Frame Codec guarding the wire-level InCmd lifecycle. The
	// dispatcher calls FC.ClearCmdInFlight when it silently drops a
	// command outside debug mode, since that path releases InCmd without
	// ever producing the OutCmd reply the Arbiter would otherwise clear
	// cmdInFlight on (pkg/transport.FrameCodec's cmdInFlight field doc).
	FC *transport.FrameCodec

	// SyncTransfer mirrors the synchronous-transfer config flag: when set,
	// OnLog synthesizes an unsolicited turn and busy-waits it through
	// immediately rather than waiting for the arbiter's next poll
	// (spec.md §4.6, I5).
	SyncTransfer bool

	// DebugKey is the token that toggles debug mode. Defaults to
	// DefaultDebugKey if left empty.
	DebugKey string

	// ProcCadence is the tick threshold for process-tree emission.
	// Defaults to DefaultProcCadence if zero.
	ProcCadence int

	// OnResetRequested, if set, is invoked by the built-in sysReset
	// command; the dispatcher never performs the reset itself (spec.md
	// §1 treats the reboot mechanism as an external collaborator).
	OnResetRequested func()

	state CmdState

	debugMode   atomic.Bool
	logLevel    atomic.Int32
	logOverflow atomic.Bool

	helpCursor int
	procTicks  int

	startedAt time.Time
}

// New builds a Dispatcher over bufs/reg/tree/le/gate/fc and registers the
// built-in commands (infoHelp, levelLogSys, sysUptime, sysReset).
func New(bufs *wire.BufferSet, reg *registry.Registry, tree proctree.Tree, le link.Endpoint, gate *transport.TxGate, fc *transport.FrameCodec) *Dispatcher {
	d := &Dispatcher{
		Bufs:     bufs,
		Registry: reg,
		Tree:     tree,
		LE:       le,
		Gate:     gate,
		FC:       fc,
	}
	d.logLevel.Store(int32(logging.DefaultLevel))
	d.startedAt = time.Now()
	d.registerBuiltins()
	return d
}

func (d *Dispatcher) debugKey() string {
	if d.DebugKey == "" {
		return DefaultDebugKey
	}
	return d.DebugKey
}

func (d *Dispatcher) procCadence() int {
	if d.ProcCadence == 0 {
		return DefaultProcCadence
	}
	return d.ProcCadence
}

// DebugMode reports whether the target is currently in debug mode. Shared
// with the Transfer Arbiter's FlowWait gate.
func (d *Dispatcher) DebugMode() bool { return d.debugMode.Load() }

// LogOverflow reports whether a log entry has been dropped since the flag
// was last cleared (ClearLogOverflow).
func (d *Dispatcher) LogOverflow() bool { return d.logOverflow.Load() }

// ClearLogOverflow clears the overflow flag.
func (d *Dispatcher) ClearLogOverflow() { d.logOverflow.Store(false) }

// State reports the dispatcher's current sub-state (for tests/diagnostics).
func (d *Dispatcher) State() CmdState { return d.state }

func (d *Dispatcher) registerBuiltins() {
	d.Registry.Register("infoHelp", "?", "paginated command listing", "info", d.cmdInfoHelp)
	d.Registry.Register("levelLogSys", "lls", "set log severity filter 0-5", "info", d.cmdLevelLogSys)
	d.Registry.Register("sysUptime", "up", "time since startup", "sys", d.cmdSysUptime)
	d.Registry.Register("sysReset", "", "request a target reset", "sys", d.cmdSysReset)
}

func (d *Dispatcher) cmdInfoHelp(_ string, w *registry.ReplyWriter) {
	e, ok := d.Registry.EntryAt(d.helpCursor)
	if !ok {
		d.helpCursor = 0
		return
	}
	fmt.Fprintf(w, "%s|%s|%s|%s", e.ID, e.Shortcut, e.Desc, e.Group)
	d.helpCursor++
}

func (d *Dispatcher) cmdLevelLogSys(args string, w *registry.ReplyWriter) {
	n, err := strconv.Atoi(firstToken(args))
	if err != nil || n < 0 || n > 5 {
		n = int(logging.DefaultLevel)
	}
	d.logLevel.Store(int32(n))
	fmt.Fprintf(w, "System log level set to %d", n)
}

func (d *Dispatcher) cmdSysUptime(_ string, w *registry.ReplyWriter) {
	fmt.Fprintf(w, "%s", time.Since(d.startedAt).Round(time.Second))
}

func (d *Dispatcher) cmdSysReset(_ string, w *registry.ReplyWriter) {
	if d.OnResetRequested != nil {
		d.OnResetRequested()
	}
	w.WriteString("Resetting")
}

func firstToken(s string) string {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t':
			return s[:i]
		}
	}
	return s
}
