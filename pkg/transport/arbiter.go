package transport

import (
	"errors"
	"sync/atomic"

	"github.com/halcyon-embedded/dwire/pkg/link"
	"github.com/halcyon-embedded/dwire/pkg/wire"
)

// BufSlotNone is the sentinel "no buffer chosen" value used in place of a
// wire.BufSlot where None was selected or nothing is in flight.
const BufSlotNone wire.BufSlot = -1

// ErrAlreadyStarted is returned by Arbiter.Start on a second call, enforcing
// the singleton lifecycle spec.md §5/§7 requires of the Transfer Arbiter.
var ErrAlreadyStarted = errors.New("transport: arbiter already started")

// TAState is the Transfer Arbiter's half-duplex turn-taking state, modeled
// as a tagged variant per design note §9 rather than a bare bool.
type TAState int

const (
	TAStart TAState = iota
	TAFlowWait
	TAContentOutSend
	TAContentOutSentWait
	TAContentOutSent
	TACmdReceive
)

func (s TAState) String() string {
	switch s {
	case TAStart:
		return "Start"
	case TAFlowWait:
		return "FlowWait"
	case TAContentOutSend:
		return "ContentOutSend"
	case TAContentOutSentWait:
		return "ContentOutSentWait"
	case TAContentOutSent:
		return "ContentOutSent"
	case TACmdReceive:
		return "CmdReceive"
	default:
		return "Unknown"
	}
}

// Arbiter is the Transfer Arbiter: the half-duplex turn-taking state machine
// that decides, on every FLOW_TARGET_TO_SCHED grant, which of OutCmd/OutLog/
// OutProc (priority CmdOut > Log > Proc, spec.md I6) gets the wire, and that
// terminates and publishes a completed inbound command line.
//
// Grounded on appserver.go's inline command dispatch loop and agwlib.go's
// read-dispatch loop (both single-threaded, single-outstanding-request
// designs) generalized to the spec's explicit state labels.
type Arbiter struct {
	fc   *FrameCodec
	bufs *wire.BufferSet
	le   link.Endpoint

	// DebugMode reports whether the target is currently in debug mode
	// (toggled by the Debug Dispatcher's key sequence, spec.md §4.6). A
	// target outside debug mode never takes an outbound turn.
	DebugMode func() bool

	// SyncTransfer mirrors the synchronous-transfer config flag (spec.md
	// §6): when set, ContentOutSend busy-waits on tx_pending instead of
	// yielding through ContentOutSentWait, matching the log-immediate path's
	// own busy-wait discipline (spec.md §4.6) in the general case too.
	SyncTransfer bool

	gate *TxGate

	state   TAState
	started atomic.Bool

	chosen wire.BufSlot // buffer selected by the in-flight ContentOutSend, or BufSlotNone.

	noneBuf *wire.Buffer // scratch buffer for a zero-payload Content-ID=None frame.
}

// NewArbiter builds an Arbiter over fc/bufs, sending composed frames to le
// through gate. gate must be the same TxGate the Debug Dispatcher's
// log-immediate path uses, since the LE contract allows only one
// TX-complete handler.
func NewArbiter(fc *FrameCodec, bufs *wire.BufferSet, le link.Endpoint, gate *TxGate) *Arbiter {
	return &Arbiter{
		fc:      fc,
		bufs:    bufs,
		le:      le,
		gate:    gate,
		chosen:  BufSlotNone,
		noneBuf: wire.NewBuffer(3),
	}
}

// Start transitions the arbiter from Start to FlowWait. It is an error to
// call Start twice on the same arbiter (spec.md §7's singleton violation).
func (a *Arbiter) Start() error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	a.state = TAFlowWait
	return nil
}

// State reports the arbiter's current state (for tests/diagnostics).
func (a *Arbiter) State() TAState { return a.state }

// Step runs one non-blocking transition of the arbiter's state machine. It
// is meant to be called repeatedly from the cooperative scheduler's main
// loop (spec.md §5): most states either transition immediately or, finding
// nothing to do, leave the state unchanged and return, yielding the tick.
func (a *Arbiter) Step() {
	switch a.state {
	case TAStart:
		// Reached only if Start was never called; nothing to do.
	case TAFlowWait:
		a.stepFlowWait()
	case TAContentOutSend:
		a.stepContentOutSend()
	case TAContentOutSentWait:
		if !a.gate.Pending() {
			a.state = TAContentOutSent
		}
	case TAContentOutSent:
		a.stepContentOutSent()
	case TACmdReceive:
		a.stepCmdReceive()
		a.state = TAFlowWait
	}
}

func (a *Arbiter) stepFlowWait() {
	if a.fc.CmdInPending() {
		a.fc.ConsumeCmdComplete()
		a.state = TACmdReceive
		return
	}

	if a.DebugMode != nil && a.DebugMode() && a.fc.ConsumeFlowTurn() {
		a.state = TAContentOutSend
		return
	}

	// Nothing to do this tick: yield.
}

// selectOutbound applies the CmdOut > Log > Proc priority (spec.md I6),
// suppressing Log and Proc while an inbound command is outstanding (i.e.
// InCmd is valid and awaiting the dispatcher's reply) so the reply always
// wins the next turn it's ready on.
func (a *Arbiter) selectOutbound() (wire.BufSlot, wire.ContentID) {
	cmdOutstanding := a.bufs.InCmd.Valid()

	if a.bufs.OutCmd.Valid() {
		return wire.SlotOutCmd, wire.ContentCmd
	}
	if a.bufs.OutLog.Valid() && !cmdOutstanding {
		return wire.SlotOutLog, wire.ContentLog
	}
	if a.bufs.OutProc.Valid() && !cmdOutstanding {
		return wire.SlotOutProc, wire.ContentProc
	}
	return BufSlotNone, wire.ContentNone
}

func (a *Arbiter) stepContentOutSend() {
	slot, id := a.selectOutbound()
	a.chosen = slot

	var frame []byte
	if slot < 0 {
		a.noneBuf.Reset()
		frame = Compose(a.noneBuf, wire.ContentNone)
	} else {
		frame = Compose(a.bufs.Slot(slot), id)
	}

	if a.SyncTransfer {
		a.gate.BusyWaitSend(a.le, frame)
		a.state = TAContentOutSent
		return
	}

	a.gate.Send(a.le, frame)
	a.state = TAContentOutSentWait
}

func (a *Arbiter) stepContentOutSent() {
	if a.chosen >= 0 {
		buf := a.bufs.Slot(a.chosen)
		buf.SetValid(false)
		buf.Reset()
	}
	if a.chosen == wire.SlotOutCmd {
		// The command's reply has now actually gone out: end the pending
		// command's lifetime so onByteContentId accepts a new CMD_IN frame.
		a.fc.ClearCmdInFlight()
	}
	a.chosen = -1
	a.state = TAFlowWait
}

// stepCmdReceive terminates the inbound line by overwriting CONTENT_END
// with NUL (a bounded scan, P6) and marks InCmd valid. If CONTENT_END is
// not found — the arrival latch fired on a frame the codec already
// discarded for overrun — the buffer is simply reset and cmdInFlight is
// cleared immediately: there is no reply to wait for, so nothing should
// keep onByteContentId closed to the next command.
func (a *Arbiter) stepCmdReceive() {
	in := a.bufs.InCmd

	idx := -1
	for i := 0; i < in.Len; i++ {
		if in.Data[i] == wire.ContentEnd {
			idx = i
			break
		}
	}

	if idx < 0 {
		in.Reset()
		a.fc.ClearCmdInFlight()
		return
	}

	in.Data[idx] = 0x00
	in.Len = idx
	in.SetValid(true)
}
