// Package transport implements the Frame Codec receive state machine and
// outbound composer (spec.md §4.2/§4.3) and the Transfer Arbiter half-duplex
// turn-taking state machine (spec.md §4.4), generalized from the teacher's
// kiss_frame_t receive automaton (kiss_frame.go) and the AGWPE
// read-dispatch loop (agwlib.go).
package transport

import (
	"github.com/halcyon-embedded/dwire/pkg/wire"
)

// RcvState is the Frame Codec's receive automaton state, modeled as a
// tagged variant per spec.md design note §9 rather than an ad-hoc integer.
type RcvState int

const (
	RcvStart RcvState = iota
	RcvContentId
	RcvContentData
)

func (s RcvState) String() string {
	switch s {
	case RcvStart:
		return "RcvStart"
	case RcvContentId:
		return "RcvContentId"
	case RcvContentData:
		return "RcvContentData"
	default:
		return "RcvUnknown"
	}
}

// FrameCodec owns the four classified buffers and the byte-level receive
// state machine. OnByte is driven from the Link Endpoint's byte-received
// callback (ISR context in spec.md's terms); it is not reentrant and must
// be called with bytes strictly in arrival order (spec.md §5).
type FrameCodec struct {
	Bufs *wire.BufferSet

	state RcvState // touched only from OnByte's caller context; single producer.

	// flowTurnRequested is BufId[0]: latched by OnByte when the peer grants
	// an outbound turn, consumed by the Transfer Arbiter.
	flowTurnRequested latch

	// cmdInPending is BufId[1]'s arrival edge: latched by OnByte once a
	// complete inbound command line has been appended to InCmd, consumed
	// exactly once by the arbiter's FlowWait→CmdReceive transition.
	cmdInPending latch

	// cmdInFlight is BufId[1] itself: unlike cmdInPending it is not
	// edge-triggered and stays set across the entire pending-command
	// lifetime, from the moment the arrival edge is consumed until either
	// CmdReceive's termination scan aborts (no CONTENT_END found) or the
	// command's reply is actually sent (Arbiter's ContentOutSent, OutCmd
	// case) or the dispatcher silently drops the command outside debug
	// mode. onByteContentId guards against accepting a new command frame
	// on this flag as well as on InCmd.Valid(), because InCmd.Valid() alone
	// leaves a window open between the arrival edge being consumed and
	// CmdReceive's later tick actually validating the buffer (see
	// onByteContentId).
	cmdInFlight latch
}

// latch is a one-bit publish/consume flag with the release/acquire pairing
// design note §9 calls for on weakly-ordered targets — no mutex on the hot
// path, matching spec.md §5.
type latch struct{ flag boolFlag }

func NewFrameCodec(bufs *wire.BufferSet) *FrameCodec {
	return &FrameCodec{Bufs: bufs}
}

// State reports the codec's current receive state (for tests/diagnostics).
func (fc *FrameCodec) State() RcvState { return fc.state }

// FlowTurnRequested reports whether the peer has granted an outbound turn
// since the last consumption.
func (fc *FrameCodec) FlowTurnRequested() bool { return fc.flowTurnRequested.get() }

// ConsumeFlowTurn clears the outbound-turn latch and reports whether it had
// been set.
func (fc *FrameCodec) ConsumeFlowTurn() bool { return fc.flowTurnRequested.consume() }

// CmdInPending reports whether a complete inbound command line has arrived
// and is awaiting the arbiter's CmdReceive termination step.
func (fc *FrameCodec) CmdInPending() bool { return fc.cmdInPending.get() }

// ConsumeCmdComplete clears the raw arrival edge and reports whether it had
// been set, arming cmdInFlight for the remainder of the pending command's
// lifetime in the same motion. Design note §9 resolves the spec's BufId[1]
// arrival edge as consumed exactly once, on the FlowWait→CmdReceive
// transition, so CmdReceive is not re-triggered against an already-
// terminated buffer on every subsequent FlowWait tick; the persistent
// "command outstanding" state that the spec's BufId[1] otherwise tracks
// lives on in cmdInFlight (see its field doc) and is not re-derived from
// InCmd.Valid().
func (fc *FrameCodec) ConsumeCmdComplete() bool {
	fired := fc.cmdInPending.consume()
	if fired {
		fc.cmdInFlight.set(true)
	}
	return fired
}

// CmdInFlight reports whether a command is still being processed somewhere
// between the arrival edge and its reply actually going out (or being
// silently dropped). See the cmdInFlight field doc.
func (fc *FrameCodec) CmdInFlight() bool { return fc.cmdInFlight.get() }

// ClearCmdInFlight ends the pending command's lifetime, re-arming
// onByteContentId to accept a new CMD_IN frame. Called from CmdReceive's
// abort path, from the Arbiter when an OutCmd reply finishes transmission,
// and from the Dispatcher when a command is silently dropped outside debug
// mode (spec.md §4.6) without ever producing a reply.
func (fc *FrameCodec) ClearCmdInFlight() { fc.cmdInFlight.set(false) }

// OnByte processes one byte from the peer, advancing the receive state
// machine. Reset to RcvStart happens at every frame boundary and on any
// protocol error (spec.md §3's transient-state lifecycle).
func (fc *FrameCodec) OnByte(b byte) {
	switch fc.state {
	case RcvStart:
		fc.onByteStart(b)
	case RcvContentId:
		fc.onByteContentId(b)
	case RcvContentData:
		fc.onByteContentData(b)
	}
}

func (fc *FrameCodec) onByteStart(b byte) {
	switch b {
	case wire.FlowTargetToSched:
		fc.flowTurnRequested.set(true)
	case wire.FlowSchedToTarget:
		fc.state = RcvContentId
	default:
		// Protocol desync: unexpected byte, drop it, remain in RcvStart.
	}
}

func (fc *FrameCodec) onByteContentId(b byte) {
	if b == wire.ContentIDCmdIn && !fc.Bufs.InCmd.Valid() && !fc.cmdInFlight.get() {
		fc.Bufs.InCmd.Reset()
		fc.state = RcvContentData
		return
	}
	// Inbound collision or unexpected content-id: abort the frame,
	// preserving any already-pending command (spec.md §4.2). Guarding on
	// cmdInFlight as well as InCmd.Valid() closes the reentrancy window
	// between the arrival edge being consumed (ConsumeCmdComplete) and
	// CmdReceive actually validating InCmd on a later tick.
	fc.state = RcvStart
}

func (fc *FrameCodec) onByteContentData(b byte) {
	in := fc.Bufs.InCmd

	if in.Len >= in.Cap()-1 {
		// Overrun: capacity exhausted without CONTENT_END. Discard the
		// frame silently and return to RcvStart (spec.md P6).
		in.Reset()
		fc.state = RcvStart
		return
	}

	in.Data[in.Len] = b
	in.Len++

	if b == wire.ContentEnd {
		fc.cmdInPending.set(true)
		fc.state = RcvStart
	}
}
