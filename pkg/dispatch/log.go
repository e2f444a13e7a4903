package dispatch

import (
	"github.com/halcyon-embedded/dwire/pkg/logging"
	"github.com/halcyon-embedded/dwire/pkg/transport"
	"github.com/halcyon-embedded/dwire/pkg/wire"
)

var flowTargetToSchedFrame = []byte{wire.FlowTargetToSched}

func composeLog(buf *wire.Buffer) []byte {
	return transport.Compose(buf, wire.ContentLog)
}

// OnLog implements logging.Sink (spec.md §4.6): entries above the current
// log-level filter are dropped; a full OutLog sets the overflow flag
// instead of overwriting; otherwise the entry is staged into OutLog and,
// in synchronous-transfer mode, sent immediately bypassing the arbiter.
func (d *Dispatcher) OnLog(severity logging.Severity, entry string) {
	if int32(severity) > d.logLevel.Load() {
		return
	}

	out := d.Bufs.OutLog
	if out.Valid() {
		d.logOverflow.Store(true)
		return
	}

	payload := out.Payload()
	n := copy(payload, entry)
	out.Len = n
	out.SetValid(true)

	if d.SyncTransfer {
		d.sendLogImmediate()
	}
}

// sendLogImmediate synthesizes the unsolicited turn spec.md §4.6
// describes: the target itself sends FLOW_TARGET_TO_SCHED, busy-waits
// completion, composes and sends the log frame, busy-waits that too, then
// releases OutLog. This bypasses the Transfer Arbiter's state machine
// entirely (spec.md I5) but still honors I1 via the shared TxGate.
func (d *Dispatcher) sendLogImmediate() {
	d.Gate.BusyWaitSend(d.LE, flowTargetToSchedFrame)
	frame := composeLog(d.Bufs.OutLog)
	d.Gate.BusyWaitSend(d.LE, frame)
	d.Bufs.OutLog.SetValid(false)
	d.Bufs.OutLog.Reset()
}
