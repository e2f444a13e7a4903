package transport

import (
	"runtime"
	"sync/atomic"

	"github.com/halcyon-embedded/dwire/pkg/link"
)

// TxGate tracks tx_pending (spec.md I1/P5) for a single Link Endpoint and is
// shared between the Transfer Arbiter and the Debug Dispatcher's
// log-immediate path (spec.md §4.6), since the LE contract allows only one
// registered TX-complete handler and both callers need to observe
// completion of sends that bypass the arbiter's own state machine.
type TxGate struct {
	pending atomic.Bool
}

// NewTxGate registers its own completion handler on le. Construct exactly
// one TxGate per Link Endpoint.
func NewTxGate(le link.Endpoint) *TxGate {
	g := &TxGate{}
	le.SetTXCompleteHandler(func() { g.pending.Store(false) })
	return g
}

// Pending reports tx_pending's current value.
func (g *TxGate) Pending() bool { return g.pending.Load() }

// Send marks tx_pending and hands data to le.
func (g *TxGate) Send(le link.Endpoint, data []byte) {
	g.pending.Store(true)
	le.Send(data)
}

// BusyWaitSend sends data and spins until on_tx_complete fires, per the
// bounded busy-wait spec.md §5 permits for log-immediate and
// synchronous-transfer sends.
func (g *TxGate) BusyWaitSend(le link.Endpoint, data []byte) {
	g.Send(le, data)
	for g.Pending() {
		runtime.Gosched()
	}
}
