package dispatch

import "github.com/halcyon-embedded/dwire/pkg/registry"

// Step runs one non-blocking transition of the CmdRcvdWait/CmdInterpret/
// CmdSendStart sub-state-machine (spec.md §4.6), meant to be called
// repeatedly from the cooperative scheduler's main loop alongside the
// Transfer Arbiter's own Step.
func (d *Dispatcher) Step() {
	switch d.state {
	case CmdRcvdWait:
		if d.Bufs.InCmd.Valid() && !d.Bufs.OutCmd.Valid() {
			d.state = CmdInterpret
		}
	case CmdInterpret:
		d.state = d.interpret()
	case CmdSendStart:
		d.sendStart()
		d.state = CmdRcvdWait
	}
}

// interpret handles one received command line and returns the next state.
func (d *Dispatcher) interpret() CmdState {
	in := d.Bufs.InCmd
	line := string(in.Data[:in.Len])

	w := registry.NewReplyWriter(d.Bufs.OutCmd.Payload())

	if line == d.debugKey() {
		next := !d.debugMode.Load()
		d.debugMode.Store(next)
		n := 0
		if next {
			n = 1
		}
		fwriteDebugModeReply(w, n)
		d.Bufs.OutCmd.Len = w.Len()
		return CmdSendStart
	}

	if !d.debugMode.Load() {
		// Silent drop protects production firmware (spec.md §4.6): no
		// reply, and InCmd is released directly rather than routed
		// through CmdSendStart's OutCmd-publish path. Since no OutCmd
		// reply will ever go out for this command, the Arbiter never gets
		// a ContentOutSent(OutCmd) tick to clear cmdInFlight on — clear it
		// here instead, or the wire-level overwrite guard stays closed
		// forever.
		in.SetValid(false)
		d.FC.ClearCmdInFlight()
		return CmdRcvdWait
	}

	entry, args, ok := d.Registry.Lookup(line)
	if !ok {
		w.WriteString("Unknown command")
	} else {
		entry.Handler(args, w)
		// infoHelp's empty reply past the end of the table is its own
		// answer, not a handler that forgot to reply.
		if w.Len() == 0 && entry.ID != "infoHelp" {
			w.WriteString("Done")
		}
	}

	d.Bufs.OutCmd.Len = w.Len()
	return CmdSendStart
}

func fwriteDebugModeReply(w *registry.ReplyWriter, n int) {
	w.WriteString("Debug mode ")
	if n == 1 {
		w.WriteString("1")
	} else {
		w.WriteString("0")
	}
}

func (d *Dispatcher) sendStart() {
	in := d.Bufs.InCmd
	if len(in.Data) > 0 {
		in.Data[0] = 0x00
	}
	d.Bufs.OutCmd.SetValid(true)
	in.SetValid(false)
}
