package dispatch

// Tick advances the process-tree emission counter and, on reaching the
// configured cadence while in debug mode with OutProc free, renders a
// fresh snapshot (spec.md §4.6). Call once per scheduler tick, independent
// of Step's command sub-state-machine.
func (d *Dispatcher) Tick() {
	if d.Tree == nil {
		return
	}

	d.procTicks++
	if d.procTicks < d.procCadence() {
		return
	}
	d.procTicks = 0

	if !d.debugMode.Load() {
		return
	}

	out := d.Bufs.OutProc
	if out.Valid() {
		// Arbiter is still holding a previous snapshot: skip this cycle
		// rather than overwrite it (spec.md §7's outbound collision).
		return
	}

	out.SetValid(true)
	n := d.Tree.TreeRender(out.Payload(), true, true)
	out.Len = n
}
