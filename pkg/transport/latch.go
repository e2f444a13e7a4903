package transport

import "sync/atomic"

// boolFlag is a thin atomic.Bool alias kept distinct so latch's intent
// (publish/consume, not a general boolean) stays legible at the call site.
type boolFlag struct{ v atomic.Bool }

func (f *boolFlag) get() bool { return f.v.Load() }

func (f *boolFlag) set(val bool) { f.v.Store(val) }

// consume atomically reads and clears the flag, reporting its prior value.
func (f *boolFlag) consume() bool { return f.v.Swap(false) }

func (l *latch) get() bool     { return l.flag.get() }
func (l *latch) set(v bool)    { l.flag.set(v) }
func (l *latch) consume() bool { return l.flag.consume() }
