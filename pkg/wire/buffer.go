package wire

import "sync/atomic"

// Buffer is one of the four fixed-size classified byte buffers (InCmd,
// OutCmd, OutLog, OutProc). It owns its own validity bit so producers and
// consumers on either side of the ISR/foreground boundary can publish and
// observe "staged and must not be overwritten" without a mutex on the hot
// path (spec.md §5, design note §9).
//
// Len tracks how many bytes of Data are meaningful. Cap is fixed at
// construction and never changes.
type Buffer struct {
	Data  []byte
	Len   int
	valid atomic.Bool
}

// NewBuffer allocates a buffer with the given fixed capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{Data: make([]byte, capacity)}
}

func (b *Buffer) Cap() int { return len(b.Data) }

// Valid reports whether the buffer currently holds a staged payload
// (acquire semantics: safe to pair with a preceding SetValid's release).
func (b *Buffer) Valid() bool { return b.valid.Load() }

// SetValid publishes the buffer's current contents (release semantics).
func (b *Buffer) SetValid(v bool) { b.valid.Store(v) }

// TryReserve atomically transitions the buffer from not-valid to valid,
// returning false if another producer already reserved it (outbound
// collision, spec.md §7).
func (b *Buffer) TryReserve() bool {
	return b.valid.CompareAndSwap(false, true)
}

// Reset clears the buffer's length without touching validity.
func (b *Buffer) Reset() {
	b.Len = 0
}

// Payload returns the writable middle region of the buffer: one header
// byte is reserved at the front for the Content-ID and two trailer bytes
// at the end for the NUL terminator and CONTENT_END, per spec.md §4.3/§4.6.
// A producer writes into this slice and sets Len to the number of bytes
// used; Compose (pkg/transport) fills in the header and trailer in place.
func (b *Buffer) Payload() []byte {
	if len(b.Data) < 3 {
		return nil
	}
	return b.Data[1 : len(b.Data)-2]
}

// BufferSet bundles the four classified buffers with the sizes spec.md §3
// requires as minimums.
type BufferSet struct {
	InCmd   *Buffer
	OutCmd  *Buffer
	OutLog  *Buffer
	OutProc *Buffer
}

// NewBufferSet builds a BufferSet, applying the default minimum capacity
// whenever a requested capacity is smaller.
func NewBufferSet(inCmdCap, outCmdCap, outLogCap, outProcCap int) *BufferSet {
	return &BufferSet{
		InCmd:   NewBuffer(max(inCmdCap, DefaultInCmdCap)),
		OutCmd:  NewBuffer(max(outCmdCap, DefaultOutCmdCap)),
		OutLog:  NewBuffer(max(outLogCap, DefaultOutLogCap)),
		OutProc: NewBuffer(max(outProcCap, DefaultOutProcCap)),
	}
}

// Slot returns the buffer for the given classification.
func (s *BufferSet) Slot(slot BufSlot) *Buffer {
	switch slot {
	case SlotInCmd:
		return s.InCmd
	case SlotOutCmd:
		return s.OutCmd
	case SlotOutLog:
		return s.OutLog
	case SlotOutProc:
		return s.OutProc
	default:
		return nil
	}
}
