package transport

import "github.com/halcyon-embedded/dwire/pkg/wire"

// Compose builds a frame in place inside buf and returns the bytes to hand
// to the Link Endpoint, per spec.md §4.3:
//  1. Content-ID at offset 0.
//  2. The payload, bounded by capacity-3 (the Payload region).
//  3. NUL.
//  4. CONTENT_END.
//
// If buf is too small to hold header+NUL+terminator (capacity < 3), the
// Content-ID is forced to None and a zero-payload placeholder is emitted.
func Compose(buf *wire.Buffer, id wire.ContentID) []byte {
	cap := buf.Cap()
	if cap < 3 {
		out := make([]byte, cap)
		if cap > 0 {
			out[0] = byte(wire.ContentNone)
		}
		return out
	}

	maxPayload := cap - 3
	n := buf.Len
	if n > maxPayload {
		n = maxPayload
	}

	buf.Data[0] = byte(id)
	buf.Data[1+n] = 0x00
	buf.Data[2+n] = wire.ContentEnd

	return buf.Data[:3+n]
}
