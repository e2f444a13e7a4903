package registry

// ReplyWriter is the bounded writer abstraction design note §9 calls for
// in place of the original's raw (buf, buf_end) pointer pair: handlers
// write through it and cannot write past the backing slice, which the
// caller sizes to the reserved OutCmd payload region (buf_end - 2, per
// spec.md §4.3/§4.6).
type ReplyWriter struct {
	buf []byte
	n   int
}

// NewReplyWriter wraps buf, a caller-owned slice with no existing content.
func NewReplyWriter(buf []byte) *ReplyWriter {
	return &ReplyWriter{buf: buf}
}

// Write implements io.Writer, truncating silently at capacity rather than
// returning an error — a full reply buffer is not a handler failure.
func (w *ReplyWriter) Write(p []byte) (int, error) {
	room := len(w.buf) - w.n
	if room <= 0 {
		return 0, nil
	}
	if len(p) > room {
		p = p[:room]
	}
	copy(w.buf[w.n:], p)
	w.n += len(p)
	return len(p), nil
}

// WriteString is the string-argument convenience most handlers use.
func (w *ReplyWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Len reports how many bytes have been written so far.
func (w *ReplyWriter) Len() int { return w.n }

// Bytes returns the written prefix of the backing slice.
func (w *ReplyWriter) Bytes() []byte { return w.buf[:w.n] }

// Reset discards any written content without reallocating.
func (w *ReplyWriter) Reset() { w.n = 0 }
