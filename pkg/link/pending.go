package link

import "io"

// PendingWriteBuffer queues whole frames and releases them in bounded
// chunks so a slow UART never stalls the caller.
type PendingWriteBuffer struct {
	Limit int

	buf []byte
}

// Append queues p entirely or not at all.
func (b *PendingWriteBuffer) Append(p []byte) bool {
	if b.Limit > 0 && len(b.buf)+len(p) > b.Limit {
		return false
	}
	b.buf = append(b.buf, p...)
	return true
}

// Len returns the number of queued bytes.
func (b *PendingWriteBuffer) Len() int {
	return len(b.buf)
}

// Reset drops all queued bytes.
func (b *PendingWriteBuffer) Reset() {
	b.buf = b.buf[:0]
}

// Flush writes at most max bytes from the front of the queue and
// removes what was accepted.
func (b *PendingWriteBuffer) Flush(w io.Writer, max int) (int, error) {
	size := len(b.buf)
	if max > 0 && size > max {
		size = max
	}
	if size == 0 {
		return 0, nil
	}
	n, err := w.Write(b.buf[:size])
	if n > 0 {
		b.buf = append(b.buf[:0], b.buf[n:]...)
	}
	return n, err
}
