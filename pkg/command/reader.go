package command

import "io"

// MaxLineLen bounds a buffered partial line.
const MaxLineLen = 256

// LineReader accumulates bytes from a non-blocking source into lines.
// A partial line persists across calls.
type LineReader struct {
	Source io.Reader

	buf []byte
	one [1]byte
}

// NewLineReader creates a LineReader.
func NewLineReader(src io.Reader) *LineReader {
	return &LineReader{Source: src, buf: make([]byte, 0, MaxLineLen)}
}

// ReadLine returns the next complete line without its terminator.
// ok is false when no complete line is available yet. ErrOverflow is
// returned once when a line fills the buffer; its bytes are discarded.
func (r *LineReader) ReadLine() (line string, ok bool, err error) {
	for len(r.buf) < MaxLineLen {
		n, err := r.Source.Read(r.one[:])
		if n == 0 || err != nil {
			return "", false, err
		}
		if r.one[0] == '\n' {
			line = string(r.buf)
			r.buf = r.buf[:0]
			return line, true, nil
		}
		r.buf = append(r.buf, r.one[0])
	}
	r.buf = r.buf[:0]
	return "", false, ErrOverflow
}

// Pending returns the number of buffered bytes of a partial line.
func (r *LineReader) Pending() int {
	return len(r.buf)
}
