package packet

import (
	"context"
	"io"
)

const readChunk = 64

// Reader drains a non-blocking source into a Parser and hands
// completed frames to Handler.
type Reader struct {
	Source  io.Reader
	Parser  *Parser
	Handler Handler

	buf [readChunk]byte
}

// NewReader creates a Reader with its own Parser.
func NewReader(src io.Reader, h Handler) *Reader {
	return &Reader{Source: src, Parser: &Parser{}, Handler: h}
}

// Poll reads until the source has nothing more to offer and returns
// the number of frames dispatched. A short read ends the poll.
func (r *Reader) Poll(ctx context.Context) (int, error) {
	if r.Parser == nil {
		r.Parser = &Parser{}
	}
	var frames int
	for {
		n, err := r.Source.Read(r.buf[:])
		for _, b := range r.buf[:n] {
			if f := r.Parser.Feed(b); f != nil {
				frames++
				if h := r.Handler; h != nil {
					h.HandleFrame(ctx, f)
				}
			}
		}
		if err != nil {
			return frames, err
		}
		if n < len(r.buf) {
			return frames, nil
		}
	}
}

// Writer frames payloads onto a destination.
type Writer struct {
	Dest io.Writer
	// Tap sees every frame successfully handed to Dest.
	Tap Handler
}

// Send encodes and writes one frame.
func (w *Writer) Send(ctx context.Context, id ID, payload []byte) error {
	b, err := Encode(id, payload)
	if err != nil {
		return err
	}
	if _, err = w.Dest.Write(b); err != nil {
		return err
	}
	if tap := w.Tap; tap != nil {
		tap.HandleFrame(ctx, &Frame{ID: id, Payload: payload})
	}
	return nil
}
