package packet

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableRouting(t *testing.T) {
	var got, tapped, fallback []ID
	table := NewTable("test").
		RegisterFunc(Ack, func(ctx context.Context, f *Frame) { got = append(got, f.ID) }).
		RegisterFunc(BoardGPS, func(ctx context.Context, f *Frame) { got = append(got, f.ID) })
	table.Tap = HandleFrameFunc(func(ctx context.Context, f *Frame) { tapped = append(tapped, f.ID) })

	ctx := context.Background()
	table.HandleFrame(ctx, &Frame{ID: Ack})
	table.HandleFrame(ctx, &Frame{ID: BoardBaro})
	table.HandleFrame(ctx, &Frame{ID: BoardGPS})
	require.Equal(t, []ID{Ack, BoardGPS}, got)
	require.Equal(t, []ID{Ack, BoardBaro, BoardGPS}, tapped)

	table.Fallback = HandleFrameFunc(func(ctx context.Context, f *Frame) { fallback = append(fallback, f.ID) })
	table.HandleFrame(ctx, &Frame{ID: BoardBaro})
	require.Equal(t, []ID{BoardBaro}, fallback)

	_, ok := table.Lookup(Ack)
	require.True(t, ok)
	_, ok = table.Lookup(BoardAnalog)
	require.False(t, ok)
}

// trickleReader returns at most n bytes per Read and 0 when drained.
type trickleReader struct {
	data []byte
	n    int
}

func (r *trickleReader) Read(p []byte) (int, error) {
	n := r.n
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data) {
		n = len(r.data)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestReaderPoll(t *testing.T) {
	var stream []byte
	for i := 0; i < 5; i++ {
		stream = append(stream, mustEncode(t, IMU, bytes.Repeat([]byte{byte(i)}, 40))...)
	}
	var frames []*Frame
	r := NewReader(&bytes.Buffer{}, HandleFrameFunc(func(ctx context.Context, f *Frame) {
		frames = append(frames, f)
	}))

	// each poll sees at most 30 bytes, so frames complete across polls
	r.Source = &trickleReader{data: stream, n: 30}
	var total int
	for i := 0; i < 20; i++ {
		n, err := r.Poll(context.Background())
		require.NoError(t, err)
		total += n
	}
	require.Equal(t, 5, total)
	require.Len(t, frames, 5)
	for i, f := range frames {
		require.Equal(t, bytes.Repeat([]byte{byte(i)}, 40), f.Payload)
	}
}

func TestReaderPollDrainsFullReads(t *testing.T) {
	var stream []byte
	for i := 0; i < 10; i++ {
		stream = append(stream, mustEncode(t, Filter, make([]byte, 50))...)
	}
	var count int
	r := NewReader(&trickleReader{data: stream, n: 1 << 20}, HandleFrameFunc(func(context.Context, *Frame) {
		count++
	}))
	n, err := r.Poll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Equal(t, 10, count)
}

func TestReaderPollError(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), nil)
	_, err := r.Poll(context.Background())
	require.Equal(t, io.EOF, err)
}

func TestWriterSend(t *testing.T) {
	var buf bytes.Buffer
	var tapped []*Frame
	w := &Writer{Dest: &buf, Tap: HandleFrameFunc(func(ctx context.Context, f *Frame) {
		tapped = append(tapped, f)
	})}
	require.NoError(t, w.Send(context.Background(), APStatus, []byte{9}))
	require.Equal(t, mustEncode(t, APStatus, []byte{9}), buf.Bytes())
	require.Equal(t, []*Frame{{ID: APStatus, Payload: []byte{9}}}, tapped)

	require.Equal(t, ErrPayloadTooLarge, w.Send(context.Background(), APStatus, make([]byte, 300)))
	require.Len(t, tapped, 1)
}
