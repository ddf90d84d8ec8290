package command

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type observed struct {
	outcome Outcome
	err     error
}

// linkBuffer reads like a non-blocking link: 0 bytes when empty.
type linkBuffer struct {
	bytes.Buffer
}

func (b *linkBuffer) Read(p []byte) (int, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	return b.Buffer.Read(p)
}

type channelFixture struct {
	src      *linkBuffer
	ch       *Channel
	executed []Command
	observed []observed
}

func newChannelFixture() *channelFixture {
	f := &channelFixture{src: &linkBuffer{}}
	f.ch = NewChannel(NewLineReader(f.src), ExecuteFunc(func(ctx context.Context, cmd Command) {
		f.executed = append(f.executed, cmd)
	}))
	f.ch.Observer = ObserveFunc(func(line string, outcome Outcome, err error) {
		f.observed = append(f.observed, observed{outcome, err})
	})
	f.ch.Clock = func() time.Time { return time.Unix(1000, 0) }
	return f
}

func (f *channelFixture) poll(t *testing.T) int {
	n, err := f.ch.Poll(context.Background())
	require.NoError(t, err)
	return n
}

func TestChannelDedup(t *testing.T) {
	f := newChannelFixture()
	sentence := Encode(7, "ap,agl-ft,300")
	f.src.WriteString(sentence)
	f.src.WriteString(sentence)
	require.Equal(t, 1, f.poll(t))
	require.Equal(t, []Command{AutopilotTarget{Target: TargetAGLFt, Value: 300}}, f.executed)
	require.Equal(t, []observed{{Executed, nil}, {Duplicate, nil}}, f.observed)

	seq, at := f.ch.LastSequence()
	require.Equal(t, 7, seq)
	require.Equal(t, time.Unix(1000, 0), at)

	// retransmitted across ticks is still a duplicate
	f.src.WriteString(sentence)
	require.Zero(t, f.poll(t))
	require.Len(t, f.executed, 1)
}

func TestChannelChecksumRejection(t *testing.T) {
	f := newChannelFixture()
	good := Encode(1, "hb")
	bad := []byte(good)
	bad[2] = 'x' // hb -> xb
	f.src.Write(bad)
	require.Zero(t, f.poll(t))
	require.Empty(t, f.executed)
	require.Equal(t, []observed{{Malformed, ErrChecksum}}, f.observed)

	seq, _ := f.ch.LastSequence()
	require.Equal(t, NoSequence, seq)
}

func TestChannelRejectedBodyRecordsSequence(t *testing.T) {
	f := newChannelFixture()
	f.src.WriteString(Encode(3, "ap,heading,90"))
	f.src.WriteString(Encode(3, "ap,heading,90"))
	require.Equal(t, 1, f.poll(t))
	require.Empty(t, f.executed)
	require.Len(t, f.observed, 2)
	require.Equal(t, Rejected, f.observed[0].outcome)
	require.Equal(t, Duplicate, f.observed[1].outcome)
	seq, _ := f.ch.LastSequence()
	require.Equal(t, 3, seq)
}

func TestChannelSequenceOrder(t *testing.T) {
	f := newChannelFixture()
	for _, seq := range []int{1, 2, 2, 1, 1} {
		f.src.WriteString(Encode(seq, "hb"))
	}
	require.Equal(t, 3, f.poll(t))
	require.Len(t, f.executed, 3)
}

func TestChannelOverflowResyncs(t *testing.T) {
	f := newChannelFixture()
	f.src.Write(bytes.Repeat([]byte{'z'}, MaxLineLen+10))
	f.src.WriteString("\n")
	f.src.WriteString(Encode(9, "route_end"))
	require.Equal(t, 1, f.poll(t))
	require.Equal(t, []Command{RouteEnd{}}, f.executed)
	require.Equal(t, Overflow, f.observed[0].outcome)
}
