package board

import (
	"bytes"
	"time"

	"github.com/robotalks/aura.go/pkg/packet"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time        { return c.t }
func (c *fakeClock) Sleep(d time.Duration) { c.t = c.t.Add(d) }

// fakeBoard decodes written frames and answers configuration packets
// with ACKs, optionally after a delay measured on clock.
type fakeBoard struct {
	clock  *fakeClock
	parser packet.Parser
	in     bytes.Buffer

	// silent lists ids that are never acknowledged.
	silent map[packet.ID]bool
	// delay postpones every ACK.
	delay time.Duration
	// wrongSub acknowledges sub-id steps with the wrong sub id.
	wrongSub bool
	// openErr fails Open.
	openErr error

	received []*packet.Frame
	queued   []queuedAck
	opened   int
	closed   int
	flushes  int
}

type queuedAck struct {
	at      time.Time
	payload []byte
}

func newFakeBoard(clock *fakeClock) *fakeBoard {
	return &fakeBoard{clock: clock, silent: make(map[packet.ID]bool)}
}

func (b *fakeBoard) Open() error {
	if b.openErr != nil {
		return b.openErr
	}
	b.opened++
	return nil
}

func (b *fakeBoard) Close() error { b.closed++; return nil }
func (b *fakeBoard) Flush() error { b.flushes++; return nil }

func (b *fakeBoard) Write(p []byte) (int, error) {
	for _, f := range b.parser.FeedBytes(p) {
		b.received = append(b.received, f)
		b.respond(f)
	}
	return len(p), nil
}

func (b *fakeBoard) respond(f *packet.Frame) {
	var sub byte
	switch f.ID {
	case packet.ActGain, packet.MixMode, packet.SASMode:
		sub = f.Payload[0]
		if b.wrongSub {
			sub++
		}
	case packet.SerialNumber, packet.PWMRate, packet.WriteEEPROM:
	default:
		return
	}
	if b.silent[f.ID] {
		return
	}
	b.queued = append(b.queued, queuedAck{
		at:      b.clock.Now().Add(b.delay),
		payload: []byte{byte(f.ID), sub},
	})
}

func (b *fakeBoard) Read(p []byte) (int, error) {
	remains := b.queued[:0]
	for _, q := range b.queued {
		if b.clock.Now().Before(q.at) {
			remains = append(remains, q)
			continue
		}
		frame, _ := packet.Encode(packet.Ack, q.payload)
		b.in.Write(frame)
	}
	b.queued = remains
	if b.in.Len() == 0 {
		return 0, nil
	}
	return b.in.Read(p)
}

// inject queues raw inbound bytes.
func (b *fakeBoard) inject(id packet.ID, payload []byte) {
	frame, _ := packet.Encode(id, payload)
	b.in.Write(frame)
}

func (b *fakeBoard) sentIDs() []packet.ID {
	ids := make([]packet.ID, len(b.received))
	for n, f := range b.received {
		ids[n] = f.ID
	}
	return ids
}
