package packet

// State is the position of the Parser within a frame.
type State int

const (
	SeekSync0      State = iota // discarding bytes until sync0
	SeekSync1                   // sync0 seen, waiting for sync1
	ReadID                      // waiting for packet id
	ReadLength                  // waiting for payload length
	ReadPayload                 // accumulating payload bytes
	ReadChecksumLo              // waiting for c0
	ReadChecksumHi              // waiting for c1
)

var stateNames = [...]string{
	"seek-sync0",
	"seek-sync1",
	"read-id",
	"read-length",
	"read-payload",
	"read-checksum-lo",
	"read-checksum-hi",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// DropNotifier is told about frames discarded by the Parser.
type DropNotifier interface {
	FrameDropped(ID, error)
}

// FrameDroppedFunc is func type of DropNotifier.
type FrameDroppedFunc func(ID, error)

// FrameDropped implements DropNotifier.
func (f FrameDroppedFunc) FrameDropped(id ID, err error) {
	f(id, err)
}

// Parser decodes frames from a byte stream, one byte at a time.
// The zero value is ready to use. State persists between calls so
// bytes may arrive split across any number of reads.
type Parser struct {
	// MaxPayload rejects frames announcing a longer payload.
	// Zero means MaxPayload.
	MaxPayload int
	Notifier   DropNotifier

	state   State
	id      ID
	length  int
	recvLen int
	sum     checksum
	c0      byte
	buf     [MaxPayload]byte
}

// State gets the current parser state.
func (p *Parser) State() State {
	return p.state
}

// Reset discards any partial frame.
func (p *Parser) Reset() {
	p.state = SeekSync0
}

// Feed consumes one byte and returns a frame once a complete,
// checksum-valid frame has been received.
func (p *Parser) Feed(b byte) *Frame {
	switch p.state {
	case SeekSync0:
		if b == Sync0 {
			p.state = SeekSync1
		}
	case SeekSync1:
		switch b {
		case Sync1:
			p.sum = checksum{}
			p.state = ReadID
		case Sync0:
			// stay, the previous sync0 was noise
		default:
			p.state = SeekSync0
		}
	case ReadID:
		p.id = ID(b)
		p.sum.add(b)
		p.state = ReadLength
	case ReadLength:
		if int(b) > p.maxPayload() {
			p.drop(ErrLength)
			return nil
		}
		p.length, p.recvLen = int(b), 0
		p.sum.add(b)
		if p.length == 0 {
			p.state = ReadChecksumLo
		} else {
			p.state = ReadPayload
		}
	case ReadPayload:
		p.buf[p.recvLen] = b
		p.recvLen++
		p.sum.add(b)
		if p.recvLen >= p.length {
			p.state = ReadChecksumLo
		}
	case ReadChecksumLo:
		p.c0 = b
		p.state = ReadChecksumHi
	case ReadChecksumHi:
		if !p.sum.matches(p.c0, b) {
			p.drop(ErrChecksum)
			return nil
		}
		p.state = SeekSync0
		f := &Frame{ID: p.id, Payload: make([]byte, p.length)}
		copy(f.Payload, p.buf[:p.length])
		return f
	}
	return nil
}

// FeedBytes feeds all bytes and returns completed frames in order.
func (p *Parser) FeedBytes(data []byte) (frames []*Frame) {
	for _, b := range data {
		if f := p.Feed(b); f != nil {
			frames = append(frames, f)
		}
	}
	return
}

func (p *Parser) maxPayload() int {
	if p.MaxPayload <= 0 || p.MaxPayload > MaxPayload {
		return MaxPayload
	}
	return p.MaxPayload
}

func (p *Parser) drop(err error) {
	p.state = SeekSync0
	if n := p.Notifier; n != nil {
		n.FrameDropped(p.id, err)
	}
}
