package packet

import "io"

// Framing constants.
const (
	Sync0 byte = 0x93
	Sync1 byte = 0xe0

	// MaxPayload is the largest payload a length byte can announce.
	MaxPayload = 255
	// Overhead is the number of framing bytes around a payload.
	Overhead = 6
)

// Frame is a decoded or to-be-encoded packet.
type Frame struct {
	ID      ID
	Payload []byte
}

// Encode frames a payload for the wire.
func Encode(id ID, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	b := make([]byte, len(payload)+Overhead)
	b[0], b[1], b[2], b[3] = Sync0, Sync1, byte(id), byte(len(payload))
	copy(b[4:], payload)
	b[len(b)-2], b[len(b)-1] = Checksum(id, payload)
	return b, nil
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() ([]byte, error) {
	return Encode(f.ID, f.Payload)
}

// WriteTo implements io.WriterTo.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	b, err := f.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}
