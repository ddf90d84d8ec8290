package remote

import (
	"encoding/binary"
	"fmt"

	"github.com/robotalks/aura.go/pkg/command"
)

// APStatusPayload reports the last accepted command sequence followed
// by the actuator pulse widths. The sequence is sent as 0xffff before
// any command was accepted.
func APStatusPayload(seq int, pulses [8]uint16) []byte {
	b := make([]byte, 2+2*len(pulses))
	s := uint16(0xffff)
	if seq != command.NoSequence {
		s = uint16(seq)
	}
	binary.LittleEndian.PutUint16(b, s)
	for n, p := range pulses {
		binary.LittleEndian.PutUint16(b[2+2*n:], p)
	}
	return b
}

// APStatus is the decoded form of APStatusPayload.
type APStatus struct {
	Sequence int       `json:"sequence"`
	Pulses   [8]uint16 `json:"pulses"`
}

// DecodeAPStatus decodes an APStatusPayload.
func DecodeAPStatus(payload []byte) (APStatus, error) {
	var s APStatus
	if len(payload) != 2+2*len(s.Pulses) {
		return s, fmt.Errorf("ap-status: %d bytes, expect %d", len(payload), 2+2*len(s.Pulses))
	}
	s.Sequence = command.NoSequence
	if seq := binary.LittleEndian.Uint16(payload); seq != 0xffff {
		s.Sequence = int(seq)
	}
	for n := range s.Pulses {
		s.Pulses[n] = binary.LittleEndian.Uint16(payload[2+2*n:])
	}
	return s, nil
}
