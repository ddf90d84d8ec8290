package packet

// checksum accumulates the two-byte running checksum.
type checksum struct {
	c0, c1 byte
}

func (s *checksum) add(b byte) {
	s.c0 += b
	s.c1 += s.c0
}

func (s *checksum) addBytes(p []byte) {
	for _, b := range p {
		s.add(b)
	}
}

func (s *checksum) matches(c0, c1 byte) bool {
	return s.c0 == c0 && s.c1 == c1
}

// Checksum computes the frame checksum over id, payload length and payload.
func Checksum(id ID, payload []byte) (c0, c1 byte) {
	var s checksum
	s.add(byte(id))
	s.add(byte(len(payload)))
	s.addBytes(payload)
	return s.c0, s.c1
}
