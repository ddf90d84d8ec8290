package remote

// Skipper passes one call in every Count+1. The first pass happens
// after a random number of skips in [0, Count) so that periodic
// packets sharing a rate don't all go out on the same tick.
type Skipper struct {
	Count int

	remain int
}

// NewSkipper creates a Skipper; intn picks the initial offset.
func NewSkipper(count int, intn func(int) int) *Skipper {
	if count < 0 {
		count = 0
	}
	s := &Skipper{Count: count}
	if count > 0 && intn != nil {
		s.remain = intn(count)
	}
	return s
}

// Next reports whether this call should send.
func (s *Skipper) Next() bool {
	if s.remain > 0 {
		s.remain--
		return false
	}
	s.remain = s.Count
	return true
}
