package command

import "time"

// NoSequence is reported before any sentence has been accepted.
const NoSequence = -1

// SequenceTracker suppresses re-execution of a repeated sentence.
// Only the last accepted sequence is remembered: any other value,
// older or newer, is accepted. The zero value is ready to use.
type SequenceTracker struct {
	last     int
	seen     bool
	lastTime time.Time
}

// Accept records seq and reports whether it is new.
func (t *SequenceTracker) Accept(seq int, now time.Time) bool {
	if t.seen && seq == t.last {
		return false
	}
	t.last, t.seen, t.lastTime = seq, true, now
	return true
}

// Last returns the last accepted sequence and when it was accepted.
func (t *SequenceTracker) Last() (int, time.Time) {
	if !t.seen {
		return NoSequence, time.Time{}
	}
	return t.last, t.lastTime
}
