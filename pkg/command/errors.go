package command

import (
	"errors"
	"fmt"
)

var (
	// ErrTooShort indicates a line shorter than the minimum sentence.
	ErrTooShort = errors.New("sentence too short")
	// ErrChecksum indicates the trailing checksum doesn't match.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrNoSequence indicates the sentence has no sequence field.
	ErrNoSequence = errors.New("missing sequence number")
	// ErrOverflow indicates a line exceeded the buffer without a terminator.
	ErrOverflow = errors.New("line buffer overflow")
	// ErrEmpty indicates a sentence without a command body.
	ErrEmpty = errors.New("empty command")
)

// ArgsError rejects a recognized command with malformed arguments.
type ArgsError struct {
	Kind   Kind
	Reason string
}

// Error implements error.
func (e *ArgsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// UnknownError rejects an unrecognized command token.
type UnknownError struct {
	Token string
}

// Error implements error.
func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Token)
}
