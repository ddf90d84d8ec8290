package command

import (
	"fmt"
	"strconv"
	"strings"
)

// MinSentenceLen is the shortest line Decode accepts.
const MinSentenceLen = 4

// Checksum XORs every byte of s.
func Checksum(s string) byte {
	var sum byte
	for i := 0; i < len(s); i++ {
		sum ^= s[i]
	}
	return sum
}

// FormatChecksum renders a checksum as two uppercase hex digits.
func FormatChecksum(sum byte) string {
	return fmt.Sprintf("%02X", sum)
}

// Sentence is a decoded command line.
type Sentence struct {
	Seq  int
	Body string
}

// String encodes the sentence without the line terminator.
func (s Sentence) String() string {
	text := strconv.Itoa(s.Seq) + "," + s.Body
	return text + "," + FormatChecksum(Checksum(text))
}

// Encode returns the wire form of a sentence including the terminator.
func Encode(seq int, body string) string {
	return Sentence{Seq: seq, Body: body}.String() + "\n"
}

// Decode verifies the checksum of a line (without terminator) and
// splits off the sequence number.
func Decode(line string) (Sentence, error) {
	if len(line) < MinSentenceLen {
		return Sentence{}, ErrTooShort
	}
	sum := line[len(line)-2:]
	text := line[:len(line)-3]
	if line[len(line)-3] != ',' || sum != FormatChecksum(Checksum(text)) {
		return Sentence{}, ErrChecksum
	}
	pos := strings.IndexByte(text, ',')
	if pos < 0 {
		return Sentence{}, ErrNoSequence
	}
	seq, err := strconv.Atoi(text[:pos])
	if err != nil {
		return Sentence{}, ErrNoSequence
	}
	return Sentence{Seq: seq, Body: text[pos+1:]}, nil
}
