package board

import (
	"encoding/binary"
	"math"
)

// NumActuators is the number of PWM output channels.
const NumActuators = 8

// MixMode selects an on-board mixing function.
type MixMode uint8

// Mixing modes.
const (
	MixDefaults MixMode = iota
	MixAutoCoordinate
	MixThrottleTrim
	MixFlapTrim
	MixElevons
	MixFlaperons
	MixVTail
	MixDiffThrust
)

var mixModeNames = map[string]MixMode{
	"defaults":          MixDefaults,
	"auto-coordination": MixAutoCoordinate,
	"throttle-trim":     MixThrottleTrim,
	"flap-trim":         MixFlapTrim,
	"elevon":            MixElevons,
	"flaperon":          MixFlaperons,
	"vtail":             MixVTail,
	"diff-thrust":       MixDiffThrust,
}

// ParseMixMode maps a config name to a mode; unknown names select defaults.
func ParseMixMode(name string) MixMode {
	return mixModeNames[name]
}

// SASMode selects a stability augmentation function.
type SASMode uint8

// SAS modes.
const (
	SASDefaults  SASMode = 0
	SASRollAxis  SASMode = 1
	SASPitchAxis SASMode = 2
	SASYawAxis   SASMode = 3
	SASCh7Tune   SASMode = 10
)

var sasModeNames = map[string]SASMode{
	"defaults":   SASDefaults,
	"roll":       SASRollAxis,
	"pitch":      SASPitchAxis,
	"yaw":        SASYawAxis,
	"ch7-tune":   SASCh7Tune,
	"pilot-tune": SASCh7Tune,
}

// ParseSASMode maps a config name to a mode; unknown names select defaults.
func ParseSASMode(name string) SASMode {
	return sasModeNames[name]
}

// EncodeGain maps a gain onto the board's unsigned 16-bit encoding,
// 32767 + gain*10000, saturating at the ends of the range.
func EncodeGain(gain float64) uint16 {
	v := 32767 + gain*10000
	if v <= 0 {
		return 0
	}
	if v >= math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

// DecodeGain inverts EncodeGain.
func DecodeGain(v uint16) float64 {
	return (float64(v) - 32767) / 10000
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// SerialNumberPayload encodes SERIAL_NUMBER.
func SerialNumberPayload(serial uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, serial)
	return b
}

// PWMRatesPayload encodes PWM_RATE; a zero rate leaves a channel unchanged.
func PWMRatesPayload(rates [NumActuators]uint16) []byte {
	return uint16s(rates[:])
}

// ActGainPayload encodes ACT_GAIN.
func ActGainPayload(channel uint8, gain float64) []byte {
	b := []byte{channel, 0, 0}
	binary.LittleEndian.PutUint16(b[1:], EncodeGain(gain))
	return b
}

// MixModePayload encodes MIX_MODE.
func MixModePayload(mode MixMode, enable bool, gain1, gain2 float64) []byte {
	b := []byte{byte(mode), boolByte(enable), 0, 0, 0, 0}
	binary.LittleEndian.PutUint16(b[2:], EncodeGain(gain1))
	binary.LittleEndian.PutUint16(b[4:], EncodeGain(gain2))
	return b
}

// SASModePayload encodes SAS_MODE.
func SASModePayload(mode SASMode, enable bool, gain float64) []byte {
	b := []byte{byte(mode), boolByte(enable), 0, 0}
	binary.LittleEndian.PutUint16(b[2:], EncodeGain(gain))
	return b
}

// BaudPayload encodes BAUD.
func BaudPayload(baud uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, baud)
	return b
}

// FlightCommandPayload encodes FLIGHT_COMMAND pulse widths in microseconds.
func FlightCommandPayload(pulses [NumActuators]uint16) []byte {
	return uint16s(pulses[:])
}

func uint16s(v []uint16) []byte {
	b := make([]byte, 2*len(v))
	for n, x := range v {
		binary.LittleEndian.PutUint16(b[2*n:], x)
	}
	return b
}
