package board

import (
	"encoding/binary"
	"math"

	"github.com/robotalks/aura.go/pkg/packet"
)

// Payload encodes PILOT.
func (p PilotInput) Payload() []byte {
	return uint16s(p.Channels[:])
}

// Payload encodes IMU.
func (m IMURaw) Payload() []byte {
	b := make([]byte, 2*NumIMUSensors)
	for n, v := range m.Values {
		binary.LittleEndian.PutUint16(b[2*n:], uint16(v))
	}
	return b
}

// Payload encodes GPS.
func (g GPSFix) Payload() []byte {
	b := make([]byte, gpsPayloadLen)
	le := binary.LittleEndian
	le.PutUint32(b[0:], g.Time)
	le.PutUint32(b[4:], g.Date)
	le.PutUint32(b[8:], uint32(g.Latitude))
	le.PutUint32(b[12:], uint32(g.Longitude))
	le.PutUint32(b[16:], uint32(g.Altitude))
	le.PutUint16(b[20:], g.GroundSpeed)
	le.PutUint16(b[22:], g.GroundCourse)
	le.PutUint16(b[24:], uint16(g.HDOP))
	b[26] = g.NumSats
	b[27] = g.Status
	return b
}

// Payload encodes BARO.
func (b Baro) Payload() []byte {
	p := make([]byte, baroPayloadLen)
	le := binary.LittleEndian
	le.PutUint32(p[0:], math.Float32bits(b.Pressure))
	le.PutUint32(p[4:], math.Float32bits(b.Temperature))
	le.PutUint32(p[8:], math.Float32bits(b.ClimbRate))
	return p
}

// Payload encodes ANALOG, rounding to the wire resolution.
func (a Analog) Payload() []byte {
	b := make([]byte, 2*NumAnalogInputs)
	for n, v := range a.Values {
		scale := 64.0
		if n == NumAnalogInputs-1 {
			scale = 1000
		}
		binary.LittleEndian.PutUint16(b[2*n:], uint16(math.Round(v*scale)))
	}
	return b
}

// AckPayload encodes an ACK as the board sends it.
func AckPayload(id packet.ID, subID byte) []byte {
	return []byte{byte(id), subID}
}
