package board

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/robotalks/aura.go/pkg/packet"
)

// Sensor payload geometry.
const (
	NumPilotInputs  = 8
	NumIMUSensors   = 7
	NumAnalogInputs = 6

	gpsPayloadLen  = 28
	baroPayloadLen = 12
)

// SizeError rejects a sensor packet with an unexpected length.
type SizeError struct {
	ID       packet.ID
	Got      int
	Expected int
}

// Error implements error.
func (e *SizeError) Error() string {
	return fmt.Sprintf("packet size mismatch in %s: %d, expected %d", e.ID, e.Got, e.Expected)
}

func checkSize(id packet.ID, payload []byte, expected int) error {
	if len(payload) != expected {
		return &SizeError{ID: id, Got: len(payload), Expected: expected}
	}
	return nil
}

// PilotInput holds raw receiver pulse widths.
type PilotInput struct {
	Channels [NumPilotInputs]uint16
}

// Normalized returns aileron, elevator, throttle, rudder style values.
func (p PilotInput) Normalized() (v [NumPilotInputs]float64) {
	for n, pulse := range p.Channels {
		v[n] = NormalizePulse(pulse, n != ThrottleChannel)
	}
	return
}

// IMURaw holds raw gyro (p, q, r), accel (x, y, z) and temperature counts.
type IMURaw struct {
	Values [NumIMUSensors]int16
}

// GPSFix is the board's GPS report.
type GPSFix struct {
	Time         uint32
	Date         uint32
	Latitude     int32
	Longitude    int32
	Altitude     int32
	GroundSpeed  uint16
	GroundCourse uint16
	HDOP         int16
	NumSats      uint8
	Status       uint8
}

// Baro is the board's barometer report.
type Baro struct {
	Pressure    float32
	Temperature float32
	ClimbRate   float32
}

// Analog holds scaled analog inputs. Channels 0-4 are counts/64,
// channel 5 is the board supply in volts.
type Analog struct {
	Values [NumAnalogInputs]float64
}

// DecodePilot decodes PILOT.
func DecodePilot(payload []byte) (p PilotInput, err error) {
	if err = checkSize(packet.BoardPilot, payload, 2*NumPilotInputs); err != nil {
		return
	}
	for n := range p.Channels {
		p.Channels[n] = binary.LittleEndian.Uint16(payload[2*n:])
	}
	return
}

// DecodeIMU decodes IMU.
func DecodeIMU(payload []byte) (m IMURaw, err error) {
	if err = checkSize(packet.BoardIMU, payload, 2*NumIMUSensors); err != nil {
		return
	}
	for n := range m.Values {
		m.Values[n] = int16(binary.LittleEndian.Uint16(payload[2*n:]))
	}
	return
}

// DecodeGPS decodes GPS.
func DecodeGPS(payload []byte) (g GPSFix, err error) {
	if err = checkSize(packet.BoardGPS, payload, gpsPayloadLen); err != nil {
		return
	}
	le := binary.LittleEndian
	g.Time = le.Uint32(payload[0:])
	g.Date = le.Uint32(payload[4:])
	g.Latitude = int32(le.Uint32(payload[8:]))
	g.Longitude = int32(le.Uint32(payload[12:]))
	g.Altitude = int32(le.Uint32(payload[16:]))
	g.GroundSpeed = le.Uint16(payload[20:])
	g.GroundCourse = le.Uint16(payload[22:])
	g.HDOP = int16(le.Uint16(payload[24:]))
	g.NumSats = payload[26]
	g.Status = payload[27]
	return
}

// DecodeBaro decodes BARO.
func DecodeBaro(payload []byte) (b Baro, err error) {
	if err = checkSize(packet.BoardBaro, payload, baroPayloadLen); err != nil {
		return
	}
	le := binary.LittleEndian
	b.Pressure = math.Float32frombits(le.Uint32(payload[0:]))
	b.Temperature = math.Float32frombits(le.Uint32(payload[4:]))
	b.ClimbRate = math.Float32frombits(le.Uint32(payload[8:]))
	return
}

// DecodeAnalog decodes ANALOG.
func DecodeAnalog(payload []byte) (a Analog, err error) {
	if err = checkSize(packet.BoardAnalog, payload, 2*NumAnalogInputs); err != nil {
		return
	}
	for n := range a.Values {
		v := float64(binary.LittleEndian.Uint16(payload[2*n:]))
		if n == NumAnalogInputs-1 {
			a.Values[n] = v / 1000
		} else {
			a.Values[n] = v / 64
		}
	}
	return
}

// Reading is the latest value of one sensor packet type.
type Reading struct {
	Count     uint64
	Timestamp time.Time
}

// Sensors is the most recent decoded board state.
type Sensors struct {
	Pilot  PilotInput
	IMU    IMURaw
	GPS    GPSFix
	Baro   Baro
	Analog Analog

	PilotReading  Reading
	IMUReading    Reading
	GPSReading    Reading
	BaroReading   Reading
	AnalogReading Reading

	// SizeErrors counts sensor packets dropped for their length.
	SizeErrors uint64
}

// IMU scale factors for the board's MPU-6000 at its configured ranges.
const (
	GyroScale  = 0.0174532 / 16.4
	AccelScale = 9.81 / 4096.0
	TempScale  = 0.02
)

// Gyro returns p, q, r in rad/s.
func (m IMURaw) Gyro() (p, q, r float64) {
	return float64(m.Values[0]) * GyroScale, float64(m.Values[1]) * GyroScale, float64(m.Values[2]) * GyroScale
}

// Accel returns x, y, z in m/s^2.
func (m IMURaw) Accel() (x, y, z float64) {
	return float64(m.Values[3]) * AccelScale, float64(m.Values[4]) * AccelScale, float64(m.Values[5]) * AccelScale
}

// TempC returns the sensor temperature in Celsius.
func (m IMURaw) TempC() float64 {
	return float64(m.Values[6]) * TempScale
}

// Manual reports whether the pilot's channel 8 switch selects manual flight.
func (p PilotInput) Manual() bool {
	return NormalizePulse(p.Channels[7], true) > 0
}

// LatDeg returns latitude in degrees.
func (g GPSFix) LatDeg() float64 { return float64(g.Latitude) / 1e7 }

// LonDeg returns longitude in degrees.
func (g GPSFix) LonDeg() float64 { return float64(g.Longitude) / 1e7 }

// AltM returns altitude in meters.
func (g GPSFix) AltM() float64 { return float64(g.Altitude) / 100 }

// Velocity returns north and east ground velocity in m/s.
func (g GPSFix) Velocity() (vn, ve float64) {
	speed := float64(g.GroundSpeed) * 0.01
	angle := (90 - float64(g.GroundCourse)*0.01) * math.Pi / 180
	return math.Sin(angle) * speed, math.Cos(angle) * speed
}
