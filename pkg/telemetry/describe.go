// Package telemetry turns frames seen on either link into values for
// display.
package telemetry

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/robotalks/aura.go/pkg/board"
	"github.com/robotalks/aura.go/pkg/packet"
	"github.com/robotalks/aura.go/pkg/remote"
)

// Decoded is a frame with its payload interpreted when the id is known.
type Decoded struct {
	ID   packet.ID `json:"id"`
	Name string    `json:"name"`
	Len  int       `json:"len"`
	// Value is nil when the payload has no known layout.
	Value any    `json:"value,omitempty"`
	Raw   string `json:"raw,omitempty"`
	Err   string `json:"error,omitempty"`
}

// GPS is a fix in display units.
type GPS struct {
	LatDeg  float64 `json:"lat"`
	LonDeg  float64 `json:"lon"`
	AltM    float64 `json:"altM"`
	VnMps   float64 `json:"vn"`
	VeMps   float64 `json:"ve"`
	NumSats uint8   `json:"sats"`
	Status  uint8   `json:"status"`
}

// IMU is a raw IMU sample in display units.
type IMU struct {
	Gyro  [3]float64 `json:"gyro"`
	Accel [3]float64 `json:"accel"`
	TempC float64    `json:"tempC"`
}

// Pilot is the receiver input.
type Pilot struct {
	Pulses [board.NumPilotInputs]uint16 `json:"pulses"`
	Manual bool                         `json:"manual"`
}

// Decode interprets a frame. Ground telemetry carrying board sensor
// payloads decodes with the board layouts.
func Decode(id packet.ID, payload []byte) Decoded {
	d := Decoded{ID: id, Name: id.String(), Len: len(payload)}
	value, err := decodeValue(id, payload)
	switch {
	case err != nil:
		d.Err = err.Error()
		d.Raw = hex.EncodeToString(payload)
	case value == nil:
		d.Raw = hex.EncodeToString(payload)
	default:
		d.Value = value
	}
	return d
}

func decodeValue(id packet.ID, payload []byte) (any, error) {
	switch id {
	case packet.GPS, packet.BoardGPS:
		g, err := board.DecodeGPS(payload)
		if err != nil {
			return nil, err
		}
		vn, ve := g.Velocity()
		return GPS{
			LatDeg: g.LatDeg(), LonDeg: g.LonDeg(), AltM: g.AltM(),
			VnMps: vn, VeMps: ve, NumSats: g.NumSats, Status: g.Status,
		}, nil
	case packet.IMU, packet.BoardIMU:
		m, err := board.DecodeIMU(payload)
		if err != nil {
			return nil, err
		}
		var v IMU
		v.Gyro[0], v.Gyro[1], v.Gyro[2] = m.Gyro()
		v.Accel[0], v.Accel[1], v.Accel[2] = m.Accel()
		v.TempC = m.TempC()
		return v, nil
	case packet.PilotInput, packet.BoardPilot:
		p, err := board.DecodePilot(payload)
		if err != nil {
			return nil, err
		}
		return Pilot{Pulses: p.Channels, Manual: p.Manual()}, nil
	case packet.AirData, packet.BoardBaro:
		return board.DecodeBaro(payload)
	case packet.SystemHealth, packet.BoardAnalog:
		return board.DecodeAnalog(payload)
	case packet.APStatus:
		return remote.DecodeAPStatus(payload)
	case packet.Ack:
		return board.DecodeAck(payload)
	}
	return nil, nil
}

// String renders d on one line.
func (d Decoded) String() string {
	switch {
	case d.Err != "":
		return fmt.Sprintf("%s(%d) [%d] %s: %s", d.Name, d.ID, d.Len, d.Raw, d.Err)
	case d.Value == nil:
		return fmt.Sprintf("%s(%d) [%d] %s", d.Name, d.ID, d.Len, d.Raw)
	}
	out, err := json.Marshal(d.Value)
	if err != nil {
		return fmt.Sprintf("%s(%d) [%d] %v", d.Name, d.ID, d.Len, d.Value)
	}
	return fmt.Sprintf("%s(%d) %s", d.Name, d.ID, out)
}
