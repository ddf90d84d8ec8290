package packet

import "strconv"

// ID identifies the payload type of a frame.
type ID byte

// Ground telemetry ids.
const (
	GPS ID = iota
	IMU
	AirData
	Filter
	Actuator
	PilotInput
	APStatus
	SystemHealth
	Payload
)

// Sensor/actuator board ids.
const (
	Ack           ID = 20
	PWMRate       ID = 21
	Baud          ID = 22
	FlightCommand ID = 23
	ActGain       ID = 24
	MixMode       ID = 25
	SASMode       ID = 26
	SerialNumber  ID = 27
	WriteEEPROM   ID = 28

	BoardPilot  ID = 50
	BoardIMU    ID = 51
	BoardGPS    ID = 52
	BoardBaro   ID = 53
	BoardAnalog ID = 54

	ActCommand ID = 60
)

var idNames = map[ID]string{
	GPS:          "gps",
	IMU:          "imu",
	AirData:      "airdata",
	Filter:       "filter",
	Actuator:     "actuator",
	PilotInput:   "pilot",
	APStatus:     "ap-status",
	SystemHealth: "health",
	Payload:      "payload",

	Ack:           "ack",
	PWMRate:       "pwm-rate",
	Baud:          "baud",
	FlightCommand: "flight-command",
	ActGain:       "act-gain",
	MixMode:       "mix-mode",
	SASMode:       "sas-mode",
	SerialNumber:  "serial-number",
	WriteEEPROM:   "write-eeprom",

	BoardPilot:  "board-pilot",
	BoardIMU:    "board-imu",
	BoardGPS:    "board-gps",
	BoardBaro:   "board-baro",
	BoardAnalog: "board-analog",

	ActCommand: "act-command",
}

// String returns a stable name usable in logs and metric labels.
func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return "id-" + strconv.Itoa(int(id))
}

// Name is the same as id.String().
func Name(id ID) string {
	return id.String()
}
