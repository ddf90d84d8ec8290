// Package packet implements the binary framing shared by the ground
// telemetry link and the sensor/actuator board link.
package packet

// A frame on the wire is
//
//	sync0 sync1 id len payload[len] c0 c1
//
// where c0/c1 is a Fletcher-style running checksum over id, len and
// the payload (sync bytes excluded). Frames are decoded one byte at a
// time by Parser so a caller polling a non-blocking link never waits
// for a complete frame.
