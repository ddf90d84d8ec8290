// Package command implements the ASCII ground command channel.
//
// A sentence is a line of the form
//
//	<seq>,<body>,<CS>\n
//
// where CS is the two-digit uppercase hex XOR of every character
// before the final ",CS". Sentences repeating the last accepted
// sequence number are ignored, so a ground station may retransmit
// freely until it sees the sequence echoed back in telemetry.
package command
