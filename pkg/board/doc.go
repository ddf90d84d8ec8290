// Package board drives the sensor/actuator interface board over its
// serial link: it decodes sensor packets, pushes configuration with an
// acknowledged handshake and streams actuator pulse commands.
package board
