// Package link provides the byte transports used by the ground and
// board links: a UART or a client socket, both polled without blocking.
package link
