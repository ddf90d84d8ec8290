package link

import (
	"fmt"
	"time"
)

// Type selects the transport.
type Type string

// Transport types.
const (
	UART   Type = "uart"
	Socket Type = "uart-server"
)

// Defaults.
const (
	DefaultBaud               = 115200
	DefaultWriteBytesPerFrame = 12
	DefaultPendingLimit       = 128
	DefaultPollTimeout        = time.Millisecond
	DefaultDialTimeout        = 20 * time.Millisecond
	DefaultReopenInterval     = 20 * time.Millisecond
)

// SupportedBauds lists the UART rates that can be configured.
var SupportedBauds = []int{9600, 19200, 38400, 57600, 115200, 230400, 500000}

// Config describes one link.
type Config struct {
	Type   Type   `mapstructure:"type" yaml:"type"`
	Device string `mapstructure:"device" yaml:"device"`
	Baud   int    `mapstructure:"baud" yaml:"baud"`
	Host   string `mapstructure:"host" yaml:"host"`
	Port   int    `mapstructure:"port" yaml:"port"`

	// WriteBytesPerFrame caps bytes flushed to a UART per call.
	WriteBytesPerFrame int `mapstructure:"writeBytesPerFrame" yaml:"writeBytesPerFrame"`
	// PendingLimit bounds the UART pending write buffer.
	PendingLimit int `mapstructure:"pendingLimit" yaml:"pendingLimit"`
	// PollTimeout bounds a socket read or write.
	PollTimeout time.Duration `mapstructure:"pollTimeout" yaml:"pollTimeout"`
	DialTimeout time.Duration `mapstructure:"dialTimeout" yaml:"dialTimeout"`
	// ReopenInterval spaces the reopen attempts made by writes after a
	// failed open.
	ReopenInterval time.Duration `mapstructure:"reopenInterval" yaml:"reopenInterval"`
}

// WithDefaults fills zero values.
func (c Config) WithDefaults() Config {
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.WriteBytesPerFrame <= 0 {
		c.WriteBytesPerFrame = DefaultWriteBytesPerFrame
	}
	if c.PendingLimit <= 0 {
		c.PendingLimit = DefaultPendingLimit
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReopenInterval <= 0 {
		c.ReopenInterval = DefaultReopenInterval
	}
	return c
}

// Validate checks the config after defaults are applied.
func (c Config) Validate() error {
	switch c.Type {
	case UART:
		if c.Device == "" {
			return fmt.Errorf("uart link requires a device")
		}
		if !IsSupportedBaud(c.Baud) {
			return ErrUnsupportedBaud
		}
	case Socket:
		if c.Host == "" || c.Port <= 0 {
			return fmt.Errorf("socket link requires host and port")
		}
	default:
		return ErrUnknownType
	}
	return nil
}

// Address returns a printable endpoint.
func (c Config) Address() string {
	if c.Type == UART {
		return fmt.Sprintf("%s@%d", c.Device, c.Baud)
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsSupportedBaud reports whether baud is in SupportedBauds.
func IsSupportedBaud(baud int) bool {
	for _, b := range SupportedBauds {
		if b == baud {
			return true
		}
	}
	return false
}
