package board

import (
	"fmt"
	"time"

	"github.com/robotalks/aura.go/pkg/link"
	"github.com/robotalks/aura.go/pkg/packet"
)

// Kind selects the board driver.
type Kind string

// Driver kinds.
const (
	KindNone Kind = "none"
	KindAPM2 Kind = "apm2"
)

// Defaults.
const (
	DefaultBaud       = 230400
	DefaultAckTimeout = 500 * time.Millisecond
	// The board link carries full frames each tick.
	DefaultWriteBytesPerFrame = 256
	DefaultPendingLimit       = 1024
)

// SupportedBauds are the rates the board firmware can run at.
var SupportedBauds = []int{115200, 230400, 500000}

// PWMRate sets the output rate of one channel.
type PWMRate struct {
	Channel int    `mapstructure:"channel" yaml:"channel"`
	Hz      uint16 `mapstructure:"hz" yaml:"hz"`
}

// Gain sets the output gain of one channel.
type Gain struct {
	Channel int     `mapstructure:"channel" yaml:"channel"`
	Gain    float64 `mapstructure:"gain" yaml:"gain"`
}

// Mix configures one on-board mixing function.
type Mix struct {
	Mode   string  `mapstructure:"mode" yaml:"mode"`
	Enable bool    `mapstructure:"enable" yaml:"enable"`
	Gain1  float64 `mapstructure:"gain1" yaml:"gain1"`
	Gain2  float64 `mapstructure:"gain2" yaml:"gain2"`
}

// SAS configures one stability augmentation axis.
type SAS struct {
	Mode   string  `mapstructure:"mode" yaml:"mode"`
	Enable bool    `mapstructure:"enable" yaml:"enable"`
	Gain   float64 `mapstructure:"gain" yaml:"gain"`
}

// Config describes the board and the configuration pushed to it.
type Config struct {
	Kind Kind        `mapstructure:"kind" yaml:"kind"`
	Link link.Config `mapstructure:"link" yaml:"link"`

	// RequestBaud asks the board to switch rates before the handshake.
	RequestBaud  uint32    `mapstructure:"requestBaud" yaml:"requestBaud"`
	SerialNumber *uint16   `mapstructure:"serialNumber" yaml:"serialNumber,omitempty"`
	PWMRates     []PWMRate `mapstructure:"pwmRates" yaml:"pwmRates"`
	Gains        []Gain    `mapstructure:"gains" yaml:"gains"`
	Mix          []Mix     `mapstructure:"mixModes" yaml:"mixModes"`
	SAS          []SAS     `mapstructure:"sasModes" yaml:"sasModes"`
	// SkipEEPROM leaves the configuration unsaved on the board.
	SkipEEPROM bool `mapstructure:"skipEEPROM" yaml:"skipEEPROM"`

	AckTimeout time.Duration `mapstructure:"ackTimeout" yaml:"ackTimeout"`
	// AbortOnTimeout stops the handshake at the first unacknowledged step.
	AbortOnTimeout bool `mapstructure:"abortOnTimeout" yaml:"abortOnTimeout"`
}

// WithDefaults fills zero values.
func (c Config) WithDefaults() Config {
	if c.Kind == "" {
		c.Kind = KindNone
	}
	if c.Link.Type == "" {
		c.Link.Type = link.UART
	}
	if c.Link.Baud == 0 {
		c.Link.Baud = DefaultBaud
	}
	if c.Link.WriteBytesPerFrame <= 0 {
		c.Link.WriteBytesPerFrame = DefaultWriteBytesPerFrame
	}
	if c.Link.PendingLimit <= 0 {
		c.Link.PendingLimit = DefaultPendingLimit
	}
	c.Link = c.Link.WithDefaults()
	if c.AckTimeout <= 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	return c
}

// Validate checks the config after defaults are applied.
func (c Config) Validate() error {
	switch c.Kind {
	case KindNone:
		return nil
	case KindAPM2:
	default:
		return fmt.Errorf("unknown board kind %q", c.Kind)
	}
	if err := c.Link.Validate(); err != nil {
		return fmt.Errorf("board: %w", err)
	}
	if c.Link.Type == link.UART && !isSupportedBaud(c.Link.Baud) {
		return fmt.Errorf("board: %w: %d", link.ErrUnsupportedBaud, c.Link.Baud)
	}
	if c.RequestBaud != 0 && !isSupportedBaud(int(c.RequestBaud)) {
		return fmt.Errorf("board: %w: %d", link.ErrUnsupportedBaud, c.RequestBaud)
	}
	for _, r := range c.PWMRates {
		if r.Channel < 0 || r.Channel >= NumActuators {
			return fmt.Errorf("pwm rate channel %d out of range", r.Channel)
		}
	}
	for _, g := range c.Gains {
		if g.Channel < 0 || g.Channel >= NumActuators {
			return fmt.Errorf("gain channel %d out of range", g.Channel)
		}
	}
	for _, m := range c.Mix {
		if _, ok := mixModeNames[m.Mode]; !ok {
			return fmt.Errorf("unknown mix mode %q", m.Mode)
		}
	}
	for _, s := range c.SAS {
		if _, ok := sasModeNames[s.Mode]; !ok {
			return fmt.Errorf("unknown sas mode %q", s.Mode)
		}
	}
	return nil
}

func isSupportedBaud(baud int) bool {
	for _, b := range SupportedBauds {
		if b == baud {
			return true
		}
	}
	return false
}

// Steps expands the configuration into the ordered handshake steps.
func (c Config) Steps() []Step {
	var steps []Step
	if c.SerialNumber != nil {
		steps = append(steps, Step{
			Name:    fmt.Sprintf("serial-number %d", *c.SerialNumber),
			ID:      packet.SerialNumber,
			Payload: SerialNumberPayload(*c.SerialNumber),
		})
	}
	if len(c.PWMRates) > 0 {
		var rates [NumActuators]uint16
		for _, r := range c.PWMRates {
			rates[r.Channel] = r.Hz
		}
		steps = append(steps, Step{
			Name:    "pwm-rates",
			ID:      packet.PWMRate,
			Payload: PWMRatesPayload(rates),
		})
	}
	for _, g := range c.Gains {
		steps = append(steps, Step{
			Name:       fmt.Sprintf("gain ch%d %.2f", g.Channel, g.Gain),
			ID:         packet.ActGain,
			Payload:    ActGainPayload(uint8(g.Channel), g.Gain),
			SubID:      byte(g.Channel),
			MatchSubID: true,
		})
	}
	for _, m := range c.Mix {
		mode := ParseMixMode(m.Mode)
		steps = append(steps, Step{
			Name:       "mix " + m.Mode,
			ID:         packet.MixMode,
			Payload:    MixModePayload(mode, m.Enable, m.Gain1, m.Gain2),
			SubID:      byte(mode),
			MatchSubID: true,
		})
	}
	for _, s := range c.SAS {
		mode := ParseSASMode(s.Mode)
		gain := s.Gain
		if mode == SASCh7Tune {
			gain = 0
		}
		steps = append(steps, Step{
			Name:       "sas " + s.Mode,
			ID:         packet.SASMode,
			Payload:    SASModePayload(mode, s.Enable, gain),
			SubID:      byte(mode),
			MatchSubID: true,
		})
	}
	if !c.SkipEEPROM {
		steps = append(steps, Step{Name: "write-eeprom", ID: packet.WriteEEPROM, Final: true})
	}
	return steps
}
