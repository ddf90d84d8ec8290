package remote

import "github.com/robotalks/aura.go/pkg/link"

// Config describes the ground link.
type Config struct {
	Link link.Config `mapstructure:"link" yaml:"link"`

	// Skip counts for the periodic status packets.
	APStatusSkip int `mapstructure:"apStatusSkip" yaml:"apStatusSkip"`
	HealthSkip   int `mapstructure:"healthSkip" yaml:"healthSkip"`
	PayloadSkip  int `mapstructure:"payloadSkip" yaml:"payloadSkip"`
}
