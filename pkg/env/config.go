// Package env loads the vehicle configuration from a YAML file,
// AURA_ environment variables and command line flags.
package env

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/aura.go/pkg/board"
	"github.com/robotalks/aura.go/pkg/events"
	"github.com/robotalks/aura.go/pkg/link"
	"github.com/robotalks/aura.go/pkg/mirror"
	"github.com/robotalks/aura.go/pkg/remote"
	"github.com/robotalks/aura.go/pkg/status"
)

// LoopConfig configures the control loop.
type LoopConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// Config is the complete vehicle configuration.
type Config struct {
	VehicleID  string        `mapstructure:"vehicleID" yaml:"vehicleID"`
	Loop       LoopConfig    `mapstructure:"loop" yaml:"loop"`
	RemoteLink remote.Config `mapstructure:"remoteLink" yaml:"remoteLink"`
	Board      board.Config  `mapstructure:"board" yaml:"board"`
	Events     events.Config `mapstructure:"events" yaml:"events"`
	HTTP       status.Config `mapstructure:"http" yaml:"http"`
	MQTT       mirror.Config `mapstructure:"mqtt" yaml:"mqtt"`
}

// Flags holds the values settable from the command line; they take
// precedence over the config file and environment.
type Flags struct {
	ConfigFile string
	VehicleID  string
	MQTTURL    string
	HTTPAddr   string
}

var defaultFlags = Flags{}

func init() {
	defaultFlags.ConfigFile = os.Getenv("AURA_CONFIG")
	defaultFlags.MQTTURL = os.Getenv("AURA_MQTT_URL")
}

// SetupFlags registers command line flags.
func SetupFlags() {
	flag.StringVar(&defaultFlags.ConfigFile, "config", defaultFlags.ConfigFile, "Config file (YAML)")
	flag.StringVar(&defaultFlags.VehicleID, "id", defaultFlags.VehicleID, "Vehicle ID, defaults to one derived from the machine id")
	flag.StringVar(&defaultFlags.MQTTURL, "mqtt", defaultFlags.MQTTURL, "MQTT broker URL for mirroring, e.g. mqtt://host:1883/aura/")
	flag.StringVar(&defaultFlags.HTTPAddr, "http", defaultFlags.HTTPAddr, "Status server address")
}

// DefaultFlags gets the flags shared by the commands.
func DefaultFlags() *Flags {
	return &defaultFlags
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("loop.interval", "20ms")

	v.SetDefault("remoteLink.link.type", string(link.Socket))
	v.SetDefault("remoteLink.link.host", "localhost")
	v.SetDefault("remoteLink.link.port", 5050)
	v.SetDefault("remoteLink.link.baud", link.DefaultBaud)
	v.SetDefault("remoteLink.link.writeBytesPerFrame", link.DefaultWriteBytesPerFrame)
	v.SetDefault("remoteLink.link.pendingLimit", link.DefaultPendingLimit)
	v.SetDefault("remoteLink.link.pollTimeout", link.DefaultPollTimeout.String())
	v.SetDefault("remoteLink.link.dialTimeout", link.DefaultDialTimeout.String())
	v.SetDefault("remoteLink.link.reopenInterval", link.DefaultReopenInterval.String())
	v.SetDefault("remoteLink.apStatusSkip", 9)
	v.SetDefault("remoteLink.healthSkip", 9)
	v.SetDefault("remoteLink.payloadSkip", 9)

	v.SetDefault("board.kind", string(board.KindNone))
	v.SetDefault("board.link.type", string(link.UART))
	v.SetDefault("board.link.device", "/dev/ttyS0")
	v.SetDefault("board.link.baud", board.DefaultBaud)
	v.SetDefault("board.ackTimeout", board.DefaultAckTimeout.String())

	v.SetDefault("events.enable", false)
	v.SetDefault("events.filename", "logs/events.log")
	v.SetDefault("events.maxSize", 50)
	v.SetDefault("events.maxBackups", 5)
	v.SetDefault("events.maxAge", 30)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")

	v.SetDefault("mqtt.rate", mirror.DefaultRate)
	v.SetDefault("mqtt.burst", mirror.DefaultBurst)
}

// Load reads the config file, if any, then AURA_ environment overrides
// such as AURA_REMOTELINK_LINK_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("AURA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &conf, nil
}

// Apply overrides conf with flags that were set.
func (f *Flags) Apply(conf *Config) {
	if f.VehicleID != "" {
		conf.VehicleID = f.VehicleID
	}
	if f.MQTTURL != "" {
		conf.MQTT.URL = f.MQTTURL
	}
	if f.HTTPAddr != "" {
		conf.HTTP.Addr = f.HTTPAddr
	}
	if conf.VehicleID == "" {
		conf.VehicleID = MachineID()
	}
}

// Validate checks the sections that are validated on their own.
func (c *Config) Validate() error {
	if err := c.RemoteLink.Link.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("remoteLink: %w", err)
	}
	if err := c.Board.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("board: %w", err)
	}
	return nil
}

// MustLoad loads the config selected by the default flags and exits
// on error.
func MustLoad() *Config {
	conf, err := Load(defaultFlags.ConfigFile)
	if err == nil {
		defaultFlags.Apply(conf)
		err = conf.Validate()
	}
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// Dump writes conf as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
