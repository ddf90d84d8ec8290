// Package sim simulates an APM2 sensor/actuator board over a socket,
// so the autopilot can run against it using a uart-server link.
package sim

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/aura.go/pkg/board"
	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/packet"
)

// Config configures the simulated board.
type Config struct {
	Origin Origin `mapstructure:"origin" yaml:"origin"`
	Limits Limits `mapstructure:"limits" yaml:"limits"`
	// Interval between sensor reports.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// GPSEvery sends GPS on every n-th report.
	GPSEvery int `mapstructure:"gpsEvery" yaml:"gpsEvery"`
	// Silent lists packet ids that are never acknowledged.
	Silent []packet.ID `mapstructure:"silent" yaml:"silent"`
}

// WithDefaults fills unset values.
func (c Config) WithDefaults() Config {
	if c.Limits == (Limits{}) {
		c.Limits = DefaultLimits
	}
	if c.Interval <= 0 {
		c.Interval = 20 * time.Millisecond
	}
	if c.GPSEvery <= 0 {
		c.GPSEvery = 5
	}
	return c
}

var acked = map[packet.ID]bool{
	packet.SerialNumber: true,
	packet.PWMRate:      true,
	packet.ActGain:      true,
	packet.MixMode:      true,
	packet.SASMode:      true,
	packet.WriteEEPROM:  true,
}

// Board answers one autopilot connection.
type Board struct {
	Config   Config
	Dynamics Dynamics
	Table    *packet.Table
	Writer   *packet.Writer

	silent map[packet.ID]bool

	lock     sync.Mutex
	pulses   [board.NumActuators]uint16
	commands uint64
	acks     uint64
	reports  uint64
}

// NewBoard creates a Board writing to w.
func NewBoard(conf Config, w io.Writer) *Board {
	conf = conf.WithDefaults()
	b := &Board{
		Config:   conf,
		Dynamics: Dynamics{Limits: conf.Limits},
		Writer:   &packet.Writer{Dest: w},
		silent:   make(map[packet.ID]bool),
	}
	for _, id := range conf.Silent {
		b.silent[id] = true
	}
	b.Table = packet.NewTable("sim")
	for id := range acked {
		b.Table.RegisterFunc(id, b.handleConfig)
	}
	b.Table.RegisterFunc(packet.Baud, func(_ context.Context, f *packet.Frame) {
		glog.Infof("sim: baud change requested, ignored")
	})
	b.Table.RegisterFunc(packet.FlightCommand, b.handleFlightCommand)
	return b
}

func (b *Board) send(ctx context.Context, id packet.ID, payload []byte) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if err := b.Writer.Send(ctx, id, payload); err != nil {
		glog.V(1).Infof("sim: send %s: %v", id, err)
	}
}

func (b *Board) handleConfig(ctx context.Context, f *packet.Frame) {
	if b.silent[f.ID] {
		glog.V(1).Infof("sim: %s not acknowledged", f.ID)
		return
	}
	var sub byte
	switch f.ID {
	case packet.ActGain, packet.MixMode, packet.SASMode:
		if len(f.Payload) > 0 {
			sub = f.Payload[0]
		}
	}
	b.send(ctx, packet.Ack, board.AckPayload(f.ID, sub))
	b.lock.Lock()
	b.acks++
	b.lock.Unlock()
}

func (b *Board) handleFlightCommand(_ context.Context, f *packet.Frame) {
	if len(f.Payload) != 2*board.NumActuators {
		glog.Warningf("sim: flight command of %d bytes", len(f.Payload))
		return
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	for n := range b.pulses {
		b.pulses[n] = binary.LittleEndian.Uint16(f.Payload[2*n:])
	}
	b.commands++
	b.Dynamics.Command(
		board.NormalizePulse(b.pulses[board.ThrottleChannel], false),
		board.NormalizePulse(b.pulses[0], true),
	)
}

// Counts returns flight commands received, ACKs sent and sensor
// reports sent.
func (b *Board) Counts() (commands, acks, reports uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.commands, b.acks, b.reports
}

// Report steps the dynamics to now and sends one round of sensor
// packets.
func (b *Board) Report(ctx context.Context, now time.Time) {
	b.lock.Lock()
	pose := b.Dynamics.Step(now)
	vel := b.Dynamics.Velocity()
	speed, turnRate := b.Dynamics.Speed(), b.Dynamics.TurnRate()
	b.reports++
	n := b.reports
	b.lock.Unlock()

	var imu board.IMURaw
	imu.Values[2] = int16(turnRate / board.GyroScale)
	imu.Values[5] = int16(-9.81 / board.AccelScale)
	imu.Values[6] = int16(25 / board.TempScale)
	b.send(ctx, packet.BoardIMU, imu.Payload())

	if (n-1)%uint64(b.Config.GPSEvery) == 0 {
		lat, lon := b.Config.Origin.LatLon(pose.Offset)
		utc := now.UTC()
		midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
		fix := board.GPSFix{
			Time:         uint32(utc.Sub(midnight).Milliseconds()),
			Date:         uint32(utc.Year()*10000 + int(utc.Month())*100 + utc.Day()),
			Latitude:     int32(math.Round(lat * 1e7)),
			Longitude:    int32(math.Round(lon * 1e7)),
			Altitude:     int32(math.Round(b.Config.Origin.AltM * 100)),
			GroundSpeed:  uint16(math.Round(speed * 100)),
			GroundCourse: uint16(math.Round(pose.Heading.CompassDegrees() * 100)),
			HDOP:         90,
			NumSats:      9,
			Status:       2,
		}
		glog.V(3).Infof("sim: at %.7f,%.7f v=(%.1f,%.1f)", lat, lon, vel.North, vel.East)
		b.send(ctx, packet.BoardGPS, fix.Payload())
	}

	var pilot board.PilotInput
	for ch := range pilot.Channels {
		pilot.Channels[ch] = board.GenPulse(0, ch != board.ThrottleChannel)
	}
	pilot.Channels[7] = board.GenPulse(-1, true)
	b.send(ctx, packet.BoardPilot, pilot.Payload())

	b.send(ctx, packet.BoardBaro, board.Baro{
		Pressure:    float32(101325 * math.Pow(1-2.25577e-5*b.Config.Origin.AltM, 5.25588)),
		Temperature: 25,
	}.Payload())
	b.send(ctx, packet.BoardAnalog, board.Analog{Values: [board.NumAnalogInputs]float64{5: 5}}.Payload())
}

// AddToLoop implements framework.LoopAdder.
func (b *Board) AddToLoop(l *framework.Loop) {
	l.AddController(framework.PrLvAcuate, framework.ControlFunc(func(cc framework.ControlContext) error {
		b.Report(cc.Context(), cc.Time())
		return nil
	}))
}

// Serve runs one board per accepted connection until ctx is done.
func Serve(ctx context.Context, ln net.Listener, conf Config) error {
	return framework.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			glog.Infof("sim: autopilot connected from %s", conn.RemoteAddr())
			err = ServeConn(ctx, conn, conf)
			glog.Infof("sim: autopilot disconnected: %v", err)
		}
	})
}

// ServeConn simulates the board on conn until conn or ctx is done.
func ServeConn(ctx context.Context, conn net.Conn, conf Config) error {
	b := NewBoard(conf, conn)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := framework.NewLoop(b.Config.Interval).Add(b)
	loop.AddRunnable(framework.RunFunc(func(ctx context.Context) error {
		defer cancel()
		return framework.RunWithContextCloser(ctx, conn, func() error {
			return readFrames(ctx, conn, b.Table)
		})
	}))
	err := loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func readFrames(ctx context.Context, r io.Reader, h packet.Handler) error {
	var parser packet.Parser
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		for _, f := range parser.FeedBytes(buf[:n]) {
			h.HandleFrame(ctx, f)
		}
		if err != nil {
			return err
		}
	}
}
