package sim

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/robotalks/aura.go/pkg/board"
	"github.com/robotalks/aura.go/pkg/link"
	"github.com/robotalks/aura.go/pkg/packet"
)

func startSim(t *testing.T, conf Config) link.Config {
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, conf) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	addr := ln.Addr().(*net.TCPAddr)
	return link.Config{Type: link.Socket, Host: addr.IP.String(), Port: addr.Port}
}

func apm2Config(l link.Config) board.Config {
	return board.Config{
		Kind:     board.KindAPM2,
		Link:     l,
		PWMRates: []board.PWMRate{{Channel: 0, Hz: 50}},
		Gains:    []board.Gain{{Channel: 1, Gain: -1}},
		Mix:      []board.Mix{{Mode: "elevon", Enable: true, Gain1: 0.5, Gain2: 0.5}},
		SAS:      []board.SAS{{Mode: "roll", Enable: true, Gain: 0.2}},
	}
}

func TestHandshakeAgainstSim(t *testing.T) {
	l := startSim(t, Config{Interval: 5 * time.Millisecond, Origin: Origin{LatDeg: 45, LonDeg: -93, AltM: 250}})
	drv, err := board.NewAPM2(apm2Config(l))
	require.NoError(t, err)
	defer drv.Close()

	var results []board.StepResult
	drv.Handshake.Observer = board.StepCompletedFunc(func(r board.StepResult) {
		results = append(results, r)
	})
	ctx := context.Background()
	require.NoError(t, drv.Init(ctx))
	assert.True(t, drv.Configured())
	require.Len(t, results, 5)
	for _, r := range results {
		assert.True(t, r.Acked, r.Step.Name)
	}

	// full throttle, then watch the fix move north
	act := board.Actuators{Throttle: 1, Channel8: -1}
	require.Eventually(t, func() bool {
		if drv.Actuate(ctx, act) != nil || drv.Update(ctx) != nil {
			return false
		}
		s := drv.Sensors()
		return s.GPSReading.Count > 0 && s.GPS.GroundSpeed > 0
	}, 5*time.Second, 10*time.Millisecond)

	s := drv.Sensors()
	assert.Greater(t, s.IMUReading.Count, uint64(0))
	assert.Greater(t, s.PilotReading.Count, uint64(0))
	assert.False(t, s.Pilot.Manual())
	assert.InDelta(t, 45.0, s.GPS.LatDeg(), 0.01)
	assert.InDelta(t, 250.0, s.GPS.AltM(), 1e-9)
	assert.InDelta(t, 5.0, s.Analog.Values[5], 1e-9)
	assert.Zero(t, s.SizeErrors)
}

func TestSilentStepTimesOut(t *testing.T) {
	l := startSim(t, Config{Interval: 5 * time.Millisecond, Silent: []packet.ID{packet.MixMode}})
	conf := apm2Config(l)
	conf.AckTimeout = 100 * time.Millisecond
	drv, err := board.NewAPM2(conf)
	require.NoError(t, err)
	defer drv.Close()

	err = drv.Init(context.Background())
	require.Error(t, err)
	var stepErr *board.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.ErrorIs(t, err, board.ErrHandshakeTimeout)
	assert.Equal(t, "mix elevon", stepErr.Step)
	assert.False(t, drv.Configured())
}

func TestBoardReport(t *testing.T) {
	var out packetSink
	b := NewBoard(Config{GPSEvery: 2}, &out)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	b.Report(ctx, now)
	b.Report(ctx, now.Add(time.Second))
	b.Report(ctx, now.Add(2*time.Second))

	counts := out.counts()
	assert.Equal(t, 3, counts[packet.BoardIMU])
	assert.Equal(t, 2, counts[packet.BoardGPS])
	assert.Equal(t, 3, counts[packet.BoardPilot])
	assert.Equal(t, 3, counts[packet.BoardBaro])
	assert.Equal(t, 3, counts[packet.BoardAnalog])
	_, _, reports := b.Counts()
	assert.Equal(t, uint64(3), reports)

	b.Table.HandleFrame(ctx, &packet.Frame{ID: packet.FlightCommand, Payload: board.FlightCommandPayload(board.Actuators{Throttle: 1}.Pulses())})
	b.Table.HandleFrame(ctx, &packet.Frame{ID: packet.ActGain, Payload: board.ActGainPayload(3, 0.5)})
	commands, acks, _ := b.Counts()
	assert.Equal(t, uint64(1), commands)
	assert.Equal(t, uint64(1), acks)
	assert.Equal(t, 1, out.counts()[packet.Ack])
	assert.Equal(t, []byte{byte(packet.ActGain), 3}, out.last(packet.Ack))
}

type packetSink struct {
	parser packet.Parser
	frames []*packet.Frame
}

func (s *packetSink) Write(p []byte) (int, error) {
	s.frames = append(s.frames, s.parser.FeedBytes(p)...)
	return len(p), nil
}

func (s *packetSink) counts() map[packet.ID]int {
	c := make(map[packet.ID]int)
	for _, f := range s.frames {
		c[f.ID]++
	}
	return c
}

func (s *packetSink) last(id packet.ID) []byte {
	for n := len(s.frames) - 1; n >= 0; n-- {
		if s.frames[n].ID == id {
			return s.frames[n].Payload
		}
	}
	return nil
}
