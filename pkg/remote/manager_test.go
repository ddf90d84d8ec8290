package remote

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/aura.go/pkg/command"
	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/packet"
)

type fakePort struct {
	in      bytes.Buffer
	out     bytes.Buffer
	open    bool
	flushes int
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.in.Len() == 0 {
		return 0, nil
	}
	return p.in.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *fakePort) IsOpen() bool                { return p.open }
func (p *fakePort) Flush() error                { p.flushes++; return nil }
func (p *fakePort) Close() error                { p.open = false; return nil }

func (p *fakePort) frames(t *testing.T) []*packet.Frame {
	var parser packet.Parser
	frames := parser.FeedBytes(p.out.Bytes())
	p.out.Reset()
	require.Equal(t, packet.SeekSync0, parser.State())
	return frames
}

func fixedIntn(v int) func(int) int {
	return func(int) int { return v }
}

func TestSkipper(t *testing.T) {
	testCases := []struct {
		count, offset int
		want          []bool
	}{
		{0, 0, []bool{true, true, true}},
		{-3, 0, []bool{true, true}},
		{2, 0, []bool{true, false, false, true, false, false, true}},
		{3, 1, []bool{false, true, false, false, false, true}},
	}
	for _, tc := range testCases {
		s := NewSkipper(tc.count, fixedIntn(tc.offset))
		var got []bool
		for range tc.want {
			got = append(got, s.Next())
		}
		assert.Equal(t, tc.want, got, "count %d offset %d", tc.count, tc.offset)
	}
}

func TestTelemetrySenders(t *testing.T) {
	port := &fakePort{open: true}
	m := NewWithPort(Config{HealthSkip: 1}, port, nil, fixedIntn(0))
	ctx := context.Background()

	require.NoError(t, m.GPS(ctx, []byte{1}))
	require.NoError(t, m.IMU(ctx, []byte{2}))
	require.NoError(t, m.AirData(ctx, []byte{3}))
	require.NoError(t, m.Filter(ctx, []byte{4}))
	require.NoError(t, m.Actuator(ctx, []byte{5}))
	require.NoError(t, m.Pilot(ctx, []byte{6}))
	sent, err := m.APStatus(ctx, []byte{7})
	require.NoError(t, err)
	require.True(t, sent)
	for _, want := range []bool{true, false, true} {
		sent, err = m.Health(ctx, []byte{8})
		require.NoError(t, err)
		require.Equal(t, want, sent)
	}
	sent, err = m.Payload(ctx, []byte{9})
	require.NoError(t, err)
	require.True(t, sent)

	var ids []packet.ID
	for _, f := range port.frames(t) {
		ids = append(ids, f.ID)
	}
	require.Equal(t, []packet.ID{
		packet.GPS, packet.IMU, packet.AirData, packet.Filter, packet.Actuator,
		packet.PilotInput, packet.APStatus, packet.SystemHealth, packet.SystemHealth, packet.Payload,
	}, ids)
}

func TestCommands(t *testing.T) {
	port := &fakePort{open: true}
	var got []command.Command
	m := NewWithPort(Config{}, port, command.ExecuteFunc(func(_ context.Context, cmd command.Command) {
		got = append(got, cmd)
	}), fixedIntn(0))
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	m.Commands.Clock = func() time.Time { return at }

	require.Equal(t, command.NoSequence, m.Status().Sequence)

	port.in.WriteString(command.Encode(7, "hb"))
	port.in.WriteString(command.Encode(7, "hb"))
	port.in.WriteString(command.Encode(8, "ap,agl-ft,400"))
	n, err := m.PollCommands(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []command.Command{
		command.Heartbeat{},
		command.AutopilotTarget{Target: command.TargetAGLFt, Value: 400},
	}, got)

	st := m.Status()
	require.True(t, st.Open)
	require.Equal(t, 8, st.Sequence)
	require.Equal(t, at, st.LastMessage)
}

func TestAPStatusPayload(t *testing.T) {
	p := APStatusPayload(command.NoSequence, [8]uint16{1520})
	require.Len(t, p, 18)
	require.Equal(t, []byte{0xff, 0xff, 0xf0, 0x05}, p[:4])
	require.Equal(t, []byte{0x2a, 0x01}, APStatusPayload(298, [8]uint16{})[:2])
}

func TestLoopIntegration(t *testing.T) {
	port := &fakePort{open: true}
	l := framework.NewLoop(time.Millisecond)
	m := NewWithPort(Config{}, port, &LoopExecutor{Loop: l}, fixedIntn(0))
	l.Add(m)
	var cmds []command.Command
	l.AddController(framework.PrLvControl, framework.ControlFunc(func(cc framework.ControlContext) error {
		cc.Messages().ProcessMessages(framework.ProcessMessageFunc(func(mc framework.MessageProcessingContext) {
			if msg, ok := mc.CurrentMessage().(*CommandMessage); ok {
				cmds = append(cmds, msg.Command)
				mc.MessageTaken()
			}
		}))
		return nil
	}))

	port.in.WriteString(command.Encode(1, "home,-93.1,45.2,900,90"))
	ctx := context.Background()
	l.Tick(ctx, time.Now())
	require.Empty(t, cmds)
	require.Equal(t, 1, port.flushes)

	l.Tick(ctx, time.Now())
	require.Equal(t, []command.Command{
		command.Home{LonDeg: -93.1, LatDeg: 45.2, AltFt: 900, AzimuthDeg: 90},
	}, cmds)
}

func TestStatusWhilePolling(t *testing.T) {
	port := &fakePort{open: true}
	m := NewWithPort(Config{}, port, command.ExecuteFunc(func(context.Context, command.Command) {}), fixedIntn(0))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := 0; n < 1000; n++ {
			st := m.Status()
			assert.True(t, st.Open)
		}
	}()
	for n := 0; n < 100; n++ {
		port.in.WriteString(command.Encode(n, "hb"))
		_, err := m.PollCommands(context.Background())
		require.NoError(t, err)
		require.NoError(t, m.Flush())
	}
	<-done
	assert.Equal(t, 99, m.Status().Sequence)
}
