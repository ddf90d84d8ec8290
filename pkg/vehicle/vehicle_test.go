package vehicle

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/aura.go/pkg/board"
	"github.com/robotalks/aura.go/pkg/command"
	"github.com/robotalks/aura.go/pkg/env"
	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/packet"
	"github.com/robotalks/aura.go/pkg/remote"
)

type fakePort struct {
	in      bytes.Buffer
	out     bytes.Buffer
	open    bool
	closed  bool
	openErr error
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.in.Len() == 0 {
		return 0, nil
	}
	return p.in.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *fakePort) IsOpen() bool                { return p.open }
func (p *fakePort) Flush() error                { return nil }
func (p *fakePort) Close() error                { p.open, p.closed = false, true; return nil }

func (p *fakePort) Open() error {
	if p.openErr != nil {
		return p.openErr
	}
	p.open = true
	return nil
}

func (p *fakePort) inject(t *testing.T, id packet.ID, payload []byte) {
	b, err := packet.Encode(id, payload)
	require.NoError(t, err)
	p.in.Write(b)
}

func (p *fakePort) frames() map[packet.ID][]*packet.Frame {
	var parser packet.Parser
	out := make(map[packet.ID][]*packet.Frame)
	data := p.out.Bytes()
	for _, b := range data {
		if f := parser.Feed(b); f != nil {
			out[f.ID] = append(out[f.ID], &packet.Frame{ID: f.ID, Payload: append([]byte(nil), f.Payload...)})
		}
	}
	p.out.Reset()
	return out
}

func pilotPayload(pulses [8]uint16) []byte {
	b := make([]byte, 16)
	for n, p := range pulses {
		binary.LittleEndian.PutUint16(b[2*n:], p)
	}
	return b
}

type testVehicle struct {
	*Vehicle
	remotePort *fakePort
	boardPort  *fakePort
}

func newTestVehicle(t *testing.T) *testVehicle {
	v := assembleTestVehicle(t, &fakePort{})
	require.NoError(t, v.Board.Init(context.Background()))
	return v
}

func assembleTestVehicle(t *testing.T, bport *fakePort) *testVehicle {
	conf, err := env.Load("")
	require.NoError(t, err)
	conf.VehicleID = "test"
	conf.RemoteLink.APStatusSkip = 0
	conf.RemoteLink.HealthSkip = 0

	loop := framework.NewLoop(conf.Loop.Interval)
	rport := &fakePort{open: true}
	mgr := remote.NewWithPort(conf.RemoteLink, rport, &remote.LoopExecutor{Loop: loop}, func(int) int { return 0 })
	drv := board.NewAPM2WithPort(board.Config{Kind: board.KindAPM2, SkipEEPROM: true}, bport)
	v := Assemble(conf, loop, mgr, drv, nil, nil)
	return &testVehicle{Vehicle: v, remotePort: rport, boardPort: bport}
}

func TestManualPassThrough(t *testing.T) {
	v := newTestVehicle(t)
	ctx := context.Background()
	pulses := [8]uint16{1933, 1520, 1107, 1520, 1520, 1520, 1520, 1933}
	v.boardPort.inject(t, packet.BoardPilot, pilotPayload(pulses))
	v.boardPort.inject(t, packet.BoardGPS, make([]byte, 28))

	v.Loop.Tick(ctx, time.Now())

	written := v.boardPort.frames()
	require.Len(t, written[packet.FlightCommand], 1)
	assert.Equal(t, board.FlightCommandPayload(pulses), written[packet.FlightCommand][0].Payload)

	sent := v.remotePort.frames()
	require.Len(t, sent[packet.PilotInput], 1)
	assert.Equal(t, pilotPayload(pulses), sent[packet.PilotInput][0].Payload)
	require.Len(t, sent[packet.GPS], 1)
	require.Len(t, sent[packet.Actuator], 1)
	require.Len(t, sent[packet.APStatus], 1)
	st, err := remote.DecodeAPStatus(sent[packet.APStatus][0].Payload)
	require.NoError(t, err)
	assert.Equal(t, command.NoSequence, st.Sequence)
	assert.Equal(t, pulses, st.Pulses)

	assert.Equal(t, 1.0, testutil.ToFloat64(v.Metrics.FramesDecoded.WithLabelValues(BoardLink, "board-pilot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(v.Metrics.FramesSent.WithLabelValues(RemoteLink, "gps")))
}

func TestCommandsApplied(t *testing.T) {
	v := newTestVehicle(t)
	ctx := context.Background()
	for seq, body := range []string{
		"home,-93.2,45.1,900,90",
		"ap,agl-ft,300",
		"route,1,-93.2,45.1,100,1,-93.3,45.2,-",
		"route_cont,1,-93.4,45.3,200",
		"route_end",
		"set,/autopilot/mode,auto",
	} {
		v.remotePort.in.WriteString(command.Encode(seq, body))
	}
	// repeated sentence is dropped
	v.remotePort.in.WriteString(command.Encode(5, "hb"))

	v.Loop.Tick(ctx, time.Now())
	assert.Empty(t, v.State.Snapshot().Targets, "commands apply on the next tick")
	v.Loop.Tick(ctx, time.Now())

	s := v.State.Snapshot()
	require.NotNil(t, s.Home)
	assert.Equal(t, 900.0, s.Home.AltFt)
	assert.Equal(t, 300.0, s.Targets[command.TargetAGLFt])
	assert.Empty(t, s.Standby)
	require.Len(t, s.Active, 3)
	assert.Equal(t, command.NoAGL, s.Active[1].AGLm)
	assert.InDelta(t, 200*command.FeetToMeters, s.Active[2].AGLm, 1e-9)
	assert.Equal(t, "auto", s.Settings["/autopilot/mode"])
	assert.Equal(t, uint64(1), s.Applied[command.KindRouteEnd])

	assert.Equal(t, 6.0, testutil.ToFloat64(v.Metrics.Commands.WithLabelValues(string(command.Executed))))
	assert.Equal(t, 1.0, testutil.ToFloat64(v.Metrics.Commands.WithLabelValues(string(command.Duplicate))))

	sent := v.remotePort.frames()
	require.NotEmpty(t, sent[packet.APStatus])
	st, err := remote.DecodeAPStatus(sent[packet.APStatus][len(sent[packet.APStatus])-1].Payload)
	require.NoError(t, err)
	assert.Equal(t, 5, st.Sequence)
}

func TestStatusReport(t *testing.T) {
	v := newTestVehicle(t)
	v.remotePort.in.WriteString(command.Encode(0, "ap,speed-kt,25"))
	v.Loop.Tick(context.Background(), time.Now())
	v.Loop.Tick(context.Background(), time.Now())

	rec := httptest.NewRecorder()
	v.Status.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Vehicle   string `json:"vehicle"`
		Ticks     uint64 `json:"ticks"`
		Board     board.Status
		Commanded struct {
			Targets map[string]float64 `json:"targets"`
		} `json:"commanded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "test", doc.Vehicle)
	assert.Equal(t, uint64(2), doc.Ticks)
	assert.True(t, doc.Board.Configured)
	assert.Equal(t, 25.0, doc.Commanded.Targets["speed-kt"])

	rec = httptest.NewRecorder()
	v.Status.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "aura_loop_ticks_total 2")
}

func TestClose(t *testing.T) {
	v := newTestVehicle(t)
	require.NoError(t, v.Close())
	assert.True(t, v.remotePort.closed)
	assert.True(t, v.boardPort.closed)
}

func TestInitBoardOpenFailure(t *testing.T) {
	v := assembleTestVehicle(t, &fakePort{openErr: errors.New("no such device")})
	require.NoError(t, v.InitBoard(context.Background()))
	assert.False(t, board.StatusOf(v.Board).Configured)

	v.Loop.Tick(context.Background(), time.Now())
	written := v.boardPort.frames()
	require.Len(t, written[packet.FlightCommand], 1)
	assert.True(t, board.StatusOf(v.Board).Configured)
}
