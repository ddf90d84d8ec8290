// Package vehicle assembles the autopilot process: the control loop
// driving the board and the ground link, plus monitoring around them.
package vehicle

import (
	"context"
	"errors"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/robotalks/aura.go/pkg/board"
	"github.com/robotalks/aura.go/pkg/command"
	"github.com/robotalks/aura.go/pkg/env"
	"github.com/robotalks/aura.go/pkg/events"
	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/link"
	"github.com/robotalks/aura.go/pkg/metrics"
	"github.com/robotalks/aura.go/pkg/mirror"
	"github.com/robotalks/aura.go/pkg/mqtt"
	"github.com/robotalks/aura.go/pkg/packet"
	"github.com/robotalks/aura.go/pkg/remote"
	"github.com/robotalks/aura.go/pkg/status"
)

// Link names used in metrics, events and mirror topics.
const (
	RemoteLink = "remote"
	BoardLink  = "board"
)

// Vehicle is the assembled process.
type Vehicle struct {
	Config *env.Config

	Loop     *framework.Loop
	Remote   *remote.Manager
	Board    board.Driver
	BoardCtl *board.Controller
	Commands *command.Dispatcher
	State    *State

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Events   *events.Log
	Queue    *mqtt.Queue
	Mirror   *mirror.Mirror
	Status   *status.Server
}

// New creates the links from conf and assembles a Vehicle.
func New(conf *env.Config) (*Vehicle, error) {
	evs, err := events.New(conf.Events)
	if err != nil {
		return nil, err
	}
	v := &Vehicle{Config: conf, Events: evs}

	loop := framework.NewLoop(conf.Loop.Interval)
	mgr, err := remote.New(conf.RemoteLink, &remote.LoopExecutor{Loop: loop}, evs)
	if err != nil {
		return nil, err
	}
	drv, err := board.NewDriver(conf.Board)
	if err != nil {
		mgr.Close()
		return nil, err
	}
	if apm2, ok := drv.(*board.APM2); ok {
		if l, ok := apm2.Port().(*link.Link); ok {
			l.Notifier = evs
		}
	}

	if conf.MQTT.URL != "" {
		if v.Queue, err = mqtt.NewQueueFromURL(conf.MQTT.URL); err != nil {
			mgr.Close()
			drv.Close()
			return nil, err
		}
		v.Mirror = mirror.New(v.Queue, conf.VehicleID, conf.MQTT)
	}

	v.assemble(loop, mgr, drv)
	return v, nil
}

// Assemble wires an already created ground link manager and board
// driver. evs, queue and mirror may be nil.
func Assemble(conf *env.Config, loop *framework.Loop, mgr *remote.Manager, drv board.Driver, evs *events.Log, m *mirror.Mirror) *Vehicle {
	v := &Vehicle{Config: conf, Events: evs, Mirror: m}
	v.assemble(loop, mgr, drv)
	return v
}

func (v *Vehicle) assemble(loop *framework.Loop, mgr *remote.Manager, drv board.Driver) {
	v.Loop, v.Remote, v.Board = loop, mgr, drv
	v.Registry = metrics.NewRegistry()
	v.Metrics = metrics.New(v.Registry)
	v.Metrics.WatchLoop(loop)

	v.State = NewState()
	v.State.RouteActivated = func(n int) {
		v.Events.Event("route-activated", zap.Int("waypoints", n))
	}
	v.Commands = command.NewDispatcher()
	v.Commands.Fallback = command.ExecuteFunc(func(_ context.Context, cmd command.Command) {
		glog.Warningf("command %s not handled", cmd.Kind())
	})
	v.State.Register(v.Commands)

	v.wireRemote()
	v.wireBoard()

	v.BoardCtl = board.NewController(drv)
	loop.Add(v.Remote, v.BoardCtl)
	loop.AddController(framework.PrLvControl, framework.ControlFunc(v.control))
	// after the board controller wrote the outputs
	loop.AddController(framework.PrLvAcuate, framework.ControlFunc(v.report))

	v.Status = status.New(v.Config.HTTP, status.Sources{
		VehicleID: v.Config.VehicleID,
		Session:   v.Events.Session(),
		Loop:      loop,
		Remote:    mgr.Status,
		Board:     func() board.Status { return board.StatusOf(drv) },
		Commanded: func() any { return v.State.Snapshot() },
	}, metrics.Handler(v.Registry))
}

func (v *Vehicle) wireRemote() {
	sent := packet.Handlers{v.Metrics.Sent(RemoteLink)}
	if v.Mirror != nil {
		sent = append(sent, v.Mirror.Tap(RemoteLink))
	}
	v.Remote.Writer.Tap = sent
	v.Remote.Commands.Observer = commandObservers{v.Metrics, v.Events}
	if l, ok := v.Remote.Port().(*link.Link); ok {
		v.Metrics.WatchLink(l)
	}
}

func (v *Vehicle) wireBoard() {
	apm2, ok := v.Board.(*board.APM2)
	if !ok {
		return
	}
	decoded := packet.Handlers{v.Metrics.Decoded(BoardLink), &Forwarder{Remote: v.Remote}}
	sent := packet.Handlers{v.Metrics.Sent(BoardLink)}
	if v.Mirror != nil {
		decoded = append(decoded, v.Mirror.Tap(BoardLink))
		sent = append(sent, v.Mirror.Tap(BoardLink))
	}
	apm2.Table.Tap = decoded
	apm2.Writer.Tap = sent
	apm2.Reader.Parser.Notifier = v.Metrics.Dropped(BoardLink)
	apm2.Handshake.Observer = stepObservers{v.Metrics, v.Events}
	if l, ok := apm2.Port().(*link.Link); ok {
		v.Metrics.WatchLink(l)
	}
}

// control applies the commands accepted during the last tick and
// passes the pilot's sticks through while the manual switch is on.
func (v *Vehicle) control(cc framework.ControlContext) error {
	cc.Messages().ProcessMessages(framework.ProcessMessageFunc(func(mc framework.MessageProcessingContext) {
		if m, ok := mc.CurrentMessage().(*remote.CommandMessage); ok {
			v.Commands.Execute(cc.Context(), m.Command)
			mc.MessageTaken()
		}
	}))
	if apm2, ok := v.Board.(*board.APM2); ok {
		s := apm2.Sensors()
		if s.PilotReading.Count > 0 && s.Pilot.Manual() {
			cc.Messages().AddMessages(&board.ActuatorMessage{Actuators: ManualActuators(s.Pilot)})
		}
	}
	return nil
}

// ManualActuators maps receiver channels one to one onto the outputs.
func ManualActuators(p board.PilotInput) board.Actuators {
	n := p.Normalized()
	return board.Actuators{
		Aileron: n[0], Elevator: n[1], Throttle: n[2], Rudder: n[3],
		Channel5: n[4], Channel6: n[5], Channel7: n[6], Channel8: n[7],
	}
}

// report sends the outputs written this tick and the autopilot status
// to the ground.
func (v *Vehicle) report(cc framework.ControlContext) error {
	ctx := cc.Context()
	pulses := v.BoardCtl.Last().Pulses()
	var errs framework.AggregatedError
	errs.Add(v.Remote.Actuator(ctx, board.FlightCommandPayload(pulses)))
	seq, _ := v.Remote.Commands.LastSequence()
	_, err := v.Remote.APStatus(ctx, remote.APStatusPayload(seq, pulses))
	errs.Add(err)
	return errs.Aggregate()
}

// Run initializes the board and runs the loop, the status server and
// the mirror connection until ctx is done.
func (v *Vehicle) Run(ctx context.Context) error {
	defer v.Close()
	if err := v.InitBoard(ctx); err != nil {
		return err
	}
	runner := framework.NewRunnerWith(ctx)
	if v.Queue != nil {
		runner.Go(framework.NamedRun("mqtt", framework.RunFunc(v.runQueue)))
	}
	return runner.Go(
		framework.NamedRun("loop", v.Loop),
		framework.NamedRun("status", v.Status),
	).Wait()
}

// InitBoard opens and configures the board. An unopened port or
// unacknowledged steps leave the vehicle running degraded: writes
// reopen the port and the control loop resumes the handshake.
func (v *Vehicle) InitBoard(ctx context.Context) error {
	err := v.Board.Init(ctx)
	if err == nil {
		return nil
	}
	var (
		steps   *framework.AggregatedError
		linkErr *link.Error
	)
	if !errors.As(err, &steps) && !errors.As(err, &linkErr) {
		return err
	}
	glog.Warningf("board: %v, continuing without configuration", err)
	return nil
}

func (v *Vehicle) runQueue(ctx context.Context) error {
	if token := v.Queue.Connect(); token.Wait() && token.Error() != nil {
		glog.Warningf("mqtt: %v", token.Error())
	}
	<-ctx.Done()
	return ctx.Err()
}

// Close releases the links and the event log.
func (v *Vehicle) Close() error {
	var errs framework.AggregatedError
	errs.Add(v.Remote.Close())
	errs.Add(v.Board.Close())
	if v.Queue != nil {
		errs.Add(v.Queue.Close())
	}
	errs.Add(v.Events.Close())
	return errs.Aggregate()
}

type commandObservers []command.Observer

func (o commandObservers) CommandObserved(line string, outcome command.Outcome, err error) {
	for _, obs := range o {
		obs.CommandObserved(line, outcome, err)
	}
}

type stepObservers []board.StepObserver

func (o stepObservers) StepCompleted(r board.StepResult) {
	for _, obs := range o {
		obs.StepCompleted(r)
	}
}
