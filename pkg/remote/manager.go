package remote

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/aura.go/pkg/command"
	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/link"
	"github.com/robotalks/aura.go/pkg/packet"
)

// Port is the byte transport to the ground station.
type Port interface {
	io.ReadWriter
	IsOpen() bool
	Flush() error
	Close() error
}

// Status is exposed to telemetry producers and the status endpoint.
type Status struct {
	Open bool `json:"open"`
	// Sequence is the last accepted command sequence, or -1.
	Sequence    int       `json:"sequence"`
	LastMessage time.Time `json:"lastMessage"`
	Pending     int       `json:"pending"`
}

// Manager owns the ground link.
type Manager struct {
	Writer   *packet.Writer
	Commands *command.Channel

	port   Port
	ap     *Skipper
	health *Skipper
	pay    *Skipper

	lock      sync.RWMutex
	published Status
}

// New creates a Manager over a link built from conf.Link. The link is
// opened here; on failure the Manager is still returned and writes
// retry the open. notifier may be nil.
func New(conf Config, exec command.Executor, notifier link.StateNotifier) (*Manager, error) {
	l, err := link.New("remote", conf.Link)
	if err != nil {
		return nil, err
	}
	l.Notifier = notifier
	if err := l.Open(); err != nil {
		glog.Warningf("remote link unavailable, will retry: %v", err)
	}
	return NewWithPort(conf, l, exec, rand.Intn), nil
}

// NewWithPort creates a Manager over port. intn picks the random skip
// offsets.
func NewWithPort(conf Config, port Port, exec command.Executor, intn func(int) int) *Manager {
	m := &Manager{
		Writer:   &packet.Writer{Dest: port},
		Commands: command.NewChannel(command.NewLineReader(port), exec),
		port:     port,
		ap:       NewSkipper(conf.APStatusSkip, intn),
		health:   NewSkipper(conf.HealthSkip, intn),
		pay:      NewSkipper(conf.PayloadSkip, intn),
	}
	m.publish()
	return m
}

// Port returns the transport.
func (m *Manager) Port() Port {
	return m.port
}

func (m *Manager) send(ctx context.Context, id packet.ID, payload []byte) error {
	return m.Writer.Send(ctx, id, payload)
}

func (m *Manager) sendSkipped(ctx context.Context, s *Skipper, id packet.ID, payload []byte) (bool, error) {
	if !s.Next() {
		return false, nil
	}
	return true, m.send(ctx, id, payload)
}

// GPS sends a GPS packet.
func (m *Manager) GPS(ctx context.Context, payload []byte) error {
	return m.send(ctx, packet.GPS, payload)
}

// IMU sends an IMU packet.
func (m *Manager) IMU(ctx context.Context, payload []byte) error {
	return m.send(ctx, packet.IMU, payload)
}

// AirData sends an air data packet.
func (m *Manager) AirData(ctx context.Context, payload []byte) error {
	return m.send(ctx, packet.AirData, payload)
}

// Filter sends a navigation filter packet.
func (m *Manager) Filter(ctx context.Context, payload []byte) error {
	return m.send(ctx, packet.Filter, payload)
}

// Actuator sends an actuator packet.
func (m *Manager) Actuator(ctx context.Context, payload []byte) error {
	return m.send(ctx, packet.Actuator, payload)
}

// Pilot sends a pilot input packet.
func (m *Manager) Pilot(ctx context.Context, payload []byte) error {
	return m.send(ctx, packet.PilotInput, payload)
}

// APStatus sends an autopilot status packet when its skip count allows.
func (m *Manager) APStatus(ctx context.Context, payload []byte) (bool, error) {
	return m.sendSkipped(ctx, m.ap, packet.APStatus, payload)
}

// Health sends a system health packet when its skip count allows.
func (m *Manager) Health(ctx context.Context, payload []byte) (bool, error) {
	return m.sendSkipped(ctx, m.health, packet.SystemHealth, payload)
}

// Payload sends a payload trigger packet when its skip count allows.
func (m *Manager) Payload(ctx context.Context, payload []byte) (bool, error) {
	return m.sendSkipped(ctx, m.pay, packet.Payload, payload)
}

// PollCommands handles all complete command sentences available now.
func (m *Manager) PollCommands(ctx context.Context) (int, error) {
	defer m.publish()
	return m.Commands.Poll(ctx)
}

// Flush writes queued UART bytes, bounded per call.
func (m *Manager) Flush() error {
	defer m.publish()
	return m.port.Flush()
}

// Status returns the link and command state as of the last poll or
// flush. It is safe to call from any goroutine.
func (m *Manager) Status() Status {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.published
}

// publish runs on the control goroutine, which owns the channel and
// the port.
func (m *Manager) publish() {
	seq, at := m.Commands.LastSequence()
	s := Status{Open: m.port.IsOpen(), Sequence: seq, LastMessage: at}
	if p, ok := m.port.(interface{ Pending() int }); ok {
		s.Pending = p.Pending()
	}
	m.lock.Lock()
	m.published = s
	m.lock.Unlock()
}

// Close closes the link.
func (m *Manager) Close() error {
	return m.port.Close()
}

// AddToLoop implements framework.LoopAdder: commands are read at sense
// priority, queued output is flushed at post-processing priority.
func (m *Manager) AddToLoop(l *framework.Loop) {
	l.AddController(framework.PrLvSense, framework.ControlFunc(func(cc framework.ControlContext) error {
		_, err := m.PollCommands(cc.Context())
		return err
	}))
	l.AddController(framework.PrLvPostProc, framework.ControlFunc(func(framework.ControlContext) error {
		return m.Flush()
	}))
}

// CommandMessage carries an accepted command through the control loop.
type CommandMessage struct {
	Command command.Command
}

// NewMessage implements framework.Message.
func (m *CommandMessage) NewMessage() framework.Message {
	return &CommandMessage{}
}

// LoopExecutor posts accepted commands to a loop, to be consumed by
// controllers on the next tick.
type LoopExecutor struct {
	Loop framework.LoopControl
}

// Execute implements command.Executor.
func (e *LoopExecutor) Execute(_ context.Context, cmd command.Command) {
	e.Loop.PostMessage(&CommandMessage{Command: cmd})
}
