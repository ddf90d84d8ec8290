package board

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/link"
	"github.com/robotalks/aura.go/pkg/packet"
)

// Driver is the capability set shared by every board variant.
type Driver interface {
	// Init opens the board and pushes its configuration once.
	Init(ctx context.Context) error
	// Update drains the board link and decodes sensor packets.
	Update(ctx context.Context) error
	// Actuate writes one set of actuator outputs.
	Actuate(ctx context.Context, act Actuators) error
	Close() error
}

// NewDriver selects the driver variant from conf.Kind.
func NewDriver(conf Config) (Driver, error) {
	conf = conf.WithDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	switch conf.Kind {
	case KindAPM2:
		return NewAPM2(conf)
	default:
		return None{}, nil
	}
}

// None is the driver used when no board is attached.
type None struct{}

// Init implements Driver.
func (None) Init(context.Context) error { return nil }

// Update implements Driver.
func (None) Update(context.Context) error { return nil }

// Actuate implements Driver.
func (None) Actuate(context.Context, Actuators) error { return nil }

// Close implements Driver.
func (None) Close() error { return nil }

// Port is the byte transport to the board.
type Port interface {
	io.ReadWriter
	Open() error
	Close() error
	Flush() error
}

// APM2 drives an ArduPilot Mega 2 style sensor/actuator board.
type APM2 struct {
	Config Config
	Table  *packet.Table
	Reader *packet.Reader
	Writer *packet.Writer
	// Handshake is prepared from Config and may be customized before Init.
	Handshake *Handshake

	port Port

	ack        AckRecord
	configured bool
	retry      *Retry

	// guarded by lock for readers outside the control loop
	lock      sync.RWMutex
	sensors   Sensors
	published Status

	now func() time.Time
}

// NewAPM2 creates the driver over a link built from conf.Link.
func NewAPM2(conf Config) (*APM2, error) {
	conf = conf.WithDefaults()
	l, err := link.New("board", conf.Link)
	if err != nil {
		return nil, err
	}
	return NewAPM2WithPort(conf, l), nil
}

// NewAPM2WithPort creates the driver over an existing port.
func NewAPM2WithPort(conf Config, port Port) *APM2 {
	conf = conf.WithDefaults()
	b := &APM2{Config: conf, port: port, now: time.Now}
	b.Table = packet.NewTable("board")
	b.Table.RegisterFunc(packet.Ack, b.handleAck)
	b.Table.RegisterFunc(packet.BoardPilot, b.handlePilot)
	b.Table.RegisterFunc(packet.BoardIMU, b.handleIMU)
	b.Table.RegisterFunc(packet.BoardGPS, b.handleGPS)
	b.Table.RegisterFunc(packet.BoardBaro, b.handleBaro)
	b.Table.RegisterFunc(packet.BoardAnalog, b.handleAnalog)
	b.Reader = packet.NewReader(port, b.Table)
	b.Writer = &packet.Writer{Dest: port}
	b.Handshake = &Handshake{
		Sender:         b,
		Poller:         b.Reader,
		Ack:            &b.ack,
		Timeout:        conf.AckTimeout,
		AbortOnTimeout: conf.AbortOnTimeout,
	}
	return b
}

// Port returns the underlying transport.
func (b *APM2) Port() Port {
	return b.port
}

// Send implements Sender. Frames are flushed immediately so a
// handshake step reaches the board before polling for its ACK.
func (b *APM2) Send(ctx context.Context, id packet.ID, payload []byte) error {
	if err := b.Writer.Send(ctx, id, payload); err != nil {
		return err
	}
	return b.port.Flush()
}

// Init implements Driver. A failed handshake or an unopened port is
// reported but leaves the driver usable; Actuate resumes the handshake
// one step per tick and writes reopen the port.
func (b *APM2) Init(ctx context.Context) error {
	if err := b.port.Open(); err != nil {
		var linkErr *link.Error
		if !errors.As(err, &linkErr) {
			err = &link.Error{Op: "open", Link: "board", Err: err}
		}
		return err
	}
	if baud := b.Config.RequestBaud; baud != 0 {
		if err := b.RequestBaud(ctx, baud); err != nil {
			return err
		}
	}
	return b.Configure(ctx)
}

// RequestBaud asks the board to switch its serial rate.
func (b *APM2) RequestBaud(ctx context.Context, baud uint32) error {
	glog.Infof("board: requesting baud %d", baud)
	return b.Send(ctx, packet.Baud, BaudPayload(baud))
}

// Configure runs the whole handshake, blocking, unless it already
// succeeded. Unacknowledged steps are left for Actuate to resume.
func (b *APM2) Configure(ctx context.Context) error {
	if b.configured {
		return nil
	}
	steps := b.Config.Steps()
	results, err := b.Handshake.Run(ctx, steps)
	defer b.publish()
	if err != nil {
		b.retry = b.Handshake.Resume(steps, results)
		return err
	}
	b.configured = true
	b.retry = nil
	glog.Info("board: configuration acknowledged")
	return nil
}

// resume advances an unfinished handshake by at most one step.
func (b *APM2) resume(ctx context.Context) {
	if b.retry == nil {
		b.retry = b.Handshake.Resume(b.Config.Steps(), nil)
	}
	defer b.publish()
	if !b.retry.Advance(ctx) {
		return
	}
	b.configured = true
	b.retry = nil
	glog.Info("board: configuration acknowledged")
}

// Configured reports whether every handshake step was acknowledged.
func (b *APM2) Configured() bool {
	return b.configured
}

// LastAck returns the most recent acknowledgment.
func (b *APM2) LastAck() AckRecord {
	return b.ack
}

// Update implements Driver.
func (b *APM2) Update(ctx context.Context) error {
	_, err := b.Reader.Poll(ctx)
	b.publish()
	return err
}

// Actuate implements Driver.
func (b *APM2) Actuate(ctx context.Context, act Actuators) error {
	if !b.configured {
		b.resume(ctx)
	}
	return b.Send(ctx, packet.FlightCommand, FlightCommandPayload(act.Pulses()))
}

// Close implements Driver.
func (b *APM2) Close() error {
	return b.port.Close()
}

// Sensors returns a snapshot of the latest decoded sensor packets.
func (b *APM2) Sensors() Sensors {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.sensors
}

func (b *APM2) sizeError(err error) {
	glog.Warningf("board: %v", err)
	b.lock.Lock()
	b.sensors.SizeErrors++
	b.lock.Unlock()
}

func (b *APM2) handleAck(_ context.Context, f *packet.Frame) {
	ack, err := DecodeAck(f.Payload)
	if err != nil {
		b.sizeError(err)
		return
	}
	glog.V(2).Infof("board: ack %s/%d", ack.ID, ack.SubID)
	b.ack = ack
}

func (b *APM2) update(r *Reading, apply func()) {
	b.lock.Lock()
	apply()
	r.Count++
	r.Timestamp = b.now()
	b.lock.Unlock()
}

func (b *APM2) handlePilot(_ context.Context, f *packet.Frame) {
	v, err := DecodePilot(f.Payload)
	if err != nil {
		b.sizeError(err)
		return
	}
	b.update(&b.sensors.PilotReading, func() { b.sensors.Pilot = v })
}

func (b *APM2) handleIMU(_ context.Context, f *packet.Frame) {
	v, err := DecodeIMU(f.Payload)
	if err != nil {
		b.sizeError(err)
		return
	}
	b.update(&b.sensors.IMUReading, func() { b.sensors.IMU = v })
}

func (b *APM2) handleGPS(_ context.Context, f *packet.Frame) {
	v, err := DecodeGPS(f.Payload)
	if err != nil {
		b.sizeError(err)
		return
	}
	b.update(&b.sensors.GPSReading, func() { b.sensors.GPS = v })
}

func (b *APM2) handleBaro(_ context.Context, f *packet.Frame) {
	v, err := DecodeBaro(f.Payload)
	if err != nil {
		b.sizeError(err)
		return
	}
	b.update(&b.sensors.BaroReading, func() { b.sensors.Baro = v })
}

func (b *APM2) handleAnalog(_ context.Context, f *packet.Frame) {
	v, err := DecodeAnalog(f.Payload)
	if err != nil {
		b.sizeError(err)
		return
	}
	b.update(&b.sensors.AnalogReading, func() { b.sensors.Analog = v })
}

// Status summarizes a driver for monitoring.
type Status struct {
	Kind       Kind              `json:"kind"`
	Configured bool              `json:"configured"`
	LastAck    AckRecord         `json:"lastAck"`
	Packets    map[string]uint64 `json:"packets,omitempty"`
	SizeErrors uint64            `json:"sizeErrors"`
}

// Status returns the state as of the last Update, Actuate or Init.
// It is safe to call from any goroutine.
func (b *APM2) Status() Status {
	b.lock.RLock()
	defer b.lock.RUnlock()
	s := b.sensors
	st := b.published
	st.Kind = KindAPM2
	st.Packets = map[string]uint64{
		packet.BoardPilot.String():  s.PilotReading.Count,
		packet.BoardIMU.String():    s.IMUReading.Count,
		packet.BoardGPS.String():    s.GPSReading.Count,
		packet.BoardBaro.String():   s.BaroReading.Count,
		packet.BoardAnalog.String(): s.AnalogReading.Count,
	}
	st.SizeErrors = s.SizeErrors
	return st
}

func (b *APM2) publish() {
	b.lock.Lock()
	b.published.Configured = b.configured
	b.published.LastAck = b.ack
	b.lock.Unlock()
}

// StatusOf reports on any driver. Without a board there is nothing
// to configure.
func StatusOf(d Driver) Status {
	if r, ok := d.(interface{ Status() Status }); ok {
		return r.Status()
	}
	return Status{Kind: KindNone, Configured: true}
}

// ActuatorMessage carries actuator outputs to the board through the
// control loop.
type ActuatorMessage struct {
	Actuators
}

// NewMessage implements framework.Message.
func (m *ActuatorMessage) NewMessage() framework.Message {
	return &ActuatorMessage{}
}

// Controller runs a Driver inside the control loop: updates at sense
// priority, writes the latest ActuatorMessage at actuate priority.
type Controller struct {
	Driver Driver

	last Actuators
}

// NewController wraps drv.
func NewController(drv Driver) *Controller {
	return &Controller{Driver: drv}
}

// AddToLoop implements framework.LoopAdder.
func (c *Controller) AddToLoop(l *framework.Loop) {
	l.AddController(framework.PrLvSense, framework.ControlFunc(c.sense))
	l.AddController(framework.PrLvAcuate, framework.ControlFunc(c.actuate))
}

// Last returns the most recently written outputs.
func (c *Controller) Last() Actuators {
	return c.last
}

func (c *Controller) sense(cc framework.ControlContext) error {
	return c.Driver.Update(cc.Context())
}

func (c *Controller) actuate(cc framework.ControlContext) error {
	cc.Messages().ProcessMessages(framework.ProcessMessageFunc(func(mc framework.MessageProcessingContext) {
		if m, ok := mc.CurrentMessage().(*ActuatorMessage); ok {
			c.last = m.Actuators
			mc.MessageTaken()
		}
	}))
	return c.Driver.Actuate(cc.Context(), c.last)
}
