package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/aura.go/pkg/command"
	"github.com/robotalks/aura.go/pkg/packet"
	"github.com/robotalks/aura.go/pkg/telemetry"
)

// Shell provides an ishell backed ground station console.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	// ConnectTimeout bounds the wait for a vehicle before running
	// commands given on the command line.
	ConnectTimeout time.Duration

	Shell   *ishell.Shell
	Station *Station

	watch atomic.Bool
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly    bool
	outputJSON  bool
	listenAddr  = ":5050"
	watchOnInit bool

	commands = []*ishell.Cmd{
		&HeartbeatCmd,
		&HomeCmd,
		&APCmd,
		&RouteCmd,
		&RouteContCmd,
		&RouteEndCmd,
		&SetCmd,
		&RawCmd,
		&AgainCmd,
		&SeqCmd,
		&WatchCmd,
		&StatusCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print telemetry in JSON.")
	flag.StringVar(&listenAddr, "listen", listenAddr, "Address the vehicle's uart-server link connects to.")
	flag.BoolVar(&watchOnInit, "watch", watchOnInit, "Print telemetry as it arrives.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive:    !evalOnly,
		OutputJSON:     outputJSON,
		ConnectTimeout: 5 * time.Second,

		Shell:   ishell.New(),
		Station: &Station{},
	}
	s.watch.Store(watchOnInit)
	s.Station.Handler = packet.HandleFrameFunc(s.printFrame)
	s.Station.Dropped = packet.FrameDroppedFunc(func(id packet.ID, err error) {
		if s.watch.Load() {
			s.Shell.Printf("dropped %s: %v\n", id, err)
		}
	})
	s.Station.Connected = func(addr string) {
		if addr == "" {
			s.Shell.SetPrompt(unconnectedPrompt)
			return
		}
		s.Shell.SetPrompt(addr + " > ")
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// SetWatch turns telemetry printing on or off.
func (s *Shell) SetWatch(on bool) {
	s.watch.Store(on)
}

func (s *Shell) printFrame(_ context.Context, frame *packet.Frame) {
	if !s.watch.Load() {
		return
	}
	s.Shell.Println(FormatFrame(frame, s.OutputJSON))
}

// FormatFrame renders a telemetry frame for display.
func FormatFrame(frame *packet.Frame, asJSON bool) string {
	d := telemetry.Decode(frame.ID, frame.Payload)
	if asJSON {
		out, err := json.Marshal(d)
		if err != nil {
			return err.Error()
		}
		return string(out)
	}
	return d.String()
}

// SendCommand sends a command body and prints the sentence.
func SendCommand(c *ishell.Context, body string) error {
	if _, err := command.Parse(body); err != nil {
		c.Err(err)
		return err
	}
	return sendRaw(c, body)
}

func sendRaw(c *ishell.Context, body string) error {
	sentence, err := ShellFrom(c).Station.Send(body)
	if err != nil {
		c.Err(err)
		return err
	}
	c.Print(sentence)
	return nil
}

func (s *Shell) waitConnected(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.ConnectTimeout)
	defer cancel()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for !s.Station.IsConnected() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for vehicle: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// Run listens for the vehicle and runs the shell.
func (s *Shell) Run(ctx context.Context, addr string, args ...string) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalln(err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := s.Station.Serve(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
			log.Println(err)
		}
	}()

	if len(args) > 0 {
		if err := s.waitConnected(ctx); err != nil {
			log.Fatalln(err)
		}
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Printf("Waiting for vehicle on %s ...\n", ln.Addr())
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func joinArgs(c *ishell.Context, min int) (string, bool) {
	if len(c.Args) < min {
		c.Err(fmt.Errorf("expect at least %d arguments", min))
		return "", false
	}
	return strings.Join(c.Args, ","), true
}

func commandCmd(kind command.Kind, min int, aliases []string, help string) ishell.Cmd {
	return ishell.Cmd{
		Name:    string(kind),
		Aliases: aliases,
		Help:    help,
		Func: func(c *ishell.Context) {
			body := string(kind)
			if min > 0 || len(c.Args) > 0 {
				args, ok := joinArgs(c, min)
				if !ok {
					return
				}
				body += "," + args
			}
			SendCommand(c, body)
		},
	}
}

var (
	// HeartbeatCmd sends a heartbeat.
	HeartbeatCmd = commandCmd(command.KindHeartbeat, 0, nil, "")

	// HomeCmd sets the home position.
	HomeCmd = commandCmd(command.KindHome, 4, nil, "LON LAT ALT_FT AZIMUTH")

	// APCmd sets an autopilot target.
	APCmd = commandCmd(command.KindAPTarget, 2, nil, "agl-ft|msl-ft|speed-kt VALUE")

	// RouteCmd replaces the standby route.
	RouteCmd = commandCmd(command.KindRoute, 4, nil, "MODE F1 F2 AGL_FT|- ...")

	// RouteContCmd extends the standby route.
	RouteContCmd = commandCmd(command.KindRouteCont, 4, nil, "MODE F1 F2 AGL_FT|- ...")

	// RouteEndCmd activates the standby route.
	RouteEndCmd = commandCmd(command.KindRouteEnd, 0, nil, "")

	// SetCmd writes a setting.
	SetCmd = commandCmd(command.KindSet, 2, nil, "PATH/ATTR VALUE")

	// RawCmd sends a body without checking it.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "BODY...",
		Func: func(c *ishell.Context) {
			if body, ok := joinArgs(c, 1); ok {
				sendRaw(c, body)
			}
		},
	}

	// AgainCmd resends the last sentence.
	AgainCmd = ishell.Cmd{
		Name:    "again",
		Aliases: []string{"r"},
		Help:    "",
		Func: func(c *ishell.Context) {
			sentence, err := ShellFrom(c).Station.Repeat()
			if err != nil {
				c.Err(err)
				return
			}
			c.Print(sentence)
		},
	}

	// SeqCmd sets the next sequence number.
	SeqCmd = ishell.Cmd{
		Name: "seq",
		Help: "N",
		Func: func(c *ishell.Context) {
			var seq int
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("sequence number expected"))
				return
			}
			if _, err := fmt.Sscan(c.Args[0], &seq); err != nil || seq < 0 {
				c.Err(fmt.Errorf("invalid sequence %q", c.Args[0]))
				return
			}
			ShellFrom(c).Station.SetSequence(seq)
		},
	}

	// WatchCmd toggles telemetry printing.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[on|off]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			on := !s.watch.Load()
			if len(c.Args) > 0 {
				on = c.Args[0] == "on"
			}
			s.SetWatch(on)
		},
	}

	// StatusCmd prints the connection state.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: func(c *ishell.Context) {
			st := ShellFrom(c).Station
			c.Printf("connected=%v frames=%d\n", st.IsConnected(), st.Frames())
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New().Run(context.Background(), listenAddr, flag.Args()...)
}
