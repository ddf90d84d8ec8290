package command

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// Executor receives accepted commands.
type Executor interface {
	Execute(context.Context, Command)
}

// ExecuteFunc is func type of Executor.
type ExecuteFunc func(context.Context, Command)

// Execute implements Executor.
func (f ExecuteFunc) Execute(ctx context.Context, cmd Command) {
	f(ctx, cmd)
}

// Outcome classifies what happened to a received line.
type Outcome string

// Outcomes reported to an Observer.
const (
	Executed  Outcome = "executed"
	Duplicate Outcome = "duplicate"
	Rejected  Outcome = "rejected"  // checksum ok, sequence recorded, body unusable
	Malformed Outcome = "malformed" // dropped before sequence handling
	Overflow  Outcome = "overflow"
)

// Observer is told about every line the Channel handles.
type Observer interface {
	CommandObserved(line string, outcome Outcome, err error)
}

// ObserveFunc is func type of Observer.
type ObserveFunc func(string, Outcome, error)

// CommandObserved implements Observer.
func (f ObserveFunc) CommandObserved(line string, outcome Outcome, err error) {
	f(line, outcome, err)
}

// Channel reads sentences from a link, drops corrupt or repeated ones
// and hands the rest to Executor.
type Channel struct {
	Lines    *LineReader
	Tracker  SequenceTracker
	Executor Executor
	Observer Observer
	Clock    func() time.Time
}

// NewChannel creates a Channel.
func NewChannel(lines *LineReader, exec Executor) *Channel {
	return &Channel{Lines: lines, Executor: exec, Clock: time.Now}
}

// Poll handles every complete line currently available and returns
// how many new sentences were accepted.
func (c *Channel) Poll(ctx context.Context) (int, error) {
	var accepted int
	for {
		line, ok, err := c.Lines.ReadLine()
		if err == ErrOverflow {
			c.observe("", Overflow, err)
			continue
		}
		if err != nil || !ok {
			return accepted, err
		}
		if c.HandleLine(ctx, line) {
			accepted++
		}
	}
}

// HandleLine processes one line and reports whether its sequence was new.
// The sequence is recorded even when the body can't be parsed, so a
// ground station stops retransmitting a command this side rejects.
func (c *Channel) HandleLine(ctx context.Context, line string) bool {
	s, err := Decode(line)
	if err != nil {
		c.observe(line, Malformed, err)
		return false
	}
	if !c.Tracker.Accept(s.Seq, c.now()) {
		c.observe(line, Duplicate, nil)
		return false
	}
	cmd, err := Parse(s.Body)
	if err != nil {
		c.observe(line, Rejected, err)
		return true
	}
	if exec := c.Executor; exec != nil {
		exec.Execute(ctx, cmd)
	}
	c.observe(line, Executed, nil)
	return true
}

// LastSequence returns the last accepted sequence number and time.
func (c *Channel) LastSequence() (int, time.Time) {
	return c.Tracker.Last()
}

func (c *Channel) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *Channel) observe(line string, outcome Outcome, err error) {
	if err != nil {
		glog.V(2).Infof("command %s %q: %v", outcome, line, err)
	}
	if o := c.Observer; o != nil {
		o.CommandObserved(line, outcome, err)
	}
}
