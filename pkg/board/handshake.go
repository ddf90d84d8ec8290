package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/aura.go/pkg/framework"
	"github.com/robotalks/aura.go/pkg/packet"
)

// ErrHandshakeTimeout indicates no matching ACK arrived in time.
var ErrHandshakeTimeout = errors.New("timeout waiting for ack")

// Step is one configuration packet and the ACK expected for it.
type Step struct {
	Name    string
	ID      packet.ID
	Payload []byte
	// SubID must match the ACK's sub id when MatchSubID is set.
	SubID      byte
	MatchSubID bool
	// Final steps commit the others and are resent after any of them
	// is acknowledged late.
	Final bool
}

// Matches reports whether ack acknowledges this step.
func (s Step) Matches(ack AckRecord) bool {
	if ack.ID != s.ID {
		return false
	}
	return !s.MatchSubID || ack.SubID == s.SubID
}

// StepResult is the outcome of one step.
type StepResult struct {
	Step    Step
	Acked   bool
	Elapsed time.Duration
	Err     error
}

// StepError reports a failed step.
type StepError struct {
	Step string
	Err  error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("handshake %s: %v", e.Step, e.Err)
}

// Unwrap returns the cause.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Sender writes one frame.
type Sender interface {
	Send(ctx context.Context, id packet.ID, payload []byte) error
}

// Poller drains pending input and dispatches completed frames.
type Poller interface {
	Poll(ctx context.Context) (int, error)
}

// StepObserver is notified after each step.
type StepObserver interface {
	StepCompleted(StepResult)
}

// StepCompletedFunc is func form of StepObserver.
type StepCompletedFunc func(StepResult)

// StepCompleted implements StepObserver.
func (f StepCompletedFunc) StepCompleted(r StepResult) {
	f(r)
}

// Handshake pushes configuration steps to the board, waiting for each
// ACK. It blocks the caller for at most Timeout per step.
type Handshake struct {
	Sender Sender
	Poller Poller
	// Ack is updated by the frame handler behind Poller.
	Ack     *AckRecord
	Timeout time.Duration
	// AbortOnTimeout stops at the first failed step.
	AbortOnTimeout bool
	// PollInterval pauses between polls, zero spins.
	PollInterval time.Duration
	Observer     StepObserver

	Now   func() time.Time
	Sleep func(time.Duration)
}

func (h *Handshake) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handshake) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if h.Sleep != nil {
		h.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (h *Handshake) timeout() time.Duration {
	if h.Timeout <= 0 {
		return DefaultAckTimeout
	}
	return h.Timeout
}

func (h *Handshake) observe(res StepResult) {
	if obs := h.Observer; obs != nil {
		obs.StepCompleted(res)
	}
}

// Run executes steps in order and returns one result per executed step.
// The error aggregates every failed step.
func (h *Handshake) Run(ctx context.Context, steps []Step) ([]StepResult, error) {
	var errs framework.AggregatedError
	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			errs.Add(err)
			break
		}
		res := h.RunStep(ctx, step)
		results = append(results, res)
		h.observe(res)
		if res.Acked {
			glog.V(1).Infof("board: %s acked in %s", step.Name, res.Elapsed)
			continue
		}
		glog.Warningf("board: %s failed after %s: %v", step.Name, res.Elapsed, res.Err)
		errs.Add(&StepError{Step: step.Name, Err: res.Err})
		if h.AbortOnTimeout {
			break
		}
	}
	return results, errs.Aggregate()
}

// RunStep sends one step and polls until it is acknowledged or
// strictly more than Timeout has elapsed.
func (h *Handshake) RunStep(ctx context.Context, step Step) StepResult {
	timeout := h.timeout()
	res := StepResult{Step: step}
	h.Ack.Clear()
	start := h.now()
	if err := h.Sender.Send(ctx, step.ID, step.Payload); err != nil {
		res.Err = err
		res.Elapsed = h.now().Sub(start)
		return res
	}
	for {
		if _, err := h.Poller.Poll(ctx); err != nil {
			glog.V(2).Infof("board: poll during %s: %v", step.Name, err)
		}
		res.Elapsed = h.now().Sub(start)
		if step.Matches(*h.Ack) {
			res.Acked = true
			return res
		}
		if res.Elapsed > timeout {
			res.Err = ErrHandshakeTimeout
			return res
		}
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}
		h.sleep(h.PollInterval)
	}
}

// Retry continues an unfinished handshake from the control loop. Every
// Advance polls once, settles the step in flight and sends at most one
// step, so it never waits for an ACK.
type Retry struct {
	h     *Handshake
	steps []Step
	// indexes into steps, non-final steps first
	pending  []int
	next     int
	inFlight bool
	start    time.Time
}

// Resume prepares a Retry for the steps not acknowledged in results,
// which is the output of Run over the same steps. Final steps are
// repeated while any other step is still pending.
func (h *Handshake) Resume(steps []Step, results []StepResult) *Retry {
	acked := make([]bool, len(steps))
	for n, res := range results {
		if n < len(steps) && res.Acked {
			acked[n] = true
		}
	}
	var pending, final []int
	for n, step := range steps {
		switch {
		case step.Final:
			final = append(final, n)
		case !acked[n]:
			pending = append(pending, n)
		}
	}
	for _, n := range final {
		if len(pending) > 0 || !acked[n] {
			pending = append(pending, n)
		}
	}
	return &Retry{h: h, steps: steps, pending: pending}
}

// Done reports whether every step is acknowledged.
func (r *Retry) Done() bool {
	return len(r.pending) == 0
}

// Pending returns the names of unacknowledged steps.
func (r *Retry) Pending() []string {
	names := make([]string, len(r.pending))
	for n, i := range r.pending {
		names[n] = r.steps[i].Name
	}
	return names
}

// Advance makes progress without blocking and reports whether the
// handshake is complete.
func (r *Retry) Advance(ctx context.Context) bool {
	if r.inFlight && !r.settle(ctx) {
		return false
	}
	if r.Done() {
		return true
	}
	if r.next >= len(r.pending) || (r.steps[r.pending[r.next]].Final && r.nonFinalPending()) {
		r.next = 0
	}
	step := r.steps[r.pending[r.next]]
	r.h.Ack.Clear()
	r.start = r.h.now()
	if err := r.h.Sender.Send(ctx, step.ID, step.Payload); err != nil {
		glog.V(1).Infof("board: resend %s: %v", step.Name, err)
		r.h.observe(StepResult{Step: step, Err: err})
		r.next++
		return false
	}
	r.inFlight = true
	return false
}

// settle checks the step in flight, returning false while it is still
// waiting for its ACK.
func (r *Retry) settle(ctx context.Context) bool {
	if _, err := r.h.Poller.Poll(ctx); err != nil {
		glog.V(2).Infof("board: poll during retry: %v", err)
	}
	step := r.steps[r.pending[r.next]]
	res := StepResult{Step: step, Elapsed: r.h.now().Sub(r.start)}
	switch {
	case step.Matches(*r.h.Ack):
		res.Acked = true
		glog.V(1).Infof("board: %s acked on retry", step.Name)
		r.pending = append(r.pending[:r.next], r.pending[r.next+1:]...)
	case res.Elapsed > r.h.timeout():
		res.Err = ErrHandshakeTimeout
		glog.V(1).Infof("board: %s still unacknowledged", step.Name)
		r.next++
	default:
		return false
	}
	r.inFlight = false
	r.h.observe(res)
	return true
}

func (r *Retry) nonFinalPending() bool {
	return len(r.pending) > 0 && !r.steps[r.pending[0]].Final
}
