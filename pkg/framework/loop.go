package framework

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the tick period when Loop.Interval is unset.
const DefaultInterval = 20 * time.Millisecond

// Loop is the single-threaded control loop. Every tick runs the
// controllers of each priority level in order, on the Run goroutine.
type Loop struct {
	Interval time.Duration

	levels  [PriorityLevels]level
	runners []Runnable

	lock    sync.Mutex
	pending []Message

	wakeUpCh chan struct{}
	ticks    atomic.Uint64
	overruns atomic.Uint64
}

// LoopAdder installs a component's controllers.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type level struct {
	controllers []Controller

	lock      sync.Mutex
	postHooks []Controller
}

// NewLoop creates a Loop ticking at interval.
func NewLoop(interval time.Duration) *Loop {
	return &Loop{Interval: interval, wakeUpCh: make(chan struct{}, 1)}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers at priorityLevel. Controllers
// that are also Runnable are started with the loop.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	lv := &l.levels[priorityLevel]
	lv.controllers = append(lv.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds background components started with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Overruns returns the number of ticks that took longer than Interval.
func (l *Loop) Overruns() uint64 {
	return l.overruns.Load()
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	defer runner.Wait()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-l.wakeUpCh:
		}
		start := time.Now()
		l.Tick(ctx, start)
		if elapsed := time.Since(start); elapsed > interval {
			l.overruns.Add(1)
			glog.V(1).Infof("loop: tick %d overran by %s", l.Ticks(), elapsed-interval)
		}
	}
}

// RunOrFail runs the loop until ctx is done, exiting on other errors.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}

// PostMessage implements LoopControl.
func (l *Loop) PostMessage(msg Message) {
	l.lock.Lock()
	l.pending = append(l.pending, msg)
	l.lock.Unlock()
}

// PostRunAt implements LoopControl.
func (l *Loop) PostRunAt(priorityLevel int, ctls ...Controller) {
	lv := &l.levels[priorityLevel]
	lv.lock.Lock()
	lv.postHooks = append(lv.postHooks, ctls...)
	lv.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// Tick runs one iteration at the given time. Run calls it on every
// tick; tests call it directly.
func (l *Loop) Tick(ctx context.Context, now time.Time) {
	it := &iteration{Loop: l, ctx: ctx, time: now, tick: l.ticks.Load() + 1}
	l.lock.Lock()
	it.messages, l.pending = l.pending, nil
	l.lock.Unlock()
	for i := range l.levels {
		it.priorityLevel = i
		l.levels[i].run(it)
	}
	l.ticks.Add(1)
}

func (lv *level) run(it *iteration) {
	runControllers(it, lv.controllers)
	lv.lock.Lock()
	hooks := lv.postHooks
	lv.postHooks = nil
	lv.lock.Unlock()
	runControllers(it, hooks)
}

func runControllers(it *iteration, ctls []Controller) {
	for _, ctl := range ctls {
		if err := ctl.Control(it); err != nil {
			glog.Errorf("controller error at level %d: %v", it.priorityLevel, err)
		}
	}
}

type iteration struct {
	*Loop
	ctx           context.Context
	time          time.Time
	tick          uint64
	priorityLevel int
	messages      []Message
}

func (it *iteration) Context() context.Context { return it.ctx }
func (it *iteration) Time() time.Time          { return it.time }
func (it *iteration) Tick() uint64             { return it.tick }
func (it *iteration) PriorityLevel() int       { return it.priorityLevel }
func (it *iteration) Messages() MessageStore   { return it }

func (it *iteration) AddMessages(msgs ...Message) {
	it.messages = append(it.messages, msgs...)
}

type visit struct {
	msg   Message
	taken bool
	stop  bool
}

func (v *visit) CurrentMessage() Message { return v.msg }
func (v *visit) MessageTaken()           { v.taken = true }
func (v *visit) StopProcessing()         { v.stop = true }

func (it *iteration) ProcessMessages(proc MessageProcessor) {
	msgs := it.messages
	remains := make([]Message, 0, len(msgs))
	for n, msg := range msgs {
		v := &visit{msg: msg}
		proc.ProcessMessage(v)
		if !v.taken {
			remains = append(remains, msg)
		}
		if v.stop {
			remains = append(remains, msgs[n+1:]...)
			break
		}
	}
	// messages added while processing land after the remains
	it.messages = append(remains, it.messages[len(msgs):]...)
}
