package command

import (
	"context"
	"sync"

	"github.com/golang/glog"
)

// Dispatcher routes commands to executors by Kind.
type Dispatcher struct {
	// Fallback executes kinds without a registered executor.
	Fallback Executor

	lock      sync.RWMutex
	executors map[Kind]Executor
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{executors: make(map[Kind]Executor)}
}

// Handle installs the executor for kinds, replacing previous ones.
func (d *Dispatcher) Handle(exec Executor, kinds ...Kind) *Dispatcher {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.executors == nil {
		d.executors = make(map[Kind]Executor)
	}
	for _, kind := range kinds {
		d.executors[kind] = exec
	}
	return d
}

// HandleFunc is the func form of Handle.
func (d *Dispatcher) HandleFunc(fn func(context.Context, Command), kinds ...Kind) *Dispatcher {
	return d.Handle(ExecuteFunc(fn), kinds...)
}

// Execute implements Executor.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) {
	d.lock.RLock()
	exec, ok := d.executors[cmd.Kind()]
	d.lock.RUnlock()
	if !ok {
		exec = d.Fallback
	}
	if exec == nil {
		glog.V(2).Infof("command %s: no executor", cmd.Kind())
		return
	}
	exec.Execute(ctx, cmd)
}
