package vehicle

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/aura.go/pkg/command"
)

// Snapshot is the commanded state, as reported on /status.
type Snapshot struct {
	Home     *command.Home                `json:"home,omitempty"`
	Targets  map[command.APTarget]float64 `json:"targets,omitempty"`
	Standby  []command.Waypoint           `json:"standbyRoute,omitempty"`
	Active   []command.Waypoint           `json:"activeRoute,omitempty"`
	Settings map[string]string            `json:"settings,omitempty"`
	LookAt   *command.LookAt              `json:"lookAt,omitempty"`
	Task     string                       `json:"task,omitempty"`
	FCS      []string                     `json:"fcs,omitempty"`
	Applied  map[command.Kind]uint64      `json:"applied,omitempty"`
}

// State holds what the ground station commanded. Commands are applied
// on the control goroutine, snapshots may be taken from anywhere.
type State struct {
	// RouteActivated is called when a standby route becomes active.
	RouteActivated func(waypoints int)

	lock sync.RWMutex
	s    Snapshot
}

// NewState creates an empty State.
func NewState() *State {
	return &State{s: Snapshot{
		Targets:  make(map[command.APTarget]float64),
		Settings: make(map[string]string),
		Applied:  make(map[command.Kind]uint64),
	}}
}

// Register installs the state's executors into d.
func (st *State) Register(d *command.Dispatcher) {
	d.HandleFunc(st.apply,
		command.KindHome,
		command.KindRoute,
		command.KindRouteCont,
		command.KindRouteEnd,
		command.KindTask,
		command.KindAPTarget,
		command.KindFCSUpdate,
		command.KindSet,
		command.KindLookAt,
	)
	// heartbeats and waypoint updates only count
	d.HandleFunc(st.count, command.KindHeartbeat, command.KindWaypoint)
}

func (st *State) count(_ context.Context, cmd command.Command) {
	st.lock.Lock()
	st.s.Applied[cmd.Kind()]++
	st.lock.Unlock()
}

func (st *State) apply(_ context.Context, cmd command.Command) {
	var activated = -1
	st.lock.Lock()
	st.s.Applied[cmd.Kind()]++
	switch c := cmd.(type) {
	case command.Home:
		st.s.Home = &c
	case command.Route:
		if c.Append {
			st.s.Standby = append(st.s.Standby, c.Waypoints...)
		} else {
			st.s.Standby = append([]command.Waypoint(nil), c.Waypoints...)
		}
	case command.RouteEnd:
		st.s.Active, st.s.Standby = st.s.Standby, nil
		activated = len(st.s.Active)
	case command.Task:
		st.s.Task = c.Body
	case command.AutopilotTarget:
		st.s.Targets[c.Target] = c.Value
	case command.FCSUpdate:
		st.s.FCS = c.Tokens
	case command.Set:
		st.s.Settings[c.Path+"/"+c.Attr] = c.Value
	case command.LookAt:
		st.s.LookAt = &c
	}
	st.lock.Unlock()

	glog.V(2).Infof("applied %s", cmd.Kind())
	if activated >= 0 && st.RouteActivated != nil {
		st.RouteActivated(activated)
	}
}

// Snapshot returns a copy of the state.
func (st *State) Snapshot() Snapshot {
	st.lock.RLock()
	defer st.lock.RUnlock()
	s := st.s
	s.Targets = copyMap(st.s.Targets)
	s.Settings = copyMap(st.s.Settings)
	s.Applied = copyMap(st.s.Applied)
	s.Standby = append([]command.Waypoint(nil), st.s.Standby...)
	s.Active = append([]command.Waypoint(nil), st.s.Active...)
	s.FCS = append([]string(nil), st.s.FCS...)
	return s
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
