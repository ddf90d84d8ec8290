package command

import (
	"strconv"
	"strings"
)

// Kind selects a command by its first token.
type Kind string

// Known command kinds.
const (
	KindHeartbeat Kind = "hb"
	KindHome      Kind = "home"
	KindRoute     Kind = "route"
	KindRouteCont Kind = "route_cont"
	KindRouteEnd  Kind = "route_end"
	KindTask      Kind = "task"
	KindAPTarget  Kind = "ap"
	KindFCSUpdate Kind = "fcs-update"
	KindSet       Kind = "set"
	KindWaypoint  Kind = "wp"
	KindLookAt    Kind = "la"
)

// FeetToMeters converts altitudes given in feet.
const FeetToMeters = 0.3048

// NoAGL marks a route waypoint without an altitude ("-").
const NoAGL = -9999.9

// Command is a parsed command body.
type Command interface {
	Kind() Kind
}

// Heartbeat keeps the link alive, no action.
type Heartbeat struct{}

// Home sets the home position.
type Home struct {
	LonDeg     float64
	LatDeg     float64
	AltFt      float64
	AzimuthDeg float64
}

// Waypoint is one route entry.
type Waypoint struct {
	Mode   int
	Field1 float64
	Field2 float64
	// AGLm is NoAGL when unspecified.
	AGLm float64
}

// Route replaces (or with Append, extends) the standby route.
type Route struct {
	Append    bool
	Waypoints []Waypoint
}

// RouteEnd activates the standby route.
type RouteEnd struct{}

// Task requests a task; Body is the whole command.
type Task struct {
	Body string
}

// APTarget names an autopilot target.
type APTarget string

// Autopilot targets.
const (
	TargetAGLFt   APTarget = "agl-ft"
	TargetMSLFt   APTarget = "msl-ft"
	TargetSpeedKt APTarget = "speed-kt"
)

// AutopilotTarget sets one autopilot target value.
type AutopilotTarget struct {
	Target APTarget
	Value  float64
}

// FCSUpdate forwards flight control tuning tokens.
type FCSUpdate struct {
	Tokens []string
}

// Set writes a value to a settings path.
type Set struct {
	Path  string
	Attr  string
	Value string
}

// WaypointUpdate is accepted for compatibility and has no effect.
type WaypointUpdate struct {
	Index  int
	LonDeg float64
	LatDeg float64
	AltFt  float64
}

// LookAtFrame selects the coordinates of a pointing target.
type LookAtFrame string

// Pointing frames.
const (
	FrameNED   LookAtFrame = "ned"
	FrameWGS84 LookAtFrame = "wgs84"
)

// LookAt sets the pointing target. NED uses North/East/Down,
// WGS84 uses LonDeg/LatDeg.
type LookAt struct {
	Frame  LookAtFrame
	North  float64
	East   float64
	Down   float64
	LonDeg float64
	LatDeg float64
}

// Kind implementations.
func (Heartbeat) Kind() Kind       { return KindHeartbeat }
func (Home) Kind() Kind            { return KindHome }
func (RouteEnd) Kind() Kind        { return KindRouteEnd }
func (Task) Kind() Kind            { return KindTask }
func (AutopilotTarget) Kind() Kind { return KindAPTarget }
func (FCSUpdate) Kind() Kind       { return KindFCSUpdate }
func (Set) Kind() Kind             { return KindSet }
func (WaypointUpdate) Kind() Kind  { return KindWaypoint }
func (LookAt) Kind() Kind          { return KindLookAt }

// Kind implements Command.
func (r Route) Kind() Kind {
	if r.Append {
		return KindRouteCont
	}
	return KindRoute
}

// Parse interprets a command body.
func Parse(body string) (Command, error) {
	if body == "" {
		return nil, ErrEmpty
	}
	tokens := strings.Split(body, ",")
	kind := Kind(tokens[0])
	switch kind {
	case KindHeartbeat:
		if len(tokens) != 1 {
			return nil, argCount(kind)
		}
		return Heartbeat{}, nil
	case KindHome:
		if len(tokens) != 5 {
			return nil, argCount(kind)
		}
		v, err := floats(kind, tokens[1:])
		if err != nil {
			return nil, err
		}
		return Home{LonDeg: v[0], LatDeg: v[1], AltFt: v[2], AzimuthDeg: v[3]}, nil
	case KindRoute, KindRouteCont:
		if len(tokens) < 5 {
			return nil, argCount(kind)
		}
		wps, err := waypoints(kind, tokens[1:])
		if err != nil {
			return nil, err
		}
		return Route{Append: kind == KindRouteCont, Waypoints: wps}, nil
	case KindRouteEnd:
		if len(tokens) != 1 {
			return nil, argCount(kind)
		}
		return RouteEnd{}, nil
	case KindTask:
		return Task{Body: body}, nil
	case KindAPTarget:
		if len(tokens) != 3 {
			return nil, argCount(kind)
		}
		target := APTarget(tokens[1])
		switch target {
		case TargetAGLFt, TargetMSLFt, TargetSpeedKt:
		default:
			return nil, &ArgsError{Kind: kind, Reason: "unknown target " + tokens[1]}
		}
		v, err := floats(kind, tokens[2:])
		if err != nil {
			return nil, err
		}
		return AutopilotTarget{Target: target, Value: v[0]}, nil
	case KindFCSUpdate:
		return FCSUpdate{Tokens: tokens[1:]}, nil
	case KindSet:
		if len(tokens) != 3 {
			return nil, argCount(kind)
		}
		pos := strings.LastIndexByte(tokens[1], '/')
		if pos < 0 {
			return nil, &ArgsError{Kind: kind, Reason: "no attribute in " + tokens[1]}
		}
		return Set{Path: tokens[1][:pos], Attr: tokens[1][pos+1:], Value: tokens[2]}, nil
	case KindWaypoint:
		if len(tokens) != 5 {
			return nil, argCount(kind)
		}
		index, err := strconv.Atoi(tokens[1])
		if err != nil {
			return nil, &ArgsError{Kind: kind, Reason: "bad index " + tokens[1]}
		}
		v, err := floats(kind, tokens[2:])
		if err != nil {
			return nil, err
		}
		return WaypointUpdate{Index: index, LonDeg: v[0], LatDeg: v[1], AltFt: v[2]}, nil
	case KindLookAt:
		if len(tokens) != 5 {
			return nil, argCount(kind)
		}
		switch LookAtFrame(tokens[1]) {
		case FrameNED:
			v, err := floats(kind, tokens[2:])
			if err != nil {
				return nil, err
			}
			return LookAt{Frame: FrameNED, North: v[0], East: v[1], Down: v[2]}, nil
		case FrameWGS84:
			v, err := floats(kind, tokens[2:4])
			if err != nil {
				return nil, err
			}
			return LookAt{Frame: FrameWGS84, LonDeg: v[0], LatDeg: v[1]}, nil
		}
		return nil, &ArgsError{Kind: kind, Reason: "unknown frame " + tokens[1]}
	}
	return nil, &UnknownError{Token: tokens[0]}
}

func argCount(kind Kind) error {
	return &ArgsError{Kind: kind, Reason: "wrong number of arguments"}
}

func floats(kind Kind, tokens []string) ([]float64, error) {
	v := make([]float64, len(tokens))
	for n, token := range tokens {
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, &ArgsError{Kind: kind, Reason: "bad number " + strconv.Quote(token)}
		}
		v[n] = f
	}
	return v, nil
}

// waypoints consumes complete groups of mode,field1,field2,agl_ft.
// A trailing partial group is ignored.
func waypoints(kind Kind, tokens []string) ([]Waypoint, error) {
	var wps []Waypoint
	for i := 0; i+4 <= len(tokens); i += 4 {
		mode, err := strconv.Atoi(tokens[i])
		if err != nil {
			return nil, &ArgsError{Kind: kind, Reason: "bad mode " + strconv.Quote(tokens[i])}
		}
		v, err := floats(kind, tokens[i+1:i+3])
		if err != nil {
			return nil, err
		}
		wp := Waypoint{Mode: mode, Field1: v[0], Field2: v[1], AGLm: NoAGL}
		if tokens[i+3] != "-" {
			agl, err := floats(kind, tokens[i+3:i+4])
			if err != nil {
				return nil, err
			}
			wp.AGLm = agl[0] * FeetToMeters
		}
		wps = append(wps, wp)
	}
	return wps, nil
}
