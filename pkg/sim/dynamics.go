package sim

import (
	"math"
	"time"
)

// Limits of the simulated airframe.
type Limits struct {
	// MaxSpeed is reached at full throttle, in m/s.
	MaxSpeed float64 `mapstructure:"maxSpeed" yaml:"maxSpeed"`
	// Accel is the speed change rate in m/s^2; zero changes speed at once.
	Accel float64 `mapstructure:"accel" yaml:"accel"`
	// MaxTurnRate is reached at full aileron, in rad/s.
	MaxTurnRate float64 `mapstructure:"maxTurnRate" yaml:"maxTurnRate"`
}

// DefaultLimits resemble a small fixed wing.
var DefaultLimits = Limits{MaxSpeed: 25, Accel: 2, MaxTurnRate: 0.5}

// Dynamics integrates a pose from throttle and aileron commands.
type Dynamics struct {
	Limits Limits

	pose         Pose
	speed        float64
	desiredSpeed float64
	turnRate     float64
	last         time.Time
}

// Command sets the targets: throttle in [0, 1], aileron in [-1, 1].
func (d *Dynamics) Command(throttle, aileron float64) {
	d.desiredSpeed = math.Max(0, math.Min(1, throttle)) * d.Limits.MaxSpeed
	d.turnRate = math.Max(-1, math.Min(1, aileron)) * d.Limits.MaxTurnRate
}

// Pose returns the last integrated pose.
func (d *Dynamics) Pose() Pose {
	return d.pose
}

// Speed returns the current ground speed in m/s.
func (d *Dynamics) Speed() float64 {
	return d.speed
}

// Velocity returns north and east speed in m/s.
func (d *Dynamics) Velocity() Offset {
	return d.pose.Heading.Project(d.speed)
}

// TurnRate returns the current yaw rate in rad/s.
func (d *Dynamics) TurnRate() float64 {
	return d.turnRate
}

// Step advances to now. The first call only records the time.
func (d *Dynamics) Step(now time.Time) Pose {
	if d.last.IsZero() {
		d.last = now
		return d.pose
	}
	secs := now.Sub(d.last).Seconds()
	d.last = now
	if secs <= 0 {
		return d.pose
	}

	start := d.speed
	if accel := d.Limits.Accel; accel > 0 {
		diff := d.desiredSpeed - d.speed
		if maxDiff := accel * secs; math.Abs(diff) > maxDiff {
			diff = math.Copysign(maxDiff, diff)
		}
		d.speed += diff
	} else {
		d.speed = d.desiredSpeed
	}
	// average speed of the step along the mid-step heading
	dist := (start + d.speed) / 2 * secs
	mid := d.pose.Heading.AddRadians(d.turnRate * secs / 2)
	d.pose.Offset.OffsetBy(mid.Project(dist))
	d.pose.Heading = d.pose.Heading.AddRadians(d.turnRate * secs)
	return d.pose
}
