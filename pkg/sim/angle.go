package sim

import "math"

// Angle is in radians, normalized to (-Pi, Pi].
type Angle float64

// AngleFromDegrees creates Angle from degrees.
func AngleFromDegrees(d float64) Angle {
	return Angle(normalizeRadians(d * math.Pi / 180.0))
}

// AddRadians adds radians to current angle.
func (a Angle) AddRadians(r float64) Angle {
	return Angle(normalizeRadians(float64(a) + r))
}

// Radians gets angle in radians.
func (a Angle) Radians() float64 {
	return float64(a)
}

// Degrees gets angle in degrees.
func (a Angle) Degrees() float64 {
	return float64(a) * 180 / math.Pi
}

// CompassDegrees gets the angle as a heading in [0, 360).
func (a Angle) CompassDegrees() float64 {
	d := a.Degrees()
	if d < 0 {
		d += 360
	}
	return d
}

// Project splits a distance along a heading into north and east.
func (a Angle) Project(dist float64) Offset {
	return Offset{North: dist * math.Cos(float64(a)), East: dist * math.Sin(float64(a))}
}

func normalizeRadians(r float64) float64 {
	if r >= 2*math.Pi || r <= -2*math.Pi {
		r = math.Remainder(r, 2*math.Pi)
	}
	if r > math.Pi {
		r -= 2 * math.Pi
	} else if r <= -math.Pi {
		r += 2 * math.Pi
	}
	return r
}
