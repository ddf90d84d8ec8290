package sim

import "math"

const earthRadius = 6378137.0

// Offset is a displacement in meters on the local tangent plane.
type Offset struct {
	North, East float64
}

// Pose is a position relative to the origin and a heading.
type Pose struct {
	Offset
	Heading Angle
}

// OffsetBy performs Add in-place.
func (o *Offset) OffsetBy(o1 Offset) *Offset {
	o.North += o1.North
	o.East += o1.East
	return o
}

// Origin anchors the tangent plane on the globe.
type Origin struct {
	LatDeg float64 `mapstructure:"lat" yaml:"lat"`
	LonDeg float64 `mapstructure:"lon" yaml:"lon"`
	AltM   float64 `mapstructure:"alt" yaml:"alt"`
}

// LatLon converts an offset to degrees. Accurate for the short
// distances a simulated vehicle covers.
func (o Origin) LatLon(off Offset) (lat, lon float64) {
	lat = o.LatDeg + off.North/earthRadius*180/math.Pi
	lon = o.LonDeg + off.East/(earthRadius*math.Cos(o.LatDeg*math.Pi/180))*180/math.Pi
	return
}
