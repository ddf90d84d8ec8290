package board

// PWM pulse geometry in microseconds.
const (
	PWMCenter    = 1520
	PWMHalfRange = 413
	PWMRange     = 2 * PWMHalfRange
	PWMMin       = PWMCenter - PWMHalfRange
	PWMMax       = PWMCenter + PWMHalfRange
)

// ThrottleChannel is the only asymmetric output.
const ThrottleChannel = 2

// GenPulse converts a normalized command into a pulse width.
// Symmetric channels take [-1, 1] (clamped to ±1.5 for overtravel),
// throttle takes [0, 1].
func GenPulse(val float64, symmetric bool) uint16 {
	if symmetric {
		if val < -1.5 {
			val = -1.5
		}
		if val > 1.5 {
			val = 1.5
		}
		return uint16(PWMCenter + int(PWMHalfRange*val))
	}
	if val < 0 {
		val = 0
	}
	if val > 1 {
		val = 1
	}
	return uint16(PWMMin + int(PWMRange*val))
}

// NormalizePulse converts a pulse width back into [-1, 1] or [0, 1].
func NormalizePulse(pulse uint16, symmetric bool) float64 {
	var v float64
	if symmetric {
		v = float64(int(pulse)-PWMCenter) / PWMHalfRange
		if v < -1 {
			v = -1
		}
	} else {
		v = float64(int(pulse)-PWMMin) / PWMRange
		if v < 0 {
			v = 0
		}
	}
	if v > 1 {
		v = 1
	}
	return v
}

// Actuators are normalized output commands.
type Actuators struct {
	Aileron  float64
	Elevator float64
	Throttle float64
	Rudder   float64
	Channel5 float64
	Channel6 float64
	Channel7 float64
	Channel8 float64
}

// Pulses maps the commands to channel pulse widths.
func (a Actuators) Pulses() (p [NumActuators]uint16) {
	vals := [NumActuators]float64{
		a.Aileron, a.Elevator, a.Throttle, a.Rudder,
		a.Channel5, a.Channel6, a.Channel7, a.Channel8,
	}
	for n, v := range vals {
		p[n] = GenPulse(v, n != ThrottleChannel)
	}
	return
}
