// Package shaping post-processes (left, right) drive voltages: minimum and maximum
// magnitude scaling that keeps the side ratio, and per-tick slew limiting.
package shaping

import "math"

// Unlimited is a per-tick slew large enough to swing between full reverse and full
// forward in one tick.
const Unlimited = 24.0

// ScaleToMin raises the smaller-magnitude side to min when it points the same way as the
// travel direction, scaling the other side by the same factor so the ratio holds.
func ScaleToMin(left, right *float64, min float64) {
	l, r := *left, *right
	switch {
	case math.Abs(l) <= math.Abs(r) && l < min && l > 0:
		r = r / l * min
		l = min
	case math.Abs(r) < math.Abs(l) && r < min && r > 0:
		l = l / r * min
		r = min
	case math.Abs(l) <= math.Abs(r) && l > -min && l < 0:
		r = r / l * -min
		l = -min
	case math.Abs(r) < math.Abs(l) && r > -min && r < 0:
		l = l / r * -min
		r = -min
	}
	*left, *right = l, r
}

// ScaleToMax lowers the larger-magnitude side to max, scaling the other side by the same
// factor so the ratio holds.
func ScaleToMax(left, right *float64, max float64) {
	l, r := *left, *right
	switch {
	case math.Abs(l) >= math.Abs(r) && l > max:
		r = r / l * max
		l = max
	case math.Abs(r) > math.Abs(l) && r > max:
		l = l / r * max
		r = max
	case math.Abs(l) >= math.Abs(r) && l < -max:
		r = r / l * -max
		l = -max
	case math.Abs(r) > math.Abs(l) && r < -max:
		l = l / r * -max
		r = -max
	}
	*left, *right = l, r
}

// SlewLimits bounds the change of a side's output per tick. Forward limits increases,
// Reverse limits decreases.
type SlewLimits struct {
	Forward float64
	Reverse float64
}

// Table is the configured per-tick slew for each travel phase.
type Table struct {
	AccelForward float64
	DecelForward float64
	AccelReverse float64
	DecelReverse float64
}

// Chaining describes how a maneuver joins its neighbours.
type Chaining struct {
	// DirChangeStart expects a change of direction at the start of a movement.
	DirChangeStart bool
	// DirChangeEnd expects a change of direction at the end of a movement.
	DirChangeEnd bool
}

// ChainedSlew picks the slew limits for a maneuver travelling in direction (+1 forward,
// -1 reverse). Non-exiting maneuvers relax the phases the chaining flags say will not
// reverse, and report whether the minimum chained output must be enforced.
func ChainedSlew(table Table, chain Chaining, direction int, exit bool) (limits SlewLimits, minSpeed bool) {
	forward := direction > 0
	limits = SlewLimits{
		Forward: pick(forward, table.AccelForward, table.DecelReverse),
		Reverse: pick(forward, table.DecelForward, table.AccelReverse),
	}
	if exit {
		return limits, false
	}

	switch {
	case !chain.DirChangeStart && chain.DirChangeEnd:
		limits.Forward = pick(forward, Unlimited, table.DecelReverse)
		limits.Reverse = pick(forward, table.DecelForward, Unlimited)
	case chain.DirChangeStart && !chain.DirChangeEnd:
		limits.Forward = pick(forward, table.AccelForward, Unlimited)
		limits.Reverse = pick(forward, Unlimited, table.AccelReverse)
		minSpeed = true
	case !chain.DirChangeStart && !chain.DirChangeEnd:
		limits = SlewLimits{Forward: Unlimited, Reverse: Unlimited}
		minSpeed = true
	}
	return limits, minSpeed
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}

// Slew remembers the last commanded pair so consecutive ticks, and chained maneuvers,
// ramp rather than jump.
type Slew struct {
	prevLeft, prevRight float64
}

// Apply clamps the change from the previous pair to limits and records the result.
func (s *Slew) Apply(left, right float64, limits SlewLimits) (float64, float64) {
	left = limit(s.prevLeft, left, limits)
	right = limit(s.prevRight, right, limits)
	s.prevLeft, s.prevRight = left, right
	return left, right
}

// Previous returns the last recorded pair.
func (s *Slew) Previous() (float64, float64) {
	return s.prevLeft, s.prevRight
}

// Reset forgets the previous pair.
func (s *Slew) Reset() {
	s.prevLeft, s.prevRight = 0, 0
}

func limit(prev, next float64, limits SlewLimits) float64 {
	if prev-next > limits.Reverse {
		next = prev - limits.Reverse
	}
	if next-prev > limits.Forward {
		next = prev + limits.Forward
	}
	return next
}
