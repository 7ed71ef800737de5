package pid

import (
	"math"
	"time"
)

// Clock supplies the timestamps used by the settle timers.
type Clock interface {
	Now() time.Duration
}

// Gains holds the proportional, integral and derivative coefficients.
type Gains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// Terms contains the individual PID components of the last update
type Terms struct {
	P     float64 // Proportional term
	I     float64 // Integral term
	D     float64 // Derivative term
	Error float64 // Target minus measurement
}

// Controller is a single-axis PID controller with integral zoning, anti-windup and a
// two-band settle detector. The derivative is taken per update, not per second, so the
// gains are tuned for a fixed tick.
type Controller struct {
	gains  Gains
	target float64
	clock  Clock

	// Integral zone radius and clamp; zero disables either.
	integralRange float64
	integralMax   float64

	smallTolerance      float64
	bigTolerance        float64
	smallDuration       time.Duration
	bigDuration         time.Duration
	derivativeTolerance float64

	// Internal state
	firstUpdate  bool
	arrive       bool
	arrived      bool
	prevError    float64
	sumError     float64
	smallStarted time.Duration
	bigStarted   time.Duration
	terms        Terms
	output       float64
}

// New creates a controller with the given gains. Settle bands default to 1 and 3 units
// held for 100 ms and 500 ms, with a derivative tolerance of 4.5.
func New(gains Gains, clock Clock) *Controller {
	return &Controller{
		gains:               gains,
		clock:               clock,
		integralMax:         500,
		smallTolerance:      1,
		bigTolerance:        3,
		smallDuration:       100 * time.Millisecond,
		bigDuration:         500 * time.Millisecond,
		derivativeTolerance: 4.5,
		firstUpdate:         true,
		arrive:              true,
	}
}

// SetTarget updates the setpoint.
func (c *Controller) SetTarget(target float64) {
	c.target = target
}

// Target returns the current setpoint.
func (c *Controller) Target() float64 {
	return c.target
}

// SetGains updates the PID gains.
func (c *Controller) SetGains(gains Gains) {
	c.gains = gains
}

// SetIntegralMax bounds |ki * sum| when non-zero.
func (c *Controller) SetIntegralMax(max float64) {
	c.integralMax = max
}

// SetIntegralRange zeroes the integral while |error| is at or beyond range. Zero disables it.
func (c *Controller) SetIntegralRange(r float64) {
	c.integralRange = r
}

// SetErrorTolerances sets the small and big settle band radii.
func (c *Controller) SetErrorTolerances(small, big float64) {
	c.smallTolerance = small
	c.bigTolerance = big
}

// SetErrorDurations sets how long each band must be held continuously.
func (c *Controller) SetErrorDurations(small, big time.Duration) {
	c.smallDuration = small
	c.bigDuration = big
}

// SetDerivativeTolerance bounds the derivative term while settling.
func (c *Controller) SetDerivativeTolerance(tol float64) {
	c.derivativeTolerance = tol
}

// SetArrive enables or disables settle detection.
func (c *Controller) SetArrive(arrive bool) {
	c.arrive = arrive
}

// ClearSumError resets the integral accumulator.
func (c *Controller) ClearSumError() {
	c.sumError = 0
}

// Update computes the output for a new measurement. Call it once per control tick.
func (c *Controller) Update(measurement float64) float64 {
	err := c.target - measurement
	now := c.clock.Now()

	if c.firstUpdate {
		// No derivative kick on the first sample.
		c.firstUpdate = false
		c.prevError = err
		c.sumError = 0
		c.smallStarted = now
		c.bigStarted = now
	}

	proportional := c.gains.Kp * err
	derivative := c.gains.Kd * (err - c.prevError)
	c.prevError = err

	if c.integralRange != 0 && math.Abs(err) >= c.integralRange {
		c.sumError = 0
	} else {
		c.sumError += err
		if c.integralMax != 0 && math.Abs(c.sumError)*c.gains.Ki > c.integralMax {
			c.sumError = sign(c.sumError) * c.integralMax / c.gains.Ki
		}
	}

	// Overshoot or already close: drop the accumulated integral.
	if sign(c.sumError) != sign(err) || math.Abs(err) <= c.smallTolerance {
		c.sumError = 0
	}

	integral := c.gains.Ki * c.sumError

	c.smallStarted = c.checkBand(now, err, derivative, c.smallTolerance, c.smallDuration, c.smallStarted)
	c.bigStarted = c.checkBand(now, err, derivative, c.bigTolerance, c.bigDuration, c.bigStarted)

	c.output = proportional + integral + derivative
	c.terms = Terms{P: proportional, I: integral, D: derivative, Error: err}
	return c.output
}

// checkBand evaluates one settle band and returns the (possibly restarted) band timer.
func (c *Controller) checkBand(now time.Duration, err, derivative, tolerance float64, hold, started time.Duration) time.Duration {
	if c.arrive && math.Abs(err) <= tolerance && math.Abs(derivative) <= c.derivativeTolerance {
		if now-started >= hold {
			c.arrived = true
		}
		return started
	}
	return now
}

// TargetArrived reports whether a settle band has been held long enough. It latches.
func (c *Controller) TargetArrived() bool {
	return c.arrived
}

// Output returns the last computed output.
func (c *Controller) Output() float64 {
	return c.output
}

// Terms returns the components of the last output.
func (c *Controller) Terms() Terms {
	return c.terms
}

// SumError returns the integral accumulator.
func (c *Controller) SumError() float64 {
	return c.sumError
}

// State returns the controller configuration and state for debugging
func (c *Controller) State() map[string]float64 {
	return map[string]float64{
		"kp":             c.gains.Kp,
		"ki":             c.gains.Ki,
		"kd":             c.gains.Kd,
		"target":         c.target,
		"sum_error":      c.sumError,
		"prev_error":     c.prevError,
		"integral_max":   c.integralMax,
		"integral_range": c.integralRange,
		"output":         c.output,
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
