package motion

import (
	"time"

	"github.com/golang/geo/r2"

	"chassis-controller/internal/geometry"
	"chassis-controller/internal/hal"
)

// TurnToAngle turns in place to an absolute heading. In chained mode it drives at no
// less than the minimum chained output until the raw heading passes the target.
func (c *Chassis) TurnToAngle(angle float64, timeLimit time.Duration, opts ...Option) Result {
	m := c.begin("turn_to_angle", timeLimit, opts)
	target := geometry.NormalizeTarget(angle, c.heading())
	ctl := c.turnController(target, 3, 50*time.Millisecond, 250*time.Millisecond)
	correct := c.deps.Pose.CorrectAngle()

	outcome := Timeout
	switch {
	case !m.opts.exit && correct < target:
		for c.heading() < target && m.running() {
			v := m.chainedMagnitude(ctl.Update(c.heading()), 1)
			if !m.drive(v, -v, target) {
				return m.finish(Preempted)
			}
			m.tick()
		}
		if c.heading() >= target {
			outcome = Threshold
		}
	case !m.opts.exit && correct > target:
		for c.heading() > target && m.running() {
			v := m.chainedMagnitude(ctl.Update(c.heading()), -1)
			if !m.drive(-v, v, target) {
				return m.finish(Preempted)
			}
			m.tick()
		}
		if c.heading() <= target {
			outcome = Threshold
		}
	default:
		for !ctl.TargetArrived() && m.running() {
			out := clampAbs(ctl.Update(c.heading()), m.opts.maxOutput)
			m.reportPID("turn", ctl)
			if !m.drive(out, -out, target) {
				return m.finish(Preempted)
			}
			m.tick()
		}
		if ctl.TargetArrived() {
			outcome = Settled
		}
	}

	m.stopIfExit()
	c.deps.Pose.SetCorrectAngle(target)
	return m.finish(outcome)
}

// Swing pivots about one held side to an absolute heading. A positive direction swings
// forward, anything else backward.
func (c *Chassis) Swing(angle, dir float64, timeLimit time.Duration, opts ...Option) Result {
	m := c.begin("swing", timeLimit, opts)
	target := geometry.NormalizeTarget(angle, c.heading())
	ctl := c.turnController(target, 5, 50*time.Millisecond, 250*time.Millisecond)
	correct := c.deps.Pose.CorrectAngle()
	forward := dir > 0

	// Turning left forward pivots on the left side, turning right forward on the
	// right side; reverse swings mirror that.
	left := target < correct
	held := hal.Right
	if left == forward {
		held = hal.Left
	}
	// sign converts the heading PID output into the driven side's voltage.
	sign := 1.0
	if held == hal.Left {
		sign = -1
	}

	outcome := Timeout
	if !m.opts.exit {
		turnDir := 1
		if left {
			turnDir = -1
		}
		drivenDir := -1.0
		if forward {
			drivenDir = 1
		}
		passed := func() bool {
			if left {
				return c.heading() <= target
			}
			return c.heading() >= target
		}
		for !passed() && m.running() {
			v := m.chainedMagnitude(ctl.Update(c.heading()), turnDir)
			if !m.swingSide(held, v*drivenDir, target) {
				return m.finish(Preempted)
			}
			m.tick()
		}
		if passed() {
			outcome = Threshold
		}
	} else {
		for !ctl.TargetArrived() && m.running() {
			out := clampAbs(ctl.Update(c.heading()), m.opts.maxOutput)
			m.reportPID("turn", ctl)
			if !m.swingSide(held, out*sign, target) {
				return m.finish(Preempted)
			}
			m.tick()
		}
		if ctl.TargetArrived() {
			outcome = Settled
		}
	}

	m.stopIfExit()
	c.deps.Pose.SetCorrectAngle(target)
	return m.finish(outcome)
}

// TurnToPoint turns in place to face point, or to face away from it when dir is negative.
// The bearing is recomputed from the live pose every tick. It always ends holding its
// heading with slew memory cleared; WithExit is ignored.
func (c *Chassis) TurnToPoint(point r2.Point, dir int, timeLimit time.Duration, opts ...Option) Result {
	m := c.begin("turn_to_point", timeLimit, opts)
	add := 0.0
	if dir < 0 {
		add = 180
	}
	bearing := func() float64 {
		return geometry.NormalizeTarget(geometry.Bearing(c.deps.Pose.Position(), point)+add, c.heading())
	}
	ctl := c.turnController(bearing(), 3, 100*time.Millisecond, 500*time.Millisecond)

	for !ctl.TargetArrived() && m.running() {
		target := bearing()
		ctl.SetTarget(target)
		out := clampAbs(ctl.Update(c.heading()), m.opts.maxOutput)
		m.reportPID("turn", ctl)
		if !m.drive(out, -out, target) {
			return m.finish(Preempted)
		}
		m.tick()
	}
	outcome := Timeout
	if ctl.TargetArrived() {
		outcome = Settled
	}

	c.slew.Reset()
	m.handle.Stop(hal.Hold)
	c.deps.Pose.SetCorrectAngle(c.heading())
	return m.finish(outcome)
}
