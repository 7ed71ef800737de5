package motion

import (
	"math"
	"time"

	"github.com/golang/geo/r2"

	"chassis-controller/internal/geometry"
	"chassis-controller/internal/shaping"
)

const (
	// Heading correction stops this close to a move_to_point target.
	pointCorrectionRange = 8
	pointExitTolerance   = 1

	// Boomerang steers at the carrot until it is this close, then at the target.
	carrotSteerRange       = 8
	targetSteerRange       = 6
	finalApproachRange     = 5
	boomerangExitTolerance = 3
)

// MoveToPoint drives to point, forward or (dir < 0) backward, steering at the target
// every tick. It stops when the distance settles or the robot crosses the line through
// the target perpendicular to its heading.
func (c *Chassis) MoveToPoint(point r2.Point, dir int, timeLimit time.Duration, opts ...Option) Result {
	m := c.begin("move_to_point", timeLimit, opts)
	if dir >= 0 {
		dir = 1
	}
	add := 0.0
	if dir < 0 {
		add = 180
	}
	limits, minSpeed := m.chainedSlew(dir)

	pos := c.deps.Pose.Position()
	dist := c.distanceController(geometry.Distance(pos, point), 0, 3)
	head := c.correctionController(geometry.NormalizeTarget(geometry.Bearing(pos, point)+add, c.heading()))

	correcting := true
	wasCrossed := true
	outcome := Timeout
	for !dist.TargetArrived() && m.running() {
		pos = c.deps.Pose.Position()
		h := c.heading()
		bearing := geometry.Bearing(pos, point)
		remaining := geometry.Distance(pos, point)
		head.SetTarget(geometry.NormalizeTarget(bearing+add, h))
		dist.SetTarget(remaining)

		speed := dist.Update(0) * math.Cos(geometry.DegToRad(bearing+add-h)) * float64(dir)
		m.reportPID("distance", dist)

		crossed := crossedLine(pos, point, h+add, pointExitTolerance)
		if crossed && !wasCrossed {
			outcome = Crossed
			break
		}
		wasCrossed = crossed

		correction := 0.0
		if correcting && remaining > pointCorrectionRange {
			correction = head.Update(h)
			m.reportPID("heading", head)
		} else {
			correcting = false
		}

		left, right := m.steer(speed, correction, limits, minSpeed)
		if !m.drive(left, right, head.Target()) {
			return m.finish(Preempted)
		}
		m.tick()
	}
	if outcome == Timeout && dist.TargetArrived() {
		outcome = Settled
	}

	m.stopIfExit()
	c.deps.Pose.SetCorrectAngle(c.heading())
	return m.finish(outcome)
}

// Boomerang drives to point arriving at heading finalAngle, steering at a carrot point
// set back from the target along the final heading by lead times the remaining
// distance. Speed is capped on tight curves by the configured chase power.
func (c *Chassis) Boomerang(point r2.Point, dir int, finalAngle, lead float64, timeLimit time.Duration, opts ...Option) Result {
	m := c.begin("boomerang", timeLimit, opts)
	if dir >= 0 {
		dir = 1
	}
	add := 0.0
	if dir < 0 {
		add = 180
	}
	limits, minSpeed := m.chainedSlew(dir)

	pos := c.deps.Pose.Position()
	dist := c.distanceController(0, 3, 0)
	head := c.correctionController(geometry.NormalizeTarget(geometry.Bearing(pos, point), c.heading()))
	approach := geometry.DegToRad(finalAngle + add)
	final := geometry.NormalizeTarget(finalAngle, c.heading())

	wasCrossed := true
	outcome := Timeout
	for !dist.TargetArrived() && m.running() {
		pos = c.deps.Pose.Position()
		h := c.heading()
		remaining := geometry.Distance(pos, point)
		carrot := r2.Point{
			X: point.X - remaining*math.Sin(approach)*lead,
			Y: point.Y - remaining*math.Cos(approach)*lead,
		}
		toCarrot := geometry.Distance(pos, carrot)
		dist.SetTarget(toCarrot * float64(dir))
		speed := dist.Update(0) * math.Cos(geometry.DegToRad(geometry.Bearing(pos, carrot)+add-h))
		m.reportPID("distance", dist)

		crossed := crossedLine(pos, point, finalAngle+add, boomerangExitTolerance)
		if crossed && !wasCrossed {
			outcome = Crossed
			break
		}
		wasCrossed = crossed

		finalLeg := false
		switch {
		case toCarrot > carrotSteerRange:
			head.SetTarget(geometry.NormalizeTarget(geometry.Bearing(pos, carrot)+add, h))
		case remaining > targetSteerRange:
			head.SetTarget(geometry.NormalizeTarget(geometry.Bearing(pos, point)+add, h))
		default:
			final = geometry.NormalizeTarget(finalAngle, h)
			head.SetTarget(final)
			finalLeg = true
		}
		correction := head.Update(h)
		m.reportPID("heading", head)
		if finalLeg && remaining < finalApproachRange {
			outcome = FinalApproach
			break
		}

		if minSpeed {
			speed = scaledMin(speed, c.cfg.MinOutput)
		}
		if radius, ok := geometry.TurningRadius(pos, carrot, h); ok {
			slip := math.Sqrt(c.cfg.ChasePower * math.Abs(radius) * 9.8)
			speed = clampAbs(speed, slip)
		}

		left, right := m.steer(speed, correction, limits, false)
		if !m.drive(left, right, head.Target()) {
			return m.finish(Preempted)
		}
		m.tick()
	}
	if outcome == Timeout && dist.TargetArrived() {
		outcome = Settled
	}

	m.stopIfExit()
	c.deps.Pose.SetCorrectAngle(final)
	return m.finish(outcome)
}

// steer blends a forward speed and a heading correction into side outputs. With
// overturn enabled the speed gives way so the correction still fits under the cap.
func (m *maneuver) steer(speed, correction float64, limits shaping.SlewLimits, minSpeed bool) (float64, float64) {
	if minSpeed {
		speed = scaledMin(speed, m.c.cfg.MinOutput)
	}
	if excess := math.Abs(speed) + math.Abs(correction) - m.opts.maxOutput; excess > 0 && m.opts.overturn {
		if speed > 0 {
			speed -= excess
		} else {
			speed += excess
		}
	}
	left := speed + correction
	right := speed - correction
	shaping.ScaleToMax(&left, &right, m.opts.maxOutput)
	return m.c.slew.Apply(left, right, limits)
}

// scaledMin raises a straight-line speed to the minimum magnitude.
func scaledMin(speed, min float64) float64 {
	right := speed
	shaping.ScaleToMin(&speed, &right, min)
	return speed
}
