package motion

import (
	"math"
	"time"

	"chassis-controller/internal/geometry"
	"chassis-controller/internal/hal"
	"chassis-controller/internal/shaping"
)

// DriveTo drives straight for distance inches, negative for reverse, holding the last
// commanded heading. In chained mode it drives flat out until the distance is covered.
func (c *Chassis) DriveTo(distance float64, timeLimit time.Duration, opts ...Option) Result {
	startLeft := c.deps.Drive.PositionDegrees(hal.Left)
	startRight := c.deps.Drive.PositionDegrees(hal.Right)
	m := c.begin("drive_to", timeLimit, opts)

	dir := direction(distance)
	limits, minSpeed := m.chainedSlew(dir)
	target := math.Abs(distance)
	dist := c.distanceController(target, 3, 0)
	head := c.correctionController(geometry.NormalizeTarget(c.deps.Pose.CorrectAngle(), c.heading()))

	current := 0.0
	more := func() bool {
		if m.opts.exit {
			return !dist.TargetArrived()
		}
		return current < target
	}
	for more() && m.running() {
		current = (math.Abs(c.travel(hal.Left, startLeft)) + math.Abs(c.travel(hal.Right, startRight))) / 2
		left := dist.Update(current) * float64(dir)
		right := left
		correction := head.Update(c.heading())
		m.reportPID("distance", dist)
		m.reportPID("heading", head)

		if minSpeed {
			shaping.ScaleToMin(&left, &right, c.cfg.MinOutput)
		}
		if !m.opts.exit {
			left = shaping.Unlimited * float64(dir)
			right = left
		}
		left += correction
		right -= correction
		shaping.ScaleToMax(&left, &right, m.opts.maxOutput)
		left, right = c.slew.Apply(left, right, limits)

		if !m.drive(left, right, target) {
			return m.finish(Preempted)
		}
		m.tick()
	}

	outcome := Timeout
	switch {
	case m.opts.exit && dist.TargetArrived():
		outcome = Settled
	case !m.opts.exit && current >= target:
		outcome = Threshold
	}
	m.stopIfExit()
	return m.finish(outcome)
}

// CurveCircle drives an arc of centerRadius inches until the heading reaches
// resultAngle. A positive radius curves to the right. The outer side tracks the arc
// length while the inner side follows at the arc ratio, and a heading PID keeps the
// robot on the heading the arc should have reached so far. Chained curves run the
// outer side at the output cap until the arc is covered.
func (c *Chassis) CurveCircle(resultAngle, centerRadius float64, timeLimit time.Duration, opts ...Option) Result {
	startLeft := c.deps.Drive.PositionDegrees(hal.Left)
	startRight := c.deps.Drive.PositionDegrees(hal.Right)

	target := geometry.NormalizeTarget(resultAngle, c.heading())
	correct := c.deps.Pose.CorrectAngle()
	sweep := target - correct
	sweepRad := geometry.DegToRad(sweep)
	halfTrack := c.cfg.TrackWidth / 2
	inner := math.Abs((math.Abs(centerRadius) - halfTrack) * sweepRad)
	outer := math.Abs((math.Abs(centerRadius) + halfTrack) * sweepRad)
	ratio := 1.0
	if outer != 0 {
		ratio = inner / outer
	}

	m := c.begin("curve_circle", timeLimit, opts)

	curveDir := direction(centerRadius)
	dir := -1
	if (curveDir > 0 && sweep > 0) || (curveDir < 0 && sweep < 0) {
		dir = 1
	}
	limits, minSpeed := m.chainedSlew(dir)

	// A right curve is led by the left side.
	outerSide, outerStart := hal.Left, startLeft
	if curveDir < 0 {
		outerSide, outerStart = hal.Right, startRight
	}

	arc := c.arcController(outer)
	head := c.correctionController(0)

	current := 0.0
	more := func() bool {
		if m.opts.exit {
			return !arc.TargetArrived()
		}
		return current < outer
	}
	for more() && m.running() {
		h := c.heading()
		current = math.Abs(c.travel(outerSide, outerStart))
		along := correct
		if outer != 0 {
			along = current/outer*sweep + correct
		}
		head.SetTarget(geometry.NormalizeTarget(along, h))

		lead := arc.Update(current) * float64(dir)
		if !m.opts.exit {
			lead = shaping.Unlimited * float64(dir)
		}
		follow := lead * ratio
		m.reportPID("arc", arc)
		left, right := lead, follow
		if outerSide == hal.Right {
			left, right = follow, lead
		}
		correction := head.Update(h)
		m.reportPID("heading", head)

		if minSpeed {
			shaping.ScaleToMin(&left, &right, c.cfg.MinOutput)
		}
		left += correction
		right -= correction
		shaping.ScaleToMax(&left, &right, m.opts.maxOutput)
		left, right = c.slew.Apply(left, right, limits)

		if !m.drive(left, right, along) {
			return m.finish(Preempted)
		}
		m.tick()
	}

	outcome := Timeout
	switch {
	case m.opts.exit && arc.TargetArrived():
		outcome = Settled
	case !m.opts.exit && current >= outer:
		outcome = Threshold
	}
	m.stopIfExit()
	c.deps.Pose.SetCorrectAngle(target)
	return m.finish(outcome)
}
