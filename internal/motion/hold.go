package motion

import (
	"math"

	"chassis-controller/internal/pid"
)

// HeadingHold keeps the robot on the pose store's correct angle whenever no primitive
// owns the drivetrain. It is a tasks.Task.
type HeadingHold struct {
	c   *Chassis
	ctl *pid.Controller
}

// HeadingHold creates the heading-hold task. The integral zone is fixed from the
// correct angle at creation.
func (c *Chassis) HeadingHold() *HeadingHold {
	correct := c.deps.Pose.CorrectAngle()
	ctl := pid.New(c.cfg.Tuning.Heading, c.deps.Clock)
	ctl.SetTarget(correct)
	ctl.SetIntegralRange(math.Abs(correct) / 2.5)
	ctl.SetErrorTolerances(0, 0)
	ctl.SetErrorDurations(0, 0)
	ctl.SetDerivativeTolerance(0)
	ctl.SetArrive(false)
	return &HeadingHold{c: c, ctl: ctl}
}

// Name identifies the task to the supervisor and the drivetrain arbiter.
func (h *HeadingHold) Name() string {
	return "heading_hold"
}

// Step applies one tick of symmetric correction, or nothing while the drivetrain is owned.
func (h *HeadingHold) Step() {
	handle, ok := h.c.deps.Drive.TryAcquire(h.Name())
	if !ok {
		return
	}
	defer handle.Release()

	h.ctl.SetTarget(h.c.deps.Pose.CorrectAngle())
	out := h.ctl.Update(h.c.heading())
	if handle.Drive(out, -out) {
		h.c.deps.Metrics.IncHeadingCorrections()
		h.c.deps.Metrics.SetPIDTerms("heading_hold", h.ctl.Terms())
	}
}
