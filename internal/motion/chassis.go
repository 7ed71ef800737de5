// Package motion implements the chassis motion primitives. Each primitive runs its own
// closed loop on the control tick until it settles, crosses its exit threshold or runs
// out of time; timeouts are ordinary outcomes, not errors.
package motion

import (
	"math"
	"time"

	"github.com/golang/geo/r2"
	"go.uber.org/zap"

	"chassis-controller/internal/arbiter"
	"chassis-controller/internal/geometry"
	"chassis-controller/internal/hal"
	"chassis-controller/internal/metrics"
	"chassis-controller/internal/pid"
	"chassis-controller/internal/pose"
	"chassis-controller/internal/shaping"
)

// Tuning holds the three gain sets the primitives draw from.
type Tuning struct {
	Distance pid.Gains
	Turn     pid.Gains
	Heading  pid.Gains
}

// Config is the chassis geometry and control configuration.
type Config struct {
	TrackWidth    float64 // Inches between drive sides
	WheelDistance float64 // Drive travel in inches per motor revolution
	Tuning        Tuning
	Slew          shaping.Table
	Chaining      shaping.Chaining
	// MinOutput is the smallest magnitude commanded while chaining.
	MinOutput float64
	// MaxOutput is the default output cap in volts.
	MaxOutput float64
	// ChasePower bounds boomerang speed on tight curves.
	ChasePower float64
	Tick       time.Duration
}

// Deps are the collaborators a Chassis drives and reads.
type Deps struct {
	Drive   *arbiter.Arbiter
	Heading hal.HeadingSensor
	Pose    *pose.Store
	Clock   hal.Clock
	// Optional
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Observer Observer
	// EncoderReset wraps the encoder zeroing of ResetEncoders, typically so odometry
	// can take its new baseline in the same critical section.
	EncoderReset func(zero func())
}

// Outcome is why a primitive stopped.
type Outcome string

const (
	Settled       Outcome = "settled"
	Timeout       Outcome = "timeout"
	Threshold     Outcome = "threshold"
	Crossed       Outcome = "crossed"
	FinalApproach Outcome = "final_approach"
	Preempted     Outcome = "preempted"
)

// Result describes a finished primitive.
type Result struct {
	Primitive string
	Outcome   Outcome
	Elapsed   time.Duration
}

type options struct {
	exit      bool
	maxOutput float64
	overturn  bool
}

// Option adjusts a single primitive call.
type Option func(*options)

// WithExit selects stop-at-end (true, the default) or chained motion (false).
func WithExit(exit bool) Option {
	return func(o *options) { o.exit = exit }
}

// WithMaxOutput caps the commanded voltage for this call.
func WithMaxOutput(volts float64) Option {
	return func(o *options) { o.maxOutput = volts }
}

// WithOverturn lets point-following primitives trade forward speed for turning authority.
func WithOverturn(overturn bool) Option {
	return func(o *options) { o.overturn = overturn }
}

// Chassis runs motion primitives against a differential drivetrain.
type Chassis struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
	slew shaping.Slew
}

// New creates a chassis.
func New(cfg Config, deps Deps) *Chassis {
	if cfg.MaxOutput == 0 {
		cfg.MaxOutput = 12
	}
	if cfg.Tick == 0 {
		cfg.Tick = 10 * time.Millisecond
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chassis{cfg: cfg, deps: deps, log: logger}
}

// Config returns the chassis configuration.
func (c *Chassis) Config() Config {
	return c.cfg
}

// Busy reports whether a primitive holds the drivetrain.
func (c *Chassis) Busy() bool {
	return c.deps.Drive.Busy()
}

// ResetEncoders zeroes both drive encoders.
func (c *Chassis) ResetEncoders() {
	h := c.deps.Drive.Acquire("reset_encoders")
	defer h.Release()
	if c.deps.EncoderReset == nil {
		h.ResetPositions()
		return
	}
	c.deps.EncoderReset(func() { h.ResetPositions() })
}

// SetPose overwrites the field position and the heading to hold.
func (c *Chassis) SetPose(x, y, correctAngle float64) {
	c.deps.Pose.SetPosition(x, y)
	c.deps.Pose.SetCorrectAngle(correctAngle)
}

// SetCorrectAngle sets the heading held between primitives.
func (c *Chassis) SetCorrectAngle(deg float64) {
	c.deps.Pose.SetCorrectAngle(deg)
}

// DriveVoltage commands both sides open loop for d, then releases the drivetrain
// without stopping it.
func (c *Chassis) DriveVoltage(left, right float64, d time.Duration) Result {
	m := c.begin("drive_voltage", d, nil)
	for m.running() {
		if !m.drive(left, right, 0) {
			return m.finish(Preempted)
		}
		m.tick()
	}
	return m.finish(Timeout)
}

// Stop stops both sides with mode.
func (c *Chassis) Stop(mode hal.BrakeMode) {
	h := c.deps.Drive.Acquire("stop")
	h.Stop(mode)
	h.Release()
	c.slew.Reset()
}

func (c *Chassis) heading() float64 {
	return c.deps.Heading.HeadingDegrees()
}

// travel returns the distance a side has rolled since startDeg, in inches.
func (c *Chassis) travel(side hal.Side, startDeg float64) float64 {
	return (c.deps.Drive.PositionDegrees(side) - startDeg) / 360 * c.cfg.WheelDistance
}

// turnController configures the turn PID shared by the heading primitives.
func (c *Chassis) turnController(target, integralRange float64, small, big time.Duration) *pid.Controller {
	ctl := pid.New(c.cfg.Tuning.Turn, c.deps.Clock)
	ctl.SetTarget(target)
	ctl.SetIntegralMax(0)
	ctl.SetIntegralRange(integralRange)
	ctl.SetErrorTolerances(1, 3)
	ctl.SetErrorDurations(small, big)
	ctl.SetDerivativeTolerance(4.5)
	return ctl
}

// correctionController configures a heading-correction PID that never settles.
func (c *Chassis) correctionController(target float64) *pid.Controller {
	ctl := pid.New(c.cfg.Tuning.Heading, c.deps.Clock)
	ctl.SetTarget(target)
	ctl.SetIntegralMax(0)
	ctl.SetIntegralRange(1)
	ctl.SetErrorTolerances(0, 0)
	ctl.SetErrorDurations(0, 0)
	ctl.SetDerivativeTolerance(0)
	ctl.SetArrive(false)
	return ctl
}

// distanceController configures the distance PID.
func (c *Chassis) distanceController(target, integralMax, integralRange float64) *pid.Controller {
	ctl := pid.New(c.cfg.Tuning.Distance, c.deps.Clock)
	ctl.SetTarget(target)
	ctl.SetIntegralMax(integralMax)
	ctl.SetIntegralRange(integralRange)
	ctl.SetErrorTolerances(0.5, 1.5)
	ctl.SetErrorDurations(50*time.Millisecond, 250*time.Millisecond)
	ctl.SetDerivativeTolerance(5)
	return ctl
}

// arcController configures the outer-side arc length PID of a curve.
func (c *Chassis) arcController(target float64) *pid.Controller {
	ctl := pid.New(c.cfg.Tuning.Distance, c.deps.Clock)
	ctl.SetTarget(target)
	ctl.SetIntegralMax(0)
	ctl.SetIntegralRange(5)
	ctl.SetErrorTolerances(0.3, 0.9)
	ctl.SetErrorDurations(50*time.Millisecond, 250*time.Millisecond)
	ctl.SetDerivativeTolerance(2.25)
	return ctl
}

// maneuver is the bookkeeping of one primitive call.
type maneuver struct {
	c      *Chassis
	name   string
	opts   options
	handle *arbiter.Handle
	start  time.Duration
	limit  time.Duration
}

func (c *Chassis) begin(name string, limit time.Duration, opts []Option) *maneuver {
	o := options{exit: true, maxOutput: c.cfg.MaxOutput}
	for _, opt := range opts {
		opt(&o)
	}
	m := &maneuver{
		c:      c,
		name:   name,
		opts:   o,
		handle: c.deps.Drive.Acquire(name),
		start:  c.deps.Clock.Now(),
		limit:  limit,
	}
	m.handle.Stop(hal.Coast)
	c.log.Debug("maneuver started",
		zap.String("primitive", name),
		zap.Duration("time_limit", limit),
		zap.Bool("exit", o.exit),
		zap.Float64("max_output", o.maxOutput))
	return m
}

// running reports whether the time budget still allows another tick.
func (m *maneuver) running() bool {
	return m.c.deps.Clock.Now()-m.start <= m.limit
}

func (m *maneuver) elapsed() time.Duration {
	return m.c.deps.Clock.Now() - m.start
}

func (m *maneuver) tick() {
	m.c.deps.Clock.Sleep(m.c.cfg.Tick)
}

// drive commands both sides and reports the tick to the observer. It returns false when
// the drivetrain was taken by another owner.
func (m *maneuver) drive(left, right, target float64) bool {
	if !m.handle.Drive(left, right) {
		return false
	}
	m.observe(left, right, target)
	return true
}

// swingSide holds one side and drives the other.
func (m *maneuver) swingSide(held hal.Side, volts, target float64) bool {
	driven := hal.Right
	if held == hal.Right {
		driven = hal.Left
	}
	if !m.handle.StopSide(held, hal.Hold) || !m.handle.SetVoltage(driven, volts) {
		return false
	}
	left, right := volts, 0.0
	if driven == hal.Right {
		left, right = 0, volts
	}
	m.observe(left, right, target)
	return true
}

func (m *maneuver) observe(left, right, target float64) {
	if m.c.deps.Observer == nil {
		return
	}
	p := m.c.deps.Pose.Snapshot()
	m.c.deps.Observer.OnTick(Sample{
		Primitive: m.name,
		Time:      m.elapsed(),
		Heading:   m.c.heading(),
		Target:    target,
		Left:      left,
		Right:     right,
		X:         p.X,
		Y:         p.Y,
	})
}

func (m *maneuver) reportPID(role string, ctl *pid.Controller) {
	m.c.deps.Metrics.SetPIDTerms(role, ctl.Terms())
}

// stopIfExit ends a stop-at-end maneuver with the motors held and slew memory cleared.
func (m *maneuver) stopIfExit() {
	if m.opts.exit {
		m.c.slew.Reset()
		m.handle.Stop(hal.Hold)
	}
}

func (m *maneuver) finish(outcome Outcome) Result {
	m.handle.Release()
	res := Result{Primitive: m.name, Outcome: outcome, Elapsed: m.elapsed()}

	p := m.c.deps.Pose.Snapshot()
	m.c.deps.Metrics.ObserveManeuver(m.name, string(outcome), res.Elapsed)
	m.c.deps.Metrics.SetPose(p.X, p.Y, m.c.heading(), p.CorrectAngle)

	fields := []zap.Field{
		zap.String("primitive", m.name),
		zap.String("outcome", string(outcome)),
		zap.Duration("elapsed", res.Elapsed),
		zap.Float64("heading", m.c.heading()),
		zap.Float64("x", p.X),
		zap.Float64("y", p.Y),
	}
	switch outcome {
	case Timeout:
		m.c.log.Info("maneuver timed out", fields...)
	case Preempted:
		m.c.log.Warn("maneuver preempted", fields...)
	default:
		m.c.log.Debug("maneuver finished", fields...)
	}
	return res
}

// chainedSlew picks slew limits for direction and this call's exit mode.
func (m *maneuver) chainedSlew(direction int) (shaping.SlewLimits, bool) {
	return shaping.ChainedSlew(m.c.cfg.Slew, m.c.cfg.Chaining, direction, m.opts.exit)
}

// chainedMagnitude is the drive magnitude of a chained turn: the PID output in the turn
// direction, held between the minimum chained output and the cap.
func (m *maneuver) chainedMagnitude(out float64, turnDir int) float64 {
	v := math.Max(out*float64(turnDir), m.c.cfg.MinOutput)
	return math.Min(v, m.opts.maxOutput)
}

func clampAbs(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

func direction(v float64) int {
	if v > 0 {
		return 1
	}
	return -1
}

// crossedLine reports whether pos is within tolerance of, or past, the line through
// target perpendicular to headingDeg.
func crossedLine(pos, target r2.Point, headingDeg, tolerance float64) bool {
	rad := geometry.DegToRad(headingDeg)
	return (pos.Y-target.Y)*-math.Cos(rad) <= (pos.X-target.X)*math.Sin(rad)+tolerance
}
