// Package sim is a simulated differential-drive robot. One Robot stands in for every
// device the controller talks to (drivetrain, heading sensor, tracking wheels, clock)
// and advances its physics only when the controller yields, so runs are deterministic.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"chassis-controller/internal/geometry"
	"chassis-controller/internal/hal"
	"chassis-controller/internal/odometry"
	"chassis-controller/internal/tasks"
)

// Config describes the simulated plant.
type Config struct {
	TrackWidth    float64 // Inches between drive sides
	WheelDistance float64 // Drive travel in inches per motor revolution
	// VoltGain is the steady-state wheel speed in inches per second per volt.
	VoltGain float64
	// MotorLag is the first-order motor time constant. Zero makes speed follow voltage
	// instantly.
	MotorLag   time.Duration
	MaxVoltage float64
	Tick       time.Duration
	// CalibrationTime is how long Calibrate keeps the heading sensor busy.
	CalibrationTime time.Duration

	Horizontal *odometry.Tracker
	Vertical   *odometry.Tracker
}

// Pose is the ground-truth state of the robot.
type Pose struct {
	X, Y    float64 // Inches
	Heading float64 // Cumulative degrees, clockwise from +y
}

type side struct {
	volts  float64
	speed  float64 // Inches per second
	travel float64 // Inches since start
	zero   float64 // Travel at the last reset
}

type hook struct {
	id int
	fn func()
}

// Robot is the simulated plant. It satisfies hal.Drivetrain, hal.HeadingSensor,
// hal.Clock and tasks.Runner.
type Robot struct {
	cfg Config

	mu               sync.Mutex
	x, y, theta      float64
	sides            [2]side
	horizontal       float64 // Tracker travel in inches
	vertical         float64
	now              time.Duration
	pending          time.Duration
	calibratingUntil time.Duration
	hooks            []hook
	nextHook         int
}

// New creates a robot at the origin facing +y.
func New(cfg Config) *Robot {
	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Millisecond
	}
	if cfg.MaxVoltage <= 0 {
		cfg.MaxVoltage = 12
	}
	return &Robot{cfg: cfg}
}

// Config returns the plant description.
func (r *Robot) Config() Config {
	return r.cfg
}

// Place teleports the robot without touching encoders.
func (r *Robot) Place(x, y, headingDeg float64) {
	r.mu.Lock()
	r.x, r.y, r.theta = x, y, geometry.DegToRad(headingDeg)
	r.mu.Unlock()
}

// Truth returns the ground-truth pose.
func (r *Robot) Truth() Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Pose{X: r.x, Y: r.y, Heading: geometry.RadToDeg(r.theta)}
}

// SetVoltage commands a drive side, clamped to the supply voltage.
func (r *Robot) SetVoltage(s hal.Side, volts float64) {
	volts = math.Max(-r.cfg.MaxVoltage, math.Min(r.cfg.MaxVoltage, volts))
	r.mu.Lock()
	r.sides[s].volts = volts
	r.mu.Unlock()
}

// Voltage returns the last command of a side.
func (r *Robot) Voltage(s hal.Side) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sides[s].volts
}

// Stop removes drive power. Brake and hold stop the wheel at once; coast lets it spin
// down with the motor lag.
func (r *Robot) Stop(s hal.Side, mode hal.BrakeMode) {
	r.mu.Lock()
	r.sides[s].volts = 0
	if mode != hal.Coast {
		r.sides[s].speed = 0
	}
	r.mu.Unlock()
}

// ResetPosition zeroes a side's encoder.
func (r *Robot) ResetPosition(s hal.Side) {
	r.mu.Lock()
	r.sides[s].zero = r.sides[s].travel
	r.mu.Unlock()
}

// PositionDegrees returns a side's motor rotation since the last reset.
func (r *Robot) PositionDegrees(s hal.Side) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (r.sides[s].travel - r.sides[s].zero) / r.cfg.WheelDistance * 360
}

// HeadingDegrees returns the cumulative heading.
func (r *Robot) HeadingDegrees() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return geometry.RadToDeg(r.theta)
}

// Calibrate keeps the sensor busy for CalibrationTime of simulated time.
func (r *Robot) Calibrate() {
	r.mu.Lock()
	r.calibratingUntil = r.now + r.cfg.CalibrationTime
	r.mu.Unlock()
}

// IsCalibrating reports whether calibration is still running.
func (r *Robot) IsCalibrating() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now < r.calibratingUntil
}

type encoder func() float64

func (e encoder) PositionDegrees() float64 { return e() }

// HorizontalEncoder returns the horizontal tracker, or nil when none is mounted.
func (r *Robot) HorizontalEncoder() hal.Encoder {
	t := r.cfg.Horizontal
	if t == nil {
		return nil
	}
	return encoder(func() float64 {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.horizontal / (math.Pi * t.Diameter) * 360
	})
}

// VerticalEncoder returns the vertical tracker, or nil when none is mounted.
func (r *Robot) VerticalEncoder() hal.Encoder {
	t := r.cfg.Vertical
	if t == nil {
		return nil
	}
	return encoder(func() float64 {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.vertical / (math.Pi * t.Diameter) * 360
	})
}

// Now returns simulated time.
func (r *Robot) Now() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

// Sleep advances the simulation by d, one tick at a time. After each tick the
// registered hooks run in registration order. Partial ticks carry over to the next call.
func (r *Robot) Sleep(d time.Duration) {
	r.mu.Lock()
	r.pending += d
	ticks := int(r.pending / r.cfg.Tick)
	r.pending -= time.Duration(ticks) * r.cfg.Tick
	r.mu.Unlock()

	for i := 0; i < ticks; i++ {
		r.mu.Lock()
		r.step()
		hooks := make([]hook, len(r.hooks))
		copy(hooks, r.hooks)
		r.mu.Unlock()

		for _, h := range hooks {
			h.fn()
		}
	}
}

// AddHook registers fn to run after every tick and returns its removal function.
func (r *Robot) AddHook(fn func()) (remove func()) {
	r.mu.Lock()
	r.nextHook++
	id := r.nextHook
	r.hooks = append(r.hooks, hook{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, h := range r.hooks {
			if h.id == id {
				r.hooks = append(r.hooks[:i], r.hooks[i+1:]...)
				return
			}
		}
	}
}

// Go runs task as a tick hook until ctx is cancelled.
func (r *Robot) Go(ctx context.Context, task tasks.Task) <-chan error {
	remove := r.AddHook(func() {
		if ctx.Err() == nil {
			task.Step()
		}
	})
	done := make(chan error, 1)
	go func() {
		defer close(done)
		<-ctx.Done()
		remove()
		done <- nil
	}()
	return done
}

// step integrates one tick of motion along a constant-curvature arc. Called with mu held.
func (r *Robot) step() {
	dt := r.cfg.Tick.Seconds()
	alpha := 1.0
	if r.cfg.MotorLag > 0 {
		alpha = 1 - math.Exp(-dt/r.cfg.MotorLag.Seconds())
	}

	var travel [2]float64
	for i := range r.sides {
		s := &r.sides[i]
		target := r.cfg.VoltGain * s.volts
		s.speed += (target - s.speed) * alpha
		travel[i] = s.speed * dt
		s.travel += travel[i]
	}

	dl, dr := travel[hal.Left], travel[hal.Right]
	ds := (dl + dr) / 2
	dTheta := (dl - dr) / r.cfg.TrackWidth

	chord := ds
	if dTheta != 0 {
		chord = 2 * math.Sin(dTheta/2) * ds / dTheta
	}
	mid := r.theta + dTheta/2
	r.x += chord * math.Sin(mid)
	r.y += chord * math.Cos(mid)
	r.theta += dTheta

	if t := r.cfg.Vertical; t != nil {
		r.vertical += ds - t.Offset*dTheta
	}
	if t := r.cfg.Horizontal; t != nil {
		r.horizontal += -t.Offset * dTheta
	}
	r.now += r.cfg.Tick
}
