// Package hal defines the device contracts the motion core drives: the two-sided
// drivetrain, the cumulative heading sensor, optional tracking wheels and the clock
// every control loop ticks against. Real device drivers live outside this module.
package hal

import (
	"fmt"
	"time"
)

// Side selects one half of a differential drivetrain.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// BrakeMode is the stopping behaviour requested from a drive side.
type BrakeMode int

const (
	Coast BrakeMode = iota
	Brake
	Hold
)

func (b BrakeMode) String() string {
	switch b {
	case Coast:
		return "coast"
	case Brake:
		return "brake"
	case Hold:
		return "hold"
	default:
		return fmt.Sprintf("brake(%d)", int(b))
	}
}

// Drivetrain is the motor sink for both drive sides.
type Drivetrain interface {
	SetVoltage(side Side, volts float64)
	Stop(side Side, mode BrakeMode)
	ResetPosition(side Side)
	// PositionDegrees returns the accumulated motor rotation of a side.
	PositionDegrees(side Side) float64
}

// HeadingSensor reports cumulative rotation in degrees. The value is not wrapped to
// 0-360; clockwise rotation increases it.
type HeadingSensor interface {
	HeadingDegrees() float64
	Calibrate()
	IsCalibrating() bool
}

// Encoder is a free-spinning tracking wheel.
type Encoder interface {
	PositionDegrees() float64
}

// Clock is the millisecond timer and the cooperative tick yield.
type Clock interface {
	Now() time.Duration
	Sleep(d time.Duration)
}

// SystemClock measures time from its creation with the process monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock whose zero is the moment of the call.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

// Sleep blocks the calling goroutine for d.
func (c *SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
