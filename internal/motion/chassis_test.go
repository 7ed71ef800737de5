package motion

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chassis-controller/internal/arbiter"
	"chassis-controller/internal/hal"
	"chassis-controller/internal/pid"
	"chassis-controller/internal/pose"
	"chassis-controller/internal/shaping"
	"chassis-controller/internal/sim"
)

func newSimChassis(t *testing.T) (*Chassis, *sim.Robot) {
	t.Helper()
	wheelDistance := 48.0 / 84.0 * 4 * math.Pi
	robot := sim.New(sim.Config{
		TrackWidth:    12.5,
		WheelDistance: wheelDistance,
		VoltGain:      4,
		Tick:          10 * time.Millisecond,
	})
	c := New(Config{
		TrackWidth:    12.5,
		WheelDistance: wheelDistance,
		Tuning: Tuning{
			Distance: pid.Gains{Kp: 2, Kd: 8},
			Turn:     pid.Gains{Kp: 0.5, Kd: 1},
			Heading:  pid.Gains{Kp: 0.4, Kd: 0.8},
		},
		Slew: shaping.Table{
			AccelForward: 2,
			DecelForward: 2,
			AccelReverse: 2,
			DecelReverse: 2,
		},
		Chaining:  shaping.Chaining{DirChangeStart: true, DirChangeEnd: true},
		MinOutput: 10,
		MaxOutput: 12,
	}, Deps{
		Drive:   arbiter.New(robot),
		Heading: robot,
		Pose:    pose.NewStore(),
		Clock:   robot,
	})
	return c, robot
}

func TestCrossedLine(t *testing.T) {
	target := r2.Point{X: 0, Y: 48}
	tests := []struct {
		name    string
		pos     r2.Point
		heading float64
		want    bool
	}{
		{"short of the line", r2.Point{X: 0, Y: 40}, 0, false},
		{"inside tolerance", r2.Point{X: 0, Y: 47.5}, 0, true},
		{"past the line", r2.Point{X: 5, Y: 50}, 0, true},
		{"approaching along +x", r2.Point{X: -10, Y: 48}, 90, false},
		{"past along +x", r2.Point{X: 2, Y: 30}, 90, true},
		{"reversing towards -y", r2.Point{X: 0, Y: 60}, 180, false},
		{"whole turns", r2.Point{X: 0, Y: 40}, 720, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, crossedLine(tt.pos, target, tt.heading, 1))
		})
	}
}

func TestChainedMagnitude(t *testing.T) {
	m := &maneuver{c: &Chassis{cfg: Config{MinOutput: 10}}, opts: options{maxOutput: 12}}

	assert.Equal(t, 12.0, m.chainedMagnitude(45, 1))
	assert.Equal(t, 10.0, m.chainedMagnitude(3, 1))
	assert.Equal(t, 10.0, m.chainedMagnitude(-3, 1))
	assert.Equal(t, 11.0, m.chainedMagnitude(-11, -1))
	assert.Equal(t, 12.0, m.chainedMagnitude(-45, -1))

	m.opts.maxOutput = 8
	assert.Equal(t, 8.0, m.chainedMagnitude(3, 1))
}

func TestDirection(t *testing.T) {
	assert.Equal(t, 1, direction(0.1))
	assert.Equal(t, -1, direction(0))
	assert.Equal(t, -1, direction(-60))
	assert.Equal(t, -3.0, clampAbs(-7, 3))
	assert.Equal(t, 2.0, clampAbs(2, 3))
}

func TestSlewMemory_ClearedWhenManeuverExits(t *testing.T) {
	// Arrange
	c, robot := newSimChassis(t)

	// Act - a chained drive leaves the motors running and the ramp remembered
	chained := c.DriveTo(24, 3*time.Second, WithExit(false))
	chainedLeft, chainedRight := c.slew.Previous()
	stopped := c.DriveTo(24, 3*time.Second)
	stoppedLeft, stoppedRight := c.slew.Previous()

	// Assert
	require.Equal(t, Threshold, chained.Outcome)
	assert.Greater(t, chainedLeft, 10.0)
	assert.Greater(t, chainedRight, 10.0)
	require.Equal(t, Settled, stopped.Outcome)
	assert.Zero(t, stoppedLeft)
	assert.Zero(t, stoppedRight)
	assert.Zero(t, robot.Voltage(hal.Left))
}

func TestSlewMemory_ClearedByStopAndTurnToPoint(t *testing.T) {
	// Arrange
	c, _ := newSimChassis(t)

	// Act / Assert
	c.CurveCircle(90, 24, 3*time.Second, WithExit(false))
	left, right := c.slew.Previous()
	assert.NotZero(t, left)
	assert.NotZero(t, right)

	c.Stop(hal.Brake)
	left, right = c.slew.Previous()
	assert.Zero(t, left)
	assert.Zero(t, right)

	c.DriveTo(-24, 3*time.Second, WithExit(false))
	left, _ = c.slew.Previous()
	assert.Less(t, left, 0.0)

	c.TurnToPoint(r2.Point{X: 24, Y: 24}, 1, time.Second)
	left, right = c.slew.Previous()
	assert.Zero(t, left)
	assert.Zero(t, right)
}
