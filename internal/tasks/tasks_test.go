package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chassis-controller/internal/sim"
	"chassis-controller/internal/tasks"
)

const tick = 10 * time.Millisecond

type countingTask struct {
	name    string
	steps   int
	onStep  func(step int)
	panicAt int
}

func (c *countingTask) Name() string { return c.name }

func (c *countingTask) Step() {
	c.steps++
	if c.panicAt > 0 && c.steps == c.panicAt {
		panic("encoder unplugged")
	}
	if c.onStep != nil {
		c.onStep(c.steps)
	}
}

type nopClock struct{ sleeps int }

func (c *nopClock) Now() time.Duration    { return time.Duration(c.sleeps) * tick }
func (c *nopClock) Sleep(d time.Duration) { c.sleeps++ }

func newRobot() *sim.Robot {
	return sim.New(sim.Config{
		TrackWidth:      12.5,
		WheelDistance:   10,
		VoltGain:        4,
		Tick:            tick,
		CalibrationTime: 100 * time.Millisecond,
	})
}

// TestPolledRunner_StopsOnCancel tests that the loop observes cancellation between ticks
func TestPolledRunner_StopsOnCancel(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := &nopClock{}
	task := &countingTask{name: "odometry_none"}
	task.onStep = func(step int) {
		if step == 3 {
			cancel()
		}
	}
	runner := tasks.PolledRunner{Clock: clock, Tick: tick}

	// Act
	err := runner.Run(ctx, task)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, task.steps)
	assert.Equal(t, 3, clock.sleeps)
}

// TestPolledRunner_PanicBecomesError tests panic recovery through Go
func TestPolledRunner_PanicBecomesError(t *testing.T) {
	// Arrange
	task := &countingTask{name: "heading_hold", panicAt: 2}
	runner := tasks.PolledRunner{Clock: &nopClock{}, Tick: tick, Logger: zap.NewNop()}

	// Act
	err := <-runner.Go(context.Background(), task)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heading_hold panicked: encoder unplugged")
}

// TestSupervisor_ModeTransitions tests which tasks run in each mode
func TestSupervisor_ModeTransitions(t *testing.T) {
	// Arrange
	robot := newRobot()
	sup := tasks.NewSupervisor(robot, zap.NewNop(), nil)
	odom := &countingTask{name: "odometry_both"}
	hold := &countingTask{name: "heading_hold"}
	sup.Register(odom, tasks.Autonomous, tasks.Driver)
	sup.Register(hold, tasks.Autonomous)
	ctx := context.Background()

	// Act & Assert
	require.NoError(t, sup.SetMode(ctx, tasks.PreAutonomous))
	assert.Empty(t, sup.Running())
	robot.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, odom.steps)

	require.NoError(t, sup.SetMode(ctx, tasks.Autonomous))
	assert.Equal(t, []string{"heading_hold", "odometry_both"}, sup.Running())
	robot.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, odom.steps)
	assert.Equal(t, 3, hold.steps)

	require.NoError(t, sup.SetMode(ctx, tasks.Driver))
	assert.Equal(t, []string{"odometry_both"}, sup.Running())
	robot.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, odom.steps)
	assert.Equal(t, 3, hold.steps)
	assert.Equal(t, tasks.Driver, sup.Mode())

	require.NoError(t, sup.Stop())
	robot.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, odom.steps)
	assert.Equal(t, tasks.Disabled, sup.Mode())
}

// TestSupervisor_StopCombinesErrors tests multi-error aggregation on stop
func TestSupervisor_StopCombinesErrors(t *testing.T) {
	// Arrange
	runner := failingRunner{}
	sup := tasks.NewSupervisor(runner, zap.NewNop(), nil)
	sup.Register(&countingTask{name: "a"}, tasks.Driver)
	sup.Register(&countingTask{name: "b"}, tasks.Driver)
	require.NoError(t, sup.SetMode(context.Background(), tasks.Driver))

	// Act
	err := sup.Stop()

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a failed")
	assert.Contains(t, err.Error(), "b failed")
	assert.Empty(t, sup.Running())
}

type failingRunner struct{}

func (failingRunner) Go(ctx context.Context, task tasks.Task) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		<-ctx.Done()
		done <- errors.New(task.Name() + " failed")
	}()
	return done
}

func TestParseMode(t *testing.T) {
	for _, m := range tasks.Modes {
		got, err := tasks.ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := tasks.ParseMode("teleop")
	assert.Error(t, err)
}

// TestCalibrate_WaitsForSensor tests that calibration yields on the clock
func TestCalibrate_WaitsForSensor(t *testing.T) {
	// Arrange
	robot := newRobot()

	// Act
	err := tasks.Calibrate(context.Background(), robot, robot, tick)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, robot.Now())
	assert.False(t, robot.IsCalibrating())
}

// TestCalibrate_Cancelled tests that a cancelled context aborts the wait
func TestCalibrate_Cancelled(t *testing.T) {
	robot := newRobot()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tasks.Calibrate(ctx, robot, robot, tick)

	assert.ErrorIs(t, err, context.Canceled)
}
