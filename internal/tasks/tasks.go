// Package tasks runs the controller's background loops (odometry, heading-hold) as
// cancellable tasks and ties their lifecycle to the operating mode.
package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chassis-controller/internal/hal"
)

// Task is one periodic background loop body.
type Task interface {
	Name() string
	// Step runs one tick. It must not block.
	Step()
}

// Runner schedules a task's Step once per control tick.
type Runner interface {
	// Go starts stepping task until ctx is cancelled. The task is scheduled before Go
	// returns. The channel yields the task's exit error once and is then closed.
	Go(ctx context.Context, task Task) <-chan error
}

// PolledRunner steps tasks on their own goroutine against a clock.
type PolledRunner struct {
	Clock  hal.Clock
	Tick   time.Duration
	Logger *zap.Logger
}

// Run steps task every tick until ctx is cancelled. A panicking task stops and is
// reported as an error.
func (r PolledRunner) Run(ctx context.Context, task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name(), p)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		task.Step()
		r.Clock.Sleep(r.Tick)
	}
}

// Go runs task on a new goroutine.
func (r PolledRunner) Go(ctx context.Context, task Task) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		if r.Logger != nil {
			r.Logger.Debug("task started", zap.String("task", task.Name()))
		}
		done <- r.Run(ctx, task)
	}()
	return done
}

// Calibrate starts heading sensor calibration and yields every tick until it finishes.
func Calibrate(ctx context.Context, sensor hal.HeadingSensor, clock hal.Clock, tick time.Duration) error {
	sensor.Calibrate()
	for sensor.IsCalibrating() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("heading calibration: %w", err)
		}
		clock.Sleep(tick)
	}
	return nil
}
