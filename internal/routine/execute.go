package routine

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/geo/r2"
	"go.uber.org/zap"

	"chassis-controller/internal/hal"
	"chassis-controller/internal/motion"
)

// Done is the outcome of steps that finish immediately or after a fixed wait.
const Done motion.Outcome = "done"

// Mover is the chassis surface a routine drives. *motion.Chassis implements it.
type Mover interface {
	DriveTo(distance float64, timeLimit time.Duration, opts ...motion.Option) motion.Result
	TurnToAngle(angle float64, timeLimit time.Duration, opts ...motion.Option) motion.Result
	CurveCircle(resultAngle, centerRadius float64, timeLimit time.Duration, opts ...motion.Option) motion.Result
	Swing(angle, dir float64, timeLimit time.Duration, opts ...motion.Option) motion.Result
	TurnToPoint(point r2.Point, dir int, timeLimit time.Duration, opts ...motion.Option) motion.Result
	MoveToPoint(point r2.Point, dir int, timeLimit time.Duration, opts ...motion.Option) motion.Result
	Boomerang(point r2.Point, dir int, finalAngle, lead float64, timeLimit time.Duration, opts ...motion.Option) motion.Result
	DriveVoltage(left, right float64, d time.Duration) motion.Result
	Stop(mode hal.BrakeMode)
	SetPose(x, y, correctAngle float64)
	SetCorrectAngle(deg float64)
	ResetEncoders()
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	Index   int // 1-based
	Op      string
	Outcome motion.Outcome
	Elapsed time.Duration
}

// Execute places the chassis at the start pose and runs the steps in order. It stops
// early when ctx is cancelled or a step loses the drivetrain, returning the results
// of the steps that ran.
func (r *Routine) Execute(ctx context.Context, m Mover, clock hal.Clock, logger *zap.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("routine", r.Name))

	m.SetPose(r.Start.X, r.Start.Y, r.Start.Heading)
	results := make([]StepResult, 0, len(r.Steps))
	for i, s := range r.Steps {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("routine %s interrupted before step %d: %w", r.Name, i+1, err)
		}

		start := clock.Now()
		outcome, err := runStep(m, clock, s)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, s.Op, err)
		}
		res := StepResult{Index: i + 1, Op: s.Op, Outcome: outcome, Elapsed: clock.Now() - start}
		results = append(results, res)

		logger.Debug("step finished",
			zap.Int("step", res.Index),
			zap.String("op", res.Op),
			zap.String("outcome", string(res.Outcome)),
			zap.Duration("elapsed", res.Elapsed))

		if outcome == motion.Preempted {
			return results, fmt.Errorf("step %d (%s) lost the drivetrain", i+1, s.Op)
		}
	}

	logger.Info("routine finished", zap.Int("steps", len(results)))
	return results, nil
}

func runStep(m Mover, clock hal.Clock, s Step) (motion.Outcome, error) {
	opts := []motion.Option{motion.WithExit(s.ExitAtEnd())}
	if s.MaxOutput > 0 {
		opts = append(opts, motion.WithMaxOutput(s.MaxOutput))
	}
	if s.Overturn {
		opts = append(opts, motion.WithOverturn(true))
	}
	point := r2.Point{X: s.X, Y: s.Y}

	switch s.Op {
	case OpDriveTo:
		return m.DriveTo(s.Distance, s.TimeLimit, opts...).Outcome, nil
	case OpTurnToAngle:
		return m.TurnToAngle(s.Angle, s.TimeLimit, opts...).Outcome, nil
	case OpCurveCircle:
		return m.CurveCircle(s.Angle, s.Radius, s.TimeLimit, opts...).Outcome, nil
	case OpSwing:
		return m.Swing(s.Angle, float64(s.Dir), s.TimeLimit, opts...).Outcome, nil
	case OpTurnToPoint:
		return m.TurnToPoint(point, s.Dir, s.TimeLimit, opts...).Outcome, nil
	case OpMoveToPoint:
		return m.MoveToPoint(point, s.Dir, s.TimeLimit, opts...).Outcome, nil
	case OpBoomerang:
		return m.Boomerang(point, s.Dir, s.FinalAngle, s.Lead, s.TimeLimit, opts...).Outcome, nil
	case OpDriveVoltage:
		return m.DriveVoltage(s.Left, s.Right, s.Duration).Outcome, nil
	case OpStop:
		mode, err := parseBrakeMode(s.Mode)
		if err != nil {
			return "", err
		}
		m.Stop(mode)
	case OpWait:
		clock.Sleep(s.Duration)
	case OpSetPose:
		m.SetPose(s.X, s.Y, s.Heading)
	case OpSetCorrectAngle:
		m.SetCorrectAngle(s.Angle)
	case OpResetEncoders:
		m.ResetEncoders()
	default:
		return "", fmt.Errorf("unknown op %q", s.Op)
	}
	return Done, nil
}

func parseBrakeMode(mode string) (hal.BrakeMode, error) {
	switch mode {
	case "coast":
		return hal.Coast, nil
	case "brake":
		return hal.Brake, nil
	case "hold":
		return hal.Hold, nil
	default:
		return hal.Coast, fmt.Errorf("mode must be one of: coast, brake, hold, got %q", mode)
	}
}
