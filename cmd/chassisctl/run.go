package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chassis-controller/internal/arbiter"
	"chassis-controller/internal/config"
	"chassis-controller/internal/logging"
	"chassis-controller/internal/metrics"
	"chassis-controller/internal/motion"
	"chassis-controller/internal/odometry"
	"chassis-controller/internal/pose"
	"chassis-controller/internal/report"
	"chassis-controller/internal/routine"
	"chassis-controller/internal/sim"
	"chassis-controller/internal/tasks"
)

// robot is everything a routine run needs, wired against the simulator.
type robot struct {
	sim        *sim.Robot
	store      *pose.Store
	estimator  *odometry.Estimator
	chassis    *motion.Chassis
	recorder   *motion.Recorder
	supervisor *tasks.Supervisor
	metrics    *metrics.Metrics
}

func newRobot(cfg *config.Config, start routine.Start, logger *zap.Logger) *robot {
	m := metrics.New()
	plant := sim.New(cfg.SimRobot())
	plant.Place(start.X, start.Y, start.Heading)

	store := pose.NewStore()
	est := odometry.New(cfg.Capabilities(), odometry.Sources{
		Heading:    plant,
		Drive:      plant,
		Horizontal: plant.HorizontalEncoder(),
		Vertical:   plant.VerticalEncoder(),
	}, store, m)

	rec := &motion.Recorder{}
	ch := motion.New(cfg.Motion(), motion.Deps{
		Drive:        arbiter.New(plant),
		Heading:      plant,
		Pose:         store,
		Clock:        plant,
		Logger:       logger,
		Metrics:      m,
		Observer:     rec,
		EncoderReset: est.Rebase,
	})

	sup := tasks.NewSupervisor(plant, logger, m)
	sup.Register(est, tasks.Autonomous, tasks.Driver)
	if cfg.HeadingHold.Enabled {
		sup.Register(ch.HeadingHold(), tasks.Autonomous)
	}

	return &robot{
		sim:        plant,
		store:      store,
		estimator:  est,
		chassis:    ch,
		recorder:   rec,
		supervisor: sup,
		metrics:    m,
	}
}

// autonomous calibrates the heading sensor, starts the autonomous tasks and runs r.
func (rb *robot) autonomous(ctx context.Context, cfg *config.Config, r *routine.Routine, logger *zap.Logger) (results []routine.StepResult, err error) {
	if err := rb.supervisor.SetMode(ctx, tasks.PreAutonomous); err != nil {
		return nil, err
	}
	if err := tasks.Calibrate(ctx, rb.sim, rb.sim, cfg.Control.Tick); err != nil {
		return nil, err
	}
	rb.estimator.Reset()

	if err := rb.supervisor.SetMode(ctx, tasks.Autonomous); err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, rb.supervisor.Stop())
	}()

	logger.Info("running routine",
		zap.String("routine", r.Name),
		zap.Int("steps", len(r.Steps)),
		zap.String("odometry", rb.estimator.Capabilities().Variant()),
		zap.Strings("tasks", rb.supervisor.Running()))
	return r.Execute(ctx, rb.chassis, rb.sim, logger)
}

func runRoutine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	r, err := routine.Load(routinePath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rb := newRobot(cfg, r.Start, logger)
	g, gctx := errgroup.WithContext(ctx)
	if serve {
		g.Go(func() error {
			return rb.metrics.Serve(gctx, cfg.Server.MetricsPort, logger, func() string {
				return rb.supervisor.Mode().String()
			})
		})
	}
	g.Go(func() error {
		results, err := rb.autonomous(gctx, cfg, r, logger)
		if err := render(cmd, r, rb, results); err != nil {
			return err
		}
		if err != nil {
			return fmt.Errorf("routine %s: %w", r.Name, err)
		}
		if serve {
			logger.Info("routine done, serving metrics until interrupted")
		}
		return nil
	})
	return g.Wait()
}

func render(cmd *cobra.Command, r *routine.Routine, rb *robot, results []routine.StepResult) error {
	out := cmd.OutOrStdout()
	samples := rb.recorder.Samples()

	fmt.Fprintln(out, report.Summary(r.Name, results, rb.store.Snapshot(), rb.sim.HeadingDegrees()))
	if plot {
		if graph := report.Traces(samples, plotWidth); graph != "" {
			fmt.Fprintln(out)
			fmt.Fprintln(out, graph)
		}
	}
	if plotPath {
		if graph := report.Path(samples, plotWidth); graph != "" {
			fmt.Fprintln(out)
			fmt.Fprintln(out, graph)
		}
	}
	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		defer f.Close()
		if err := report.WriteCSV(f, samples); err != nil {
			return err
		}
		fmt.Fprintf(out, "trace written to %s (%d samples)\n", csvPath, len(samples))
	}
	return nil
}
