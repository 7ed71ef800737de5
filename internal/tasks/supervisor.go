package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"chassis-controller/internal/metrics"
)

// Mode is the competition operating mode.
type Mode int

const (
	Disabled Mode = iota
	PreAutonomous
	Autonomous
	Driver
)

// Modes lists every operating mode.
var Modes = []Mode{Disabled, PreAutonomous, Autonomous, Driver}

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case PreAutonomous:
		return "pre_autonomous"
	case Autonomous:
		return "autonomous"
	case Driver:
		return "driver"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as printed by String.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if m.String() == strings.ToLower(s) {
			return m, nil
		}
	}
	return Disabled, fmt.Errorf("unknown mode %q", s)
}

type binding struct {
	task  Task
	modes map[Mode]bool
}

type running struct {
	cancel context.CancelFunc
	done   <-chan error
}

// Supervisor starts and stops registered tasks as the operating mode changes.
type Supervisor struct {
	runner  Runner
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	mode     Mode
	bindings []binding
	running  map[string]running
}

// NewSupervisor creates a supervisor in the disabled mode.
func NewSupervisor(runner Runner, logger *zap.Logger, m *metrics.Metrics) *Supervisor {
	return &Supervisor{
		runner:  runner,
		logger:  logger,
		metrics: m,
		running: make(map[string]running),
	}
}

// Register makes task run whenever the mode is one of modes. Task names must be unique.
func (s *Supervisor) Register(task Task, modes ...Mode) {
	set := make(map[Mode]bool, len(modes))
	for _, m := range modes {
		set[m] = true
	}
	s.mu.Lock()
	s.bindings = append(s.bindings, binding{task: task, modes: set})
	s.mu.Unlock()
}

// Mode returns the current operating mode.
func (s *Supervisor) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches to mode: tasks not wanted in it are stopped and waited for, then
// missing ones are started under ctx. Errors from stopped tasks are combined.
func (s *Supervisor) SetMode(ctx context.Context, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.mode
	s.mode = mode

	var err error
	for _, b := range s.bindings {
		name := b.task.Name()
		_, isRunning := s.running[name]
		switch {
		case isRunning && !b.modes[mode]:
			err = multierr.Append(err, s.stopLocked(name))
		case !isRunning && b.modes[mode]:
			taskCtx, cancel := context.WithCancel(ctx)
			s.running[name] = running{cancel: cancel, done: s.runner.Go(taskCtx, b.task)}
			s.logger.Debug("task scheduled", zap.String("task", name), zap.Stringer("mode", mode))
		}
	}

	all := make([]string, len(Modes))
	for i, m := range Modes {
		all[i] = m.String()
	}
	s.metrics.SetMode(mode.String(), all)
	s.logger.Info("mode changed", zap.Stringer("from", prev), zap.Stringer("to", mode))
	return err
}

// Running returns the names of the running tasks, sorted.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.running))
	for name := range s.running {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stop stops every running task and returns to disabled.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for name := range s.running {
		err = multierr.Append(err, s.stopLocked(name))
	}
	s.mode = Disabled
	return err
}

func (s *Supervisor) stopLocked(name string) error {
	r := s.running[name]
	delete(s.running, name)
	r.cancel()
	if err := <-r.done; err != nil {
		s.logger.Warn("task failed", zap.String("task", name), zap.Error(err))
		return err
	}
	s.logger.Debug("task stopped", zap.String("task", name))
	return nil
}
