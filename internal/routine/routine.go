// Package routine loads autonomous routines written as yaml step lists and runs them
// against a chassis.
package routine

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpDriveTo         = "drive_to"
	OpTurnToAngle     = "turn_to_angle"
	OpCurveCircle     = "curve_circle"
	OpSwing           = "swing"
	OpTurnToPoint     = "turn_to_point"
	OpMoveToPoint     = "move_to_point"
	OpBoomerang       = "boomerang"
	OpDriveVoltage    = "drive_voltage"
	OpStop            = "stop"
	OpWait            = "wait"
	OpSetPose         = "set_pose"
	OpSetCorrectAngle = "set_correct_angle"
	OpResetEncoders   = "reset_encoders"
)

// DefaultTimeLimit bounds a motion step that does not set time_limit.
const DefaultTimeLimit = 3 * time.Second

var motionOps = map[string]bool{
	OpDriveTo:     true,
	OpTurnToAngle: true,
	OpCurveCircle: true,
	OpSwing:       true,
	OpTurnToPoint: true,
	OpMoveToPoint: true,
	OpBoomerang:   true,
}

var otherOps = map[string]bool{
	OpDriveVoltage:    true,
	OpStop:            true,
	OpWait:            true,
	OpSetPose:         true,
	OpSetCorrectAngle: true,
	OpResetEncoders:   true,
}

// Routine is a named sequence of steps run from a known starting pose.
type Routine struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Start       Start  `yaml:"start"`
	Steps       []Step `yaml:"steps"`
}

// Start is the field pose the robot is placed at before the first step.
type Start struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Heading float64 `yaml:"heading"`
}

// Step is one operation. Only the fields used by Op are read.
type Step struct {
	Op string `yaml:"op"`

	Distance   float64 `yaml:"distance"`    // drive_to
	Angle      float64 `yaml:"angle"`       // turn_to_angle, curve_circle, swing, set_correct_angle
	Radius     float64 `yaml:"radius"`      // curve_circle
	X          float64 `yaml:"x"`           // point targets, set_pose
	Y          float64 `yaml:"y"`           // point targets, set_pose
	Heading    float64 `yaml:"heading"`     // set_pose
	Dir        int     `yaml:"dir"`         // 1 forward, -1 backward
	FinalAngle float64 `yaml:"final_angle"` // boomerang
	Lead       float64 `yaml:"lead"`        // boomerang

	TimeLimit time.Duration `yaml:"time_limit"`
	Exit      *bool         `yaml:"exit"`
	MaxOutput float64       `yaml:"max_output"`
	Overturn  bool          `yaml:"overturn"`

	Left     float64       `yaml:"left"`     // drive_voltage
	Right    float64       `yaml:"right"`    // drive_voltage
	Duration time.Duration `yaml:"duration"` // drive_voltage, wait
	Mode     string        `yaml:"mode"`     // stop: coast, brake or hold
}

// ExitAtEnd reports whether the step stops the drivetrain when it finishes.
func (s Step) ExitAtEnd() bool {
	return s.Exit == nil || *s.Exit
}

// Load reads and validates a routine file.
func Load(path string) (*Routine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routine file %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("routine %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a routine, fills step defaults and validates it.
func Parse(data []byte) (*Routine, error) {
	var r Routine
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse routine: %w", err)
	}
	r.setDefaults()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Routine) setDefaults() {
	for i := range r.Steps {
		s := &r.Steps[i]
		if s.Dir == 0 {
			s.Dir = 1
		}
		if motionOps[s.Op] && s.TimeLimit == 0 {
			s.TimeLimit = DefaultTimeLimit
		}
		if s.Op == OpStop && s.Mode == "" {
			s.Mode = "brake"
		}
	}
}

// Validate checks every step and reports all problems at once.
func (r *Routine) Validate() error {
	var err error
	if r.Name == "" {
		err = multierr.Append(err, fmt.Errorf("name is required"))
	}
	if len(r.Steps) == 0 {
		err = multierr.Append(err, fmt.Errorf("routine has no steps"))
	}
	if startErr := checkFinite(map[string]float64{
		"x": r.Start.X, "y": r.Start.Y, "heading": r.Start.Heading,
	}); startErr != nil {
		err = multierr.Append(err, fmt.Errorf("start: %w", startErr))
	}
	for i, s := range r.Steps {
		if stepErr := s.validate(); stepErr != nil {
			err = multierr.Append(err, fmt.Errorf("step %d (%s): %w", i+1, s.Op, stepErr))
		}
	}
	return err
}

func (s Step) validate() error {
	if !motionOps[s.Op] && !otherOps[s.Op] {
		return fmt.Errorf("unknown op %q", s.Op)
	}
	if err := checkFinite(map[string]float64{
		"distance": s.Distance, "angle": s.Angle, "radius": s.Radius,
		"x": s.X, "y": s.Y, "heading": s.Heading,
		"final_angle": s.FinalAngle, "lead": s.Lead, "max_output": s.MaxOutput,
		"left": s.Left, "right": s.Right,
	}); err != nil {
		return err
	}
	if motionOps[s.Op] {
		if s.TimeLimit <= 0 {
			return fmt.Errorf("time_limit must be positive, got %v", s.TimeLimit)
		}
		if s.MaxOutput < 0 || s.MaxOutput > 12 {
			return fmt.Errorf("max_output must be between 0-12 V, got %.2f", s.MaxOutput)
		}
	}
	if s.Dir != 1 && s.Dir != -1 {
		return fmt.Errorf("dir must be 1 or -1, got %d", s.Dir)
	}

	switch s.Op {
	case OpTurnToPoint:
		if !s.ExitAtEnd() {
			return fmt.Errorf("exit: false is not supported, turn_to_point always ends holding its heading")
		}
	case OpCurveCircle:
		if s.Radius == 0 {
			return fmt.Errorf("radius must be non-zero")
		}
	case OpBoomerang:
		if s.Lead < 0 || s.Lead > 1 {
			return fmt.Errorf("lead must be between 0-1, got %.2f", s.Lead)
		}
	case OpDriveVoltage:
		if s.Left < -12 || s.Left > 12 || s.Right < -12 || s.Right > 12 {
			return fmt.Errorf("voltages must be between -12 and 12 V, got %.2f/%.2f", s.Left, s.Right)
		}
		if s.Duration <= 0 {
			return fmt.Errorf("duration must be positive, got %v", s.Duration)
		}
	case OpWait:
		if s.Duration <= 0 {
			return fmt.Errorf("duration must be positive, got %v", s.Duration)
		}
	case OpStop:
		if _, err := parseBrakeMode(s.Mode); err != nil {
			return err
		}
	}
	return nil
}

// checkFinite rejects NaN and infinite values, naming the first offending field in
// sorted order so the message is stable.
func checkFinite(fields map[string]float64) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := fields[name]; math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite, got %v", name, v)
		}
	}
	return nil
}
