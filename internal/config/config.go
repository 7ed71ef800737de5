// Package config loads the chassis controller configuration.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"chassis-controller/internal/motion"
	"chassis-controller/internal/odometry"
	"chassis-controller/internal/pid"
	"chassis-controller/internal/shaping"
	"chassis-controller/internal/sim"
)

// Config represents the complete configuration structure
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Control     ControlConfig     `yaml:"control"`
	Drive       DriveConfig       `yaml:"drive"`
	Trackers    TrackersConfig    `yaml:"trackers"`
	Tuning      TuningConfig      `yaml:"tuning"`
	Chaining    ChainingConfig    `yaml:"chaining"`
	HeadingHold HeadingHoldConfig `yaml:"heading_hold"`
	Boomerang   BoomerangConfig   `yaml:"boomerang"`
	Sim         SimConfig         `yaml:"sim"`
}

// ServerConfig contains server-related settings
type ServerConfig struct {
	MetricsPort int    `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`
}

// ControlConfig contains the control loop settings shared by all primitives
type ControlConfig struct {
	Tick      time.Duration `yaml:"tick"`       // Control period
	MaxOutput float64       `yaml:"max_output"` // Default voltage cap
	MinOutput float64       `yaml:"min_output"` // Smallest chained output (V)
}

// DriveConfig describes the drivetrain geometry
type DriveConfig struct {
	TrackWidth    float64 `yaml:"track_width"`    // Inches between the middles of the two sides
	WheelDistance float64 `yaml:"wheel_distance"` // Gear ratio * wheel diameter * pi, in inches
}

// TrackerConfig describes one tracking wheel
type TrackerConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Diameter float64 `yaml:"diameter"` // Inches
	Offset   float64 `yaml:"offset"`   // Inches from the centre of rotation
}

// TrackersConfig contains the optional tracking wheels. The horizontal offset is
// positive behind the centre, the vertical offset positive right of the centre.
type TrackersConfig struct {
	Horizontal TrackerConfig `yaml:"horizontal"`
	Vertical   TrackerConfig `yaml:"vertical"`
}

// TuningConfig contains the three PID gain sets
type TuningConfig struct {
	Distance pid.Gains `yaml:"distance"`
	Turn     pid.Gains `yaml:"turn"`
	Heading  pid.Gains `yaml:"heading"`
}

// ChainingConfig contains the slew table and the chaining behaviour
type ChainingConfig struct {
	SlewAccelForward float64 `yaml:"slew_accel_forward"` // V per tick
	SlewDecelForward float64 `yaml:"slew_decel_forward"`
	SlewAccelReverse float64 `yaml:"slew_accel_reverse"`
	SlewDecelReverse float64 `yaml:"slew_decel_reverse"`
	DirChangeStart   bool    `yaml:"dir_change_start"`
	DirChangeEnd     bool    `yaml:"dir_change_end"`
}

// HeadingHoldConfig enables the background heading correction
type HeadingHoldConfig struct {
	Enabled bool `yaml:"enabled"`
}

// BoomerangConfig contains curved approach settings
type BoomerangConfig struct {
	ChasePower float64 `yaml:"chase_power"` // Lower to reduce drift on tight curves
}

// SimConfig contains the simulated robot used by the CLI
type SimConfig struct {
	VoltGain        float64       `yaml:"volt_gain"` // Wheel speed in in/s per volt
	MotorLag        time.Duration `yaml:"motor_lag"`
	CalibrationTime time.Duration `yaml:"calibration_time"`
}

// LoadConfig loads and parses the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := newConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Set defaults for any missing values
	setDefaults(config)

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	config := newConfig()
	setDefaults(config)
	return config
}

// newConfig seeds the fields whose zero value is meaningful, so that only keys
// missing from the file keep these values.
func newConfig() *Config {
	return &Config{
		Trackers: TrackersConfig{
			Horizontal: TrackerConfig{Offset: 2.71875},
			Vertical:   TrackerConfig{Offset: -0.03125},
		},
		Control:     ControlConfig{MinOutput: 10},
		Chaining:    ChainingConfig{DirChangeStart: true, DirChangeEnd: true},
		HeadingHold: HeadingHoldConfig{Enabled: true},
		Sim:         SimConfig{CalibrationTime: 2 * time.Second},
	}
}

// setDefaults sets default values for any missing configuration fields
func setDefaults(config *Config) {
	if config.Server.MetricsPort == 0 {
		config.Server.MetricsPort = 9090
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Control.Tick == 0 {
		config.Control.Tick = 10 * time.Millisecond
	}
	if config.Control.MaxOutput == 0 {
		config.Control.MaxOutput = 12
	}
	if config.Drive.TrackWidth == 0 {
		config.Drive.TrackWidth = 12.5
	}
	if config.Drive.WheelDistance == 0 {
		config.Drive.WheelDistance = 48.0 / 84.0 * 4 * math.Pi
	}
	if config.Trackers.Horizontal.Diameter == 0 {
		config.Trackers.Horizontal.Diameter = 1.975
	}
	if config.Trackers.Vertical.Diameter == 0 {
		config.Trackers.Vertical.Diameter = 1.975
	}
	// A gain set is defaulted only as a whole; a zero Ki or Kd is a valid choice.
	if config.Tuning.Distance == (pid.Gains{}) {
		config.Tuning.Distance = pid.Gains{Kp: 0.8, Kd: 9}
	}
	if config.Tuning.Turn == (pid.Gains{}) {
		config.Tuning.Turn = pid.Gains{Kp: 0.5, Kd: 3.5}
	}
	if config.Tuning.Heading == (pid.Gains{}) {
		config.Tuning.Heading = pid.Gains{Kp: 0.6, Kd: 4}
	}
	if config.Chaining.SlewAccelForward == 0 {
		config.Chaining.SlewAccelForward = shaping.Unlimited
	}
	if config.Chaining.SlewDecelForward == 0 {
		config.Chaining.SlewDecelForward = shaping.Unlimited
	}
	if config.Chaining.SlewAccelReverse == 0 {
		config.Chaining.SlewAccelReverse = shaping.Unlimited
	}
	if config.Chaining.SlewDecelReverse == 0 {
		config.Chaining.SlewDecelReverse = shaping.Unlimited
	}
	if config.Boomerang.ChasePower == 0 {
		config.Boomerang.ChasePower = 2
	}
	if config.Sim.VoltGain == 0 {
		config.Sim.VoltGain = 2
	}
}

// Validate checks all configuration values for logical consistency
func (c *Config) Validate() error {
	// Control validation
	if c.Control.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", c.Control.Tick)
	}
	if c.Control.MaxOutput <= 0 || c.Control.MaxOutput > 12 {
		return fmt.Errorf("max_output must be between 0-12 V, got %.2f", c.Control.MaxOutput)
	}
	if c.Control.MinOutput < 0 || c.Control.MinOutput > c.Control.MaxOutput {
		return fmt.Errorf("min_output (%.2f) must be between 0 and max_output (%.2f)",
			c.Control.MinOutput, c.Control.MaxOutput)
	}

	// Geometry validation
	if c.Drive.TrackWidth <= 0 {
		return fmt.Errorf("track_width must be positive, got %.3f", c.Drive.TrackWidth)
	}
	if c.Drive.WheelDistance <= 0 {
		return fmt.Errorf("wheel_distance must be positive, got %.3f", c.Drive.WheelDistance)
	}
	if c.Trackers.Horizontal.Enabled && c.Trackers.Horizontal.Diameter <= 0 {
		return fmt.Errorf("horizontal tracker diameter must be positive, got %.3f", c.Trackers.Horizontal.Diameter)
	}
	if c.Trackers.Vertical.Enabled && c.Trackers.Vertical.Diameter <= 0 {
		return fmt.Errorf("vertical tracker diameter must be positive, got %.3f", c.Trackers.Vertical.Diameter)
	}

	// PID validation
	for role, g := range map[string]pid.Gains{
		"distance": c.Tuning.Distance,
		"turn":     c.Tuning.Turn,
		"heading":  c.Tuning.Heading,
	} {
		if g.Kp < 0 || g.Ki < 0 || g.Kd < 0 {
			return fmt.Errorf("%s gains must be non-negative, got kp=%.3f ki=%.3f kd=%.3f", role, g.Kp, g.Ki, g.Kd)
		}
	}

	// Chaining validation
	for name, v := range map[string]float64{
		"slew_accel_forward": c.Chaining.SlewAccelForward,
		"slew_decel_forward": c.Chaining.SlewDecelForward,
		"slew_accel_reverse": c.Chaining.SlewAccelReverse,
		"slew_decel_reverse": c.Chaining.SlewDecelReverse,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %.2f", name, v)
		}
	}
	if c.Boomerang.ChasePower <= 0 {
		return fmt.Errorf("chase_power must be positive, got %.2f", c.Boomerang.ChasePower)
	}

	// Sim validation
	if c.Sim.VoltGain <= 0 {
		return fmt.Errorf("volt_gain must be positive, got %.3f", c.Sim.VoltGain)
	}
	if c.Sim.MotorLag < 0 {
		return fmt.Errorf("motor_lag must be non-negative, got %v", c.Sim.MotorLag)
	}
	if c.Sim.CalibrationTime < 0 {
		return fmt.Errorf("calibration_time must be non-negative, got %v", c.Sim.CalibrationTime)
	}

	// Server validation
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be between 1-65535, got %d", c.Server.MetricsPort)
	}
	if c.Server.LogLevel != "debug" && c.Server.LogLevel != "info" &&
		c.Server.LogLevel != "warn" && c.Server.LogLevel != "error" {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error, got %s", c.Server.LogLevel)
	}

	return nil
}

// Motion returns the chassis configuration.
func (c *Config) Motion() motion.Config {
	return motion.Config{
		TrackWidth:    c.Drive.TrackWidth,
		WheelDistance: c.Drive.WheelDistance,
		Tuning: motion.Tuning{
			Distance: c.Tuning.Distance,
			Turn:     c.Tuning.Turn,
			Heading:  c.Tuning.Heading,
		},
		Slew: shaping.Table{
			AccelForward: c.Chaining.SlewAccelForward,
			DecelForward: c.Chaining.SlewDecelForward,
			AccelReverse: c.Chaining.SlewAccelReverse,
			DecelReverse: c.Chaining.SlewDecelReverse,
		},
		Chaining: shaping.Chaining{
			DirChangeStart: c.Chaining.DirChangeStart,
			DirChangeEnd:   c.Chaining.DirChangeEnd,
		},
		MinOutput:  c.Control.MinOutput,
		MaxOutput:  c.Control.MaxOutput,
		ChasePower: c.Boomerang.ChasePower,
		Tick:       c.Control.Tick,
	}
}

// Capabilities returns the odometry sensor layout.
func (c *Config) Capabilities() odometry.Capabilities {
	caps := odometry.Capabilities{
		TrackWidth:    c.Drive.TrackWidth,
		WheelDistance: c.Drive.WheelDistance,
	}
	if t := c.Trackers.Horizontal; t.Enabled {
		caps.Horizontal = &odometry.Tracker{Diameter: t.Diameter, Offset: t.Offset}
	}
	if t := c.Trackers.Vertical; t.Enabled {
		caps.Vertical = &odometry.Tracker{Diameter: t.Diameter, Offset: t.Offset}
	}
	return caps
}

// SimRobot returns the simulated robot matching this drivetrain.
func (c *Config) SimRobot() sim.Config {
	caps := c.Capabilities()
	return sim.Config{
		TrackWidth:      c.Drive.TrackWidth,
		WheelDistance:   c.Drive.WheelDistance,
		VoltGain:        c.Sim.VoltGain,
		MotorLag:        c.Sim.MotorLag,
		MaxVoltage:      12,
		Tick:            c.Control.Tick,
		CalibrationTime: c.Sim.CalibrationTime,
		Horizontal:      caps.Horizontal,
		Vertical:        caps.Vertical,
	}
}

// PlantGains returns the per-tick response of the simulated robot to one volt for the
// distance and heading loops, in inches and degrees.
func (c *Config) PlantGains() (distance, heading float64) {
	perTick := c.Sim.VoltGain * c.Control.Tick.Seconds()
	return perTick, 2 * perTick / c.Drive.TrackWidth * 180 / math.Pi
}
