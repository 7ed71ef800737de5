package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestValidate_Defaults tests that the built-in configuration passes cleanly
func TestValidate_Defaults(t *testing.T) {
	// Act
	out, err := execute(t, "validate", "--log-level", "error")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "config ok")
	assert.NotContains(t, out, "warning")
}

// TestValidate_WarnsOnUnstableGains tests the stability check against the simulated plant
func TestValidate_WarnsOnUnstableGains(t *testing.T) {
	// Arrange
	cfgPath := writeFile(t, "config.yaml", `
tuning:
  turn: {kp: 0.5, ki: 0, kd: 20}
`)

	// Act
	out, err := execute(t, "validate", "--config", cfgPath)

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "warning: turn: kp=0.500 kd=20.000 oscillate")
	assert.NotContains(t, out, "warning: distance")
}

// TestValidate_Routine tests routine checking alongside the config
func TestValidate_Routine(t *testing.T) {
	// Arrange
	good := writeFile(t, "good.yaml", "name: good\nsteps:\n  - {op: drive_to, distance: 24}\n")
	bad := writeFile(t, "bad.yaml", "name: bad\nsteps:\n  - {op: fly}\n")

	// Act
	out, err := execute(t, "validate", "--routine", good)
	_, badErr := execute(t, "validate", "--routine", bad)

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "routine good ok (1 steps)")
	require.Error(t, badErr)
	assert.Contains(t, badErr.Error(), "unknown op")
}

// TestValidate_InvalidConfig tests that a config error fails the command
func TestValidate_InvalidConfig(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", "control:\n  max_output: 20\n")

	_, err := execute(t, "validate", "--config", cfgPath)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

// TestValidate_InvalidLogLevel tests the log level override check
func TestValidate_InvalidLogLevel(t *testing.T) {
	_, err := execute(t, "validate", "--log-level", "verbose")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --log-level")
}

// TestRun_RoutineOnSimulator tests a full run with plots and a csv trace
func TestRun_RoutineOnSimulator(t *testing.T) {
	// Arrange
	routinePath := writeFile(t, "routine.yaml", `
name: short
steps:
  - {op: drive_to, distance: 12, time_limit: 2s}
  - {op: wait, duration: 100ms}
  - {op: turn_to_angle, angle: 45, time_limit: 2s}
`)
	csvOut := filepath.Join(t.TempDir(), "trace.csv")

	// Act
	out, err := execute(t, "run", "--log-level", "error", "--routine", routinePath,
		"--plot", "--path", "--csv", csvOut, "--width", "40")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "routine short")
	assert.Contains(t, out, "drive_to")
	assert.Contains(t, out, "turn_to_angle")
	assert.Contains(t, out, "heading (blue) and target (red)")
	assert.Contains(t, out, "x (blue) and y (green) position")
	assert.Contains(t, out, "trace written to "+csvOut)

	f, err := os.Open(csvOut)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Greater(t, len(records), 10)
	assert.Equal(t, "drive_to", records[1][1])
}

// TestRun_RequiresRoutine tests the required flag
func TestRun_RequiresRoutine(t *testing.T) {
	_, err := execute(t, "run")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "routine")
}
