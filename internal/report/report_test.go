package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chassis-controller/internal/motion"
	"chassis-controller/internal/pose"
	"chassis-controller/internal/routine"
)

func testSamples(n int) []motion.Sample {
	samples := make([]motion.Sample, n)
	for i := range samples {
		samples[i] = motion.Sample{
			Primitive: "turn_to_angle",
			Time:      time.Duration(i) * 10 * time.Millisecond,
			Heading:   float64(i),
			Target:    90,
			Left:      12 - float64(i)/10,
			Right:     -12 + float64(i)/10,
			X:         0,
			Y:         float64(i) / 2,
		}
	}
	return samples
}

// TestSummary tests that every step and the final pose are rendered
func TestSummary(t *testing.T) {
	// Arrange
	results := []routine.StepResult{
		{Index: 1, Op: routine.OpDriveTo, Outcome: motion.Settled, Elapsed: 1590 * time.Millisecond},
		{Index: 2, Op: routine.OpTurnToAngle, Outcome: motion.Timeout, Elapsed: 2 * time.Second},
		{Index: 3, Op: routine.OpWait, Outcome: routine.Done, Elapsed: 250 * time.Millisecond},
	}

	// Act
	out := Summary("tuning", results, pose.Pose{X: 1.5, Y: 59.65, CorrectAngle: 90}, 89.55)

	// Assert
	assert.Contains(t, out, "routine tuning")
	assert.Contains(t, out, "drive_to")
	assert.Contains(t, out, "settled")
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "1.59s")
	assert.Contains(t, out, "3.84s")
	assert.Contains(t, out, "59.65 in")
	assert.Contains(t, out, "89.55°")
}

// TestTraces tests the plotted graphs and the empty case
func TestTraces(t *testing.T) {
	// Act
	out := Traces(testSamples(50), 40)

	// Assert
	assert.Contains(t, out, "heading (blue) and target (red)")
	assert.Contains(t, out, "50 ticks")
	assert.Contains(t, out, "left (green) and right (yellow)")
	assert.Empty(t, Traces(testSamples(1), 40))
	assert.Empty(t, Path(nil, 40))
}

// TestPath tests the position plot
func TestPath(t *testing.T) {
	out := Path(testSamples(20), 0)

	assert.Contains(t, out, "x (blue) and y (green) position")
}

// TestWriteCSV tests the exported columns and rows
func TestWriteCSV(t *testing.T) {
	// Arrange
	var buf bytes.Buffer

	// Act
	err := WriteCSV(&buf, testSamples(3))

	// Assert
	require.NoError(t, err)
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"time", "primitive", "heading", "target", "left", "right", "x", "y"}, records[0])
	assert.Equal(t, []string{"0.020", "turn_to_angle", "2.000000", "90.000000", "11.800000", "-11.800000", "0.000000", "1.000000"}, records[3])
}
