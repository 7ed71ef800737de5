package odometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestArcChord_StraightLimit tests that the arc formula collapses to the wheel travel
func TestArcChord_StraightLimit(t *testing.T) {
	for _, travel := range []float64{-12, -0.3, 0, 0.24, 10} {
		for _, offset := range []float64{-6.25, -0.03125, 0, 2.71875, 6.25} {
			got := arcChord(travel, 1e-9, offset)
			assert.InDelta(t, travel, got, 1e-6, "travel=%v offset=%v", travel, offset)
		}
	}
}

// TestChord_QuarterArc tests a wheel on a known arc
func TestChord_QuarterArc(t *testing.T) {
	// Arrange - centre on a 12 in radius quarter turn, wheel 6.25 in outside it
	dTheta := math.Pi / 2
	travel := (12 + 6.25) * dTheta

	// Act
	got := chord(travel, dTheta, -6.25)

	// Assert
	assert.InDelta(t, 12*math.Sqrt2, got, 1e-12)
}

func TestRotate(t *testing.T) {
	tests := []struct {
		name           string
		x, y, heading  float64
		wantDx, wantDy float64
	}{
		{"forward facing +y", 0, 1, 0, 0, 1},
		{"forward facing +x", 0, 1, math.Pi / 2, 1, 0},
		{"right facing +y", 1, 0, 0, 1, 0},
		{"forward facing -y", 0, 2, math.Pi, 0, -2},
		{"no motion", 0, 0, 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dx, dy := rotate(tt.x, tt.y, tt.heading)
			assert.InDelta(t, tt.wantDx, dx, 1e-12)
			assert.InDelta(t, tt.wantDy, dy, 1e-12)
		})
	}
}

func TestCapabilities_Variant(t *testing.T) {
	tr := &Tracker{Diameter: 2, Offset: 1}
	assert.Equal(t, "none", Capabilities{}.Variant())
	assert.Equal(t, "horizontal", Capabilities{Horizontal: tr}.Variant())
	assert.Equal(t, "vertical", Capabilities{Vertical: tr}.Variant())
	assert.Equal(t, "both", Capabilities{Horizontal: tr, Vertical: tr}.Variant())
}
