package geometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegRadRoundTrip(t *testing.T) {
	assert.InDelta(t, math.Pi/2, DegToRad(90), 1e-12)
	assert.InDelta(t, 180.0, RadToDeg(math.Pi), 1e-12)
	assert.InDelta(t, 37.5, RadToDeg(DegToRad(37.5)), 1e-12)
}

func TestNormalizeTarget_Window(t *testing.T) {
	headings := []float64{-725, -360, -181, -90, 0, 45, 179.5, 180, 540, 1000}
	angles := []float64{-900, -540, -180, -1, 0, 90, 180, 181, 359, 720, 1234.5}

	for _, h := range headings {
		for _, a := range angles {
			got := NormalizeTarget(a, h)
			assert.GreaterOrEqual(t, got, h-180, "angle %v heading %v", a, h)
			assert.Less(t, got, h+180, "angle %v heading %v", a, h)
			// Same direction on the field.
			assert.InDelta(t, 0, math.Mod(math.Mod(got-a, 360)+360, 360), 1e-9)
		}
	}
}

func TestNormalizeTarget_ShortWay(t *testing.T) {
	// Facing 350, a target of 10 is a 20 degree right turn, not 340 left.
	assert.Equal(t, 370.0, NormalizeTarget(10, 350))
	// Facing 10, a target of 350 is a 20 degree left turn.
	assert.Equal(t, -10.0, NormalizeTarget(350, 10))
	assert.Equal(t, 90.0, NormalizeTarget(90, 0))
}

func TestNormalizeTarget_HugeAngles(t *testing.T) {
	// Arrange
	headings := []float64{0, 90, -270, 1e6}

	for _, h := range headings {
		// Act
		got := NormalizeTarget(1e20, h)

		// Assert
		assert.GreaterOrEqual(t, got, h-180, "heading %v", h)
		assert.Less(t, got, h+180, "heading %v", h)
		// 1e20 is 280 past a whole number of turns.
		assert.InDelta(t, 0, math.Mod(math.Mod(got-280, 360)+360, 360), 1e-6, "heading %v", h)
	}
	assert.Equal(t, -80.0, NormalizeTarget(1e20, 0))
	assert.Equal(t, -80.0, NormalizeTarget(1e6, 0))
	assert.Equal(t, -180.0, NormalizeTarget(180, 0))
}

func TestNormalizeTarget_NonFinite(t *testing.T) {
	// Act / Assert
	assert.True(t, math.IsNaN(NormalizeTarget(math.Inf(1), 0)))
	assert.True(t, math.IsNaN(NormalizeTarget(math.Inf(-1), 45)))
	assert.True(t, math.IsNaN(NormalizeTarget(math.NaN(), 0)))
	assert.True(t, math.IsNaN(NormalizeTarget(90, math.Inf(1))))
}

func TestBearing(t *testing.T) {
	origin := r2.Point{}
	assert.InDelta(t, 0, Bearing(origin, r2.Point{X: 0, Y: 10}), 1e-9)
	assert.InDelta(t, 90, Bearing(origin, r2.Point{X: 10, Y: 0}), 1e-9)
	assert.InDelta(t, -90, Bearing(origin, r2.Point{X: -10, Y: 0}), 1e-9)
	assert.InDelta(t, 180, Bearing(origin, r2.Point{X: 0, Y: -10}), 1e-9)
	assert.InDelta(t, 45, Bearing(r2.Point{X: 1, Y: 1}, r2.Point{X: 2, Y: 2}), 1e-9)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5, Distance(r2.Point{X: 1, Y: 1}, r2.Point{X: 4, Y: 5}), 1e-12)
}

func TestTurningRadius(t *testing.T) {
	// Heading 0, target at (10, 10): circle through both points tangent to +y at the origin.
	r, ok := TurningRadius(r2.Point{}, r2.Point{X: 10, Y: 10}, 0)
	require.True(t, ok)
	assert.InDelta(t, 10, r, 1e-9)

	r, ok = TurningRadius(r2.Point{}, r2.Point{X: 3, Y: -4}, 0)
	require.True(t, ok)
	assert.InDelta(t, -25.0/8, r, 1e-9)
}

func TestTurningRadius_Undefined(t *testing.T) {
	_, ok := TurningRadius(r2.Point{X: 1, Y: 2}, r2.Point{X: 5, Y: 2}, 0)
	assert.False(t, ok)
}
