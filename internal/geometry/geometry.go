// Package geometry holds the angle and field-coordinate helpers shared by the motion
// primitives. Headings are in degrees, 0 facing +y, increasing clockwise.
package geometry

import (
	"math"

	"github.com/golang/geo/r2"
)

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// NormalizeTarget shifts angle by whole turns so it lies within [heading-180, heading+180),
// so a turn never unwinds the long way round. A non-finite angle or heading yields NaN.
func NormalizeTarget(angle, heading float64) float64 {
	// Reducing angle first keeps whole turns of a huge angle from swamping heading.
	r := math.Remainder(math.Remainder(angle, 360)-heading, 360)
	if r >= 180 {
		r -= 360
	}
	return heading + r
}

// Bearing returns the field heading, in degrees, that faces to from from.
func Bearing(from, to r2.Point) float64 {
	d := to.Sub(from)
	return RadToDeg(math.Atan2(d.X, d.Y))
}

// Distance returns the straight-line distance between two points.
func Distance(a, b r2.Point) float64 {
	return b.Sub(a).Norm()
}

// TurningRadius returns the signed radius of the arc leaving from at heading headingDeg
// and passing through to. ok is false when the radius is undefined: the two points share
// a y coordinate or the heading is perpendicular to the y axis.
func TurningRadius(from, to r2.Point, headingDeg float64) (radius float64, ok bool) {
	d := to.Sub(from)
	denominator := 2 * d.Y * math.Sin(DegToRad(90-headingDeg))
	if denominator == 0 {
		return 0, false
	}
	return (d.X*d.X + d.Y*d.Y) / denominator, true
}
