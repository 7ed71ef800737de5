// Package odometry integrates incremental heading and wheel readings into the shared
// field position. One estimator covers every tracking-wheel arrangement: the installed
// sensors are described once by Capabilities and the arc-chord step is shared.
package odometry

import (
	"math"
	"sync"

	"chassis-controller/internal/geometry"
	"chassis-controller/internal/hal"
	"chassis-controller/internal/metrics"
	"chassis-controller/internal/pose"
)

// StraightEpsilon is the per-tick heading change, in radians, below which motion is
// treated as a straight chord.
const StraightEpsilon = 1e-6

// Tracker describes a free-spinning tracking wheel.
type Tracker struct {
	// Diameter of the wheel in inches.
	Diameter float64
	// Offset from the rotation centre in inches. A vertical tracker is positive to the
	// right of centre, a horizontal tracker positive behind it.
	Offset float64
}

// Capabilities is the set of sensors the estimator may use.
type Capabilities struct {
	Horizontal *Tracker
	Vertical   *Tracker
	// TrackWidth is the distance between drive sides, used when no vertical tracker exists.
	TrackWidth float64
	// WheelDistance is the drive travel in inches per motor revolution.
	WheelDistance float64
}

// Variant names the sensor arrangement: none, horizontal, vertical or both.
func (c Capabilities) Variant() string {
	switch {
	case c.Horizontal != nil && c.Vertical != nil:
		return "both"
	case c.Horizontal != nil:
		return "horizontal"
	case c.Vertical != nil:
		return "vertical"
	default:
		return "none"
	}
}

// DriveReader reads accumulated drive-side rotation.
type DriveReader interface {
	PositionDegrees(side hal.Side) float64
}

// Sources are the devices backing Capabilities. Tracker encoders are only read when the
// matching tracker is present.
type Sources struct {
	Heading    hal.HeadingSensor
	Drive      DriveReader
	Horizontal hal.Encoder
	Vertical   hal.Encoder
}

type readings struct {
	theta      float64
	left       float64
	right      float64
	horizontal float64
	vertical   float64
}

// Estimator is the odometry task.
type Estimator struct {
	caps    Capabilities
	src     Sources
	store   *pose.Store
	metrics *metrics.Metrics

	mu   sync.Mutex
	prev readings
}

// New creates an estimator writing into store and seeds its previous readings.
func New(caps Capabilities, src Sources, store *pose.Store, m *metrics.Metrics) *Estimator {
	e := &Estimator{caps: caps, src: src, store: store, metrics: m}
	e.Reset()
	return e
}

// Name identifies the task.
func (e *Estimator) Name() string {
	return "odometry_" + e.caps.Variant()
}

// Capabilities returns the sensor arrangement in use.
func (e *Estimator) Capabilities() Capabilities {
	return e.caps
}

// Reset re-reads every sensor as the new baseline without moving the pose. Call it after
// drive encoders are zeroed.
func (e *Estimator) Reset() {
	e.mu.Lock()
	e.prev = e.read()
	e.mu.Unlock()
}

// Rebase runs zero, which resets sensors, and takes the new baseline without letting a
// concurrent Step read between the two.
func (e *Estimator) Rebase(zero func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	zero()
	e.prev = e.read()
}

// Step integrates one tick of motion into the pose store.
func (e *Estimator) Step() {
	e.mu.Lock()
	cur := e.read()
	prev := e.prev
	e.prev = cur
	e.mu.Unlock()

	dTheta := cur.theta - prev.theta
	var localX, localY float64

	if e.caps.Vertical != nil {
		localY = chord(cur.vertical-prev.vertical, dTheta, e.caps.Vertical.Offset)
	} else {
		half := e.caps.TrackWidth / 2
		localY = (chord(cur.left-prev.left, dTheta, -half) + chord(cur.right-prev.right, dTheta, half)) / 2
	}
	if e.caps.Horizontal != nil {
		localX = chord(cur.horizontal-prev.horizontal, dTheta, e.caps.Horizontal.Offset)
	}

	dx, dy := rotate(localX, localY, prev.theta+dTheta/2)
	e.store.Translate(dx, dy)
	e.metrics.IncOdometryTicks(e.caps.Variant())
}

func (e *Estimator) read() readings {
	r := readings{theta: geometry.DegToRad(e.src.Heading.HeadingDegrees())}
	if e.caps.Vertical != nil {
		r.vertical = e.src.Vertical.PositionDegrees() / 360 * math.Pi * e.caps.Vertical.Diameter
	} else {
		r.left = e.src.Drive.PositionDegrees(hal.Left) / 360 * e.caps.WheelDistance
		r.right = e.src.Drive.PositionDegrees(hal.Right) / 360 * e.caps.WheelDistance
	}
	if e.caps.Horizontal != nil {
		r.horizontal = e.src.Horizontal.PositionDegrees() / 360 * math.Pi * e.caps.Horizontal.Diameter
	}
	return r
}

// chord returns the straight-line displacement of the robot centre along one axis, given
// the travel of a wheel mounted offset from the centre on that axis. Below StraightEpsilon
// the wheel travel is used as is.
func chord(travel, dTheta, offset float64) float64 {
	if math.Abs(dTheta) < StraightEpsilon {
		return travel
	}
	return arcChord(travel, dTheta, offset)
}

// arcChord is the chord of a constant-curvature arc. dTheta must be non-zero.
func arcChord(travel, dTheta, offset float64) float64 {
	return 2 * math.Sin(dTheta/2) * (travel/dTheta + offset)
}

// rotate turns a robot-frame displacement (x right, y forward) into field axes, given the
// heading in radians measured clockwise from +y.
func rotate(localX, localY, heading float64) (dx, dy float64) {
	radius := math.Hypot(localX, localY)
	if radius == 0 {
		return 0, 0
	}
	angle := math.Atan2(localY, localX) - heading
	return radius * math.Cos(angle), radius * math.Sin(angle)
}
