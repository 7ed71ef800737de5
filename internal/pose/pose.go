// Package pose holds the robot's shared field pose. The odometry task is the only
// regular writer of position; motion primitives record the heading they last achieved.
package pose

import (
	"sync"

	"github.com/golang/geo/r2"
)

// Pose is a consistent snapshot of the shared state.
type Pose struct {
	X, Y float64 // Field position in inches
	// CorrectAngle is the last commanded or confirmed heading in degrees.
	CorrectAngle float64
}

// Point returns the position as a field point.
func (p Pose) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// Store guards a Pose against torn reads between the odometry task and the motion
// primitives. Every update is a single locked commit.
type Store struct {
	mu   sync.RWMutex
	pose Pose
}

// NewStore returns a store at the origin facing 0 degrees.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current pose.
func (s *Store) Snapshot() Pose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose
}

// Position returns the current field position.
func (s *Store) Position() r2.Point {
	return s.Snapshot().Point()
}

// Translate commits one odometry displacement.
func (s *Store) Translate(dx, dy float64) {
	s.mu.Lock()
	s.pose.X += dx
	s.pose.Y += dy
	s.mu.Unlock()
}

// SetPosition overwrites the field position.
func (s *Store) SetPosition(x, y float64) {
	s.mu.Lock()
	s.pose.X, s.pose.Y = x, y
	s.mu.Unlock()
}

// SetCorrectAngle records the heading the robot should now hold.
func (s *Store) SetCorrectAngle(deg float64) {
	s.mu.Lock()
	s.pose.CorrectAngle = deg
	s.mu.Unlock()
}

// CorrectAngle returns the heading the robot should hold.
func (s *Store) CorrectAngle() float64 {
	return s.Snapshot().CorrectAngle
}
