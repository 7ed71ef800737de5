// Package arbiter makes drivetrain ownership explicit: only the holder of the current
// handle may command the motors. Motion primitives take ownership by preemption;
// background correction only runs while the drivetrain is free.
package arbiter

import (
	"sync"

	"chassis-controller/internal/hal"
)

// Arbiter hands out exclusive drivetrain handles.
type Arbiter struct {
	mu      sync.Mutex
	drive   hal.Drivetrain
	current *Handle
	serial  uint64
}

// New wraps a drivetrain.
func New(drive hal.Drivetrain) *Arbiter {
	return &Arbiter{drive: drive}
}

// Handle is a drivetrain ownership token.
type Handle struct {
	arb   *Arbiter
	owner string
	id    uint64
}

// Acquire takes the drivetrain for owner, revoking any existing handle.
func (a *Arbiter) Acquire(owner string) *Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.grant(owner)
}

// TryAcquire takes the drivetrain only if nobody holds it.
func (a *Arbiter) TryAcquire(owner string) (*Handle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		return nil, false
	}
	return a.grant(owner), true
}

func (a *Arbiter) grant(owner string) *Handle {
	a.serial++
	h := &Handle{arb: a, owner: owner, id: a.serial}
	a.current = h
	return h
}

// Busy reports whether any handle is held.
func (a *Arbiter) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil
}

// Owner returns the name of the current holder, or "" when free.
func (a *Arbiter) Owner() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return ""
	}
	return a.current.owner
}

// PositionDegrees reads a side's encoder. Reads need no ownership.
func (a *Arbiter) PositionDegrees(side hal.Side) float64 {
	return a.drive.PositionDegrees(side)
}

// Release gives the drivetrain back. Releasing a revoked handle is a no-op.
func (h *Handle) Release() {
	a := h.arb
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == h {
		a.current = nil
	}
}

// Valid reports whether h still owns the drivetrain.
func (h *Handle) Valid() bool {
	a := h.arb
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current == h
}

// Owner returns the name the handle was granted to.
func (h *Handle) Owner() string {
	return h.owner
}

// Drive commands both sides. It returns false, without commanding, when h was revoked.
func (h *Handle) Drive(left, right float64) bool {
	return h.do(func(d hal.Drivetrain) {
		d.SetVoltage(hal.Left, left)
		d.SetVoltage(hal.Right, right)
	})
}

// SetVoltage commands one side.
func (h *Handle) SetVoltage(side hal.Side, volts float64) bool {
	return h.do(func(d hal.Drivetrain) { d.SetVoltage(side, volts) })
}

// Stop stops both sides with mode.
func (h *Handle) Stop(mode hal.BrakeMode) bool {
	return h.do(func(d hal.Drivetrain) {
		d.Stop(hal.Left, mode)
		d.Stop(hal.Right, mode)
	})
}

// StopSide stops one side with mode.
func (h *Handle) StopSide(side hal.Side, mode hal.BrakeMode) bool {
	return h.do(func(d hal.Drivetrain) { d.Stop(side, mode) })
}

// ResetPositions zeroes both encoders.
func (h *Handle) ResetPositions() bool {
	return h.do(func(d hal.Drivetrain) {
		d.ResetPosition(hal.Left)
		d.ResetPosition(hal.Right)
	})
}

// do runs fn under the arbiter lock so a preempting Acquire cannot interleave with a
// half-issued command pair.
func (h *Handle) do(fn func(hal.Drivetrain)) bool {
	a := h.arb
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != h {
		return false
	}
	fn(a.drive)
	return true
}
