package motion

import (
	"sync"
	"time"
)

// Sample is one control tick of a primitive.
type Sample struct {
	Primitive string
	Time      time.Duration // Since the primitive started
	Heading   float64
	Target    float64
	Left      float64
	Right     float64
	X         float64
	Y         float64
}

// Observer receives every commanded tick.
type Observer interface {
	OnTick(s Sample)
}

// Recorder is an Observer that keeps every sample in memory.
type Recorder struct {
	mu      sync.Mutex
	samples []Sample
}

// OnTick appends s to the recording.
func (r *Recorder) OnTick(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

// Samples returns a copy of the recorded samples in order.
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Reset discards every recorded sample.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = nil
}
