package pose

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore_TranslateAndSet(t *testing.T) {
	// Arrange
	s := NewStore()

	// Act
	s.SetPosition(1, 2)
	s.Translate(0.5, -1)
	s.SetCorrectAngle(90)

	// Assert
	p := s.Snapshot()
	assert.Equal(t, 1.5, p.X)
	assert.Equal(t, 1.0, p.Y)
	assert.Equal(t, 90.0, s.CorrectAngle())
	assert.Equal(t, 1.5, s.Position().X)
}

// TestStore_NoTornReads tests that concurrent commits are never observed half-applied
func TestStore_NoTornReads(t *testing.T) {
	// Arrange
	s := NewStore()
	var wg sync.WaitGroup
	const commits = 5000

	// Act - the writer always moves x and y together, so a reader must see x == y
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < commits; i++ {
			s.Translate(1, 1)
		}
	}()
	torn := 0
	go func() {
		defer wg.Done()
		for i := 0; i < commits; i++ {
			p := s.Snapshot()
			if p.X != p.Y {
				torn++
			}
		}
	}()
	wg.Wait()

	// Assert
	assert.Equal(t, 0, torn)
	assert.Equal(t, float64(commits), s.Snapshot().X)
}
