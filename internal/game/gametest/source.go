// Package gametest provides deterministic random sources for game tests.
package gametest

import "math/rand"

// Sequence replays a fixed list of draws, wrapping around when exhausted.
type Sequence struct {
	values []float64
	next   int
}

// NewSequence creates a source that yields values in order.
func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Draws reports how many values were consumed.
func (s *Sequence) Draws() int {
	return s.next
}

// Seeded returns a pseudo-random source for distribution tests.
func Seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
