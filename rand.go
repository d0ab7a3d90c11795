package gossipsim

import (
	"github.com/iti/rngstream"
	"golang.org/x/exp/rand"
)

// RandSource is the random number source every engine draws from.  The
// method set is the one rngstream.RngStream exposes, so a named stream can be
// handed in directly.
type RandSource interface {
	// RandU01 returns a sample uniformly distributed on (0,1)
	RandU01() float64

	// RandInt returns a sample uniformly distributed on [lo, hi], both inclusive
	RandInt(lo, hi int) int
}

var _ RandSource = (*rngstream.RngStream)(nil)

// NewStreamSource returns a named rngstream.  Streams are created from the
// package seed in creation order, so a program that builds its simulators
// in the same order sees the same draws.
func NewStreamSource(name string) RandSource {
	return rngstream.New(name)
}

// seededSource adapts a seeded x/exp/rand generator to RandSource
type seededSource struct {
	rng *rand.Rand
}

// NewSeededSource returns a source whose draws depend only on seed
func NewSeededSource(seed uint64) RandSource {
	return &seededSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *seededSource) RandU01() float64 {
	// Float64 is on [0,1); keep away from 0 so quantile functions stay finite
	for {
		u := s.rng.Float64()
		if u > 0.0 {
			return u
		}
	}
}

func (s *seededSource) RandInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

// sourceFor picks the source a simulator built from a Config should use
func sourceFor(seed uint64, name string) RandSource {
	if seed != 0 {
		return NewSeededSource(seed)
	}
	return NewStreamSource(name)
}
