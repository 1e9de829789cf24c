// Package rng provides the random source behind every outcome generator.
// Generators take a Source explicitly so results are reproducible in tests.
package rng

import "lukechampine.com/frand"

// Source produces the uniform draws the outcome generators consume.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64

	// Intn returns a uniform value in [0, n).
	Intn(n int) int

	// Perm returns a uniform random permutation of [0, n).
	Perm(n int) []int
}

// New returns the default Source, backed by frand.
func New() Source {
	return frandSource{}
}

type frandSource struct{}

func (frandSource) Float64() float64 { return frand.Float64() }
func (frandSource) Intn(n int) int   { return frand.Intn(n) }
func (frandSource) Perm(n int) []int { return frand.Perm(n) }

// Seeded returns a deterministic Source for tests. The same seed always
// yields the same draw sequence.
func Seeded(seed uint64) Source {
	var key [32]byte
	for i := 0; i < 8; i++ {
		key[i] = byte(seed >> (8 * i))
	}
	return seededSource{rng: frand.NewCustom(key[:], 1024, 12)}
}

type seededSource struct {
	rng *frand.RNG
}

func (s seededSource) Float64() float64 { return s.rng.Float64() }
func (s seededSource) Intn(n int) int   { return s.rng.Intn(n) }
func (s seededSource) Perm(n int) []int { return s.rng.Perm(n) }

// Fixed returns a Source that replays the given float draws in order and
// derives integer draws from them. It panics when the sequence runs out.
func Fixed(draws ...float64) Source {
	return &fixedSource{draws: draws}
}

type fixedSource struct {
	draws []float64
	pos   int
}

func (s *fixedSource) Float64() float64 {
	if s.pos >= len(s.draws) {
		panic("rng: fixed source exhausted")
	}
	v := s.draws[s.pos]
	s.pos++
	return v
}

func (s *fixedSource) Intn(n int) int {
	return int(s.Float64() * float64(n))
}

func (s *fixedSource) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	return p
}
