package parking

import "math/rand/v2"

// Rand is the only source of randomness in the package, so a fixed seed
// makes slot generation and ticks reproducible.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

func NewRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
