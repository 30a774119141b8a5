package agent

import (
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// Rand is the random source the controller samples from.
type Rand interface {
	Float64() float64
}

// DeriveSeed mixes a base seed with an identifier, so agents sharing a base
// seed still get independent but reproducible streams.
func DeriveSeed(base uint64, id string) uint64 {
	return xxhash.Sum64String(id) ^ (base * 0x9e3779b97f4a7c15)
}

// NewRand returns a PCG source seeded from base and id.
func NewRand(base uint64, id string) *rand.Rand {
	s := DeriveSeed(base, id)
	return rand.New(rand.NewPCG(s, s>>1|1))
}
