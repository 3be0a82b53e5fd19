// Package xorshift implements the 32-bit xorshift generator that drives every
// simulated draw.
//
// # Determinism
//
// A Source is a pure function of its seed and the number of calls made on it.
// Two Sources built from the same seed return identical sequences, so a batch
// replayed with the same seed and the same call order reproduces every draw.
//
// A Source is not safe for concurrent use and is not cryptographically secure.
package xorshift

// ZeroSeedReplacement is substituted for a zero seed, which would otherwise
// leave the generator stuck at zero forever.
const ZeroSeedReplacement uint32 = 0x6d2b79f5

// Source holds the single word of generator state.
type Source struct {
	x uint32
}

// New returns a Source seeded with seed.
func New(seed uint32) *Source {
	if seed == 0 {
		seed = ZeroSeedReplacement
	}
	return &Source{x: seed}
}

// Next advances the state and returns the new 32-bit word.
func (s *Source) Next() uint32 {
	x := s.x
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.x = x
	return x
}

// Uniform returns Next()/2^32, a value in [0, 1).
func (s *Source) Uniform() float64 {
	return float64(s.Next()) / (1 << 32)
}

// State returns the current state word without advancing it.
func (s *Source) State() uint32 {
	return s.x
}

// Derive returns the seed for an independent stream of a parallel batch.
// Stream 0 keeps the batch seed so a single-worker run matches sequential mode.
func Derive(seed uint32, stream int) uint32 {
	if stream == 0 {
		return seed
	}
	// splitmix32-style finalizer over the seed and stream index.
	z := seed + uint32(stream)*0x9e3779b9
	z = (z ^ (z >> 16)) * 0x85ebca6b
	z = (z ^ (z >> 13)) * 0xc2b2ae35
	z ^= z >> 16
	if z == 0 {
		z = ZeroSeedReplacement
	}
	return z
}
