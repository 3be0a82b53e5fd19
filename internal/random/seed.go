// Package random resolves simulation seeds.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// SeedSource records where a run's seed came from.
type SeedSource string

const (
	SeedSourceClient    SeedSource = "client"
	SeedSourceGenerated SeedSource = "generated"
)

// Generator returns a fresh seed.
type Generator func() (uint32, error)

// NewSeed reads a 32-bit seed from crypto/rand.
func NewSeed() (uint32, error) {
	var b [4]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// ResolveSeed returns requested when set, otherwise a seed from gen
// (NewSeed when nil).
func ResolveSeed(requested *uint32, gen Generator) (uint32, SeedSource, error) {
	if requested != nil {
		return *requested, SeedSourceClient, nil
	}
	if gen == nil {
		gen = NewSeed
	}
	seed, err := gen()
	if err != nil {
		return 0, "", err
	}
	return seed, SeedSourceGenerated, nil
}
