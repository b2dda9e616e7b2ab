// Package random provides the injectable pseudo-random source used for
// drawing award amounts. Seeding goes through crypto/rand so independent
// processes never share a sequence; tests construct a Source from a fixed
// seed for deterministic draws.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Source is a goroutine-safe pseudo-random source.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates a Source from an explicit seed.
func NewSource(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// NewCryptoSeededSource creates a Source seeded from crypto/rand.
func NewCryptoSeededSource() (*Source, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSource(seed), nil
}

// IntBetween returns a uniform draw from the inclusive range [min, max].
func (s *Source) IntBetween(min, max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.Intn(max-min+1)
}
