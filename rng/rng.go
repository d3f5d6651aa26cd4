// Package rng provides a deterministic, seedable source of randomness for
// reproducible runs and tests. Without a seed, IntN and Uint64 read
// crypto/rand, while Float64 and ExpDuration draw from a freshly
// time-seeded math/rand.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	mrand "math/rand"
	"sync"
	"time"
)

// Source wraps either a seeded math/rand.Rand or, unseeded, crypto/rand
// (IntN, Uint64) plus a time-seeded math/rand (Float64, ExpDuration),
// matching the two modes of the original's DeterministicRNG: seeded for
// reproducible scenarios, unseeded for non-reproducible runs.
type Source struct {
	mu     sync.Mutex
	seeded *mrand.Rand // nil => use crypto/rand
}

// New returns an unseeded Source backed by crypto/rand.
func New() *Source {
	return &Source{}
}

// NewSeeded returns a Source backed by a deterministic PRNG seeded with
// seed, for reproducible scenario runs and tests.
func NewSeeded(seed int64) *Source {
	return &Source{seeded: mrand.New(mrand.NewSource(seed))}
}

// IntN returns a uniform value in [0, n).
func (s *Source) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeded != nil {
		return s.seeded.Intn(n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand failure is not recoverable; fall back to a
		// time-seeded PRNG rather than panic mid-protocol.
		return mrand.New(mrand.NewSource(time.Now().UnixNano())).Intn(n)
	}
	return int(v.Int64())
}

// Float64 returns a uniform value in [0.0, 1.0).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeded != nil {
		return s.seeded.Float64()
	}
	return mrand.New(mrand.NewSource(time.Now().UnixNano())).Float64()
}

// Uint64 returns a uniform 64-bit value, used to feed field.RandomFromSource.
func (s *Source) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeded != nil {
		return s.seeded.Uint64()
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return mrand.New(mrand.NewSource(time.Now().UnixNano())).Uint64()
	}
	return binary.BigEndian.Uint64(buf[:])
}

// Duration returns a uniform duration in [min, max).
func (s *Source) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := int64(max - min)
	return min + time.Duration(s.IntN(int(span)))
}

// ExpDuration returns an exponentially distributed duration with the given
// mean, clamped to be nonnegative.
func (s *Source) ExpDuration(mean time.Duration) time.Duration {
	s.mu.Lock()
	lambda := 1.0 / float64(mean)
	var exp float64
	if s.seeded != nil {
		exp = s.seeded.ExpFloat64() / lambda
	} else {
		exp = mrand.New(mrand.NewSource(time.Now().UnixNano())).ExpFloat64() / lambda
	}
	s.mu.Unlock()
	if exp < 0 {
		exp = 0
	}
	return time.Duration(exp)
}
