// Package stream derives independent, reproducible random streams for each
// generation phase from a single root seed.
//
// # Determinism
//
// A stream is a pure function of (root seed, phase label). Deriving, or
// consuming, the stream of one phase never changes the values another phase
// observes, so phases can be added, removed or reordered without perturbing
// the rest of the world.
//
// # Coordinate hashing
//
// Besides the sequential generator, each stream exposes Hash2/Unit2: stateless
// values keyed by the stream's sub-seed and a tile coordinate. Phases that run
// in parallel must use these (or coordinate-keyed noise) rather than the
// sequential generator.
package stream

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// Phase labels used by the generation pipeline.
const (
	LabelPlates    = "plates"
	LabelElevation = "elevation"
	LabelClimate   = "climate"
	LabelRivers    = "rivers"
	LabelFeatures  = "features"
)

const derivationDomain = "worldgen/stream/v1"

// Factory derives phase streams from one root seed. It holds no mutable
// state and is safe to share between goroutines.
type Factory struct {
	root uint64
}

// NewFactory returns a factory for rootSeed.
func NewFactory(rootSeed uint64) *Factory {
	return &Factory{root: rootSeed}
}

// Derive returns a fresh stream for label. Two calls with the same label
// return independent streams producing the same sequence.
func (f *Factory) Derive(label string) *Stream {
	h := sha256.New()
	h.Write([]byte(derivationDomain))
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], f.root)
	h.Write(seed[:])
	h.Write([]byte(label))

	var digest [32]byte
	copy(digest[:], h.Sum(nil))

	s := &Stream{rng: rand.New(rand.NewChaCha8(digest))}
	copy(s.sub[:], digest[:16])
	s.key = binary.LittleEndian.Uint64(s.sub[:8]) ^ binary.LittleEndian.Uint64(s.sub[8:])
	return s
}

// Stream is a deterministic random source bound to one phase. The sequential
// methods are not safe for concurrent use; Hash2 and Unit2 are.
type Stream struct {
	sub [16]byte
	key uint64
	rng *rand.Rand
}

// SubSeed returns the 128-bit sub-seed derived for this phase.
func (s *Stream) SubSeed() [16]byte { return s.sub }

// Int64Seed folds the sub-seed into an int64 for libraries seeded that way.
func (s *Stream) Int64Seed() int64 { return int64(s.key) }

// Uint64 returns the next 64 random bits.
func (s *Stream) Uint64() uint64 { return s.rng.Uint64() }

// Float64 returns the next value in [0, 1).
func (s *Stream) Float64() float64 { return s.rng.Float64() }

// IntN returns the next value in [0, n). It panics if n <= 0.
func (s *Stream) IntN(n int) int { return s.rng.IntN(n) }

// Range returns the next value in [lo, hi).
func (s *Stream) Range(lo, hi float64) float64 { return lo + (hi-lo)*s.rng.Float64() }

// Shuffle permutes n elements through swap.
func (s *Stream) Shuffle(n int, swap func(i, j int)) { s.rng.Shuffle(n, swap) }

// Hash2 returns a stateless 64-bit hash of (sub-seed, x, y).
func (s *Stream) Hash2(x, y int) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], s.key)
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(x)))
	binary.LittleEndian.PutUint64(buf[16:], uint64(int64(y)))
	return xxhash.Sum64(buf[:])
}

// Unit2 maps Hash2 into [0, 1).
func (s *Stream) Unit2(x, y int) float64 {
	return float64(s.Hash2(x, y)>>11) / (1 << 53)
}
