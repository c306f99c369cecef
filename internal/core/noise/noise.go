// Package noise provides coordinate-keyed noise sources. Every source is a
// pure function of its seed and the world coordinate it is sampled at, so
// tiles can be evaluated in any order or in parallel.
package noise

import (
	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Source samples a value in [0, 1] at a tile coordinate.
type Source interface {
	At(x, y int) float64
}

// Layered sums octaves of normalized OpenSimplex noise.
type Layered struct {
	src         opensimplex.Noise
	octaves     int
	frequency   float64
	persistence float64
	lacunarity  float64
}

// NewLayered builds a layered source. Octaves below one are treated as one.
func NewLayered(seed int64, octaves int, frequency, persistence, lacunarity float64) *Layered {
	return &Layered{
		src:         opensimplex.NewNormalized(seed),
		octaves:     max(octaves, 1),
		frequency:   frequency,
		persistence: persistence,
		lacunarity:  lacunarity,
	}
}

// At returns the amplitude-weighted mean of the octaves, in [0, 1].
func (l *Layered) At(x, y int) float64 {
	fx, fy := float64(x), float64(y)
	total, norm := 0.0, 0.0
	amplitude, frequency := 1.0, l.frequency
	for range l.octaves {
		total += l.src.Eval2(fx*frequency, fy*frequency) * amplitude
		norm += amplitude
		amplitude *= l.persistence
		frequency *= l.lacunarity
	}
	return clamp(total / norm)
}

// Perlin wraps classic Perlin noise rescaled to [0, 1].
type Perlin struct {
	p     *perlin.Perlin
	scale float64
}

// NewPerlin builds a Perlin source sampled at world coordinate / scale.
func NewPerlin(seed int64, scale float64) *Perlin {
	if scale <= 0 {
		scale = 1
	}
	return &Perlin{p: perlin.NewPerlin(2, 2, 3, seed), scale: scale}
}

// At returns noise at (x, y) mapped from [-1, 1] to [0, 1].
func (p *Perlin) At(x, y int) float64 {
	// Half-tile offset keeps samples off the lattice, where Perlin noise is 0.
	v := p.p.Noise2D((float64(x)+0.5)/p.scale, (float64(y)+0.5)/p.scale)
	return clamp(0.5 + 0.5*v)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
