// Package fields computes the per-tile scalar fields: elevation from plates
// and layered noise, then temperature and moisture from elevation.
//
// Every tile value is a pure function of its coordinate, the plate layout and
// the coordinate-keyed noise sources, so rows are evaluated in parallel.
package fields

import (
	"context"
	"fmt"
	"math"

	"github.com/louisbranch/worldgen/internal/core/noise"
	"github.com/louisbranch/worldgen/internal/core/plates"
	"github.com/louisbranch/worldgen/internal/core/stream"
	"github.com/louisbranch/worldgen/internal/core/terrain"
)

// ElevationConfig tunes the elevation field.
type ElevationConfig struct {
	ContinentalBase float64
	OceanicBase     float64
	// NoiseAmplitude scales layered noise recentred to [-1, 1].
	NoiseAmplitude float64
	Octaves        int
	Frequency      float64
	Persistence    float64
	Lacunarity     float64
	// UpliftStrength is the peak uplift at a convergent boundary of
	// intensity 1. It decays quadratically to zero at UpliftFalloff tiles.
	UpliftStrength float64
	UpliftFalloff  float64
}

// DefaultElevation returns the default elevation tuning.
func DefaultElevation() ElevationConfig {
	return ElevationConfig{
		ContinentalBase: 0.55,
		OceanicBase:     0.25,
		NoiseAmplitude:  0.35,
		Octaves:         3,
		Frequency:       1.0 / 48,
		Persistence:     0.5,
		Lacunarity:      2,
		UpliftStrength:  0.3,
		UpliftFalloff:   8,
	}
}

// Elevation returns the row-major elevation field in [0, 1].
func Elevation(ctx context.Context, layout *plates.Layout, cfg ElevationConfig, s *stream.Stream) ([]float64, error) {
	g := layout.Grid
	src := noise.NewLayered(s.Int64Seed(), cfg.Octaves, cfg.Frequency, cfg.Persistence, cfg.Lacunarity)
	uplift := newUpliftMap(g, layout.ConvergentSources(), cfg.UpliftFalloff)

	out := make([]float64, g.Len())
	err := terrain.ParallelRows(ctx, g.H, func(y0, y1 int) error {
		for y := y0; y < y1; y++ {
			for x := 0; x < g.W; x++ {
				i := g.Index(x, y)
				base := cfg.OceanicBase
				if layout.Plates[layout.Assignment[i]].Type == terrain.Continental {
					base = cfg.ContinentalBase
				}
				v := base + cfg.NoiseAmplitude*(src.At(x, y)-0.5)*2
				if d, intensity, ok := uplift.nearest(x, y); ok {
					f := 1 - d/cfg.UpliftFalloff
					v += cfg.UpliftStrength * intensity * f * f
				}
				out[i] = terrain.Clamp01(v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("compute elevation: %w", err)
	}
	return out, nil
}

// upliftMap answers nearest-convergent-tile queries within the falloff radius
// by scanning a bounded window around the tile.
type upliftMap struct {
	g         terrain.Grid
	intensity []float64 // negative where the tile is not a source
	falloff   float64
	reach     int
}

func newUpliftMap(g terrain.Grid, sources []plates.Source, falloff float64) *upliftMap {
	m := &upliftMap{g: g, intensity: make([]float64, g.Len()), falloff: falloff}
	for i := range m.intensity {
		m.intensity[i] = -1
	}
	for _, s := range sources {
		m.intensity[s.Index] = s.Intensity
	}
	if falloff > 0 {
		m.reach = int(math.Ceil(falloff))
	}
	return m
}

// nearest returns the distance to the nearest source strictly inside the
// falloff radius and its intensity. Equidistant sources keep the strongest.
func (m *upliftMap) nearest(x, y int) (float64, float64, bool) {
	if m.reach == 0 {
		return 0, 0, false
	}
	bestD, bestI, found := math.Inf(1), 0.0, false
	for ny := max(0, y-m.reach); ny <= min(m.g.H-1, y+m.reach); ny++ {
		for nx := max(0, x-m.reach); nx <= min(m.g.W-1, x+m.reach); nx++ {
			intensity := m.intensity[m.g.Index(nx, ny)]
			if intensity < 0 {
				continue
			}
			dx, dy := float64(nx-x), float64(ny-y)
			d := math.Sqrt(dx*dx + dy*dy)
			if d >= m.falloff {
				continue
			}
			if d < bestD || (d == bestD && intensity > bestI) {
				bestD, bestI, found = d, intensity, true
			}
		}
	}
	return bestD, bestI, found
}
