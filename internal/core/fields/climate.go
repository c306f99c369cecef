package fields

import (
	"context"
	"fmt"
	"math"

	"github.com/louisbranch/worldgen/internal/core/noise"
	"github.com/louisbranch/worldgen/internal/core/stream"
	"github.com/louisbranch/worldgen/internal/core/terrain"
)

// ClimateConfig tunes temperature and moisture.
type ClimateConfig struct {
	SeaLevel    float64
	EquatorTemp float64
	PoleTemp    float64
	// Cooling is subtracted per unit of elevation above sea level.
	Cooling float64
	// MoistureScale is the Perlin sampling period in tiles.
	MoistureScale float64
	// WaterBonus is the moisture added next to water, decaying linearly to
	// zero at WaterRadius tiles.
	WaterBonus  float64
	WaterRadius int
}

// DefaultClimate returns the default climate tuning for seaLevel.
func DefaultClimate(seaLevel float64) ClimateConfig {
	return ClimateConfig{
		SeaLevel:      seaLevel,
		EquatorTemp:   1,
		PoleTemp:      0,
		Cooling:       0.5,
		MoistureScale: 32,
		WaterBonus:    0.4,
		WaterRadius:   12,
	}
}

// Climate holds the temperature and moisture fields, row-major, in [0, 1].
type Climate struct {
	Temperature []float64
	Moisture    []float64
}

// Latitude maps row y to [-1, 1], equator at the grid's middle row.
func Latitude(y, height int) float64 {
	return (float64(y)+0.5)/float64(height)*2 - 1
}

// ComputeClimate derives temperature and moisture from elevation.
func ComputeClimate(ctx context.Context, g terrain.Grid, elevation []float64, cfg ClimateConfig, s *stream.Stream) (*Climate, error) {
	dist := WaterDistance(g, elevation, cfg.SeaLevel)
	src := noise.NewPerlin(s.Int64Seed(), cfg.MoistureScale)

	c := &Climate{
		Temperature: make([]float64, g.Len()),
		Moisture:    make([]float64, g.Len()),
	}
	err := terrain.ParallelRows(ctx, g.H, func(y0, y1 int) error {
		for y := y0; y < y1; y++ {
			lat := math.Abs(Latitude(y, g.H))
			for x := 0; x < g.W; x++ {
				i := g.Index(x, y)
				e := elevation[i]
				t := cfg.EquatorTemp*(1-lat) + cfg.PoleTemp*lat - cfg.Cooling*max(0, e-cfg.SeaLevel)
				c.Temperature[i] = terrain.Clamp01(t)
				c.Moisture[i] = moisture(cfg, src.At(x, y), dist[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("compute climate: %w", err)
	}
	return c, nil
}

func moisture(cfg ClimateConfig, n float64, d int) float64 {
	if d == 0 {
		return 1
	}
	m := (1 - cfg.WaterBonus) * n
	if d > 0 && d < cfg.WaterRadius {
		m += cfg.WaterBonus * (1 - float64(d)/float64(cfg.WaterRadius))
	}
	return terrain.Clamp01(m)
}

// WaterDistance returns the 4-neighbour step distance from every tile to the
// nearest tile below seaLevel: 0 on water, -1 when the grid has none.
func WaterDistance(g terrain.Grid, elevation []float64, seaLevel float64) []int {
	dist := make([]int, g.Len())
	queue := make([]int, 0, g.Len())
	for i, e := range elevation {
		if e < seaLevel {
			queue = append(queue, i)
		} else {
			dist[i] = -1
		}
	}
	var buf []int
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		buf = g.Neighbors4(i, buf[:0])
		for _, j := range buf {
			if dist[j] < 0 {
				dist[j] = dist[i] + 1
				queue = append(queue, j)
			}
		}
	}
	return dist
}
