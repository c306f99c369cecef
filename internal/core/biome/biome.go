// Package biome classifies tiles from elevation, temperature and moisture.
//
// Water tiles are decided first (ocean below sea level, then lake and river
// membership) and take no part in smoothing. Land tiles map temperature and
// moisture to three bands each. Values near a band threshold are averaged
// with their land neighbours, and a tile in an extreme band next to a land
// tile in the opposite extreme band moves to the middle band, so climates
// from opposite extremes are always separated by a transitional biome.
package biome

import (
	"context"
	"fmt"

	"github.com/louisbranch/worldgen/internal/core/terrain"
)

// Config tunes classification.
type Config struct {
	SeaLevel float64
	// DeepOffset is how far below sea level ocean turns deep.
	DeepOffset float64
	// BandLow and BandHigh split [0, 1] into low, middle and high bands.
	BandLow, BandHigh float64
	// TransitionWidth is the distance from a threshold within which a value
	// is blended with its land neighbours.
	TransitionWidth float64
	HillsLevel      float64
	MountainLevel   float64
	// BeachMargin is the height above sea level still counted as beach.
	BeachMargin float64
}

// DefaultConfig returns the default bands for seaLevel.
func DefaultConfig(seaLevel float64) Config {
	return Config{
		SeaLevel:        seaLevel,
		DeepOffset:      0.15,
		BandLow:         1.0 / 3,
		BandHigh:        2.0 / 3,
		TransitionWidth: 0.05,
		HillsLevel:      0.7,
		MountainLevel:   0.85,
		BeachMargin:     0.03,
	}
}

// Input carries the fields classification reads. Water holds lake and river
// membership; a nil slice means neither exists.
type Input struct {
	Grid        terrain.Grid
	Elevation   []float64
	Temperature []float64
	Moisture    []float64
	Water       []terrain.WaterType
}

const (
	bandLow = iota
	bandMid
	bandHigh
)

var climateTable = [3][3]terrain.Biome{
	bandLow:  {terrain.BiomeTundra, terrain.BiomeTundra, terrain.BiomeTaiga},
	bandMid:  {terrain.BiomeGrassland, terrain.BiomeForest, terrain.BiomeSwamp},
	bandHigh: {terrain.BiomeDesert, terrain.BiomeSavanna, terrain.BiomeRainforest},
}

// ClimateBiome returns the land biome for a temperature and moisture band.
func ClimateBiome(tempBand, moistBand int) terrain.Biome {
	return climateTable[tempBand][moistBand]
}

// WaterType returns the water classification of tile i.
func (in Input) WaterType(i int, seaLevel float64) terrain.WaterType {
	if in.Elevation[i] < seaLevel {
		return terrain.WaterOcean
	}
	if in.Water != nil {
		return in.Water[i]
	}
	return terrain.WaterNone
}

// Classify returns the row-major biome of every surface tile.
func Classify(ctx context.Context, in Input, cfg Config) ([]terrain.Biome, error) {
	g := in.Grid
	land := make([]bool, g.Len())
	for i := range land {
		land[i] = in.WaterType(i, cfg.SeaLevel) == terrain.WaterNone
	}

	tBand := make([]int8, g.Len())
	mBand := make([]int8, g.Len())
	err := terrain.ParallelRows(ctx, g.H, func(y0, y1 int) error {
		var buf []int
		for i := y0 * g.W; i < y1*g.W; i++ {
			if !land[i] {
				continue
			}
			buf = g.Neighbors8(i, buf[:0])
			tBand[i] = cfg.band(smoothed(in.Temperature, land, i, buf, cfg))
			mBand[i] = cfg.band(smoothed(in.Moisture, land, i, buf, cfg))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("band climate: %w", err)
	}

	out := make([]terrain.Biome, g.Len())
	err = terrain.ParallelRows(ctx, g.H, func(y0, y1 int) error {
		var buf []int
		for i := y0 * g.W; i < y1*g.W; i++ {
			buf = g.Neighbors8(i, buf[:0])
			out[i] = classifyTile(in, cfg, land, tBand, mBand, i, buf)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("classify biomes: %w", err)
	}
	return out, nil
}

func classifyTile(in Input, cfg Config, land []bool, tBand, mBand []int8, i int, neighbours []int) terrain.Biome {
	e := in.Elevation[i]
	switch in.WaterType(i, cfg.SeaLevel) {
	case terrain.WaterOcean:
		if cfg.SeaLevel-e >= cfg.DeepOffset {
			return terrain.BiomeDeepOcean
		}
		return terrain.BiomeOcean
	case terrain.WaterLake:
		return terrain.BiomeLake
	case terrain.WaterRiver:
		return terrain.BiomeRiver
	}

	t := separate(tBand, land, i, neighbours)
	m := separate(mBand, land, i, neighbours)
	switch {
	case e >= cfg.MountainLevel:
		if t == bandLow {
			return terrain.BiomeSnowPeak
		}
		return terrain.BiomeMountain
	case e >= cfg.HillsLevel:
		return terrain.BiomeHills
	case e < cfg.SeaLevel+cfg.BeachMargin:
		for _, j := range neighbours {
			if in.Elevation[j] < cfg.SeaLevel {
				return terrain.BiomeBeach
			}
		}
	}
	return ClimateBiome(int(t), int(m))
}

func (c Config) band(v float64) int8 {
	switch {
	case v < c.BandLow:
		return bandLow
	case v < c.BandHigh:
		return bandMid
	default:
		return bandHigh
	}
}

// smoothed returns v[i], or its mean with the land neighbours' values when
// v[i] lies within the transition width of a band threshold.
func smoothed(v []float64, land []bool, i int, neighbours []int, cfg Config) float64 {
	x := v[i]
	if !near(x, cfg.BandLow, cfg.TransitionWidth) && !near(x, cfg.BandHigh, cfg.TransitionWidth) {
		return x
	}
	sum, n := x, 1
	for _, j := range neighbours {
		if land[j] {
			sum += v[j]
			n++
		}
	}
	return sum / float64(n)
}

func near(v, threshold, width float64) bool {
	d := v - threshold
	return d > -width && d < width
}

// separate moves an extreme band to the middle when a land neighbour sits in
// the opposite extreme.
func separate(bands []int8, land []bool, i int, neighbours []int) int8 {
	b := bands[i]
	if b == bandMid {
		return b
	}
	opposite := int8(bandHigh)
	if b == bandHigh {
		opposite = bandLow
	}
	for _, j := range neighbours {
		if land[j] && bands[j] == opposite {
			return bandMid
		}
	}
	return b
}

// Stratum returns the biome of a subterranean layer below a surface biome.
func Stratum(surface terrain.Biome) terrain.Biome {
	if surface.IsWater() {
		return terrain.BiomeSeabed
	}
	return terrain.BiomeCavern
}
