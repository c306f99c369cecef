// Package features places rare regional features on a classified world.
//
// Each instance samples a kind by catalog weight, then a tile from that
// kind's weight table, where preferred-biome tiles count Bias times and
// incompatible tiles count zero. A placement is accepted only when it keeps
// the larger of the two kinds' separations from every earlier feature. After
// MaxAttempts rejected samples the instance is skipped.
package features

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/louisbranch/worldgen/internal/core/stream"
	"github.com/louisbranch/worldgen/internal/core/terrain"
	"github.com/louisbranch/worldgen/internal/platform/id"
)

const (
	// DefaultTilesPerFeature sets the instance budget: one per this many tiles.
	DefaultTilesPerFeature = 4096
	// DefaultMaxAttempts bounds resampling for one instance.
	DefaultMaxAttempts = 100

	idKind = "feature"
)

// Config tunes placement.
type Config struct {
	TilesPerFeature int
	MaxAttempts     int
}

// DefaultConfig returns the default placement tuning.
func DefaultConfig() Config {
	return Config{TilesPerFeature: DefaultTilesPerFeature, MaxAttempts: DefaultMaxAttempts}
}

// Budget returns how many instances a grid of tiles is offered.
func (c Config) Budget(tiles int) int {
	per := c.TilesPerFeature
	if per <= 0 {
		per = DefaultTilesPerFeature
	}
	return max(1, tiles/per)
}

// Input carries the classified surface.
type Input struct {
	Grid      terrain.Grid
	Seed      uint64
	Biome     []terrain.Biome
	Elevation []float64
	Water     []terrain.WaterType
}

// Feature is one placed regional feature.
type Feature struct {
	ID        string
	Index     int
	Kind      Kind
	Center    terrain.Coord
	Tiles     []terrain.Coord
	Intensity float64
	// MinSeparation is the kind's separation at placement time.
	MinSeparation float64
}

// Placement is the outcome of a placement run.
type Placement struct {
	Features []Feature
	// Skipped counts instances dropped after exhausting their attempts.
	Skipped int
}

// Place runs placement. Only the features stream is consumed, in a fixed
// order: kind, tile, and on acceptance the intensity.
func Place(ctx context.Context, in Input, cat *Catalog, cfg Config, s *stream.Stream) (*Placement, error) {
	out := &Placement{}
	if cat == nil || cat.Len() == 0 {
		return out, nil
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	specs := cat.specs
	kindCum := make([]float64, len(specs))
	total := 0.0
	for i, sp := range specs {
		total += sp.Weight
		kindCum[i] = total
	}
	tables := make([]tileTable, len(specs))
	for i, sp := range specs {
		tables[i] = newTileTable(in, sp)
	}

	budget := cfg.Budget(in.Grid.Len())
	for range budget {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("place features: %w", err)
		}
		placed := false
		for range attempts {
			k := pick(kindCum, s.Float64())
			table := tables[k]
			r := s.Float64()
			if table.empty() {
				continue
			}
			tile := table.pick(r)
			sp := specs[k]
			if !sp.Compatible(in.Biome[tile], in.Elevation[tile], in.Water[tile]) {
				continue
			}
			center := in.Grid.Coord(tile)
			if !separated(out.Features, center, sp.MinSeparation) {
				continue
			}
			index := len(out.Features)
			out.Features = append(out.Features, Feature{
				ID:            id.ForSeed(in.Seed, idKind, uint64(index)),
				Index:         index,
				Kind:          sp.Kind,
				Center:        center,
				Tiles:         occupied(in, sp, center),
				Intensity:     s.Float64(),
				MinSeparation: sp.MinSeparation,
			})
			placed = true
			break
		}
		if !placed {
			out.Skipped++
		}
	}
	return out, nil
}

// tileTable holds the cumulative sampling weights of the tiles compatible
// with one kind. Incompatible tiles take no space.
type tileTable struct {
	tiles []int
	cum   []float64
}

func newTileTable(in Input, sp Spec) tileTable {
	var t tileTable
	total := 0.0
	for i := range in.Grid.Len() {
		if !sp.Compatible(in.Biome[i], in.Elevation[i], in.Water[i]) {
			continue
		}
		if sp.Prefers(in.Biome[i]) {
			total += sp.Bias
		} else {
			total++
		}
		t.tiles = append(t.tiles, i)
		t.cum = append(t.cum, total)
	}
	return t
}

func (t tileTable) empty() bool { return len(t.cum) == 0 || t.cum[len(t.cum)-1] == 0 }

// pick returns the tile index r in [0, 1) lands on.
func (t tileTable) pick(r float64) int { return t.tiles[pick(t.cum, r)] }

// pick maps r in [0, 1) onto a cumulative weight table.
func pick(cum []float64, r float64) int {
	target := r * cum[len(cum)-1]
	i := sort.Search(len(cum), func(i int) bool { return cum[i] > target })
	return min(i, len(cum)-1)
}

func separated(placed []Feature, c terrain.Coord, sep float64) bool {
	for _, f := range placed {
		if f.Center.Dist(c) < math.Max(sep, f.MinSeparation) {
			return false
		}
	}
	return true
}

// occupied lists, row-major, the compatible tiles within the kind's radius.
func occupied(in Input, sp Spec, center terrain.Coord) []terrain.Coord {
	var out []terrain.Coord
	r := sp.Radius
	for y := center.Y - r; y <= center.Y+r; y++ {
		for x := center.X - r; x <= center.X+r; x++ {
			if !in.Grid.In(x, y) {
				continue
			}
			c := terrain.Coord{X: x, Y: y}
			if c.Dist(center) > float64(r) {
				continue
			}
			i := in.Grid.Index(x, y)
			if c == center || sp.Compatible(in.Biome[i], in.Elevation[i], in.Water[i]) {
				out = append(out, c)
			}
		}
	}
	return out
}
