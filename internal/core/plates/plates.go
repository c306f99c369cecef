// Package plates partitions the world grid into tectonic plates.
//
// Seeds are scattered with the plates stream and every tile joins the seed
// with the smallest weighted squared distance. Disconnected fragments and
// undersized plates are folded into their largest neighbour before ids are
// compacted, so every plate is a single 4-connected cell of at least the
// configured size (unless the grid cannot hold one).
package plates

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/louisbranch/worldgen/internal/core/stream"
	"github.com/louisbranch/worldgen/internal/core/terrain"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
)

const (
	// DefaultDensity is the default number of tiles per plate.
	DefaultDensity = 10000
	// DefaultContinentalFraction is the share of plates typed continental.
	DefaultContinentalFraction = 0.7

	minWeight = 0.75
	maxWeight = 1.25
	maxDrift  = 0.5
)

// Config controls partitioning.
type Config struct {
	Width, Height int
	// Density is the target number of tiles per plate.
	Density float64
	// ContinentalFraction is the share of plates typed continental.
	ContinentalFraction float64
	// MinPlateTiles is the smallest allowed plate. Zero derives it from
	// Density (a tenth). Plates never drop below two tiles.
	MinPlateTiles int
}

// RequestedPlates returns the plate count implied by the grid size and density.
func (c Config) RequestedPlates() int {
	return max(1, int(math.Round(float64(c.Width*c.Height)/c.Density)))
}

func (c Config) minTiles() int {
	if c.MinPlateTiles > 0 {
		return max(2, c.MinPlateTiles)
	}
	return max(2, int(math.Round(c.Density/10)))
}

// Validate rejects configurations that cannot produce a partition.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return apperrors.New(apperrors.CodeInvalidParameter, fmt.Sprintf("grid %dx%d must be positive", c.Width, c.Height))
	}
	if !(c.Density > 0) || math.IsInf(c.Density, 0) {
		return apperrors.New(apperrors.CodeInvalidParameter, "plate density must be positive and finite")
	}
	if c.ContinentalFraction < 0 || c.ContinentalFraction > 1 {
		return apperrors.New(apperrors.CodeInvalidParameter, "continental fraction must be within [0,1]")
	}
	if c.MinPlateTiles < 0 {
		return apperrors.New(apperrors.CodeInvalidParameter, "min plate tiles must not be negative")
	}
	return nil
}

// Span is a horizontal run of tiles [X0, X1) on row Y.
type Span struct {
	Y  int `cbor:"1,keyasint"`
	X0 int `cbor:"2,keyasint"`
	X1 int `cbor:"3,keyasint"`
}

// Plate is one tectonic plate.
type Plate struct {
	ID       int
	Type     terrain.PlateType
	Drift    mgl64.Vec2
	Seed     terrain.Coord
	Weight   float64
	Centroid mgl64.Vec2
	Tiles    int
	Cells    []Span
}

// Layout is the result of partitioning.
type Layout struct {
	Grid       terrain.Grid
	Plates     []Plate
	Boundaries []Boundary
	// Assignment holds the plate id of every tile, row-major.
	Assignment []int
	// Warnings describe degenerate-input degradations.
	Warnings []string
}

// PlateAt returns the plate id of tile (x, y).
func (l *Layout) PlateAt(x, y int) int { return l.Assignment[l.Grid.Index(x, y)] }

type seedPoint struct {
	x, y   float64
	weight float64
}

// Partition builds the plate layout. The stream is consumed in a fixed order:
// seed points and weights, then the type shuffle, then drift vectors.
func Partition(ctx context.Context, cfg Config, s *stream.Stream) (*Layout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := terrain.Grid{W: cfg.Width, H: cfg.Height}
	requested := cfg.RequestedPlates()
	n := min(requested, g.Len())

	seeds := make([]seedPoint, n)
	for i := range seeds {
		seeds[i] = seedPoint{
			x:      float64(s.IntN(g.W)),
			y:      float64(s.IntN(g.H)),
			weight: s.Range(minWeight, maxWeight),
		}
	}

	assign := make([]int, g.Len())
	err := terrain.ParallelRows(ctx, g.H, func(y0, y1 int) error {
		for y := y0; y < y1; y++ {
			for x := 0; x < g.W; x++ {
				assign[g.Index(x, y)] = nearestSeed(seeds, float64(x), float64(y))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("assign plates: %w", err)
	}

	counts := make([]int, n)
	for _, p := range assign {
		counts[p]++
	}
	mergeFragments(g, assign, counts)
	mergeUndersized(g, assign, counts, cfg.minTiles())

	// Compact surviving ids in seed order.
	remap := make([]int, n)
	var survivors []int
	for p := range n {
		remap[p] = -1
		if counts[p] > 0 {
			remap[p] = len(survivors)
			survivors = append(survivors, p)
		}
	}
	for i, p := range assign {
		assign[i] = remap[p]
	}

	layout := &Layout{Grid: g, Assignment: assign}
	layout.Plates = make([]Plate, len(survivors))
	for id, old := range survivors {
		layout.Plates[id] = Plate{
			ID:     id,
			Seed:   terrain.Coord{X: int(seeds[old].x), Y: int(seeds[old].y)},
			Weight: seeds[old].weight,
		}
	}
	if len(survivors) < requested {
		layout.Warnings = append(layout.Warnings, fmt.Sprintf(
			"degenerate plate layout: requested %d plates, produced %d", requested, len(survivors)))
	}

	assignTypes(layout.Plates, cfg.ContinentalFraction, s)
	for i := range layout.Plates {
		layout.Plates[i].Drift = mgl64.Vec2{s.Range(-maxDrift, maxDrift), s.Range(-maxDrift, maxDrift)}
	}
	layout.measure()
	layout.Boundaries = findBoundaries(g, assign, layout.Plates)
	return layout, nil
}

// nearestSeed returns the seed minimising squared distance over squared
// weight. Ties keep the lower id.
func nearestSeed(seeds []seedPoint, x, y float64) int {
	best, bestD := 0, math.Inf(1)
	for i, sp := range seeds {
		dx, dy := x-sp.x, y-sp.y
		d := (dx*dx + dy*dy) / (sp.weight * sp.weight)
		if d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

func assignTypes(plates []Plate, fraction float64, s *stream.Stream) {
	n := len(plates)
	if n == 0 {
		return
	}
	k := int(math.Round(fraction * float64(n)))
	k = min(max(k, 1), n)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	s.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	for i, p := range order {
		if i < k {
			plates[p].Type = terrain.Continental
		} else {
			plates[p].Type = terrain.Oceanic
		}
	}
}

// measure fills tile counts, centroids and row spans.
func (l *Layout) measure() {
	g := l.Grid
	sums := make([]mgl64.Vec2, len(l.Plates))
	for y := range g.H {
		x0 := 0
		for x := 1; x <= g.W; x++ {
			if x < g.W && l.Assignment[g.Index(x, y)] == l.Assignment[g.Index(x0, y)] {
				continue
			}
			p := l.Assignment[g.Index(x0, y)]
			l.Plates[p].Cells = append(l.Plates[p].Cells, Span{Y: y, X0: x0, X1: x})
			x0 = x
		}
		for x := range g.W {
			p := l.Assignment[g.Index(x, y)]
			l.Plates[p].Tiles++
			sums[p] = sums[p].Add(mgl64.Vec2{float64(x), float64(y)})
		}
	}
	for i := range l.Plates {
		if l.Plates[i].Tiles > 0 {
			l.Plates[i].Centroid = sums[i].Mul(1 / float64(l.Plates[i].Tiles))
		}
	}
}

// largestNeighbour returns the neighbouring plate of members with the most
// tiles (ties keep the lower id), or -1 when members touch no other plate.
func largestNeighbour(g terrain.Grid, assign, counts, members []int, self int) int {
	best := -1
	var buf []int
	for _, i := range members {
		buf = g.Neighbors4(i, buf[:0])
		for _, j := range buf {
			p := assign[j]
			if p == self {
				continue
			}
			if best < 0 || counts[p] > counts[best] || (counts[p] == counts[best] && p < best) {
				best = p
			}
		}
	}
	return best
}

func move(assign, counts, members []int, from, to int) {
	for _, i := range members {
		assign[i] = to
	}
	counts[from] -= len(members)
	counts[to] += len(members)
}

// mergeFragments folds every component of a plate except its largest into
// the largest neighbouring plate, until each plate is connected. Every move
// joins the fragment to an adjacent component, so the component count
// strictly decreases.
func mergeFragments(g terrain.Grid, assign, counts []int) {
	for {
		comps := components(g, assign)
		largest := map[int]int{}
		for c, comp := range comps {
			if cur, ok := largest[comp.plate]; !ok || len(comp.tiles) > len(comps[cur].tiles) {
				largest[comp.plate] = c
			}
		}
		moved := false
		for c, comp := range comps {
			if largest[comp.plate] == c {
				continue
			}
			to := largestNeighbour(g, assign, counts, comp.tiles, comp.plate)
			if to < 0 {
				continue
			}
			move(assign, counts, comp.tiles, comp.plate, to)
			moved = true
		}
		if !moved {
			return
		}
	}
}

// mergeUndersized folds plates below minTiles, smallest first (ties keep the
// lower id), into their largest neighbour.
func mergeUndersized(g terrain.Grid, assign, counts []int, minTiles int) {
	members := make([][]int, len(counts))
	for i, p := range assign {
		members[p] = append(members[p], i)
	}
	for {
		victim, live := -1, 0
		for p, c := range counts {
			if c == 0 {
				continue
			}
			live++
			if c < minTiles && (victim < 0 || c < counts[victim]) {
				victim = p
			}
		}
		if victim < 0 || live <= 1 {
			return
		}
		to := largestNeighbour(g, assign, counts, members[victim], victim)
		if to < 0 {
			return
		}
		move(assign, counts, members[victim], victim, to)
		members[to] = append(members[to], members[victim]...)
		members[victim] = nil
	}
}

type component struct {
	plate int
	tiles []int
}

// components labels 4-connected same-plate regions in row-major discovery order.
func components(g terrain.Grid, assign []int) []component {
	seen := make([]bool, g.Len())
	var out []component
	var queue, buf []int
	for start := range assign {
		if seen[start] {
			continue
		}
		p := assign[start]
		seen[start] = true
		queue = append(queue[:0], start)
		var tiles []int
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			tiles = append(tiles, i)
			buf = g.Neighbors4(i, buf[:0])
			for _, j := range buf {
				if !seen[j] && assign[j] == p {
					seen[j] = true
					queue = append(queue, j)
				}
			}
		}
		slices.Sort(tiles)
		out = append(out, component{plate: p, tiles: tiles})
	}
	return out
}
