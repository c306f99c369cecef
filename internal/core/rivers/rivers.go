// Package rivers routes surface water over the elevation field.
//
// Routing is a priority flood from every outlet (ocean tiles and the grid
// edge). Tiles settle in order of water level; each settled tile drains into
// the already-settled neighbour with the lowest level, so every edge points
// at an earlier-settled tile and the network is acyclic by construction.
// Depressions fill to their spill level and become lakes. Rivers are then
// traced from source tiles along the drainage edges.
package rivers

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/louisbranch/worldgen/internal/core/stream"
	"github.com/louisbranch/worldgen/internal/core/terrain"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
)

// Config tunes routing.
type Config struct {
	SeaLevel float64
	// SourceThreshold is the lowest elevation a river may start from.
	SourceThreshold float64
	// PlateauTolerance is how far a tile's water level may sit above its
	// elevation before the tile counts as flooded.
	PlateauTolerance float64
	// TieBreak scales the coordinate perturbation that orders flat tiles.
	// It must stay below PlateauTolerance.
	TieBreak float64
}

// DefaultConfig returns the default routing tuning for seaLevel.
func DefaultConfig(seaLevel float64) Config {
	return Config{
		SeaLevel:         seaLevel,
		SourceThreshold:  0.6,
		PlateauTolerance: 0.002,
		TieBreak:         1e-5,
	}
}

// Validate rejects tunings the router cannot honour.
func (c Config) Validate() error {
	switch {
	case c.SourceThreshold < 0 || c.SourceThreshold > 1:
		return apperrors.New(apperrors.CodeInvalidParameter, "river source threshold must be within [0,1]")
	case c.PlateauTolerance < 0:
		return apperrors.New(apperrors.CodeInvalidParameter, "plateau tolerance must not be negative")
	case c.TieBreak < 0:
		return apperrors.New(apperrors.CodeInvalidParameter, "tie-break magnitude must not be negative")
	case c.TieBreak > 0 && c.TieBreak >= c.PlateauTolerance:
		return apperrors.New(apperrors.CodeInvalidParameter, "tie-break magnitude must be below the plateau tolerance")
	}
	return nil
}

// Terminal describes how a river ends.
type Terminal uint8

const (
	// TerminalOutlet ends at the ocean or the grid edge.
	TerminalOutlet Terminal = iota + 1
	// TerminalConfluence ends by joining an earlier river.
	TerminalConfluence
	// TerminalLake ends in an enclosed lake.
	TerminalLake
	// TerminalSink ends on a tile with nowhere to drain.
	TerminalSink
)

func (t Terminal) String() string {
	switch t {
	case TerminalOutlet:
		return "outlet"
	case TerminalConfluence:
		return "confluence"
	case TerminalLake:
		return "lake"
	case TerminalSink:
		return "sink"
	default:
		return "unknown"
	}
}

// River is one traced watercourse, ordered from source downstream.
type River struct {
	ID       int
	Source   terrain.Coord
	Tiles    []terrain.Coord
	Terminal Terminal
	// Joins is the river this one flows into, or -1.
	Joins int
	// Lakes lists the outflow lakes the river passes through, in order.
	Lakes []int
}

// Lake is a filled depression.
type Lake struct {
	ID    int
	Tiles []terrain.Coord
	Level float64
	// PourPoint is the first tile outside the lake along its drainage. It
	// belongs to another lake when two lakes touch only diagonally.
	PourPoint terrain.Coord
	// Enclosed is set when the lake only spills off the grid, so no river
	// continues from it.
	Enclosed bool
}

// Network is the routed drainage of a grid.
type Network struct {
	Grid terrain.Grid
	// Flow holds every tile's downstream direction or terminal marker.
	Flow []terrain.Flow
	// Level holds every tile's water surface level.
	Level []float64
	// Discharge counts the river sources draining through each tile.
	Discharge []int
	// Water marks lake and river tiles. Ocean is not marked here.
	Water  []terrain.WaterType
	LakeOf []int
	Rivers []River
	Lakes  []Lake
}

// Down returns the downstream index of tile i, or -1.
func (n *Network) Down(i int) int { return n.Grid.Downstream(i, n.Flow[i]) }

// Route builds the drainage network for elevation.
func Route(ctx context.Context, g terrain.Grid, elevation []float64, cfg Config, s *stream.Stream) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(elevation) != g.Len() {
		return nil, apperrors.New(apperrors.CodeInvalidParameter,
			fmt.Sprintf("elevation has %d tiles, grid has %d", len(elevation), g.Len()))
	}

	n := &Network{
		Grid:      g,
		Flow:      make([]terrain.Flow, g.Len()),
		Level:     make([]float64, g.Len()),
		Discharge: make([]int, g.Len()),
		Water:     make([]terrain.WaterType, g.Len()),
		LakeOf:    make([]int, g.Len()),
	}
	perturb := func(i int) float64 {
		c := g.Coord(i)
		return cfg.TieBreak * s.Unit2(c.X, c.Y)
	}
	n.flood(elevation, cfg, perturb)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.findLakes(elevation, cfg)
	n.traceRivers(elevation, cfg, perturb)
	return n, nil
}

type entry struct {
	key   float64
	level float64
	index int
}

type frontier []entry

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].key != f[j].key {
		return f[i].key < f[j].key
	}
	return f[i].index < f[j].index
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(entry)) }
func (f *frontier) Pop() any {
	old := *f
	e := old[len(old)-1]
	*f = old[:len(old)-1]
	return e
}

// flood settles every tile and records its level and downstream direction.
func (n *Network) flood(elevation []float64, cfg Config, perturb func(int) float64) {
	g := n.Grid
	queued := make([]bool, g.Len())
	settled := make([]bool, g.Len())
	keys := make([]float64, g.Len())
	q := &frontier{}

	for i, e := range elevation {
		if e < cfg.SeaLevel || g.OnBoundary(i) {
			queued[i] = true
			heap.Push(q, entry{key: e + perturb(i), level: e, index: i})
		}
	}

	var buf []int
	for q.Len() > 0 {
		cur := heap.Pop(q).(entry)
		i := cur.index
		settled[i] = true
		keys[i] = cur.key
		n.Level[i] = cur.level
		buf = g.Neighbors8(i, buf[:0])

		switch {
		case len(buf) == 0:
			n.Flow[i] = terrain.FlowSink
		case elevation[i] < cfg.SeaLevel || g.OnBoundary(i):
			n.Flow[i] = terrain.FlowOutlet
		default:
			// Lowest settled neighbour by level, then perturbed key, then
			// index. A neighbour always exists: the one that queued i.
			best := -1
			for _, j := range buf {
				if !settled[j] {
					continue
				}
				if best < 0 || n.Level[j] < n.Level[best] ||
					(n.Level[j] == n.Level[best] && (keys[j] < keys[best] || (keys[j] == keys[best] && j < best))) {
					best = j
				}
			}
			n.Flow[i] = g.FlowBetween(i, best)
		}

		for _, j := range buf {
			if queued[j] {
				continue
			}
			queued[j] = true
			level := max(elevation[j], cur.level)
			heap.Push(q, entry{key: level + perturb(j), level: level, index: j})
		}
	}
}

// flooded reports whether tile i sits under standing water.
func (n *Network) flooded(elevation []float64, cfg Config, i int) bool {
	return elevation[i] >= cfg.SeaLevel && n.Level[i]-elevation[i] > cfg.PlateauTolerance
}

// findLakes groups flooded tiles into 4-connected lakes.
func (n *Network) findLakes(elevation []float64, cfg Config) {
	g := n.Grid
	for i := range n.LakeOf {
		n.LakeOf[i] = -1
	}
	var queue, buf []int
	for start := range elevation {
		if n.LakeOf[start] >= 0 || !n.flooded(elevation, cfg, start) {
			continue
		}
		lake := Lake{ID: len(n.Lakes)}
		n.LakeOf[start] = lake.ID
		queue = append(queue[:0], start)
		for head := 0; head < len(queue); head++ {
			i := queue[head]
			lake.Tiles = append(lake.Tiles, g.Coord(i))
			lake.Level = max(lake.Level, n.Level[i])
			n.Water[i] = terrain.WaterLake
			buf = g.Neighbors4(i, buf[:0])
			for _, j := range buf {
				if n.LakeOf[j] < 0 && n.flooded(elevation, cfg, j) {
					n.LakeOf[j] = lake.ID
					queue = append(queue, j)
				}
			}
		}
		n.Lakes = append(n.Lakes, lake)
	}

	for id := range n.Lakes {
		lake := &n.Lakes[id]
		// Flow is 8-connected but lakes are 4-connected, so the walk stops
		// at the first tile outside this lake, even one of a diagonal lake.
		pour := g.Index(lake.Tiles[0].X, lake.Tiles[0].Y)
		for n.LakeOf[pour] == lake.ID {
			next := n.Down(pour)
			if next < 0 {
				break
			}
			pour = next
		}
		lake.PourPoint = g.Coord(pour)
		lake.Enclosed = elevation[pour] >= cfg.SeaLevel && n.Flow[pour].Terminal()
	}
}

// Sources returns the river source tiles in row-major order: dry land at or
// above the threshold that is a strict local maximum of perturbed elevation.
// Not every tile above the threshold is a source. A high tile that is not a
// peak starts no river of its own; when it lies on a peak's drainage it is
// part of that peak's river.
func Sources(g terrain.Grid, elevation []float64, lakeOf []int, cfg Config, perturb func(int) float64) []int {
	var out, buf []int
	for i, e := range elevation {
		if e < cfg.SourceThreshold || e < cfg.SeaLevel || (lakeOf != nil && lakeOf[i] >= 0) {
			continue
		}
		peak := e + perturb(i)
		top := true
		buf = g.Neighbors8(i, buf[:0])
		for _, j := range buf {
			if elevation[j]+perturb(j) >= peak {
				top = false
				break
			}
		}
		if top {
			out = append(out, i)
		}
	}
	return out
}

// traceRivers follows drainage from each source. A river stops at the ocean
// or grid edge, on a tile claimed by an earlier river, or in an enclosed
// lake. Outflow lakes are crossed along their drainage without claiming
// lake tiles. Sources already claimed by an earlier river start nothing.
func (n *Network) traceRivers(elevation []float64, cfg Config, perturb func(int) float64) {
	g := n.Grid
	claimed := make([]int, g.Len())
	for i := range claimed {
		claimed[i] = -1
	}

	for _, src := range Sources(g, elevation, n.LakeOf, cfg, perturb) {
		for i := src; i >= 0; i = n.Down(i) {
			n.Discharge[i]++
		}
		if claimed[src] >= 0 {
			continue
		}

		r := River{ID: len(n.Rivers), Source: g.Coord(src), Joins: -1}
		cur := src
		for r.Terminal == 0 {
			switch {
			case elevation[cur] < cfg.SeaLevel:
				r.Terminal = TerminalOutlet
			case claimed[cur] >= 0:
				r.Terminal = TerminalConfluence
				r.Joins = claimed[cur]
			case n.LakeOf[cur] >= 0:
				lake := n.Lakes[n.LakeOf[cur]]
				if lake.Enclosed {
					r.Terminal = TerminalLake
					break
				}
				if len(r.Lakes) == 0 || r.Lakes[len(r.Lakes)-1] != lake.ID {
					r.Lakes = append(r.Lakes, lake.ID)
				}
				cur = n.Down(cur)
			default:
				claimed[cur] = r.ID
				n.Water[cur] = terrain.WaterRiver
				r.Tiles = append(r.Tiles, g.Coord(cur))
				switch n.Flow[cur] {
				case terrain.FlowOutlet:
					r.Terminal = TerminalOutlet
				case terrain.FlowSink:
					r.Terminal = TerminalSink
				default:
					cur = n.Down(cur)
				}
			}
		}
		n.Rivers = append(n.Rivers, r)
	}
}
