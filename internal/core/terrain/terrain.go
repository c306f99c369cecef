// Package terrain holds the value types shared by the generation phases:
// coordinates, grid geometry, biome and water classifications.
package terrain

import "math"

// Coord is a surface tile coordinate.
type Coord struct {
	X int `cbor:"1,keyasint"`
	Y int `cbor:"2,keyasint"`
}

// Dist returns the Euclidean distance between two coordinates.
func (c Coord) Dist(o Coord) float64 {
	dx := float64(c.X - o.X)
	dy := float64(c.Y - o.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Grid describes row-major grid geometry. Phases keep their per-tile values in
// plain slices of length W*H indexed by y*W+x.
type Grid struct {
	W, H int
}

// Len returns the number of tiles.
func (g Grid) Len() int { return g.W * g.H }

// In reports whether (x, y) lies inside the grid.
func (g Grid) In(x, y int) bool { return x >= 0 && y >= 0 && x < g.W && y < g.H }

// Index returns the linear index for (x, y).
func (g Grid) Index(x, y int) int { return y*g.W + x }

// Coord returns the coordinate of linear index i.
func (g Grid) Coord(i int) Coord { return Coord{X: i % g.W, Y: i / g.W} }

// OnBoundary reports whether index i touches the grid edge.
func (g Grid) OnBoundary(i int) bool {
	x, y := i%g.W, i/g.W
	return x == 0 || y == 0 || x == g.W-1 || y == g.H-1
}

// Neighbor offsets in fixed scan order. The order is part of the output
// contract: several phases break ties by it.
var (
	Offsets4 = [4][2]int{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}
	Offsets8 = [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}
)

// Neighbors4 appends the in-grid 4-neighbours of i to buf.
func (g Grid) Neighbors4(i int, buf []int) []int {
	x, y := i%g.W, i/g.W
	for _, o := range Offsets4 {
		if nx, ny := x+o[0], y+o[1]; g.In(nx, ny) {
			buf = append(buf, ny*g.W+nx)
		}
	}
	return buf
}

// Neighbors8 appends the in-grid 8-neighbours of i to buf.
func (g Grid) Neighbors8(i int, buf []int) []int {
	x, y := i%g.W, i/g.W
	for _, o := range Offsets8 {
		if nx, ny := x+o[0], y+o[1]; g.In(nx, ny) {
			buf = append(buf, ny*g.W+nx)
		}
	}
	return buf
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PlateType classifies a tectonic plate.
type PlateType uint8

const (
	Continental PlateType = iota + 1
	Oceanic
)

func (t PlateType) String() string {
	switch t {
	case Continental:
		return "continental"
	case Oceanic:
		return "oceanic"
	default:
		return "unknown"
	}
}

// WaterType classifies the water a tile holds.
type WaterType uint8

const (
	WaterNone WaterType = iota
	WaterOcean
	WaterLake
	WaterRiver
)

func (w WaterType) String() string {
	switch w {
	case WaterNone:
		return "none"
	case WaterOcean:
		return "ocean"
	case WaterLake:
		return "lake"
	case WaterRiver:
		return "river"
	default:
		return "unknown"
	}
}

// ParseWaterType resolves a water type by its String name.
func ParseWaterType(name string) (WaterType, bool) {
	for w := WaterNone; w <= WaterRiver; w++ {
		if w.String() == name {
			return w, true
		}
	}
	return WaterNone, false
}
