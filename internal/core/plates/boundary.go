package plates

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/louisbranch/worldgen/internal/core/terrain"
)

// BoundaryKind classifies the relative motion across a plate boundary.
type BoundaryKind uint8

const (
	Convergent BoundaryKind = iota + 1
	Divergent
	Transform
)

func (k BoundaryKind) String() string {
	switch k {
	case Convergent:
		return "convergent"
	case Divergent:
		return "divergent"
	case Transform:
		return "transform"
	default:
		return "unknown"
	}
}

// Boundary is the shared edge between two adjacent plates, A < B.
type Boundary struct {
	A, B      int
	Kind      BoundaryKind
	Intensity float64
	// Length counts shared tile edges.
	Length int
}

// Classify derives the boundary kind and intensity from the drift of a and
// b. The relative drift of a towards b is split along the centroid normal:
// a dominant normal part is convergent when closing and divergent when
// opening, a dominant tangential part is transform.
func Classify(a, b Plate) (BoundaryKind, float64) {
	normal := b.Centroid.Sub(a.Centroid)
	if normal.Len() == 0 {
		normal = mgl64.Vec2{1, 0}
	}
	normal = normal.Normalize()
	rel := a.Drift.Sub(b.Drift)
	along := rel.Dot(normal)
	tangential := rel.Sub(normal.Mul(along)).Len()
	intensity := terrain.Clamp01(rel.Len() / math.Sqrt2)

	switch {
	case rel.Len() == 0 || math.Abs(along) < tangential:
		return Transform, intensity
	case along > 0:
		return Convergent, intensity
	default:
		return Divergent, intensity
	}
}

func findBoundaries(g terrain.Grid, assign []int, plates []Plate) []Boundary {
	lengths := map[[2]int]int{}
	edge := func(p, q int) {
		if p == q {
			return
		}
		if p > q {
			p, q = q, p
		}
		lengths[[2]int{p, q}]++
	}
	for y := range g.H {
		for x := range g.W {
			p := assign[g.Index(x, y)]
			if x+1 < g.W {
				edge(p, assign[g.Index(x+1, y)])
			}
			if y+1 < g.H {
				edge(p, assign[g.Index(x, y+1)])
			}
		}
	}

	out := make([]Boundary, 0, len(lengths))
	for pair, n := range lengths {
		kind, intensity := Classify(plates[pair[0]], plates[pair[1]])
		out = append(out, Boundary{A: pair[0], B: pair[1], Kind: kind, Intensity: intensity, Length: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Boundary returns the boundary between plates p and q.
func (l *Layout) Boundary(p, q int) (Boundary, bool) {
	if p > q {
		p, q = q, p
	}
	i := sort.Search(len(l.Boundaries), func(i int) bool {
		b := l.Boundaries[i]
		return b.A > p || (b.A == p && b.B >= q)
	})
	if i < len(l.Boundaries) && l.Boundaries[i].A == p && l.Boundaries[i].B == q {
		return l.Boundaries[i], true
	}
	return Boundary{}, false
}

// Source is a tile lying on a convergent boundary.
type Source struct {
	Index     int
	Intensity float64
}

// ConvergentSources lists, row-major, every tile with a 4-neighbour across a
// convergent boundary, carrying the strongest such boundary's intensity.
func (l *Layout) ConvergentSources() []Source {
	g := l.Grid
	var out []Source
	var buf []int
	for i, p := range l.Assignment {
		best, found := 0.0, false
		buf = g.Neighbors4(i, buf[:0])
		for _, j := range buf {
			q := l.Assignment[j]
			if q == p {
				continue
			}
			b, ok := l.Boundary(p, q)
			if !ok || b.Kind != Convergent {
				continue
			}
			if !found || b.Intensity > best {
				best, found = b.Intensity, true
			}
		}
		if found {
			out = append(out, Source{Index: i, Intensity: best})
		}
	}
	return out
}
