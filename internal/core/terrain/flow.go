package terrain

// Flow is a tile's downstream direction: an index into Offsets8, or one of
// the terminal markers.
type Flow int8

const (
	// FlowOutlet marks water leaving the routed network: ocean tiles and
	// land tiles on the grid edge.
	FlowOutlet Flow = -1
	// FlowSink marks a tile with no neighbour to drain into.
	FlowSink Flow = -2
	// FlowNone marks a tile outside the routed surface, such as a stratum.
	FlowNone Flow = -3
)

// FlowBetween returns the direction from tile i to its neighbour j.
func (g Grid) FlowBetween(i, j int) Flow {
	dx := j%g.W - i%g.W
	dy := j/g.W - i/g.W
	for d, o := range Offsets8 {
		if o[0] == dx && o[1] == dy {
			return Flow(d)
		}
	}
	return FlowSink
}

// Downstream returns the index flow f leads to from tile i, or -1 for
// terminal markers.
func (g Grid) Downstream(i int, f Flow) int {
	if f < 0 || int(f) >= len(Offsets8) {
		return -1
	}
	o := Offsets8[f]
	x, y := i%g.W+o[0], i/g.W+o[1]
	if !g.In(x, y) {
		return -1
	}
	return g.Index(x, y)
}

// Terminal reports whether f is a terminal marker.
func (f Flow) Terminal() bool { return f < 0 }

func (f Flow) String() string {
	switch f {
	case FlowOutlet:
		return "outlet"
	case FlowSink:
		return "sink"
	case FlowNone:
		return "none"
	}
	names := [8]string{"nw", "n", "ne", "w", "e", "sw", "s", "se"}
	if int(f) < len(names) {
		return names[f]
	}
	return "unknown"
}
