package terrain

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestGridNeighbors(t *testing.T) {
	g := Grid{W: 3, H: 3}
	tests := []struct {
		name  string
		index int
		n4    []int
		n8    int
	}{
		{name: "corner", index: 0, n4: []int{1, 3}, n8: 3},
		{name: "edge", index: 1, n4: []int{0, 2, 4}, n8: 5},
		{name: "center", index: 4, n4: []int{1, 3, 5, 7}, n8: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Neighbors4(tt.index, nil)
			if len(got) != len(tt.n4) {
				t.Fatalf("Neighbors4 = %v, want %v", got, tt.n4)
			}
			for i := range got {
				if got[i] != tt.n4[i] {
					t.Fatalf("Neighbors4 = %v, want %v", got, tt.n4)
				}
			}
			if n := len(g.Neighbors8(tt.index, nil)); n != tt.n8 {
				t.Fatalf("len(Neighbors8) = %d, want %d", n, tt.n8)
			}
		})
	}
	if !g.OnBoundary(3) || g.OnBoundary(4) {
		t.Fatal("boundary classification wrong")
	}
	if c := g.Coord(5); c != (Coord{X: 2, Y: 1}) {
		t.Fatalf("Coord(5) = %+v, want {2 1}", c)
	}
}

func TestBiomeClassification(t *testing.T) {
	for _, b := range Biomes() {
		parsed, ok := ParseBiome(b.String())
		if !ok || parsed != b {
			t.Fatalf("ParseBiome(%q) = %v, %v", b.String(), parsed, ok)
		}
	}
	if !BiomeDeepOcean.IsOcean() || BiomeLake.IsOcean() {
		t.Fatal("ocean classification wrong")
	}
	if !BiomeRiver.IsWater() || !BiomeSeabed.IsWater() || BiomeBeach.IsWater() {
		t.Fatal("water classification wrong")
	}
	if _, ok := ParseBiome("unknown"); ok {
		t.Fatal("unknown must not parse")
	}
}

func TestParallelRowsCoversEveryRowOnce(t *testing.T) {
	const h = 77
	var hits [h]int32
	err := ParallelRows(context.Background(), h, func(y0, y1 int) error {
		for y := y0; y < y1; y++ {
			atomic.AddInt32(&hits[y], 1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ParallelRows: %v", err)
	}
	for y, n := range hits {
		if n != 1 {
			t.Fatalf("row %d visited %d times", y, n)
		}
	}
}

func TestParallelRowsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ParallelRows(ctx, 64, func(int, int) error { return nil })
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestFlowRoundTrip(t *testing.T) {
	g := Grid{W: 4, H: 4}
	i := g.Index(1, 1)
	for _, j := range g.Neighbors8(i, nil) {
		f := g.FlowBetween(i, j)
		if f.Terminal() {
			t.Fatalf("FlowBetween(%d,%d) = %v, want a direction", i, j, f)
		}
		if got := g.Downstream(i, f); got != j {
			t.Fatalf("Downstream(%d,%v) = %d, want %d", i, f, got, j)
		}
	}
	if g.Downstream(i, FlowOutlet) != -1 || g.Downstream(0, Flow(0)) != -1 {
		t.Fatal("terminal or off-grid flow must lead nowhere")
	}
}
