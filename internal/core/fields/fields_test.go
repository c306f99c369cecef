package fields

import (
	"context"
	"slices"
	"testing"

	"github.com/louisbranch/worldgen/internal/core/plates"
	"github.com/louisbranch/worldgen/internal/core/stream"
	"github.com/louisbranch/worldgen/internal/core/terrain"
)

func layout(t *testing.T, seed uint64, w, h int) *plates.Layout {
	t.Helper()
	l, err := plates.Partition(context.Background(), plates.Config{
		Width: w, Height: h, Density: 300, ContinentalFraction: plates.DefaultContinentalFraction,
	}, stream.NewFactory(seed).Derive(stream.LabelPlates))
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	return l
}

func TestElevationDeterministicAndBounded(t *testing.T) {
	l := layout(t, 42, 64, 48)
	f := stream.NewFactory(42)
	a, err := Elevation(context.Background(), l, DefaultElevation(), f.Derive(stream.LabelElevation))
	if err != nil {
		t.Fatalf("Elevation: %v", err)
	}
	b, err := Elevation(context.Background(), l, DefaultElevation(), f.Derive(stream.LabelElevation))
	if err != nil {
		t.Fatalf("Elevation: %v", err)
	}
	if !slices.Equal(a, b) {
		t.Fatal("elevation differs for identical inputs")
	}
	for i, v := range a {
		if v < 0 || v > 1 {
			t.Fatalf("elevation[%d] = %v, want within [0,1]", i, v)
		}
	}
}

func TestUpliftOnlyRaises(t *testing.T) {
	l := layout(t, 9, 64, 64)
	if len(l.ConvergentSources()) == 0 {
		t.Skip("layout has no convergent boundary")
	}
	f := stream.NewFactory(9)
	flat := DefaultElevation()
	flat.UpliftStrength = 0
	base, err := Elevation(context.Background(), l, flat, f.Derive(stream.LabelElevation))
	if err != nil {
		t.Fatalf("Elevation: %v", err)
	}
	lifted, err := Elevation(context.Background(), l, DefaultElevation(), f.Derive(stream.LabelElevation))
	if err != nil {
		t.Fatalf("Elevation: %v", err)
	}
	raised := false
	for i := range base {
		if lifted[i] < base[i] {
			t.Fatalf("tile %d lowered by uplift: %v < %v", i, lifted[i], base[i])
		}
		if lifted[i] > base[i] {
			raised = true
		}
	}
	if !raised {
		t.Fatal("uplift changed nothing despite convergent boundaries")
	}
}

func TestUpliftMapNearest(t *testing.T) {
	g := terrain.Grid{W: 20, H: 1}
	m := newUpliftMap(g, []plates.Source{{Index: 0, Intensity: 0.5}, {Index: 10, Intensity: 0.9}}, 8)
	tests := []struct {
		x         int
		wantD     float64
		wantI     float64
		wantFound bool
	}{
		{x: 0, wantD: 0, wantI: 0.5, wantFound: true},
		{x: 5, wantD: 5, wantI: 0.9, wantFound: true},
		{x: 3, wantD: 3, wantI: 0.5, wantFound: true},
		{x: 18, wantFound: false},
	}
	for _, tt := range tests {
		d, intensity, ok := m.nearest(tt.x, 0)
		if ok != tt.wantFound {
			t.Fatalf("nearest(%d) found = %v, want %v", tt.x, ok, tt.wantFound)
		}
		if ok && (d != tt.wantD || intensity != tt.wantI) {
			t.Fatalf("nearest(%d) = %v, %v, want %v, %v", tt.x, d, intensity, tt.wantD, tt.wantI)
		}
	}
}

func TestClimate(t *testing.T) {
	g := terrain.Grid{W: 32, H: 32}
	elevation := make([]float64, g.Len())
	for i := range elevation {
		elevation[i] = 0.5
	}
	// A sea strip on the left edge.
	for y := range g.H {
		elevation[g.Index(0, y)] = 0.1
	}
	cfg := DefaultClimate(0.4)
	c, err := ComputeClimate(context.Background(), g, elevation, cfg, stream.NewFactory(1).Derive(stream.LabelClimate))
	if err != nil {
		t.Fatalf("ComputeClimate: %v", err)
	}
	for i := range elevation {
		if c.Temperature[i] < 0 || c.Temperature[i] > 1 || c.Moisture[i] < 0 || c.Moisture[i] > 1 {
			t.Fatalf("tile %d climate out of range: t=%v m=%v", i, c.Temperature[i], c.Moisture[i])
		}
	}
	if c.Moisture[g.Index(0, 5)] != 1 {
		t.Fatalf("water moisture = %v, want 1", c.Moisture[g.Index(0, 5)])
	}
	equator := c.Temperature[g.Index(10, g.H/2)]
	pole := c.Temperature[g.Index(10, 0)]
	if pole >= equator {
		t.Fatalf("pole temperature %v not below equator %v", pole, equator)
	}

	high := slices.Clone(elevation)
	for i := range high {
		if high[i] >= cfg.SeaLevel {
			high[i] = 0.9
		}
	}
	hc, err := ComputeClimate(context.Background(), g, high, cfg, stream.NewFactory(1).Derive(stream.LabelClimate))
	if err != nil {
		t.Fatalf("ComputeClimate: %v", err)
	}
	if hc.Temperature[g.Index(10, g.H/2)] >= equator {
		t.Fatal("higher elevation did not cool the tile")
	}
}

func TestWaterDistance(t *testing.T) {
	g := terrain.Grid{W: 5, H: 1}
	got := WaterDistance(g, []float64{0.1, 0.5, 0.5, 0.5, 0.5}, 0.4)
	want := []int{0, 1, 2, 3, 4}
	if !slices.Equal(got, want) {
		t.Fatalf("WaterDistance = %v, want %v", got, want)
	}
	dry := WaterDistance(g, []float64{0.5, 0.5, 0.5, 0.5, 0.5}, 0.4)
	for _, d := range dry {
		if d != -1 {
			t.Fatalf("WaterDistance on dry grid = %v, want all -1", dry)
		}
	}
}
