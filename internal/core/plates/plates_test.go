package plates

import (
	"context"
	"math"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/louisbranch/worldgen/internal/core/stream"
	"github.com/louisbranch/worldgen/internal/core/terrain"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
)

func partition(t *testing.T, seed uint64, cfg Config) *Layout {
	t.Helper()
	l, err := Partition(context.Background(), cfg, stream.NewFactory(seed).Derive(stream.LabelPlates))
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	return l
}

func TestPartitionValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero width", cfg: Config{Width: 0, Height: 4, Density: 10}},
		{name: "zero density", cfg: Config{Width: 4, Height: 4, Density: 0}},
		{name: "negative density", cfg: Config{Width: 4, Height: 4, Density: -5}},
		{name: "fraction above one", cfg: Config{Width: 4, Height: 4, Density: 4, ContinentalFraction: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Partition(context.Background(), tt.cfg, stream.NewFactory(1).Derive(stream.LabelPlates))
			if !apperrors.HasCode(err, apperrors.CodeInvalidParameter) {
				t.Fatalf("err = %v, want INVALID_PARAMETER", err)
			}
		})
	}
}

func TestPartitionDeterministic(t *testing.T) {
	cfg := Config{Width: 96, Height: 64, Density: 400, ContinentalFraction: DefaultContinentalFraction}
	a := partition(t, 42, cfg)
	b := partition(t, 42, cfg)
	if !slices.Equal(a.Assignment, b.Assignment) {
		t.Fatal("assignments differ for identical seeds")
	}
	if len(a.Plates) != len(b.Plates) {
		t.Fatalf("plate counts %d and %d differ", len(a.Plates), len(b.Plates))
	}
	for i := range a.Plates {
		if a.Plates[i].Type != b.Plates[i].Type || a.Plates[i].Drift != b.Plates[i].Drift {
			t.Fatalf("plate %d differs: %+v vs %+v", i, a.Plates[i], b.Plates[i])
		}
	}
}

func TestPartitionInvariants(t *testing.T) {
	cfg := Config{Width: 80, Height: 60, Density: 300, ContinentalFraction: DefaultContinentalFraction}
	l := partition(t, 7, cfg)
	g := l.Grid

	total := 0
	for _, p := range l.Plates {
		if p.Tiles < cfg.minTiles() {
			t.Fatalf("plate %d has %d tiles, below minimum %d", p.ID, p.Tiles, cfg.minTiles())
		}
		if p.Drift.X() < -maxDrift || p.Drift.X() > maxDrift || p.Drift.Y() < -maxDrift || p.Drift.Y() > maxDrift {
			t.Fatalf("plate %d drift %v out of range", p.ID, p.Drift)
		}
		spanned := 0
		for _, s := range p.Cells {
			for x := s.X0; x < s.X1; x++ {
				if l.PlateAt(x, s.Y) != p.ID {
					t.Fatalf("span %+v of plate %d covers tile of plate %d", s, p.ID, l.PlateAt(x, s.Y))
				}
			}
			spanned += s.X1 - s.X0
		}
		if spanned != p.Tiles {
			t.Fatalf("plate %d spans cover %d tiles, want %d", p.ID, spanned, p.Tiles)
		}
		total += p.Tiles
	}
	if total != g.Len() {
		t.Fatalf("plates cover %d tiles, want %d", total, g.Len())
	}

	for _, c := range components(g, l.Assignment) {
		for _, other := range components(g, l.Assignment) {
			if other.plate == c.plate && other.tiles[0] != c.tiles[0] {
				t.Fatalf("plate %d is not contiguous", c.plate)
			}
		}
	}

	for _, b := range l.Boundaries {
		if b.A >= b.B {
			t.Fatalf("boundary %+v not ordered", b)
		}
		if b.Intensity < 0 || b.Intensity > 1 {
			t.Fatalf("boundary %+v intensity out of range", b)
		}
		if b.Length <= 0 {
			t.Fatalf("boundary %+v has no shared edges", b)
		}
		if got, ok := l.Boundary(b.B, b.A); !ok || got != b {
			t.Fatalf("Boundary(%d,%d) = %+v, %v", b.B, b.A, got, ok)
		}
	}
}

func TestMinPlateTilesFloor(t *testing.T) {
	tests := []struct {
		name     string
		minTiles int
	}{
		{name: "one", minTiles: 1},
		{name: "derived", minTiles: 0},
		{name: "two", minTiles: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := partition(t, 11, Config{Width: 6, Height: 6, Density: 1, ContinentalFraction: 0.7, MinPlateTiles: tt.minTiles})
			if len(l.Plates) < 2 {
				t.Fatalf("plates = %d, want several", len(l.Plates))
			}
			for _, p := range l.Plates {
				if p.Tiles < 2 {
					t.Fatalf("plate %d has %d tiles, want at least 2", p.ID, p.Tiles)
				}
			}
		})
	}
}

func TestContinentalRatioOnLargeGrid(t *testing.T) {
	if testing.Short() {
		t.Skip("large grid")
	}
	l := partition(t, 2024, Config{Width: 512, Height: 512, Density: DefaultDensity, ContinentalFraction: DefaultContinentalFraction})
	continental := 0
	for _, p := range l.Plates {
		if p.Type == terrain.Continental {
			continental++
		}
	}
	ratio := float64(continental) / float64(len(l.Plates))
	if math.Abs(ratio-0.7) > 0.1 {
		t.Fatalf("continental ratio = %.3f over %d plates, want 0.7 +/- 0.1", ratio, len(l.Plates))
	}
}

func TestSinglePlateWorld(t *testing.T) {
	l := partition(t, 3, Config{Width: 16, Height: 16, Density: 1e9, ContinentalFraction: 0})
	if len(l.Plates) != 1 {
		t.Fatalf("plates = %d, want 1", len(l.Plates))
	}
	if l.Plates[0].Type != terrain.Continental {
		t.Fatalf("single plate type = %v, want continental", l.Plates[0].Type)
	}
	if len(l.Boundaries) != 0 {
		t.Fatalf("boundaries = %d, want 0", len(l.Boundaries))
	}
	if len(l.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", l.Warnings)
	}
}

func TestDegenerateGridWarns(t *testing.T) {
	l := partition(t, 5, Config{Width: 2, Height: 2, Density: 1, ContinentalFraction: DefaultContinentalFraction})
	if len(l.Plates) > 2 {
		t.Fatalf("plates = %d, want at most 2 with minimum size 2", len(l.Plates))
	}
	if len(l.Warnings) == 0 {
		t.Fatal("expected a degenerate layout warning")
	}
}

func TestClassify(t *testing.T) {
	a := Plate{Centroid: mgl64.Vec2{0, 0}}
	b := Plate{Centroid: mgl64.Vec2{10, 0}}
	tests := []struct {
		name   string
		da, db mgl64.Vec2
		want   BoundaryKind
	}{
		{name: "closing", da: mgl64.Vec2{0.5, 0}, db: mgl64.Vec2{-0.5, 0}, want: Convergent},
		{name: "opening", da: mgl64.Vec2{-0.4, 0}, db: mgl64.Vec2{0.4, 0}, want: Divergent},
		{name: "sliding", da: mgl64.Vec2{0, 0.5}, db: mgl64.Vec2{0, -0.5}, want: Transform},
		{name: "still", want: Transform},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.Drift, b.Drift = tt.da, tt.db
			kind, intensity := Classify(a, b)
			if kind != tt.want {
				t.Fatalf("Classify = %v, want %v", kind, tt.want)
			}
			if back, _ := Classify(b, a); back != kind {
				t.Fatalf("Classify is not symmetric: %v vs %v", kind, back)
			}
			if intensity < 0 || intensity > 1 {
				t.Fatalf("intensity = %v, want within [0,1]", intensity)
			}
		})
	}
}

func TestConvergentSourcesLieOnConvergentBoundaries(t *testing.T) {
	l := partition(t, 11, Config{Width: 64, Height: 64, Density: 256, ContinentalFraction: DefaultContinentalFraction})
	for _, s := range l.ConvergentSources() {
		p := l.Assignment[s.Index]
		found := false
		for _, j := range l.Grid.Neighbors4(s.Index, nil) {
			if b, ok := l.Boundary(p, l.Assignment[j]); ok && b.Kind == Convergent && b.Intensity == s.Intensity {
				found = true
			}
		}
		if !found {
			t.Fatalf("source %+v has no matching convergent neighbour", s)
		}
	}
}
