package world

import (
	"context"
	"fmt"
	"slices"

	"github.com/louisbranch/worldgen/internal/core/terrain"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
)

// Edit overrides selected values of one tile. Nil fields are left alone.
type Edit struct {
	X, Y, Layer int
	Elevation   *float64
	Temperature *float64
	Moisture    *float64
	Biome       *terrain.Biome
	Water       *terrain.WaterType
}

// Delta is an append-only, versioned modification of a grid.
type Delta struct {
	// BaseChecksum must equal the checksum of the grid the delta applies to.
	BaseChecksum [32]byte
	// SchemaVersion tags the resulting grid; it must exceed the base's.
	SchemaVersion int
	// Tick stamps LastModifiedTick on every touched chunk.
	Tick  uint64
	Edits []Edit
}

// ApplyDelta returns a new grid with d applied. The receiver is not
// modified. Only touched chunks are re-encoded.
func (g *Grid) ApplyDelta(ctx context.Context, d Delta) (*Grid, error) {
	if d.BaseChecksum != g.checksum {
		return nil, apperrors.WithMetadata(apperrors.CodeDeltaBaseMismatch,
			"delta base checksum does not match grid", map[string]string{"grid_checksum": g.ChecksumHex()})
	}
	if d.SchemaVersion <= g.schemaVersion {
		return nil, apperrors.WithMetadata(apperrors.CodeDeltaBaseMismatch,
			fmt.Sprintf("delta schema version %d must exceed %d", d.SchemaVersion, g.schemaVersion),
			map[string]string{"schema_version": fmt.Sprint(g.schemaVersion)})
	}

	next := *g
	next.tiles = slices.Clone(g.tiles)
	next.chunks = slices.Clone(g.chunks)
	next.warnings = slices.Clone(g.warnings)
	next.schemaVersion = d.SchemaVersion

	touched := map[ChunkCoord]bool{}
	for _, e := range d.Edits {
		i, ok := next.tileIndex(e.X, e.Y, e.Layer)
		if !ok {
			return nil, apperrors.WithMetadata(apperrors.CodeDeltaOutOfRange,
				fmt.Sprintf("edit at (%d,%d,%d) is outside the grid", e.X, e.Y, e.Layer),
				map[string]string{"x": fmt.Sprint(e.X), "y": fmt.Sprint(e.Y), "layer": fmt.Sprint(e.Layer)})
		}
		if err := e.validate(); err != nil {
			return nil, err
		}
		t := next.tiles[i].clone()
		if e.Elevation != nil {
			t.Elevation = *e.Elevation
		}
		if e.Temperature != nil {
			t.Temperature = *e.Temperature
		}
		if e.Moisture != nil {
			t.Moisture = *e.Moisture
		}
		if e.Biome != nil {
			t.Biome = *e.Biome
		}
		if e.Water != nil {
			t.Water = *e.Water
		}
		next.tiles[i] = t
		touched[ChunkCoord{CX: e.X / g.chunkSize, CY: e.Y / g.chunkSize, Layer: e.Layer}] = true
	}

	for _, c := range next.chunkCoords() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !touched[c] {
			continue
		}
		i, _ := next.chunkIndex(c)
		b := next.chunkBounds(c)
		chunk, err := encodeChunk(c, b, next.chunkTiles(c, b), d.SchemaVersion, d.Tick)
		if err != nil {
			return nil, err
		}
		next.chunks[i] = chunk
	}
	next.checksum = CombineChecksums(next.chunks)
	return &next, nil
}

func (e Edit) validate() error {
	values := []struct {
		name string
		v    *float64
	}{
		{"elevation", e.Elevation},
		{"temperature", e.Temperature},
		{"moisture", e.Moisture},
	}
	for _, f := range values {
		if f.v != nil && (*f.v < 0 || *f.v > 1) {
			return apperrors.WithMetadata(apperrors.CodeDeltaOutOfRange,
				fmt.Sprintf("edit %s %v outside [0,1]", f.name, *f.v), map[string]string{"field": f.name})
		}
	}
	if e.Biome != nil && e.Biome.String() == "unknown" {
		return apperrors.WithMetadata(apperrors.CodeDeltaOutOfRange, "edit biome is not defined", map[string]string{"field": "biome"})
	}
	if e.Water != nil && e.Water.String() == "unknown" {
		return apperrors.WithMetadata(apperrors.CodeDeltaOutOfRange, "edit water type is not defined", map[string]string{"field": "water"})
	}
	return nil
}
