// Package world assembles the generation phases into an immutable world grid
// and partitions it into checksummed chunks.
//
// A Grid is built once by Generate and never changes afterwards. Accessors
// return copies. The only way to derive a modified world is ApplyDelta, which
// returns a new Grid tagged with the delta's schema version.
package world

import (
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/louisbranch/worldgen/internal/core/features"
	"github.com/louisbranch/worldgen/internal/core/plates"
	"github.com/louisbranch/worldgen/internal/core/rivers"
	"github.com/louisbranch/worldgen/internal/core/terrain"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
)

// Tile is one cell of one altitude layer.
type Tile struct {
	X, Y, Layer int
	Elevation   float64
	Temperature float64
	Moisture    float64
	Biome       terrain.Biome
	Water       terrain.WaterType
	Plate       int
	Flow        terrain.Flow
	// Features holds the ids of the regional features covering the tile.
	Features []string
}

func (t Tile) clone() Tile {
	t.Features = slices.Clone(t.Features)
	return t
}

// Grid is a generated world.
type Grid struct {
	seed          uint64
	width         int
	height        int
	layers        int
	params        Params
	chunkSize     int
	tiles         []Tile
	plates        []plates.Plate
	boundaries    []plates.Boundary
	rivers        []rivers.River
	lakes         []rivers.Lake
	features      []features.Feature
	chunks        []Chunk
	checksum      [32]byte
	schemaVersion int
	warnings      []string
}

// Seed returns the root seed.
func (g *Grid) Seed() uint64 { return g.seed }

// Width returns the grid width in tiles.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in tiles.
func (g *Grid) Height() int { return g.height }

// AltitudeLayers returns the number of layers; layer 0 is the surface.
func (g *Grid) AltitudeLayers() int { return g.layers }

// Params returns the generation parameters.
func (g *Grid) Params() Params { return g.params }

// SchemaVersion returns the version the grid's data was last written at.
func (g *Grid) SchemaVersion() int { return g.schemaVersion }

// Checksum returns the whole-grid checksum.
func (g *Grid) Checksum() [32]byte { return g.checksum }

// ChecksumHex returns the whole-grid checksum as lowercase hex.
func (g *Grid) ChecksumHex() string { return hex.EncodeToString(g.checksum[:]) }

// Warnings returns the degenerate-input notices raised during generation.
func (g *Grid) Warnings() []string { return slices.Clone(g.warnings) }

// Degraded reports the warnings as one DEGENERATE_INPUT error. It is nil when
// generation ran without degrading. The grid is valid either way.
func (g *Grid) Degraded() error {
	if len(g.warnings) == 0 {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeDegenerateInput, strings.Join(g.warnings, "; "), map[string]string{
		"seed":     strconv.FormatUint(g.seed, 10),
		"warnings": strconv.Itoa(len(g.warnings)),
	})
}

func (g *Grid) surface() terrain.Grid { return terrain.Grid{W: g.width, H: g.height} }

func (g *Grid) tileIndex(x, y, layer int) (int, bool) {
	if x < 0 || y < 0 || layer < 0 || x >= g.width || y >= g.height || layer >= g.layers {
		return 0, false
	}
	return (layer*g.height+y)*g.width + x, true
}

// Tile returns the tile at (x, y, layer).
func (g *Grid) Tile(x, y, layer int) (Tile, bool) {
	i, ok := g.tileIndex(x, y, layer)
	if !ok {
		return Tile{}, false
	}
	return g.tiles[i].clone(), true
}

// Plates returns the tectonic plates ordered by id.
func (g *Grid) Plates() []plates.Plate {
	out := slices.Clone(g.plates)
	for i := range out {
		out[i].Cells = slices.Clone(out[i].Cells)
	}
	return out
}

// Boundaries returns the plate boundaries ordered by plate pair.
func (g *Grid) Boundaries() []plates.Boundary { return slices.Clone(g.boundaries) }

// Rivers returns the traced rivers ordered by id.
func (g *Grid) Rivers() []rivers.River {
	out := slices.Clone(g.rivers)
	for i := range out {
		out[i].Tiles = slices.Clone(out[i].Tiles)
		out[i].Lakes = slices.Clone(out[i].Lakes)
	}
	return out
}

// Lakes returns the lakes ordered by id.
func (g *Grid) Lakes() []rivers.Lake {
	out := slices.Clone(g.lakes)
	for i := range out {
		out[i].Tiles = slices.Clone(out[i].Tiles)
	}
	return out
}

// Features returns the placed regional features in placement order.
func (g *Grid) Features() []features.Feature {
	out := slices.Clone(g.features)
	for i := range out {
		out[i].Tiles = slices.Clone(out[i].Tiles)
	}
	return out
}

// Chunks returns every chunk ordered by layer, row, column.
func (g *Grid) Chunks() []Chunk {
	out := make([]Chunk, len(g.chunks))
	for i, c := range g.chunks {
		out[i] = c.clone()
	}
	return out
}

// Chunk returns the chunk at coord.
func (g *Grid) Chunk(coord ChunkCoord) (Chunk, bool) {
	i, ok := g.chunkIndex(coord)
	if !ok {
		return Chunk{}, false
	}
	return g.chunks[i].clone(), true
}

// ChunkSize returns the side of a chunk in tiles.
func (g *Grid) ChunkSize() int { return g.chunkSize }

// ChunkColumns returns the number of chunks across and down one layer.
func (g *Grid) ChunkColumns() (int, int) {
	return ceilDiv(g.width, g.chunkSize), ceilDiv(g.height, g.chunkSize)
}

func (g *Grid) chunkIndex(c ChunkCoord) (int, bool) {
	cw, ch := g.ChunkColumns()
	if c.CX < 0 || c.CY < 0 || c.Layer < 0 || c.CX >= cw || c.CY >= ch || c.Layer >= g.layers {
		return 0, false
	}
	return (c.Layer*ch+c.CY)*cw + c.CX, true
}

func (g *Grid) chunkBounds(c ChunkCoord) Bounds {
	return Bounds{
		X0: c.CX * g.chunkSize,
		Y0: c.CY * g.chunkSize,
		X1: min((c.CX+1)*g.chunkSize, g.width),
		Y1: min((c.CY+1)*g.chunkSize, g.height),
	}
}

// chunkCoords lists every chunk coordinate in canonical order.
func (g *Grid) chunkCoords() []ChunkCoord {
	cw, ch := g.ChunkColumns()
	out := make([]ChunkCoord, 0, cw*ch*g.layers)
	for layer := range g.layers {
		for cy := range ch {
			for cx := range cw {
				out = append(out, ChunkCoord{CX: cx, CY: cy, Layer: layer})
			}
		}
	}
	return out
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }
