package world

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/worldgen/internal/core/biome"
	"github.com/louisbranch/worldgen/internal/core/features"
	"github.com/louisbranch/worldgen/internal/core/fields"
	"github.com/louisbranch/worldgen/internal/core/plates"
	"github.com/louisbranch/worldgen/internal/core/rivers"
	"github.com/louisbranch/worldgen/internal/core/stream"
	"github.com/louisbranch/worldgen/internal/core/terrain"
)

var tracer = otel.Tracer("github.com/louisbranch/worldgen/internal/core/world")

const (
	// groundTemperature is the constant temperature strata blend towards.
	groundTemperature = 0.5
	// strataBlend is the share of the way to ground temperature per layer.
	strataBlend = 0.35
	// strataDrying multiplies moisture once per layer of depth.
	strataDrying = 0.6
)

// hooks lets tests force intermediate fields.
type hooks struct {
	elevation func(g terrain.Grid, elevation []float64)
}

// Generate builds the world for seed. Identical arguments produce
// bit-identical grids. Parameters are validated before any work starts; once
// they pass, only cancellation of ctx can fail the call, and no partial grid
// is ever returned.
func Generate(ctx context.Context, seed uint64, width, height, altitudeLayers int, params Params) (*Grid, error) {
	return generate(ctx, seed, width, height, altitudeLayers, params, hooks{})
}

func generate(ctx context.Context, seed uint64, width, height, altitudeLayers int, params Params, hk hooks) (_ *Grid, err error) {
	ctx, span := tracer.Start(ctx, "world.Generate", trace.WithAttributes(
		attribute.Int64("worldgen.seed", int64(seed)),
		attribute.Int("worldgen.width", width),
		attribute.Int("worldgen.height", height),
		attribute.Int("worldgen.layers", altitudeLayers),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := Validate(width, height, altitudeLayers, params); err != nil {
		return nil, err
	}

	f := stream.NewFactory(seed)
	sg := terrain.Grid{W: width, H: height}
	grid := &Grid{
		seed:          seed,
		width:         width,
		height:        height,
		layers:        altitudeLayers,
		params:        params,
		chunkSize:     params.ChunkSize,
		schemaVersion: BaseSchemaVersion,
	}

	var layout *plates.Layout
	err = phase(ctx, "plates", func(ctx context.Context) error {
		layout, err = plates.Partition(ctx, plates.Config{
			Width:               width,
			Height:              height,
			Density:             params.PlateDensity,
			ContinentalFraction: params.ContinentalFraction,
			MinPlateTiles:       params.MinPlateTiles,
		}, f.Derive(stream.LabelPlates))
		return err
	})
	if err != nil {
		return nil, err
	}
	grid.warnings = append(grid.warnings, layout.Warnings...)

	var elevation []float64
	err = phase(ctx, "elevation", func(ctx context.Context) error {
		elevation, err = fields.Elevation(ctx, layout, fields.DefaultElevation(), f.Derive(stream.LabelElevation))
		if err == nil && hk.elevation != nil {
			hk.elevation(sg, elevation)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var climate *fields.Climate
	err = phase(ctx, "climate", func(ctx context.Context) error {
		climate, err = fields.ComputeClimate(ctx, sg, elevation, fields.DefaultClimate(params.SeaLevel), f.Derive(stream.LabelClimate))
		return err
	})
	if err != nil {
		return nil, err
	}

	var network *rivers.Network
	err = phase(ctx, "rivers", func(ctx context.Context) error {
		network, err = rivers.Route(ctx, sg, elevation, rivers.Config{
			SeaLevel:         params.SeaLevel,
			SourceThreshold:  params.RiverSourceThreshold,
			PlateauTolerance: params.PlateauTolerance,
			TieBreak:         params.TieBreakMagnitude,
		}, f.Derive(stream.LabelRivers))
		return err
	})
	if err != nil {
		return nil, err
	}

	in := biome.Input{
		Grid:        sg,
		Elevation:   elevation,
		Temperature: climate.Temperature,
		Moisture:    climate.Moisture,
		Water:       network.Water,
	}
	var biomes []terrain.Biome
	err = phase(ctx, "biomes", func(ctx context.Context) error {
		biomes, err = biome.Classify(ctx, in, biome.DefaultConfig(params.SeaLevel))
		return err
	})
	if err != nil {
		return nil, err
	}
	water := make([]terrain.WaterType, sg.Len())
	for i := range water {
		water[i] = in.WaterType(i, params.SeaLevel)
	}

	var placement *features.Placement
	err = phase(ctx, "features", func(ctx context.Context) error {
		placement, err = features.Place(ctx, features.Input{
			Grid:      sg,
			Seed:      seed,
			Biome:     biomes,
			Elevation: elevation,
			Water:     water,
		}, params.FeatureCatalog, features.Config{TilesPerFeature: params.TilesPerFeature}, f.Derive(stream.LabelFeatures))
		return err
	})
	if err != nil {
		return nil, err
	}
	if placement.Skipped > 0 {
		grid.warnings = append(grid.warnings, fmt.Sprintf(
			"degenerate feature placement: %d of %d instances skipped",
			placement.Skipped, placement.Skipped+len(placement.Features)))
	}

	err = phase(ctx, "assemble", func(context.Context) error {
		grid.tiles = assemble(grid, layout, elevation, climate, network, biomes, water, placement)
		grid.plates = layout.Plates
		grid.boundaries = layout.Boundaries
		grid.rivers = network.Rivers
		grid.lakes = network.Lakes
		grid.features = placement.Features
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = phase(ctx, "chunks", func(ctx context.Context) error {
		grid.chunks, err = buildChunks(ctx, grid)
		return err
	})
	if err != nil {
		return nil, err
	}
	grid.checksum = CombineChecksums(grid.chunks)

	if err := grid.Degraded(); err != nil {
		log.Printf("warning: seed %d: %v", seed, err)
	}
	span.SetAttributes(
		attribute.Int("worldgen.plates", len(grid.plates)),
		attribute.Int("worldgen.rivers", len(grid.rivers)),
		attribute.Int("worldgen.features", len(grid.features)),
		attribute.String("worldgen.checksum", grid.ChecksumHex()),
	)
	return grid, nil
}

// phase runs one pipeline step in its own span. Cancellation is observed
// only here, between steps.
func phase(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	ctx, span := tracer.Start(ctx, "world."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func assemble(grid *Grid, layout *plates.Layout, elevation []float64, climate *fields.Climate,
	network *rivers.Network, biomes []terrain.Biome, water []terrain.WaterType, placement *features.Placement) []Tile {
	sg := grid.surface()
	n := sg.Len()
	tiles := make([]Tile, n*grid.layers)

	occupants := make([][]string, n)
	for _, f := range placement.Features {
		for _, c := range f.Tiles {
			i := sg.Index(c.X, c.Y)
			occupants[i] = append(occupants[i], f.ID)
		}
	}

	for i := range n {
		c := sg.Coord(i)
		tiles[i] = Tile{
			X:           c.X,
			Y:           c.Y,
			Elevation:   elevation[i],
			Temperature: climate.Temperature[i],
			Moisture:    climate.Moisture[i],
			Biome:       biomes[i],
			Water:       water[i],
			Plate:       layout.Assignment[i],
			Flow:        network.Flow[i],
			Features:    occupants[i],
		}
	}
	for layer := 1; layer < grid.layers; layer++ {
		blend := min(1, strataBlend*float64(layer))
		dry := 1.0
		for range layer {
			dry *= strataDrying
		}
		for i := range n {
			s := tiles[i]
			tiles[layer*n+i] = Tile{
				X:           s.X,
				Y:           s.Y,
				Layer:       layer,
				Elevation:   s.Elevation,
				Temperature: s.Temperature + (groundTemperature-s.Temperature)*blend,
				Moisture:    s.Moisture * dry,
				Biome:       biome.Stratum(s.Biome),
				Water:       terrain.WaterNone,
				Plate:       s.Plate,
				Flow:        terrain.FlowNone,
			}
		}
	}
	return tiles
}

// chunkTiles copies the row-major tiles of one chunk out of the grid.
func (g *Grid) chunkTiles(c ChunkCoord, b Bounds) []Tile {
	out := make([]Tile, 0, b.Len())
	for y := b.Y0; y < b.Y1; y++ {
		for x := b.X0; x < b.X1; x++ {
			i, _ := g.tileIndex(x, y, c.Layer)
			out = append(out, g.tiles[i])
		}
	}
	return out
}

// buildChunks encodes every chunk. Chunks are independent, so they are
// encoded concurrently into fixed slots.
func buildChunks(ctx context.Context, g *Grid) ([]Chunk, error) {
	coords := g.chunkCoords()
	chunks := make([]Chunk, len(coords))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range coords {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b := g.chunkBounds(c)
			chunk, err := encodeChunk(c, b, g.chunkTiles(c, b), g.schemaVersion, 0)
			if err != nil {
				return err
			}
			chunks[i] = chunk
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}
