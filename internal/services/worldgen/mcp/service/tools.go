package service

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/louisbranch/worldgen/internal/services/worldgen/generation"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GenerateWorldInput represents the MCP tool input for world generation.
type GenerateWorldInput struct {
	Seed                 generation.Seed `json:"seed" jsonschema:"root seed as an integer or decimal string; seeds above 2^53 must be strings"`
	Width                int             `json:"width" jsonschema:"grid width in tiles"`
	Height               int             `json:"height" jsonschema:"grid height in tiles"`
	AltitudeLayers       int             `json:"altitude_layers,omitempty" jsonschema:"number of altitude layers, default 1"`
	PlateDensity         *float64        `json:"plate_density,omitempty" jsonschema:"target tiles per tectonic plate"`
	RiverSourceThreshold *float64        `json:"river_source_threshold,omitempty" jsonschema:"lowest elevation a river may start from"`
	SeaLevel             *float64        `json:"sea_level,omitempty" jsonschema:"elevation separating ocean from land"`
	ContinentalFraction  *float64        `json:"continental_fraction,omitempty" jsonschema:"share of plates typed continental"`
	ChunkSize            int             `json:"chunk_size,omitempty" jsonschema:"chunk side in tiles"`
	Catalog              json.RawMessage `json:"catalog,omitempty" jsonschema:"feature catalog document replacing the built-in one"`
}

// generateWorldSchema is inferred from GenerateWorldInput except for the
// seed, which accepts strings, and the catalog, which is a JSON object.
var generateWorldSchema = mustSchema[GenerateWorldInput](map[reflect.Type]*jsonschema.Schema{
	reflect.TypeFor[generation.Seed](): {Types: []string{"integer", "string"}},
	reflect.TypeFor[json.RawMessage](): {Type: "object"},
})

func mustSchema[T any](types map[reflect.Type]*jsonschema.Schema) *jsonschema.Schema {
	s, err := jsonschema.For[T](&jsonschema.ForOptions{TypeSchemas: types})
	if err != nil {
		panic(err)
	}
	return s
}

// GenerateWorldResult represents the MCP tool output for world generation.
type GenerateWorldResult struct {
	WorldKey      string   `json:"world_key" jsonschema:"identifier of the stored world"`
	Seed          string   `json:"seed" jsonschema:"root seed as a decimal string"`
	Checksum      string   `json:"checksum" jsonschema:"whole-grid SHA-256 checksum"`
	Fingerprint   string   `json:"params_fingerprint" jsonschema:"digest of the generation parameters"`
	SchemaVersion int      `json:"schema_version" jsonschema:"schema version of the generated data"`
	Chunks        int      `json:"chunks" jsonschema:"number of chunks"`
	Plates        int      `json:"plates" jsonschema:"number of tectonic plates"`
	Rivers        int      `json:"rivers" jsonschema:"number of rivers"`
	Lakes         int      `json:"lakes" jsonschema:"number of lakes"`
	Features      int      `json:"features" jsonschema:"number of placed features"`
	Warnings      []string `json:"warnings" jsonschema:"degenerate input warnings"`
	Cached        bool     `json:"cached" jsonschema:"whether the world was served from cache"`
}

// WorldTileInput represents the MCP tool input for tile lookup.
type WorldTileInput struct {
	WorldKey string `json:"world_key" jsonschema:"identifier returned by generate_world"`
	X        int    `json:"x" jsonschema:"tile column"`
	Y        int    `json:"y" jsonschema:"tile row"`
	Layer    int    `json:"layer,omitempty" jsonschema:"altitude layer, 0 is the surface"`
}

// WorldTileResult represents the MCP tool output for tile lookup.
type WorldTileResult struct {
	X           int      `json:"x" jsonschema:"tile column"`
	Y           int      `json:"y" jsonschema:"tile row"`
	Layer       int      `json:"layer" jsonschema:"altitude layer"`
	Elevation   float64  `json:"elevation" jsonschema:"elevation in [0,1]"`
	Temperature float64  `json:"temperature" jsonschema:"temperature in [0,1]"`
	Moisture    float64  `json:"moisture" jsonschema:"moisture in [0,1]"`
	Biome       string   `json:"biome" jsonschema:"biome name"`
	Water       string   `json:"water" jsonschema:"water type"`
	Plate       int      `json:"plate" jsonschema:"tectonic plate id"`
	Flow        string   `json:"flow" jsonschema:"drainage direction"`
	Features    []string `json:"features" jsonschema:"ids of features covering the tile"`
}

// GenerateWorldTool defines the MCP tool schema for world generation.
func GenerateWorldTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "generate_world",
		Description: "Generates a deterministic world and returns its checksum and plate, river, lake and feature counts",
		InputSchema: generateWorldSchema,
	}
}

// WorldTileTool defines the MCP tool schema for tile lookup.
func WorldTileTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "world_tile",
		Description: "Returns one tile of a previously generated world",
	}
}

// GenerateWorldHandler executes a world generation request.
func GenerateWorldHandler(gen *generation.Service) mcp.ToolHandlerFor[GenerateWorldInput, GenerateWorldResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GenerateWorldInput) (*mcp.CallToolResult, GenerateWorldResult, error) {
		res, err := gen.Generate(ctx, generation.Request{
			Seed:                 input.Seed,
			Width:                input.Width,
			Height:               input.Height,
			AltitudeLayers:       input.AltitudeLayers,
			PlateDensity:         input.PlateDensity,
			RiverSourceThreshold: input.RiverSourceThreshold,
			SeaLevel:             input.SeaLevel,
			ContinentalFraction:  input.ContinentalFraction,
			ChunkSize:            input.ChunkSize,
			Catalog:              input.Catalog,
		})
		if err != nil {
			return nil, GenerateWorldResult{}, fmt.Errorf("generate world: %w", err)
		}
		rec := res.Record
		warnings := rec.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		return nil, GenerateWorldResult{
			WorldKey:      rec.Key,
			Seed:          fmt.Sprint(rec.Seed),
			Checksum:      rec.Checksum,
			Fingerprint:   rec.Fingerprint,
			SchemaVersion: rec.SchemaVersion,
			Chunks:        res.Chunks,
			Plates:        rec.Plates,
			Rivers:        rec.Rivers,
			Lakes:         rec.Lakes,
			Features:      rec.Features,
			Warnings:      warnings,
			Cached:        res.Cached,
		}, nil
	}
}

// WorldTileHandler looks up one tile of a stored world.
func WorldTileHandler(gen *generation.Service) mcp.ToolHandlerFor[WorldTileInput, WorldTileResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input WorldTileInput) (*mcp.CallToolResult, WorldTileResult, error) {
		tile, err := gen.Tile(ctx, input.WorldKey, input.X, input.Y, input.Layer)
		if err != nil {
			return nil, WorldTileResult{}, fmt.Errorf("world tile: %w", err)
		}
		features := tile.Features
		if features == nil {
			features = []string{}
		}
		return nil, WorldTileResult{
			X:           tile.X,
			Y:           tile.Y,
			Layer:       tile.Layer,
			Elevation:   tile.Elevation,
			Temperature: tile.Temperature,
			Moisture:    tile.Moisture,
			Biome:       tile.Biome.String(),
			Water:       tile.Water.String(),
			Plate:       tile.Plate,
			Flow:        tile.Flow.String(),
			Features:    features,
		}, nil
	}
}
