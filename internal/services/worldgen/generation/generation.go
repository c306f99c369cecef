// Package generation serves world generation requests through a world cache.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/worldgen/internal/core/features"
	"github.com/louisbranch/worldgen/internal/core/world"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
	"github.com/louisbranch/worldgen/internal/services/worldgen/storage"
)

// Seed is a world seed that decodes from a JSON number or a decimal string.
// Numbers above 2^53 lose precision in JSON, so large seeds travel as strings.
type Seed uint64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seed) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	if v, err := strconv.ParseUint(text, 10, 64); err == nil {
		*s = Seed(v)
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > 1<<53 {
		return fmt.Errorf("seed %s is not an unsigned integer", text)
	}
	*s = Seed(f)
	return nil
}

// MarshalJSON encodes the seed as a decimal string.
func (s Seed) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(s), 10))), nil
}

// Request is a generation request. Zero-valued optional fields take the
// defaults of world.DefaultParams.
type Request struct {
	Seed                 Seed            `json:"seed"`
	Width                int             `json:"width"`
	Height               int             `json:"height"`
	AltitudeLayers       int             `json:"altitude_layers,omitempty"`
	PlateDensity         *float64        `json:"plate_density,omitempty"`
	RiverSourceThreshold *float64        `json:"river_source_threshold,omitempty"`
	SeaLevel             *float64        `json:"sea_level,omitempty"`
	ContinentalFraction  *float64        `json:"continental_fraction,omitempty"`
	ChunkSize            int             `json:"chunk_size,omitempty"`
	Catalog              json.RawMessage `json:"catalog,omitempty"`
}

// DecodeRequest parses a JSON request, rejecting unknown fields.
func DecodeRequest(data []byte) (Request, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var req Request
	if err := dec.Decode(&req); err != nil {
		return Request{}, apperrors.Wrap(apperrors.CodeInvalidParameter, "decode generation request", err)
	}
	return req, nil
}

// Params resolves the request into generation parameters.
func (r Request) Params() (world.Params, error) {
	p := world.DefaultParams()
	if r.PlateDensity != nil {
		p.PlateDensity = *r.PlateDensity
	}
	if r.RiverSourceThreshold != nil {
		p.RiverSourceThreshold = *r.RiverSourceThreshold
	}
	if r.SeaLevel != nil {
		p.SeaLevel = *r.SeaLevel
	}
	if r.ContinentalFraction != nil {
		p.ContinentalFraction = *r.ContinentalFraction
	}
	if r.ChunkSize != 0 {
		p.ChunkSize = r.ChunkSize
	}
	if len(r.Catalog) > 0 && string(r.Catalog) != "null" {
		cat, err := features.ParseCatalog(r.Catalog)
		if err != nil {
			return world.Params{}, err
		}
		p.FeatureCatalog = cat
	}
	return p, nil
}

func (r Request) layers() int {
	if r.AltitudeLayers == 0 {
		return 1
	}
	return r.AltitudeLayers
}

// Result is the outcome of a generation request.
type Result struct {
	Record storage.WorldRecord
	// Cached reports whether the world was served from the store.
	Cached bool
	Chunks int
}

// GenerateFunc produces a world; world.Generate in production.
type GenerateFunc func(ctx context.Context, seed uint64, width, height, altitudeLayers int, params world.Params) (*world.Grid, error)

// Service generates worlds, caching each one by seed, dimensions and
// parameter fingerprint.
type Service struct {
	store    storage.WorldStore
	generate GenerateFunc
	clock    func() time.Time
}

// NewService creates a generation service. A nil store disables caching.
func NewService(store storage.WorldStore) *Service {
	return &Service{
		store:    store,
		generate: world.Generate,
		clock:    time.Now,
	}
}

// Generate returns the world described by req, generating it on a cache miss.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	if s == nil {
		return Result{}, errors.New("generation service is not configured")
	}
	params, err := req.Params()
	if err != nil {
		return Result{}, err
	}
	seed, layers := uint64(req.Seed), req.layers()
	if err := world.Validate(req.Width, req.Height, layers, params); err != nil {
		return Result{}, err
	}

	key := storage.WorldKey(seed, req.Width, req.Height, layers, params.Fingerprint())
	if s.store != nil {
		rec, err := s.store.GetWorld(ctx, key)
		switch {
		case err == nil:
			return Result{Record: rec, Cached: true, Chunks: chunkCount(rec)}, nil
		case !errors.Is(err, storage.ErrNotFound):
			return Result{}, fmt.Errorf("load cached world: %w", err)
		}
	}

	g, err := s.generate(ctx, seed, req.Width, req.Height, layers, params)
	if err != nil {
		return Result{}, err
	}
	now := time.Now()
	if s.clock != nil {
		now = s.clock()
	}
	rec := storage.Summarize(g, now)
	chunks := g.Chunks()
	if s.store != nil {
		err := s.store.PutWorld(ctx, rec, chunks)
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			log.Printf("world %s stored concurrently", rec.Key)
		case err != nil:
			return Result{}, fmt.Errorf("store world: %w", err)
		}
	}
	return Result{Record: rec, Chunks: len(chunks)}, nil
}

// Chunk returns one stored chunk of the world identified by key.
func (s *Service) Chunk(ctx context.Context, key string, coord world.ChunkCoord) (world.Chunk, error) {
	if s == nil || s.store == nil {
		return world.Chunk{}, errors.New("world store is not configured")
	}
	c, err := s.store.GetChunk(ctx, key, coord)
	if errors.Is(err, storage.ErrNotFound) {
		return world.Chunk{}, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("chunk %s of world %s not found", coord, key),
			map[string]string{"world_key": key, "chunk": coord.String()})
	}
	return c, err
}

// Tile returns one tile of a stored world, decoded from its chunk.
func (s *Service) Tile(ctx context.Context, key string, x, y, layer int) (world.Tile, error) {
	if s == nil || s.store == nil {
		return world.Tile{}, errors.New("world store is not configured")
	}
	rec, err := s.store.GetWorld(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return world.Tile{}, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("world %s not found", key), map[string]string{"world_key": key})
	}
	if err != nil {
		return world.Tile{}, fmt.Errorf("load world: %w", err)
	}
	if x < 0 || x >= rec.Width || y < 0 || y >= rec.Height || layer < 0 || layer >= rec.AltitudeLayers {
		return world.Tile{}, apperrors.WithMetadata(apperrors.CodeInvalidParameter,
			fmt.Sprintf("tile (%d,%d,%d) is outside the %dx%dx%d world", x, y, layer, rec.Width, rec.Height, rec.AltitudeLayers),
			map[string]string{"field": "tile"})
	}
	coord := world.ChunkCoord{CX: x / rec.ChunkSize, CY: y / rec.ChunkSize, Layer: layer}
	c, err := s.Chunk(ctx, key, coord)
	if err != nil {
		return world.Tile{}, err
	}
	tiles, err := world.DecodeChunk(c)
	if err != nil {
		return world.Tile{}, err
	}
	w := c.Bounds.X1 - c.Bounds.X0
	return tiles[(y-c.Bounds.Y0)*w+(x-c.Bounds.X0)], nil
}

func chunkCount(rec storage.WorldRecord) int {
	if rec.ChunkSize <= 0 {
		return 0
	}
	cols := (rec.Width + rec.ChunkSize - 1) / rec.ChunkSize
	rows := (rec.Height + rec.ChunkSize - 1) / rec.ChunkSize
	return cols * rows * rec.AltitudeLayers
}
