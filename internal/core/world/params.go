package world

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/louisbranch/worldgen/internal/core/features"
	"github.com/louisbranch/worldgen/internal/core/plates"
	"github.com/louisbranch/worldgen/internal/core/rivers"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
)

const (
	// MaxDimension bounds width and height.
	MaxDimension = 8192
	// MaxAltitudeLayers bounds the number of altitude layers.
	MaxAltitudeLayers = 16
	// DefaultChunkSize is the side of a square chunk in tiles.
	DefaultChunkSize = 64
	// DefaultSeaLevel is the default elevation separating ocean from land.
	DefaultSeaLevel = 0.4
)

// Params enumerates the recognised generation options.
type Params struct {
	// PlateDensity is the target number of tiles per plate.
	PlateDensity float64
	// RiverSourceThreshold is the lowest elevation a river may start from.
	RiverSourceThreshold float64
	// FeatureCatalog lists the placeable feature kinds. Nil places none.
	FeatureCatalog *features.Catalog
	// SeaLevel separates ocean from land, within [0, 1].
	SeaLevel float64

	ContinentalFraction float64
	// MinPlateTiles is the smallest plate kept. Zero derives it from density;
	// plates never drop below two tiles.
	MinPlateTiles     int
	PlateauTolerance  float64
	TieBreakMagnitude float64
	ChunkSize         int
	TilesPerFeature   int
}

// DefaultParams returns the default generation options.
func DefaultParams() Params {
	r := rivers.DefaultConfig(DefaultSeaLevel)
	return Params{
		PlateDensity:         plates.DefaultDensity,
		RiverSourceThreshold: r.SourceThreshold,
		FeatureCatalog:       features.DefaultCatalog(),
		SeaLevel:             DefaultSeaLevel,
		ContinentalFraction:  plates.DefaultContinentalFraction,
		PlateauTolerance:     r.PlateauTolerance,
		TieBreakMagnitude:    r.TieBreak,
		ChunkSize:            DefaultChunkSize,
		TilesPerFeature:      features.DefaultTilesPerFeature,
	}
}

func invalid(field, msg string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidParameter, fmt.Sprintf("%s %s", field, msg),
		map[string]string{"field": field})
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

// Validate rejects requests before any computation begins.
func Validate(width, height, altitudeLayers int, p Params) error {
	switch {
	case width <= 0 || width > MaxDimension:
		return invalid("width", fmt.Sprintf("must be within [1,%d], got %d", MaxDimension, width))
	case height <= 0 || height > MaxDimension:
		return invalid("height", fmt.Sprintf("must be within [1,%d], got %d", MaxDimension, height))
	case altitudeLayers <= 0 || altitudeLayers > MaxAltitudeLayers:
		return invalid("altitude_layers", fmt.Sprintf("must be within [1,%d], got %d", MaxAltitudeLayers, altitudeLayers))
	case !(p.PlateDensity > 0) || math.IsInf(p.PlateDensity, 0):
		return invalid("plate_density", "must be positive, zero plates would be produced")
	case !unit(p.SeaLevel):
		return invalid("sea_level", fmt.Sprintf("must be within [0,1], got %v", p.SeaLevel))
	case !unit(p.RiverSourceThreshold):
		return invalid("river_source_threshold", fmt.Sprintf("must be within [0,1], got %v", p.RiverSourceThreshold))
	case !unit(p.ContinentalFraction):
		return invalid("continental_fraction", fmt.Sprintf("must be within [0,1], got %v", p.ContinentalFraction))
	case p.MinPlateTiles < 0:
		return invalid("min_plate_tiles", "must not be negative")
	case p.PlateauTolerance < 0:
		return invalid("plateau_tolerance", "must not be negative")
	case p.TieBreakMagnitude < 0 || (p.TieBreakMagnitude > 0 && p.TieBreakMagnitude >= p.PlateauTolerance):
		return invalid("tie_break_magnitude", "must be non-negative and below the plateau tolerance")
	case p.ChunkSize <= 0 || p.ChunkSize > MaxDimension:
		return invalid("chunk_size", fmt.Sprintf("must be within [1,%d], got %d", MaxDimension, p.ChunkSize))
	case p.TilesPerFeature <= 0:
		return invalid("tiles_per_feature", "must be positive")
	}
	return nil
}

// paramsDoc is the canonical form hashed into the fingerprint.
type paramsDoc struct {
	PlateDensity         float64 `cbor:"1,keyasint"`
	RiverSourceThreshold float64 `cbor:"2,keyasint"`
	Catalog              []byte  `cbor:"3,keyasint"`
	SeaLevel             float64 `cbor:"4,keyasint"`
	ContinentalFraction  float64 `cbor:"5,keyasint"`
	MinPlateTiles        int     `cbor:"6,keyasint"`
	PlateauTolerance     float64 `cbor:"7,keyasint"`
	TieBreakMagnitude    float64 `cbor:"8,keyasint"`
	ChunkSize            int     `cbor:"9,keyasint"`
	TilesPerFeature      int     `cbor:"10,keyasint"`
}

// Fingerprint returns a stable hex digest of the parameters. Equal
// fingerprints generate equal worlds for the same seed and dimensions.
func (p Params) Fingerprint() string {
	doc := paramsDoc{
		PlateDensity:         p.PlateDensity,
		RiverSourceThreshold: p.RiverSourceThreshold,
		SeaLevel:             p.SeaLevel,
		ContinentalFraction:  p.ContinentalFraction,
		MinPlateTiles:        p.MinPlateTiles,
		PlateauTolerance:     p.PlateauTolerance,
		TieBreakMagnitude:    p.TieBreakMagnitude,
		ChunkSize:            p.ChunkSize,
		TilesPerFeature:      p.TilesPerFeature,
	}
	if p.FeatureCatalog != nil {
		doc.Catalog = p.FeatureCatalog.Canonical()
	}
	data, err := encMode.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("encode params: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
