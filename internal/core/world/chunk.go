package world

import (
	"bytes"
	"compress/zlib"
	"crypto/sha256"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/louisbranch/worldgen/internal/core/terrain"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
)

const (
	// BaseSchemaVersion tags freshly generated data.
	BaseSchemaVersion = 1
	// ChunkFormat is the chunk body layout version.
	ChunkFormat = 1

	quantScale = math.MaxUint16
)

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

// ChunkCoord addresses a chunk.
type ChunkCoord struct {
	CX    int `cbor:"1,keyasint" json:"cx"`
	CY    int `cbor:"2,keyasint" json:"cy"`
	Layer int `cbor:"3,keyasint" json:"layer"`
}

func (c ChunkCoord) String() string { return fmt.Sprintf("L%d/%d,%d", c.Layer, c.CX, c.CY) }

// Bounds is the half-open tile rectangle [X0, X1) x [Y0, Y1).
type Bounds struct {
	X0 int `cbor:"1,keyasint"`
	Y0 int `cbor:"2,keyasint"`
	X1 int `cbor:"3,keyasint"`
	Y1 int `cbor:"4,keyasint"`
}

// Len returns the number of tiles inside the bounds.
func (b Bounds) Len() int { return (b.X1 - b.X0) * (b.Y1 - b.Y0) }

// Chunk is the persistence unit: a compressed tile range plus its checksum.
type Chunk struct {
	Coord            ChunkCoord
	Bounds           Bounds
	SchemaVersion    int
	LastModifiedTick uint64
	// Checksum is SHA-256 over the uncompressed body.
	Checksum [32]byte
	// Payload is the zlib-compressed body.
	Payload []byte
}

func (c Chunk) clone() Chunk {
	c.Payload = slices.Clone(c.Payload)
	return c
}

type tileFeature struct {
	Tile int    `cbor:"1,keyasint"`
	ID   string `cbor:"2,keyasint"`
}

// chunkBody is the canonical, quantised encoding of a chunk's tiles.
type chunkBody struct {
	Format      int           `cbor:"1,keyasint"`
	Coord       ChunkCoord    `cbor:"2,keyasint"`
	Bounds      Bounds        `cbor:"3,keyasint"`
	Elevation   []uint16      `cbor:"4,keyasint"`
	Temperature []uint16      `cbor:"5,keyasint"`
	Moisture    []uint16      `cbor:"6,keyasint"`
	Biome       []byte        `cbor:"7,keyasint"`
	Water       []byte        `cbor:"8,keyasint"`
	Plate       []uint32      `cbor:"9,keyasint"`
	Flow        []int8        `cbor:"10,keyasint"`
	Features    []tileFeature `cbor:"11,keyasint,omitempty"`
}

// Quantize maps a value in [0, 1] to its stored 16-bit form.
func Quantize(v float64) uint16 {
	return uint16(math.Round(terrain.Clamp01(v) * quantScale))
}

// Dequantize maps a stored 16-bit value back to [0, 1].
func Dequantize(q uint16) float64 { return float64(q) / quantScale }

// encodeChunk builds the chunk for coord from row-major tiles of its bounds.
func encodeChunk(coord ChunkCoord, bounds Bounds, tiles []Tile, schemaVersion int, tick uint64) (Chunk, error) {
	n := len(tiles)
	body := chunkBody{
		Format:      ChunkFormat,
		Coord:       coord,
		Bounds:      bounds,
		Elevation:   make([]uint16, n),
		Temperature: make([]uint16, n),
		Moisture:    make([]uint16, n),
		Biome:       make([]byte, n),
		Water:       make([]byte, n),
		Plate:       make([]uint32, n),
		Flow:        make([]int8, n),
	}
	for i, t := range tiles {
		body.Elevation[i] = Quantize(t.Elevation)
		body.Temperature[i] = Quantize(t.Temperature)
		body.Moisture[i] = Quantize(t.Moisture)
		body.Biome[i] = byte(t.Biome)
		body.Water[i] = byte(t.Water)
		body.Plate[i] = uint32(t.Plate)
		body.Flow[i] = int8(t.Flow)
		for _, id := range t.Features {
			body.Features = append(body.Features, tileFeature{Tile: i, ID: id})
		}
	}
	raw, err := encMode.Marshal(body)
	if err != nil {
		return Chunk{}, fmt.Errorf("encode chunk %s: %w", coord, err)
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return Chunk{}, fmt.Errorf("compress chunk %s: %w", coord, err)
	}
	if _, err := zw.Write(raw); err != nil {
		return Chunk{}, fmt.Errorf("compress chunk %s: %w", coord, err)
	}
	if err := zw.Close(); err != nil {
		return Chunk{}, fmt.Errorf("compress chunk %s: %w", coord, err)
	}

	return Chunk{
		Coord:            coord,
		Bounds:           bounds,
		SchemaVersion:    schemaVersion,
		LastModifiedTick: tick,
		Checksum:         sha256.Sum256(raw),
		Payload:          buf.Bytes(),
	}, nil
}

// DecodeChunk inflates a chunk, verifies its checksum and returns its tiles
// in row-major order. Values come back at stored 16-bit precision.
func DecodeChunk(c Chunk) ([]Tile, error) {
	meta := map[string]string{"chunk": c.Coord.String()}
	if c.SchemaVersion < BaseSchemaVersion {
		return nil, apperrors.WithMetadata(apperrors.CodeSchemaVersionUnsupported,
			fmt.Sprintf("chunk %s schema version %d", c.Coord, c.SchemaVersion), meta)
	}
	zr, err := zlib.NewReader(bytes.NewReader(c.Payload))
	if err != nil {
		return nil, apperrors.WithMetadata(apperrors.CodeChecksumMismatch,
			fmt.Sprintf("chunk %s payload is not readable: %v", c.Coord, err), meta)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, apperrors.WithMetadata(apperrors.CodeChecksumMismatch,
			fmt.Sprintf("chunk %s payload is not readable: %v", c.Coord, err), meta)
	}
	if sha256.Sum256(raw) != c.Checksum {
		return nil, apperrors.WithMetadata(apperrors.CodeChecksumMismatch,
			fmt.Sprintf("chunk %s checksum mismatch", c.Coord), meta)
	}

	var body chunkBody
	if err := decMode.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode chunk %s: %w", c.Coord, err)
	}
	if body.Format != ChunkFormat {
		return nil, apperrors.WithMetadata(apperrors.CodeSchemaVersionUnsupported,
			fmt.Sprintf("chunk %s body format %d", c.Coord, body.Format), meta)
	}
	n := body.Bounds.Len()
	if body.Coord != c.Coord || body.Bounds != c.Bounds || n < 0 ||
		len(body.Elevation) != n || len(body.Temperature) != n || len(body.Moisture) != n ||
		len(body.Biome) != n || len(body.Water) != n || len(body.Plate) != n || len(body.Flow) != n {
		return nil, fmt.Errorf("decode chunk %s: body does not match its header", c.Coord)
	}

	w := body.Bounds.X1 - body.Bounds.X0
	tiles := make([]Tile, n)
	for i := range tiles {
		tiles[i] = Tile{
			X:           body.Bounds.X0 + i%w,
			Y:           body.Bounds.Y0 + i/w,
			Layer:       body.Coord.Layer,
			Elevation:   Dequantize(body.Elevation[i]),
			Temperature: Dequantize(body.Temperature[i]),
			Moisture:    Dequantize(body.Moisture[i]),
			Biome:       terrain.Biome(body.Biome[i]),
			Water:       terrain.WaterType(body.Water[i]),
			Plate:       int(body.Plate[i]),
			Flow:        terrain.Flow(body.Flow[i]),
		}
	}
	for _, f := range body.Features {
		if f.Tile < 0 || f.Tile >= n {
			return nil, fmt.Errorf("decode chunk %s: feature tile %d out of range", c.Coord, f.Tile)
		}
		tiles[f.Tile].Features = append(tiles[f.Tile].Features, f.ID)
	}
	return tiles, nil
}

// VerifyChunk checks a chunk's payload against its checksum.
func VerifyChunk(c Chunk) error {
	_, err := DecodeChunk(c)
	return err
}

// CombineChecksums returns the whole-grid checksum: SHA-256 over the
// concatenated chunk checksums in canonical order.
func CombineChecksums(chunks []Chunk) [32]byte {
	h := sha256.New()
	for _, c := range chunks {
		h.Write(c.Checksum[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
