package world

import (
	"testing"

	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
)

func TestDecodeChunkRoundTrip(t *testing.T) {
	p := DefaultParams()
	p.ChunkSize = 16
	g := mustGenerate(t, 21, 40, 24, 2, p)
	for _, c := range g.Chunks() {
		tiles, err := DecodeChunk(c)
		if err != nil {
			t.Fatalf("DecodeChunk(%v): %v", c.Coord, err)
		}
		if len(tiles) != c.Bounds.Len() {
			t.Fatalf("chunk %v decoded %d tiles, want %d", c.Coord, len(tiles), c.Bounds.Len())
		}
		for _, got := range tiles {
			want, ok := g.Tile(got.X, got.Y, got.Layer)
			if !ok {
				t.Fatalf("decoded tile %d,%d,%d outside grid", got.X, got.Y, got.Layer)
			}
			if got.Biome != want.Biome || got.Water != want.Water || got.Plate != want.Plate || got.Flow != want.Flow {
				t.Fatalf("tile %d,%d,%d = %+v, want %+v", got.X, got.Y, got.Layer, got, want)
			}
			if Quantize(want.Elevation) != Quantize(got.Elevation) || Quantize(want.Moisture) != Quantize(got.Moisture) {
				t.Fatalf("tile %d,%d,%d values lost beyond quantisation", got.X, got.Y, got.Layer)
			}
			if len(got.Features) != len(want.Features) {
				t.Fatalf("tile %d,%d features = %v, want %v", got.X, got.Y, got.Features, want.Features)
			}
		}
	}
}

func TestDecodeChunkDetectsTampering(t *testing.T) {
	g := mustGenerate(t, 4, 32, 32, 1, DefaultParams())
	base := g.Chunks()[0]
	tests := []struct {
		name   string
		mutate func(*Chunk)
		code   apperrors.Code
	}{
		{name: "checksum flipped", mutate: func(c *Chunk) { c.Checksum[0] ^= 1 }, code: apperrors.CodeChecksumMismatch},
		{name: "payload corrupted", mutate: func(c *Chunk) { c.Payload[len(c.Payload)/2] ^= 0x55 }, code: apperrors.CodeChecksumMismatch},
		{name: "payload truncated", mutate: func(c *Chunk) { c.Payload = c.Payload[:len(c.Payload)/2] }, code: apperrors.CodeChecksumMismatch},
		{name: "schema version zero", mutate: func(c *Chunk) { c.SchemaVersion = 0 }, code: apperrors.CodeSchemaVersionUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base.clone()
			tt.mutate(&c)
			if _, err := DecodeChunk(c); !apperrors.HasCode(err, tt.code) {
				t.Fatalf("DecodeChunk err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   float64
		want uint16
	}{
		{in: -0.5, want: 0},
		{in: 0, want: 0},
		{in: 1, want: 65535},
		{in: 2, want: 65535},
		{in: 0.5, want: 32768},
	}
	for _, tt := range tests {
		if got := Quantize(tt.in); got != tt.want {
			t.Fatalf("Quantize(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if Dequantize(65535) != 1 || Dequantize(0) != 0 {
		t.Fatal("Dequantize endpoints wrong")
	}
}
