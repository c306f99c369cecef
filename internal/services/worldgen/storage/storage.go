// Package storage defines persistence contracts for generated worlds.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/worldgen/internal/core/world"
	"github.com/louisbranch/worldgen/internal/platform/id"
)

var (
	// ErrNotFound indicates a requested world or chunk is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a world with the same key is already stored.
	ErrAlreadyExists = errors.New("record already exists")
)

// WorldRecord summarises one generated world.
type WorldRecord struct {
	Key            string
	Seed           uint64
	Width          int
	Height         int
	AltitudeLayers int
	ChunkSize      int
	Fingerprint    string
	Checksum       string
	SchemaVersion  int
	Plates         int
	Rivers         int
	Lakes          int
	Features       int
	Warnings       []string
	CreatedAt      time.Time
}

// WorldStore persists world summaries and their chunks.
type WorldStore interface {
	PutWorld(ctx context.Context, record WorldRecord, chunks []world.Chunk) error
	GetWorld(ctx context.Context, key string) (WorldRecord, error)
	GetChunk(ctx context.Context, key string, coord world.ChunkCoord) (world.Chunk, error)
}

// WorldKey identifies the world generated from seed with the given
// dimensions and parameter fingerprint.
func WorldKey(seed uint64, width, height, layers int, fingerprint string) string {
	name := fmt.Sprintf("%d:%dx%dx%d:%s", seed, width, height, layers, fingerprint)
	return id.Derive(id.Namespace, []byte(name))
}

// Summarize builds the record stored for g.
func Summarize(g *world.Grid, createdAt time.Time) WorldRecord {
	fingerprint := g.Params().Fingerprint()
	return WorldRecord{
		Key:            WorldKey(g.Seed(), g.Width(), g.Height(), g.AltitudeLayers(), fingerprint),
		Seed:           g.Seed(),
		Width:          g.Width(),
		Height:         g.Height(),
		AltitudeLayers: g.AltitudeLayers(),
		ChunkSize:      g.ChunkSize(),
		Fingerprint:    fingerprint,
		Checksum:       g.ChecksumHex(),
		SchemaVersion:  g.SchemaVersion(),
		Plates:         len(g.Plates()),
		Rivers:         len(g.Rivers()),
		Lakes:          len(g.Lakes()),
		Features:       len(g.Features()),
		Warnings:       g.Warnings(),
		CreatedAt:      createdAt.UTC(),
	}
}
