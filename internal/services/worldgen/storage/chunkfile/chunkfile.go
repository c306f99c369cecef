// Package chunkfile stores a generated world as one file per chunk plus a
// JSON manifest.
//
// A world directory holds world.json and chunk_L{layer}_{cx}_{cy}.wgc files.
// Each chunk file is a deterministic CBOR envelope around the compressed
// chunk payload. Loading verifies every chunk checksum and the whole-grid
// checksum recorded in the manifest.
package chunkfile

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/louisbranch/worldgen/internal/core/world"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
	"github.com/louisbranch/worldgen/internal/services/worldgen/storage"
)

const (
	// ManifestName is the manifest file inside a world directory.
	ManifestName = "world.json"
	// EnvelopeFormat is the chunk envelope layout version.
	EnvelopeFormat = 1
	// Ext is the chunk file extension.
	Ext = ".wgc"
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

// Manifest describes a stored world.
type Manifest struct {
	Key            string             `json:"key"`
	Seed           uint64             `json:"seed"`
	Width          int                `json:"width"`
	Height         int                `json:"height"`
	AltitudeLayers int                `json:"altitude_layers"`
	ChunkSize      int                `json:"chunk_size"`
	Fingerprint    string             `json:"params_fingerprint"`
	Checksum       string             `json:"checksum"`
	SchemaVersion  int                `json:"schema_version"`
	Plates         int                `json:"plates"`
	Rivers         int                `json:"rivers"`
	Lakes          int                `json:"lakes"`
	Features       int                `json:"features"`
	Chunks         []world.ChunkCoord `json:"chunks"`
	Warnings       []string           `json:"warnings,omitempty"`
	// CreatedAt is RFC 3339 and empty for exported worlds.
	CreatedAt string `json:"created_at,omitempty"`
}

func manifestFor(rec storage.WorldRecord) Manifest {
	m := Manifest{
		Key:            rec.Key,
		Seed:           rec.Seed,
		Width:          rec.Width,
		Height:         rec.Height,
		AltitudeLayers: rec.AltitudeLayers,
		ChunkSize:      rec.ChunkSize,
		Fingerprint:    rec.Fingerprint,
		Checksum:       rec.Checksum,
		SchemaVersion:  rec.SchemaVersion,
		Plates:         rec.Plates,
		Rivers:         rec.Rivers,
		Lakes:          rec.Lakes,
		Features:       rec.Features,
		Warnings:       rec.Warnings,
	}
	if !rec.CreatedAt.IsZero() {
		m.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

// Record converts m back to the summary it was written from.
func (m Manifest) Record() (storage.WorldRecord, error) {
	rec := storage.WorldRecord{
		Key:            m.Key,
		Seed:           m.Seed,
		Width:          m.Width,
		Height:         m.Height,
		AltitudeLayers: m.AltitudeLayers,
		ChunkSize:      m.ChunkSize,
		Fingerprint:    m.Fingerprint,
		Checksum:       m.Checksum,
		SchemaVersion:  m.SchemaVersion,
		Plates:         m.Plates,
		Rivers:         m.Rivers,
		Lakes:          m.Lakes,
		Features:       m.Features,
		Warnings:       m.Warnings,
	}
	if m.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, m.CreatedAt)
		if err != nil {
			return storage.WorldRecord{}, fmt.Errorf("parse manifest created_at: %w", err)
		}
		rec.CreatedAt = t
	}
	return rec, nil
}

type envelope struct {
	Format           int              `cbor:"1,keyasint"`
	SchemaVersion    int              `cbor:"2,keyasint"`
	Coord            world.ChunkCoord `cbor:"3,keyasint"`
	Bounds           world.Bounds     `cbor:"4,keyasint"`
	LastModifiedTick uint64           `cbor:"5,keyasint"`
	Checksum         []byte           `cbor:"6,keyasint"`
	Payload          []byte           `cbor:"7,keyasint"`
}

// FileName returns the file name of the chunk at c.
func FileName(c world.ChunkCoord) string {
	return fmt.Sprintf("chunk_L%d_%d_%d%s", c.Layer, c.CX, c.CY, Ext)
}

// EncodeEnvelope serialises c for storage or transport.
func EncodeEnvelope(c world.Chunk) ([]byte, error) {
	data, err := encMode.Marshal(envelope{
		Format:           EnvelopeFormat,
		SchemaVersion:    c.SchemaVersion,
		Coord:            c.Coord,
		Bounds:           c.Bounds,
		LastModifiedTick: c.LastModifiedTick,
		Checksum:         c.Checksum[:],
		Payload:          c.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chunk %s: %w", c.Coord, err)
	}
	return data, nil
}

// DecodeEnvelope parses an envelope and verifies the chunk checksum.
func DecodeEnvelope(data []byte) (world.Chunk, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return world.Chunk{}, apperrors.Wrap(apperrors.CodeChecksumMismatch, "chunk envelope is not readable", err)
	}
	if env.Format != EnvelopeFormat {
		return world.Chunk{}, apperrors.WithMetadata(apperrors.CodeSchemaVersionUnsupported,
			fmt.Sprintf("chunk envelope format %d", env.Format), map[string]string{"chunk": env.Coord.String()})
	}
	if len(env.Checksum) != 32 {
		return world.Chunk{}, apperrors.WithMetadata(apperrors.CodeChecksumMismatch,
			fmt.Sprintf("chunk %s checksum has %d bytes", env.Coord, len(env.Checksum)),
			map[string]string{"chunk": env.Coord.String()})
	}
	c := world.Chunk{
		Coord:            env.Coord,
		Bounds:           env.Bounds,
		SchemaVersion:    env.SchemaVersion,
		LastModifiedTick: env.LastModifiedTick,
		Payload:          env.Payload,
	}
	copy(c.Checksum[:], env.Checksum)
	if err := world.VerifyChunk(c); err != nil {
		return world.Chunk{}, err
	}
	return c, nil
}

// Write stores g under dir, creating it when needed. Existing chunk files
// are replaced.
func Write(ctx context.Context, dir string, g *world.Grid) (Manifest, error) {
	return writeWorld(ctx, dir, manifestFor(storage.Summarize(g, time.Time{})), g.Chunks())
}

// writeWorld stores chunks and then the manifest, so a directory with a
// manifest always holds every chunk it lists.
func writeWorld(ctx context.Context, dir string, m Manifest, chunks []world.Chunk) (Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create world dir: %w", err)
	}
	m.Chunks = nil
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return Manifest{}, err
		}
		data, err := EncodeEnvelope(c)
		if err != nil {
			return Manifest{}, err
		}
		if err := writeFile(filepath.Join(dir, FileName(c.Coord)), data); err != nil {
			return Manifest{}, err
		}
		m.Chunks = append(m.Chunks, c.Coord)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeFile(filepath.Join(dir, ManifestName), append(data, '\n')); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// writeFile replaces path atomically through a temporary sibling.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadManifest loads the manifest of the world stored under dir.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, storage.ErrNotFound
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// ReadChunk loads and verifies one chunk from dir.
func ReadChunk(dir string, coord world.ChunkCoord) (world.Chunk, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName(coord)))
	if errors.Is(err, fs.ErrNotExist) {
		return world.Chunk{}, storage.ErrNotFound
	}
	if err != nil {
		return world.Chunk{}, fmt.Errorf("read chunk %s: %w", coord, err)
	}
	c, err := DecodeEnvelope(data)
	if err != nil {
		return world.Chunk{}, err
	}
	if c.Coord != coord {
		return world.Chunk{}, apperrors.WithMetadata(apperrors.CodeChecksumMismatch,
			fmt.Sprintf("file %s holds chunk %s", FileName(coord), c.Coord),
			map[string]string{"chunk": coord.String()})
	}
	return c, nil
}

// Load reads every chunk listed in the manifest under dir, verifying each
// chunk checksum and the combined whole-grid checksum.
func Load(ctx context.Context, dir string) (Manifest, []world.Chunk, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return Manifest{}, nil, err
	}
	chunks := make([]world.Chunk, 0, len(m.Chunks))
	for _, coord := range m.Chunks {
		if err := ctx.Err(); err != nil {
			return Manifest{}, nil, err
		}
		c, err := ReadChunk(dir, coord)
		if err != nil {
			return Manifest{}, nil, err
		}
		chunks = append(chunks, c)
	}
	sum := world.CombineChecksums(chunks)
	if got := hex.EncodeToString(sum[:]); got != m.Checksum {
		return Manifest{}, nil, apperrors.WithMetadata(apperrors.CodeChecksumMismatch,
			"world checksum does not match manifest", map[string]string{"want": m.Checksum, "got": got})
	}
	return m, chunks, nil
}
