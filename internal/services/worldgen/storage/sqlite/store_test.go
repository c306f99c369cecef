package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/worldgen/internal/core/world"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
	"github.com/louisbranch/worldgen/internal/services/worldgen/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func generate(t *testing.T, seed uint64) *world.Grid {
	t.Helper()
	p := world.DefaultParams()
	p.ChunkSize = 16
	g, err := world.Generate(context.Background(), seed, 40, 24, 1, p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return g
}

func TestPutGetWorldRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	g := generate(t, 1<<63+5)
	now := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	rec := storage.Summarize(g, now)
	rec.Warnings = []string{"degenerate plate layout"}
	if err := store.PutWorld(context.Background(), rec, g.Chunks()); err != nil {
		t.Fatalf("put world: %v", err)
	}

	got, err := store.GetWorld(context.Background(), rec.Key)
	if err != nil {
		t.Fatalf("get world: %v", err)
	}
	if got.Seed != rec.Seed {
		t.Fatalf("seed = %d, want %d", got.Seed, rec.Seed)
	}
	if got.Checksum != rec.Checksum || got.Fingerprint != rec.Fingerprint {
		t.Fatalf("world = %+v, want %+v", got, rec)
	}
	if got.Width != 40 || got.Height != 24 || got.ChunkSize != 16 || got.Plates != rec.Plates {
		t.Fatalf("world dims = %+v", got)
	}
	if len(got.Warnings) != 1 || got.Warnings[0] != "degenerate plate layout" {
		t.Fatalf("warnings = %v", got.Warnings)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, now)
	}

	for _, want := range g.Chunks() {
		c, err := store.GetChunk(context.Background(), rec.Key, want.Coord)
		if err != nil {
			t.Fatalf("get chunk %v: %v", want.Coord, err)
		}
		if c.Checksum != want.Checksum || c.Bounds != want.Bounds || c.SchemaVersion != want.SchemaVersion {
			t.Fatalf("chunk %v = %+v", want.Coord, c)
		}
	}
}

func TestPutWorldReturnsAlreadyExistsOnDuplicate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	g := generate(t, 2)
	rec := storage.Summarize(g, time.Now())
	if err := store.PutWorld(context.Background(), rec, g.Chunks()); err != nil {
		t.Fatalf("put world: %v", err)
	}
	err := store.PutWorld(context.Background(), rec, g.Chunks())
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate put err = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.GetWorld(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get world err = %v, want %v", err, storage.ErrNotFound)
	}
	if _, err := store.GetChunk(context.Background(), "missing", world.ChunkCoord{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get chunk err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestGetChunkDetectsCorruption(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	g := generate(t, 3)
	rec := storage.Summarize(g, time.Now())
	if err := store.PutWorld(context.Background(), rec, g.Chunks()); err != nil {
		t.Fatalf("put world: %v", err)
	}
	if _, err := store.sqlDB.Exec(
		`UPDATE chunks SET checksum = zeroblob(32) WHERE world_key = ? AND layer = 0 AND cx = 0 AND cy = 0`,
		rec.Key,
	); err != nil {
		t.Fatalf("corrupt chunk: %v", err)
	}
	_, err := store.GetChunk(context.Background(), rec.Key, world.ChunkCoord{})
	if !apperrors.HasCode(err, apperrors.CodeChecksumMismatch) {
		t.Fatalf("get chunk err = %v, want %s", err, apperrors.CodeChecksumMismatch)
	}
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.GetWorld(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "worldgen.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
