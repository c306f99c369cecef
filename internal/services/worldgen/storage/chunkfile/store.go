package chunkfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/louisbranch/worldgen/internal/core/world"
	"github.com/louisbranch/worldgen/internal/platform/id"
	"github.com/louisbranch/worldgen/internal/services/worldgen/storage"
)

// Store caches worlds as chunk directories under a root, one directory per
// world key.
type Store struct {
	root string
	mu   sync.Mutex
}

// OpenStore creates root when missing and returns a store over it.
func OpenStore(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("chunk directory is required")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the directory holding the cached worlds.
func (s *Store) Root() string { return s.root }

// dir returns the world directory of key. Keys that are not world ids never
// map to a directory.
func (s *Store) dir(key string) (string, bool) {
	if !id.Valid(key) {
		return "", false
	}
	return filepath.Join(s.root, key), true
}

// PutWorld writes the world directory for record.
func (s *Store) PutWorld(ctx context.Context, record storage.WorldRecord, chunks []world.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, ok := s.dir(record.Key)
	if !ok {
		return fmt.Errorf("world key %q is not an id", record.Key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(filepath.Join(dir, ManifestName)); err == nil {
		return storage.ErrAlreadyExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat manifest: %w", err)
	}
	if _, err := writeWorld(ctx, dir, manifestFor(record), chunks); err != nil {
		return fmt.Errorf("put world %s: %w", record.Key, err)
	}
	return nil
}

// GetWorld reads the manifest of key.
func (s *Store) GetWorld(ctx context.Context, key string) (storage.WorldRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.WorldRecord{}, err
	}
	dir, ok := s.dir(key)
	if !ok {
		return storage.WorldRecord{}, storage.ErrNotFound
	}
	m, err := ReadManifest(dir)
	if err != nil {
		return storage.WorldRecord{}, err
	}
	return m.Record()
}

// GetChunk reads and verifies one chunk of key.
func (s *Store) GetChunk(ctx context.Context, key string, coord world.ChunkCoord) (world.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return world.Chunk{}, err
	}
	dir, ok := s.dir(key)
	if !ok {
		return world.Chunk{}, storage.ErrNotFound
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestName)); errors.Is(err, fs.ErrNotExist) {
		return world.Chunk{}, storage.ErrNotFound
	}
	return ReadChunk(dir, coord)
}
