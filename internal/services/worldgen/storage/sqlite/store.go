// Package sqlite provides a SQLite-backed world cache.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/worldgen/internal/core/world"
	sqlitemigrate "github.com/louisbranch/worldgen/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/worldgen/internal/services/worldgen/storage"
	"github.com/louisbranch/worldgen/internal/services/worldgen/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists generated worlds in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite world store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutWorld inserts a world record and all of its chunks in one transaction.
func (s *Store) PutWorld(ctx context.Context, record storage.WorldRecord, chunks []world.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	key := strings.TrimSpace(record.Key)
	if key == "" {
		return fmt.Errorf("world key is required")
	}
	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	warnings := record.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put world: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO worlds (
		   world_key,
		   seed,
		   width,
		   height,
		   altitude_layers,
		   chunk_size,
		   params_fingerprint,
		   checksum,
		   schema_version,
		   plate_count,
		   river_count,
		   lake_count,
		   feature_count,
		   warnings,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key,
		strconv.FormatUint(record.Seed, 10),
		record.Width,
		record.Height,
		record.AltitudeLayers,
		record.ChunkSize,
		record.Fingerprint,
		record.Checksum,
		record.SchemaVersion,
		record.Plates,
		record.Rivers,
		record.Lakes,
		record.Features,
		string(warningsJSON),
		toMillis(createdAt),
	)
	if err != nil {
		if isWorldUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put world: %w", err)
	}

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO chunks (
		   world_key, layer, cx, cy, x0, y0, x1, y1,
		   schema_version, last_modified_tick, checksum, payload
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()
	for _, c := range chunks {
		if _, err := stmt.ExecContext(
			ctx,
			key, c.Coord.Layer, c.Coord.CX, c.Coord.CY,
			c.Bounds.X0, c.Bounds.Y0, c.Bounds.X1, c.Bounds.Y1,
			c.SchemaVersion, int64(c.LastModifiedTick), c.Checksum[:], c.Payload,
		); err != nil {
			return fmt.Errorf("put chunk %s: %w", c.Coord, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put world: %w", err)
	}
	return nil
}

// GetWorld returns one world record by key.
func (s *Store) GetWorld(ctx context.Context, key string) (storage.WorldRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.WorldRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.WorldRecord{}, fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return storage.WorldRecord{}, fmt.Errorf("world key is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT world_key, seed, width, height, altitude_layers, chunk_size,
		        params_fingerprint, checksum, schema_version,
		        plate_count, river_count, lake_count, feature_count,
		        warnings, created_at
		   FROM worlds
		  WHERE world_key = ?`,
		key,
	)

	var rec storage.WorldRecord
	var seed string
	var warnings string
	var createdAt int64
	err := row.Scan(
		&rec.Key,
		&seed,
		&rec.Width,
		&rec.Height,
		&rec.AltitudeLayers,
		&rec.ChunkSize,
		&rec.Fingerprint,
		&rec.Checksum,
		&rec.SchemaVersion,
		&rec.Plates,
		&rec.Rivers,
		&rec.Lakes,
		&rec.Features,
		&warnings,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.WorldRecord{}, storage.ErrNotFound
		}
		return storage.WorldRecord{}, fmt.Errorf("get world: %w", err)
	}
	rec.Seed, err = strconv.ParseUint(seed, 10, 64)
	if err != nil {
		return storage.WorldRecord{}, fmt.Errorf("parse world seed: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &rec.Warnings); err != nil {
		return storage.WorldRecord{}, fmt.Errorf("decode warnings: %w", err)
	}
	if len(rec.Warnings) == 0 {
		rec.Warnings = nil
	}
	rec.CreatedAt = fromMillis(createdAt)
	return rec, nil
}

// GetChunk returns one stored chunk after verifying its checksum.
func (s *Store) GetChunk(ctx context.Context, key string, coord world.ChunkCoord) (world.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return world.Chunk{}, err
	}
	if s == nil || s.sqlDB == nil {
		return world.Chunk{}, fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return world.Chunk{}, fmt.Errorf("world key is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT x0, y0, x1, y1, schema_version, last_modified_tick, checksum, payload
		   FROM chunks
		  WHERE world_key = ? AND layer = ? AND cx = ? AND cy = ?`,
		key, coord.Layer, coord.CX, coord.CY,
	)

	c := world.Chunk{Coord: coord}
	var tick int64
	var checksum []byte
	err := row.Scan(
		&c.Bounds.X0,
		&c.Bounds.Y0,
		&c.Bounds.X1,
		&c.Bounds.Y1,
		&c.SchemaVersion,
		&tick,
		&checksum,
		&c.Payload,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return world.Chunk{}, storage.ErrNotFound
		}
		return world.Chunk{}, fmt.Errorf("get chunk %s: %w", coord, err)
	}
	if len(checksum) != len(c.Checksum) {
		return world.Chunk{}, fmt.Errorf("get chunk %s: checksum has %d bytes", coord, len(checksum))
	}
	copy(c.Checksum[:], checksum)
	c.LastModifiedTick = uint64(tick)
	if err := world.VerifyChunk(c); err != nil {
		return world.Chunk{}, err
	}
	return c, nil
}

func isWorldUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "worlds.world_key")
}

var _ storage.WorldStore = (*Store)(nil)
