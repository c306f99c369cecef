// Package worldgen parses world service flags and launches the service.
package worldgen

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/worldgen/internal/platform/cmd"
	server "github.com/louisbranch/worldgen/internal/services/worldgen/app"
)

// Config holds world service command configuration.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8095"`
	DBPath   string `env:"DB_PATH" envDefault:"data/worldgen.db"`
	ChunkDir string `env:"CHUNK_DIR"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The world gRPC server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite world cache path")
	fs.StringVar(&cfg.ChunkDir, "chunk-dir", cfg.ChunkDir, "Cache worlds as chunk directories under this path instead of SQLite")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the world gRPC API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorldgen, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			Addr:     fmt.Sprintf(":%d", cfg.Port),
			DBPath:   cfg.DBPath,
			ChunkDir: cfg.ChunkDir,
		})
	})
}
