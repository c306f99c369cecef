// Package mcp parses MCP command flags and serves the world tools on stdio.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/worldgen/internal/platform/cmd"
	"github.com/louisbranch/worldgen/internal/services/worldgen/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	DBPath string `env:"MCP_DB_PATH" envDefault:"data/worldgen-mcp.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "world cache database; empty disables caching")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP tool server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return service.Run(ctx, service.Config{DBPath: cfg.DBPath})
	})
}
