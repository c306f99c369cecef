// Package service exposes world generation as MCP tools.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/worldgen/internal/services/worldgen/generation"
	worldsqlite "github.com/louisbranch/worldgen/internal/services/worldgen/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "worldgen"
	serverVersion = "0.1.0"
)

// Config configures the MCP server.
type Config struct {
	// DBPath is the world cache database. Empty disables the cache, which
	// also disables world_tile.
	DBPath string
}

// NewServer builds an MCP server with the world tools registered.
func NewServer(gen *generation.Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, GenerateWorldTool(), GenerateWorldHandler(gen))
	mcp.AddTool(server, WorldTileTool(), WorldTileHandler(gen))
	return server
}

// Run serves the MCP tools over stdio until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	var store *worldsqlite.Store
	if path := strings.TrimSpace(cfg.DBPath); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir: %w", err)
			}
		}
		var err error
		store, err = worldsqlite.Open(path)
		if err != nil {
			return fmt.Errorf("open world sqlite store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close world store: %v", err)
			}
		}()
	}
	// A nil *Store must not become a non-nil storage.WorldStore.
	var gen *generation.Service
	if store != nil {
		gen = generation.NewService(store)
	} else {
		gen = generation.NewService(nil)
	}
	return runWithTransport(ctx, gen, &mcp.StdioTransport{})
}

func runWithTransport(ctx context.Context, gen *generation.Service, transport mcp.Transport) error {
	err := NewServer(gen).Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
