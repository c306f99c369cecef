// Package server runs the world service: a gRPC listener in front of a
// cache-through generator backed by SQLite or a chunk directory.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	worldservice "github.com/louisbranch/worldgen/internal/services/worldgen/api/grpc/worldgen"
	"github.com/louisbranch/worldgen/internal/services/worldgen/generation"
	"github.com/louisbranch/worldgen/internal/services/worldgen/storage"
	"github.com/louisbranch/worldgen/internal/services/worldgen/storage/chunkfile"
	worldsqlite "github.com/louisbranch/worldgen/internal/services/worldgen/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Config selects the listen address and the world cache backend. ChunkDir
// wins over DBPath when both are set.
type Config struct {
	Addr     string
	DBPath   string
	ChunkDir string
}

// cache is the opened world store plus what it takes to release it.
type cache struct {
	store   storage.WorldStore
	backend string
	close   func() error
}

func openCache(cfg Config) (*cache, error) {
	if dir := strings.TrimSpace(cfg.ChunkDir); dir != "" {
		store, err := chunkfile.OpenStore(dir)
		if err != nil {
			return nil, fmt.Errorf("open world chunk store: %w", err)
		}
		return &cache{
			store:   store,
			backend: "chunk files at " + store.Root(),
			close:   func() error { return nil },
		}, nil
	}
	path := strings.TrimSpace(cfg.DBPath)
	if path == "" {
		return nil, errors.New("world cache needs a db path or chunk dir")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := worldsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open world sqlite store: %w", err)
	}
	return &cache{store: store, backend: "sqlite at " + path, close: store.Close}, nil
}

// Server serves WorldService over one listener.
type Server struct {
	listener net.Listener
	grpc     *grpc.Server
	health   *health.Server
	cache    *cache
}

// Open binds cfg.Addr and opens the world cache. The world service reports
// NOT_SERVING until Serve runs.
func Open(cfg Config) (*Server, error) {
	c, err := openCache(cfg)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = c.close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	worldservice.RegisterWorldServiceServer(srv, worldservice.NewService(generation.NewService(c.store)))
	hs := health.NewServer()
	hs.SetServingStatus(worldservice.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(srv, hs)

	return &Server{listener: listener, grpc: srv, health: hs, cache: c}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run opens a server for cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	s, err := Open(cfg)
	if err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve marks the world service healthy and serves until ctx is cancelled
// or the listener fails. The cache is closed on return.
func (s *Server) Serve(ctx context.Context) error {
	defer s.close()

	log.Printf("world server listening at %v, world cache: %s", s.listener.Addr(), s.cache.backend)
	s.health.SetServingStatus(worldservice.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	errc := make(chan error, 1)
	go func() { errc <- s.grpc.Serve(s.listener) }()

	var err error
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		err = <-errc
	case err = <-errc:
	}
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}
	return nil
}

func (s *Server) close() {
	s.health.Shutdown()
	s.grpc.Stop()
	if err := s.cache.close(); err != nil {
		log.Printf("close world cache: %v", err)
	}
}
