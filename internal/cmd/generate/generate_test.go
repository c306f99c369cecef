package generate

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/worldgen/internal/core/world"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
	server "github.com/louisbranch/worldgen/internal/services/worldgen/app"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Width != 256 || cfg.Height != 256 || cfg.Layers != 1 {
		t.Fatalf("dims = %dx%dx%d, want 256x256x1", cfg.Width, cfg.Height, cfg.Layers)
	}
	if cfg.SeaLevel != world.DefaultSeaLevel || cfg.ChunkSize != world.DefaultChunkSize {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("WORLDGEN_WIDTH", "99")
	t.Setenv("WORLDGEN_SEED", "5")
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-seed", "18446744073709551615", "-height", "12", "-checksum-only"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Width != 99 {
		t.Fatalf("width = %d, want env value 99", cfg.Width)
	}
	if cfg.Seed != 18446744073709551615 || cfg.Height != 12 || !cfg.ChecksumOnly {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func smallConfig(t *testing.T) Config {
	t.Helper()
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-seed", "42", "-width", "40", "-height", "30", "-chunk-size", "16"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestRunChecksumOnlyIsStable(t *testing.T) {
	cfg := smallConfig(t)
	cfg.ChecksumOnly = true

	var first, second bytes.Buffer
	if err := Run(context.Background(), cfg, &first); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := Run(context.Background(), cfg, &second); err != nil {
		t.Fatalf("run again: %v", err)
	}
	sum := strings.TrimSpace(first.String())
	if len(sum) != 64 {
		t.Fatalf("checksum = %q, want 64 hex chars", sum)
	}
	if first.String() != second.String() {
		t.Fatalf("checksums differ: %q vs %q", first.String(), second.String())
	}
}

func TestRunWritesAndVerifies(t *testing.T) {
	cfg := smallConfig(t)
	cfg.OutDir = filepath.Join(t.TempDir(), "world")

	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "wrote 6 chunks") {
		t.Fatalf("output = %q", out.String())
	}

	verifyCfg := Config{VerifyDir: cfg.OutDir}
	out.Reset()
	if err := Run(context.Background(), verifyCfg, &out); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out.String(), "verified 6 chunks") {
		t.Fatalf("verify output = %q", out.String())
	}
}

func TestRunRejectsInvalidCatalog(t *testing.T) {
	cfg := smallConfig(t)
	cfg.CatalogPath = filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(cfg.CatalogPath, []byte(`{"features":[{"kind":"volcanic_vent","weight":0}]}`), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	err := Run(context.Background(), cfg, nil)
	if !apperrors.HasCode(err, apperrors.CodeCatalogInvalid) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeCatalogInvalid)
	}
}

func TestRunRejectsInvalidDimensions(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Width = 0
	err := Run(context.Background(), cfg, nil)
	if !apperrors.HasCode(err, apperrors.CodeInvalidParameter) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeInvalidParameter)
	}
}

func TestRunRejectsChecksumOnlyWithOut(t *testing.T) {
	cfg := smallConfig(t)
	cfg.ChecksumOnly = true
	cfg.OutDir = filepath.Join(t.TempDir(), "world")
	err := Run(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "-checksum-only") {
		t.Fatalf("err = %v, want flag combination rejected", err)
	}
	if _, statErr := os.Stat(cfg.OutDir); !os.IsNotExist(statErr) {
		t.Fatalf("out dir created: %v", statErr)
	}
}

func TestRunRemoteMatchesLocal(t *testing.T) {
	srv, err := server.Open(server.Config{Addr: "127.0.0.1:0", DBPath: filepath.Join(t.TempDir(), "worldgen.db")})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-serveDone:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("timeout waiting for server shutdown")
		}
	})

	cfg := smallConfig(t)
	cfg.ChecksumOnly = true
	var local bytes.Buffer
	if err := Run(context.Background(), cfg, &local); err != nil {
		t.Fatalf("run local: %v", err)
	}

	cfg.Remote = srv.Addr()
	var remote bytes.Buffer
	if err := Run(context.Background(), cfg, &remote); err != nil {
		t.Fatalf("run remote: %v", err)
	}
	if local.String() != remote.String() {
		t.Fatalf("remote checksum %q, want %q", remote.String(), local.String())
	}

	cfg.ChecksumOnly = false
	cfg.OutDir = t.TempDir()
	if err := Run(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "-remote") {
		t.Fatalf("err = %v, want -out rejected with -remote", err)
	}
}
