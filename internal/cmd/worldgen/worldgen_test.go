package worldgen

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("worldgen", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8095 {
		t.Fatalf("expected default port 8095, got %d", cfg.Port)
	}
	if cfg.DBPath != "data/worldgen.db" || cfg.ChunkDir != "" {
		t.Fatalf("cache defaults = %q, %q", cfg.DBPath, cfg.ChunkDir)
	}
}

func TestParseConfigCacheBackend(t *testing.T) {
	t.Setenv("WORLDGEN_DB_PATH", "/tmp/env.db")
	fs := flag.NewFlagSet("worldgen", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-chunk-dir", "/tmp/worlds"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("db path = %q, want /tmp/env.db", cfg.DBPath)
	}
	if cfg.ChunkDir != "/tmp/worlds" {
		t.Fatalf("chunk dir = %q, want /tmp/worlds", cfg.ChunkDir)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("WORLDGEN_PORT", "9000")
	fs := flag.NewFlagSet("worldgen", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("expected env port 9000, got %d", cfg.Port)
	}

	fs = flag.NewFlagSet("worldgen", flag.ContinueOnError)
	cfg, err = ParseConfig(fs, []string{"-port", "9100"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9100 {
		t.Fatalf("expected flag port 9100, got %d", cfg.Port)
	}
}

func TestParseConfigRejectsBadEnv(t *testing.T) {
	t.Setenv("WORLDGEN_PORT", "not-a-port")
	fs := flag.NewFlagSet("worldgen", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected env parse error")
	}
}
