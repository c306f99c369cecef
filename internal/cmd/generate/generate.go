// Package generate parses generator flags and writes or verifies worlds.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/louisbranch/worldgen/internal/core/features"
	"github.com/louisbranch/worldgen/internal/core/world"
	entrypoint "github.com/louisbranch/worldgen/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/worldgen/internal/platform/grpc"
	"github.com/louisbranch/worldgen/internal/platform/timeouts"
	"github.com/louisbranch/worldgen/internal/random"
	worldservice "github.com/louisbranch/worldgen/internal/services/worldgen/api/grpc/worldgen"
	"github.com/louisbranch/worldgen/internal/services/worldgen/storage/chunkfile"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"google.golang.org/protobuf/types/known/structpb"
)

// Config holds generate command configuration.
type Config struct {
	Seed           uint64  `env:"SEED"`
	Width          int     `env:"WIDTH" envDefault:"256"`
	Height         int     `env:"HEIGHT" envDefault:"256"`
	Layers         int     `env:"LAYERS" envDefault:"1"`
	PlateDensity   float64 `env:"PLATE_DENSITY" envDefault:"10000"`
	RiverThreshold float64 `env:"RIVER_THRESHOLD" envDefault:"0.6"`
	SeaLevel       float64 `env:"SEA_LEVEL" envDefault:"0.4"`
	ChunkSize      int     `env:"CHUNK_SIZE" envDefault:"64"`
	CatalogPath    string  `env:"CATALOG"`
	OutDir         string  `env:"OUT"`
	Remote         string  `env:"REMOTE"`
	ChecksumOnly   bool
	VerifyDir      string
	RandomSeed     bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "root seed")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "grid width in tiles")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "grid height in tiles")
	fs.IntVar(&cfg.Layers, "layers", cfg.Layers, "altitude layers")
	fs.Float64Var(&cfg.PlateDensity, "plate-density", cfg.PlateDensity, "target tiles per plate")
	fs.Float64Var(&cfg.RiverThreshold, "river-threshold", cfg.RiverThreshold, "lowest river source elevation")
	fs.Float64Var(&cfg.SeaLevel, "sea-level", cfg.SeaLevel, "sea level elevation")
	fs.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "chunk side in tiles")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "feature catalog JSON (default: built-in catalog)")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "directory to write chunk files to")
	fs.BoolVar(&cfg.ChecksumOnly, "checksum-only", false, "print only the whole-grid checksum")
	fs.StringVar(&cfg.VerifyDir, "verify", "", "verify the world stored in this directory and exit")
	fs.StringVar(&cfg.Remote, "remote", cfg.Remote, "world service address; generate remotely instead of in process")
	fs.BoolVar(&cfg.RandomSeed, "random-seed", false, "draw a random seed when -seed is 0")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Params resolves the generation parameters named by cfg.
func (cfg Config) Params() (world.Params, error) {
	p := world.DefaultParams()
	p.PlateDensity = cfg.PlateDensity
	p.RiverSourceThreshold = cfg.RiverThreshold
	p.SeaLevel = cfg.SeaLevel
	p.ChunkSize = cfg.ChunkSize
	if path := strings.TrimSpace(cfg.CatalogPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return world.Params{}, fmt.Errorf("read catalog: %w", err)
		}
		cat, err := features.ParseCatalog(data)
		if err != nil {
			return world.Params{}, err
		}
		p.FeatureCatalog = cat
	}
	return p, nil
}

// Run executes the generate command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if cfg.ChecksumOnly && cfg.OutDir != "" {
		return errors.New("-checksum-only cannot be combined with -out")
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGenerate, func(ctx context.Context) error {
		switch {
		case cfg.VerifyDir != "":
			return verify(ctx, cfg.VerifyDir, out)
		case cfg.Remote != "":
			return remote(ctx, cfg, out)
		default:
			return generate(ctx, cfg, out)
		}
	})
}

func generate(ctx context.Context, cfg Config, out io.Writer) error {
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	seed, err := cfg.resolveSeed()
	if err != nil {
		return err
	}

	g, err := world.Generate(ctx, seed, cfg.Width, cfg.Height, cfg.Layers, params)
	if err != nil {
		return fmt.Errorf("generate world: %w", err)
	}
	if cfg.ChecksumOnly {
		_, err := fmt.Fprintln(out, g.ChecksumHex())
		return err
	}

	p := message.NewPrinter(language.English)
	p.Fprintf(out, "seed      %d\n", g.Seed())
	p.Fprintf(out, "size      %d x %d x %d (%d tiles)\n", g.Width(), g.Height(), g.AltitudeLayers(),
		g.Width()*g.Height()*g.AltitudeLayers())
	p.Fprintf(out, "plates    %d (%d boundaries)\n", len(g.Plates()), len(g.Boundaries()))
	p.Fprintf(out, "rivers    %d\n", len(g.Rivers()))
	p.Fprintf(out, "lakes     %d\n", len(g.Lakes()))
	p.Fprintf(out, "features  %d\n", len(g.Features()))
	p.Fprintf(out, "checksum  %s\n", g.ChecksumHex())
	for _, w := range g.Warnings() {
		p.Fprintf(out, "warning   %s\n", w)
	}

	if cfg.OutDir == "" {
		return nil
	}
	m, err := chunkfile.Write(ctx, cfg.OutDir, g)
	if err != nil {
		return fmt.Errorf("write world: %w", err)
	}
	var size uint64
	for _, c := range g.Chunks() {
		size += uint64(len(c.Payload))
	}
	p.Fprintf(out, "wrote %d chunks (%s) to %s\n", len(m.Chunks), humanize.Bytes(size), cfg.OutDir)
	return nil
}

func (cfg Config) resolveSeed() (uint64, error) {
	if cfg.Seed != 0 || !cfg.RandomSeed {
		return cfg.Seed, nil
	}
	seed, err := random.NewSeed()
	if err != nil {
		return 0, err
	}
	log.Printf("using random seed %d", seed)
	return seed, nil
}

func remote(ctx context.Context, cfg Config, out io.Writer) error {
	if cfg.OutDir != "" {
		return errors.New("-out is not supported with -remote")
	}
	seed, err := cfg.resolveSeed()
	if err != nil {
		return err
	}
	fields := map[string]any{
		"seed":                   strconv.FormatUint(seed, 10),
		"width":                  cfg.Width,
		"height":                 cfg.Height,
		"altitude_layers":        cfg.Layers,
		"plate_density":          cfg.PlateDensity,
		"river_source_threshold": cfg.RiverThreshold,
		"sea_level":              cfg.SeaLevel,
		"chunk_size":             cfg.ChunkSize,
	}
	if path := strings.TrimSpace(cfg.CatalogPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read catalog: %w", err)
		}
		var catalog any
		if err := json.Unmarshal(data, &catalog); err != nil {
			return fmt.Errorf("decode catalog: %w", err)
		}
		fields["catalog"] = catalog
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	conn, err := platformgrpc.Dial(ctx, cfg.Remote, worldservice.ServiceName, timeouts.GRPCDial, log.Printf)
	if err != nil {
		return err
	}
	defer conn.Close()

	callCtx, cancel := context.WithTimeout(ctx, timeouts.RemoteGenerate)
	defer cancel()
	resp, err := worldservice.NewClient(conn).Generate(callCtx, req)
	if err != nil {
		return fmt.Errorf("remote generate: %w", err)
	}
	summary := resp.GetFields()
	if cfg.ChecksumOnly {
		_, err := fmt.Fprintln(out, summary["checksum"].GetStringValue())
		return err
	}
	p := message.NewPrinter(language.English)
	p.Fprintf(out, "world     %s\n", summary["world_key"].GetStringValue())
	p.Fprintf(out, "seed      %s\n", summary["seed"].GetStringValue())
	p.Fprintf(out, "plates    %d\n", int(summary["plates"].GetNumberValue()))
	p.Fprintf(out, "rivers    %d\n", int(summary["rivers"].GetNumberValue()))
	p.Fprintf(out, "lakes     %d\n", int(summary["lakes"].GetNumberValue()))
	p.Fprintf(out, "features  %d\n", int(summary["features"].GetNumberValue()))
	p.Fprintf(out, "checksum  %s\n", summary["checksum"].GetStringValue())
	p.Fprintf(out, "cached    %t\n", summary["cached"].GetBoolValue())
	return nil
}

func verify(ctx context.Context, dir string, out io.Writer) error {
	m, chunks, err := chunkfile.Load(ctx, dir)
	if err != nil {
		return fmt.Errorf("verify %s: %w", dir, err)
	}
	if len(chunks) == 0 {
		return errors.New("world has no chunks")
	}
	p := message.NewPrinter(language.English)
	p.Fprintf(out, "verified %d chunks of a %d x %d x %d world, checksum %s\n",
		len(chunks), m.Width, m.Height, m.AltitudeLayers, m.Checksum)
	return nil
}
