// Package main generates a world from the command line.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	generatecmd "github.com/louisbranch/worldgen/internal/cmd/generate"
	entrypoint "github.com/louisbranch/worldgen/internal/platform/cmd"
	"github.com/louisbranch/worldgen/internal/platform/config"
)

func main() {
	cfg, err := generatecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceGenerate))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ExitOnError(generatecmd.Run(ctx, cfg, os.Stdout), "generate")
}
