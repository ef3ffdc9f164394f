package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zerosum-labs/learner/env/squarely"
	"github.com/zerosum-labs/learner/learn"
	"github.com/zerosum-labs/learner/model/linear"
	"github.com/zerosum-labs/learner/observability"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to config file, YAML or JSON (optional)")
		directory  = flag.String("directory", "", "Directory with target streams and checkpoints (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := learn.DefaultConfig()
	if *configFile != "" {
		loaded, err := learn.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	if *directory != "" {
		cfg.Directory = *directory
	}
	if cfg.Directory == "" {
		fmt.Fprintln(os.Stderr, "Usage: learner -directory <dir> [-config <file>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Rebind the "slog" registry entry to the leveled stderr logger so the
	// config's observer selection stays in charge.
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	game := squarely.New()
	mdl := linear.New(game, cfg.LearningRate)

	scheduler, err := learn.New(&cfg, game, mdl)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Training loop failed: %v", err)
	}

	logger.Info("training loop stopped", "steps", scheduler.Steps(), "run_id", scheduler.RunID())
}
