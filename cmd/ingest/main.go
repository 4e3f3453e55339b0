package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/config"
	"github.com/rfranks/ehr-anonymizer/internal/ingest"
	"github.com/rfranks/ehr-anonymizer/internal/logger"
	"github.com/rfranks/ehr-anonymizer/internal/pipeline"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		inputFile  = flag.String("input", "", "Manifest file of document references (CSV, JSON, or Parquet)")
		collection = flag.String("collection", "", "Default collection for entries without one")
		progress   = flag.Int("progress", 100, "Log progress every N documents (0 disables)")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s --input manifest.csv [options]\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting batch ingest", zap.String("input", *inputFile))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	entries, err := ingest.ReadManifest(*inputFile)
	if err != nil {
		log.Fatal("Failed to read manifest", zap.Error(err))
	}
	log.Info("Manifest loaded", zap.Int("entries", len(entries)))

	pipe, cleanup, err := pipeline.BuildFromConfig(cfg, nil, log)
	if err != nil {
		log.Fatal("Failed to build pipeline", zap.Error(err))
	}
	defer cleanup()

	defaultCollection := *collection
	if defaultCollection == "" {
		defaultCollection = cfg.Documents.DefaultCollection
	}

	runner := ingest.NewRunner(pipe, defaultCollection, *progress, log)
	result, err := runner.Run(ctx, entries)
	if err != nil {
		log.Error("Batch interrupted", zap.Error(err),
			zap.Int("processed", result.Processed))
		os.Exit(1)
	}

	if result.Failed > 0 {
		os.Exit(1)
	}
}
