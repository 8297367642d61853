package main

import (
	"context"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"smt-go/internal/config"
	"smt-go/internal/pipeline"
)

// Induces the directional phrase tables from a pair of mapped embedding
// files, outside a full training run.
func main() {
	var appConfigPath = flag.String("app", "app.yaml", "Path to app configuration file")
	var srcEmb = flag.String("src-embeddings", "", "Mapped source embedding file")
	var trgEmb = flag.String("trg-embeddings", "", "Mapped target embedding file")
	var outDir = flag.String("output", "", "Directory for the induced phrase tables")
	flag.Parse()

	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(zapcore.DebugLevel)
	cfgZap.OutputPaths = []string{"stdout", "all.log"}
	logger, err := cfgZap.Build()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*appConfigPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *srcEmb == "" || *trgEmb == "" || *outDir == "" {
		logger.Fatal("Flags -src-embeddings, -trg-embeddings and -output are required")
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Fatal("Failed to create output directory", zap.Error(err))
	}
	err = pipeline.InduceTables(context.Background(), cfg.Induction, cfg.App.Seed, *srcEmb, *trgEmb, *outDir, logger)
	if err != nil {
		logger.Fatal("Induction failed", zap.Error(err))
	}
	logger.Info("Induction finished", zap.String("output", *outDir))
}
