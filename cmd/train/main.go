package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"smt-go/internal/config"
	"smt-go/internal/pipeline"
)

func main() {
	var appConfigPath = flag.String("app", "app.yaml", "Path to app configuration file")
	var workDir = flag.String("workdir", "", "Working directory to store files")
	var srcCorpus = flag.String("src", "", "Source language monolingual corpus")
	var trgCorpus = flag.String("trg", "", "Target language monolingual corpus")
	var srcLang = flag.String("src-lang", "", "Source language code")
	var trgLang = flag.String("trg-lang", "", "Target language code")
	var fromStep = flag.Int("from-step", 1, "First training step to run")
	var toStep = flag.Int("to-step", 8, "Last training step to run")
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

	// Override workdir from command line if provided
	if *workDir != "" {
		cfg.App.WorkDir = *workDir
	}

	logger.Info("Configuration loaded successfully", zap.Any("config", cfg))

	runner, err := pipeline.NewRunner(cfg, pipeline.Job{
		SrcCorpus: *srcCorpus,
		TrgCorpus: *trgCorpus,
		SrcLang:   *srcLang,
		TrgLang:   *trgLang,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", zap.Error(err))
	}
	if err := runner.Run(context.Background(), *fromStep, *toStep); err != nil {
		logger.Fatal("Training failed", zap.Error(err))
	}
	logger.Info("Training finished")
}
