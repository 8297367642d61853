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

// Tunes an existing model pair against a development corpus, outside a
// full training run.
func main() {
	var appConfigPath = flag.String("app", "app.yaml", "Path to app configuration file")
	var srcDev = flag.String("src-dev", "", "Source side of the development corpus")
	var trgDev = flag.String("trg-dev", "", "Target side of the development corpus")
	var srcInput = flag.String("src2trg", "", "Starting source-to-target configuration")
	var trgInput = flag.String("trg2src", "", "Starting target-to-source configuration")
	var srcOutput = flag.String("src2trg-out", "", "Tuned source-to-target configuration")
	var trgOutput = flag.String("trg2src-out", "", "Tuned target-to-source configuration")
	var supervised = flag.Bool("supervised", false, "Treat the development corpus as parallel")
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
	for _, f := range []string{*srcDev, *trgDev, *srcInput, *trgInput, *srcOutput, *trgOutput} {
		if f == "" {
			logger.Fatal("Flags -src-dev, -trg-dev, -src2trg, -trg2src, -src2trg-out and -trg2src-out are required")
		}
	}

	err = pipeline.TuneModels(context.Background(), cfg,
		[2]string{*srcDev, *trgDev},
		[2]string{*srcInput, *trgInput},
		[2]string{*srcOutput, *trgOutput},
		*supervised, logger)
	if err != nil {
		logger.Fatal("Tuning failed", zap.Error(err))
	}
	logger.Info("Tuning finished",
		zap.String("src2trg", *srcOutput),
		zap.String("trg2src", *trgOutput),
	)
}
