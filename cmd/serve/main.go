package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"smt-go/internal/config"
	"smt-go/internal/controller"
	"smt-go/internal/handler"
	"smt-go/internal/moses"
	"smt-go/pkg/mcp"
)

func main() {
	var appConfigPath = flag.String("app", "app.yaml", "Path to app configuration file")
	var workDir = flag.String("workdir", "", "Working directory to store files")
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

	var qdrantCfg *config.QdrantConfig
	if cfg.Qdrant.Host != "" {
		qdrantCfg = &cfg.Qdrant
	} else {
		logger.Info("Qdrant not configured, nearest-phrase queries will use the in-memory index")
	}

	decoder := moses.NewMosesDecoder(moses.DecoderConfig{
		MosesDir: cfg.Tools.MosesDir,
		Threads:  cfg.App.Threads,
		Timeout:  cfg.Tools.Timeout,
	}, logger)
	translateController := controller.NewTranslateController(cfg, decoder, qdrantCfg, logger)
	defer translateController.Close()

	mcpServer := mcp.NewTranslationServer(translateController, cfg, logger)

	router := handler.SetupRouter(translateController, mcpServer, logger)

	logger.Info("Starting server", zap.Int("port", cfg.App.Port))
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.App.Port), router); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
