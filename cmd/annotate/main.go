package main

import (
	"flag"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"smt-go/internal/phrasetable"
)

// Appends orthographic similarity scores to the lines of a phrase table,
// one per translation direction.
func main() {
	var minSim = flag.Float64("min-sim", 0.3, "Minimum similarity per token pair")
	var input = flag.String("input", "", "Input phrase table, stdin when empty")
	var output = flag.String("output", "", "Output phrase table, stdout when empty")
	flag.Parse()

	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(zapcore.DebugLevel)
	cfgZap.OutputPaths = []string{"stderr", "all.log"}
	logger, err := cfgZap.Build()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	fin := os.Stdin
	if *input != "" {
		fin, err = os.Open(*input)
		if err != nil {
			logger.Fatal("Failed to open input", zap.Error(err))
		}
		defer fin.Close()
	}
	fout := os.Stdout
	if *output != "" {
		fout, err = os.Create(*output)
		if err != nil {
			logger.Fatal("Failed to create output", zap.Error(err))
		}
		defer fout.Close()
	}

	annotator := phrasetable.NewAnnotator(*minSim)
	if err := annotator.AnnotateStream(fin, fout); err != nil {
		logger.Fatal("Annotation failed", zap.Error(err))
	}
}
