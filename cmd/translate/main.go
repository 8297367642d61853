package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"smt-go/internal/config"
	"smt-go/internal/moses"
)

// Translates a file (or stdin) with a trained model, one sentence per
// line, writing the translations to a file (or stdout).
func main() {
	var appConfigPath = flag.String("app", "app.yaml", "Path to app configuration file")
	var modelName = flag.String("model", "", "Name of the model to translate with")
	var reverse = flag.Bool("reverse", false, "Translate target to source")
	var input = flag.String("input", "", "Input file, stdin when empty")
	var output = flag.String("output", "", "Output file, stdout when empty")
	var nbest = flag.Int("nbest", 0, "Emit an n-best list of this size instead of the best translation")
	flag.Parse()

	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(zapcore.DebugLevel)
	cfgZap.OutputPaths = []string{"stderr", "all.log"}
	logger, err := cfgZap.Build()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*appConfigPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *modelName == "" {
		logger.Fatal("Flag -model is required")
	}
	model, err := cfg.GetModel(*modelName)
	if err != nil {
		logger.Fatal("Unknown model", zap.String("model", *modelName), zap.Error(err))
	}

	lines, err := readInput(*input)
	if err != nil {
		logger.Fatal("Failed to read input", zap.Error(err))
	}

	decoder := moses.NewMosesDecoder(moses.DecoderConfig{
		MosesDir: cfg.Tools.MosesDir,
		Threads:  cfg.App.Threads,
		Timeout:  cfg.Tools.Timeout,
	}, logger)
	ctx := context.Background()

	var out []string
	if *nbest > 0 {
		entries, err := decoder.TranslateNBest(ctx, model.ConfigPath(*reverse), lines, *nbest, moses.DecodeOptions{})
		if err != nil {
			logger.Fatal("Translation failed", zap.Error(err))
		}
		out = make([]string, len(entries))
		for i, e := range entries {
			out[i] = fmt.Sprintf("%d ||| %s ||| %s", e.Index, e.Text, e.Features)
		}
	} else {
		out, err = decoder.Translate(ctx, model.ConfigPath(*reverse), lines, moses.DecodeOptions{})
		if err != nil {
			logger.Fatal("Translation failed", zap.Error(err))
		}
	}

	if err := writeOutput(*output, out); err != nil {
		logger.Fatal("Failed to write output", zap.Error(err))
	}
}

func readInput(path string) ([]string, error) {
	f := os.Stdin
	if path != "" {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
	}
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func writeOutput(path string, lines []string) error {
	f := os.Stdout
	if path != "" {
		var err error
		f, err = os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
	}
	w := bufio.NewWriter(f)
	for _, ln := range lines {
		if _, err := fmt.Fprintln(w, ln); err != nil {
			return err
		}
	}
	return w.Flush()
}
