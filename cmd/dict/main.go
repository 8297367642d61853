package main

import (
	"flag"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"smt-go/internal/phrasetable"
)

// Extracts a tab-separated bilingual dictionary from a phrase table,
// keeping single-word pairs unless multiword entries are requested.
func main() {
	var input = flag.String("input", "", "Input phrase table, stdin when empty")
	var output = flag.String("output", "", "Output dictionary, stdout when empty")
	var feature = flag.Int("feature", 2, "Index of the score used for ranking")
	var reverse = flag.Bool("reverse", false, "Emit target to source pairs")
	var phrases = flag.Bool("phrases", false, "Keep multiword entries")
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

	opts := phrasetable.DictOptions{
		Feature:        *feature,
		Reverse:        *reverse,
		IncludePhrases: *phrases,
	}
	if err := phrasetable.ExtractDict(fin, fout, opts); err != nil {
		logger.Fatal("Dictionary extraction failed", zap.Error(err))
	}
}
