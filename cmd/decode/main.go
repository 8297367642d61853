package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"smt-go/internal/moses"
	"smt-go/internal/tuning"
)

// Generates the merged n-best candidate list the external weight
// optimizer scores. The tuning loop invokes this binary once per
// optimizer pass, pointing it at the trial weight vector.
func main() {
	var input = flag.String("input", "", "Sentences to decode")
	var src = flag.String("src", "", "Real source corpus for round-trip scoring")
	var output = flag.String("output", "", "Merged n-best list to write")
	var cache = flag.String("cache", "", "Round-trip translation cache")
	var configPath = flag.String("config", "", "Configuration under tuning")
	var configBwd = flag.String("config-bwd", "", "Reverse configuration for round-trip decoding")
	var weights = flag.String("weights", "", "Current optimizer weight vector")
	var mosesDir = flag.String("moses", "", "Moses installation directory")
	var lmFeature = flag.String("lm-feature", "LM0", "Name of the language model feature")
	var threads = flag.Int("threads", 1, "Number of decoder threads")
	var cubePruning = flag.Int("cube-pruning-pop-limit", 1000, "Pop limit for round-trip decoding")
	var nbest = flag.Int("nbest", 100, "Number of candidates per sentence")
	flag.Parse()

	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(zapcore.DebugLevel)
	cfgZap.OutputPaths = []string{"stdout", "all.log"}
	logger, err := cfgZap.Build()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	for _, f := range []string{*input, *output, *cache, *configPath, *weights, *mosesDir} {
		if f == "" {
			logger.Fatal("Flags -input, -output, -cache, -config, -weights and -moses are required")
		}
	}

	decoder := moses.NewMosesDecoder(moses.DecoderConfig{
		MosesDir: *mosesDir,
		Threads:  *threads,
	}, logger)
	generator := tuning.NewNBestGenerator(decoder, logger)
	err = generator.Generate(context.Background(), tuning.NBestJob{
		Input:         *input,
		Source:        *src,
		Output:        *output,
		CachePath:     *cache,
		Config:        *configPath,
		WeightsPath:   *weights,
		ReverseConfig: *configBwd,
		NBest:         *nbest,
		CubePruning:   *cubePruning,
		LMFeature:     *lmFeature,
	})
	if err != nil {
		logger.Fatal("Candidate generation failed", zap.Error(err))
	}
}
