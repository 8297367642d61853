package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"smt-go/internal/config"
	"smt-go/internal/moses"
	"smt-go/internal/score"
	"smt-go/internal/tuning"
)

// tune runs step 7: the unsupervised tuning loop over both directions,
// starting from the initial models and writing the tuned configurations.
func (r *Runner) tune(ctx context.Context) error {
	root, err := r.makeStepDir(7)
	if err != nil {
		return err
	}
	dev := [2]string{
		filepath.Join(r.stepDir(1), "dev.true.src"),
		filepath.Join(r.stepDir(1), "dev.true.trg"),
	}
	input := [2]string{
		filepath.Join(r.stepDir(6), "src2trg.moses.ini"),
		filepath.Join(r.stepDir(6), "trg2src.moses.ini"),
	}
	output := [2]string{
		filepath.Join(root, "src2trg.moses.ini"),
		filepath.Join(root, "trg2src.moses.ini"),
	}
	return TuneModels(ctx, r.cfg, dev, input, output, false, r.logger)
}

// TuneModels wires the decoder, scorer, entropy estimator and weight
// optimizer together and runs the tuning loop over both directions. With
// supervised set, the dev corpora are treated as parallel and the
// round-trip machinery is skipped.
func TuneModels(ctx context.Context, cfg *config.Config, dev, input, output [2]string, supervised bool, logger *zap.Logger) error {
	tools := cfg.Tools
	if tools.MosesDir == "" {
		return fmt.Errorf("moses_dir not configured")
	}
	if tools.ZmertJar == "" {
		return fmt.Errorf("zmert_jar not configured")
	}

	decoder := moses.NewMosesDecoder(moses.DecoderConfig{
		MosesDir: tools.MosesDir,
		Threads:  cfg.App.Threads,
		Timeout:  tools.Timeout,
	}, logger)
	var scorer tuning.Scorer = moses.NewMultiBleu(filepath.Join(tools.MosesDir, "scripts", "generic", "multi-bleu.perl"), tools.Timeout, logger)
	if cfg.Tuning.NativeBleu {
		scorer = score.NewBleuScorer(logger)
	}
	entropy := moses.NewKenLMQuery(filepath.Join(tools.MosesDir, "bin", "query"), tools.Timeout, logger)
	optimizer := moses.NewZMERTOptimizer(moses.ZMERTConfig{
		Jar:     tools.ZmertJar,
		Java:    tools.Java,
		Threads: cfg.App.Threads,
		Timeout: tools.Timeout,
	}, logger)

	tcfg := cfg.Tuning
	p := tcfg.Penalty
	tuner := tuning.NewTuner(tuning.TunerConfig{
		Dev:           dev,
		Input:         input,
		Output:        output,
		Supervised:    supervised,
		LengthInit:    tcfg.LengthInit,
		Iterations:    tcfg.Iterations,
		NBest:         tcfg.NBest,
		CubePruning:   tcfg.CubePruning,
		Threads:       cfg.App.Threads,
		MosesDir:      tools.MosesDir,
		DecodeCommand: tools.Decode,
		Penalty: tuning.PenaltyConfig{
			Min:         p.Min,
			Max:         p.Max,
			Step:        p.Step,
			InitDelta:   p.InitDelta,
			RatioTol:    p.RatioTol,
			BracketTol:  p.BracketTol,
			BLEUMargin:  p.BLEUMargin,
			MaxProbes:   p.MaxProbes,
			CubePruning: tcfg.CubePruning,
		},
	}, decoder, scorer, entropy, optimizer, logger)
	return tuner.Tune(ctx)
}
