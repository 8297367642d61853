package tuning

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"smt-go/internal/moses"
)

// TunerConfig holds the corpora, configurations and knobs for one tuning
// run. Dev, Input and Output are indexed by direction: 0 holds the
// source-to-target side, 1 the target-to-source side.
type TunerConfig struct {
	Dev    [2]string // dev corpora
	Input  [2]string // starting decoder configurations
	Output [2]string // tuned decoder configurations

	Supervised bool // tune on the parallel dev pair directly
	LengthInit bool // calibrate word penalties before tuning

	Iterations  int // iteration budget, defaults to 10
	NBest       int // defaults to 100
	CubePruning int // defaults to 1000
	Threads     int // defaults to 20

	WordPenaltyFeature string // defaults to WordPenalty0
	LMFeature          string // defaults to LM0

	MosesDir      string
	DecodeCommand string // candidate-generation binary run by the optimizer

	Penalty PenaltyConfig
}

// Tuner alternates optimizer passes between both translation directions,
// persisting each iteration's weight vector, until the weights converge
// or the iteration budget runs out.
type Tuner struct {
	cfg       TunerConfig
	decoder   Decoder
	scorer    Scorer
	entropy   EntropyEstimator
	optimizer Optimizer
	pseudoRef *PseudoReferenceBuilder
	logger    *zap.Logger
}

// NewTuner creates a tuner, substituting defaults for unset knobs.
func NewTuner(cfg TunerConfig, decoder Decoder, scorer Scorer, entropy EntropyEstimator, optimizer Optimizer, logger *zap.Logger) *Tuner {
	if cfg.Iterations <= 0 {
		cfg.Iterations = 10
	}
	if cfg.NBest <= 0 {
		cfg.NBest = 100
	}
	if cfg.CubePruning <= 0 {
		cfg.CubePruning = 1000
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 20
	}
	if cfg.WordPenaltyFeature == "" {
		cfg.WordPenaltyFeature = "WordPenalty0"
	}
	if cfg.LMFeature == "" {
		cfg.LMFeature = "LM0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tuner{
		cfg:       cfg,
		decoder:   decoder,
		scorer:    scorer,
		entropy:   entropy,
		optimizer: optimizer,
		pseudoRef: NewPseudoReferenceBuilder(decoder, logger),
		logger:    logger,
	}
}

// Tune runs the full optimization and leaves the tuned configurations at
// the output paths.
func (t *Tuner) Tune(ctx context.Context) error {
	fwd, bwd, err := t.initialize(ctx)
	if err != nil {
		return err
	}

	entropies, err := t.devEntropies(ctx)
	if err != nil {
		return err
	}

	iterations := t.cfg.Iterations
	if t.cfg.Supervised {
		iterations = 1
	}

	converged := false
	for it := 0; it < iterations && !converged; it++ {
		directions := []struct {
			first     bool
			ind, rind int
		}{
			{true, fwd, bwd},
			{false, bwd, fwd},
		}
		for _, d := range directions {
			if converged {
				break
			}
			converged, err = t.optimizePass(ctx, it, d.first, d.ind, d.rind, entropies)
			if err != nil {
				return fmt.Errorf("optimizing direction %d at iteration %d: %w", d.ind, it, err)
			}
		}
	}
	if converged {
		return nil
	}
	for i := 0; i < 2; i++ {
		if err := copyFile(t.iterConfig(i, iterations), t.cfg.Output[i]); err != nil {
			return err
		}
	}
	return nil
}

// initialize writes the iteration-zero configurations, calibrating word
// penalties and picking the sweep order when length-based initialization
// is on.
func (t *Tuner) initialize(ctx context.Context) (int, int, error) {
	if t.cfg.Supervised || !t.cfg.LengthInit {
		for i := 0; i < 2; i++ {
			if err := copyFile(t.cfg.Input[i], t.iterConfig(i, 0)); err != nil {
				return 0, 0, err
			}
		}
		return 0, 1, nil
	}

	calibrator := NewPenaltyCalibrator(t.cfg.Penalty, t.decoder, t.scorer, t.logger)
	fwd, bwd, err := calibrator.IdentifyShortest(ctx, t.cfg.Dev, t.cfg.Input)
	if err != nil {
		return 0, 0, err
	}
	penalties, err := calibrator.Calibrate(ctx, t.cfg.Dev, t.cfg.Input, fwd, bwd)
	if err != nil {
		return 0, 0, err
	}
	for i := 0; i < 2; i++ {
		w, err := moses.ExtractWeights(t.cfg.Input[i])
		if err != nil {
			return 0, 0, err
		}
		w.Set(t.cfg.WordPenaltyFeature, []string{fmt.Sprintf("%.4f", penalties[i])})
		if err := moses.ReplaceWeights(t.cfg.Input[i], t.iterConfig(i, 0), w); err != nil {
			return 0, 0, err
		}
	}
	return fwd, bwd, nil
}

// devEntropies scores each dev side with the language model carried by
// the opposite direction's configuration, which models that side's
// language.
func (t *Tuner) devEntropies(ctx context.Context) ([2]float64, error) {
	var out [2]float64
	for i := 0; i < 2; i++ {
		lmPath, err := moses.FeaturePath(t.cfg.Input[(i+1)%2], t.cfg.LMFeature)
		if err != nil {
			return out, err
		}
		lines, err := readLines(t.cfg.Dev[i])
		if err != nil {
			return out, err
		}
		out[i], err = t.entropy.Entropy(ctx, lmPath, lines)
		if err != nil {
			return out, err
		}
		t.logger.Info("Estimated dev entropy",
			zap.Int("side", i),
			zap.Float64("entropy", out[i]),
		)
	}
	return out, nil
}

// optimizePass runs one optimizer pass for the ind direction and reports
// whether the weights converged.
func (t *Tuner) optimizePass(ctx context.Context, it int, first bool, ind, rind int, entropies [2]float64) (bool, error) {
	srcDev, trgDev := t.cfg.Dev[ind], t.cfg.Dev[rind]
	current := t.iterConfig(ind, it)
	next := t.iterConfig(ind, it+1)
	reverseIt := it
	if !first {
		reverseIt = it + 1
	}
	reverseConfig := t.iterConfig(rind, reverseIt)

	workDir, err := os.MkdirTemp("", "tune-")
	if err != nil {
		return false, err
	}
	defer os.RemoveAll(workDir)

	if err := os.WriteFile(filepath.Join(workDir, moses.CacheFile), nil, 0o644); err != nil {
		return false, err
	}
	if err := t.pseudoRef.Build(ctx, workDir, srcDev, trgDev, reverseConfig, t.cfg.Supervised); err != nil {
		return false, err
	}

	weights, err := moses.ExtractWeights(current)
	if err != nil {
		return false, err
	}
	tuned, err := t.optimizer.Optimize(ctx, moses.OptimizeJob{
		WorkDir:        workDir,
		Weights:        weights,
		DecoderCommand: t.decodeCommand(workDir, srcDev, current, reverseConfig),
		TargetEntropy:  entropies[rind],
		NBest:          t.cfg.NBest,
	})
	if err != nil {
		return false, err
	}
	if err := moses.ReplaceWeights(current, next, tuned); err != nil {
		return false, err
	}

	equal, err := moses.ConfigsEqual(current, next)
	if err != nil {
		return false, err
	}
	if !equal {
		t.logger.Info("Weights still moving",
			zap.Int("direction", ind),
			zap.Int("iteration", it),
		)
		return false, nil
	}

	// an unchanged weight vector stops both directions
	if err := copyFile(current, t.cfg.Output[ind]); err != nil {
		return false, err
	}
	if err := copyFile(reverseConfig, t.cfg.Output[rind]); err != nil {
		return false, err
	}
	t.logger.Info("Weights converged",
		zap.Int("direction", ind),
		zap.Int("iteration", it),
	)
	return true, nil
}

// decodeCommand renders the candidate-generation command the optimizer
// launches on each pass. The decoder returns one candidate more than
// asked for, so the request is shrunk by one to keep the list at NBest.
func (t *Tuner) decodeCommand(workDir, srcDev, config, reverseConfig string) string {
	args := []string{
		t.cfg.DecodeCommand,
		"--input", filepath.Join(workDir, moses.InputFile),
	}
	if !t.cfg.Supervised {
		args = append(args, "--src", srcDev)
	}
	args = append(args,
		"--output", filepath.Join(workDir, moses.NBestFile),
		"--cache", filepath.Join(workDir, moses.CacheFile),
		"--config", config,
		"--config-bwd", reverseConfig,
		"--weights", filepath.Join(workDir, moses.DecoderConfigFile),
		"--moses", t.cfg.MosesDir,
		"--lm-feature", t.cfg.LMFeature,
		"--threads", strconv.Itoa(t.cfg.Threads),
		"--cube-pruning-pop-limit", strconv.Itoa(t.cfg.CubePruning),
		"--nbest", strconv.Itoa(t.cfg.NBest-1),
	)
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func (t *Tuner) iterConfig(i, it int) string {
	return t.cfg.Output[i] + ".it" + strconv.Itoa(it)
}
