package tuning

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"smt-go/internal/moses"
)

// PenaltyConfig bounds the word penalty search. The sweep walks the
// forward penalty from Min to Max in Step increments; for each forward
// value a backward penalty is searched so that the round-trip length
// ratio stays near one.
type PenaltyConfig struct {
	Min         float64 // sweep start for both penalties
	Max         float64 // sweep end for the forward penalty
	Step        float64 // outer sweep increment
	InitDelta   float64 // first probe distance around the previous penalty
	RatioTol    float64 // acceptable |1-ratio| length drift
	BracketTol  float64 // bisection bracket width cutoff
	BLEUMargin  float64 // sweep abort margin below the best BLEU seen
	MaxProbes   int     // probe and bisection step cap per forward penalty
	CubePruning int     // pop limit for the sweep's fast decoding
}

// DefaultPenaltyConfig returns the search bounds used by the pipeline.
func DefaultPenaltyConfig() PenaltyConfig {
	return PenaltyConfig{
		Min:         -3.5,
		Max:         1.0,
		Step:        0.1,
		InitDelta:   0.1,
		RatioTol:    0.002,
		BracketTol:  0.01,
		BLEUMargin:  3.0,
		MaxProbes:   32,
		CubePruning: 1000,
	}
}

// PenaltyCalibrator searches for the word penalty pair that keeps
// round-trip translations length-neutral while scoring best against the
// dev corpus.
type PenaltyCalibrator struct {
	cfg     PenaltyConfig
	decoder Decoder
	scorer  Scorer
	logger  *zap.Logger
}

// NewPenaltyCalibrator creates a calibrator. A zero config selects the
// default search bounds.
func NewPenaltyCalibrator(cfg PenaltyConfig, decoder Decoder, scorer Scorer, logger *zap.Logger) *PenaltyCalibrator {
	if cfg == (PenaltyConfig{}) {
		cfg = DefaultPenaltyConfig()
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PenaltyCalibrator{cfg: cfg, decoder: decoder, scorer: scorer, logger: logger}
}

// IdentifyShortest translates the dev corpus in both directions and
// returns the sweep order (forward index, backward index). The language
// whose incoming translations shrink the most is the shortest one, and
// the direction translating out of it runs the sweep forward.
func (c *PenaltyCalibrator) IdentifyShortest(ctx context.Context, dev, configs [2]string) (int, int, error) {
	var ratios [2]float64
	for i := 0; i < 2; i++ {
		lines, err := readLines(dev[i])
		if err != nil {
			return 0, 0, err
		}
		out, err := c.decoder.Translate(ctx, configs[i], lines, moses.DecodeOptions{CubePruning: c.cfg.CubePruning})
		if err != nil {
			return 0, 0, err
		}
		translated := tokenCount(out)
		if translated == 0 {
			return 0, 0, fmt.Errorf("translating %s produced no tokens", dev[i])
		}
		ratios[i] = float64(tokenCount(lines)) / float64(translated)
	}
	c.logger.Info("Compared translation lengths",
		zap.Float64("src2trgRatio", ratios[0]),
		zap.Float64("trg2srcRatio", ratios[1]),
	)
	if ratios[0] > ratios[1] {
		return 1, 0, nil
	}
	return 0, 1, nil
}

// Calibrate sweeps the forward penalty across the configured range,
// balancing each value with a backward penalty, and returns the pair with
// the best round-trip BLEU indexed by direction. The sweep aborts early
// once BLEU falls more than BLEUMargin below its peak.
func (c *PenaltyCalibrator) Calibrate(ctx context.Context, dev, configs [2]string, fwd, bwd int) ([2]float64, error) {
	var best [2]float64
	devLines, err := readLines(dev[fwd])
	if err != nil {
		return best, err
	}

	haveBest := false
	bestBleu := -1.0
	fwdPenalty := c.cfg.Min
	bwdPenalty := c.cfg.Min
	for fwdPenalty <= c.cfg.Max+c.cfg.BracketTol {
		fp := fwdPenalty
		bt, err := c.decoder.Translate(ctx, configs[fwd], devLines, moses.DecodeOptions{
			CubePruning: c.cfg.CubePruning,
			WordPenalty: &fp,
		})
		if err != nil {
			return best, err
		}

		var bleu float64
		bwdPenalty, bleu, err = c.balance(ctx, configs[bwd], bt, devLines, bwdPenalty)
		if err != nil {
			return best, err
		}
		c.logger.Info("Evaluated penalty pair",
			zap.Float64("forward", fwdPenalty),
			zap.Float64("backward", bwdPenalty),
			zap.Float64("bleu", bleu),
		)
		if bleu >= bestBleu {
			bestBleu = bleu
			best[fwd] = fwdPenalty
			best[bwd] = bwdPenalty
			haveBest = true
		} else if bleu < bestBleu-c.cfg.BLEUMargin {
			break
		}
		fwdPenalty += c.cfg.Step
		bwdPenalty -= c.cfg.Step
	}
	if !haveBest {
		return best, fmt.Errorf("penalty sweep over [%v, %v] evaluated no candidates", c.cfg.Min, c.cfg.Max)
	}
	c.logger.Info("Selected word penalties",
		zap.Float64("src2trg", best[0]),
		zap.Float64("trg2src", best[1]),
		zap.Float64("bleu", bestBleu),
	)
	return best, nil
}

// balance searches for a backward penalty that brings the round-trip
// length ratio within RatioTol of one, starting from the previous value.
// Penalties whose output runs long bound the search from below, short
// ones from above; until both bounds are known the probe doubles its
// distance from the start, afterwards the bracket is bisected. A response
// that never settles within MaxProbes ends the search at the penalty with
// the smallest drift seen.
func (c *PenaltyCalibrator) balance(ctx context.Context, config string, input, ref []string, start float64) (float64, float64, error) {
	var pmin, pmax *float64
	penalty := start
	delta := c.cfg.InitDelta
	closest := start
	closestBleu := 0.0
	closestDrift := math.Inf(1)

	for probe := 0; ; probe++ {
		p := penalty
		sys, err := c.decoder.Translate(ctx, config, input, moses.DecodeOptions{
			CubePruning: c.cfg.CubePruning,
			WordPenalty: &p,
		})
		if err != nil {
			return 0, 0, err
		}
		bleu, ratio, err := c.scorer.Score(ctx, sys, ref)
		if err != nil {
			return 0, 0, err
		}
		drift := math.Abs(1.0 - ratio)
		if drift < closestDrift {
			closestDrift = drift
			closest = penalty
			closestBleu = bleu
		}
		if drift < c.cfg.RatioTol {
			return penalty, bleu, nil
		}
		if probe+1 >= c.cfg.MaxProbes {
			c.logger.Warn("Length ratio never settled, keeping the closest penalty",
				zap.Float64("penalty", closest),
				zap.Float64("drift", closestDrift),
			)
			return closest, closestBleu, nil
		}
		if ratio > 1.0 {
			v := penalty
			pmin = &v
		} else {
			v := penalty
			pmax = &v
		}
		switch {
		case pmin == nil:
			penalty = start - delta
			delta *= 2
		case pmax == nil:
			penalty = start + delta
			delta *= 2
		default:
			penalty = *pmin + (*pmax-*pmin)/2
			if *pmax-*pmin < c.cfg.BracketTol {
				return penalty, bleu, nil
			}
		}
	}
}
