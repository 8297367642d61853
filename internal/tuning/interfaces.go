// Package tuning drives the self-calibrating weight optimization loop:
// word penalty calibration, pseudo-reference construction through
// back-translation, candidate generation for the external optimizer, and
// the iteration state machine that alternates between both translation
// directions until the weights converge.
package tuning

import (
	"context"

	"smt-go/internal/moses"
)

// Decoder translates text with a given decoder configuration.
type Decoder interface {
	Translate(ctx context.Context, config string, lines []string, opts moses.DecodeOptions) ([]string, error)
	TranslateNBest(ctx context.Context, config string, lines []string, n int, opts moses.DecodeOptions) ([]moses.NBestEntry, error)
}

// Scorer measures corpus translation quality against a reference,
// returning a BLEU score and the hypothesis/reference length ratio.
type Scorer interface {
	Score(ctx context.Context, sys, ref []string) (float64, float64, error)
}

// EntropyEstimator estimates the entropy of a corpus under a language
// model.
type EntropyEstimator interface {
	Entropy(ctx context.Context, lmPath string, lines []string) (float64, error)
}

// Optimizer tunes decoder weights over a prepared working directory.
type Optimizer interface {
	Optimize(ctx context.Context, job moses.OptimizeJob) (*moses.Weights, error)
}
