// Package score implements corpus-level BLEU for whitespace-tokenized
// text.
package score

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

const maxOrder = 4

// Result holds the corpus-level score breakdown.
type Result struct {
	Bleu           float64 // 0 to 100
	Precisions     [maxOrder]float64
	BrevityPenalty float64
	Ratio          float64 // hypothesis length over reference length
	HypLength      int
	RefLength      int
}

// Corpus scores a system output against its references, one line per
// sentence. Tokens are whitespace-separated; n-gram matches are clipped to
// the reference counts and pooled over the corpus before the geometric
// mean is taken.
func Corpus(sys, ref []string) (Result, error) {
	if len(sys) != len(ref) {
		return Result{}, fmt.Errorf("sentence count mismatch: %d hypotheses, %d references", len(sys), len(ref))
	}

	var matches, totals [maxOrder]int
	var res Result
	for i := range sys {
		hyp := strings.Fields(sys[i])
		rf := strings.Fields(ref[i])
		res.HypLength += len(hyp)
		res.RefLength += len(rf)
		for n := 1; n <= maxOrder; n++ {
			refCounts := ngramCounts(rf, n)
			for g, c := range ngramCounts(hyp, n) {
				totals[n-1] += c
				if rc := refCounts[g]; rc > 0 {
					if c < rc {
						matches[n-1] += c
					} else {
						matches[n-1] += rc
					}
				}
			}
		}
	}

	for n := 0; n < maxOrder; n++ {
		if totals[n] > 0 {
			res.Precisions[n] = 100 * float64(matches[n]) / float64(totals[n])
		}
	}
	if res.RefLength > 0 {
		res.Ratio = float64(res.HypLength) / float64(res.RefLength)
	}
	if res.HypLength == 0 || res.RefLength == 0 {
		return res, nil
	}

	res.BrevityPenalty = 1
	if res.HypLength < res.RefLength {
		res.BrevityPenalty = math.Exp(1 - float64(res.RefLength)/float64(res.HypLength))
	}

	logSum := 0.0
	for n := 0; n < maxOrder; n++ {
		if matches[n] == 0 || totals[n] == 0 {
			return res, nil
		}
		logSum += math.Log(float64(matches[n]) / float64(totals[n]))
	}
	res.Bleu = 100 * res.BrevityPenalty * math.Exp(logSum/maxOrder)
	return res, nil
}

func ngramCounts(tokens []string, n int) map[string]int {
	if len(tokens) < n {
		return nil
	}
	counts := make(map[string]int, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}
	return counts
}

// BleuScorer scores translations in process, without external scripts.
type BleuScorer struct {
	logger *zap.Logger
}

// NewBleuScorer creates a scorer.
func NewBleuScorer(logger *zap.Logger) *BleuScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BleuScorer{logger: logger}
}

// Score returns the corpus BLEU and the length ratio of sys against ref.
func (s *BleuScorer) Score(ctx context.Context, sys, ref []string) (float64, float64, error) {
	res, err := Corpus(sys, ref)
	if err != nil {
		return 0, 0, err
	}
	s.logger.Debug("Scored translations",
		zap.Float64("bleu", res.Bleu),
		zap.Float64("ratio", res.Ratio),
		zap.Int("sentences", len(sys)),
	)
	return res.Bleu, res.Ratio, nil
}
