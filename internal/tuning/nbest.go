package tuning

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"smt-go/internal/moses"
)

// NBestJob describes one candidate-generation run for the optimizer.
type NBestJob struct {
	Input         string // synthetic source sentences to decode
	Source        string // real source dev corpus for round-trip scoring (optional)
	Output        string // merged n-best list
	CachePath     string // round-trip translation cache
	Config        string // configuration under tuning
	WeightsPath   string // current optimizer weight vector
	ReverseConfig string // fixed reverse configuration for round-trip decoding
	NBest         int    // defaults to 100
	CubePruning   int    // pop limit for round-trip decoding, defaults to 1000
	LMFeature     string // defaults to LM0
}

// NBestGenerator produces the merged candidate stream the optimizer
// scores on each pass. The forward block decodes the synthetic input with
// the trial weights; the optional backward block decodes the real source
// corpus the same way and carries each candidate's round-trip translation
// so the metric can score it against the source-language half of the
// reference.
type NBestGenerator struct {
	decoder Decoder
	logger  *zap.Logger
}

// NewNBestGenerator creates a generator around the given decoder.
func NewNBestGenerator(decoder Decoder, logger *zap.Logger) *NBestGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NBestGenerator{decoder: decoder, logger: logger}
}

// Generate writes the merged n-best list for job.
func (g *NBestGenerator) Generate(ctx context.Context, job NBestJob) error {
	if job.NBest <= 0 {
		job.NBest = 100
	}
	if job.CubePruning <= 0 {
		job.CubePruning = 1000
	}
	if job.LMFeature == "" {
		job.LMFeature = "LM0"
	}

	cache, err := OpenTranslationCache(job.CachePath)
	if err != nil {
		return err
	}

	wf, err := os.Open(job.WeightsPath)
	if err != nil {
		return err
	}
	weights, err := moses.ParseOptimizedParams(wf)
	wf.Close()
	if err != nil {
		return err
	}

	tmp, err := os.MkdirTemp("", "nbest-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	trialConfig := filepath.Join(tmp, "moses.ini")
	if err := moses.ReplaceWeights(job.Config, trialConfig, weights); err != nil {
		return err
	}

	inputLines, err := readLines(job.Input)
	if err != nil {
		return err
	}
	forward, err := g.decoder.TranslateNBest(ctx, trialConfig, inputLines, job.NBest, moses.DecodeOptions{})
	if err != nil {
		return err
	}

	var backward []moses.NBestEntry
	if job.Source != "" {
		srcLines, err := readLines(job.Source)
		if err != nil {
			return err
		}
		backward, err = g.decoder.TranslateNBest(ctx, trialConfig, srcLines, job.NBest, moses.DecodeOptions{})
		if err != nil {
			return err
		}

		candidates := make([]string, len(backward))
		for i, e := range backward {
			candidates[i] = e.Text
		}
		missing := cache.Missing(candidates)
		if len(missing) > 0 {
			roundTrip, err := g.decoder.Translate(ctx, job.ReverseConfig, missing, moses.DecodeOptions{
				CubePruning: job.CubePruning,
			})
			if err != nil {
				return err
			}
			if err := cache.Add(missing, roundTrip); err != nil {
				return err
			}
		}
	}

	out, err := os.Create(job.Output)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(out)

	// the backward block continues the forward block's sentence indexes
	offset := 0
	for _, e := range forward {
		offset = e.Index + 1
		line, err := mergeLine(e, e.Index, true, "", weights, job.LMFeature)
		if err != nil {
			out.Close()
			return err
		}
		fmt.Fprintln(bw, line)
	}
	for _, e := range backward {
		roundTrip, ok := cache.Get(e.Text)
		if !ok {
			out.Close()
			return fmt.Errorf("candidate %q missing from the round-trip cache", e.Text)
		}
		line, err := mergeLine(e, e.Index+offset, false, roundTrip, weights, job.LMFeature)
		if err != nil {
			out.Close()
			return err
		}
		fmt.Fprintln(bw, line)
	}
	if err := bw.Flush(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	g.logger.Debug("Merged n-best lists",
		zap.String("output", job.Output),
		zap.Int("forward", len(forward)),
		zap.Int("backward", len(backward)),
	)
	return nil
}

// mergeLine renders one optimizer candidate. Backward candidates carry
// their cached round-trip translation in the text column and keep the
// original candidate and its language model score for the metric's
// entropy term.
func mergeLine(e moses.NBestEntry, index int, forward bool, roundTrip string, weights *moses.Weights, lmFeature string) (string, error) {
	params := parseFeatureScores(e.Features)
	for _, name := range weights.Names() {
		if _, ok := params[name]; !ok {
			params[name] = zeroValues(len(weights.Values(name)))
		}
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	var values []string
	for _, name := range names {
		values = append(values, params[name]...)
	}

	fields := []string{"-", "0", e.Text, "-", "-"}
	if !forward {
		lm := params[lmFeature]
		if len(lm) == 0 {
			return "", fmt.Errorf("candidate %q carries no %s score", e.Text, lmFeature)
		}
		fields = []string{"-", "1", roundTrip, lm[0], e.Text}
	}
	return strconv.Itoa(index) + " ||| " + strings.Join(fields, "\t") + " ||| " + strings.Join(values, " "), nil
}

// parseFeatureScores splits a decoder feature column into per-feature
// value groups. A token ending in '=' opens a group; every other token
// joins the group opened last.
func parseFeatureScores(features string) map[string][]string {
	params := make(map[string][]string)
	name := ""
	for _, tok := range strings.Fields(features) {
		if strings.HasSuffix(tok, "=") {
			name = strings.TrimSuffix(tok, "=")
		} else {
			params[name] = append(params[name], tok)
		}
	}
	return params
}

func zeroValues(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "0"
	}
	return out
}
