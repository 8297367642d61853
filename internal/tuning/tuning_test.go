package tuning

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"smt-go/internal/moses"
)

// scriptedDecoder counts invocations and delegates to optional hooks.
type scriptedDecoder struct {
	calls      int
	nbestCalls int
	translate  func(call int, config string, lines []string, opts moses.DecodeOptions) ([]string, error)
	nbest      func(call int, config string, lines []string, n int, opts moses.DecodeOptions) ([]moses.NBestEntry, error)
}

func (d *scriptedDecoder) Translate(_ context.Context, config string, lines []string, opts moses.DecodeOptions) ([]string, error) {
	d.calls++
	if d.translate == nil {
		return lines, nil
	}
	return d.translate(d.calls, config, lines, opts)
}

func (d *scriptedDecoder) TranslateNBest(_ context.Context, config string, lines []string, n int, opts moses.DecodeOptions) ([]moses.NBestEntry, error) {
	d.nbestCalls++
	if d.nbest == nil {
		return nil, nil
	}
	return d.nbest(d.nbestCalls, config, lines, n, opts)
}

type scriptedScorer struct {
	score func(sys, ref []string) (float64, float64, error)
}

func (s *scriptedScorer) Score(_ context.Context, sys, ref []string) (float64, float64, error) {
	return s.score(sys, ref)
}

type fixedEntropy struct {
	value float64
}

func (e fixedEntropy) Entropy(context.Context, string, []string) (float64, error) {
	return e.value, nil
}

type scriptedOptimizer struct {
	calls    int
	jobs     []moses.OptimizeJob
	optimize func(call int, job moses.OptimizeJob) (*moses.Weights, error)
}

func (o *scriptedOptimizer) Optimize(_ context.Context, job moses.OptimizeJob) (*moses.Weights, error) {
	o.calls++
	o.jobs = append(o.jobs, job)
	return o.optimize(o.calls, job)
}

func writeTestLines(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := writeLines(path, lines); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func writeTestConfig(t *testing.T, dir, name, lmPath string) string {
	t.Helper()
	content := "[input-factors]\n0\n\n[feature]\nUnknownWordPenalty\nWordPenalty\n" +
		"KENLM name=LM0 factor=0 path=" + lmPath + " order=5\n\n" +
		"[weight]\nUnknownWordPenalty0= 1\nWordPenalty0= -1\nLM0= 0.5\n"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}
