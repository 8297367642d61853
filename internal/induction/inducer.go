package induction

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"smt-go/internal/embedding"
	"smt-go/internal/phrasetable"
)

// Config holds the phrase-table induction knobs.
type Config struct {
	TopK      int     // target candidates kept per source phrase
	BatchSize int     // rows scored per matrix multiplication
	MinProb   float64 // probability floor for the unigram lexicon
}

// Inducer scores source phrases against target phrases and emits
// phrase-table entries.
type Inducer struct {
	cfg    Config
	logger *zap.Logger
}

// NewInducer creates an inducer, substituting defaults for unset knobs.
func NewInducer(cfg Config, logger *zap.Logger) *Inducer {
	if cfg.TopK <= 0 {
		cfg.TopK = 100
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.MinProb <= 0 {
		cfg.MinProb = 0.001
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inducer{cfg: cfg, logger: logger}
}

// Induce scores every source phrase against its closest target phrases and
// streams the entries to sink, grouped by source phrase in store order.
// Phrase probabilities divide each pair's exponentiated score by the full
// softmax partition of its row (source direction) or column (target
// direction); lexical weights multiply the best unigram translation
// probability per token. Both stores must already be length-normalized.
func (in *Inducer) Induce(ctx context.Context, src, trg *embedding.Store, temperature float64, sink func(phrasetable.Entry) error) error {
	if src.Count() == 0 || trg.Count() == 0 {
		in.logger.Warn("Empty embedding store, nothing to induce",
			zap.Int("source", src.Count()),
			zap.Int("target", trg.Count()),
		)
		return nil
	}
	if src.Dim() != trg.Dim() {
		return fmt.Errorf("embedding dimension mismatch: source %d, target %d", src.Dim(), trg.Dim())
	}
	if temperature <= 0 {
		return fmt.Errorf("temperature must be positive, got %v", temperature)
	}

	fwdLex, err := BuildLexicon(ctx, src, trg, temperature, in.cfg.MinProb, in.cfg.BatchSize)
	if err != nil {
		return err
	}
	bwdLex, err := BuildLexicon(ctx, trg, src, temperature, in.cfg.MinProb, in.cfg.BatchSize)
	if err != nil {
		return err
	}
	in.logger.Debug("Induced unigram lexicons",
		zap.Int("forwardPairs", fwdLex.Pairs()),
		zap.Int("backwardPairs", bwdLex.Pairs()),
	)

	partX, err := partitions(ctx, src, trg, temperature, in.cfg.BatchSize)
	if err != nil {
		return err
	}
	partZ, err := partitions(ctx, trg, src, temperature, in.cfg.BatchSize)
	if err != nil {
		return err
	}

	k := in.cfg.TopK
	if k > trg.Count() {
		k = trg.Count()
	}

	written := 0
	for i := 0; i < src.Count(); i += in.cfg.BatchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		j := i + in.cfg.BatchSize
		if j > src.Count() {
			j = src.Count()
		}
		scores := scoreRange(src, i, j, trg)

		for r := i; r < j; r++ {
			row := scores.RawRowView(r - i)
			srcTokens := src.Tokens(r)
			for _, c := range topColumns(row, k) {
				e := math.Exp(c.score / temperature)
				trgTokens := trg.Tokens(c.col)
				entry := phrasetable.Entry{
					Source:         src.SurfaceForm(r),
					Target:         trg.SurfaceForm(c.col),
					Inverse:        e / partZ[c.col],
					InverseLexical: lexProduct(bwdLex, trgTokens, srcTokens),
					Direct:         e / partX[r],
					DirectLexical:  lexProduct(fwdLex, srcTokens, trgTokens),
				}
				if err := sink(entry); err != nil {
					return err
				}
				written++
			}
		}
	}

	in.logger.Info("Induced phrase table",
		zap.Int("sources", src.Count()),
		zap.Int("entries", written),
		zap.Float64("temperature", temperature),
	)
	return nil
}

// partitions computes, for every row of from, the sum of exponentiated
// scores against every vector of against.
func partitions(ctx context.Context, from, against *embedding.Store, t float64, batchSize int) ([]float64, error) {
	out := make([]float64, from.Count())
	for i := 0; i < from.Count(); i += batchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		j := i + batchSize
		if j > from.Count() {
			j = from.Count()
		}
		scores := scoreRange(from, i, j, against)
		for r := i; r < j; r++ {
			var sum float64
			for _, d := range scores.RawRowView(r - i) {
				sum += math.Exp(d / t)
			}
			out[r] = sum
		}
	}
	return out, nil
}

// lexProduct multiplies, over each to-side token, the best translation
// probability offered by any from-side token.
func lexProduct(lex *Lexicon, fromTokens, toTokens []string) float64 {
	prob := 1.0
	for _, to := range toTokens {
		best := 0.0
		for _, from := range fromTokens {
			if p := lex.Prob(from, to); p > best {
				best = p
			}
		}
		prob *= best
	}
	return prob
}

type scoredColumn struct {
	col   int
	score float64
}

// columnHeap is a min-heap on score, keeping the best columns seen so far.
type columnHeap []scoredColumn

func (h columnHeap) Len() int           { return len(h) }
func (h columnHeap) Less(i, j int) bool { return h[i].score < h[j].score }
func (h columnHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *columnHeap) Push(x any) {
	*h = append(*h, x.(scoredColumn))
}

func (h *columnHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// topColumns returns the k highest scoring columns in descending order.
func topColumns(row []float64, k int) []scoredColumn {
	h := make(columnHeap, 0, k)
	for col, s := range row {
		if len(h) < k {
			heap.Push(&h, scoredColumn{col: col, score: s})
		} else if s > h[0].score {
			h[0] = scoredColumn{col: col, score: s}
			heap.Fix(&h, 0)
		}
	}
	out := make([]scoredColumn, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(scoredColumn)
	}
	return out
}
