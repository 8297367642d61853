package embedding

import (
	"bytes"
	"fmt"
	"io"
	"runtime"
	"strings"

	wegoemb "github.com/ynqa/wego/pkg/embedding"
	"github.com/ynqa/wego/pkg/model/modelutil/vector"
	"github.com/ynqa/wego/pkg/model/word2vec"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TrainerConfig holds the embedding training knobs.
type TrainerConfig struct {
	Dim             int
	Window          int
	NegativeSamples int
	Iterations      int
	MinCount        int
	Goroutines      int
}

// Trainer fits skip-gram word vectors and composes phrase vectors from them.
type Trainer struct {
	cfg    TrainerConfig
	logger *zap.Logger
}

// NewTrainer creates a trainer, substituting defaults for unset knobs.
func NewTrainer(cfg TrainerConfig, logger *zap.Logger) *Trainer {
	if cfg.Dim <= 0 {
		cfg.Dim = 300
	}
	if cfg.Window <= 0 {
		cfg.Window = 5
	}
	if cfg.NegativeSamples <= 0 {
		cfg.NegativeSamples = 10
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 5
	}
	if cfg.MinCount <= 0 {
		cfg.MinCount = 10
	}
	if cfg.Goroutines <= 0 {
		cfg.Goroutines = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{cfg: cfg, logger: logger}
}

// Train fits word vectors on the tokenized corpus and returns a store
// holding every trained word plus a composed vector per multiword phrase.
// Each phrase is given as its space-separated surface form; phrases
// containing a word the model did not keep are dropped.
func (t *Trainer) Train(corpus io.ReadSeeker, phrases []string) (*Store, error) {
	opts := word2vec.Options{
		BatchSize:          1024,
		Dim:                t.cfg.Dim,
		DocInMemory:        true,
		Goroutines:         t.cfg.Goroutines,
		Initlr:             0.025,
		Iter:               t.cfg.Iterations,
		LogBatch:           100000,
		MaxCount:           -1,
		MinCount:           t.cfg.MinCount,
		MinLR:              0.0000025,
		ModelType:          "skipgram",
		NegativeSampleSize: t.cfg.NegativeSamples,
		OptimizerType:      "ns",
		SubsampleThreshold: 0.001,
		UpdateLRBatch:      100000,
		Window:             t.cfg.Window,
	}
	model, err := word2vec.NewForOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("init word2vec: %w", err)
	}
	if err := model.Train(corpus); err != nil {
		return nil, fmt.Errorf("train word2vec: %w", err)
	}

	var buf bytes.Buffer
	if err := model.Save(&buf, vector.Agg); err != nil {
		return nil, fmt.Errorf("save word2vec: %w", err)
	}
	embs, err := wegoemb.Load(&buf)
	if err != nil {
		return nil, fmt.Errorf("load word2vec output: %w", err)
	}
	t.logger.Info("Trained word vectors",
		zap.Int("words", len(embs)),
		zap.Int("dim", t.cfg.Dim),
	)

	words := make([]string, len(embs))
	vectors := make([][]float64, len(embs))
	for i, e := range embs {
		words[i] = e.Word
		vectors[i] = e.Vector
	}
	store, err := Compose(words, vectors, phrases)
	if err != nil {
		return nil, err
	}
	t.logger.Info("Composed phrase vectors",
		zap.Int("entries", store.Count()),
		zap.Int("phrases", len(phrases)),
	)
	return store, nil
}

// Compose builds a phrase embedding space from trained word vectors: every
// word keeps its own length-normalized vector, and each phrase (given as a
// space-separated surface form) gets the renormalized sum of its member
// word vectors. Phrases containing an out-of-vocabulary word are skipped.
func Compose(words []string, vectors [][]float64, phrases []string) (*Store, error) {
	if len(words) != len(vectors) {
		return nil, fmt.Errorf("%w: %d words for %d vectors", ErrMalformed, len(words), len(vectors))
	}
	if len(words) == 0 {
		return New(nil, nil)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty word vector", ErrMalformed)
	}

	normed := mat.NewDense(len(words), dim, nil)
	index := make(map[string]int, len(words))
	for i, w := range words {
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("%w: word %q has %d values, want %d", ErrMalformed, w, len(vectors[i]), dim)
		}
		row := normed.RawRowView(i)
		copy(row, vectors[i])
		norm := floats.Norm(row, 2)
		if norm != 0 {
			floats.Scale(1/norm, row)
		}
		index[w] = i
	}

	entries := append([]string(nil), words...)
	rows := make([][]float64, 0, len(words)+len(phrases))
	for i := range words {
		rows = append(rows, normed.RawRowView(i))
	}
phrase:
	for _, p := range phrases {
		tokens := strings.Fields(p)
		if len(tokens) == 0 {
			continue
		}
		sum := make([]float64, dim)
		for _, tok := range tokens {
			j, ok := index[tok]
			if !ok {
				continue phrase
			}
			floats.Add(sum, normed.RawRowView(j))
		}
		norm := floats.Norm(sum, 2)
		if norm != 0 {
			floats.Scale(1/norm, sum)
		}
		entries = append(entries, JoinTokens(tokens))
		rows = append(rows, sum)
	}

	data := make([]float64, 0, len(rows)*dim)
	for _, r := range rows {
		data = append(data, r...)
	}
	return New(entries, mat.NewDense(len(rows), dim, data))
}
