// Package induction turns cross-lingual phrase embeddings into a scored
// phrase table: it fits the softmax temperature that calibrates raw
// similarity scores into probabilities, induces a unigram translation
// lexicon, and scores each source phrase against its closest target
// phrases.
package induction

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"smt-go/internal/embedding"
)

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8

	initialTemperature = 1.0
	minTemperature     = 1e-6
)

// TemperatureConfig holds the knobs for fitting the softmax temperature.
type TemperatureConfig struct {
	LearningRate float64
	Epochs       int
	BatchSize    int
	Seed         int64
}

// LearnTemperature fits the softmax temperature on mutual retrieval: each
// batch pairs sampled phrases with their nearest neighbor on the other
// side and minimizes the cross-entropy of retrieving the original phrase
// back. The scalar is optimized with Adam on the analytic gradient. Both
// stores must already be length-normalized.
func LearnTemperature(ctx context.Context, src, trg *embedding.Store, cfg TemperatureConfig, logger *zap.Logger) (float64, error) {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 3e-4
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	nx, nz := src.Count(), trg.Count()
	if nx == 0 || nz == 0 {
		logger.Warn("Empty embedding store, keeping initial temperature",
			zap.Int("source", nx),
			zap.Int("target", nz),
		)
		return initialTemperature, nil
	}
	if src.Dim() != trg.Dim() {
		return 0, fmt.Errorf("embedding dimension mismatch: source %d, target %d", src.Dim(), trg.Dim())
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	t := initialTemperature
	var m, v float64
	step := 0

	n := nx
	if nz < n {
		n = nz
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		permX := rng.Perm(nx)
		permZ := rng.Perm(nz)
		for i := 0; i < n; i += cfg.BatchSize {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
			}
			j := i + cfg.BatchSize
			if j > n {
				j = n
			}
			batchX := permX[i:j]
			batchZ := permZ[i:j]

			// Nearest neighbors on raw scores, before any temperature.
			nearestZ := nearestRows(src, batchX, trg)
			nearestX := nearestRows(trg, batchZ, src)

			gradX, lossX := retrievalLoss(src, nearestX, trg, batchZ, t)
			gradZ, lossZ := retrievalLoss(trg, nearestZ, src, batchX, t)
			g := gradX + gradZ

			step++
			m = adamBeta1*m + (1-adamBeta1)*g
			v = adamBeta2*v + (1-adamBeta2)*g*g
			mhat := m / (1 - math.Pow(adamBeta1, float64(step)))
			vhat := v / (1 - math.Pow(adamBeta2, float64(step)))
			t -= cfg.LearningRate * mhat / (math.Sqrt(vhat) + adamEpsilon)
			if t < minTemperature {
				t = minTemperature
			}

			logger.Debug("Optimizing temperature",
				zap.Float64("progress", (float64(epoch)+float64(j)/float64(n))/float64(cfg.Epochs)),
				zap.Float64("temperature", t),
				zap.Float64("loss", lossX+lossZ),
			)
		}
	}

	logger.Info("Fitted softmax temperature", zap.Float64("temperature", t))
	return t, nil
}

// scoreRows multiplies the selected rows of from against every vector of
// against, producing one score row per selected index.
func scoreRows(from *embedding.Store, rows []int, against *embedding.Store) *mat.Dense {
	batch := mat.NewDense(len(rows), from.Dim(), nil)
	for k, r := range rows {
		batch.SetRow(k, from.Vector(r))
	}
	var scores mat.Dense
	scores.Mul(batch, against.Matrix().T())
	return &scores
}

// scoreRange multiplies rows [i, j) of from against every vector of against.
func scoreRange(from *embedding.Store, i, j int, against *embedding.Store) *mat.Dense {
	view := from.Matrix().Slice(i, j, 0, from.Dim())
	var scores mat.Dense
	scores.Mul(view, against.Matrix().T())
	return &scores
}

// nearestRows returns, for each selected row of from, the index of the
// highest scoring vector in against.
func nearestRows(from *embedding.Store, rows []int, against *embedding.Store) []int {
	scores := scoreRows(from, rows, against)
	out := make([]int, len(rows))
	for k := range rows {
		out[k] = floats.MaxIdx(scores.RawRowView(k))
	}
	return out
}

// retrievalLoss computes the mean cross-entropy of retrieving each label
// column from the score row of its paired phrase, along with the analytic
// gradient of that loss with respect to the temperature.
func retrievalLoss(from *embedding.Store, rows []int, against *embedding.Store, labels []int, t float64) (grad, loss float64) {
	scores := scoreRows(from, rows, against)
	n := len(rows)
	for k := 0; k < n; k++ {
		d := scores.RawRowView(k)
		maxLogit := floats.Max(d) / t
		var sumExp, sumWeighted float64
		for _, dk := range d {
			e := math.Exp(dk/t - maxLogit)
			sumExp += e
			sumWeighted += e * dk
		}
		dy := d[labels[k]]
		grad += (dy - sumWeighted/sumExp) / (t * t)
		loss += -dy/t + maxLogit + math.Log(sumExp)
	}
	return grad / float64(n), loss / float64(n)
}
