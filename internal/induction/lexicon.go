package induction

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"smt-go/internal/embedding"
)

// Lexicon holds unigram translation probabilities with a shared floor for
// unseen pairs.
type Lexicon struct {
	probs map[string]map[string]float64
	floor float64
}

// Prob returns the stored probability for the pair, or the floor when the
// pair was never induced.
func (l *Lexicon) Prob(src, trg string) float64 {
	if t, ok := l.probs[src]; ok {
		if p, ok := t[trg]; ok {
			return p
		}
	}
	return l.floor
}

// Floor returns the probability assigned to unseen pairs.
func (l *Lexicon) Floor() float64 {
	return l.floor
}

// Pairs returns the number of stored translation pairs.
func (l *Lexicon) Pairs() int {
	n := 0
	for _, t := range l.probs {
		n += len(t)
	}
	return n
}

// BuildLexicon induces unigram translation probabilities from src to trg:
// each source word distributes probability mass over the target unigrams
// through a softmax at the given temperature, and only entries above
// minProb are kept. Multiword phrases take no part on either side.
func BuildLexicon(ctx context.Context, src, trg *embedding.Store, temperature, minProb float64, batchSize int) (*Lexicon, error) {
	if batchSize <= 0 {
		batchSize = 200
	}
	lex := &Lexicon{probs: make(map[string]map[string]float64), floor: minProb}
	uniX := src.Unigrams()
	uniZ := trg.Unigrams()
	if len(uniX) == 0 || len(uniZ) == 0 {
		return lex, nil
	}

	zmat := mat.NewDense(len(uniZ), trg.Dim(), nil)
	for k, r := range uniZ {
		zmat.SetRow(k, trg.Vector(r))
	}

	for i := 0; i < len(uniX); i += batchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		j := i + batchSize
		if j > len(uniX) {
			j = len(uniX)
		}
		batch := mat.NewDense(j-i, src.Dim(), nil)
		for k, r := range uniX[i:j] {
			batch.SetRow(k, src.Vector(r))
		}
		var scores mat.Dense
		scores.Mul(batch, zmat.T())

		for k := 0; k < j-i; k++ {
			probs := softmax(scores.RawRowView(k), temperature)
			order := make([]int, len(probs))
			for c := range order {
				order[c] = c
			}
			sort.Slice(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })

			var entry map[string]float64
			for _, c := range order {
				if probs[c] <= minProb {
					break
				}
				if entry == nil {
					entry = make(map[string]float64)
				}
				entry[trg.Phrase(uniZ[c])] = probs[c]
			}
			if entry != nil {
				lex.probs[src.Phrase(uniX[i+k])] = entry
			}
		}
	}
	return lex, nil
}

// softmax converts one score row into probabilities at the given
// temperature, guarding against overflow.
func softmax(row []float64, t float64) []float64 {
	out := make([]float64, len(row))
	max := floats.Max(row) / t
	var sum float64
	for i, v := range row {
		e := math.Exp(v/t - max)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
