// Package vector answers nearest-phrase queries over mapped phrase
// embeddings, either from an in-memory store or from a qdrant
// collection the store has been pushed to.
package vector

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"smt-go/internal/embedding"
)

// Neighbor is one nearest-phrase hit with its similarity score.
type Neighbor struct {
	Phrase string  `json:"phrase"`
	Score  float64 `json:"score"`
}

// PhraseIndex answers nearest-neighbor queries over phrase vectors.
type PhraseIndex interface {
	Search(ctx context.Context, vector []float64, limit int) ([]Neighbor, error)
}

// MemoryIndex scores a query against every phrase in the store. The
// store must be length-normalized so the dot product is the cosine.
type MemoryIndex struct {
	store  *embedding.Store
	logger *zap.Logger
}

func NewMemoryIndex(store *embedding.Store, logger *zap.Logger) *MemoryIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryIndex{store: store, logger: logger}
}

func (m *MemoryIndex) Search(_ context.Context, vector []float64, limit int) ([]Neighbor, error) {
	if len(vector) != m.store.Dim() {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(vector), m.store.Dim())
	}
	if limit <= 0 {
		limit = 10
	}

	var scores mat.VecDense
	scores.MulVec(m.store.Matrix(), mat.NewVecDense(len(vector), vector))

	n := m.store.Count()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return scores.AtVec(order[a]) > scores.AtVec(order[b])
	})

	if limit > n {
		limit = n
	}
	out := make([]Neighbor, limit)
	for i := 0; i < limit; i++ {
		out[i] = Neighbor{
			Phrase: m.store.SurfaceForm(order[i]),
			Score:  scores.AtVec(order[i]),
		}
	}
	return out, nil
}
