package vector

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"smt-go/internal/embedding"
)

func testStore(t *testing.T) *embedding.Store {
	t.Helper()
	phrases := []string{"gato", "perro" + embedding.Separator + "grande", "casa"}
	vectors := mat.NewDense(3, 2, []float64{
		1, 0,
		0.6, 0.8,
		0, 1,
	})
	store, err := embedding.New(phrases, vectors)
	if err != nil {
		t.Fatalf("Failed to build store: %v", err)
	}
	return store
}

func TestMemoryIndex_Search(t *testing.T) {
	idx := NewMemoryIndex(testStore(t), zap.NewNop())

	got, err := idx.Search(context.Background(), []float64{1, 0}, 2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 neighbors, got %d", len(got))
	}
	if got[0].Phrase != "gato" || math.Abs(got[0].Score-1.0) > 1e-12 {
		t.Fatalf("Expected gato at score 1.0, got %+v", got[0])
	}
	if got[1].Phrase != "perro grande" {
		t.Fatalf("Expected the surface form with spaces restored, got %q", got[1].Phrase)
	}
	if math.Abs(got[1].Score-0.6) > 1e-12 {
		t.Fatalf("Expected score 0.6, got %v", got[1].Score)
	}
}

func TestMemoryIndex_LimitClamped(t *testing.T) {
	idx := NewMemoryIndex(testStore(t), zap.NewNop())

	got, err := idx.Search(context.Background(), []float64{0, 1}, 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected every phrase, got %d", len(got))
	}
	if got[0].Phrase != "casa" {
		t.Fatalf("Expected casa first, got %q", got[0].Phrase)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx := NewMemoryIndex(testStore(t), zap.NewNop())
	if _, err := idx.Search(context.Background(), []float64{1, 0, 0}, 2); err == nil {
		t.Fatal("Expected an error for a mismatched query")
	}
}
