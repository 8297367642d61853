package induction

import (
	"context"
	"testing"

	"gonum.org/v1/gonum/mat"

	"smt-go/internal/embedding"
)

func newStore(t *testing.T, phrases []string, rows [][]float64) *embedding.Store {
	t.Helper()
	if len(rows) == 0 {
		s, err := embedding.New(nil, nil)
		if err != nil {
			t.Fatalf("Failed to build empty store: %v", err)
		}
		return s
	}
	dim := len(rows[0])
	data := make([]float64, 0, len(rows)*dim)
	for _, r := range rows {
		data = append(data, r...)
	}
	s, err := embedding.New(phrases, mat.NewDense(len(rows), dim, data))
	if err != nil {
		t.Fatalf("Failed to build store: %v", err)
	}
	return s
}

func TestLearnTemperature_Deterministic(t *testing.T) {
	src := newStore(t, []string{"a", "b"}, [][]float64{{1, 0}, {0, 1}})
	trg := newStore(t, []string{"x", "y"}, [][]float64{{1, 0}, {0, 1}})
	cfg := TemperatureConfig{Epochs: 3, Seed: 1}

	first, err := LearnTemperature(context.Background(), src, trg, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to fit temperature: %v", err)
	}
	second, err := LearnTemperature(context.Background(), src, trg, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to fit temperature: %v", err)
	}

	if first != second {
		t.Fatalf("Expected identical fits for the same seed, got %v and %v", first, second)
	}
	// Perfectly aligned spaces sharpen the softmax, so the temperature
	// moves down from its starting point without collapsing.
	if first >= 1 || first <= 0.99 {
		t.Fatalf("Expected temperature slightly below 1, got %v", first)
	}
}

func TestLearnTemperature_EmptyStore(t *testing.T) {
	src := newStore(t, nil, nil)
	trg := newStore(t, []string{"x"}, [][]float64{{1, 0}})

	got, err := LearnTemperature(context.Background(), src, trg, TemperatureConfig{}, nil)
	if err != nil {
		t.Fatalf("Failed on empty store: %v", err)
	}
	if got != 1 {
		t.Fatalf("Expected the initial temperature for an empty store, got %v", got)
	}
}

func TestLearnTemperature_DimensionMismatch(t *testing.T) {
	src := newStore(t, []string{"a"}, [][]float64{{1, 0}})
	trg := newStore(t, []string{"x"}, [][]float64{{1, 0, 0}})

	if _, err := LearnTemperature(context.Background(), src, trg, TemperatureConfig{}, nil); err == nil {
		t.Fatal("Expected error for mismatched dimensions")
	}
}

func TestLearnTemperature_Cancelled(t *testing.T) {
	src := newStore(t, []string{"a"}, [][]float64{{1, 0}})
	trg := newStore(t, []string{"x"}, [][]float64{{0, 1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LearnTemperature(ctx, src, trg, TemperatureConfig{}, nil); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}
