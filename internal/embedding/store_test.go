package embedding

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStore_Load(t *testing.T) {
	input := "3 2\n" +
		"the 1 0\n" +
		"new&#32;york 0 1\n" +
		"dog 0.5 0.5\n"

	s, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Failed to load store: %v", err)
	}

	if s.Count() != 3 {
		t.Fatalf("Expected 3 entries, got %d", s.Count())
	}
	if s.Dim() != 2 {
		t.Fatalf("Expected dim 2, got %d", s.Dim())
	}

	i, ok := s.Lookup("new&#32;york")
	if !ok || i != 1 {
		t.Fatalf("Expected to find 'new&#32;york' at row 1, got (%d, %v)", i, ok)
	}
	if v := s.Vector(1); v[0] != 0 || v[1] != 1 {
		t.Fatalf("Expected vector [0 1], got %v", v)
	}
	if s.Phrase(2) != "dog" {
		t.Fatalf("Expected phrase 'dog' at row 2, got %q", s.Phrase(2))
	}
	if s.SurfaceForm(1) != "new york" {
		t.Fatalf("Expected surface form 'new york', got %q", s.SurfaceForm(1))
	}
	if _, ok := s.Lookup("cat"); ok {
		t.Fatal("Expected lookup miss for 'cat'")
	}
}

func TestStore_LoadMalformed(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"header missing dim", "2\n"},
		{"header not numeric", "x 2\nthe 1 0\n"},
		{"row missing values", "1 2\nthe 1\n"},
		{"row not numeric", "1 2\nthe a b\n"},
		{"row without vector", "1 2\nthe\n"},
		{"truncated", "2 2\nthe 1 0\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.input))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("Expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestStore_Normalize(t *testing.T) {
	s, err := New([]string{"a", "b"}, mat.NewDense(2, 2, []float64{3, 4, 0, 0}))
	if err != nil {
		t.Fatalf("Failed to build store: %v", err)
	}

	s.Normalize()

	v := s.Vector(0)
	if math.Abs(v[0]-0.6) > 1e-12 || math.Abs(v[1]-0.8) > 1e-12 {
		t.Fatalf("Expected normalized vector [0.6 0.8], got %v", v)
	}
	// A zero vector must stay zero rather than turn into NaN.
	z := s.Vector(1)
	if z[0] != 0 || z[1] != 0 {
		t.Fatalf("Expected zero vector to stay zero, got %v", z)
	}
}

func TestStore_Unigrams(t *testing.T) {
	s, err := New(
		[]string{"the", "new&#32;york", "dog"},
		mat.NewDense(3, 1, []float64{1, 2, 3}),
	)
	if err != nil {
		t.Fatalf("Failed to build store: %v", err)
	}

	rows := s.Unigrams()
	if len(rows) != 2 || rows[0] != 0 || rows[1] != 2 {
		t.Fatalf("Expected unigram rows [0 2], got %v", rows)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	orig, err := New(
		[]string{"the", "new&#32;york"},
		mat.NewDense(2, 3, []float64{0.25, -1, 3e-5, 1, 2, 3}),
	)
	if err != nil {
		t.Fatalf("Failed to build store: %v", err)
	}

	var buf bytes.Buffer
	if err := orig.Save(&buf); err != nil {
		t.Fatalf("Failed to save store: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Failed to reload store: %v", err)
	}

	if loaded.Count() != orig.Count() || loaded.Dim() != orig.Dim() {
		t.Fatalf("Expected %dx%d store, got %dx%d",
			orig.Count(), orig.Dim(), loaded.Count(), loaded.Dim())
	}
	for i := 0; i < orig.Count(); i++ {
		if loaded.Phrase(i) != orig.Phrase(i) {
			t.Fatalf("Expected phrase %q at row %d, got %q", orig.Phrase(i), i, loaded.Phrase(i))
		}
		for j, v := range orig.Vector(i) {
			if loaded.Vector(i)[j] != v {
				t.Fatalf("Expected value %v at (%d,%d), got %v", v, i, j, loaded.Vector(i)[j])
			}
		}
	}
}

func TestTokens_RoundTrip(t *testing.T) {
	phrase := "new&#32;york&#32;city"
	tokens := Tokens(phrase)
	if len(tokens) != 3 {
		t.Fatalf("Expected 3 tokens, got %v", tokens)
	}
	if SurfaceForm(phrase) != "new york city" {
		t.Fatalf("Expected surface form 'new york city', got %q", SurfaceForm(phrase))
	}
	if JoinTokens(tokens) != phrase {
		t.Fatalf("Expected join to rebuild %q, got %q", phrase, JoinTokens(tokens))
	}
}
