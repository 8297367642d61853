package moses

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `# moses config

[input-factors]
0

[feature]
UnknownWordPenalty
WordPenalty
ProbingPT name=TranslationModel0 num-features=4 path=/work/pt input-factor=0 output-factor=0
KENLM name=LM0 factor=0 path=/work/lm.blob order=5

[weight]
UnknownWordPenalty0= 1
WordPenalty0= -1
TranslationModel0= 0.2 0.2 0.2 0.2
LM0= 0.5
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moses.ini")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestExtractWeights(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	w, err := ExtractWeights(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	names := w.Names()
	want := []string{"UnknownWordPenalty0", "WordPenalty0", "TranslationModel0", "LM0"}
	if len(names) != len(want) {
		t.Fatalf("Expected %d features, got %d", len(want), len(names))
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("Expected feature %q at position %d, got %q", name, i, names[i])
		}
	}
	if vals := w.Values("TranslationModel0"); len(vals) != 4 || vals[0] != "0.2" {
		t.Fatalf("Expected four 0.2 values for TranslationModel0, got %v", vals)
	}
	if vals := w.Values("WordPenalty0"); len(vals) != 1 || vals[0] != "-1" {
		t.Fatalf("Expected [-1] for WordPenalty0, got %v", vals)
	}
}

func TestReplaceWeights(t *testing.T) {
	input := writeConfig(t, sampleConfig)
	output := filepath.Join(t.TempDir(), "tuned.ini")

	w, err := ExtractWeights(input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	w.Set("LM0", []string{"0.73"})
	w.Set("TranslationModel0", []string{"0.1", "0.2", "0.3", "0.4"})

	if err := ReplaceWeights(input, output, w); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	content, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if !strings.Contains(string(content), "LM0= 0.73\n") {
		t.Fatalf("Expected rewritten LM0 line, got:\n%s", content)
	}
	if !strings.Contains(string(content), "TranslationModel0= 0.1 0.2 0.3 0.4\n") {
		t.Fatalf("Expected rewritten TranslationModel0 line, got:\n%s", content)
	}
	if !strings.Contains(string(content), "path=/work/pt") {
		t.Fatalf("Expected feature section to survive, got:\n%s", content)
	}

	round, err := ExtractWeights(output)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !round.Equal(w) {
		t.Fatalf("Expected round-tripped weights to match, got %v", round.Arity())
	}
}

func TestReplaceWeights_MissingFeature(t *testing.T) {
	input := writeConfig(t, sampleConfig)
	output := filepath.Join(t.TempDir(), "tuned.ini")

	w := NewWeights()
	w.Set("LM0", []string{"0.5"})

	if err := ReplaceWeights(input, output, w); err == nil {
		t.Fatal("Expected an error for a feature with no weights")
	}
}

func TestWeights_Equal(t *testing.T) {
	a := NewWeights()
	a.Set("LM0", []string{"0.5"})
	a.Set("Distortion0", []string{"0.3"})

	b := NewWeights()
	b.Set("Distortion0", []string{"0.3"})
	b.Set("LM0", []string{"0.5"})

	if !a.Equal(b) {
		t.Fatal("Expected weight sets with the same values to be equal")
	}

	b.Set("LM0", []string{"0.6"})
	if a.Equal(b) {
		t.Fatal("Expected weight sets with different values to differ")
	}
	if a.Equal(nil) {
		t.Fatal("Expected no equality against nil")
	}
}

func TestConfigsEqual(t *testing.T) {
	a := writeConfig(t, sampleConfig)
	b := writeConfig(t, sampleConfig)
	c := writeConfig(t, strings.Replace(sampleConfig, "LM0= 0.5", "LM0= 0.9", 1))

	equal, err := ConfigsEqual(a, b)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !equal {
		t.Fatal("Expected identical configs to compare equal")
	}

	equal, err = ConfigsEqual(a, c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if equal {
		t.Fatal("Expected configs with different weights to differ")
	}
}

func TestFeaturePath(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	lm, err := FeaturePath(path, "LM0")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if lm != "/work/lm.blob" {
		t.Fatalf("Expected /work/lm.blob, got %q", lm)
	}

	pt, err := FeaturePath(path, "TranslationModel0")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pt != "/work/pt" {
		t.Fatalf("Expected /work/pt, got %q", pt)
	}

	if _, err := FeaturePath(path, "LM1"); err == nil {
		t.Fatal("Expected an error for a missing feature")
	}
}

func TestWriteInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moses.ini")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create config: %v", err)
	}
	cfg := InitialConfig{
		PhraseTableDir: "/work/pt",
		LMPath:         "/work/lm.blob",
		Reordering:     true,
	}
	if err := WriteInitialConfig(f, cfg); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close config: %v", err)
	}

	w, err := ExtractWeights(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	arity := w.Arity()
	want := map[string]int{
		"UnknownWordPenalty0": 1,
		"WordPenalty0":        1,
		"PhrasePenalty0":      1,
		"TranslationModel0":   4,
		"LexicalReordering0":  6,
		"Distortion0":         1,
		"LM0":                 1,
	}
	if len(arity) != len(want) {
		t.Fatalf("Expected %d weighted features, got %v", len(want), arity)
	}
	for name, n := range want {
		if arity[name] != n {
			t.Fatalf("Expected %d components for %s, got %d", n, name, arity[name])
		}
	}
	if vals := w.Values("WordPenalty0"); vals[0] != "-1" {
		t.Fatalf("Expected initial word penalty -1, got %v", vals)
	}

	lm, err := FeaturePath(path, "LM0")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if lm != "/work/lm.blob" {
		t.Fatalf("Expected the model path to be wired into the feature, got %q", lm)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if !strings.Contains(string(content), "order=5") {
		t.Fatalf("Expected the default model order, got:\n%s", content)
	}
	if !strings.Contains(string(content), "[distortion-limit]\n6\n") {
		t.Fatalf("Expected the default distortion limit, got:\n%s", content)
	}
}
