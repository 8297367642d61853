package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  workdir: /work\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.App.WorkDir != "/work" {
		t.Fatalf("Expected workdir '/work', got '%s'", cfg.App.WorkDir)
	}
	if cfg.App.TmpDir != "/work" {
		t.Fatalf("Expected tmpdir to fall back to workdir, got '%s'", cfg.App.TmpDir)
	}
	if cfg.App.Threads != 20 {
		t.Fatalf("Expected 20 threads, got %d", cfg.App.Threads)
	}
	if cfg.Corpus.MinTokens != 3 || cfg.Corpus.MaxTokens != 80 || cfg.Corpus.DevSize != 10000 {
		t.Fatalf("Expected stock corpus limits, got %+v", cfg.Corpus)
	}
	if cfg.LM.Order != 5 || !reflect.DeepEqual(cfg.LM.Prune, []int{0, 0, 1}) {
		t.Fatalf("Expected stock LM settings, got %+v", cfg.LM)
	}
	if !reflect.DeepEqual(cfg.Embeddings.VocabCutoff, []int{200000, 400000, 400000}) {
		t.Fatalf("Expected stock vocabulary cutoffs, got %v", cfg.Embeddings.VocabCutoff)
	}
	if cfg.Tuning.Iterations != 10 || cfg.Tuning.NBest != 100 || cfg.Tuning.CubePruning != 1000 {
		t.Fatalf("Expected stock tuning settings, got %+v", cfg.Tuning)
	}
	if cfg.Tuning.LengthInit {
		t.Fatal("Expected length initialization off by default")
	}
	if cfg.Tuning.Penalty.Min != -3.5 || cfg.Tuning.Penalty.Max != 1.0 {
		t.Fatalf("Expected stock penalty bounds, got %+v", cfg.Tuning.Penalty)
	}
	if cfg.Backtranslation.Iterations != 3 || cfg.Backtranslation.Sentences != 2000000 {
		t.Fatalf("Expected stock backtranslation settings, got %+v", cfg.Backtranslation)
	}
	if cfg.Tools.Java != "java" || cfg.Tools.Decode != "smt-decode" {
		t.Fatalf("Expected stock tool commands, got %+v", cfg.Tools)
	}
	if cfg.Qdrant.Port != 6334 || cfg.Qdrant.Collection != "phrases" {
		t.Fatalf("Expected stock qdrant settings, got %+v", cfg.Qdrant)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `app:
  workdir: /work
  threads: 4
corpus:
  min_tokens: 1
  dev_size: 2000
tuning:
  length_init: true
  penalty:
    min: -2.0
tools:
  moses_dir: /opt/moses
  zmert_jar: /opt/zmert/zmert.jar
  timeout: 45m
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.App.Threads != 4 {
		t.Fatalf("Expected 4 threads, got %d", cfg.App.Threads)
	}
	if cfg.Corpus.MinTokens != 1 || cfg.Corpus.MaxTokens != 80 {
		t.Fatalf("Expected overridden min with default max, got %+v", cfg.Corpus)
	}
	if cfg.Corpus.DevSize != 2000 {
		t.Fatalf("Expected dev size 2000, got %d", cfg.Corpus.DevSize)
	}
	if !cfg.Tuning.LengthInit {
		t.Fatal("Expected length initialization on")
	}
	if cfg.Tuning.Penalty.Min != -2.0 || cfg.Tuning.Penalty.Max != 1.0 {
		t.Fatalf("Expected overridden penalty floor with default cap, got %+v", cfg.Tuning.Penalty)
	}
	if cfg.Tools.MosesDir != "/opt/moses" {
		t.Fatalf("Expected moses dir '/opt/moses', got '%s'", cfg.Tools.MosesDir)
	}
	if cfg.Tools.Timeout != 45*time.Minute {
		t.Fatalf("Expected a 45m tool timeout, got %v", cfg.Tools.Timeout)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected an error for a missing file")
	}
}

func TestGetModel(t *testing.T) {
	path := writeConfig(t, `models:
  - name: en-fr
    src_lang: en
    trg_lang: fr
    workdir: /models/en-fr
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	m, err := cfg.GetModel("en-fr")
	if err != nil {
		t.Fatalf("Expected the model, got %v", err)
	}
	if m.ConfigPath(false) != "/models/en-fr/src2trg.moses.ini" {
		t.Fatalf("Expected the forward config path, got '%s'", m.ConfigPath(false))
	}
	if m.ConfigPath(true) != "/models/en-fr/trg2src.moses.ini" {
		t.Fatalf("Expected the reverse config path, got '%s'", m.ConfigPath(true))
	}
	if m.EmbeddingPath("src") != "/models/en-fr/step4/emb.src" {
		t.Fatalf("Expected the mapped embedding path, got '%s'", m.EmbeddingPath("src"))
	}
	if _, err := cfg.GetModel("en-de"); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("Expected ErrModelNotFound for an unknown model, got %v", err)
	}
}

func TestMcpConfig_GetAddress(t *testing.T) {
	mcp := McpConfig{Host: "localhost", Port: 9000}
	if got := mcp.GetAddress(); got != "localhost:9000" {
		t.Fatalf("Expected 'localhost:9000', got '%s'", got)
	}
}
