// Package config loads the yaml configuration shared by the training
// pipeline and the serving surface. Every numeric constant of the
// system lives here so a run can be reproduced from its config file
// alone.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	App             AppConfig             `yaml:"app"`
	Corpus          CorpusConfig          `yaml:"corpus"`
	LM              LMConfig              `yaml:"lm"`
	Embeddings      EmbeddingsConfig      `yaml:"embeddings"`
	Induction       InductionConfig       `yaml:"induction"`
	Tuning          TuningConfig          `yaml:"tuning"`
	Backtranslation BacktranslationConfig `yaml:"backtranslation"`
	Tools           ToolsConfig           `yaml:"tools"`
	Qdrant          QdrantConfig          `yaml:"qdrant"`
	Mcp             McpConfig             `yaml:"mcp"`
	Models          []Model               `yaml:"models"`
}

type AppConfig struct {
	WorkDir string `yaml:"workdir"`
	TmpDir  string `yaml:"tmpdir"`
	Port    int    `yaml:"port"`
	Threads int    `yaml:"threads"`
	Seed    int64  `yaml:"seed"`
}

type CorpusConfig struct {
	MinTokens int `yaml:"min_tokens"`
	MaxTokens int `yaml:"max_tokens"`
	DevSize   int `yaml:"dev_size"`
}

type LMConfig struct {
	Order int   `yaml:"order"`
	Prune []int `yaml:"prune"`
}

type EmbeddingsConfig struct {
	VocabCutoff   []int `yaml:"vocab_cutoff"`
	VocabMinCount int   `yaml:"vocab_min_count"`
	Size          int   `yaml:"size"`
	Window        int   `yaml:"window"`
	Negative      int   `yaml:"negative"`
	Iterations    int   `yaml:"iterations"`
}

type InductionConfig struct {
	TopK             int     `yaml:"top_k"`
	BatchSize        int     `yaml:"batch_size"`
	MinProb          float64 `yaml:"min_prob"`
	LearningRate     float64 `yaml:"learning_rate"`
	Epochs           int     `yaml:"epochs"`
	PhraseTablePrune int     `yaml:"phrase_table_prune"`
}

type TuningConfig struct {
	Iterations  int           `yaml:"iterations"`
	NBest       int           `yaml:"nbest"`
	CubePruning int           `yaml:"cube_pruning"`
	LengthInit  bool          `yaml:"length_init"`
	NativeBleu  bool          `yaml:"native_bleu"` // score in process instead of shelling out to multi-bleu
	Penalty     PenaltyConfig `yaml:"penalty"`
}

// PenaltyConfig bounds the word-penalty sweep of the length-based
// initialization.
type PenaltyConfig struct {
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
	Step       float64 `yaml:"step"`
	InitDelta  float64 `yaml:"init_delta"`
	RatioTol   float64 `yaml:"ratio_tolerance"`
	BracketTol float64 `yaml:"bracket_tolerance"`
	BLEUMargin float64 `yaml:"bleu_margin"`
	MaxProbes  int     `yaml:"max_probes"`
}

type BacktranslationConfig struct {
	Iterations int `yaml:"iterations"`
	Sentences  int `yaml:"sentences"`
}

// ToolsConfig locates the external programs the pipeline shells out to.
// Template commands substitute {input}, {output} and the other
// placeholders documented on each field.
type ToolsConfig struct {
	MosesDir string `yaml:"moses_dir"`
	ZmertJar string `yaml:"zmert_jar"`
	Java     string `yaml:"java"`
	// Timeout bounds each external invocation; zero leaves runs
	// unbounded.
	Timeout time.Duration `yaml:"timeout"`

	// Tokenizer reads {input} and writes {output}; {lang} and {threads}
	// are substituted when present.
	Tokenizer string `yaml:"tokenizer"`
	// TruecaseTrain fits a truecasing model on {input}, saving it to
	// {model}.
	TruecaseTrain string `yaml:"truecase_train"`
	// Truecase applies {model} to {input}, writing {output}.
	Truecase string `yaml:"truecase"`
	// Vecmap maps both embedding spaces into a shared one:
	// {src_in} {trg_in} {src_out} {trg_out}.
	Vecmap string `yaml:"vecmap"`
	// SupervisedTrain builds and tunes a standard phrase-based model
	// from a parallel corpus: {train_src} {train_trg} {dev_src}
	// {dev_trg} {lm} {lm_order} {output_dir} {threads}.
	SupervisedTrain string `yaml:"supervised_train"`
	// Decode is the candidate-generation binary handed to the external
	// weight optimizer.
	Decode string `yaml:"decode"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

type McpConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (m *McpConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// Model describes one trained working directory the server can load.
type Model struct {
	Name    string `yaml:"name"`
	SrcLang string `yaml:"src_lang"`
	TrgLang string `yaml:"trg_lang"`
	WorkDir string `yaml:"workdir"`
}

// ConfigPath returns the tuned decoder configuration for the model,
// reversed when translating target to source.
func (m *Model) ConfigPath(reverse bool) string {
	if reverse {
		return m.WorkDir + "/trg2src.moses.ini"
	}
	return m.WorkDir + "/src2trg.moses.ini"
}

// EmbeddingPath returns the mapped phrase embeddings for one side
// ("src" or "trg").
func (m *Model) EmbeddingPath(side string) string {
	return m.WorkDir + "/step4/emb." + side
}

// LoadConfig reads the yaml configuration at path and fills unset
// fields with the stock defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// ErrModelNotFound marks lookups of models missing from the
// configuration.
var ErrModelNotFound = errors.New("model not found in configuration")

// GetModel looks a serving model up by name.
func (c *Config) GetModel(name string) (*Model, error) {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i], nil
		}
	}
	return nil, fmt.Errorf("model %q: %w", name, ErrModelNotFound)
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.App.Threads == 0 {
		cfg.App.Threads = 20
	}
	if cfg.App.Seed == 0 {
		cfg.App.Seed = 1
	}
	if cfg.App.TmpDir == "" {
		cfg.App.TmpDir = cfg.App.WorkDir
	}

	if cfg.Corpus.MinTokens == 0 {
		cfg.Corpus.MinTokens = 3
	}
	if cfg.Corpus.MaxTokens == 0 {
		cfg.Corpus.MaxTokens = 80
	}
	if cfg.Corpus.DevSize == 0 {
		cfg.Corpus.DevSize = 10000
	}

	if cfg.LM.Order == 0 {
		cfg.LM.Order = 5
	}
	if len(cfg.LM.Prune) == 0 {
		cfg.LM.Prune = []int{0, 0, 1}
	}

	if len(cfg.Embeddings.VocabCutoff) == 0 {
		cfg.Embeddings.VocabCutoff = []int{200000, 400000, 400000}
	}
	if cfg.Embeddings.VocabMinCount == 0 {
		cfg.Embeddings.VocabMinCount = 10
	}
	if cfg.Embeddings.Size == 0 {
		cfg.Embeddings.Size = 300
	}
	if cfg.Embeddings.Window == 0 {
		cfg.Embeddings.Window = 5
	}
	if cfg.Embeddings.Negative == 0 {
		cfg.Embeddings.Negative = 10
	}
	if cfg.Embeddings.Iterations == 0 {
		cfg.Embeddings.Iterations = 5
	}

	if cfg.Induction.TopK == 0 {
		cfg.Induction.TopK = 100
	}
	if cfg.Induction.BatchSize == 0 {
		cfg.Induction.BatchSize = 200
	}
	if cfg.Induction.MinProb == 0 {
		cfg.Induction.MinProb = 0.001
	}
	if cfg.Induction.LearningRate == 0 {
		cfg.Induction.LearningRate = 3e-4
	}
	if cfg.Induction.Epochs == 0 {
		cfg.Induction.Epochs = 1
	}
	if cfg.Induction.PhraseTablePrune == 0 {
		cfg.Induction.PhraseTablePrune = 100
	}

	if cfg.Tuning.Iterations == 0 {
		cfg.Tuning.Iterations = 10
	}
	if cfg.Tuning.NBest == 0 {
		cfg.Tuning.NBest = 100
	}
	if cfg.Tuning.CubePruning == 0 {
		cfg.Tuning.CubePruning = 1000
	}
	if cfg.Tuning.Penalty.Min == 0 {
		cfg.Tuning.Penalty.Min = -3.5
	}
	if cfg.Tuning.Penalty.Max == 0 {
		cfg.Tuning.Penalty.Max = 1.0
	}
	if cfg.Tuning.Penalty.Step == 0 {
		cfg.Tuning.Penalty.Step = 0.1
	}
	if cfg.Tuning.Penalty.InitDelta == 0 {
		cfg.Tuning.Penalty.InitDelta = 0.1
	}
	if cfg.Tuning.Penalty.RatioTol == 0 {
		cfg.Tuning.Penalty.RatioTol = 0.002
	}
	if cfg.Tuning.Penalty.BracketTol == 0 {
		cfg.Tuning.Penalty.BracketTol = 0.01
	}
	if cfg.Tuning.Penalty.BLEUMargin == 0 {
		cfg.Tuning.Penalty.BLEUMargin = 3.0
	}
	if cfg.Tuning.Penalty.MaxProbes == 0 {
		cfg.Tuning.Penalty.MaxProbes = 32
	}

	if cfg.Backtranslation.Iterations == 0 {
		cfg.Backtranslation.Iterations = 3
	}
	if cfg.Backtranslation.Sentences == 0 {
		cfg.Backtranslation.Sentences = 2000000
	}

	if cfg.Tools.Java == "" {
		cfg.Tools.Java = "java"
	}
	if cfg.Tools.Decode == "" {
		cfg.Tools.Decode = "smt-decode"
	}

	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = "phrases"
	}

	if cfg.Mcp.Port == 0 {
		cfg.Mcp.Port = 8081
	}
}
