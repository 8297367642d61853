package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"smt-go/internal/config"
)

// Job names the monolingual corpora and languages of one training run.
type Job struct {
	SrcCorpus string
	TrgCorpus string
	SrcLang   string
	TrgLang   string
}

// Step is one entry of the pipeline registry.
type Step struct {
	Number int
	Name   string
	Run    func(ctx context.Context) error
}

// Runner executes a contiguous range of pipeline steps over a working
// directory, persisting completion state after each step.
type Runner struct {
	cfg    *config.Config
	job    Job
	state  *State
	logger *zap.Logger

	workDir string
	tmpDir  string
}

// NewRunner creates a runner for the configured working directory,
// loading any state left by a previous run.
func NewRunner(cfg *config.Config, job Job, logger *zap.Logger) (*Runner, error) {
	if cfg.App.WorkDir == "" {
		return nil, fmt.Errorf("working directory not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	workDir := cfg.App.WorkDir
	state, err := LoadState(filepath.Join(workDir, StateFile))
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:     cfg,
		job:     job,
		state:   state,
		logger:  logger,
		workDir: workDir,
	}, nil
}

// Steps returns the pipeline registry in execution order.
func (r *Runner) Steps() []Step {
	return []Step{
		{Number: 1, Name: "preprocess", Run: r.preprocess},
		{Number: 2, Name: "language-models", Run: r.trainLanguageModels},
		{Number: 3, Name: "phrase-embeddings", Run: r.trainEmbeddings},
		{Number: 4, Name: "map-embeddings", Run: r.mapEmbeddings},
		{Number: 5, Name: "induce-phrase-tables", Run: r.inducePhraseTables},
		{Number: 6, Name: "initial-models", Run: r.buildInitialModels},
		{Number: 7, Name: "tune", Run: r.tune},
		{Number: 8, Name: "backtranslate", Run: r.backtranslate},
	}
}

// Run executes steps from..to in order, skipping steps recorded as
// completed by an earlier run.
func (r *Runner) Run(ctx context.Context, from, to int) error {
	steps := r.Steps()
	if from < 1 || to > len(steps) || from > to {
		return fmt.Errorf("invalid step range %d..%d", from, to)
	}
	if err := os.MkdirAll(r.workDir, 0o755); err != nil {
		return err
	}
	tmpBase := r.cfg.App.TmpDir
	if tmpBase == "" {
		tmpBase = r.workDir
	}
	if err := os.MkdirAll(tmpBase, 0o755); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(tmpBase, "run-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	r.tmpDir = tmp

	r.logger.Info("Starting pipeline run",
		zap.String("runID", r.state.RunID),
		zap.Int("from", from),
		zap.Int("to", to),
	)
	for _, step := range steps {
		if step.Number < from || step.Number > to {
			continue
		}
		if r.state.Done(step.Number) {
			r.logger.Info("Skipping completed step",
				zap.Int("step", step.Number),
				zap.String("name", step.Name),
			)
			continue
		}
		r.logger.Info("Running step",
			zap.Int("step", step.Number),
			zap.String("name", step.Name),
		)
		started := time.Now()
		if err := step.Run(ctx); err != nil {
			return fmt.Errorf("step %d (%s): %w", step.Number, step.Name, err)
		}
		r.state.MarkDone(step.Number, step.Name)
		if err := r.state.Save(r.statePath()); err != nil {
			return err
		}
		r.logger.Info("Step completed",
			zap.Int("step", step.Number),
			zap.String("name", step.Name),
			zap.Duration("elapsed", time.Since(started)),
		)
	}
	return nil
}

func (r *Runner) statePath() string {
	return filepath.Join(r.workDir, StateFile)
}

func (r *Runner) stepDir(n int) string {
	return filepath.Join(r.workDir, "step"+strconv.Itoa(n))
}

func (r *Runner) makeStepDir(n int) (string, error) {
	dir := r.stepDir(n)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
