package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"smt-go/internal/corpus"
	"smt-go/internal/moses"
)

// preprocess runs step 1: tokenization and truecasing through the
// configured external commands, plus the native corpus hygiene
// (deduplication, length filtering, seeded shuffling and the dev/train
// split). With no tokenizer or truecaser configured the input corpora
// are taken as already tokenized.
func (r *Runner) preprocess(ctx context.Context) error {
	root, err := r.makeStepDir(1)
	if err != nil {
		return err
	}
	sides := []struct {
		part, corpus, lang string
	}{
		{"src", r.job.SrcCorpus, r.job.SrcLang},
		{"trg", r.job.TrgCorpus, r.job.TrgLang},
	}
	for _, side := range sides {
		if side.corpus == "" {
			return fmt.Errorf("no %s corpus given", side.part)
		}
		tokenized := side.corpus
		if r.cfg.Tools.Tokenizer != "" {
			tokenized = filepath.Join(r.tmpDir, "full.tok."+side.part)
			cmd := renderCommand(r.cfg.Tools.Tokenizer, map[string]string{
				"input":   side.corpus,
				"output":  tokenized,
				"lang":    side.lang,
				"threads": strconv.Itoa(r.cfg.App.Threads),
			})
			if err := r.runShell(ctx, "tokenizer", cmd); err != nil {
				return err
			}
		}

		lines, err := corpus.ReadLines(tokenized)
		if err != nil {
			return err
		}
		read := len(lines)
		lines = corpus.Dedupe(lines)
		lines = corpus.FilterByLength(lines, r.cfg.Corpus.MinTokens, r.cfg.Corpus.MaxTokens)
		corpus.Shuffle(lines, r.cfg.App.Seed)
		r.logger.Info("Cleaned corpus",
			zap.String("side", side.part),
			zap.Int("read", read),
			zap.Int("kept", len(lines)),
		)

		if r.cfg.Tools.TruecaseTrain != "" && r.cfg.Tools.Truecase != "" {
			clean := filepath.Join(r.tmpDir, "full.clean."+side.part)
			if err := corpus.WriteLines(clean, lines); err != nil {
				return err
			}
			model := filepath.Join(root, "truecase-model."+side.part)
			cmd := renderCommand(r.cfg.Tools.TruecaseTrain, map[string]string{
				"input": clean,
				"model": model,
			})
			if err := r.runShell(ctx, "truecase-train", cmd); err != nil {
				return err
			}
			trued := filepath.Join(r.tmpDir, "full.true."+side.part)
			cmd = renderCommand(r.cfg.Tools.Truecase, map[string]string{
				"model":  model,
				"input":  clean,
				"output": trued,
			})
			if err := r.runShell(ctx, "truecase", cmd); err != nil {
				return err
			}
			if lines, err = corpus.ReadLines(trued); err != nil {
				return err
			}
		}

		dev, train := corpus.Split(lines, r.cfg.Corpus.DevSize)
		if err := corpus.WriteLines(filepath.Join(root, "dev.true."+side.part), dev); err != nil {
			return err
		}
		if err := corpus.WriteLines(filepath.Join(root, "train.true."+side.part), train); err != nil {
			return err
		}
		r.logger.Info("Split corpus",
			zap.String("side", side.part),
			zap.Int("dev", len(dev)),
			zap.Int("train", len(train)),
		)
	}
	return nil
}

// trainLanguageModels runs step 2: one binarized language model per side
// over the preprocessed training corpus.
func (r *Runner) trainLanguageModels(ctx context.Context) error {
	root, err := r.makeStepDir(2)
	if err != nil {
		return err
	}
	if r.cfg.Tools.MosesDir == "" {
		return fmt.Errorf("moses_dir not configured")
	}
	trainer := moses.NewKenLMTrainer(
		r.cfg.Tools.MosesDir,
		r.cfg.LM.Order,
		r.cfg.LM.Prune,
		r.tmpDir,
		r.cfg.Tools.Timeout,
		r.logger,
	)
	for _, part := range []string{"src", "trg"} {
		train := filepath.Join(r.stepDir(1), "train.true."+part)
		if err := trainer.Train(ctx, train, filepath.Join(root, part+".blm")); err != nil {
			return err
		}
	}
	return nil
}
