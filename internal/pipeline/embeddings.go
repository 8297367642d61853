package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"smt-go/internal/corpus"
	"smt-go/internal/embedding"
)

// trainEmbeddings runs step 3: per side, the n-gram vocabulary is
// extracted with one frequency cutoff per order, word vectors are fitted
// on the training corpus, and phrase vectors are composed from them.
func (r *Runner) trainEmbeddings(ctx context.Context) error {
	root, err := r.makeStepDir(3)
	if err != nil {
		return err
	}
	emb := r.cfg.Embeddings
	for _, part := range []string{"src", "trg"} {
		if err := ctx.Err(); err != nil {
			return err
		}
		train := filepath.Join(r.stepDir(1), "train.true."+part)
		lines, err := corpus.ReadLines(train)
		if err != nil {
			return err
		}

		var vocab []string
		var phrases []string
		for i, cutoff := range emb.VocabCutoff {
			order := i + 1
			counts := corpus.CountNgrams(lines, order, order, emb.VocabMinCount)
			corpus.SortByCount(counts)
			counts = corpus.Top(counts, cutoff)
			r.logger.Debug("Extracted n-gram vocabulary",
				zap.String("side", part),
				zap.Int("order", order),
				zap.Int("kept", len(counts)),
			)
			vocab = append(vocab, corpus.Phrases(counts)...)
			if order > 1 {
				phrases = append(phrases, corpus.Phrases(counts)...)
			}
		}
		if err := corpus.WriteLines(filepath.Join(root, "phrases."+part), vocab); err != nil {
			return err
		}

		trainer := embedding.NewTrainer(embedding.TrainerConfig{
			Dim:             emb.Size,
			Window:          emb.Window,
			NegativeSamples: emb.Negative,
			Iterations:      emb.Iterations,
			MinCount:        emb.VocabMinCount,
			Goroutines:      r.cfg.App.Threads,
		}, r.logger)
		f, err := os.Open(train)
		if err != nil {
			return err
		}
		store, err := trainer.Train(f, phrases)
		f.Close()
		if err != nil {
			return err
		}
		if err := store.SaveFile(filepath.Join(root, "emb."+part)); err != nil {
			return err
		}
		r.logger.Info("Trained phrase embeddings",
			zap.String("side", part),
			zap.Int("entries", store.Count()),
		)
	}
	return nil
}

// mapEmbeddings runs step 4: both embedding spaces are mapped into a
// shared cross-lingual space by the configured external command.
func (r *Runner) mapEmbeddings(ctx context.Context) error {
	root, err := r.makeStepDir(4)
	if err != nil {
		return err
	}
	cmd, err := commandFor("vecmap", r.cfg.Tools.Vecmap, map[string]string{
		"src_in":  filepath.Join(r.stepDir(3), "emb.src"),
		"trg_in":  filepath.Join(r.stepDir(3), "emb.trg"),
		"src_out": filepath.Join(root, "emb.src"),
		"trg_out": filepath.Join(root, "emb.trg"),
	})
	if err != nil {
		return err
	}
	return r.runShell(ctx, "vecmap", cmd)
}
