package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"smt-go/internal/corpus"
	"smt-go/internal/moses"
)

// backtranslate runs step 8: each direction is repeatedly retrained on a
// synthetic parallel corpus built by translating the other side's
// monolingual text with the current reverse model. The directions take
// turns, so every retraining sees the freshest reverse model. The final
// configurations are copied to the working-directory root.
func (r *Runner) backtranslate(ctx context.Context) error {
	root, err := r.makeStepDir(8)
	if err != nil {
		return err
	}
	tools := r.cfg.Tools
	if tools.MosesDir == "" {
		return fmt.Errorf("moses_dir not configured")
	}
	if tools.SupervisedTrain == "" {
		return fmt.Errorf("supervised_train command not configured")
	}
	bt := r.cfg.Backtranslation

	// Step 1 shuffled the corpora, so a prefix is a random sample.
	for _, part := range []string{"src", "trg"} {
		lines, err := corpus.ReadLines(filepath.Join(r.stepDir(1), "train.true."+part))
		if err != nil {
			return err
		}
		if len(lines) > bt.Sentences {
			lines = lines[:bt.Sentences]
		}
		if err := corpus.WriteLines(filepath.Join(root, "train."+part), lines); err != nil {
			return err
		}
	}

	decoder := moses.NewMosesDecoder(moses.DecoderConfig{
		MosesDir: tools.MosesDir,
		Threads:  r.cfg.App.Threads,
		Timeout:  tools.Timeout,
	}, r.logger)
	configs := map[string]string{
		"src2trg": filepath.Join(r.stepDir(7), "src2trg.moses.ini"),
		"trg2src": filepath.Join(r.stepDir(7), "trg2src.moses.ini"),
	}
	for it := 1; it <= bt.Iterations; it++ {
		for _, d := range []struct{ src, trg string }{{"src", "trg"}, {"trg", "src"}} {
			direction := d.src + "2" + d.trg
			reverse := d.trg + "2" + d.src

			// Synthetic source side: the real target corpus translated
			// back with the current reverse model.
			trainBT := filepath.Join(root, "train.bt."+d.src)
			if err := r.translateFile(ctx, decoder, configs[reverse],
				filepath.Join(root, "train."+d.trg), trainBT); err != nil {
				return err
			}
			devBT := filepath.Join(root, "dev.bt."+d.src)
			if err := r.translateFile(ctx, decoder, configs[reverse],
				filepath.Join(r.stepDir(1), "dev.true."+d.trg), devBT); err != nil {
				return err
			}

			outDir := filepath.Join(root, fmt.Sprintf("it%d.%s", it, direction))
			cmd, err := commandFor("supervised_train", tools.SupervisedTrain, map[string]string{
				"train_src":  trainBT,
				"train_trg":  filepath.Join(root, "train."+d.trg),
				"dev_src":    devBT,
				"dev_trg":    filepath.Join(r.stepDir(1), "dev.true."+d.trg),
				"lm":         filepath.Join(r.stepDir(2), d.trg+".blm"),
				"lm_order":   strconv.Itoa(r.cfg.LM.Order),
				"output_dir": outDir,
				"threads":    strconv.Itoa(r.cfg.App.Threads),
			})
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			if err := r.runShell(ctx, "supervised_train", cmd); err != nil {
				return err
			}
			configs[direction] = filepath.Join(outDir, "moses.ini")
			r.logger.Info("Retrained direction on backtranslations",
				zap.Int("iteration", it),
				zap.String("direction", direction),
			)
		}
	}

	for _, name := range []string{"src2trg", "trg2src"} {
		if err := copyFile(configs[name], filepath.Join(r.workDir, name+".moses.ini")); err != nil {
			return err
		}
	}
	return nil
}

// translateFile decodes every line of input with the given configuration
// and writes the translations to output.
func (r *Runner) translateFile(ctx context.Context, decoder *moses.MosesDecoder, config, input, output string) error {
	lines, err := corpus.ReadLines(input)
	if err != nil {
		return err
	}
	out, err := decoder.Translate(ctx, config, lines, moses.DecodeOptions{})
	if err != nil {
		return err
	}
	return corpus.WriteLines(output, out)
}
