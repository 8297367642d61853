package pipeline

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"smt-go/internal/config"
	"smt-go/internal/embedding"
	"smt-go/internal/induction"
	"smt-go/internal/moses"
	"smt-go/internal/phrasetable"
)

// inducePhraseTables runs step 5: the mapped embedding spaces are loaded,
// the softmax temperature is fitted, and a sorted gzipped phrase table is
// induced for each direction.
func (r *Runner) inducePhraseTables(ctx context.Context) error {
	root, err := r.makeStepDir(5)
	if err != nil {
		return err
	}
	srcEmb := filepath.Join(r.stepDir(4), "emb.src")
	trgEmb := filepath.Join(r.stepDir(4), "emb.trg")
	return InduceTables(ctx, r.cfg.Induction, r.cfg.App.Seed, srcEmb, trgEmb, root, r.logger)
}

// InduceTables fits the softmax temperature over the mapped embedding
// spaces and induces a phrase table for each direction, written as
// sorted gzipped src2trg.phrase-table.gz and trg2src.phrase-table.gz
// under outDir.
func InduceTables(ctx context.Context, icfg config.InductionConfig, seed int64, srcEmb, trgEmb, outDir string, logger *zap.Logger) error {
	src, err := embedding.LoadFile(srcEmb)
	if err != nil {
		return err
	}
	trg, err := embedding.LoadFile(trgEmb)
	if err != nil {
		return err
	}
	src.Normalize()
	trg.Normalize()

	temp, err := induction.LearnTemperature(ctx, src, trg, induction.TemperatureConfig{
		LearningRate: icfg.LearningRate,
		Epochs:       icfg.Epochs,
		BatchSize:    icfg.BatchSize,
		Seed:         seed,
	}, logger)
	if err != nil {
		return err
	}

	inducer := induction.NewInducer(induction.Config{
		TopK:      icfg.TopK,
		BatchSize: icfg.BatchSize,
		MinProb:   icfg.MinProb,
	}, logger)
	directions := []struct {
		name     string
		from, to *embedding.Store
	}{
		{name: "src2trg", from: src, to: trg},
		{name: "trg2src", from: trg, to: src},
	}
	for _, d := range directions {
		lines, err := collectEntries(ctx, inducer, d.from, d.to, temp)
		if err != nil {
			return err
		}
		sort.Strings(lines)
		out := filepath.Join(outDir, d.name+".phrase-table.gz")
		if err := writeGzipLines(out, lines); err != nil {
			return err
		}
		logger.Info("Induced phrase table",
			zap.String("direction", d.name),
			zap.Int("entries", len(lines)),
		)
	}
	return nil
}

// collectEntries runs one induction direction and returns the formatted
// phrase-table lines.
func collectEntries(ctx context.Context, in *induction.Inducer, from, to *embedding.Store, temp float64) ([]string, error) {
	var buf bytes.Buffer
	w := phrasetable.NewWriter(&buf)
	var lines []string
	err := in.Induce(ctx, from, to, temp, func(e phrasetable.Entry) error {
		if err := w.Write(e); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		lines = append(lines, strings.TrimSuffix(buf.String(), "\n"))
		buf.Reset()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func writeGzipLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	bw := bufio.NewWriter(zw)
	for _, ln := range lines {
		if _, err := bw.WriteString(ln); err != nil {
			f.Close()
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			f.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// buildInitialModels runs step 6: each induced phrase table is binarized
// for the decoder and paired with a default-weight configuration.
func (r *Runner) buildInitialModels(ctx context.Context) error {
	root, err := r.makeStepDir(6)
	if err != nil {
		return err
	}
	if r.cfg.Tools.MosesDir == "" {
		return fmt.Errorf("moses_dir not configured")
	}
	decoder := moses.NewMosesDecoder(moses.DecoderConfig{
		MosesDir: r.cfg.Tools.MosesDir,
		Threads:  r.cfg.App.Threads,
		Timeout:  r.cfg.Tools.Timeout,
	}, r.logger)
	directions := []struct {
		name, lm string
	}{
		{name: "src2trg", lm: "trg"},
		{name: "trg2src", lm: "src"},
	}
	for _, d := range directions {
		table := filepath.Join(r.stepDir(5), d.name+".phrase-table.gz")
		outDir := filepath.Join(root, d.name)
		if err := decoder.Binarize(ctx, table, outDir, 4, r.cfg.Induction.PhraseTablePrune, ""); err != nil {
			return err
		}
		// The binarizer leaves scratch directories next to its output.
		tmps, err := filepath.Glob(filepath.Join(root, "tmp.*"))
		if err != nil {
			return err
		}
		for _, t := range tmps {
			os.RemoveAll(t)
		}

		ini := filepath.Join(root, d.name+".moses.ini")
		f, err := os.Create(ini)
		if err != nil {
			return err
		}
		err = moses.WriteInitialConfig(f, moses.InitialConfig{
			PhraseTableDir: outDir,
			LMPath:         filepath.Join(r.stepDir(2), d.lm+".blm"),
			LMOrder:        r.cfg.LM.Order,
		})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		r.logger.Info("Built initial model",
			zap.String("direction", d.name),
			zap.String("config", ini),
		)
	}
	return nil
}
