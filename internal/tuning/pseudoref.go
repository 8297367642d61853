package tuning

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"smt-go/internal/moses"
)

// PseudoReferenceBuilder prepares the optimizer's input and reference
// files for one direction of the tuning loop. Without parallel data the
// input is synthesized by back-translating the target dev corpus through
// the fixed reverse configuration, and candidates are scored against the
// real target sentences followed by the real source sentences.
type PseudoReferenceBuilder struct {
	decoder Decoder
	logger  *zap.Logger
}

// NewPseudoReferenceBuilder creates a builder around the given decoder.
func NewPseudoReferenceBuilder(decoder Decoder, logger *zap.Logger) *PseudoReferenceBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PseudoReferenceBuilder{decoder: decoder, logger: logger}
}

// Build writes the input and reference files into dir for tuning the
// srcDev-to-trgDev direction. Supervised runs tune on the parallel pair
// directly and skip back-translation.
func (b *PseudoReferenceBuilder) Build(ctx context.Context, dir, srcDev, trgDev, reverseConfig string, supervised bool) error {
	srcLines, err := readLines(srcDev)
	if err != nil {
		return err
	}
	trgLines, err := readLines(trgDev)
	if err != nil {
		return err
	}

	inputPath := filepath.Join(dir, moses.InputFile)
	refPath := filepath.Join(dir, moses.ReferenceFile)

	if supervised {
		if err := writeLines(inputPath, srcLines); err != nil {
			return err
		}
		return writeLines(refPath, trgLines)
	}

	backTranslated, err := b.decoder.Translate(ctx, reverseConfig, trgLines, moses.DecodeOptions{})
	if err != nil {
		return err
	}
	if err := writeLines(inputPath, backTranslated); err != nil {
		return err
	}
	reference := make([]string, 0, len(trgLines)+len(srcLines))
	reference = append(reference, trgLines...)
	reference = append(reference, srcLines...)
	if err := writeLines(refPath, reference); err != nil {
		return err
	}
	b.logger.Debug("Built pseudo reference",
		zap.String("dir", dir),
		zap.Int("sentences", len(trgLines)),
	)
	return nil
}
