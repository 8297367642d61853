package moses

import (
	"bufio"
	"fmt"
	"io"
)

// InitialConfig describes a freshly binarized translation model.
type InitialConfig struct {
	PhraseTableDir  string // binarized phrase table directory
	LMPath          string // binarized language model
	LMOrder         int    // defaults to 5
	Reordering      bool   // include the lexical reordering feature
	DistortionLimit int    // defaults to 6
}

// WriteInitialConfig writes a decoder configuration with default weights
// for a newly binarized model.
func WriteInitialConfig(w io.Writer, cfg InitialConfig) error {
	if cfg.LMOrder <= 0 {
		cfg.LMOrder = 5
	}
	if cfg.DistortionLimit <= 0 {
		cfg.DistortionLimit = 6
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "[input-factors]")
	fmt.Fprintln(bw, "0")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "[mapping]")
	fmt.Fprintln(bw, "0 T 0")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "[distortion-limit]")
	fmt.Fprintln(bw, cfg.DistortionLimit)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "[feature]")
	fmt.Fprintln(bw, "UnknownWordPenalty")
	fmt.Fprintln(bw, "WordPenalty")
	fmt.Fprintln(bw, "PhrasePenalty")
	fmt.Fprintf(bw, "ProbingPT name=TranslationModel0 num-features=4 path=%s input-factor=0 output-factor=0\n", cfg.PhraseTableDir)
	if cfg.Reordering {
		fmt.Fprintln(bw, "LexicalReordering name=LexicalReordering0 num-features=6 type=wbe-msd-bidirectional-fe-allff input-factor=0 output-factor=0 property-index=0")
	}
	fmt.Fprintln(bw, "Distortion")
	fmt.Fprintf(bw, "KENLM name=LM0 factor=0 path=%s order=%d\n", cfg.LMPath, cfg.LMOrder)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "[weight]")
	fmt.Fprintln(bw, "UnknownWordPenalty0= 1")
	fmt.Fprintln(bw, "WordPenalty0= -1")
	fmt.Fprintln(bw, "PhrasePenalty0= 0.2")
	fmt.Fprintln(bw, "TranslationModel0= 0.2 0.2 0.2 0.2")
	if cfg.Reordering {
		fmt.Fprintln(bw, "LexicalReordering0= 0.3 0.3 0.3 0.3 0.3 0.3")
	}
	fmt.Fprintln(bw, "Distortion0= 0.3")
	fmt.Fprintln(bw, "LM0= 0.5")
	return bw.Flush()
}
