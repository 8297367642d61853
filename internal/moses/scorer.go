package moses

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MultiBleu scores translations with the multi-bleu script bundled with
// the decoder.
type MultiBleu struct {
	script  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewMultiBleu creates a scorer around the given script path.
func NewMultiBleu(script string, timeout time.Duration, logger *zap.Logger) *MultiBleu {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiBleu{script: script, timeout: timeout, logger: logger}
}

// Score runs the script over the system output and returns the corpus
// BLEU and the length ratio.
func (m *MultiBleu) Score(ctx context.Context, sys, ref []string) (float64, float64, error) {
	cctx, cancel := toolContext(ctx, m.timeout)
	defer cancel()

	tmp, err := os.MkdirTemp("", "bleu-")
	if err != nil {
		return 0, 0, err
	}
	defer os.RemoveAll(tmp)

	refPath := filepath.Join(tmp, "ref.txt")
	if err := os.WriteFile(refPath, []byte(joinLines(ref)), 0o644); err != nil {
		return 0, 0, err
	}

	cmd := exec.CommandContext(cctx, m.script, refPath)
	cmd.Stdin = strings.NewReader(joinLines(sys))
	out, err := runTool(cmd, "multi-bleu")
	if err != nil {
		return 0, 0, err
	}

	bleu, ratio, err := parseMultiBleuOutput(string(out))
	if err != nil {
		return 0, 0, &ToolError{Tool: "multi-bleu", Err: err}
	}
	m.logger.Debug("Scored translations",
		zap.Float64("bleu", bleu),
		zap.Float64("ratio", ratio),
		zap.Int("sentences", len(sys)),
	)
	return bleu, ratio, nil
}

// parseMultiBleuOutput extracts the score and length ratio from a summary
// line such as
//
//	BLEU = 28.41, 61.3/34.1/21.5/14.2 (BP=0.978, ratio=0.978, hyp_len=826, ref_len=845)
func parseMultiBleuOutput(out string) (float64, float64, error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) < 6 || fields[0] != "BLEU" {
		return 0, 0, fmt.Errorf("unexpected output %q", strings.TrimSpace(out))
	}
	bleu, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], ","), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad score in %q: %w", strings.TrimSpace(out), err)
	}
	ratioField := strings.TrimSuffix(strings.TrimPrefix(fields[5], "ratio="), ",")
	ratio, err := strconv.ParseFloat(ratioField, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad ratio in %q: %w", strings.TrimSpace(out), err)
	}
	return bleu, ratio, nil
}
