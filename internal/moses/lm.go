package moses

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// KenLMQuery estimates corpus entropy with the language model query tool.
type KenLMQuery struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewKenLMQuery creates a query adapter around the given binary path.
func NewKenLMQuery(binary string, timeout time.Duration, logger *zap.Logger) *KenLMQuery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KenLMQuery{binary: binary, timeout: timeout, logger: logger}
}

// Entropy queries the model at lmPath over the given lines and returns the
// log of the reported perplexity.
func (q *KenLMQuery) Entropy(ctx context.Context, lmPath string, lines []string) (float64, error) {
	cctx, cancel := toolContext(ctx, q.timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, q.binary, "-v", "summary", lmPath)
	cmd.Stdin = strings.NewReader(joinLines(lines))
	out, err := runTool(cmd, "query")
	if err != nil {
		return 0, err
	}

	entropy, err := parsePerplexitySummary(string(out))
	if err != nil {
		return 0, &ToolError{Tool: "query", Err: err}
	}
	q.logger.Debug("Estimated corpus entropy",
		zap.String("model", lmPath),
		zap.Float64("entropy", entropy),
		zap.Int("sentences", len(lines)),
	)
	return entropy, nil
}

// KenLMTrainer estimates an n-gram language model with lmplz and
// compiles it into the binary probing format.
type KenLMTrainer struct {
	mosesDir string
	order    int
	prune    []int
	tmpDir   string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewKenLMTrainer creates a trainer, substituting defaults for unset
// knobs.
func NewKenLMTrainer(mosesDir string, order int, prune []int, tmpDir string, timeout time.Duration, logger *zap.Logger) *KenLMTrainer {
	if order <= 0 {
		order = 5
	}
	if len(prune) == 0 {
		prune = []int{0, 0, 1}
	}
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KenLMTrainer{
		mosesDir: mosesDir,
		order:    order,
		prune:    prune,
		tmpDir:   tmpDir,
		timeout:  timeout,
		logger:   logger,
	}
}

// Train estimates the model on the tokenized corpus and writes the
// compiled binary to output. The intermediate arpa file is removed on
// success.
func (t *KenLMTrainer) Train(ctx context.Context, corpus, output string) error {
	cctx, cancel := toolContext(ctx, t.timeout)
	defer cancel()

	args := []string{"-T", t.tmpDir, "-o", strconv.Itoa(t.order), "--prune"}
	for _, p := range t.prune {
		args = append(args, strconv.Itoa(p))
	}

	in, err := os.Open(corpus)
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer in.Close()
	arpa := output + ".arpa"
	fout, err := os.Create(arpa)
	if err != nil {
		return fmt.Errorf("create arpa: %w", err)
	}

	cmd := exec.CommandContext(cctx, filepath.Join(t.mosesDir, "bin", "lmplz"), args...)
	cmd.Stdin = in
	cmd.Stdout = fout
	_, err = runTool(cmd, "lmplz")
	if cerr := fout.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	cmd = exec.CommandContext(cctx, filepath.Join(t.mosesDir, "bin", "build_binary"), arpa, output)
	if _, err := runTool(cmd, "build_binary"); err != nil {
		return err
	}
	t.logger.Info("Trained language model",
		zap.String("corpus", corpus),
		zap.String("model", output),
		zap.Int("order", t.order),
	)
	return os.Remove(arpa)
}

// parsePerplexitySummary reads the perplexity off the first summary line
// and converts it to an entropy.
func parsePerplexitySummary(out string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return 0, fmt.Errorf("empty summary output")
	}
	fields := strings.Fields(lines[0])
	perplexity, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("bad perplexity in %q: %w", lines[0], err)
	}
	if perplexity <= 0 {
		return 0, fmt.Errorf("non-positive perplexity %v", perplexity)
	}
	return math.Log(perplexity), nil
}
