package moses

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DecodeOptions alters a single decoder run.
type DecodeOptions struct {
	CubePruning int      // pop limit; a positive value switches to cube pruning
	WordPenalty *float64 // overrides the word penalty weight
}

// NBestEntry is one candidate from a decoder n-best list.
type NBestEntry struct {
	Index    int
	Text     string
	Features string // raw feature score column
}

// DecoderConfig holds the settings for running the external decoder.
type DecoderConfig struct {
	MosesDir           string
	Threads            int
	WordPenaltyFeature string
	Timeout            time.Duration
}

// MosesDecoder translates text by invoking the moses2 binary.
type MosesDecoder struct {
	cfg    DecoderConfig
	logger *zap.Logger
}

// NewMosesDecoder creates a decoder adapter, substituting defaults for
// unset knobs.
func NewMosesDecoder(cfg DecoderConfig, logger *zap.Logger) *MosesDecoder {
	if cfg.Threads <= 0 {
		cfg.Threads = 20
	}
	if cfg.WordPenaltyFeature == "" {
		cfg.WordPenaltyFeature = "WordPenalty0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MosesDecoder{cfg: cfg, logger: logger}
}

func (d *MosesDecoder) binary() string {
	return filepath.Join(d.cfg.MosesDir, "bin", "moses2")
}

func (d *MosesDecoder) commonArgs(config string, opts DecodeOptions) []string {
	args := []string{"-f", config, "--threads", strconv.Itoa(d.cfg.Threads)}
	if opts.CubePruning > 0 {
		pop := strconv.Itoa(opts.CubePruning)
		args = append(args, "-search-algorithm", "1", "-cube-pruning-pop-limit", pop, "-s", pop)
	}
	if opts.WordPenalty != nil {
		args = append(args, "--weight-overwrite",
			fmt.Sprintf("%s= %s", d.cfg.WordPenaltyFeature, strconv.FormatFloat(*opts.WordPenalty, 'g', -1, 64)))
	}
	return args
}

// Translate decodes the input lines with the given configuration and
// returns one output line per input line.
func (d *MosesDecoder) Translate(ctx context.Context, config string, lines []string, opts DecodeOptions) ([]string, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	cctx, cancel := toolContext(ctx, d.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, d.binary(), d.commonArgs(config, opts)...)
	cmd.Stdin = strings.NewReader(joinLines(lines))
	out, err := runTool(cmd, "moses2")
	if err != nil {
		return nil, err
	}
	translated := splitLines(string(out))
	if len(translated) != len(lines) {
		return nil, &ToolError{
			Tool: "moses2",
			Err:  fmt.Errorf("expected %d output lines, got %d", len(lines), len(translated)),
		}
	}
	d.logger.Debug("Translated corpus",
		zap.String("config", config),
		zap.Int("sentences", len(lines)),
	)
	return translated, nil
}

// TranslateNBest decodes the input lines and returns the distinct n-best
// candidates across all of them, in decoder order.
func (d *MosesDecoder) TranslateNBest(ctx context.Context, config string, lines []string, n int, opts DecodeOptions) ([]NBestEntry, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	cctx, cancel := toolContext(ctx, d.cfg.Timeout)
	defer cancel()

	tmp, err := os.MkdirTemp("", "nbest-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	inputPath := filepath.Join(tmp, "input.txt")
	if err := os.WriteFile(inputPath, []byte(joinLines(lines)), 0o644); err != nil {
		return nil, err
	}
	listPath := filepath.Join(tmp, "nbest.txt")

	args := []string{"-i", inputPath}
	args = append(args, d.commonArgs(config, opts)...)
	args = append(args, "--n-best-list", listPath, strconv.Itoa(n), "distinct")
	cmd := exec.CommandContext(cctx, d.binary(), args...)
	if _, err := runTool(cmd, "moses2"); err != nil {
		return nil, err
	}

	f, err := os.Open(listPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := ParseNBest(f)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("Generated n-best list",
		zap.String("config", config),
		zap.Int("sentences", len(lines)),
		zap.Int("candidates", len(entries)),
	)
	return entries, nil
}

// Binarize runs the phrase-table binarization script, producing a
// ProbingPT directory for the decoder.
func (d *MosesDecoder) Binarize(ctx context.Context, phraseTable, outputDir string, numScores, prune int, reordering string) error {
	cctx, cancel := toolContext(ctx, d.cfg.Timeout)
	defer cancel()

	args := []string{
		"--phrase-table", phraseTable,
		"--output-dir", outputDir,
		"--num-scores", strconv.Itoa(numScores),
		"--prune", strconv.Itoa(prune),
	}
	if reordering != "" {
		args = append(args, "--lex-ro", reordering, "--num-lex-scores", "6")
	}
	script := filepath.Join(d.cfg.MosesDir, "scripts", "generic", "binarize4moses2.perl")
	cmd := exec.CommandContext(cctx, script, args...)
	if _, err := runTool(cmd, "binarize4moses2"); err != nil {
		return err
	}
	d.logger.Info("Binarized phrase table",
		zap.String("phraseTable", phraseTable),
		zap.String("outputDir", outputDir),
	)
	return nil
}

// ParseNBest reads decoder n-best list lines.
func ParseNBest(r io.Reader) ([]NBestEntry, error) {
	var out []NBestEntry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		e, err := parseNBestLine(sc.Text())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseNBestLine(line string) (NBestEntry, error) {
	cols := strings.SplitN(line, "|||", 4)
	if len(cols) < 3 {
		return NBestEntry{}, fmt.Errorf("malformed n-best line %q", line)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(cols[0]))
	if err != nil {
		return NBestEntry{}, fmt.Errorf("malformed n-best index in %q: %w", line, err)
	}
	return NBestEntry{
		Index:    idx,
		Text:     strings.TrimSpace(cols[1]),
		Features: strings.TrimSpace(cols[2]),
	}, nil
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n") + "\n"
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
