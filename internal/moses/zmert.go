package moses

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Optimizer working directory files.
const (
	CacheFile           = "cache.txt"
	InputFile           = "input.txt"
	ReferenceFile       = "reference.txt"
	ParamsFile          = "params.txt"
	DecoderConfigFile   = "dcfg.txt"
	LauncherFile        = "cmd.sh"
	NBestFile           = "output.txt"
	OptimizerConfigFile = "config.txt"
	FinalWeightsFile    = DecoderConfigFile + ".ZMERT.final"
)

// OptimizeJob describes one optimizer run. The working directory must
// already hold the reference file and whatever the decoder command reads;
// the optimizer writes its parameter, decoder-config, launcher, and
// configuration files next to them.
type OptimizeJob struct {
	WorkDir        string
	Weights        *Weights // starting point
	DecoderCommand string   // command line producing the n-best list
	TargetEntropy  float64  // reference-language entropy for the metric
	NBest          int      // n-best list size per pass
	Iterations     int      // optimizer passes
	PointsPerIt    int      // intermediate initial points per pass
	Seed           int64
}

// ZMERTConfig holds the settings for running the tuning optimizer.
type ZMERTConfig struct {
	Jar      string
	Java     string
	MaxMemMB int
	Threads  int
	Timeout  time.Duration
}

// ZMERTOptimizer tunes decoder weights by running the Z-MERT jar against
// a prepared working directory.
type ZMERTOptimizer struct {
	cfg    ZMERTConfig
	logger *zap.Logger
}

// NewZMERTOptimizer creates an optimizer adapter, substituting defaults
// for unset knobs.
func NewZMERTOptimizer(cfg ZMERTConfig, logger *zap.Logger) *ZMERTOptimizer {
	if cfg.Java == "" {
		cfg.Java = "java"
	}
	if cfg.MaxMemMB <= 0 {
		cfg.MaxMemMB = 16384
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZMERTOptimizer{cfg: cfg, logger: logger}
}

// Optimize runs one optimizer pass over the job's working directory and
// returns the tuned weight vector.
func (z *ZMERTOptimizer) Optimize(ctx context.Context, job OptimizeJob) (*Weights, error) {
	if job.NBest <= 0 {
		job.NBest = 100
	}
	if job.Iterations <= 0 {
		job.Iterations = 8
	}
	if job.PointsPerIt <= 0 {
		job.PointsPerIt = 20
	}
	if job.Seed == 0 {
		job.Seed = 1
	}

	if err := z.writeJobFiles(job); err != nil {
		return nil, err
	}

	cctx, cancel := toolContext(ctx, z.cfg.Timeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, z.cfg.Java,
		"-jar", z.cfg.Jar,
		"-maxMem", strconv.Itoa(z.cfg.MaxMemMB),
		filepath.Join(job.WorkDir, OptimizerConfigFile))
	if _, err := runTool(cmd, "zmert"); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(job.WorkDir, FinalWeightsFile))
	if err != nil {
		return nil, fmt.Errorf("optimizer produced no final weights: %w", err)
	}
	defer f.Close()
	tuned, err := ParseOptimizedParams(f)
	if err != nil {
		return nil, err
	}
	z.logger.Info("Optimized decoder weights",
		zap.String("workDir", job.WorkDir),
		zap.Int("features", len(tuned.Names())),
	)
	return tuned, nil
}

func (z *ZMERTOptimizer) writeJobFiles(job OptimizeJob) error {
	params, err := os.Create(filepath.Join(job.WorkDir, ParamsFile))
	if err != nil {
		return err
	}
	if err := WriteParams(params, job.Weights); err != nil {
		params.Close()
		return err
	}
	if err := params.Close(); err != nil {
		return err
	}

	dcfg, err := os.Create(filepath.Join(job.WorkDir, DecoderConfigFile))
	if err != nil {
		return err
	}
	if err := WriteDecoderConfig(dcfg, job.Weights); err != nil {
		dcfg.Close()
		return err
	}
	if err := dcfg.Close(); err != nil {
		return err
	}

	launcher := "#!/bin/bash\n" + job.DecoderCommand + "\n"
	if err := os.WriteFile(filepath.Join(job.WorkDir, LauncherFile), []byte(launcher), 0o700); err != nil {
		return err
	}

	cfg, err := os.Create(filepath.Join(job.WorkDir, OptimizerConfigFile))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(cfg)
	fmt.Fprintf(bw, "-dir %s\n", job.WorkDir)
	fmt.Fprintf(bw, "-r %s\n", ReferenceFile)
	fmt.Fprintf(bw, "-p %s\n", ParamsFile)
	fmt.Fprintf(bw, "-cmd %s\n", LauncherFile)
	fmt.Fprintf(bw, "-decOut %s\n", NBestFile)
	fmt.Fprintf(bw, "-dcfg %s\n", DecoderConfigFile)
	fmt.Fprintln(bw, "-txtNrm 0")
	fmt.Fprintln(bw, "-rps 1")
	fmt.Fprintf(bw, "-m monoses 4 closest %s\n", strconv.FormatFloat(job.TargetEntropy, 'g', -1, 64))
	fmt.Fprintf(bw, "-maxIt %d\n", job.Iterations)
	fmt.Fprintf(bw, "-ipi %d\n", job.PointsPerIt)
	fmt.Fprintf(bw, "-N %d\n", job.NBest)
	fmt.Fprintln(bw, "-v 1")
	fmt.Fprintf(bw, "-seed %d\n", job.Seed)
	fmt.Fprintf(bw, "-thrCnt %d\n", z.cfg.Threads)
	if err := bw.Flush(); err != nil {
		cfg.Close()
		return err
	}
	return cfg.Close()
}
