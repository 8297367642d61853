package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"smt-go/internal/moses"
)

// runShell executes a rendered tool command through the shell, bounded
// by the configured tool timeout when one is set.
func (r *Runner) runShell(ctx context.Context, tool, command string) error {
	r.logger.Debug("Running external tool",
		zap.String("tool", tool),
		zap.String("command", command),
	)
	if t := r.cfg.Tools.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &moses.ToolError{Tool: tool, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return nil
}

// renderCommand fills {name} placeholders in an external tool template.
// Substituted values are shell-quoted, so templates can be run through a
// shell as-is.
func renderCommand(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", shellQuote(v))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// commandFor renders the template configured for an external tool,
// failing with an explicit error when the tool is not configured.
func commandFor(tool, template string, vars map[string]string) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("%s command not configured", tool)
	}
	return renderCommand(template, vars), nil
}

var shellSafe = regexp.MustCompile(`^[\w@%+=:,./-]+$`)

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
