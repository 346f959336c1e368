// Package shell runs external commands such as rsync and git.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/logging"
)

// Runner implements site.Runner with os/exec. Arguments are passed to the
// process directly, never through a shell.
type Runner struct {
	logger *zap.Logger
}

// New builds a Runner.
func New(logger *zap.Logger) *Runner {
	return &Runner{logger: logging.OrNop(logger).Named("shell")}
}

// Run executes name with args in dir and returns the combined output.
func (r *Runner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	line := CommandLine(name, args...)
	r.logger.Debug("running command", zap.String("dir", dir), zap.String("cmd", line))

	// #nosec G204 -- binaries and arguments come from configuration and baked paths.
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		r.logger.Debug("command failed",
			zap.String("cmd", line),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return out.Bytes(), &ExitError{Command: line, Output: out.String(), Err: err}
	}
	r.logger.Debug("command finished", zap.String("cmd", line), zap.Duration("elapsed", elapsed))
	return out.Bytes(), nil
}

// ExitError describes a failed command together with its output.
type ExitError struct {
	Command string
	Output  string
	Err     error
}

func (e *ExitError) Error() string {
	output := strings.TrimSpace(e.Output)
	if output == "" {
		return fmt.Sprintf("run %s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("run %s: %v: %s", e.Command, e.Err, output)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// CommandLine renders a command for logs, quoting arguments that contain spaces.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t'\"") {
			arg = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}
