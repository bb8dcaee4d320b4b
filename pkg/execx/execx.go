// Package execx runs external diagnostic tools and captures their output.
//
// Diagnostic tools are best-effort collaborators: they may be missing
// entirely, and several (smartctl in particular) exit non-zero as part of
// normal operation. Run therefore reports non-zero exits through
// Output.ExitCode rather than as an error; an error means the command never
// produced a usable result (binary missing, context expired, start failure).
package execx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Output captures everything a single tool invocation produced.
type Output struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
}

// Commander abstracts tool invocation so checkers can be tested against
// canned output.
type Commander interface {
	// Available reports whether the named binary is on PATH.
	Available(name string) bool
	// Run executes name with args under the runner's default timeout.
	Run(ctx context.Context, name string, args ...string) (Output, error)
	// RunTimeout executes name with args under an explicit timeout.
	RunTimeout(ctx context.Context, timeout time.Duration, name string, args ...string) (Output, error)
}

// DefaultTimeout bounds every external invocation so a wedged tool cannot
// stall the whole run.
const DefaultTimeout = 60 * time.Second

// Runner is the production Commander.
type Runner struct {
	// Timeout applies to Run; zero means DefaultTimeout.
	Timeout time.Duration
	// Logger, if set, records every invocation.
	Logger *zap.Logger
}

var _ Commander = (*Runner)(nil)

// Available reports whether name resolves on PATH.
func (r *Runner) Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Run executes the command under the runner's default timeout.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return r.RunTimeout(ctx, timeout, name, args...)
}

// RunTimeout executes the command, capturing stdout and stderr separately
// and interleaved. A non-zero exit is not an error.
func (r *Runner) RunTimeout(ctx context.Context, timeout time.Duration, name string, args ...string) (Output, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr, combined bytes.Buffer
	cmd.Stdout = io.MultiWriter(&stdout, &combined)
	cmd.Stderr = io.MultiWriter(&stderr, &combined)

	start := time.Now()
	err := cmd.Run()

	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		out.ExitCode = 0
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
		err = nil
	case ctx.Err() != nil:
		err = ctx.Err()
	}

	if r.Logger != nil {
		r.Logger.Debug("ran command",
			zap.String("command", name),
			zap.Strings("args", args),
			zap.Int("exit_code", out.ExitCode),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	}

	return out, err
}
