package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DefaultMaxOutput bounds the output kept from one command.
const DefaultMaxOutput = 64 << 10

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithEnv adds KEY=VALUE pairs to the inherited environment.
func WithEnv(kv ...string) Option {
	return func(r *ExecRunner) { r.env = append(r.env, kv...) }
}

// WithMaxOutput caps the returned output at n bytes. The tail is kept,
// since that is where compilers and test runners print failures.
func WithMaxOutput(n int) Option {
	return func(r *ExecRunner) {
		if n > 0 {
			r.maxOutput = n
		}
	}
}

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct {
	env       []string
	maxOutput int
}

// NewRunner creates a new ExecRunner.
func NewRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{maxOutput: DefaultMaxOutput}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a command and returns combined stdout/stderr output.
// A non-zero exit is returned as *ExitError alongside the output.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	out := buf.Bytes()
	if len(out) > r.maxOutput {
		out = out[len(out)-r.maxOutput:]
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return out, &ExitError{
			Command:  strings.TrimSpace(name + " " + strings.Join(args, " ")),
			ExitCode: exitErr.ExitCode(),
		}
	}
	if err != nil && ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, err
}

// RunShell executes a shell command through "sh -c".
func (r *ExecRunner) RunShell(ctx context.Context, workDir string, command string) ([]byte, error) {
	return r.Run(ctx, workDir, "sh", "-c", command)
}

var _ CommandRunner = (*ExecRunner)(nil)
