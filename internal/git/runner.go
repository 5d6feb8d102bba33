package git

import (
	"context"
	"fmt"
	"strings"

	iexec "github.com/Camier/2SEARX2COOL-sub001/internal/exec"
)

// ExecRunner implements Runner by running the git binary.
type ExecRunner struct {
	repoPath string
	cmd      iexec.CommandRunner
}

// NewRunner creates a git runner for the repository at repoPath. A nil
// cmd uses a default command runner.
func NewRunner(repoPath string, cmd iexec.CommandRunner) *ExecRunner {
	if cmd == nil {
		cmd = iexec.NewRunner()
	}
	return &ExecRunner{repoPath: repoPath, cmd: cmd}
}

// run executes a git command and returns its trimmed output.
func (r *ExecRunner) run(ctx context.Context, args ...string) (string, error) {
	out, err := r.cmd.Run(ctx, r.repoPath, "git", args...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Run executes an arbitrary git command with the given arguments.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	return r.run(ctx, args...)
}

// IsRepo reports whether repoPath is inside a git work tree.
func (r *ExecRunner) IsRepo(ctx context.Context) bool {
	out, err := r.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Status returns the porcelain status.
func (r *ExecRunner) Status(ctx context.Context) (string, error) {
	return r.run(ctx, "status", "--porcelain")
}

// HasChanges checks if there are uncommitted changes.
func (r *ExecRunner) HasChanges(ctx context.Context) (bool, error) {
	status, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// Add stages files.
func (r *ExecRunner) Add(ctx context.Context, paths ...string) error {
	_, err := r.run(ctx, append([]string{"add", "--"}, paths...)...)
	return err
}

// Commit creates a commit with the given message.
func (r *ExecRunner) Commit(ctx context.Context, message string) error {
	_, err := r.run(ctx, "commit", "-m", message)
	return err
}

// HeadCommit returns the abbreviated hash of HEAD.
func (r *ExecRunner) HeadCommit(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "--short", "HEAD")
}

var _ Runner = (*ExecRunner)(nil)
