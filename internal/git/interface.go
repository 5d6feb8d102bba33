// Package git provides the git operations behind the post-phase
// auto-commit hook.
package git

import "context"

// Runner is the subset of git the hook uses.
type Runner interface {
	// IsRepo reports whether the working directory is inside a work tree.
	IsRepo(ctx context.Context) bool
	// Status returns the porcelain status of the work tree.
	Status(ctx context.Context) (string, error)
	// HasChanges reports whether there are uncommitted changes.
	HasChanges(ctx context.Context) (bool, error)
	// Add stages changes to the given pathspecs.
	Add(ctx context.Context, paths ...string) error
	// Commit commits the index with the given message.
	Commit(ctx context.Context, message string) error
	// HeadCommit returns the abbreviated hash of HEAD.
	HeadCommit(ctx context.Context) (string, error)
	// Run executes an arbitrary git command.
	Run(ctx context.Context, args ...string) (string, error)
}
