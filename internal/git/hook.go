package git

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// excludeState keeps the tool's own state out of commits.
const excludeState = ":(exclude).autopilot"

// Committer commits the work tree after each successful plan phase.
// Its AfterPhase method has the orchestrator's phase hook signature.
type Committer struct {
	git Runner

	// Phase hooks run in their own goroutines; commits must not interleave.
	mu sync.Mutex
}

// NewCommitter creates a committer for the given repository.
func NewCommitter(r Runner) *Committer {
	return &Committer{git: r}
}

// AfterPhase stages every change outside .autopilot and commits it. A
// clean tree or a directory that is not a repository is not an error.
func (c *Committer) AfterPhase(ctx context.Context, plan *models.Plan, phase *models.Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.git.IsRepo(ctx) {
		log.Printf("[git] not a repository, skipping commit for phase %q", phase.Name)
		return nil
	}
	changed, err := c.git.HasChanges(ctx)
	if err != nil || !changed {
		return err
	}
	if err := c.git.Add(ctx, ".", excludeState); err != nil {
		return err
	}
	// The tree may only have changed under .autopilot.
	staged, err := c.git.Run(ctx, "diff", "--cached", "--name-only")
	if err != nil || staged == "" {
		return err
	}
	if err := c.git.Commit(ctx, CommitMessage(plan, phase)); err != nil {
		return err
	}
	if head, err := c.git.HeadCommit(ctx); err == nil {
		log.Printf("[git] committed phase %q of %s as %s", phase.Name, plan.Name, head)
	}
	return nil
}

// CommitMessage is the message used for a phase commit.
func CommitMessage(plan *models.Plan, phase *models.Phase) string {
	msg := fmt.Sprintf("autopilot: %s, phase %s", plan.Name, phase.Name)
	if phase.Description != "" {
		msg += "\n\n" + phase.Description
	}
	if len(phase.Tasks) > 0 {
		msg += "\n"
		for _, t := range phase.Tasks {
			msg += fmt.Sprintf("\n- %s: %s", t.ID, t.Title)
		}
	}
	msg += fmt.Sprintf("\n\nPlan: %s", plan.ID)
	return msg
}
