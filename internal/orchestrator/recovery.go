package orchestrator

import (
	"log"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

const (
	// simplifyAbove is the difficulty above which a failed task is retried
	// once as a simplified clone.
	simplifyAbove = 5
	// simplifiedFloor is the lowest difficulty a simplified clone gets.
	simplifiedFloor = 3
	// simplifiedSuffix is appended to the ID of a simplified clone.
	simplifiedSuffix = "-simplified"
	// healSuffix is appended to the ID of the fix task applying approved
	// healing actions.
	healSuffix = "-heal"
	// healCategory is the prediction and outcome category of those tasks.
	healCategory = "healing"
)

// recoverLocked applies the recovery policy to a task that just failed.
// Healing has already been requested. A hard task that was never
// simplified is replaced by an easier clone; anything else is blocked,
// together with the original of a failed clone, and the block propagates
// to every dependent.
func (o *Orchestrator) recoverLocked(t *models.Task) {
	if t.SimplifiedFrom == "" && t.Metadata.Difficulty > simplifyAbove {
		if _, done := o.replacedBy[t.ID]; !done {
			clone := simplifiedClone(t)
			if _, exists := o.tasks[clone.ID]; !exists {
				o.replacedBy[t.ID] = clone.ID
				err := o.addLocked(clone)
				if err == nil {
					log.Printf("[orchestrator] retrying %s as %s (difficulty %d -> %d)", t.ID, clone.ID, t.Metadata.Difficulty, clone.Metadata.Difficulty)
					o.emitLocked(Event{Type: EventTaskSimplified, TaskID: clone.ID, TaskTitle: clone.Title, PlanID: clone.PlanID, Phase: clone.Phase, Message: "replaces " + t.ID})
					return
				}
				delete(o.replacedBy, t.ID)
				log.Printf("[orchestrator] could not queue simplified retry of %s: %v", t.ID, err)
			}
		}
	}

	o.blockLocked(t, "execution failed: "+t.Error)
	if t.SimplifiedFrom != "" {
		if orig := o.tasks[t.SimplifiedFrom]; orig != nil {
			o.blockLocked(orig, "simplified retry "+t.ID+" failed")
		}
	}
	o.propagateBlockLocked()
}

// simplifiedClone derives the one-time easier retry of t.
func simplifiedClone(t *models.Task) *models.Task {
	c := t.Clone()
	c.ID = t.ID + simplifiedSuffix
	c.SimplifiedFrom = t.ID
	if t.Title != "" {
		c.Title = "Simplified: " + t.Title
	}
	c.Metadata.Difficulty = max(t.Metadata.Difficulty-2, simplifiedFloor)
	c.Status = models.TaskStatusPending
	c.AssignedTo, c.Error, c.BlockedReason = "", "", ""
	c.Result, c.CompletedAt = nil, nil
	return c
}

// blockLocked moves t to blocked if its lifecycle allows it.
func (o *Orchestrator) blockLocked(t *models.Task, reason string) {
	if !t.Status.CanTransition(models.TaskStatusBlocked) {
		return
	}
	t.Status = models.TaskStatusBlocked
	t.BlockedReason = reason
	t.UpdatedAt = o.opts.now()
	log.Printf("[orchestrator] task %s blocked: %s", t.ID, reason)
	o.saveTaskLocked(t)
	o.emitLocked(Event{Type: EventTaskBlocked, TaskID: t.ID, TaskTitle: t.Title, PlanID: t.PlanID, Phase: t.Phase, Message: reason})
}

// propagateBlockLocked blocks every pending task that depends, directly
// or transitively, on a blocked task. Such dependencies can never complete.
func (o *Orchestrator) propagateBlockLocked() {
	for changed := true; changed; {
		changed = false
		for _, id := range o.order {
			t := o.tasks[id]
			if t.Status != models.TaskStatusPending {
				continue
			}
			for _, dep := range t.Dependencies {
				if d := o.tasks[o.resolveLocked(dep)]; d != nil && d.Status == models.TaskStatusBlocked {
					o.blockLocked(t, "dependency "+dep+" is blocked")
					changed = true
					break
				}
			}
		}
	}
}
