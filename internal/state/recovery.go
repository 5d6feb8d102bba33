package state

import (
	"context"
	"fmt"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// Interrupted describes a plan whose run ended before the plan finished,
// together with the tasks that were still pending or running.
type Interrupted struct {
	Plan  *models.Plan
	Tasks []*models.Task
}

// CheckForInterrupted returns every plan stored as in progress. A live
// run keeps its plan in progress too, so callers decide whether the
// process that owned it is gone.
func (db *DB) CheckForInterrupted(ctx context.Context) ([]Interrupted, error) {
	plans, err := db.ListPlans(ctx)
	if err != nil {
		return nil, err
	}

	var out []Interrupted
	for _, p := range plans {
		if p.Status != models.PlanInProgress {
			continue
		}
		tasks, err := db.ListTasks(ctx, TaskFilter{
			PlanID: p.ID,
			Status: []models.TaskStatus{models.TaskStatusPending, models.TaskStatusInProgress},
		})
		if err != nil {
			return nil, fmt.Errorf("interrupted plan %s: %w", p.ID, err)
		}
		out = append(out, Interrupted{Plan: p, Tasks: tasks})
	}
	return out, nil
}

// MarkCancelled moves an interrupted plan to cancelled. Completed tasks
// stay completed, so re-running the plan only repeats unfinished work.
func (db *DB) MarkCancelled(ctx context.Context, planID string) error {
	p, err := db.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if p.Status != models.PlanInProgress {
		return fmt.Errorf("plan %s is %s, not in progress", planID, p.Status)
	}
	p.Status = models.PlanCancelled
	return db.SavePlan(ctx, p)
}
