package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/internal/graph"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// ValidatePlan checks that the plan's tasks form an acyclic graph whose
// dependencies are all known, and that phases only depend on earlier
// phases. Tasks already known to the orchestrator may be referenced.
func (o *Orchestrator) ValidatePlan(plan *models.Plan) error {
	if plan == nil {
		return &SchedulingError{Reason: "nil plan"}
	}

	seen := make(map[string]bool, len(plan.Phases))
	for _, ph := range plan.Phases {
		if seen[ph.Name] {
			return &SchedulingError{Reason: fmt.Sprintf("duplicate phase %q", ph.Name)}
		}
		for _, dep := range ph.DependsOn {
			if !seen[dep] {
				return &SchedulingError{Reason: fmt.Sprintf("phase %q depends on %q, which does not precede it", ph.Name, dep)}
			}
		}
		seen[ph.Name] = true
	}

	g := graph.New()
	o.mu.Lock()
	known := make([]string, 0, len(o.order))
	known = append(known, o.order...)
	o.mu.Unlock()
	g.AllowExternal(known...)

	if err := g.Build(plan.AllTasks()); err != nil {
		return &SchedulingError{Reason: "plan " + plan.ID, Err: err}
	}

	// A task may only depend on known tasks or tasks of its own or an earlier phase.
	avail := make(map[string]bool, len(known)+plan.TaskCount())
	for _, id := range known {
		avail[id] = true
	}
	for _, ph := range plan.Phases {
		for _, t := range ph.Tasks {
			avail[t.ID] = true
		}
		for _, t := range ph.Tasks {
			for _, dep := range t.Dependencies {
				if !avail[dep] {
					return &SchedulingError{TaskID: t.ID, Reason: fmt.Sprintf("phase %q depends on %s from a later phase", ph.Name, dep)}
				}
			}
		}
	}
	return nil
}

// ExecutePlan runs the plan phase by phase. Each phase's tasks are queued
// in dependency order and the call waits until every one of them is
// completed or blocked before the next phase starts. A phase that settles
// without completing any task cancels the plan. Completed tasks are kept,
// so running the same plan again skips work already done.
func (o *Orchestrator) ExecutePlan(ctx context.Context, plan *models.Plan) error {
	if err := o.ValidatePlan(plan); err != nil {
		if plan != nil {
			o.finishPlan(plan, models.PlanCancelled, err)
		}
		return err
	}

	plan.Status = models.PlanInProgress
	o.savePlan(plan)
	o.logger.Log("ExecutePlan(%s) started: %d phases, %d tasks", plan.ID, len(plan.Phases), plan.TaskCount())

	settled := make(map[string]bool, len(plan.Phases))
	for _, ph := range plan.Phases {
		if err := o.pause.WaitIfPaused(ctx); err != nil {
			o.finishPlan(plan, models.PlanCancelled, err)
			return err
		}
		for _, dep := range ph.DependsOn {
			if !settled[dep] {
				err := fmt.Errorf("phase %q started before phase %q settled", ph.Name, dep)
				o.finishPlan(plan, models.PlanCancelled, err)
				return err
			}
		}

		if err := o.runPhase(ctx, plan, ph); err != nil {
			o.finishPlan(plan, models.PlanCancelled, err)
			return err
		}
		settled[ph.Name] = true

		if hook := o.opts.phaseHook; hook != nil {
			go func(ph *models.Phase) {
				if err := hook(context.WithoutCancel(ctx), plan, ph); err != nil {
					log.Printf("[orchestrator] warning: phase hook for %q failed: %v", ph.Name, err)
				}
			}(ph)
		}
	}

	o.finishPlan(plan, models.PlanCompleted, nil)
	return nil
}

func (o *Orchestrator) runPhase(ctx context.Context, plan *models.Plan, ph *models.Phase) error {
	o.events.Emit(Event{Type: EventPhaseStarted, PlanID: plan.ID, Phase: ph.Name, Message: ph.Description})

	g := graph.New()
	o.mu.Lock()
	g.AllowExternal(o.order...)
	o.mu.Unlock()
	if err := g.Build(ph.Tasks); err != nil {
		return &SchedulingError{Reason: "phase " + ph.Name, Err: err}
	}
	ordered, err := g.SortedTasks()
	if err != nil {
		return &SchedulingError{Reason: "phase " + ph.Name, Err: err}
	}

	ids := make([]string, 0, len(ordered))
	for _, pt := range ordered {
		ids = append(ids, pt.ID)
		if o.Task(pt.ID) != nil {
			debugLog("[plan] %s already known, not re-queued", pt.ID)
			continue
		}
		t := pt.Clone()
		t.PlanID = plan.ID
		t.Phase = ph.Name
		if err := o.AddTask(t); err != nil {
			return err
		}
	}

	err = o.waitFor(ctx, func() (bool, error) {
		if o.phaseSettledLocked(ids) {
			return true, nil
		}
		return false, o.phaseStuckLocked(ph.Name, ids)
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	completed, quality, scored := o.phaseOutcomeLocked(ids)
	o.mu.Unlock()

	if len(ids) > 0 && completed == 0 {
		return fmt.Errorf("phase %q: all %d tasks blocked: %w", ph.Name, len(ids), ErrPhaseStalled)
	}
	if o.gateActive(plan) && scored > 0 && quality < plan.SuccessCriteria.MinQualityScore {
		return &PhaseGateError{Phase: ph.Name, Quality: quality, MinQuality: plan.SuccessCriteria.MinQualityScore}
	}

	o.events.Emit(Event{Type: EventPhaseCompleted, PlanID: plan.ID, Phase: ph.Name,
		Message: fmt.Sprintf("%d/%d tasks completed", completed, len(ids))})
	return nil
}

// gateActive reports whether phase completion waits for validation and
// checks average quality.
func (o *Orchestrator) gateActive(plan *models.Plan) bool {
	if !o.opts.gatePhases || plan.SuccessCriteria.MinQualityScore <= 0 {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.workersByRoleLocked(models.RoleValidation)) > 0
}

// phaseSettledLocked reports whether every task of the phase, or the
// simplified clone standing in for it, is completed or blocked. Fix tasks
// queued for them must have settled too, and a phase waits for healing
// replies that can still queue one. With the quality gate on, reports of
// validation requests that were sent are awaited as well.
func (o *Orchestrator) phaseSettledLocked(ids []string) bool {
	now := o.opts.now()
	for _, id := range ids {
		rid := o.resolveLocked(id)
		t := o.tasks[rid]
		if t == nil || !t.Status.Terminal() {
			return false
		}
		if o.opts.gatePhases && o.waitingLocked(o.awaitingReport, rid, now) {
			return false
		}
		for _, fid := range []string{id, rid} {
			if o.waitingLocked(o.awaitingHealing, fid, now) {
				return false
			}
			if h := o.tasks[fid+healSuffix]; h != nil && !h.Status.Terminal() {
				return false
			}
		}
	}
	return true
}

// waitingLocked reports whether a reply for taskID is still expected in m.
// A reply overdue by the validation wait is given up on.
func (o *Orchestrator) waitingLocked(m map[string]time.Time, taskID string, now time.Time) bool {
	sent, ok := m[taskID]
	if !ok {
		return false
	}
	if now.Sub(sent) < o.opts.validationWait {
		return true
	}
	log.Printf("[orchestrator] no reply for task %s after %s, not waiting any longer", taskID, o.opts.validationWait)
	delete(m, taskID)
	return false
}

// phaseStuckLocked returns an error wrapping ErrNoWorkers when tasks of the
// phase are pending but no execution worker can take them and none has
// work in flight that could change that.
func (o *Orchestrator) phaseStuckLocked(phase string, ids []string) error {
	pending := 0
	for _, id := range ids {
		if t := o.tasks[o.resolveLocked(id)]; t != nil && t.Status == models.TaskStatusPending {
			pending++
		}
	}
	if pending == 0 {
		return nil
	}
	workers := o.workersByRoleLocked(models.RoleExecution)
	for _, e := range workers {
		if e.status.State.Available() || len(e.assigned) > 0 {
			return nil
		}
	}
	return fmt.Errorf("phase %q: %d tasks pending, none of %d execution workers available: %w: %w",
		phase, pending, len(workers), ErrNoWorkers, ErrPhaseStalled)
}

// phaseOutcomeLocked counts completed tasks and averages their validation quality.
func (o *Orchestrator) phaseOutcomeLocked(ids []string) (completed int, quality float64, scored int) {
	var sum float64
	for _, id := range ids {
		t := o.tasks[o.resolveLocked(id)]
		if t == nil || t.Status != models.TaskStatusCompleted {
			continue
		}
		completed++
		if r, ok := o.reports[t.ID]; ok {
			sum += r.Scores.Quality
			scored++
		}
	}
	if scored > 0 {
		quality = sum / float64(scored)
	}
	return completed, quality, scored
}

// waitFor blocks until cond holds or fails, ctx is done or the
// orchestrator stops. cond runs with the lock held and is re-evaluated
// after every state change, and periodically for reply deadlines.
func (o *Orchestrator) waitFor(ctx context.Context, cond func() (bool, error)) error {
	recheck := min(time.Second, o.opts.validationWait/2)
	for {
		o.mu.Lock()
		ok, err := cond()
		ch := o.changed
		o.mu.Unlock()
		if ok || err != nil {
			return err
		}
		if o.pause.IsStopped() {
			return ErrStopped
		}
		select {
		case <-ch:
		case <-time.After(recheck):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *Orchestrator) finishPlan(plan *models.Plan, status models.PlanStatus, err error) {
	plan.Status = status
	o.savePlan(plan)
	ev := Event{Type: EventPlanCompleted, PlanID: plan.ID, Message: string(status)}
	if status == models.PlanCancelled {
		ev.Type = EventPlanCancelled
		ev.Error = err
		log.Printf("[orchestrator] plan %s cancelled: %v", plan.ID, err)
	}
	o.logger.Log("ExecutePlan(%s) finished: %s", plan.ID, status)
	o.events.Emit(ev)
}

func (o *Orchestrator) savePlan(plan *models.Plan) {
	if s := o.opts.store; s != nil {
		if err := s.SavePlan(context.Background(), plan); err != nil {
			log.Printf("[orchestrator] warning: failed to persist plan %s: %v", plan.ID, err)
		}
	}
}
