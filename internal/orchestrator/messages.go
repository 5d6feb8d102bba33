package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// HandleWorkerMessage is the single entry point for worker messages. After
// applying the message it re-attempts assignment, since every completion,
// failure and status change may free capacity or satisfy a dependency.
func (o *Orchestrator) HandleWorkerMessage(msg models.Message) {
	o.mu.Lock()
	if msg.Type != models.MsgStatusUpdate {
		o.saveMessageLocked(msg)
	}

	switch p := msg.Payload.(type) {
	case models.StatusUpdate:
		o.onStatusLocked(msg.Sender, p.Status)
	case models.TaskCompletion:
		o.onCompletionLocked(msg.TaskID, msg.Sender, p.Result)
	case models.TaskFailure:
		o.onFailureLocked(msg.TaskID, msg.Sender, p)
	case models.PredictionPayload:
		o.onPredictionLocked(p.Result)
	case models.ValidationPayload:
		o.onValidationLocked(p.Report)
	case models.HealingPayload:
		o.onHealingLocked(msg.TaskID, p.Actions)
	case models.TaskAssignment, models.PredictionRequest, models.ValidationRequest, models.HealingRequest:
		log.Printf("[orchestrator] ignoring %s from %s: orchestrator does not accept requests", msg.Type, msg.Sender)
	default:
		log.Printf("[orchestrator] ignoring message %s of unknown type %q from %s", msg.ID, msg.Type, msg.Sender)
	}

	o.assignLocked()
	o.unlock()
}

func (o *Orchestrator) onStatusLocked(sender string, st models.WorkerStatus) {
	e := o.workers[sender]
	if e == nil {
		debugLog("[status] update from unregistered worker %s", sender)
		return
	}
	prev := e.status.State
	e.status = st.Copy()
	if prev != st.State && (st.State == models.WorkerError || st.State == models.WorkerOffline) {
		log.Printf("[orchestrator] worker %s is %s", sender, st.State)
		o.dropRepliesLocked(st.Role)
	}
	o.notifyLocked()
}

func (o *Orchestrator) onCompletionLocked(taskID, sender string, res models.TaskResult) {
	t := o.tasks[taskID]
	if t == nil {
		log.Printf("[orchestrator] completion for unknown task %s from %s", taskID, sender)
		return
	}
	o.releaseLocked(t, sender)
	if !t.Status.CanTransition(models.TaskStatusCompleted) {
		debugLog("[scheduler] ignoring completion of %s in state %s", taskID, t.Status)
		return
	}

	now := o.opts.now()
	r := res
	t.Status = models.TaskStatusCompleted
	t.Result = &r
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
	o.stats.completed++

	o.logger.Log("task %s completed on %s in %s", t.ID, sender, res.Elapsed)
	o.saveTaskLocked(t)
	o.emitLocked(Event{Type: EventTaskCompleted, TaskID: t.ID, TaskTitle: t.Title, WorkerID: sender, PlanID: t.PlanID, Phase: t.Phase, Duration: res.Elapsed})
	o.recordOutcomeLocked(t, res.Elapsed, true)

	if len(t.Healing) > 0 {
		o.stats.healingApplied += res.Applied
		if m := o.opts.metrics; m != nil && res.Applied > 0 {
			n := res.Applied
			o.later(func() { m.HealingApplied(context.Background(), n) })
		}
	}
	if needsValidation(t) {
		if o.sendLocked(models.RoleValidation, t.ID, models.ValidationRequest{Task: *t.Clone(), Content: primaryContent(t, res)}) {
			o.awaitingReport[t.ID] = now
		}
	}
	o.notifyLocked()
}

func (o *Orchestrator) onFailureLocked(taskID, sender string, f models.TaskFailure) {
	t := o.tasks[taskID]
	if t == nil {
		log.Printf("[orchestrator] failure for unknown task %s from %s", taskID, sender)
		return
	}
	o.releaseLocked(t, sender)
	if !t.Status.CanTransition(models.TaskStatusFailed) {
		debugLog("[scheduler] ignoring failure of %s in state %s", taskID, t.Status)
		return
	}

	t.Status = models.TaskStatusFailed
	t.Error = f.Error
	t.UpdatedAt = o.opts.now()
	o.stats.failures++

	log.Printf("[orchestrator] task %s failed on %s: %s", t.ID, sender, f.Error)
	o.saveTaskLocked(t)
	o.emitLocked(Event{Type: EventTaskFailed, TaskID: t.ID, TaskTitle: t.Title, WorkerID: sender, PlanID: t.PlanID, Phase: t.Phase, Error: errors.New(f.Error), Duration: f.Elapsed})
	o.recordOutcomeLocked(t, f.Elapsed, false)

	if o.sendLocked(models.RoleHealing, t.ID, models.HealingRequest{Task: *t.Clone(), Content: f.Content, Error: f.Error}) {
		o.awaitingHealing[t.ID] = t.UpdatedAt
	}
	o.recoverLocked(t)
	o.notifyLocked()
}

func (o *Orchestrator) onPredictionLocked(r models.PredictionResult) {
	if _, ok := o.tasks[r.TaskID]; !ok {
		debugLog("[prediction] result for unknown task %s", r.TaskID)
		return
	}
	o.predictions[r.TaskID] = r
	if r.Risk.Level == models.RiskHigh {
		o.logger.Log("task %s predicted high risk (confidence %d): %v", r.TaskID, r.Confidence, r.Risk.Factors)
	}
}

func (o *Orchestrator) onValidationLocked(r models.ValidationReport) {
	t := o.tasks[r.TaskID]
	if t == nil {
		debugLog("[validation] report for unknown task %s", r.TaskID)
		return
	}
	o.reports[r.TaskID] = r
	delete(o.awaitingReport, r.TaskID)
	ev := Event{Type: EventValidation, TaskID: r.TaskID, TaskTitle: t.Title, PlanID: t.PlanID, Phase: t.Phase,
		Message: fmt.Sprintf("quality %.1f, %d/%d checks passed", r.Scores.Quality, r.PassedChecks, r.TotalChecks)}
	if !r.Passed {
		o.stats.validationFailures++
		ev.Error = fmt.Errorf("quality %.1f below threshold", r.Scores.Quality)
		log.Printf("[orchestrator] validation failure for task %s: quality %.1f (%d issues)", r.TaskID, r.Scores.Quality, len(r.Issues))
	}
	o.emitLocked(ev)
	if m := o.opts.metrics; m != nil {
		o.later(func() { m.ValidationScored(context.Background(), r) })
	}
	o.notifyLocked()
}

func (o *Orchestrator) onHealingLocked(taskID string, actions []models.HealingAction) {
	t := o.tasks[taskID]
	if t == nil {
		debugLog("[healing] actions for unknown task %s", taskID)
		return
	}
	o.healing[taskID] = actions
	delete(o.awaitingHealing, taskID)
	var approved []models.HealingAction
	for _, a := range actions {
		if a.Applied {
			approved = append(approved, a)
		}
	}
	if len(actions) > 0 {
		o.stats.healed++
	}

	msg := fmt.Sprintf("%d actions proposed, %d approved", len(actions), len(approved))
	if len(approved) > 0 {
		if id, err := o.queueHealLocked(t, approved); err != nil {
			log.Printf("[orchestrator] could not queue fixes for %s: %v", taskID, err)
		} else if id != "" {
			msg += ", applying in " + id
		}
	}
	o.emitLocked(Event{Type: EventHealing, TaskID: taskID, TaskTitle: t.Title, PlanID: t.PlanID, Phase: t.Phase, Message: msg})
	if m := o.opts.metrics; m != nil && len(actions) > 0 {
		n := len(actions)
		o.later(func() { m.HealingProposed(context.Background(), n) })
	}
}

// queueHealLocked queues the fix task that writes approved healing actions
// to the failed task's artifacts. Fix tasks never spawn fix tasks of their
// own. It returns the new task's ID, or "" when nothing was queued.
func (o *Orchestrator) queueHealLocked(failed *models.Task, approved []models.HealingAction) (string, error) {
	if len(failed.Healing) > 0 || len(failed.Metadata.Artifacts) == 0 {
		return "", nil
	}
	h := healTask(failed, approved)
	if _, exists := o.tasks[h.ID]; exists {
		return "", nil
	}
	if err := o.addLocked(h); err != nil {
		return "", err
	}
	return h.ID, nil
}

// healTask derives the fix task applying approved to failed's artifacts.
func healTask(failed *models.Task, approved []models.HealingAction) *models.Task {
	risks := make([]models.RiskLevel, 0, len(approved))
	for _, a := range approved {
		risks = append(risks, a.Risk)
	}
	title := failed.Title
	if title == "" {
		title = failed.ID
	}
	return (&models.Task{
		ID:       failed.ID + healSuffix,
		Type:     models.TaskTypeFix,
		Title:    "Apply fixes: " + title,
		Priority: failed.Priority,
		Metadata: models.TaskMetadata{
			Category:   healCategory,
			Difficulty: 1,
			Risk:       models.MaxRisk(risks...),
			Artifacts:  failed.Metadata.Artifacts,
		},
		PlanID:  failed.PlanID,
		Phase:   failed.Phase,
		Healing: approved,
	}).Clone()
}

// dropRepliesLocked stops waiting for replies from role once no worker of
// that role is left to answer.
func (o *Orchestrator) dropRepliesLocked(role models.WorkerRole) {
	var m map[string]time.Time
	switch role {
	case models.RoleValidation:
		m = o.awaitingReport
	case models.RoleHealing:
		m = o.awaitingHealing
	default:
		return
	}
	if len(m) == 0 || o.roleAvailableLocked(role) {
		return
	}
	log.Printf("[orchestrator] no %s worker available: not waiting for %d replies", role, len(m))
	clear(m)
}

// recordOutcomeLocked reports a finished execution attempt to the metrics
// and outcome recorders.
func (o *Orchestrator) recordOutcomeLocked(t *models.Task, elapsed time.Duration, success bool) {
	snap := t.Clone()
	if m := o.opts.metrics; m != nil {
		o.later(func() { m.TaskFinished(context.Background(), snap, elapsed) })
	}
	if r := o.opts.outcomes; r != nil && snap.Metadata.Category != "" {
		o.later(func() {
			if err := r.RecordOutcome(context.Background(), snap.Metadata.Category, success); err != nil {
				log.Printf("[orchestrator] warning: failed to record outcome for %s: %v", snap.ID, err)
			}
		})
	}
}

// needsValidation reports whether a completed task produced content to score.
func needsValidation(t *models.Task) bool {
	return t.Type != models.TaskTypeDelete && t.Result != nil && len(t.Result.Artifacts) > 0
}

// primaryContent picks the produced content validation should score: the
// first declared artifact present in the result, else the first by name.
func primaryContent(t *models.Task, res models.TaskResult) string {
	for _, a := range t.Metadata.Artifacts {
		if c, ok := res.Artifacts[a]; ok {
			return c
		}
	}
	if keys := sortedArtifactKeys(res.Artifacts); len(keys) > 0 {
		return res.Artifacts[keys[0]]
	}
	return ""
}
